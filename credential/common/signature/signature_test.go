package signature

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
)

type stubSuite struct{ name string }

func (s stubSuite) Name() string { return s.name }
func (stubSuite) Verify(context.Context, [][]byte, []byte, PublicKey) (bool, error) {
	return true, nil
}
func (stubSuite) DeriveProof(context.Context, [][]byte, []byte, PublicKey, []int, Binding) ([]byte, error) {
	return nil, nil
}
func (stubSuite) VerifyDerived(context.Context, []IndexedMessage, int, []byte, PublicKey, Binding) (bool, error) {
	return true, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubSuite{"a"}, stubSuite{"b"})
	r.Register(stubSuite{"a"})

	assert.Equal(t, []string{"a", "b"}, r.Names())
	s, err := r.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "b", s.Name())

	_, err = r.Get("c")
	assert.True(t, errors.Is(err, sderr.ErrCrypto))
}

func TestBinding_Bytes(t *testing.T) {
	a := Binding{Nonce: "ab", Domain: "c"}.Bytes()
	b := Binding{Nonce: "a", Domain: "bc"}.Bytes()
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Binding{Nonce: "ab", Domain: "c"}.Bytes())
}

func TestNormalizeRevealed(t *testing.T) {
	got, err := NormalizeRevealed([]int{3, 1, 1, 0}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3}, got)

	_, err = NormalizeRevealed([]int{4}, 4)
	assert.Error(t, err)
	_, err = NormalizeRevealed([]int{-1}, 4)
	assert.Error(t, err)
}

func TestCheckKey(t *testing.T) {
	assert.NoError(t, CheckKey("s", PublicKey{Type: "s", Value: []byte{1}}))
	assert.True(t, errors.Is(CheckKey("s", PublicKey{Type: "t", Value: []byte{1}}), sderr.ErrCrypto))
	assert.True(t, errors.Is(CheckKey("s", PublicKey{Type: "s"}), sderr.ErrCrypto))
}
