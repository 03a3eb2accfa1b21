package hashcommit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
)

var messages = [][]byte{
	[]byte("id\x1fsdid:example:alice"),
	[]byte("name\x1fsAlice"),
	[]byte("age\x1fn30"),
	[]byte("degree.name\x1fsCS"),
}

func setup(t *testing.T) (*Signer, signature.PublicKey, []byte) {
	t.Helper()
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	signer, err := NewSigner(kp.Private)
	require.NoError(t, err)
	pub, err := signer.PublicKey()
	require.NoError(t, err)
	require.Equal(t, kp.Public, pub)

	proof, err := signer.Sign(context.Background(), messages)
	require.NoError(t, err)
	return signer, kp.Public, proof
}

func reveal(idx ...int) []signature.IndexedMessage {
	out := make([]signature.IndexedMessage, len(idx))
	for j, i := range idx {
		out[j] = signature.IndexedMessage{Index: i, Message: messages[i]}
	}
	return out
}

func TestSignVerify(t *testing.T) {
	_, pub, proof := setup(t)
	suite := New()

	ok, err := suite.Verify(context.Background(), messages, proof, pub)
	require.NoError(t, err)
	assert.True(t, ok)

	tampered := append([][]byte{}, messages...)
	tampered[1] = []byte("name\x1fsMallory")
	ok, err = suite.Verify(context.Background(), tampered, proof, pub)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeriveAndVerify(t *testing.T) {
	_, pub, proof := setup(t)
	suite := New()
	ctx := context.Background()
	b := signature.Binding{Nonce: "n-1", Domain: "verifier.example"}

	derived, err := suite.DeriveProof(ctx, messages, proof, pub, []int{2, 0}, b)
	require.NoError(t, err)

	ok, err := suite.VerifyDerived(ctx, reveal(0, 2), len(messages), derived, pub, b)
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("other nonce", func(t *testing.T) {
		ok, err := suite.VerifyDerived(ctx, reveal(0, 2), len(messages), derived, pub,
			signature.Binding{Nonce: "n-2", Domain: b.Domain})
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("other domain", func(t *testing.T) {
		ok, err := suite.VerifyDerived(ctx, reveal(0, 2), len(messages), derived, pub,
			signature.Binding{Nonce: b.Nonce, Domain: "evil.example"})
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("altered revealed message", func(t *testing.T) {
		rv := reveal(0, 2)
		rv[1].Message = []byte("age\x1fn31")
		ok, err := suite.VerifyDerived(ctx, rv, len(messages), derived, pub, b)
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("extra revealed message", func(t *testing.T) {
		ok, err := suite.VerifyDerived(ctx, reveal(0, 1, 2), len(messages), derived, pub, b)
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("wrong total", func(t *testing.T) {
		ok, err := suite.VerifyDerived(ctx, reveal(0, 2), len(messages)+1, derived, pub, b)
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("garbage proof", func(t *testing.T) {
		ok, err := suite.VerifyDerived(ctx, reveal(0, 2), len(messages), []byte{0xff, 0x00}, pub, b)
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("other issuer key", func(t *testing.T) {
		other, err := GenerateKeyPair()
		require.NoError(t, err)
		ok, err := suite.VerifyDerived(ctx, reveal(0, 2), len(messages), derived, other.Public, b)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestDerivedProofDoesNotCarryHiddenValues(t *testing.T) {
	_, pub, proof := setup(t)
	derived, err := New().DeriveProof(context.Background(), messages, proof, pub, []int{0}, signature.Binding{Nonce: "n"})
	require.NoError(t, err)
	assert.NotContains(t, string(derived), "Alice")
	assert.NotContains(t, string(derived), "degree.name")
}

func TestBadKeyIsCryptoError(t *testing.T) {
	_, _, proof := setup(t)
	suite := New()

	_, err := suite.Verify(context.Background(), messages, proof, signature.PublicKey{Type: SuiteName, Value: []byte{1, 2, 3}})
	assert.True(t, errors.Is(err, sderr.ErrCrypto))

	_, err = suite.Verify(context.Background(), messages, proof, signature.PublicKey{Type: "other", Value: []byte{1}})
	assert.True(t, errors.Is(err, sderr.ErrCrypto))
}

func TestCancelledContext(t *testing.T) {
	signer, pub, proof := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := signer.Sign(ctx, messages)
	assert.True(t, errors.Is(err, sderr.ErrCrypto))
	_, err = New().DeriveProof(ctx, messages, proof, pub, []int{0}, signature.Binding{})
	assert.True(t, errors.Is(err, sderr.ErrCrypto))
}

func TestDeriveProof_RejectsOutOfRangeIndex(t *testing.T) {
	_, pub, proof := setup(t)
	_, err := New().DeriveProof(context.Background(), messages, proof, pub, []int{len(messages)}, signature.Binding{})
	assert.True(t, errors.Is(err, sderr.ErrCrypto))
}
