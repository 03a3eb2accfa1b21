package bbs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
)

var messages = [][]byte{
	[]byte("\x1eid\x1furn:uuid:1"),
	[]byte("id\x1fsdid:example:alice"),
	[]byte("name\x1fsAlice"),
	[]byte("degree.name\x1fsCS"),
}

func TestSignDeriveVerify(t *testing.T) {
	ctx := context.Background()
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	signer, err := NewSigner(kp.Private)
	require.NoError(t, err)
	pub, err := signer.PublicKey()
	require.NoError(t, err)
	require.Equal(t, kp.Public, pub)

	proof, err := signer.Sign(ctx, messages)
	require.NoError(t, err)

	suite := New()
	ok, err := suite.Verify(ctx, messages, proof, kp.Public)
	require.NoError(t, err)
	require.True(t, ok)

	b := signature.Binding{Nonce: "nonce-1", Domain: "verifier.example"}
	derived, err := suite.DeriveProof(ctx, messages, proof, kp.Public, []int{0, 1, 2}, b)
	require.NoError(t, err)

	revealed := []signature.IndexedMessage{
		{Index: 2, Message: messages[2]},
		{Index: 0, Message: messages[0]},
		{Index: 1, Message: messages[1]},
	}
	ok, err = suite.VerifyDerived(ctx, revealed, len(messages), derived, kp.Public, b)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = suite.VerifyDerived(ctx, revealed, len(messages), derived, kp.Public,
		signature.Binding{Nonce: "nonce-2", Domain: b.Domain})
	require.NoError(t, err)
	require.False(t, ok)

	altered := append([]signature.IndexedMessage{}, revealed...)
	altered[0] = signature.IndexedMessage{Index: 2, Message: []byte("name\x1fsMallory")}
	ok, err = suite.VerifyDerived(ctx, altered, len(messages), derived, kp.Public, b)
	require.NoError(t, err)
	require.False(t, ok)

	// Verifying must not disturb the proof bytes.
	ok, err = suite.VerifyDerived(ctx, revealed, len(messages), derived, kp.Public, b)
	require.NoError(t, err)
	require.True(t, ok)

	injected := append(append([]signature.IndexedMessage{}, revealed...),
		signature.IndexedMessage{Index: 3, Message: []byte("admin\x1fbtrue")})
	ok, err = suite.VerifyDerived(ctx, injected, len(messages), derived, kp.Public, b)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = suite.VerifyDerived(ctx, revealed[:2], len(messages), derived, kp.Public, b)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = suite.VerifyDerived(ctx, revealed, len(messages)+1, derived, kp.Public, b)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = suite.VerifyDerived(ctx, revealed, len(messages), []byte{1, 2, 3}, kp.Public, b)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProofIndexes(t *testing.T) {
	ctx := context.Background()
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	signer, err := NewSigner(kp.Private)
	require.NoError(t, err)
	proof, err := signer.Sign(ctx, messages)
	require.NoError(t, err)

	derived, err := New().DeriveProof(ctx, messages, proof, kp.Public, []int{3, 0}, signature.Binding{Nonce: "n"})
	require.NoError(t, err)

	count, indexes, ok := proofIndexes(derived)
	require.True(t, ok)
	require.Equal(t, len(messages), count)
	require.Equal(t, []int{0, 3}, indexes)

	_, _, ok = proofIndexes([]byte{0})
	require.False(t, ok)
	_, _, ok = proofIndexes([]byte{0, 16, 1})
	require.False(t, ok)
}

func TestVerify_TamperedMessage(t *testing.T) {
	ctx := context.Background()
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	signer, err := NewSigner(kp.Private)
	require.NoError(t, err)
	proof, err := signer.Sign(ctx, messages)
	require.NoError(t, err)

	tampered := append([][]byte{}, messages...)
	tampered[3] = []byte("degree.name\x1fsLaw")
	ok, err := New().Verify(ctx, tampered, proof, kp.Public)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUnusableKey(t *testing.T) {
	_, err := New().Verify(context.Background(), messages, []byte{1}, signature.PublicKey{Type: SuiteName, Value: []byte{1, 2}})
	require.True(t, errors.Is(err, sderr.ErrCrypto))

	_, err = NewSigner([]byte{1, 2, 3})
	require.Error(t, err)
}
