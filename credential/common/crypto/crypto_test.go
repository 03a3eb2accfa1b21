package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyToBytes(t *testing.T) {
	b, err := KeyToBytes("0x0102")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)

	b, err = KeyToBytes("0a0b")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x0b}, b)

	_, err = KeyToBytes("0x")
	assert.Error(t, err)
	_, err = KeyToBytes("zz")
	assert.Error(t, err)
}

func TestSignAndVerifyDigest(t *testing.T) {
	priv, pub, err := GenerateKey()
	require.NoError(t, err)
	require.Len(t, priv, 32)
	require.Len(t, pub, 33)

	ok, err := VerifyKeyPair(priv, pub)
	require.NoError(t, err)
	assert.True(t, ok)

	key, err := ParsePrivateKey(priv)
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("hello"))
	sig, err := SignDigest(digest[:], key)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	assert.True(t, VerifyDigest(pub, digest[:], sig))
	assert.True(t, VerifyDigest(pub, digest[:], sig[:64]))

	other := sha256.Sum256([]byte("bye"))
	assert.False(t, VerifyDigest(pub, other[:], sig))

	_, otherPub, err := GenerateKey()
	require.NoError(t, err)
	assert.False(t, VerifyDigest(otherPub, digest[:], sig))
	assert.False(t, VerifyDigest(pub, digest[:], sig[:10]))
}

func TestParsePublicKey_Uncompressed(t *testing.T) {
	priv, pub, err := GenerateKey()
	require.NoError(t, err)
	key, err := ParsePrivateKey(priv)
	require.NoError(t, err)

	parsed, err := ParsePublicKey(pub)
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.X.Cmp(key.PublicKey.X))
	assert.Equal(t, hex.EncodeToString(pub), hex.EncodeToString(CompressPublicKey(parsed)))

	_, err = ParsePublicKey([]byte{0x02, 0x01})
	assert.Error(t, err)
}

func TestParsePrivateKey_WrongLength(t *testing.T) {
	_, err := ParsePrivateKey(make([]byte, 31))
	assert.Error(t, err)
}
