package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/crypto"
)

func TestSignAndVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateKey()
	require.NoError(t, err)

	signer, err := NewJWTSigner(priv, "did:example:verifier#key-1")
	require.NoError(t, err)
	assert.Equal(t, pub, signer.PublicKey())

	token, err := signer.Sign(jwt.RegisteredClaims{
		Issuer:    "did:example:verifier",
		Audience:  jwt.ClaimStrings{"verifier.example"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)

	var claims jwt.RegisteredClaims
	v := NewJWTVerifier(pub, jwt.WithAudience("verifier.example"))
	require.NoError(t, v.Verify(token, &claims))
	assert.Equal(t, "did:example:verifier", claims.Issuer)

	assert.Error(t, v.Verify(token, &jwt.RegisteredClaims{}, jwt.WithAudience("other.example")))

	_, otherPub, err := crypto.GenerateKey()
	require.NoError(t, err)
	assert.Error(t, NewJWTVerifier(otherPub).Verify(token, &jwt.RegisteredClaims{}))
}

func TestVerify_Expired(t *testing.T) {
	priv, pub, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := NewJWTSigner(priv, "")
	require.NoError(t, err)

	token, err := signer.Sign(jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})
	require.NoError(t, err)

	err = NewJWTVerifier(pub).Verify(token, &jwt.RegisteredClaims{})
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSigningMethod_KeyTypes(t *testing.T) {
	priv, pub, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := ES256K.Sign("payload", priv)
	require.NoError(t, err)
	require.Len(t, sig, 64)

	key, err := crypto.ParsePublicKey(pub)
	require.NoError(t, err)
	assert.NoError(t, ES256K.Verify("payload", sig, key))
	assert.NoError(t, ES256K.Verify("payload", sig, pub))
	assert.Error(t, ES256K.Verify("other", sig, pub))
	assert.Error(t, ES256K.Verify("payload", sig, "not-a-key"))

	_, err = ES256K.Sign("payload", 42)
	assert.Error(t, err)
}
