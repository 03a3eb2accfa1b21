package jwt

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/crypto"
)

// JWTSigner signs claim sets as ES256K JWTs.
type JWTSigner struct {
	privKey *ecdsa.PrivateKey
	keyID   string
}

// NewJWTSigner creates a signer from a 32-byte secp256k1 private key. keyID
// is put in the kid header when not empty.
func NewJWTSigner(privKey []byte, keyID string) (*JWTSigner, error) {
	k, err := crypto.ParsePrivateKey(privKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &JWTSigner{privKey: k, keyID: keyID}, nil
}

// Sign returns the compact serialization of a token carrying claims.
func (s *JWTSigner) Sign(claims jwt.Claims) (string, error) {
	register()

	token := jwt.NewWithClaims(ES256K, claims)
	token.Header["typ"] = "JWT"
	if s.keyID != "" {
		token.Header["kid"] = s.keyID
	}

	signed, err := token.SignedString(s.privKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// PublicKey returns the compressed public key associated with this signer.
func (s *JWTSigner) PublicKey() []byte {
	return crypto.CompressPublicKey(&s.privKey.PublicKey)
}
