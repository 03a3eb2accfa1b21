package jwt

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier checks ES256K JWTs against a fixed secp256k1 public key.
type JWTVerifier struct {
	publicKey []byte
	opts      []jwt.ParserOption
}

// NewJWTVerifier creates a verifier for a compressed or uncompressed public
// key. Parser options (audience, leeway, clock) are applied to every call.
func NewJWTVerifier(publicKey []byte, opts ...jwt.ParserOption) *JWTVerifier {
	return &JWTVerifier{
		publicKey: append([]byte(nil), publicKey...),
		opts:      append([]jwt.ParserOption{jwt.WithValidMethods([]string{ES256K.Alg()})}, opts...),
	}
}

// Verify parses tokenString into claims and checks its signature and
// registered claims.
func (v *JWTVerifier) Verify(tokenString string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	register()

	parserOpts := append(append([]jwt.ParserOption{}, v.opts...), opts...)
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}, parserOpts...)
	if err != nil {
		return fmt.Errorf("failed to verify token: %w", err)
	}

	return nil
}
