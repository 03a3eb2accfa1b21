package jwt

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/crypto"
)

// SigningMethodES256K implements ES256K signing
type SigningMethodES256K struct{}

// Alg returns the algorithm name
func (m *SigningMethodES256K) Alg() string {
	return "ES256K"
}

// Sign signs a string with a secp256k1 private key given as
// *ecdsa.PrivateKey, raw bytes or a hex string.
func (m *SigningMethodES256K) Sign(signingString string, key interface{}) ([]byte, error) {
	privKey, err := toPrivateKey(key)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256([]byte(signingString))
	sig, err := crypto.SignDigest(hash[:], privKey)
	if err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}

	return sig[:64], nil // Return R and S, excluding recovery ID
}

// Verify verifies a signature against a *ecdsa.PublicKey or a compressed
// or uncompressed key in bytes.
func (m *SigningMethodES256K) Verify(signingString string, signature []byte, key interface{}) error {
	var pub []byte
	switch k := key.(type) {
	case *ecdsa.PublicKey:
		pub = crypto.CompressPublicKey(k)
	case []byte:
		pub = k
	default:
		return fmt.Errorf("invalid key type %T", key)
	}

	if len(signature) != 64 {
		return fmt.Errorf("invalid signature length")
	}

	hash := sha256.Sum256([]byte(signingString))
	if !crypto.VerifyDigest(pub, hash[:], signature) {
		return fmt.Errorf("signature verification failed")
	}

	return nil
}

func toPrivateKey(key interface{}) (*ecdsa.PrivateKey, error) {
	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		return k, nil
	case []byte:
		return crypto.ParsePrivateKey(k)
	case string:
		b, err := hex.DecodeString(k)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		return crypto.ParsePrivateKey(b)
	default:
		return nil, fmt.Errorf("invalid key type %T", key)
	}
}

// ES256K is the ES256K signing method instance
var ES256K = &SigningMethodES256K{}

var registerOnce sync.Once

func register() {
	registerOnce.Do(func() {
		jwt.RegisterSigningMethod(ES256K.Alg(), func() jwt.SigningMethod {
			return ES256K
		})
	})
}
