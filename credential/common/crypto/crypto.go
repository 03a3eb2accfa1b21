// Package crypto holds the secp256k1 key handling shared by the hash
// commitment suite and the challenge tokens.
package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyToBytes converts a hex string, with or without the 0x prefix, to bytes.
func KeyToBytes(key string) ([]byte, error) {
	key = strings.TrimPrefix(key, "0x")
	if key == "" {
		return nil, errors.New("key is empty")
	}

	return hex.DecodeString(key)
}

// GenerateKey creates a random secp256k1 key and returns the 32-byte
// private scalar and the 33-byte compressed public key.
func GenerateKey() (priv, pub []byte, err error) {
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
	}

	return k.Serialize(), k.PubKey().SerializeCompressed(), nil
}

// ParsePrivateKey parses a private key of type secp256k1 from bytes.
// The length of the private key is 32 bytes.
func ParsePrivateKey(privateKeyBytes []byte) (*ecdsa.PrivateKey, error) {
	if len(privateKeyBytes) != 32 {
		return nil, errors.New("private key must be 32 bytes")
	}

	privKey, err := crypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, err
	}

	return privKey, nil
}

// ParsePublicKey accepts a compressed (33 bytes) or uncompressed (65 bytes)
// secp256k1 public key.
func ParsePublicKey(publicKeyBytes []byte) (*ecdsa.PublicKey, error) {
	pk, err := btcec.ParsePubKey(publicKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return crypto.UnmarshalPubkey(pk.SerializeUncompressed())
}

// CompressPublicKey returns the 33-byte form of a public key.
func CompressPublicKey(pub *ecdsa.PublicKey) []byte {
	return crypto.CompressPubkey(pub)
}

// SignDigest signs a 32-byte digest, producing a 65-byte [r, s, v] signature.
func SignDigest(digest []byte, priv *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest, priv)
	if err != nil {
		return nil, fmt.Errorf("ecdsa: sign error: %w", err)
	}

	if len(sig) != 65 {
		return nil, fmt.Errorf("ecdsa: invalid signature length, expected 65 bytes")
	}

	return sig, nil
}

// VerifyDigest checks a 64-byte [r, s] or 65-byte [r, s, v] signature over
// a digest. With a recovery byte the signer key is recovered and compared.
func VerifyDigest(publicKey, digest, signature []byte) bool {
	pub, err := ParsePublicKey(publicKey)
	if err != nil || len(digest) != 32 {
		return false
	}
	compressed := crypto.CompressPubkey(pub)

	switch len(signature) {
	case 64:
		return crypto.VerifySignature(compressed, digest, signature)
	case 65:
		recovered, err := crypto.SigToPub(digest, signature)
		if err != nil {
			return false
		}

		return bytes.Equal(crypto.CompressPubkey(recovered), compressed) &&
			crypto.VerifySignature(compressed, digest, signature[:64])
	default:
		return false
	}
}

// VerifyKeyPair reports whether priv derives pub.
func VerifyKeyPair(priv, pub []byte) (bool, error) {
	privateKey, err := ParsePrivateKey(priv)
	if err != nil {
		return false, err
	}

	publicKey, err := ParsePublicKey(pub)
	if err != nil {
		return false, err
	}

	return privateKey.PublicKey.X.Cmp(publicKey.X) == 0 &&
		privateKey.PublicKey.Y.Cmp(publicKey.Y) == 0, nil
}
