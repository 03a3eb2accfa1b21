// Package provider resolves issuer identifiers to public key material.
package provider

import (
	"context"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
)

var logger = log.New("sdvc/provider")

// KeyResolver maps an issuer, and optionally the verification method named
// in a proof, to the public key that verifies the issuer's signatures.
//
// Implementations return an *sderr.Error of kind UnresolvedIssuer when no
// key can be found.
type KeyResolver interface {
	ResolveKey(ctx context.Context, issuer, verificationMethod string) (signature.PublicKey, error)
}

// KeyResolverFunc adapts a function to KeyResolver.
type KeyResolverFunc func(ctx context.Context, issuer, verificationMethod string) (signature.PublicKey, error)

// ResolveKey implements KeyResolver.
func (f KeyResolverFunc) ResolveKey(ctx context.Context, issuer, verificationMethod string) (signature.PublicKey, error) {
	return f(ctx, issuer, verificationMethod)
}

// config holds package configuration.
var config = struct {
	BaseURL string
}{
	BaseURL: "https://api.ndadid.vn/api/v1/did",
}

// Init sets the default DID resolver endpoint.
func Init(baseURL string) {
	if baseURL != "" {
		config.BaseURL = baseURL
	}
}

// BaseURL returns the default DID resolver endpoint.
func BaseURL() string {
	return config.BaseURL
}
