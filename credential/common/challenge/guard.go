// Package challenge binds presentations to a verifier-issued nonce and to
// the verifier's domain, and tracks which nonces were already used.
package challenge

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
)

var logger = log.New("sdvc/challenge")

const nonceSize = 32

// NewNonce returns a random URL-safe challenge value.
func NewNonce() (string, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Check compares the presented binding with the expected one. The nonce is
// checked first, then the domain.
func Check(presentedNonce, presentedDomain, expectedNonce, expectedDomain string) error {
	if !equal(presentedNonce, expectedNonce) {
		return sderr.Newf(sderr.KindReplay, "check challenge", "nonce does not match the expected challenge")
	}
	if !equal(presentedDomain, expectedDomain) {
		return sderr.Newf(sderr.KindAudience, "check challenge", "presentation is bound to domain %q, expected %q", presentedDomain, expectedDomain)
	}

	return nil
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
