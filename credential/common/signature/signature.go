// Package signature defines the multi-message signature capability the
// disclosure engine is built on, and a registry of available suites.
package signature

import (
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
)

// PublicKey is issuer key material tagged with the suite it belongs to.
type PublicKey struct {
	Type  string
	Value []byte
}

// Binding is the verifier challenge a derived proof is bound to.
type Binding struct {
	Nonce  string
	Domain string
}

// Bytes returns an unambiguous encoding of the binding.
func (b Binding) Bytes() []byte {
	out := make([]byte, 0, 8+len(b.Nonce)+len(b.Domain))
	out = binary.BigEndian.AppendUint32(out, uint32(len(b.Nonce)))
	out = append(out, b.Nonce...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(b.Domain)))
	return append(out, b.Domain...)
}

// IndexedMessage is a revealed message and its position in the signed
// sequence.
type IndexedMessage struct {
	Index   int
	Message []byte
}

// Signer produces a proof over an ordered list of messages.
type Signer interface {
	Suite() string
	Sign(ctx context.Context, messages [][]byte) ([]byte, error)
}

// Suite verifies proofs and derives selective-disclosure proofs.
//
// Verify and VerifyDerived return false with a nil error for a proof that
// does not check out, and a non-nil error only when the backend itself
// fails or the key material is unusable.
type Suite interface {
	Name() string
	Verify(ctx context.Context, messages [][]byte, proof []byte, key PublicKey) (bool, error)
	DeriveProof(ctx context.Context, messages [][]byte, proof []byte, key PublicKey, revealed []int, b Binding) ([]byte, error)
	VerifyDerived(ctx context.Context, revealed []IndexedMessage, total int, derived []byte, key PublicKey, b Binding) (bool, error)
}

// KeyPair is generated issuer key material for a suite.
type KeyPair struct {
	Public  PublicKey
	Private []byte
}

// Registry maps suite names to suites.
type Registry struct {
	suites map[string]Suite
	order  []string
}

// NewRegistry returns a registry holding the given suites.
func NewRegistry(suites ...Suite) *Registry {
	r := &Registry{suites: make(map[string]Suite, len(suites))}
	for _, s := range suites {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a suite.
func (r *Registry) Register(s Suite) {
	if _, ok := r.suites[s.Name()]; !ok {
		r.order = append(r.order, s.Name())
	}
	r.suites[s.Name()] = s
}

// Get returns the suite registered under name.
func (r *Registry) Get(name string) (Suite, error) {
	s, ok := r.suites[name]
	if !ok {
		return nil, sderr.Newf(sderr.KindCrypto, "lookup suite", "unsupported suite %q", name)
	}
	return s, nil
}

// Names lists registered suites in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// CheckKey fails with a CryptoError when key was not made for suite.
func CheckKey(suite string, key PublicKey) error {
	if key.Type != suite {
		return sderr.Newf(sderr.KindCrypto, "check key", "key type %q does not match suite %q", key.Type, suite)
	}
	if len(key.Value) == 0 {
		return sderr.Newf(sderr.KindCrypto, "check key", "empty public key")
	}
	return nil
}

// NormalizeRevealed returns revealed sorted and deduplicated, failing on
// indices outside [0, total).
func NormalizeRevealed(revealed []int, total int) ([]int, error) {
	out := slices.Clone(revealed)
	slices.Sort(out)
	out = slices.Compact(out)
	for _, i := range out {
		if i < 0 || i >= total {
			return nil, fmt.Errorf("revealed index %d out of range [0, %d)", i, total)
		}
	}
	return out, nil
}

// CtxErr wraps a cancelled context as a CryptoError.
func CtxErr(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return sderr.New(sderr.KindCrypto, op, err)
	}
	return nil
}
