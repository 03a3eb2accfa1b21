package provider

import (
	"context"
	"sync"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
)

// StaticResolver serves keys registered in memory, keyed by issuer.
type StaticResolver struct {
	mu   sync.RWMutex
	keys map[string]signature.PublicKey
}

// NewStaticResolver returns an empty StaticResolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{keys: make(map[string]signature.PublicKey)}
}

// Add registers the key of an issuer.
func (s *StaticResolver) Add(issuer string, key signature.PublicKey) *StaticResolver {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[issuer] = key
	return s
}

// ResolveKey implements KeyResolver. The verification method is ignored.
func (s *StaticResolver) ResolveKey(_ context.Context, issuer, _ string) (signature.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[issuer]
	if !ok {
		return signature.PublicKey{}, sderr.Newf(sderr.KindUnresolvedIssuer, "resolve issuer key", "unknown issuer %q", issuer)
	}
	return key, nil
}
