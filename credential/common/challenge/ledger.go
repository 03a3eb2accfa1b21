package challenge

import (
	"errors"
	"sync"
	"time"

	"github.com/bluele/gcache"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
)

const (
	defaultLedgerSize = 10000
	defaultLedgerTTL  = 10 * time.Minute
)

// Ledger remembers issued nonces until they are consumed or expire, so a
// presentation built for one challenge is accepted at most once.
type Ledger struct {
	mu    sync.Mutex
	cache gcache.Cache
	ttl   time.Duration
}

// LedgerOpt configures a Ledger.
type LedgerOpt func(*ledgerOptions)

type ledgerOptions struct {
	size  int
	ttl   time.Duration
	clock gcache.Clock
}

// WithLedgerSize bounds the number of outstanding nonces. The least
// recently issued nonce is dropped when the ledger is full.
func WithLedgerSize(size int) LedgerOpt {
	return func(o *ledgerOptions) {
		o.size = size
	}
}

// WithLedgerTTL sets how long an issued nonce stays valid.
func WithLedgerTTL(ttl time.Duration) LedgerOpt {
	return func(o *ledgerOptions) {
		o.ttl = ttl
	}
}

// WithLedgerClock replaces the wall clock, for tests.
func WithLedgerClock(c gcache.Clock) LedgerOpt {
	return func(o *ledgerOptions) {
		o.clock = c
	}
}

// NewLedger creates an empty ledger.
func NewLedger(opts ...LedgerOpt) *Ledger {
	o := &ledgerOptions{size: defaultLedgerSize, ttl: defaultLedgerTTL}
	for _, opt := range opts {
		opt(o)
	}

	b := gcache.New(o.size).LRU().Expiration(o.ttl)
	if o.clock != nil {
		b = b.Clock(o.clock)
	}

	return &Ledger{cache: b.Build(), ttl: o.ttl}
}

// Issue creates a nonce for domain and records it.
func (l *Ledger) Issue(domain string) (string, error) {
	nonce, err := NewNonce()
	if err != nil {
		return "", err
	}
	if err := l.Remember(nonce, domain); err != nil {
		return "", err
	}

	return nonce, nil
}

// Remember records an externally generated nonce for domain.
func (l *Ledger) Remember(nonce, domain string) error {
	if nonce == "" {
		return errors.New("nonce is empty")
	}

	return l.cache.Set(nonce, domain)
}

// TTL returns how long an issued nonce stays valid.
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Consume accepts nonce once. Unknown, expired or already consumed nonces
// are a ReplayError; a nonce issued for another domain is an AudienceError
// and stays outstanding.
func (l *Ledger) Consume(nonce, domain string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, err := l.cache.Get(nonce)
	if err != nil {
		if errors.Is(err, gcache.KeyNotFoundError) {
			return sderr.Newf(sderr.KindReplay, "consume nonce", "nonce is unknown, expired or already used")
		}

		return sderr.New(sderr.KindReplay, "consume nonce", err)
	}

	if issuedFor, _ := v.(string); !equal(issuedFor, domain) {
		return sderr.Newf(sderr.KindAudience, "consume nonce", "nonce was issued for domain %q", issuedFor)
	}

	l.cache.Remove(nonce)
	logger.Debugf("nonce consumed for domain %s", domain)

	return nil
}

// Len returns the number of outstanding nonces.
func (l *Ledger) Len() int {
	return l.cache.Len(true)
}
