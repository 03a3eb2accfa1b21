package challenge

import (
	"errors"
	"testing"
	"time"

	"github.com/bluele/gcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/crypto"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
)

func TestNewNonce(t *testing.T) {
	a, err := NewNonce()
	require.NoError(t, err)
	b, err := NewNonce()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name          string
		nonce, domain string
		wantKind      sderr.Kind
		wantNoErr     bool
	}{
		{name: "match", nonce: "n1", domain: "v.example", wantNoErr: true},
		{name: "replayed nonce", nonce: "n0", domain: "v.example", wantKind: sderr.KindReplay},
		{name: "other audience", nonce: "n1", domain: "evil.example", wantKind: sderr.KindAudience},
		{name: "both wrong reports nonce first", nonce: "n0", domain: "evil.example", wantKind: sderr.KindReplay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.nonce, tt.domain, "n1", "v.example")
			if tt.wantNoErr {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantKind, sderr.KindOf(err))
		})
	}
}

func TestLedger_SingleUse(t *testing.T) {
	l := NewLedger()
	nonce, err := l.Issue("v.example")
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())

	err = l.Consume(nonce, "evil.example")
	assert.True(t, errors.Is(err, sderr.ErrAudience))

	require.NoError(t, l.Consume(nonce, "v.example"))
	err = l.Consume(nonce, "v.example")
	assert.True(t, errors.Is(err, sderr.ErrReplay))

	err = l.Consume("never-issued", "v.example")
	assert.True(t, errors.Is(err, sderr.ErrReplay))
}

func TestLedger_Expiry(t *testing.T) {
	clock := gcache.NewFakeClock()
	l := NewLedger(WithLedgerTTL(time.Minute), WithLedgerClock(clock))
	require.NoError(t, l.Remember("n1", "v.example"))
	assert.Equal(t, time.Minute, l.TTL())

	clock.Advance(2 * time.Minute)
	err := l.Consume("n1", "v.example")
	assert.True(t, errors.Is(err, sderr.ErrReplay))
	assert.Error(t, l.Remember("", "v.example"))
}

func TestToken_IssueVerify(t *testing.T) {
	priv, _, err := crypto.GenerateKey()
	require.NoError(t, err)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	issuer, err := NewTokenIssuer(priv, "did:example:verifier", WithTokenTTL(time.Minute), WithTokenClock(clock))
	require.NoError(t, err)
	ch, err := issuer.Issue("v.example")
	require.NoError(t, err)
	assert.Equal(t, "v.example", ch.Domain)
	assert.Equal(t, now.Add(time.Minute), ch.ExpiresAt)

	verifier := NewTokenVerifier(issuer.PublicKey(), WithTokenClock(clock))
	nonce, err := verifier.Verify(ch.Token, "v.example")
	require.NoError(t, err)
	assert.Equal(t, ch.Nonce, nonce)

	_, err = verifier.Verify(ch.Token, "evil.example")
	assert.True(t, errors.Is(err, sderr.ErrAudience), "got %v", err)

	late := NewTokenVerifier(issuer.PublicKey(), WithTokenClock(func() time.Time { return now.Add(time.Hour) }))
	_, err = late.Verify(ch.Token, "v.example")
	assert.True(t, errors.Is(err, sderr.ErrReplay), "got %v", err)

	_, err = verifier.Verify(ch.Token+"x", "v.example")
	assert.True(t, errors.Is(err, sderr.ErrReplay))
}
