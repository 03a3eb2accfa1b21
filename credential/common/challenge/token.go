package challenge

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/jwt"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
)

const defaultTokenTTL = 5 * time.Minute

// Claims is the payload of a signed challenge token. The nonce travels in
// its own claim and the domain in aud.
type Claims struct {
	Nonce string `json:"nonce"`
	gojwt.RegisteredClaims
}

// Challenge is what a verifier hands to a holder.
type Challenge struct {
	Nonce     string    `json:"nonce"`
	Domain    string    `json:"domain"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenIssuer issues stateless challenges as ES256K JWTs, so any replica
// holding the public key can check them later.
type TokenIssuer struct {
	signer *jwt.JWTSigner
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOpt configures a TokenIssuer or TokenVerifier.
type TokenOpt func(*tokenOptions)

type tokenOptions struct {
	ttl    time.Duration
	now    func() time.Time
	leeway time.Duration
}

// WithTokenTTL sets the lifetime of issued challenges.
func WithTokenTTL(ttl time.Duration) TokenOpt {
	return func(o *tokenOptions) {
		o.ttl = ttl
	}
}

// WithTokenClock replaces the wall clock.
func WithTokenClock(now func() time.Time) TokenOpt {
	return func(o *tokenOptions) {
		o.now = now
	}
}

// WithTokenLeeway tolerates clock skew when checking expiry.
func WithTokenLeeway(d time.Duration) TokenOpt {
	return func(o *tokenOptions) {
		o.leeway = d
	}
}

func newTokenOptions(opts []TokenOpt) *tokenOptions {
	o := &tokenOptions{ttl: defaultTokenTTL, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// NewTokenIssuer creates an issuer signing with a secp256k1 private key.
func NewTokenIssuer(privKey []byte, issuer string, opts ...TokenOpt) (*TokenIssuer, error) {
	signer, err := jwt.NewJWTSigner(privKey, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge signer: %w", err)
	}
	o := newTokenOptions(opts)

	return &TokenIssuer{signer: signer, issuer: issuer, ttl: o.ttl, now: o.now}, nil
}

// PublicKey returns the key a TokenVerifier needs.
func (i *TokenIssuer) PublicKey() []byte {
	return i.signer.PublicKey()
}

// Issue creates a fresh nonce for domain and signs it.
func (i *TokenIssuer) Issue(domain string) (*Challenge, error) {
	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}

	now := i.now()
	exp := now.Add(i.ttl)
	token, err := i.signer.Sign(Claims{
		Nonce: nonce,
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  gojwt.ClaimStrings{domain},
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(exp),
		},
	})
	if err != nil {
		return nil, err
	}

	return &Challenge{Nonce: nonce, Domain: domain, Token: token, ExpiresAt: exp.UTC().Truncate(time.Second)}, nil
}

// TokenVerifier checks challenges issued by a TokenIssuer.
type TokenVerifier struct {
	verifier *jwt.JWTVerifier
}

// NewTokenVerifier creates a verifier for the issuer's public key.
func NewTokenVerifier(publicKey []byte, opts ...TokenOpt) *TokenVerifier {
	o := newTokenOptions(opts)

	return &TokenVerifier{
		verifier: jwt.NewJWTVerifier(publicKey,
			gojwt.WithTimeFunc(o.now),
			gojwt.WithLeeway(o.leeway),
			gojwt.WithExpirationRequired(),
		),
	}
}

// Verify checks the token signature, its expiry and that it was issued for
// domain, and returns the nonce it carries. A token for another domain is
// an AudienceError; any other failure is a ReplayError.
func (v *TokenVerifier) Verify(token, domain string) (string, error) {
	const op = "verify challenge token"

	var claims Claims
	err := v.verifier.Verify(token, &claims, gojwt.WithAudience(domain))
	switch {
	case errors.Is(err, gojwt.ErrTokenInvalidAudience):
		return "", sderr.New(sderr.KindAudience, op, err)
	case err != nil:
		return "", sderr.New(sderr.KindReplay, op, err)
	case claims.Nonce == "":
		return "", sderr.Newf(sderr.KindReplay, op, "token carries no nonce")
	}

	return claims.Nonce, nil
}
