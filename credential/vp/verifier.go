package vp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/canonical"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/challenge"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/claims"
	credentialstatus "github.com/pilacorp/go-sdvc-sdk/credential/common/credential-status"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/dto"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/provider"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
	"github.com/pilacorp/go-sdvc-sdk/credential/vc"
)

// VerificationResult is the outcome of verifying a presentation. On
// success Subject holds only the revealed claims; otherwise Kind and Err
// describe the first failed check.
type VerificationResult struct {
	Verified bool
	Subject  claims.Tree
	Kind     sderr.Kind
	Err      error
}

func failed(err error) VerificationResult {
	return VerificationResult{Kind: sderr.KindOf(err), Err: err}
}

// StatusChecker reports whether a credential status entry is revoked.
type StatusChecker interface {
	IsRevoked(ctx context.Context, entry credentialstatus.Entry) (bool, error)
}

// VerifierOpt configures a Verifier.
type VerifierOpt func(*verifierOptions)

type verifierOptions struct {
	now      func() time.Time
	leeway   time.Duration
	registry *signature.Registry
	status   StatusChecker
	ledger   *challenge.Ledger
}

// WithClock sets the time source used for the expiry check.
func WithClock(now func() time.Time) VerifierOpt {
	return func(o *verifierOptions) {
		o.now = now
	}
}

// WithLeeway tolerates clock skew when checking expiry.
func WithLeeway(d time.Duration) VerifierOpt {
	return func(o *verifierOptions) {
		o.leeway = d
	}
}

// WithRegistry sets the suites the verifier accepts.
func WithRegistry(r *signature.Registry) VerifierOpt {
	return func(o *verifierOptions) {
		o.registry = r
	}
}

// WithStatusChecker enables revocation checks for credentials carrying a
// credentialStatus entry.
func WithStatusChecker(c StatusChecker) VerifierOpt {
	return func(o *verifierOptions) {
		o.status = c
	}
}

// WithNonceLedger makes every nonce single-use: it is consumed from l once
// a presentation bound to it verifies.
func WithNonceLedger(l *challenge.Ledger) VerifierOpt {
	return func(o *verifierOptions) {
		o.ledger = l
	}
}

// Verifier checks derived presentations.
type Verifier struct {
	resolver provider.KeyResolver
	opts     *verifierOptions
}

// NewVerifier creates a verifier that looks up issuer keys through
// resolver. resolver may be nil when only VerifyWithKey is used.
func NewVerifier(resolver provider.KeyResolver, opts ...VerifierOpt) *Verifier {
	options := &verifierOptions{
		now:      time.Now,
		registry: DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Verifier{resolver: resolver, opts: options}
}

// Verify checks p against the expected challenge, resolving the issuer key
// through the verifier's resolver.
func (v *Verifier) Verify(ctx context.Context, p *Presentation, expectedNonce, expectedDomain string) VerificationResult {
	return v.verify(ctx, p, expectedNonce, expectedDomain, func(op string) (signature.PublicKey, error) {
		return resolveKey(ctx, v.resolver, op, p.Credential.Issuer, p.Proof.VerificationMethod)
	})
}

// VerifyWithKey checks p against the expected challenge using an issuer
// key the caller already holds.
func (v *Verifier) VerifyWithKey(ctx context.Context, p *Presentation, key signature.PublicKey,
	expectedNonce, expectedDomain string) VerificationResult {
	return v.verify(ctx, p, expectedNonce, expectedDomain, func(string) (signature.PublicKey, error) {
		return key, nil
	})
}

// verify runs the checks in order and stops at the first failure: nonce,
// domain, expiry, derived proof, revocation, single use.
func (v *Verifier) verify(ctx context.Context, p *Presentation, expectedNonce, expectedDomain string,
	keyFn func(op string) (signature.PublicKey, error)) VerificationResult {
	const op = "vp.Verify"

	if p == nil {
		return failed(sderr.Newf(sderr.KindProof, op, "presentation is nil"))
	}
	if err := p.Proof.Validate(); err != nil {
		return failed(sderr.New(sderr.KindProof, op, err))
	}

	if err := challenge.Check(p.Proof.Challenge, p.Proof.Domain, expectedNonce, expectedDomain); err != nil {
		return failed(err)
	}

	now := v.opts.now()
	if p.Credential.Expired(now, v.opts.leeway) {
		return failed(sderr.Newf(sderr.KindExpired, op, "credential expired at %s", vc.FormatTime(p.Credential.ValidUntil)))
	}

	subject, err := v.checkProof(ctx, p, keyFn)
	if err != nil {
		return failed(err)
	}

	if v.opts.status != nil && p.Credential.Status != nil {
		revoked, err := v.opts.status.IsRevoked(ctx, *p.Credential.Status)
		if err != nil {
			return failed(sderr.New(sderr.KindRevoked, op, fmt.Errorf("failed to check credential status: %w", err)))
		}
		if revoked {
			return failed(sderr.Newf(sderr.KindRevoked, op, "credential %s is revoked", p.Credential.ID))
		}
	}

	if v.opts.ledger != nil {
		if err := v.opts.ledger.Consume(p.Proof.Challenge, p.Proof.Domain); err != nil {
			return failed(err)
		}
	}

	logger.Debugf("verified presentation %s with %d revealed leaves", p.ID, len(p.Revealed))

	return VerificationResult{Verified: true, Subject: subject}
}

// checkProof verifies the derived proof over the header and the revealed
// leaves and rebuilds the visible subject.
func (v *Verifier) checkProof(ctx context.Context, p *Presentation,
	keyFn func(op string) (signature.PublicKey, error)) (claims.Tree, error) {
	const op = "vp.Verify"

	proofErr := func(format string, args ...interface{}) error {
		return sderr.Newf(sderr.KindProof, op, format, args...)
	}

	suite, err := v.opts.registry.Get(p.Proof.Type)
	if err != nil {
		return claims.Tree{}, proofErr("unsupported proof type %q", p.Proof.Type)
	}
	if p.TotalLeaves <= 0 {
		return claims.Tree{}, proofErr("presentation declares %d subject leaves", p.TotalLeaves)
	}

	header, err := p.Credential.Messages()
	if err != nil {
		return claims.Tree{}, sderr.New(sderr.KindProof, op, err)
	}
	msgs := make([]signature.IndexedMessage, 0, len(header)+len(p.Revealed))
	for i, m := range header {
		msgs = append(msgs, signature.IndexedMessage{Index: i, Message: m})
	}

	entries := make([]claims.Entry, 0, len(p.Revealed))
	subjectIDRevealed := false
	last := -1
	for _, l := range p.Revealed {
		if l.Index <= last || l.Index >= p.TotalLeaves {
			return claims.Tree{}, proofErr("revealed leaf index %d out of order or range", l.Index)
		}
		last = l.Index
		path, err := claims.ParsePath(l.Path)
		if err != nil {
			return claims.Tree{}, sderr.New(sderr.KindProof, op, err)
		}
		if l.Value.Kind() == claims.KindConcealed || !l.Value.IsLeaf() {
			return claims.Tree{}, proofErr("revealed value at %q is not a leaf", l.Path)
		}
		if path.Equal(claims.P(claims.SubjectIDKey)) {
			subjectIDRevealed = true
		}
		msgs = append(msgs, signature.IndexedMessage{
			Index:   vc.HeaderSize + l.Index,
			Message: canonical.LeafMessage(path, canonical.EncodeValue(l.Value)),
		})
		entries = append(entries, claims.Entry{Path: path, Value: l.Value})
	}
	if !subjectIDRevealed {
		return claims.Tree{}, sderr.Newf(sderr.KindCannotConcealIdentifier, op, "subject identifier is not disclosed")
	}

	derived, err := dto.DecodeProofValue(p.Proof.ProofValue)
	if err != nil {
		return claims.Tree{}, sderr.New(sderr.KindProof, op, err)
	}

	key, err := keyFn(op)
	if err != nil {
		return claims.Tree{}, err
	}
	if key.Type != suite.Name() {
		return claims.Tree{}, proofErr("proof type %q does not match issuer key type %q", p.Proof.Type, key.Type)
	}

	binding := signature.Binding{Nonce: p.Proof.Challenge, Domain: p.Proof.Domain}
	ok, err := suite.VerifyDerived(ctx, msgs, vc.HeaderSize+p.TotalLeaves, derived, key, binding)
	if err != nil {
		return claims.Tree{}, asKind(err, sderr.KindCrypto, op)
	}
	if !ok {
		return claims.Tree{}, proofErr("derived proof does not verify")
	}

	subject, err := claims.Assemble(entries)
	if err != nil {
		return claims.Tree{}, sderr.New(sderr.KindProof, op, err)
	}
	return subject, nil
}

// MissingFromSchema lists the paths of schemaPaths that a verified result
// does not disclose. A verifier cannot tell a concealed claim from one the
// credential never had; this is for callers who know from elsewhere which
// claims a credential type always carries.
func MissingFromSchema(schemaPaths []string, result VerificationResult) ([]string, error) {
	if !result.Verified {
		return nil, fmt.Errorf("presentation is not verified")
	}

	var missing []string
	for _, s := range schemaPaths {
		p, err := claims.ParsePath(s)
		if err != nil {
			return nil, err
		}
		if _, err := claims.Resolve(result.Subject, p); err != nil {
			if errors.Is(err, sderr.ErrPathNotFound) || errors.Is(err, sderr.ErrPathTypeMismatch) {
				missing = append(missing, s)
				continue
			}
			return nil, err
		}
	}
	return missing, nil
}
