package vp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/canonical"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/claims"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/dto"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/provider"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
	"github.com/pilacorp/go-sdvc-sdk/credential/vc"
)

var logger = log.New("sdvc/vp")

// DisclosureSet is the set of subject paths a holder conceals. Concealing
// an object or an array conceals every leaf beneath it.
type DisclosureSet struct {
	paths []claims.Path
}

// NewDisclosureSet parses and resolves concealed against subject. The
// subject identifier can never be concealed.
func NewDisclosureSet(subject claims.Tree, concealed []string) (*DisclosureSet, error) {
	const op = "vp.NewDisclosureSet"

	idPath := claims.P(claims.SubjectIDKey)
	ds := &DisclosureSet{}
	for _, s := range concealed {
		p, err := claims.ParsePath(s)
		if err != nil {
			return nil, err
		}
		if p.Equal(idPath) {
			return nil, sderr.PathErr(sderr.KindCannotConcealIdentifier, op, s,
				fmt.Errorf("the subject identifier is always disclosed"))
		}
		if _, err := claims.Resolve(subject, p); err != nil {
			return nil, err
		}
		ds.paths = append(ds.paths, p)
	}
	return ds, nil
}

// Paths returns the concealed paths.
func (d *DisclosureSet) Paths() []claims.Path {
	return append([]claims.Path(nil), d.paths...)
}

// Conceals reports whether the leaf at p is hidden by the set.
func (d *DisclosureSet) Conceals(p claims.Path) bool {
	for _, c := range d.paths {
		if p.HasPrefix(c) {
			return true
		}
	}
	return false
}

// Apply returns a copy of t with every concealed path replaced by
// concealment markers.
func (d *DisclosureSet) Apply(t claims.Tree) (claims.Tree, error) {
	out := t
	for _, p := range d.paths {
		var err error
		if out, err = claims.SetConcealed(out, p); err != nil {
			return claims.Tree{}, err
		}
	}
	return out, nil
}

// Disclosure maps every subject leaf path of cred to whether it would be
// revealed when concealing the given paths.
func Disclosure(cred *vc.Credential, concealed []string) (map[string]bool, error) {
	ds, err := NewDisclosureSet(cred.Subject, concealed)
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool)
	for _, l := range cred.Leaves() {
		out[l.Path.String()] = !ds.Conceals(l.Path)
	}
	return out, nil
}

// HolderOpt configures a Holder.
type HolderOpt func(*holderOptions)

type holderOptions struct {
	now      func() time.Time
	newID    func() string
	registry *signature.Registry
}

// WithHolderClock sets the time source for presentation timestamps.
func WithHolderClock(now func() time.Time) HolderOpt {
	return func(o *holderOptions) {
		o.now = now
	}
}

// WithPresentationIDGenerator sets the presentation id generator.
func WithPresentationIDGenerator(newID func() string) HolderOpt {
	return func(o *holderOptions) {
		o.newID = newID
	}
}

// WithHolderRegistry sets the suites the holder can derive proofs with.
func WithHolderRegistry(r *signature.Registry) HolderOpt {
	return func(o *holderOptions) {
		o.registry = r
	}
}

// Holder builds derived presentations from credentials it holds.
type Holder struct {
	resolver provider.KeyResolver
	opts     *holderOptions
}

// NewHolder creates a holder that looks up issuer keys through resolver.
func NewHolder(resolver provider.KeyResolver, opts ...HolderOpt) *Holder {
	options := &holderOptions{
		now:      time.Now,
		newID:    func() string { return "urn:uuid:" + uuid.NewString() },
		registry: DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Holder{resolver: resolver, opts: options}
}

// BuildPresentation derives a presentation of cred that conceals the given
// paths and is bound to nonce and domain. Concealed leaves are left out of
// the presentation entirely.
func (h *Holder) BuildPresentation(ctx context.Context, cred *vc.Credential, concealedPaths []string,
	nonce, domain string) (*Presentation, error) {
	const op = "vp.BuildPresentation"

	if cred == nil {
		return nil, fmt.Errorf("credential is nil")
	}
	if err := cred.Proof.Validate(); err != nil {
		return nil, sderr.New(sderr.KindProof, op, err)
	}

	ds, err := NewDisclosureSet(cred.Subject, concealedPaths)
	if err != nil {
		return nil, err
	}
	concealedTree, err := ds.Apply(cred.Subject)
	if err != nil {
		return nil, err
	}

	leaves := cred.Leaves()
	masked := canonical.Canonicalize(concealedTree)
	if len(masked) != len(leaves) {
		return nil, fmt.Errorf("concealment changed the leaf count from %d to %d", len(leaves), len(masked))
	}

	revealedIdx := make([]int, 0, vc.HeaderSize+len(leaves))
	for i := 0; i < vc.HeaderSize; i++ {
		revealedIdx = append(revealedIdx, i)
	}
	var revealed []RevealedLeaf
	for i, l := range masked {
		if l.Concealed() {
			continue
		}
		v, err := canonical.DecodeValue(l.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode leaf %q: %w", l.Path.String(), err)
		}
		revealedIdx = append(revealedIdx, vc.HeaderSize+i)
		revealed = append(revealed, RevealedLeaf{Index: i, Path: l.Path.String(), Value: v})
	}

	suite, err := h.opts.registry.Get(cred.Proof.Type)
	if err != nil {
		return nil, err
	}
	key, err := resolveKey(ctx, h.resolver, op, cred.Issuer, cred.Proof.VerificationMethod)
	if err != nil {
		return nil, err
	}
	proofValue, err := dto.DecodeProofValue(cred.Proof.ProofValue)
	if err != nil {
		return nil, sderr.New(sderr.KindProof, op, err)
	}
	messages, err := cred.Messages()
	if err != nil {
		return nil, err
	}

	derived, err := suite.DeriveProof(ctx, messages, proofValue, key, revealedIdx, signature.Binding{Nonce: nonce, Domain: domain})
	if err != nil {
		return nil, asKind(err, sderr.KindCrypto, op)
	}

	now := h.opts.now().UTC().Truncate(time.Second)
	holderID, _ := cred.Subject.SubjectID()
	p := &Presentation{
		Context:     []interface{}{vc.DefaultContext},
		ID:          h.opts.newID(),
		Types:       []string{TypeVerifiablePresentation},
		Holder:      holderID,
		Created:     now,
		Credential:  cred.Header,
		Revealed:    revealed,
		TotalLeaves: len(leaves),
		Proof: &dto.Proof{
			Type:               suite.Name(),
			Created:            vc.FormatTime(now),
			VerificationMethod: cred.Proof.VerificationMethod,
			ProofPurpose:       cred.Proof.ProofPurpose,
			ProofValue:         dto.EncodeProofValue(derived),
			Challenge:          nonce,
			Domain:             domain,
		},
	}

	logger.Debugf("built presentation %s revealing %d of %d subject leaves", p.ID, len(revealed), len(leaves))

	return p, nil
}

// resolveKey looks up the issuer key, classifying failures as
// UnresolvedIssuerError.
func resolveKey(ctx context.Context, r provider.KeyResolver, op, issuer, vm string) (signature.PublicKey, error) {
	if r == nil {
		return signature.PublicKey{}, sderr.Newf(sderr.KindUnresolvedIssuer, op, "no key resolver configured")
	}
	key, err := r.ResolveKey(ctx, issuer, vm)
	if err != nil {
		return signature.PublicKey{}, asKind(err, sderr.KindUnresolvedIssuer, op)
	}
	return key, nil
}

// asKind keeps classified errors as they are and classifies the rest.
func asKind(err error, kind sderr.Kind, op string) error {
	var se *sderr.Error
	if errors.As(err, &se) {
		return err
	}
	return sderr.New(kind, op, err)
}
