package vc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/claims"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/dto"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/schema"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
)

var logger = log.New("sdvc/vc")

// Validity is the requested validity window of a credential. A zero From
// means "now"; a zero Until means the credential does not expire.
type Validity struct {
	From  time.Time
	Until time.Time
}

// IssuerOpt configures an Issuer.
type IssuerOpt func(*issuerOptions)

type issuerOptions struct {
	now                func() time.Time
	newID              func() string
	types              []string
	contexts           []interface{}
	verificationMethod string
	subjectSchema      *schema.Validator
	checkTerms         bool
	processorOpts      []schema.ProcessorOpt
	status             *Status
}

// WithClock sets the time source used for issuance and proof timestamps.
func WithClock(now func() time.Time) IssuerOpt {
	return func(o *issuerOptions) {
		o.now = now
	}
}

// WithIDGenerator sets the credential id generator.
func WithIDGenerator(newID func() string) IssuerOpt {
	return func(o *issuerOptions) {
		o.newID = newID
	}
}

// WithTypes adds credential types after VerifiableCredential.
func WithTypes(types ...string) IssuerOpt {
	return func(o *issuerOptions) {
		o.types = append(o.types, types...)
	}
}

// WithVerificationMethod sets the verification method written into proofs
// (default: "<issuer>#key-1").
func WithVerificationMethod(vm string) IssuerOpt {
	return func(o *issuerOptions) {
		o.verificationMethod = vm
	}
}

// WithSubjectSchema validates every subject against a JSON schema before
// signing.
func WithSubjectSchema(v *schema.Validator) IssuerOpt {
	return func(o *issuerOptions) {
		o.subjectSchema = v
	}
}

// WithJSONLDContext adds @context entries to issued credentials and
// rejects subjects using keys those contexts do not define.
func WithJSONLDContext(contexts []interface{}, opts ...schema.ProcessorOpt) IssuerOpt {
	return func(o *issuerOptions) {
		o.contexts = append(o.contexts, contexts...)
		o.checkTerms = true
		o.processorOpts = append(o.processorOpts, opts...)
	}
}

// WithStatus attaches a credentialStatus entry to issued credentials.
func WithStatus(status Status) IssuerOpt {
	return func(o *issuerOptions) {
		s := status
		o.status = &s
	}
}

// Issuer signs claim sets into credentials.
type Issuer struct {
	signer   signature.Signer
	issuerID string
	opts     *issuerOptions
}

// NewIssuer creates an issuer identified by issuerID that signs with signer.
func NewIssuer(signer signature.Signer, issuerID string, opts ...IssuerOpt) (*Issuer, error) {
	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if issuerID == "" {
		return nil, fmt.Errorf("issuer id is required")
	}

	options := &issuerOptions{
		now:   time.Now,
		newID: func() string { return "urn:uuid:" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.verificationMethod == "" {
		options.verificationMethod = issuerID + "#key-1"
	}

	return &Issuer{signer: signer, issuerID: issuerID, opts: options}, nil
}

// ID returns the issuer identifier.
func (i *Issuer) ID() string { return i.issuerID }

// VerificationMethod returns the verification method written into proofs.
func (i *Issuer) VerificationMethod() string { return i.opts.verificationMethod }

// Issue signs subject into a credential valid for the given window.
func (i *Issuer) Issue(ctx context.Context, subject claims.Tree, validity Validity) (*Credential, error) {
	const op = "vc.Issue"

	if _, ok := subject.SubjectID(); !ok {
		return nil, sderr.Newf(sderr.KindIssuance, op, "subject has no string %q field", claims.SubjectIDKey)
	}
	if err := checkLeaves(subject); err != nil {
		return nil, sderr.New(sderr.KindIssuance, op, err)
	}

	now := i.opts.now().UTC().Truncate(time.Second)
	from := validity.From
	if from.IsZero() {
		from = now
	}
	from = from.UTC().Truncate(time.Second)
	until := validity.Until
	if !until.IsZero() {
		until = until.UTC().Truncate(time.Second)
		if until.Before(from) {
			return nil, sderr.Newf(sderr.KindIssuance, op, "validity window ends (%s) before it starts (%s)",
				FormatTime(until), FormatTime(from))
		}
	}

	if err := i.validateSubject(subject); err != nil {
		return nil, sderr.New(sderr.KindIssuance, op, err)
	}

	cred := &Credential{
		Header: Header{
			Context:    append([]interface{}{DefaultContext}, i.opts.contexts...),
			ID:         i.opts.newID(),
			Types:      append([]string{TypeVerifiableCredential}, i.opts.types...),
			Issuer:     i.issuerID,
			ValidFrom:  from,
			ValidUntil: until,
			Status:     i.opts.status,
		},
		Subject: subject.Clone(),
	}

	messages, err := cred.Messages()
	if err != nil {
		return nil, sderr.New(sderr.KindIssuance, op, err)
	}

	proofValue, err := i.signer.Sign(ctx, messages)
	if err != nil {
		var se *sderr.Error
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, sderr.New(sderr.KindCrypto, op, err)
	}

	cred.Proof = &dto.Proof{
		Type:               i.signer.Suite(),
		Created:            FormatTime(now),
		VerificationMethod: i.opts.verificationMethod,
		ProofPurpose:       ProofPurposeAssertion,
		ProofValue:         dto.EncodeProofValue(proofValue),
	}

	logger.Debugf("issued credential %s with %d subject leaves", cred.ID, len(messages)-HeaderSize)

	return cred, nil
}

func (i *Issuer) validateSubject(subject claims.Tree) error {
	if i.opts.subjectSchema == nil && !i.opts.checkTerms {
		return nil
	}

	doc, err := subject.ToMap()
	if err != nil {
		return err
	}
	if i.opts.subjectSchema != nil {
		if err := i.opts.subjectSchema.Validate(doc); err != nil {
			return err
		}
	}
	if i.opts.checkTerms {
		if err := schema.ValidateTerms(doc, i.opts.contexts, i.opts.processorOpts...); err != nil {
			return err
		}
	}
	return nil
}

// checkLeaves rejects concealed values and empty field names, which no
// presentation path could address.
func checkLeaves(t claims.Tree) error {
	return claims.Walk(t, func(p claims.Path, v claims.Value) error {
		if v.Kind() == claims.KindConcealed {
			return fmt.Errorf("subject contains a concealed value at %q", p.String())
		}
		for i, seg := range p {
			if !seg.IsIndex && seg.Name == "" {
				return fmt.Errorf("subject contains an empty field name under %q", p[:i].String())
			}
		}
		return nil
	})
}
