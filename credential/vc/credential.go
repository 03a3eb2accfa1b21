// Package vc issues selectively disclosable verifiable credentials.
//
// A credential is signed as an ordered list of statements: a fixed set of
// header statements followed by one statement per subject leaf. Holders
// later reveal any subset of the subject statements through package vp.
package vc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/canonical"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/claims"
	credentialstatus "github.com/pilacorp/go-sdvc-sdk/credential/common/credential-status"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/dto"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/util"
)

const (
	// DefaultContext is the first @context entry of every credential.
	DefaultContext = "https://www.w3.org/2018/credentials/v1"
	// TypeVerifiableCredential is the first type of every credential.
	TypeVerifiableCredential = "VerifiableCredential"
	// ProofPurposeAssertion is the purpose of issuer proofs.
	ProofPurposeAssertion = "assertionMethod"
)

// Header statement names, in signing order.
const (
	HeaderContext    = "@context"
	HeaderID         = "id"
	HeaderType       = "type"
	HeaderIssuer     = "issuer"
	HeaderValidFrom  = "validFrom"
	HeaderValidUntil = "validUntil"
	HeaderStatus     = "credentialStatus"
)

// HeaderNames lists the header statements in signing order.
var HeaderNames = []string{
	HeaderContext, HeaderID, HeaderType, HeaderIssuer,
	HeaderValidFrom, HeaderValidUntil, HeaderStatus,
}

// HeaderSize is the number of header statements preceding the subject
// leaves.
var HeaderSize = len(HeaderNames)

// Status represents the credentialStatus field as per W3C Verifiable Credentials.
type Status = credentialstatus.Entry

// Header is the part of a credential that is always disclosed.
type Header struct {
	Context    []interface{}
	ID         string
	Types      []string
	Issuer     string
	ValidFrom  time.Time
	ValidUntil time.Time // zero when the credential does not expire
	Status     *Status
}

// Credential is a signed claim set.
type Credential struct {
	Header
	Subject claims.Tree
	Proof   *dto.Proof
}

// FormatTime renders t the way it appears in credentials.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ParseTime reverses FormatTime; "" is the zero time.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Expired reports whether the header's validity ended before now, allowing
// leeway for clock skew.
func (h *Header) Expired(now time.Time, leeway time.Duration) bool {
	return !h.ValidUntil.IsZero() && now.After(h.ValidUntil.Add(leeway))
}

// Messages returns the header statements in signing order. Absent optional
// fields are signed as empty values.
func (h *Header) Messages() ([][]byte, error) {
	contexts, err := marshalOptional(h.Context, len(h.Context) > 0)
	if err != nil {
		return nil, fmt.Errorf("failed to encode @context: %w", err)
	}
	types, err := marshalOptional(h.Types, len(h.Types) > 0)
	if err != nil {
		return nil, fmt.Errorf("failed to encode type: %w", err)
	}
	status, err := marshalOptional(h.Status, h.Status != nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentialStatus: %w", err)
	}

	values := []string{
		contexts, h.ID, types, h.Issuer,
		FormatTime(h.ValidFrom), FormatTime(h.ValidUntil), status,
	}
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = canonical.HeaderMessage(HeaderNames[i], v)
	}
	return out, nil
}

func marshalOptional(v interface{}, present bool) (string, error) {
	if !present {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Leaves returns the canonical leaf sequence of the subject.
func (c *Credential) Leaves() canonical.Sequence {
	return canonical.Canonicalize(c.Subject)
}

// Messages returns every signed statement: the header followed by the
// subject leaves.
func (c *Credential) Messages() ([][]byte, error) {
	header, err := c.Header.Messages()
	if err != nil {
		return nil, err
	}
	return append(header, c.Leaves().Messages()...), nil
}

// Verify checks the issuer proof with the given suite and key.
func (c *Credential) Verify(ctx context.Context, suite signature.Suite, key signature.PublicKey) error {
	const op = "vc.Verify"

	if err := c.Proof.Validate(); err != nil {
		return sderr.New(sderr.KindProof, op, err)
	}
	if c.Proof.Type != suite.Name() {
		return sderr.Newf(sderr.KindProof, op, "proof type %q does not match suite %q", c.Proof.Type, suite.Name())
	}
	if key.Type != c.Proof.Type {
		return sderr.Newf(sderr.KindProof, op, "proof type %q does not match issuer key type %q", c.Proof.Type, key.Type)
	}
	proofValue, err := dto.DecodeProofValue(c.Proof.ProofValue)
	if err != nil {
		return sderr.New(sderr.KindProof, op, err)
	}
	messages, err := c.Messages()
	if err != nil {
		return sderr.New(sderr.KindProof, op, err)
	}

	ok, err := suite.Verify(ctx, messages, proofValue, key)
	if err != nil {
		return sderr.New(sderr.KindCrypto, op, err)
	}
	if !ok {
		return sderr.Newf(sderr.KindProof, op, "issuer proof does not verify")
	}
	return nil
}

// headerJSON is the wire form of Header.
type headerJSON struct {
	Context    []interface{} `json:"@context,omitempty"`
	ID         string        `json:"id"`
	Types      interface{}   `json:"type"`
	Issuer     string        `json:"issuer"`
	ValidFrom  string        `json:"validFrom"`
	ValidUntil string        `json:"validUntil,omitempty"`
	Status     *Status       `json:"credentialStatus,omitempty"`
}

func (h *Header) toJSON() (headerJSON, error) {
	contexts, err := util.SerializeContexts(h.Context)
	if err != nil {
		return headerJSON{}, fmt.Errorf("invalid @context: %w", err)
	}
	if len(contexts) == 0 {
		contexts = nil
	}
	return headerJSON{
		Context:    contexts,
		ID:         h.ID,
		Types:      util.SerializeTypes(h.Types),
		Issuer:     h.Issuer,
		ValidFrom:  FormatTime(h.ValidFrom),
		ValidUntil: FormatTime(h.ValidUntil),
		Status:     h.Status,
	}, nil
}

func (hj *headerJSON) header() (Header, error) {
	contexts, err := util.ParseContexts(hj.Context)
	if err != nil {
		return Header{}, err
	}
	types, err := util.ParseTypes(hj.Types)
	if err != nil {
		return Header{}, err
	}
	from, err := ParseTime(hj.ValidFrom)
	if err != nil {
		return Header{}, err
	}
	until, err := ParseTime(hj.ValidUntil)
	if err != nil {
		return Header{}, err
	}
	return Header{
		Context:    contexts,
		ID:         hj.ID,
		Types:      types,
		Issuer:     hj.Issuer,
		ValidFrom:  from,
		ValidUntil: until,
		Status:     hj.Status,
	}, nil
}

// MarshalJSON implements json.Marshaler.
func (h Header) MarshalJSON() ([]byte, error) {
	hj, err := h.toJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(hj)
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *Header) UnmarshalJSON(data []byte) error {
	var hj headerJSON
	if err := json.Unmarshal(data, &hj); err != nil {
		return fmt.Errorf("failed to unmarshal credential header: %w", err)
	}
	parsed, err := hj.header()
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

type credentialJSON struct {
	headerJSON
	Subject claims.Tree `json:"credentialSubject"`
	Proof   *dto.Proof  `json:"proof,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c Credential) MarshalJSON() ([]byte, error) {
	hj, err := c.Header.toJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(credentialJSON{headerJSON: hj, Subject: c.Subject, Proof: c.Proof})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Credential) UnmarshalJSON(data []byte) error {
	var cj credentialJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	header, err := cj.headerJSON.header()
	if err != nil {
		return fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	*c = Credential{Header: header, Subject: cj.Subject, Proof: cj.Proof}
	return nil
}

// ParseCredential parses a JSON credential. The issuer proof is not
// checked; use Verify for that.
func ParseCredential(rawCredential []byte) (*Credential, error) {
	if len(rawCredential) == 0 {
		return nil, fmt.Errorf("JSON string is empty")
	}

	var c Credential
	if err := c.UnmarshalJSON(rawCredential); err != nil {
		return nil, err
	}
	if _, ok := c.Subject.SubjectID(); !ok {
		return nil, fmt.Errorf("failed to parse credential: credentialSubject has no id")
	}
	if err := c.Proof.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
