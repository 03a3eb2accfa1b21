// Package vp builds and verifies derived presentations: a subset of a
// credential's subject claims together with a proof, bound to a verifier
// challenge, that the issuer signed them.
package vp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/canonical"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/claims"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/dto"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature/bbs"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature/hashcommit"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/util"
	"github.com/pilacorp/go-sdvc-sdk/credential/vc"
)

// TypeVerifiablePresentation is the first type of every presentation.
const TypeVerifiablePresentation = "VerifiablePresentation"

// DefaultRegistry returns a registry holding every built-in suite.
func DefaultRegistry() *signature.Registry {
	return signature.NewRegistry(bbs.New(), hashcommit.New())
}

// RevealedLeaf is a disclosed subject leaf. Index is its position in the
// credential's canonical leaf sequence.
type RevealedLeaf struct {
	Index int          `json:"index"`
	Path  string       `json:"path"`
	Value claims.Value `json:"value"`
}

// Presentation is a derived presentation of one credential.
type Presentation struct {
	Context     []interface{}  `json:"@context,omitempty"`
	ID          string         `json:"id"`
	Types       []string       `json:"type"`
	Holder      string         `json:"holder,omitempty"`
	Created     time.Time      `json:"created"`
	Credential  vc.Header      `json:"credential"`
	Revealed    []RevealedLeaf `json:"revealed"`
	TotalLeaves int            `json:"totalLeaves"`
	Proof       *dto.Proof     `json:"proof"`
}

// Nonce returns the challenge the presentation is bound to.
func (p *Presentation) Nonce() string {
	if p.Proof == nil {
		return ""
	}
	return p.Proof.Challenge
}

// Domain returns the audience the presentation is bound to.
func (p *Presentation) Domain() string {
	if p.Proof == nil {
		return ""
	}
	return p.Proof.Domain
}

// ToJSON serializes the presentation.
func (p *Presentation) ToJSON() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal presentation: %w", err)
	}
	return data, nil
}

// compactLeaf carries a leaf value in its canonical encoding.
type compactLeaf struct {
	Index int    `cbor:"1,keyasint"`
	Path  string `cbor:"2,keyasint"`
	Value []byte `cbor:"3,keyasint"`
}

type compactPresentation struct {
	ID          string        `cbor:"1,keyasint"`
	Types       []string      `cbor:"2,keyasint,omitempty"`
	Holder      string        `cbor:"3,keyasint,omitempty"`
	Created     int64         `cbor:"4,keyasint"`
	Context     []byte        `cbor:"5,keyasint,omitempty"`
	Credential  []byte        `cbor:"6,keyasint"`
	Revealed    []compactLeaf `cbor:"7,keyasint"`
	TotalLeaves int           `cbor:"8,keyasint"`
	Proof       *dto.Proof    `cbor:"9,keyasint"`
}

var compactEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// EncodeCompact renders p as base64url(gzip(CBOR)), a form small enough
// for QR codes and URL parameters.
func EncodeCompact(p *Presentation) (string, error) {
	if p == nil {
		return "", fmt.Errorf("presentation is nil")
	}

	header, err := json.Marshal(p.Credential)
	if err != nil {
		return "", fmt.Errorf("failed to encode credential header: %w", err)
	}
	cp := compactPresentation{
		ID:          p.ID,
		Types:       p.Types,
		Holder:      p.Holder,
		Created:     p.Created.Unix(),
		Credential:  header,
		TotalLeaves: p.TotalLeaves,
		Proof:       p.Proof,
	}
	if len(p.Context) > 0 {
		if cp.Context, err = json.Marshal(p.Context); err != nil {
			return "", fmt.Errorf("failed to encode @context: %w", err)
		}
	}
	for _, l := range p.Revealed {
		cp.Revealed = append(cp.Revealed, compactLeaf{
			Index: l.Index,
			Path:  l.Path,
			Value: canonical.EncodeValue(l.Value),
		})
	}

	raw, err := compactEncMode.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("failed to encode presentation: %w", err)
	}
	return util.CompressToBase64URL(raw)
}

// DecodeCompact reverses EncodeCompact.
func DecodeCompact(s string) (*Presentation, error) {
	raw, err := util.DecompressFromBase64URL(s)
	if err != nil {
		return nil, err
	}

	var cp compactPresentation
	if err := cbor.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode presentation: %w", err)
	}

	p := &Presentation{
		ID:          cp.ID,
		Types:       cp.Types,
		Holder:      cp.Holder,
		Created:     time.Unix(cp.Created, 0).UTC(),
		TotalLeaves: cp.TotalLeaves,
		Proof:       cp.Proof,
	}
	if len(cp.Context) > 0 {
		if err := json.Unmarshal(cp.Context, &p.Context); err != nil {
			return nil, fmt.Errorf("failed to decode @context: %w", err)
		}
	}
	if err := json.Unmarshal(cp.Credential, &p.Credential); err != nil {
		return nil, fmt.Errorf("failed to decode credential header: %w", err)
	}
	for _, l := range cp.Revealed {
		v, err := canonical.DecodeValue(l.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode value at %q: %w", l.Path, err)
		}
		p.Revealed = append(p.Revealed, RevealedLeaf{Index: l.Index, Path: l.Path, Value: v})
	}
	return p, nil
}

var compactPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ParsePresentation parses a presentation in JSON or compact form.
func ParsePresentation(rawPresentation []byte) (*Presentation, error) {
	if len(rawPresentation) == 0 {
		return nil, fmt.Errorf("presentation is empty")
	}

	if json.Valid(rawPresentation) {
		var p Presentation
		if err := json.Unmarshal(rawPresentation, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal presentation: %w", err)
		}
		return &p, nil
	}

	if compactPattern.Match(rawPresentation) {
		return DecodeCompact(string(rawPresentation))
	}

	return nil, fmt.Errorf("failed to parse presentation: not JSON or compact form")
}
