package dto

import (
	"fmt"

	"github.com/multiformats/go-multibase"
)

// Proof represents a Linked Data Proof attached to a credential or a
// presentation. Challenge and Domain are set on derived proofs only.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod,omitempty"`
	ProofPurpose       string `json:"proofPurpose"`
	ProofValue         string `json:"proofValue"`
	Challenge          string `json:"challenge,omitempty"`
	Domain             string `json:"domain,omitempty"`
}

// Validate checks that the fields every proof carries are present.
func (p *Proof) Validate() error {
	if p == nil {
		return fmt.Errorf("failed to parse proof: proof is missing")
	}
	if p.Type == "" {
		return fmt.Errorf("failed to parse proof: invalid or missing type field")
	}
	if p.Created == "" {
		return fmt.Errorf("failed to parse proof: invalid or missing created field")
	}
	if p.ProofPurpose == "" {
		return fmt.Errorf("failed to parse proof: invalid or missing proofPurpose field")
	}
	if p.ProofValue == "" {
		return fmt.Errorf("failed to parse proof: invalid or missing proofValue field")
	}
	return nil
}

// EncodeProofValue renders raw proof bytes as a base58btc multibase string.
func EncodeProofValue(raw []byte) string {
	s, err := multibase.Encode(multibase.Base58BTC, raw)
	if err != nil {
		// Base58BTC is always a known encoding.
		panic(err)
	}
	return s
}

// DecodeProofValue reverses EncodeProofValue. Any multibase prefix is
// accepted.
func DecodeProofValue(value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("proofValue is empty")
	}
	_, raw, err := multibase.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode proofValue: %w", err)
	}
	return raw, nil
}
