package credentialstatus

// PurposeRevocation is the only status purpose that marks a credential as
// revoked.
const PurposeRevocation = "revocation"

// Entry is the credentialStatus of a credential, pointing into a status
// list.
type Entry struct {
	ID                   string `json:"id,omitempty"`
	Type                 string `json:"type"`
	StatusPurpose        string `json:"statusPurpose,omitempty"`
	StatusListIndex      string `json:"statusListIndex,omitempty"`
	StatusListCredential string `json:"statusListCredential,omitempty"`
}

// StatusListCredentialResponse represents the top-level response wrapper:
type StatusListCredentialResponse struct {
	Data StatusListCredential `json:"data"`
}

// StatusListCredential models the Verifiable Credential returned by the
// status list endpoint. Only fields that are clearly needed are typed.
type StatusListCredential struct {
	Context           []string                    `json:"@context"`
	CredentialSubject StatusListCredentialSubject `json:"credentialSubject"`
	ID                string                      `json:"id"`
	Issuer            string                      `json:"issuer"`
	Proof             map[string]interface{}      `json:"proof,omitempty"`
	Type              []string                    `json:"type"`
	ValidFrom         string                      `json:"validFrom,omitempty"`
	ValidUntil        string                      `json:"validUntil,omitempty"`
}

// StatusListCredentialSubject represents the credentialSubject of the
// status list credential, including the encoded bitstring list.
type StatusListCredentialSubject struct {
	EncodedList   string `json:"encodedList"`
	ID            string `json:"id"`
	StatusPurpose string `json:"statusPurpose"`
	Type          string `json:"type"`
}
