package model

type DIDDocument struct {
	Context             interface{}               `json:"@context,omitempty"`
	ID                  string                    `json:"id"`
	VerificationMethod  []VerificationMethodEntry `json:"verificationMethod"`
	Authentication      []interface{}             `json:"authentication,omitempty"`
	AssertionMethod     []interface{}             `json:"assertionMethod,omitempty"`
	Controller          interface{}               `json:"controller,omitempty"` // Can be string or []string
	DIDDocumentMetadata map[string]interface{}    `json:"didDocumentMetadata,omitempty"`
}

// VerificationMethodEntry represents a single verification method in a DID Document.
type VerificationMethodEntry struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyHex       string `json:"publicKeyHex,omitempty"`
	PublicKeyBase58    string `json:"publicKeyBase58,omitempty"`
	PublicKeyMultibase string `json:"publicKeyMultibase,omitempty"`
}

// AssertionMethodIDs returns the verification method ids referenced by
// assertionMethod. Entries may be ids or embedded methods.
func (d *DIDDocument) AssertionMethodIDs() []string {
	ids := make([]string, 0, len(d.AssertionMethod))
	for _, am := range d.AssertionMethod {
		switch v := am.(type) {
		case string:
			ids = append(ids, v)
		case map[string]interface{}:
			if id, ok := v["id"].(string); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// MethodByID looks up a verification method. Relative ids ("#key-1") are
// matched against the document id.
func (d *DIDDocument) MethodByID(id string) (*VerificationMethodEntry, bool) {
	for i := range d.VerificationMethod {
		vm := &d.VerificationMethod[i]
		if vm.ID == id || d.ID+vm.ID == id || vm.ID == d.ID+id {
			return vm, true
		}
	}
	return nil, false
}
