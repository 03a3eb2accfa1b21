package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/multiformats/go-multibase"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/crypto"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/model"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature/bbs"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature/hashcommit"
)

// DefaultKeyTypes maps verification method types to suite names.
var DefaultKeyTypes = map[string]string{
	"Bls12381G2Key2020":                 bbs.SuiteName,
	"EcdsaSecp256k1VerificationKey2019": hashcommit.SuiteName,
	bbs.SuiteName:                       bbs.SuiteName,
	hashcommit.SuiteName:                hashcommit.SuiteName,
}

// DIDResolver fetches DID documents from an HTTP resolver endpoint
// (GET {baseURL}/{did}) and extracts issuer keys from them.
type DIDResolver struct {
	baseURL  string
	client   *http.Client
	keyTypes map[string]string
}

// DIDResolverOpt configures a DIDResolver.
type DIDResolverOpt func(*DIDResolver)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) DIDResolverOpt {
	return func(r *DIDResolver) {
		r.client = c
	}
}

// WithKeyType maps an additional verification method type to a suite.
func WithKeyType(vmType, suite string) DIDResolverOpt {
	return func(r *DIDResolver) {
		r.keyTypes[vmType] = suite
	}
}

// NewDIDResolver creates a resolver for baseURL, or for the endpoint set
// with Init when baseURL is empty.
func NewDIDResolver(baseURL string, opts ...DIDResolverOpt) *DIDResolver {
	if baseURL == "" {
		baseURL = config.BaseURL
	}
	r := &DIDResolver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		keyTypes: make(map[string]string, len(DefaultKeyTypes)),
	}
	for k, v := range DefaultKeyTypes {
		r.keyTypes[k] = v
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveDocument fetches and parses the DID document of did.
func (r *DIDResolver) ResolveDocument(ctx context.Context, did string) (*model.DIDDocument, error) {
	apiURL := r.baseURL + "/" + url.PathEscape(did)
	logger.Debugf("resolving DID %s", did)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build DID resolver request: %w", err)
	}
	req.Header.Set("Accept", "application/did+json, application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request to DID resolver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DID resolver API returned non-200 status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from DID resolver: %w", err)
	}

	// Resolvers either return the document or wrap it in didDocument.
	var wrapped struct {
		DIDDocument *model.DIDDocument `json:"didDocument"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.DIDDocument != nil {
		return wrapped.DIDDocument, nil
	}

	var doc model.DIDDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DID document JSON: %w", err)
	}

	return &doc, nil
}

// ResolveKey implements KeyResolver. The key is always taken from the
// issuer's own DID document: a verification method id naming another DID
// is rejected. With a verification method id the matching method is used;
// otherwise the first assertion method whose type maps to a known suite,
// then the first such method of the document.
func (r *DIDResolver) ResolveKey(ctx context.Context, issuer, verificationMethod string) (signature.PublicKey, error) {
	const op = "resolve issuer key"

	if !strings.HasPrefix(issuer, "did:") {
		return signature.PublicKey{}, sderr.Newf(sderr.KindUnresolvedIssuer, op, "issuer %q is not a DID", issuer)
	}
	if d, _, _ := strings.Cut(verificationMethod, "#"); d != "" && d != issuer {
		return signature.PublicKey{}, sderr.Newf(sderr.KindUnresolvedIssuer, op,
			"verification method %q does not belong to issuer %q", verificationMethod, issuer)
	}

	doc, err := r.ResolveDocument(ctx, issuer)
	if err != nil {
		return signature.PublicKey{}, sderr.New(sderr.KindUnresolvedIssuer, op, fmt.Errorf("failed to resolve DID '%s': %w", issuer, err))
	}
	if doc.ID != "" && doc.ID != issuer {
		return signature.PublicKey{}, sderr.Newf(sderr.KindUnresolvedIssuer, op, "resolver returned document of %q for %q", doc.ID, issuer)
	}

	vm, err := r.selectMethod(doc, verificationMethod)
	if err != nil {
		return signature.PublicKey{}, sderr.New(sderr.KindUnresolvedIssuer, op, err)
	}

	key, err := r.decodeKey(vm)
	if err != nil {
		return signature.PublicKey{}, sderr.New(sderr.KindUnresolvedIssuer, op, fmt.Errorf("verification method '%s': %w", vm.ID, err))
	}

	return key, nil
}

func (r *DIDResolver) selectMethod(doc *model.DIDDocument, id string) (*model.VerificationMethodEntry, error) {
	if id != "" {
		vm, ok := doc.MethodByID(id)
		if !ok {
			return nil, fmt.Errorf("verification method '%s' not found in DID document", id)
		}
		return vm, nil
	}
	for _, amID := range doc.AssertionMethodIDs() {
		if vm, ok := doc.MethodByID(amID); ok {
			if _, known := r.keyTypes[vm.Type]; known {
				return vm, nil
			}
		}
	}
	for i := range doc.VerificationMethod {
		if _, known := r.keyTypes[doc.VerificationMethod[i].Type]; known {
			return &doc.VerificationMethod[i], nil
		}
	}
	return nil, fmt.Errorf("no usable verification method in DID '%s' document", doc.ID)
}

func (r *DIDResolver) decodeKey(vm *model.VerificationMethodEntry) (signature.PublicKey, error) {
	suite, ok := r.keyTypes[vm.Type]
	if !ok {
		return signature.PublicKey{}, fmt.Errorf("unsupported verification method type %q", vm.Type)
	}

	var (
		raw []byte
		err error
	)
	switch {
	case vm.PublicKeyBase58 != "":
		raw = base58.Decode(vm.PublicKeyBase58)
		if len(raw) == 0 {
			err = errors.New("invalid publicKeyBase58")
		}
	case vm.PublicKeyMultibase != "":
		_, raw, err = multibase.Decode(vm.PublicKeyMultibase)
	case vm.PublicKeyHex != "":
		raw, err = crypto.KeyToBytes(vm.PublicKeyHex)
	default:
		err = errors.New("no supported public key encoding")
	}
	if err != nil {
		return signature.PublicKey{}, fmt.Errorf("failed to decode public key: %w", err)
	}

	return signature.PublicKey{Type: suite, Value: raw}, nil
}
