// Package credentialstatus checks credentials against bitstring status
// lists published over HTTP.
package credentialstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/util"
)

// ListVerifier checks the proof of a fetched status list credential. raw
// is the response body as received.
type ListVerifier interface {
	VerifyStatusList(ctx context.Context, raw []byte, list *StatusListCredential) error
}

// ListVerifierFunc adapts a function to ListVerifier.
type ListVerifierFunc func(ctx context.Context, raw []byte, list *StatusListCredential) error

// VerifyStatusList implements ListVerifier.
func (f ListVerifierFunc) VerifyStatusList(ctx context.Context, raw []byte, list *StatusListCredential) error {
	return f(ctx, raw, list)
}

// ClientOpt configures a Client.
type ClientOpt func(*Client)

// WithListVerifier rejects status lists that v does not accept. Without
// one, lists are trusted as fetched.
func WithListVerifier(v ListVerifier) ClientOpt {
	return func(c *Client) {
		c.verifier = v
	}
}

// Client fetches status list credentials and tests revocation bits.
type Client struct {
	httpClient *http.Client
	verifier   ListVerifier
}

// NewClient creates a new credential status client with a sensible default
// timeout. A nil httpClient selects an instrumented default.
func NewClient(httpClient *http.Client, opts ...ClientOpt) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	c := &Client{httpClient: httpClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsRevoked resolves the status list an entry points to and reports
// whether the entry's bit is set. Entries with another purpose are never
// revoked.
func (c *Client) IsRevoked(ctx context.Context, entry Entry) (bool, error) {
	if entry.StatusPurpose != "" && entry.StatusPurpose != PurposeRevocation {
		return false, nil
	}

	position, err := strconv.Atoi(entry.StatusListIndex)
	if err != nil {
		return false, fmt.Errorf("invalid statusListIndex %q: %w", entry.StatusListIndex, err)
	}

	list, err := c.FetchStatusListCredential(ctx, entry.StatusListCredential)
	if err != nil {
		return false, err
	}

	return IsRevoked(position, list.CredentialSubject)
}

// FetchStatusListCredential fetches and parses the status list credential
// located at the given statusListCredential URL. Both a bare credential and
// one wrapped in {"data": ...} are accepted.
func (c *Client) FetchStatusListCredential(ctx context.Context, statusListCredentialURL string) (*StatusListCredential, error) {
	if statusListCredentialURL == "" {
		return nil, fmt.Errorf("statusListCredential URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusListCredentialURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status list request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call status list credential endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status list credential API returned non-200 status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status list credential response body: %w", err)
	}

	list, err := parseStatusList(body)
	if err != nil {
		return nil, err
	}

	if c.verifier != nil {
		if err := c.verifier.VerifyStatusList(ctx, body, list); err != nil {
			return nil, fmt.Errorf("status list credential %s rejected: %w", statusListCredentialURL, err)
		}
	}

	return list, nil
}

func parseStatusList(body []byte) (*StatusListCredential, error) {
	var wrapped StatusListCredentialResponse
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data.CredentialSubject.EncodedList != "" {
		return &wrapped.Data, nil
	}

	var result StatusListCredential
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status list credential JSON: %w", err)
	}

	return &result, nil
}

// IsRevoked checks whether a credential is revoked based on the encoded list
// and a given status position (index in the bitstring, LSB first).
func IsRevoked(position int, subject StatusListCredentialSubject) (bool, error) {
	if subject.StatusPurpose != PurposeRevocation {
		return false, nil
	}

	byteString, err := util.DecompressFromBase64URL(subject.EncodedList)
	if err != nil {
		return false, err
	}

	byteIndex := position / 8
	if position < 0 || byteIndex >= len(byteString) {
		return false, fmt.Errorf("status position %d outside list of %d entries", position, len(byteString)*8)
	}

	return (byteString[byteIndex]>>(position%8))&1 == 1, nil
}

// EncodeList builds an encodedList of size entries with the given
// positions set.
func EncodeList(size int, revoked ...int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("status list size must be positive")
	}

	bits := make([]byte, (size+7)/8)
	for _, p := range revoked {
		if p < 0 || p >= size {
			return "", fmt.Errorf("status position %d outside list of %d entries", p, size)
		}
		bits[p/8] |= 1 << (p % 8)
	}

	return util.CompressToBase64URL(bits)
}
