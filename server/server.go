// Package server exposes presentation verification over HTTP: verifiers
// hand out challenges and check the presentations bound to them.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/challenge"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/claims"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/provider"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
	"github.com/pilacorp/go-sdvc-sdk/credential/vp"
)

var logger = log.New("sdvc/server")

// Endpoints.
const (
	ChallengesPath  = "/challenges"
	VerifyPath      = "/presentations/verify"
	HealthcheckPath = "/healthcheck"

	defaultChallengeTTL = 5 * time.Minute
	maxBodySize         = 1 << 20
)

// Handler http handler for each controller API endpoint.
type Handler interface {
	Path() string
	Method() string
	Handle() http.HandlerFunc
}

type httpHandler struct {
	path   string
	method string
	handle http.HandlerFunc
}

func (h *httpHandler) Path() string             { return h.path }
func (h *httpHandler) Method() string           { return h.method }
func (h *httpHandler) Handle() http.HandlerFunc { return h.handle }

// Config defines configuration for the verifier service.
type Config struct {
	// Domain is the audience used when a request names none.
	Domain string
	// ChallengeTTL bounds how long an issued nonce can be used.
	ChallengeTTL time.Duration
	// Resolver looks up issuer keys.
	Resolver provider.KeyResolver
	// StatusChecker, when set, rejects revoked credentials.
	StatusChecker vp.StatusChecker
	// Registry lists accepted suites; nil accepts every built-in suite.
	Registry *signature.Registry
	// ChallengeKey, when set, signs stateless challenge tokens with this
	// secp256k1 private key in addition to the nonce ledger.
	ChallengeKey []byte
	// Clock overrides time.Now.
	Clock func() time.Time
}

// Server is the REST controller for challenges and verification.
type Server struct {
	domain      string
	ttl         time.Duration
	now         func() time.Time
	ledger      *challenge.Ledger
	verifier    *vp.Verifier
	tokens      *challenge.TokenIssuer
	tokenVerify *challenge.TokenVerifier
}

// New returns a verifier service.
func New(config *Config) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.Resolver == nil {
		return nil, fmt.Errorf("key resolver is required")
	}

	s := &Server{
		domain: config.Domain,
		ttl:    config.ChallengeTTL,
		now:    config.Clock,
	}
	if s.ttl <= 0 {
		s.ttl = defaultChallengeTTL
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.ledger = challenge.NewLedger(challenge.WithLedgerTTL(s.ttl))

	opts := []vp.VerifierOpt{vp.WithClock(s.now), vp.WithNonceLedger(s.ledger)}
	if config.Registry != nil {
		opts = append(opts, vp.WithRegistry(config.Registry))
	}
	if config.StatusChecker != nil {
		opts = append(opts, vp.WithStatusChecker(config.StatusChecker))
	}
	s.verifier = vp.NewVerifier(config.Resolver, opts...)

	if len(config.ChallengeKey) > 0 {
		tokenOpts := []challenge.TokenOpt{challenge.WithTokenTTL(s.ttl), challenge.WithTokenClock(s.now)}
		issuer, err := challenge.NewTokenIssuer(config.ChallengeKey, "sdvc-verifier", tokenOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create challenge token issuer: %w", err)
		}
		s.tokens = issuer
		s.tokenVerify = challenge.NewTokenVerifier(issuer.PublicKey(), tokenOpts...)
	}

	return s, nil
}

// GetRESTHandlers get all controller API handler available for this service.
func (s *Server) GetRESTHandlers() []Handler {
	return []Handler{
		&httpHandler{path: ChallengesPath, method: http.MethodPost, handle: s.CreateChallenge},
		&httpHandler{path: VerifyPath, method: http.MethodPost, handle: s.VerifyPresentation},
		&httpHandler{path: HealthcheckPath, method: http.MethodGet, handle: s.Healthcheck},
	}
}

// Router returns a router serving every handler.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	for _, handler := range s.GetRESTHandlers() {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}
	return router
}

// ListenAndServe serves the router on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("verifier service listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ChallengeRequest asks for a nonce bound to a domain.
type ChallengeRequest struct {
	Domain string `json:"domain,omitempty"`
}

// ChallengeResponse carries an issued challenge.
type ChallengeResponse struct {
	Nonce     string    `json:"nonce"`
	Domain    string    `json:"domain"`
	ExpiresAt time.Time `json:"expiresAt"`
	Token     string    `json:"token,omitempty"`
}

// VerifyRequest carries a presentation and the challenge it answers. The
// presentation is given either as JSON or in compact form. A challenge
// token may stand in for the nonce.
type VerifyRequest struct {
	Presentation   json.RawMessage `json:"presentation,omitempty"`
	Compact        string          `json:"compact,omitempty"`
	Nonce          string          `json:"nonce,omitempty"`
	ChallengeToken string          `json:"challengeToken,omitempty"`
	Domain         string          `json:"domain,omitempty"`
}

// VerifyResponse reports a verification result.
type VerifyResponse struct {
	Verified bool         `json:"verified"`
	Subject  *claims.Tree `json:"subject,omitempty"`
	Error    string       `json:"error,omitempty"`
	Kind     string       `json:"kind,omitempty"`
}

// ErrorResponse is returned for malformed requests.
type ErrorResponse struct {
	Message string `json:"errMessage,omitempty"`
}

// HealthCheckResponse is the healthcheck payload.
type HealthCheckResponse struct {
	Status      string    `json:"status"`
	CurrentTime time.Time `json:"currentTime"`
}

// CreateChallenge issues a single-use nonce for the requested domain.
func (s *Server) CreateChallenge(rw http.ResponseWriter, req *http.Request) {
	var request ChallengeRequest
	if req.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(rw, req.Body, maxBodySize)).Decode(&request); err != nil {
			writeError(rw, http.StatusBadRequest, fmt.Sprintf("invalid challenge request: %s", err), ChallengesPath)
			return
		}
	}

	domain := request.Domain
	if domain == "" {
		domain = s.domain
	}
	if domain == "" {
		writeError(rw, http.StatusBadRequest, "domain is required", ChallengesPath)
		return
	}

	resp := ChallengeResponse{Domain: domain}
	if s.tokens != nil {
		c, err := s.tokens.Issue(domain)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err.Error(), ChallengesPath)
			return
		}
		if err := s.ledger.Remember(c.Nonce, domain); err != nil {
			writeError(rw, http.StatusInternalServerError, err.Error(), ChallengesPath)
			return
		}
		resp.Nonce, resp.Token, resp.ExpiresAt = c.Nonce, c.Token, c.ExpiresAt
	} else {
		nonce, err := s.ledger.Issue(domain)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err.Error(), ChallengesPath)
			return
		}
		resp.Nonce, resp.ExpiresAt = nonce, s.now().Add(s.ttl).UTC()
	}

	writeResponse(rw, http.StatusCreated, resp)
}

// VerifyPresentation checks a presentation against a previously issued
// challenge. Verification failures are reported with status 422.
func (s *Server) VerifyPresentation(rw http.ResponseWriter, req *http.Request) {
	var request VerifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(rw, req.Body, maxBodySize)).Decode(&request); err != nil {
		writeError(rw, http.StatusBadRequest, fmt.Sprintf("invalid verify request: %s", err), VerifyPath)
		return
	}

	var raw []byte
	switch {
	case len(request.Presentation) > 0:
		raw = request.Presentation
	case request.Compact != "":
		raw = []byte(request.Compact)
	default:
		writeError(rw, http.StatusBadRequest, "presentation is required", VerifyPath)
		return
	}
	p, err := vp.ParsePresentation(raw)
	if err != nil {
		writeError(rw, http.StatusBadRequest, err.Error(), VerifyPath)
		return
	}

	domain := request.Domain
	if domain == "" {
		domain = s.domain
	}

	nonce := request.Nonce
	if request.ChallengeToken != "" {
		if s.tokenVerify == nil {
			writeError(rw, http.StatusBadRequest, "challenge tokens are not enabled", VerifyPath)
			return
		}
		nonce, err = s.tokenVerify.Verify(request.ChallengeToken, domain)
		if err != nil {
			writeResponse(rw, http.StatusUnprocessableEntity, VerifyResponse{Error: err.Error(), Kind: sderr.KindOf(err).String()})
			return
		}
	}

	res := s.verifier.Verify(req.Context(), p, nonce, domain)
	if !res.Verified {
		logger.Infof("presentation %s rejected: %s", p.ID, res.Kind)
		writeResponse(rw, http.StatusUnprocessableEntity, VerifyResponse{Error: res.Err.Error(), Kind: res.Kind.String()})
		return
	}

	writeResponse(rw, http.StatusOK, VerifyResponse{Verified: true, Subject: &res.Subject})
}

// Healthcheck reports that the service is up.
func (s *Server) Healthcheck(rw http.ResponseWriter, _ *http.Request) {
	writeResponse(rw, http.StatusOK, HealthCheckResponse{Status: "success", CurrentTime: s.now().UTC()})
}

func writeError(rw http.ResponseWriter, status int, msg, endpoint string) {
	logger.Errorf("endpoint=[%s] status=[%d] errMsg=[%s]", endpoint, status, msg)
	writeResponse(rw, status, ErrorResponse{Message: msg})
}

func writeResponse(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		logger.Errorf("failed to write response: %s", err)
	}
}
