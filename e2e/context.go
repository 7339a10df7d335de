package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"propreg/internal/chain"
	"propreg/internal/identity"
	propertyhandler "propreg/internal/property/handler"
	"propreg/internal/property/service"
	"propreg/internal/property/store"
	httptransport "propreg/internal/transport/http"
	"propreg/pkg/domain"
)

// Token settings for scenarios. An external server (PROPREG_E2E_BASE_URL)
// must be started with the same signing key, issuer and audience.
const (
	signingKey = "e2e-signing-key"
	issuer     = "propreg"
	audience   = "propreg-api"

	// registrationHeight is the fixed height of the in-process registry.
	registrationHeight = 123
)

// TestContext holds per-scenario state: the target server, issued tokens
// and the last response.
type TestContext struct {
	baseURL string
	server  *httptest.Server
	client  *http.Client
	tokens  *identity.TokenService

	lastStatus int
	lastBody   []byte
}

// NewTestContext targets PROPREG_E2E_BASE_URL when set, otherwise a fresh
// in-process registry.
func NewTestContext() (*TestContext, error) {
	tc := &TestContext{
		client: &http.Client{Timeout: 10 * time.Second},
		tokens: identity.NewTokenService(signingKey, issuer, audience),
	}
	if base := os.Getenv("PROPREG_E2E_BASE_URL"); base != "" {
		tc.baseURL = base
		return tc, nil
	}

	logger := slog.New(slog.DiscardHandler)
	svc, err := service.New(store.NewInMemory(),
		service.WithLogger(logger),
		service.WithHeightSource(chain.Fixed(registrationHeight)),
	)
	if err != nil {
		return nil, err
	}
	tc.server = httptest.NewServer(httptransport.NewRouter(httptransport.Deps{
		Logger:   logger,
		Tokens:   tc.tokens,
		Handlers: []httptransport.Mountable{propertyhandler.New(svc, logger)},
	}))
	tc.baseURL = tc.server.URL
	return tc, nil
}

// Close stops the in-process server, if any.
func (tc *TestContext) Close() {
	if tc.server != nil {
		tc.server.Close()
	}
}

// Do sends a request as caller; an empty caller sends no token.
func (tc *TestContext) Do(method, path string, caller domain.Principal, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if !caller.IsNil() {
		token, _, err := tc.tokens.Issue(caller, time.Hour)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) LastStatus() int {
	return tc.lastStatus
}

// ResponseField returns a top-level field of the last JSON response.
func (tc *TestContext) ResponseField(field string) (any, error) {
	var body map[string]any
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w (body: %s)", err, tc.lastBody)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("response has no field %q (body: %s)", field, tc.lastBody)
	}
	return v, nil
}
