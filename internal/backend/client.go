// Package backend is the REST client for the backend-of-record. Every
// call authenticates with a bearer credential obtained from the identity
// session adapter; the client holds no credential state of its own.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pioneer/internal/answers"
	pioneererrors "pioneer/internal/errors"
	"pioneer/internal/httpclient"
	"pioneer/internal/logging"
)

// Client talks to the backend-of-record over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
}

// New builds a Client for the given API base URL, e.g. "https://host/api".
func New(baseURL string, timeout time.Duration, logger logging.Logger) *Client {
	logger = logging.OrNop(logger)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.NewWithCircuitBreaker(timeout, logger, "backend-api"),
		logger:  logger,
	}
}

// NewWithHTTPClient builds a Client around an existing http.Client.
// Used by tests to point at an httptest server without breaker wrapping.
func NewWithHTTPClient(baseURL string, client *http.Client, logger logging.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
		logger:  logging.OrNop(logger),
	}
}

// Me fetches the current user record for the credential.
// Returns ErrNotFound (wrapped in APIError) when no record exists.
func (c *Client) Me(ctx context.Context, credential string) (UserRecord, error) {
	var user UserRecord
	err := c.do(ctx, http.MethodGet, "/auth/me", credential, nil, &user, true)
	return user, err
}

// CreateFromIdentity creates a backend record synthesized from
// identity-provider claims.
func (c *Client) CreateFromIdentity(ctx context.Context, credential string, params CreateUserParams) (UserRecord, error) {
	var user UserRecord
	err := c.do(ctx, http.MethodPost, "/auth/auth0-user", credential, params, &user, false)
	return user, err
}

// UpdateMe sends a partial profile patch. The returned record is the
// server's authoritative merge result.
func (c *Client) UpdateMe(ctx context.Context, credential string, patch ProfilePatch) (UserRecord, error) {
	var user UserRecord
	err := c.do(ctx, http.MethodPut, "/auth/me", credential, patch, &user, true)
	return user, err
}

type answersEnvelope struct {
	Answers answers.Set `json:"answers"`
}

// SubmitOnboarding submits a first-time onboarding answer set.
// The "already onboarded" rejection surfaces as an APIError whose detail
// callers classify with IsAlreadyOnboarded.
func (c *Client) SubmitOnboarding(ctx context.Context, credential string, set answers.Set) error {
	return c.do(ctx, http.MethodPost, "/onboarding/submit", credential, answersEnvelope{Answers: set}, nil, false)
}

// ReplaceResponses replaces the stored answer set wholesale. The backend
// contract here is replace-whole-object, not a partial patch.
func (c *Client) ReplaceResponses(ctx context.Context, credential string, set answers.Set) (ResponsesResult, error) {
	var result ResponsesResult
	err := c.do(ctx, http.MethodPut, "/onboarding/responses", credential, answersEnvelope{Answers: set}, &result, false)
	return result, err
}

func (c *Client) do(ctx context.Context, method, path, credential string, body, out any, noCache bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")
	if noCache {
		req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		req.Header.Set("Pragma", "no-cache")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(method, path, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) decodeError(method, path string, resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil {
		apiErr.Detail = payload.Detail
	}
	c.logger.Debug("%s %s rejected: %d %q", method, path, apiErr.StatusCode, apiErr.Detail)

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	}
	if pioneererrors.IsTransientHTTPStatus(resp.StatusCode) {
		return &pioneererrors.TransientError{
			Err:        apiErr,
			StatusCode: resp.StatusCode,
			Message:    apiErr.Error(),
		}
	}
	return apiErr
}
