package library

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// genericFailure is shown when an error response carries no readable message.
const genericFailure = "Something went wrong!"

// Call describes one backend request.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Anonymous skips the Authorization header (login and register).
	Anonymous bool
}

// Gateway is the only way the client talks to the backend. It attaches the
// bearer token, normalizes failures and turns a 401 into a cleared session.
type Gateway struct {
	baseURL  string
	client   *http.Client
	sessions *SessionStore
	log      *Logger
}

// NewGateway builds a gateway for baseURL (for example http://localhost:8080/api).
// A nil client means http.DefaultClient.
func NewGateway(baseURL string, client *http.Client, sessions *SessionStore, log *Logger) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = NopLogger()
	}
	return &Gateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		sessions: sessions,
		log:      log,
	}
}

// BaseURL returns the configured API root.
func (g *Gateway) BaseURL() string { return g.baseURL }

// Do performs c and decodes a 2xx JSON body into out (which may be nil).
//
// A 401 clears the session and returns ErrUnauthenticated. Any other non-2xx
// answer returns an *APIError with the backend's message.
func (g *Gateway) Do(ctx context.Context, c Call, out any) error {
	endpoint := g.baseURL + c.Path
	if len(c.Query) > 0 {
		endpoint += "?" + c.Query.Encode()
	}

	var body io.Reader
	if c.Body != nil {
		data, err := json.Marshal(c.Body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, c.Method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if !c.Anonymous && g.sessions != nil {
		if token := g.sessions.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	g.log.Infof("%s %s [%s]", c.Method, c.Path, reqID)
	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Errorf("%s %s [%s] failed: %v", c.Method, c.Path, reqID, err)
		return fmt.Errorf("%s %s: %w", c.Method, c.Path, err)
	}
	defer resp.Body.Close()
	g.log.Infof("%s %s [%s] -> %d (%s)", c.Method, c.Path, reqID, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if g.sessions != nil {
			if err := g.sessions.Clear(); err != nil {
				g.log.Errorf("clear session after 401: %v", err)
			}
		}
		return ErrUnauthenticated
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
		g.log.Warnf("%s %s [%s] error: %s", c.Method, c.Path, reqID, apiErr.Message)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.Path, err)
	}
	return nil
}

// errorMessage extracts {"message": ...} (or {"error": ...}) from an error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return genericFailure
	}
	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Error != "":
		return payload.Error
	}
	return genericFailure
}

func (g *Gateway) Get(ctx context.Context, path string, out any) error {
	return g.Do(ctx, Call{Method: http.MethodGet, Path: path}, out)
}

func (g *Gateway) Post(ctx context.Context, path string, query url.Values, body, out any) error {
	return g.Do(ctx, Call{Method: http.MethodPost, Path: path, Query: query, Body: body}, out)
}

func (g *Gateway) Put(ctx context.Context, path string, query url.Values, body, out any) error {
	return g.Do(ctx, Call{Method: http.MethodPut, Path: path, Query: query, Body: body}, out)
}

func (g *Gateway) Delete(ctx context.Context, path string) error {
	return g.Do(ctx, Call{Method: http.MethodDelete, Path: path}, nil)
}
