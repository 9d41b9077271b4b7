package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUserNotFound is returned by user lookups when the store has no record
// for the requested id.
var ErrUserNotFound = errors.New("memstore: user not found")

const apiPrefix = "/api/v1"

// HTTPStore is a [Store] backed by a memobase-style memory service. The
// service buffers inserted chat blobs per user and extracts long-term memory
// when the buffer is flushed.
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Store = (*HTTPStore)(nil)

// HTTPOption is a functional option for [NewHTTPStore].
type HTTPOption func(*HTTPStore)

// WithHTTPClient overrides the underlying HTTP client. Primarily used in
// tests to point at an httptest server with custom transport settings.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) { s.client = c }
}

// NewHTTPStore creates an HTTPStore for the service at baseURL,
// authenticating every request with the given bearer token.
func NewHTTPStore(baseURL, token string, opts ...HTTPOption) (*HTTPStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("memstore: invalid base url %q", baseURL)
	}
	s := &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Ping implements [Store] via the service healthcheck endpoint.
func (s *HTTPStore) Ping(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, "/healthcheck", nil, nil)
}

// GetOrCreateUser implements [Store]: lookup first, create on not-found.
func (s *HTTPStore) GetOrCreateUser(ctx context.Context, id string) error {
	err := s.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, nil)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	body := map[string]any{"id": id, "data": map[string]any{}}
	return s.do(ctx, http.MethodPost, "/users", body, nil)
}

// Insert implements [Store] by posting one chat blob for the user.
func (s *HTTPStore) Insert(ctx context.Context, userID string, messages []Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("memstore: insert with no messages")
	}
	body := map[string]any{
		"blob_type": "chat",
		"blob_data": map[string]any{"messages": messages},
	}
	return s.do(ctx, http.MethodPost, "/blobs/insert/"+url.PathEscape(userID), body, nil)
}

// Flush implements [Store] by triggering buffer processing for the user.
func (s *HTTPStore) Flush(ctx context.Context, userID string, blocking bool) error {
	path := fmt.Sprintf("/users/buffer/%s/chat?wait_process=%t", url.PathEscape(userID), blocking)
	return s.do(ctx, http.MethodPost, path, nil, nil)
}

// apiEnvelope is the standard response wrapper of the memory service.
type apiEnvelope struct {
	ErrNo  int             `json:"errno"`
	ErrMsg string          `json:"errmsg"`
	Data   json.RawMessage `json:"data"`
}

func (s *HTTPStore) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("memstore: marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+apiPrefix+path, rd)
	if err != nil {
		return fmt.Errorf("memstore: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("memstore: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrUserNotFound, method, path)
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("memstore: %s %s: status %d: %s", method, path, resp.StatusCode, data)
	}

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("memstore: decode response: %w", err)
	}
	if env.ErrNo != 0 {
		return fmt.Errorf("memstore: %s %s: errno %d: %s", method, path, env.ErrNo, env.ErrMsg)
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("memstore: decode data: %w", err)
		}
	}
	return nil
}
