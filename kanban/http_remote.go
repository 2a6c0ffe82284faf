package kanban

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

var (
	// ErrRemoteNotFound is returned when the server has no document at a path.
	ErrRemoteNotFound = errors.New("remote document not found")

	// ErrUnauthorized is returned when the server rejects the token.
	ErrUnauthorized = errors.New("remote rejected credentials")
)

// HTTPRemote is a RemoteStore backed by the flow-board document API.
type HTTPRemote struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPRemote creates a client for the server at baseURL authenticating
// with a bearer token. If client is nil one with a 10 second timeout is used.
func NewHTTPRemote(baseURL, token string, client *http.Client) *HTTPRemote {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPRemote{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

func (r *HTTPRemote) GetCollection(ctx context.Context, path string) ([]json.RawMessage, error) {
	var resp struct {
		Status string            `json:"status"`
		Data   []json.RawMessage `json:"data"`
	}
	if err := r.do(ctx, http.MethodGet, "/api/docs/"+escapePath(path), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = []json.RawMessage{}
	}
	return resp.Data, nil
}

func (r *HTTPRemote) Set(ctx context.Context, path string, doc any) error {
	return r.do(ctx, http.MethodPut, "/api/docs/"+escapePath(path), doc, nil)
}

func (r *HTTPRemote) Update(ctx context.Context, path string, fields map[string]any) error {
	return r.do(ctx, http.MethodPatch, "/api/docs/"+escapePath(path), fields, nil)
}

func (r *HTTPRemote) Delete(ctx context.Context, path string) error {
	return r.do(ctx, http.MethodDelete, "/api/docs/"+escapePath(path), nil, nil)
}

// WhoAmI resolves the identity behind the remote's token.
func (r *HTTPRemote) WhoAmI(ctx context.Context) (Identity, error) {
	var id Identity
	if err := r.do(ctx, http.MethodGet, "/api/auth/verify", nil, &id); err != nil {
		return Identity{}, err
	}
	return id, nil
}

func (r *HTTPRemote) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrRemoteNotFound)
	case http.StatusUnauthorized:
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func escapePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
