// Package client is a typed HTTP client for the QuoteReality REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/quotereality/internal/api"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx response. Message is the server's "error" field, or
// the status text when the body carried none.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger enables debug logging of requests.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a client for baseURL (e.g. http://localhost:8080) that sends token
// as a bearer credential.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// send performs the request and returns the response for 2xx statuses.
// The caller must close the body.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	c.log.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var er api.ErrorResponse
	if err := json.Unmarshal(b, &er); err != nil || er.Error == "" {
		er.Error = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: er.Error}
}

// Health calls GET /api/health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *Client) ListProjects(ctx context.Context) ([]api.Project, error) {
	var out []api.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return out, nil
}

func (c *Client) GetProject(ctx context.Context, id uuid.UUID) (*api.Project, error) {
	var out api.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+id.String(), nil, &out); err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return &out, nil
}

func (c *Client) CreateProject(ctx context.Context, req api.CreateProjectRequest) (*api.Project, error) {
	var out api.Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", req, &out); err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return &out, nil
}

func (c *Client) UpdateProject(ctx context.Context, id uuid.UUID, req api.UpdateProjectRequest) (*api.Project, error) {
	var out api.Project
	if err := c.do(ctx, http.MethodPatch, "/api/projects/"+id.String(), req, &out); err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, id uuid.UUID) error {
	if err := c.do(ctx, http.MethodDelete, "/api/projects/"+id.String(), nil, nil); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}

func (c *Client) CreateSession(ctx context.Context, req api.CreateSessionRequest) (*api.Session, error) {
	var out api.Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions", req, &out); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &out, nil
}

func (c *Client) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := c.do(ctx, http.MethodDelete, "/api/sessions/"+id.String(), nil, nil); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (c *Client) GetSettings(ctx context.Context) (*api.Settings, error) {
	var out api.Settings
	if err := c.do(ctx, http.MethodGet, "/api/settings", nil, &out); err != nil {
		return nil, fmt.Errorf("getting settings: %w", err)
	}
	return &out, nil
}

func (c *Client) UpdateSettings(ctx context.Context, req api.UpdateSettingsRequest) (*api.Settings, error) {
	var out api.Settings
	if err := c.do(ctx, http.MethodPatch, "/api/settings", req, &out); err != nil {
		return nil, fmt.Errorf("updating settings: %w", err)
	}
	return &out, nil
}

// ExportJSON returns the decoded bulk export.
func (c *Client) ExportJSON(ctx context.Context) (*api.Export, error) {
	var out api.Export
	if err := c.do(ctx, http.MethodGet, "/api/export.json", nil, &out); err != nil {
		return nil, fmt.Errorf("exporting json: %w", err)
	}
	return &out, nil
}

// ExportCSV streams the CSV export into w.
func (c *Client) ExportCSV(ctx context.Context, w io.Writer) error {
	resp, err := c.send(ctx, http.MethodGet, "/api/export.csv", nil)
	if err != nil {
		return fmt.Errorf("exporting csv: %w", err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("exporting csv: %w", err)
	}
	return nil
}
