// Package client is a Go client for the gallery HTTP API. Errors returned by
// the server are mapped back onto the catalog error values so callers can
// use errors.Is and errors.As the same way they would against the service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/galerija/internal/catalog"
	"github.com/erazemk/galerija/internal/contact"
	"github.com/erazemk/galerija/internal/model"
)

// DefaultTimeout bounds every request when New is given zero.
const DefaultTimeout = 15 * time.Second

var (
	ErrNotFound     = catalog.ErrNotFound
	ErrUnauthorized = catalog.ErrUnauthorized
	ErrValidation   = catalog.ErrValidation
	ErrStorage      = catalog.ErrStorage
	ErrPartialBatch = catalog.ErrPartialBatch
)

// UploadResult is the server's answer to an image upload.
type UploadResult struct {
	URL    string `json:"url"`
	Size   int64  `json:"size"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Client talks to a gallery server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger

	mu    sync.RWMutex
	token string
}

// New creates a client for the server at baseURL.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With("component", "client"),
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login authenticates and keeps the returned token. It returns the user's role.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return "", fmt.Errorf("logging in: %w", err)
	}
	c.SetToken(resp.Token)
	return resp.Role, nil
}

// Logout revokes the current token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	c.SetToken("")
	return nil
}

// List returns every painting in display order.
func (c *Client) List(ctx context.Context) ([]model.Painting, error) {
	var list []model.Painting
	if err := c.do(ctx, http.MethodGet, "/api/paintings", nil, &list); err != nil {
		return nil, fmt.Errorf("listing paintings: %w", err)
	}
	return list, nil
}

// Get returns a single painting.
func (c *Client) Get(ctx context.Context, id string) (*model.Painting, error) {
	var p model.Painting
	if err := c.do(ctx, http.MethodGet, paintingPath(id), nil, &p); err != nil {
		return nil, fmt.Errorf("getting painting: %w", err)
	}
	return &p, nil
}

// Create adds a painting.
func (c *Client) Create(ctx context.Context, fields model.PaintingFields) (*model.Painting, error) {
	var p model.Painting
	if err := c.do(ctx, http.MethodPost, "/api/paintings", fields, &p); err != nil {
		return nil, fmt.Errorf("creating painting: %w", err)
	}
	return &p, nil
}

// Update changes the given fields of a painting.
func (c *Client) Update(ctx context.Context, id string, fields model.PaintingFields) (*model.Painting, error) {
	var p model.Painting
	if err := c.do(ctx, http.MethodPatch, paintingPath(id), fields, &p); err != nil {
		return nil, fmt.Errorf("updating painting: %w", err)
	}
	return &p, nil
}

// Delete removes a painting.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, paintingPath(id), nil, nil); err != nil {
		return fmt.Errorf("deleting painting: %w", err)
	}
	return nil
}

// Reorder applies a batch of order updates atomically.
func (c *Client) Reorder(ctx context.Context, updates []model.OrderUpdate) ([]model.OrderUpdate, error) {
	var resp struct {
		Updated []model.OrderUpdate `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPatch, "/api/paintings/order", updates, &resp); err != nil {
		return nil, fmt.Errorf("reordering paintings: %w", err)
	}
	return resp.Updated, nil
}

// Normalize renumbers all paintings 0..n-1.
func (c *Client) Normalize(ctx context.Context) ([]model.OrderUpdate, error) {
	var resp struct {
		Updated []model.OrderUpdate `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/paintings/normalize", nil, &resp); err != nil {
		return nil, fmt.Errorf("normalizing painting order: %w", err)
	}
	return resp.Updated, nil
}

// Upload sends an image and returns the URL it was stored at.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result UploadResult
	if err := c.send(req, &result); err != nil {
		return nil, fmt.Errorf("uploading %s: %w", filename, err)
	}
	return &result, nil
}

// SendContact submits a contact form message.
func (c *Client) SendContact(ctx context.Context, m contact.Message) error {
	if err := c.do(ctx, http.MethodPost, "/api/contact", m, nil); err != nil {
		return fmt.Errorf("sending contact message: %w", err)
	}
	return nil
}

// paintingPath escapes id so it always names a single painting.
func paintingPath(id string) string {
	return "/api/paintings/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request done", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

type errorBody struct {
	Error  string   `json:"error"`
	Field  string   `json:"field"`
	Failed []string `json:"failed"`
}

func decodeError(resp *http.Response) error {
	var body errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return &catalog.ValidationError{Field: body.Field, Message: body.Error}
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, body.Error)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, body.Error)
	case http.StatusConflict:
		if len(body.Failed) > 0 {
			return &catalog.BatchError{Failed: body.Failed}
		}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", ErrStorage, body.Error)
	}
	return &StatusError{Code: resp.StatusCode, Message: body.Error}
}

// StatusError is returned for responses that do not map to a catalog error.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// IsTimeout reports whether err was caused by a request deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
