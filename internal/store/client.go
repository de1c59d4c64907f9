package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const maxLoggedBody = 500

// Config locates and authenticates the remote entity store.
type Config struct {
	BaseURL string
	AppID   string
	APIKey  string
}

// Configured reports whether every value needed to call the store is set.
func (c Config) Configured() bool {
	return c.BaseURL != "" && c.AppID != "" && c.APIKey != ""
}

// apiKeyTransport adds the store API key and a user agent to each request.
type apiKeyTransport struct {
	APIKey    string
	Transport http.RoundTripper
}

// RoundTrip adds required headers to each request.
func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("api_key", t.APIKey)
	req.Header.Set("User-Agent", "mailcal/1.0")
	return t.Transport.RoundTrip(req)
}

// Client talks to the entity store over its REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

// WithTransport replaces the base round tripper under the API key transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = &apiKeyTransport{APIKey: c.cfg.APIKey, Transport: rt}
	}
}

// NewClient creates a store client. A client with incomplete configuration is
// still returned; each call then fails with ErrNotConfigured.
func NewClient(logger *slog.Logger, cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Transport: &apiKeyTransport{APIKey: cfg.APIKey, Transport: http.DefaultTransport},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Find returns the first record of entity whose field equals value.
func (c *Client) Find(ctx context.Context, entity, field, value string) (Record, error) {
	q := url.Values{}
	q.Set(field, value)
	body, err := c.do(ctx, http.MethodGet, entity, "", q, nil)
	if err != nil {
		return nil, err
	}
	recs := normalizeList(body)
	if len(recs) == 0 {
		return nil, nil
	}
	if len(recs) > 1 {
		c.logger.Debug("Store returned several matches, using the first", "entity", entity, "field", field, "count", len(recs))
	}
	return recs[0], nil
}

// Create creates a new entity record.
func (c *Client) Create(ctx context.Context, entity string, fields Fields) (Record, error) {
	body, err := c.do(ctx, http.MethodPost, entity, "", nil, fields)
	if err != nil {
		return nil, err
	}
	return normalizeRecord(body), nil
}

// Update overwrites fields on the record identified by id.
func (c *Client) Update(ctx context.Context, entity, id string, fields Fields) (Record, error) {
	body, err := c.do(ctx, http.MethodPut, entity, id, nil, fields)
	if err != nil {
		return nil, err
	}
	return normalizeRecord(body), nil
}

// do sends one request and decodes the JSON response body, if any.
func (c *Client) do(ctx context.Context, method, entity, id string, query url.Values, payload Fields) (any, error) {
	if !c.cfg.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/apps/%s/entities/%s",
		strings.TrimSuffix(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.AppID), url.PathEscape(entity))
	if id != "" {
		endpoint += "/" + url.PathEscape(id)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", entity, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", entity, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Entity store request failed", "entity", entity, "method", method, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, entity, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", entity, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Entity: entity, Method: method, Status: resp.StatusCode, Body: truncate(string(raw))}
		c.logger.Warn("Entity store returned an error", "entity", entity, "method", method, "status", resp.StatusCode, "body", serr.Body)
		return nil, serr
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		c.logger.Warn("Entity store response is not JSON", "entity", entity, "method", method, "body", truncate(string(raw)))
		return nil, fmt.Errorf("failed to decode %s response: %w", entity, err)
	}
	return body, nil
}

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "..."
}
