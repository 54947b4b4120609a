// Package gemini is a minimal client for the Gemini generateContent endpoint.
package gemini

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public v1beta endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "gemini-2.0-flash-exp"
	// DefaultTimeout bounds a single round trip.
	DefaultTimeout = 60 * time.Second

	keyParam = "key"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	// InsecureSkipVerify disables certificate validation. Local development only.
	InsecureSkipVerify bool
}

// Client calls generateContent. It is safe for concurrent use.
type Client struct {
	endpoint *url.URL
	apiKey   string
	client   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

// New builds a Client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	endpoint, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/models/" + cfg.Model + ":generateContent")
	if err != nil {
		return nil, fmt.Errorf("url.Parse failed: %w", err)
	}

	c := &Client{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		client:   newHTTPClient(cfg),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func newHTTPClient(cfg Config) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// Compression stays on: the transport asks for gzip and decodes it.
		DisableCompression: false,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
		},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}

// Endpoint returns the generateContent URL without credentials.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// GenerateContent sends prompt as a single user turn and returns the raw
// response envelope.
func (c *Client) GenerateContent(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(NewUserRequest(prompt))
	if err != nil {
		return nil, fmt.Errorf("json.Marshal failed: %w", err)
	}

	u := *c.endpoint
	q := u.Query()
	q.Set(keyParam, c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http.NewRequestWithContext failed: %w", redactURLError(err, &u))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("url", redactKey(&u)).Int("prompt_bytes", len(prompt)).Msg("gemini request")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client.Do failed: %w", redactURLError(err, &u))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn().Err(err).Msg("resp.Body.Close failed")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug().
			Int("status_code", resp.StatusCode).
			Str("body", string(raw)).
			Msg("gemini request failed")

		return nil, &Error{
			Method:     req.Method,
			URL:        redactKey(&u),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       raw,
		}
	}

	return raw, nil
}
