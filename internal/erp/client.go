package erp

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
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/mostrador/internal/config"
)

const tokenRefreshLeeway = 30 * time.Second

// Client talks to the remote ERP REST API. The access token obtained from
// the login endpoint is cached and shared across requests; a 401 response
// triggers a single refresh-and-retry.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	log        zerolog.Logger

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
}

// NewClient builds an ERP client from configuration.
func NewClient(cfg config.ERPConfig, log zerolog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("erp base url is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("erp credentials are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    base,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "erp").Logger(),
	}, nil
}

type loginRequest struct {
	Username string `json:"usuario"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
	Error     any    `json:"error,omitempty"`
}

// Token returns a cached access token, logging in again if needed.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.fetchToken(ctx, false)
}

// RefreshToken forces retrieval of a fresh access token.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	return c.fetchToken(ctx, true)
}

func (c *Client) fetchToken(ctx context.Context, force bool) (string, error) {
	if !force {
		if token, ok := c.cachedToken(); ok {
			return token, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Check again in case another goroutine refreshed while we waited.
	if !force {
		if token := c.currentTokenLocked(); token != "" {
			return token, nil
		}
	}

	body, err := json.Marshal(loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return "", fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute login request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read login response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("erp login failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var parsed loginResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal login response: %w", err)
	}
	if parsed.Token == "" {
		return "", errors.New("erp login response missing token")
	}

	c.token = parsed.Token
	if parsed.ExpiresIn > 0 {
		c.tokenExpiry = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	} else {
		// Fallback to a short lifetime when expiry is not provided.
		c.tokenExpiry = time.Now().Add(5 * time.Minute)
	}

	return c.token, nil
}

func (c *Client) cachedToken() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	token := c.currentTokenLocked()
	if token == "" {
		return "", false
	}
	return token, true
}

func (c *Client) currentTokenLocked() string {
	if c.token == "" {
		return ""
	}
	if c.tokenExpiry.IsZero() {
		return c.token
	}
	if time.Now().Add(tokenRefreshLeeway).After(c.tokenExpiry) {
		return ""
	}
	return c.token
}

// RequestOpts captures inputs for an ERP API call.
type RequestOpts struct {
	Method  string
	Path    string
	Query   map[string]string
	Body    any
	Headers map[string]string
}

// Response bundles the HTTP response metadata.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

// Do performs a generic ERP API request, retrying once on 401.
func (c *Client) Do(ctx context.Context, opts RequestOpts) (*Response, error) {
	if opts.Method == "" {
		return nil, errors.New("request method is required")
	}
	path := strings.TrimLeft(opts.Path, "/")
	if path == "" {
		return nil, errors.New("request path is required")
	}

	buildRequest := func(token string) (*http.Request, error) {
		target, err := url.Parse(c.baseURL + "/" + path)
		if err != nil {
			return nil, fmt.Errorf("parse erp url: %w", err)
		}
		if len(opts.Query) > 0 {
			values := target.Query()
			for k, v := range opts.Query {
				values.Set(k, v)
			}
			target.RawQuery = values.Encode()
		}

		var bodyReader io.Reader
		if opts.Body != nil {
			payload, err := json.Marshal(opts.Body)
			if err != nil {
				return nil, fmt.Errorf("marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, opts.Method, target.String(), bodyReader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}
		if opts.Body != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("x-access-token", token)

		return req, nil
	}

	do := func(req *http.Request) (*Response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		return &Response{
			Status: resp.StatusCode,
			Body:   respBody,
			Header: resp.Header.Clone(),
		}, nil
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := buildRequest(token)
	if err != nil {
		return nil, err
	}

	resp, err := do(req)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized {
		return resp, nil
	}

	// Token likely expired; refresh and retry once.
	token, err = c.RefreshToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err = buildRequest(token)
	if err != nil {
		return nil, err
	}
	return do(req)
}

// getJSON performs a GET and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, path string, query map[string]string, out any) error {
	resp, err := c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return fmt.Errorf("GET %s: status %d body %s", path, resp.Status, string(resp.Body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", path, err)
	}
	return nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.Do(ctx, RequestOpts{Method: method, Path: path, Body: body})
	if err != nil {
		return err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return fmt.Errorf("%s %s: status %d body %s", method, path, resp.Status, string(resp.Body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", path, err)
	}
	return nil
}
