// Package ilovepdf is a client for the iLovePDF REST API. It exposes the
// vendor's task lifecycle: start a task, upload files to it, process, download.
package ilovepdf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL  = "https://api.ilovepdf.com"
	DefaultRegion   = "us"
	DefaultTimeout  = 5 * time.Minute
	DefaultRate     = 5.0 // requests per second
	tokenTTL        = time.Hour
	clockSkew       = 10 * time.Second // iat and nbf are backdated by this much
	maxErrorBodyLen = 64 * 1024
)

// ErrMissingCredentials is returned by NewClient without a key pair.
var ErrMissingCredentials = errors.New("ilovepdf: public and secret keys are required")

// Config configures a Client.
type Config struct {
	PublicKey         string
	SecretKey         string
	BaseURL           string
	Region            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// HTTPDoer is the subset of *http.Client used by the client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the iLovePDF API on behalf of one key pair.
// It is safe for concurrent use; each Task is not.
type Client struct {
	publicKey  string
	secretKey  []byte
	baseURL    *url.URL
	region     string
	httpClient HTTPDoer
	logger     *logrus.Logger
	now        func() time.Time
}

// NewClient creates a client. The HTTP transport honours proxy environment
// variables and every request waits on a shared rate limiter.
func NewClient(cfg Config, logger *logrus.Logger) (*Client, error) {
	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRate
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("ilovepdf: invalid base URL %q", cfg.BaseURL)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &Client{
		publicKey:  cfg.PublicKey,
		secretKey:  []byte(cfg.SecretKey),
		baseURL:    base,
		region:     cfg.Region,
		httpClient: newRateLimitedClient(cfg.Timeout, cfg.RequestsPerSecond, logger),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// WithHTTPClient replaces the transport. Intended for tests.
func (c *Client) WithHTTPClient(doer HTTPDoer) *Client {
	c.httpClient = doer
	return c
}

// NewTask returns an unstarted task for the given vendor tool.
func (c *Client) NewTask(tool string) *Task {
	return &Task{client: c, tool: tool, state: stateNew}
}

// token signs a short-lived bearer token with the secret key.
func (c *Client) token() (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		ID:        c.publicKey,
		IssuedAt:  jwt.NewNumericDate(now.Add(-clockSkew)),
		NotBefore: jwt.NewNumericDate(now.Add(-clockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secretKey)
	if err != nil {
		return "", fmt.Errorf("ilovepdf: signing token: %w", err)
	}
	return signed, nil
}

// serverURL resolves the host assigned to a task into a base URL.
func (c *Client) serverURL(server string) string {
	if server == "" {
		return c.baseURL.String()
	}
	if strings.Contains(server, "://") {
		return strings.TrimRight(server, "/")
	}
	return c.baseURL.Scheme + "://" + server
}

// do sends an authenticated request and returns the response for 2xx codes.
// Any other status is decoded into an *APIError.
func (c *Client) do(ctx context.Context, op string, req *http.Request) (*http.Response, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("ilovepdf: %s: request timeout: %w", op, err)
		}
		return nil, fmt.Errorf("ilovepdf: %s: %w", op, err)
	}

	c.logger.WithFields(logrus.Fields{
		"op":       op,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("iLovePDF request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(op, resp)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, op string, req *http.Request, out any) error {
	resp, err := c.do(ctx, op, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ilovepdf: %s: decoding response: %w", op, err)
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
