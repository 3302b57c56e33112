// Package control talks to the shortcut worker over its loopback HTTP
// channel.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/langswitch/internal/logging"
)

const (
	// DefaultHost is the loopback address the worker listens on.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the worker's default port.
	DefaultPort = 8181

	statusPath   = "/status"
	shortcutPath = "/press_shortcut"

	// maxBody caps how much of a response body is kept in a Result.
	maxBody = 4096
)

// ErrEmptyShortcut is returned in a Result when no keys were given.
var ErrEmptyShortcut = errors.New("shortcut has no keys")

// Result is the outcome of a single request.
//
// OK is true only for a 2xx response. Err is set for transport failures and
// for non-2xx responses, so callers can treat !OK uniformly.
type Result struct {
	OK         bool
	StatusCode int
	Body       string
	Err        error
}

// Transport reports whether the request failed before any response arrived.
func (r Result) Transport() bool {
	return !r.OK && r.StatusCode == 0
}

// StatusError describes a non-2xx response.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

// Client issues control requests to a worker.
//
// Client never retries. Requests carry no timeout unless one is set with
// WithTimeout or via the caller's context.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets a per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// WithLogger sets the logger used for failed requests.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the worker at host:port.
func New(host string, port int, opts ...Option) *Client {
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}
	return NewWithBaseURL(&url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
	}, opts...)
}

// NewWithBaseURL creates a client for an explicit base URL.
func NewWithBaseURL(base *url.URL, opts ...Option) *Client {
	c := &Client{
		base:   base,
		http:   &http.Client{},
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the worker's base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// CheckHealth asks the worker whether it is running.
func (c *Client) CheckHealth(ctx context.Context) Result {
	res := c.get(ctx, statusPath, nil)
	if !res.OK {
		c.logger.Debug("health check failed", "url", c.BaseURL(), "status", res.StatusCode, "error", res.Err)
	}
	return res
}

// PressShortcut asks the worker to press the given key chord.
//
// Tokens are sent as one comma-separated keys parameter.
func (c *Client) PressShortcut(ctx context.Context, tokens []string) Result {
	if len(tokens) == 0 {
		return Result{Err: ErrEmptyShortcut}
	}
	q := url.Values{}
	q.Set("keys", strings.Join(tokens, ","))

	res := c.get(ctx, shortcutPath, q)
	if !res.OK {
		c.logger.Warn("switch request failed", "keys", q.Get("keys"), "status", res.StatusCode, "error", res.Err)
	}
	return res
}

func (c *Client) get(ctx context.Context, path string, q url.Values) Result {
	u := c.base.JoinPath(path)
	if q != nil {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{Err: fmt.Errorf("build request: %w", err)}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	body := strings.TrimSpace(string(raw))
	res := Result{StatusCode: resp.StatusCode, Body: body}

	switch {
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		res.Err = &StatusError{Path: path, StatusCode: resp.StatusCode, Body: body}
	case err != nil:
		res.Err = fmt.Errorf("read body: %w", err)
	default:
		res.OK = true
	}
	return res
}
