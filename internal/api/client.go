// Package api is the JSON/REST client for the feed backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Authorizer supplies credentials for authenticated requests.
type Authorizer interface {
	AuthHeader(ctx context.Context) http.Header
}

// Request describes one call. Body, when non-nil, is sent as JSON.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Auth   bool
}

// Client performs JSON requests against one backend.
type Client struct {
	baseURL  string
	auth     Authorizer
	log      *zap.Logger
	http     *http.Client
	registry prometheus.Registerer
	metrics  *metrics
	tracing  trace.TracerProvider

	onUnauthorized atomic.Pointer[func(error)]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses h (copied) instead of a default client; its transport is wrapped.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		cp := *h
		c.http = &cp
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRegisterer registers request metrics on reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) { c.registry = reg }
}

// WithTracerProvider records a client span per request on tp instead of the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracing = tp }
}

// New constructs a Client. auth may be nil when no call needs credentials.
func New(baseURL string, auth Authorizer, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		auth:    auth,
		log:     zap.NewNop(),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}
	c.metrics = newMetrics(c.registry)
	if c.tracing == nil {
		c.tracing = otel.GetTracerProvider()
	}

	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.http.Transport = chain(base, c.log, c.metrics, c.tracing.Tracer(tracerName))
	return c
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// OnUnauthorized installs fn to be called with every 401 error, whichever
// caller triggered it.
func (c *Client) OnUnauthorized(fn func(error)) {
	if fn == nil {
		c.onUnauthorized.Store(nil)
		return
	}
	c.onUnauthorized.Store(&fn)
}

// URL joins the base URL and path.
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Do sends r and decodes a non-empty success body into out. On 204 or an
// empty body out is left untouched.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	target := c.URL(r.Path)
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", r.Method, r.Path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Auth && c.auth != nil {
		for k, vs := range c.auth.AuthHeader(ctx) {
			req.Header[k] = vs
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Method: r.Method, Path: r.Path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		e := &Error{
			Kind:       KindOf(resp.StatusCode),
			Method:     r.Method,
			Path:       r.Path,
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
			Body:       string(raw),
		}
		if e.Kind == KindUnauthorized {
			if fn := c.onUnauthorized.Load(); fn != nil {
				(*fn)(e)
			}
		}
		return e
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Method: r.Method, Path: r.Path, Status: resp.StatusCode, Err: err}
	}
	if len(bytes.TrimSpace(raw)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindParse, Method: r.Method, Path: r.Path, Status: resp.StatusCode, Body: string(raw), Err: err}
	}
	return nil
}

func statusText(resp *http.Response) string {
	if t := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))); t != "" {
		return t
	}
	return http.StatusText(resp.StatusCode)
}

func send[T any](ctx context.Context, c *Client, r Request) (T, error) {
	var out T
	err := c.Do(ctx, r, &out)
	return out, err
}

// Get issues an authenticated GET.
func Get[T any](ctx context.Context, c *Client, path string, q url.Values) (T, error) {
	return send[T](ctx, c, Request{Method: http.MethodGet, Path: path, Query: q, Auth: true})
}

// GetPublic issues a GET without credentials.
func GetPublic[T any](ctx context.Context, c *Client, path string, q url.Values) (T, error) {
	return send[T](ctx, c, Request{Method: http.MethodGet, Path: path, Query: q})
}

// Post issues an authenticated POST with a JSON body.
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return send[T](ctx, c, Request{Method: http.MethodPost, Path: path, Body: body, Auth: true})
}

// PostPublic issues a POST without credentials (login).
func PostPublic[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return send[T](ctx, c, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues an authenticated PUT with a JSON body.
func Put[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return send[T](ctx, c, Request{Method: http.MethodPut, Path: path, Body: body, Auth: true})
}

// Delete issues an authenticated DELETE.
func Delete[T any](ctx context.Context, c *Client, path string) (T, error) {
	return send[T](ctx, c, Request{Method: http.MethodDelete, Path: path, Auth: true})
}
