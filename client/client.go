package client

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

	"botadmin/internal/metrics"
	"botadmin/pkg/logger"

	"go.uber.org/zap"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultLoginRoute = "/login"
)

// Options configures a Client. Only BaseURL and Store are required.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Store      TokenStore
	Navigator  Navigator
	LoginRoute string
	HTTPClient *http.Client
	Observer   metrics.ClientObserver
}

// Client talks to the admin REST API. Every request carries the stored
// access token; a 401 triggers at most one refresh cycle at a time, and
// requests that fail while a cycle is running wait for its result.
type Client struct {
	base       string
	httpClient *http.Client
	store      TokenStore
	navigator  Navigator
	loginRoute string
	observer   metrics.ClientObserver

	mu          sync.Mutex
	defaultAuth string // access token minted by the last refresh cycle or login
	generation  uint64 // bumped every time defaultAuth is minted
	refreshing  bool
	queue       []chan refreshResult
}

func New(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		return nil, errors.New("client: base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("client: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: unsupported base URL scheme %q", u.Scheme)
	}
	if opts.Store == nil {
		return nil, errors.New("client: token store is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var hc http.Client
	if opts.HTTPClient != nil {
		hc = *opts.HTTPClient
	}
	if hc.Timeout == 0 {
		hc.Timeout = timeout
	}

	c := &Client{
		base:       strings.TrimRight(u.String(), "/") + "/",
		httpClient: &hc,
		store:      opts.Store,
		navigator:  opts.Navigator,
		loginRoute: opts.LoginRoute,
		observer:   opts.Observer,
	}
	if c.navigator == nil {
		c.navigator = LogNavigator{}
	}
	if c.loginRoute == "" {
		c.loginRoute = DefaultLoginRoute
	}
	if c.observer == nil {
		c.observer = metrics.NewNopObserver()
	}
	return c, nil
}

// BaseURL returns the API root every request path is resolved against.
func (c *Client) BaseURL() string {
	return c.base
}

// Request describes one logical API call. It can be sent more than once:
// the body is kept as bytes so a retry after a refresh replays it.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	Body        []byte
	ContentType string

	retried bool
}

// NewJSONRequest encodes in as the request body. A nil in sends no body.
func NewJSONRequest(method, path string, in any) (*Request, error) {
	req := &Request{Method: method, Path: path}
	if in == nil {
		return req, nil
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	req.Body = body
	req.ContentType = "application/json"
	return req, nil
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) Decode(v any) error {
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Do sends req with bearer authentication. Non-2xx statuses come back as
// *HTTPError, transport failures wrap ErrUnreachable, and terminal
// authentication failures wrap ErrSessionTerminated.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.attempt(ctx, req, token)
}

func (c *Client) attempt(ctx context.Context, req *Request, token string) (*Response, error) {
	c.mu.Lock()
	sentGen := c.generation
	c.mu.Unlock()

	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return c.recoverUnauthorized(ctx, req, token, sentGen, newHTTPError(req, resp))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := newHTTPError(req, resp)
		logger.Debug("api error",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", NormalizeError(httpErr)))
		return nil, httpErr
	}
	return resp, nil
}

// accessToken prefers the stored token and falls back to the one kept
// from the last refresh cycle.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	token, err := c.store.Get(ctx, AccessTokenKey)
	if err != nil {
		return "", fmt.Errorf("read access token: %w", err)
	}
	if token != "" {
		return token, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultAuth, nil
}

func (c *Client) send(ctx context.Context, req *Request, token string) (*Response, error) {
	target := c.resolve(req.Path, req.Query)

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create %s %s: %w", req.Method, req.Path, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
		}
		logger.Warn("api request failed", zap.String("method", req.Method), zap.String("path", req.Path), zap.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnreachable, req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %w", ErrUnreachable, req.Method, req.Path, err)
	}
	c.observer.ObserveRequest(req.Method, resp.StatusCode, time.Since(start).Seconds())

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       payload,
	}, nil
}

// setDefaultAuth records a freshly minted access token. Callers hold c.mu.
func (c *Client) setDefaultAuth(token string) {
	c.defaultAuth = token
	c.generation++
}

// resolve joins path onto the base URL. A leading slash does not escape
// the API root.
func (c *Client) resolve(path string, query url.Values) string {
	target := c.base + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return target
}

// MediaURL turns a media path returned by the API into an absolute URL on
// the server root (the base URL without its /api suffix).
func (c *Client) MediaURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http") {
		return path
	}
	root := strings.TrimRight(c.base, "/")
	root = strings.TrimSuffix(root, "/api")
	root = strings.TrimRight(root, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return root + path
}

// Authenticated reports whether an access token is stored.
func (c *Client) Authenticated(ctx context.Context) bool {
	token, err := c.store.Get(ctx, AccessTokenKey)
	return err == nil && token != ""
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	req := &Request{Method: http.MethodGet, Path: path, Query: query}
	return c.exchange(ctx, req, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.call(ctx, http.MethodPost, path, in, out)
}

func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	return c.call(ctx, http.MethodPut, path, in, out)
}

func (c *Client) Patch(ctx context.Context, path string, in, out any) error {
	return c.call(ctx, http.MethodPatch, path, in, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.call(ctx, http.MethodDelete, path, nil, nil)
}

// Upload sends form as multipart/form-data.
func (c *Client) Upload(ctx context.Context, method, path string, form *Form, out any) error {
	body, contentType, err := form.Encode()
	if err != nil {
		return err
	}
	req := &Request{Method: method, Path: path, Body: body, ContentType: contentType}
	return c.exchange(ctx, req, out)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	req, err := NewJSONRequest(method, path, in)
	if err != nil {
		return err
	}
	return c.exchange(ctx, req, out)
}

func (c *Client) exchange(ctx context.Context, req *Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}
