// Package api implements the typed client for the ledger REST backend.
//
// Every response travels in a {code, message, data} envelope; list endpoints
// additionally carry links/meta pagination metadata. Failures are normalized
// into the tagged *Error type. A 401 purges the cached credentials and fires
// the configured auth-failure hook before the error is returned.
package api

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
	"time"

	"github.com/P4X666/small-ledger/internal/log"
)

const defaultTimeout = 10 * time.Second

// TokenSource supplies the bearer token and purges cached credentials on
// authentication failure.
type TokenSource interface {
	Token() string
	Clear()
}

// Client talks to the ledger backend.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokens        TokenSource
	loading       *loadingTracker
	onAuthFailure func()
	logger        *log.Logger

	Transactions *TransactionsService
	Tasks        *TasksService
	Goals        *GoalsService
	Auth         *AuthService
}

type service struct {
	client *Client
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource sets the bearer token source.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) { c.tokens = tokens }
}

// WithLoadingIndicator sets the UI loading indicator.
func WithLoadingIndicator(indicator LoadingIndicator) Option {
	return func(c *Client) { c.loading = newLoadingTracker(indicator) }
}

// WithAuthFailureHook sets the hook fired after a 401 purged the credentials.
func WithAuthFailureHook(hook func()) Option {
	return func(c *Client) { c.onAuthFailure = hook }
}

// WithHTTPClient replaces the underlying HTTP client (used by tests).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger sets the structured logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger.WithComponent(log.ComponentAPI) }
}

// NewClient creates a client for the given base URL. A zero timeout falls
// back to the 10s default.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		loading:    newLoadingTracker(nil),
		logger:     log.New(slog.LevelInfo, log.ComponentAPI),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Transactions = &TransactionsService{service{c}}
	c.Tasks = &TasksService{service{c}}
	c.Goals = &GoalsService{service{c}}
	c.Auth = &AuthService{service{c}}

	return c
}

// requestOptions mirrors the per-request UI options of the host runtime.
type requestOptions struct {
	showLoading  bool
	loadingTitle string
	loadingMask  bool
}

func withLoading(title string) requestOptions {
	return requestOptions{showLoading: true, loadingTitle: title, loadingMask: true}
}

// Response is a decoded success envelope.
type Response struct {
	StatusCode int
	Header     http.Header
	Code       int
	Message    string
	Data       json.RawMessage
}

func (c *Client) get(ctx context.Context, path string, query url.Values, opt requestOptions) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, opt)
}

func (c *Client) post(ctx context.Context, path string, body any, opt requestOptions) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, nil, body, opt)
}

func (c *Client) put(ctx context.Context, path string, body any, opt requestOptions) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, nil, body, opt)
}

func (c *Client) delete(ctx context.Context, path string, opt requestOptions) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, nil, opt)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, opt requestOptions) (*Response, error) {
	if opt.showLoading {
		c.loading.begin(opt.loadingTitle, opt.loadingMask)
		defer c.loading.end()
	}

	fullURL := c.baseURL + path
	if encoded := compactQuery(query).Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindTransport, Message: "encode request body", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "request failed",
			log.FieldMethod, method,
			log.FieldPath, path,
			log.FieldError, err)
		return nil, &Error{Kind: KindTransport, Message: "网络请求失败", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "read response body", Err: err}
	}

	c.logger.DebugContext(ctx, "request completed",
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	var env envelope
	if len(raw) > 0 {
		// Tolerate non-envelope bodies on errors; the status code decides
		_ = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Code:       env.Code,
			Message:    env.Message,
			Data:       env.Data,
		}, nil
	}

	message := env.Message
	if message == "" {
		message = fmt.Sprintf("请求失败，状态码：%d", resp.StatusCode)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if c.tokens != nil {
			c.tokens.Clear()
		}
		if c.onAuthFailure != nil {
			c.onAuthFailure()
		}
		return nil, &Error{Kind: KindAuth, Status: resp.StatusCode, Message: message}
	}

	return nil, &Error{Kind: KindAPI, Status: resp.StatusCode, Message: message}
}

// compactQuery drops parameters with empty values, so optional filters never
// reach the wire as empty strings.
func compactQuery(query url.Values) url.Values {
	compacted := url.Values{}
	for key, values := range query {
		for _, value := range values {
			if value != "" {
				compacted.Add(key, value)
			}
		}
	}
	return compacted
}
