package medullar

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/af-corp/medullar-gateway/internal/telemetry"
)

// DefaultBaseURL is the production Medullar API.
const DefaultBaseURL = "https://api.medullar.com"

// Service segments select the API subsystem handling a request.
const (
	ServiceAuth       = "auth"
	ServiceAI         = "ai"
	ServiceExplorator = "explorator"
)

const (
	pageLimit  = 1000
	pageOffset = 0
)

// RequestOptions is the fully built outbound request handed to a Transport.
// Body is nil when the request carries no body.
type RequestOptions struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   url.Values
	Body    any
	JSON    bool
}

// Transport attaches credentials and performs the HTTP call. Implementations
// return the raw response body and a *StatusError for non-2xx responses.
type Transport interface {
	Do(ctx context.Context, opts *RequestOptions) ([]byte, error)
}

// Option overrides a field of the default request. Options run after the
// defaults are set, so the last writer wins.
type Option func(*RequestOptions)

func WithMethod(method string) Option {
	return func(o *RequestOptions) { o.Method = method }
}

func WithURL(u string) Option {
	return func(o *RequestOptions) { o.URL = u }
}

// WithHeaders replaces the whole header set, including Content-Type.
func WithHeaders(h map[string]string) Option {
	return func(o *RequestOptions) { o.Headers = h }
}

func WithQuery(q url.Values) Option {
	return func(o *RequestOptions) { o.Query = q }
}

func WithBody(body any) Option {
	return func(o *RequestOptions) { o.Body = body }
}

// Client talks to the Medullar REST API through an injected Transport.
type Client struct {
	baseURL   string
	transport Transport
	logger    *slog.Logger
	metrics   *telemetry.Metrics
}

type ClientOption func(*Client)

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *telemetry.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func NewClient(baseURL string, transport Transport, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: transport,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildRequest assembles the request for {baseURL}/{service}/v1/{path} without
// sending it.
func (c *Client) BuildRequest(method, path, service string, body any, query url.Values, opts ...Option) *RequestOptions {
	if service == "" {
		service = ServiceAuth
	}
	req := &RequestOptions{
		Method: method,
		URL:    c.baseURL + "/" + service + "/v1/" + strings.TrimLeft(path, "/"),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Query: query,
		Body:  body,
		JSON:  true,
	}
	for _, opt := range opts {
		opt(req)
	}
	if isEmptyBody(req.Body) {
		req.Body = nil
	}
	return req
}

// Request builds and sends a request, returning the raw response body. Every
// failure is wrapped into an *APIError.
func (c *Client) Request(ctx context.Context, method, path, service string, body any, query url.Values, opts ...Option) (json.RawMessage, error) {
	req := c.BuildRequest(method, path, service, body, query, opts...)
	if service == "" {
		service = ServiceAuth
	}

	start := time.Now()
	resp, err := c.transport.Do(ctx, req)
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		var se *StatusError
		if errors.As(err, &se) {
			status = strconv.Itoa(se.StatusCode)
		}
	}
	if c.metrics != nil {
		c.metrics.RecordUpstream(service, req.Method, status, float64(duration.Milliseconds()))
	}

	if err != nil {
		c.logger.Debug("medullar request failed",
			"method", req.Method,
			"url", req.URL,
			"status", status,
			"duration_ms", duration.Milliseconds(),
		)
		return nil, wrapAPIError(req, err)
	}

	c.logger.Debug("medullar request completed",
		"method", req.Method,
		"url", req.URL,
		"duration_ms", duration.Milliseconds(),
	)
	return json.RawMessage(resp), nil
}

func wrapAPIError(req *RequestOptions, err error) error {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae
	}
	apiErr := &APIError{Method: req.Method, URL: req.URL, Err: err}
	var se *StatusError
	if errors.As(err, &se) {
		apiErr.StatusCode = se.StatusCode
		if json.Valid(se.Body) {
			apiErr.Payload = json.RawMessage(se.Body)
		} else if len(se.Body) > 0 {
			payload, _ := json.Marshal(map[string]string{"message": string(se.Body)})
			apiErr.Payload = payload
		}
	}
	return apiErr
}

// isEmptyBody reports whether body is nil or an empty map. The API rejects an
// empty JSON object on GET.
func isEmptyBody(body any) bool {
	if body == nil {
		return true
	}
	v := reflect.ValueOf(body)
	switch v.Kind() {
	case reflect.Map:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func pageQuery(filterKey, filterValue string) url.Values {
	q := url.Values{}
	q.Set(filterKey, filterValue)
	q.Set("limit", strconv.Itoa(pageLimit))
	q.Set("offset", strconv.Itoa(pageOffset))
	return q
}

func isBlank(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
