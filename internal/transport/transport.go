//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/transport.go -package=mocks . Transport

// Package transport sends single HTTP exchanges to the metering API and its
// token endpoint. Retries, authentication and decoding live above it.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries a per-exchange correlation id.
const RequestIDHeader = "X-Request-ID"

// Request describes one outbound exchange. At most one of Form and JSON is used
// as the body; Form wins when both are set.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Query  url.Values
	Form   url.Values
	JSON   interface{}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport performs a single request without retrying.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// HTTPOptions configures an HTTPTransport.
type HTTPOptions struct {
	Timeout   time.Duration // per exchange
	RateLimit float64       // requests per second, 0 disables limiting
	RateBurst int
	Logger    logrus.FieldLogger
}

// HTTPTransport is a Transport backed by net/http with an outbound rate limit.
type HTTPTransport struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  logrus.FieldLogger
}

func NewHTTPTransport(opts HTTPOptions) *HTTPTransport {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst < 1 {
		burst = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPTransport{
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

func (t *HTTPTransport) Do(ctx context.Context, req Request) (*Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return nil, err
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.JSON != nil:
		payload, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	t.logger.WithFields(logrus.Fields{
		"request_id": httpReq.Header.Get(RequestIDHeader),
		"method":     req.Method,
		"url":        httpReq.URL.Redacted(),
		"status":     resp.StatusCode,
		"duration":   time.Since(start).String(),
	}).Debug("HTTP exchange completed")

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func buildURL(raw string, query url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var _ Transport = (*HTTPTransport)(nil)
