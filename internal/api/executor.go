package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/meterclient/internal/apierr"
	"github.com/tejusbharadwaj/meterclient/internal/auth"
	"github.com/tejusbharadwaj/meterclient/internal/clock"
	"github.com/tejusbharadwaj/meterclient/internal/metrics"
	"github.com/tejusbharadwaj/meterclient/internal/transport"
)

const (
	DefaultBaseURL = "https://api.wstw.at/gateway/WN_SMART_METER_API/1.0/"

	// APIKeyHeader carries the gateway API key on every call.
	APIKeyHeader = "x-Gateway-APIKey"
)

var errInvalidBody = errors.New("response body is not valid JSON")

// TokenSource hands out bearer credentials and accepts rejections of them.
type TokenSource interface {
	Token(ctx context.Context) (auth.Credential, error)
	InvalidateIfCurrent(value string) bool
}

// RetryPolicy bounds the attempts of one logical call.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return apierr.Validationf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return apierr.Validationf("retry delay must not be negative, got %s", p.BaseDelay)
	}
	return nil
}

// MaxBackoff caps the wait between two attempts.
const MaxBackoff = time.Hour

// Backoff is the wait after the given failed attempt: BaseDelay * 2^(attempt-1),
// saturating at MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if delay >= MaxBackoff/2 {
			return MaxBackoff
		}
		delay *= 2
	}
	if delay > MaxBackoff {
		return MaxBackoff
	}
	return delay
}

type ExecutorConfig struct {
	BaseURL string
	APIKey  string
	Retry   RetryPolicy
}

// Executor performs authenticated API calls with retries and exponential
// backoff. A rejected credential is invalidated and the call retried.
type Executor struct {
	baseURL   string
	apiKey    string
	policy    RetryPolicy
	tokens    TokenSource
	transport transport.Transport
	clock     clock.Clock
	logger    logrus.FieldLogger
	metrics   *metrics.Metrics
}

func NewExecutor(
	cfg ExecutorConfig,
	tokens TokenSource,
	t transport.Transport,
	c clock.Clock,
	logger logrus.FieldLogger,
	m *metrics.Metrics,
) (*Executor, error) {
	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, apierr.Validation("api key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, apierr.Validationf("invalid base url %q", base)
	}
	return &Executor{
		baseURL:   strings.TrimRight(base, "/") + "/",
		apiKey:    cfg.APIKey,
		policy:    cfg.Retry,
		tokens:    tokens,
		transport: t,
		clock:     c,
		logger:    logger,
		metrics:   m,
	}, nil
}

// Execute calls endpoint (relative to the base URL) and returns the JSON body
// of the first successful attempt. GET sends params as the query string; POST
// sends body as JSON alongside the query string.
func (e *Executor) Execute(ctx context.Context, endpoint, method string, params url.Values, body interface{}) (json.RawMessage, error) {
	method = strings.ToUpper(method)
	if method != http.MethodGet && method != http.MethodPost {
		return nil, apierr.Validationf("HTTP method %s is not supported", method)
	}

	target := e.baseURL + strings.TrimLeft(endpoint, "/")
	route := routeLabel(endpoint)
	log := e.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"method":   method,
	})

	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		cred, err := e.tokens.Token(ctx)
		if err != nil {
			log.WithError(err).Error("No bearer token available, aborting request")
			return nil, err
		}

		header := http.Header{}
		header.Set("Authorization", "Bearer "+cred.Value)
		header.Set(APIKeyHeader, e.apiKey)

		req := transport.Request{
			Method: method,
			URL:    target,
			Header: header,
			Query:  params,
		}
		if method == http.MethodPost {
			req.JSON = body
		}

		start := e.clock.Now()
		resp, err := e.transport.Do(ctx, req)
		elapsed := e.clock.Now().Sub(start)
		attemptLog := log.WithField("attempt", attempt)

		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%s %s: %w", method, endpoint, ctxErr)
			}
			lastErr = err
			if transport.IsTimeout(err) {
				e.metrics.ObserveAttempt(route, metrics.OutcomeTimeout, elapsed)
				attemptLog.WithError(err).Warn("Request timed out")
			} else {
				e.metrics.ObserveAttempt(route, metrics.OutcomeTransport, elapsed)
				attemptLog.WithError(err).Error("Request failed")
			}

		case resp.StatusCode == http.StatusUnauthorized:
			lastErr = apierr.NewStatusError(resp.StatusCode, resp.Body)
			e.metrics.ObserveAttempt(route, metrics.OutcomeUnauthorized, elapsed)
			e.tokens.InvalidateIfCurrent(cred.Value)
			attemptLog.Warn("Bearer token rejected, invalidating")

		case !resp.OK():
			lastErr = apierr.NewStatusError(resp.StatusCode, resp.Body)
			e.metrics.ObserveAttempt(route, metrics.OutcomeStatus, elapsed)
			attemptLog.WithField("status", resp.StatusCode).Warn("Unexpected response status")

		case !json.Valid(resp.Body):
			lastErr = errInvalidBody
			e.metrics.ObserveAttempt(route, metrics.OutcomeInvalidBody, elapsed)
			attemptLog.Warn("Response body is not valid JSON")

		default:
			e.metrics.ObserveAttempt(route, metrics.OutcomeSuccess, elapsed)
			return json.RawMessage(resp.Body), nil
		}

		if attempt == e.policy.MaxAttempts {
			break
		}

		delay := e.policy.Backoff(attempt)
		e.metrics.ObserveRetry(route)
		attemptLog.WithField("delay", delay.String()).Info("Retrying request")
		if err := e.clock.Sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
		}
	}

	reqErr := apierr.Request(method, endpoint, e.policy.MaxAttempts, lastErr)
	log.WithError(reqErr).Error("Request failed after all attempts")
	return nil, reqErr
}

// routeLabel replaces the meter id segment so metric labels stay bounded.
func routeLabel(endpoint string) string {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	if len(parts) > 1 && parts[0] == "zaehlpunkte" && parts[1] != "messwerte" {
		parts[1] = "{id}"
	}
	return strings.Join(parts, "/")
}
