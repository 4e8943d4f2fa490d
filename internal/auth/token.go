// Package auth manages the OAuth2 client-credentials bearer token used for
// every metering API call.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/tejusbharadwaj/meterclient/internal/apierr"
	"github.com/tejusbharadwaj/meterclient/internal/clock"
	"github.com/tejusbharadwaj/meterclient/internal/metrics"
	"github.com/tejusbharadwaj/meterclient/internal/transport"
)

const (
	DefaultTokenURL = "https://log.wien/auth/realms/logwien/protocol/openid-connect/token"

	// DefaultLifetime applies when the token response omits expires_in.
	DefaultLifetime = 300 * time.Second

	// ExpiryBuffer is subtracted from the reported lifetime.
	ExpiryBuffer = 10 * time.Second

	// DefaultRefreshTimeout bounds one shared refresh, all attempts included.
	DefaultRefreshTimeout = 2 * time.Minute
)

// Credential is a bearer token and the instant it stops being used.
type Credential struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the credential can still be sent at now.
func (c Credential) Valid(now time.Time) bool {
	return c.Value != "" && now.Before(c.ExpiresAt)
}

type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	MaxAttempts  int
	RetryDelay   time.Duration // constant delay between exchange attempts

	// RefreshTimeout bounds a refresh independently of the caller that
	// started it. Zero means DefaultRefreshTimeout.
	RefreshTimeout time.Duration
}

type tokenResponse struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   *float64 `json:"expires_in"`
}

// Manager caches one credential and refreshes it on demand. Concurrent
// refreshes share a single exchange.
type Manager struct {
	cfg       Config
	transport transport.Transport
	clock     clock.Clock
	logger    logrus.FieldLogger
	metrics   *metrics.Metrics

	mu    sync.Mutex
	cred  Credential
	group singleflight.Group
}

func NewManager(cfg Config, t transport.Transport, c clock.Clock, logger logrus.FieldLogger, m *metrics.Metrics) (*Manager, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, apierr.Validation("client id and client secret are required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, apierr.Validationf("max attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.RetryDelay < 0 {
		return nil, apierr.Validationf("retry delay must not be negative, got %s", cfg.RetryDelay)
	}
	if cfg.RefreshTimeout < 0 {
		return nil, apierr.Validationf("refresh timeout must not be negative, got %s", cfg.RefreshTimeout)
	}
	if cfg.RefreshTimeout == 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	return &Manager{
		cfg:       cfg,
		transport: t,
		clock:     c,
		logger:    logger,
		metrics:   m,
	}, nil
}

// Token returns the cached credential while it is valid and exchanges the
// client credentials for a new one otherwise.
//
// The exchange runs detached from ctx so that one waiter giving up does not
// fail the others sharing it. ctx only bounds how long this caller waits.
func (m *Manager) Token(ctx context.Context) (Credential, error) {
	if cred, ok := m.current(); ok {
		return cred, nil
	}

	ch := m.group.DoChan("token", func() (interface{}, error) {
		if cred, ok := m.current(); ok {
			return cred, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.RefreshTimeout)
		defer cancel()
		return m.refresh(rctx)
	})

	select {
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Credential{}, res.Err
		}
		return res.Val.(Credential), nil
	}
}

// Invalidate drops the cached credential.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = Credential{}
}

// InvalidateIfCurrent drops the cached credential only if its value is still
// value, and reports whether it did.
func (m *Manager) InvalidateIfCurrent(value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred.Value == "" || m.cred.Value != value {
		return false
	}
	m.cred = Credential{}
	return true
}

func (m *Manager) current() (Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred, m.cred.Valid(m.clock.Now())
}

func (m *Manager) refresh(ctx context.Context) (Credential, error) {
	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		cred, err := m.exchange(ctx)
		if err == nil {
			m.mu.Lock()
			m.cred = cred
			m.mu.Unlock()

			m.metrics.ObserveTokenRefresh(metrics.OutcomeSuccess)
			m.logger.WithFields(logrus.Fields{
				"attempt":    attempt,
				"expires_at": cred.ExpiresAt.UTC().Format(time.RFC3339),
			}).Info("Obtained bearer token")
			return cred, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Credential{}, ctxErr
		}

		lastErr = err
		m.metrics.ObserveTokenRefresh(metrics.OutcomeFailure)
		m.logger.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": m.cfg.MaxAttempts,
		}).WithError(err).Warn("Token request failed")

		if attempt < m.cfg.MaxAttempts {
			if err := m.clock.Sleep(ctx, m.cfg.RetryDelay); err != nil {
				return Credential{}, err
			}
		}
	}

	authErr := apierr.Auth(m.cfg.MaxAttempts, lastErr)
	m.logger.WithError(authErr).Error("Giving up on bearer token")
	return Credential{}, authErr
}

func (m *Manager) exchange(ctx context.Context) (Credential, error) {
	resp, err := m.transport.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    m.cfg.TokenURL,
		Form: url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {m.cfg.ClientID},
			"client_secret": {m.cfg.ClientSecret},
		},
	})
	if err != nil {
		return Credential{}, err
	}
	if !resp.OK() {
		return Credential{}, apierr.NewStatusError(resp.StatusCode, resp.Body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		return Credential{}, fmt.Errorf("invalid token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Credential{}, errors.New("token response has no access_token")
	}

	lifetime := DefaultLifetime
	if tr.ExpiresIn != nil {
		lifetime = time.Duration(*tr.ExpiresIn * float64(time.Second))
	}
	return Credential{
		Value:     tr.AccessToken,
		ExpiresAt: m.clock.Now().Add(lifetime - ExpiryBuffer),
	}, nil
}
