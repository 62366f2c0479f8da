package broker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wheel-trader/internal/errors"
	"wheel-trader/internal/models"
)

// DefaultSessionTimeout applies when the brokerage omits an expiration.
const DefaultSessionTimeout = 24 * time.Hour

// ExchangeFunc trades credentials for a session. ExpiresAt may be zero when
// the brokerage does not report one.
type ExchangeFunc func(ctx context.Context) (*models.Session, error)

// SessionManager caches the brokerage session token and refreshes it lazily
// when it is absent or expired. A rejected login is remembered and returned
// to every later caller until Refresh is called explicitly.
type SessionManager struct {
	exchange ExchangeFunc
	timeout  time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu       sync.Mutex
	session  *models.Session
	rejected error
}

// NewSessionManager creates a session manager using exchange to log in.
func NewSessionManager(exchange ExchangeFunc, timeout time.Duration, logger zerolog.Logger) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionManager{
		exchange: exchange,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the clock used for expiry checks.
func (m *SessionManager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Token returns a valid session token, logging in first when needed.
func (m *SessionManager) Token(ctx context.Context) (string, error) {
	s, err := m.Session(ctx)
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// Session returns the current valid session, logging in first when needed.
func (m *SessionManager) Session(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Valid(m.now()) {
		return m.session, nil
	}
	if m.rejected != nil {
		return nil, m.rejected
	}
	return m.refreshLocked(ctx)
}

// Refresh forces a new login regardless of the cached session or an earlier
// rejection.
func (m *SessionManager) Refresh(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = nil
	return m.refreshLocked(ctx)
}

func (m *SessionManager) refreshLocked(ctx context.Context) (*models.Session, error) {
	m.session = nil

	s, err := m.exchange(ctx)
	if err != nil {
		if errors.IsFatal(err) {
			m.rejected = err
		}
		return nil, err
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = m.now().Add(m.timeout)
	}

	m.session = s
	m.logger.Debug().
		Str("user", s.Username).
		Time("expires_at", s.ExpiresAt).
		Msg("Brokerage session established")
	return s, nil
}

// Invalidate drops the cached session.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
}

// IsAuthenticated reports whether a valid session is cached.
func (m *SessionManager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Valid(m.now())
}
