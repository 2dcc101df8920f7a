// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	xerrors "erp-sync-service/internal/pkg/errors"
	"erp-sync-service/internal/pkg/jsonrpc"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const authFlightKey = "authenticate"

// Manager owns the single ERP session of the process. GetSession and
// InvalidateSession are the only operations that mutate it.
type Manager struct {
	transport jsonrpc.Transport
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	current *Session

	flight        singleflight.Group
	inFlight      atomic.Bool
	logins        atomic.Int64
	invalidations atomic.Int64
}

func NewManager(transport jsonrpc.Transport, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		transport: transport,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the time source; used by tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// GetSession returns the cached session while it is outside the refresh
// window, otherwise joins (or starts) the single authentication in flight.
func (m *Manager) GetSession(ctx context.Context) (*Session, error) {
	if s := m.fresh(); s != nil {
		return s, nil
	}

	ch := m.flight.DoChan(authFlightKey, func() (interface{}, error) {
		// another flight may have completed between fresh() and DoChan
		if s := m.fresh(); s != nil {
			return s, nil
		}
		// the flight outlives any single caller's cancellation
		authCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.CallTimeout)
		defer cancel()
		return m.Authenticate(authCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	}
}

// Authenticate performs the login exchange and installs the new session.
// Callers should prefer GetSession, which de-duplicates concurrent logins.
func (m *Manager) Authenticate(ctx context.Context) (*Session, error) {
	m.inFlight.Store(true)
	defer m.inFlight.Store(false)

	creds := m.cfg.Credentials
	res, err := m.transport.Authenticate(ctx, creds.Database, creds.Login, creds.Password)
	if err != nil {
		var authErr *xerrors.AuthenticationError
		if !errors.As(err, &authErr) {
			authErr = &xerrors.AuthenticationError{Reason: "login exchange failed", Err: err}
		}
		if authErr.Rejected {
			// stale credentials: nothing cached is trustworthy any more
			m.InvalidateSession()
		}
		m.logger.Error("erp authentication failed",
			zap.String("database", creds.Database),
			zap.String("login", creds.Login),
			zap.Bool("rejected", authErr.Rejected),
			zap.Error(err),
		)
		return nil, authErr
	}

	now := m.now()
	s := &Session{
		Token:     res.SessionToken,
		UserID:    res.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.Lifetime),
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	m.logins.Add(1)

	m.logger.Info("erp session established",
		zap.Int64("user_id", s.UserID),
		zap.Time("expires_at", s.ExpiresAt),
	)
	return s, nil
}

// InvalidateSession clears the cached session. Idempotent.
func (m *Manager) InvalidateSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current = nil
		m.invalidations.Add(1)
	}
}

// invalidateIfCurrent clears the cache only if it still holds stale, so a
// caller that failed with an old session cannot wipe a newer one.
func (m *Manager) invalidateIfCurrent(stale *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.Token == stale.Token {
		m.current = nil
		m.invalidations.Add(1)
	}
}

// CallRemote issues model.method with the configured retry budget.
func (m *Manager) CallRemote(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	return m.CallRemoteWithRetries(ctx, model, method, args, kwargs, m.cfg.MaxRetries)
}

// CallRemoteWithRetries issues model.method, retrying from scratch with a
// fresh session while the remote reports session expiry and attempts remain.
func (m *Manager) CallRemoteWithRetries(ctx context.Context, model, method string, args []any, kwargs map[string]any, maxRetries int) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		s, err := m.GetSession(ctx)
		if err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		result, err := m.transport.Call(callCtx, s.Token, model, method, args, kwargs)
		cancel()
		if err == nil {
			return result, nil
		}

		if !jsonrpc.IsSessionExpired(err) {
			return nil, wrapRemote(model, method, err)
		}

		lastErr = err
		m.invalidateIfCurrent(s)
		m.logger.Warn("erp session expired, retrying",
			zap.String("model", model),
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
		)
	}

	expired := &xerrors.SessionExpiredError{Message: lastErr.Error()}
	remote := wrapRemote(model, method, lastErr)
	remote.Err = expired
	return nil, remote
}

// State reports where the session is in its lifecycle.
func (m *Manager) State() State {
	if m.inFlight.Load() {
		return StateAuthenticating
	}
	m.mu.RLock()
	s := m.current
	m.mu.RUnlock()
	return m.stateOf(s)
}

// Status is State plus token-free session details.
func (m *Manager) Status() Status {
	m.mu.RLock()
	s := m.current
	m.mu.RUnlock()

	st := Status{
		State:         m.State(),
		Logins:        m.logins.Load(),
		Invalidations: m.invalidations.Load(),
	}
	if s != nil {
		created, expires := s.CreatedAt, s.ExpiresAt
		st.UserID = s.UserID
		st.CreatedAt = &created
		st.ExpiresAt = &expires
	}
	return st
}

func (m *Manager) fresh() *Session {
	m.mu.RLock()
	s := m.current
	m.mu.RUnlock()
	if m.stateOf(s) == StateValid {
		return s
	}
	return nil
}

func (m *Manager) stateOf(s *Session) State {
	if s == nil {
		return StateAbsent
	}
	now := m.now()
	switch {
	case !now.Before(s.ExpiresAt):
		return StateExpired
	case !now.Before(s.ExpiresAt.Add(-m.cfg.RefreshWindow)):
		return StateExpiringSoon
	default:
		return StateValid
	}
}

func wrapRemote(model, method string, err error) *xerrors.RemoteCallError {
	remote := &xerrors.RemoteCallError{Model: model, Method: method, Err: err, Message: err.Error()}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		remote.Code = rpcErr.Code
		remote.Name = rpcErr.Name
	}
	return remote
}
