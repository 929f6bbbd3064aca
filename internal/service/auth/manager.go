// Package auth keeps one bearer token per backend and acquires a new one on
// demand. Concurrent callers that find no valid token share a single login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"MarketSync/internal/domain/models"
	"MarketSync/internal/domain/repository"
	"MarketSync/internal/service/kvstore"
	"MarketSync/pkg/logger"
)

// PersistKey is where the historical token survives restarts.
const PersistKey = "auth_token"

// ErrAcquire wraps every failed login.
var ErrAcquire = errors.New("token acquisition failed")

type Manager struct {
	acquirers map[models.TokenKind]Acquirer
	persisted *kvstore.Entry[string]

	mu     sync.Mutex
	tokens map[models.TokenKind]*models.Token
	group  singleflight.Group

	now     func() time.Time
	log     *logger.Logger
	metrics repository.Metrics
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithMetrics(mr repository.Metrics) Option {
	return func(m *Manager) { m.metrics = mr }
}

func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager wires one acquirer per kind. store may be nil, in which case the
// historical token is kept in memory only.
func NewManager(historical, live Acquirer, store *kvstore.Store, opts ...Option) *Manager {
	m := &Manager{
		acquirers: map[models.TokenKind]Acquirer{
			models.TokenHistorical: historical,
			models.TokenLive:       live,
		},
		tokens:  make(map[models.TokenKind]*models.Token, 2),
		now:     time.Now,
		log:     logger.Nop(),
		metrics: repository.NopMetrics{},
	}
	if store != nil {
		m.persisted = kvstore.NewEntry(store, PersistKey, "", kvstore.NoExpiry)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns a valid token for kind, acquiring one if needed.
func (m *Manager) Token(ctx context.Context, kind models.TokenKind) (string, error) {
	if v, ok := m.cached(ctx, kind); ok {
		return v, nil
	}

	v, err, shared := m.group.Do(kind.String(), func() (interface{}, error) {
		// a caller that lost the race may arrive after the winner stored the token
		if v, ok := m.cached(ctx, kind); ok {
			return v, nil
		}
		return m.acquire(context.WithoutCancel(ctx), kind)
	})
	if err != nil {
		return "", err
	}
	if shared {
		m.log.Debug("token acquisition shared", logger.String("kind", kind.String()))
	}
	return v.(string), nil
}

func (m *Manager) cached(ctx context.Context, kind models.TokenKind) (string, bool) {
	now := m.now()

	m.mu.Lock()
	tok := m.tokens[kind]
	m.mu.Unlock()
	if tok.Valid(now) {
		return tok.Value, true
	}

	if kind != models.TokenHistorical || m.persisted == nil || tok != nil {
		return "", false
	}

	raw := m.persisted.Get(ctx)
	if raw == "" {
		return "", false
	}
	exp, err := tokenExpiry(raw)
	if err != nil || !now.Before(exp) {
		if err := m.persisted.Delete(ctx); err != nil {
			m.log.Warn("drop persisted token failed", logger.Error(err))
		}
		return "", false
	}

	tok = &models.Token{Value: raw, ExpiresAt: exp, Persistent: true}
	m.mu.Lock()
	m.tokens[kind] = tok
	m.mu.Unlock()
	return raw, true
}

func (m *Manager) acquire(ctx context.Context, kind models.TokenKind) (string, error) {
	acq := m.acquirers[kind]
	if acq == nil {
		m.metrics.RecordTokenAcquisition(kind.String(), "error")
		return "", fmt.Errorf("%w: no acquirer for %s", ErrAcquire, kind)
	}

	raw, err := acq.Acquire(ctx)
	if err != nil {
		m.metrics.RecordTokenAcquisition(kind.String(), "error")
		m.log.Warn("token acquisition failed", logger.String("kind", kind.String()), logger.Error(err))
		return "", fmt.Errorf("%w (%s): %v", ErrAcquire, kind, err)
	}

	exp, err := tokenExpiry(raw)
	if err != nil {
		m.metrics.RecordTokenAcquisition(kind.String(), "error")
		return "", fmt.Errorf("%w (%s): %v", ErrAcquire, kind, err)
	}

	tok := &models.Token{Value: raw, ExpiresAt: exp, Persistent: kind == models.TokenHistorical}
	m.mu.Lock()
	m.tokens[kind] = tok
	m.mu.Unlock()

	if tok.Persistent && m.persisted != nil {
		if err := m.persisted.Set(ctx, raw); err != nil {
			m.log.Warn("persist token failed", logger.Error(err))
		}
	}

	m.metrics.RecordTokenAcquisition(kind.String(), "ok")
	m.log.Info("token acquired",
		logger.String("kind", kind.String()),
		logger.String("expires_at", exp.UTC().Format(time.RFC3339)),
	)
	return raw, nil
}

// Invalidate forgets the token for kind, including the persisted copy. The
// delete outlives ctx; if it still fails, an empty placeholder keeps cached()
// from reading the rejected token back.
func (m *Manager) Invalidate(ctx context.Context, kind models.TokenKind) {
	m.mu.Lock()
	delete(m.tokens, kind)
	m.mu.Unlock()

	if kind != models.TokenHistorical || m.persisted == nil {
		return
	}
	if err := m.persisted.Delete(context.WithoutCancel(ctx)); err != nil {
		m.log.Warn("drop persisted token failed", logger.Error(err))
		m.mu.Lock()
		m.tokens[kind] = &models.Token{}
		m.mu.Unlock()
	}
}

func (m *Manager) Logout(ctx context.Context) {
	m.Invalidate(ctx, models.TokenHistorical)
	m.Invalidate(ctx, models.TokenLive)
}
