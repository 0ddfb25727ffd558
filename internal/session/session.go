// Package session provides the conversation session store.
//
// Sessions are ephemeral per-conversation state keyed by a caller-supplied
// identifier. The Manager interface is what the conversation engine depends
// on: get-or-create plus an atomic read-modify-write per session key, so that
// rapid retries on the same session cannot interleave and lose updates.
// Backends: an in-memory map with TTL eviction (default) and Redis.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gramvikas/kisha/internal/models"
)

// Default lifecycle configuration.
const (
	// DefaultTTL is how long an idle session survives before eviction.
	DefaultTTL = 30 * time.Minute
	// DefaultSweepInterval is how often expired sessions are collected.
	DefaultSweepInterval = 5 * time.Minute
)

// Manager defines the session store used by the conversation engine.
type Manager interface {
	// Update runs fn against the session for sessionID, creating the session
	// at StepUninitialized if it does not exist. Mutations for one session key
	// are serialized; distinct sessions proceed independently. The session
	// after fn is returned.
	Update(ctx context.Context, sessionID string, fn func(*models.Session) error) (models.Session, error)

	// Get retrieves a session without creating it. Returns (nil, nil) when absent.
	Get(ctx context.Context, sessionID string) (*models.Session, error)

	// Count reports the number of live sessions.
	Count(ctx context.Context) (int, error)

	// Stop halts background eviction and releases resources.
	Stop() error
}

// Opts holds configuration for session managers.
type Opts struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Prefix        string
}

// Option configures session manager construction.
type Option func(*Opts)

// WithTTL sets the idle expiry for sessions.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}

// WithSweepInterval sets how often the in-memory manager collects expired sessions.
func WithSweepInterval(interval time.Duration) Option {
	return func(o *Opts) { o.SweepInterval = interval }
}

// WithPrefix sets the key prefix used by the Redis manager.
func WithPrefix(prefix string) Option {
	return func(o *Opts) { o.Prefix = prefix }
}

type memoryEntry struct {
	mu      sync.Mutex
	session models.Session
	// touched is the unix-nano time of the last access, read by the sweep
	// goroutine without holding the entry or map lock.
	touched atomic.Int64
}

// InMemoryManager keeps sessions in a process-local map with TTL eviction.
type InMemoryManager struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewInMemoryManager creates an in-memory session manager and starts its
// eviction sweep.
func NewInMemoryManager(opts ...Option) *InMemoryManager {
	cfg := Opts{TTL: DefaultTTL, SweepInterval: DefaultSweepInterval}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &InMemoryManager{
		sessions: make(map[string]*memoryEntry),
		ttl:      cfg.TTL,
		done:     make(chan struct{}),
	}
	go m.sweep(cfg.SweepInterval)
	slog.Debug("InMemoryManager created", "ttl", cfg.TTL, "sweep_interval", cfg.SweepInterval)
	return m
}

func (m *InMemoryManager) entry(sessionID string) *memoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		now := time.Now()
		e = &memoryEntry{
			session: models.Session{
				ID:        sessionID,
				Step:      models.StepUninitialized,
				Language:  models.LanguageHindi,
				CreatedAt: now,
				UpdatedAt: now,
			},
		}
		m.sessions[sessionID] = e
		slog.Debug("InMemoryManager created session", "sessionID", sessionID)
	}
	e.touched.Store(time.Now().UnixNano())
	return e
}

// Update runs fn under the session's entry lock.
func (m *InMemoryManager) Update(ctx context.Context, sessionID string, fn func(*models.Session) error) (models.Session, error) {
	e := m.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := fn(&e.session); err != nil {
		return e.session, err
	}
	e.session.UpdatedAt = time.Now()
	e.touched.Store(e.session.UpdatedAt.UnixNano())
	return e.session, nil
}

// Get retrieves a session without creating it.
func (m *InMemoryManager) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	return &s, nil
}

// Count reports the number of live sessions.
func (m *InMemoryManager) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), nil
}

// Stop halts the eviction sweep.
func (m *InMemoryManager) Stop() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *InMemoryManager) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.ttl).UnixNano()
			m.mu.Lock()
			var evicted int
			for id, e := range m.sessions {
				if e.touched.Load() < cutoff {
					delete(m.sessions, id)
					evicted++
				}
			}
			m.mu.Unlock()
			if evicted > 0 {
				slog.Info("InMemoryManager evicted expired sessions", "count", evicted)
			}
		}
	}
}
