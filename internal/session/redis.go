package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gramvikas/kisha/internal/models"
	backend "github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces session keys in a shared Redis instance.
const DefaultRedisPrefix = "kisha:session:"

// RedisManager keeps sessions in Redis with per-key TTL.
//
// Mutations are serialized per session key with a process-local lock; the
// sticky-session routing of the transport layer keeps one session on one
// process.
type RedisManager struct {
	client *backend.Client
	prefix string
	ttl    time.Duration

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is a refcounted per-session mutex. The refcount lets the lock
// entry be removed from the map once no Update holds or waits on it, so the
// map does not grow with every session ID the process has ever seen.
type sessionLock struct {
	sync.Mutex
	refs int
}

// NewRedisManager creates a Redis-backed session manager from an existing client.
func NewRedisManager(client *backend.Client, opts ...Option) *RedisManager {
	cfg := Opts{TTL: DefaultTTL, Prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("RedisManager created", "ttl", cfg.TTL, "prefix", cfg.Prefix)
	return &RedisManager{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		locks:  make(map[string]*sessionLock),
	}
}

func (m *RedisManager) key(sessionID string) string {
	return m.prefix + sessionID
}

func (m *RedisManager) acquire(sessionID string) *sessionLock {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		m.locks[sessionID] = l
	}
	l.refs++
	m.mu.Unlock()
	l.Lock()
	return l
}

func (m *RedisManager) release(sessionID string, l *sessionLock) {
	l.Unlock()
	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, sessionID)
	}
	m.mu.Unlock()
}

// Update loads (or creates) the session, runs fn, and writes the result back
// with a refreshed TTL, all under the session's lock.
func (m *RedisManager) Update(ctx context.Context, sessionID string, fn func(*models.Session) error) (models.Session, error) {
	l := m.acquire(sessionID)
	defer m.release(sessionID, l)

	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	if sess == nil {
		now := time.Now()
		sess = &models.Session{
			ID:        sessionID,
			Step:      models.StepUninitialized,
			Language:  models.LanguageHindi,
			CreatedAt: now,
			UpdatedAt: now,
		}
		slog.Debug("RedisManager created session", "sessionID", sessionID)
	}

	if err := fn(sess); err != nil {
		return *sess, err
	}
	sess.UpdatedAt = time.Now()

	data, err := json.Marshal(sess)
	if err != nil {
		return *sess, fmt.Errorf("failed to marshal session %s: %w", sessionID, err)
	}
	if err := m.client.Set(ctx, m.key(sessionID), data, m.ttl).Err(); err != nil {
		slog.Error("RedisManager Update save failed", "error", err, "sessionID", sessionID)
		return *sess, fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	return *sess, nil
}

// Get retrieves a session without creating it.
func (m *RedisManager) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return m.load(ctx, sessionID)
}

func (m *RedisManager) load(ctx context.Context, sessionID string) (*models.Session, error) {
	val, err := m.client.Get(ctx, m.key(sessionID)).Result()
	if err == backend.Nil {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisManager load failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	var sess models.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// Count reports the number of live sessions under the manager's prefix.
func (m *RedisManager) Count(ctx context.Context) (int, error) {
	var count int
	iter := m.client.Scan(ctx, 0, m.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return count, nil
}

// Stop closes the Redis client.
func (m *RedisManager) Stop() error {
	return m.client.Close()
}
