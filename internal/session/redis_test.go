package session

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gramvikas/kisha/internal/models"
	backend "github.com/redis/go-redis/v9"
)

func newTestRedisManager(t *testing.T) *RedisManager {
	t.Helper()
	srv := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: srv.Addr()})
	m := NewRedisManager(client)
	t.Cleanup(func() { m.Stop() })
	return m
}

func TestRedisUpdateCreatesAndPersists(t *testing.T) {
	m := newTestRedisManager(t)
	ctx := context.Background()

	sess, err := m.Update(ctx, "s1", func(s *models.Session) error {
		if s.Step != models.StepUninitialized {
			t.Errorf("Expected new session at step %d, got %d", models.StepUninitialized, s.Step)
		}
		s.Step = models.StepAwaitName
		s.Name = "Ravi"
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if sess.Step != models.StepAwaitName {
		t.Errorf("Expected step %d, got %d", models.StepAwaitName, sess.Step)
	}

	got, err := m.Get(ctx, "s1")
	if err != nil || got == nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Ravi" || got.Step != models.StepAwaitName {
		t.Errorf("Expected persisted session, got %+v", got)
	}
}

func TestRedisGetReturnsNilWhenAbsent(t *testing.T) {
	m := newTestRedisManager(t)

	got, err := m.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for absent session, got %+v", got)
	}
}

func TestRedisUpdateErrorSkipsSave(t *testing.T) {
	m := newTestRedisManager(t)
	ctx := context.Background()

	if _, err := m.Update(ctx, "s1", func(s *models.Session) error {
		return models.ErrInvalidStep
	}); err == nil {
		t.Fatal("Expected error from Update to propagate")
	}

	got, err := m.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected no session saved after failed update, got %+v", got)
	}
}

func TestRedisUpdateReleasesSessionLocks(t *testing.T) {
	m := newTestRedisManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []string{"s1", "s2", "s3"} {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, _ = m.Update(ctx, id, func(s *models.Session) error {
					s.Step = models.StepAwaitName
					return nil
				})
			}(id)
		}
	}
	wg.Wait()

	m.mu.Lock()
	remaining := len(m.locks)
	m.mu.Unlock()
	if remaining != 0 {
		t.Errorf("Expected lock map to be empty after updates, got %d entries", remaining)
	}
}

func TestRedisCountScansPrefix(t *testing.T) {
	m := newTestRedisManager(t)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		if _, err := m.Update(ctx, id, func(s *models.Session) error { return nil }); err != nil {
			t.Fatalf("Update %s failed: %v", id, err)
		}
	}

	count, err := m.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 sessions, got %d", count)
	}
}
