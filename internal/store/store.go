// Package store provides storage backends for Kisha farmer records.
//
// It includes an in-memory store plus SQLite and PostgreSQL backed stores.
// Lookups return (nil, nil) when no record exists.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/gramvikas/kisha/internal/models"
	"github.com/gramvikas/kisha/internal/util"
)

// Store defines persistence for farmer identity records.
type Store interface {
	// FindFarmerByNameAddress looks up a farmer by the exact (name, address) pair.
	FindFarmerByNameAddress(name, address string) (*models.Farmer, error)

	// GetFarmer retrieves a farmer by ID.
	GetFarmer(id string) (*models.Farmer, error)

	// UpsertFarmer inserts a farmer (assigning an ID) or updates an existing
	// record when the ID is set. Inserting a (name, address) pair that already
	// exists returns the existing record instead of creating a duplicate.
	UpsertFarmer(f models.Farmer) (models.Farmer, error)

	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration for store construction.
type Opts struct {
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithSQLiteDSN configures a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL-style DSNs and "sqlite"
// for anything else (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded in-memory store for farmer records.
// It is the default backend when no DSN is configured, and the backend used
// throughout the test suite.
type InMemoryStore struct {
	mu      sync.Mutex
	byID    map[string]models.Farmer
	byKey   map[string]string // (name, address) key -> farmer ID
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[string]models.Farmer),
		byKey: make(map[string]string),
	}
}

func identityKey(name, address string) string {
	return name + "\x00" + address
}

// FindFarmerByNameAddress looks up a farmer by exact (name, address) match.
func (s *InMemoryStore) FindFarmerByNameAddress(name, address string) (*models.Farmer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[identityKey(name, address)]
	if !ok {
		return nil, nil
	}
	f := s.byID[id]
	return &f, nil
}

// GetFarmer retrieves a farmer by ID.
func (s *InMemoryStore) GetFarmer(id string) (*models.Farmer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// UpsertFarmer inserts or updates a farmer record. The check-then-insert on
// (name, address) runs under the store mutex, so concurrent first contact by
// the same farmer yields a single record.
func (s *InMemoryStore) UpsertFarmer(f models.Farmer) (models.Farmer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if f.ID != "" {
		existing, ok := s.byID[f.ID]
		if ok {
			delete(s.byKey, identityKey(existing.Name, existing.Address))
		} else {
			f.CreatedAt = now
		}
		f.UpdatedAt = now
		s.byID[f.ID] = f
		s.byKey[identityKey(f.Name, f.Address)] = f.ID
		return f, nil
	}

	if id, ok := s.byKey[identityKey(f.Name, f.Address)]; ok {
		return s.byID[id], nil
	}

	f.ID = util.GenerateFarmerID()
	f.CreatedAt = now
	f.UpdatedAt = now
	s.byID[f.ID] = f
	s.byKey[identityKey(f.Name, f.Address)] = f.ID
	return f, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
