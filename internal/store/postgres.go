package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/gramvikas/kisha/internal/models"
	"github.com/gramvikas/kisha/internal/util"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists farmer records in a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running PostgreSQL migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// FindFarmerByNameAddress looks up a farmer by exact (name, address) match.
func (s *PostgresStore) FindFarmerByNameAddress(name, address string) (*models.Farmer, error) {
	row := s.db.QueryRow(
		`SELECT id, name, address, language, latitude, longitude, last_problem_summary, created_at, updated_at
		 FROM farmers WHERE name = $1 AND address = $2`, name, address)
	return scanFarmerRow(row, "FindFarmerByNameAddress")
}

// GetFarmer retrieves a farmer by ID.
func (s *PostgresStore) GetFarmer(id string) (*models.Farmer, error) {
	row := s.db.QueryRow(
		`SELECT id, name, address, language, latitude, longitude, last_problem_summary, created_at, updated_at
		 FROM farmers WHERE id = $1`, id)
	return scanFarmerRow(row, "GetFarmer")
}

// UpsertFarmer inserts a farmer or updates an existing record by ID.
// Inserts rely on the unique (name, address) index for conflict resolution.
func (s *PostgresStore) UpsertFarmer(f models.Farmer) (models.Farmer, error) {
	now := time.Now()
	if f.ID != "" {
		f.UpdatedAt = now
		_, err := s.db.Exec(
			`UPDATE farmers SET name = $1, address = $2, language = $3, latitude = $4, longitude = $5,
			 last_problem_summary = $6, updated_at = $7 WHERE id = $8`,
			f.Name, f.Address, f.Language, nullFloat(f.Latitude), nullFloat(f.Longitude),
			nilIfEmpty(f.LastProblemSummary), f.UpdatedAt, f.ID)
		if err != nil {
			slog.Error("PostgresStore UpsertFarmer update failed", "error", err, "id", f.ID)
			return models.Farmer{}, fmt.Errorf("failed to update farmer %s: %w", f.ID, err)
		}
		slog.Debug("PostgresStore UpsertFarmer updated", "id", f.ID)
		return f, nil
	}

	f.ID = util.GenerateFarmerID()
	f.CreatedAt = now
	f.UpdatedAt = now
	_, err := s.db.Exec(
		`INSERT INTO farmers (id, name, address, language, latitude, longitude, last_problem_summary, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (name, address) DO NOTHING`,
		f.ID, f.Name, f.Address, f.Language, nullFloat(f.Latitude), nullFloat(f.Longitude),
		nilIfEmpty(f.LastProblemSummary), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore UpsertFarmer insert failed", "error", err, "name", f.Name)
		return models.Farmer{}, fmt.Errorf("failed to insert farmer %s: %w", f.Name, err)
	}

	stored, err := s.FindFarmerByNameAddress(f.Name, f.Address)
	if err != nil {
		return models.Farmer{}, err
	}
	if stored == nil {
		return models.Farmer{}, fmt.Errorf("farmer %s vanished after insert", f.Name)
	}
	slog.Debug("PostgresStore UpsertFarmer inserted", "id", stored.ID, "name", stored.Name)
	return *stored, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
