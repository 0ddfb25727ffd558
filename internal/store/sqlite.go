package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/gramvikas/kisha/internal/models"
	"github.com/gramvikas/kisha/internal/util"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists farmer records in an SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// FindFarmerByNameAddress looks up a farmer by exact (name, address) match.
func (s *SQLiteStore) FindFarmerByNameAddress(name, address string) (*models.Farmer, error) {
	row := s.db.QueryRow(
		`SELECT id, name, address, language, latitude, longitude, last_problem_summary, created_at, updated_at
		 FROM farmers WHERE name = ? AND address = ?`, name, address)
	return scanFarmerRow(row, "FindFarmerByNameAddress")
}

// GetFarmer retrieves a farmer by ID.
func (s *SQLiteStore) GetFarmer(id string) (*models.Farmer, error) {
	row := s.db.QueryRow(
		`SELECT id, name, address, language, latitude, longitude, last_problem_summary, created_at, updated_at
		 FROM farmers WHERE id = ?`, id)
	return scanFarmerRow(row, "GetFarmer")
}

// UpsertFarmer inserts a farmer or updates an existing record by ID.
// Inserts rely on the unique (name, address) index: a conflicting insert is a
// no-op and the existing record is returned.
func (s *SQLiteStore) UpsertFarmer(f models.Farmer) (models.Farmer, error) {
	now := time.Now()
	if f.ID != "" {
		f.UpdatedAt = now
		_, err := s.db.Exec(
			`UPDATE farmers SET name = ?, address = ?, language = ?, latitude = ?, longitude = ?,
			 last_problem_summary = ?, updated_at = ? WHERE id = ?`,
			f.Name, f.Address, f.Language, nullFloat(f.Latitude), nullFloat(f.Longitude),
			nilIfEmpty(f.LastProblemSummary), f.UpdatedAt, f.ID)
		if err != nil {
			slog.Error("SQLiteStore UpsertFarmer update failed", "error", err, "id", f.ID)
			return models.Farmer{}, fmt.Errorf("failed to update farmer %s: %w", f.ID, err)
		}
		slog.Debug("SQLiteStore UpsertFarmer updated", "id", f.ID)
		return f, nil
	}

	f.ID = util.GenerateFarmerID()
	f.CreatedAt = now
	f.UpdatedAt = now
	_, err := s.db.Exec(
		`INSERT INTO farmers (id, name, address, language, latitude, longitude, last_problem_summary, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name, address) DO NOTHING`,
		f.ID, f.Name, f.Address, f.Language, nullFloat(f.Latitude), nullFloat(f.Longitude),
		nilIfEmpty(f.LastProblemSummary), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore UpsertFarmer insert failed", "error", err, "name", f.Name)
		return models.Farmer{}, fmt.Errorf("failed to insert farmer %s: %w", f.Name, err)
	}

	// Re-read so a conflicting concurrent insert resolves to the winning row.
	stored, err := s.FindFarmerByNameAddress(f.Name, f.Address)
	if err != nil {
		return models.Farmer{}, err
	}
	if stored == nil {
		return models.Farmer{}, fmt.Errorf("farmer %s vanished after insert", f.Name)
	}
	slog.Debug("SQLiteStore UpsertFarmer inserted", "id", stored.ID, "name", stored.Name)
	return *stored, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
