package store

import (
	"database/sql"
	"fmt"

	"github.com/gramvikas/kisha/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullFloat maps a nullable coordinate to its database value.
func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

// scanFarmerRow scans a Farmer from a single sql.Row, mapping sql.ErrNoRows
// to (nil, nil).
func scanFarmerRow(row *sql.Row, op string) (*models.Farmer, error) {
	var f models.Farmer
	var lat, lon sql.NullFloat64
	var lastProblem sql.NullString
	err := row.Scan(&f.ID, &f.Name, &f.Address, &f.Language, &lat, &lon, &lastProblem, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s scan failed: %w", op, err)
	}
	if lat.Valid {
		f.Latitude = &lat.Float64
	}
	if lon.Valid {
		f.Longitude = &lon.Float64
	}
	f.LastProblemSummary = lastProblem.String
	return &f, nil
}
