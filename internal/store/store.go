// Package store persists reference samples per language and hand side.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ayusman/fingerspell/internal/gesture"
	"github.com/ayusman/fingerspell/internal/pose"
	_ "modernc.org/sqlite"
)

// ErrInvalidKey is returned for labels, languages or sides that cannot be
// used as storage keys.
var ErrInvalidKey = errors.New("invalid storage key")

// SaveResult reports the outcome of appending samples to a label.
type SaveResult struct {
	Appended int `json:"appended"`
	Total    int `json:"count"`
}

// LabelCount is the number of stored samples for one label.
type LabelCount struct {
	Label   string `json:"label"`
	Samples int    `json:"samples"`
}

// Persistence loads and appends datasets partitioned by side and language.
type Persistence interface {
	Load(ctx context.Context, side gesture.Side, language string) (*gesture.Dataset, error)
	Save(ctx context.Context, label string, samples [][]float64, side gesture.Side, language string) (SaveResult, error)
	Stats(ctx context.Context, side gesture.Side, language string) ([]LabelCount, error)
	Delete(ctx context.Context, label string, side gesture.Side, language string) (int, error)
}

// SQLite stores samples in a SQLite database.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens the database at dbPath and runs migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Concurrent writers would otherwise fail with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLite{
		db:   db,
		path: dbPath,
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// validateKey checks one path-like key component.
func validateKey(kind, v string) error {
	switch {
	case v == "", v == ".", v == "..":
		return fmt.Errorf("%w: %s %q", ErrInvalidKey, kind, v)
	case strings.ContainsAny(v, `/\`+"\x00"):
		return fmt.Errorf("%w: %s %q", ErrInvalidKey, kind, v)
	}
	return nil
}

// partition validates side and language and returns the canonical side.
func partition(side gesture.Side, language string) (gesture.Side, error) {
	canon, err := gesture.ParseSide(string(side))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return canon, validateKey("language", language)
}

func validateSamples(samples [][]float64) error {
	for i, s := range samples {
		if len(s) != pose.FeatureLen {
			return fmt.Errorf("sample %d: %w: got %d values, want %d",
				i, gesture.ErrDimensionMismatch, len(s), pose.FeatureLen)
		}
	}
	return nil
}
