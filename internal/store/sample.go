package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ayusman/fingerspell/internal/gesture"
)

// Load reads every sample for side and language. Labels come back in the
// order they were first saved; rows that fail to decode are skipped.
func (s *SQLite) Load(ctx context.Context, side gesture.Side, language string) (*gesture.Dataset, error) {
	side, err := partition(side, language)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT label, data
		 FROM samples
		 WHERE language = ? AND side = ?
		 ORDER BY id`,
		language, string(side),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	d := gesture.NewDataset()
	skipped := 0
	for rows.Next() {
		var label, data string
		if err := rows.Scan(&label, &data); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		vec, err := gesture.DecodeSample(json.RawMessage(data))
		if err != nil {
			skipped++
			continue
		}
		if err := d.AddSample(label, vec); err != nil {
			skipped++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}

	if skipped > 0 {
		slog.Warn("skipped malformed samples", "language", language, "side", side, "skipped", skipped)
	}
	return d, nil
}

// Save appends samples to label in a single transaction and returns the
// label's new total.
func (s *SQLite) Save(ctx context.Context, label string, samples [][]float64, side gesture.Side, language string) (SaveResult, error) {
	side, err := partition(side, language)
	if err != nil {
		return SaveResult{}, err
	}
	if err := validateKey("label", label); err != nil {
		return SaveResult{}, err
	}
	if err := validateSamples(samples); err != nil {
		return SaveResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SaveResult{}, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (language, side, label, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return SaveResult{}, err
	}
	defer stmt.Close()

	for _, vec := range samples {
		data, err := gesture.EncodeSample(vec)
		if err != nil {
			return SaveResult{}, err
		}
		if _, err := stmt.ExecContext(ctx, language, string(side), label, string(data)); err != nil {
			return SaveResult{}, fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	var total int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM samples WHERE language = ? AND side = ? AND label = ?`,
		language, string(side), label,
	).Scan(&total)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to count samples: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, err
	}

	return SaveResult{Appended: len(samples), Total: total}, nil
}

// Stats returns per-label sample counts in first-saved order.
func (s *SQLite) Stats(ctx context.Context, side gesture.Side, language string) ([]LabelCount, error) {
	side, err := partition(side, language)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT label, COUNT(*)
		 FROM samples
		 WHERE language = ? AND side = ?
		 GROUP BY label
		 ORDER BY MIN(id)`,
		language, string(side),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	var counts []LabelCount
	for rows.Next() {
		var c LabelCount
		if err := rows.Scan(&c.Label, &c.Samples); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Delete removes every sample for label and returns how many were removed.
func (s *SQLite) Delete(ctx context.Context, label string, side gesture.Side, language string) (int, error) {
	side, err := partition(side, language)
	if err != nil {
		return 0, err
	}
	if err := validateKey("label", label); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM samples WHERE language = ? AND side = ? AND label = ?`,
		language, string(side), label,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete samples: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
