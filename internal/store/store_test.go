package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/fingerspell/internal/gesture"
	"github.com/ayusman/fingerspell/internal/pose"
)

func vec(v float64) []float64 {
	out := make([]float64, pose.FeatureLen)
	for i := range out {
		out[i] = v
	}
	return out
}

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends runs fn against every Persistence implementation.
func backends(t *testing.T, fn func(t *testing.T, p Persistence)) {
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newTestSQLite(t))
	})
	t.Run("file", func(t *testing.T) {
		fn(t, NewFileStore(t.TempDir()))
	})
}

func TestNewSQLite_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("expected path %q, got %q", dbPath, s.Path())
	}
}

func TestNewSQLite_RunsMigrations(t *testing.T) {
	s := newTestSQLite(t)

	var name string
	err := s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", "samples",
	).Scan(&name)
	if err != nil {
		t.Errorf("samples table should exist after migrations: %v", err)
	}

	err = s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name=?", "idx_samples_partition",
	).Scan(&name)
	if err != nil {
		t.Errorf("partition index should exist after migrations: %v", err)
	}
}

func TestSQLite_Close(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestSQLite_ReopenKeepsSamples(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	s.Save(ctx, "A", [][]float64{vec(0)}, gesture.SideLeft, "auslan")
	s.Close()

	s, err = NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	d, err := s.Load(ctx, gesture.SideLeft, "auslan")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if d.Count("A") != 1 {
		t.Errorf("expected 1 sample after reopen, got %d", d.Count("A"))
	}
}

func TestSQLite_LoadSkipsMalformedRows(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	s.Save(ctx, "A", [][]float64{vec(1)}, gesture.SideLeft, "auslan")
	if _, err := s.DB().Exec(
		`INSERT INTO samples (language, side, label, data) VALUES ('auslan', 'left', 'A', '[1,2,3]'), ('auslan', 'left', 'B', 'junk')`,
	); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	d, err := s.Load(ctx, gesture.SideLeft, "auslan")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if d.Count("A") != 1 || d.Count("B") != 0 || d.Len() != 1 {
		t.Errorf("expected only the valid sample, got %v", d.Map())
	}
}

func TestPersistence_SaveAndLoad(t *testing.T) {
	backends(t, func(t *testing.T, p Persistence) {
		ctx := context.Background()

		res, err := p.Save(ctx, "B", [][]float64{vec(1), vec(2)}, gesture.SideLeft, "auslan")
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if res.Appended != 2 || res.Total != 2 {
			t.Errorf("unexpected result %+v", res)
		}

		res, err = p.Save(ctx, "B", [][]float64{vec(3)}, gesture.SideLeft, "auslan")
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if res.Appended != 1 || res.Total != 3 {
			t.Errorf("expected merge to total 3, got %+v", res)
		}

		p.Save(ctx, "A", [][]float64{vec(0)}, gesture.SideLeft, "auslan")

		d, err := p.Load(ctx, gesture.SideLeft, "auslan")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if d.Count("B") != 3 || d.Count("A") != 1 {
			t.Errorf("unexpected counts %v", d.Map())
		}
		if got := d.Samples("B")[2][0]; got != 3 {
			t.Errorf("expected append order to be kept, got %f", got)
		}
	})
}

func TestPersistence_PartitionsAreIsolated(t *testing.T) {
	backends(t, func(t *testing.T, p Persistence) {
		ctx := context.Background()

		p.Save(ctx, "A", [][]float64{vec(0)}, gesture.SideLeft, "auslan")
		p.Save(ctx, "A", [][]float64{vec(1), vec(1)}, gesture.SideRight, "auslan")
		p.Save(ctx, "A", [][]float64{vec(2)}, gesture.SideLeft, "asl")

		d, _ := p.Load(ctx, gesture.SideRight, "auslan")
		if d.Count("A") != 2 {
			t.Errorf("expected right partition to hold 2 samples, got %d", d.Count("A"))
		}

		d, _ = p.Load(ctx, "LEFT", "asl")
		if d.Count("A") != 1 || d.Samples("A")[0][0] != 2 {
			t.Errorf("expected side to be matched case-insensitively, got %v", d.Map())
		}
	})
}

func TestPersistence_LoadMissingPartition(t *testing.T) {
	backends(t, func(t *testing.T, p Persistence) {
		d, err := p.Load(context.Background(), gesture.SideLeft, "nobody")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if d.Len() != 0 {
			t.Errorf("expected empty dataset, got %d labels", d.Len())
		}
	})
}

func TestPersistence_RejectsInvalidInput(t *testing.T) {
	backends(t, func(t *testing.T, p Persistence) {
		ctx := context.Background()

		keys := []struct {
			name, label, language string
			side                  gesture.Side
		}{
			{"empty label", "", "auslan", gesture.SideLeft},
			{"label traversal", "../x", "auslan", gesture.SideLeft},
			{"dot label", "..", "auslan", gesture.SideLeft},
			{"language traversal", "A", "../../etc", gesture.SideLeft},
			{"unknown side", "A", "auslan", "middle"},
		}
		for _, k := range keys {
			_, err := p.Save(ctx, k.label, [][]float64{vec(0)}, k.side, k.language)
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("%s: expected ErrInvalidKey, got %v", k.name, err)
			}
		}

		_, err := p.Save(ctx, "A", [][]float64{{1, 2, 3}}, gesture.SideLeft, "auslan")
		if !errors.Is(err, gesture.ErrDimensionMismatch) {
			t.Errorf("expected ErrDimensionMismatch, got %v", err)
		}

		d, _ := p.Load(ctx, gesture.SideLeft, "auslan")
		if d.Len() != 0 {
			t.Error("rejected saves must not persist anything")
		}
	})
}

func TestPersistence_StatsAndDelete(t *testing.T) {
	backends(t, func(t *testing.T, p Persistence) {
		ctx := context.Background()

		p.Save(ctx, "A", [][]float64{vec(0), vec(0)}, gesture.SideLeft, "auslan")
		p.Save(ctx, "B", [][]float64{vec(1)}, gesture.SideLeft, "auslan")

		stats, err := p.Stats(ctx, gesture.SideLeft, "auslan")
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		want := []LabelCount{{"A", 2}, {"B", 1}}
		if len(stats) != len(want) || stats[0] != want[0] || stats[1] != want[1] {
			t.Errorf("expected %v, got %v", want, stats)
		}

		n, err := p.Delete(ctx, "A", gesture.SideLeft, "auslan")
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 deleted samples, got %d", n)
		}

		n, err = p.Delete(ctx, "A", gesture.SideLeft, "auslan")
		if err != nil || n != 0 {
			t.Errorf("deleting a missing label should be a no-op, got %d %v", n, err)
		}

		d, _ := p.Load(ctx, gesture.SideLeft, "auslan")
		if d.Count("A") != 0 || d.Count("B") != 1 {
			t.Errorf("unexpected dataset after delete %v", d.Map())
		}
	})
}
