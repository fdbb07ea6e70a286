package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ayusman/fingerspell/internal/gesture"
)

const sampleFileExt = ".json"

// FileStore keeps one JSON array of samples per label under
// <dir>/<language>/<side>/<label>.json.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file store rooted at dir. The directory is created
// lazily on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) partitionDir(side gesture.Side, language string) (string, error) {
	side, err := partition(side, language)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, language, string(side)), nil
}

func (s *FileStore) labelPath(label string, side gesture.Side, language string) (string, error) {
	dir, err := s.partitionDir(side, language)
	if err != nil {
		return "", err
	}
	if err := validateKey("label", label); err != nil {
		return "", err
	}
	return filepath.Join(dir, label+sampleFileExt), nil
}

// Load reads every label file for side and language. A missing directory
// yields an empty dataset; unreadable or malformed files are skipped.
func (s *FileStore) Load(_ context.Context, side gesture.Side, language string) (*gesture.Dataset, error) {
	dir, err := s.partitionDir(side, language)
	if err != nil {
		return nil, err
	}

	d := gesture.NewDataset()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, sampleFileExt) {
			continue
		}
		label := strings.TrimSuffix(name, sampleFileExt)
		if label == "" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("skipping unreadable sample file", "file", name, "error", err)
			continue
		}
		vecs, skipped, err := gesture.DecodeSampleFile(data)
		if err != nil {
			slog.Warn("skipping malformed sample file", "file", name, "error", err)
			continue
		}
		if skipped > 0 {
			slog.Warn("skipped malformed samples", "file", name, "skipped", skipped)
		}
		if len(vecs) == 0 {
			continue
		}
		if err := d.Merge(label, vecs); err != nil {
			slog.Warn("skipping sample file", "file", name, "error", err)
		}
	}

	return d, nil
}

// Save appends samples to the label file. Existing entries are kept as they
// are; a file that is not a JSON array is replaced. A file that cannot be
// read fails the save and is left untouched.
func (s *FileStore) Save(_ context.Context, label string, samples [][]float64, side gesture.Side, language string) (SaveResult, error) {
	path, err := s.labelPath(label, side, language)
	if err != nil {
		return SaveResult{}, err
	}
	if err := validateSamples(samples); err != nil {
		return SaveResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return SaveResult{}, fmt.Errorf("failed to create dataset directory: %w", err)
	}

	existing, err := readRawArray(path)
	if errors.Is(err, errNotArray) {
		slog.Warn("replacing malformed sample file", "path", path, "error", err)
		existing = nil
	} else if err != nil {
		return SaveResult{}, fmt.Errorf("failed to read sample file: %w", err)
	}

	merged := make([]json.RawMessage, 0, len(existing)+len(samples))
	merged = append(merged, existing...)
	for _, vec := range samples {
		raw, err := gesture.EncodeSample(vec)
		if err != nil {
			return SaveResult{}, err
		}
		merged = append(merged, raw)
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to encode samples: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return SaveResult{}, err
	}

	return SaveResult{Appended: len(samples), Total: len(merged)}, nil
}

// Stats counts the decodable samples of each label file.
func (s *FileStore) Stats(ctx context.Context, side gesture.Side, language string) ([]LabelCount, error) {
	d, err := s.Load(ctx, side, language)
	if err != nil {
		return nil, err
	}
	counts := make([]LabelCount, 0, d.Len())
	for _, label := range d.Labels() {
		counts = append(counts, LabelCount{Label: label, Samples: d.Count(label)})
	}
	return counts, nil
}

// Delete removes the label file and returns how many entries it held.
func (s *FileStore) Delete(_ context.Context, label string, side gesture.Side, language string) (int, error) {
	path, err := s.labelPath(label, side, language)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	existing, _ := readRawArray(path)
	if err := os.Remove(path); err != nil {
		return 0, fmt.Errorf("failed to delete sample file: %w", err)
	}
	return len(existing), nil
}

// errNotArray marks a label file whose content is not a JSON array.
var errNotArray = errors.New("sample file is not a JSON array")

// readRawArray returns the entries of a JSON array file. A missing file is
// an empty array.
func readRawArray(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errNotArray, err)
	}
	return raw, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace sample file: %w", err)
	}
	return nil
}
