package gesture

import (
	"sync"
	"sync/atomic"
)

// Model owns a reference dataset and the centroids derived from it.
//
// Mutations are serialized and rebuild the centroids from a copy of the
// dataset before swapping both in, so concurrent classification always sees
// a complete centroid map, possibly one mutation behind.
type Model struct {
	mu        sync.Mutex
	dataset   *Dataset
	centroids atomic.Pointer[CentroidMap]
}

// NewModel creates a model with an empty dataset.
func NewModel() *Model {
	m := &Model{dataset: NewDataset()}
	m.centroids.Store(NewCentroidMap())
	return m
}

// mutate applies fn to a copy of the dataset and commits it only when the
// centroids can be recomputed.
func (m *Model) mutate(fn func(d *Dataset) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.dataset.Clone()
	if err := fn(next); err != nil {
		return err
	}

	centroids, err := ComputeCentroids(next)
	if err != nil {
		return err
	}

	m.dataset = next
	m.centroids.Store(centroids)
	return nil
}

// AddSample records one feature vector for label.
func (m *Model) AddSample(label string, vec []float64) error {
	return m.mutate(func(d *Dataset) error {
		return d.AddSample(label, vec)
	})
}

// Merge appends samples to label.
func (m *Model) Merge(label string, samples [][]float64) error {
	return m.mutate(func(d *Dataset) error {
		return d.Merge(label, samples)
	})
}

// Clear empties the dataset.
func (m *Model) Clear() {
	_ = m.mutate(func(d *Dataset) error {
		d.Clear()
		return nil
	})
}

// Replace swaps in a freshly loaded dataset.
func (m *Model) Replace(d *Dataset) error {
	if d == nil {
		d = NewDataset()
	}
	return m.mutate(func(next *Dataset) error {
		*next = *d.Clone()
		return nil
	})
}

// Dataset returns a snapshot of the current dataset.
func (m *Model) Dataset() *Dataset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dataset.Clone()
}

// Centroids returns the current centroid snapshot.
func (m *Model) Centroids() *CentroidMap {
	return m.centroids.Load()
}

// Classify matches vec against the current centroids.
func (m *Model) Classify(vec []float64, threshold float64) Result {
	return Classify(vec, m.Centroids(), threshold)
}
