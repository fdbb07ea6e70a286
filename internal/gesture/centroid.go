package gesture

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when vectors that must be compared or
// averaged have different lengths.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Centroid is the mean feature vector of one label.
type Centroid struct {
	Label   string
	Vector  []float64
	Samples int
}

// CentroidMap holds one centroid per label in dataset label order.
// A CentroidMap is immutable once built and safe for concurrent reads.
type CentroidMap struct {
	entries []Centroid
	index   map[string]int
}

// NewCentroidMap builds a map from entries, keeping their order.
// A later entry with a duplicate label replaces the earlier vector in place.
func NewCentroidMap(entries ...Centroid) *CentroidMap {
	m := &CentroidMap{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if i, ok := m.index[e.Label]; ok {
			m.entries[i] = e
			continue
		}
		m.index[e.Label] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	return m
}

// Len returns the number of centroids.
func (m *CentroidMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Get returns the centroid vector for label.
func (m *CentroidMap) Get(label string) ([]float64, bool) {
	if m == nil {
		return nil, false
	}
	i, ok := m.index[label]
	if !ok {
		return nil, false
	}
	return m.entries[i].Vector, true
}

// Labels returns centroid labels in iteration order.
func (m *CentroidMap) Labels() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Label
	}
	return out
}

// Entries returns the centroids in iteration order.
func (m *CentroidMap) Entries() []Centroid {
	if m == nil {
		return nil
	}
	out := make([]Centroid, len(m.entries))
	copy(out, m.entries)
	return out
}

// Mean returns the element-wise arithmetic mean of vecs.
func Mean(vecs [][]float64) ([]float64, error) {
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no samples provided")
	}

	dim := len(vecs[0])
	for i, v := range vecs {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: sample %d has %d values, expected %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}

	mean := make([]float64, dim)
	for _, v := range vecs {
		for i, x := range v {
			mean[i] += x
		}
	}

	n := float64(len(vecs))
	for i := range mean {
		mean[i] /= n
	}

	return mean, nil
}

// ComputeCentroids averages every label with at least one sample.
// Labels without samples are omitted.
func ComputeCentroids(d *Dataset) (*CentroidMap, error) {
	m := &CentroidMap{index: make(map[string]int)}
	if d == nil {
		return m, nil
	}

	for _, label := range d.labels {
		samples := d.samples[label]
		if len(samples) == 0 {
			continue
		}

		mean, err := Mean(samples)
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", label, err)
		}

		m.index[label] = len(m.entries)
		m.entries = append(m.entries, Centroid{Label: label, Vector: mean, Samples: len(samples)})
	}

	return m, nil
}
