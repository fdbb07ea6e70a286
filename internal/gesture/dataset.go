// Package gesture provides the reference dataset, the centroid model and the
// nearest-centroid classifier used to recognize static fingerspelled letters,
// plus the temporal stabilizer that turns per-frame guesses into emissions.
package gesture

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyLabel is returned when a sample is recorded without a label.
var ErrEmptyLabel = errors.New("empty label")

// Side partitions datasets by the hand they were recorded with.
type Side string

const (
	// SideLeft holds samples recorded with the left hand.
	SideLeft Side = "left"
	// SideRight holds samples recorded with the right hand.
	SideRight Side = "right"
)

// ParseSide parses a side name case-insensitively.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return SideLeft, nil
	case "right":
		return SideRight, nil
	default:
		return "", fmt.Errorf("invalid side %q: want left or right", s)
	}
}

// Dataset maps labels to their recorded feature vectors.
//
// Labels keep their first insertion order and samples keep their append
// order. A Dataset is not safe for concurrent use; Model guards one.
type Dataset struct {
	labels  []string
	samples map[string][][]float64
}

// NewDataset creates an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{samples: make(map[string][][]float64)}
}

// ensure registers label if it is new.
func (d *Dataset) ensure(label string) {
	if _, ok := d.samples[label]; !ok {
		d.labels = append(d.labels, label)
		d.samples[label] = nil
	}
}

// AddSample appends one feature vector to label, creating the label if absent.
// Vector length is not checked here; ComputeCentroids reports mismatches.
func (d *Dataset) AddSample(label string, vec []float64) error {
	if label == "" {
		return ErrEmptyLabel
	}
	d.ensure(label)
	d.samples[label] = append(d.samples[label], cloneVec(vec))
	return nil
}

// Merge appends samples after the existing ones for label. Nothing is
// deduplicated or reordered. Merging zero samples still registers the label.
func (d *Dataset) Merge(label string, samples [][]float64) error {
	if label == "" {
		return ErrEmptyLabel
	}
	d.ensure(label)
	for _, s := range samples {
		d.samples[label] = append(d.samples[label], cloneVec(s))
	}
	return nil
}

// Clear resets the dataset to empty.
func (d *Dataset) Clear() {
	d.labels = nil
	d.samples = make(map[string][][]float64)
}

// Labels returns labels in insertion order.
func (d *Dataset) Labels() []string {
	out := make([]string, len(d.labels))
	copy(out, d.labels)
	return out
}

// Samples returns the samples recorded for label, oldest first.
// The returned vectors must not be modified.
func (d *Dataset) Samples(label string) [][]float64 {
	s := d.samples[label]
	out := make([][]float64, len(s))
	copy(out, s)
	return out
}

// Count returns the number of samples for label.
func (d *Dataset) Count(label string) int {
	return len(d.samples[label])
}

// Len returns the number of labels, including labels with no samples.
func (d *Dataset) Len() int {
	return len(d.labels)
}

// Total returns the number of samples across all labels.
func (d *Dataset) Total() int {
	n := 0
	for _, s := range d.samples {
		n += len(s)
	}
	return n
}

// Map returns the dataset as a plain map, for encoding.
func (d *Dataset) Map() map[string][][]float64 {
	out := make(map[string][][]float64, len(d.labels))
	for _, l := range d.labels {
		out[l] = d.Samples(l)
	}
	return out
}

// Clone returns a copy that shares the immutable sample vectors.
func (d *Dataset) Clone() *Dataset {
	c := &Dataset{
		labels:  make([]string, len(d.labels)),
		samples: make(map[string][][]float64, len(d.samples)),
	}
	copy(c.labels, d.labels)
	for l, s := range d.samples {
		c.samples[l] = append([][]float64(nil), s...)
	}
	return c
}

func cloneVec(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
