package gesture

import (
	"encoding/json"
	"fmt"
	"math"
)

// NoMatch is the candidate reported when no centroid is within threshold.
const NoMatch = "Nope"

// DefaultThreshold is the RMSD acceptance threshold in normalized feature units.
const DefaultThreshold = 0.12

// Result is the outcome of classifying one feature vector.
type Result struct {
	Label    string  // Matched label, or NoMatch
	Nearest  string  // Closest label even when rejected; empty with no centroids
	Distance float64 // RMSD to Nearest; +Inf with no centroids
	Matched  bool    // Distance is within threshold
}

// MarshalJSON encodes an infinite or NaN distance as null.
func (r Result) MarshalJSON() ([]byte, error) {
	var dist *float64
	if !math.IsInf(r.Distance, 0) && !math.IsNaN(r.Distance) {
		dist = &r.Distance
	}
	return json.Marshal(struct {
		Label    string   `json:"label"`
		Nearest  string   `json:"nearest,omitempty"`
		Distance *float64 `json:"distance"`
		Matched  bool     `json:"matched"`
	}{r.Label, r.Nearest, dist, r.Matched})
}

// RMSD returns the root-mean-square deviation between a and b.
// Vectors of different length are a programming error and panic.
func RMSD(a, b []float64) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("gesture: %v: query has %d values, centroid has %d", ErrDimensionMismatch, len(a), len(b)))
	}
	if len(a) == 0 {
		return 0
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(a)))
}

// Classify finds the nearest centroid to vec.
//
// Centroids are scanned in map order and a later centroid only replaces the
// current best when strictly closer, so the first-inserted label wins ties.
// The best label is accepted when its distance is <= threshold.
func Classify(vec []float64, centroids *CentroidMap, threshold float64) Result {
	res := Result{Label: NoMatch, Distance: math.Inf(1)}
	if centroids.Len() == 0 {
		return res
	}

	for _, c := range centroids.entries {
		d := RMSD(vec, c.Vector)
		if d < res.Distance {
			res.Distance = d
			res.Nearest = c.Label
		}
	}

	// A NaN query never compares less than +Inf.
	if res.Nearest == "" {
		return res
	}

	if res.Distance <= threshold {
		res.Label = res.Nearest
		res.Matched = true
	}
	return res
}
