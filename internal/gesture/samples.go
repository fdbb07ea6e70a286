package gesture

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/fingerspell/internal/pose"
)

// ErrMalformedSample is returned for a persisted sample that is not a list of numbers.
var ErrMalformedSample = errors.New("malformed sample")

// DecodeSample parses one persisted sample: a JSON array of FeatureLen numbers.
func DecodeSample(raw json.RawMessage) ([]float64, error) {
	var vec []float64
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSample, err)
	}
	if vec == nil {
		return nil, fmt.Errorf("%w: null", ErrMalformedSample)
	}
	if len(vec) != pose.FeatureLen {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrDimensionMismatch, len(vec), pose.FeatureLen)
	}
	return vec, nil
}

// DecodeSamples parses each sample independently. Samples that fail to
// decode are skipped and counted instead of aborting the whole batch.
func DecodeSamples(raw []json.RawMessage) (vecs [][]float64, skipped int) {
	vecs = make([][]float64, 0, len(raw))
	for _, r := range raw {
		vec, err := DecodeSample(r)
		if err != nil {
			skipped++
			continue
		}
		vecs = append(vecs, vec)
	}
	return vecs, skipped
}

// DecodeSampleFile parses a label file holding a JSON array of samples.
// A file that is not an array is an error; bad elements are skipped.
func DecodeSampleFile(data []byte) (vecs [][]float64, skipped int, err error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedSample, err)
	}
	if raw == nil {
		return nil, 0, fmt.Errorf("%w: not an array", ErrMalformedSample)
	}
	vecs, skipped = DecodeSamples(raw)
	return vecs, skipped, nil
}

// EncodeSample marshals one feature vector for persistence.
func EncodeSample(vec []float64) (json.RawMessage, error) {
	data, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("encode sample: %w", err)
	}
	return data, nil
}
