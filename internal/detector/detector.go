package detector

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Detector turns camera frames into hand poses.
type Detector interface {
	// Detect returns the world landmarks of every hand in frame, or an
	// empty slice when there are none.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)
	Close() error
}

// Config tunes the MediaPipe hand landmarker.
type Config struct {
	// MaxHands caps detections per frame. Only the first hand is spelled.
	MaxHands int
	// MinConfidence and MinTrackingConf are probabilities in [0, 1].
	MinConfidence   float64
	MinTrackingConf float64
	// IdleTimeoutMs stops the landmarker process after a quiet period.
	IdleTimeoutMs int

	// Script and Python override the searched landmarker paths.
	Script string
	Python string
}

// DefaultConfig tracks a single hand at 0.5 confidence.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleTimeoutMs:   30000,
	}
}

// Validate reports the first out-of-range setting.
func (c Config) Validate() error {
	if c.MaxHands < 1 {
		return fmt.Errorf("max hands must be at least 1, got %d", c.MaxHands)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence %v outside [0, 1]", c.MinConfidence)
	}
	if c.MinTrackingConf < 0 || c.MinTrackingConf > 1 {
		return fmt.Errorf("min tracking confidence %v outside [0, 1]", c.MinTrackingConf)
	}
	if c.IdleTimeoutMs < 0 {
		return fmt.Errorf("idle timeout must not be negative")
	}
	return nil
}

// FirstHand picks the hand that drives recognition, or nil when none.
func FirstHand(hands []HandLandmarks) *HandLandmarks {
	if len(hands) == 0 {
		return nil
	}
	h := hands[0]
	return &h
}
