// Package detector provides hand landmark types and the detector interface
// that turns camera frames into 21-point hand poses.
package detector

import (
	"errors"
	"fmt"
	"strings"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// ErrInvalidPose is returned when a pose does not carry exactly NumLandmarks points.
var ErrInvalidPose = errors.New("invalid hand pose")

// Handedness identifies which physical hand produced a pose.
type Handedness string

const (
	// Left is a left hand as reported by the detector.
	Left Handedness = "Left"
	// Right is a right hand as reported by the detector.
	Right Handedness = "Right"
	// Unknown is used when the detector did not classify the hand.
	Unknown Handedness = "Unknown"
)

// ParseHandedness maps detector output to a Handedness, case-insensitively.
// Anything other than left or right is Unknown.
func ParseHandedness(s string) Handedness {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return Left
	case "right":
		return Right
	default:
		return Unknown
	}
}

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 world landmarks of one detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness Handedness            `json:"handedness"`
	Score      float64               `json:"score"`
}

// NewHandLandmarks builds a pose from a detector point list.
// Poses with missing or extra points are rejected, never padded.
func NewHandLandmarks(points []Point3D, handedness Handedness) (HandLandmarks, error) {
	if len(points) != NumLandmarks {
		return HandLandmarks{}, fmt.Errorf("%w: got %d landmarks, want %d", ErrInvalidPose, len(points), NumLandmarks)
	}

	h := HandLandmarks{Handedness: handedness}
	if h.Handedness == "" {
		h.Handedness = Unknown
	}
	copy(h.Points[:], points)
	return h, nil
}
