package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// LetterALandmarks returns a right-hand fingerspelled "A": a closed fist
// with the thumb resting upright along the side of the index finger.
// Coordinates are world units (meters) with the wrist near the origin.
func LetterALandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: Right,
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.000, Y: 0.000, Z: 0.000}

	// Thumb upright beside the fist
	landmarks.Points[ThumbCMC] = Point3D{X: 0.025, Y: -0.020, Z: -0.010}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.040, Y: -0.045, Z: -0.015}
	landmarks.Points[ThumbIP] = Point3D{X: 0.045, Y: -0.070, Z: -0.015}
	landmarks.Points[ThumbTip] = Point3D{X: 0.048, Y: -0.090, Z: -0.012}

	// Index curled into the palm
	landmarks.Points[IndexMCP] = Point3D{X: 0.025, Y: -0.085, Z: 0.000}
	landmarks.Points[IndexPIP] = Point3D{X: 0.028, Y: -0.105, Z: -0.025}
	landmarks.Points[IndexDIP] = Point3D{X: 0.025, Y: -0.085, Z: -0.035}
	landmarks.Points[IndexTip] = Point3D{X: 0.022, Y: -0.070, Z: -0.030}

	// Middle curled
	landmarks.Points[MiddleMCP] = Point3D{X: 0.002, Y: -0.090, Z: 0.000}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.003, Y: -0.110, Z: -0.025}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.002, Y: -0.090, Z: -0.036}
	landmarks.Points[MiddleTip] = Point3D{X: 0.001, Y: -0.072, Z: -0.030}

	// Ring curled
	landmarks.Points[RingMCP] = Point3D{X: -0.018, Y: -0.085, Z: 0.000}
	landmarks.Points[RingPIP] = Point3D{X: -0.019, Y: -0.103, Z: -0.023}
	landmarks.Points[RingDIP] = Point3D{X: -0.018, Y: -0.085, Z: -0.033}
	landmarks.Points[RingTip] = Point3D{X: -0.017, Y: -0.070, Z: -0.028}

	// Pinky curled
	landmarks.Points[PinkyMCP] = Point3D{X: -0.035, Y: -0.075, Z: 0.000}
	landmarks.Points[PinkyPIP] = Point3D{X: -0.037, Y: -0.090, Z: -0.020}
	landmarks.Points[PinkyDIP] = Point3D{X: -0.035, Y: -0.076, Z: -0.028}
	landmarks.Points[PinkyTip] = Point3D{X: -0.033, Y: -0.064, Z: -0.024}

	return landmarks
}

// LetterBLandmarks returns a right-hand fingerspelled "B": a flat hand with
// the four fingers extended together and the thumb folded across the palm.
func LetterBLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: Right,
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.000, Y: 0.000, Z: 0.000}

	// Thumb folded across the palm
	landmarks.Points[ThumbCMC] = Point3D{X: 0.025, Y: -0.020, Z: -0.010}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.035, Y: -0.045, Z: -0.020}
	landmarks.Points[ThumbIP] = Point3D{X: 0.020, Y: -0.060, Z: -0.030}
	landmarks.Points[ThumbTip] = Point3D{X: 0.000, Y: -0.065, Z: -0.032}

	// Index extended
	landmarks.Points[IndexMCP] = Point3D{X: 0.025, Y: -0.085, Z: 0.000}
	landmarks.Points[IndexPIP] = Point3D{X: 0.027, Y: -0.125, Z: 0.000}
	landmarks.Points[IndexDIP] = Point3D{X: 0.028, Y: -0.150, Z: 0.000}
	landmarks.Points[IndexTip] = Point3D{X: 0.029, Y: -0.170, Z: 0.000}

	// Middle extended (longest)
	landmarks.Points[MiddleMCP] = Point3D{X: 0.002, Y: -0.090, Z: 0.000}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.002, Y: -0.135, Z: 0.000}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.002, Y: -0.162, Z: 0.000}
	landmarks.Points[MiddleTip] = Point3D{X: 0.002, Y: -0.185, Z: 0.000}

	// Ring extended
	landmarks.Points[RingMCP] = Point3D{X: -0.018, Y: -0.085, Z: 0.000}
	landmarks.Points[RingPIP] = Point3D{X: -0.020, Y: -0.125, Z: 0.000}
	landmarks.Points[RingDIP] = Point3D{X: -0.021, Y: -0.150, Z: 0.000}
	landmarks.Points[RingTip] = Point3D{X: -0.022, Y: -0.170, Z: 0.000}

	// Pinky extended
	landmarks.Points[PinkyMCP] = Point3D{X: -0.035, Y: -0.075, Z: 0.000}
	landmarks.Points[PinkyPIP] = Point3D{X: -0.038, Y: -0.105, Z: 0.000}
	landmarks.Points[PinkyDIP] = Point3D{X: -0.040, Y: -0.123, Z: 0.000}
	landmarks.Points[PinkyTip] = Point3D{X: -0.041, Y: -0.140, Z: 0.000}

	return landmarks
}

// MirrorHand returns the pose as the opposite physical hand would produce
// it: every X coordinate is negated and the handedness is swapped.
func MirrorHand(h HandLandmarks) HandLandmarks {
	m := h
	for i := range m.Points {
		m.Points[i].X = -m.Points[i].X
	}
	switch h.Handedness {
	case Left:
		m.Handedness = Right
	case Right:
		m.Handedness = Left
	}
	return m
}
