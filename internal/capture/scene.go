package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// sceneBlurSize is the Gaussian kernel used to suppress sensor noise.
	sceneBlurSize = 21
	// scenePixelThreshold is the grey-level delta that counts as a change.
	scenePixelThreshold = 25
	// DefaultSceneThreshold is the changed-pixel percentage that marks a new scene.
	DefaultSceneThreshold = 1.0
)

// SceneGate decides whether a frame differs enough from the last frame that
// ran hand detection to be worth detecting again. A held fingerspelled
// letter produces near-identical frames, so the previous landmarks can be
// reused until the picture changes or MaxReuse frames have passed.
type SceneGate struct {
	threshold float64
	maxReuse  int

	mu       sync.Mutex
	baseline gocv.Mat
	reused   int
	hasBase  bool
}

// NewSceneGate creates a gate. threshold is the percentage of pixels that
// must change; maxReuse bounds consecutive skipped detections (0 = no limit).
func NewSceneGate(threshold float64, maxReuse int) *SceneGate {
	if threshold <= 0 {
		threshold = DefaultSceneThreshold
	}
	return &SceneGate{
		threshold: threshold,
		maxReuse:  maxReuse,
		baseline:  gocv.NewMat(),
	}
}

// Changed reports whether frame needs a fresh detection, and the percentage
// of pixels that changed against the baseline. The first frame always does.
func (g *SceneGate) Changed(frame *gocv.Mat) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, &gray, image.Point{X: sceneBlurSize, Y: sceneBlurSize}, 0, 0, gocv.BorderDefault)

	if !g.hasBase || gray.Rows() != g.baseline.Rows() || gray.Cols() != g.baseline.Cols() {
		g.rebase(gray)
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, g.baseline, &diff)
	gocv.Threshold(diff, &diff, scenePixelThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100.0

	if changed > g.threshold || (g.maxReuse > 0 && g.reused >= g.maxReuse) {
		g.rebase(gray)
		return true, changed
	}
	g.reused++
	return false, changed
}

// rebase makes gray the new comparison frame. Callers hold g.mu.
func (g *SceneGate) rebase(gray gocv.Mat) {
	gray.CopyTo(&g.baseline)
	g.hasBase = true
	g.reused = 0
}

// Reset forgets the baseline so the next frame is detected.
func (g *SceneGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hasBase = false
	g.reused = 0
}

// Close releases the baseline frame.
func (g *SceneGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.baseline.Close()
	g.baseline = gocv.NewMat()
	g.hasBase = false
}
