package pose

import (
	"github.com/ayusman/fingerspell/internal/detector"
)

// FeatureLen is the length of a feature vector: 21 landmarks × 3 coordinates.
const FeatureLen = detector.NumLandmarks * 3

// degenerateEpsilon is the cross-product magnitude below which the palm
// plane is considered undefined.
const degenerateEpsilon = 1e-6

// Options tunes the normalizer.
type Options struct {
	// DisableMirror keeps left hands unmirrored. Used when the reference
	// dataset already holds samples recorded with the same hand.
	DisableMirror bool
}

// Frame is an orthonormal hand-local reference frame anchored at the wrist.
type Frame struct {
	Origin Vec3
	X      Vec3
	Y      Vec3
	Z      Vec3
}

// Rotation returns the frame's axes as matrix columns.
func (f Frame) Rotation() Rotation {
	return NewRotation(f.X, f.Y, f.Z)
}

// BuildFrame derives the palm frame from the wrist, index MCP and pinky MCP.
//
// X points from the wrist to the index MCP, Z is normal to the palm plane
// spanned by X and the wrist→pinky MCP vector, Y completes a right-handed
// frame. Collinear landmarks fall back to the canonical +Z axis.
func BuildFrame(points *[detector.NumLandmarks]detector.Point3D) Frame {
	wrist := points[detector.Wrist]

	x := Unit(Sub(points[detector.IndexMCP], wrist))
	aux := Sub(points[detector.PinkyMCP], wrist)

	n := Cross(x, aux)
	z := Vec3{X: 0, Y: 0, Z: 1}
	if Norm(n) >= degenerateEpsilon {
		z = Unit(n)
	}
	y := Unit(Cross(z, x))

	return Frame{Origin: wrist, X: x, Y: y, Z: z}
}

// ScaleOf returns the wrist to middle MCP distance, or 1 when it is zero.
func ScaleOf(points *[detector.NumLandmarks]detector.Point3D) float64 {
	s := Norm(Sub(points[detector.MiddleMCP], points[detector.Wrist]))
	if s == 0 {
		return 1
	}
	return s
}

// Transform re-expresses every landmark in the hand-local frame, scaled by
// the reference bone length. Left hands are mirrored unless disabled.
func Transform(hand *detector.HandLandmarks, opts Options) [detector.NumLandmarks]Vec3 {
	frame := BuildFrame(&hand.Points)
	rot := frame.Rotation()
	inv := 1 / ScaleOf(&hand.Points)
	mirror := hand.Handedness == detector.Left && !opts.DisableMirror

	var out [detector.NumLandmarks]Vec3
	for i, p := range hand.Points {
		r := rot.MulTranspose(Scale(Sub(p, frame.Origin), inv))
		if mirror {
			r.X = -r.X
		}
		out[i] = r
	}
	return out
}

// Normalize returns the 63-element feature vector of a hand pose, laid out
// as x, y, z per landmark in landmark order.
func Normalize(hand *detector.HandLandmarks, opts Options) []float64 {
	points := Transform(hand, opts)

	vec := make([]float64, 0, FeatureLen)
	for _, p := range points {
		vec = append(vec, p.X, p.Y, p.Z)
	}
	return vec
}

// NormalizePoints validates a raw point list and normalizes it. Lists
// without exactly 21 landmarks return detector.ErrInvalidPose.
func NormalizePoints(points []detector.Point3D, handedness detector.Handedness, opts Options) ([]float64, error) {
	hand, err := detector.NewHandLandmarks(points, handedness)
	if err != nil {
		return nil, err
	}
	return Normalize(&hand, opts), nil
}
