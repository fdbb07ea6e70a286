package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/fingerspell/internal/capture"
	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/session"
	"gocv.io/x/gocv"
)

// Scheduler ticks every live session once per sample interval.
type Scheduler struct {
	registry *session.Registry
	interval time.Duration
	enabled  atomic.Bool

	mu     sync.Mutex
	onEmit []func(s *session.Session, symbol string)
}

// NewScheduler creates an enabled scheduler for the sessions in reg.
func NewScheduler(reg *session.Registry, interval time.Duration) *Scheduler {
	s := &Scheduler{registry: reg, interval: interval}
	s.enabled.Store(true)
	return s
}

// SetEnabled pauses or resumes ticking.
func (s *Scheduler) SetEnabled(enabled bool) {
	if s.enabled.Swap(enabled) != enabled {
		slog.Info("recognition toggled", "enabled", enabled)
	}
}

// IsEnabled reports whether sessions are being ticked.
func (s *Scheduler) IsEnabled() bool {
	return s.enabled.Load()
}

// OnEmit adds a callback for every emitted symbol. Callbacks run on the
// scheduler goroutine in registration order and must not block.
func (s *Scheduler) OnEmit(fn func(s *session.Session, symbol string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEmit = append(s.onEmit, fn)
}

// TickOnce ticks every session and returns how many emitted a symbol.
func (s *Scheduler) TickOnce() int {
	if !s.IsEnabled() {
		return 0
	}

	s.mu.Lock()
	callbacks := s.onEmit
	s.mu.Unlock()

	emitted := 0
	s.registry.Each(func(sess *session.Session) {
		r := sess.Tick()
		if r.Emitted == "" {
			return
		}
		emitted++
		slog.Info("symbol emitted", "session", sess.ID(), "symbol", r.Emitted, "distance", r.Prediction.Distance)
		for _, fn := range callbacks {
			fn(sess, r.Emitted)
		}
	})
	return emitted
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("recognition scheduler started", "interval", s.interval)
	defer slog.Info("recognition scheduler stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.TickOnce()
		}
	}
}

// CameraSource reads frames from a local camera, detects the hand and
// offers it to one session. Frames that match the last detected scene reuse
// its landmarks.
type CameraSource struct {
	camera   capture.Camera
	detector detector.Detector
	gate     *capture.SceneGate

	target atomic.Pointer[session.Session]

	mu       sync.RWMutex
	lastHand *detector.HandLandmarks
	jpeg     []byte
	frames   int
	detects  int
}

// NewCameraSource wires a camera and detector. gate may be nil to detect
// on every frame.
func NewCameraSource(cam capture.Camera, det detector.Detector, gate *capture.SceneGate) *CameraSource {
	return &CameraSource{
		camera:   cam,
		detector: det,
		gate:     gate,
	}
}

// SetTarget selects the session that receives hands. Nil stops offering.
func (c *CameraSource) SetTarget(s *session.Session) {
	c.target.Store(s)
}

// Target returns the session receiving hands.
func (c *CameraSource) Target() *session.Session {
	return c.target.Load()
}

// Camera returns the underlying camera.
func (c *CameraSource) Camera() capture.Camera {
	return c.camera
}

// Step processes one frame.
func (c *CameraSource) Step() error {
	frame, err := c.camera.ReadFrame()
	if err != nil {
		return err
	}
	defer frame.Close()

	c.encodePreview(frame)

	detect := true
	if c.gate != nil {
		detect, _ = c.gate.Changed(frame)
	}

	c.mu.Lock()
	c.frames++
	hand := c.lastHand
	c.mu.Unlock()

	if detect {
		hands, err := c.detector.Detect(frame)
		if err != nil {
			if c.gate != nil {
				c.gate.Reset()
			}
			return err
		}
		hand = detector.FirstHand(hands)

		c.mu.Lock()
		c.detects++
		c.lastHand = hand
		c.mu.Unlock()
	}

	if s := c.target.Load(); s != nil {
		s.Offer(hand)
	}
	return nil
}

func (c *CameraSource) encodePreview(frame *gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	c.mu.Lock()
	c.jpeg = data
	c.mu.Unlock()
}

// LatestJPEG returns the most recent frame as JPEG, or nil before the first.
func (c *CameraSource) LatestJPEG() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jpeg
}

// Stats returns how many frames were read and how many ran detection.
func (c *CameraSource) Stats() (frames, detections int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frames, c.detects
}

// Run opens the camera and processes frames at the camera FPS until ctx is
// cancelled. The camera is closed on return.
func (c *CameraSource) Run(ctx context.Context) error {
	if err := c.camera.Open(); err != nil {
		return err
	}
	defer func() {
		if err := c.camera.Close(); err != nil {
			slog.Warn("error closing camera", "error", err)
		}
	}()

	fps := c.camera.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	slog.Info("camera source started", "fps", fps)
	defer slog.Info("camera source stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := c.Step()
			switch {
			case err == nil:
			case errors.Is(err, capture.ErrCameraNotOpen):
				return err
			default:
				slog.Debug("camera step failed", "error", err)
			}
		}
	}
}
