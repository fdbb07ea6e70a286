package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// ReplayCamera serves a fixed sequence of frames through the Camera
// interface. It lets the recognition loop run without a webcam.
type ReplayCamera struct {
	mu     sync.Mutex
	frames []gocv.Mat
	pos    int
	loop   bool
	fps    int
	served int
	open   bool
}

var _ Camera = (*ReplayCamera)(nil)

// NewReplayCamera copies frames; the caller keeps ownership of its Mats.
// With loop set the sequence restarts after the last frame.
func NewReplayCamera(frames []*gocv.Mat, loop bool) *ReplayCamera {
	owned := make([]gocv.Mat, 0, len(frames))
	for _, f := range frames {
		owned = append(owned, f.Clone())
	}
	return &ReplayCamera{frames: owned, loop: loop, fps: DefaultFPS}
}

// Open rewinds to the first frame.
func (c *ReplayCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.pos = 0
	return nil
}

// Close stops playback. Frames stay available for a later Open.
func (c *ReplayCamera) Close() error {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
	return nil
}

// Release frees the copied frames.
func (c *ReplayCamera) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.frames {
		c.frames[i].Close()
	}
	c.frames = nil
	c.open = false
}

// ReadFrame returns a clone of the next frame that the caller must Close.
func (c *ReplayCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !c.open:
		return nil, ErrCameraNotOpen
	case len(c.frames) == 0:
		return nil, ErrNoFrame
	case c.pos == len(c.frames) && !c.loop:
		return nil, ErrNoFrame
	case c.pos == len(c.frames):
		c.pos = 0
	}

	frame := c.frames[c.pos].Clone()
	c.pos++
	c.served++
	return &frame, nil
}

func (c *ReplayCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	c.fps = fps
	c.mu.Unlock()
}

func (c *ReplayCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *ReplayCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Served counts frames handed out since construction.
func (c *ReplayCamera) Served() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.served
}
