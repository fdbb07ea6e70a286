package capture

import (
	"errors"
	"testing"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantFPS    int
		wantWidth  int
		wantMirror bool
	}{
		{"defaults", DefaultOptions(), DefaultFPS, DefaultWidth, true},
		{"zero values fall back", Options{Device: 1}, DefaultFPS, DefaultWidth, false},
		{"half a size falls back", Options{Width: 320}, DefaultFPS, DefaultWidth, false},
		{"explicit", Options{Device: 2, FPS: 30, Width: 1280, Height: 720, Mirror: true}, 30, 1280, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.opts)
			if cam.FPS() != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", cam.FPS(), tt.wantFPS)
			}
			if cam.IsOpen() {
				t.Error("a new camera should be closed")
			}
			impl := cam.(*cameraImpl)
			if impl.opts.Width != tt.wantWidth || impl.opts.Mirror != tt.wantMirror {
				t.Errorf("opts = %+v", impl.opts)
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(DefaultOptions())

	for _, step := range []struct{ set, want int }{{10, 10}, {1, 1}, {0, 1}, {-5, 1}} {
		cam.SetFPS(step.set)
		if got := cam.FPS(); got != step.want {
			t.Errorf("SetFPS(%d): FPS() = %d, want %d", step.set, got, step.want)
		}
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(DefaultOptions())

	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}

	if !cam.IsOpen() {
		t.Error("IsOpen() should return true after Open()")
	}

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Errorf("ReadFrame() failed: %v", err)
	} else {
		if mat.Empty() {
			t.Error("ReadFrame() returned empty mat")
		} else if mat.Cols() != DefaultWidth || mat.Rows() != DefaultHeight {
			t.Logf("Frame dimensions: %dx%d (camera may not support %dx%d)", mat.Cols(), mat.Rows(), DefaultWidth, DefaultHeight)
		}
		mat.Close()
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}

	if cam.IsOpen() {
		t.Error("IsOpen() should return false after Close()")
	}
}

func TestCamera_Closed(t *testing.T) {
	cam := NewCamera(DefaultOptions())

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("expected ErrCameraNotOpen, got %v", err)
	}
	if err := cam.Close(); err != nil {
		t.Errorf("closing an unopened camera should be a no-op, got %v", err)
	}
}
