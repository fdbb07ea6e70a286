package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const serviceScript = "mediapipe_service.py"

// ErrServiceNotFound is returned when no landmarker script can be located.
var ErrServiceNotFound = errors.New(serviceScript + " not found")

// MediaPipeDetector runs the MediaPipe hand landmarker as a child process.
//
// Each frame goes out as a big-endian uint32 length followed by the JPEG
// bytes. The child answers with one JSON line of world landmarks per frame.
// The process starts on the first Detect and stops after IdleTimeoutMs
// without frames.
type MediaPipeDetector struct {
	config Config
	script string
	python string

	mu   sync.Mutex
	proc *landmarker
	idle *time.Timer
}

type landmarker struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out *bufio.Reader
}

// NewMediaPipeDetector locates the landmarker script without starting it.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	script := config.Script
	if script == "" {
		script = searchPaths(filepath.Join("scripts", serviceScript))
	} else if _, err := os.Stat(script); err != nil {
		script = ""
	}
	if script == "" {
		return nil, ErrServiceNotFound
	}
	python := config.Python
	if python == "" {
		python = searchPaths(filepath.Join("venv", "bin", "python"))
	}
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{config: config, script: script, python: python}, nil
}

// Detect sends frame to the landmarker. Hands without exactly
// NumLandmarks points are dropped from the result.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	jpeg, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer jpeg.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		if d.proc, err = d.spawn(); err != nil {
			return nil, err
		}
	}

	line, err := d.proc.roundTrip(jpeg.GetBytes())
	if err != nil {
		// A broken pipe leaves the child unusable; respawn on the next frame.
		d.stop()
		return nil, err
	}
	d.touch()
	return parseServiceResponse(line)
}

// Close stops the landmarker process if it is running.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop()
}

func (d *MediaPipeDetector) spawn() (*landmarker, error) {
	cmd := exec.Command(d.python, d.script,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	)
	cmd.Stderr = os.Stderr

	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("landmarker stdin: %w", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("landmarker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start landmarker: %w", err)
	}

	slog.Info("hand landmarker started", "script", d.script, "python", d.python, "pid", cmd.Process.Pid)
	return &landmarker{cmd: cmd, in: in, out: bufio.NewReader(out)}, nil
}

func (p *landmarker) roundTrip(jpeg []byte) ([]byte, error) {
	msg := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(jpeg)), uint32(len(jpeg)))
	msg = append(msg, jpeg...)
	if _, err := p.in.Write(msg); err != nil {
		return nil, fmt.Errorf("send frame: %w", err)
	}
	line, err := p.out.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read landmarks: %w", err)
	}
	return line, nil
}

// stop closes stdin so the child exits, then reaps it. Caller holds mu.
func (d *MediaPipeDetector) stop() error {
	if d.idle != nil {
		d.idle.Stop()
		d.idle = nil
	}
	if d.proc == nil {
		return nil
	}
	p := d.proc
	d.proc = nil
	p.in.Close()
	return p.cmd.Wait()
}

// touch re-arms the idle shutdown. Caller holds mu.
func (d *MediaPipeDetector) touch() {
	if d.config.IdleTimeoutMs <= 0 {
		return
	}
	if d.idle != nil {
		d.idle.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(time.Duration(d.config.IdleTimeoutMs)*time.Millisecond, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		// A newer frame replaced this timer.
		if d.idle != t {
			return
		}
		slog.Info("hand landmarker idle, stopping")
		if err := d.stop(); err != nil {
			slog.Warn("hand landmarker exited", "error", err)
		}
	})
	d.idle = t
}

// searchPaths resolves rel against the working directory, its parent, the
// executable's directory and ~/.fingerspell, returning the first hit.
func searchPaths(rel string) string {
	roots := []string{".", ".."}
	if exe, err := os.Executable(); err == nil {
		roots = append(roots, filepath.Dir(exe))
	}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, ".fingerspell"))
	}
	for _, root := range roots {
		path := filepath.Join(root, rel)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

type serviceHand struct {
	WorldPoints []Point3D `json:"world_points"`
	Handedness  string    `json:"handedness"`
	Score       float64   `json:"score"`
}

// parseServiceResponse decodes one landmarker line.
func parseServiceResponse(line []byte) ([]HandLandmarks, error) {
	var resp struct {
		Hands []serviceHand `json:"hands"`
		Error string        `json:"error"`
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse landmarks: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("landmarker: %s", resp.Error)
	}

	hands := make([]HandLandmarks, 0, len(resp.Hands))
	for i, h := range resp.Hands {
		hand, err := NewHandLandmarks(h.WorldPoints, ParseHandedness(h.Handedness))
		if err != nil {
			slog.Debug("dropping hand", "index", i, "error", err)
			continue
		}
		hand.Score = h.Score
		hands = append(hands, hand)
	}
	return hands, nil
}
