package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// SidecarBackend implements FaceBackend using a Python face-landmark
// subprocess. Frames go out as length-prefixed JPEG, observations come back
// as one JSON object per line. The process starts lazily on first use and
// shuts down after 30 seconds of inactivity.
type SidecarBackend struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewSidecarBackend creates a sidecar backend. It fails fast when the
// service script cannot be located, so callers can fall back to running with
// detection disabled.
func NewSidecarBackend() (*SidecarBackend, error) {
	if findFaceScript() == "" {
		return nil, fmt.Errorf("face_service.py not found")
	}
	return &SidecarBackend{}, nil
}

// Observe sends one frame to the sidecar and reads back the observation.
func (b *SidecarBackend) Observe(frame *gocv.Mat) (FaceObservation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureStarted(); err != nil {
		return FaceObservation{}, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return FaceObservation{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := b.stdin.Write(length); err != nil {
		return FaceObservation{}, fmt.Errorf("write length: %w", err)
	}
	if _, err := b.stdin.Write(data); err != nil {
		return FaceObservation{}, fmt.Errorf("write data: %w", err)
	}

	line, err := b.stdout.ReadString('\n')
	if err != nil {
		return FaceObservation{}, fmt.Errorf("read response: %w", err)
	}

	var resp jsonObservation
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return FaceObservation{}, fmt.Errorf("parse response: %w", err)
	}

	b.resetIdleTimer()

	return resp.toObservation(), nil
}

// Close shuts down the Python process.
func (b *SidecarBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shutdown()
}

func (b *SidecarBackend) ensureStarted() error {
	if b.started {
		return nil
	}

	scriptPath := findFaceScript()
	if scriptPath == "" {
		return fmt.Errorf("face_service.py not found")
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	b.cmd = exec.Command(pythonPath, scriptPath)

	stdin, err := b.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := b.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	b.cmd.Stderr = os.Stderr

	if err := b.cmd.Start(); err != nil {
		return fmt.Errorf("start face service: %w", err)
	}

	b.stdin = stdin
	b.stdout = bufio.NewReader(stdout)
	b.started = true

	return nil
}

func (b *SidecarBackend) shutdown() error {
	if !b.started {
		return nil
	}

	if b.idleTimer != nil {
		b.idleTimer.Stop()
		b.idleTimer = nil
	}

	if b.stdin != nil {
		b.stdin.Close()
	}

	err := b.cmd.Wait()
	b.started = false
	b.cmd = nil
	b.stdin = nil
	b.stdout = nil

	return err
}

func (b *SidecarBackend) resetIdleTimer() {
	if b.idleTimer != nil {
		b.idleTimer.Stop()
	}
	b.idleTimer = time.AfterFunc(30*time.Second, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.shutdown()
	})
}

func findFaceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/face_service.py",
		"../scripts/face_service.py",
		filepath.Join(execDir, "scripts/face_service.py"),
		filepath.Join(os.Getenv("HOME"), ".booking-capture/scripts/face_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if absPath, err := filepath.Abs(path); err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment
// near the binary or the data directory.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".booking-capture/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if absPath, err := filepath.Abs(path); err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonObservation is the wire structure produced by the Python service.
type jsonObservation struct {
	Present   bool    `json:"present"`
	Box       Box     `json:"box"`
	Landmarks []Point `json:"landmarks"`
	Pose      Pose    `json:"pose"`
	Smile     float64 `json:"smile"`
	EyesOpen  float64 `json:"eyes_open"`
}

func (j jsonObservation) toObservation() FaceObservation {
	obs := FaceObservation{
		Present:  j.Present,
		Box:      j.Box,
		Pose:     j.Pose,
		Smile:    j.Smile,
		EyesOpen: j.EyesOpen,
	}
	for i := 0; i < NumFaceLandmarks && i < len(j.Landmarks); i++ {
		obs.Landmarks[i] = j.Landmarks[i]
	}
	return obs
}
