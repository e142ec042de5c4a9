// Package app wires the camera, detectors, validator, and store into
// running capture flows for the booking verification engine.
package app

import (
	"log/slog"
	"sync"

	"github.com/knexpress/booking-capture/internal/capture"
	"github.com/knexpress/booking-capture/internal/config"
	"github.com/knexpress/booking-capture/internal/detector"
	"github.com/knexpress/booking-capture/internal/engine"
	"github.com/knexpress/booking-capture/internal/store"
	"github.com/knexpress/booking-capture/internal/validate"
)

// Config holds the application's collaborators.
type Config struct {
	Store     *store.Store
	CameraID  int
	Profile   config.Profile
	Validator validate.Validator
	Logger    *slog.Logger
}

// App hosts the capture engine: it owns the shared camera, the face
// detection backend, the session registry, and the event feed the UI
// subscribes to.
type App struct {
	config Config
	camera capture.Camera
	scorer *capture.QualityScorer
	gate   *engine.ValidationGate
	logger *slog.Logger
	events chan engine.StateEvent

	// face is nil when the sidecar is unavailable; liveness flows are
	// refused and document capture still works.
	face detector.FaceBackend

	mu       sync.Mutex
	started  bool
	sessions map[string]*runningCapture
	flows    map[string]*runningFlow
}

// New creates an App. The face detection sidecar is probed here; when it is
// missing the app starts anyway with liveness disabled.
func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		config:   cfg,
		camera:   capture.NewCamera(cfg.CameraID),
		scorer:   capture.NewQualityScorer(),
		gate:     engine.NewValidationGate(cfg.Validator, logger),
		logger:   logger,
		events:   make(chan engine.StateEvent, 64),
		sessions: make(map[string]*runningCapture),
		flows:    make(map[string]*runningFlow),
	}

	if backend, err := detector.NewSidecarBackend(); err == nil {
		a.face = backend
		logger.Info("face detection sidecar available")
	} else {
		logger.Warn("face detection unavailable, liveness flows disabled", "error", err)
	}

	return a
}

// SetCamera replaces the camera implementation. Call before Start; used by
// tests and embedders that bring their own frame source.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// SetFaceBackend replaces the face detection backend.
func (a *App) SetFaceBackend(b detector.FaceBackend) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.face = b
}

// Start opens the camera. Safe to call once; subsequent calls are no-ops.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return nil
	}
	if err := a.camera.Open(); err != nil {
		return err
	}
	a.started = true
	a.logger.Info("capture engine started", "camera", a.config.CameraID)
	return nil
}

// Stop cancels every active session and releases the camera and the face
// backend.
func (a *App) Stop() {
	a.mu.Lock()
	sessions := make([]*runningCapture, 0, len(a.sessions))
	for _, rc := range a.sessions {
		sessions = append(sessions, rc)
	}
	flows := make([]*runningFlow, 0, len(a.flows))
	for _, rf := range a.flows {
		flows = append(flows, rf)
	}
	camera := a.camera
	face := a.face
	a.started = false
	a.mu.Unlock()

	for _, rf := range flows {
		rf.cancel()
	}
	for _, rc := range sessions {
		rc.cancel()
		rc.orch.Close()
	}

	if err := camera.Close(); err != nil {
		a.logger.Warn("error closing camera", "error", err)
	}
	if face != nil {
		if err := face.Close(); err != nil {
			a.logger.Warn("error closing face backend", "error", err)
		}
	}

	a.logger.Info("capture engine stopped")
}

// Camera returns the shared camera, used by the preview stream.
func (a *App) Camera() capture.Camera {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.camera
}

// Events returns the engine-wide event feed. All sessions share it.
func (a *App) Events() <-chan engine.StateEvent {
	return a.events
}

// LivenessAvailable reports whether the face detection backend is up.
func (a *App) LivenessAvailable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.face != nil
}

// Store returns the backing store.
func (a *App) Store() *store.Store {
	return a.config.Store
}
