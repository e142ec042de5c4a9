package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/knexpress/booking-capture/internal/capture"
	"github.com/knexpress/booking-capture/internal/config"
	"github.com/knexpress/booking-capture/internal/detector"
	"github.com/knexpress/booking-capture/internal/rectify"
	"github.com/knexpress/booking-capture/internal/validate"
)

// Orchestrator errors.
var (
	ErrSessionClosed   = errors.New("capture session closed")
	ErrAlreadyRunning  = errors.New("capture session already running")
	ErrCaptureInFlight = errors.New("a capture is already in flight")
)

// OrchestratorConfig wires one capture session.
type OrchestratorConfig struct {
	Camera   capture.Camera
	Detector detector.Detector
	Scorer   *capture.QualityScorer
	Gate     *ValidationGate
	Profile  config.Profile
	Logger   *slog.Logger
	Session  Session

	// Events is an optional shared event sink; when nil the orchestrator
	// creates its own.
	Events chan StateEvent
}

// Orchestrator runs the capture state machine for a single session:
// Sampling → AwaitingCapture → Validating → Resolved, with rejections
// looping back to Sampling.
//
// One goroutine (the Run loop) owns all sampling state, including the
// stability tracker. Capture and validation run asynchronously and report
// back over channels; their results carry the generation they were started
// under and are discarded when the session has moved on. The single-flight
// flag is an atomic compare-and-set on that generation, so at most one
// capture can be in flight per (session, generation).
type Orchestrator struct {
	camera  capture.Camera
	det     detector.Detector
	scorer  *capture.QualityScorer
	gate    *ValidationGate
	profile config.Profile
	logger  *slog.Logger
	tick    time.Duration
	tracker *StabilityTracker

	mu      sync.Mutex
	session Session
	state   State

	// inflight holds the generation that armed the single-flight flag,
	// zero when no capture is in flight.
	inflight atomic.Uint64

	events     chan StateEvent
	stopCh     chan struct{}
	stopOnce   sync.Once
	captureCh  chan captureDone
	validateCh chan validateDone
}

type captureDone struct {
	gen      uint64
	artifact Artifact
	err      error
}

type validateDone struct {
	gen      uint64
	artifact Artifact
	outcome  validate.Outcome
	err      error
}

// NewOrchestrator creates the state machine for one capture session.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	tick := cfg.Profile.DocumentTick
	tolerance := cfg.Profile.DocMoveTolerance
	if cfg.Session.Kind == KindFace {
		tick = cfg.Profile.FaceTick
		tolerance = cfg.Profile.FaceMoveTolerance
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	events := cfg.Events
	if events == nil {
		events = make(chan StateEvent, 32)
	}

	return &Orchestrator{
		camera:     cfg.Camera,
		det:        cfg.Detector,
		scorer:     cfg.Scorer,
		gate:       cfg.Gate,
		profile:    cfg.Profile,
		logger:     logger.With("session", cfg.Session.ID, "target", cfg.Session.Label()),
		tick:       tick,
		tracker:    NewStabilityTracker(cfg.Session.Kind, tolerance, cfg.Profile.StabilityDuration),
		session:    cfg.Session,
		state:      StateIdle,
		events:     events,
		stopCh:     make(chan struct{}),
		captureCh:  make(chan captureDone, 1),
		validateCh: make(chan validateDone, 1),
	}
}

// Session returns the session value, including its current generation.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// State returns the current machine state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Events returns the UI-facing event feed.
func (o *Orchestrator) Events() <-chan StateEvent {
	return o.events
}

// Run drives the session until an artifact is accepted, the context is
// canceled, or the session is closed. Validation rejections do not end the
// run; the loop resumes sampling so the user can retry indefinitely.
func (o *Orchestrator) Run(ctx context.Context) (Artifact, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		err := ErrAlreadyRunning
		if o.state == StateClosed {
			err = ErrSessionClosed
		}
		o.mu.Unlock()
		return Artifact{}, err
	}
	o.state = StateSampling
	o.mu.Unlock()
	o.emitState(0, "")

	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.Close()
			return Artifact{}, ctx.Err()

		case <-o.stopCh:
			return Artifact{}, ErrSessionClosed

		case <-ticker.C:
			o.onTick(ticker)

		case done := <-o.captureCh:
			o.onCaptureDone(ticker, done)

		case done := <-o.validateCh:
			if artifact, resolved := o.onValidateDone(ticker, done); resolved {
				return artifact, nil
			}
		}
	}
}

// Close cancels the session: it stops the sampling loop and bumps the
// generation so any in-flight capture or validation completes harmlessly
// and is discarded on arrival.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.state != StateClosed {
		o.state = StateClosed
		o.session.Generation++
	}
	o.mu.Unlock()

	o.stopOnce.Do(func() { close(o.stopCh) })
}

// SubmitManual validates a user-supplied image directly, bypassing sampling
// and stability tracking. This is the designed fallback when detection is
// unavailable; it shares the single-flight flag with the sampling path.
func (o *Orchestrator) SubmitManual(ctx context.Context, image []byte) (Artifact, validate.Outcome, error) {
	o.mu.Lock()
	if o.state == StateClosed || o.state == StateResolved {
		o.mu.Unlock()
		return Artifact{}, validate.Outcome{}, ErrSessionClosed
	}
	sess := o.session
	o.mu.Unlock()

	if !o.inflight.CompareAndSwap(0, sess.Generation) {
		return Artifact{}, validate.Outcome{}, ErrCaptureInFlight
	}
	defer o.inflight.CompareAndSwap(sess.Generation, 0)

	artifact := Artifact{
		Session:    sess,
		Data:       image,
		CapturedAt: time.Now(),
	}

	outcome, err := o.gate.Check(ctx, artifact)
	if err != nil {
		return Artifact{}, validate.Outcome{}, err
	}

	o.mu.Lock()
	stale := o.session.Generation != sess.Generation
	if !stale && outcome.Accepted {
		o.state = StateResolved
	}
	o.mu.Unlock()

	if stale {
		return Artifact{}, validate.Outcome{}, ErrSessionClosed
	}
	if outcome.Accepted {
		artifact.Confidence = outcome.Confidence
		o.emitState(1, "")
		o.Close()
		return artifact, outcome, nil
	}

	o.emitState(0, outcome.Reason)
	return Artifact{}, outcome, nil
}

// onTick runs one sampling pass: read a frame, score it, detect, feed the
// stability tracker, and trigger a capture when the tracker says ready.
// Every failure here is transient and only resets progress.
func (o *Orchestrator) onTick(ticker *time.Ticker) {
	if o.State() != StateSampling {
		return
	}

	frame, err := o.camera.ReadFrame()
	if err != nil {
		o.tracker.Reset()
		o.emitState(0, "")
		return
	}

	quality := o.scorer.Score(frame)
	if quality < o.profile.BlurFloor {
		frame.Close()
		o.tracker.Reset()
		o.emitTick(detector.Result{Quality: quality})
		return
	}

	result, err := o.det.Detect(frame)
	if err != nil {
		frame.Close()
		o.logger.Debug("detection failed", "error", err)
		o.tracker.Reset()
		o.emitState(0, "")
		return
	}
	result.Quality = quality

	ready := o.tracker.Observe(result)
	o.emitTick(result)

	if !ready {
		frame.Close()
		return
	}

	// Snapshot frame and detection, then arm the single-flight flag. A
	// duplicate trigger from a racing tick loses the CAS and is ignored.
	o.mu.Lock()
	gen := o.session.Generation
	o.state = StateAwaitingCapture
	o.mu.Unlock()

	if !o.inflight.CompareAndSwap(0, gen) {
		o.mu.Lock()
		o.state = StateSampling
		o.mu.Unlock()
		frame.Close()
		return
	}

	ticker.Stop()
	o.emitState(1, "")

	go o.captureAsync(gen, frame, result)
}

// captureAsync rectifies the snapshotted frame into an artifact. It owns
// the frame and closes it; the result is reported back to the Run loop.
func (o *Orchestrator) captureAsync(gen uint64, frame *gocv.Mat, result detector.Result) {
	defer frame.Close()

	var (
		data []byte
		err  error
	)
	if o.session.Kind == KindDocument {
		data, err = rectify.Document(frame, result.Quad, o.profile)
	} else {
		data, err = rectify.Face(frame, result.Box, o.profile)
	}

	done := captureDone{gen: gen, err: err}
	if err == nil {
		done.artifact = Artifact{
			Session:    o.sessionAt(gen),
			Data:       data,
			CapturedAt: time.Now(),
		}
	}
	o.captureCh <- done
}

// onCaptureDone moves an arrived capture into validation, or aborts back to
// sampling on failure. Results from a previous generation are discarded.
func (o *Orchestrator) onCaptureDone(ticker *time.Ticker, done captureDone) {
	o.mu.Lock()
	if done.gen != o.session.Generation {
		o.mu.Unlock()
		o.logger.Debug("discarding stale capture", "generation", done.gen)
		return
	}

	if done.err != nil {
		o.state = StateSampling
		o.mu.Unlock()
		o.inflight.CompareAndSwap(done.gen, 0)
		o.tracker.Reset()
		ticker.Reset(o.tick)
		o.logger.Warn("capture failed, resuming sampling", "error", done.err)
		o.emitState(0, "capture failed: "+done.err.Error())
		return
	}

	o.state = StateValidating
	o.mu.Unlock()
	o.emitState(1, "")

	go o.validateAsync(done.gen, done.artifact)
}

// validateAsync submits the artifact to the validation gate off the loop.
func (o *Orchestrator) validateAsync(gen uint64, artifact Artifact) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	outcome, err := o.gate.Check(ctx, artifact)
	o.validateCh <- validateDone{gen: gen, artifact: artifact, outcome: outcome, err: err}
}

// onValidateDone resolves the session on accept; on reject or validator
// error it clears the single-flight flag and resumes sampling. Stale
// generations never reach the accept path.
func (o *Orchestrator) onValidateDone(ticker *time.Ticker, done validateDone) (Artifact, bool) {
	o.mu.Lock()
	if done.gen != o.session.Generation {
		o.mu.Unlock()
		o.logger.Debug("discarding stale validation", "generation", done.gen)
		return Artifact{}, false
	}

	if done.err == nil && done.outcome.Accepted {
		o.state = StateResolved
		o.mu.Unlock()
		o.emitState(1, "")
		artifact := done.artifact
		artifact.Confidence = done.outcome.Confidence
		return artifact, true
	}

	reason := done.outcome.Reason
	if done.err != nil {
		reason = "validation unavailable: " + done.err.Error()
	}

	o.state = StateSampling
	o.mu.Unlock()
	o.inflight.CompareAndSwap(done.gen, 0)
	o.tracker.Reset()
	ticker.Reset(o.tick)
	o.logger.Info("validation rejected, resuming sampling", "reason", reason)
	o.emitState(0, reason)
	return Artifact{}, false
}

func (o *Orchestrator) sessionAt(gen uint64) Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.session
	s.Generation = gen
	return s
}

func (o *Orchestrator) emitState(progress float64, reason string) {
	o.mu.Lock()
	sess := o.session
	state := o.state
	o.mu.Unlock()

	emit(o.events, StateEvent{
		Session:  sess,
		ID:       sess.ID,
		Label:    sess.Label(),
		State:    state.String(),
		Present:  state != StateSampling || progress > 0,
		Progress: progress,
		Reason:   reason,
	})
}

func (o *Orchestrator) emitTick(result detector.Result) {
	o.mu.Lock()
	sess := o.session
	state := o.state
	o.mu.Unlock()

	emit(o.events, StateEvent{
		Session:  sess,
		ID:       sess.ID,
		Label:    sess.Label(),
		State:    state.String(),
		Present:  result.Present,
		Progress: o.tracker.Progress(),
		Quality:  result.Quality,
	})
}
