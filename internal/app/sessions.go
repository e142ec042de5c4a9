package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/knexpress/booking-capture/internal/detector"
	"github.com/knexpress/booking-capture/internal/engine"
	"github.com/knexpress/booking-capture/internal/store"
	"github.com/knexpress/booking-capture/internal/validate"
)

// Session registry errors.
var (
	ErrEngineStopped       = errors.New("capture engine is not running")
	ErrLivenessUnavailable = errors.New("face detection backend is unavailable")
	ErrSessionNotFound     = errors.New("no such session")
	ErrNotManualCapable    = errors.New("manual submission is only supported for document sessions")
)

// runningCapture is one registered capture session.
type runningCapture struct {
	orch      *engine.Orchestrator
	cancel    context.CancelFunc
	bookingID string
}

// runningFlow is a liveness sequence spanning several sessions.
type runningFlow struct {
	id        string
	bookingID string
	cancel    context.CancelFunc
}

// StartDocument begins guided capture of one document side for a booking.
// It returns immediately; progress is reported on the event feed and the
// accepted artifact is persisted in the background.
func (a *App) StartDocument(bookingID string, side engine.Side) (engine.Session, error) {
	a.mu.Lock()
	started := a.started
	camera := a.camera
	a.mu.Unlock()
	if !started {
		return engine.Session{}, ErrEngineStopped
	}

	if _, err := a.config.Store.Bookings().GetByID(bookingID); err != nil {
		return engine.Session{}, err
	}

	session := engine.NewDocumentSession(side)
	orch := engine.NewOrchestrator(engine.OrchestratorConfig{
		Camera:   camera,
		Detector: detector.NewDocumentDetector(a.config.Profile),
		Scorer:   a.scorer,
		Gate:     a.gate,
		Profile:  a.config.Profile,
		Logger:   a.logger,
		Session:  session,
		Events:   a.events,
	})

	ctx, cancel := context.WithCancel(context.Background())
	rc := &runningCapture{orch: orch, cancel: cancel, bookingID: bookingID}

	a.mu.Lock()
	a.sessions[session.ID] = rc
	a.mu.Unlock()

	go func() {
		defer a.deregisterSession(session.ID)
		defer cancel()

		artifact, err := orch.Run(ctx)
		if err != nil {
			if !errors.Is(err, engine.ErrSessionClosed) && !errors.Is(err, context.Canceled) {
				a.logger.Error("document capture failed", "session", session.ID, "error", err)
			}
			return
		}
		if err := a.persistDocument(bookingID, artifact); err != nil {
			a.logger.Error("persisting document artifact failed", "session", session.ID, "error", err)
		}
	}()

	return session, nil
}

// StartLiveness begins the liveness action sequence for a booking and
// returns a flow ID that can be used to cancel it. Each action gets its own
// session; all of them report on the shared event feed.
func (a *App) StartLiveness(bookingID string, actions []detector.Action) (string, error) {
	a.mu.Lock()
	started := a.started
	face := a.face
	camera := a.camera
	a.mu.Unlock()
	if !started {
		return "", ErrEngineStopped
	}
	if face == nil {
		return "", ErrLivenessUnavailable
	}
	if len(actions) == 0 {
		return "", fmt.Errorf("liveness flow needs at least one action")
	}
	for _, action := range actions {
		if !detector.ValidAction(action) {
			return "", fmt.Errorf("unknown liveness action %q", action)
		}
	}

	if _, err := a.config.Store.Bookings().GetByID(bookingID); err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	flow := &runningFlow{id: uuid.NewString(), bookingID: bookingID, cancel: cancel}

	factory := func(s engine.Session) engine.Runner {
		orch := engine.NewOrchestrator(engine.OrchestratorConfig{
			Camera:   camera,
			Detector: detector.NewPoseDetector(face, a.config.Profile, s.Action),
			Scorer:   a.scorer,
			Gate:     a.gate,
			Profile:  a.config.Profile,
			Logger:   a.logger,
			Session:  s,
			Events:   a.events,
		})

		a.mu.Lock()
		a.sessions[s.ID] = &runningCapture{orch: orch, cancel: cancel, bookingID: bookingID}
		a.mu.Unlock()

		return &registeredRunner{app: a, orch: orch, id: s.ID}
	}

	seq := engine.NewActionSequencer(actions, factory, a.gate, a.logger, a.events)

	a.mu.Lock()
	a.flows[flow.id] = flow
	a.mu.Unlock()

	go func() {
		defer a.deregisterFlow(flow.id)
		defer cancel()

		if err := a.config.Store.Bookings().UpdateStatus(bookingID, store.StatusLiveness); err != nil {
			a.logger.Warn("could not mark booking in liveness", "booking", bookingID, "error", err)
		}

		artifacts, err := seq.Run(ctx)
		if err != nil {
			if !errors.Is(err, engine.ErrSessionClosed) && !errors.Is(err, context.Canceled) {
				a.logger.Error("liveness flow failed", "flow", flow.id, "error", err)
			}
			return
		}
		if err := a.persistLiveness(bookingID, artifacts); err != nil {
			a.logger.Error("persisting liveness artifacts failed", "flow", flow.id, "error", err)
		}
	}()

	return flow.id, nil
}

// Cancel stops a running session or liveness flow by ID.
func (a *App) Cancel(id string) error {
	a.mu.Lock()
	rc, isSession := a.sessions[id]
	rf, isFlow := a.flows[id]
	a.mu.Unlock()

	switch {
	case isFlow:
		rf.cancel()
		return nil
	case isSession:
		rc.cancel()
		rc.orch.Close()
		return nil
	default:
		return ErrSessionNotFound
	}
}

// SubmitManual validates a user-uploaded image against a running document
// session, bypassing the camera. Accepted submissions are persisted and
// close the session.
func (a *App) SubmitManual(ctx context.Context, sessionID string, image []byte) (validate.Outcome, error) {
	a.mu.Lock()
	rc, ok := a.sessions[sessionID]
	a.mu.Unlock()
	if !ok {
		return validate.Outcome{}, ErrSessionNotFound
	}
	if rc.orch.Session().Kind != engine.KindDocument {
		return validate.Outcome{}, ErrNotManualCapable
	}

	artifact, outcome, err := rc.orch.SubmitManual(ctx, image)
	if err != nil {
		return validate.Outcome{}, err
	}
	if outcome.Accepted {
		if err := a.persistDocument(rc.bookingID, artifact); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// SessionState reports the state of a registered session.
func (a *App) SessionState(sessionID string) (engine.State, error) {
	a.mu.Lock()
	rc, ok := a.sessions[sessionID]
	a.mu.Unlock()
	if !ok {
		return engine.StateIdle, ErrSessionNotFound
	}
	return rc.orch.State(), nil
}

func (a *App) persistDocument(bookingID string, artifact engine.Artifact) error {
	artifacts := a.config.Store.Artifacts()

	// A recapture replaces the earlier take of the same side.
	if err := artifacts.DeleteByLabel(bookingID, string(engine.KindDocument), artifact.Session.Label()); err != nil {
		return err
	}
	if err := artifacts.Create(&store.Artifact{
		BookingID:  bookingID,
		Kind:       string(engine.KindDocument),
		Label:      artifact.Session.Label(),
		SessionID:  artifact.Session.ID,
		Confidence: artifact.Confidence,
		Data:       artifact.Data,
	}); err != nil {
		return err
	}

	a.logger.Info("document artifact accepted",
		"booking", bookingID, "side", artifact.Session.Label(), "confidence", artifact.Confidence)
	return a.config.Store.Bookings().UpdateStatus(bookingID, store.StatusDocuments)
}

func (a *App) persistLiveness(bookingID string, artifacts []engine.Artifact) error {
	repo := a.config.Store.Artifacts()

	// Clear any superseded round before writing the accepted one.
	if err := repo.DeleteByBooking(bookingID, string(engine.KindFace)); err != nil {
		return err
	}
	for _, artifact := range artifacts {
		if err := repo.Create(&store.Artifact{
			BookingID:  bookingID,
			Kind:       string(engine.KindFace),
			Label:      artifact.Session.Label(),
			SessionID:  artifact.Session.ID,
			Confidence: artifact.Confidence,
			Data:       artifact.Data,
		}); err != nil {
			return err
		}
	}

	a.logger.Info("liveness sequence accepted", "booking", bookingID, "actions", len(artifacts))
	return a.config.Store.Bookings().UpdateStatus(bookingID, store.StatusComplete)
}

func (a *App) deregisterSession(id string) {
	a.mu.Lock()
	delete(a.sessions, id)
	a.mu.Unlock()
}

func (a *App) deregisterFlow(id string) {
	a.mu.Lock()
	delete(a.flows, id)
	a.mu.Unlock()
}

// registeredRunner keeps the session registry in sync with the sequencer's
// per-action sessions.
type registeredRunner struct {
	app  *App
	orch *engine.Orchestrator
	id   string
}

func (r *registeredRunner) Run(ctx context.Context) (engine.Artifact, error) {
	return r.orch.Run(ctx)
}

func (r *registeredRunner) Close() {
	r.orch.Close()
	r.app.deregisterSession(r.id)
}
