package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/knexpress/booking-capture/internal/capture"
	"github.com/knexpress/booking-capture/internal/config"
	"github.com/knexpress/booking-capture/internal/detector"
	"github.com/knexpress/booking-capture/internal/validate"
)

// fastProfile is the desktop profile tuned for tests: no blur floor (mock
// frames are uniform), millisecond ticks, and a short stability hold.
func fastProfile() config.Profile {
	p := config.DesktopProfile()
	p.BlurFloor = 0
	p.DocumentTick = 5 * time.Millisecond
	p.FaceTick = 5 * time.Millisecond
	p.StabilityDuration = 25 * time.Millisecond
	return p
}

func openMockCamera(t *testing.T) *capture.MockCamera {
	t.Helper()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	cam := capture.NewMockCamera([]*gocv.Mat{&frame}, true)
	if err := cam.Open(); err != nil {
		t.Fatalf("opening mock camera: %v", err)
	}
	return cam
}

func newTestOrchestrator(t *testing.T, session Session, det detector.Detector, v validate.Validator) *Orchestrator {
	t.Helper()
	return NewOrchestrator(OrchestratorConfig{
		Camera:   openMockCamera(t),
		Detector: det,
		Scorer:   capture.NewQualityScorer(),
		Gate:     NewValidationGate(v, discardLogger()),
		Profile:  fastProfile(),
		Logger:   discardLogger(),
		Session:  session,
	})
}

func TestOrchestrator_ResolvesDocument(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	det := detector.NewMockDetector()
	det.SetResult(detector.DocumentQuad())

	o := newTestOrchestrator(t, NewDocumentSession(SideFront), det, validate.NewMock())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	artifact, err := o.Run(ctx)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(artifact.Data) == 0 {
		t.Error("resolved artifact has no image data")
	}
	if artifact.Session.Side != SideFront {
		t.Errorf("artifact side = %q, want %q", artifact.Session.Side, SideFront)
	}
	if artifact.Confidence != 1.0 {
		t.Errorf("artifact confidence = %f, want 1.0", artifact.Confidence)
	}
	if got := o.State(); got != StateResolved {
		t.Errorf("state after resolution = %v, want %v", got, StateResolved)
	}
}

func TestOrchestrator_RejectionResumesSampling(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	det := detector.NewMockDetector()
	det.SetResult(detector.DocumentQuad())

	mock := validate.NewMock()
	mock.ScriptDocument(validate.Rejected("expired document"), validate.Accepted(0.9))

	o := newTestOrchestrator(t, NewDocumentSession(SideBack), det, mock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	artifact, err := o.Run(ctx)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if mock.DocCalls != 2 {
		t.Errorf("validator calls = %d, want 2 (reject then accept)", mock.DocCalls)
	}
	if artifact.Confidence != 0.9 {
		t.Errorf("artifact confidence = %f, want the accepted 0.9", artifact.Confidence)
	}
}

func TestOrchestrator_ValidatorOutageRetries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	det := detector.NewMockDetector()
	det.SetResult(detector.DocumentQuad())

	// First validation errors out; the loop must recover and try again
	// rather than fail the session.
	mock := validate.NewMock()
	o := newTestOrchestrator(t, NewDocumentSession(SideFront), det, mock)
	mock.SetError(validate.ErrUnavailable)

	go func() {
		time.Sleep(150 * time.Millisecond)
		mock.SetError(nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := o.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if mock.DocCalls < 2 {
		t.Errorf("validator calls = %d, want at least one retry", mock.DocCalls)
	}
}

func TestOrchestrator_CloseUnblocksRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	det := detector.NewMockDetector() // never detects anything

	o := newTestOrchestrator(t, NewDocumentSession(SideFront), det, validate.NewMock())

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Run(context.Background())
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	o.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSessionClosed) {
			t.Errorf("Run returned %v, want ErrSessionClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	if got := o.State(); got != StateClosed {
		t.Errorf("state after Close = %v, want %v", got, StateClosed)
	}
}

func TestOrchestrator_CloseDiscardsInFlightValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	det := detector.NewMockDetector()
	det.SetResult(detector.DocumentQuad())

	blocker := &blockingValidator{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	o := newTestOrchestrator(t, NewDocumentSession(SideFront), det, blocker)

	type runResult struct {
		artifact Artifact
		err      error
	}
	done := make(chan runResult, 1)
	go func() {
		artifact, err := o.Run(context.Background())
		done <- runResult{artifact, err}
	}()

	// Wait until the capture reaches validation, then close the session
	// while the validator is still parked.
	select {
	case <-blocker.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("validation never started")
	}
	o.Close()

	// The late accept carries the old generation and must not resolve the
	// closed session.
	close(blocker.release)

	select {
	case res := <-done:
		if !errors.Is(res.err, ErrSessionClosed) {
			t.Errorf("Run returned %v, want ErrSessionClosed", res.err)
		}
		if len(res.artifact.Data) != 0 {
			t.Error("closed session recorded an artifact from a stale validation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	if got := o.State(); got != StateClosed {
		t.Errorf("state after Close = %v, want %v", got, StateClosed)
	}
	if _, _, err := o.SubmitManual(context.Background(), []byte("late")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("SubmitManual after Close returned %v, want ErrSessionClosed", err)
	}
}

func TestOrchestrator_SingleFlightPerGeneration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	det := detector.NewMockDetector()
	det.SetResult(detector.DocumentQuad())

	blocker := &blockingValidator{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	o := newTestOrchestrator(t, NewDocumentSession(SideFront), det, blocker)

	type runResult struct {
		artifact Artifact
		err      error
	}
	done := make(chan runResult, 1)
	go func() {
		artifact, err := o.Run(context.Background())
		done <- runResult{artifact, err}
	}()

	select {
	case <-blocker.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("validation never started")
	}

	// One capture holds the generation; a second attempt through the
	// manual path must be refused, not queued.
	if _, _, err := o.SubmitManual(context.Background(), []byte("extra")); !errors.Is(err, ErrCaptureInFlight) {
		t.Errorf("SubmitManual during in-flight capture returned %v, want ErrCaptureInFlight", err)
	}

	close(blocker.release)

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("Run returned error: %v", res.err)
		}
		if len(res.artifact.Data) == 0 {
			t.Error("resolved artifact has no image data")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not resolve after the validator was released")
	}
}

func TestOrchestrator_RunTwice(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	det := detector.NewMockDetector()
	det.SetResult(detector.DocumentQuad())

	o := newTestOrchestrator(t, NewDocumentSession(SideFront), det, validate.NewMock())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := o.Run(ctx); err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	if _, err := o.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run returned %v, want ErrAlreadyRunning", err)
	}
}

func TestOrchestrator_SubmitManualAccepted(t *testing.T) {
	o := NewOrchestrator(OrchestratorConfig{
		Gate:    NewValidationGate(validate.NewMock(), discardLogger()),
		Profile: config.DesktopProfile(),
		Logger:  discardLogger(),
		Session: NewDocumentSession(SideFront),
	})

	artifact, outcome, err := o.SubmitManual(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("SubmitManual returned error: %v", err)
	}
	if !outcome.Accepted {
		t.Fatal("expected the manual submission to be accepted")
	}
	if string(artifact.Data) != "jpeg" {
		t.Error("artifact does not carry the submitted image")
	}

	// Acceptance closes the session; further submissions are refused.
	if _, _, err := o.SubmitManual(context.Background(), []byte("jpeg")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("SubmitManual after acceptance returned %v, want ErrSessionClosed", err)
	}
}

func TestOrchestrator_SubmitManualRejected(t *testing.T) {
	mock := validate.NewMock()
	mock.ScriptDocument(validate.Rejected("unreadable"), validate.Accepted(0.8))

	o := NewOrchestrator(OrchestratorConfig{
		Gate:    NewValidationGate(mock, discardLogger()),
		Profile: config.DesktopProfile(),
		Logger:  discardLogger(),
		Session: NewDocumentSession(SideFront),
	})

	_, outcome, err := o.SubmitManual(context.Background(), []byte("blurry"))
	if err != nil {
		t.Fatalf("SubmitManual returned error: %v", err)
	}
	if outcome.Accepted {
		t.Fatal("expected the first submission to be rejected")
	}
	if outcome.Reason != "unreadable" {
		t.Errorf("reason = %q, want %q", outcome.Reason, "unreadable")
	}

	// The session stays open for another attempt.
	_, outcome, err = o.SubmitManual(context.Background(), []byte("sharp"))
	if err != nil {
		t.Fatalf("retry SubmitManual returned error: %v", err)
	}
	if !outcome.Accepted {
		t.Error("expected the retry to be accepted")
	}
}

func TestOrchestrator_SubmitManualSingleFlight(t *testing.T) {
	blocker := &blockingValidator{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	o := NewOrchestrator(OrchestratorConfig{
		Gate:    NewValidationGate(blocker, discardLogger()),
		Profile: config.DesktopProfile(),
		Logger:  discardLogger(),
		Session: NewDocumentSession(SideFront),
	})

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, _, err := o.SubmitManual(context.Background(), []byte("slow"))
		done <- err
	}()

	<-started
	<-blocker.entered

	if _, _, err := o.SubmitManual(context.Background(), []byte("fast")); !errors.Is(err, ErrCaptureInFlight) {
		t.Errorf("concurrent SubmitManual returned %v, want ErrCaptureInFlight", err)
	}

	close(blocker.release)
	if err := <-done; err != nil {
		t.Errorf("first SubmitManual returned error: %v", err)
	}
}

// blockingValidator parks ValidateDocument until released, signalling entry.
type blockingValidator struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingValidator) ValidateDocument(ctx context.Context, image []byte, side string) (validate.Outcome, error) {
	close(b.entered)
	<-b.release
	return validate.Accepted(1.0), nil
}

func (b *blockingValidator) ValidateSequence(ctx context.Context, images [][]byte, actions []string) (validate.Outcome, error) {
	return validate.Accepted(1.0), nil
}
