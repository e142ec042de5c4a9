package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/knexpress/booking-capture/internal/detector"
	"github.com/knexpress/booking-capture/internal/validate"
)

// scriptedRunner resolves immediately with an artifact for its session.
type scriptedRunner struct {
	session Session
	err     error
	closed  bool
}

func (r *scriptedRunner) Run(ctx context.Context) (Artifact, error) {
	if r.err != nil {
		return Artifact{}, r.err
	}
	return Artifact{
		Session: r.session,
		Data:    []byte(r.session.Label()),
	}, nil
}

func (r *scriptedRunner) Close() { r.closed = true }

func threeActions() []detector.Action {
	return []detector.Action{detector.ActionBlink, detector.ActionSmile, detector.ActionTurnLeft}
}

func TestActionSequencer_AcceptedFirstRound(t *testing.T) {
	var runners []*scriptedRunner
	factory := func(s Session) Runner {
		r := &scriptedRunner{session: s}
		runners = append(runners, r)
		return r
	}

	mock := validate.NewMock()
	gate := NewValidationGate(mock, discardLogger())
	seq := NewActionSequencer(threeActions(), factory, gate, discardLogger(), nil)

	artifacts, err := seq.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(artifacts) != 3 {
		t.Fatalf("got %d artifacts, want 3", len(artifacts))
	}
	for i, want := range threeActions() {
		if artifacts[i].Session.Action != want {
			t.Errorf("artifact[%d] action = %q, want %q", i, artifacts[i].Session.Action, want)
		}
	}
	if mock.SeqCalls != 1 {
		t.Errorf("sequence validations = %d, want 1", mock.SeqCalls)
	}
	if mock.LastCount != 3 {
		t.Errorf("validator saw %d frames, want 3", mock.LastCount)
	}
	for i, r := range runners {
		if !r.closed {
			t.Errorf("runner %d was not closed", i)
		}
	}
}

func TestActionSequencer_RejectionRestartsFromFirstAction(t *testing.T) {
	var sessions []Session
	factory := func(s Session) Runner {
		sessions = append(sessions, s)
		return &scriptedRunner{session: s}
	}

	mock := validate.NewMock()
	mock.ScriptSequence(validate.Rejected("face mismatch"), validate.Accepted(0.95))
	gate := NewValidationGate(mock, discardLogger())
	seq := NewActionSequencer(threeActions(), factory, gate, discardLogger(), nil)

	artifacts, err := seq.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if mock.SeqCalls != 2 {
		t.Errorf("sequence validations = %d, want 2", mock.SeqCalls)
	}
	if len(sessions) != 6 {
		t.Fatalf("created %d sessions, want 6 (two full rounds)", len(sessions))
	}

	// The restart begins at the first action again, with fresh sessions.
	if sessions[3].Action != detector.ActionBlink {
		t.Errorf("restart began at %q, want %q", sessions[3].Action, detector.ActionBlink)
	}
	if sessions[3].ID == sessions[0].ID {
		t.Error("restarted round reused a session ID")
	}

	// Returned artifacts come from the accepted round only.
	for i, a := range artifacts {
		if a.Session.ID != sessions[3+i].ID {
			t.Errorf("artifact[%d] is not from the accepted round", i)
		}
	}
}

func TestActionSequencer_RunnerErrorAborts(t *testing.T) {
	closed := errors.New("session closed by client")
	factory := func(s Session) Runner {
		return &scriptedRunner{session: s, err: closed}
	}

	mock := validate.NewMock()
	gate := NewValidationGate(mock, discardLogger())
	seq := NewActionSequencer(threeActions(), factory, gate, discardLogger(), nil)

	if _, err := seq.Run(context.Background()); !errors.Is(err, closed) {
		t.Errorf("Run returned %v, want the runner error", err)
	}
	if mock.SeqCalls != 0 {
		t.Errorf("sequence validations = %d, want 0 after an aborted round", mock.SeqCalls)
	}
}

func TestActionSequencer_ValidatorErrorAborts(t *testing.T) {
	factory := func(s Session) Runner {
		return &scriptedRunner{session: s}
	}

	mock := validate.NewMock()
	mock.SetError(validate.ErrUnavailable)
	gate := NewValidationGate(mock, discardLogger())
	seq := NewActionSequencer(threeActions(), factory, gate, discardLogger(), nil)

	if _, err := seq.Run(context.Background()); !errors.Is(err, validate.ErrUnavailable) {
		t.Errorf("Run returned %v, want ErrUnavailable", err)
	}
}
