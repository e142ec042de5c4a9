package detector

import (
	"gocv.io/x/gocv"

	"github.com/knexpress/booking-capture/internal/config"
)

// FaceObservation is the raw output of a face-landmark backend for one frame.
type FaceObservation struct {
	Present   bool
	Box       Box
	Landmarks [NumFaceLandmarks]Point
	Pose      Pose
	Smile     float64
	EyesOpen  float64
}

// FaceBackend runs the face-landmark model. One backend is shared by every
// pose detector of a session sequence.
type FaceBackend interface {
	Observe(frame *gocv.Mat) (FaceObservation, error)
	Close() error
}

// PoseDetector evaluates frames against one requested liveness action. It is
// a thin stateless view over a shared FaceBackend; the action-validity
// predicate is the only per-action part.
type PoseDetector struct {
	backend FaceBackend
	profile config.Profile
	action  Action
}

// NewPoseDetector creates a detector bound to the given liveness action.
func NewPoseDetector(backend FaceBackend, profile config.Profile, action Action) *PoseDetector {
	return &PoseDetector{backend: backend, profile: profile, action: action}
}

// Detect runs the face model on the frame and applies the action predicate.
func (d *PoseDetector) Detect(frame *gocv.Mat) (Result, error) {
	obs, err := d.backend.Observe(frame)
	if err != nil {
		return Result{}, err
	}
	if !obs.Present {
		return Result{Action: d.action}, nil
	}

	return Result{
		Present:        true,
		Box:            obs.Box,
		Landmarks:      obs.Landmarks,
		Pose:           obs.Pose,
		Smile:          obs.Smile,
		EyesOpen:       obs.EyesOpen,
		Action:         d.action,
		ValidForAction: d.validFor(obs),
	}, nil
}

// validFor checks the action-specific predicate: turns need yaw beyond the
// threshold in the right direction, blink and smile need a frontal pose plus
// the corresponding model signal.
func (d *PoseDetector) validFor(obs FaceObservation) bool {
	switch d.action {
	case ActionTurnLeft:
		return obs.Pose.Yaw <= -d.profile.TurnYawThreshold
	case ActionTurnRight:
		return obs.Pose.Yaw >= d.profile.TurnYawThreshold
	case ActionBlink:
		return d.frontal(obs.Pose) && obs.EyesOpen <= d.profile.EyesClosedMax
	case ActionSmile:
		return d.frontal(obs.Pose) && obs.Smile >= d.profile.SmileThreshold
	}
	return false
}

func (d *PoseDetector) frontal(p Pose) bool {
	limit := d.profile.FrontalYawLimit
	return p.Yaw >= -limit && p.Yaw <= limit
}

// Close implements Detector. The shared backend is owned by the caller and
// closed separately.
func (d *PoseDetector) Close() error {
	return nil
}
