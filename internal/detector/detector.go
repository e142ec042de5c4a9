// Package detector provides target detection for guided capture: locating a
// rectangular ID document or a posed face in a video frame.
package detector

import "gocv.io/x/gocv"

// Action identifies a requested liveness gesture for face capture.
type Action string

// Liveness actions the pose detector understands.
const (
	ActionBlink     Action = "blink"
	ActionSmile     Action = "smile"
	ActionTurnLeft  Action = "turn-left"
	ActionTurnRight Action = "turn-right"
)

// ValidAction reports whether a is a known liveness action.
func ValidAction(a Action) bool {
	switch a {
	case ActionBlink, ActionSmile, ActionTurnLeft, ActionTurnRight:
		return true
	}
	return false
}

// Point is a 2D point in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad holds the four corners of a detected document, ordered
// top-left, top-right, bottom-right, bottom-left.
type Quad [4]Point

// Box is an axis-aligned bounding box in frame pixel coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the box.
func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Pose holds head orientation angles in degrees.
type Pose struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// NumFaceLandmarks is the five-point landmark convention: left eye,
// right eye, nose tip, left mouth corner, right mouth corner.
const NumFaceLandmarks = 5

// Face landmark indices.
const (
	LeftEye = iota
	RightEye
	NoseTip
	LeftMouth
	RightMouth
)

// Result is the outcome of one detection pass over one frame. Present is the
// primary signal; the remaining fields are populated per detector kind.
type Result struct {
	Present bool

	// Document fields.
	Quad    Quad
	Quality float64 // Laplacian variance of the source frame

	// Face fields.
	Box            Box
	Landmarks      [NumFaceLandmarks]Point
	Pose           Pose
	Smile          float64 // 0..1 expression signal
	EyesOpen       float64 // 0..1 eye-state signal
	Action         Action  // the action this detection was evaluated against
	ValidForAction bool
}

// Detector analyzes a single frame for a capture target. Implementations are
// pure per-frame functions: no detection state persists across calls.
type Detector interface {
	Detect(frame *gocv.Mat) (Result, error)
	Close() error
}
