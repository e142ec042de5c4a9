package config

import (
	"fmt"
	"time"
)

// Device classes the engine can be tuned for.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
)

// Profile carries every tunable threshold of the capture engine.
// Mobile profiles are uniformly more lenient to compensate for weaker
// optics, lighting, and handheld motion.
type Profile struct {
	// Document detection
	BlurKernel     int     // Gaussian blur kernel size (odd)
	CannyLow       float32 // lower Canny edge threshold
	CannyHigh      float32 // upper Canny edge threshold
	EpsilonFactor  float64 // polygon approximation epsilon as a fraction of perimeter
	MinContourArea float64 // minimum enclosed area in px² for a candidate card
	MaxVertices    int     // maximum approximated polygon vertices accepted

	// Quality
	BlurFloor float64 // minimum Laplacian variance for a frame to count

	// Stability
	StabilityDuration time.Duration // how long a detection must hold steady
	DocMoveTolerance  float64       // max corner displacement in px between document detections
	FaceMoveTolerance float64       // max center displacement in px between face detections

	// Sampling
	DocumentTick time.Duration // sampling period for document sessions
	FaceTick     time.Duration // sampling period for face sessions

	// Pose predicates
	TurnYawThreshold float64 // |yaw| in degrees required for turn actions
	FrontalYawLimit  float64 // |yaw| in degrees allowed for frontal actions
	SmileThreshold   float64 // minimum smile signal for the smile action
	EyesClosedMax    float64 // eyes-open signal at or below this counts as a blink

	// Rectification
	OutputWidth  int     // canonical document width in px
	OutputHeight int     // canonical document height in px
	FaceMargin   float64 // margin around the face box as a fraction of its size
}

// DesktopProfile returns the tuning profile for desktop webcams.
func DesktopProfile() Profile {
	return Profile{
		BlurKernel:        3,
		CannyLow:          75,
		CannyHigh:         200,
		EpsilonFactor:     0.02,
		MinContourArea:    20000,
		MaxVertices:       6,
		BlurFloor:         60,
		StabilityDuration: 500 * time.Millisecond,
		DocMoveTolerance:  24,
		FaceMoveTolerance: 12,
		DocumentTick:      150 * time.Millisecond,
		FaceTick:          200 * time.Millisecond,
		TurnYawThreshold:  20,
		FrontalYawLimit:   12,
		SmileThreshold:    0.6,
		EyesClosedMax:     0.3,
		OutputWidth:       800,
		OutputHeight:      500,
		FaceMargin:        0.25,
	}
}

// MobileProfile returns the tuning profile for constrained mobile optics.
func MobileProfile() Profile {
	p := DesktopProfile()
	p.BlurKernel = 5
	p.CannyLow = 50
	p.CannyHigh = 150
	p.EpsilonFactor = 0.03
	p.MinContourArea = 12000
	p.MaxVertices = 8
	p.BlurFloor = 40
	p.StabilityDuration = 700 * time.Millisecond
	p.DocMoveTolerance = 36
	p.FaceMoveTolerance = 18
	return p
}

// ProfileFor returns the profile for the given device class.
func ProfileFor(class string) (Profile, error) {
	switch class {
	case DeviceDesktop:
		return DesktopProfile(), nil
	case DeviceMobile:
		return MobileProfile(), nil
	default:
		return Profile{}, fmt.Errorf("unknown device class %q", class)
	}
}
