package capture

import (
	"gocv.io/x/gocv"
)

// QualityScorer computes a sharpness metric for a frame: the variance of the
// Laplacian response over the grayscale image. Higher variance means sharper
// edges; motion blur and defocus flatten the response toward zero.
//
// Score is a pure per-frame function and cheap enough to run on every
// sampling tick.
type QualityScorer struct{}

// NewQualityScorer creates a QualityScorer.
func NewQualityScorer() *QualityScorer {
	return &QualityScorer{}
}

// Score returns the Laplacian variance of the frame. Empty or nil frames
// score zero.
func (q *QualityScorer) Score(frame *gocv.Mat) float64 {
	if frame == nil || frame.Empty() {
		return 0
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)

	sd := stddev.GetDoubleAt(0, 0)
	return sd * sd
}
