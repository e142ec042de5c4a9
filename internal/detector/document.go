package detector

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/knexpress/booking-capture/internal/config"
)

// DocumentDetector finds the largest card-like quadrilateral in a frame.
//
// Each frame is processed independently: grayscale, Gaussian blur, Canny
// edges, external contours, then polygon approximation. The winning contour
// is the one with the largest enclosed area whose area clears the profile's
// minimum floor and whose approximated polygon has between 4 and
// profile.MaxVertices vertices.
type DocumentDetector struct {
	profile config.Profile
}

// NewDocumentDetector creates a DocumentDetector tuned by the given profile.
func NewDocumentDetector(profile config.Profile) *DocumentDetector {
	return &DocumentDetector{profile: profile}
}

// Detect analyzes one frame for a document. No state persists across calls.
func (d *DocumentDetector) Detect(frame *gocv.Mat) (Result, error) {
	if frame == nil || frame.Empty() {
		return Result{}, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := d.profile.BlurKernel
	gocv.GaussianBlur(gray, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, d.profile.CannyLow, d.profile.CannyHigh)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var (
		bestArea float64
		bestPts  []Point
	)
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		area := gocv.ContourArea(contour)
		if area < d.profile.MinContourArea || area <= bestArea {
			continue
		}

		epsilon := d.profile.EpsilonFactor * gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, epsilon, true)
		n := approx.Size()
		if n < 4 || n > d.profile.MaxVertices {
			approx.Close()
			continue
		}

		pts := make([]Point, n)
		for j := 0; j < n; j++ {
			p := approx.At(j)
			pts[j] = Point{X: float64(p.X), Y: float64(p.Y)}
		}
		approx.Close()

		bestArea = area
		bestPts = pts
	}

	if bestPts == nil {
		return Result{}, nil
	}

	quad, err := OrderPoints(bestPts)
	if err != nil {
		// An unusable polygon counts as no detection, not a failure.
		return Result{}, nil
	}

	return Result{Present: true, Quad: quad}, nil
}

// Close implements Detector. The document detector holds no resources.
func (d *DocumentDetector) Close() error {
	return nil
}
