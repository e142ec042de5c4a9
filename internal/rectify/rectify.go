// Package rectify turns detected targets into normalized artifact images:
// perspective-corrected document scans and margin-cropped face stills.
package rectify

import (
	"errors"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/knexpress/booking-capture/internal/config"
	"github.com/knexpress/booking-capture/internal/detector"
)

// ErrDegenerateGeometry is returned when the detected geometry cannot be
// warped or cropped into a usable image.
var ErrDegenerateGeometry = errors.New("degenerate capture geometry")

// ErrEmptyFrame is returned when the source frame holds no pixels.
var ErrEmptyFrame = errors.New("empty frame")

// Document warps the quadrilateral region of the frame onto the profile's
// canonical rectangle and returns it JPEG-encoded. Pure function of its
// inputs; the frame is not modified.
func Document(frame *gocv.Mat, quad detector.Quad, profile config.Profile) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}
	if quadArea(quad) < 1 {
		return nil, ErrDegenerateGeometry
	}

	w := profile.OutputWidth
	h := profile.OutputHeight

	src := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: float32(quad[0].X), Y: float32(quad[0].Y)},
		{X: float32(quad[1].X), Y: float32(quad[1].Y)},
		{X: float32(quad[2].X), Y: float32(quad[2].Y)},
		{X: float32(quad[3].X), Y: float32(quad[3].Y)},
	})
	defer src.Close()

	dst := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: 0, Y: 0},
		{X: float32(w - 1), Y: 0},
		{X: float32(w - 1), Y: float32(h - 1)},
		{X: 0, Y: float32(h - 1)},
	})
	defer dst.Close()

	transform := gocv.GetPerspectiveTransform2f(src, dst)
	defer transform.Close()

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpPerspective(*frame, &warped, transform, image.Pt(w, h))

	if warped.Empty() {
		return nil, ErrDegenerateGeometry
	}

	return encodeJPEG(&warped)
}

// Face crops the face bounding box, expanded by the profile margin and
// clamped to the frame, and returns it JPEG-encoded. No perspective warp.
func Face(frame *gocv.Mat, box detector.Box, profile config.Profile) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}
	if box.Width < 1 || box.Height < 1 {
		return nil, ErrDegenerateGeometry
	}

	mx := box.Width * profile.FaceMargin
	my := box.Height * profile.FaceMargin

	x0 := int(math.Floor(box.X - mx))
	y0 := int(math.Floor(box.Y - my))
	x1 := int(math.Ceil(box.X + box.Width + mx))
	y1 := int(math.Ceil(box.Y + box.Height + my))

	cols := frame.Cols()
	rows := frame.Rows()
	x0 = clamp(x0, 0, cols-1)
	y0 = clamp(y0, 0, rows-1)
	x1 = clamp(x1, 1, cols)
	y1 = clamp(y1, 1, rows)

	if x1-x0 < 2 || y1-y0 < 2 {
		return nil, ErrDegenerateGeometry
	}

	region := frame.Region(image.Rect(x0, y0, x1, y1))
	defer region.Close()

	// Region shares memory with the frame; encode from a standalone copy.
	crop := region.Clone()
	defer crop.Close()

	return encodeJPEG(&crop)
}

func encodeJPEG(mat *gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(".jpg", *mat)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func quadArea(q detector.Quad) float64 {
	var sum float64
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		sum += q[i].X*q[j].Y - q[j].X*q[i].Y
	}
	return math.Abs(sum) / 2
}
