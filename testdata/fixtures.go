// Package testdata builds synthetic camera frames for detector and
// rectification tests, so the suite runs without capture hardware or
// checked-in images.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// FrameWidth and FrameHeight match the capture resolution.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

// CardFrame returns a dark frame with a light card-shaped rectangle
// spanning (120,90) to (520,345), comfortably above the desktop contour
// area floor. The caller closes the Mat.
func CardFrame() *gocv.Mat {
	frame := background(40)
	gocv.Rectangle(&frame, image.Rect(120, 90, 520, 345), color.RGBA{R: 235, G: 235, B: 235}, -1)
	return &frame
}

// TinyCardFrame returns a frame whose only rectangle is far below the
// contour area floor, so document detection must treat it as absent.
func TinyCardFrame() *gocv.Mat {
	frame := background(40)
	gocv.Rectangle(&frame, image.Rect(300, 220, 340, 250), color.RGBA{R: 235, G: 235, B: 235}, -1)
	return &frame
}

// ShiftedCardFrame returns CardFrame with the card moved by (dx, dy).
func ShiftedCardFrame(dx, dy int) *gocv.Mat {
	frame := background(40)
	gocv.Rectangle(&frame, image.Rect(120+dx, 90+dy, 520+dx, 345+dy), color.RGBA{R: 235, G: 235, B: 235}, -1)
	return &frame
}

// FlatFrame returns a uniform frame. Its Laplacian variance is zero, which
// any blur floor rejects.
func FlatFrame() *gocv.Mat {
	frame := background(128)
	return &frame
}

// TexturedFrame returns a frame striped with alternating intensities, giving
// it a high Laplacian variance.
func TexturedFrame() *gocv.Mat {
	frame := background(0)
	for x := 0; x < FrameWidth; x += 8 {
		gocv.Rectangle(&frame, image.Rect(x, 0, x+4, FrameHeight), color.RGBA{R: 255, G: 255, B: 255}, -1)
	}
	return &frame
}

func background(gray uint8) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(gray), float64(gray), float64(gray), 0),
		FrameHeight, FrameWidth, gocv.MatTypeCV8UC3,
	)
}
