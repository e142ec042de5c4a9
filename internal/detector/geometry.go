package detector

import (
	"errors"
	"math"
	"sort"
)

// ErrDegenerateQuad is returned when a point set cannot form a usable
// quadrilateral.
var ErrDegenerateQuad = errors.New("degenerate quadrilateral")

// OrderPoints reduces an unordered point set (4 or more points) to the four
// corners of a quadrilateral ordered top-left, top-right, bottom-right,
// bottom-left.
//
// The points are classified into quadrants around their centroid, taking the
// point farthest from the centroid in each quadrant as that corner. If any
// quadrant is empty the function falls back to plain polar-angle order, so
// the result is always deterministic.
func OrderPoints(pts []Point) (Quad, error) {
	if len(pts) < 4 {
		return Quad{}, ErrDegenerateQuad
	}

	c := centroid(pts)
	sorted := sortByAngle(pts, c)

	var quadrants [4][]Point // TL, TR, BR, BL
	for _, p := range sorted {
		switch {
		case p.X < c.X && p.Y < c.Y:
			quadrants[0] = append(quadrants[0], p)
		case p.X >= c.X && p.Y < c.Y:
			quadrants[1] = append(quadrants[1], p)
		case p.X >= c.X && p.Y >= c.Y:
			quadrants[2] = append(quadrants[2], p)
		default:
			quadrants[3] = append(quadrants[3], p)
		}
	}

	for _, q := range quadrants {
		if len(q) == 0 {
			return angularFallback(sorted, c)
		}
	}

	var quad Quad
	for i, q := range quadrants {
		quad[i] = farthestFrom(q, c)
	}

	if quadArea(quad) <= 0 {
		return Quad{}, ErrDegenerateQuad
	}
	return quad, nil
}

// angularFallback picks the four points farthest from the centroid, kept in
// polar-angle order starting from the upper-left direction.
func angularFallback(sorted []Point, c Point) (Quad, error) {
	pts := make([]Point, len(sorted))
	copy(pts, sorted)

	// Keep only the four outermost points, preserving angular order.
	for len(pts) > 4 {
		drop := 0
		min := math.Inf(1)
		for i, p := range pts {
			if d := dist(p, c); d < min {
				min = d
				drop = i
			}
		}
		pts = append(pts[:drop], pts[drop+1:]...)
	}

	var quad Quad
	copy(quad[:], pts)
	if quadArea(quad) <= 0 {
		return Quad{}, ErrDegenerateQuad
	}
	return quad, nil
}

func centroid(pts []Point) Point {
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= float64(len(pts))
	c.Y /= float64(len(pts))
	return c
}

// sortByAngle orders points by polar angle around c, starting at the
// upper-left direction so an already-ordered quad keeps its order. Ties
// break on (x, y) to stay deterministic.
func sortByAngle(pts []Point, c Point) []Point {
	sorted := make([]Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		ai := angleFromUpperLeft(sorted[i], c)
		aj := angleFromUpperLeft(sorted[j], c)
		if ai != aj {
			return ai < aj
		}
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})
	return sorted
}

// angleFromUpperLeft maps the polar angle of p around c to [0, 2π) with zero
// pointing toward the upper-left diagonal, increasing clockwise in image
// coordinates (y grows downward).
func angleFromUpperLeft(p, c Point) float64 {
	a := math.Atan2(p.Y-c.Y, p.X-c.X) // -π..π, 0 pointing right
	a += 3 * math.Pi / 4              // rotate so upper-left is zero
	for a < 0 {
		a += 2 * math.Pi
	}
	for a >= 2*math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

func farthestFrom(pts []Point, c Point) Point {
	best := pts[0]
	bestD := dist(best, c)
	for _, p := range pts[1:] {
		if d := dist(p, c); d > bestD {
			best = p
			bestD = d
		}
	}
	return best
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// quadArea returns the absolute shoelace area of the quad.
func quadArea(q Quad) float64 {
	var sum float64
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		sum += q[i].X*q[j].Y - q[j].X*q[i].Y
	}
	return math.Abs(sum) / 2
}

// MaxCornerDistance returns the largest displacement between corresponding
// corners of two quads. Used by the stability tracker as its movement metric.
func MaxCornerDistance(a, b Quad) float64 {
	var max float64
	for i := range a {
		if d := dist(a[i], b[i]); d > max {
			max = d
		}
	}
	return max
}
