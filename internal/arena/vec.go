package arena

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Add returns a+b.
func Add(a, b orb.Point) orb.Point { return orb.Point{a[0] + b[0], a[1] + b[1]} }

// Sub returns a-b.
func Sub(a, b orb.Point) orb.Point { return orb.Point{a[0] - b[0], a[1] - b[1]} }

// Scale returns v scaled by k.
func Scale(v orb.Point, k float64) orb.Point { return orb.Point{v[0] * k, v[1] * k} }

// Length returns the Euclidean length of v.
func Length(v orb.Point) float64 { return math.Hypot(v[0], v[1]) }

// Dist returns the Euclidean distance between a and b.
func Dist(a, b orb.Point) float64 { return planar.Distance(a, b) }

// Finite reports whether both coordinates are finite.
func Finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

// ClampLength scales v down so its length does not exceed max.
// A non-positive max yields the zero vector.
func ClampLength(v orb.Point, max float64) orb.Point {
	if max <= 0 {
		return orb.Point{}
	}
	l := Length(v)
	if l <= max {
		return v
	}
	return Scale(v, max/l)
}

// Toward returns a point at most step away from from, in the direction of to.
func Toward(from, to orb.Point, step float64) orb.Point {
	d := Sub(to, from)
	l := Length(d)
	if l <= step || l < 1e-12 {
		return to
	}
	return Add(from, Scale(d, step/l))
}

// DistToSegment is the distance from p to the segment ab.
func DistToSegment(p, a, b orb.Point) float64 { return segmentDist(p, a, b) }
