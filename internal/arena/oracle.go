package arena

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
)

// deadlineStride is how many candidate tests run between deadline checks.
const deadlineStride = 64

// now is swapped in tests to drive the oracle deadline deterministically.
var now = time.Now

// SegmentIsFree reports whether the straight segment p1->p2 crosses no wall and,
// when side is a playing team, enters none of that side's no-go zones.
// Pass NoTeam to test walls only.
//
// The result is false whenever err is non-nil: non-finite input and negative
// timeouts return ErrGeometry, and queries that exceed timeout return
// ErrOracleTimeout. Zero-length queries are answered in O(1) regardless of timeout.
func (a *Arena) SegmentIsFree(p1, p2 orb.Point, side Team, timeout time.Duration) (bool, error) {
	if !Finite(p1) || !Finite(p2) {
		return false, fmt.Errorf("%w: non-finite segment %v -> %v", ErrGeometry, p1, p2)
	}
	if timeout < 0 {
		return false, fmt.Errorf("%w: negative timeout %s", ErrGeometry, timeout)
	}

	var zones []NoGoZone
	if side.Valid() {
		zones = a.noGo[side]
	}

	if p1 == p2 {
		return a.pointIsFree(p1, zones), nil
	}

	deadline := now().Add(timeout)
	tested := 0
	tick := func() bool {
		tested++
		return tested%deadlineStride == 0 && now().After(deadline)
	}

	for _, z := range zones {
		if segmentDist(z.Center, p1, p2) < z.Radius {
			return false, nil
		}
		if tick() {
			return false, fmt.Errorf("%w: after %d tests", ErrOracleTimeout, tested)
		}
	}

	query := paddedRect(Segment{A: p1, B: p2}.Bound())
	for _, sp := range a.index.SearchIntersect(query) {
		w := sp.(*wallEntry)
		if segmentsIntersect(p1, p2, w.seg.A, w.seg.B) {
			return false, nil
		}
		if tick() {
			return false, fmt.Errorf("%w: after %d tests", ErrOracleTimeout, tested)
		}
	}
	return true, nil
}

// Free is SegmentIsFree with errors folded into a fail-closed false.
func Free(a *Arena, p1, p2 orb.Point, side Team, timeout time.Duration) bool {
	ok, err := a.SegmentIsFree(p1, p2, side, timeout)
	return err == nil && ok
}

// PointIsFree reports whether p is off every wall and outside side's no-go zones.
func (a *Arena) PointIsFree(p orb.Point, side Team) bool {
	if !Finite(p) {
		return false
	}
	var zones []NoGoZone
	if side.Valid() {
		zones = a.noGo[side]
	}
	return a.pointIsFree(p, zones)
}

func (a *Arena) pointIsFree(p orb.Point, zones []NoGoZone) bool {
	for _, z := range zones {
		if z.Contains(p) {
			return false
		}
	}
	for _, sp := range a.index.SearchIntersect(paddedRect(orb.Bound{Min: p, Max: p})) {
		w := sp.(*wallEntry)
		if orient(w.seg.A, w.seg.B, p) == 0 && onSegment(w.seg.A, w.seg.B, p) {
			return false
		}
	}
	return true
}

// orient returns the sign of the cross product (b-a) x (c-a).
func orient(a, b, c orb.Point) int {
	v := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// onSegment reports whether c, already known to be collinear with a-b, lies
// within the segment's extent.
func onSegment(a, b, c orb.Point) bool {
	return math.Min(a[0], b[0]) <= c[0] && c[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= c[1] && c[1] <= math.Max(a[1], b[1])
}

// segmentsIntersect is the exact orientation test. Touching endpoints and
// collinear overlap both count as an intersection.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := orient(q1, q2, p1)
	d2 := orient(q1, q2, p2)
	d3 := orient(p1, p2, q1)
	d4 := orient(p1, p2, q2)

	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}
	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

// segmentDist returns the distance from c to the segment a-b.
func segmentDist(c, a, b orb.Point) float64 {
	ab := Sub(b, a)
	l2 := ab[0]*ab[0] + ab[1]*ab[1]
	if l2 < 1e-18 {
		return Dist(c, a)
	}
	t := ((c[0]-a[0])*ab[0] + (c[1]-a[1])*ab[1]) / l2
	t = math.Max(0, math.Min(1, t))
	return Dist(c, Add(a, Scale(ab, t)))
}
