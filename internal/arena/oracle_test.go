package arena

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

const testTimeout = 100 * time.Millisecond

func mustStandard(t *testing.T, opts ...Option) *Arena {
	t.Helper()
	a, err := Standard(opts...)
	if err != nil {
		t.Fatalf("standard arena: %v", err)
	}
	return a
}

func mustFree(t *testing.T, a *Arena, p1, p2 orb.Point, side Team) bool {
	t.Helper()
	ok, err := a.SegmentIsFree(p1, p2, side, testTimeout)
	if err != nil {
		t.Fatalf("SegmentIsFree(%v, %v): %v", p1, p2, err)
	}
	return ok
}

func TestOracle_ClearLine(t *testing.T) {
	a := mustStandard(t)
	// Straight run along the top corridor between outer wall and side bars.
	if !mustFree(t, a, orb.Point{-40, 47}, orb.Point{40, 47}, NoTeam) {
		t.Fatal("expected clear segment along the top corridor")
	}
}

func TestOracle_BlockedByOuterWall(t *testing.T) {
	a := mustStandard(t)
	if mustFree(t, a, orb.Point{40, 47}, orb.Point{60, 47}, NoTeam) {
		t.Fatal("segment leaving the arena must cross the outer wall")
	}
}

func TestOracle_BlockedByMiddleBar(t *testing.T) {
	a := mustStandard(t)
	if mustFree(t, a, orb.Point{0, 10}, orb.Point{0, 2}, NoTeam) {
		t.Fatal("vertical segment through y=5 must hit the middle bar")
	}
}

func TestOracle_SideGapIsOpen(t *testing.T) {
	a := mustStandard(t)
	// The side bars leave a gap for |y| < 5 at x = ±45.
	if !mustFree(t, a, orb.Point{-47, 0}, orb.Point{-43, 0}, NoTeam) {
		t.Fatal("segment through the side gap should be free")
	}
	if mustFree(t, a, orb.Point{-47, 10}, orb.Point{-43, 10}, NoTeam) {
		t.Fatal("segment through the side bar should be blocked")
	}
}

func TestOracle_TouchingEndpointIsBlocked(t *testing.T) {
	a := mustStandard(t)
	// Ends exactly on the middle bar.
	if mustFree(t, a, orb.Point{0, 10}, orb.Point{0, 5}, NoTeam) {
		t.Fatal("segment ending on a wall should count as blocked")
	}
}

func TestOracle_CollinearOverlapIsBlocked(t *testing.T) {
	a := mustStandard(t)
	if mustFree(t, a, orb.Point{-20, 5}, orb.Point{0, 5}, NoTeam) {
		t.Fatal("segment lying along a wall should be blocked")
	}
}

func TestOracle_ParallelBesideWallIsFree(t *testing.T) {
	bounds := orb.Bound{Min: orb.Point{-20, -20}, Max: orb.Point{20, 20}}
	a, err := New(bounds, 0, WithWalls(WallsCustom, Segment{A: orb.Point{-10, 5}, B: orb.Point{10, 5}}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !mustFree(t, a, orb.Point{-8, 5.5}, orb.Point{8, 5.5}, NoTeam) {
		t.Fatal("segment parallel to a wall without crossing it should be free")
	}
}

func TestOracle_EveryWallBlocksItsPerpendicular(t *testing.T) {
	a := mustStandard(t)
	for _, w := range a.Walls() {
		mid := Scale(Add(w.A, w.B), 0.5)
		d := Sub(w.B, w.A)
		n := Scale(orb.Point{-d[1], d[0]}, 0.1/Length(d))
		p1, p2 := Add(mid, n), Sub(mid, n)
		if mustFree(t, a, p1, p2, NoTeam) {
			t.Errorf("crossing wall %v at its midpoint should be blocked", w)
		}
	}
}

func TestOracle_ZeroLength(t *testing.T) {
	a := mustStandard(t)
	for _, timeout := range []time.Duration{0, time.Nanosecond, testTimeout} {
		ok, err := a.SegmentIsFree(orb.Point{20, 40}, orb.Point{20, 40}, NoTeam, timeout)
		if err != nil || !ok {
			t.Fatalf("zero-length query off any wall should be free (timeout=%s): ok=%v err=%v", timeout, ok, err)
		}
	}
	ok, err := a.SegmentIsFree(orb.Point{0, 5}, orb.Point{0, 5}, NoTeam, 0)
	if err != nil || ok {
		t.Fatalf("zero-length query on a wall should be blocked: ok=%v err=%v", ok, err)
	}
}

func TestOracle_NonFiniteFailsClosed(t *testing.T) {
	a := mustStandard(t)
	ok, err := a.SegmentIsFree(orb.Point{math.NaN(), 0}, orb.Point{1, 1}, NoTeam, testTimeout)
	if ok {
		t.Fatal("NaN query must fail closed")
	}
	if !errors.Is(err, ErrGeometry) {
		t.Fatalf("expected ErrGeometry, got %v", err)
	}
	if Free(a, orb.Point{0, math.Inf(1)}, orb.Point{1, 1}, NoTeam, testTimeout) {
		t.Fatal("Free must fold errors into false")
	}
}

func TestOracle_NegativeTimeout(t *testing.T) {
	a := mustStandard(t)
	_, err := a.SegmentIsFree(orb.Point{1, 1}, orb.Point{2, 2}, NoTeam, -time.Second)
	if !errors.Is(err, ErrGeometry) {
		t.Fatalf("expected ErrGeometry for negative timeout, got %v", err)
	}
}

func TestOracle_NoGoZoneOnlyForItsSide(t *testing.T) {
	zone := NoGoZone{Center: orb.Point{30, 0}, Radius: 3}
	a := mustStandard(t, WithNoGoZone(TeamRed, zone))
	p1, p2 := orb.Point{30, 20}, orb.Point{30, -20}

	if !mustFree(t, a, p1, p2, NoTeam) {
		t.Fatal("walls-only query should ignore no-go zones")
	}
	if !mustFree(t, a, p1, p2, TeamBlue) {
		t.Fatal("blue is not restricted by red's zone")
	}
	if mustFree(t, a, p1, p2, TeamRed) {
		t.Fatal("red must not plan through its own no-go zone")
	}
	if a.PointIsFree(orb.Point{30, 1}, TeamRed) {
		t.Fatal("point inside the zone is not free for red")
	}
}

func TestOracle_TimeoutOnPathologicalArena(t *testing.T) {
	// Thousands of short walls below the diagonal: every bounding box overlaps
	// the query, none of the walls touch it.
	var walls []Segment
	for x := 2.0; x < 98; x += 0.05 {
		walls = append(walls, Segment{A: orb.Point{x, x - 1.5}, B: orb.Point{x + 0.02, x - 1.5}})
	}
	bounds := orb.Bound{Min: orb.Point{0, -5}, Max: orb.Point{100, 100}}
	a, err := New(bounds, 0, WithWalls(WallsCustom, walls...))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !mustFree(t, a, orb.Point{1, 1}, orb.Point{99, 99}, NoTeam) {
		t.Fatal("diagonal should be free with a generous budget")
	}

	// Every clock read advances a millisecond, so the deadline passes by the
	// second stride check.
	clock := time.Unix(0, 0)
	now = func() time.Time { clock = clock.Add(time.Millisecond); return clock }
	defer func() { now = time.Now }()

	ok, err := a.SegmentIsFree(orb.Point{1, 1}, orb.Point{99, 99}, NoTeam, time.Millisecond)
	if ok || !errors.Is(err, ErrOracleTimeout) {
		t.Fatalf("expected fail-closed timeout, got ok=%v err=%v", ok, err)
	}
}

func TestSegmentsIntersect_Cases(t *testing.T) {
	cases := []struct {
		name           string
		p1, p2, q1, q2 orb.Point
		want           bool
	}{
		{"proper cross", orb.Point{0, 0}, orb.Point{2, 2}, orb.Point{0, 2}, orb.Point{2, 0}, true},
		{"disjoint", orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{0, 1}, orb.Point{1, 1}, false},
		{"t-junction", orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{1, 0}, orb.Point{1, 3}, true},
		{"collinear apart", orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{2, 0}, orb.Point{3, 0}, false},
		{"collinear overlap", orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{1, 0}, orb.Point{3, 0}, true},
		{"stops short", orb.Point{0, 0}, orb.Point{0.9, 0}, orb.Point{1, -1}, orb.Point{1, 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := segmentsIntersect(tc.p1, tc.p2, tc.q1, tc.q2); got != tc.want {
				t.Fatalf("segmentsIntersect = %v, want %v", got, tc.want)
			}
		})
	}
}
