package arena

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestStandard_WallSets(t *testing.T) {
	a := mustStandard(t)
	want := map[WallSet]int{
		WallsOuter:        4,
		WallsSide:         4,
		WallsMiddle:       2,
		WallsDiamondLeft:  4,
		WallsDiamondRight: 4,
	}
	total := 0
	for set, n := range want {
		if got := len(a.SegmentsFor(set)); got != n {
			t.Errorf("%s: %d walls, want %d", set, got, n)
		}
		total += n
	}
	if got := len(a.Walls()); got != total {
		t.Fatalf("total walls %d, want %d", got, total)
	}
	if got := len(a.SegmentsFor(WallsCustom)); got != 0 {
		t.Fatalf("standard arena has %d custom walls", got)
	}
}

func TestStandard_WallsAreCopies(t *testing.T) {
	a := mustStandard(t)
	w := a.Walls()
	w[0].A = orb.Point{999, 999}
	if a.Walls()[0].A == w[0].A {
		t.Fatal("Walls must return a copy")
	}
}

func TestTerritoryOf(t *testing.T) {
	a := mustStandard(t)
	cases := []struct {
		p    orb.Point
		want Territory
	}{
		{orb.Point{-30, 0}, TerritoryLeft},
		{orb.Point{30, 0}, TerritoryRight},
		{orb.Point{0, 20}, TerritoryNeutral},
		{orb.Point{-4.99, 0}, TerritoryNeutral},
		{orb.Point{4.99, 0}, TerritoryNeutral},
		{orb.Point{-5, 0}, TerritoryLeft},
		{orb.Point{5, 0}, TerritoryRight},
	}
	for _, tc := range cases {
		if got := a.TerritoryOf(tc.p); got != tc.want {
			t.Errorf("TerritoryOf(%v) = %s, want %s", tc.p, got, tc.want)
		}
	}
	if !a.InTerritory(orb.Point{30, 0}, TeamRed) || a.InTerritory(orb.Point{30, 0}, TeamBlue) {
		t.Fatal("right half should belong to red only")
	}
	if a.InTerritory(orb.Point{0, 0}, NoTeam) {
		t.Fatal("NoTeam owns nothing")
	}
}

func TestTeam_OtherAndTerritory(t *testing.T) {
	for _, team := range Teams {
		if team.Other().Other() != team {
			t.Errorf("%s: Other is not an involution", team)
		}
		if team.Territory().Owner() != team {
			t.Errorf("%s: territory owner mismatch", team)
		}
	}
	if NoTeam.Valid() || NoTeam.Other() != NoTeam {
		t.Fatal("NoTeam must stay NoTeam")
	}
}

func TestNew_RejectsBadGeometry(t *testing.T) {
	good := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}
	cases := []struct {
		name    string
		bounds  orb.Bound
		neutral float64
		opts    []Option
	}{
		{"degenerate bounds", orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0, 10}}, 0, nil},
		{"nan bounds", orb.Bound{Min: orb.Point{math.NaN(), 0}, Max: orb.Point{10, 10}}, 0, nil},
		{"negative neutral", good, -1, nil},
		{"neutral too wide", good, 5, nil},
		{"zero length wall", good, 0, []Option{WithWalls(WallsCustom, Segment{A: orb.Point{1, 1}, B: orb.Point{1, 1}})}},
		{"nan wall", good, 0, []Option{WithWalls(WallsCustom, Segment{A: orb.Point{1, math.NaN()}, B: orb.Point{2, 2}})}},
		{"wall out of bounds", good, 0, []Option{WithWalls(WallsCustom, Segment{A: orb.Point{1, 1}, B: orb.Point{20, 1}})}},
		{"zero radius zone", good, 0, []Option{WithNoGoZone(TeamRed, NoGoZone{Center: orb.Point{5, 5}})}},
		{"zone for no team", good, 0, []Option{WithNoGoZone(NoTeam, NoGoZone{Center: orb.Point{5, 5}, Radius: 1})}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.bounds, tc.neutral, tc.opts...); !errors.Is(err, ErrInvalidArena) {
				t.Fatalf("expected ErrInvalidArena, got %v", err)
			}
		})
	}
}

func TestNew_TouchingWallsAllowed(t *testing.T) {
	// Both diamonds meet at the centre; shared endpoints are not an error.
	a := mustStandard(t)
	if len(a.SegmentsFor(WallsDiamondLeft)) == 0 {
		t.Fatal("missing diamond walls")
	}
}

func TestNoGoZones_PerSide(t *testing.T) {
	z := NoGoZone{Center: orb.Point{-30, 0}, Radius: 3}
	a := mustStandard(t, WithNoGoZone(TeamBlue, z))
	if got := a.NoGoZones(TeamBlue); len(got) != 1 || got[0] != z {
		t.Fatalf("blue zones = %v", got)
	}
	if got := a.NoGoZones(TeamRed); len(got) != 0 {
		t.Fatalf("red zones = %v, want none", got)
	}
	if got := a.NoGoZones(NoTeam); got != nil {
		t.Fatalf("NoTeam zones = %v, want nil", got)
	}
}

func TestVec_Helpers(t *testing.T) {
	v := ClampLength(orb.Point{3, 4}, 2.5)
	if math.Abs(Length(v)-2.5) > 1e-12 {
		t.Fatalf("ClampLength length = %v", Length(v))
	}
	if ClampLength(orb.Point{3, 4}, 0) != (orb.Point{}) {
		t.Fatal("zero cap must give the zero vector")
	}
	if got := Toward(orb.Point{0, 0}, orb.Point{10, 0}, 3); got != (orb.Point{3, 0}) {
		t.Fatalf("Toward = %v", got)
	}
	if got := Toward(orb.Point{0, 0}, orb.Point{1, 0}, 3); got != (orb.Point{1, 0}) {
		t.Fatalf("Toward should stop at the target, got %v", got)
	}
}
