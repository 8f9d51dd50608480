package arena

import (
	"errors"
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

var (
	// ErrInvalidArena is returned when an arena cannot be constructed.
	ErrInvalidArena = errors.New("invalid arena")
	// ErrGeometry is returned for degenerate or non-finite oracle queries.
	ErrGeometry = errors.New("invalid geometry query")
	// ErrOracleTimeout is returned when a query does not finish within its budget.
	ErrOracleTimeout = errors.New("oracle timeout")
)

// Team distinguishes the two sides of a match.
type Team int

const (
	TeamRed  Team = iota // owns the right territory
	TeamBlue             // owns the left territory

	// NoTeam means "no side": walls-only oracle queries, or no winner.
	NoTeam Team = -1
)

// Teams lists both sides in their canonical order.
var Teams = [2]Team{TeamRed, TeamBlue}

func (t Team) String() string {
	switch t {
	case TeamRed:
		return "red"
	case TeamBlue:
		return "blue"
	case NoTeam:
		return "none"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the two playing sides.
func (t Team) Valid() bool { return t == TeamRed || t == TeamBlue }

// Other returns the opposing side. NoTeam maps to itself.
func (t Team) Other() Team {
	switch t {
	case TeamRed:
		return TeamBlue
	case TeamBlue:
		return TeamRed
	default:
		return NoTeam
	}
}

// Territory returns the half of the arena owned by t.
func (t Team) Territory() Territory {
	switch t {
	case TeamRed:
		return TerritoryRight
	case TeamBlue:
		return TerritoryLeft
	default:
		return TerritoryNeutral
	}
}

// Territory classifies a point of the plane.
type Territory int

const (
	TerritoryNeutral Territory = iota
	TerritoryLeft
	TerritoryRight
)

func (t Territory) String() string {
	switch t {
	case TerritoryLeft:
		return "left"
	case TerritoryRight:
		return "right"
	default:
		return "neutral"
	}
}

// Owner returns the team that owns the territory, or NoTeam for the neutral strip.
func (t Territory) Owner() Team {
	switch t {
	case TerritoryLeft:
		return TeamBlue
	case TerritoryRight:
		return TeamRed
	default:
		return NoTeam
	}
}

// Segment is an immutable wall between two endpoints.
type Segment struct {
	A, B orb.Point
}

// Bound returns the axis-aligned bounding box of the segment.
func (s Segment) Bound() orb.Bound {
	return orb.MultiPoint{s.A, s.B}.Bound()
}

// Length returns the segment length.
func (s Segment) Length() float64 { return Dist(s.A, s.B) }

// NoGoZone is a disk one side may not plan through.
type NoGoZone struct {
	Center orb.Point
	Radius float64
}

// Contains reports whether p lies inside the zone (boundary excluded).
func (z NoGoZone) Contains(p orb.Point) bool {
	return Dist(z.Center, p) < z.Radius
}

// Arena is the immutable playing field: walls, territory split and no-go zones.
type Arena struct {
	bounds      orb.Bound
	neutralHalf float64
	sets        map[WallSet][]Segment
	walls       []Segment // all walls, in set order
	noGo        [2][]NoGoZone
	index       *rtreego.Rtree
}

// Option configures an arena under construction.
type Option func(*builder)

type builder struct {
	sets  map[WallSet][]Segment
	order []WallSet
	noGo  [2][]NoGoZone
	err   error
}

// WithWalls adds wall segments to the named set.
func WithWalls(set WallSet, segs ...Segment) Option {
	return func(b *builder) {
		if _, ok := b.sets[set]; !ok {
			b.order = append(b.order, set)
		}
		b.sets[set] = append(b.sets[set], segs...)
	}
}

// WithNoGoZone forbids side from planning through the given disk.
func WithNoGoZone(side Team, zones ...NoGoZone) Option {
	return func(b *builder) {
		if !side.Valid() {
			b.err = fmt.Errorf("%w: no-go zone for side %s", ErrInvalidArena, side)
			return
		}
		b.noGo[side] = append(b.noGo[side], zones...)
	}
}

// New builds an arena over bounds. Points with |x - centreX| < neutralHalfWidth
// are neutral; the rest belong to the left or right territory.
func New(bounds orb.Bound, neutralHalfWidth float64, opts ...Option) (*Arena, error) {
	b := &builder{sets: map[WallSet][]Segment{}}
	for _, o := range opts {
		o(b)
	}
	if b.err != nil {
		return nil, b.err
	}

	if !Finite(bounds.Min) || !Finite(bounds.Max) ||
		bounds.Max[0] <= bounds.Min[0] || bounds.Max[1] <= bounds.Min[1] {
		return nil, fmt.Errorf("%w: degenerate bounds %v", ErrInvalidArena, bounds)
	}
	halfW := (bounds.Max[0] - bounds.Min[0]) / 2
	if math.IsNaN(neutralHalfWidth) || neutralHalfWidth < 0 || neutralHalfWidth >= halfW {
		return nil, fmt.Errorf("%w: neutral half width %v outside [0, %v)", ErrInvalidArena, neutralHalfWidth, halfW)
	}

	a := &Arena{
		bounds:      bounds,
		neutralHalf: neutralHalfWidth,
		sets:        make(map[WallSet][]Segment, len(b.sets)),
		index:       rtreego.NewTree(2, 4, 16),
	}
	for _, set := range b.order {
		segs := b.sets[set]
		for i, s := range segs {
			if !Finite(s.A) || !Finite(s.B) {
				return nil, fmt.Errorf("%w: %s wall %d has non-finite endpoint", ErrInvalidArena, set, i)
			}
			if s.Length() < 1e-9 {
				return nil, fmt.Errorf("%w: %s wall %d has zero length", ErrInvalidArena, set, i)
			}
			if !bounds.Contains(s.A) || !bounds.Contains(s.B) {
				return nil, fmt.Errorf("%w: %s wall %d leaves the arena bounds", ErrInvalidArena, set, i)
			}
		}
		a.sets[set] = append([]Segment(nil), segs...)
		for _, s := range segs {
			a.index.Insert(&wallEntry{seg: s, id: len(a.walls), rect: paddedRect(s.Bound())})
			a.walls = append(a.walls, s)
		}
	}
	for _, side := range Teams {
		for i, z := range b.noGo[side] {
			if !Finite(z.Center) || math.IsNaN(z.Radius) || math.IsInf(z.Radius, 0) || z.Radius <= 0 {
				return nil, fmt.Errorf("%w: %s no-go zone %d is degenerate", ErrInvalidArena, side, i)
			}
		}
		a.noGo[side] = append([]NoGoZone(nil), b.noGo[side]...)
	}
	return a, nil
}

// Bounds returns the arena's outer rectangle.
func (a *Arena) Bounds() orb.Bound { return a.bounds }

// Contains reports whether p lies inside the arena bounds.
func (a *Arena) Contains(p orb.Point) bool { return Finite(p) && a.bounds.Contains(p) }

// Walls returns a copy of every wall segment.
func (a *Arena) Walls() []Segment { return append([]Segment(nil), a.walls...) }

// SegmentsFor returns a copy of the walls of one named set.
func (a *Arena) SegmentsFor(set WallSet) []Segment {
	return append([]Segment(nil), a.sets[set]...)
}

// NeutralHalfWidth is half the width of the neutral strip.
func (a *Arena) NeutralHalfWidth() float64 { return a.neutralHalf }

// NoGoZones returns the zones side may not plan through.
func (a *Arena) NoGoZones(side Team) []NoGoZone {
	if !side.Valid() {
		return nil
	}
	return append([]NoGoZone(nil), a.noGo[side]...)
}

// TerritoryOf classifies p as left, right or neutral.
func (a *Arena) TerritoryOf(p orb.Point) Territory {
	dx := p[0] - a.bounds.Center()[0]
	switch {
	case dx < 0 && -dx >= a.neutralHalf:
		return TerritoryLeft
	case dx > 0 && dx >= a.neutralHalf:
		return TerritoryRight
	default:
		return TerritoryNeutral
	}
}

// InTerritory reports whether p lies in the territory owned by side.
func (a *Arena) InTerritory(p orb.Point, side Team) bool {
	return side.Valid() && a.TerritoryOf(p) == side.Territory()
}

// wallEntry adapts a wall to the rtreego index.
type wallEntry struct {
	seg  Segment
	id   int
	rect rtreego.Rect
}

func (w *wallEntry) Bounds() rtreego.Rect { return w.rect }

const rectPad = 1e-6

// paddedRect converts an orb bound into an rtree rectangle, padded so that
// axis-aligned segments still have a positive extent on every axis.
func paddedRect(b orb.Bound) rtreego.Rect {
	min := rtreego.Point{b.Min[0] - rectPad, b.Min[1] - rectPad}
	lengths := []float64{b.Max[0] - b.Min[0] + 2*rectPad, b.Max[1] - b.Min[1] + 2*rectPad}
	r, err := rtreego.NewRect(min, lengths)
	if err != nil {
		// lengths are always positive; NewRect only fails on non-positive lengths.
		panic(err)
	}
	return r
}
