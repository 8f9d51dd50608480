package arena

import "github.com/paulmach/orb"

// WallSet names a group of walls.
type WallSet int

const (
	WallsOuter WallSet = iota
	WallsSide
	WallsMiddle
	WallsDiamondLeft
	WallsDiamondRight
	WallsCustom
)

func (s WallSet) String() string {
	switch s {
	case WallsOuter:
		return "outer"
	case WallsSide:
		return "side"
	case WallsMiddle:
		return "middle"
	case WallsDiamondLeft:
		return "diamond_left"
	case WallsDiamondRight:
		return "diamond_right"
	case WallsCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Standard arena dimensions.
const (
	StandardHalfSize    = 50.0
	StandardNeutralHalf = 5.0
)

func seg(ax, ay, bx, by float64) Segment {
	return Segment{A: orb.Point{ax, ay}, B: orb.Point{bx, by}}
}

// StandardBounds is the ±50 square every standard match is played in.
var StandardBounds = orb.Bound{
	Min: orb.Point{-StandardHalfSize, -StandardHalfSize},
	Max: orb.Point{StandardHalfSize, StandardHalfSize},
}

// OuterWalls returns the four walls of a rectangular boundary.
func OuterWalls(b orb.Bound) []Segment {
	return []Segment{
		seg(b.Min[0], b.Max[1], b.Max[0], b.Max[1]),
		seg(b.Max[0], b.Max[1], b.Max[0], b.Min[1]),
		seg(b.Max[0], b.Min[1], b.Min[0], b.Min[1]),
		seg(b.Min[0], b.Min[1], b.Min[0], b.Max[1]),
	}
}

// The standard layout. Agents' strategies depend on these exact shapes.
var (
	standardSide = []Segment{
		seg(-45, 45, -45, 5),
		seg(-45, -5, -45, -45),
		seg(45, 45, 45, 5),
		seg(45, -5, 45, -45),
	}
	standardMiddle = []Segment{
		seg(-10, 5, 10, 5),
		seg(-10, -5, 10, -5),
	}
	standardDiamondLeft = []Segment{
		seg(-5, 0, -35, 30),
		seg(-35, -30, -5, 0),
		seg(-5, 0, 25, -30),
		seg(25, 20, 5, 0),
	}
	standardDiamondRight = []Segment{
		seg(5, 0, 35, 30),
		seg(35, -30, 5, 0),
		seg(5, 0, -25, 30),
		seg(-25, -20, -5, 0),
	}
)

// Standard builds the fixed competition arena. Extra options (usually no-go
// zones) are applied after the standard walls.
func Standard(opts ...Option) (*Arena, error) {
	base := []Option{
		WithWalls(WallsOuter, OuterWalls(StandardBounds)...),
		WithWalls(WallsSide, standardSide...),
		WithWalls(WallsMiddle, standardMiddle...),
		WithWalls(WallsDiamondLeft, standardDiamondLeft...),
		WithWalls(WallsDiamondRight, standardDiamondRight...),
	}
	return New(StandardBounds, StandardNeutralHalf, append(base, opts...)...)
}
