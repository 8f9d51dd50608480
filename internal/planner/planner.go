package planner

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

var (
	// ErrNoPath is returned when the budget runs out before the tree reaches the goal.
	ErrNoPath = errors.New("no path found")
	// ErrInvalidConfig is returned by New for unusable planner settings.
	ErrInvalidConfig = errors.New("invalid planner config")
)

// Config tunes one planner. All sizes are in arena units.
type Config struct {
	StepSize      float64       // max distance between a node and its parent
	GoalBias      float64       // probability of sampling the goal itself
	GoalRadius    float64       // a node this close to the goal ends the search
	MaxNodes      int           // tree size budget, root included
	MaxIterations int           // sample budget
	Side          arena.Team    // whose no-go zones apply; arena.NoTeam for walls only
	Timeout       time.Duration // per oracle query
	Seed          int64
}

// DefaultConfig is sized for the standard arena.
func DefaultConfig() Config {
	return Config{
		StepSize:      3,
		GoalBias:      0.15,
		GoalRadius:    2,
		MaxNodes:      600,
		MaxIterations: 2000,
		Side:          arena.NoTeam,
		Timeout:       5 * time.Millisecond,
		Seed:          1,
	}
}

func (c Config) validate() error {
	switch {
	case !(c.StepSize > 0) || math.IsInf(c.StepSize, 0):
		return fmt.Errorf("%w: step size %v", ErrInvalidConfig, c.StepSize)
	case !(c.GoalBias >= 0 && c.GoalBias <= 1):
		return fmt.Errorf("%w: goal bias %v outside [0, 1]", ErrInvalidConfig, c.GoalBias)
	case !(c.GoalRadius > 0):
		return fmt.Errorf("%w: goal radius %v", ErrInvalidConfig, c.GoalRadius)
	case c.MaxNodes < 1:
		return fmt.Errorf("%w: max nodes %d", ErrInvalidConfig, c.MaxNodes)
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: max iterations %d", ErrInvalidConfig, c.MaxIterations)
	case c.Timeout < 0:
		return fmt.Errorf("%w: negative oracle timeout", ErrInvalidConfig)
	case c.Side != arena.NoTeam && !c.Side.Valid():
		return fmt.Errorf("%w: side %d", ErrInvalidConfig, c.Side)
	}
	return nil
}

// Result is the outcome of one Plan call.
type Result struct {
	// Path runs from the start to the node closest to the goal. Nil unless Reached.
	Path []orb.Point
	// Tree holds every accepted node, kept for inspection.
	Tree       Tree
	Reached    bool
	Iterations int
	// Closest is the index in Tree of the node nearest the goal.
	Closest int
}

// Planner grows rapidly-exploring random trees over one arena. A Planner is not
// safe for concurrent use; its random source advances with every Plan call.
type Planner struct {
	arena *arena.Arena
	cfg   Config
	rng   *rand.Rand
}

// New returns a planner over a.
func New(a *arena.Arena, cfg Config) (*Planner, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil arena", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Planner{
		arena: a,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)), // #nosec G404 -- game only
	}, nil
}

// Config returns the planner's settings.
func (p *Planner) Config() Config { return p.cfg }

// nodeEntry indexes a tree node in the rtree.
type nodeEntry struct {
	idx  int
	rect rtreego.Rect
}

func (e *nodeEntry) Bounds() rtreego.Rect { return e.rect }

const pointTol = 1e-9

func toRTPoint(p orb.Point) rtreego.Point { return rtreego.Point{p[0], p[1]} }

// Plan grows a tree from start toward goal. When the node or iteration budget
// runs out first it returns ErrNoPath with a nil Path; the tree is returned
// either way.
func (p *Planner) Plan(start, goal orb.Point) (Result, error) {
	if !arena.Finite(start) || !arena.Finite(goal) {
		return Result{Closest: -1}, fmt.Errorf("%w: plan %v -> %v", arena.ErrGeometry, start, goal)
	}
	cfg := p.cfg
	tree := Tree{Nodes: make([]Node, 0, min(cfg.MaxNodes, 256))}
	tree.Nodes = append(tree.Nodes, Node{Pos: start, Parent: -1})

	index := rtreego.NewTree(2, 4, 16)
	index.Insert(&nodeEntry{idx: 0, rect: toRTPoint(start).ToRect(pointTol)})

	res := Result{Closest: 0}
	bestD := arena.Dist(start, goal)
	if bestD <= cfg.GoalRadius {
		res.Reached = true
	}

	b := p.arena.Bounds()
	for !res.Reached && res.Iterations < cfg.MaxIterations && len(tree.Nodes) < cfg.MaxNodes {
		res.Iterations++

		sample := goal
		if p.rng.Float64() >= cfg.GoalBias {
			sample = orb.Point{
				b.Min[0] + p.rng.Float64()*(b.Max[0]-b.Min[0]),
				b.Min[1] + p.rng.Float64()*(b.Max[1]-b.Min[1]),
			}
			if !p.arena.PointIsFree(sample, cfg.Side) {
				continue
			}
		}

		near := index.NearestNeighbor(toRTPoint(sample)).(*nodeEntry).idx
		from := tree.Nodes[near].Pos
		next := arena.Toward(from, sample, cfg.StepSize)
		if next == from {
			continue
		}
		if !arena.Free(p.arena, from, next, cfg.Side, cfg.Timeout) {
			continue
		}

		idx := len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, Node{Pos: next, Parent: near})
		index.Insert(&nodeEntry{idx: idx, rect: toRTPoint(next).ToRect(pointTol)})

		if d := arena.Dist(next, goal); d < bestD {
			bestD, res.Closest = d, idx
			if d <= cfg.GoalRadius {
				res.Reached = true
			}
		}
	}

	res.Tree = tree
	if !res.Reached {
		return res, fmt.Errorf("%w: %d nodes after %d iterations, closest %.2f from goal",
			ErrNoPath, len(tree.Nodes), res.Iterations, bestD)
	}
	res.Path = tree.PathTo(res.Closest)
	return res, nil
}

// Smooth drops waypoints whose neighbours can see each other directly. The
// first and last points are always kept.
func Smooth(a *arena.Arena, path []orb.Point, side arena.Team, timeout time.Duration) []orb.Point {
	if len(path) < 3 {
		return append([]orb.Point(nil), path...)
	}
	out := []orb.Point{path[0]}
	for i := 0; i < len(path)-1; {
		j := len(path) - 1
		for j > i+1 && !arena.Free(a, path[i], path[j], side, timeout) {
			j--
		}
		out = append(out, path[j])
		i = j
	}
	return out
}
