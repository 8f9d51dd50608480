package game

import (
	"context"
	"time"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/paulmach/orb"
)

// Script decides one agent's action in a TestSim.
type Script func(s GameState, self AgentState) Action

// Seek returns a script that heads straight for target at full speed.
func Seek(target orb.Point) Script {
	return func(_ GameState, self AgentState) Action {
		next := arena.Toward(self.Position, target, self.MaxSpeed)
		return Action{AgentID: self.ID, Velocity: arena.Sub(next, self.Position)}
	}
}

// Steps returns a script that replays fixed velocities, then holds.
func Steps(vs ...orb.Point) Script {
	i := 0
	return func(_ GameState, self AgentState) Action {
		if i >= len(vs) {
			return Hold(self.ID)
		}
		i++
		return Action{AgentID: self.ID, Velocity: vs[i-1]}
	}
}

// TestSim is a headless match harness used by tests. It builds a Config from
// options, drives every agent with a Script, and steps the match on demand.
type TestSim struct {
	Match  *Match
	SimLog *SimLog
	Err    error // first step error, if any

	cfg      Config
	arena    *arena.Arena
	bounds   orb.Bound
	neutral  float64
	walls    []arena.Segment
	noGo     [2][]arena.NoGoZone
	scripts  map[int]Script
	tweaks   []func(*Config)
	verbose  bool
	parallel bool
}

// simOptionKind controls the pass in which an option is applied.
type simOptionKind int

const (
	simOptInfra  simOptionKind = iota // arena, seed, verbose; applied first
	simOptEntity                      // agents, flags, capture points
	simOptScript                      // scripts and config tweaks, applied last
)

// SimOption is a builder function applied to a TestSim during construction.
type SimOption struct {
	kind simOptionKind
	fn   func(*TestSim)
}

// WithSeed sets the match seed.
func WithSeed(seed int64) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.cfg.Seed = seed }}
}

// WithVerbose enables per-tick verbose logging.
func WithVerbose(v bool) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.verbose = v }}
}

// WithArena plays on a prebuilt arena instead of the harness's custom one.
func WithArena(a *arena.Arena) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.arena = a }}
}

// WithBounds sets the custom arena's bounds and neutral half width.
func WithBounds(b orb.Bound, neutralHalf float64) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.bounds = b
		ts.neutral = neutralHalf
	}}
}

// WithWall adds a wall to the custom arena.
func WithWall(ax, ay, bx, by float64) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.walls = append(ts.walls, arena.Segment{A: orb.Point{ax, ay}, B: orb.Point{bx, by}})
	}}
}

// WithNoGo adds a no-go disk for team to the custom arena.
func WithNoGo(team arena.Team, x, y, r float64) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.noGo[team] = append(ts.noGo[team], arena.NoGoZone{Center: orb.Point{x, y}, Radius: r})
	}}
}

// WithAgent adds an agent. Ids follow the order agents are added.
func WithAgent(team arena.Team, x, y float64) SimOption {
	return SimOption{simOptEntity, func(ts *TestSim) {
		ts.cfg.Agents = append(ts.cfg.Agents, AgentSpawn{
			Name:     agentLabel(team, len(ts.cfg.Agents)),
			Team:     team,
			Position: orb.Point{x, y},
		})
	}}
}

// WithFlag adds a flag at its home.
func WithFlag(team arena.Team, x, y float64) SimOption {
	return SimOption{simOptEntity, func(ts *TestSim) {
		ts.cfg.Flags = append(ts.cfg.Flags, FlagSpawn{
			Name: team.String() + "_flag",
			Team: team,
			Home: orb.Point{x, y},
		})
	}}
}

// WithCapturePoint adds a capture point.
func WithCapturePoint(team arena.Team, x, y float64) SimOption {
	return SimOption{simOptEntity, func(ts *TestSim) {
		ts.cfg.CapturePoints = append(ts.cfg.CapturePoints, CapturePointSpawn{Team: team, Position: orb.Point{x, y}})
	}}
}

// WithScript drives agent id with s. Agents without a script hold still.
func WithScript(id int, s Script) SimOption {
	return SimOption{simOptScript, func(ts *TestSim) { ts.scripts[id] = s }}
}

// WithConfig edits the generated config before the match is built.
func WithConfig(fn func(*Config)) SimOption {
	return SimOption{simOptScript, func(ts *TestSim) { ts.tweaks = append(ts.tweaks, fn) }}
}

// WithParallel collects team decisions concurrently.
func WithParallel() SimOption {
	return SimOption{simOptScript, func(ts *TestSim) { ts.parallel = true }}
}

// NewTestSim constructs a TestSim from the given options in ordered passes:
//  1. Infrastructure (arena, seed, verbose)
//  2. Agents, flags and capture points
//  3. Scripts and config tweaks
//
// The default arena is an empty 100x100 box with a neutral strip of half
// width 5, and the default rules are plain: speed 1, capture radius 2, no
// tagging, no score limit, flags stay captured.
func NewTestSim(opts ...SimOption) (*TestSim, error) {
	ts := &TestSim{
		bounds:  arena.StandardBounds,
		neutral: arena.StandardNeutralHalf,
		scripts: map[int]Script{},
		cfg: Config{
			MaxTicks:      1000,
			SpeedCap:      1,
			CaptureRadius: 2,
			OracleTimeout: 50 * time.Millisecond,
			Seed:          1,
			AutoPickup:    true,
		},
	}
	for _, kind := range []simOptionKind{simOptInfra, simOptEntity, simOptScript} {
		for _, o := range opts {
			if o.kind == kind {
				o.fn(ts)
			}
		}
	}

	if ts.arena == nil {
		aopts := []arena.Option{arena.WithWalls(arena.WallsCustom, ts.walls...)}
		for _, team := range arena.Teams {
			if len(ts.noGo[team]) > 0 {
				aopts = append(aopts, arena.WithNoGoZone(team, ts.noGo[team]...))
			}
		}
		a, err := arena.New(ts.bounds, ts.neutral, aopts...)
		if err != nil {
			return nil, err
		}
		ts.arena = a
	}
	ts.cfg.Arena = ts.arena
	ts.cfg.ParallelDecisions = ts.parallel
	for _, fn := range ts.tweaks {
		fn(&ts.cfg)
	}

	var teams []TeamController
	for _, team := range arena.Teams {
		for _, a := range ts.cfg.Agents {
			if a.Team == team {
				teams = append(teams, PerAgent(team, scripted(ts.scripts)))
				break
			}
		}
	}

	ts.SimLog = NewSimLog(ts.verbose)
	m, err := NewMatch(ts.cfg, teams, WithSimLog(ts.SimLog))
	if err != nil {
		return nil, err
	}
	ts.Match = m
	if err := m.Start(); err != nil {
		return nil, err
	}
	return ts, nil
}

// scripted adapts a script table to AgentController.
type scripted map[int]Script

func (scripted) Startup(GameState) {}

func (s scripted) Action(gs GameState, self AgentState) (Action, error) {
	if fn, ok := s[self.ID]; ok {
		return fn(gs, self), nil
	}
	return Hold(self.ID), nil
}

// State returns the current state.
func (ts *TestSim) State() GameState { return ts.Match.State() }

// Tick returns the current tick.
func (ts *TestSim) Tick() int { return ts.Match.state.Tick }

// Agent returns agent id.
func (ts *TestSim) Agent(id int) AgentState { return ts.Match.state.Agents[id] }

// Flag returns flag id.
func (ts *TestSim) Flag(id int) FlagState { return ts.Match.state.Flags[id] }

// RunTicks advances the match n ticks, stopping early if it ends.
func (ts *TestSim) RunTicks(n int) {
	for i := 0; i < n && ts.step(); i++ {
	}
}

// RunUntil advances the match up to maxTicks, stopping early if predicate
// returns true. Returns the tick at which the predicate was satisfied, or -1.
func (ts *TestSim) RunUntil(predicate func(*TestSim) bool, maxTicks int) int {
	for i := 0; i < maxTicks; i++ {
		if !ts.step() {
			return -1
		}
		if predicate(ts) {
			return ts.Tick()
		}
	}
	return -1
}

func (ts *TestSim) step() bool {
	if ts.Match.state.Status != MatchRunning {
		return false
	}
	if _, err := ts.Match.Step(context.Background()); err != nil {
		if ts.Err == nil {
			ts.Err = err
		}
		return false
	}
	return true
}
