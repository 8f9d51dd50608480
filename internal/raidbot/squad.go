// Package raidbot is a team-level attacker: one squad decides for every agent
// of its team, sending runners at enemy flags and carriers home to score.
package raidbot

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/Garsondee/Flag-Sense/internal/game"
	"github.com/Garsondee/Flag-Sense/internal/planner"
	"github.com/paulmach/orb"
)

// Phase is a runner's current order.
type Phase int

const (
	PhaseRegroup Phase = iota // nothing to take; wait near the midline
	PhaseAdvance              // go for an enemy flag
	PhaseEscape               // carrying; run for a capture point
	PhaseFrozen               // tagged, serving the cooldown
)

func (p Phase) String() string {
	switch p {
	case PhaseRegroup:
		return "regroup"
	case PhaseAdvance:
		return "advance"
	case PhaseEscape:
		return "escape"
	case PhaseFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// Config tunes a squad.
type Config struct {
	ReplanTicks  int     // paths older than this are replanned
	TargetLock   int     // ticks a runner keeps its flag before re-choosing
	RegroupDepth float64 // how far behind the neutral strip runners wait
	Seed         int64
	Planner      planner.Config // Side and Seed are overridden per plan
}

// DefaultConfig suits the standard arena.
func DefaultConfig() Config {
	pc := planner.DefaultConfig()
	pc.MaxIterations = 1200
	pc.MaxNodes = 500
	return Config{
		ReplanTicks:  20,
		TargetLock:   45,
		RegroupDepth: 8,
		Seed:         1,
		Planner:      pc,
	}
}

// runner is one member's order and route.
type runner struct {
	phase      Phase
	target     int // flag id while advancing, -1 otherwise
	lockUntil  int
	goal       orb.Point
	path       []orb.Point
	pathIndex  int
	plannedAt  int
	stuckTicks int
}

// Squad satisfies game.BatchController and game.TreeSinkUser.
type Squad struct {
	team    arena.Team
	arena   *arena.Arena
	timeout time.Duration
	reach   float64
	cfg     Config
	log     *slog.Logger
	sink    game.TreeSink

	runners map[int]*runner
}

// Option configures a Squad.
type Option func(*Squad)

// WithLogger routes order changes and planning failures to l at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(sq *Squad) { sq.log = l }
}

// New returns a squad for team. reach is the capture radius of the match.
func New(team arena.Team, a *arena.Arena, timeout time.Duration, reach float64, cfg Config, opts ...Option) (*Squad, error) {
	if !team.Valid() {
		return nil, fmt.Errorf("raidbot: team %s", team)
	}
	if a == nil {
		return nil, fmt.Errorf("raidbot: nil arena")
	}
	if !(reach > 0) || cfg.ReplanTicks < 1 || cfg.TargetLock < 0 || cfg.RegroupDepth < 0 {
		return nil, fmt.Errorf("raidbot: bad settings reach=%v %+v", reach, cfg)
	}
	pc := cfg.Planner
	pc.Side = team
	if _, err := planner.New(a, pc); err != nil {
		return nil, fmt.Errorf("raidbot: %w", err)
	}
	sq := &Squad{
		team:    team,
		arena:   a,
		timeout: timeout,
		reach:   reach,
		cfg:     cfg,
		runners: map[int]*runner{},
	}
	for _, fn := range opts {
		fn(sq)
	}
	if sq.log == nil {
		sq.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return sq, nil
}

// NewForMatch builds a squad from a match config.
func NewForMatch(team arena.Team, mc game.Config, cfg Config, opts ...Option) (*Squad, error) {
	if cfg.Seed == 0 {
		cfg.Seed = mc.Seed
	}
	return New(team, mc.Arena, mc.OracleTimeout, mc.CaptureRadius, cfg, opts...)
}

// SetTreeSink implements game.TreeSinkUser.
func (sq *Squad) SetTreeSink(s game.TreeSink) { sq.sink = s }

// Phase reports the current order of agent id.
func (sq *Squad) Phase(id int) Phase {
	if r, ok := sq.runners[id]; ok {
		return r.phase
	}
	return PhaseRegroup
}

// Startup implements game.Controller.
func (sq *Squad) Startup(s game.GameState) {
	sq.runners = map[int]*runner{}
	for _, a := range s.TeamAgents(sq.team) {
		sq.runners[a.ID] = &runner{target: game.NoFlag}
	}
}

// Actions implements game.BatchController. Runners are ordered in id order so
// flag assignments do not depend on map iteration.
func (sq *Squad) Actions(s game.GameState) ([]game.Action, error) {
	agents := s.TeamAgents(sq.team)
	claimed := map[int]bool{}
	for _, a := range agents {
		if r := sq.runners[a.ID]; r != nil && r.phase == PhaseAdvance && s.Tick < r.lockUntil {
			claimed[r.target] = true
		}
	}

	acts := make([]game.Action, 0, len(agents))
	for _, self := range agents {
		r := sq.runners[self.ID]
		if r == nil {
			r = &runner{target: game.NoFlag}
			sq.runners[self.ID] = r
		}
		acts = append(acts, sq.decide(s, self, r, claimed))
	}
	return acts, nil
}

func (sq *Squad) setPhase(s game.GameState, self game.AgentState, r *runner, p Phase) {
	if r.phase == p {
		return
	}
	sq.log.Debug("order", "agent", self.Label(), "tick", s.Tick, "from", r.phase.String(), "to", p.String())
	r.phase = p
	r.path = nil
	r.stuckTicks = 0
}

func (sq *Squad) decide(s game.GameState, self game.AgentState, r *runner, claimed map[int]bool) game.Action {
	switch {
	case self.Frozen():
		sq.setPhase(s, self, r, PhaseFrozen)
		return game.Hold(self.ID)

	case self.HasFlag():
		sq.setPhase(s, self, r, PhaseEscape)
		r.target = game.NoFlag
		cp, ok := sq.nearestCapturePoint(s, self.Position)
		if !ok {
			return game.Hold(self.ID)
		}
		return sq.moveTo(s, self, r, cp, game.IntentNone)
	}

	if r.phase != PhaseAdvance || s.Tick >= r.lockUntil || !sq.takeable(s, r.target) {
		if f, ok := sq.chooseFlag(s, self, claimed); ok {
			r.target = f.ID
			r.lockUntil = s.Tick + sq.cfg.TargetLock
			claimed[f.ID] = true
		} else {
			r.target = game.NoFlag
		}
	}
	if r.target == game.NoFlag {
		sq.setPhase(s, self, r, PhaseRegroup)
		return sq.moveTo(s, self, r, sq.regroupPoint(self.Position), game.IntentNone)
	}
	sq.setPhase(s, self, r, PhaseAdvance)
	f, _ := s.Flag(r.target)
	intent := game.IntentNone
	if arena.Dist(self.Position, f.Position) <= sq.reach {
		intent = game.IntentPickup
	}
	return sq.moveTo(s, self, r, f.Position, intent)
}

// takeable reports whether flag id is an enemy flag that can still be picked up.
func (sq *Squad) takeable(s game.GameState, id int) bool {
	f, ok := s.Flag(id)
	if !ok || f.Team == sq.team {
		return false
	}
	return f.Status == game.FlagAtHome || f.Status == game.FlagDropped
}

// chooseFlag picks the nearest takeable enemy flag nobody else has claimed,
// falling back to a claimed one when every flag is taken.
func (sq *Squad) chooseFlag(s game.GameState, self game.AgentState, claimed map[int]bool) (game.FlagState, bool) {
	var best, shared game.FlagState
	bestD, sharedD := math.Inf(1), math.Inf(1)
	for _, f := range s.Flags {
		if !sq.takeable(s, f.ID) {
			continue
		}
		d := arena.Dist(self.Position, f.Position)
		if claimed[f.ID] {
			if d < sharedD {
				shared, sharedD = f, d
			}
			continue
		}
		if d < bestD {
			best, bestD = f, d
		}
	}
	if !math.IsInf(bestD, 1) {
		return best, true
	}
	return shared, !math.IsInf(sharedD, 1)
}

func (sq *Squad) nearestCapturePoint(s game.GameState, from orb.Point) (orb.Point, bool) {
	var best orb.Point
	bestD := math.Inf(1)
	for _, cp := range s.TeamCapturePoints(sq.team) {
		if d := arena.Dist(from, cp.Position); d < bestD {
			best, bestD = cp.Position, d
		}
	}
	return best, !math.IsInf(bestD, 1)
}

// regroupPoint is straight back from from to just behind our edge of the
// neutral strip.
func (sq *Squad) regroupPoint(from orb.Point) orb.Point {
	b := sq.arena.Bounds()
	mid := b.Center()[0]
	back := sq.arena.NeutralHalfWidth() + sq.cfg.RegroupDepth
	x := mid - back
	if sq.team.Territory() == arena.TerritoryRight {
		x = mid + back
	}
	p := orb.Point{x, from[1]}
	if !sq.arena.PointIsFree(p, sq.team) {
		p = orb.Point{x, (b.Min[1] + b.Max[1]) / 2}
	}
	return p
}

// moveTo follows a planned route to goal, replanning when the goal moves, the
// route is old, or the runner has not moved for a few ticks.
func (sq *Squad) moveTo(s game.GameState, self game.AgentState, r *runner, goal orb.Point, intent game.Intent) game.Action {
	if arena.Length(self.Velocity) < reachEps {
		r.stuckTicks++
	} else {
		r.stuckTicks = 0
	}
	if arena.Free(sq.arena, self.Position, goal, sq.team, sq.timeout) {
		r.path = nil
		return sq.steer(self, goal, intent)
	}
	stale := r.path == nil || r.pathIndex >= len(r.path) ||
		s.Tick-r.plannedAt >= sq.cfg.ReplanTicks ||
		arena.Dist(r.goal, goal) > sq.cfg.Planner.StepSize ||
		r.stuckTicks > 3
	if stale && !sq.replan(s, self, r, goal) {
		act := game.Hold(self.ID)
		act.Intent = intent
		return act
	}
	for r.pathIndex < len(r.path) && arena.Dist(self.Position, r.path[r.pathIndex]) <= reachEps {
		r.pathIndex++
	}
	if r.pathIndex >= len(r.path) {
		r.path = nil
		act := game.Hold(self.ID)
		act.Intent = intent
		return act
	}
	return sq.steer(self, r.path[r.pathIndex], intent)
}

func (sq *Squad) replan(s game.GameState, self game.AgentState, r *runner, goal orb.Point) bool {
	pc := sq.cfg.Planner
	pc.Side = sq.team
	pc.Seed = sq.cfg.Seed*7_000_003 + int64(s.Tick)*104_729 + int64(self.ID)
	pl, err := planner.New(sq.arena, pc)
	if err != nil {
		r.path = nil
		return false
	}
	res, err := pl.Plan(self.Position, goal)
	if sq.sink != nil {
		sq.sink.PublishTree(game.TreeSnapshot{
			Tick: s.Tick, AgentID: self.ID, Team: sq.team,
			Tree: res.Tree, Path: res.Path, Goal: goal,
		})
	}
	r.goal = goal
	r.plannedAt = s.Tick
	r.stuckTicks = 0
	if err != nil {
		sq.log.Debug("no path", "agent", self.Label(), "tick", s.Tick, "goal", goal, "err", err)
		r.path = nil
		return false
	}
	path := planner.Smooth(sq.arena, res.Path, sq.team, sq.timeout)
	if last := path[len(path)-1]; last != goal && arena.Free(sq.arena, last, goal, sq.team, sq.timeout) {
		path = append(path, goal)
	}
	r.path = path
	r.pathIndex = 1
	return true
}

const reachEps = 1e-6

func (sq *Squad) steer(self game.AgentState, target orb.Point, intent game.Intent) game.Action {
	next := arena.Toward(self.Position, target, self.MaxSpeed)
	return game.Action{AgentID: self.ID, Velocity: arena.Sub(next, self.Position), Intent: intent}
}
