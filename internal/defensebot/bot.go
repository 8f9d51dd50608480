package defensebot

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

// Mode is what one defender is doing this tick.
type Mode int

const (
	ModeHold    Mode = iota // frozen or nowhere to go
	ModePatrol              // walking the ring around its flag
	ModeChase               // after a carrier in home territory
	ModeRecover             // picking up or carrying home an own dropped flag
	ModeGuard               // standing over an own dropped flag it may not touch
)

func (m Mode) String() string {
	switch m {
	case ModeHold:
		return "hold"
	case ModePatrol:
		return "patrol"
	case ModeChase:
		return "chase"
	case ModeRecover:
		return "recover"
	case ModeGuard:
		return "guard"
	default:
		return "unknown"
	}
}

// Config tunes a defender.
type Config struct {
	PatrolRadius float64 // ring radius around the guarded flag
	PatrolPoints int     // waypoints on the ring
	ReplanTicks  int     // chase paths older than this are replanned
	Seed         int64
	Planner      planner.Config // Side and Seed are overridden per plan
}

// DefaultConfig suits the standard arena.
func DefaultConfig() Config {
	pc := planner.DefaultConfig()
	pc.MaxIterations = 800
	pc.MaxNodes = 300
	return Config{
		PatrolRadius: 5,
		PatrolPoints: 8,
		ReplanTicks:  6,
		Seed:         1,
		Planner:      pc,
	}
}

// mind is the per-agent memory. Path following works like a soldier walking
// a route: consume waypoints as they are reached, replan when the route runs out.
type mind struct {
	mode      Mode
	guard     orb.Point // home of the flag this agent guards
	waypoints []orb.Point
	next      int

	path      []orb.Point
	pathIndex int
	goal      orb.Point
	plannedAt int
}

// Bot is a per-agent controller that guards its team's flags. It satisfies
// game.AgentController and game.TreeSinkUser.
type Bot struct {
	team    arena.Team
	arena   *arena.Arena
	timeout time.Duration
	cfg     Config
	log     *slog.Logger
	sink    game.TreeSink
	pickup  game.DroppedPickup

	homes []orb.Point
	minds map[int]*mind
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger routes planning diagnostics to l at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.log = l }
}

// WithDroppedPickup tells the bot which dropped-flag rule the match plays.
// Under game.PickupOpposingOnly the bot guards its dropped flags instead of
// trying to pick them up.
func WithDroppedPickup(p game.DroppedPickup) Option {
	return func(b *Bot) { b.pickup = p }
}

// New returns a defender for team on a. timeout bounds every oracle query.
func New(team arena.Team, a *arena.Arena, timeout time.Duration, cfg Config, opts ...Option) (*Bot, error) {
	if !team.Valid() {
		return nil, fmt.Errorf("defensebot: team %s", team)
	}
	if a == nil {
		return nil, fmt.Errorf("defensebot: nil arena")
	}
	if !(cfg.PatrolRadius > 0) || cfg.PatrolPoints < 1 || cfg.ReplanTicks < 1 {
		return nil, fmt.Errorf("defensebot: bad patrol settings %+v", cfg)
	}
	pc := cfg.Planner
	pc.Side = team
	if _, err := planner.New(a, pc); err != nil {
		return nil, fmt.Errorf("defensebot: %w", err)
	}
	b := &Bot{
		team:    team,
		arena:   a,
		timeout: timeout,
		cfg:     cfg,
		minds:   map[int]*mind{},
	}
	for _, fn := range opts {
		fn(b)
	}
	if b.log == nil {
		b.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return b, nil
}

// NewForMatch builds a defender from a match config.
func NewForMatch(team arena.Team, mc game.Config, cfg Config, opts ...Option) (*Bot, error) {
	if cfg.Seed == 0 {
		cfg.Seed = mc.Seed
	}
	opts = append([]Option{WithDroppedPickup(mc.DroppedPickup)}, opts...)
	return New(team, mc.Arena, mc.OracleTimeout, cfg, opts...)
}

// SetTreeSink implements game.TreeSinkUser.
func (b *Bot) SetTreeSink(s game.TreeSink) { b.sink = s }

// Mode reports what agent id did on its last decision.
func (b *Bot) Mode(id int) Mode {
	if m, ok := b.minds[id]; ok {
		return m.mode
	}
	return ModeHold
}

// Waypoints returns the patrol ring of agent id.
func (b *Bot) Waypoints(id int) []orb.Point {
	if m, ok := b.minds[id]; ok {
		return append([]orb.Point(nil), m.waypoints...)
	}
	return nil
}

// Startup records the flag homes and lays a patrol ring for every own agent
// around its nearest own flag.
func (b *Bot) Startup(s game.GameState) {
	b.homes = b.homes[:0]
	for _, f := range s.TeamFlags(b.team) {
		b.homes = append(b.homes, f.Home)
	}
	b.minds = map[int]*mind{}
	for _, a := range s.TeamAgents(b.team) {
		b.minds[a.ID] = b.newMind(a.Position)
	}
}

func (b *Bot) newMind(pos orb.Point) *mind {
	m := &mind{mode: ModePatrol, guard: pos}
	best := math.Inf(1)
	for _, h := range b.homes {
		if d := arena.Dist(pos, h); d < best {
			best, m.guard = d, h
		}
	}
	for i := 0; i < b.cfg.PatrolPoints; i++ {
		ang := 2 * math.Pi * float64(i) / float64(b.cfg.PatrolPoints)
		p := arena.Add(m.guard, orb.Point{b.cfg.PatrolRadius * math.Cos(ang), b.cfg.PatrolRadius * math.Sin(ang)})
		if b.arena.Contains(p) && b.arena.PointIsFree(p, b.team) {
			m.waypoints = append(m.waypoints, p)
		}
	}
	if len(m.waypoints) == 0 {
		m.waypoints = []orb.Point{pos}
	}
	// Start with the waypoint closest to the spawn.
	best = math.Inf(1)
	for i, w := range m.waypoints {
		if d := arena.Dist(pos, w); d < best {
			best, m.next = d, i
		}
	}
	return m
}

// Action implements game.AgentController.
func (b *Bot) Action(s game.GameState, self game.AgentState) (game.Action, error) {
	if self.Team != b.team {
		return game.Hold(self.ID), fmt.Errorf("defensebot: agent %d plays for %s, bot defends %s", self.ID, self.Team, b.team)
	}
	m, ok := b.minds[self.ID]
	if !ok {
		m = b.newMind(self.Position)
		b.minds[self.ID] = m
	}
	if self.Frozen() {
		m.mode = ModeHold
		m.path = nil
		return game.Hold(self.ID), nil
	}

	if target, ok := b.intruder(s, self); ok {
		if m.mode != ModeChase {
			m.path = nil
		}
		m.mode = ModeChase
		return b.chase(s, self, m, target), nil
	}
	if self.HasFlag() && s.Flags[self.Carrying].Team == b.team {
		if m.mode != ModeRecover {
			m.path = nil
		}
		m.mode = ModeRecover
		return b.chase(s, self, m, s.Flags[self.Carrying].Home), nil
	}
	if target, ok := b.dropped(s, self); ok {
		mode := ModeGuard
		if b.pickup != game.PickupOpposingOnly {
			mode = ModeRecover
		}
		if m.mode != mode {
			m.path = nil
		}
		m.mode = mode
		act := b.chase(s, self, m, target)
		if mode == ModeRecover {
			act.Intent = game.IntentPickup
		}
		return act, nil
	}

	if m.mode != ModePatrol {
		m.path = nil
	}
	m.mode = ModePatrol
	return b.patrol(s, self, m), nil
}

// intruder finds the nearest opponent carrying one of our flags inside our
// territory.
func (b *Bot) intruder(s game.GameState, self game.AgentState) (orb.Point, bool) {
	var best orb.Point
	bestD := math.Inf(1)
	for _, a := range s.TeamAgents(b.team.Other()) {
		if !a.HasFlag() || s.Flags[a.Carrying].Team != b.team {
			continue
		}
		if !b.arena.InTerritory(a.Position, b.team) {
			continue
		}
		if d := arena.Dist(self.Position, a.Position); d < bestD {
			best, bestD = a.Position, d
		}
	}
	return best, !math.IsInf(bestD, 1)
}

// dropped finds the nearest own flag lying in our territory.
func (b *Bot) dropped(s game.GameState, self game.AgentState) (orb.Point, bool) {
	var best orb.Point
	bestD := math.Inf(1)
	for _, f := range s.TeamFlags(b.team) {
		if f.Status != game.FlagDropped || !b.arena.InTerritory(f.Position, b.team) {
			continue
		}
		if d := arena.Dist(self.Position, f.Position); d < bestD {
			best, bestD = f.Position, d
		}
	}
	return best, !math.IsInf(bestD, 1)
}

func (b *Bot) chase(s game.GameState, self game.AgentState, m *mind, target orb.Point) game.Action {
	stale := m.path == nil || m.pathIndex >= len(m.path) ||
		s.Tick-m.plannedAt >= b.cfg.ReplanTicks ||
		arena.Dist(m.goal, target) > b.cfg.Planner.StepSize
	if stale {
		if !b.replan(s, self, m, target) {
			return b.straight(self, target)
		}
	}
	return b.follow(self, m)
}

func (b *Bot) patrol(s game.GameState, self game.AgentState, m *mind) game.Action {
	wp := m.waypoints[m.next]
	if arena.Dist(self.Position, wp) <= reachEps {
		m.next = (m.next + 1) % len(m.waypoints)
		m.path = nil
		wp = m.waypoints[m.next]
	}
	if arena.Free(b.arena, self.Position, wp, b.team, b.timeout) {
		m.path = nil
		return b.steer(self, wp)
	}
	if m.path == nil || m.pathIndex >= len(m.path) || m.goal != wp {
		if !b.replan(s, self, m, wp) {
			// Unreachable for now; try the next one on a later tick.
			m.next = (m.next + 1) % len(m.waypoints)
			return game.Hold(self.ID)
		}
	}
	return b.follow(self, m)
}

// replan grows a fresh tree from self to goal and publishes it. The seed
// mixes the bot seed with the tick and agent so replays match.
func (b *Bot) replan(s game.GameState, self game.AgentState, m *mind, goal orb.Point) bool {
	pc := b.cfg.Planner
	pc.Side = b.team
	pc.Seed = b.cfg.Seed*1_000_003 + int64(s.Tick)*7919 + int64(self.ID)
	pl, err := planner.New(b.arena, pc)
	if err != nil {
		b.log.Debug("planner setup failed", "agent", self.Label(), "err", err)
		m.path = nil
		return false
	}
	res, err := pl.Plan(self.Position, goal)
	b.publish(s, self, res, goal)
	m.goal = goal
	m.plannedAt = s.Tick
	if err != nil {
		b.log.Debug("no path", "agent", self.Label(), "tick", s.Tick, "goal", goal, "nodes", res.Tree.Len(), "err", err)
		m.path = nil
		return false
	}
	path := planner.Smooth(b.arena, res.Path, b.team, b.timeout)
	if last := path[len(path)-1]; last != goal && arena.Free(b.arena, last, goal, b.team, b.timeout) {
		path = append(path, goal)
	}
	m.path = path
	m.pathIndex = 1
	return true
}

func (b *Bot) publish(s game.GameState, self game.AgentState, res planner.Result, goal orb.Point) {
	if b.sink == nil {
		return
	}
	b.sink.PublishTree(game.TreeSnapshot{
		Tick:    s.Tick,
		AgentID: self.ID,
		Team:    b.team,
		Tree:    res.Tree,
		Path:    res.Path,
		Goal:    goal,
	})
}

const reachEps = 1e-6

// follow steers at the next unreached waypoint of the current path.
func (b *Bot) follow(self game.AgentState, m *mind) game.Action {
	for m.pathIndex < len(m.path) && arena.Dist(self.Position, m.path[m.pathIndex]) <= reachEps {
		m.pathIndex++
	}
	if m.pathIndex >= len(m.path) {
		m.path = nil
		return game.Hold(self.ID)
	}
	return b.steer(self, m.path[m.pathIndex])
}

// straight heads directly at target when the oracle allows the step.
func (b *Bot) straight(self game.AgentState, target orb.Point) game.Action {
	if arena.Free(b.arena, self.Position, b.step(self, target), b.team, b.timeout) {
		return b.steer(self, target)
	}
	return game.Hold(self.ID)
}

func (b *Bot) step(self game.AgentState, target orb.Point) orb.Point {
	return arena.Toward(self.Position, target, self.MaxSpeed)
}

func (b *Bot) steer(self game.AgentState, target orb.Point) game.Action {
	return game.Action{AgentID: self.ID, Velocity: arena.Sub(b.step(self, target), self.Position)}
}
