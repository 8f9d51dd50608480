package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrMatchState is returned when Start or Step is called out of order.
var ErrMatchState = errors.New("match not in the required state")

// RunOption configures a match.
type RunOption func(*runOptions)

type runOptions struct {
	logger       *slog.Logger
	recorder     func(GameState) error
	tickInterval time.Duration
	simLog       *SimLog
	feedBuffer   int
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) RunOption {
	return func(o *runOptions) { o.logger = l }
}

// WithRecorder is called with every published state, the initial one
// included. A recorder error aborts the run.
func WithRecorder(fn func(GameState) error) RunOption {
	return func(o *runOptions) { o.recorder = fn }
}

// WithTickInterval paces the run loop to one tick per interval.
func WithTickInterval(d time.Duration) RunOption {
	return func(o *runOptions) { o.tickInterval = d }
}

// WithSimLog records match events into sl.
func WithSimLog(sl *SimLog) RunOption {
	return func(o *runOptions) { o.simLog = sl }
}

// WithFeedBuffer sizes the observer feed channel used by Run.
func WithFeedBuffer(n int) RunOption {
	return func(o *runOptions) { o.feedBuffer = n }
}

// Match owns the authoritative world state of one game.
type Match struct {
	id    uuid.UUID
	cfg   Config
	teams []TeamController // one per team, in team order
	opts  runOptions
	log   *slog.Logger
	sim   *SimLog
	rng   *rand.Rand

	state  GameState
	faults [2]int
	trees  TreeSink

	// publish is called with a private copy of every published state.
	publish   []func(GameState)
	recordErr error
}

// NewMatch validates cfg and teams and builds an idle match. Every setup
// error is returned here, before any tick runs.
func NewMatch(cfg Config, teams []TeamController, opts ...RunOption) (*Match, error) {
	o := runOptions{feedBuffer: 64}
	for _, fn := range opts {
		fn(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var seen [2]bool
	for _, tc := range teams {
		if err := tc.validate(); err != nil {
			return nil, err
		}
		if seen[tc.team] {
			return nil, fmt.Errorf("%w: two controllers for %s", ErrInvalidConfig, tc.team)
		}
		seen[tc.team] = true
	}
	for i, a := range cfg.Agents {
		if !seen[a.Team] {
			return nil, fmt.Errorf("%w: agent %d plays for %s, which has no controller", ErrInvalidConfig, i, a.Team)
		}
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sim := o.simLog
	if sim == nil {
		sim = NewSimLog(false)
	}

	m := &Match{
		id:    uuid.New(),
		cfg:   cfg,
		teams: append([]TeamController(nil), teams...),
		opts:  o,
		sim:   sim,
		rng:   rand.New(rand.NewSource(cfg.Seed)), // #nosec G404 -- game only
		trees: discardTrees{},
	}
	sort.SliceStable(m.teams, func(i, j int) bool { return m.teams[i].team < m.teams[j].team })
	m.log = logger.With("match", m.id.String())
	m.state = initialState(cfg)
	if o.recorder != nil {
		rec := o.recorder
		m.publish = append(m.publish, func(s GameState) {
			if err := rec(s); err != nil && m.recordErr == nil {
				m.recordErr = err
			}
		})
	}
	return m, nil
}

func initialState(cfg Config) GameState {
	s := GameState{Status: MatchIdle, Winner: arena.NoTeam}
	for i, a := range cfg.Agents {
		s.Agents = append(s.Agents, AgentState{
			ID:       i,
			Name:     a.Name,
			Team:     a.Team,
			Position: a.Position,
			Carrying: NoFlag,
			MaxSpeed: cfg.SpeedCap,
		})
	}
	for i, f := range cfg.Flags {
		s.Flags = append(s.Flags, FlagState{
			ID:       i,
			Name:     f.Name,
			Team:     f.Team,
			Status:   FlagAtHome,
			Position: f.Home,
			Home:     f.Home,
			Carrier:  NoAgent,
		})
	}
	for i, cp := range cfg.CapturePoints {
		s.CapturePoints = append(s.CapturePoints, CapturePoint{ID: i, Team: cp.Team, Position: cp.Position})
	}
	return s
}

// ID identifies the match in logs, replays and results.
func (m *Match) ID() uuid.UUID { return m.id }

// State returns a copy of the current state.
func (m *Match) State() GameState { return m.state.Clone() }

// SimLog returns the event log the match writes to.
func (m *Match) SimLog() *SimLog { return m.sim }

// Config returns the match configuration.
func (m *Match) Config() Config { return m.cfg }

// setTreeSink routes planner trees from tree-aware controllers to sink.
func (m *Match) setTreeSink(sink TreeSink) { m.trees = sink }

// Start moves the match from idle to running, publishes the initial state and
// calls every controller's Startup once.
func (m *Match) Start() error {
	if m.state.Status != MatchIdle {
		return fmt.Errorf("%w: start from %s", ErrMatchState, m.state.Status)
	}
	m.state.Status = MatchRunning
	_, headless := m.trees.(discardTrees)
	for _, tc := range m.teams {
		if u, ok := tc.controller().(TreeSinkUser); ok && !headless {
			u.SetTreeSink(m.trees)
		}
		if err := tc.startup(m.state.Clone()); err != nil {
			m.fault(tc.team, 0, err)
		}
	}
	m.log.Info("match started",
		"agents", len(m.state.Agents),
		"flags", len(m.state.Flags),
		"max_ticks", m.cfg.MaxTicks,
		"seed", m.cfg.Seed,
	)
	m.sim.Add(0, "--", "--", "match", "start", fmt.Sprintf("%d agents, %d flags", len(m.state.Agents), len(m.state.Flags)), 0)
	m.emit()
	return m.recordErr
}

// Step runs one tick and returns the published state.
func (m *Match) Step(ctx context.Context) (GameState, error) {
	if m.state.Status != MatchRunning {
		return m.state.Clone(), fmt.Errorf("%w: step while %s", ErrMatchState, m.state.Status)
	}
	if err := ctx.Err(); err != nil {
		return m.state.Clone(), err
	}
	tick := m.state.Tick + 1

	acts := m.collectActions(tick)
	m.moveAgents(tick, acts)
	m.resolveFlags(tick, acts)
	m.state.Tick = tick
	m.checkEnd()

	for _, a := range m.state.Agents {
		m.sim.AddVerbose(tick, a.Label(), a.Team.String(), "move", "position",
			fmt.Sprintf("(%.2f, %.2f)", a.Position[0], a.Position[1]), arena.Length(a.Velocity))
	}
	m.emit()
	return m.state.Clone(), m.recordErr
}

// collectActions asks every controller for its actions against one shared
// snapshot. The result is indexed by agent id; agents without a controller
// action hold still.
func (m *Match) collectActions(tick int) []Action {
	acts := make([]Action, len(m.state.Agents))
	for i := range acts {
		acts[i] = Hold(i)
	}

	type decision struct {
		acts    []Action
		invalid int
		faults  []error
	}
	results := make([]decision, len(m.teams))
	snap := m.state

	if m.cfg.ParallelDecisions && len(m.teams) > 1 {
		var g errgroup.Group
		for i, tc := range m.teams {
			i, tc := i, tc
			g.Go(func() error {
				a, inv, faults := tc.decide(snap.Clone())
				results[i] = decision{a, inv, faults}
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, tc := range m.teams {
			a, inv, faults := tc.decide(snap.Clone())
			results[i] = decision{a, inv, faults}
		}
	}

	for i, r := range results {
		team := m.teams[i].team
		for _, err := range r.faults {
			m.fault(team, tick, err)
		}
		if r.invalid > 0 {
			m.log.Debug("ignored foreign actions", "team", team.String(), "tick", tick, "count", r.invalid)
			m.sim.Add(tick, "--", team.String(), "agent", "invalid_action",
				fmt.Sprintf("%d actions for agents %s does not control", r.invalid, team), float64(r.invalid))
		}
		for _, a := range r.acts {
			acts[a.AgentID] = a
		}
	}
	return acts
}

func (m *Match) fault(team arena.Team, tick int, err error) {
	m.faults[team]++
	m.log.Warn("decision logic fault", "team", team.String(), "tick", tick, "err", err)
	m.sim.Add(tick, "--", team.String(), "agent", "fault", err.Error(), float64(m.faults[team]))
}

// checkEnd ends the match on the score limit, the tick limit, or when every
// flag has been captured for good.
func (m *Match) checkEnd() {
	reason := ""
	switch {
	case m.cfg.ScoreLimit > 0 && (m.state.Scores[arena.TeamRed] >= m.cfg.ScoreLimit ||
		m.state.Scores[arena.TeamBlue] >= m.cfg.ScoreLimit):
		reason = "score_limit"
	case m.state.Tick >= m.cfg.MaxTicks:
		reason = "max_ticks"
	case !m.cfg.ResetOnCapture && allCaptured(m.state.Flags):
		reason = "all_captured"
	default:
		return
	}

	m.state.Status = MatchEnded
	red, blue := m.state.Scores[arena.TeamRed], m.state.Scores[arena.TeamBlue]
	switch {
	case red > blue:
		m.state.Winner = arena.TeamRed
	case blue > red:
		m.state.Winner = arena.TeamBlue
	default:
		m.state.Winner = arena.NoTeam
	}
	m.log.Info("match ended",
		"reason", reason,
		"tick", m.state.Tick,
		"winner", m.state.Winner.String(),
		"red", red,
		"blue", blue,
	)
	m.sim.Add(m.state.Tick, "--", m.state.Winner.String(), "match", "end",
		fmt.Sprintf("%s red=%d blue=%d", reason, red, blue), float64(red-blue))
}

func allCaptured(flags []FlagState) bool {
	for _, f := range flags {
		if f.Status != FlagCaptured {
			return false
		}
	}
	return len(flags) > 0
}

func (m *Match) emit() {
	for _, fn := range m.publish {
		fn(m.state.Clone())
	}
}

// Result summarises the match as it stands.
func (m *Match) Result() MatchResult {
	return MatchResult{
		ID:     m.id,
		Winner: m.state.Winner,
		Scores: m.state.Scores,
		Ticks:  m.state.Tick,
		Final:  m.state.Clone(),
		Faults: m.faults,
	}
}
