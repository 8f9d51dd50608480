package defensebot

import (
	"context"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/Garsondee/Flag-Sense/internal/game"
	"github.com/paulmach/orb"
)

// raider grabs the first opposing flag it can see and runs for its own
// capture point.
type raider struct{ team arena.Team }

func (raider) Startup(game.GameState) {}

func (r raider) Action(s game.GameState, self game.AgentState) (game.Action, error) {
	target := self.Position
	if self.HasFlag() {
		if cps := s.TeamCapturePoints(r.team); len(cps) > 0 {
			target = cps[0].Position
		}
	} else if fs := s.TeamFlags(r.team.Other()); len(fs) > 0 {
		target = fs[0].Position
	}
	next := arena.Toward(self.Position, target, self.MaxSpeed)
	return game.Action{AgentID: self.ID, Velocity: arena.Sub(next, self.Position)}, nil
}

type treeLog struct {
	mu    sync.Mutex
	trees []game.TreeSnapshot
}

func (l *treeLog) PublishTree(t game.TreeSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trees = append(l.trees, t)
}

func openArena(t *testing.T, opts ...arena.Option) *arena.Arena {
	t.Helper()
	a, err := arena.New(arena.StandardBounds, arena.StandardNeutralHalf, opts...)
	if err != nil {
		t.Fatalf("arena: %v", err)
	}
	return a
}

// raidConfig puts a blue raider next to the red flag and one red defender
// nearby.
func raidConfig(a *arena.Arena) game.Config {
	return game.Config{
		Arena:             a,
		MaxTicks:          150,
		SpeedCap:          1,
		CaptureRadius:     2,
		OracleTimeout:     50 * time.Millisecond,
		Seed:              3,
		CarrierSpeedCap:   0.5,
		TagRadius:         1.5,
		TagCooldownTicks:  30,
		DropCooldownTicks: 10,
		DropScatter:       2,
		ResetOnCapture:    true,
		AutoPickup:        true,
		Agents: []game.AgentSpawn{
			{Name: "defender", Team: arena.TeamRed, Position: orb.Point{30, 6}},
			{Name: "raider", Team: arena.TeamBlue, Position: orb.Point{38, 0}},
		},
		Flags: []game.FlagSpawn{
			{Name: "red_flag", Team: arena.TeamRed, Home: orb.Point{40, 0}},
		},
		CapturePoints: []game.CapturePointSpawn{
			{Team: arena.TeamBlue, Position: orb.Point{-20, 0}},
		},
	}
}

func mustBot(t *testing.T, team arena.Team, mc game.Config) *Bot {
	t.Helper()
	b, err := NewForMatch(team, mc, DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestBot_PatrolRingAroundFlag(t *testing.T) {
	mc, err := game.DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	b := mustBot(t, arena.TeamRed, mc)
	m, err := game.NewMatch(mc, []game.TeamController{
		game.PerAgent(arena.TeamRed, b),
		game.PerAgent(arena.TeamBlue, raider{arena.TeamBlue}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	home := mc.Flags[0].Home
	for _, ag := range m.State().TeamAgents(arena.TeamRed) {
		wps := b.Waypoints(ag.ID)
		if len(wps) == 0 {
			t.Fatalf("%s has no patrol ring", ag.Label())
		}
		for _, w := range wps {
			if d := arena.Dist(w, home); math.Abs(d-DefaultConfig().PatrolRadius) > 1e-9 {
				t.Fatalf("waypoint %v is %.2f from the flag", w, d)
			}
			if !mc.Arena.PointIsFree(w, arena.TeamRed) {
				t.Fatalf("waypoint %v is blocked for red", w)
			}
		}
		t.Logf("%s patrols %d waypoints", ag.Label(), len(wps))
	}
}

func TestBot_StaysHomeAndOutOfCamp(t *testing.T) {
	mc, err := game.DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	mc.MaxTicks = 300
	b := mustBot(t, arena.TeamRed, mc)
	var states []game.GameState
	_, err = game.RunHeadless(context.Background(), mc, []game.TeamController{
		game.PerAgent(arena.TeamRed, b),
		game.PerAgent(arena.TeamBlue, holder{}),
	}, game.WithRecorder(func(s game.GameState) error {
		states = append(states, s)
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	moved := false
	for _, s := range states {
		for _, a := range s.TeamAgents(arena.TeamRed) {
			if !mc.Arena.InTerritory(a.Position, arena.TeamRed) {
				t.Fatalf("T=%d: %s left home territory: %v", s.Tick, a.Label(), a.Position)
			}
			if !mc.Arena.PointIsFree(a.Position, arena.TeamRed) {
				t.Fatalf("T=%d: %s inside its camp zone: %v", s.Tick, a.Label(), a.Position)
			}
			if a.Position != mc.Agents[a.ID].Position {
				moved = true
			}
		}
	}
	if !moved {
		t.Fatal("defenders never moved")
	}
	for _, a := range states[len(states)-1].TeamAgents(arena.TeamRed) {
		if b.Mode(a.ID) != ModePatrol {
			t.Fatalf("%s in mode %s with no intruders", a.Label(), b.Mode(a.ID))
		}
	}
}

type holder struct{}

func (holder) Startup(game.GameState) {}

func (holder) Action(_ game.GameState, self game.AgentState) (game.Action, error) {
	return game.Hold(self.ID), nil
}

func TestBot_ChasesAndTagsCarrier(t *testing.T) {
	mc := raidConfig(openArena(t))
	b := mustBot(t, arena.TeamRed, mc)
	trees := &treeLog{}
	b.SetTreeSink(trees)
	sl := game.NewSimLog(false)

	m, err := game.NewMatch(mc, []game.TeamController{
		game.PerAgent(arena.TeamRed, b),
		game.PerAgent(arena.TeamBlue, raider{arena.TeamBlue}),
	}, game.WithSimLog(sl))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	chased := false
	for i := 0; i < 60 && sl.CountCategory("flag", "tag") == 0; i++ {
		if _, err := m.Step(ctx); err != nil {
			t.Fatal(err)
		}
		chased = chased || b.Mode(0) == ModeChase
	}
	if sl.CountCategory("flag", "tag") == 0 {
		for _, e := range sl.Filter("flag", "") {
			t.Log(e.String())
		}
		t.Fatalf("defender never tagged the carrier; final state %+v", m.State().Agents)
	}
	if !chased {
		t.Fatal("defender never switched to chase")
	}
	if s := m.State(); s.Scores != [2]int{} {
		t.Fatalf("raider scored: %v", s.Scores)
	}
	// The chase publishes trees even though the sink was set directly.
	if len(trees.trees) == 0 {
		t.Fatal("no planner trees published")
	}
	for _, tr := range trees.trees {
		if tr.AgentID != 0 || tr.Team != arena.TeamRed || tr.Tree.Len() == 0 {
			t.Fatalf("bad snapshot: agent %d team %s nodes %d", tr.AgentID, tr.Team, tr.Tree.Len())
		}
	}
	t.Logf("tag after %d ticks, %d trees", m.State().Tick, len(trees.trees))
}

func TestBot_PlansAroundWall(t *testing.T) {
	// A wall sits between the defender and its patrol ring.
	a := openArena(t, arena.WithWalls(arena.WallsSide, arena.Segment{A: orb.Point{33, -8}, B: orb.Point{33, 8}}))
	mc := raidConfig(a)
	mc.Agents = []game.AgentSpawn{
		{Name: "defender", Team: arena.TeamRed, Position: orb.Point{25, 0}},
		{Name: "raider", Team: arena.TeamBlue, Position: orb.Point{-40, 0}},
	}
	mc.MaxTicks = 80
	b := mustBot(t, arena.TeamRed, mc)
	trees := &treeLog{}

	obs := &treeObserver{log: trees}
	var last game.GameState
	_, err := game.Run(context.Background(), mc, obs, []game.TeamController{
		game.PerAgent(arena.TeamRed, b),
		game.PerAgent(arena.TeamBlue, holder{}),
	}, game.WithFeedBuffer(4096), game.WithRecorder(func(s game.GameState) error {
		last = s
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if len(trees.trees) == 0 {
		t.Fatal("defender never planned around the wall")
	}
	if x := last.Agents[0].Position[0]; x <= 33 {
		// Every waypoint lies beyond the wall.
		t.Fatalf("defender stuck at %v", last.Agents[0].Position)
	}
}

type treeObserver struct{ log *treeLog }

func (treeObserver) ObserveState(game.GameState) {}

func (o treeObserver) ObserveTree(t game.TreeSnapshot) { o.log.PublishTree(t) }

func TestBot_Deterministic(t *testing.T) {
	run := func() []game.GameState {
		mc := raidConfig(openArena(t))
		var states []game.GameState
		_, err := game.RunHeadless(context.Background(), mc, []game.TeamController{
			game.PerAgent(arena.TeamRed, mustBot(t, arena.TeamRed, mc)),
			game.PerAgent(arena.TeamBlue, raider{arena.TeamBlue}),
		}, game.WithRecorder(func(s game.GameState) error {
			states = append(states, s)
			return nil
		}))
		if err != nil {
			t.Fatal(err)
		}
		return states
	}
	if !reflect.DeepEqual(run(), run()) {
		t.Fatal("two runs with the same seed diverged")
	}
}

func TestBot_FrozenHolds(t *testing.T) {
	mc := raidConfig(openArena(t))
	b := mustBot(t, arena.TeamRed, mc)
	s := game.GameState{Agents: []game.AgentState{{ID: 0, Team: arena.TeamRed, Position: orb.Point{30, 6}, MaxSpeed: 1, FrozenTicks: 4, Carrying: game.NoFlag}}}
	b.Startup(s)
	act, err := b.Action(s, s.Agents[0])
	if err != nil {
		t.Fatal(err)
	}
	if act != game.Hold(0) || b.Mode(0) != ModeHold {
		t.Fatalf("frozen agent acted: %+v in %s", act, b.Mode(0))
	}
}

func TestBot_DroppedFlagFollowsPickupPolicy(t *testing.T) {
	tests := []struct {
		policy game.DroppedPickup
		mode   Mode
		intent game.Intent
	}{
		{game.PickupOpposingOnly, ModeGuard, game.IntentNone},
		{game.PickupOwnTeamReturns, ModeRecover, game.IntentPickup},
		{game.PickupEither, ModeRecover, game.IntentPickup},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			mc := raidConfig(openArena(t))
			mc.DroppedPickup = tt.policy
			b := mustBot(t, arena.TeamRed, mc)
			s := game.GameState{
				Tick:   1,
				Agents: []game.AgentState{{ID: 0, Team: arena.TeamRed, Position: orb.Point{30, 6}, MaxSpeed: 1, Carrying: game.NoFlag}},
				Flags: []game.FlagState{{
					ID: 0, Name: "red_flag", Team: arena.TeamRed, Status: game.FlagDropped,
					Position: orb.Point{34, 6}, Home: orb.Point{40, 0}, Carrier: game.NoAgent,
				}},
			}
			b.Startup(s)
			act, err := b.Action(s, s.Agents[0])
			if err != nil {
				t.Fatal(err)
			}
			if b.Mode(0) != tt.mode || act.Intent != tt.intent {
				t.Fatalf("mode %s intent %v, want %s %v", b.Mode(0), act.Intent, tt.mode, tt.intent)
			}
			if act.Velocity[0] <= 0 {
				t.Fatalf("velocity %v does not head for the flag", act.Velocity)
			}
		})
	}
}

func TestBot_CarriesOwnFlagHome(t *testing.T) {
	mc := raidConfig(openArena(t))
	mc.DroppedPickup = game.PickupEither
	b := mustBot(t, arena.TeamRed, mc)
	s := game.GameState{
		Tick:   1,
		Agents: []game.AgentState{{ID: 0, Team: arena.TeamRed, Position: orb.Point{30, 0}, MaxSpeed: 1, Carrying: 0}},
		Flags: []game.FlagState{{
			ID: 0, Name: "red_flag", Team: arena.TeamRed, Status: game.FlagCarried,
			Position: orb.Point{30, 0}, Home: orb.Point{40, 0}, Carrier: 0,
		}},
	}
	b.Startup(s)
	act, err := b.Action(s, s.Agents[0])
	if err != nil {
		t.Fatal(err)
	}
	if b.Mode(0) != ModeRecover || act.Velocity[0] <= 0 {
		t.Fatalf("mode %s velocity %v, want recover toward home", b.Mode(0), act.Velocity)
	}
}

func TestBot_RejectsForeignAgent(t *testing.T) {
	mc := raidConfig(openArena(t))
	b := mustBot(t, arena.TeamRed, mc)
	self := game.AgentState{ID: 1, Team: arena.TeamBlue, Carrying: game.NoFlag, MaxSpeed: 1}
	if _, err := b.Action(game.GameState{Agents: []game.AgentState{self}}, self); err == nil {
		t.Fatal("expected an error for an agent of the other team")
	}
}

func TestNew_RejectsBadSettings(t *testing.T) {
	a := openArena(t)
	bad := DefaultConfig()
	bad.PatrolPoints = 0
	cases := map[string]func() error{
		"no team":       func() error { _, err := New(arena.NoTeam, a, time.Millisecond, DefaultConfig()); return err },
		"nil arena":     func() error { _, err := New(arena.TeamRed, nil, time.Millisecond, DefaultConfig()); return err },
		"no waypoints":  func() error { _, err := New(arena.TeamRed, a, time.Millisecond, bad); return err },
		"planner steps": func() error { c := DefaultConfig(); c.Planner.StepSize = 0; _, err := New(arena.TeamRed, a, time.Millisecond, c); return err },
	}
	for name, fn := range cases {
		if fn() == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
