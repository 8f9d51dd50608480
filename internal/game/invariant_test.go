package game

import (
	"math/rand"
	"testing"
	"time"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/paulmach/orb"
)

// --- Invariant helpers ---

// checkPossession verifies that carriers and carried flags agree, so no flag
// is ever held by two agents and no agent holds two flags.
func checkPossession(t *testing.T, s GameState) {
	t.Helper()
	holders := map[int]int{}
	for _, a := range s.Agents {
		if !a.HasFlag() {
			continue
		}
		if prev, dup := holders[a.Carrying]; dup {
			t.Fatalf("T=%d: flag %d held by agents %d and %d", s.Tick, a.Carrying, prev, a.ID)
		}
		holders[a.Carrying] = a.ID
		f := s.Flags[a.Carrying]
		if f.Status != FlagCarried || f.Carrier != a.ID {
			t.Fatalf("T=%d: agent %d carries flag %d which is %s by %d", s.Tick, a.ID, f.ID, f.Status, f.Carrier)
		}
	}
	for _, f := range s.Flags {
		carried := f.Status == FlagCarried
		if carried != (f.Carrier != NoAgent) {
			t.Fatalf("T=%d: flag %d is %s with carrier %d", s.Tick, f.ID, f.Status, f.Carrier)
		}
		if carried {
			if h, ok := holders[f.ID]; !ok || h != f.Carrier {
				t.Fatalf("T=%d: flag %d names carrier %d who does not hold it", s.Tick, f.ID, f.Carrier)
			}
			if f.Position != s.Agents[f.Carrier].Position {
				t.Fatalf("T=%d: carried flag %d at %v, carrier at %v", s.Tick, f.ID, f.Position, s.Agents[f.Carrier].Position)
			}
		}
		if f.Status == FlagAtHome && f.Position != f.Home {
			t.Fatalf("T=%d: flag %d at home but at %v", s.Tick, f.ID, f.Position)
		}
	}
}

// checkMotion verifies every committed move stays within the speed cap and
// never crosses a wall.
func checkMotion(t *testing.T, a *arena.Arena, prev, cur GameState) {
	t.Helper()
	for i, ag := range cur.Agents {
		from := prev.Agents[i].Position
		if from == ag.Position {
			continue
		}
		if d := arena.Dist(from, ag.Position); d > prev.Agents[i].MaxSpeed+1e-9 {
			t.Fatalf("T=%d: %s moved %.3f, cap %.3f", cur.Tick, ag.Label(), d, prev.Agents[i].MaxSpeed)
		}
		if !arena.Free(a, from, ag.Position, arena.NoTeam, time.Second) {
			t.Fatalf("T=%d: %s crossed a wall %v -> %v", cur.Tick, ag.Label(), from, ag.Position)
		}
	}
}

// wander returns a script that heads for random points, re-rolling every n ticks.
func wander(seed int64, b orb.Bound, n int) Script {
	rng := rand.New(rand.NewSource(seed)) // #nosec G404 -- test only
	var target orb.Point
	return func(s GameState, self AgentState) Action {
		if s.Tick%n == 0 {
			target = orb.Point{
				b.Min[0] + rng.Float64()*(b.Max[0]-b.Min[0]),
				b.Min[1] + rng.Float64()*(b.Max[1]-b.Min[1]),
			}
		}
		a := Seek(target)(s, self)
		if rng.Intn(10) == 0 {
			a.Intent = IntentDrop
		}
		return a
	}
}

func TestInvariants_RandomMatchOnStandardArena(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	area := orb.Bound{Min: orb.Point{-45, -45}, Max: orb.Point{45, 45}}

	for _, policy := range []DroppedPickup{PickupOpposingOnly, PickupOwnTeamReturns, PickupEither} {
		t.Run(policy.String(), func(t *testing.T) {
			opts := []SimOption{
				WithArena(cfg.Arena),
				WithSeed(5),
				WithConfig(func(c *Config) {
					c.MaxTicks = 1500
					c.SpeedCap = 1
					c.CarrierSpeedCap = 0.7
					c.TagRadius = 2
					c.TagCooldownTicks = 20
					c.DropCooldownTicks = 10
					c.DropScatter = 3
					c.ResetOnCapture = true
					c.DroppedPickup = policy
				}),
			}
			for _, f := range cfg.Flags {
				opts = append(opts, WithFlag(f.Team, f.Home[0], f.Home[1]))
			}
			for _, cp := range cfg.CapturePoints {
				opts = append(opts, WithCapturePoint(cp.Team, cp.Position[0], cp.Position[1]))
			}
			for i, a := range cfg.Agents {
				opts = append(opts,
					WithAgent(a.Team, a.Position[0], a.Position[1]),
					WithScript(i, wander(int64(i+1), area, 40)),
				)
			}
			ts := mustSim(t, opts...)

			prev := ts.State()
			for ts.State().Status == MatchRunning {
				ts.RunTicks(1)
				cur := ts.State()
				checkPossession(t, cur)
				checkMotion(t, cfg.Arena, prev, cur)
				for _, team := range arena.Teams {
					if cur.Score(team) < prev.Score(team) {
						t.Fatalf("T=%d: %s score went down", cur.Tick, team)
					}
				}
				if cur.Tick != prev.Tick+1 {
					t.Fatalf("tick jumped from %d to %d", prev.Tick, cur.Tick)
				}
				prev = cur
			}
			if ts.Err != nil {
				t.Fatalf("step error: %v", ts.Err)
			}
			t.Log(ts.SimLog.Summary(ts.State()))
		})
	}
}

// Capture only counts for a carrier of an opposing flag at its own team's
// capture point.
func TestInvariants_CaptureNeedsOwnCapturePoint(t *testing.T) {
	ts := mustSim(t,
		WithFlag(arena.TeamRed, 20, 0),
		WithCapturePoint(arena.TeamRed, 20, 20),
		WithAgent(arena.TeamBlue, 20, 1),
		WithScript(0, Seek(orb.Point{20, 20})),
	)
	ts.RunTicks(40)
	if s := ts.State(); s.Scores != [2]int{} {
		t.Fatalf("blue scored at red's capture point: %v", s.Scores)
	}
	if !ts.Agent(0).HasFlag() {
		t.Fatal("carrier should still hold the flag")
	}
}

func TestInvariants_OneTransitionPerFlagPerTick(t *testing.T) {
	// Two blue agents reach the flag on the same tick; only the lower id takes it.
	ts := mustSim(t,
		WithFlag(arena.TeamRed, 20, 0),
		WithAgent(arena.TeamBlue, 17, 0),
		WithAgent(arena.TeamBlue, 23, 0),
		WithScript(0, Seek(orb.Point{20, 0})),
		WithScript(1, Seek(orb.Point{20, 0})),
	)
	ts.RunTicks(1)
	if f := ts.Flag(0); f.Carrier != 0 {
		t.Fatalf("flag carried by %d, want agent 0", f.Carrier)
	}
	if ts.Agent(1).HasFlag() {
		t.Fatal("agent 1 also got the flag")
	}
	if n := ts.SimLog.CountCategory("flag", "pickup"); n != 1 {
		t.Fatalf("%d pickups on one tick", n)
	}
}
