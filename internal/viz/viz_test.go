package viz

import (
	"strings"
	"testing"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/Garsondee/Flag-Sense/internal/game"
	"github.com/paulmach/orb"
)

func twoAgentState() game.GameState {
	return game.GameState{
		Status: game.MatchRunning,
		Winner: arena.NoTeam,
		Agents: []game.AgentState{
			{ID: 0, Team: arena.TeamRed, Position: orb.Point{30, 0}, Carrying: game.NoFlag},
			{ID: 1, Team: arena.TeamBlue, Position: orb.Point{38, 0}, Carrying: game.NoFlag},
		},
		Flags: []game.FlagState{
			{ID: 0, Name: "red_flag", Team: arena.TeamRed, Status: game.FlagAtHome, Position: orb.Point{40, 0}, Home: orb.Point{40, 0}, Carrier: game.NoAgent},
		},
	}
}

func messages(evs []Event) []string {
	var out []string
	for _, e := range evs {
		out = append(out, e.Label+" "+e.Message)
	}
	return out
}

func TestDiff_FlagLifecycle(t *testing.T) {
	s0 := twoAgentState()
	if got := messages(Diff(game.GameState{}, s0)); len(got) != 1 || !strings.Contains(got[0], "match started") {
		t.Fatalf("first frame: %v", got)
	}

	s1 := s0.Clone()
	s1.Tick = 1
	s1.Agents[1].Carrying = 0
	s1.Flags[0].Status = game.FlagCarried
	s1.Flags[0].Carrier = 1
	if got := messages(Diff(s0, s1)); len(got) != 1 || got[0] != "B1 took red_flag" {
		t.Fatalf("pickup: %v", got)
	}

	s2 := s1.Clone()
	s2.Tick = 2
	s2.Agents[1].Carrying = game.NoFlag
	s2.Agents[1].FrozenTicks = 10
	s2.Flags[0].Status = game.FlagDropped
	s2.Flags[0].Carrier = game.NoAgent
	if got := messages(Diff(s1, s2)); len(got) != 1 || got[0] != "B1 was tagged, dropped red_flag" {
		t.Fatalf("tag: %v", got)
	}

	s3 := s2.Clone()
	s3.Tick = 3
	s3.Flags[0].Status = game.FlagCaptured
	s3.Scores[arena.TeamBlue] = 1
	s3.Status = game.MatchEnded
	s3.Winner = arena.TeamBlue
	got := messages(Diff(s2, s3))
	want := []string{"-- captured red_flag", "-- blue scores, 0-1", "-- match over: blue wins"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("capture: %v, want %v", got, want)
	}
}

func TestDiff_NoChangeNoEvents(t *testing.T) {
	s := twoAgentState()
	n := s.Clone()
	n.Tick++
	n.Agents[0].Position = orb.Point{31, 0}
	if evs := Diff(s, n); len(evs) != 0 {
		t.Fatalf("movement alone produced events: %v", messages(evs))
	}
}

func TestEventLog_RingKeepsNewest(t *testing.T) {
	el := NewEventLog()
	for i := 0; i < logMaxEntries+15; i++ {
		el.Add(Event{Tick: i, Label: "--"})
	}
	got := el.Recent()
	if len(got) != logMaxEntries {
		t.Fatalf("%d entries, want %d", len(got), logMaxEntries)
	}
	if got[0].Tick != 15 || got[len(got)-1].Tick != logMaxEntries+14 {
		t.Fatalf("window %d..%d", got[0].Tick, got[len(got)-1].Tick)
	}
}

func TestViewer_ObserveAndSummarize(t *testing.T) {
	a, err := arena.Standard()
	if err != nil {
		t.Fatal(err)
	}
	v := New(a, nil)
	s := twoAgentState()
	v.ObserveState(s)
	s2 := s.Clone()
	s2.Tick = 1
	s2.Agents[1].Carrying = 0
	s2.Flags[0].Status = game.FlagCarried
	s2.Flags[0].Carrier = 1
	v.ObserveState(s2)
	v.ObserveTree(game.TreeSnapshot{Tick: 1, AgentID: 0, Team: arena.TeamRed})

	sum := v.Summary()
	for _, want := range []string{"T=1", "RED 0 : 0 BLUE", "took red_flag", "Snapshot T=0"} {
		if !strings.Contains(sum, want) {
			t.Errorf("summary missing %q:\n%s", want, sum)
		}
	}
	if v.frames != 2 || len(v.trees) != 1 {
		t.Fatalf("frames %d trees %d", v.frames, len(v.trees))
	}
}

func TestViewer_ProjectFlipsY(t *testing.T) {
	a, err := arena.Standard()
	if err != nil {
		t.Fatal(err)
	}
	v := New(a, nil)
	x0, y0 := v.project(orb.Point{-50, 50})
	x1, y1 := v.project(orb.Point{50, -50})
	if x0 != margin || y0 != margin+scoreBarH {
		t.Fatalf("top-left at %v,%v", x0, y0)
	}
	if x1 != margin+worldPixels || y1 != margin+scoreBarH+worldPixels {
		t.Fatalf("bottom-right at %v,%v", x1, y1)
	}
	if w, h := v.WindowSize(); w != int(x1)+margin+logPanelWidth || h != int(y1)+margin {
		t.Fatalf("window %dx%d", w, h)
	}
}
