package game

import (
	"fmt"
	"math"
	"strings"

	"github.com/Garsondee/Flag-Sense/internal/arena"
)

// reportWindowTicks is the default sliding window for recent-behaviour reports (~10s at 30 ticks/s).
const reportWindowTicks = 300

// --- Snapshot types ---

// TeamReport captures one team's aggregate state at one point in time.
type TeamReport struct {
	Team           arena.Team
	Score          int
	Agents         int
	InOwnTerritory int
	InEnemyHalf    int // agents in the opponent's territory
	Frozen         int
	Carriers       int     // agents carrying an opposing flag
	FlagsHome      int     // own flags at home
	FlagsOut       int     // own flags carried or dropped
	AvgSpeed       float64 // mean committed speed, units per tick
	NearestToFlag  float64 // closest agent distance to any opposing flag
	Pressure       float64 // -1 all home .. +1 all in the enemy half
}

// SimReport is a full snapshot of the match at one tick.
type SimReport struct {
	Tick  int
	Teams [2]TeamReport
}

// --- Reporter ---

// SimReporter collects periodic reports from published states and can produce
// summaries over sliding time windows.
type SimReporter struct {
	arena       *arena.Arena
	history     []SimReport
	windowTicks int
	every       int
}

// NewSimReporter creates a reporter sampling every n-th tick over a window.
func NewSimReporter(a *arena.Arena, windowTicks, every int) *SimReporter {
	if windowTicks <= 0 {
		windowTicks = reportWindowTicks
	}
	if every <= 0 {
		every = 1
	}
	return &SimReporter{arena: a, windowTicks: windowTicks, every: every}
}

// Record is a WithRecorder hook that samples the state.
func (r *SimReporter) Record(s GameState) error {
	if s.Tick%r.every == 0 || s.Status == MatchEnded {
		r.Collect(s)
	}
	return nil
}

// Collect gathers a snapshot from a state.
func (r *SimReporter) Collect(s GameState) {
	report := SimReport{Tick: s.Tick}
	for _, team := range arena.Teams {
		report.Teams[team] = r.teamReport(s, team)
	}
	r.history = append(r.history, report)
}

func (r *SimReporter) teamReport(s GameState, team arena.Team) TeamReport {
	tr := TeamReport{Team: team, Score: s.Score(team), NearestToFlag: math.Inf(1)}
	for _, f := range s.TeamFlags(team) {
		switch f.Status {
		case FlagAtHome:
			tr.FlagsHome++
		case FlagCarried, FlagDropped:
			tr.FlagsOut++
		}
	}
	enemyFlags := s.TeamFlags(team.Other())
	speed := 0.0
	for _, a := range s.TeamAgents(team) {
		tr.Agents++
		switch r.arena.TerritoryOf(a.Position).Owner() {
		case team:
			tr.InOwnTerritory++
		case team.Other():
			tr.InEnemyHalf++
		}
		if a.Frozen() {
			tr.Frozen++
		}
		if a.HasFlag() && s.Flags[a.Carrying].Team != team {
			tr.Carriers++
		}
		speed += arena.Length(a.Velocity)
		for _, f := range enemyFlags {
			tr.NearestToFlag = math.Min(tr.NearestToFlag, arena.Dist(a.Position, f.Position))
		}
	}
	if tr.Agents > 0 {
		tr.AvgSpeed = speed / float64(tr.Agents)
		tr.Pressure = float64(tr.InEnemyHalf-tr.InOwnTerritory) / float64(tr.Agents)
	}
	return tr
}

// Latest returns the most recent report, or nil.
func (r *SimReporter) Latest() *SimReport {
	if len(r.history) == 0 {
		return nil
	}
	return &r.history[len(r.history)-1]
}

// WindowSummary returns an aggregated summary over the recent time window.
func (r *SimReporter) WindowSummary() *WindowReport {
	if len(r.history) == 0 {
		return nil
	}

	latestTick := r.history[len(r.history)-1].Tick
	cutoff := latestTick - r.windowTicks
	var window []SimReport
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].Tick < cutoff {
			break
		}
		window = append(window, r.history[i])
	}
	if len(window) == 0 {
		return nil
	}

	n := float64(len(window))
	wr := &WindowReport{
		FromTick:    window[len(window)-1].Tick,
		ToTick:      window[0].Tick,
		SampleCount: len(window),
	}
	for _, rpt := range window {
		for _, team := range arena.Teams {
			tr := rpt.Teams[team]
			w := &wr.Teams[team]
			w.AvgInEnemyHalf += float64(tr.InEnemyHalf)
			w.AvgFrozen += float64(tr.Frozen)
			w.AvgSpeed += tr.AvgSpeed
			w.AvgPressure += tr.Pressure
			if tr.Carriers > 0 {
				w.PossessionPct++
			}
			if tr.FlagsOut > 0 {
				w.ExposedPct++
			}
		}
	}
	for _, team := range arena.Teams {
		w := &wr.Teams[team]
		w.AvgInEnemyHalf /= n
		w.AvgFrozen /= n
		w.AvgSpeed /= n
		w.AvgPressure /= n
		w.PossessionPct = w.PossessionPct / n * 100
		w.ExposedPct = w.ExposedPct / n * 100
		w.Score = window[0].Teams[team].Score
		w.ScoreGain = w.Score - window[len(window)-1].Teams[team].Score
	}
	return wr
}

// TeamWindow aggregates one team over a window.
type TeamWindow struct {
	AvgInEnemyHalf float64
	AvgFrozen      float64
	AvgSpeed       float64
	AvgPressure    float64
	PossessionPct  float64 // share of samples with an opposing flag in hand
	ExposedPct     float64 // share of samples with an own flag out of its home
	Score          int
	ScoreGain      int
}

// WindowReport is an aggregated summary over a time window.
type WindowReport struct {
	FromTick, ToTick int
	SampleCount      int
	Teams            [2]TeamWindow
}

// Format returns a human-readable multi-line string of the window summary.
func (wr *WindowReport) Format() string {
	if wr == nil {
		return "No data collected yet.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Behaviour Report (T=%d..%d, %d samples) ===\n",
		wr.FromTick, wr.ToTick, wr.SampleCount)

	sb.WriteString("\n--- Score ---\n")
	for _, team := range arena.Teams {
		w := wr.Teams[team]
		fmt.Fprintf(&sb, "  %-5s %d (+%d in window)\n", team, w.Score, w.ScoreGain)
	}

	sb.WriteString("\n--- Possession ---\n")
	for _, team := range arena.Teams {
		w := wr.Teams[team]
		fmt.Fprintf(&sb, "  %-5s holding=%5.1f%%  own_flag_exposed=%5.1f%%\n", team, w.PossessionPct, w.ExposedPct)
	}

	sb.WriteString("\n--- Pressure (offensive +1 / defensive -1) ---\n")
	for _, team := range arena.Teams {
		w := wr.Teams[team]
		fmt.Fprintf(&sb, "  %-5s avg=%+.2f (%s)  in_enemy_half=%.1f  frozen=%.1f  speed=%.2f\n",
			team, w.AvgPressure, pressureLabel(w.AvgPressure), w.AvgInEnemyHalf, w.AvgFrozen, w.AvgSpeed)
	}
	return sb.String()
}

func pressureLabel(p float64) string {
	switch {
	case p > 0.5:
		return "all-out attack"
	case p > 0.15:
		return "offensive"
	case p > -0.15:
		return "balanced"
	case p > -0.5:
		return "defensive"
	default:
		return "turtling"
	}
}

// FormatLatest returns a concise snapshot of the most recent collected report.
func (r *SimReporter) FormatLatest() string {
	rpt := r.Latest()
	if rpt == nil {
		return "No data.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- Snapshot T=%d ---\n", rpt.Tick)
	for _, team := range arena.Teams {
		tr := rpt.Teams[team]
		nearest := "-"
		if !math.IsInf(tr.NearestToFlag, 1) {
			nearest = fmt.Sprintf("%.1f", tr.NearestToFlag)
		}
		fmt.Fprintf(&sb, "%-5s score=%d home=%d enemy_half=%d frozen=%d carriers=%d flags_home=%d flags_out=%d nearest_flag=%s\n",
			team, tr.Score, tr.InOwnTerritory, tr.InEnemyHalf, tr.Frozen, tr.Carriers, tr.FlagsHome, tr.FlagsOut, nearest)
	}
	return sb.String()
}

// History returns all collected reports.
func (r *SimReporter) History() []SimReport {
	return r.history
}
