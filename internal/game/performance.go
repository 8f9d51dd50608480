package game

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Garsondee/Flag-Sense/internal/arena"
)

// ---------------------------------------------------------------------------
// PerfTracker: per-agent accumulator over one match
// ---------------------------------------------------------------------------

// PerfTracker accumulates what one agent did over a match. Tick counters come
// from published states, event counters from the SimLog.
type PerfTracker struct {
	Label string
	Team  arena.Team
	ID    int

	Ticks            int
	TicksInOwnHalf   int
	TicksInEnemyHalf int
	TicksCarrying    int
	TicksFrozen      int
	TicksMoving      int
	TicksIdle        int
	Distance         float64

	Pickups         int
	Recovers        int
	Captures        int
	Tags            int // tags this agent made
	TimesTagged     int
	Drops           int // voluntary drops
	Blocked         int
	InvalidVelocity int
}

// active is the number of ticks the agent was free to move.
func (pt *PerfTracker) active() int { return pt.Ticks - pt.TicksFrozen }

const (
	perfMinTicks    = 60 // below this the positional traits are noise
	perfMovingSpeed = 1e-6
)

// PerfBook keeps one tracker per agent. Record has the signature WithRecorder
// expects; Credit folds in the event log once the match is over.
type PerfBook struct {
	arena    *arena.Arena
	trackers map[int]*PerfTracker
}

// NewPerfBook returns an empty book for matches played in a.
func NewPerfBook(a *arena.Arena) *PerfBook {
	return &PerfBook{arena: a, trackers: map[int]*PerfTracker{}}
}

// Record updates the trackers from one published state. The initial state
// only registers the agents.
func (b *PerfBook) Record(s GameState) error {
	for _, ag := range s.Agents {
		pt, ok := b.trackers[ag.ID]
		if !ok {
			pt = &PerfTracker{Label: ag.Label(), Team: ag.Team, ID: ag.ID}
			b.trackers[ag.ID] = pt
		}
		if s.Tick == 0 {
			continue
		}
		pt.Ticks++
		switch {
		case b.arena.InTerritory(ag.Position, ag.Team):
			pt.TicksInOwnHalf++
		case b.arena.InTerritory(ag.Position, ag.Team.Other()):
			pt.TicksInEnemyHalf++
		}
		if ag.HasFlag() {
			pt.TicksCarrying++
		}
		if ag.Frozen() {
			pt.TicksFrozen++
			continue
		}
		if v := arena.Length(ag.Velocity); v > perfMovingSpeed {
			pt.TicksMoving++
			pt.Distance += v
		} else {
			pt.TicksIdle++
		}
	}
	return nil
}

// Credit tallies flag and agent events from sl. Call it once per match.
func (b *PerfBook) Credit(sl *SimLog) {
	byLabel := make(map[string]*PerfTracker, len(b.trackers))
	for _, pt := range b.trackers {
		byLabel[pt.Label] = pt
	}
	for _, e := range sl.Entries() {
		pt := byLabel[e.Agent]
		switch e.Category + "/" + e.Key {
		case "flag/pickup":
			if pt != nil {
				pt.Pickups++
			}
		case "flag/recover":
			if pt != nil {
				pt.Recovers++
			}
		case "flag/capture":
			if pt != nil {
				pt.Captures++
			}
		case "flag/drop":
			if pt != nil {
				pt.Drops++
			}
		case "flag/tag":
			if pt != nil {
				pt.TimesTagged++
			}
			if _, by, ok := strings.Cut(e.Value, " tagged by "); ok {
				if tagger := byLabel[strings.TrimSpace(by)]; tagger != nil {
					tagger.Tags++
				}
			}
		case "agent/blocked":
			if pt != nil {
				pt.Blocked++
			}
		case "agent/invalid_velocity":
			if pt != nil {
				pt.InvalidVelocity++
			}
		}
	}
}

// Trackers returns the trackers keyed by agent id.
func (b *PerfBook) Trackers() map[int]*PerfTracker { return b.trackers }

// Grades is GradePerformance over the book.
func (b *PerfBook) Grades() []AgentGrade { return GradePerformance(b.trackers) }

// ---------------------------------------------------------------------------
// AgentGrade: computed performance result
// ---------------------------------------------------------------------------

// AgentGrade is the computed performance grade for one agent.
type AgentGrade struct {
	Label string
	Team  arena.Team
	ID    int
	Grade string  // A+, A, B+, B, C+, C, D, F
	Score float64 // 0-100

	// Situation scores (0-100; -1 = not enough data to grade).
	AttackScore   float64
	DefenseScore  float64
	MobilityScore float64

	GoodTraits []string
	BadTraits  []string

	Captures    int
	Tags        int
	TimesTagged int
	EnemyPct    float64
	Distance    float64
}

// ---------------------------------------------------------------------------
// Grading logic
// ---------------------------------------------------------------------------

// GradePerformance computes grades from accumulated tracker data, red first,
// best first within a team.
func GradePerformance(trackers map[int]*PerfTracker) []AgentGrade {
	grades := make([]AgentGrade, 0, len(trackers))
	for _, pt := range trackers {
		grades = append(grades, computeGrade(pt))
	}
	sort.Slice(grades, func(i, j int) bool {
		if grades[i].Team != grades[j].Team {
			return grades[i].Team < grades[j].Team
		}
		if grades[i].Score != grades[j].Score {
			return grades[i].Score > grades[j].Score
		}
		return grades[i].ID < grades[j].ID
	})
	return grades
}

func computeGrade(pt *PerfTracker) AgentGrade {
	g := AgentGrade{
		Label:         pt.Label,
		Team:          pt.Team,
		ID:            pt.ID,
		AttackScore:   -1,
		DefenseScore:  -1,
		MobilityScore: -1,
		Captures:      pt.Captures,
		Tags:          pt.Tags,
		TimesTagged:   pt.TimesTagged,
		EnemyPct:      perfFrac(pt.TicksInEnemyHalf, pt.Ticks) * 100,
		Distance:      pt.Distance,
	}

	// Attack: any time spent in enemy territory or any flag handled.
	if pt.TicksInEnemyHalf > 0 || pt.Pickups+pt.Recovers > 0 {
		s := 30.0
		s += float64(pt.Captures) * 35
		s += float64(pt.Pickups) * 12
		s += perfFrac(pt.TicksCarrying, pt.Ticks) * 20
		s -= float64(pt.TimesTagged) * 8
		s -= float64(pt.Drops) * 5
		g.AttackScore = perfClamp(s)
	}

	// Defense: graded for agents that spent time at home.
	if pt.TicksInOwnHalf >= perfMinTicks || pt.Tags > 0 {
		s := 40.0
		s += float64(pt.Tags) * 20
		s += float64(pt.Recovers) * 10
		s += perfFrac(pt.TicksInOwnHalf, pt.Ticks) * 10
		g.DefenseScore = perfClamp(s)
	}

	if active := pt.active(); active >= perfMinTicks {
		s := perfFrac(pt.TicksMoving, active) * 80
		s += 20 - math.Min(20, float64(pt.Blocked+pt.InvalidVelocity)*0.5)
		g.MobilityScore = perfClamp(s)
	}

	// Weighted composite over the situations that were graded.
	var sum, weight float64
	for _, part := range []struct{ score, w float64 }{
		{g.AttackScore, 0.45},
		{g.DefenseScore, 0.35},
		{g.MobilityScore, 0.20},
	} {
		if part.score >= 0 {
			sum += part.score * part.w
			weight += part.w
		}
	}
	if weight > 0 {
		g.Score = sum / weight
	} else {
		// Nothing gradable: a spectator.
		g.Score = 30
	}
	if pt.Captures > 0 {
		g.Score = math.Min(100, g.Score+5)
	}

	g.Grade = PerfLetterGrade(g.Score)
	g.GoodTraits, g.BadTraits = perfDetectTraits(pt)
	return g
}

// ---------------------------------------------------------------------------
// Trait detection
// ---------------------------------------------------------------------------

func perfDetectTraits(pt *PerfTracker) (good, bad []string) {
	// ----- GOOD traits -----

	if pt.Captures > 0 {
		good = append(good, "scorer")
	}
	if pt.Pickups >= 2 {
		good = append(good, "flag_runner")
	}
	if pt.Tags >= 2 {
		good = append(good, "tagger")
	}
	if pt.Recovers > 0 {
		good = append(good, "recoverer")
	}
	if pt.TicksCarrying > 0 && pt.TimesTagged == 0 && pt.Drops == 0 && pt.Captures > 0 {
		good = append(good, "clean_runs")
	}
	active := pt.active()
	if active >= perfMinTicks && perfFrac(pt.TicksMoving, active) > 0.80 {
		good = append(good, "always_moving")
	}

	// ----- BAD traits -----

	if active >= perfMinTicks && perfFrac(pt.TicksIdle, active) > 0.50 {
		bad = append(bad, "idle")
	}
	if pt.TimesTagged >= 2 {
		bad = append(bad, "tagged_often")
	}
	if pt.Drops > 0 {
		bad = append(bad, "fumbled")
	}
	if pt.Ticks >= perfMinTicks && perfFrac(pt.TicksFrozen, pt.Ticks) > 0.30 {
		bad = append(bad, "frozen_long")
	}
	if active >= perfMinTicks && perfFrac(pt.Blocked, active) > 0.10 {
		bad = append(bad, "wall_hugger")
	}
	if pt.InvalidVelocity > 0 {
		bad = append(bad, "bad_orders")
	}
	return good, bad
}

// ---------------------------------------------------------------------------
// Formatting
// ---------------------------------------------------------------------------

// FormatGrades returns one block per agent.
func FormatGrades(grades []AgentGrade) string {
	var sb strings.Builder
	for _, g := range grades {
		fmt.Fprintf(&sb, "  %-4s %-4s %-2s score=%5.1f  atk=%s def=%s mob=%s  cap=%d tags=%d tagged=%d enemy=%.0f%% dist=%.1f\n",
			g.Label, g.Team, g.Grade, g.Score,
			perfSub(g.AttackScore), perfSub(g.DefenseScore), perfSub(g.MobilityScore),
			g.Captures, g.Tags, g.TimesTagged, g.EnemyPct, g.Distance)
		if len(g.GoodTraits) > 0 {
			fmt.Fprintf(&sb, "       + %s\n", strings.Join(g.GoodTraits, ", "))
		}
		if len(g.BadTraits) > 0 {
			fmt.Fprintf(&sb, "       - %s\n", strings.Join(g.BadTraits, ", "))
		}
	}
	return sb.String()
}

// FormatGradesSummary returns a compact team-level summary.
func FormatGradesSummary(grades []AgentGrade) string {
	var sb strings.Builder

	type teamStats struct {
		count     int
		scoreSum  float64
		captures  int
		tags      int
		goodCount map[string]int
		badCount  map[string]int
	}
	teams := map[arena.Team]*teamStats{}
	for _, g := range grades {
		ts, ok := teams[g.Team]
		if !ok {
			ts = &teamStats{goodCount: map[string]int{}, badCount: map[string]int{}}
			teams[g.Team] = ts
		}
		ts.count++
		ts.scoreSum += g.Score
		ts.captures += g.Captures
		ts.tags += g.Tags
		for _, t := range g.GoodTraits {
			ts.goodCount[t]++
		}
		for _, t := range g.BadTraits {
			ts.badCount[t]++
		}
	}

	for _, team := range []arena.Team{arena.TeamRed, arena.TeamBlue} {
		ts, ok := teams[team]
		if !ok {
			continue
		}
		avg := 0.0
		if ts.count > 0 {
			avg = ts.scoreSum / float64(ts.count)
		}
		fmt.Fprintf(&sb, "  %s: avg_score=%.1f (%s)  captures=%d tags=%d agents=%d\n",
			strings.ToUpper(team.String()), avg, PerfLetterGrade(avg), ts.captures, ts.tags, ts.count)

		if len(ts.goodCount) > 0 {
			fmt.Fprintf(&sb, "    Top good: %s\n", perfTopTraits(ts.goodCount, 4))
		}
		if len(ts.badCount) > 0 {
			fmt.Fprintf(&sb, "    Top bad:  %s\n", perfTopTraits(ts.badCount, 4))
		}
	}

	return sb.String()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func perfFrac(num, denom int) float64 {
	if denom <= 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

func perfClamp(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func perfSub(s float64) string {
	if s < 0 {
		return "  -"
	}
	return fmt.Sprintf("%3.0f", s)
}

// PerfLetterGrade maps a 0-100 score to a letter grade.
func PerfLetterGrade(score float64) string {
	switch {
	case score >= 93:
		return "A+"
	case score >= 85:
		return "A"
	case score >= 78:
		return "B+"
	case score >= 70:
		return "B"
	case score >= 62:
		return "C+"
	case score >= 55:
		return "C"
	case score >= 45:
		return "D"
	default:
		return "F"
	}
}

func perfTopTraits(counts map[string]int, n int) string {
	type kv struct {
		trait string
		count int
	}
	items := make([]kv, 0, len(counts))
	for k, v := range counts {
		items = append(items, kv{k, v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count > items[j].count
		}
		return items[i].trait < items[j].trait
	})
	if len(items) > n {
		items = items[:n]
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%s(%d)", it.trait, it.count)
	}
	return strings.Join(parts, ", ")
}
