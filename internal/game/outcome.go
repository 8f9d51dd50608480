package game

import (
	"fmt"

	"github.com/Garsondee/Flag-Sense/internal/arena"
)

type MatchOutcome int

const (
	OutcomeInconclusive MatchOutcome = iota
	OutcomeRedVictory
	OutcomeBlueVictory
	OutcomeDraw
)

func (o MatchOutcome) String() string {
	switch o {
	case OutcomeRedVictory:
		return "red_victory"
	case OutcomeBlueVictory:
		return "blue_victory"
	case OutcomeDraw:
		return "draw"
	case OutcomeInconclusive:
		return "inconclusive"
	default:
		return "unknown"
	}
}

type MatchOutcomeReason struct {
	Outcome     MatchOutcome
	RedScore    int
	BlueScore   int
	Ticks       int
	RedFaults   int
	BlueFaults  int
	FlagsHeld   [2]int // flags of each team that were carried or dropped at the end
	Description string
}

func DetermineMatchOutcome(res MatchResult, cfg Config) MatchOutcomeReason {
	out := MatchOutcomeReason{
		RedScore:   res.Scores[arena.TeamRed],
		BlueScore:  res.Scores[arena.TeamBlue],
		Ticks:      res.Ticks,
		RedFaults:  res.Faults[arena.TeamRed],
		BlueFaults: res.Faults[arena.TeamBlue],
	}
	for _, f := range res.Final.Flags {
		if f.Status == FlagCarried || f.Status == FlagDropped {
			out.FlagsHeld[f.Team]++
		}
	}

	if res.Final.Status != MatchEnded {
		out.Outcome = OutcomeInconclusive
		out.Description = fmt.Sprintf("aborted_at_tick_%d", res.Ticks)
		return out
	}

	reached := cfg.ScoreLimit > 0 && (out.RedScore >= cfg.ScoreLimit || out.BlueScore >= cfg.ScoreLimit)
	margin := out.RedScore - out.BlueScore
	if margin < 0 {
		margin = -margin
	}

	switch res.Winner {
	case arena.TeamRed, arena.TeamBlue:
		if res.Winner == arena.TeamRed {
			out.Outcome = OutcomeRedVictory
		} else {
			out.Outcome = OutcomeBlueVictory
		}
		kind := "narrow"
		switch {
		case reached && (out.RedScore == 0 || out.BlueScore == 0):
			kind = "decisive"
		case margin >= 2:
			kind = "clear"
		}
		how := "on_time"
		if reached {
			how = "score_limit"
		}
		out.Description = fmt.Sprintf("%s_%s_victory_%s", kind, res.Winner, how)
	default:
		out.Outcome = OutcomeDraw
		switch {
		case out.RedScore == 0 && out.BlueScore == 0 && out.FlagsHeld == [2]int{}:
			out.Description = "draw_scoreless_flags_home"
		case out.RedScore == 0 && out.BlueScore == 0:
			out.Description = "draw_scoreless_flags_in_play"
		default:
			out.Description = fmt.Sprintf("draw_level_at_%d", out.RedScore)
		}
	}
	return out
}
