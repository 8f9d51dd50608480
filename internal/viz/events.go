package viz

import (
	"fmt"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/Garsondee/Flag-Sense/internal/game"
)

// Diff derives log events from two consecutive published states. The viewer
// only sees states, so flag transitions and score changes are read off the
// difference. Frames may be dropped in between; Diff then reports the net
// change.
func Diff(prev, cur game.GameState) []Event {
	var out []Event
	if prev.Status == game.MatchIdle && cur.Status != game.MatchIdle {
		out = append(out, Event{Tick: cur.Tick, Label: "--", Team: arena.NoTeam,
			Message: fmt.Sprintf("match started: %d agents, %d flags", len(cur.Agents), len(cur.Flags))})
	}
	if len(prev.Flags) != len(cur.Flags) {
		return out
	}

	for i, f := range cur.Flags {
		was := prev.Flags[i]
		if was.Status == f.Status && was.Carrier == f.Carrier {
			continue
		}
		switch f.Status {
		case game.FlagCarried:
			ag := cur.Agents[f.Carrier]
			out = append(out, Event{Tick: cur.Tick, Label: ag.Label(), Team: ag.Team,
				Message: "took " + f.Name})
		case game.FlagDropped:
			label, team := "--", f.Team.Other()
			if was.Carrier != game.NoAgent && was.Carrier < len(cur.Agents) {
				label, team = cur.Agents[was.Carrier].Label(), cur.Agents[was.Carrier].Team
			}
			msg := "dropped " + f.Name
			if was.Carrier != game.NoAgent && was.Carrier < len(cur.Agents) && cur.Agents[was.Carrier].Frozen() {
				msg = "was tagged, dropped " + f.Name
			}
			out = append(out, Event{Tick: cur.Tick, Label: label, Team: team, Message: msg})
		case game.FlagCaptured:
			label, team := "--", f.Team.Other()
			if was.Carrier != game.NoAgent && was.Carrier < len(cur.Agents) {
				label = cur.Agents[was.Carrier].Label()
			}
			out = append(out, Event{Tick: cur.Tick, Label: label, Team: team, Message: "captured " + f.Name})
		case game.FlagAtHome:
			out = append(out, Event{Tick: cur.Tick, Label: "--", Team: f.Team, Message: f.Name + " back home"})
		}
	}

	for _, team := range arena.Teams {
		if d := cur.Score(team) - prev.Score(team); d > 0 {
			out = append(out, Event{Tick: cur.Tick, Label: "--", Team: team,
				Message: fmt.Sprintf("%s scores, %d-%d", team, cur.Score(arena.TeamRed), cur.Score(arena.TeamBlue))})
		}
	}

	if prev.Status != game.MatchEnded && cur.Status == game.MatchEnded {
		msg := "match over: draw"
		if cur.Winner.Valid() {
			msg = "match over: " + cur.Winner.String() + " wins"
		}
		out = append(out, Event{Tick: cur.Tick, Label: "--", Team: cur.Winner, Message: msg})
	}
	return out
}
