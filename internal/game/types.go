package game

import (
	"fmt"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Sentinel ids for "nothing".
const (
	NoFlag  = -1
	NoAgent = -1
)

// FlagStatus is the possession state of one flag.
type FlagStatus int

const (
	FlagAtHome FlagStatus = iota
	FlagCarried
	FlagDropped
	FlagCaptured
)

func (s FlagStatus) String() string {
	switch s {
	case FlagAtHome:
		return "at_home"
	case FlagCarried:
		return "carried"
	case FlagDropped:
		return "dropped"
	case FlagCaptured:
		return "captured"
	default:
		return "unknown"
	}
}

// AgentState is one agent as seen by decision logic.
type AgentState struct {
	ID          int
	Name        string
	Team        arena.Team
	Position    orb.Point
	Velocity    orb.Point // units per tick, as committed last tick
	Carrying    int       // flag id, or NoFlag
	FrozenTicks int       // ticks left before the agent may move again
	MaxSpeed    float64   // current speed cap; lower while carrying
}

// HasFlag reports whether the agent carries a flag.
func (a AgentState) HasFlag() bool { return a.Carrying != NoFlag }

// Frozen reports whether the agent is serving a tag cooldown.
func (a AgentState) Frozen() bool { return a.FrozenTicks > 0 }

// Label is the short log label, e.g. "R0" or "B3".
func (a AgentState) Label() string { return agentLabel(a.Team, a.ID) }

func agentLabel(team arena.Team, id int) string {
	switch team {
	case arena.TeamRed:
		return fmt.Sprintf("R%d", id)
	case arena.TeamBlue:
		return fmt.Sprintf("B%d", id)
	default:
		return fmt.Sprintf("?%d", id)
	}
}

// FlagState is one flag. While Carried, Position equals the carrier's position.
type FlagState struct {
	ID            int
	Name          string
	Team          arena.Team
	Status        FlagStatus
	Position      orb.Point
	Home          orb.Point
	Carrier       int // agent id, or NoAgent
	CooldownTicks int // ticks left before a dropped flag may be touched
}

// CapturePoint is a base where a team's carriers score.
type CapturePoint struct {
	ID       int
	Team     arena.Team
	Position orb.Point
}

// Intent is the non-movement part of an action.
type Intent int

const (
	IntentNone Intent = iota
	IntentPickup
	IntentDrop
)

func (i Intent) String() string {
	switch i {
	case IntentNone:
		return "none"
	case IntentPickup:
		return "pickup"
	case IntentDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// Action is what one agent asks to do this tick.
type Action struct {
	AgentID  int
	Velocity orb.Point
	Intent   Intent
}

// Hold is the no-op action.
func Hold(agentID int) Action { return Action{AgentID: agentID} }

// MatchStatus is the lifecycle of a match.
type MatchStatus int

const (
	MatchIdle MatchStatus = iota
	MatchRunning
	MatchEnded
)

func (s MatchStatus) String() string {
	switch s {
	case MatchIdle:
		return "idle"
	case MatchRunning:
		return "running"
	case MatchEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// GameState is a snapshot of the whole world after a tick. Every consumer gets
// its own copy; mutating one never affects the match.
type GameState struct {
	Tick          int
	Status        MatchStatus
	Agents        []AgentState // indexed by agent id
	Flags         []FlagState  // indexed by flag id
	CapturePoints []CapturePoint
	Scores        [2]int // indexed by arena.Team
	Winner        arena.Team
}

// Clone returns a deep copy of s.
func (s GameState) Clone() GameState {
	c := s
	c.Agents = append([]AgentState(nil), s.Agents...)
	c.Flags = append([]FlagState(nil), s.Flags...)
	c.CapturePoints = append([]CapturePoint(nil), s.CapturePoints...)
	return c
}

// TeamAgents returns the agents of one team in id order.
func (s GameState) TeamAgents(team arena.Team) []AgentState {
	var out []AgentState
	for _, a := range s.Agents {
		if a.Team == team {
			out = append(out, a)
		}
	}
	return out
}

// TeamFlags returns the flags owned by one team in id order.
func (s GameState) TeamFlags(team arena.Team) []FlagState {
	var out []FlagState
	for _, f := range s.Flags {
		if f.Team == team {
			out = append(out, f)
		}
	}
	return out
}

// TeamCapturePoints returns the capture points where team scores.
func (s GameState) TeamCapturePoints(team arena.Team) []CapturePoint {
	var out []CapturePoint
	for _, c := range s.CapturePoints {
		if c.Team == team {
			out = append(out, c)
		}
	}
	return out
}

// Agent looks up an agent by id.
func (s GameState) Agent(id int) (AgentState, bool) {
	if id < 0 || id >= len(s.Agents) {
		return AgentState{}, false
	}
	return s.Agents[id], true
}

// Flag looks up a flag by id.
func (s GameState) Flag(id int) (FlagState, bool) {
	if id < 0 || id >= len(s.Flags) {
		return FlagState{}, false
	}
	return s.Flags[id], true
}

// Score returns team's captures so far.
func (s GameState) Score(team arena.Team) int {
	if !team.Valid() {
		return 0
	}
	return s.Scores[team]
}

// MatchResult summarises a finished (or aborted) match.
type MatchResult struct {
	ID      uuid.UUID
	Winner  arena.Team // arena.NoTeam for a draw
	Scores  [2]int
	Ticks   int
	Final   GameState
	Faults  [2]int // decision faults per team
	Dropped int    // observer frames dropped by the feed
}
