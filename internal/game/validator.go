package game

import (
	"fmt"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/paulmach/orb"
)

// moveAgents validates and commits every agent's velocity, in id order. A move
// is committed only when the oracle clears the whole segment and no other agent
// is in the way; otherwise the agent stays put with zero velocity. Agents
// earlier in the order have already moved, so lower ids win contested space.
func (m *Match) moveAgents(tick int, acts []Action) {
	for i := range m.state.Agents {
		ag := &m.state.Agents[i]
		if ag.FrozenTicks > 0 {
			ag.FrozenTicks--
			ag.Velocity = orb.Point{}
			continue
		}

		v := acts[i].Velocity
		if !arena.Finite(v) {
			m.log.Debug("invalid velocity", "agent", ag.Label(), "tick", tick, "velocity", v)
			m.sim.Add(tick, ag.Label(), ag.Team.String(), "agent", "invalid_velocity",
				fmt.Sprintf("%v treated as zero", v), 0)
			v = orb.Point{}
		}
		v = arena.ClampLength(v, ag.MaxSpeed)
		if v == (orb.Point{}) {
			ag.Velocity = v
			continue
		}

		next := arena.Add(ag.Position, v)
		side := arena.NoTeam
		if m.cfg.EnforceNoGoOnMove {
			side = ag.Team
		}
		ok, err := m.cfg.Arena.SegmentIsFree(ag.Position, next, side, m.cfg.OracleTimeout)
		if err != nil || !ok || !m.cfg.Arena.Contains(next) {
			if err != nil {
				m.log.Debug("move rejected by oracle", "agent", ag.Label(), "tick", tick, "err", err)
			}
			m.sim.Add(tick, ag.Label(), ag.Team.String(), "agent", "blocked",
				fmt.Sprintf("(%.2f, %.2f) -> (%.2f, %.2f)", ag.Position[0], ag.Position[1], next[0], next[1]), 0)
			ag.Velocity = orb.Point{}
			continue
		}
		if other := m.agentInWay(i, ag.Position, next); other >= 0 {
			blocker := m.state.Agents[other]
			m.sim.Add(tick, ag.Label(), ag.Team.String(), "agent", "blocked",
				fmt.Sprintf("(%.2f, %.2f) -> (%.2f, %.2f) by %s", ag.Position[0], ag.Position[1], next[0], next[1], blocker.Label()), 0)
			ag.Velocity = orb.Point{}
			continue
		}
		ag.Position = next
		ag.Velocity = v
	}
}

// agentInWay returns the first agent whose body the move of agent i from ->
// to would sweep into, or -1. Moves that do not bring the two closer are
// allowed, so agents that start overlapping can separate.
func (m *Match) agentInWay(i int, from, to orb.Point) int {
	if m.cfg.AgentRadius <= 0 {
		return -1
	}
	minGap := 2 * m.cfg.AgentRadius
	for j, other := range m.state.Agents {
		if j == i {
			continue
		}
		d := arena.DistToSegment(other.Position, from, to)
		if d < minGap && d < arena.Dist(other.Position, from)-1e-9 {
			return j
		}
	}
	return -1
}

// speedCap is the cap that applies to ag for the coming tick.
func (m *Match) speedCap(ag AgentState) float64 {
	if ag.HasFlag() && m.cfg.CarrierSpeedCap > 0 {
		return m.cfg.CarrierSpeedCap
	}
	return m.cfg.SpeedCap
}
