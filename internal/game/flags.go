package game

import (
	"fmt"
	"math"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/paulmach/orb"
)

// dropAttempts bounds the search for a free scatter spot.
const dropAttempts = 8

// flagPhase tracks which flags already changed this tick.
type flagPhase struct {
	tick      int
	acts      []Action
	movedFlag []bool
}

// resolveFlags runs the possession state machine after movement. Agents act in
// id order, and each agent and each flag changes at most once per tick.
//
// Priority for a carrier: capture (or returning its own flag), then a tag by
// an opponent, then an explicit drop. Agents not carrying may pick up one flag.
func (m *Match) resolveFlags(tick int, acts []Action) {
	st := &m.state
	ph := flagPhase{
		tick:      tick,
		acts:      acts,
		movedFlag: make([]bool, len(st.Flags)),
	}

	for i := range st.Flags {
		f := &st.Flags[i]
		if f.CooldownTicks > 0 {
			f.CooldownTicks--
		}
		if f.Status == FlagCaptured && m.cfg.ResetOnCapture {
			m.returnHome(&ph, i, "reset")
		}
	}

	for i := range st.Agents {
		ag := &st.Agents[i]
		if ag.HasFlag() {
			m.resolveCarrier(&ph, i)
			continue
		}
		if !ag.Frozen() {
			m.tryPickup(&ph, i)
		}
	}

	for i := range st.Flags {
		f := &st.Flags[i]
		if f.Status == FlagCarried {
			f.Position = st.Agents[f.Carrier].Position
		}
	}
	for i := range st.Agents {
		st.Agents[i].MaxSpeed = m.speedCap(st.Agents[i])
	}
}

func (m *Match) resolveCarrier(ph *flagPhase, ai int) {
	st := &m.state
	ag := &st.Agents[ai]
	fi := ag.Carrying
	f := &st.Flags[fi]
	if ph.movedFlag[fi] {
		return
	}

	if f.Team != ag.Team {
		for _, cp := range st.CapturePoints {
			if cp.Team == ag.Team && arena.Dist(ag.Position, cp.Position) <= m.cfg.CaptureRadius {
				m.capture(ph, ai, cp)
				return
			}
		}
	} else if arena.Dist(ag.Position, f.Home) <= m.cfg.CaptureRadius {
		ag.Carrying = NoFlag
		m.returnHome(ph, fi, ag.Label())
		return
	}

	if m.cfg.Arena.InTerritory(ag.Position, ag.Team) {
		return
	}
	if tagger := m.tagger(*ag); tagger != NoAgent {
		ag.FrozenTicks = m.cfg.TagCooldownTicks
		m.drop(ph, ai, "tag", st.Agents[tagger].Label())
		return
	}
	if ph.acts[ai].Intent == IntentDrop {
		m.drop(ph, ai, "drop", "")
	}
}

// tagger returns the lowest-id unfrozen opponent within tag range of carrier.
func (m *Match) tagger(carrier AgentState) int {
	if m.cfg.TagRadius <= 0 {
		return NoAgent
	}
	for _, o := range m.state.Agents {
		if o.Team == carrier.Team || o.Frozen() {
			continue
		}
		if arena.Dist(o.Position, carrier.Position) <= m.cfg.TagRadius {
			return o.ID
		}
	}
	return NoAgent
}

func (m *Match) tryPickup(ph *flagPhase, ai int) {
	st := &m.state
	ag := &st.Agents[ai]
	wants := m.cfg.AutoPickup || ph.acts[ai].Intent == IntentPickup
	if !wants {
		return
	}
	for fi := range st.Flags {
		f := &st.Flags[fi]
		if ph.movedFlag[fi] {
			continue
		}
		switch f.Status {
		case FlagAtHome:
			if f.Team == ag.Team || arena.Dist(ag.Position, f.Home) > m.cfg.CaptureRadius {
				continue
			}
			m.pickup(ph, ai, fi, "pickup")
			return

		case FlagDropped:
			if f.CooldownTicks > 0 || arena.Dist(ag.Position, f.Position) > m.cfg.CaptureRadius {
				continue
			}
			if f.Team != ag.Team {
				m.pickup(ph, ai, fi, "pickup")
				return
			}
			switch m.cfg.DroppedPickup {
			case PickupOwnTeamReturns:
				m.returnHome(ph, fi, ag.Label())
				return
			case PickupEither:
				m.pickup(ph, ai, fi, "recover")
				return
			}
		}
	}
}

func (m *Match) pickup(ph *flagPhase, ai, fi int, key string) {
	ag := &m.state.Agents[ai]
	f := &m.state.Flags[fi]
	from := f.Status
	f.Status = FlagCarried
	f.Carrier = ag.ID
	f.Position = ag.Position
	f.CooldownTicks = 0
	ag.Carrying = fi
	ph.movedFlag[fi] = true

	m.log.Debug("flag picked up", "flag", f.Name, "agent", ag.Label(), "tick", ph.tick, "from", from.String())
	m.sim.Add(ph.tick, ag.Label(), ag.Team.String(), "flag", key,
		fmt.Sprintf("%s from %s", f.Name, from), float64(fi))
}

func (m *Match) capture(ph *flagPhase, ai int, cp CapturePoint) {
	st := &m.state
	ag := &st.Agents[ai]
	fi := ag.Carrying
	f := &st.Flags[fi]
	f.Status = FlagCaptured
	f.Carrier = NoAgent
	f.Position = cp.Position
	ag.Carrying = NoFlag
	st.Scores[ag.Team]++
	ph.movedFlag[fi] = true

	m.log.Info("flag captured",
		"flag", f.Name,
		"agent", ag.Label(),
		"tick", ph.tick,
		"red", st.Scores[arena.TeamRed],
		"blue", st.Scores[arena.TeamBlue],
	)
	m.sim.Add(ph.tick, ag.Label(), ag.Team.String(), "flag", "capture",
		fmt.Sprintf("%s at capture point %d", f.Name, cp.ID), float64(st.Scores[ag.Team]))
}

// drop releases the carrier's flag near its position. Tags scatter the flag up
// to DropScatter away, on a spot the oracle can reach from the carrier.
func (m *Match) drop(ph *flagPhase, ai int, key, by string) {
	st := &m.state
	ag := &st.Agents[ai]
	fi := ag.Carrying
	f := &st.Flags[fi]

	pos := ag.Position
	if key == "tag" {
		pos = m.scatter(ag.Position)
	}
	f.Status = FlagDropped
	f.Carrier = NoAgent
	f.Position = pos
	f.CooldownTicks = m.cfg.DropCooldownTicks
	ag.Carrying = NoFlag
	ph.movedFlag[fi] = true

	detail := fmt.Sprintf("%s at (%.2f, %.2f)", f.Name, pos[0], pos[1])
	if by != "" {
		detail += " tagged by " + by
	}
	m.log.Debug("flag dropped", "flag", f.Name, "agent", ag.Label(), "tick", ph.tick, "cause", key)
	m.sim.Add(ph.tick, ag.Label(), ag.Team.String(), "flag", key, detail, float64(fi))
}

func (m *Match) scatter(from orb.Point) orb.Point {
	if m.cfg.DropScatter <= 0 {
		return from
	}
	for i := 0; i < dropAttempts; i++ {
		angle := m.rng.Float64() * 2 * math.Pi
		r := m.rng.Float64() * m.cfg.DropScatter
		p := arena.Add(from, orb.Point{r * math.Cos(angle), r * math.Sin(angle)})
		if m.cfg.Arena.Contains(p) && arena.Free(m.cfg.Arena, from, p, arena.NoTeam, m.cfg.OracleTimeout) {
			return p
		}
	}
	return from
}

func (m *Match) returnHome(ph *flagPhase, fi int, by string) {
	f := &m.state.Flags[fi]
	f.Status = FlagAtHome
	f.Carrier = NoAgent
	f.Position = f.Home
	f.CooldownTicks = 0
	ph.movedFlag[fi] = true
	m.sim.Add(ph.tick, "--", f.Team.String(), "flag", "return", fmt.Sprintf("%s by %s", f.Name, by), float64(fi))
}
