package game

import (
	"fmt"
	"strings"

	"github.com/Garsondee/Flag-Sense/internal/arena"
)

// SimLogEntry is one recorded match event.
type SimLogEntry struct {
	Tick     int
	Agent    string  // label e.g. "R0", "B3", or "--" for global events
	Team     string  // "red", "blue", "none" or "--"
	Category string  // match, flag, agent, move
	Key      string  // specific event name within the category
	Value    string  // human-readable detail
	NumVal   float64 // optional numeric value for threshold checks
}

// String formats the entry as a fixed-width log line.
//
//	[T=042] R0   flag      pickup           blue_flag_0 from at_home
func (e SimLogEntry) String() string {
	return fmt.Sprintf("[T=%03d] %-4s %-9s %-16s %s",
		e.Tick, e.Agent, e.Category, e.Key, e.Value)
}

// SimLog collects structured events during a match. Unlike the viewer's
// event panel it is unbounded and machine-readable. It is not safe for
// concurrent use; the match writes to it from the stepping goroutine only.
type SimLog struct {
	entries []SimLogEntry
	verbose bool
}

// NewSimLog creates a SimLog. If verbose is true, per-tick positions are also
// recorded.
func NewSimLog(verbose bool) *SimLog {
	return &SimLog{verbose: verbose}
}

// Add records a new entry.
func (sl *SimLog) Add(tick int, agent, team, category, key, value string, numVal float64) {
	sl.entries = append(sl.entries, SimLogEntry{
		Tick:     tick,
		Agent:    agent,
		Team:     team,
		Category: category,
		Key:      key,
		Value:    value,
		NumVal:   numVal,
	})
}

// AddVerbose records an entry only when verbose mode is on.
func (sl *SimLog) AddVerbose(tick int, agent, team, category, key, value string, numVal float64) {
	if !sl.verbose {
		return
	}
	sl.Add(tick, agent, team, category, key, value, numVal)
}

// Entries returns all recorded entries.
func (sl *SimLog) Entries() []SimLogEntry {
	return sl.entries
}

// Filter returns entries matching the given category and/or key.
// Pass empty string to match any value for that field.
func (sl *SimLog) Filter(category, key string) []SimLogEntry {
	var out []SimLogEntry
	for _, e := range sl.entries {
		if category != "" && e.Category != category {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterAgent returns entries for a specific agent label.
func (sl *SimLog) FilterAgent(label string) []SimLogEntry {
	var out []SimLogEntry
	for _, e := range sl.entries {
		if e.Agent == label {
			out = append(out, e)
		}
	}
	return out
}

// FilterTickRange returns entries within [fromTick, toTick] inclusive.
func (sl *SimLog) FilterTickRange(fromTick, toTick int) []SimLogEntry {
	var out []SimLogEntry
	for _, e := range sl.entries {
		if e.Tick >= fromTick && e.Tick <= toTick {
			out = append(out, e)
		}
	}
	return out
}

// CountCategory returns how many entries match the given category and key.
func (sl *SimLog) CountCategory(category, key string) int {
	return len(sl.Filter(category, key))
}

// LastOf returns the most recent entry matching category+key, or false if none.
func (sl *SimLog) LastOf(category, key string) (SimLogEntry, bool) {
	entries := sl.Filter(category, key)
	if len(entries) == 0 {
		return SimLogEntry{}, false
	}
	return entries[len(entries)-1], true
}

// HasEntry returns true if at least one entry matches category, key, and value substring.
func (sl *SimLog) HasEntry(category, key, valueSubstr string) bool {
	for _, e := range sl.entries {
		if category != "" && e.Category != category {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		if valueSubstr != "" && !strings.Contains(e.Value, valueSubstr) {
			continue
		}
		return true
	}
	return false
}

// Format returns the full log as a single string for t.Log output.
func (sl *SimLog) Format() string {
	var sb strings.Builder
	for _, e := range sl.entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatRange returns a log string filtered to a tick range.
func (sl *SimLog) FormatRange(fromTick, toTick int) string {
	var sb strings.Builder
	for _, e := range sl.FilterTickRange(fromTick, toTick) {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Summary returns a short human-readable summary of a state.
func (sl *SimLog) Summary(s GameState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- Summary at T=%03d (%s) ---\n", s.Tick, s.Status)
	fmt.Fprintf(&sb, "Score: red=%d  blue=%d", s.Scores[arena.TeamRed], s.Scores[arena.TeamBlue])
	if s.Status == MatchEnded {
		fmt.Fprintf(&sb, "  winner=%s", s.Winner)
	}
	sb.WriteByte('\n')

	for _, f := range s.Flags {
		fmt.Fprintf(&sb, "Flag %-12s %-4s %-8s (%.1f, %.1f)", f.Name, f.Team, f.Status, f.Position[0], f.Position[1])
		if f.Carrier != NoAgent {
			fmt.Fprintf(&sb, "  carrier=%s", agentLabel(s.Agents[f.Carrier].Team, f.Carrier))
		}
		sb.WriteByte('\n')
	}
	for _, a := range s.Agents {
		fmt.Fprintf(&sb, "Agent %-4s (%.1f, %.1f)", a.Label(), a.Position[0], a.Position[1])
		if a.HasFlag() {
			fmt.Fprintf(&sb, "  carrying=%d", a.Carrying)
		}
		if a.Frozen() {
			fmt.Fprintf(&sb, "  frozen=%d", a.FrozenTicks)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "Events: pickups=%d drops=%d tags=%d captures=%d blocked=%d faults=%d\n",
		sl.CountCategory("flag", "pickup"),
		sl.CountCategory("flag", "drop"),
		sl.CountCategory("flag", "tag"),
		sl.CountCategory("flag", "capture"),
		sl.CountCategory("agent", "blocked"),
		sl.CountCategory("agent", "fault"),
	)
	return sb.String()
}
