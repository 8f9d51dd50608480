package livefeed

import (
	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/Garsondee/Flag-Sense/internal/game"
	"github.com/paulmach/orb"
)

// Message types sent to browsers.
const (
	TypeInit  = "init"
	TypeState = "state"
	TypeTree  = "tree"
)

// Message is the envelope of every websocket frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type zoneData struct {
	Team   string    `json:"team"`
	Center orb.Point `json:"center"`
	Radius float64   `json:"radius"`
}

// InitData describes the arena; it is the first frame on every connection.
type InitData struct {
	Match  string         `json:"match,omitempty"`
	Bounds [2]orb.Point   `json:"bounds"`
	Walls  [][2]orb.Point `json:"walls"`
	NoGo   []zoneData     `json:"nogo"`
}

func initData(a *arena.Arena, match string) InitData {
	b := a.Bounds()
	d := InitData{Match: match, Bounds: [2]orb.Point{b.Min, b.Max}}
	for _, w := range a.Walls() {
		d.Walls = append(d.Walls, [2]orb.Point{w.A, w.B})
	}
	for _, team := range arena.Teams {
		for _, z := range a.NoGoZones(team) {
			d.NoGo = append(d.NoGo, zoneData{Team: team.String(), Center: z.Center, Radius: z.Radius})
		}
	}
	return d
}

type agentData struct {
	ID       int       `json:"id"`
	Label    string    `json:"label"`
	Team     string    `json:"team"`
	Position orb.Point `json:"pos"`
	Velocity orb.Point `json:"vel"`
	Carrying int       `json:"carrying"`
	Frozen   int       `json:"frozen"`
}

type flagData struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Team     string    `json:"team"`
	Status   string    `json:"status"`
	Position orb.Point `json:"pos"`
	Carrier  int       `json:"carrier"`
}

type capturePointData struct {
	Team     string    `json:"team"`
	Position orb.Point `json:"pos"`
}

// StateData is one published game state.
type StateData struct {
	Tick          int                `json:"tick"`
	Status        string             `json:"status"`
	Scores        [2]int             `json:"scores"`
	Winner        string             `json:"winner"`
	Agents        []agentData        `json:"agents"`
	Flags         []flagData         `json:"flags"`
	CapturePoints []capturePointData `json:"capture_points"`
}

func stateData(s game.GameState) StateData {
	d := StateData{
		Tick:   s.Tick,
		Status: s.Status.String(),
		Scores: s.Scores,
		Winner: s.Winner.String(),
	}
	for _, a := range s.Agents {
		d.Agents = append(d.Agents, agentData{
			ID: a.ID, Label: a.Label(), Team: a.Team.String(),
			Position: a.Position, Velocity: a.Velocity,
			Carrying: a.Carrying, Frozen: a.FrozenTicks,
		})
	}
	for _, f := range s.Flags {
		d.Flags = append(d.Flags, flagData{
			ID: f.ID, Name: f.Name, Team: f.Team.String(), Status: f.Status.String(),
			Position: f.Position, Carrier: f.Carrier,
		})
	}
	for _, cp := range s.CapturePoints {
		d.CapturePoints = append(d.CapturePoints, capturePointData{Team: cp.Team.String(), Position: cp.Position})
	}
	return d
}

// TreeData is one planner tree as edges plus the chosen path.
type TreeData struct {
	Tick  int            `json:"tick"`
	Agent int            `json:"agent"`
	Team  string         `json:"team"`
	Edges [][2]orb.Point `json:"edges"`
	Path  []orb.Point    `json:"path"`
	Goal  orb.Point      `json:"goal"`
}

func treeData(t game.TreeSnapshot) TreeData {
	d := TreeData{Tick: t.Tick, Agent: t.AgentID, Team: t.Team.String(), Path: t.Path, Goal: t.Goal}
	for _, e := range t.Tree.Edges() {
		d.Edges = append(d.Edges, [2]orb.Point{e.A, e.B})
	}
	return d
}
