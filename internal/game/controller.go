package game

import (
	"errors"
	"fmt"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/Garsondee/Flag-Sense/internal/planner"
	"github.com/paulmach/orb"
)

// ErrControllerFault marks decision logic that returned an error or panicked.
var ErrControllerFault = errors.New("controller fault")

// Controller is the part every kind of decision logic shares. Startup is
// called once, with the initial state, before the first tick.
type Controller interface {
	Startup(GameState)
}

// BatchController decides for a whole team at once.
type BatchController interface {
	Controller
	Actions(GameState) ([]Action, error)
}

// AgentController decides for one agent at a time.
type AgentController interface {
	Controller
	Action(GameState, AgentState) (Action, error)
}

// TreeSink receives planner trees for visualization. Implementations must
// not block.
type TreeSink interface {
	PublishTree(TreeSnapshot)
}

// TreeSinkUser is implemented by controllers that want to publish planner
// trees. Observed runs hand them a sink before Startup; headless runs leave
// whatever sink the controller already has.
type TreeSinkUser interface {
	SetTreeSink(TreeSink)
}

// TreeSnapshot is one planner tree, grown by an agent on a given tick.
type TreeSnapshot struct {
	Tick    int
	AgentID int
	Team    arena.Team
	Tree    planner.Tree
	Path    []orb.Point
	Goal    orb.Point
}

type discardTrees struct{}

func (discardTrees) PublishTree(TreeSnapshot) {}

type controllerKind int

const (
	kindBatch controllerKind = iota + 1
	kindPerAgent
)

func (k controllerKind) String() string {
	switch k {
	case kindBatch:
		return "batch"
	case kindPerAgent:
		return "per_agent"
	default:
		return "unset"
	}
}

// TeamController binds decision logic to a team. The kind is fixed when the
// value is built, so the tick loop never type-switches on user values.
type TeamController struct {
	team  arena.Team
	kind  controllerKind
	batch BatchController
	agent AgentController
}

// Batch wraps a whole-team controller.
func Batch(team arena.Team, c BatchController) TeamController {
	return TeamController{team: team, kind: kindBatch, batch: c}
}

// PerAgent wraps a per-agent controller.
func PerAgent(team arena.Team, c AgentController) TeamController {
	return TeamController{team: team, kind: kindPerAgent, agent: c}
}

// Team returns the side this controller plays.
func (tc TeamController) Team() arena.Team { return tc.team }

func (tc TeamController) controller() Controller {
	switch tc.kind {
	case kindBatch:
		return tc.batch
	case kindPerAgent:
		return tc.agent
	default:
		return nil
	}
}

func (tc TeamController) validate() error {
	if !tc.team.Valid() {
		return fmt.Errorf("%w: controller for team %s", ErrInvalidConfig, tc.team)
	}
	if tc.controller() == nil {
		return fmt.Errorf("%w: %s controller is nil", ErrInvalidConfig, tc.team)
	}
	return nil
}

// startup runs Startup, turning a panic into an error.
func (tc TeamController) startup(s GameState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s startup panicked: %v", ErrControllerFault, tc.team, r)
		}
	}()
	tc.controller().Startup(s)
	return nil
}

// decide asks the controller for its team's actions against snapshot s. The
// result holds exactly one action per agent of the team, in id order. A batch
// fault holds the whole team; a per-agent fault holds only that agent.
func (tc TeamController) decide(s GameState) (acts []Action, invalid int, faults []error) {
	own := s.TeamAgents(tc.team)
	hold := func() []Action {
		out := make([]Action, len(own))
		for i, a := range own {
			out[i] = Hold(a.ID)
		}
		return out
	}

	switch tc.kind {
	case kindBatch:
		got, err := tc.batchActions(s)
		if err != nil {
			return hold(), 0, []error{err}
		}
		// First action per own agent wins; anything else is ignored.
		byID := make(map[int]Action, len(got))
		for _, a := range got {
			ag, ok := s.Agent(a.AgentID)
			if !ok || ag.Team != tc.team {
				invalid++
				continue
			}
			if _, dup := byID[a.AgentID]; dup {
				invalid++
				continue
			}
			byID[a.AgentID] = a
		}
		out := hold()
		for i, a := range own {
			if act, ok := byID[a.ID]; ok {
				out[i] = act
			}
		}
		return out, invalid, nil

	case kindPerAgent:
		out := make([]Action, len(own))
		for i, a := range own {
			act, err := tc.agentAction(s, a)
			if err != nil {
				faults = append(faults, err)
				out[i] = Hold(a.ID)
				continue
			}
			act.AgentID = a.ID
			out[i] = act
		}
		return out, 0, faults
	}
	return hold(), 0, []error{fmt.Errorf("%w: %s controller has no kind", ErrControllerFault, tc.team)}
}

// batchActions calls Actions, turning an error or panic into a fault.
func (tc TeamController) batchActions(s GameState) (acts []Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			acts, err = nil, fmt.Errorf("%w: %s batch panicked: %v", ErrControllerFault, tc.team, r)
		}
	}()
	acts, err = tc.batch.Actions(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s batch: %v", ErrControllerFault, tc.team, err)
	}
	return acts, nil
}

// agentAction calls Action for one agent, turning an error or panic into a
// fault for that agent alone.
func (tc TeamController) agentAction(s GameState, self AgentState) (act Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			act, err = Hold(self.ID), fmt.Errorf("%w: %s agent %d panicked: %v", ErrControllerFault, tc.team, self.ID, r)
		}
	}()
	act, err = tc.agent.Action(s, self)
	if err != nil {
		return Hold(self.ID), fmt.Errorf("%w: %s agent %d: %v", ErrControllerFault, tc.team, self.ID, err)
	}
	return act, nil
}
