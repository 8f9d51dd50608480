package game

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/paulmach/orb"
)

// ErrInvalidConfig is returned by Validate and NewMatch for unusable setups.
var ErrInvalidConfig = errors.New("invalid match config")

// DroppedPickup decides who may touch a dropped flag.
type DroppedPickup int

const (
	// PickupOpposingOnly lets only opponents pick a dropped flag back up.
	PickupOpposingOnly DroppedPickup = iota
	// PickupOwnTeamReturns sends the flag home when its own team touches it.
	PickupOwnTeamReturns
	// PickupEither lets both teams carry it; the owners return it by carrying
	// it back to its home.
	PickupEither
)

func (p DroppedPickup) String() string {
	switch p {
	case PickupOpposingOnly:
		return "opposing_only"
	case PickupOwnTeamReturns:
		return "own_team_returns"
	case PickupEither:
		return "either"
	default:
		return "unknown"
	}
}

// AgentSpawn places one agent. Agents get ids in slice order.
type AgentSpawn struct {
	Name     string
	Team     arena.Team
	Position orb.Point
}

// FlagSpawn places one flag at its home. Flags get ids in slice order.
type FlagSpawn struct {
	Name string
	Team arena.Team
	Home orb.Point
}

// CapturePointSpawn places one capture point.
type CapturePointSpawn struct {
	Team     arena.Team
	Position orb.Point
}

// Config fully describes a match. There are no hidden defaults: Validate
// rejects a zero value in any required field.
type Config struct {
	// Required.
	Arena         *arena.Arena
	MaxTicks      int
	SpeedCap      float64 // units per tick
	CaptureRadius float64
	OracleTimeout time.Duration

	Seed              int64
	CarrierSpeedCap   float64 // 0 keeps SpeedCap while carrying
	TagRadius         float64 // 0 disables tagging
	AgentRadius       float64 // agents block each other within twice this; 0 lets them pass
	TagCooldownTicks  int
	DropCooldownTicks int
	DropScatter       float64
	ScoreLimit        int // 0 means play to MaxTicks
	ResetOnCapture    bool
	DroppedPickup     DroppedPickup
	AutoPickup        bool // false requires IntentPickup
	EnforceNoGoOnMove bool
	ParallelDecisions bool

	Agents        []AgentSpawn
	Flags         []FlagSpawn
	CapturePoints []CapturePointSpawn
}

func positive(v float64) bool { return v > 0 && !math.IsInf(v, 0) }

func nonNegative(v float64) bool { return v >= 0 && !math.IsInf(v, 0) }

// Validate checks the config. Every failure wraps ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Arena == nil {
		bad("arena is required")
	}
	if c.MaxTicks <= 0 {
		bad("max ticks must be positive, got %d", c.MaxTicks)
	}
	if !positive(c.SpeedCap) {
		bad("speed cap must be positive, got %v", c.SpeedCap)
	}
	if !positive(c.CaptureRadius) {
		bad("capture radius must be positive, got %v", c.CaptureRadius)
	}
	if c.OracleTimeout <= 0 {
		bad("oracle timeout must be positive, got %s", c.OracleTimeout)
	}
	if !nonNegative(c.CarrierSpeedCap) {
		bad("carrier speed cap %v", c.CarrierSpeedCap)
	}
	if !nonNegative(c.AgentRadius) {
		bad("agent radius %v", c.AgentRadius)
	}
	if !nonNegative(c.TagRadius) {
		bad("tag radius %v", c.TagRadius)
	}
	if !nonNegative(c.DropScatter) {
		bad("drop scatter %v", c.DropScatter)
	}
	if c.TagCooldownTicks < 0 || c.DropCooldownTicks < 0 || c.ScoreLimit < 0 {
		bad("negative cooldown or score limit")
	}
	if c.DroppedPickup < PickupOpposingOnly || c.DroppedPickup > PickupEither {
		bad("unknown dropped pickup policy %d", c.DroppedPickup)
	}
	if len(c.Agents) == 0 {
		bad("at least one agent is required")
	}
	if len(c.Flags) == 0 {
		bad("at least one flag is required")
	}
	if c.Arena == nil {
		return errors.Join(errs...)
	}

	placed := func(kind string, i int, team arena.Team, p orb.Point, ownTerritory bool) {
		switch {
		case !team.Valid():
			bad("%s %d has no team", kind, i)
		case !c.Arena.Contains(p):
			bad("%s %d at %v is outside the arena", kind, i, p)
		case !c.Arena.PointIsFree(p, arena.NoTeam):
			bad("%s %d at %v sits on a wall", kind, i, p)
		case ownTerritory && !c.Arena.InTerritory(p, team):
			bad("%s %d at %v is not in %s territory", kind, i, p, team)
		}
	}
	for i, a := range c.Agents {
		placed("agent", i, a.Team, a.Position, false)
		if c.EnforceNoGoOnMove && a.Team.Valid() && !c.Arena.PointIsFree(a.Position, a.Team) {
			bad("agent %d at %v starts inside its own no-go zone", i, a.Position)
		}
	}
	for i, f := range c.Flags {
		placed("flag", i, f.Team, f.Home, true)
	}
	for i, cp := range c.CapturePoints {
		placed("capture point", i, cp.Team, cp.Position, true)
	}
	return errors.Join(errs...)
}

// Standard match layout.
const (
	StandardCampRadius  = 3.0
	StandardAgentRadius = 0.5
	StandardRateHz      = 30
)

// DefaultConfig returns a complete two-versus-two match on the standard arena,
// with a camp zone around each flag that its own team may not enter.
func DefaultConfig() (Config, error) {
	flags := []FlagSpawn{
		{Name: "red_flag_0", Team: arena.TeamRed, Home: orb.Point{40, 0}},
		{Name: "blue_flag_0", Team: arena.TeamBlue, Home: orb.Point{-40, 0}},
	}
	var opts []arena.Option
	for _, f := range flags {
		opts = append(opts, arena.WithNoGoZone(f.Team, arena.NoGoZone{Center: f.Home, Radius: StandardCampRadius}))
	}
	a, err := arena.Standard(opts...)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Arena:             a,
		MaxTicks:          5 * 60 * StandardRateHz,
		SpeedCap:          0.5,
		CaptureRadius:     2,
		OracleTimeout:     2 * time.Millisecond,
		Seed:              1,
		CarrierSpeedCap:   0.35,
		TagRadius:         1.5,
		AgentRadius:       StandardAgentRadius,
		TagCooldownTicks:  2 * StandardRateHz,
		DropCooldownTicks: StandardRateHz,
		DropScatter:       3,
		ScoreLimit:        3,
		ResetOnCapture:    true,
		DroppedPickup:     PickupOpposingOnly,
		AutoPickup:        true,
		EnforceNoGoOnMove: true,
		Agents: []AgentSpawn{
			{Name: "red_0", Team: arena.TeamRed, Position: orb.Point{30, 10}},
			{Name: "red_1", Team: arena.TeamRed, Position: orb.Point{30, -10}},
			{Name: "blue_0", Team: arena.TeamBlue, Position: orb.Point{-30, 10}},
			{Name: "blue_1", Team: arena.TeamBlue, Position: orb.Point{-30, -10}},
		},
		Flags: flags,
		CapturePoints: []CapturePointSpawn{
			{Team: arena.TeamRed, Position: orb.Point{30, 40}},
			{Team: arena.TeamBlue, Position: orb.Point{-30, 40}},
		},
	}, nil
}
