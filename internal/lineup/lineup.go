// Package lineup turns controller names from the command line into team
// controllers.
package lineup

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/Garsondee/Flag-Sense/internal/defensebot"
	"github.com/Garsondee/Flag-Sense/internal/game"
	"github.com/Garsondee/Flag-Sense/internal/logging"
	"github.com/Garsondee/Flag-Sense/internal/raidbot"
)

type builder func(team arena.Team, mc game.Config, log *slog.Logger) (game.TeamController, error)

var builders = map[string]builder{
	"defense": func(team arena.Team, mc game.Config, log *slog.Logger) (game.TeamController, error) {
		b, err := defensebot.NewForMatch(team, mc, defensebot.DefaultConfig(), defensebot.WithLogger(log))
		if err != nil {
			return game.TeamController{}, err
		}
		return game.PerAgent(team, b), nil
	},
	"raid": func(team arena.Team, mc game.Config, log *slog.Logger) (game.TeamController, error) {
		sq, err := raidbot.NewForMatch(team, mc, raidbot.DefaultConfig(), raidbot.WithLogger(log))
		if err != nil {
			return game.TeamController{}, err
		}
		return game.Batch(team, sq), nil
	},
}

// Kinds lists the known controller names.
func Kinds() []string {
	out := make([]string, 0, len(builders))
	for k := range builders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build returns the controller called kind for team.
func Build(kind string, team arena.Team, mc game.Config, log *slog.Logger) (game.TeamController, error) {
	b, ok := builders[strings.ToLower(kind)]
	if !ok {
		return game.TeamController{}, fmt.Errorf("unknown controller %q (known: %s)", kind, strings.Join(Kinds(), ", "))
	}
	if log == nil {
		log = logging.Discard()
	}
	return b(team, mc, log.With("team", team.String(), "controller", kind))
}

// Teams builds both sides.
func Teams(red, blue string, mc game.Config, log *slog.Logger) ([]game.TeamController, error) {
	r, err := Build(red, arena.TeamRed, mc, log)
	if err != nil {
		return nil, fmt.Errorf("red: %w", err)
	}
	b, err := Build(blue, arena.TeamBlue, mc, log)
	if err != nil {
		return nil, fmt.Errorf("blue: %w", err)
	}
	return []game.TeamController{r, b}, nil
}
