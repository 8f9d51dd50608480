package lineup

import (
	"context"
	"strings"
	"testing"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/Garsondee/Flag-Sense/internal/game"
)

func TestKinds(t *testing.T) {
	if got := strings.Join(Kinds(), ","); got != "defense,raid" {
		t.Fatalf("kinds %q", got)
	}
}

func TestTeams_PlayAMatch(t *testing.T) {
	mc, err := game.DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	mc.MaxTicks = 60
	teams, err := Teams("defense", "RAID", mc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(teams) != 2 || teams[0].Team() != arena.TeamRed || teams[1].Team() != arena.TeamBlue {
		t.Fatalf("teams %+v", teams)
	}
	res, err := game.RunHeadless(context.Background(), mc, teams)
	if err != nil {
		t.Fatal(err)
	}
	if res.Ticks != 60 || res.Faults != [2]int{} {
		t.Fatalf("ticks %d faults %v", res.Ticks, res.Faults)
	}
}

func TestBuild_Unknown(t *testing.T) {
	mc, err := game.DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Teams("defense", "human", mc, nil); err == nil || !strings.Contains(err.Error(), "blue") {
		t.Fatalf("unknown blue controller: %v", err)
	}
}
