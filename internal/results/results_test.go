package results

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/Garsondee/Flag-Sense/internal/game"
	"github.com/google/uuid"
)

func sampleRecord(batch string, red, blue int) Record {
	return Record{
		ID:        uuid.New(),
		Batch:     batch,
		Seed:      7,
		Red:       "defensebot",
		Blue:      "raidbot",
		Outcome:   game.OutcomeRedVictory.String(),
		Reason:    "narrow",
		RedScore:  red,
		BlueScore: blue,
		Ticks:     900,
		Digest:    "00000000deadbeef",
		Created:   time.Unix(1_700_000_000, 0).UTC(),
	}
}

// exerciseStore runs the same checks against every backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.Save(ctx, sampleRecord("a", 1, 0)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("save before init: %v", err)
	}
	if err := s.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	r1 := sampleRecord("a", 2, 1)
	r2 := sampleRecord("b", 0, 3)
	r3 := sampleRecord("a", 1, 1)
	for _, r := range []Record{r1, r2, r3} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, ok, err := s.Get(ctx, r2.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got != r2 {
		t.Fatalf("get returned %+v, want %+v", got, r2)
	}
	if _, ok, err := s.Get(ctx, uuid.New()); ok || err != nil {
		t.Fatalf("missing id: ok=%v err=%v", ok, err)
	}

	batch, err := s.List(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 || batch[0].ID != r1.ID || batch[1].ID != r3.ID {
		t.Fatalf("batch a: %+v", batch)
	}

	// Saving an existing id updates it in place.
	r1.RedScore = 5
	if err := s.Save(ctx, r1); err != nil {
		t.Fatal(err)
	}
	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != r1.ID || all[0].RedScore != 5 {
		t.Fatalf("all: %+v", all)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "results.db"))
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")
	s := NewSQLiteStore(path)
	if err := s.Init(ctx); err != nil {
		t.Fatal(err)
	}
	r := sampleRecord("keep", 3, 0)
	if err := s.Save(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s = NewSQLiteStore(path)
	if err := s.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, ok, err := s.Get(ctx, r.ID)
	if err != nil || !ok || got != r {
		t.Fatalf("after reopen: %+v ok=%v err=%v", got, ok, err)
	}
}

func TestNewStore(t *testing.T) {
	if s, err := NewStore("", ""); err != nil || s == nil {
		t.Fatalf("default store: %v", err)
	}
	s, err := NewStore("sqlite", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(context.Background()); err == nil {
		t.Fatal("sqlite store without a path initialised")
	}
	if _, err := NewStore("postgres", ""); err == nil {
		t.Fatal("unknown backend accepted")
	}
	if err := CloseIfSupported(NewMemoryStore()); err != nil {
		t.Fatal(err)
	}
}

func TestFromResultAndSummarize(t *testing.T) {
	cfg := game.Config{Seed: 9, ScoreLimit: 3}
	res := game.MatchResult{
		ID:     uuid.New(),
		Winner: arena.TeamBlue,
		Scores: [2]int{1, 3},
		Ticks:  420,
		Faults: [2]int{0, 2},
		Final:  game.GameState{Status: game.MatchEnded, Winner: arena.TeamBlue},
	}
	r := FromResult(res, cfg, "nightly", "defensebot", "raidbot", 0xabc)
	if r.ID != res.ID || r.Seed != 9 || r.Outcome != "blue_victory" || r.Digest != "0000000000000abc" {
		t.Fatalf("record %+v", r)
	}
	if r.RedScore != 1 || r.BlueScore != 3 || r.BlueFaults != 2 || r.Ticks != 420 {
		t.Fatalf("record %+v", r)
	}

	aborted := r
	aborted.Outcome = game.OutcomeInconclusive.String()
	tally := Summarize([]Record{r, r, aborted})
	if tally.Matches != 3 || tally.BlueWins != 2 || tally.Aborted != 1 || tally.UniqueRuns != 1 {
		t.Fatalf("tally %+v", tally)
	}
	if tally.MeanTicks != 420 || tally.Faults != [2]int{0, 6} {
		t.Fatalf("tally %+v", tally)
	}
}
