package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Garsondee/Flag-Sense/internal/game"
	"github.com/Garsondee/Flag-Sense/internal/logging"
	"github.com/Garsondee/Flag-Sense/internal/results"
)

func TestFirstTick(t *testing.T) {
	entries := []game.SimLogEntry{
		{Tick: 3, Category: "flag", Key: "pickup", Value: "red_flag_0 by B2"},
		{Tick: 9, Category: "flag", Key: "tag", Value: "red_flag_0 by R0"},
		{Tick: 12, Category: "flag", Key: "pickup", Value: "red_flag_0 by B3"},
	}
	if got := firstTick(entries, "flag", "pickup", ""); got != 3 {
		t.Fatalf("first pickup %d", got)
	}
	if got := firstTick(entries, "flag", "pickup", "B3"); got != 12 {
		t.Fatalf("first pickup by B3 %d", got)
	}
	if got := firstTick(entries, "flag", "capture", ""); got != -1 {
		t.Fatalf("missing capture %d", got)
	}
}

func TestDetectStalemate_TrueWhenFlagsMoveButNobodyScores(t *testing.T) {
	rs := runStats{
		cfg:     game.Config{MaxTicks: 900},
		result:  game.MatchResult{Ticks: 900},
		pickups: 3,
		tags:    2,
	}
	isStalemate, reason := detectStalemate(rs)
	if !isStalemate {
		t.Fatalf("expected stalemate=true, got false (reason=%s)", reason)
	}
	if !strings.Contains(reason, "flag_traffic=3") || !strings.Contains(reason, "repeated_tags=2") {
		t.Fatalf("reason %q", reason)
	}
}

func TestDetectStalemate_FalseWhenSomebodyScores(t *testing.T) {
	rs := runStats{
		cfg:      game.Config{MaxTicks: 900},
		result:   game.MatchResult{Ticks: 900},
		pickups:  4,
		captures: 1,
	}
	if isStalemate, reason := detectStalemate(rs); isStalemate {
		t.Fatalf("expected stalemate=false after a capture (reason=%s)", reason)
	}
}

func TestDetectStalemate_FalseWhenNothingHappens(t *testing.T) {
	rs := runStats{
		cfg:    game.Config{MaxTicks: 900},
		result: game.MatchResult{Ticks: 900},
	}
	isStalemate, reason := detectStalemate(rs)
	if isStalemate {
		t.Fatalf("expected stalemate=false for a quiet match (reason=%s)", reason)
	}
	if !strings.Contains(reason, "little_flag_traffic") {
		t.Fatalf("reason %q", reason)
	}
}

func TestRun_StoresEveryMatch(t *testing.T) {
	dir := t.TempDir()
	o := options{
		runs:      2,
		ticks:     90,
		seedBase:  10,
		seedStep:  5,
		scenario:  "open",
		red:       "defense",
		blue:      "raid",
		db:        filepath.Join(dir, "results.db"),
		recordDir: filepath.Join(dir, "replays"),
	}
	var out bytes.Buffer
	if err := run(context.Background(), o, &out, logging.Discard()); err != nil {
		t.Fatal(err)
	}
	report := out.String()
	for _, want := range []string{"=== Headless Match Report ===", "--- Run 1 (seed=10) ---", "--- Run 2 (seed=15) ---", "=== Aggregate ===", "runs=2", "grades:", "=== Aggregate Agent Performance ===", "RED: avg_score="} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}

	ctx := context.Background()
	store := results.NewSQLiteStore(o.db)
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	recs, err := store.List(ctx, "open-defense-vs-raid-seed10")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Seed != 10 || recs[1].Seed != 15 || recs[0].Ticks != 90 {
		t.Fatalf("stored %+v", recs)
	}

	files, err := os.ReadDir(o.recordDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Name() != "run-001.replay" {
		t.Fatalf("replays %v", files)
	}
}

func TestRun_RejectsBadOptions(t *testing.T) {
	base := options{runs: 1, ticks: 10, scenario: "standard", red: "defense", blue: "raid"}
	tests := map[string]func(o *options){
		"runs":     func(o *options) { o.runs = 0 },
		"ticks":    func(o *options) { o.ticks = -1 },
		"scenario": func(o *options) { o.scenario = "maze" },
		"red":      func(o *options) { o.red = "human" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			o := base
			mutate(&o)
			if err := run(context.Background(), o, &bytes.Buffer{}, logging.Discard()); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestTopTrait(t *testing.T) {
	if got := topTrait(map[string]int{}); got != "" {
		t.Fatalf("empty %q", got)
	}
	if got := topTrait(map[string]int{"idle": 2, "fumbled": 2, "tagged_often": 1}); got != "fumbled(2)" {
		t.Fatalf("top %q", got)
	}
}
