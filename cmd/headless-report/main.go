package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/Garsondee/Flag-Sense/internal/game"
	"github.com/Garsondee/Flag-Sense/internal/lineup"
	"github.com/Garsondee/Flag-Sense/internal/logging"
	"github.com/Garsondee/Flag-Sense/internal/replay"
	"github.com/Garsondee/Flag-Sense/internal/results"
	"github.com/cheggaaa/pb"
)

type options struct {
	runs      int
	ticks     int
	seedBase  int64
	seedStep  int64
	scenario  string
	red       string
	blue      string
	parallel  bool
	db        string
	batch     string
	recordDir string
	progress  bool
}

type runStats struct {
	runIndex int
	seed     int64
	cfg      game.Config
	result   game.MatchResult
	outcome  game.MatchOutcomeReason
	digest   uint64

	firstPickupTick  int
	firstTagTick     int
	firstDropTick    int
	firstCaptureTick int

	pickups  int
	recovers int
	tags     int
	drops    int
	captures int
	returns  int
	blocked  int
	invalid  int
	faults   int
	carriers map[string]struct{}

	windowSummary *game.WindowReport
	grades        []game.AgentGrade
}

func main() {
	var o options
	var logLevel string

	flag.IntVar(&o.runs, "runs", 5, "number of headless matches")
	flag.IntVar(&o.ticks, "ticks", 1800, "tick limit per match")
	flag.Int64Var(&o.seedBase, "seed-base", 42, "seed for run 1")
	flag.Int64Var(&o.seedStep, "seed-step", 1, "seed increment between runs")
	flag.StringVar(&o.scenario, "scenario", "standard", "arena layout: standard or open")
	flag.StringVar(&o.red, "red", "defense", "red controller ("+strings.Join(lineup.Kinds(), ", ")+")")
	flag.StringVar(&o.blue, "blue", "raid", "blue controller ("+strings.Join(lineup.Kinds(), ", ")+")")
	flag.BoolVar(&o.parallel, "parallel", false, "collect the two teams' actions concurrently")
	flag.StringVar(&o.db, "db", "", "SQLite file to append results to (in-memory when empty)")
	flag.StringVar(&o.batch, "batch", "", "batch name stored with every result (default derived from flags)")
	flag.StringVar(&o.recordDir, "record-dir", "", "write one replay per run into this directory")
	flag.BoolVar(&o.progress, "progress", true, "show a progress bar on stderr")
	flag.StringVar(&logLevel, "log-level", "warn", "debug, info, warn or error")
	flag.Parse()

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(2)
	}
	logger := logging.New(os.Stderr, level, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, o, os.Stdout, logger); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func (o *options) validate() error {
	if o.runs <= 0 {
		return errors.New("-runs must be > 0")
	}
	if o.ticks <= 0 {
		return errors.New("-ticks must be > 0")
	}
	if o.scenario != "standard" && o.scenario != "open" {
		return fmt.Errorf("unsupported scenario %q (supported: standard, open)", o.scenario)
	}
	if o.batch == "" {
		o.batch = fmt.Sprintf("%s-%s-vs-%s-seed%d", o.scenario, o.red, o.blue, o.seedBase)
	}
	return nil
}

func run(ctx context.Context, o options, out io.Writer, logger *slog.Logger) error {
	if err := o.validate(); err != nil {
		return err
	}
	kind := "memory"
	if o.db != "" {
		kind = "sqlite"
	}
	store, err := results.NewStore(kind, o.db)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return err
	}
	defer results.CloseIfSupported(store)
	if o.recordDir != "" {
		if err := os.MkdirAll(o.recordDir, 0o755); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "=== Headless Match Report ===\n")
	fmt.Fprintf(out, "scenario=%s red=%s blue=%s runs=%d ticks=%d seed_base=%d seed_step=%d batch=%s\n\n",
		o.scenario, o.red, o.blue, o.runs, o.ticks, o.seedBase, o.seedStep, o.batch)

	var bar *pb.ProgressBar
	if o.progress {
		bar = pb.New(o.runs)
		bar.Output = os.Stderr
		bar.SetWidth(80)
		bar.Start()
	}

	all := make([]runStats, 0, o.runs)
	for i := 0; i < o.runs; i++ {
		seed := o.seedBase + int64(i)*o.seedStep
		stats, err := runMatch(ctx, i+1, seed, o, logger)
		if err != nil {
			if bar != nil {
				bar.Finish()
			}
			return fmt.Errorf("run %d (seed %d): %w", i+1, seed, err)
		}
		rec := results.FromResult(stats.result, stats.cfg, o.batch, o.red, o.blue, stats.digest)
		if err := store.Save(ctx, rec); err != nil {
			return err
		}
		all = append(all, stats)
		printRun(out, stats)
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}

	recs, err := store.List(ctx, o.batch)
	if err != nil {
		return err
	}
	printAggregate(out, all, results.Summarize(recs))
	return nil
}

func scenarioConfig(name string, seed int64, ticks int, parallel bool) (game.Config, error) {
	mc, err := game.DefaultConfig()
	if err != nil {
		return game.Config{}, err
	}
	if name == "open" {
		opts := []arena.Option{arena.WithWalls(arena.WallsOuter, arena.OuterWalls(arena.StandardBounds)...)}
		for _, f := range mc.Flags {
			opts = append(opts, arena.WithNoGoZone(f.Team, arena.NoGoZone{Center: f.Home, Radius: game.StandardCampRadius}))
		}
		a, err := arena.New(arena.StandardBounds, arena.StandardNeutralHalf, opts...)
		if err != nil {
			return game.Config{}, err
		}
		mc.Arena = a
	}
	mc.Seed = seed
	mc.MaxTicks = ticks
	mc.ParallelDecisions = parallel
	return mc, nil
}

func runMatch(ctx context.Context, runIndex int, seed int64, o options, logger *slog.Logger) (runStats, error) {
	mc, err := scenarioConfig(o.scenario, seed, o.ticks, o.parallel)
	if err != nil {
		return runStats{}, err
	}
	teams, err := lineup.Teams(o.red, o.blue, mc, logger)
	if err != nil {
		return runStats{}, err
	}

	sl := game.NewSimLog(false)
	rep := game.NewSimReporter(mc.Arena, 0, 10)
	book := game.NewPerfBook(mc.Arena)
	var rec recorder
	m, err := game.NewMatch(mc, teams,
		game.WithLogger(logger),
		game.WithSimLog(sl),
		game.WithRecorder(func(s game.GameState) error {
			if err := rep.Record(s); err != nil {
				return err
			}
			if err := book.Record(s); err != nil {
				return err
			}
			return rec.Record(s)
		}),
	)
	if err != nil {
		return runStats{}, err
	}
	header := replay.Header{MatchID: m.ID().String(), Seed: seed, MaxTicks: mc.MaxTicks, Notes: o.batch}
	var file *replay.File
	if o.recordDir != "" {
		file, err = replay.Create(filepath.Join(o.recordDir, fmt.Sprintf("run-%03d.replay", runIndex)), header)
		if err != nil {
			return runStats{}, err
		}
		rec.w = file.Writer
	} else {
		rec.w, err = replay.NewWriter(io.Discard, header)
		if err != nil {
			return runStats{}, err
		}
	}

	res, err := m.Run(ctx)
	if file != nil {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return runStats{}, err
	}
	book.Credit(sl)
	stats := collectStats(runIndex, seed, mc, res, sl, rep, rec.w.Digest())
	stats.grades = book.Grades()
	return stats, nil
}

// recorder forwards states to a replay writer once one is attached.
type recorder struct{ w *replay.Writer }

func (r *recorder) Record(s game.GameState) error {
	if r.w == nil {
		return nil
	}
	return r.w.Record(s)
}

func collectStats(runIndex int, seed int64, mc game.Config, res game.MatchResult, sl *game.SimLog, rep *game.SimReporter, digest uint64) runStats {
	entries := sl.Entries()
	carriers := map[string]struct{}{}
	for _, e := range entries {
		if e.Category == "flag" && (e.Key == "pickup" || e.Key == "recover") {
			carriers[e.Agent] = struct{}{}
		}
	}
	return runStats{
		runIndex:         runIndex,
		seed:             seed,
		cfg:              mc,
		result:           res,
		outcome:          game.DetermineMatchOutcome(res, mc),
		digest:           digest,
		firstPickupTick:  firstTick(entries, "flag", "pickup", ""),
		firstTagTick:     firstTick(entries, "flag", "tag", ""),
		firstDropTick:    firstTick(entries, "flag", "drop", ""),
		firstCaptureTick: firstTick(entries, "flag", "capture", ""),
		pickups:          sl.CountCategory("flag", "pickup"),
		recovers:         sl.CountCategory("flag", "recover"),
		tags:             sl.CountCategory("flag", "tag"),
		drops:            sl.CountCategory("flag", "drop"),
		captures:         sl.CountCategory("flag", "capture"),
		returns:          sl.CountCategory("flag", "return"),
		blocked:          sl.CountCategory("agent", "blocked"),
		invalid:          sl.CountCategory("agent", "invalid_velocity") + sl.CountCategory("agent", "invalid_action"),
		faults:           sl.CountCategory("agent", "fault"),
		carriers:         carriers,
		windowSummary:    rep.WindowSummary(),
	}
}

func firstTick(entries []game.SimLogEntry, category, key, contains string) int {
	for _, e := range entries {
		if e.Category != category || e.Key != key {
			continue
		}
		if contains == "" || strings.Contains(e.Value, contains) {
			return e.Tick
		}
	}
	return -1
}

// detectStalemate flags matches that ran the clock out with flags changing
// hands but nobody scoring.
func detectStalemate(rs runStats) (bool, string) {
	var reasons []string
	if rs.captures > 0 {
		return false, fmt.Sprintf("captures=%d", rs.captures)
	}
	if rs.result.Ticks < rs.cfg.MaxTicks {
		return false, fmt.Sprintf("ended_early_at_%d", rs.result.Ticks)
	}
	reasons = append(reasons, "clock_expired")
	traffic := rs.pickups + rs.recovers
	if traffic < 2 && rs.tags < 2 {
		return false, strings.Join(append(reasons, fmt.Sprintf("little_flag_traffic=%d", traffic)), ",")
	}
	if traffic >= 2 {
		reasons = append(reasons, fmt.Sprintf("flag_traffic=%d", traffic))
	}
	if rs.tags >= 2 {
		reasons = append(reasons, fmt.Sprintf("repeated_tags=%d", rs.tags))
	}
	return true, strings.Join(reasons, ",")
}

func printRun(out io.Writer, rs runStats) {
	fmt.Fprintf(out, "--- Run %d (seed=%d) ---\n", rs.runIndex, rs.seed)
	fmt.Fprintf(out, "outcome: %s (%s) score red=%d blue=%d ticks=%d digest=%016x\n",
		rs.outcome.Outcome, rs.outcome.Description, rs.outcome.RedScore, rs.outcome.BlueScore, rs.outcome.Ticks, rs.digest)
	fmt.Fprintf(out, "phase_markers: first_pickup=%d first_tag=%d first_drop=%d first_capture=%d\n",
		rs.firstPickupTick, rs.firstTagTick, rs.firstDropTick, rs.firstCaptureTick)
	fmt.Fprintf(out, "flag_events: pickup=%d recover=%d tag=%d drop=%d capture=%d return=%d\n",
		rs.pickups, rs.recovers, rs.tags, rs.drops, rs.captures, rs.returns)
	fmt.Fprintf(out, "agent_events: blocked=%d invalid=%d fault=%d faults_red=%d faults_blue=%d\n",
		rs.blocked, rs.invalid, rs.faults, rs.outcome.RedFaults, rs.outcome.BlueFaults)
	fmt.Fprintf(out, "carriers: %s\n", joinSet(rs.carriers))
	if stale, reason := detectStalemate(rs); stale {
		fmt.Fprintf(out, "stalemate: %s\n", reason)
	}
	if rs.windowSummary != nil {
		fmt.Fprint(out, rs.windowSummary.Format())
	}
	if len(rs.grades) > 0 {
		fmt.Fprintln(out, "grades:")
		fmt.Fprint(out, game.FormatGrades(rs.grades))
	}
	fmt.Fprintln(out)
}

func printAggregate(out io.Writer, all []runStats, tally results.Tally) {
	totalPickups := 0
	totalTags := 0
	totalDrops := 0
	totalCaptures := 0
	totalReturns := 0
	totalBlocked := 0
	stalemates := 0

	pickupTicks := make([]int, 0, len(all))
	tagTicks := make([]int, 0, len(all))
	captureTicks := make([]int, 0, len(all))
	carriersGlobal := map[string]struct{}{}

	// Aggregate per-agent scores across runs.
	type agentAgg struct {
		scoreSum float64
		count    int
		captures int
		tags     int
		good     map[string]int
		bad      map[string]int
	}
	agentAggs := map[string]*agentAgg{}

	for _, rs := range all {
		totalPickups += rs.pickups
		totalTags += rs.tags
		totalDrops += rs.drops
		totalCaptures += rs.captures
		totalReturns += rs.returns
		totalBlocked += rs.blocked
		if rs.firstPickupTick >= 0 {
			pickupTicks = append(pickupTicks, rs.firstPickupTick)
		}
		if rs.firstTagTick >= 0 {
			tagTicks = append(tagTicks, rs.firstTagTick)
		}
		if rs.firstCaptureTick >= 0 {
			captureTicks = append(captureTicks, rs.firstCaptureTick)
		}
		if stale, _ := detectStalemate(rs); stale {
			stalemates++
		}
		for label := range rs.carriers {
			carriersGlobal[label] = struct{}{}
		}
		for _, g := range rs.grades {
			ag, ok := agentAggs[g.Label]
			if !ok {
				ag = &agentAgg{good: map[string]int{}, bad: map[string]int{}}
				agentAggs[g.Label] = ag
			}
			ag.scoreSum += g.Score
			ag.count++
			ag.captures += g.Captures
			ag.tags += g.Tags
			for _, t := range g.GoodTraits {
				ag.good[t]++
			}
			for _, t := range g.BadTraits {
				ag.bad[t]++
			}
		}
	}

	fmt.Fprintln(out, "=== Aggregate ===")
	fmt.Fprintf(out, "runs=%d red_wins=%d blue_wins=%d draws=%d aborted=%d stalemates=%d\n",
		tally.Matches, tally.RedWins, tally.BlueWins, tally.Draws, tally.Aborted, stalemates)
	fmt.Fprintf(out, "total_score: red=%d blue=%d mean_ticks=%.1f distinct_runs=%d faults_red=%d faults_blue=%d\n",
		tally.RedScore, tally.BlueScore, tally.MeanTicks, tally.UniqueRuns, tally.Faults[0], tally.Faults[1])
	fmt.Fprintf(out, "avg_events_per_run: pickup=%.1f tag=%.1f drop=%.1f capture=%.1f return=%.1f blocked=%.1f\n",
		avg(totalPickups, len(all)), avg(totalTags, len(all)), avg(totalDrops, len(all)),
		avg(totalCaptures, len(all)), avg(totalReturns, len(all)), avg(totalBlocked, len(all)))
	fmt.Fprintf(out, "phase_marker_avg_ticks: first_pickup=%s first_tag=%s first_capture=%s\n",
		avgTickString(pickupTicks), avgTickString(tagTicks), avgTickString(captureTicks))
	fmt.Fprintf(out, "carriers=%d [%s]\n", len(carriersGlobal), joinSet(carriersGlobal))

	if len(agentAggs) == 0 {
		return
	}
	fmt.Fprintln(out, "\n=== Aggregate Agent Performance ===")
	labels := make([]string, 0, len(agentAggs))
	for label := range agentAggs {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		ag := agentAggs[label]
		avgS := ag.scoreSum / float64(ag.count)
		fmt.Fprintf(out, "  %s  %s (avg=%.1f)  captures=%d tags=%d", label, game.PerfLetterGrade(avgS), avgS, ag.captures, ag.tags)
		if tg := topTrait(ag.good); tg != "" {
			fmt.Fprintf(out, "  good=%s", tg)
		}
		if tb := topTrait(ag.bad); tb != "" {
			fmt.Fprintf(out, "  bad=%s", tb)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "\n--- Team Summary (across all runs) ---")
	fmt.Fprint(out, game.FormatGradesSummary(collectAllGrades(all)))
}

// topTrait is the most frequent trait, ties broken by name.
func topTrait(counts map[string]int) string {
	best, bestN := "", 0
	for k, v := range counts {
		if v > bestN || (v == bestN && k < best) {
			best, bestN = k, v
		}
	}
	if bestN == 0 {
		return ""
	}
	return fmt.Sprintf("%s(%d)", best, bestN)
}

func collectAllGrades(all []runStats) []game.AgentGrade {
	var out []game.AgentGrade
	for _, rs := range all {
		out = append(out, rs.grades...)
	}
	return out
}

func avg(sum int, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func avgTickString(vals []int) string {
	if len(vals) == 0 {
		return "n/a"
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return fmt.Sprintf("%.1f", float64(sum)/float64(len(vals)))
}

func joinSet(s map[string]struct{}) string {
	if len(s) == 0 {
		return "none"
	}
	labels := make([]string, 0, len(s))
	for k := range s {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return strings.Join(labels, ",")
}
