package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Garsondee/Flag-Sense/internal/game"
	"github.com/Garsondee/Flag-Sense/internal/lineup"
	"github.com/Garsondee/Flag-Sense/internal/livefeed"
	"github.com/Garsondee/Flag-Sense/internal/logging"
	"github.com/Garsondee/Flag-Sense/internal/replay"
	"github.com/Garsondee/Flag-Sense/internal/viz"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/skratchdot/open-golang/open"
	"golang.org/x/sync/errgroup"
)

type options struct {
	red, blue  string
	seed       int64
	ticks      int
	rate       int
	live       string
	accessLog  bool
	openPage   bool
	record     string
	replayFile string
	noWindow   bool
}

func main() {
	var o options
	var logLevel string
	var noColor bool

	flag.StringVar(&o.red, "red", "defense", "red controller ("+strings.Join(lineup.Kinds(), ", ")+")")
	flag.StringVar(&o.blue, "blue", "raid", "blue controller ("+strings.Join(lineup.Kinds(), ", ")+")")
	flag.Int64Var(&o.seed, "seed", 1, "match seed")
	flag.IntVar(&o.ticks, "ticks", 0, "tick limit (0 keeps the standard five minutes)")
	flag.IntVar(&o.rate, "rate", game.StandardRateHz, "ticks per second")
	flag.StringVar(&o.live, "live", "", "serve the browser feed on this address, e.g. :8080")
	flag.BoolVar(&o.accessLog, "access-log", false, "log live feed requests to stderr")
	flag.BoolVar(&o.openPage, "open", false, "open the live feed in a browser (needs -live)")
	flag.StringVar(&o.record, "record", "", "record the match to this replay file")
	flag.StringVar(&o.replayFile, "replay", "", "play a replay file instead of a match")
	flag.BoolVar(&o.noWindow, "no-window", false, "run without the viewer window (use with -live)")
	flag.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flag.BoolVar(&noColor, "no-color", false, "disable coloured logs")
	flag.Parse()

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(os.Stderr, level, noColor)
	if err := run(o, logger); err != nil {
		logger.Error("ctf failed", "err", err)
		os.Exit(1)
	}
}

// fanout hands every frame to several observers.
type fanout []game.Observer

func (f fanout) ObserveState(s game.GameState) {
	for _, o := range f {
		o.ObserveState(s)
	}
}

func (f fanout) ObserveTree(t game.TreeSnapshot) {
	for _, o := range f {
		o.ObserveTree(t)
	}
}

func run(o options, logger *slog.Logger) error {
	if o.rate <= 0 {
		return fmt.Errorf("-rate must be > 0")
	}
	if o.noWindow && o.live == "" {
		return fmt.Errorf("-no-window needs -live")
	}
	mc, err := game.DefaultConfig()
	if err != nil {
		return err
	}
	mc.Seed = o.seed
	if o.ticks > 0 {
		mc.MaxTicks = o.ticks
	}
	interval := time.Second / time.Duration(o.rate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var obs fanout
	var viewer *viz.Viewer
	if !o.noWindow {
		viewer = viz.New(mc.Arena, logger)
		obs = append(obs, viewer)
	}
	if o.live != "" {
		label := fmt.Sprintf("%s vs %s, seed %d", o.red, o.blue, o.seed)
		if o.replayFile != "" {
			label = o.replayFile
		}
		hub, err := livefeed.NewHub(mc.Arena, label, logger)
		if err != nil {
			return err
		}
		var access io.Writer
		if o.accessLog {
			access = os.Stderr
		}
		srv := livefeed.NewServer(hub, access)
		g.Go(func() error { return srv.ListenAndServe(ctx, o.live) })
		obs = append(obs, hub)
		if o.openPage {
			if err := open.Run(pageURL(o.live)); err != nil {
				logger.Warn("could not open browser", "err", err)
			}
		}
	}

	g.Go(func() error {
		var err error
		if o.replayFile != "" {
			err = playReplay(ctx, o.replayFile, obs, interval, logger)
		} else {
			err = playMatch(ctx, o, mc, obs, interval, logger)
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		if o.noWindow {
			// Keep serving the final state until interrupted.
			<-ctx.Done()
		}
		return nil
	})

	if viewer != nil {
		w, h := viewer.WindowSize()
		ebiten.SetWindowTitle("Flag-Sense")
		ebiten.SetWindowSize(w, h)
		err := ebiten.RunGame(viewer)
		cancel()
		if werr := g.Wait(); err == nil {
			err = werr
		}
		return err
	}
	return g.Wait()
}

func pageURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func playMatch(ctx context.Context, o options, mc game.Config, obs fanout, interval time.Duration, logger *slog.Logger) error {
	teams, err := lineup.Teams(o.red, o.blue, mc, logger)
	if err != nil {
		return err
	}
	opts := []game.RunOption{game.WithLogger(logger), game.WithTickInterval(interval)}
	var file *replay.File
	if o.record != "" {
		file, err = replay.Create(o.record, replay.Header{Seed: mc.Seed, MaxTicks: mc.MaxTicks, Created: time.Now().Unix()})
		if err != nil {
			return err
		}
		opts = append(opts, game.WithRecorder(file.Record))
	}

	var res game.MatchResult
	if len(obs) > 0 {
		res, err = game.Run(ctx, mc, obs, teams, opts...)
	} else {
		res, err = game.RunHeadless(ctx, mc, teams, opts...)
	}
	if file != nil {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		logger.Info("replay written", "path", o.record, "frames", file.Frames(), "digest", fmt.Sprintf("%016x", file.Digest()))
	}
	if err != nil {
		return err
	}
	oc := game.DetermineMatchOutcome(res, mc)
	logger.Info("match over",
		"outcome", oc.Outcome.String(),
		"reason", oc.Description,
		"red", res.Scores[0],
		"blue", res.Scores[1],
		"ticks", res.Ticks,
		"dropped_frames", res.Dropped,
	)
	return nil
}

func playReplay(ctx context.Context, path string, obs game.Observer, interval time.Duration, logger *slog.Logger) error {
	r, closer, err := replay.Open(path)
	if err != nil {
		return err
	}
	defer closer.Close()
	h := r.Header()
	logger.Info("playing replay", "path", path, "match", h.MatchID, "seed", h.Seed)
	n, err := replay.Play(ctx, r, obs, interval)
	if err != nil {
		return err
	}
	logger.Info("replay finished", "frames", n, "digest", fmt.Sprintf("%016x", r.Digest()))
	return nil
}
