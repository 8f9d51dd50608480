package viz

import (
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/Garsondee/Flag-Sense/internal/game"
	"github.com/atotto/clipboard"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/paulmach/orb"
	"golang.org/x/image/font/basicfont"
)

const (
	worldPixels   = 860 // side of the square arena viewport
	margin        = 24
	scoreBarH     = 28
	agentRadius   = 6
	treeMaxAge    = 45 // ticks a planner tree stays on screen
	reportEvery   = 30
	reportWindow  = 300
	copyToastTime = 90 // frames
)

var (
	bgColor       = color.RGBA{R: 12, G: 14, B: 12, A: 255}
	fieldColor    = color.RGBA{R: 28, G: 34, B: 28, A: 255}
	neutralColor  = color.RGBA{R: 40, G: 44, B: 40, A: 255}
	wallColor     = color.RGBA{R: 200, G: 200, B: 185, A: 255}
	pathColor     = color.RGBA{R: 240, G: 220, B: 90, A: 255}
	frozenColor   = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	textColor     = color.RGBA{R: 220, G: 230, B: 220, A: 255}
	redTerritory  = color.RGBA{R: 60, G: 28, B: 28, A: 255}
	blueTerritory = color.RGBA{R: 28, G: 34, B: 64, A: 255}
)

// Viewer draws a running match. It satisfies game.Observer, so it can be
// handed to game.Run, and ebiten.Game, so it can be handed to ebiten.RunGame.
// Observer calls arrive on the feed goroutine; ebiten calls on the main one.
type Viewer struct {
	arena *arena.Arena
	log   *slog.Logger

	mu       sync.Mutex
	state    game.GameState
	frames   int
	trees    map[int]game.TreeSnapshot
	events   *EventLog
	reporter *game.SimReporter

	showHUD   bool
	showTrees bool
	prevKeys  map[ebiten.Key]bool
	toast     string
	toastLeft int

	scale      float64
	offX, offY float64
	width      int
	height     int
}

// New returns a viewer for matches played on a.
func New(a *arena.Arena, logger *slog.Logger) *Viewer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	v := &Viewer{
		arena:     a,
		log:       logger,
		trees:     map[int]game.TreeSnapshot{},
		events:    NewEventLog(),
		reporter:  game.NewSimReporter(a, reportWindow, reportEvery),
		showHUD:   true,
		showTrees: true,
		prevKeys:  map[ebiten.Key]bool{},
	}
	b := a.Bounds()
	v.scale = math.Min(worldPixels/(b.Max[0]-b.Min[0]), worldPixels/(b.Max[1]-b.Min[1]))
	v.offX = margin
	v.offY = margin + scoreBarH
	v.width = margin*2 + worldPixels + logPanelWidth
	v.height = margin*2 + scoreBarH + worldPixels
	return v
}

// WindowSize is the layout size the viewer wants.
func (v *Viewer) WindowSize() (int, int) { return v.width, v.height }

// ObserveState implements game.Observer.
func (v *Viewer) ObserveState(s game.GameState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, e := range Diff(v.state, s) {
		v.events.Add(e)
	}
	if s.Tick%reportEvery == 0 || s.Status == game.MatchEnded {
		v.reporter.Collect(s)
	}
	v.state = s
	v.frames++
}

// ObserveTree implements game.Observer. Only the latest tree per agent is kept.
func (v *Viewer) ObserveTree(t game.TreeSnapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.trees[t.AgentID] = t
}

// Summary is the text copied to the clipboard: the score line, the latest
// behaviour report and the event log.
func (v *Viewer) Summary() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n", v.scoreLine())
	sb.WriteString(v.reporter.FormatLatest())
	sb.WriteString("\n")
	sb.WriteString(v.reporter.WindowSummary().Format())
	sb.WriteString("\n--- Events ---\n")
	for _, e := range v.events.Recent() {
		sb.WriteString(e.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func (v *Viewer) scoreLine() string {
	s := v.state
	status := s.Status.String()
	if s.Status == game.MatchEnded {
		status = "ended, draw"
		if s.Winner.Valid() {
			status = "ended, " + s.Winner.String() + " wins"
		}
	}
	return fmt.Sprintf("T=%d  RED %d : %d BLUE  (%s)", s.Tick, s.Score(arena.TeamRed), s.Score(arena.TeamBlue), status)
}

// Update handles input. Esc or Q closes the window.
func (v *Viewer) Update() error {
	pressed := func(k ebiten.Key) bool {
		return ebiten.IsKeyPressed(k) && !v.prevKeys[k]
	}
	cur := map[ebiten.Key]bool{}
	for _, k := range []ebiten.Key{ebiten.KeyH, ebiten.KeyT, ebiten.KeyC, ebiten.KeyEscape, ebiten.KeyQ} {
		cur[k] = ebiten.IsKeyPressed(k)
	}
	defer func() { v.prevKeys = cur }()

	if pressed(ebiten.KeyEscape) || pressed(ebiten.KeyQ) {
		return ebiten.Termination
	}
	if pressed(ebiten.KeyH) {
		v.showHUD = !v.showHUD
	}
	if pressed(ebiten.KeyT) {
		v.showTrees = !v.showTrees
	}
	if pressed(ebiten.KeyC) {
		if err := clipboard.WriteAll(v.Summary()); err != nil {
			v.log.Warn("clipboard copy failed", "err", err)
			v.toast = "clipboard unavailable"
		} else {
			v.toast = "summary copied"
		}
		v.toastLeft = copyToastTime
	}
	if v.toastLeft > 0 {
		v.toastLeft--
	}
	return nil
}

// Layout implements ebiten.Game.
func (v *Viewer) Layout(_, _ int) (int, int) { return v.width, v.height }

// project maps an arena point to screen pixels, y up.
func (v *Viewer) project(p orb.Point) (float32, float32) {
	b := v.arena.Bounds()
	x := v.offX + (p[0]-b.Min[0])*v.scale
	y := v.offY + (b.Max[1]-p[1])*v.scale
	return float32(x), float32(y)
}

// Draw implements ebiten.Game.
func (v *Viewer) Draw(screen *ebiten.Image) {
	v.mu.Lock()
	defer v.mu.Unlock()

	screen.Fill(bgColor)
	v.drawField(screen)
	if v.showTrees {
		v.drawTrees(screen)
	}
	v.drawFlags(screen)
	v.drawAgents(screen)

	text.Draw(screen, v.scoreLine(), basicfont.Face7x13, margin, margin+14, textColor)
	v.events.Draw(screen, v.width-logPanelWidth, v.height)
	if v.showHUD {
		v.drawHUD(screen)
	}
	if v.toastLeft > 0 {
		text.Draw(screen, v.toast, basicfont.Face7x13, margin+worldPixels-160, margin+14, pathColor)
	}
}

func (v *Viewer) drawField(screen *ebiten.Image) {
	b := v.arena.Bounds()
	x0, y0 := v.project(orb.Point{b.Min[0], b.Max[1]})
	x1, y1 := v.project(orb.Point{b.Max[0], b.Min[1]})
	vector.FillRect(screen, x0, y0, x1-x0, y1-y0, fieldColor, false)

	// Territories: sample the boundary on the centre line.
	cy := (b.Min[1] + b.Max[1]) / 2
	lo, hi := b.Min[0], b.Max[0]
	for x := b.Min[0]; x <= b.Max[0]; x += 0.5 {
		switch v.arena.TerritoryOf(orb.Point{x, cy}) {
		case arena.TerritoryLeft:
			lo = x
		case arena.TerritoryRight:
			if hi == b.Max[0] {
				hi = x
			}
		}
	}
	lx, _ := v.project(orb.Point{lo, 0})
	rx, _ := v.project(orb.Point{hi, 0})
	vector.FillRect(screen, x0, y0, lx-x0, y1-y0, blueTerritory, false)
	vector.FillRect(screen, rx, y0, x1-rx, y1-y0, redTerritory, false)
	vector.FillRect(screen, lx, y0, rx-lx, y1-y0, neutralColor, false)

	for _, team := range arena.Teams {
		c := teamColor(team)
		c.A = 140
		for _, z := range v.arena.NoGoZones(team) {
			zx, zy := v.project(z.Center)
			vector.StrokeCircle(screen, zx, zy, float32(z.Radius*v.scale), 1, c, true)
		}
	}
	for _, w := range v.arena.Walls() {
		ax, ay := v.project(w.A)
		bx, by := v.project(w.B)
		vector.StrokeLine(screen, ax, ay, bx, by, 3, wallColor, true)
	}
}

func (v *Viewer) drawTrees(screen *ebiten.Image) {
	for id, t := range v.trees {
		if v.state.Tick-t.Tick > treeMaxAge {
			delete(v.trees, id)
			continue
		}
		c := teamColor(t.Team)
		c.A = 70
		for _, e := range t.Tree.Edges() {
			ax, ay := v.project(e.A)
			bx, by := v.project(e.B)
			vector.StrokeLine(screen, ax, ay, bx, by, 1, c, false)
		}
		for i := 1; i < len(t.Path); i++ {
			ax, ay := v.project(t.Path[i-1])
			bx, by := v.project(t.Path[i])
			vector.StrokeLine(screen, ax, ay, bx, by, 2, pathColor, true)
		}
		gx, gy := v.project(t.Goal)
		vector.StrokeRect(screen, gx-3, gy-3, 6, 6, 1, pathColor, false)
	}
}

func (v *Viewer) drawFlags(screen *ebiten.Image) {
	for _, cp := range v.state.CapturePoints {
		x, y := v.project(cp.Position)
		vector.StrokeRect(screen, x-7, y-7, 14, 14, 2, teamColor(cp.Team), false)
	}
	for _, f := range v.state.Flags {
		hx, hy := v.project(f.Home)
		vector.StrokeCircle(screen, hx, hy, 4, 1, teamColor(f.Team), false)
		if f.Status == game.FlagCaptured || f.Status == game.FlagCarried {
			continue
		}
		x, y := v.project(f.Position)
		vector.StrokeLine(screen, x, y, x, y-14, 2, wallColor, false)
		vector.FillRect(screen, x, y-14, 9, 6, teamColor(f.Team), false)
		if f.Status == game.FlagDropped {
			ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%d", f.CooldownTicks), int(x)+10, int(y)-16)
		}
	}
}

func (v *Viewer) drawAgents(screen *ebiten.Image) {
	for _, a := range v.state.Agents {
		x, y := v.project(a.Position)
		c := teamColor(a.Team)
		if a.Frozen() {
			c = frozenColor
		}
		vector.FillCircle(screen, x, y, agentRadius, c, true)
		if a.HasFlag() && a.Carrying < len(v.state.Flags) {
			fc := teamColor(v.state.Flags[a.Carrying].Team)
			vector.StrokeCircle(screen, x, y, agentRadius+3, 2, fc, true)
		}
		vx, vy := v.project(arena.Add(a.Position, arena.Scale(a.Velocity, 4)))
		vector.StrokeLine(screen, x, y, vx, vy, 1, textColor, false)
		ebitenutil.DebugPrintAt(screen, a.Label(), int(x)+agentRadius+1, int(y)-agentRadius-8)
	}
}

func (v *Viewer) drawHUD(screen *ebiten.Image) {
	lines := []string{
		fmt.Sprintf("frames: %d  trees: %d", v.frames, len(v.trees)),
		"[H] HUD  [T] planner trees",
		"[C] copy summary  [Esc] quit",
	}
	const lineH = 14
	x := margin + 6
	y := margin + scoreBarH + worldPixels - len(lines)*lineH - 6
	vector.FillRect(screen, float32(x-4), float32(y-12), 230, float32(len(lines)*lineH+6), color.RGBA{R: 6, G: 10, B: 6, A: 210}, false)
	for i, l := range lines {
		text.Draw(screen, l, basicfont.Face7x13, x, y+i*lineH, textColor)
	}
}
