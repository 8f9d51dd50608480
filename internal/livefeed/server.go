package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Server serves the live page, the websocket feed and the latest state.
type Server struct {
	hub       *Hub
	accessLog io.Writer
	upgrader  websocket.Upgrader
}

// NewServer returns a server for hub. Requests are logged to accessLog in
// combined log format; nil disables access logging.
func NewServer(hub *Hub, accessLog io.Writer) *Server {
	return &Server{
		hub:       hub,
		accessLog: accessLog,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/", s.home).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.serveWS).Methods(http.MethodGet)
	router.HandleFunc("/state", s.latest).Methods(http.MethodGet)

	var h http.Handler = router
	if s.accessLog != nil {
		h = handlers.CombinedLoggingHandler(s.accessLog, h)
	}
	return handlers.RecoveryHandler()(h)
}

// ListenAndServe serves on addr until ctx is done, then shuts down and
// disconnects every watcher.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.hub.log.Info("live feed listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) home(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, page)
}

func (s *Server) latest(w http.ResponseWriter, _ *http.Request) {
	d, ok := s.hub.Latest()
	if !ok {
		http.Error(w, "no state yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.log.Debug("websocket upgrade", "err", err)
		return
	}
	wt, ok := s.hub.add(conn)
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	go s.hub.writeLoop(wt)
	s.hub.readLoop(wt)
}

// page is a self-contained canvas client for the feed.
const page = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>Flag-Sense live</title>
<style>body{background:#0c0e0c;color:#dce6dc;font:13px monospace;margin:12px}canvas{background:#1c221c}</style>
</head>
<body>
<div id="score">waiting for match...</div>
<canvas id="c" width="800" height="800"></canvas>
<script>
const cv = document.getElementById("c"), ctx = cv.getContext("2d");
const colors = {red: "#d24646", blue: "#466ed2", none: "#a0a0a0"};
let arena = null, state = null, trees = {};
function px(p) {
  const [min, max] = arena.bounds, s = cv.width / (max[0] - min[0]);
  return [(p[0] - min[0]) * s, (max[1] - p[1]) * s, s];
}
function draw() {
  if (!arena) return;
  ctx.clearRect(0, 0, cv.width, cv.height);
  ctx.lineWidth = 1;
  for (const t of Object.values(trees)) {
    ctx.strokeStyle = colors[t.team] + "55";
    for (const [a, b] of t.edges || []) { ctx.beginPath(); ctx.moveTo(...px(a)); ctx.lineTo(...px(b)); ctx.stroke(); }
  }
  ctx.strokeStyle = "#c8c8b9"; ctx.lineWidth = 3;
  for (const [a, b] of arena.walls || []) { ctx.beginPath(); ctx.moveTo(...px(a)); ctx.lineTo(...px(b)); ctx.stroke(); }
  ctx.lineWidth = 1;
  for (const z of arena.nogo || []) {
    const [x, y, s] = px(z.center); ctx.strokeStyle = colors[z.team];
    ctx.beginPath(); ctx.arc(x, y, z.radius * s, 0, 2 * Math.PI); ctx.stroke();
  }
  if (!state) return;
  for (const cp of state.capture_points || []) { const [x, y] = px(cp.pos); ctx.strokeStyle = colors[cp.team]; ctx.strokeRect(x - 7, y - 7, 14, 14); }
  for (const f of state.flags || []) {
    if (f.status === "carried" || f.status === "captured") continue;
    const [x, y] = px(f.pos); ctx.fillStyle = colors[f.team]; ctx.fillRect(x, y - 14, 9, 6);
  }
  for (const a of state.agents || []) {
    const [x, y] = px(a.pos); ctx.fillStyle = a.frozen > 0 ? "#787878" : colors[a.team];
    ctx.beginPath(); ctx.arc(x, y, 6, 0, 2 * Math.PI); ctx.fill();
    if (a.carrying >= 0) { ctx.strokeStyle = "#f0dc5a"; ctx.beginPath(); ctx.arc(x, y, 9, 0, 2 * Math.PI); ctx.stroke(); }
    ctx.fillStyle = "#dce6dc"; ctx.fillText(a.label, x + 8, y - 8);
  }
  document.getElementById("score").textContent =
    "T=" + state.tick + "  RED " + state.scores[0] + " : " + state.scores[1] + " BLUE  (" + state.status + ")";
}
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (ev) => {
  const m = JSON.parse(ev.data);
  if (m.type === "init") arena = m.data;
  else if (m.type === "state") state = m.data;
  else if (m.type === "tree") trees[m.data.agent] = m.data;
  requestAnimationFrame(draw);
};
</script>
</body>
</html>
`
