package livefeed

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/Garsondee/Flag-Sense/internal/game"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	watcherBuffer = 64
	writeWait     = 2 * time.Second
)

// watcher is one connected browser.
type watcher struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (w *watcher) close() {
	w.once.Do(func() { close(w.send) })
}

// Hub fans published match data out to every connected browser. It
// satisfies game.Observer. A watcher that falls behind loses frames.
type Hub struct {
	log  *slog.Logger
	init []byte

	mu       sync.RWMutex
	watchers map[uuid.UUID]*watcher
	last     []byte // latest encoded state frame
	lastData *StateData
	dropped  int
	closed   bool
}

// NewHub builds a hub for matches on a. match labels the init frame.
func NewHub(a *arena.Arena, match string, logger *slog.Logger) (*Hub, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	init, err := json.Marshal(Message{Type: TypeInit, Data: initData(a, match)})
	if err != nil {
		return nil, err
	}
	return &Hub{log: logger, init: init, watchers: map[uuid.UUID]*watcher{}}, nil
}

// ObserveState implements game.Observer.
func (h *Hub) ObserveState(s game.GameState) {
	d := stateData(s)
	msg, err := json.Marshal(Message{Type: TypeState, Data: d})
	if err != nil {
		h.log.Warn("encode state", "tick", s.Tick, "err", err)
		return
	}
	h.mu.Lock()
	h.last = msg
	h.lastData = &d
	h.mu.Unlock()
	h.broadcast(msg)
}

// ObserveTree implements game.Observer.
func (h *Hub) ObserveTree(t game.TreeSnapshot) {
	msg, err := json.Marshal(Message{Type: TypeTree, Data: treeData(t)})
	if err != nil {
		h.log.Warn("encode tree", "agent", t.AgentID, "err", err)
		return
	}
	h.broadcast(msg)
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.watchers {
		select {
		case w.send <- msg:
		default:
			h.dropped++
		}
	}
}

// Latest returns the most recent state, if any.
func (h *Hub) Latest() (StateData, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lastData == nil {
		return StateData{}, false
	}
	return *h.lastData, true
}

// Watchers returns how many browsers are connected.
func (h *Hub) Watchers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

// Dropped returns how many frames slow watchers lost.
func (h *Hub) Dropped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// add registers a connection and queues the init frame and the latest state.
func (h *Hub) add(conn *websocket.Conn) (*watcher, bool) {
	w := &watcher{id: uuid.New(), conn: conn, send: make(chan []byte, watcherBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	w.send <- h.init
	if h.last != nil {
		w.send <- h.last
	}
	h.watchers[w.id] = w
	h.log.Info("watcher joined", "watcher", w.id.String(), "watchers", len(h.watchers))
	return w, true
}

func (h *Hub) remove(w *watcher) {
	h.mu.Lock()
	if _, ok := h.watchers[w.id]; ok {
		delete(h.watchers, w.id)
		w.close()
		h.log.Info("watcher left", "watcher", w.id.String(), "watchers", len(h.watchers))
	}
	h.mu.Unlock()
}

// Close disconnects every watcher and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, w := range h.watchers {
		w.close()
		delete(h.watchers, id)
	}
}

// writeLoop drains w.send into the socket until the channel closes.
func (h *Hub) writeLoop(w *watcher) {
	defer w.conn.Close()
	for msg := range w.send {
		_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("watcher write failed", "watcher", w.id.String(), "err", err)
			h.remove(w)
			// Drain so remove's close does not leave senders blocked.
			for range w.send {
			}
			return
		}
	}
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "match over"), time.Now().Add(writeWait))
}

// readLoop discards client messages; it returns when the client goes away.
func (h *Hub) readLoop(w *watcher) {
	defer h.remove(w)
	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			return
		}
	}
}
