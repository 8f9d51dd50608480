package game

import (
	"sync"
	"sync/atomic"
)

// Observer consumes published states and planner trees. Calls arrive on the
// feed's own goroutine, one at a time.
type Observer interface {
	ObserveState(GameState)
	ObserveTree(TreeSnapshot)
}

type feedItem struct {
	state *GameState
	tree  *TreeSnapshot
}

// Feed decouples an Observer from the simulation. Publishing never blocks:
// when the buffer is full the item is dropped and counted.
type Feed struct {
	obs     Observer
	ch      chan feedItem
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewFeed starts a feed delivering to obs through a buffer of n items.
func NewFeed(obs Observer, n int) *Feed {
	if n < 1 {
		n = 1
	}
	f := &Feed{
		obs:  obs,
		ch:   make(chan feedItem, n),
		done: make(chan struct{}),
	}
	go f.loop()
	return f
}

func (f *Feed) loop() {
	defer close(f.done)
	for it := range f.ch {
		switch {
		case it.state != nil:
			f.obs.ObserveState(*it.state)
		case it.tree != nil:
			f.obs.ObserveTree(*it.tree)
		}
	}
}

func (f *Feed) send(it feedItem) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		f.dropped.Add(1)
		return
	}
	select {
	case f.ch <- it:
	default:
		f.dropped.Add(1)
	}
}

// PublishState queues a copy of s.
func (f *Feed) PublishState(s GameState) {
	c := s.Clone()
	f.send(feedItem{state: &c})
}

// PublishTree queues a planner tree. It satisfies TreeSink.
func (f *Feed) PublishTree(t TreeSnapshot) {
	t.Tree = t.Tree.Clone()
	f.send(feedItem{tree: &t})
}

// Dropped returns how many items were discarded.
func (f *Feed) Dropped() int { return int(f.dropped.Load()) }

// Close stops accepting items, delivers what is buffered and waits for the
// observer to finish. It is safe to call more than once.
func (f *Feed) Close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
	f.mu.Unlock()
	<-f.done
}
