package game

import (
	"context"
	"time"
)

// RunHeadless plays a match to the end with no observer.
func RunHeadless(ctx context.Context, cfg Config, teams []TeamController, opts ...RunOption) (MatchResult, error) {
	m, err := NewMatch(cfg, teams, opts...)
	if err != nil {
		return MatchResult{}, err
	}
	return m.Run(ctx)
}

// Run plays a match to the end, feeding every published state and every
// planner tree to obs. A slow observer loses frames; it never slows the match.
func Run(ctx context.Context, cfg Config, obs Observer, teams []TeamController, opts ...RunOption) (MatchResult, error) {
	if obs == nil {
		return RunHeadless(ctx, cfg, teams, opts...)
	}
	m, err := NewMatch(cfg, teams, opts...)
	if err != nil {
		return MatchResult{}, err
	}
	feed := NewFeed(obs, m.opts.feedBuffer)
	m.setTreeSink(feed)
	m.publish = append(m.publish, feed.PublishState)

	res, err := m.Run(ctx)
	feed.Close()
	res.Dropped = feed.Dropped()
	if res.Dropped > 0 {
		m.log.Info("observer dropped frames", "dropped", res.Dropped)
	}
	return res, err
}

// Run starts an idle match and steps it until it ends or ctx is cancelled.
func (m *Match) Run(ctx context.Context) (MatchResult, error) {
	if err := m.Start(); err != nil {
		return m.Result(), err
	}

	var tick <-chan time.Time
	if m.opts.tickInterval > 0 {
		t := time.NewTicker(m.opts.tickInterval)
		defer t.Stop()
		tick = t.C
	}

	for m.state.Status == MatchRunning {
		if tick != nil {
			select {
			case <-ctx.Done():
				return m.Result(), ctx.Err()
			case <-tick:
			}
		}
		if _, err := m.Step(ctx); err != nil {
			m.log.Warn("match aborted", "tick", m.state.Tick, "err", err)
			return m.Result(), err
		}
	}
	return m.Result(), nil
}
