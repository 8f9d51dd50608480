package replay

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Garsondee/Flag-Sense/internal/game"
)

// Play feeds every remaining state to obs, one per interval (as fast as
// possible when interval is zero). It returns the number of states shown.
func Play(ctx context.Context, r *Reader, obs game.Observer, interval time.Duration) (int, error) {
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		s, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		obs.ObserveState(s)
		n++
		if tick != nil {
			select {
			case <-ctx.Done():
				return n, ctx.Err()
			case <-tick:
			}
		}
	}
}
