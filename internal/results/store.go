// Package results keeps one row per finished match so batches can be compared
// across runs.
package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Garsondee/Flag-Sense/internal/game"
	"github.com/google/uuid"
)

// ErrNotInitialized is returned by stores used before Init.
var ErrNotInitialized = errors.New("results: store is not initialized")

// Record is one finished match.
type Record struct {
	ID         uuid.UUID
	Batch      string
	Seed       int64
	Red        string // controller names
	Blue       string
	Outcome    string
	Reason     string
	RedScore   int
	BlueScore  int
	Ticks      int
	RedFaults  int
	BlueFaults int
	Digest     string // replay digest, hex
	Created    time.Time
}

// FromResult builds a record for res, played under cfg.
func FromResult(res game.MatchResult, cfg game.Config, batch, red, blue string, digest uint64) Record {
	oc := game.DetermineMatchOutcome(res, cfg)
	return Record{
		ID:         res.ID,
		Batch:      batch,
		Seed:       cfg.Seed,
		Red:        red,
		Blue:       blue,
		Outcome:    oc.Outcome.String(),
		Reason:     oc.Description,
		RedScore:   oc.RedScore,
		BlueScore:  oc.BlueScore,
		Ticks:      oc.Ticks,
		RedFaults:  oc.RedFaults,
		BlueFaults: oc.BlueFaults,
		Digest:     fmt.Sprintf("%016x", digest),
		Created:    time.Now().UTC().Truncate(time.Second),
	}
}

// Store persists records.
type Store interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, id uuid.UUID) (Record, bool, error)
	// List returns a batch's records, oldest first. An empty batch lists all.
	List(ctx context.Context, batch string) ([]Record, error)
}

// NewStore returns a store by kind: "memory" (or empty) or "sqlite".
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("results: unsupported store backend %q", kind)
	}
}

// CloseIfSupported closes stores that hold resources.
func CloseIfSupported(s Store) error {
	closer, ok := s.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

// Tally summarises a set of records.
type Tally struct {
	Matches    int
	RedWins    int
	BlueWins   int
	Draws      int
	Aborted    int
	RedScore   int
	BlueScore  int
	Faults     [2]int
	MeanTicks  float64
	UniqueRuns int // distinct digests
}

// Summarize tallies records.
func Summarize(rs []Record) Tally {
	var t Tally
	digests := map[string]bool{}
	ticks := 0
	for _, r := range rs {
		t.Matches++
		switch r.Outcome {
		case game.OutcomeRedVictory.String():
			t.RedWins++
		case game.OutcomeBlueVictory.String():
			t.BlueWins++
		case game.OutcomeDraw.String():
			t.Draws++
		default:
			t.Aborted++
		}
		t.RedScore += r.RedScore
		t.BlueScore += r.BlueScore
		t.Faults[0] += r.RedFaults
		t.Faults[1] += r.BlueFaults
		ticks += r.Ticks
		digests[r.Digest] = true
	}
	if t.Matches > 0 {
		t.MeanTicks = float64(ticks) / float64(t.Matches)
	}
	t.UniqueRuns = len(digests)
	return t
}
