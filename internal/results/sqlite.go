package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records in a SQLite file.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("results: sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

const recordColumns = `id, batch, seed, red, blue, outcome, reason, red_score, blue_score,
	ticks, red_faults, blue_faults, digest, created`

func (s *SQLiteStore) Save(ctx context.Context, r Record) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO matches (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			batch = excluded.batch,
			seed = excluded.seed,
			red = excluded.red,
			blue = excluded.blue,
			outcome = excluded.outcome,
			reason = excluded.reason,
			red_score = excluded.red_score,
			blue_score = excluded.blue_score,
			ticks = excluded.ticks,
			red_faults = excluded.red_faults,
			blue_faults = excluded.blue_faults,
			digest = excluded.digest,
			created = excluded.created
	`, r.ID.String(), r.Batch, r.Seed, r.Red, r.Blue, r.Outcome, r.Reason, r.RedScore, r.BlueScore,
		r.Ticks, r.RedFaults, r.BlueFaults, r.Digest, r.Created.Unix())
	if err != nil {
		return fmt.Errorf("save match %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (Record, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Record{}, false, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM matches WHERE id = ?`, id.String())
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return r, true, nil
}

func (s *SQLiteStore) List(ctx context.Context, batch string) ([]Record, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM matches
		WHERE ? = '' OR batch = ?
		ORDER BY seq
	`, batch, batch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		r       Record
		id      string
		created int64
	)
	err := sc.Scan(&id, &r.Batch, &r.Seed, &r.Red, &r.Blue, &r.Outcome, &r.Reason, &r.RedScore, &r.BlueScore,
		&r.Ticks, &r.RedFaults, &r.BlueFaults, &r.Digest, &created)
	if err != nil {
		return Record{}, err
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return Record{}, fmt.Errorf("match id %q: %w", id, err)
	}
	r.Created = time.Unix(created, 0).UTC()
	return r, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS matches (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			batch TEXT NOT NULL,
			seed INTEGER NOT NULL,
			red TEXT NOT NULL,
			blue TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL,
			red_score INTEGER NOT NULL,
			blue_score INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			red_faults INTEGER NOT NULL,
			blue_faults INTEGER NOT NULL,
			digest TEXT NOT NULL,
			created INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS matches_batch ON matches (batch);
	`)
	return err
}
