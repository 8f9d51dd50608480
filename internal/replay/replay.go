// Package replay records published match states as a msgpack stream and reads
// them back. Every recording carries a digest of its frames so two runs can be
// compared for determinism without keeping either in memory.
package replay

import (
	"bufio"
	"errors"
	"fmt"
	"hash"
	"hash/fnv"
	"io"
	"os"

	"github.com/Garsondee/Flag-Sense/internal/game"
	"github.com/vmihailenco/msgpack/v5"
)

// Version is the stream format written by this package.
const Version = 1

// ErrFormat is returned for streams this package cannot read.
var ErrFormat = errors.New("replay: bad stream")

// Header opens every recording.
type Header struct {
	Version  int    `msgpack:"version"`
	MatchID  string `msgpack:"match_id"`
	Seed     int64  `msgpack:"seed"`
	MaxTicks int    `msgpack:"max_ticks"`
	Created  int64  `msgpack:"created"` // unix seconds, not part of the digest
	Notes    string `msgpack:"notes,omitempty"`
}

// Writer appends states to a recording. Use Record with game.WithRecorder.
type Writer struct {
	w      io.Writer
	sum    hash.Hash64
	frames int
}

// NewWriter writes h to w and returns a writer for the frames that follow.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	h.Version = Version
	b, err := msgpack.Marshal(&h)
	if err != nil {
		return nil, fmt.Errorf("replay: encode header: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return nil, fmt.Errorf("replay: write header: %w", err)
	}
	return &Writer{w: w, sum: fnv.New64a()}, nil
}

// Record encodes one state.
func (rw *Writer) Record(s game.GameState) error {
	b, err := msgpack.Marshal(&s)
	if err != nil {
		return fmt.Errorf("replay: encode tick %d: %w", s.Tick, err)
	}
	if _, err := rw.w.Write(b); err != nil {
		return fmt.Errorf("replay: write tick %d: %w", s.Tick, err)
	}
	_, _ = rw.sum.Write(b)
	rw.frames++
	return nil
}

// Frames returns how many states were recorded.
func (rw *Writer) Frames() int { return rw.frames }

// Digest returns the digest of the frames recorded so far.
func (rw *Writer) Digest() uint64 { return rw.sum.Sum64() }

// Reader decodes a recording frame by frame.
type Reader struct {
	dec    *msgpack.Decoder
	header Header
	sum    hash.Hash64
	frames int
}

// NewReader reads the header from r.
func NewReader(r io.Reader) (*Reader, error) {
	dec := msgpack.NewDecoder(r)
	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrFormat, h.Version, Version)
	}
	return &Reader{dec: dec, header: h, sum: fnv.New64a()}, nil
}

// Header returns the recording header.
func (rr *Reader) Header() Header { return rr.header }

// Next returns the next state, or io.EOF after the last one.
func (rr *Reader) Next() (game.GameState, error) {
	var s game.GameState
	if err := rr.dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return game.GameState{}, io.EOF
		}
		return game.GameState{}, fmt.Errorf("%w: frame %d: %v", ErrFormat, rr.frames, err)
	}
	b, err := msgpack.Marshal(&s)
	if err != nil {
		return game.GameState{}, fmt.Errorf("replay: re-encode frame %d: %w", rr.frames, err)
	}
	_, _ = rr.sum.Write(b)
	rr.frames++
	return s, nil
}

// ReadAll returns every remaining state.
func (rr *Reader) ReadAll() ([]game.GameState, error) {
	var out []game.GameState
	for {
		s, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
}

// Digest returns the digest of the frames read so far. After the last frame it
// equals the writer's digest.
func (rr *Reader) Digest() uint64 { return rr.sum.Sum64() }

// Digest hashes a sequence of states the same way Writer does.
func Digest(states []game.GameState) (uint64, error) {
	rw := &Writer{w: io.Discard, sum: fnv.New64a()}
	for _, s := range states {
		if err := rw.Record(s); err != nil {
			return 0, err
		}
	}
	return rw.Digest(), nil
}

// File is a recording being written to disk.
type File struct {
	*Writer
	f   *os.File
	buf *bufio.Writer
}

// Create starts a recording at path.
func Create(path string, h Header) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	buf := bufio.NewWriter(f)
	w, err := NewWriter(buf, h)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{Writer: w, f: f, buf: buf}, nil
}

// Close flushes and closes the file.
func (rf *File) Close() error {
	if err := rf.buf.Flush(); err != nil {
		rf.f.Close()
		return fmt.Errorf("replay: flush: %w", err)
	}
	return rf.f.Close()
}

// Open reads a recording from path. The caller closes the returned file.
func Open(path string) (*Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("replay: %w", err)
	}
	r, err := NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return r, f, nil
}
