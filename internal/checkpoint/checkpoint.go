// Package checkpoint keeps recent particle snapshots in memory as
// brotli-compressed JSON so that a failed run can be inspected or resumed
// from its last good state.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/andybalholm/brotli"

	"github.com/onnwee/particle-dynamics/internal/cache"
	"github.com/onnwee/particle-dynamics/internal/metrics"
	"github.com/onnwee/particle-dynamics/internal/particles"
)

var (
	// ErrNotFound is returned when no checkpoint exists for a step.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrNotAdmitted is returned when the cache rejects a checkpoint.
	ErrNotAdmitted = errors.New("checkpoint rejected by cache")
)

const keyPrefix = "checkpoint/"

// Checkpoint is a snapshot tagged with the number of completed steps.
type Checkpoint struct {
	Step     uint64             `json:"step"`
	Time     float64            `json:"time"`
	Snapshot particles.Snapshot `json:"snapshot"`
}

// Store saves checkpoints into a cache. It is safe for concurrent use.
type Store struct {
	cache   cache.Cache
	quality int

	mu    sync.Mutex
	steps []uint64 // ascending
}

// NewStore creates a store on top of c using the default brotli quality.
func NewStore(c cache.Cache) *Store {
	return &Store{cache: c, quality: brotli.DefaultCompression}
}

func key(step uint64) string {
	return keyPrefix + strconv.FormatUint(step, 10)
}

// Save encodes cp and stores it under its step.
func (s *Store) Save(cp Checkpoint) error {
	if err := cp.Snapshot.Validate(); err != nil {
		return fmt.Errorf("save checkpoint %d: %w", cp.Step, err)
	}
	blob, err := Encode(cp, s.quality)
	if err != nil {
		return fmt.Errorf("save checkpoint %d: %w", cp.Step, err)
	}
	if !s.cache.Set(key(cp.Step), blob, 0) {
		return fmt.Errorf("save checkpoint %d (%d bytes): %w", cp.Step, len(blob), ErrNotAdmitted)
	}

	s.mu.Lock()
	i := sort.Search(len(s.steps), func(i int) bool { return s.steps[i] >= cp.Step })
	if i == len(s.steps) || s.steps[i] != cp.Step {
		s.steps = append(s.steps, 0)
		copy(s.steps[i+1:], s.steps[i:])
		s.steps[i] = cp.Step
	}
	s.mu.Unlock()

	metrics.CheckpointsSaved.Inc()
	return nil
}

// Load returns the checkpoint for step.
func (s *Store) Load(step uint64) (Checkpoint, error) {
	blob, ok := s.cache.Get(key(step))
	if !ok {
		return Checkpoint{}, fmt.Errorf("step %d: %w", step, ErrNotFound)
	}
	cp, err := Decode(blob)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("step %d: %w", step, err)
	}
	return cp, nil
}

// LatestRaw returns the newest checkpoint still held by the cache in its
// encoded form. Steps the cache has evicted are forgotten.
func (s *Store) LatestRaw() (uint64, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.steps) > 0 {
		step := s.steps[len(s.steps)-1]
		if blob, ok := s.cache.Get(key(step)); ok {
			return step, blob, nil
		}
		s.steps = s.steps[:len(s.steps)-1]
	}
	return 0, nil, ErrNotFound
}

// Latest returns the newest checkpoint still held by the cache.
func (s *Store) Latest() (Checkpoint, error) {
	step, blob, err := s.LatestRaw()
	if err != nil {
		return Checkpoint{}, err
	}
	cp, err := Decode(blob)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("step %d: %w", step, err)
	}
	return cp, nil
}

// Steps lists the checkpoints the store believes are cached, oldest first.
func (s *Store) Steps() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.steps...)
}

// Encode serializes cp as brotli-compressed JSON.
func Encode(cp Checkpoint, quality int) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, quality)
	if err := json.NewEncoder(w).Encode(cp); err != nil {
		w.Close()
		return nil, fmt.Errorf("encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode and validates the snapshot.
func Decode(blob []byte) (Checkpoint, error) {
	var cp Checkpoint
	if err := json.NewDecoder(brotli.NewReader(bytes.NewReader(blob))).Decode(&cp); err != nil {
		return Checkpoint{}, fmt.Errorf("decode: %w", err)
	}
	if err := cp.Snapshot.Validate(); err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

// DecodeJSON decompresses blob without parsing it.
func DecodeJSON(blob []byte) ([]byte, error) {
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(blob)))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}
