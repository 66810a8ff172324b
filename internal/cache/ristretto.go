package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Options bounds a Ristretto cache.
type Options struct {
	MaxBytes   int64
	MaxEntries int64
	// DefaultTTL applies when Set is called with ttl 0. Zero means entries
	// never expire.
	DefaultTTL time.Duration
}

// Ristretto is a Cache backed by dgraph-io/ristretto with cost measured in
// bytes.
type Ristretto struct {
	c          *ristretto.Cache
	defaultTTL time.Duration
}

// NewRistretto creates a cache bounded by opts.
func NewRistretto(opts Options) (*Ristretto, error) {
	if opts.MaxBytes <= 0 {
		return nil, fmt.Errorf("cache: MaxBytes must be positive, got %d", opts.MaxBytes)
	}
	// ristretto wants roughly 10 counters per expected entry
	counters := opts.MaxEntries * 10
	if counters < 1000 {
		counters = 1000
	}
	// cost is the blob length only
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        counters,
		MaxCost:            opts.MaxBytes,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Ristretto{c: c, defaultTTL: opts.DefaultTTL}, nil
}

// NewRistrettoMB is a convenience constructor taking the size bound in
// megabytes.
func NewRistrettoMB(maxMB, maxEntries int64) (*Ristretto, error) {
	return NewRistretto(Options{MaxBytes: maxMB << 20, MaxEntries: maxEntries})
}

func (r *Ristretto) Get(key string) ([]byte, bool) {
	v, ok := r.c.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	if !ok {
		r.c.Del(key)
		return nil, false
	}
	return b, true
}

func (r *Ristretto) Set(key string, value []byte, ttl time.Duration) bool {
	if ttl == 0 {
		ttl = r.defaultTTL
	}
	ok := r.c.SetWithTTL(key, value, int64(len(value)), ttl)
	// make the write visible to the next Get
	r.c.Wait()
	return ok
}

func (r *Ristretto) Delete(key string) {
	r.c.Del(key)
}

func (r *Ristretto) Clear() {
	r.c.Clear()
}

func (r *Ristretto) Stats() Stats {
	m := r.c.Metrics
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Evictions: m.KeysEvicted(),
		Size:      int64(m.CostAdded() - m.CostEvicted()),
		Items:     int64(m.KeysAdded() - m.KeysEvicted()),
	}
}

// Close stops the cache's background goroutines.
func (r *Ristretto) Close() {
	r.c.Close()
}
