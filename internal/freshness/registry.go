// Package freshness records, per cache key, when the view behind that key was
// last mutated. Read endpoints compare the recorded stamp against the validator
// a client echoes back; write paths touch every key they stale.
package freshness

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry maps cache keys to their last mutation time in epoch milliseconds.
// The in-memory map is authoritative for the life of the process; the
// persister only mirrors it.
type Registry struct {
	mu     sync.RWMutex
	stamps map[string]int64
	now    func() int64
	writer *writer
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the millisecond clock. Used by tests.
func WithClock(now func() int64) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates an empty registry mirrored to p. A nil persister keeps the
// registry in memory only.
func New(p Persister, opts ...Option) *Registry {
	r := &Registry{
		stamps: make(map[string]int64),
		now:    func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(r)
	}
	if p != nil {
		r.writer = newWriter(p, r.Snapshot)
	}
	return r
}

// Load replaces the in-memory map with the persisted one. It is called once at
// startup before the registry serves requests. A missing or unreadable mirror
// leaves the registry empty; Load never fails startup.
func (r *Registry) Load(ctx context.Context) {
	if r.writer == nil {
		return
	}
	stamps, err := r.writer.persister.Load(ctx)
	if err != nil {
		slog.Warn("freshness registry unreadable, starting empty", "error", err)
		stamps = nil
	}

	r.mu.Lock()
	r.stamps = make(map[string]int64, len(stamps))
	for key, stamp := range stamps {
		if stamp > 0 {
			r.stamps[key] = stamp
		}
	}
	size := len(r.stamps)
	r.mu.Unlock()

	registryKeys.Set(float64(size))
	slog.Info("freshness registry loaded", "keys", size)
}

// Get returns the last mutation stamp for key. The boolean is false when the
// key was never touched, meaning its freshness is unknown.
func (r *Registry) Get(key string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stamp, ok := r.stamps[key]
	return stamp, ok
}

// Touch stamps key with the current time and schedules a write of the mirror.
// The returned stamp is strictly greater than any stamp key held before, even
// when two touches land in the same millisecond.
func (r *Registry) Touch(key string) int64 {
	r.mu.Lock()
	stamp := r.advance(key)
	size := len(r.stamps)
	r.mu.Unlock()

	r.touched(size)
	return stamp
}

// TouchAll touches each key and returns the stamps in the same order.
func (r *Registry) TouchAll(keys ...string) []int64 {
	if len(keys) == 0 {
		return nil
	}
	stamps := make([]int64, len(keys))
	r.mu.Lock()
	for i, key := range keys {
		stamps[i] = r.advance(key)
	}
	size := len(r.stamps)
	r.mu.Unlock()

	touchesTotal.Add(float64(len(keys) - 1))
	r.touched(size)
	return stamps
}

// CompareAndTouch touches key only if it still holds observed (0 for a key that
// was never touched). It reports false, without touching, when another writer
// stamped the key in between.
func (r *Registry) CompareAndTouch(key string, observed int64) (int64, bool) {
	r.mu.Lock()
	current := r.stamps[key]
	if current != observed {
		r.mu.Unlock()
		return current, false
	}
	stamp := r.advance(key)
	size := len(r.stamps)
	r.mu.Unlock()

	r.touched(size)
	return stamp, true
}

// Snapshot returns a copy of every recorded stamp.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int64, len(r.stamps))
	for k, v := range r.stamps {
		out[k] = v
	}
	return out
}

// Len returns the number of keys ever touched.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stamps)
}

// Close writes the final snapshot and releases the persister.
// Close is idempotent.
func (r *Registry) Close() error {
	if r.writer == nil {
		return nil
	}
	return r.writer.close()
}

// advance must be called with mu held.
func (r *Registry) advance(key string) int64 {
	stamp := r.now()
	if prev := r.stamps[key]; stamp <= prev {
		stamp = prev + 1
	}
	r.stamps[key] = stamp
	return stamp
}

func (r *Registry) touched(size int) {
	touchesTotal.Inc()
	registryKeys.Set(float64(size))
	if r.writer != nil {
		r.writer.schedule()
	}
}
