package freshness

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// saveTimeout bounds one write of the mirror.
const saveTimeout = 10 * time.Second

// writer persists registry snapshots off the request path. Touches only mark
// the mirror dirty; the loop coalesces any number of marks into one Save of
// the latest snapshot.
type writer struct {
	persister Persister
	snapshot  func() map[string]int64
	dirty     chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
}

func newWriter(p Persister, snapshot func() map[string]int64) *writer {
	w := &writer{
		persister: p,
		snapshot:  snapshot,
		dirty:     make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// schedule never blocks. A pending mark already covers this touch.
func (w *writer) schedule() {
	if w.closed.Load() {
		return
	}
	select {
	case w.dirty <- struct{}{}:
	default:
	}
}

func (w *writer) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.dirty:
			w.save()
		case <-w.done:
			w.save()
			return
		}
	}
}

func (w *writer) save() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	stamps := w.snapshot()
	if err := w.persister.Save(ctx, stamps); err != nil {
		persistFailures.Inc()
		slog.Error("failed to persist freshness registry", "error", err, "keys", len(stamps))
	}
}

func (w *writer) close() error {
	if w.closed.Swap(true) {
		return nil
	}
	close(w.done)
	w.wg.Wait()
	return w.persister.Close()
}
