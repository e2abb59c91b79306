// Package worker runs the single background writer that persists session
// snapshots in the order they were produced.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gachasim/internal/adapters/mq/queue"
	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/pkg/logger"
	"github.com/okian/gachasim/pkg/metrics"
)

const defaultWriteTimeout = 5 * time.Second

// Saver writes a full snapshot to durable storage.
type Saver interface {
	Save(ctx context.Context, snap model.Snapshot) error
}

// Queue is the subset of queue.Queue the writer needs.
type Queue interface {
	Enqueue(ctx context.Context, j queue.Job) bool
	Dequeue(ctx context.Context) <-chan queue.Job
	Close() error
}

// Writer consumes snapshots and saves them. Snapshots that arrive with a
// sequence at or below the last saved one are skipped. When the queue is
// full the newest rejected snapshot is parked and saved after the backlog.
type Writer struct {
	queue        Queue
	saver        Saver
	name         string
	writeTimeout time.Duration

	mu       sync.Mutex
	lastSeq  uint64
	overflow *model.Snapshot

	// gate orders Persist against Shutdown: once stopped is set, no offer
	// is still between its stopped check and its enqueue or park.
	gate sync.RWMutex

	wake     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once

	logger logger.Logger
}

// NewWriter creates a writer reading from q and saving through s.
func NewWriter(q Queue, s Saver, opts ...Option) *Writer {
	w := &Writer{
		queue:        q,
		saver:        s,
		name:         "persist-writer",
		writeTimeout: defaultWriteTimeout,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		logger:       logger.GetOr(logger.Nop()).Named("writer"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Persist offers a snapshot to the queue. It never blocks on the writer;
// it only waits for a Shutdown that is already closing the queue.
func (w *Writer) Persist(ctx context.Context, snap model.Snapshot) { //nolint:gocritic // hugeParam: snapshot is handed off by value
	w.gate.RLock()
	defer w.gate.RUnlock()

	if w.stopped.Load() {
		metrics.RecordPersistDropped()
		metrics.RecordErrorByComponent("writer", "stopped")
		return
	}
	if w.queue.Enqueue(ctx, snap) {
		return
	}
	w.park(snap)
}

// park keeps the newest refused snapshot. Whichever one loses is dropped.
func (w *Writer) park(snap model.Snapshot) { //nolint:gocritic // hugeParam: snapshot is stored by value
	metrics.RecordPersistParked()

	w.mu.Lock()
	superseded := w.overflow != nil
	if w.overflow == nil || snap.Seq > w.overflow.Seq {
		s := snap
		w.overflow = &s
	}
	w.mu.Unlock()

	if superseded {
		metrics.RecordPersistDropped()
	}

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) {
	w.started.Store(true)
	go w.Run(ctx)
}

// Run processes snapshots until the queue is closed and drained or ctx is done.
// Callers that invoke Run directly must do so before Shutdown.
func (w *Writer) Run(ctx context.Context) {
	w.started.Store(true)
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-jobs:
			if !ok {
				w.flushOverflow(ctx)
				return
			}
			w.write(ctx, snap)
			w.flushOverflow(ctx)
		case <-w.wake:
			w.flushOverflow(ctx)
		}
	}
}

// Shutdown closes the queue and waits for the backlog to be saved.
func (w *Writer) Shutdown(ctx context.Context) error {
	err := ErrStopped
	w.stopOnce.Do(func() {
		err = nil
		w.gate.Lock()
		w.stopped.Store(true)
		w.gate.Unlock()
		if cerr := w.queue.Close(); cerr != nil {
			w.logger.Error(ctx, "error closing queue", logger.Error(cerr))
		}

		if w.started.Load() {
			select {
			case <-w.done:
			case <-ctx.Done():
				w.logger.Warn(ctx, "shutdown timed out", logger.String("writer", w.name))
				err = fmt.Errorf("shutdown timed out: %w", ctx.Err())
				return
			}
		}
		// Run may have left on its own context with work still queued or parked.
		w.drain(ctx)
	})
	return err
}

func (w *Writer) drain(ctx context.Context) {
	for snap := range w.queue.Dequeue(ctx) {
		w.write(ctx, snap)
	}
	w.flushOverflow(ctx)
}

// LastSeq returns the sequence of the most recently saved snapshot.
func (w *Writer) LastSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeq
}

func (w *Writer) flushOverflow(ctx context.Context) {
	w.mu.Lock()
	snap := w.overflow
	w.overflow = nil
	w.mu.Unlock()

	if snap != nil {
		w.write(ctx, *snap)
	}
}

func (w *Writer) write(ctx context.Context, snap model.Snapshot) { //nolint:gocritic // hugeParam: snapshot arrives by value from the channel
	w.mu.Lock()
	stale := snap.Seq <= w.lastSeq
	w.mu.Unlock()
	if stale {
		metrics.RecordPersistSkipped()
		return
	}

	// Detached from caller cancellation.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.writeTimeout)
	defer cancel()

	start := time.Now()
	if err := w.saver.Save(sctx, snap); err != nil {
		metrics.RecordPersistError()
		metrics.RecordErrorByComponent("writer", "save_failed")
		w.logger.Error(ctx, "snapshot save failed",
			logger.String("writer", w.name),
			logger.Uint64("seq", snap.Seq),
			logger.Error(err),
		)
		return
	}
	metrics.RecordPersistWrite(float64(time.Since(start).Microseconds()) / 1000)

	w.mu.Lock()
	if snap.Seq > w.lastSeq {
		w.lastSeq = snap.Seq
	}
	w.mu.Unlock()
}
