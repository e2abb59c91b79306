package worker_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	queue "github.com/okian/gachasim/internal/adapters/mq/queue"
	worker "github.com/okian/gachasim/internal/adapters/mq/worker"
	model "github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

type recordingSaver struct {
	mu    sync.Mutex
	seqs  []uint64
	fail  map[uint64]bool
	gate  chan struct{}
	calls int
}

func newRecordingSaver() *recordingSaver {
	return &recordingSaver{fail: map[uint64]bool{}}
}

func (s *recordingSaver) Save(_ context.Context, snap model.Snapshot) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail[snap.Seq] {
		return errors.New("write failed")
	}
	s.seqs = append(s.seqs, snap.Seq)
	return nil
}

func (s *recordingSaver) saved() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.seqs...)
}

// counter reads a persistence counter from the shared registry by name suffix.
func counter(suffix string) float64 {
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if strings.HasSuffix(f.GetName(), suffix) && len(f.GetMetric()) > 0 {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func snapshot(seq uint64) model.Snapshot {
	s := model.DefaultSnapshot()
	s.Seq = seq
	return s
}

func TestWriter(t *testing.T) {
	convey.Convey("Given a writer over a roomy queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		saver := newRecordingSaver()
		w := worker.NewWriter(q, saver, worker.WithName("test-writer"))
		ctx := context.Background()
		w.Start(ctx)

		convey.Convey("When snapshots arrive in order", func() {
			for i := uint64(1); i <= 10; i++ {
				w.Persist(ctx, snapshot(i))
			}
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then every one is saved in order", func() {
				convey.So(saver.saved(), convey.ShouldResemble, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
				convey.So(w.LastSeq(), convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When a stale snapshot follows a newer one", func() {
			w.Persist(ctx, snapshot(5))
			w.Persist(ctx, snapshot(3))
			w.Persist(ctx, snapshot(6))
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then it is skipped", func() {
				convey.So(saver.saved(), convey.ShouldResemble, []uint64{5, 6})
			})
		})

		convey.Convey("When a save fails", func() {
			saver.fail[2] = true
			for i := uint64(1); i <= 3; i++ {
				w.Persist(ctx, snapshot(i))
			}
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then later snapshots are still saved", func() {
				convey.So(saver.saved(), convey.ShouldResemble, []uint64{1, 3})
				convey.So(w.LastSeq(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When shut down twice", func() {
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			err := w.Shutdown(ctx)

			convey.Convey("Then the second call reports it", func() {
				convey.So(errors.Is(err, worker.ErrStopped), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a writer whose queue overflows", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		saver := newRecordingSaver()
		saver.gate = make(chan struct{})
		w := worker.NewWriter(q, saver)
		ctx := context.Background()
		w.Start(ctx)

		convey.Convey("When more snapshots arrive than fit", func() {
			w.Persist(ctx, snapshot(1))
			time.Sleep(20 * time.Millisecond) // writer is now blocked saving 1
			for i := uint64(2); i <= 8; i++ {
				w.Persist(ctx, snapshot(i))
			}
			close(saver.gate)
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then the newest snapshot still lands last", func() {
				saved := saver.saved()
				convey.So(saved[0], convey.ShouldEqual, 1)
				convey.So(saved[len(saved)-1], convey.ShouldEqual, 8)
				convey.So(w.LastSeq(), convey.ShouldEqual, 8)
				for i := 1; i < len(saved); i++ {
					convey.So(saved[i], convey.ShouldBeGreaterThan, saved[i-1])
				}
			})
		})
	})

	convey.Convey("Given a writer that was never started", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		saver := newRecordingSaver()
		w := worker.NewWriter(q, saver)
		ctx := context.Background()

		convey.Convey("Shutdown drains the backlog itself", func() {
			w.Persist(ctx, snapshot(1))
			w.Persist(ctx, snapshot(2))
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			convey.So(saver.saved(), convey.ShouldResemble, []uint64{1, 2})

			convey.Convey("And later snapshots are dropped", func() {
				w.Persist(ctx, snapshot(3))
				convey.So(saver.saved(), convey.ShouldResemble, []uint64{1, 2})
			})
		})
	})

	convey.Convey("Given a writer whose loop ended before shutdown", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		saver := newRecordingSaver()
		w := worker.NewWriter(q, saver)
		ctx := context.Background()

		loopCtx, cancel := context.WithCancel(ctx)
		cancel()
		w.Run(loopCtx)

		convey.Convey("When snapshots are queued and parked afterwards", func() {
			parked := counter("persist_parked_total")
			dropped := counter("persist_dropped_total")

			w.Persist(ctx, snapshot(1))
			w.Persist(ctx, snapshot(2))
			w.Persist(ctx, snapshot(3))
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then Shutdown saves the queue and the newest parked one", func() {
				convey.So(saver.saved(), convey.ShouldResemble, []uint64{1, 3})
				convey.So(w.LastSeq(), convey.ShouldEqual, 3)
			})

			convey.Convey("Then only the superseded snapshot counts as dropped", func() {
				convey.So(counter("persist_parked_total")-parked, convey.ShouldEqual, 2)
				convey.So(counter("persist_dropped_total")-dropped, convey.ShouldEqual, 1)
			})

			convey.Convey("Then offers after shutdown are dropped", func() {
				before := counter("persist_dropped_total")
				w.Persist(ctx, snapshot(4))
				convey.So(saver.saved(), convey.ShouldResemble, []uint64{1, 3})
				convey.So(counter("persist_dropped_total")-before, convey.ShouldEqual, 1)
			})
		})
	})

	convey.Convey("Given snapshots offered while the writer shuts down", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		saver := newRecordingSaver()
		w := worker.NewWriter(q, saver)
		ctx := context.Background()
		w.Start(ctx)

		var (
			seq       atomic.Uint64
			completed atomic.Uint64
			quit      = make(chan struct{})
			wg        sync.WaitGroup
		)
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-quit:
						return
					default:
					}
					n := seq.Add(1)
					w.Persist(ctx, snapshot(n))
					for {
						cur := completed.Load()
						if n <= cur || completed.CompareAndSwap(cur, n) {
							break
						}
					}
				}
			}()
		}

		time.Sleep(5 * time.Millisecond)
		before := completed.Load()
		err := w.Shutdown(ctx)
		close(quit)
		wg.Wait()

		convey.Convey("Then everything offered before the call is covered by the last save", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(w.LastSeq(), convey.ShouldBeGreaterThanOrEqualTo, before)
		})
	})

	convey.Convey("Given a started writer that is slow to finish", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		saver := newRecordingSaver()
		saver.gate = make(chan struct{})
		w := worker.NewWriter(q, saver)
		w.Start(context.Background())

		convey.Convey("Shutdown honours its deadline", func() {
			w.Persist(context.Background(), snapshot(1))
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			err := w.Shutdown(ctx)
			convey.So(err, convey.ShouldNotBeNil)
			close(saver.gate)
		})
	})
}
