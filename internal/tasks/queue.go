package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/lectern/internal/store"
)

// Queue lifecycle and submission errors.
var (
	// ErrNotRunning is returned by Submit before Start or after Shutdown.
	ErrNotRunning = errors.New("tasks: queue not running")

	// ErrQueueFull is returned by Submit when the bounded buffer is at
	// capacity. The task is dropped; persistence is best-effort.
	ErrQueueFull = errors.New("tasks: queue full")
)

const (
	defaultWorkers    = 2
	defaultCapacity   = 1024
	defaultDrainGrace = 10 * time.Second
)

// Config tunes a [Queue]. Zero values select the defaults.
type Config struct {
	// Workers is the fixed number of worker goroutines.
	Workers int

	// Capacity bounds the task buffer.
	Capacity int

	// DrainGrace is how long Shutdown waits for queued tasks to finish
	// before force-cancelling the workers.
	DrainGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.Capacity <= 0 {
		c.Capacity = defaultCapacity
	}
	if c.DrainGrace <= 0 {
		c.DrainGrace = defaultDrainGrace
	}
	return c
}

// Queue executes persistence tasks on a fixed worker pool.
// All exported methods are safe for concurrent use.
type Queue struct {
	utterances store.UtteranceStore
	cfg        Config

	mu      sync.Mutex
	running bool
	tasks   chan Task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue creates a stopped Queue writing through utterances.
// Call [Queue.Start] before submitting.
func NewQueue(utterances store.UtteranceStore, cfg Config) *Queue {
	return &Queue{utterances: utterances, cfg: cfg.withDefaults()}
}

// Start launches the worker pool. Starting an already running queue is a
// no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.tasks = make(chan Task, q.cfg.Capacity)
	q.running = true

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	slog.Info("persistence queue started", "workers", q.cfg.Workers, "capacity", q.cfg.Capacity)
}

// Submit enqueues a durable-write task. Returns [ErrNotRunning] when the
// worker pool is not running and [ErrQueueFull] when the buffer is at
// capacity; in both cases the task is dropped.
func (q *Queue) Submit(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return ErrNotRunning
	}

	// The send must stay under the mutex: Shutdown closes the channel under
	// the same lock, and a send racing that close would panic. The send is
	// non-blocking, so the lock is held only for an instant.
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Depth returns the number of queued, not yet dequeued tasks.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.tasks == nil {
		return 0
	}
	return len(q.tasks)
}

// Running reports whether the worker pool accepts submissions.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Shutdown stops accepting new submissions, waits up to the configured drain
// grace (or ctx, whichever ends first) for queued tasks to finish, then
// force-cancels the workers. A queue that does not drain in time logs a
// warning instead of hanging; no task executes after the workers return.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	close(q.tasks)
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(drained)
	}()

	timer := time.NewTimer(q.cfg.DrainGrace)
	defer timer.Stop()

	select {
	case <-drained:
		slog.Info("persistence queue drained")
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	slog.Warn("persistence queue did not drain within grace period, cancelling workers",
		"pending", len(q.tasks))
	q.cancel()
	<-drained
	return nil
}

// worker consumes tasks until the buffer is closed and drained or the worker
// context is cancelled.
func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("persistence worker cancelled", "worker", id)
			return
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			q.execute(ctx, task)
		}
	}
}

// execute runs one task. Errors are logged and the task is dropped.
func (q *Queue) execute(ctx context.Context, task Task) {
	var err error
	switch task.Kind {
	case KindAppendUtterance:
		err = q.utterances.Append(ctx, task.Event)
	case KindUpdateTranslation:
		u := task.Translation
		err = q.utterances.UpdateTranslation(ctx, u.LectureID, u.Seq, u.Stream, u.TextTarget)
	default:
		slog.Error("unknown persistence task kind", "kind", task.Kind)
		return
	}
	if err != nil {
		slog.Error("persistence task failed", "task", task.String(), "err", err)
	}
}
