// Package ledger assigns per-lecture monotonic sequence numbers. The ledger
// is the single point of serialization that keeps a lecture's subtitle
// stream gap-free and duplicate-free, including across process restarts:
// counters are always seeded from the durable store, never from a remembered
// in-memory value.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/lectern/internal/subtitle"
)

// ErrNotInitialized is returned by [Ledger.Next] when the lecture's counter
// has not been seeded via [Ledger.Initialize]. This is a lifecycle invariant
// violation, not an operational error.
var ErrNotInitialized = errors.New("ledger: lecture not initialized")

// SeqSource is the slice of the durable store the ledger needs: the highest
// persisted sequence number per lecture and stream.
type SeqSource interface {
	MaxSeq(ctx context.Context, lectureID int64, stream subtitle.Stream) (uint64, error)
}

// counter is one lecture's sequence counter. Its own mutex serializes Next
// calls for the lecture without blocking other lectures.
type counter struct {
	mu    sync.Mutex
	value uint64
}

// Ledger hands out monotonically increasing sequence numbers per lecture.
// All methods are safe for concurrent use.
type Ledger struct {
	source SeqSource

	mu       sync.Mutex
	counters map[int64]*counter
}

// New creates a Ledger seeding counters from source.
func New(source SeqSource) *Ledger {
	return &Ledger{
		source:   source,
		counters: make(map[int64]*counter),
	}
}

// Initialize seeds the lecture's counter from the maximum persisted sequence
// number of the realtime stream. It is idempotent: once a counter exists,
// further calls are no-ops. The store query runs outside the registry lock
// so initializing one lecture never blocks Next calls for others.
func (l *Ledger) Initialize(ctx context.Context, lectureID int64) error {
	l.mu.Lock()
	_, exists := l.counters[lectureID]
	l.mu.Unlock()
	if exists {
		return nil
	}

	max, err := l.source.MaxSeq(ctx, lectureID, subtitle.StreamRealtime)
	if err != nil {
		return fmt.Errorf("ledger: seed lecture %d: %w", lectureID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// A concurrent Initialize may have won the race; the existing counter
	// stays authoritative.
	if _, exists := l.counters[lectureID]; !exists {
		l.counters[lectureID] = &counter{value: max}
	}
	return nil
}

// Next atomically increments and returns the lecture's sequence counter.
// Returns [ErrNotInitialized] before Initialize has succeeded for the lecture.
func (l *Ledger) Next(lectureID int64) (uint64, error) {
	l.mu.Lock()
	c, ok := l.counters[lectureID]
	l.mu.Unlock()
	if !ok {
		return 0, ErrNotInitialized
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.value++
	return c.value, nil
}

// Drop removes the lecture's counter. Called when the lecture's room becomes
// empty; the next Initialize re-derives the value from durable storage, which
// is what makes dropping safe.
func (l *Ledger) Drop(lectureID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counters, lectureID)
}
