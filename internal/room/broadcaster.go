package room

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultSendTimeout bounds a single listener delivery during a broadcast.
const DefaultSendTimeout = 5 * time.Second

// Broadcaster fans frames out to every handle in a lecture's room.
// Safe for concurrent use.
type Broadcaster struct {
	registry    *Registry
	sendTimeout time.Duration
}

// NewBroadcaster creates a Broadcaster delivering over registry. A
// sendTimeout of 0 means [DefaultSendTimeout].
func NewBroadcaster(registry *Registry, sendTimeout time.Duration) *Broadcaster {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Broadcaster{registry: registry, sendTimeout: sendTimeout}
}

// Broadcast delivers frame to every handle currently joined to the lecture,
// except exclude (which may be nil). Deliveries run concurrently, each
// bounded by the per-send timeout; a failed or timed-out send marks only
// that handle dead and never delays delivery to the rest of the room. Dead
// handles are removed from the registry after the fan-out completes.
//
// Delivery is best-effort: no retries, no acknowledgement tracking. It
// returns the number of successful deliveries.
func (b *Broadcaster) Broadcast(ctx context.Context, lectureID int64, frame any, exclude Handle) int {
	handles := b.registry.Snapshot(lectureID)
	if len(handles) == 0 {
		return 0
	}

	var (
		mu        sync.Mutex
		dead      []Handle
		delivered int
	)
	var g errgroup.Group
	for _, h := range handles {
		if h == exclude {
			continue
		}
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, b.sendTimeout)
			defer cancel()

			if err := h.Send(sendCtx, frame); err != nil {
				slog.Warn("broadcast send failed, removing listener",
					"lecture_id", lectureID, "conn_id", h.ID(), "err", err)
				mu.Lock()
				dead = append(dead, h)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			delivered++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, h := range dead {
		b.registry.Leave(lectureID, h)
	}
	return delivered
}
