package room

import (
	"log/slog"
	"sync"
)

// Registry is the per-lecture set of live connection handles.
// All exported methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	rooms   map[int64]map[Handle]struct{}
	onEmpty func(lectureID int64)
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[int64]map[Handle]struct{})}
}

// OnEmpty registers fn to be called whenever the last handle leaves a
// lecture's room. Used to drop the lecture's sequence counter. The hook runs
// outside the registry lock. Must be set before the registry is shared.
func (r *Registry) OnEmpty(fn func(lectureID int64)) {
	r.onEmpty = fn
}

// Join adds h to the lecture's room, creating the room if needed.
// Joining an already joined handle is a no-op.
func (r *Registry) Join(lectureID int64, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handles, ok := r.rooms[lectureID]
	if !ok {
		handles = make(map[Handle]struct{})
		r.rooms[lectureID] = handles
	}
	handles[h] = struct{}{}
	slog.Debug("room join", "lecture_id", lectureID, "conn_id", h.ID(), "size", len(handles))
}

// Leave removes h from the lecture's room. Leaving an unjoined handle is a
// no-op. When the last handle leaves, the room is deleted and the OnEmpty
// hook fires.
func (r *Registry) Leave(lectureID int64, h Handle) {
	r.mu.Lock()
	handles, ok := r.rooms[lectureID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, joined := handles[h]; !joined {
		r.mu.Unlock()
		return
	}
	delete(handles, h)
	empty := len(handles) == 0
	if empty {
		delete(r.rooms, lectureID)
	}
	r.mu.Unlock()

	slog.Debug("room leave", "lecture_id", lectureID, "conn_id", h.ID(), "empty", empty)
	if empty && r.onEmpty != nil {
		r.onEmpty(lectureID)
	}
}

// Snapshot returns a copy of the lecture's current handle set, safe to
// iterate without holding any lock. A join racing a concurrent broadcast may
// or may not be included; delivery is best-effort.
func (r *Registry) Snapshot(lectureID int64) []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	handles := r.rooms[lectureID]
	out := make([]Handle, 0, len(handles))
	for h := range handles {
		out = append(out, h)
	}
	return out
}

// Size returns the number of handles joined to the lecture's room.
func (r *Registry) Size(lectureID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[lectureID])
}
