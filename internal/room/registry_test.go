package room_test

import (
	"context"
	"sync"
	"testing"

	"github.com/MrWong99/lectern/internal/room"
)

// fakeHandle is a controllable room.Handle for tests.
type fakeHandle struct {
	id string

	mu     sync.Mutex
	frames []any

	// sendErr, when non-nil, is returned by every Send.
	sendErr error

	// block, when true, makes Send wait for ctx cancellation and return
	// ctx.Err(), simulating a hung listener.
	block bool
}

func (f *fakeHandle) ID() string { return f.id }

func (f *fakeHandle) Send(ctx context.Context, frame any) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeHandle) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestRegistry_JoinLeave(t *testing.T) {
	t.Parallel()

	r := room.NewRegistry()
	a := &fakeHandle{id: "a"}
	b := &fakeHandle{id: "b"}

	r.Join(1, a)
	r.Join(1, b)
	r.Join(1, b) // duplicate join is a no-op
	if got := r.Size(1); got != 2 {
		t.Fatalf("Size = %d, want 2", got)
	}

	r.Leave(1, a)
	if got := r.Size(1); got != 1 {
		t.Fatalf("Size after leave = %d, want 1", got)
	}

	// Leaving an unjoined handle is a no-op.
	r.Leave(1, a)
	r.Leave(99, b)
	if got := r.Size(1); got != 1 {
		t.Fatalf("Size after idempotent leaves = %d, want 1", got)
	}
}

func TestRegistry_OnEmptyFiresOnce(t *testing.T) {
	t.Parallel()

	r := room.NewRegistry()
	var (
		mu    sync.Mutex
		fired []int64
	)
	r.OnEmpty(func(lectureID int64) {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, lectureID)
	})

	a := &fakeHandle{id: "a"}
	b := &fakeHandle{id: "b"}
	r.Join(7, a)
	r.Join(7, b)

	r.Leave(7, a)
	mu.Lock()
	if len(fired) != 0 {
		t.Fatalf("OnEmpty fired with %d handle(s) still joined", r.Size(7))
	}
	mu.Unlock()

	r.Leave(7, b)
	r.Leave(7, b) // repeat leave must not fire again

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0] != 7 {
		t.Fatalf("OnEmpty calls = %v, want [7]", fired)
	}
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	r := room.NewRegistry()
	a := &fakeHandle{id: "a"}
	r.Join(3, a)

	snap := r.Snapshot(3)
	if len(snap) != 1 {
		t.Fatalf("Snapshot length = %d, want 1", len(snap))
	}

	// Mutating the registry after the snapshot must not change the snapshot.
	r.Leave(3, a)
	if len(snap) != 1 || snap[0].ID() != "a" {
		t.Fatal("snapshot changed after registry mutation")
	}
	if got := r.Snapshot(3); len(got) != 0 {
		t.Fatalf("Snapshot after leave = %d handles, want 0", len(got))
	}
}

func TestRegistry_HandleInOneRoomPerLecture(t *testing.T) {
	t.Parallel()

	r := room.NewRegistry()
	a := &fakeHandle{id: "a"}
	r.Join(1, a)
	r.Join(2, a)

	r.Leave(1, a)
	if got := r.Size(2); got != 1 {
		t.Fatalf("leaving lecture 1 affected lecture 2: size = %d, want 1", got)
	}
}
