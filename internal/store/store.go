// Package store defines the durable storage contracts for Lectern: the
// append-only utterance log, lecture records, and user accounts.
//
// Implementations live in subpackages: [github.com/MrWong99/lectern/internal/store/postgres]
// is the production PostgreSQL store, [github.com/MrWong99/lectern/internal/store/memstore]
// is an in-memory store for tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/lectern/internal/subtitle"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// UtteranceStore is the append-only subtitle event log.
//
// Append has conflict-ignore semantics: a second write for the same
// (lecture, seq, stream) key is a silent no-op. This makes at-most-once
// persistence attempts safe to repeat externally without corrupting history.
type UtteranceStore interface {
	// Append writes ev to the log. Duplicate keys are ignored, not errors.
	Append(ctx context.Context, ev subtitle.Event) error

	// MaxSeq returns the highest sequence number persisted for the lecture
	// and stream, or 0 when no events exist. The ledger seeds from this.
	MaxSeq(ctx context.Context, lectureID int64, stream subtitle.Stream) (uint64, error)

	// List returns events for the lecture and stream ordered by sequence
	// ascending, paginated by limit and offset.
	List(ctx context.Context, lectureID int64, stream subtitle.Stream, limit, offset int) ([]subtitle.Event, error)

	// UpdateTranslation replaces the target-language text of an already
	// persisted event. Used by deferred translation corrections; updating a
	// missing row is a no-op.
	UpdateTranslation(ctx context.Context, lectureID int64, seq uint64, stream subtitle.Stream, textTarget string) error

	// LastEndMS returns the end offset of the latest persisted event for
	// the lecture and stream, or 0 when no events exist. A reconnecting
	// ingest connection resumes its clock from here.
	LastEndMS(ctx context.Context, lectureID int64, stream subtitle.Stream) (int64, error)
}

// LectureStatus is the lifecycle state of a lecture record.
type LectureStatus string

const (
	LectureInit        LectureStatus = "init"
	LectureRecording   LectureStatus = "recording"
	LectureSummarizing LectureStatus = "summarizing"
	LectureDone        LectureStatus = "done"
)

// IsValid reports whether s is a recognised lecture status.
func (s LectureStatus) IsValid() bool {
	switch s {
	case LectureInit, LectureRecording, LectureSummarizing, LectureDone:
		return true
	}
	return false
}

// Lecture is one lecture record. The realtime core only references the ID;
// the rest backs the management API.
type Lecture struct {
	ID        int64
	Title     string
	CreatorID int64
	Status    LectureStatus
	CreatedAt time.Time
	EndedAt   *time.Time
}

// LectureStore manages lecture records. Soft-deleted lectures are invisible
// through this interface.
type LectureStore interface {
	// Create inserts a new lecture in the "init" state.
	Create(ctx context.Context, title string, creatorID int64) (Lecture, error)

	// Get returns the lecture by ID, or [ErrNotFound].
	Get(ctx context.Context, id int64) (Lecture, error)

	// List returns lectures created by creatorID, newest first.
	List(ctx context.Context, creatorID int64, limit, offset int) ([]Lecture, error)

	// UpdateStatus sets the lifecycle status. Returns [ErrNotFound] when the
	// lecture does not exist.
	UpdateStatus(ctx context.Context, id int64, status LectureStatus) error

	// End marks the lecture finished: sets ended_at and moves the status to
	// "summarizing". Returns [ErrNotFound] when the lecture does not exist.
	End(ctx context.Context, id int64) error
}

// User is an authenticated account. The password hash never leaves the
// store except through [UserStore.Credentials].
type User struct {
	ID       int64
	Username string
	Role     string
}

// UserStore manages user accounts and their login tokens.
type UserStore interface {
	// Credentials returns the user, its bcrypt password hash, and whether
	// the account is disabled. Returns [ErrNotFound] for unknown usernames;
	// callers are expected to keep verification constant-time regardless.
	Credentials(ctx context.Context, username string) (User, string, bool, error)

	// SetToken stores token as the user's current login token, replacing any
	// previous one.
	SetToken(ctx context.Context, userID int64, token string) error

	// UserByToken resolves a login token to its user. Disabled accounts and
	// unknown tokens return [ErrNotFound].
	UserByToken(ctx context.Context, token string) (User, error)

	// ClearToken invalidates the token. Returns [ErrNotFound] when no user
	// holds it.
	ClearToken(ctx context.Context, token string) error
}
