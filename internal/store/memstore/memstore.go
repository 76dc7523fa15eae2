// Package memstore provides in-memory implementations of the Lectern store
// contracts. Intended for tests and local development without PostgreSQL.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrWong99/lectern/internal/store"
	"github.com/MrWong99/lectern/internal/subtitle"
)

// Compile-time interface checks.
var (
	_ store.UtteranceStore = (*Utterances)(nil)
	_ store.LectureStore   = (*Lectures)(nil)
	_ store.UserStore      = (*Users)(nil)
)

type utteranceKey struct {
	lectureID int64
	seq       uint64
	stream    subtitle.Stream
}

// Utterances is an in-memory [store.UtteranceStore]. Safe for concurrent use.
type Utterances struct {
	mu     sync.Mutex
	events map[utteranceKey]subtitle.Event

	// AppendErr, when non-nil, is returned by Append. Lets tests exercise
	// persistence failure paths.
	AppendErr error
}

// NewUtterances creates an empty in-memory utterance log.
func NewUtterances() *Utterances {
	return &Utterances{events: make(map[utteranceKey]subtitle.Event)}
}

// Append implements [store.UtteranceStore] with conflict-ignore semantics.
func (s *Utterances) Append(_ context.Context, ev subtitle.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	key := utteranceKey{ev.LectureID, ev.Seq, ev.Stream}
	if _, exists := s.events[key]; exists {
		return nil
	}
	s.events[key] = ev
	return nil
}

// MaxSeq implements [store.UtteranceStore].
func (s *Utterances) MaxSeq(_ context.Context, lectureID int64, stream subtitle.Stream) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max uint64
	for key := range s.events {
		if key.lectureID == lectureID && key.stream == stream && key.seq > max {
			max = key.seq
		}
	}
	return max, nil
}

// List implements [store.UtteranceStore].
func (s *Utterances) List(_ context.Context, lectureID int64, stream subtitle.Stream, limit, offset int) ([]subtitle.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]subtitle.Event, 0)
	for key, ev := range s.events {
		if key.lectureID == lectureID && key.stream == stream {
			all = append(all, ev)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })
	if offset >= len(all) {
		return []subtitle.Event{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// UpdateTranslation implements [store.UtteranceStore].
func (s *Utterances) UpdateTranslation(_ context.Context, lectureID int64, seq uint64, stream subtitle.Stream, textTarget string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := utteranceKey{lectureID, seq, stream}
	if ev, ok := s.events[key]; ok {
		ev.TextTarget = textTarget
		s.events[key] = ev
	}
	return nil
}

// LastEndMS implements [store.UtteranceStore].
func (s *Utterances) LastEndMS(_ context.Context, lectureID int64, stream subtitle.Stream) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		maxSeq uint64
		endMS  int64
	)
	for key, ev := range s.events {
		if key.lectureID == lectureID && key.stream == stream && key.seq >= maxSeq {
			maxSeq = key.seq
			endMS = ev.EndMS
		}
	}
	return endMS, nil
}

// Len returns the number of stored events. Test helper.
func (s *Utterances) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Lectures is an in-memory [store.LectureStore]. Safe for concurrent use.
type Lectures struct {
	mu       sync.Mutex
	nextID   int64
	lectures map[int64]store.Lecture
}

// NewLectures creates an empty in-memory lecture store.
func NewLectures() *Lectures {
	return &Lectures{lectures: make(map[int64]store.Lecture)}
}

// Create implements [store.LectureStore].
func (s *Lectures) Create(_ context.Context, title string, creatorID int64) (store.Lecture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	lec := store.Lecture{
		ID:        s.nextID,
		Title:     title,
		CreatorID: creatorID,
		Status:    store.LectureInit,
		CreatedAt: time.Now().UTC(),
	}
	s.lectures[lec.ID] = lec
	return lec, nil
}

// Get implements [store.LectureStore].
func (s *Lectures) Get(_ context.Context, id int64) (store.Lecture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lec, ok := s.lectures[id]
	if !ok {
		return store.Lecture{}, store.ErrNotFound
	}
	return lec, nil
}

// List implements [store.LectureStore].
func (s *Lectures) List(_ context.Context, creatorID int64, limit, offset int) ([]store.Lecture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]store.Lecture, 0)
	for _, lec := range s.lectures {
		if lec.CreatorID == creatorID {
			all = append(all, lec)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []store.Lecture{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// UpdateStatus implements [store.LectureStore].
func (s *Lectures) UpdateStatus(_ context.Context, id int64, status store.LectureStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lec, ok := s.lectures[id]
	if !ok {
		return store.ErrNotFound
	}
	lec.Status = status
	s.lectures[id] = lec
	return nil
}

// End implements [store.LectureStore].
func (s *Lectures) End(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lec, ok := s.lectures[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	lec.Status = store.LectureSummarizing
	lec.EndedAt = &now
	s.lectures[id] = lec
	return nil
}

type userEntry struct {
	user     store.User
	hash     string
	disabled bool
	token    string
}

// Users is an in-memory [store.UserStore]. Safe for concurrent use.
type Users struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*userEntry
}

// NewUsers creates an empty in-memory user store.
func NewUsers() *Users {
	return &Users{users: make(map[int64]*userEntry)}
}

// Add inserts a user with the given bcrypt hash and returns its ID. Test helper.
func (s *Users) Add(username, passwordHash, role string, disabled bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.users[s.nextID] = &userEntry{
		user:     store.User{ID: s.nextID, Username: username, Role: role},
		hash:     passwordHash,
		disabled: disabled,
	}
	return s.nextID
}

// Credentials implements [store.UserStore].
func (s *Users) Credentials(_ context.Context, username string) (store.User, string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.users {
		if e.user.Username == username {
			return e.user, e.hash, e.disabled, nil
		}
	}
	return store.User{}, "", false, store.ErrNotFound
}

// SetToken implements [store.UserStore].
func (s *Users) SetToken(_ context.Context, userID int64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	e.token = token
	return nil
}

// UserByToken implements [store.UserStore].
func (s *Users) UserByToken(_ context.Context, token string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		return store.User{}, store.ErrNotFound
	}
	for _, e := range s.users {
		if e.token == token && !e.disabled {
			return e.user, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

// ClearToken implements [store.UserStore].
func (s *Users) ClearToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.users {
		if e.token == token && token != "" {
			e.token = ""
			return nil
		}
	}
	return store.ErrNotFound
}
