package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/lectern/internal/store"
	"github.com/MrWong99/lectern/internal/store/postgres"
	"github.com/MrWong99/lectern/internal/subtitle"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if LECTERN_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("LECTERN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LECTERN_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema and a
// bare pool for seeding rows the storage contracts cannot create.
func newTestStore(t *testing.T) (*postgres.Store, *pgxpool.Pool) {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `DROP TABLE IF EXISTS utterances, lectures, users CASCADE`)
	if err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	st, err := postgres.New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(st.Close)
	return st, pool
}

// seedUser inserts a user row directly; account creation is not part of the
// storage contracts.
func seedUser(t *testing.T, pool *pgxpool.Pool, username string, disabled bool) int64 {
	t.Helper()
	q := `INSERT INTO users (username, password_hash, role) VALUES ($1, 'x', 'lecturer') RETURNING id`
	if disabled {
		q = `INSERT INTO users (username, password_hash, role, disabled_at) VALUES ($1, 'x', 'lecturer', now()) RETURNING id`
	}
	var id int64
	if err := pool.QueryRow(context.Background(), q, username).Scan(&id); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func seedLecture(t *testing.T, st *postgres.Store, creatorID int64, title string) store.Lecture {
	t.Helper()
	lec, err := st.Lectures().Create(context.Background(), title, creatorID)
	if err != nil {
		t.Fatalf("create lecture: %v", err)
	}
	return lec
}

func TestAppendConflictIgnore(t *testing.T) {
	st, pool := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, pool, "teacher", false)
	lec := seedLecture(t, st, userID, "Databases")
	utts := st.Utterances()

	ev := subtitle.Event{
		LectureID: lec.ID, Seq: 1, Stream: subtitle.StreamRealtime,
		StartMS: 0, EndMS: 500, TextSource: "original", TextTarget: "原文",
	}
	if err := utts.Append(ctx, ev); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// A second write for the same key must be a silent no-op.
	dup := ev
	dup.TextSource = "imposter"
	if err := utts.Append(ctx, dup); err != nil {
		t.Fatalf("duplicate Append: %v", err)
	}

	events, err := utts.List(ctx, lec.ID, subtitle.StreamRealtime, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 || events[0].TextSource != "original" {
		t.Errorf("events = %+v, want one event with the original text", events)
	}
}

func TestSeqAndOffsetQueries(t *testing.T) {
	st, pool := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, pool, "teacher", false)
	lec := seedLecture(t, st, userID, "Compilers")
	utts := st.Utterances()

	if max, err := utts.MaxSeq(ctx, lec.ID, subtitle.StreamRealtime); err != nil || max != 0 {
		t.Errorf("MaxSeq on empty log = %d, %v, want 0", max, err)
	}
	if end, err := utts.LastEndMS(ctx, lec.ID, subtitle.StreamRealtime); err != nil || end != 0 {
		t.Errorf("LastEndMS on empty log = %d, %v, want 0", end, err)
	}

	for seq := uint64(1); seq <= 3; seq++ {
		err := utts.Append(ctx, subtitle.Event{
			LectureID: lec.ID, Seq: seq, Stream: subtitle.StreamRealtime,
			StartMS: int64(seq-1) * 500, EndMS: int64(seq) * 500,
			TextSource: fmt.Sprintf("segment %d", seq),
		})
		if err != nil {
			t.Fatalf("Append seq %d: %v", seq, err)
		}
	}

	if max, err := utts.MaxSeq(ctx, lec.ID, subtitle.StreamRealtime); err != nil || max != 3 {
		t.Errorf("MaxSeq = %d, %v, want 3", max, err)
	}
	if end, err := utts.LastEndMS(ctx, lec.ID, subtitle.StreamRealtime); err != nil || end != 1500 {
		t.Errorf("LastEndMS = %d, %v, want 1500", end, err)
	}

	page, err := utts.List(ctx, lec.ID, subtitle.StreamRealtime, 1, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 1 || page[0].Seq != 2 {
		t.Errorf("page = %+v, want seq 2 only", page)
	}
}

func TestUpdateTranslation(t *testing.T) {
	st, pool := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, pool, "teacher", false)
	lec := seedLecture(t, st, userID, "Topology")
	utts := st.Utterances()

	err := utts.Append(ctx, subtitle.Event{
		LectureID: lec.ID, Seq: 1, Stream: subtitle.StreamRealtime,
		TextSource: "open sets",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := utts.UpdateTranslation(ctx, lec.ID, 1, subtitle.StreamRealtime, "开集"); err != nil {
		t.Fatalf("UpdateTranslation: %v", err)
	}
	events, err := utts.List(ctx, lec.ID, subtitle.StreamRealtime, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 || events[0].TextTarget != "开集" {
		t.Errorf("events = %+v, want backfilled translation", events)
	}

	// Updating a missing row is a no-op.
	if err := utts.UpdateTranslation(ctx, lec.ID, 99, subtitle.StreamRealtime, "x"); err != nil {
		t.Errorf("UpdateTranslation on missing row: %v", err)
	}
}

func TestLectureLifecycle(t *testing.T) {
	st, pool := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, pool, "teacher", false)
	lectures := st.Lectures()

	created, err := lectures.Create(ctx, "Numerical Methods", userID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != store.LectureInit || created.EndedAt != nil {
		t.Errorf("created = %+v", created)
	}

	if err := lectures.UpdateStatus(ctx, created.ID, store.LectureRecording); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := lectures.End(ctx, created.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	ended, err := lectures.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ended.Status != store.LectureSummarizing || ended.EndedAt == nil {
		t.Errorf("ended = %+v", ended)
	}

	if _, err := lectures.Get(ctx, 99999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get unknown = %v, want ErrNotFound", err)
	}
	if err := lectures.End(ctx, 99999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("End unknown = %v, want ErrNotFound", err)
	}

	// Soft-deleted lectures vanish from the contract surface.
	if _, err := pool.Exec(ctx, `UPDATE lectures SET deleted_at = now() WHERE id = $1`, created.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := lectures.Get(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get soft-deleted = %v, want ErrNotFound", err)
	}
	listing, err := lectures.List(ctx, userID, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing) != 0 {
		t.Errorf("listing contains soft-deleted lectures: %+v", listing)
	}
}

func TestUserTokens(t *testing.T) {
	st, pool := newTestStore(t)
	ctx := context.Background()
	users := st.Users()

	userID := seedUser(t, pool, "teacher", false)
	disabledID := seedUser(t, pool, "gone", true)

	u, hash, disabled, err := users.Credentials(ctx, "teacher")
	if err != nil || u.ID != userID || hash != "x" || disabled {
		t.Fatalf("Credentials = %+v, %q, %v, %v", u, hash, disabled, err)
	}
	if _, _, _, err := users.Credentials(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Credentials unknown = %v, want ErrNotFound", err)
	}

	if err := users.SetToken(ctx, userID, "tok-1"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	got, err := users.UserByToken(ctx, "tok-1")
	if err != nil || got.ID != userID {
		t.Fatalf("UserByToken = %+v, %v", got, err)
	}

	// Disabled accounts never resolve, even with a fresh token.
	if err := users.SetToken(ctx, disabledID, "tok-2"); err != nil {
		t.Fatalf("SetToken disabled: %v", err)
	}
	if _, err := users.UserByToken(ctx, "tok-2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UserByToken for disabled account = %v, want ErrNotFound", err)
	}

	if err := users.ClearToken(ctx, "tok-1"); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if _, err := users.UserByToken(ctx, "tok-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UserByToken after clear = %v, want ErrNotFound", err)
	}
	if err := users.ClearToken(ctx, "tok-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("repeated ClearToken = %v, want ErrNotFound", err)
	}
}
