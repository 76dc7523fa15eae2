package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// probe sends a GET through a mux with the handler registered and decodes
// the JSON body.
func probe(t *testing.T, h *Handler, path string) (int, report) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))

	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s body: %v", path, err)
	}
	return rec.Code, body
}

func okCheck(name string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return nil }}
}

func failCheck(name, msg string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return errors.New(msg) }}
}

func TestHealthz(t *testing.T) {
	// Liveness ignores checker state entirely.
	code, body := probe(t, New(failCheck("database", "down")), "/healthz")
	if code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", code)
	}
	if body.Status != "ok" {
		t.Errorf("healthz body status = %q, want ok", body.Status)
	}
}

func TestHealthz_ContentType(t *testing.T) {
	mux := http.NewServeMux()
	New().Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyz_AllPass(t *testing.T) {
	code, body := probe(t, New(okCheck("database"), okCheck("queue")), "/readyz")
	if code != http.StatusOK {
		t.Fatalf("readyz status = %d, want 200", code)
	}
	if body.Status != "ok" {
		t.Errorf("body status = %q, want ok", body.Status)
	}
	for _, name := range []string{"database", "queue"} {
		if body.Checks[name] != "ok" {
			t.Errorf("check %q = %q, want ok", name, body.Checks[name])
		}
	}
}

func TestReadyz_OneFailureMakesUnready(t *testing.T) {
	code, body := probe(t, New(
		failCheck("database", "connection refused"),
		okCheck("queue"),
	), "/readyz")

	if code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", code)
	}
	if body.Status != "fail" {
		t.Errorf("body status = %q, want fail", body.Status)
	}
	if body.Checks["database"] != "fail: connection refused" {
		t.Errorf("database check = %q", body.Checks["database"])
	}
	if body.Checks["queue"] != "ok" {
		t.Errorf("queue check = %q, want ok despite sibling failure", body.Checks["queue"])
	}
}

func TestReadyz_NoCheckers(t *testing.T) {
	code, body := probe(t, New(), "/readyz")
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("empty readiness = %d/%q, want 200/ok", code, body.Status)
	}
}

func TestPostgresChecker(t *testing.T) {
	code, body := probe(t, New(
		Postgres(func(context.Context) error { return errors.New("dial tcp: refused") }),
	), "/readyz")

	if code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", code)
	}
	if body.Checks["database"] != "fail: dial tcp: refused" {
		t.Errorf("database check = %q", body.Checks["database"])
	}
}

func TestQueueChecker(t *testing.T) {
	running := true
	h := New(Queue(func() bool { return running }))

	if code, _ := probe(t, h, "/readyz"); code != http.StatusOK {
		t.Fatalf("readyz status = %d, want 200 while queue runs", code)
	}

	running = false
	code, body := probe(t, h, "/readyz")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503 once queue stops", code)
	}
	if body.Checks["queue"] != "fail: persistence queue is not running" {
		t.Errorf("queue check = %q", body.Checks["queue"])
	}
}

func TestReadyz_ChecksRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	h := New(
		Checker{Name: "a", Check: func(ctx context.Context) error {
			close(release)
			return nil
		}},
		Checker{Name: "b", Check: func(ctx context.Context) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
	)

	code, _ := probe(t, h, "/readyz")
	if code != http.StatusOK {
		t.Fatalf("readyz status = %d, want 200 with interdependent checks", code)
	}
}
