package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrWong99/lectern/internal/config"
	"github.com/MrWong99/lectern/internal/store/memstore"
	"github.com/MrWong99/lectern/pkg/provider/asr"
	asrmock "github.com/MrWong99/lectern/pkg/provider/asr/mock"
	trmock "github.com/MrWong99/lectern/pkg/provider/translate/mock"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:  config.ServerConfig{ListenAddr: "127.0.0.1:0", LogLevel: config.LogInfo},
		Storage: config.StorageConfig{Dir: t.TempDir()},
	}
}

func newTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	stores := &Stores{
		Utterances: memstore.NewUtterances(),
		Lectures:   memstore.NewLectures(),
		Users:      memstore.NewUsers(),
	}
	opts = append([]Option{WithStores(stores)}, opts...)
	a, err := New(context.Background(), testConfig(t), &Providers{
		ASR:       &asrmock.Provider{Results: []asr.Result{{Text: "hi"}}},
		Translate: &trmock.Provider{},
	}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewRequiresASRProvider(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), testConfig(t), &Providers{})
	if err == nil {
		t.Fatal("expected an error without an ASR provider")
	}
}

func TestAssembledRoutes(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("api requires auth", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/lectures")
		if err != nil {
			t.Fatalf("GET /api/lectures: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestLoginThroughAssembledStack(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("classroom1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	users := memstore.NewUsers()
	users.Add("teacher", string(hash), "user", false)

	a := newTestApp(t, WithStores(&Stores{
		Utterances: memstore.NewUtterances(),
		Lectures:   memstore.NewLectures(),
		Users:      users,
	}))
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	body, _ := json.Marshal(map[string]string{"username": "teacher", "password": "classroom1"})
	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(out.Token))
	}
}

func TestApplyConfigLogLevel(t *testing.T) {
	t.Parallel()

	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	a := newTestApp(t, WithLogLevel(level))

	old := testConfig(t)
	updated := testConfig(t)
	updated.Server.LogLevel = config.LogDebug
	a.ApplyConfig(old, updated)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}

	// No change leaves the level alone.
	level.Set(slog.LevelWarn)
	a.ApplyConfig(updated, updated)
	if level.Level() != slog.LevelWarn {
		t.Errorf("level = %v, want warn", level.Level())
	}
}
