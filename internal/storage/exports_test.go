package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/lectern/internal/subtitle"
)

func TestExportsRoundtrip(t *testing.T) {
	t.Parallel()

	exports, err := NewExports(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewExports: %v", err)
	}

	name := ExportName(42, subtitle.StreamRealtime, FormatVTT)
	if name != "lecture-42-realtime.vtt" {
		t.Fatalf("export name = %q", name)
	}

	if err := exports.Write(name, []byte("WEBVTT\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := exports.Read(name)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "WEBVTT\n" {
		t.Errorf("read back %q", data)
	}

	if _, err := exports.Read("lecture-999-realtime.vtt"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing export error = %v, want os.ErrNotExist", err)
	}
}

func TestExportsRejectsUnsafeNames(t *testing.T) {
	t.Parallel()

	exports, err := NewExports(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewExports: %v", err)
	}

	for _, name := range []string{
		"",
		"../escape.vtt",
		"nested/file.vtt",
		"/etc/passwd",
		".hidden.vtt",
		"no-extension",
		"wrong.exe",
	} {
		if err := exports.Write(name, []byte("x")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Write(%q) error = %v, want ErrInvalidName", name, err)
		}
		if _, err := exports.Read(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Read(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestSweepRemovesExpiredExports(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exports, err := NewExports(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewExports: %v", err)
	}

	if err := exports.Write("old.vtt", []byte("old")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := exports.Write("fresh.vtt", []byte("fresh")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	stale := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "old.vtt"), stale, stale); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	removed, err := exports.Sweep(time.Now())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := exports.Read("old.vtt"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("old export still readable (err = %v)", err)
	}
	if _, err := exports.Read("fresh.vtt"); err != nil {
		t.Errorf("fresh export removed: %v", err)
	}
}

func TestSweepDisabledWithoutTTL(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exports, err := NewExports(dir, 0)
	if err != nil {
		t.Fatalf("NewExports: %v", err)
	}
	if err := exports.Write("keep.vtt", []byte("keep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	stale := time.Now().Add(-24 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "keep.vtt"), stale, stale); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	removed, err := exports.Sweep(time.Now())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestRenderFormats(t *testing.T) {
	t.Parallel()

	events := []subtitle.Event{
		{Seq: 3, StartMS: 0, EndMS: 500, TextSource: "hello", TextTarget: "你好"},
		{Seq: 4, StartMS: 500, EndMS: 3723004, TextSource: "untranslated"},
	}

	t.Run("vtt", func(t *testing.T) {
		data, err := Render(FormatVTT, events)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		out := string(data)
		if !strings.HasPrefix(out, "WEBVTT\n") {
			t.Errorf("missing WEBVTT header:\n%s", out)
		}
		for _, want := range []string{
			"00:00:00.000 --> 00:00:00.500",
			"hello\n你好",
			"00:00:00.500 --> 01:02:03.004",
			"untranslated",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("srt", func(t *testing.T) {
		data, err := Render(FormatSRT, events)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		out := string(data)
		// Cues renumber from 1 regardless of event seq.
		if !strings.HasPrefix(out, "1\n00:00:00,000 --> 00:00:00,500") {
			t.Errorf("unexpected first cue:\n%s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		data, err := Render(FormatJSON, events)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if !strings.Contains(string(data), `"text_target": "你好"`) {
			t.Errorf("output missing target text:\n%s", data)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if _, err := Render(Format("yaml"), events); err == nil {
			t.Error("expected an error for an unsupported format")
		}
	})
}
