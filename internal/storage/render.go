package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/lectern/internal/subtitle"
)

// Format selects an export rendering.
type Format string

const (
	FormatVTT  Format = "vtt"
	FormatSRT  Format = "srt"
	FormatJSON Format = "json"
)

// IsValid reports whether f is a supported export format.
func (f Format) IsValid() bool {
	switch f {
	case FormatVTT, FormatSRT, FormatJSON:
		return true
	}
	return false
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string { return "." + string(f) }

// ExportName returns the canonical file name for a lecture export.
func ExportName(lectureID int64, stream subtitle.Stream, f Format) string {
	return fmt.Sprintf("lecture-%d-%s%s", lectureID, stream, f.Ext())
}

// Render serializes events in the given format. Cues with both a source and
// a target text carry the source line first.
func Render(f Format, events []subtitle.Event) ([]byte, error) {
	switch f {
	case FormatVTT:
		return renderVTT(events), nil
	case FormatSRT:
		return renderSRT(events), nil
	case FormatJSON:
		return renderJSON(events)
	default:
		return nil, fmt.Errorf("storage: unsupported export format %q", f)
	}
}

func renderVTT(events []subtitle.Event) []byte {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, ev := range events {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			ev.Seq,
			vttTimestamp(ev.StartMS),
			vttTimestamp(ev.EndMS),
			cueText(ev),
		)
	}
	return []byte(b.String())
}

func renderSRT(events []subtitle.Event) []byte {
	var b strings.Builder
	// SRT numbers cues from 1 consecutively, independent of event seq.
	for i, ev := range events {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			srtTimestamp(ev.StartMS),
			srtTimestamp(ev.EndMS),
			cueText(ev),
		)
	}
	return []byte(b.String())
}

func renderJSON(events []subtitle.Event) ([]byte, error) {
	type cue struct {
		Seq        uint64 `json:"seq"`
		StartMS    int64  `json:"start_ms"`
		EndMS      int64  `json:"end_ms"`
		TextSource string `json:"text_source"`
		TextTarget string `json:"text_target"`
	}
	cues := make([]cue, 0, len(events))
	for _, ev := range events {
		cues = append(cues, cue{
			Seq:        ev.Seq,
			StartMS:    ev.StartMS,
			EndMS:      ev.EndMS,
			TextSource: ev.TextSource,
			TextTarget: ev.TextTarget,
		})
	}
	data, err := json.MarshalIndent(cues, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("storage: encode export: %w", err)
	}
	return data, nil
}

func cueText(ev subtitle.Event) string {
	if ev.TextTarget == "" {
		return ev.TextSource
	}
	return ev.TextSource + "\n" + ev.TextTarget
}

// vttTimestamp formats a millisecond offset as "HH:MM:SS.mmm".
func vttTimestamp(ms int64) string {
	return timestamp(ms, '.')
}

// srtTimestamp formats a millisecond offset as "HH:MM:SS,mmm".
func srtTimestamp(ms int64) string {
	return timestamp(ms, ',')
}

func timestamp(ms int64, sep byte) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	m := ms % 3600000 / 60000
	s := ms % 60000 / 1000
	frac := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, frac)
}
