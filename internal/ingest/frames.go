package ingest

import "github.com/MrWong99/lectern/internal/subtitle"

// Outbound wire frames. Every message pushed over a lecture WebSocket is one
// of these, discriminated by the "type" field.

// InfoFrame is the welcome message sent right after a successful join.
type InfoFrame struct {
	Type    string `json:"type"` // "info"
	Message string `json:"message"`
	User    string `json:"user,omitempty"`
}

// SubtitleFrame carries one sequenced bilingual subtitle event.
type SubtitleFrame struct {
	Type       string `json:"type"` // "subtitle"
	LectureID  int64  `json:"lecture_id"`
	Seq        uint64 `json:"seq"`
	StartMS    int64  `json:"start_ms"`
	EndMS      int64  `json:"end_ms"`
	TextSource string `json:"text_source"`
	TextTarget string `json:"text_target"`
}

// ErrorFrame reports a recoverable pipeline failure to the originating
// connection. It is never broadcast.
type ErrorFrame struct {
	Type    string `json:"type"` // "error"
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// PingFrame is the liveness probe pushed by the heartbeat supervisor.
type PingFrame struct {
	Type string `json:"type"` // "ping"
}

// NewInfoFrame builds the join welcome frame.
func NewInfoFrame(message, user string) InfoFrame {
	return InfoFrame{Type: "info", Message: message, User: user}
}

// NewSubtitleFrame converts a subtitle event into its wire form.
func NewSubtitleFrame(ev subtitle.Event) SubtitleFrame {
	return SubtitleFrame{
		Type:       "subtitle",
		LectureID:  ev.LectureID,
		Seq:        ev.Seq,
		StartMS:    ev.StartMS,
		EndMS:      ev.EndMS,
		TextSource: ev.TextSource,
		TextTarget: ev.TextTarget,
	}
}

// NewErrorFrame builds an error frame.
func NewErrorFrame(code int, message string) ErrorFrame {
	return ErrorFrame{Type: "error", Code: code, Message: message}
}

// NewPingFrame builds a ping frame.
func NewPingFrame() PingFrame {
	return PingFrame{Type: "ping"}
}
