// Package tasks implements the bounded asynchronous persistence queue that
// decouples subtitle delivery from durable storage. The queue is a
// write-behind buffer, not a durability guarantee: tasks execute at most
// once, failures are logged and dropped, and there is no retry or
// dead-letter store. The conflict-ignore semantics of the utterance log make
// it safe to re-attempt a write externally.
package tasks

import (
	"fmt"

	"github.com/MrWong99/lectern/internal/subtitle"
)

// Kind discriminates the closed set of persistence task variants. The worker
// loop dispatches on Kind via a fixed switch; adding a task type means adding
// a Kind constant, a payload field, and a switch arm.
type Kind string

const (
	// KindAppendUtterance appends a subtitle event to the utterance log.
	KindAppendUtterance Kind = "append_utterance"

	// KindUpdateTranslation replaces the target-language text of an already
	// persisted utterance.
	KindUpdateTranslation Kind = "update_translation"
)

// TranslationUpdate is the payload for [KindUpdateTranslation].
type TranslationUpdate struct {
	LectureID  int64
	Seq        uint64
	Stream     subtitle.Stream
	TextTarget string
}

// Task is one deferred durable-write request. Exactly the payload field
// matching Kind is meaningful.
type Task struct {
	Kind        Kind
	Event       subtitle.Event
	Translation TranslationUpdate
}

// AppendUtterance builds an append task for ev.
func AppendUtterance(ev subtitle.Event) Task {
	return Task{Kind: KindAppendUtterance, Event: ev}
}

// UpdateTranslation builds a translation-update task.
func UpdateTranslation(u TranslationUpdate) Task {
	return Task{Kind: KindUpdateTranslation, Translation: u}
}

func (t Task) String() string {
	switch t.Kind {
	case KindAppendUtterance:
		return fmt.Sprintf("append_utterance(lecture=%d seq=%d)", t.Event.LectureID, t.Event.Seq)
	case KindUpdateTranslation:
		return fmt.Sprintf("update_translation(lecture=%d seq=%d)", t.Translation.LectureID, t.Translation.Seq)
	}
	return string(t.Kind)
}
