package chatclient

import (
	"errors"

	"github.com/yoockh/auxilium/internal/models"
)

var ErrNoAssistantPlaceholder = errors.New("chatclient: last transcript entry is not an assistant entry")

type Entry struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// Transcript is an immutable ordered list of chat entries. Every operation returns
// a new Transcript and leaves the receiver untouched, so snapshots handed to a
// renderer never change underneath it.
type Transcript struct {
	entries []Entry
}

func NewTranscript(entries ...Entry) Transcript {
	return Transcript{entries: append([]Entry(nil), entries...)}
}

func (t Transcript) Len() int { return len(t.entries) }

// Entries returns a copy.
func (t Transcript) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

func (t Transcript) Last() (Entry, bool) {
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

func (t Transcript) Append(entries ...Entry) Transcript {
	out := make([]Entry, 0, len(t.entries)+len(entries))
	out = append(out, t.entries...)
	return Transcript{entries: append(out, entries...)}
}

// ReplaceLast sets the content of the final entry. It is the only edit allowed while
// a reply streams, and only an assistant entry may be edited.
func (t Transcript) ReplaceLast(content string) (Transcript, error) {
	last, ok := t.Last()
	if !ok || last.Role != models.RoleAssistant {
		return t, ErrNoAssistantPlaceholder
	}
	out := t.Entries()
	out[len(out)-1].Content = content
	return Transcript{entries: out}, nil
}
