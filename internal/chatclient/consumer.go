package chatclient

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/yoockh/auxilium/internal/models"
)

const defaultReadSize = 4096

// UpdateFunc receives a transcript snapshot after every decoded increment.
type UpdateFunc func(Transcript)

// Consumer folds a streamed reply body into the last transcript entry.
type Consumer struct {
	ReadSize int
}

// Consume reads body until EOF. The transcript must end with the assistant
// placeholder created at submit time; its content is replaced with the cumulative
// text after each increment. No entries are added or removed.
//
// A cleanly closed body and a truncated one look the same here: both end in EOF.
func (c Consumer) Consume(ctx context.Context, body io.Reader, t Transcript, onUpdate UpdateFunc) (Transcript, string, error) {
	if last, ok := t.Last(); !ok || last.Role != models.RoleAssistant {
		return t, "", ErrNoAssistantPlaceholder
	}

	size := c.ReadSize
	if size <= 0 {
		size = defaultReadSize
	}
	buf := make([]byte, size)
	dec := NewDecoder()

	var cumulative strings.Builder
	apply := func(text string) error {
		if text == "" {
			return nil
		}
		cumulative.WriteString(text)
		next, err := t.ReplaceLast(cumulative.String())
		if err != nil {
			return err
		}
		t = next
		if onUpdate != nil {
			onUpdate(t)
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return t, cumulative.String(), err
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			text, err := dec.Decode(buf[:n])
			if err != nil {
				return t, cumulative.String(), err
			}
			if err := apply(text); err != nil {
				return t, cumulative.String(), err
			}
		}

		if errors.Is(rerr, io.EOF) {
			tail, err := dec.Flush()
			if err != nil {
				return t, cumulative.String(), err
			}
			if err := apply(tail); err != nil {
				return t, cumulative.String(), err
			}
			return t, cumulative.String(), nil
		}
		if rerr != nil {
			return t, cumulative.String(), rerr
		}
	}
}
