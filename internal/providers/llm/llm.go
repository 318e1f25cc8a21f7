package llm

import (
	"context"
	"errors"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is one exchange: fixed instructions, prior turns and the new user message.
type Request struct {
	System  string
	History []Message
	Message string
}

// Stream yields text fragments in generation order.
//
// Recv returns io.EOF once the provider signals the end of the stream. Any other
// error is terminal. Fragments may be empty and may split words or runes' text
// arbitrarily; callers must not attach meaning to boundaries.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type Provider interface {
	Name() string
	Model() string
	// Stream starts one generation. Errors that happen before the first fragment
	// (auth, network, bad request) are returned here.
	Stream(ctx context.Context, req Request) (Stream, error)
	Close() error
}

var ErrStreamClosed = errors.New("llm: stream closed")
