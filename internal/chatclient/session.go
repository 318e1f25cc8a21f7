package chatclient

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/auxilium/internal/models"
)

var (
	ErrBusy           = errors.New("chatclient: a message is already being sent")
	ErrEmptyMessage   = errors.New("chatclient: message is empty")
	ErrNoConversation = errors.New("chatclient: no conversation selected")
)

type State int

const (
	StateIdle State = iota
	StateCreating
	StateActive
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCreating:
		return "creating"
	case StateActive:
		return "active"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Exchange is one completed user/assistant pair ready to be persisted.
type Exchange struct {
	ConversationID string
	UserID         string
	UserText       string
	AssistantText  string
	Provider       string
	Model          string
}

type Store interface {
	CreateConversation(ctx context.Context, userID, title string) (models.ConversationSummary, error)
	ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	AppendExchange(ctx context.Context, ex Exchange) error
	ListMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error)
}

type RelayRequest struct {
	History []Entry
	Message string
}

type RelayResponse struct {
	Body     io.ReadCloser
	Provider string
	Model    string
}

type Relay interface {
	Open(ctx context.Context, req RelayRequest) (*RelayResponse, error)
}

// Turn reports one finished submission. PersistErr is set when the reply streamed
// fine but could not be stored; the session keeps going either way.
type Turn struct {
	ConversationID string
	UserText       string
	Reply          string
	PersistErr     error
}

type SessionConfig struct {
	UserID   string
	Store    Store
	Relay    Relay
	Logger   *logrus.Logger
	Greeting string
	OnUpdate UpdateFunc
	Consumer Consumer
}

// Session drives one chat window: it creates the conversation lazily, streams
// replies into the transcript and records each completed exchange.
type Session struct {
	userID   string
	store    Store
	relay    Relay
	consumer Consumer
	onUpdate UpdateFunc
	log      *logrus.Entry

	mu             sync.Mutex
	state          State
	conversationID string
	transcript     Transcript
}

func NewSession(cfg SessionConfig) *Session {
	l := cfg.Logger
	if l == nil {
		l = logrus.New()
	}
	var t Transcript
	if cfg.Greeting != "" {
		t = NewTranscript(Entry{Role: models.RoleAssistant, Content: cfg.Greeting})
	}
	return &Session{
		userID:     cfg.UserID,
		store:      cfg.Store,
		relay:      cfg.Relay,
		consumer:   cfg.Consumer,
		onUpdate:   cfg.OnUpdate,
		log:        l.WithField("user_id", cfg.UserID),
		transcript: t,
	}
}

type Snapshot struct {
	State          State
	ConversationID string
	Transcript     Transcript
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, ConversationID: s.conversationID, Transcript: s.transcript}
}

// Submit sends text and blocks until the reply has been streamed and the exchange
// handed to the store.
func (s *Session) Submit(ctx context.Context, text string) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}

	convID, err := s.ensureConversation(ctx, text)
	if err != nil {
		return Turn{}, err
	}
	turn := Turn{ConversationID: convID, UserText: text}
	log := s.log.WithField("conversation_id", convID)

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return turn, ErrBusy
	}
	history := relayHistory(s.transcript)
	s.transcript = s.transcript.Append(
		Entry{Role: models.RoleUser, Content: text},
		Entry{Role: models.RoleAssistant},
	)
	s.state = StateStreaming
	started := s.transcript
	s.mu.Unlock()
	defer s.setState(StateActive)
	s.notify(started)

	resp, err := s.relay.Open(ctx, RelayRequest{History: history, Message: text})
	if err != nil {
		log.WithError(err).Error("relay request failed")
		return turn, err
	}
	defer resp.Body.Close()

	_, reply, err := s.consumer.Consume(ctx, resp.Body, started, func(t Transcript) {
		s.mu.Lock()
		s.transcript = t
		s.mu.Unlock()
		s.notify(t)
	})
	turn.Reply = reply
	if err != nil {
		log.WithError(err).Error("reading reply stream failed")
		return turn, err
	}

	err = s.store.AppendExchange(ctx, Exchange{
		ConversationID: convID,
		UserID:         s.userID,
		UserText:       text,
		AssistantText:  reply,
		Provider:       resp.Provider,
		Model:          resp.Model,
	})
	if err != nil {
		log.WithError(err).Error("failed to store exchange")
		turn.PersistErr = err
	}
	return turn, nil
}

// ensureConversation returns the active conversation id, creating a conversation
// titled after the first message when the session is idle.
func (s *Session) ensureConversation(ctx context.Context, title string) (string, error) {
	s.mu.Lock()
	switch s.state {
	case StateCreating, StateStreaming:
		s.mu.Unlock()
		return "", ErrBusy
	case StateActive:
		id := s.conversationID
		s.mu.Unlock()
		return id, nil
	}
	s.state = StateCreating
	s.mu.Unlock()

	conv, err := s.store.CreateConversation(ctx, s.userID, title)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateIdle
		s.log.WithError(err).Error("failed to create conversation")
		return "", err
	}
	s.conversationID = conv.ID
	s.state = StateActive
	return conv.ID, nil
}

// NewConversation returns to Idle with an empty transcript. The previous
// conversation stays in the store.
func (s *Session) NewConversation() error {
	s.mu.Lock()
	if s.busy() {
		s.mu.Unlock()
		return ErrBusy
	}
	s.state = StateIdle
	s.conversationID = ""
	s.transcript = NewTranscript()
	t := s.transcript
	s.mu.Unlock()
	s.notify(t)
	return nil
}

// Select makes id the active conversation. The displayed transcript is left as is;
// call LoadHistory to replace it with the stored messages.
func (s *Session) Select(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrNoConversation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return ErrBusy
	}
	s.conversationID = id
	s.state = StateActive
	return nil
}

func (s *Session) LoadHistory(ctx context.Context) (Transcript, error) {
	s.mu.Lock()
	if s.busy() {
		s.mu.Unlock()
		return Transcript{}, ErrBusy
	}
	if s.state != StateActive {
		s.mu.Unlock()
		return Transcript{}, ErrNoConversation
	}
	id := s.conversationID
	s.mu.Unlock()

	msgs, err := s.store.ListMessages(ctx, id, s.userID)
	if err != nil {
		return Transcript{}, err
	}
	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, Entry{Role: m.Role, Content: m.Content})
	}
	t := NewTranscript(entries...)

	s.mu.Lock()
	if s.conversationID != id || s.busy() {
		s.mu.Unlock()
		return Transcript{}, ErrBusy
	}
	s.transcript = t
	s.mu.Unlock()
	s.notify(t)
	return t, nil
}

func (s *Session) Conversations(ctx context.Context) ([]models.ConversationSummary, error) {
	return s.store.ListConversations(ctx, s.userID)
}

func (s *Session) busy() bool {
	return s.state == StateCreating || s.state == StateStreaming
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) notify(t Transcript) {
	if s.onUpdate != nil {
		s.onUpdate(t)
	}
}

// relayHistory is the context sent with a new message: prior entries that carry
// text. Empty placeholders left by failed requests are skipped.
func relayHistory(t Transcript) []Entry {
	var out []Entry
	for _, e := range t.Entries() {
		if strings.TrimSpace(e.Content) == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}
