package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/auxilium/internal/models"
	"github.com/yoockh/auxilium/internal/providers/llm"
	"github.com/yoockh/auxilium/internal/services"
)

const relayFailureMessage = "error processing your request"

// CompletionHandler relays provider fragments to the client as they arrive.
type CompletionHandler struct {
	completion llm.Provider
	chat       llm.Provider
	system     string
	journal    services.JournalService
	log        *logrus.Logger
}

func NewCompletionHandler(completion, chat llm.Provider, systemPrompt string, journal services.JournalService, l *logrus.Logger) *CompletionHandler {
	return &CompletionHandler{
		completion: completion,
		chat:       chat,
		system:     systemPrompt,
		journal:    journal,
		log:        l,
	}
}

type completionRequest struct {
	UserMessage string `json:"user_message"`
}

// Completion handles POST /completion: one user message, no history.
func (h *CompletionHandler) Completion(c *gin.Context) {
	var body completionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(body.UserMessage) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_message is required"})
		return
	}

	h.relay(c, h.completion, llm.Request{System: h.system, Message: body.UserMessage})
}

// Chat handles POST /chat: the full role-tagged history, ending with the new user entry.
func (h *CompletionHandler) Chat(c *gin.Context) {
	var msgs []llm.Message
	if err := c.ShouldBindJSON(&msgs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req, err := chatRequest(h.system, msgs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.relay(c, h.chat, req)
}

// chatRequest drops client supplied system entries; the server's instructions are
// always the only system text.
func chatRequest(system string, msgs []llm.Message) (llm.Request, error) {
	turns := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			continue
		case llm.RoleUser, llm.RoleAssistant:
			turns = append(turns, m)
		default:
			return llm.Request{}, errors.New("unknown role " + string(m.Role))
		}
	}
	if len(turns) == 0 {
		return llm.Request{}, errors.New("messages are required")
	}
	last := turns[len(turns)-1]
	if last.Role != llm.RoleUser || strings.TrimSpace(last.Content) == "" {
		return llm.Request{}, errors.New("last message must be a non-empty user message")
	}
	return llm.Request{System: system, History: turns[:len(turns)-1], Message: last.Content}, nil
}

func (h *CompletionHandler) relay(c *gin.Context, p llm.Provider, req llm.Request) {
	ctx := c.Request.Context()
	ev := &models.RelayEvent{
		RequestID: c.GetString("request_id"),
		UserID:    c.GetString("user_id"),
		Route:     c.FullPath(),
		Provider:  p.Name(),
		Model:     p.Model(),
		StartedAt: time.Now().UTC(),
	}
	log := h.log.WithFields(logrus.Fields{
		"request_id": ev.RequestID,
		"user_id":    ev.UserID,
		"route":      ev.Route,
		"provider":   ev.Provider,
	})
	defer h.record(ctx, ev, log)

	stream, err := p.Stream(ctx, req)
	if err != nil {
		h.failBeforeStream(c, ev, log, err)
		return
	}
	defer stream.Close()

	// headers stay uncommitted until there is text to send, so an early provider
	// failure can still be answered with a status code
	var frag string
	for frag == "" {
		frag, err = stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.failBeforeStream(c, ev, log, err)
			return
		}
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Provider", p.Name())
	w.Header().Set("X-Model", p.Model())
	w.WriteHeader(http.StatusOK)
	w.WriteHeaderNow()

	for ; err == nil; frag, err = stream.Recv() {
		if frag == "" {
			continue
		}
		n, werr := io.WriteString(w, frag)
		ev.Bytes += int64(n)
		ev.Fragments++
		if werr != nil {
			err = werr
			break
		}
		w.Flush()
	}
	if errors.Is(err, io.EOF) {
		ev.Status = models.RelayCompleted
		return
	}

	ev.Status = models.RelayInterrupted
	ev.Error = err.Error()
	log.WithError(err).WithField("status", ev.Status).Error("stream interrupted after first byte")
	abortConnection()
}

func (h *CompletionHandler) failBeforeStream(c *gin.Context, ev *models.RelayEvent, log *logrus.Entry, err error) {
	ev.Status = models.RelayFailed
	ev.Error = err.Error()
	log.WithError(err).Error("provider request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": relayFailureMessage})
}

func (h *CompletionHandler) record(ctx context.Context, ev *models.RelayEvent, log *logrus.Entry) {
	if h.journal == nil {
		return
	}
	ev.DurationMS = time.Since(ev.StartedAt).Milliseconds()

	// the request context is usually gone by now
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := h.journal.Record(ctx, ev); err != nil {
		log.WithError(err).Warn("failed to record relay event")
	}
}

// abortConnection ends the response without the terminating chunk, so the client
// sees a truncated stream rather than a clean end. Recovery middleware must let
// http.ErrAbortHandler through.
func abortConnection() {
	panic(http.ErrAbortHandler)
}
