package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/peterh/liner"

	"github.com/yoockh/auxilium/internal/chatclient"
	"github.com/yoockh/auxilium/internal/logger"
	"github.com/yoockh/auxilium/internal/models"
)

const greeting = "Hi! I'm the support assistant. How can I help you today?"

func main() {
	_ = godotenv.Load()
	log := logger.NewConsole(os.Stderr, envOr("LOG_LEVEL", "warn"))

	api, err := chatclient.NewAPIClient(
		envOr("CHAT_API_URL", "http://localhost:8080"),
		os.Getenv("CHAT_TOKEN"),
		chatclient.RelayMode(envOr("CHAT_MODE", string(chatclient.ModeCompletion))),
		nil,
	)
	if err != nil {
		log.WithError(err).Fatal("client config")
	}

	out := &renderer{w: os.Stdout}
	sess := chatclient.NewSession(chatclient.SessionConfig{
		UserID:   api.UserID(),
		Store:    api,
		Relay:    api,
		Logger:   log,
		Greeting: greeting,
		OnUpdate: out.update,
	})

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	historyFile := filepath.Join(os.TempDir(), "auxilium_chat_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	r := &repl{sess: sess, out: out}
	fmt.Fprintln(os.Stdout, "assistant> "+greeting)
	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			// Ctrl+C, Ctrl+D
			fmt.Fprintln(os.Stdout)
			return
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if quit := r.handle(input); quit {
			return
		}
	}
}

type repl struct {
	sess *chatclient.Session
	out  *renderer
}

// handle runs one input line and reports whether the client should exit.
func (r *repl) handle(input string) bool {
	cmd, arg := parseCommand(input)
	ctx := context.Background()
	w := r.out.w

	switch cmd {
	case "":
		return false
	case "quit", "exit":
		return true
	case "new":
		if err := r.sess.NewConversation(); err != nil {
			fmt.Fprintln(w, "error:", err)
		} else {
			fmt.Fprintln(w, "started a new conversation")
		}
	case "list":
		convs, err := r.sess.Conversations(ctx)
		if err != nil {
			fmt.Fprintln(w, "error:", err)
			break
		}
		if len(convs) == 0 {
			fmt.Fprintln(w, "no conversations yet")
		}
		active := r.sess.Snapshot().ConversationID
		for _, c := range convs {
			mark := " "
			if c.ID == active {
				mark = "*"
			}
			fmt.Fprintf(w, "%s %s  %s\n", mark, c.ID, c.Title)
		}
	case "select":
		if err := r.sess.Select(arg); err != nil {
			fmt.Fprintln(w, "error:", err)
		} else {
			fmt.Fprintln(w, "selected", arg, "(use /history to show its messages)")
		}
	case "history":
		t, err := r.sess.LoadHistory(ctx)
		if err != nil {
			fmt.Fprintln(w, "error:", err)
			break
		}
		printTranscript(w, t)
	case "send":
		r.send(ctx, arg)
	default:
		fmt.Fprintln(w, "unknown command /"+cmd+"; try /new /list /select <id> /history /quit")
	}
	return false
}

// send streams one reply. Ctrl+C while streaming cancels the request instead of
// killing the client.
func (r *repl) send(ctx context.Context, text string) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprint(r.out.w, "assistant> ")
	r.out.begin()
	turn, err := r.sess.Submit(ctx, text)
	r.out.end()
	fmt.Fprintln(r.out.w)

	switch {
	case errors.Is(err, chatclient.ErrBusy):
		fmt.Fprintln(r.out.w, "still answering the previous message")
	case err != nil:
		fmt.Fprintln(r.out.w, "error:", err)
	case turn.PersistErr != nil:
		fmt.Fprintln(r.out.w, "(reply was not saved)")
	}
}

// parseCommand splits "/select abc" into ("select", "abc"). Plain text is a "send".
func parseCommand(input string) (cmd, arg string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ""
	}
	if !strings.HasPrefix(input, "/") {
		return "send", input
	}
	cmd, arg, _ = strings.Cut(input[1:], " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

func printTranscript(w io.Writer, t chatclient.Transcript) {
	if t.Len() == 0 {
		fmt.Fprintln(w, "(no messages)")
		return
	}
	for _, e := range t.Entries() {
		who := "you"
		if e.Role == models.RoleAssistant {
			who = "assistant"
		}
		fmt.Fprintf(w, "%s> %s\n", who, e.Content)
	}
}

// renderer prints the growing assistant entry as new text arrives. Updates outside
// begin/end (history loads, resets) are ignored.
type renderer struct {
	w io.Writer

	mu      sync.Mutex
	active  bool
	printed int
}

func (r *renderer) begin() {
	r.mu.Lock()
	r.active, r.printed = true, 0
	r.mu.Unlock()
}

func (r *renderer) end() {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()
}

func (r *renderer) update(t chatclient.Transcript) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	last, ok := t.Last()
	if !ok || last.Role != models.RoleAssistant || len(last.Content) <= r.printed {
		return
	}
	// content only grows, so the printed part is always a prefix
	fmt.Fprint(r.w, last.Content[r.printed:])
	r.printed = len(last.Content)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
