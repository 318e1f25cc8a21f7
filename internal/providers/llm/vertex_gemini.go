package llm

import (
	"context"
	"errors"
	"io"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

const defaultGeminiModel = "gemini-1.5-flash"

// VertexGemini is a structured variant over Vertex AI chat sessions.
type VertexGemini struct {
	client      *vertexgenai.Client
	model       string
	maxTokens   int32
	temperature float32
	topP        float32
}

type VertexOptions struct {
	ProjectID   string
	Location    string
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

func NewVertexGemini(ctx context.Context, opts VertexOptions) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, opts.ProjectID, opts.Location)
	if err != nil {
		return nil, err
	}

	if opts.Model == "" {
		opts.Model = defaultGeminiModel
	}
	return &VertexGemini{
		client:      c,
		model:       opts.Model,
		maxTokens:   int32(opts.MaxTokens),
		temperature: opts.Temperature,
		topP:        opts.TopP,
	}, nil
}

func (v *VertexGemini) Name() string  { return "vertex" }
func (v *VertexGemini) Model() string { return v.model }
func (v *VertexGemini) Close() error  { return v.client.Close() }

func (v *VertexGemini) Stream(ctx context.Context, req Request) (Stream, error) {
	// GenerativeModel carries per-call settings, so each request gets its own handle.
	m := v.client.GenerativeModel(v.model)
	if v.maxTokens > 0 {
		m.SetMaxOutputTokens(v.maxTokens)
	}
	m.SetTemperature(v.temperature)
	m.SetTopP(v.topP)
	if req.System != "" {
		m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(req.System)}}
	}

	cs := m.StartChat()
	cs.History = geminiHistory(req.History)

	it := cs.SendMessageStream(ctx, vertexgenai.Text(req.Message))
	return &geminiStream{next: it.Next}, nil
}

// geminiHistory maps prior turns onto Gemini roles; system turns are carried by
// SystemInstruction instead.
func geminiHistory(history []Message) []*vertexgenai.Content {
	out := make([]*vertexgenai.Content, 0, len(history))
	for _, m := range history {
		var role string
		switch m.Role {
		case RoleUser:
			role = "user"
		case RoleAssistant:
			role = "model"
		default:
			continue
		}
		out = append(out, &vertexgenai.Content{Role: role, Parts: []vertexgenai.Part{vertexgenai.Text(m.Content)}})
	}
	return out
}

type geminiStream struct {
	next   func() (*vertexgenai.GenerateContentResponse, error)
	closed bool
}

func (s *geminiStream) Recv() (string, error) {
	if s.closed {
		return "", ErrStreamClosed
	}
	resp, err := s.next()
	if errors.Is(err, iterator.Done) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	return geminiText(resp), nil
}

func (s *geminiStream) Close() error {
	s.closed = true
	return nil
}

// geminiText joins the text parts of every candidate. A response with no text is "".
func geminiText(resp *vertexgenai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}
