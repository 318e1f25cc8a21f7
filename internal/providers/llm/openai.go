package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAIChat is the structured variant over the chat-completions API.
type OpenAIChat struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	topP        float32
}

type OpenAIOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

func NewOpenAIChat(opts OpenAIOptions) *OpenAIChat {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultOpenAIModel
	}
	return &OpenAIChat{
		client:      openai.NewClientWithConfig(cfg),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		topP:        opts.TopP,
	}
}

func (o *OpenAIChat) Name() string  { return "openai" }
func (o *OpenAIChat) Model() string { return o.model }
func (o *OpenAIChat) Close() error  { return nil }

func (o *OpenAIChat) Stream(ctx context.Context, req Request) (Stream, error) {
	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    openAIMessages(req),
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
		TopP:        o.topP,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: create stream: %w", err)
	}
	return &openAIStream{s: stream}, nil
}

func openAIMessages(req Request) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.System != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.History {
		out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})
}

type openAIStream struct {
	s      *openai.ChatCompletionStream
	closed bool
}

// Recv passes io.EOF through untouched. A chunk without choices is an empty fragment.
func (s *openAIStream) Recv() (string, error) {
	if s.closed {
		return "", ErrStreamClosed
	}
	resp, err := s.s.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *openAIStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.s.Close()
}
