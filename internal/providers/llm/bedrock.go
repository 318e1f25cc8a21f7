package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const defaultBedrockModel = "meta.llama3-8b-instruct-v1:0"

// bedrockEvents is the part of the Bedrock event stream the adapter reads.
type bedrockEvents interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

type bedrockInvokeFunc func(ctx context.Context, modelID string, body []byte) (bedrockEvents, error)

// BedrockLlama is the template variant: it renders the request into one Llama 3
// prompt and reads the single-shot token stream.
type BedrockLlama struct {
	model       string
	maxGenLen   int
	temperature float32
	topP        float32
	invoke      bedrockInvokeFunc
}

type BedrockOptions struct {
	Region      string
	Model       string
	MaxGenLen   int
	Temperature float32
	TopP        float32
}

// NewBedrockLlama loads AWS credentials from the environment chain.
func NewBedrockLlama(ctx context.Context, opts BedrockOptions) (*BedrockLlama, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	client := bedrockruntime.NewFromConfig(cfg)

	invoke := func(ctx context.Context, modelID string, body []byte) (bedrockEvents, error) {
		out, err := client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
			ModelId:     aws.String(modelID),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		})
		if err != nil {
			return nil, err
		}
		return out.GetStream(), nil
	}
	return newBedrockLlama(opts, invoke), nil
}

func newBedrockLlama(opts BedrockOptions, invoke bedrockInvokeFunc) *BedrockLlama {
	if opts.Model == "" {
		opts.Model = defaultBedrockModel
	}
	if opts.MaxGenLen <= 0 {
		opts.MaxGenLen = 512
	}
	return &BedrockLlama{
		model:       opts.Model,
		maxGenLen:   opts.MaxGenLen,
		temperature: opts.Temperature,
		topP:        opts.TopP,
		invoke:      invoke,
	}
}

func (b *BedrockLlama) Name() string  { return "bedrock" }
func (b *BedrockLlama) Model() string { return b.model }
func (b *BedrockLlama) Close() error  { return nil }

type llamaRequest struct {
	Prompt      string  `json:"prompt"`
	MaxGenLen   int     `json:"max_gen_len"`
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
}

type llamaChunk struct {
	Generation string `json:"generation"`
}

func (b *BedrockLlama) Stream(ctx context.Context, req Request) (Stream, error) {
	body, err := json.Marshal(llamaRequest{
		Prompt:      Llama3Prompt(req),
		MaxGenLen:   b.maxGenLen,
		Temperature: b.temperature,
		TopP:        b.topP,
	})
	if err != nil {
		return nil, err
	}

	events, err := b.invoke(ctx, b.model, body)
	if err != nil {
		return nil, fmt.Errorf("bedrock: invoke %s: %w", b.model, err)
	}
	return &bedrockStream{events: events}, nil
}

type bedrockStream struct {
	events bedrockEvents
	closed bool
}

func (s *bedrockStream) Recv() (string, error) {
	if s.closed {
		return "", ErrStreamClosed
	}
	for ev := range s.events.Events() {
		chunk, ok := ev.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		text, err := decodeLlamaChunk(chunk.Value.Bytes)
		if err != nil {
			return "", err
		}
		if text == "" {
			continue
		}
		return text, nil
	}
	if err := s.events.Err(); err != nil {
		return "", fmt.Errorf("bedrock: stream: %w", err)
	}
	return "", io.EOF
}

func (s *bedrockStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.events.Close()
}

func decodeLlamaChunk(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var c llamaChunk
	if err := json.Unmarshal(raw, &c); err != nil {
		return "", fmt.Errorf("bedrock: decode chunk: %w", err)
	}
	return c.Generation, nil
}
