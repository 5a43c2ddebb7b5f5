package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the pinned output dimension for embeddings
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is the OpenAI model used for chat completions
	DefaultChatModel = "gpt-4o-mini"
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions, expected 1536")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrNoChoices is returned when a chat completion comes back empty
	ErrNoChoices = errors.New("no completion choices returned")
)

// Usage carries token accounting from the upstream API.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens"`
}

// Message is a single chat turn sent to the completion API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes one chat completion call.
type ChatRequest struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// CompletionAPI defines the interface for embedding and chat generation
type CompletionAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, Usage, error)
	CreateChatCompletion(ctx context.Context, req ChatRequest) (string, Usage, error)
	StreamChatCompletion(ctx context.Context, req ChatRequest, emit func(delta string) error) error
}

// Client wraps the OpenAI API client
type Client struct {
	api        CompletionAPI
	dimensions int
}

type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
	dimensions     int
}

func NewOpenAIAdapter(apiKey string, embeddingModel openai.EmbeddingModel, chatModel string, dimensions int) *OpenAIAdapter {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &OpenAIAdapter{
		client:         openai.NewClient(apiKey),
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
		dimensions:     dimensions,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, Usage, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      a.embeddingModel,
		Dimensions: a.dimensions,
	})
	if err != nil {
		return nil, Usage{}, err
	}

	if len(resp.Data) == 0 {
		return nil, Usage{}, errors.New("no embedding data returned")
	}

	usage := Usage{
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	return resp.Data[0].Embedding, usage, nil
}

// CreateChatCompletion calls the OpenAI chat completion API
func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, req ChatRequest) (string, Usage, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.chatCompletionRequest(req, false))
	if err != nil {
		return "", Usage{}, err
	}

	if len(resp.Choices) == 0 {
		return "", Usage{}, ErrNoChoices
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// StreamChatCompletion streams completion deltas to emit in generation
// order. Returns the context error when the caller goes away mid-stream.
func (a *OpenAIAdapter) StreamChatCompletion(ctx context.Context, req ChatRequest, emit func(delta string) error) error {
	stream, err := a.client.CreateChatCompletionStream(ctx, a.chatCompletionRequest(req, true))
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			if err := emit(delta); err != nil {
				return err
			}
		}
	}
}

func (a *OpenAIAdapter) chatCompletionRequest(req ChatRequest, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return openai.ChatCompletionRequest{
		Model:       a.chatModel,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	ChatModel           string
	EmbeddingDimensions int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{
		api:        NewOpenAIAdapter(cfg.APIKey, cfg.EmbeddingModel, cfg.ChatModel, dimensions),
		dimensions: dimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, Usage, error) {
	if text == "" {
		return nil, Usage{}, ErrEmptyText
	}

	embedding, usage, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("failed to create embedding: %w", err)
	}

	expected := c.dimensions
	if expected <= 0 {
		expected = DefaultEmbeddingDimensions
	}
	if len(embedding) != expected {
		return nil, Usage{}, ErrWrongDimensions
	}

	return embedding, usage, nil
}

// GenerateChatCompletion generates one assistant reply for the given turns.
func (c *Client) GenerateChatCompletion(ctx context.Context, req ChatRequest) (string, Usage, error) {
	if len(req.Messages) == 0 {
		return "", Usage{}, ErrEmptyText
	}

	reply, usage, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to create chat completion: %w", err)
	}
	return reply, usage, nil
}

// StreamChatCompletion streams assistant reply deltas to emit.
func (c *Client) StreamChatCompletion(ctx context.Context, req ChatRequest, emit func(delta string) error) error {
	if len(req.Messages) == 0 {
		return ErrEmptyText
	}
	if err := c.api.StreamChatCompletion(ctx, req, emit); err != nil {
		return fmt.Errorf("failed to stream chat completion: %w", err)
	}
	return nil
}
