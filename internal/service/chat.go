package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/openai"
	"github.com/villadeifiori/gabi/internal/telemetry"
)

const (
	chatTemperature     = 0.7
	chatMaxTokens       = 1000
	chatStreamMaxTokens = 2000
	chatHistoryTurns    = 10
)

const chatSystemPrompt = `Você é a Gabi, Síndica Virtual do Condomínio Villa Dei Fiori.
Sua função é ajudar moradores e stakeholders respondendo perguntas sobre processos, regras e procedimentos do condomínio.

INSTRUÇÕES:
- Use APENAS as informações fornecidas no contexto abaixo para responder
- Se a informação não estiver no contexto, diga que não tem essa informação disponível e sugira contatar o síndico
- Seja clara, objetiva e prestativa
- Use linguagem formal mas acessível
- Sempre cite as fontes quando usar informações do contexto
- Se houver múltiplas fontes, mencione todas relevantes

CONTEXTO (processos aprovados do condomínio):
`

const chatNoContext = "Nenhum processo relevante encontrado na base de conhecimento."

// Retriever finds relevant chunks for a chat turn.
type Retriever interface {
	Search(ctx context.Context, input SearchInput) (*SearchOutput, error)
}

// ChatClient generates assistant replies.
type ChatClient interface {
	GenerateChatCompletion(ctx context.Context, req openai.ChatRequest) (string, openai.Usage, error)
	StreamChatCompletion(ctx context.Context, req openai.ChatRequest, emit func(delta string) error) error
}

// ChatMessageRepository persists chat turns.
type ChatMessageRepository interface {
	Insert(ctx context.Context, msg *domain.ChatMessage) error
	ListRecent(ctx context.Context, conversationID string, limit int) ([]*domain.ChatMessage, error)
}

// ChatInput describes one chat turn. MatchThreshold follows SearchInput:
// nil means the default, zero means unfiltered.
type ChatInput struct {
	Message        string
	ConversationID string
	UserID         string
	MatchThreshold *float64
	MatchCount     int
	UseHybrid      bool
}

// ChatUsage carries token accounting for both upstream calls.
type ChatUsage struct {
	Embedding openai.Usage `json:"embedding"`
	Chat      openai.Usage `json:"chat"`
}

// ChatOutput is one completed chat turn.
type ChatOutput struct {
	Message     string
	Sources     []domain.ChatSource
	ContextUsed bool
	Usage       ChatUsage
}

// ChatService composes retrieved context into a prompt and generates a
// reply, optionally persisting the exchange.
type ChatService struct {
	retriever Retriever
	client    ChatClient
	messages  ChatMessageRepository
}

func NewChatService(retriever Retriever, client ChatClient, messages ChatMessageRepository) *ChatService {
	return &ChatService{retriever: retriever, client: client, messages: messages}
}

// Chat answers one user message. Search degradation never fails the turn;
// the reply falls back to general assistant behavior without context.
func (s *ChatService) Chat(ctx context.Context, input ChatInput) (*ChatOutput, error) {
	prompt, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "chat.complete", telemetry.SpanAttributes{Operation: "chat"})
	defer span.End()

	reply, chatUsage, err := s.client.GenerateChatCompletion(ctx, openai.ChatRequest{
		Messages:    prompt.messages,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to generate reply", err)
	}

	s.persistExchange(ctx, input, reply, prompt.sources)

	return &ChatOutput{
		Message:     reply,
		Sources:     prompt.sources,
		ContextUsed: prompt.contextUsed,
		Usage:       ChatUsage{Embedding: prompt.embeddingUsage, Chat: chatUsage},
	}, nil
}

// ChatStream answers one user message, emitting reply deltas in generation
// order. The full exchange is persisted after the stream completes.
func (s *ChatService) ChatStream(ctx context.Context, input ChatInput, emit func(delta string) error) (*ChatOutput, error) {
	prompt, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "chat.stream", telemetry.SpanAttributes{Operation: "chat_stream"})
	defer span.End()

	var reply strings.Builder
	err = s.client.StreamChatCompletion(ctx, openai.ChatRequest{
		Messages:    prompt.messages,
		Temperature: chatTemperature,
		MaxTokens:   chatStreamMaxTokens,
	}, func(delta string) error {
		reply.WriteString(delta)
		return emit(delta)
	})
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to stream reply", err)
	}

	s.persistExchange(ctx, input, reply.String(), prompt.sources)

	return &ChatOutput{
		Message:     reply.String(),
		Sources:     prompt.sources,
		ContextUsed: prompt.contextUsed,
		Usage:       ChatUsage{Embedding: prompt.embeddingUsage},
	}, nil
}

type chatPrompt struct {
	messages       []openai.Message
	sources        []domain.ChatSource
	contextUsed    bool
	embeddingUsage openai.Usage
}

func (s *ChatService) prepare(ctx context.Context, input ChatInput) (*chatPrompt, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, domain.ErrEmptyMessage
	}

	count := input.MatchCount
	if count <= 0 {
		count = DefaultMatchCount
	}

	prompt := &chatPrompt{}

	output, err := s.retriever.Search(ctx, SearchInput{
		Query:          message,
		MatchThreshold: input.MatchThreshold,
		MatchCount:     count,
		UseHybrid:      input.UseHybrid,
	})
	if err != nil {
		// An unreachable knowledge base degrades the turn to general
		// assistant behavior; embedding and validation failures abort it.
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == domain.ErrCodeInternalError {
			log.Printf("chat: knowledge base search failed, continuing without context: %v", err)
			output = &SearchOutput{Results: []*SearchResult{}}
		} else {
			return nil, err
		}
	}
	prompt.embeddingUsage = output.Usage

	var contextBlocks []string
	for _, result := range output.Results {
		prompt.sources = append(prompt.sources, domain.ChatSource{
			ProcessID:   result.ProcessID,
			ProcessName: result.SourceName(),
			ChunkType:   result.ChunkType,
			Similarity:  result.Similarity,
		})
		contextBlocks = append(contextBlocks, "[Fonte: "+result.SourceName()+"]\n"+result.Content)
	}

	contextText := chatNoContext
	if len(contextBlocks) > 0 {
		contextText = strings.Join(contextBlocks, "\n\n---\n\n")
		prompt.contextUsed = true
	}

	prompt.messages = append(prompt.messages, openai.Message{
		Role:    string(domain.ChatRoleSystem),
		Content: chatSystemPrompt + contextText,
	})

	if input.ConversationID != "" && s.messages != nil {
		history, err := s.messages.ListRecent(ctx, input.ConversationID, chatHistoryTurns)
		if err != nil {
			log.Printf("chat: failed to load history for conversation %s: %v", input.ConversationID, err)
		}
		for _, turn := range history {
			prompt.messages = append(prompt.messages, openai.Message{
				Role:    string(turn.Role),
				Content: turn.Content,
			})
		}
	}

	prompt.messages = append(prompt.messages, openai.Message{
		Role:    string(domain.ChatRoleUser),
		Content: message,
	})

	return prompt, nil
}

// persistExchange stores the user message and assistant reply. Persistence
// failure never blocks the response.
func (s *ChatService) persistExchange(ctx context.Context, input ChatInput, reply string, sources []domain.ChatSource) {
	if input.ConversationID == "" || input.UserID == "" || s.messages == nil {
		return
	}

	now := time.Now().UTC()
	userMsg := &domain.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		Role:           domain.ChatRoleUser,
		Content:        strings.TrimSpace(input.Message),
		CreatedAt:      now,
	}
	if err := s.messages.Insert(ctx, userMsg); err != nil {
		log.Printf("chat: failed to persist user message: %v", err)
		return
	}

	assistantMsg := &domain.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		Role:           domain.ChatRoleAssistant,
		Content:        reply,
		Sources:        sources,
		CreatedAt:      now,
	}
	if err := s.messages.Insert(ctx, assistantMsg); err != nil {
		log.Printf("chat: failed to persist assistant message: %v", err)
	}
}
