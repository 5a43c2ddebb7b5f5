package service

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/openai"
	"github.com/villadeifiori/gabi/internal/pagination"
)

type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, openai.Usage, error) {
	args := m.Called(ctx, text)
	var embedding []float32
	if args.Get(0) != nil {
		embedding = args.Get(0).([]float32)
	}
	return embedding, args.Get(1).(openai.Usage), args.Error(2)
}

type MockProcessRepository struct {
	mock.Mock
}

func (m *MockProcessRepository) GetByID(ctx context.Context, id string) (*domain.Process, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Process), args.Error(1)
}

func (m *MockProcessRepository) GetVersionByID(ctx context.Context, id string) (*domain.ProcessVersion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProcessVersion), args.Error(1)
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) MarkIngestionProcessing(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) MarkIngestionCompleted(ctx context.Context, id string, chunksCount int) error {
	args := m.Called(ctx, id, chunksCount)
	return args.Error(0)
}

func (m *MockDocumentRepository) MarkIngestionFailed(ctx context.Context, id string, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) ReplaceProcessChunks(ctx context.Context, processID, versionID string, chunks []domain.KnowledgeChunk) error {
	args := m.Called(ctx, processID, versionID, chunks)
	return args.Error(0)
}

func (m *MockChunkRepository) ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.KnowledgeChunk) error {
	args := m.Called(ctx, documentID, chunks)
	return args.Error(0)
}

type MockIngestionStatusRepository struct {
	mock.Mock
}

func (m *MockIngestionStatusRepository) MarkProcessing(ctx context.Context, processID, versionID string) error {
	args := m.Called(ctx, processID, versionID)
	return args.Error(0)
}

func (m *MockIngestionStatusRepository) MarkCompleted(ctx context.Context, processID, versionID string, chunksCount int) error {
	args := m.Called(ctx, processID, versionID, chunksCount)
	return args.Error(0)
}

func (m *MockIngestionStatusRepository) MarkFailed(ctx context.Context, processID, versionID, errMsg string) error {
	args := m.Called(ctx, processID, versionID, errMsg)
	return args.Error(0)
}

func (m *MockIngestionStatusRepository) GetByKey(ctx context.Context, processID, versionID string) (*domain.IngestionStatus, error) {
	args := m.Called(ctx, processID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestionStatus), args.Error(1)
}

func (m *MockIngestionStatusRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*StatusPageResult, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StatusPageResult), args.Error(1)
}

type MockContentStore struct {
	mock.Mock
}

func (m *MockContentStore) GetText(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type MockSearchRepository struct {
	mock.Mock
}

func (m *MockSearchRepository) SearchKnowledge(ctx context.Context, embedding []float32, threshold float64, count int) ([]*SearchResult, error) {
	args := m.Called(ctx, embedding, threshold, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*SearchResult), args.Error(1)
}

func (m *MockSearchRepository) SearchKnowledgeHybrid(ctx context.Context, embedding []float32, queryText string, threshold float64, count int) ([]*SearchResult, error) {
	args := m.Called(ctx, embedding, queryText, threshold, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*SearchResult), args.Error(1)
}

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SearchOutput), args.Error(1)
}

type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) GenerateChatCompletion(ctx context.Context, req openai.ChatRequest) (string, openai.Usage, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Get(1).(openai.Usage), args.Error(2)
}

func (m *MockChatClient) StreamChatCompletion(ctx context.Context, req openai.ChatRequest, emit func(delta string) error) error {
	args := m.Called(ctx, req, emit)
	return args.Error(0)
}

type MockChatMessageRepository struct {
	mock.Mock
}

func (m *MockChatMessageRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockChatMessageRepository) ListRecent(ctx context.Context, conversationID string, limit int) ([]*domain.ChatMessage, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatMessage), args.Error(1)
}
