package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/openai"
	"github.com/villadeifiori/gabi/internal/pagination"
	"github.com/villadeifiori/gabi/internal/service"
)

func floatPtr(v float64) *float64 {
	return &v
}

type MockIngestionRunner struct {
	mock.Mock
}

func (m *MockIngestionRunner) IngestProcess(ctx context.Context, processID, versionID string) (*service.IngestResult, error) {
	args := m.Called(ctx, processID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockIngestionRunner) IngestDocument(ctx context.Context, documentID string) (*service.IngestResult, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockIngestionRunner) GetStatus(ctx context.Context, processID, versionID string) (*domain.IngestionStatus, error) {
	args := m.Called(ctx, processID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestionStatus), args.Error(1)
}

func (m *MockIngestionRunner) ListStatuses(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.StatusPageResult, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StatusPageResult), args.Error(1)
}

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SearchOutput), args.Error(1)
}

type MockChatRunner struct {
	mock.Mock
}

func (m *MockChatRunner) Chat(ctx context.Context, input service.ChatInput) (*service.ChatOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatOutput), args.Error(1)
}

func (m *MockChatRunner) ChatStream(ctx context.Context, input service.ChatInput, emit func(delta string) error) (*service.ChatOutput, error) {
	args := m.Called(ctx, input, emit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatOutput), args.Error(1)
}

type MockEmbeddingGenerator struct {
	mock.Mock
}

func (m *MockEmbeddingGenerator) GenerateEmbedding(ctx context.Context, text string) ([]float32, openai.Usage, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Get(1).(openai.Usage), args.Error(2)
	}
	return args.Get(0).([]float32), args.Get(1).(openai.Usage), args.Error(2)
}
