package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/service"
)

func TestChat_Success(t *testing.T) {
	runner := new(MockChatRunner)
	runner.On("Chat", mock.Anything, mock.MatchedBy(func(input service.ChatInput) bool {
		return input.Message == "Como reservo o salão?" && input.UseHybrid
	})).Return(&service.ChatOutput{
		Message: "Para reservar o salão, abra um chamado.",
		Sources: []domain.ChatSource{
			{ProcessID: "proc-1", ProcessName: "Reservas", ChunkType: domain.ChunkTypeWorkflow, Similarity: 0.88},
		},
		ContextUsed: true,
	}, nil)

	handler := NewChatHandler(runner)
	req := httptest.NewRequest(http.MethodPost, "/chat-with-rag", strings.NewReader(`{"message": "Como reservo o salão?"}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Para reservar o salão, abra um chamado.", resp["message"])
	assert.Equal(t, true, resp["context_used"])
	sources := resp["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "Reservas", sources[0].(map[string]any)["process_name"])
	runner.AssertExpectations(t)
}

func TestChat_HybridDefaultsOn(t *testing.T) {
	runner := new(MockChatRunner)
	runner.On("Chat", mock.Anything, mock.MatchedBy(func(input service.ChatInput) bool {
		return input.UseHybrid
	})).Return(&service.ChatOutput{Message: "ok"}, nil)

	handler := NewChatHandler(runner)
	req := httptest.NewRequest(http.MethodPost, "/chat-with-rag", strings.NewReader(`{"message": "oi"}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	runner.AssertExpectations(t)
}

func TestChat_HybridExplicitlyOff(t *testing.T) {
	runner := new(MockChatRunner)
	runner.On("Chat", mock.Anything, mock.MatchedBy(func(input service.ChatInput) bool {
		return !input.UseHybrid
	})).Return(&service.ChatOutput{Message: "ok"}, nil)

	handler := NewChatHandler(runner)
	req := httptest.NewRequest(http.MethodPost, "/chat-with-rag", strings.NewReader(`{"message": "oi", "use_hybrid": false}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	runner.AssertExpectations(t)
}

func TestChat_ExplicitZeroThreshold(t *testing.T) {
	runner := new(MockChatRunner)
	runner.On("Chat", mock.Anything, mock.MatchedBy(func(input service.ChatInput) bool {
		return input.MatchThreshold != nil && *input.MatchThreshold == 0
	})).Return(&service.ChatOutput{Message: "ok"}, nil)

	handler := NewChatHandler(runner)
	req := httptest.NewRequest(http.MethodPost, "/chat-with-rag", strings.NewReader(`{"message": "oi", "match_threshold": 0}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	runner.AssertExpectations(t)
}

func TestChat_PassesConversation(t *testing.T) {
	runner := new(MockChatRunner)
	runner.On("Chat", mock.Anything, mock.MatchedBy(func(input service.ChatInput) bool {
		return input.ConversationID == "conv-1" && input.UserID == "user-1"
	})).Return(&service.ChatOutput{Message: "ok"}, nil)

	handler := NewChatHandler(runner)
	body := `{"message": "oi", "conversation_id": "conv-1", "user_id": "user-1"}`
	req := httptest.NewRequest(http.MethodPost, "/chat-with-rag", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	runner.AssertExpectations(t)
}

func TestChat_EmptyMessage(t *testing.T) {
	runner := new(MockChatRunner)
	runner.On("Chat", mock.Anything, mock.Anything).Return(nil, domain.ErrEmptyMessage)

	handler := NewChatHandler(runner)
	req := httptest.NewRequest(http.MethodPost, "/chat-with-rag", strings.NewReader(`{"message": ""}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_UpstreamFailure(t *testing.T) {
	runner := new(MockChatRunner)
	runner.On("Chat", mock.Anything, mock.Anything).Return(nil,
		domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to generate reply", errors.New("api down")))

	handler := NewChatHandler(runner)
	req := httptest.NewRequest(http.MethodPost, "/chat-with-rag", strings.NewReader(`{"message": "oi"}`))
	rec := httptest.NewRecorder()

	handler.Chat(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to generate reply")
}

func TestChatStream_EmitsDeltasAndDone(t *testing.T) {
	runner := new(MockChatRunner)
	runner.On("ChatStream", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			emit := args.Get(2).(func(delta string) error)
			require.NoError(t, emit("Olá"))
			require.NoError(t, emit(", morador"))
		}).
		Return(&service.ChatOutput{
			Message:     "Olá, morador",
			Sources:     []domain.ChatSource{{ProcessName: "Mudanças", ChunkType: domain.ChunkTypeName, Similarity: 0.8}},
			ContextUsed: true,
		}, nil)

	handler := NewChatHandler(runner)
	req := httptest.NewRequest(http.MethodPost, "/chat-with-rag/stream", strings.NewReader(`{"message": "oi"}`))
	rec := httptest.NewRecorder()

	handler.ChatStream(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	events := strings.Split(strings.TrimSpace(body), "\n\n")
	require.Len(t, events, 3)
	assert.Equal(t, `data: {"delta":"Olá"}`, events[0])
	assert.Equal(t, `data: {"delta":", morador"}`, events[1])

	var done map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(events[2], "data: ")), &done))
	assert.Equal(t, true, done["done"])
	assert.Equal(t, true, done["context_used"])
	require.Len(t, done["sources"].([]any), 1)
}

func TestChatStream_NoDeltasStillSendsDone(t *testing.T) {
	runner := new(MockChatRunner)
	runner.On("ChatStream", mock.Anything, mock.Anything, mock.Anything).
		Return(&service.ChatOutput{Message: ""}, nil)

	handler := NewChatHandler(runner)
	req := httptest.NewRequest(http.MethodPost, "/chat-with-rag/stream", strings.NewReader(`{"message": "oi"}`))
	rec := httptest.NewRecorder()

	handler.ChatStream(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"done":true`)
}

func TestChatStream_ErrorBeforeFirstDelta(t *testing.T) {
	runner := new(MockChatRunner)
	runner.On("ChatStream", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrEmptyMessage)

	handler := NewChatHandler(runner)
	req := httptest.NewRequest(http.MethodPost, "/chat-with-rag/stream", strings.NewReader(`{"message": ""}`))
	rec := httptest.NewRecorder()

	handler.ChatStream(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestChatStream_ErrorMidStream(t *testing.T) {
	runner := new(MockChatRunner)
	runner.On("ChatStream", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			emit := args.Get(2).(func(delta string) error)
			require.NoError(t, emit("Olá"))
		}).
		Return(nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to stream reply", errors.New("connection reset")))

	handler := NewChatHandler(runner)
	req := httptest.NewRequest(http.MethodPost, "/chat-with-rag/stream", strings.NewReader(`{"message": "oi"}`))
	rec := httptest.NewRecorder()

	handler.ChatStream(rec, req)

	// Status already went out with the first delta; the error arrives as a
	// terminal event instead.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data: {"delta":"Olá"}`)
	assert.Contains(t, rec.Body.String(), `"error"`)
	assert.NotContains(t, rec.Body.String(), `"done":true`)
}

func TestChatStream_InvalidJSON(t *testing.T) {
	handler := NewChatHandler(new(MockChatRunner))
	req := httptest.NewRequest(http.MethodPost, "/chat-with-rag/stream", strings.NewReader("nope"))
	rec := httptest.NewRecorder()

	handler.ChatStream(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
