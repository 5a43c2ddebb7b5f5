package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: http.DefaultClient,
	}
}

func TestAPIClient_PostDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search-knowledge", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "piscina", req.Query)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{Success: true, Query: req.Query, Count: 0, Results: []SearchResult{}})
	}))
	defer srv.Close()

	api := testClient(srv.URL, "tok")

	var resp SearchResponse
	err := api.Post("/search-knowledge", SearchRequest{Query: "piscina"}, &resp)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "piscina", resp.Query)
}

func TestAPIClient_NoTokenOmitsHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	api := testClient(srv.URL, "")
	require.NoError(t, api.Get("/health", nil))
}

func TestAPIClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "process not found", "details": "no rows"}`))
	}))
	defer srv.Close()

	api := testClient(srv.URL, "")

	err := api.Post("/ingest-process", IngestProcessRequest{ProcessID: "x", ProcessVersionID: "y"}, nil)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "process not found", apiErr.Message)
	assert.Equal(t, "no rows", apiErr.Details)
	assert.Contains(t, apiErr.Error(), "404")
}

func TestAPIClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	api := testClient(srv.URL, "")

	err := api.Get("/health", nil)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream exploded", apiErr.Message)
}

func TestAPIClient_PostStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"delta\":\"Olá\"}\n\n"))
		w.Write([]byte("data: {\"delta\":\", morador\"}\n\n"))
		w.Write([]byte("data: {\"done\":true,\"sources\":[]}\n\n"))
	}))
	defer srv.Close()

	api := testClient(srv.URL, "")

	var events []chatStreamEvent
	err := api.PostStream("/chat-with-rag/stream", ChatRequest{Message: "oi"}, func(raw json.RawMessage) error {
		var event chatStreamEvent
		require.NoError(t, json.Unmarshal(raw, &event))
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, "Olá", events[0].Delta)
	assert.Equal(t, ", morador", events[1].Delta)
	assert.True(t, events[2].Done)
}

func TestAPIClient_PostStreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "message cannot be empty"}`))
	}))
	defer srv.Close()

	api := testClient(srv.URL, "")

	err := api.PostStream("/chat-with-rag/stream", ChatRequest{}, func(raw json.RawMessage) error {
		t.Fatal("no events expected")
		return nil
	})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}
