//go:build e2e

package e2e

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/villadeifiori/gabi/internal/jobs"
)

var processContent = map[string]any{
	"descricao": "Procedimento para reserva do salão de festas pelo morador.",
	"workflow":  []any{"Abrir chamado na portaria", map[string]any{"step": "Aguardar confirmação do síndico"}},
	"entidades": []any{"Morador", "Portaria", "Síndico"},
	"variaveis": map[string]any{"prazo": "5 dias úteis"},
	"raci":      []any{map[string]any{"papel": "Síndico", "responsavel": "Aprovação"}},
}

func TestE2E(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	processID := env.insertProcess("Reserva do Salão de Festas", "Reservas", "aprovado")
	versionID := env.insertVersion(processID, processContent)

	t.Run("Health", func(t *testing.T) {
		status, body, err := env.Get("/health")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("AuthRequired", func(t *testing.T) {
		status, body, err := env.PostNoAuth("/search-knowledge", map[string]any{"query": "reserva"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("IngestProcess", func(t *testing.T) {
		status, body, err := env.Post("/ingest-process", map[string]any{
			"process_id":         processID,
			"process_version_id": versionID,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status, "body: %v", body)

		assert.Equal(t, true, body["success"])
		// name, description, workflow, entities, variables, raci
		assert.Equal(t, float64(6), body["chunks_ingested"])
		assert.Equal(t, float64(6), float64(env.countChunks(processID)))

		statusCode, statusBody, err := env.Get("/ingestion-status/" + processID + "/" + versionID)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, statusCode)
		assert.Equal(t, "completed", statusBody["status"])
		assert.Equal(t, float64(6), statusBody["chunks_count"])
	})

	t.Run("ReingestReplacesChunks", func(t *testing.T) {
		status, _, err := env.Post("/ingest-process", map[string]any{
			"process_id":         processID,
			"process_version_id": versionID,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 6, env.countChunks(processID))
	})

	t.Run("IngestProcessNotApproved", func(t *testing.T) {
		draftID := env.insertProcess("Processo em rascunho", "Outro", "rascunho")
		draftVersionID := env.insertVersion(draftID, map[string]any{"descricao": "ainda em edição"})

		status, body, err := env.Post("/ingest-process", map[string]any{
			"process_id":         draftID,
			"process_version_id": draftVersionID,
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body["error"], "not approved")

		statusCode, statusBody, err := env.Get("/ingestion-status/" + draftID + "/" + draftVersionID)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, statusCode)
		assert.Equal(t, "failed", statusBody["status"])
	})

	t.Run("IngestProcessNotFound", func(t *testing.T) {
		status, _, err := env.Post("/ingest-process", map[string]any{
			"process_id":         "00000000-0000-0000-0000-000000000000",
			"process_version_id": versionID,
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("SearchKnowledge", func(t *testing.T) {
		status, body, err := env.Post("/search-knowledge", map[string]any{
			"query":           "Processo: Reserva do Salão de Festas",
			"match_threshold": 0.1,
			"match_count":     10,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status, "body: %v", body)

		assert.Equal(t, true, body["success"])
		results := body["results"].([]any)
		require.NotEmpty(t, results)
		first := results[0].(map[string]any)
		assert.Equal(t, "Reserva do Salão de Festas", first["process_name"])
	})

	t.Run("SearchKnowledgeHybrid", func(t *testing.T) {
		status, body, err := env.Post("/search-knowledge", map[string]any{
			"query":           "reserva do salão de festas",
			"match_threshold": 0.05,
			"use_hybrid":      true,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status, "body: %v", body)
		results := body["results"].([]any)
		assert.NotEmpty(t, results)
	})

	t.Run("ChatWithRAG", func(t *testing.T) {
		status, body, err := env.Post("/chat-with-rag", map[string]any{
			"message":         "Como faço a reserva do salão de festas?",
			"conversation_id": "conv-e2e",
			"user_id":         "user-e2e",
			"match_threshold": 0.05,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status, "body: %v", body)

		assert.Equal(t, true, body["success"])
		assert.NotEmpty(t, body["message"])
		assert.Equal(t, true, body["context_used"])
		assert.NotEmpty(t, body["sources"])

		var count int
		err = env.Pool.QueryRow(env.Ctx,
			`SELECT COUNT(*) FROM chat_messages WHERE conversation_id = 'conv-e2e'`).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("ChatStream", func(t *testing.T) {
		status, body, err := env.PostStream("/chat-with-rag/stream", map[string]any{
			"message":         "Qual o prazo da reserva?",
			"match_threshold": 0.05,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status, "body: %s", body)

		assert.Contains(t, body, "data: ")
		assert.Contains(t, body, `"delta"`)
		assert.Contains(t, body, `"done":true`)
	})

	t.Run("GenerateEmbeddings", func(t *testing.T) {
		status, body, err := env.Post("/generate-embeddings", map[string]any{"text": "regras da piscina"})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)

		embedding := body["embedding"].([]any)
		assert.Len(t, embedding, 1536)
		assert.Equal(t, "stub-embedding", body["model"])
	})

	t.Run("IngestDocumentFromStorage", func(t *testing.T) {
		const key = "docs/ata-assembleia.txt"
		content := strings.Repeat("Ata da assembleia sobre obras na fachada. ", 60)
		require.NoError(t, env.S3Client.PutText(env.Ctx, key, content))

		docID := env.insertDocument("Ata da Assembleia", "", key)

		status, body, err := env.Post("/ingest-document", map[string]any{"document_id": docID})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status, "body: %v", body)

		assert.Equal(t, true, body["success"])
		assert.Greater(t, body["chunks_count"], float64(1))

		var ingestionStatus string
		err = env.Pool.QueryRow(env.Ctx,
			`SELECT ingestion_status FROM documents WHERE id = $1`, docID).Scan(&ingestionStatus)
		require.NoError(t, err)
		assert.Equal(t, "completed", ingestionStatus)
	})

	t.Run("StatusList", func(t *testing.T) {
		status, body, err := env.Get("/ingestion-status?limit=1")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)

		items := body["items"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, true, body["has_more"])
		assert.NotEmpty(t, body["next_cursor"])

		status, body, err = env.Get("/ingestion-status?limit=1&cursor=" + body["next_cursor"].(string))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)
		assert.NotEmpty(t, body["items"])
	})

	t.Run("WorkerProcessesPendingRuns", func(t *testing.T) {
		pendingID := env.insertProcess("Controle de Mudanças", "Mudanças", "aprovado")
		pendingVersionID := env.insertVersion(pendingID, map[string]any{"descricao": "Mudanças só aos sábados."})

		_, err := env.Pool.Exec(env.Ctx,
			`INSERT INTO knowledge_base_ingestion_status (process_id, process_version_id, status) VALUES ($1, $2, 'pending')`,
			pendingID, pendingVersionID)
		require.NoError(t, err)

		worker := jobs.NewIngestionWorker(env.StatusRepo, env.Ingestion)
		require.NoError(t, worker.ProcessJobs(env.Ctx))

		statusCode, statusBody, err := env.Get("/ingestion-status/" + pendingID + "/" + pendingVersionID)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, statusCode)
		assert.Equal(t, "completed", statusBody["status"])
		assert.Greater(t, env.countChunks(pendingID), 0)
	})

	t.Run("CLI", func(t *testing.T) {
		env.BuildBinaries()

		out, err := env.RunGabi("status", processID, versionID)
		require.NoError(t, err, "output: %s", out)
		assert.Contains(t, out, "completed")

		out, err = env.RunGabi("search", "Processo: Reserva do Salão de Festas", "-t", "0.1")
		require.NoError(t, err, "output: %s", out)
		assert.Contains(t, out, "Reserva do Salão de Festas")

		out, err = env.RunGabi("chat", "Como reservo o salão?", "--no-stream")
		require.NoError(t, err, "output: %s", out)
		assert.Contains(t, out, "Resposta sobre:")
	})
}
