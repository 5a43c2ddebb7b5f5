//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/villadeifiori/gabi/internal/api/handlers"
	"github.com/villadeifiori/gabi/internal/openai"
	"github.com/villadeifiori/gabi/internal/repository"
	"github.com/villadeifiori/gabi/internal/server"
	"github.com/villadeifiori/gabi/internal/service"
	"github.com/villadeifiori/gabi/internal/storage"
	"github.com/villadeifiori/gabi/internal/testutil"
)

const e2eToken = "e2e-service-token"

// E2ETestEnv holds all resources needed for E2E tests.
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	Ingestion    *service.IngestionService
	StatusRepo   *repository.IngestionStatusRepository
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server.
// Upstream model calls are replaced with a deterministic stub so the suite
// runs without an OpenAI key; everything else is real.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "gabi-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	env.ServerURL, env.ServerCloser = env.startServer(port)
	return env
}

// Cleanup releases all resources.
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

func (e *E2ETestEnv) startServer(port int) (string, func()) {
	processRepo := repository.NewProcessRepository(e.Pool)
	documentRepo := repository.NewDocumentRepository(e.Pool)
	chunkRepo := repository.NewKnowledgeChunkRepository(e.Pool)
	statusRepo := repository.NewIngestionStatusRepository(e.Pool)
	chatRepo := repository.NewChatMessageRepository(e.Pool)

	stub := &stubModelClient{}
	chunker := service.NewChunker(service.DefaultChunkConfig())
	ingestionSvc := service.NewIngestionService(chunker, stub, processRepo, documentRepo, chunkRepo, statusRepo).
		WithContentStore(e.S3Client)
	retrievalSvc := service.NewRetrievalService(stub, chunkRepo)
	chatSvc := service.NewChatService(retrievalSvc, stub, chatRepo)

	e.Ingestion = ingestionSvc
	e.StatusRepo = statusRepo

	router := server.NewRouter(server.RouterConfig{
		ServiceToken:     e2eToken,
		IngestHandler:    handlers.NewIngestHandler(ingestionSvc),
		SearchHandler:    handlers.NewSearchHandler(retrievalSvc),
		ChatHandler:      handlers.NewChatHandler(chatSvc),
		EmbeddingHandler: handlers.NewEmbeddingHandler(stub, "stub-embedding"),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.T.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// stubModelClient stands in for the OpenAI client. Embeddings are normalized
// bags of hashed words, so texts sharing words score high cosine similarity.
type stubModelClient struct{}

func (s *stubModelClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, openai.Usage, error) {
	if text == "" {
		return nil, openai.Usage{}, openai.ErrEmptyText
	}
	return embedText(text), openai.Usage{PromptTokens: len(strings.Fields(text)), TotalTokens: len(strings.Fields(text))}, nil
}

func (s *stubModelClient) GenerateChatCompletion(ctx context.Context, req openai.ChatRequest) (string, openai.Usage, error) {
	if len(req.Messages) == 0 {
		return "", openai.Usage{}, openai.ErrEmptyText
	}
	last := req.Messages[len(req.Messages)-1]
	return "Resposta sobre: " + last.Content, openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

func (s *stubModelClient) StreamChatCompletion(ctx context.Context, req openai.ChatRequest, emit func(delta string) error) error {
	reply, _, err := s.GenerateChatCompletion(ctx, req)
	if err != nil {
		return err
	}
	half := len(reply) / 2
	if err := emit(reply[:half]); err != nil {
		return err
	}
	return emit(reply[half:])
}

func embedText(text string) []float32 {
	vec := make([]float32, 1536)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%1536]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= scale
	}
	return vec
}

// insertProcess inserts a process row and returns its ID.
func (e *E2ETestEnv) insertProcess(name, category, status string) string {
	id := uuid.NewString()
	_, err := e.Pool.Exec(e.Ctx,
		`INSERT INTO processes (id, name, category, document_type, status) VALUES ($1, $2, $3, 'procedimento', $4)`,
		id, name, category, status)
	if err != nil {
		e.T.Fatalf("failed to insert process: %v", err)
	}
	return id
}

// insertVersion inserts a process version row and returns its ID.
func (e *E2ETestEnv) insertVersion(processID string, content map[string]any) string {
	id := uuid.NewString()
	raw, err := json.Marshal(content)
	if err != nil {
		e.T.Fatalf("failed to marshal version content: %v", err)
	}
	_, err = e.Pool.Exec(e.Ctx,
		`INSERT INTO process_versions (id, process_id, version, content) VALUES ($1, $2, 1, $3)`,
		id, processID, raw)
	if err != nil {
		e.T.Fatalf("failed to insert process version: %v", err)
	}
	return id
}

// insertDocument inserts a document row and returns its ID.
func (e *E2ETestEnv) insertDocument(title, content, storageKey string) string {
	id := uuid.NewString()
	_, err := e.Pool.Exec(e.Ctx,
		`INSERT INTO documents (id, title, content, category, document_type, storage_key) VALUES ($1, $2, $3, 'Obras', 'ata', $4)`,
		id, title, content, storageKey)
	if err != nil {
		e.T.Fatalf("failed to insert document: %v", err)
	}
	return id
}

func (e *E2ETestEnv) countChunks(processID string) int {
	var count int
	err := e.Pool.QueryRow(e.Ctx,
		`SELECT COUNT(*) FROM knowledge_base_documents WHERE process_id = $1`, processID).Scan(&count)
	if err != nil {
		e.T.Fatalf("failed to count chunks: %v", err)
	}
	return count
}

// Get performs an authenticated GET request.
func (e *E2ETestEnv) Get(path string) (int, map[string]any, error) {
	return e.doRequest(http.MethodGet, path, nil, e2eToken)
}

// Post performs an authenticated POST request.
func (e *E2ETestEnv) Post(path string, body any) (int, map[string]any, error) {
	return e.doRequest(http.MethodPost, path, body, e2eToken)
}

// PostNoAuth performs an unauthenticated POST request.
func (e *E2ETestEnv) PostNoAuth(path string, body any) (int, map[string]any, error) {
	return e.doRequest(http.MethodPost, path, body, "")
}

func (e *E2ETestEnv) doRequest(method, path string, body any, token string) (int, map[string]any, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	var decoded map[string]any
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("failed to parse response %q: %w", respBody, err)
		}
	}
	return resp.StatusCode, decoded, nil
}

// PostStream performs an authenticated POST and returns the raw body.
func (e *E2ETestEnv) PostStream(path string, body any) (int, string, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return 0, "", err
	}

	req, err := http.NewRequest(http.MethodPost, e.ServerURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Authorization", "Bearer "+e2eToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp.StatusCode, string(respBody), err
}

// BuildBinaries builds the gabi CLI binary for CLI-level tests.
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "gabi-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "gabi"), "./cmd/gabi")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build gabi: %v\n%s", err, out)
	}
}

// RunGabi runs the gabi CLI against the test server.
func (e *E2ETestEnv) RunGabi(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "gabi"), args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("GABI_API_TOKEN=%s", e2eToken),
		fmt.Sprintf("GABI_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
