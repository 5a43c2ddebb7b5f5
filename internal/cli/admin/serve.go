package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/villadeifiori/gabi/internal/api/handlers"
	"github.com/villadeifiori/gabi/internal/config"
	"github.com/villadeifiori/gabi/internal/database"
	"github.com/villadeifiori/gabi/internal/domain"
	"github.com/villadeifiori/gabi/internal/jobs"
	"github.com/villadeifiori/gabi/internal/openai"
	"github.com/villadeifiori/gabi/internal/pagination"
	"github.com/villadeifiori/gabi/internal/repository"
	"github.com/villadeifiori/gabi/internal/server"
	"github.com/villadeifiori/gabi/internal/service"
	"github.com/villadeifiori/gabi/internal/storage"
	"github.com/villadeifiori/gabi/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the Gabi knowledge-base API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the background ingestion worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	processRepo := repository.NewProcessRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewKnowledgeChunkRepository(pool)
	statusRepo := repository.NewIngestionStatusRepository(pool)
	chatRepo := repository.NewChatMessageRepository(pool)

	var openAIClient *openai.Client
	if cfg.HasOpenAI() {
		openAIClient = openai.NewClientWithConfig(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			EmbeddingModel: goopenai.EmbeddingModel(cfg.EmbeddingModel),
			ChatModel:      cfg.ChatModel,
		})
	} else {
		log.Println("OPENAI_API_KEY not set: ingestion, search and chat are disabled")
	}

	chunker := service.NewChunker(service.DefaultChunkConfig())
	ingestionSvc := service.NewIngestionService(chunker, openAIClient, processRepo, documentRepo, chunkRepo, statusRepo)

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		ingestionSvc = ingestionSvc.WithContentStore(s3Client)
	}

	var (
		ingestRunner handlers.IngestionRunner = ingestionSvc
		searcher     handlers.Searcher        = &noOpSearcher{}
		chatRunner   handlers.ChatRunner      = &noOpChatRunner{}
		embedGen     handlers.EmbeddingGenerator
		worker       *jobs.Worker
	)

	if cfg.HasOpenAI() {
		retrievalSvc := service.NewRetrievalService(openAIClient, chunkRepo)
		searcher = retrievalSvc
		chatRunner = service.NewChatService(retrievalSvc, openAIClient, chatRepo)
		embedGen = openAIClient

		noWorker, _ := cmd.Flags().GetBool("no-worker")
		if !noWorker && cfg.IngestPollInterval > 0 {
			processor := jobs.NewIngestionWorker(statusRepo, ingestionSvc)
			worker = jobs.NewWorker(processor, time.Duration(cfg.IngestPollInterval)*time.Second)
			go worker.Start(ctx)
			log.Println("ingestion worker started")
		}
	} else {
		ingestRunner = &statusOnlyIngestionRunner{svc: ingestionSvc}
	}

	router := server.NewRouter(server.RouterConfig{
		ServiceToken:     cfg.ServiceToken,
		IngestHandler:    handlers.NewIngestHandler(ingestRunner),
		SearchHandler:    handlers.NewSearchHandler(searcher),
		ChatHandler:      handlers.NewChatHandler(chatRunner),
		EmbeddingHandler: handlers.NewEmbeddingHandler(embedGen, cfg.EmbeddingModel),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// statusOnlyIngestionRunner keeps status reads working when no embedding
// provider is configured; triggering an ingestion is refused.
type statusOnlyIngestionRunner struct {
	svc *service.IngestionService
}

func (r *statusOnlyIngestionRunner) IngestProcess(ctx context.Context, processID, versionID string) (*service.IngestResult, error) {
	return nil, domain.ErrEmbeddingNotConfigured
}

func (r *statusOnlyIngestionRunner) IngestDocument(ctx context.Context, documentID string) (*service.IngestResult, error) {
	return nil, domain.ErrEmbeddingNotConfigured
}

func (r *statusOnlyIngestionRunner) GetStatus(ctx context.Context, processID, versionID string) (*domain.IngestionStatus, error) {
	return r.svc.GetStatus(ctx, processID, versionID)
}

func (r *statusOnlyIngestionRunner) ListStatuses(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.StatusPageResult, error) {
	return r.svc.ListStatuses(ctx, cursor, limit)
}

type noOpSearcher struct{}

func (s *noOpSearcher) Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error) {
	return nil, domain.ErrEmbeddingNotConfigured
}

type noOpChatRunner struct{}

func (r *noOpChatRunner) Chat(ctx context.Context, input service.ChatInput) (*service.ChatOutput, error) {
	return nil, domain.ErrChatNotConfigured
}

func (r *noOpChatRunner) ChatStream(ctx context.Context, input service.ChatInput, emit func(delta string) error) (*service.ChatOutput, error) {
	return nil, domain.ErrChatNotConfigured
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	}

	if upErr == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
