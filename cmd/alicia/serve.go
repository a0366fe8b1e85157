package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/longregen/alicia/internal/adapters/auth"
	"github.com/longregen/alicia/internal/adapters/embedding"
	adapterhttp "github.com/longregen/alicia/internal/adapters/http"
	"github.com/longregen/alicia/internal/adapters/id"
	"github.com/longregen/alicia/internal/adapters/llm"
	"github.com/longregen/alicia/internal/adapters/postgres"
	"github.com/longregen/alicia/internal/adapters/rediscache"
	"github.com/longregen/alicia/internal/adapters/songs"
	"github.com/longregen/alicia/internal/adapters/speech"
	"github.com/longregen/alicia/internal/adapters/vision"
	"github.com/longregen/alicia/internal/application/generator"
	"github.com/longregen/alicia/internal/application/intent"
	"github.com/longregen/alicia/internal/application/memory"
	"github.com/longregen/alicia/internal/application/memorywriter"
	"github.com/longregen/alicia/internal/application/orchestrator"
	"github.com/longregen/alicia/internal/application/retrieval"
	"github.com/longregen/alicia/internal/application/streaming"
	"github.com/longregen/alicia/internal/application/summarizer"
	"github.com/longregen/alicia/internal/application/tools"
	"github.com/longregen/alicia/internal/config"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	cache, err := rediscache.New(cfg.Cache.RedisURL, cfg.Cache.DefaultTTLS)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer cache.Close()

	if err := os.MkdirAll(cfg.Songs.CatalogRoot, 0o755); err != nil {
		return fmt.Errorf("create song catalog root: %w", err)
	}
	catalog, err := songs.Load(cfg.Songs.CatalogRoot)
	if err != nil {
		return fmt.Errorf("load song catalog: %w", err)
	}

	users := postgres.NewUserRepository(pool)
	entries := postgres.NewConversationEntryRepository(pool)
	knowledgeBuf := postgres.NewKnowledgeBufferRepository(pool)
	memories := postgres.NewMemoryRepository(pool)
	memoryUpdates := postgres.NewMemoryUpdateRepository(pool)
	txMgr := postgres.NewTransactionManager(pool)

	ids := id.New()
	llmClient := llm.NewClient(cfg.LLM.URL, cfg.LLM.APIKey, cfg.LLM.Model)
	embeddingClient := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	ttsAdapter := speech.NewTTSAdapter(cfg.TTS.URL, "kokoro", cfg.Agent.VoiceByTone)
	visionClient := vision.NewClient(cfg.Vision.URL, cfg.Vision.APIKey, cfg.Vision.Model)

	store := memory.New(users, entries, knowledgeBuf, memories, memoryUpdates, cache, embeddingClient, ids, cfg.Cache.DefaultTTLS, cfg.Retrieval.SimilarityThreshold)
	registry := tools.BuildStandardRegistry(store, catalog)

	planner := retrieval.New(store, registry, llmClient)
	writer := memorywriter.New(store, llmClient)
	summarize := summarizer.New(store, llmClient, cfg.Summary.RawContextLimit, cfg.Summary.NotZipCount)
	intentPlanner := intent.New(llmClient, catalog)
	gen := generator.New(llmClient, cfg.Agent.AllowedExpressions, cfg.Agent.AllowedTones)
	streamer := streaming.New(ttsAdapter, catalog)
	validator := auth.NewValidator(users)

	orch := &orchestrator.Orchestrator{
		Tokens:       validator,
		Store:        store,
		Entries:      entries,
		TxMgr:        txMgr,
		IDs:          ids,
		Planner:      planner,
		IntentPlaner: intentPlanner,
		Generator:    gen,
		Streamer:     streamer,
		Writer:       writer,
		Summarizer:   summarize,
		Vision:       visionClient,
		ImagesRoot:   cfg.Images.StorageRoot,
	}

	server := adapterhttp.NewServer(cfg, pool, orch, llmClient, ttsAdapter, visionClient, embeddingClient)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		log.Println("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	return nil
}
