package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/alicia/internal/adapters/http/handlers"
	"github.com/longregen/alicia/internal/adapters/http/middleware"
	"github.com/longregen/alicia/internal/application/orchestrator"
	"github.com/longregen/alicia/internal/config"
	"github.com/longregen/alicia/internal/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the chat HTTP surface on top of the Turn Orchestrator.
type Server struct {
	config       *config.Config
	router       *chi.Mux
	httpServer   *http.Server
	db           *pgxpool.Pool
	orchestrator *orchestrator.Orchestrator
	llm          ports.LLMService
	tts          ports.TTSService
	vision       ports.VisionService
	embeddings   ports.EmbeddingService
}

func NewServer(
	cfg *config.Config,
	db *pgxpool.Pool,
	orch *orchestrator.Orchestrator,
	llm ports.LLMService,
	tts ports.TTSService,
	vision ports.VisionService,
	embeddings ports.EmbeddingService,
) *Server {
	s := &Server{
		config:       cfg,
		db:           db,
		orchestrator: orch,
		llm:          llm,
		tts:          tts,
		vision:       vision,
		embeddings:   embeddings,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(s.config.Server.CORSOrigins))
	r.Use(middleware.Metrics)

	healthHandler := handlers.NewHealthHandler()
	detailedHealthHandler := handlers.NewHealthHandlerWithDeps(
		s.db,
		s.llm,
		s.tts,
		s.vision,
		s.embeddings,
		s.config.IsTTSConfigured(),
		s.config.IsVisionConfigured(),
	)
	r.Get("/health", healthHandler.Handle)
	r.Get("/health/detailed", detailedHealthHandler.HandleDetailed)
	r.Handle("/metrics", promhttp.Handler())

	chatHandler := handlers.NewChatHandler(s.orchestrator)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat/stream", chatHandler.StreamText)
		r.Post("/chat/image", chatHandler.StreamImage)
		r.Post("/chat/history", chatHandler.History)
		r.Post("/chat/image/fetch", chatHandler.FetchImage)
	})

	s.router = r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses have no fixed write deadline
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting HTTP server on %s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *chi.Mux {
	return s.router
}
