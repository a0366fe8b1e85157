package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/alicia/internal/ports"
)

// HealthCheckConfig holds configuration for health checks
type HealthCheckConfig struct {
	Timeout time.Duration // Timeout for each individual health check
}

// DefaultHealthCheckConfig returns default health check configuration
func DefaultHealthCheckConfig() HealthCheckConfig {
	return HealthCheckConfig{
		Timeout: 5 * time.Second,
	}
}

// HealthHandler probes the durable log and the out-of-scope
// collaborator services through their ports, never through concrete
// adapter types, so a fake wired in tests is health-checkable too.
type HealthHandler struct {
	config     HealthCheckConfig
	db         *pgxpool.Pool
	llm        ports.LLMService
	tts        ports.TTSService
	vision     ports.VisionService
	embeddings ports.EmbeddingService
	ttsOn      bool
	visionOn   bool
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{config: DefaultHealthCheckConfig()}
}

func NewHealthHandlerWithDeps(
	db *pgxpool.Pool,
	llm ports.LLMService,
	tts ports.TTSService,
	vision ports.VisionService,
	embeddings ports.EmbeddingService,
	ttsOn, visionOn bool,
) *HealthHandler {
	return &HealthHandler{
		config:     DefaultHealthCheckConfig(),
		db:         db,
		llm:        llm,
		tts:        tts,
		vision:     vision,
		embeddings: embeddings,
		ttsOn:      ttsOn,
		visionOn:   visionOn,
	}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type DetailedHealthResponse struct {
	Status   string                   `json:"status"`
	Version  string                   `json:"version"`
	Services map[string]ServiceHealth `json:"services"`
}

type ServiceHealth struct {
	Status    string  `json:"status"`
	LatencyMs *int64  `json:"latency_ms,omitempty"`
	Error     *string `json:"error,omitempty"`
}

// Handle provides a basic health check endpoint
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// HandleDetailed provides a detailed health check endpoint that checks all dependencies
func (h *HealthHandler) HandleDetailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := DetailedHealthResponse{
		Version:  "1.0.0",
		Services: make(map[string]ServiceHealth),
	}

	if h.db != nil {
		response.Services["database"] = h.checkDatabase(ctx)
	}
	if h.llm != nil {
		response.Services["llm"] = h.checkLLM(ctx)
	}
	if h.ttsOn && h.tts != nil {
		response.Services["tts"] = h.checkTTS(ctx)
	}
	if h.visionOn && h.vision != nil {
		response.Services["vision"] = h.checkVision(ctx)
	}
	if h.embeddings != nil {
		response.Services["embedding"] = h.checkEmbedding(ctx)
	}

	response.Status = h.calculateOverallStatus(response.Services)

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) ServiceHealth {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	err := h.db.Ping(checkCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		errMsg := err.Error()
		return ServiceHealth{Status: "unhealthy", LatencyMs: &latency, Error: &errMsg}
	}
	return ServiceHealth{Status: "healthy", LatencyMs: &latency}
}

func (h *HealthHandler) checkLLM(ctx context.Context) ServiceHealth {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	_, err := h.llm.Chat(checkCtx, []ports.LLMMessage{
		{Role: "system", Content: "health check"},
		{Role: "user", Content: "ping"},
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		errMsg := err.Error()
		return ServiceHealth{Status: "unhealthy", LatencyMs: &latency, Error: &errMsg}
	}
	return ServiceHealth{Status: "healthy", LatencyMs: &latency}
}

func (h *HealthHandler) checkTTS(ctx context.Context) ServiceHealth {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	_, err := h.tts.Synthesize(checkCtx, "health", "平和")
	latency := time.Since(start).Milliseconds()
	if err != nil {
		errMsg := err.Error()
		return ServiceHealth{Status: "unhealthy", LatencyMs: &latency, Error: &errMsg}
	}
	return ServiceHealth{Status: "healthy", LatencyMs: &latency}
}

func (h *HealthHandler) checkVision(ctx context.Context) ServiceHealth {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	_, err := h.vision.Describe(checkCtx, onePixelJPEG)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		errMsg := err.Error()
		return ServiceHealth{Status: "unhealthy", LatencyMs: &latency, Error: &errMsg}
	}
	return ServiceHealth{Status: "healthy", LatencyMs: &latency}
}

func (h *HealthHandler) checkEmbedding(ctx context.Context) ServiceHealth {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	_, err := h.embeddings.Embed(checkCtx, "health check")
	latency := time.Since(start).Milliseconds()
	if err != nil {
		errMsg := err.Error()
		return ServiceHealth{Status: "unhealthy", LatencyMs: &latency, Error: &errMsg}
	}
	return ServiceHealth{Status: "healthy", LatencyMs: &latency}
}

// calculateOverallStatus determines the overall system status based on individual services
func (h *HealthHandler) calculateOverallStatus(services map[string]ServiceHealth) string {
	if len(services) == 0 {
		return "healthy"
	}

	degraded := false
	for name, service := range services {
		if service.Status == "unhealthy" {
			if name == "database" || name == "llm" {
				return "unhealthy"
			}
			degraded = true
		} else if service.Status == "degraded" {
			degraded = true
		}
	}
	if degraded {
		return "degraded"
	}
	return "healthy"
}

// onePixelJPEG is a bare JPEG start/end marker pair with no image data,
// used to ping the vision collaborator without touching the upload
// pipeline.
var onePixelJPEG = []byte{
	0xFF, 0xD8, 0xFF, 0xD9,
}
