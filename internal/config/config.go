package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for the runtime.
type Config struct {
	LLM       LLMConfig       `json:"llm"`
	Embedding EmbeddingConfig `json:"embedding"`
	TTS       TTSConfig       `json:"tts"`
	Vision    VisionConfig    `json:"vision"`
	Database  DatabaseConfig  `json:"database"`
	Cache     CacheConfig     `json:"cache"`
	Server    ServerConfig    `json:"server"`
	Images    ImagesConfig    `json:"images"`
	Songs     SongsConfig     `json:"songs"`
	Summary   SummaryConfig   `json:"summary"`
	Retrieval RetrievalConfig `json:"retrieval"`
	Agent     AgentConfig     `json:"agent"`
}

type LLMConfig struct {
	URL         string  `json:"url"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type EmbeddingConfig struct {
	URL        string `json:"url"`
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

type TTSConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
	Voice  string `json:"voice"`
}

type VisionConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

type DatabaseConfig struct {
	PostgresURL string `json:"postgres_url"`
}

type CacheConfig struct {
	RedisURL    string `json:"redis_url"`
	DefaultTTLS int    `json:"default_ttl_seconds"`
}

type ServerConfig struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	CORSOrigins []string `json:"cors_origins"`
}

type ImagesConfig struct {
	StorageRoot string `json:"storage_root"`
}

type SongsConfig struct {
	CatalogRoot string `json:"catalog_root"`
}

// SummaryConfig carries the summarizer's configurable thresholds as
// config rather than hardcoded constants.
type SummaryConfig struct {
	RawContextLimit int `json:"raw_context_limit"`
	NotZipCount     int `json:"not_zip_count"`
}

// RetrievalConfig carries the retrieval planner's configurable
// similarity cutoff.
type RetrievalConfig struct {
	SimilarityThreshold float32 `json:"similarity_threshold"`
}

// AgentConfig carries the closed vocabularies the generator must draw
// `expression` and `tone` from, plus the tone-to-voice table the TTS
// adapter uses to pick a preset.
type AgentConfig struct {
	AllowedExpressions []string          `json:"allowed_expressions"`
	AllowedTones       []string          `json:"allowed_tones"`
	VoiceByTone        map[string]string `json:"voice_by_tone"`
}

func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".kanon")

	return &Config{
		LLM: LLMConfig{
			URL:         "http://localhost:8000/v1",
			Model:       "Qwen/Qwen3-8B-AWQ",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Embedding: EmbeddingConfig{
			URL:        "http://localhost:11434/v1",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		TTS: TTSConfig{
			URL:   "http://localhost:8001/v1",
			Voice: "af_sarah",
		},
		Vision: VisionConfig{
			URL:   "",
			Model: "",
		},
		Database: DatabaseConfig{
			PostgresURL: "",
		},
		Cache: CacheConfig{
			RedisURL:    "redis://localhost:6379/0",
			DefaultTTLS: 3600,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Images: ImagesConfig{
			StorageRoot: filepath.Join(dataDir, "images"),
		},
		Songs: SongsConfig{
			CatalogRoot: filepath.Join(dataDir, "songs"),
		},
		Summary: SummaryConfig{
			RawContextLimit: 100,
			NotZipCount:     20,
		},
		Retrieval: RetrievalConfig{
			SimilarityThreshold: 0.50,
		},
		Agent: AgentConfig{
			AllowedExpressions: []string{"平静", "开心", "伤心", "惊讶", "生气", "害羞", "唱歌"},
			AllowedTones:       []string{"平和", "愉悦", "伤感", "兴奋", "调皮"},
			VoiceByTone: map[string]string{
				"平和": "af_sarah",
				"愉悦": "af_sarah",
				"伤感": "af_sarah",
				"兴奋": "af_sarah",
				"调皮": "af_sarah",
			},
		},
	}
}

func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

func envFloat32(key string, target *float32) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*target = float32(f)
		}
	}
}

func envStringSlice(key string, target *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}

// Load loads configuration from a JSON config file overlaid with
// KANON_* environment variable overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse config file %s: %v\n", configPath, err)
		}
	}

	envString("KANON_LLM_URL", &cfg.LLM.URL)
	envString("KANON_LLM_API_KEY", &cfg.LLM.APIKey)
	envString("KANON_LLM_MODEL", &cfg.LLM.Model)
	envInt("KANON_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	envFloat("KANON_LLM_TEMPERATURE", &cfg.LLM.Temperature)

	envString("KANON_EMBEDDING_URL", &cfg.Embedding.URL)
	envString("KANON_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	envString("KANON_EMBEDDING_MODEL", &cfg.Embedding.Model)
	envInt("KANON_EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)

	envString("KANON_TTS_URL", &cfg.TTS.URL)
	envString("KANON_TTS_API_KEY", &cfg.TTS.APIKey)
	envString("KANON_TTS_VOICE", &cfg.TTS.Voice)

	envString("KANON_VISION_URL", &cfg.Vision.URL)
	envString("KANON_VISION_API_KEY", &cfg.Vision.APIKey)
	envString("KANON_VISION_MODEL", &cfg.Vision.Model)

	envString("KANON_POSTGRES_URL", &cfg.Database.PostgresURL)

	envString("KANON_REDIS_URL", &cfg.Cache.RedisURL)
	envInt("KANON_CACHE_DEFAULT_TTL_SECONDS", &cfg.Cache.DefaultTTLS)

	envString("KANON_SERVER_HOST", &cfg.Server.Host)
	envInt("KANON_SERVER_PORT", &cfg.Server.Port)
	envStringSlice("KANON_CORS_ORIGINS", &cfg.Server.CORSOrigins)

	envString("KANON_IMAGES_STORAGE_ROOT", &cfg.Images.StorageRoot)
	envString("KANON_SONGS_CATALOG_ROOT", &cfg.Songs.CatalogRoot)

	envInt("KANON_SUMMARY_RAW_CONTEXT_LIMIT", &cfg.Summary.RawContextLimit)
	envInt("KANON_SUMMARY_NOT_ZIP_COUNT", &cfg.Summary.NotZipCount)

	envFloat32("KANON_RETRIEVAL_SIMILARITY_THRESHOLD", &cfg.Retrieval.SimilarityThreshold)

	envStringSlice("KANON_AGENT_ALLOWED_EXPRESSIONS", &cfg.Agent.AllowedExpressions)
	envStringSlice("KANON_AGENT_ALLOWED_TONES", &cfg.Agent.AllowedTones)

	if err := os.MkdirAll(cfg.Images.StorageRoot, 0755); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsTTSConfigured() bool {
	return c.TTS.URL != ""
}

func (c *Config) IsVisionConfigured() bool {
	return c.Vision.URL != ""
}

func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "LLM temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, "LLM max_tokens must be positive")
	}
	if c.LLM.URL == "" {
		errs = append(errs, "LLM URL is required")
	} else if !isValidURL(c.LLM.URL) {
		errs = append(errs, "LLM URL must be a valid URL")
	}

	if c.Database.PostgresURL == "" {
		errs = append(errs, "PostgreSQL URL is required")
	} else if !isValidURL(c.Database.PostgresURL) {
		errs = append(errs, "PostgreSQL URL must be a valid URL")
	}

	if c.Cache.RedisURL == "" {
		errs = append(errs, "Redis URL is required")
	}
	if c.Cache.DefaultTTLS < 1 {
		errs = append(errs, "cache default TTL must be positive")
	}

	if c.Embedding.URL != "" && !isValidURL(c.Embedding.URL) {
		errs = append(errs, "Embedding URL must be a valid URL")
	}
	if c.Embedding.Dimensions < 1 {
		errs = append(errs, "Embedding dimensions must be positive")
	}

	if c.TTS.URL != "" && !isValidURL(c.TTS.URL) {
		errs = append(errs, "TTS URL must be a valid URL")
	}
	if c.Vision.URL != "" && !isValidURL(c.Vision.URL) {
		errs = append(errs, "Vision URL must be a valid URL")
	}

	if c.Summary.RawContextLimit < 1 {
		errs = append(errs, "summary raw_context_limit must be positive")
	}
	if c.Summary.NotZipCount < 1 || c.Summary.NotZipCount > c.Summary.RawContextLimit {
		errs = append(errs, "summary not_zip_count must be positive and no greater than raw_context_limit")
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		errs = append(errs, "retrieval similarity_threshold must be between 0 and 1")
	}

	if len(c.Agent.AllowedExpressions) == 0 {
		errs = append(errs, "agent allowed_expressions must not be empty")
	}
	if len(c.Agent.AllowedTones) == 0 {
		errs = append(errs, "agent allowed_tones must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func getConfigPath() string {
	if path := os.Getenv("KANON_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	configDir := filepath.Join(homeDir, ".config", "kanon")
	configPath := filepath.Join(configDir, "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	altPath := filepath.Join(homeDir, ".kanon", "config.json")
	if _, err := os.Stat(altPath); err == nil {
		return altPath
	}

	return configPath
}
