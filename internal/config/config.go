package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the rag-chatbot API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Reranker   RerankerConfig   `yaml:"reranker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Chat       ChatConfig       `yaml:"chat"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds JWT verification settings. An empty secret disables auth.
type AuthConfig struct {
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	Provider   string `yaml:"provider"`
}

// GenerationConfig holds chat completion settings.
type GenerationConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// RerankerConfig holds the cross-encoder rerank service settings. An empty
// base URL disables reranking regardless of retrieval.use_reranker.
type RerankerConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RetrievalConfig holds the ranking pipeline settings.
type RetrievalConfig struct {
	Candidates  int     `yaml:"candidates"`
	TopK        int     `yaml:"top_k"`
	Alpha       float64 `yaml:"alpha"`
	MinHybrid   float64 `yaml:"min_hybrid"`
	AvgHybrid   float64 `yaml:"avg_hybrid"`
	MinSemantic float64 `yaml:"min_semantic"`
	AvgSemantic float64 `yaml:"avg_semantic"`
	MinRerank   float64 `yaml:"min_rerank"`
	AvgRerank   float64 `yaml:"avg_rerank"`
	MaxQueryLen int     `yaml:"max_query_len"`
	UseHybrid   *bool   `yaml:"use_hybrid"`
	UseReranker *bool   `yaml:"use_reranker"`
}

// ChatConfig holds conversation settings.
type ChatConfig struct {
	MaxHistory int `yaml:"max_history"`
}

// IngestConfig holds document chunking settings.
type IngestConfig struct {
	ChunkTarget  int `yaml:"chunk_target"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// UseHybridEnabled reports whether hybrid fusion is on (default true).
func (r *RetrievalConfig) UseHybridEnabled() bool {
	return r.UseHybrid == nil || *r.UseHybrid
}

// UseRerankerEnabled reports whether reranking is on (default true).
func (r *RetrievalConfig) UseRerankerEnabled() bool {
	return r.UseReranker == nil || *r.UseReranker
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o-mini"
	}
	if c.Generation.Temperature <= 0 {
		c.Generation.Temperature = 0.1
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 200
	}
	if c.Reranker.TimeoutSec <= 0 {
		c.Reranker.TimeoutSec = 10
	}
	if c.Retrieval.Candidates <= 0 {
		c.Retrieval.Candidates = 20
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.Alpha <= 0 {
		c.Retrieval.Alpha = 0.5
	}
	if c.Retrieval.MinHybrid <= 0 {
		c.Retrieval.MinHybrid = 0.1
	}
	if c.Retrieval.AvgHybrid <= 0 {
		c.Retrieval.AvgHybrid = 0.1
	}
	if c.Retrieval.MinSemantic <= 0 {
		c.Retrieval.MinSemantic = 0.35
	}
	if c.Retrieval.AvgSemantic <= 0 {
		c.Retrieval.AvgSemantic = 0.2
	}
	if c.Retrieval.MinRerank <= 0 {
		c.Retrieval.MinRerank = 0.5
	}
	if c.Retrieval.AvgRerank <= 0 {
		c.Retrieval.AvgRerank = 0.3
	}
	if c.Retrieval.MaxQueryLen <= 0 {
		c.Retrieval.MaxQueryLen = 2000
	}
	if c.Chat.MaxHistory <= 0 {
		c.Chat.MaxHistory = 3
	}
	if c.Ingest.ChunkTarget <= 0 {
		c.Ingest.ChunkTarget = 400
	}
	if c.Ingest.ChunkOverlap <= 0 {
		c.Ingest.ChunkOverlap = 90
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required")
	}
	if c.Retrieval.Alpha < 0 || c.Retrieval.Alpha > 1 {
		return fmt.Errorf("retrieval.alpha must be between 0 and 1, got %g", c.Retrieval.Alpha)
	}
	if c.Retrieval.UseRerankerEnabled() && c.Reranker.BaseURL == "" {
		return fmt.Errorf(
			"reranker.base_url is required while retrieval.use_reranker is enabled; set use_reranker: false to disable reranking",
		)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkTarget {
		return fmt.Errorf(
			"ingest.chunk_overlap must be smaller than chunk_target, got %d >= %d",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkTarget,
		)
	}
	if c.Auth.Secret != "" && (c.Auth.Issuer == "" || c.Auth.Audience == "") {
		return fmt.Errorf("auth.issuer and auth.audience are required when auth.secret is set")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
