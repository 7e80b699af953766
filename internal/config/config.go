// Package config loads and validates rassegna configuration.
//
// Configuration is resolved in three layers, later layers winning:
//  1. Built-in defaults (NewConfig)
//  2. YAML config file (rassegna.yaml in the data directory, or explicit path)
//  3. Environment variables (RASSEGNA_*)
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete rassegna configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	DataDir    string           `yaml:"data_dir" json:"data_dir"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// SearchConfig configures hybrid search parameters.
type SearchConfig struct {
	// LexicalWeight is the weight for keyword matching in fusion (0.0-1.0).
	// Must sum to 1.0 with SemanticWeight.
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// SemanticWeight is the weight for vector similarity in fusion (0.0-1.0).
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// RRFConstant is the reciprocal-rank-fusion smoothing parameter (k).
	// Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// CandidatePool is the per-source candidate pool size for hybrid mode.
	// Independent of the final result limit so fusion has enough material.
	CandidatePool int `yaml:"candidate_pool" json:"candidate_pool"`

	// DefaultLimit is the default number of results per search.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit caps the per-request result limit.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`
}

// RerankConfig configures the optional cross-encoder reranker.
type RerankConfig struct {
	// ModelPath is the ONNX cross-encoder model file for local inference.
	ModelPath string `yaml:"model_path" json:"model_path"`

	// RemoteEndpoint is the fallback rerank service URL (empty disables the tier).
	RemoteEndpoint string `yaml:"remote_endpoint" json:"remote_endpoint"`

	// RemoteModel is the model identifier sent to the remote service.
	RemoteModel string `yaml:"remote_model" json:"remote_model"`

	// BatchSize is the number of (query, document) pairs scored per batch.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// MaxTextLen truncates candidate text to this many bytes before scoring.
	MaxTextLen int `yaml:"max_text_len" json:"max_text_len"`

	// Pool caps how many fused candidates are fed to the reranker.
	Pool int `yaml:"pool" json:"pool"`

	// Timeout bounds a single rerank pass; on expiry the pre-rerank
	// ordering is kept.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// EmbeddingsConfig configures the query-embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama", "static", or empty for
	// auto-detection (ollama with static fallback).
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model name for the ollama provider.
	Model string `yaml:"model" json:"model"`

	// Dimensions is the embedding dimension (0 = auto-detect).
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// OllamaHost is the Ollama API endpoint (empty uses the default).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// BatchSize is the number of texts embedded per request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Defaults mirror the production deployment: candidate pool of 50 per
// source, 18 results per page, equal fusion weights.
const (
	DefaultRRFConstant   = 60
	DefaultCandidatePool = 50
	DefaultLimit         = 18
	DefaultMaxLimit      = 100
	DefaultRerankBatch   = 16
	DefaultRerankTextLen = 500
	DefaultRerankPool    = 50
	DefaultRerankTimeout = 10 * time.Second
)

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Search: SearchConfig{
			LexicalWeight:  0.5,
			SemanticWeight: 0.5,
			RRFConstant:    DefaultRRFConstant,
			CandidatePool:  DefaultCandidatePool,
			DefaultLimit:   DefaultLimit,
			MaxLimit:       DefaultMaxLimit,
		},
		Rerank: RerankConfig{
			ModelPath:      "", // Empty disables the local ONNX tier
			RemoteEndpoint: "",
			RemoteModel:    "rerank-small",
			BatchSize:      DefaultRerankBatch,
			MaxTextLen:     DefaultRerankTextLen,
			Pool:           DefaultRerankPool,
			Timeout:        DefaultRerankTimeout,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // Auto-detect: ollama, then static fallback
			Model:      "nomic-embed-text",
			Dimensions: 0,
			OllamaHost: "",
			BatchSize:  32,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8791,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// defaultDataDir returns ~/.rassegna, falling back to the temp directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".rassegna")
	}
	return filepath.Join(home, ".rassegna")
}

// Load reads configuration: defaults, then the YAML file at path (if it
// exists), then environment overrides. An empty path checks the default
// location and skips silently when absent.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	explicit := path != ""
	if path == "" {
		path = filepath.Join(cfg.DataDir, "rassegna.yaml")
	}

	if err := cfg.loadYAML(path); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, err
		}
		// Default location missing is fine
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadYAML merges a YAML file into the config.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies RASSEGNA_* environment variables.
// Env vars take precedence over file and defaults.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RASSEGNA_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("RASSEGNA_LEXICAL_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.LexicalWeight = w
		}
	}
	if v := os.Getenv("RASSEGNA_SEMANTIC_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("RASSEGNA_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("RASSEGNA_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("RASSEGNA_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("RASSEGNA_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("RASSEGNA_RERANK_MODEL_PATH"); v != "" {
		c.Rerank.ModelPath = v
	}
	if v := os.Getenv("RASSEGNA_RERANK_ENDPOINT"); v != "" {
		c.Rerank.RemoteEndpoint = v
	}
	if v := os.Getenv("RASSEGNA_RERANK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Rerank.Timeout = d
		}
	}
	if v := os.Getenv("RASSEGNA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RASSEGNA_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
			c.Server.Port = p
		}
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Search.LexicalWeight < 0 || c.Search.LexicalWeight > 1 {
		return fmt.Errorf("lexical_weight must be between 0 and 1, got %f", c.Search.LexicalWeight)
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}

	sum := c.Search.LexicalWeight + c.Search.SemanticWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("lexical_weight + semantic_weight must equal 1.0, got %.2f", sum)
	}

	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.CandidatePool <= 0 {
		return fmt.Errorf("candidate_pool must be positive, got %d", c.Search.CandidatePool)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("default_limit must be in 1..max_limit, got %d", c.Search.DefaultLimit)
	}

	if c.Rerank.BatchSize <= 0 {
		return fmt.Errorf("rerank.batch_size must be positive, got %d", c.Rerank.BatchSize)
	}
	if c.Rerank.MaxTextLen <= 0 {
		return fmt.Errorf("rerank.max_text_len must be positive, got %d", c.Rerank.MaxTextLen)
	}
	if c.Rerank.Timeout <= 0 {
		return fmt.Errorf("rerank.timeout must be positive, got %s", c.Rerank.Timeout)
	}

	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// parseFloat64 parses a string to float64, used for env override parsing.
func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
