// Package config provides application configuration management using koanf
package config

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides, e.g. DOCQA_RAG__CHUNK_SIZE=4000.
const EnvPrefix = "DOCQA_"

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `koanf:"server"`

	// Vector index storage
	Database DatabaseConfig `koanf:"database"`

	// Credential file
	Credentials CredentialsConfig `koanf:"credentials"`

	// External services
	Services ServicesConfig `koanf:"services"`

	// Retrieval pipeline tuning
	RAG RAGConfig `koanf:"rag"`

	// Security settings
	Security SecurityConfig `koanf:"security"`

	// Application settings
	App AppConfig `koanf:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string    `koanf:"host"`
	Port           int       `koanf:"port"`
	ReadTimeout    int       `koanf:"read_timeout"`  // seconds
	WriteTimeout   int       `koanf:"write_timeout"` // seconds
	MaxUploadBytes int64     `koanf:"max_upload_bytes"`
	TLS            TLSConfig `koanf:"tls"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	MinTLS   string `koanf:"min_version"` // "1.2" or "1.3"
}

// DatabaseConfig holds vector store configuration
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // "sqlite" or "memory"
	Path   string `koanf:"path"`
}

// CredentialsConfig holds the credential store location
type CredentialsConfig struct {
	Path string `koanf:"path"`
}

// ServicesConfig holds external service configuration
type ServicesConfig struct {
	Embedding EmbeddingConfig `koanf:"embedding"`
	LLM       LLMConfig       `koanf:"llm"`
}

// EmbeddingConfig selects and configures the embedding service
type EmbeddingConfig struct {
	Provider string `koanf:"provider"` // "ollama", "openai", "gemini", "fastembed"
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
	CacheDir string `koanf:"cache_dir"` // fastembed model cache
	Timeout  int    `koanf:"timeout"`   // seconds
}

// LLMConfig selects and configures the language model service
type LLMConfig struct {
	Provider          string  `koanf:"provider"` // "ollama", "gemini", "openai", "anthropic"
	Model             string  `koanf:"model"`
	BaseURL           string  `koanf:"base_url"`
	APIKey            string  `koanf:"api_key"`
	Temperature       float64 `koanf:"temperature"`
	MaxTokens         int     `koanf:"max_tokens"`
	Timeout           int     `koanf:"timeout"` // seconds, per attempt
	MaxRetries        int     `koanf:"max_retries"`
	RequestsPerSecond float64 `koanf:"requests_per_second"` // 0 disables rate limiting
}

// RAGConfig holds chunking and retrieval settings
type RAGConfig struct {
	ChunkSize       int  `koanf:"chunk_size"`
	ChunkOverlap    int  `koanf:"chunk_overlap"`
	KPerVariant     int  `koanf:"k_per_variant"`
	IncludeOriginal bool `koanf:"include_original"`
	MaxPassages     int  `koanf:"max_passages"` // 0 means no cap
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	ErrorMode string `koanf:"error_mode"` // "detailed" or "secure"
}

// AppConfig holds general application settings
type AppConfig struct {
	Environment string `koanf:"environment"` // "development", "staging", "production"
	LogLevel    string `koanf:"log_level"`   // "debug", "info", "warn", "error"
	LogFormat   string `koanf:"log_format"`  // "text" or "json"
}

// Load loads configuration from multiple sources with precedence:
// 1. defaults
// 2. path, or config.yaml / config.json when path is empty
// 3. Environment variables (highest precedence)
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	setDefaults(k)

	if path != "" {
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			return nil, fmt.Errorf("error loading %s: %w", path, err)
		}
	} else {
		loadConfigFiles(k)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// envKey maps DOCQA_SERVICES__LLM__MODEL to services.llm.model.
func envKey(k, v string) (string, any) {
	k = strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	return strings.ReplaceAll(k, "__", "."), v
}

// setDefaults sets default configuration values
func setDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		// Server defaults
		"server.host":             "localhost",
		"server.port":             8080,
		"server.read_timeout":     30,
		"server.write_timeout":    300,
		"server.max_upload_bytes": 32 << 20,
		"server.tls.enabled":      false,
		"server.tls.min_version":  "1.3",

		// Storage defaults
		"database.driver":  "sqlite",
		"database.path":    "vector_store.db",
		"credentials.path": "user_data.json",

		// Services defaults
		"services.embedding.provider": "ollama",
		"services.embedding.model":    "nomic-embed-text",
		"services.embedding.base_url": "http://localhost:11434",
		"services.embedding.timeout":  60,
		"services.llm.provider":       "ollama",
		"services.llm.model":          "llama3",
		"services.llm.base_url":       "http://localhost:11434",
		"services.llm.temperature":    0.0,
		"services.llm.max_tokens":     0,
		"services.llm.timeout":        120,
		"services.llm.max_retries":    2,

		// Retrieval defaults
		"rag.chunk_size":       7500,
		"rag.chunk_overlap":    100,
		"rag.k_per_variant":    4,
		"rag.include_original": false,
		"rag.max_passages":     0,

		// Security defaults
		"security.error_mode": "detailed",

		// App defaults
		"app.environment": "development",
		"app.log_level":   "info",
		"app.log_format":  "text",
	}

	for key, value := range defaults {
		_ = k.Set(key, value) // Ignore error for setting defaults
	}
}

// loadConfigFiles loads configuration from files in the working directory
func loadConfigFiles(k *koanf.Koanf) {
	for _, name := range []string{"config.yaml", "config.json"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := k.Load(file.Provider(name), parserFor(name)); err != nil {
			slog.Warn("failed to load config file", "file", name, "error", err)
		}
	}
}

func parserFor(path string) koanf.Parser {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return json.Parser()
	}
	return yaml.Parser()
}

var (
	embeddingProviders = map[string]bool{"ollama": true, "openai": true, "gemini": true, "fastembed": true}
	llmProviders       = map[string]bool{"ollama": true, "openai": true, "gemini": true, "anthropic": true}
)

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert file is required when TLS is enabled")
		}
		if cfg.Server.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key file is required when TLS is enabled")
		}
		if _, err := os.Stat(cfg.Server.TLS.CertFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS cert file does not exist: %s", cfg.Server.TLS.CertFile)
		}
		if _, err := os.Stat(cfg.Server.TLS.KeyFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file does not exist: %s", cfg.Server.TLS.KeyFile)
		}
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver: %q", cfg.Database.Driver)
	}

	if !embeddingProviders[cfg.Services.Embedding.Provider] {
		return fmt.Errorf("unknown embedding provider: %q", cfg.Services.Embedding.Provider)
	}
	if !llmProviders[cfg.Services.LLM.Provider] {
		return fmt.Errorf("unknown llm provider: %q", cfg.Services.LLM.Provider)
	}
	if cfg.Services.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm max_retries must not be negative")
	}

	if cfg.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag chunk_size must be positive")
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return fmt.Errorf("rag chunk_overlap must be in [0, chunk_size)")
	}
	if cfg.RAG.KPerVariant <= 0 {
		return fmt.Errorf("rag k_per_variant must be positive")
	}
	if cfg.RAG.MaxPassages < 0 {
		return fmt.Errorf("rag max_passages must not be negative")
	}

	return nil
}

// GetTLSConfig returns a TLS configuration based on the config
func (c *Config) GetTLSConfig() *tls.Config {
	if !c.Server.TLS.Enabled {
		return nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}

	switch c.Server.TLS.MinTLS {
	case "1.2":
		tlsConfig.MinVersion = tls.VersionTLS12
	default:
		tlsConfig.MinVersion = tls.VersionTLS13
	}

	return tlsConfig
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// TimeoutDuration returns the per-attempt language model timeout
func (c LLMConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// TimeoutDuration returns the bound on a single embedding request
func (c EmbeddingConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
