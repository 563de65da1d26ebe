package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7500, cfg.RAG.ChunkSize)
	assert.Equal(t, 100, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 4, cfg.RAG.KPerVariant)
	assert.False(t, cfg.RAG.IncludeOriginal)
	assert.Equal(t, 2, cfg.Services.LLM.MaxRetries)
	assert.Zero(t, cfg.Services.LLM.Temperature)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "user_data.json", cfg.Credentials.Path)
	assert.Equal(t, "localhost:8080", cfg.Addr())
	assert.True(t, cfg.IsDevelopment())
	assert.Nil(t, cfg.GetTLSConfig())
	assert.Equal(t, 2*time.Minute, cfg.Services.LLM.TimeoutDuration())
	assert.Equal(t, time.Minute, cfg.Services.Embedding.TimeoutDuration())
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeFile(t, "docqa.yaml", `
rag:
  chunk_size: 1000
  chunk_overlap: 50
  include_original: true
services:
  llm:
    provider: gemini
    model: gemini-1.5-pro
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.True(t, cfg.RAG.IncludeOriginal)
	assert.Equal(t, "gemini", cfg.Services.LLM.Provider)
	assert.Equal(t, "gemini-1.5-pro", cfg.Services.LLM.Model)
	// untouched keys keep their defaults
	assert.Equal(t, 4, cfg.RAG.KPerVariant)
}

func TestLoadJSONFile(t *testing.T) {
	path := writeFile(t, "docqa.json", `{"database": {"driver": "memory"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "docqa.yaml", "rag:\n  k_per_variant: 2\n")
	t.Setenv("DOCQA_RAG__K_PER_VARIANT", "6")
	t.Setenv("DOCQA_SERVICES__LLM__MODEL", "mistral")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.RAG.KPerVariant)
	assert.Equal(t, "mistral", cfg.Services.LLM.Model)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"overlap not below chunk size", "rag:\n  chunk_size: 100\n  chunk_overlap: 100\n"},
		{"zero k", "rag:\n  k_per_variant: 0\n"},
		{"unknown llm provider", "services:\n  llm:\n    provider: parrot\n"},
		{"unknown embedding provider", "services:\n  embedding:\n    provider: parrot\n"},
		{"unknown driver", "database:\n  driver: postgres\n"},
		{"tls without cert", "server:\n  tls:\n    enabled: true\n"},
		{"negative retries", "services:\n  llm:\n    max_retries: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.yaml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestGetTLSConfigMinVersion(t *testing.T) {
	cfg := &Config{Server: ServerConfig{TLS: TLSConfig{Enabled: true, MinTLS: "1.2"}}}
	require.NotNil(t, cfg.GetTLSConfig())
	assert.Equal(t, uint16(0x0303), cfg.GetTLSConfig().MinVersion)

	cfg.Server.TLS.MinTLS = ""
	assert.Equal(t, uint16(0x0304), cfg.GetTLSConfig().MinVersion)
}
