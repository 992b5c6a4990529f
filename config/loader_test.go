package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "groq", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.RAG.MaxIterations)
	assert.Equal(t, 5, cfg.RAG.ChunksPerIteration)
	assert.Equal(t, 0.7, cfg.RAG.ConfidenceThreshold)
	assert.Equal(t, 6000, cfg.RAG.ContextTokenBudget)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  http_port: 9090
llm:
  provider: openai
  api_key: sk-test
  timeout: 45s
rag:
  max_iterations: 5
  confidence_threshold: 0.8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5, cfg.RAG.MaxIterations)
	assert.Equal(t, 0.8, cfg.RAG.ConfidenceThreshold)
	// 未出现在文件中的字段保持默认值
	assert.Equal(t, 5, cfg.RAG.ChunksPerIteration)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9090\n"), 0o644))

	t.Setenv("LEGALRAG_SERVER_HTTP_PORT", "7070")
	t.Setenv("LEGALRAG_LLM_PROVIDER", "mock")
	t.Setenv("LEGALRAG_LLM_TIMEOUT", "90s")
	t.Setenv("LEGALRAG_RAG_CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("LEGALRAG_REDIS_ENABLED", "true")
	t.Setenv("LEGALRAG_LOG_OUTPUT_PATHS", "stdout, /var/log/legalrag.log")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 0.85, cfg.RAG.ConfidenceThreshold)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"stdout", "/var/log/legalrag.log"}, cfg.Log.OutputPaths)
}

func TestLoadCustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6060")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.HTTPPort)
}

func TestLoadValidatorRejects(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return assert.AnError }).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.HTTPPort = 0 }, "invalid HTTP port"},
		{"bad provider", func(c *Config) { c.LLM.Provider = "cohere" }, "unsupported llm provider"},
		{"bad iterations", func(c *Config) { c.RAG.MaxIterations = 0 }, "max_iterations"},
		{"bad chunk budget", func(c *Config) { c.RAG.ChunksPerIteration = -1 }, "chunks_per_iteration"},
		{"bad confidence", func(c *Config) { c.RAG.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	pg := DatabaseConfig{
		Driver: "postgres", Host: "localhost", Port: 5432,
		User: "legalrag", Password: "secret", Name: "legalrag", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=legalrag password=secret dbname=legalrag sslmode=disable",
		pg.DSN())

	sq := DatabaseConfig{Driver: "sqlite", Name: "legalrag.db"}
	assert.Equal(t, "legalrag.db", sq.DSN())

	unknown := DatabaseConfig{Driver: "mysql"}
	assert.Empty(t, unknown.DSN())
}
