package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
checker:
  provider: "languagetool"
  url: "http://localhost:8010"
  level: "default"
  enabled_rules: []
  rate_limit: 5
  timeout: 10s

ollama:
  base_url: "http://localhost:11434"
  model: "llama3"

processor:
  mode: "batch"
  language: "es"

payment:
  jwt_secret: "file-secret"
  token_ttl: 15m
  single_use: true

database:
  url: "postgres://localhost:5432/test"

server:
  addr: ":9000"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "http://localhost:8010", config.Checker.URL)
	assert.Equal(t, "default", config.Checker.Level)
	assert.Empty(t, config.Checker.EnabledRules)
	assert.Equal(t, []string{"grammar", "style", "typos"}, config.Checker.EnabledCategories)
	assert.Equal(t, 5.0, config.Checker.RateLimit)
	assert.Equal(t, 10*time.Second, config.Checker.Timeout)
	assert.Equal(t, "llama3", config.Ollama.Model)
	assert.Equal(t, "batch", config.Processor.Mode)
	assert.Equal(t, "es", config.Processor.Language)
	assert.Equal(t, 15*time.Minute, config.Payment.TokenTTL)
	assert.True(t, config.Payment.SingleUse)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "redeemed_tokens", config.Database.TableName)
	assert.Equal(t, ":9000", config.Server.Addr)
	assert.Equal(t, 50, config.Server.MaxUploadMB)
	assert.Equal(t, 100, config.Server.QueueSize)

	assert.Empty(t, config.ValidateServer())
}

func TestDefaultConfig(t *testing.T) {
	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "languagetool", config.Checker.Provider)
	assert.Equal(t, "picky", config.Checker.Level)
	assert.Equal(t, "paragraph", config.Processor.Mode)
	assert.Equal(t, "en", config.Processor.Language)
	assert.Equal(t, 30*time.Minute, config.Payment.TokenTTL)
	assert.Contains(t, config.Checker.EnabledRules, "NO_SPACE_BEFORE_PUNCTUATION")
	assert.Equal(t, []string{"COLLOQUIALISMS"}, config.Checker.DisabledCategories)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "invalid config",
			mutate: func(c *Config) {
				c.Checker.URL = "invalid-url"
				c.Checker.RateLimit = -1
				c.Processor.Mode = "sentence"
				c.Processor.Language = "xx"
				c.Server.MaxUploadMB = -5
				c.Server.QueueSize = -1
			},
			errorMessages: []string{
				"checker.url: invalid LanguageTool URL",
				"checker.rate_limit: rate_limit must be positive",
				"processor.mode: mode must be paragraph or batch",
				"processor.language: unsupported language: xx",
				"server.max_upload_mb: max_upload_mb must be positive",
				"server.queue_size: queue_size must be positive",
			},
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.Checker.Provider = "grammarly"
			},
			errorMessages: []string{
				"checker.provider: unknown provider: grammarly",
			},
		},
		{
			name: "ollama provider checks its url",
			mutate: func(c *Config) {
				c.Checker.Provider = "ollama"
				c.Checker.URL = "ignored"
				c.Ollama.BaseURL = "localhost"
			},
			errorMessages: []string{
				"ollama.base_url: invalid Ollama base URL",
			},
		},
		{
			name: "half credentials",
			mutate: func(c *Config) {
				c.Checker.Username = "me@example.com"
			},
			errorMessages: []string{
				"checker.api_key: username and api_key must be set together",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			applyDefaults(config)
			tt.mutate(config)

			errors := config.Validate()
			assert.Len(t, errors, len(tt.errorMessages))

			for i, msg := range tt.errorMessages {
				if i < len(errors) {
					assert.Contains(t, errors[i].Error(), msg)
				}
			}
		})
	}
}

func TestValidateServer(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	errors := config.ValidateServer()
	require.Len(t, errors, 1)
	assert.Equal(t, "payment.jwt_secret", errors[0].Field)

	config.Payment.JWTSecret = "secret"
	assert.Empty(t, config.ValidateServer())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("LANGUAGETOOL_URL", "http://env-lt:8010")
	t.Setenv("LANGUAGETOOL_USERNAME", "env-user")
	t.Setenv("LANGUAGETOOL_API_KEY", "env-key")
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("PORT", "3000")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "env-secret", config.Payment.JWTSecret)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, "http://env-lt:8010", config.Checker.URL)
	assert.Equal(t, "env-user", config.Checker.Username)
	assert.Equal(t, "env-key", config.Checker.APIKey)
	assert.Equal(t, "http://env-ollama:11434", config.Ollama.BaseURL)
	assert.Equal(t, ":3000", config.Server.Addr)
}

func TestCheckOptions(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	options := config.CheckOptions("")
	assert.Equal(t, "en", options.Language)
	assert.Equal(t, "picky", options.Level)

	options = config.CheckOptions("fr")
	assert.Equal(t, "fr", options.Language)
}
