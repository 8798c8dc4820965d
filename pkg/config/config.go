package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xhad/docfix/internal/models"
	"github.com/xhad/docfix/pkg/checker"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Checker struct {
		Provider           string        `yaml:"provider"`
		URL                string        `yaml:"url"`
		Level              string        `yaml:"level"`
		EnabledCategories  []string      `yaml:"enabled_categories"`
		EnabledRules       []string      `yaml:"enabled_rules"`
		DisabledCategories []string      `yaml:"disabled_categories"`
		Username           string        `yaml:"username"`
		APIKey             string        `yaml:"api_key"`
		RateLimit          float64       `yaml:"rate_limit"`
		Timeout            time.Duration `yaml:"timeout"`
	} `yaml:"checker"`

	Ollama struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"ollama"`

	Processor struct {
		Mode     string `yaml:"mode"`
		Language string `yaml:"language"`
	} `yaml:"processor"`

	Payment struct {
		JWTSecret  string        `yaml:"jwt_secret"`
		TokenTTL   time.Duration `yaml:"token_ttl"`
		SuccessURL string        `yaml:"success_url"`
		SingleUse  bool          `yaml:"single_use"`
		DevTokens  bool          `yaml:"dev_tokens"`
	} `yaml:"payment"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
	} `yaml:"database"`

	Server struct {
		Addr        string `yaml:"addr"`
		MaxUploadMB int    `yaml:"max_upload_mb"`
		QueueSize   int    `yaml:"queue_size"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docfix/config.yaml"),
			"/etc/docfix/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Checker.Provider == "" {
		config.Checker.Provider = checker.ProviderLanguageTool
	}
	if config.Checker.URL == "" {
		config.Checker.URL = "https://api.languagetool.org"
	}
	if config.Checker.Level == "" {
		config.Checker.Level = checker.DefaultLevel
	}
	if config.Checker.EnabledCategories == nil {
		config.Checker.EnabledCategories = checker.DefaultEnabledCategories
	}
	if config.Checker.EnabledRules == nil {
		config.Checker.EnabledRules = checker.DefaultEnabledRules
	}
	if config.Checker.DisabledCategories == nil {
		config.Checker.DisabledCategories = checker.DefaultDisabledCategories
	}
	if config.Checker.RateLimit == 0 {
		config.Checker.RateLimit = 2.0
	}
	if config.Checker.Timeout == 0 {
		config.Checker.Timeout = 30 * time.Second
	}

	if config.Ollama.BaseURL == "" {
		config.Ollama.BaseURL = "http://localhost:11434"
	}
	if config.Ollama.Model == "" {
		config.Ollama.Model = "mistral"
	}

	if config.Processor.Mode == "" {
		config.Processor.Mode = "paragraph"
	}
	if config.Processor.Language == "" {
		config.Processor.Language = checker.DefaultLanguage
	}

	if config.Payment.TokenTTL == 0 {
		config.Payment.TokenTTL = 30 * time.Minute
	}
	if config.Payment.SuccessURL == "" {
		config.Payment.SuccessURL = "http://localhost:8080/?success=true"
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "redeemed_tokens"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.MaxUploadMB == 0 {
		config.Server.MaxUploadMB = 50
	}
	if config.Server.QueueSize == 0 {
		config.Server.QueueSize = 100
	}
}

func mergeWithEnv(config *Config) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Payment.JWTSecret = secret
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if ltURL := os.Getenv("LANGUAGETOOL_URL"); ltURL != "" {
		config.Checker.URL = ltURL
	}
	if username := os.Getenv("LANGUAGETOOL_USERNAME"); username != "" {
		config.Checker.Username = username
	}
	if apiKey := os.Getenv("LANGUAGETOOL_API_KEY"); apiKey != "" {
		config.Checker.APIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Ollama.BaseURL = baseURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
}

// CheckOptions returns the checker request parameters for language. An empty
// language selects the configured default.
func (c *Config) CheckOptions(language string) *models.CheckOptions {
	if language == "" {
		language = c.Processor.Language
	}

	return &models.CheckOptions{
		Language:           language,
		Level:              c.Checker.Level,
		EnabledCategories:  c.Checker.EnabledCategories,
		EnabledRules:       c.Checker.EnabledRules,
		DisabledCategories: c.Checker.DisabledCategories,
	}
}
