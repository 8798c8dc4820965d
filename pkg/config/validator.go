package config

import (
	"fmt"
	"net/url"

	"github.com/xhad/docfix/pkg/checker"
	"github.com/xhad/docfix/pkg/processor"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Checker config
	switch c.Checker.Provider {
	case checker.ProviderLanguageTool:
		if !validURL(c.Checker.URL) {
			errors = append(errors, ValidationError{
				Field:   "checker.url",
				Message: "invalid LanguageTool URL",
			})
		}
	case checker.ProviderOllama:
		if !validURL(c.Ollama.BaseURL) {
			errors = append(errors, ValidationError{
				Field:   "ollama.base_url",
				Message: "invalid Ollama base URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "checker.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.Checker.Provider),
		})
	}

	if (c.Checker.Username == "") != (c.Checker.APIKey == "") {
		errors = append(errors, ValidationError{
			Field:   "checker.api_key",
			Message: "username and api_key must be set together",
		})
	}

	if c.Checker.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "checker.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Checker.Timeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "checker.timeout",
			Message: "timeout cannot be negative",
		})
	}

	if c.Ollama.Temperature < 0 || c.Ollama.Temperature > 1 {
		errors = append(errors, ValidationError{
			Field:   "ollama.temperature",
			Message: "temperature must be between 0 and 1",
		})
	}

	// Validate Processor config
	if !processor.Mode(c.Processor.Mode).Valid() {
		errors = append(errors, ValidationError{
			Field:   "processor.mode",
			Message: fmt.Sprintf("mode must be paragraph or batch, got %s", c.Processor.Mode),
		})
	}

	if !checker.IsSupported(c.Processor.Language) {
		errors = append(errors, ValidationError{
			Field:   "processor.language",
			Message: fmt.Sprintf("unsupported language: %s", c.Processor.Language),
		})
	}

	// Validate Payment config
	if c.Payment.TokenTTL <= 0 {
		errors = append(errors, ValidationError{
			Field:   "payment.token_ttl",
			Message: "token_ttl must be positive",
		})
	}

	if !validURL(c.Payment.SuccessURL) {
		errors = append(errors, ValidationError{
			Field:   "payment.success_url",
			Message: "invalid success URL",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Server.MaxUploadMB < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.max_upload_mb",
			Message: "max_upload_mb must be positive",
		})
	}

	if c.Server.QueueSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.queue_size",
			Message: "queue_size must be positive",
		})
	}

	return errors
}

// ValidateServer adds the checks that only matter when serving requests.
func (c *Config) ValidateServer() []ValidationError {
	errors := c.Validate()

	if c.Payment.JWTSecret == "" {
		errors = append(errors, ValidationError{
			Field:   "payment.jwt_secret",
			Message: "jwt_secret is required (or set JWT_SECRET)",
		})
	}

	return errors
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
