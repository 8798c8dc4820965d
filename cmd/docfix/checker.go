package main

import (
	"fmt"

	"github.com/xhad/docfix/internal/types"
	"github.com/xhad/docfix/pkg/checker"
	"github.com/xhad/docfix/pkg/checker/languagetool"
	"github.com/xhad/docfix/pkg/checker/ollama"
	"github.com/xhad/docfix/pkg/config"
	"github.com/xhad/docfix/pkg/payment"
)

func newChecker(cfg *config.Config) (types.Checker, error) {
	switch cfg.Checker.Provider {
	case checker.ProviderLanguageTool:
		c, err := languagetool.NewWithConfig(languagetool.ClientConfig{
			URL:       cfg.Checker.URL,
			Username:  cfg.Checker.Username,
			APIKey:    cfg.Checker.APIKey,
			RateLimit: cfg.Checker.RateLimit,
			Timeout:   cfg.Checker.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LanguageTool client: %v", err)
		}
		return c, nil

	case checker.ProviderOllama:
		p, err := ollama.NewWithConfig(ollama.ProofreaderConfig{
			Model:       cfg.Ollama.Model,
			Temperature: cfg.Ollama.Temperature,
			BaseURL:     cfg.Ollama.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize proofreader: %v", err)
		}
		return p, nil
	}

	return nil, fmt.Errorf("unknown provider: %s", cfg.Checker.Provider)
}

func newSigner(cfg *config.Config) (*payment.Signer, error) {
	return payment.NewWithConfig(payment.SignerConfig{
		Secret:     cfg.Payment.JWTSecret,
		SuccessURL: cfg.Payment.SuccessURL,
		TTL:        cfg.Payment.TokenTTL,
	})
}
