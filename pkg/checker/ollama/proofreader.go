package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/docfix/internal/models"
	"github.com/xhad/docfix/pkg/checker"
)

var _ checker.Checker = (*Proofreader)(nil)

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"pt": "Portuguese",
}

// ProofreaderConfig represents the configuration for an LLM proofreader.
type ProofreaderConfig struct {
	Model          string
	Temperature    float64
	BaseURL        string // Ollama server URL
	SystemTemplate string

	// LLM overrides the Ollama client, mostly for tests.
	LLM llms.Model
}

// Proofreader asks a local model for corrections and turns its answer into
// offset-based matches.
type Proofreader struct {
	config ProofreaderConfig
	llm    llms.Model
}

func NewWithConfig(config ProofreaderConfig) (*Proofreader, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You are a meticulous proofreader for %s academic text. " +
			"Find spelling, grammar, punctuation and style errors. " +
			"Answer only with JSON of the form {\"corrections\":[{\"original\":\"...\",\"replacement\":\"...\"}]} " +
			"where original is copied exactly from the text. Do not rephrase correct text. " +
			"Answer {\"corrections\":[]} when there is nothing to fix."
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	llm := config.LLM
	if llm == nil {
		var err error
		llm, err = ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL),
			ollama.WithFormat("json"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
	}

	return &Proofreader{
		config: config,
		llm:    llm,
	}, nil
}

type correction struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

type answer struct {
	Corrections []correction `json:"corrections"`
}

// Check proofreads text. Any model or decoding failure is reported as
// checker.ErrServiceUnavailable.
func (p *Proofreader) Check(ctx context.Context, text string, options *models.CheckOptions) ([]models.Match, error) {
	language := checker.DefaultLanguage
	if options != nil && options.Language != "" {
		language = options.Language
	}

	name, ok := languageNames[strings.ToLower(language)]
	if !ok {
		name = languageNames[checker.DefaultLanguage]
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, fmt.Sprintf(p.config.SystemTemplate, name)),
		llms.TextParts(schema.ChatMessageTypeHuman, text),
	}

	response, err := p.llm.GenerateContent(ctx, content,
		llms.WithTemperature(p.config.Temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", checker.ErrServiceUnavailable, err)
	}

	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return nil, fmt.Errorf("%w: no response from LLM", checker.ErrServiceUnavailable)
	}

	var result answer
	if err := json.Unmarshal([]byte(extractJSON(response.Choices[0].Content)), &result); err != nil {
		return nil, fmt.Errorf("%w: decoding answer: %v", checker.ErrServiceUnavailable, err)
	}

	return locate(text, result.Corrections), nil
}

// extractJSON trims anything around the outermost object, since models like
// to wrap answers in code fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// locate finds each correction's original text, searching forward from the
// previous hit. Corrections that cannot be found are dropped.
func locate(text string, corrections []correction) []models.Match {
	var matches []models.Match

	cursor := 0
	for _, c := range corrections {
		if c.Original == "" || c.Original == c.Replacement {
			continue
		}

		i := strings.Index(text[cursor:], c.Original)
		if i < 0 {
			continue
		}
		start := cursor + i

		matches = append(matches, models.Match{
			Offset:       utf8.RuneCountInString(text[:start]),
			Length:       utf8.RuneCountInString(c.Original),
			Replacements: []models.Replacement{{Value: c.Replacement}},
			RuleID:       "LLM_PROOFREAD",
		})

		cursor = start + len(c.Original)
	}

	return matches
}
