// Package checker defines the correction service boundary shared by the
// LanguageTool and Ollama clients.
package checker

import (
	"errors"
	"strings"

	"github.com/xhad/docfix/internal/models"
	"github.com/xhad/docfix/internal/types"
)

// ErrServiceUnavailable is returned when the correction service cannot be
// reached or answers with anything but a usable result.
var ErrServiceUnavailable = errors.New("correction service unavailable")

type Checker = types.Checker

const (
	ProviderLanguageTool = "languagetool"
	ProviderOllama       = "ollama"
)

const DefaultLanguage = "en"

var languageCodes = map[string]string{
	"en": "en-US",
	"es": "es",
	"fr": "fr",
	"de": "de",
	"pt": "pt",
}

// Languages lists the accepted short language codes.
func Languages() []string {
	return []string{"en", "es", "fr", "de", "pt"}
}

func IsSupported(language string) bool {
	_, ok := languageCodes[strings.ToLower(language)]
	return ok
}

// LanguageCode maps a short code to the service's variant. Unknown codes fall
// back to American English.
func LanguageCode(language string) string {
	if code, ok := languageCodes[strings.ToLower(language)]; ok {
		return code
	}
	return languageCodes[DefaultLanguage]
}

var (
	DefaultLevel              = "picky"
	DefaultEnabledCategories  = []string{"grammar", "style", "typos"}
	DefaultDisabledCategories = []string{"COLLOQUIALISMS"}
	DefaultEnabledRules       = []string{
		"WHITESPACE_RULE",
		"EN_UNPAIRED_BRACKETS",
		"UPPERCASE_SENTENCE_START",
		"WORDINESS",
		"REDUNDANCY",
		"MISSING_COMMA",
		"COMMA_PARENTHESIS_WHITESPACE",
		"DASH_RULE",
		"EN_QUOTES",
		"AGREEMENT_SENT_START",
		"SENTENCE_FRAGMENT",
		"MULTIPLICATION_SIGN",
		"PASSIVE_VOICE",
		"EXTRA_WHITESPACE",
		"COMMA_BEFORE_CONJUNCTION",
		"HYPHENATION_RULES",
		"ITS_IT_IS",
		"DUPLICATE_WORD",
		"NO_SPACE_BEFORE_PUNCTUATION",
	}
)

// DefaultOptions returns the rule selection used when nothing is configured.
func DefaultOptions(language string) *models.CheckOptions {
	return &models.CheckOptions{
		Language:           language,
		Level:              DefaultLevel,
		EnabledCategories:  append([]string(nil), DefaultEnabledCategories...),
		EnabledRules:       append([]string(nil), DefaultEnabledRules...),
		DisabledCategories: append([]string(nil), DefaultDisabledCategories...),
	}
}
