package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docfix/internal/doctest"
	"github.com/xhad/docfix/pkg/checker/languagetool"
	"github.com/xhad/docfix/pkg/checker/ollama"
	"github.com/xhad/docfix/pkg/docx"
)

// newLanguageTool answers every check with a match for each "teh".
func newLanguageTool(t *testing.T) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		text := r.PostForm.Get("text")

		type match struct {
			Offset       int                 `json:"offset"`
			Length       int                 `json:"length"`
			Replacements []map[string]string `json:"replacements"`
		}
		matches := []match{}
		for from := 0; ; {
			i := strings.Index(text[from:], "teh")
			if i < 0 {
				break
			}
			matches = append(matches, match{
				Offset:       from + i,
				Length:       3,
				Replacements: []map[string]string{{"value": "the"}},
			})
			from += i + 3
		}

		json.NewEncoder(w).Encode(map[string]interface{}{"matches": matches})
	}))
	t.Cleanup(ts.Close)

	return ts
}

func writeConfig(t *testing.T, content string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	configPath = path
	t.Cleanup(func() { configPath = "" })
}

func TestRunCorrect(t *testing.T) {
	lt := newLanguageTool(t)
	writeConfig(t, "checker:\n  url: \""+lt.URL+"\"\n  rate_limit: 100\n")

	dir := t.TempDir()
	input := filepath.Join(dir, "essay.docx")
	require.NoError(t, os.WriteFile(input, doctest.DOCX(doctest.DocumentXML(
		doctest.P(doctest.R("This is "), doctest.Bold("teh"), doctest.R(" essay.")),
		doctest.P(doctest.R("Cited teh claim."), doctest.FootnoteRun(1)),
	)), 0644))

	for _, mode := range []string{"paragraph", "batch"} {
		t.Run(mode, func(t *testing.T) {
			output := filepath.Join(dir, mode+".docx")

			err := runCorrect(context.Background(), input, correctOptions{output: output, mode: mode})
			require.NoError(t, err)

			data, err := os.ReadFile(output)
			require.NoError(t, err)

			doc, err := docx.Open(data)
			require.NoError(t, err)

			paragraphs := doc.Paragraphs()
			require.Len(t, paragraphs, 2)
			assert.Equal(t, "the", paragraphs[0].Runs()[1].Text())
			assert.Equal(t, "Cited teh claim.", paragraphs[1].Runs()[0].Text())
		})
	}
}

func TestRunCorrectDefaultOutput(t *testing.T) {
	lt := newLanguageTool(t)
	writeConfig(t, "checker:\n  url: \""+lt.URL+"\"\n  rate_limit: 100\n")

	input := filepath.Join(t.TempDir(), "essay.docx")
	require.NoError(t, os.WriteFile(input, doctest.DOCX(doctest.DocumentXML(
		doctest.P(doctest.R("Fix teh typo.")),
	)), 0644))

	require.NoError(t, runCorrect(context.Background(), input, correctOptions{}))

	_, err := os.Stat(correctedPath(input))
	assert.NoError(t, err)
}

func TestRunCorrectInvalidDocument(t *testing.T) {
	lt := newLanguageTool(t)
	writeConfig(t, "checker:\n  url: \""+lt.URL+"\"\n")

	dir := t.TempDir()
	input := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(input, []byte("not a zip"), 0644))

	output := filepath.Join(dir, "out.docx")
	err := runCorrect(context.Background(), input, correctOptions{output: output})
	assert.ErrorIs(t, err, docx.ErrInvalidDocument)

	_, err = os.Stat(output)
	assert.True(t, os.IsNotExist(err))
}

func TestRunCorrectInvalidOptions(t *testing.T) {
	writeConfig(t, "")

	input := filepath.Join(t.TempDir(), "essay.docx")

	err := runCorrect(context.Background(), input, correctOptions{language: "xx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language: xx")

	err = runCorrect(context.Background(), input, correctOptions{mode: "sentence"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processor.mode")
}

func TestCorrectedPath(t *testing.T) {
	assert.Equal(t, "thesis_corrected.docx", correctedPath("thesis.docx"))
	assert.Equal(t, filepath.Join("a", "b_corrected.docx"), correctedPath(filepath.Join("a", "b.docx")))
	assert.Equal(t, "notes_corrected.docx", correctedPath("notes"))
}

func TestNewChecker(t *testing.T) {
	writeConfig(t, "")
	cfg, err := loadConfig()
	require.NoError(t, err)

	c, err := newChecker(cfg)
	require.NoError(t, err)
	assert.IsType(t, &languagetool.Client{}, c)

	cfg.Checker.Provider = "ollama"
	c, err = newChecker(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ollama.Proofreader{}, c)

	cfg.Checker.Provider = "grammarly"
	_, err = newChecker(cfg)
	assert.Error(t, err)
}

func TestNewSigner(t *testing.T) {
	writeConfig(t, "payment:\n  jwt_secret: \"secret\"\n")

	cfg, err := loadConfig()
	require.NoError(t, err)

	signer, err := newSigner(cfg)
	require.NoError(t, err)

	token, _, err := signer.Issue()
	require.NoError(t, err)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, cfg.Payment.SuccessURL, claims.URL)
}
