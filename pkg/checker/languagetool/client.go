package languagetool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/docfix/internal/models"
	"github.com/xhad/docfix/pkg/checker"
	"golang.org/x/time/rate"
)

const DefaultURL = "https://api.languagetool.org"

var _ checker.Checker = (*Client)(nil)

type ClientConfig struct {
	URL       string
	Username  string
	APIKey    string
	RateLimit float64 // requests per second
	Timeout   time.Duration

	HTTPClient *http.Client
}

type Client struct {
	config  ClientConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config ClientConfig) (*Client, error) {
	if config.URL == "" {
		config.URL = DefaultURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit cannot be negative")
	} else if config.RateLimit == 0 {
		config.RateLimit = 2
	}

	if _, err := url.ParseRequestURI(config.URL); err != nil {
		return nil, fmt.Errorf("invalid languagetool url: %v", err)
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: config.Timeout,
		}
	}

	return &Client{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

type matchType struct {
	Message      string `json:"message"`
	Offset       int    `json:"offset"`
	Length       int    `json:"length"`
	Replacements []struct {
		Value string `json:"value"`
	} `json:"replacements"`
	Rule struct {
		ID       string `json:"id"`
		Category struct {
			ID string `json:"id"`
		} `json:"category"`
	} `json:"rule"`
}

type resultType struct {
	Matches []matchType `json:"matches"`
}

// Check submits text and returns the service's matches with offsets converted
// to code points.
func (c *Client) Check(ctx context.Context, text string, options *models.CheckOptions) ([]models.Match, error) {
	if options == nil {
		options = checker.DefaultOptions(checker.DefaultLanguage)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", checker.ErrServiceUnavailable, err)
	}

	u, _ := url.JoinPath(c.config.URL, "/v2/check")
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(c.form(text, options).Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", checker.ErrServiceUnavailable, err)
	}
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", checker.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, convertError(resp)
	}

	var result resultType
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", checker.ErrServiceUnavailable, err)
	}

	index := newOffsetIndex(text)

	matches := make([]models.Match, 0, len(result.Matches))
	for _, m := range result.Matches {
		offset, length := index.Runes(m.Offset, m.Length)

		match := models.Match{
			Offset:   offset,
			Length:   length,
			Message:  m.Message,
			RuleID:   m.Rule.ID,
			Category: m.Rule.Category.ID,
		}
		for _, r := range m.Replacements {
			match.Replacements = append(match.Replacements, models.Replacement{Value: r.Value})
		}

		matches = append(matches, match)
	}

	return matches, nil
}

func (c *Client) form(text string, options *models.CheckOptions) url.Values {
	values := url.Values{}
	values.Set("text", text)
	values.Set("language", checker.LanguageCode(options.Language))

	if options.Level != "" {
		values.Set("level", options.Level)
	}
	if len(options.EnabledCategories) > 0 {
		values.Set("enabledCategories", strings.Join(options.EnabledCategories, ","))
	}
	if len(options.EnabledRules) > 0 {
		values.Set("enabledRules", strings.Join(options.EnabledRules, ","))
	}
	if len(options.DisabledCategories) > 0 {
		values.Set("disabledCategories", strings.Join(options.DisabledCategories, ","))
	}

	if c.config.Username != "" && c.config.APIKey != "" {
		values.Set("username", c.config.Username)
		values.Set("apiKey", c.config.APIKey)
	}

	return values
}

// convertError turns a failed response into ErrServiceUnavailable, keeping a
// short readable rendition of the body. Error pages served as HTML are reduced
// to their text.
func convertError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	message := strings.TrimSpace(string(data))

	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(message)); err == nil {
			doc.Find("script, style").Remove()
			message = strings.Join(strings.Fields(doc.Text()), " ")
		}
	}

	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	const maxMessage = 200
	if len(message) > maxMessage {
		message = message[:maxMessage] + "..."
	}

	return fmt.Errorf("%w: status %d: %s", checker.ErrServiceUnavailable, resp.StatusCode, message)
}
