package bible

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dpshade/scriptureqa/internal/config"
	"github.com/dpshade/scriptureqa/internal/reference"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrEmptyText is returned when the service answers 200 without verse text
var ErrEmptyText = errors.New("verse text is empty")

// StatusError reports a non-200 answer from the lookup service
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// Client fetches verse text from a bible-api.com compatible service
type Client struct {
	httpClient  *http.Client
	baseURL     string
	translation string
	timeout     time.Duration
	limiter     *rate.Limiter
}

// VerseResponse represents the body returned by the lookup service
type VerseResponse struct {
	Reference       string  `json:"reference"`
	Verses          []Verse `json:"verses"`
	Text            string  `json:"text"`
	TranslationID   string  `json:"translation_id"`
	TranslationName string  `json:"translation_name"`
}

// Verse is a single verse inside a VerseResponse
type Verse struct {
	BookID   string `json:"book_id"`
	BookName string `json:"book_name"`
	Chapter  int    `json:"chapter"`
	Verse    int    `json:"verse"`
	Text     string `json:"text"`
}

// NewClient creates a new verse lookup client
func NewClient(cfg config.BibleConfig) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout.Duration,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		translation: cfg.Translation,
		timeout:     cfg.Timeout.Duration,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// Translation returns the translation requested from the service
func (c *Client) Translation() string {
	return c.translation
}

// Lookup returns the text of ref. Any failure is logged and reported as
// absence; it never returns an error.
func (c *Client) Lookup(ctx context.Context, ref reference.Reference) (string, bool) {
	resp, err := c.Fetch(ctx, ref)
	if err != nil {
		log.Warn().Err(err).Str("reference", ref.String()).Msg("Error fetching verse")
		return "", false
	}
	return resp.Text, true
}

// Fetch retrieves and decodes a verse from the service. The configured
// timeout bounds the whole call, rate-limit wait included.
func (c *Client) Fetch(ctx context.Context, ref reference.Reference) (*VerseResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	u := fmt.Sprintf("%s/%s?translation=%s", c.baseURL, url.PathEscape(ref.String()), url.QueryEscape(c.translation))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result VerseResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	result.Text = strings.TrimSpace(result.Text)
	if result.Text == "" {
		return nil, ErrEmptyText
	}

	log.Debug().
		Str("reference", ref.String()).
		Str("translation", result.TranslationID).
		Int("verses", len(result.Verses)).
		Msg("Verse fetched")

	return &result, nil
}
