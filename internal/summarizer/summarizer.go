// Package summarizer calls an external text-summarization service to turn a
// session's transcript tail into a short summary.
package summarizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/YashSaini213/virtual-conference-translator/internal/models"
)

// ErrNotConfigured is returned when no summarizer URL is set.
var ErrNotConfigured = errors.New("summarizer not configured")

// Client is an HTTP client for the summarization service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger
}

// New creates a summarizer client. An empty baseURL disables it.
func New(baseURL, apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With().Str("component", "summarizer").Logger(),
	}
}

// Enabled reports whether a summarizer URL is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type summarizeRequest struct {
	Lines []string `json:"lines"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// Summarize sends the transcript lines, oldest first, and returns the
// service's summary text.
func (c *Client) Summarize(ctx context.Context, entries []models.TranscriptEntry) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}
	if len(entries) == 0 {
		return "", errors.New("nothing to summarize")
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		speaker := e.Speaker
		if speaker == "" {
			speaker = e.SpeakerID
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, e.Text))
	}

	body, err := json.Marshal(summarizeRequest{Lines: lines})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/summarize", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarizer returned status %d", resp.StatusCode)
	}

	var out summarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode summary: %w", err)
	}
	if out.Summary == "" {
		return "", errors.New("summarizer returned an empty summary")
	}

	c.logger.Debug().
		Int("lines", len(lines)).
		Dur("elapsed", time.Since(start)).
		Msg("summary generated")

	return out.Summary, nil
}
