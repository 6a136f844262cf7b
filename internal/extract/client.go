package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anderson-ufrj/meeting-intelligence/internal/meeting"
)

const extractionPrompt = "You are an expert meeting analyst. Extract structured insights " +
	"from the provided transcript. Be thorough but concise. Only extract information " +
	"explicitly stated in the transcript. Respond with a single JSON object with keys: " +
	`"summary" (string), "decisions" (array of {topic, decision, deciders, confidence}), ` +
	`"action_items" (array of {task, owner, deadline, priority}), ` +
	`"key_topics" (array of {name, importance}), ` +
	`"open_questions" (array of {question, context}). Confidence is a number in [0,1].`

// Client extracts insights via the Anthropic messages API. Responses that
// fail schema validation are retried up to MaxRetries with backoff before
// the error turns terminal — the pipeline's FAILED transition is a normal
// data path, not an exception tunnel.
type Client struct {
	apiURL     string
	apiKey     string
	model      string
	maxRetries int
	client     *http.Client
}

type Config struct {
	APIURL     string
	APIKey     string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("extraction API key is required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.anthropic.com/v1/messages"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Extract builds the prompt context and runs the bounded-retry loop.
func (c *Client) Extract(ctx context.Context, text string, participants []string) (*meeting.InsightBundle, error) {
	prompt := extractionPrompt + "\n\nParticipants: " + strings.Join(participants, ", ") +
		"\n\n--- Transcript ---\n" + text

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		bundle, err := c.extractOnce(ctx, prompt)
		if err == nil {
			return bundle, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("extraction attempt failed",
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"error", err,
		)
		if attempt < c.maxRetries {
			select {
			case <-time.After(retryDelay(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrSchemaInvalid, lastErr)
}

func (c *Client) extractOnce(ctx context.Context, prompt string) (*meeting.InsightBundle, error) {
	body, _ := json.Marshal(map[string]any{
		"model":      c.model,
		"max_tokens": 4096,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("messages post: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("messages endpoint returned %s", resp.Status)
	}

	var out struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var raw string
	for _, block := range out.Content {
		if block.Type == "text" {
			raw += block.Text
		}
	}

	return parseBundle(raw)
}

// parseBundle pulls the JSON object out of the model's reply and validates
// it. Models occasionally wrap the object in prose or code fences.
func parseBundle(raw string) (*meeting.InsightBundle, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in response")
	}

	var bundle meeting.InsightBundle
	if err := json.Unmarshal([]byte(raw[start:end+1]), &bundle); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func retryDelay(attempt int) time.Duration {
	d := 500 * time.Millisecond << attempt
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}
