package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"FriendReminder/internal/config"
	"FriendReminder/internal/domain"
	"FriendReminder/internal/ports"
)

// extractionPrompt enumerates exactly the values the domain parsers accept.
var extractionPrompt = fmt.Sprintf(`You extract relationship facts from a personal note.
Reply with one JSON object with keys "people", "events" and "situations".
people: [{"name", "relationship"}] where relationship is one of %s.
events: [{"person_name", "event_type", "description", "date", "approximate_date", "is_recurring"}]
  event_type is one of %s.
  date is YYYY-MM-DD when the exact day is known, otherwise empty with approximate_date set.
situations: [{"person_name", "situation_type", "description", "severity"}]
  situation_type is one of %s.
  severity is one of %s.
Use empty arrays when nothing applies. Do not invent facts.`,
	oneOf(domain.Relationships), oneOf(domain.EventTypes), oneOf(domain.SituationTypes), oneOf(domain.Severities))

func oneOf[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// ChatGPTClient implements ports.Extractor backed by OpenAI-compatible chat completion APIs.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Extractor = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.LLMConfig) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ChatGPTClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Extract asks the model to structure text into people, events and situations.
func (c *ChatGPTClient) Extract(ctx context.Context, text string) (domain.ExtractionResult, error) {
	if c == nil {
		return domain.ExtractionResult{}, errors.New("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.ExtractionResult{}, errors.New("chatgpt client misconfigured")
	}
	if strings.TrimSpace(text) == "" {
		return domain.ExtractionResult{}, nil
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []chatMessage{
			{Role: "system", Content: extractionPrompt},
			{Role: "user", Content: text},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0,
	})
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("extract: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.ExtractionResult{}, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(out.Choices) == 0 {
		return domain.ExtractionResult{}, errors.New("chatgpt returned no choices")
	}

	return parseExtraction(out.Choices[0].Message.Content)
}

// parseExtraction decodes the model's JSON answer, tolerating a markdown code fence.
func parseExtraction(content string) (domain.ExtractionResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var result domain.ExtractionResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &result); err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("parse extraction: %w", err)
	}
	return result, nil
}
