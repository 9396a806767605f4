package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
	"github.com/ncastellanos/figma-qa/internal/core/ports"
	"github.com/ncastellanos/figma-qa/internal/infrastructure/resilience"
)

// fallbackModels are tried in order after the requested model fails or
// returns an empty case list.
var fallbackModels = []string{"gpt-4o", "gpt-4o-mini"}

// Client generates test cases through the chat completions API with one
// multimodal call per analysis unit.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, apiKey string, exec *resilience.Executor) *Client {
	url := strings.TrimRight(baseURL, "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	return &Client{
		baseURL:    url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 180 * time.Second},
		exec:       exec,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model           string         `json:"model"`
	Messages        []chatMessage  `json:"messages"`
	ResponseFormat  map[string]any `json:"response_format"`
	Temperature     float64        `json:"temperature"`
	ReasoningEffort string         `json:"reasoning_effort,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// GenerateCases runs the model chain for one unit. The requested model is
// tried first, then the fallbacks; a model that errors or yields zero cases
// hands over to the next one.
func (c *Client) GenerateCases(ctx context.Context, req ports.GenerationRequest) ([]domain.TestCase, error) {
	messages := buildMessages(req)

	var lastErr error
	for _, model := range modelChain(req.Model) {
		start := time.Now()
		raw, err := c.chatJSON(ctx, model, req.ReasoningEffort, messages)
		if err != nil {
			lastErr = err
			slog.Error("generation_model_failed",
				"model", model,
				"unit", req.Unit.Label,
				"page", req.Unit.PageName,
				"error", err,
			)
			continue
		}

		cases, err := parseCases(raw)
		if err != nil {
			lastErr = err
			slog.Warn("generation_response_unparseable",
				"model", model,
				"unit", req.Unit.Label,
				"raw_prefix", truncate(raw, 300),
			)
			continue
		}
		if len(cases) == 0 {
			slog.Warn("generation_returned_zero_cases", "model", model, "unit", req.Unit.Label)
			continue
		}

		slog.Info("generation_completed",
			"model", model,
			"unit", req.Unit.Label,
			"cases", len(cases),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return cases, nil
	}

	if lastErr != nil {
		return nil, mapOpenAIError("openai.GenerateCases", lastErr)
	}
	return nil, nil
}

func modelChain(requested string) []string {
	chain := make([]string, 0, 1+len(fallbackModels))
	seen := make(map[string]struct{})
	for _, model := range append([]string{requested}, fallbackModels...) {
		if model == "" {
			continue
		}
		if _, dup := seen[model]; dup {
			continue
		}
		seen[model] = struct{}{}
		chain = append(chain, model)
	}
	return chain
}

func (c *Client) chatJSON(ctx context.Context, model, reasoningEffort string, messages []chatMessage) (string, error) {
	payload := chatRequest{
		Model:          model,
		Messages:       messages,
		ResponseFormat: map[string]any{"type": "json_object"},
		Temperature:    0.2,
	}
	if supportsReasoningEffort(model) {
		payload.ReasoningEffort = reasoningEffort
	}

	var raw string
	call := func(ctx context.Context) error {
		content, err := c.doChat(ctx, payload)
		if err != nil {
			return err
		}
		raw = content
		return nil
	}

	if c.exec == nil {
		return raw, call(ctx)
	}
	if err := c.exec.Execute(ctx, "openai_chat", call, classifyOpenAIError); err != nil {
		return "", err
	}
	return raw, nil
}

func (c *Client) doChat(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", newHTTPStatusError("chat", resp)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

// supportsReasoningEffort limits the hint to model families that accept it.
func supportsReasoningEffort(model string) bool {
	return strings.HasPrefix(model, "gpt-5") || strings.HasPrefix(model, "o")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
