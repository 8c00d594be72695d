package analyze

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/apiobserve/collector/pkg/config"
	"github.com/apiobserve/collector/pkg/errors"
)

const completionTimeout = 120 * time.Second

// ChatSummarizer calls an OpenAI-compatible chat completions endpoint.
type ChatSummarizer struct {
	cfg         *config.OpenAIConfig
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// NewChatSummarizer returns nil when no endpoint is configured, which
// disables analysis.
func NewChatSummarizer(cfg *config.OpenAIConfig, analysis *config.AnalysisConfig) *ChatSummarizer {
	if cfg.Endpoint == "" {
		return nil
	}
	return &ChatSummarizer{
		cfg:         cfg,
		temperature: analysis.Temperature,
		maxTokens:   analysis.MaxTokens,
		httpClient: &http.Client{
			Timeout: completionTimeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (s *ChatSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	payload, err := gojson.Marshal(chatRequest{
		Model: s.cfg.Deployment,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to build completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeUpstream, "completion request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", errors.New(errors.ErrorTypeUpstream,
			fmt.Sprintf("completion endpoint returned status %d: %s", resp.StatusCode, string(snippet)))
	}

	var parsed chatResponse
	if err := gojson.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeUpstream, "failed to decode completion response")
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New(errors.ErrorTypeUpstream, "completion response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
