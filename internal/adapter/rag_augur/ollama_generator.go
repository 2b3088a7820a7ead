package rag_augur

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"legal-rag/internal/domain"
)

const (
	summaryTemperature = 0.2
	keepAlive          = "10m"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []chatMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// OllamaGenerator sends prompts to Ollama's chat endpoint.
type OllamaGenerator struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewOllamaGenerator constructs a generator using the provided endpoint and model name.
func NewOllamaGenerator(baseURL, model string, client *http.Client, logger *slog.Logger) *OllamaGenerator {
	return &OllamaGenerator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  client,
		logger:  logger,
	}
}

func (g *OllamaGenerator) buildOptions(maxTokens int) map[string]any {
	opts := map[string]any{"temperature": summaryTemperature}
	if maxTokens > 0 {
		opts["num_predict"] = maxTokens
	}
	return opts
}

// Generate sends the prompt as a single user message and returns the assistant reply.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	start := time.Now()
	reqBody := chatRequest{
		Model:     g.Model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		KeepAlive: keepAlive,
		Options:   g.buildOptions(maxTokens),
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/api/chat", bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call generation endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("generation endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}

	g.logger.InfoContext(ctx, "ollama_generate_completed",
		slog.String("model", g.Model),
		slog.Int("prompt_length", len(prompt)),
		slog.Int("response_length", len(chatResp.Message.Content)),
		slog.Duration("elapsed", time.Since(start)))

	return &domain.LLMResponse{
		Text: strings.TrimSpace(chatResp.Message.Content),
		Done: chatResp.Done,
	}, nil
}

// Version returns the wrapped model name.
func (g *OllamaGenerator) Version() string {
	return "ollama:" + g.Model
}

var _ domain.LLMClient = (*OllamaGenerator)(nil)
