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

// OllamaEmbedder calls Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	BaseURL string
	Model   string
	Client  *http.Client
	// Dimension, when positive, is the width every returned vector must have.
	Dimension int
	logger    *slog.Logger
}

// NewOllamaEmbedder creates an embedder for model served at baseURL.
func NewOllamaEmbedder(baseURL, model string, client *http.Client, logger *slog.Logger) *OllamaEmbedder {
	return &OllamaEmbedder{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  client,
		logger:  logger,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *OllamaEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	start := time.Now()

	jsonData, err := json.Marshal(embedRequest{Model: e.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/api/embed", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		e.logger.ErrorContext(ctx, "ollama_embed_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("failed to call ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e.logger.ErrorContext(ctx, "ollama_embed_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var respBody embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(respBody.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(respBody.Embeddings), len(texts))
	}
	if e.Dimension > 0 {
		for i, v := range respBody.Embeddings {
			if len(v) != e.Dimension {
				return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), e.Dimension)
			}
		}
	}

	e.logger.DebugContext(ctx, "ollama_embed_completed",
		slog.Int("embedding_count", len(respBody.Embeddings)),
		slog.Duration("elapsed", time.Since(start)))

	return respBody.Embeddings, nil
}

func (e *OllamaEmbedder) Version() string {
	return "ollama:" + e.Model
}

var _ domain.VectorEncoder = (*OllamaEmbedder)(nil)
