package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaModel implements Model using the Ollama /api/embed endpoint.
// It is safe for concurrent use. No API key is required since Ollama runs locally.
//
// When an accelerated host is configured (typically an Ollama instance on a
// GPU machine), batches placed on PlacementAccelerated are sent there;
// everything else goes to the fallback host.
type OllamaModel struct {
	// host is the fallback Ollama base URL (e.g. "http://localhost:11434").
	host string
	// accelHost is the accelerated Ollama base URL; empty disables it.
	accelHost string
	// model is the embedding model name (e.g. "nomic-embed-text").
	model string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaModel.
type OllamaConfig struct {
	// Host is the fallback Ollama base URL (e.g. "http://localhost:11434").
	Host string
	// AccelHost is the accelerated Ollama base URL. Empty means no
	// accelerated endpoint is available.
	AccelHost string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
}

// NewOllamaModel constructs an OllamaModel from the given config.
func NewOllamaModel(cfg *OllamaConfig) *OllamaModel {
	return &OllamaModel{
		host:      cfg.Host,
		accelHost: cfg.AccelHost,
		model:     cfg.Model,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// HasAccelerated reports whether an accelerated host is configured.
func (m *OllamaModel) HasAccelerated() bool { return m.accelHost != "" }

// ollamaEmbedRequest is the JSON body sent to the Ollama /api/embed endpoint.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the JSON body returned from the Ollama /api/embed endpoint.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Compute converts a batch of texts into their embeddings on the host
// selected by placement. The returned slice is parallel to the input slice.
func (m *OllamaModel) Compute(ctx context.Context, texts []string, placement Placement) ([][]float32, error) {
	host := m.host
	if placement == PlacementAccelerated && m.accelHost != "" {
		host = m.accelHost
	}

	payload, err := json.Marshal(ollamaEmbedRequest{
		Model: m.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embedder: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("ollama embedder: %s", msg)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	return result.Embeddings, nil
}

// Ping probes the fallback host for readiness.
func (m *OllamaModel) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("ollama embedder: create request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama embedder: unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama embedder: HTTP %d", resp.StatusCode)
	}
	return nil
}

// Name returns the backend label used in readiness responses.
func (m *OllamaModel) Name() string { return "ollama-embed" }
