package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dpshade/scriptureqa/internal/config"
)

var _ Backend = (*OllamaGenerator)(nil)

// OllamaGenerator calls a local Ollama server
type OllamaGenerator struct {
	client  *http.Client
	baseURL string
	model   string
}

// ollamaRequest is the /api/generate request format
type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

// ollamaResponse is the /api/generate response format
type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaGenerator creates a new Ollama backend
func NewOllamaGenerator(cfg config.OllamaConfig, timeout time.Duration) *OllamaGenerator {
	return &OllamaGenerator{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
	}
}

// Name returns the backend name
func (g *OllamaGenerator) Name() string {
	return config.BackendOllama
}

// Generate produces text for prompt
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, maxLength int) (string, error) {
	payload, err := json.Marshal(ollamaRequest{
		Model:   g.model,
		Prompt:  prompt,
		Stream:  false,
		Options: &ollamaOptions{NumPredict: maxLength},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var result ollamaResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(body, &result) == nil && result.Error != "" {
			return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, result.Error)
		}
		return "", fmt.Errorf("ollama error (status %d)", resp.StatusCode)
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return result.Response, nil
}
