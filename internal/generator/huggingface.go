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
	"golang.org/x/time/rate"
)

var _ Backend = (*HuggingFaceGenerator)(nil)

// HuggingFaceGenerator calls the Hugging Face Inference API
type HuggingFaceGenerator struct {
	client  *http.Client
	baseURL string
	model   string
	token   string
	limiter *rate.Limiter
}

// hfRequest is the text generation request body
type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Options    hfOptions    `json:"options"`
}

type hfParameters struct {
	MaxNewTokens int `json:"max_new_tokens"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// hfGeneration is one element of the response array
type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

// hfError is returned by the API on failure
type hfError struct {
	Error string `json:"error"`
}

// NewHuggingFaceGenerator creates a new Hugging Face backend
func NewHuggingFaceGenerator(cfg config.HuggingFaceConfig, timeout time.Duration) *HuggingFaceGenerator {
	g := &HuggingFaceGenerator{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		token:   cfg.Token,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return g
}

// Name returns the backend name
func (g *HuggingFaceGenerator) Name() string {
	return config.BackendHuggingFace
}

// Generate produces text for prompt
func (g *HuggingFaceGenerator) Generate(ctx context.Context, prompt string, maxLength int) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	payload, err := json.Marshal(hfRequest{
		Inputs:     prompt,
		Parameters: hfParameters{MaxNewTokens: maxLength},
		Options:    hfOptions{WaitForModel: true},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/models/"+g.model, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr hfError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return "", fmt.Errorf("huggingface error (status %d): %s", resp.StatusCode, apiErr.Error)
		}
		return "", fmt.Errorf("huggingface error (status %d)", resp.StatusCode)
	}

	var generations []hfGeneration
	if err := json.Unmarshal(body, &generations); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(generations) == 0 {
		return "", ErrEmptyOutput
	}

	return generations[0].GeneratedText, nil
}
