package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dpshade/scriptureqa/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHuggingFace_Generate(t *testing.T) {
	var got hfRequest
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`[{"generated_text":"John 3:16, Romans 6:23"}]`))
	}))
	defer srv.Close()

	g := NewHuggingFaceGenerator(config.HuggingFaceConfig{
		BaseURL: srv.URL,
		Model:   "google/flan-t5-small",
		Token:   "secret",
	}, time.Second)

	out, err := g.Generate(context.Background(), "which verses?", 100)

	require.NoError(t, err)
	assert.Equal(t, "John 3:16, Romans 6:23", out)
	assert.Equal(t, "/models/google/flan-t5-small", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "which verses?", got.Inputs)
	assert.Equal(t, 100, got.Parameters.MaxNewTokens)
	assert.True(t, got.Options.WaitForModel)
}

func TestHuggingFace_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model is currently loading"}`))
	}))
	defer srv.Close()

	g := NewHuggingFaceGenerator(config.HuggingFaceConfig{BaseURL: srv.URL, Model: "m"}, time.Second)

	_, err := g.Generate(context.Background(), "p", 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "Model is currently loading")
}

func TestHuggingFace_EmptyArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := NewHuggingFaceGenerator(config.HuggingFaceConfig{BaseURL: srv.URL, Model: "m"}, time.Second)

	_, err := g.Generate(context.Background(), "p", 10)

	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestOllama_Generate(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"Love is patient (1 Corinthians 13:4).","done":true}`))
	}))
	defer srv.Close()

	g := NewOllamaGenerator(config.OllamaConfig{BaseURL: srv.URL + "/", Model: "llama3.2"}, time.Second)

	out, err := g.Generate(context.Background(), "summarize", 512)

	require.NoError(t, err)
	assert.Equal(t, "Love is patient (1 Corinthians 13:4).", out)
	assert.Equal(t, "llama3.2", got.Model)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Options)
	assert.Equal(t, 512, got.Options.NumPredict)
}

func TestOllama_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llama3.2' not found"}`))
	}))
	defer srv.Close()

	g := NewOllamaGenerator(config.OllamaConfig{BaseURL: srv.URL, Model: "llama3.2"}, time.Second)

	_, err := g.Generate(context.Background(), "p", 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestHuggingFace_ThrottleFromConfig(t *testing.T) {
	g := NewHuggingFaceGenerator(config.HuggingFaceConfig{BaseURL: "http://unused", Model: "m"}, time.Second)
	assert.Nil(t, g.limiter)

	g = NewHuggingFaceGenerator(config.HuggingFaceConfig{
		BaseURL:           "http://unused",
		Model:             "m",
		RequestsPerSecond: 0.25,
		Burst:             3,
	}, time.Second)
	require.NotNil(t, g.limiter)
	assert.Equal(t, 3, g.limiter.Burst())
	assert.InDelta(t, 0.25, float64(g.limiter.Limit()), 1e-9)
}

func TestHuggingFace_ThrottleWaitRespectsContext(t *testing.T) {
	g := NewHuggingFaceGenerator(config.HuggingFaceConfig{
		BaseURL:           "http://unused",
		Model:             "m",
		RequestsPerSecond: 0.001,
		Burst:             1,
	}, time.Second)
	require.True(t, g.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, "p", 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}
