package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds the application configuration
type Config struct {
	DataDir    string           `toml:"data_dir"`
	Debug      bool             `toml:"debug"`
	Server     ServerConfig     `toml:"server"`
	Bible      BibleConfig      `toml:"bible"`
	Generator  GeneratorConfig  `toml:"generator"`
	References ReferencesConfig `toml:"references"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port string `toml:"port"`
}

// BibleConfig configures the verse lookup service
type BibleConfig struct {
	BaseURL     string   `toml:"base_url"`
	Translation string   `toml:"translation"`
	Timeout     Duration `toml:"timeout"`
	// RequestsPerSecond of zero disables client-side throttling.
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// GeneratorConfig configures the text generation backends
type GeneratorConfig struct {
	// Backends are tried in order until one succeeds.
	Backends    []string          `toml:"backends"`
	Timeout     Duration          `toml:"timeout"`
	HuggingFace HuggingFaceConfig `toml:"huggingface"`
	Ollama      OllamaConfig      `toml:"ollama"`
	ONNX        ONNXConfig        `toml:"onnx"`
}

// HuggingFaceConfig configures the Hugging Face Inference API backend
type HuggingFaceConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	Token   string `toml:"-"`
	// RequestsPerSecond of zero disables client-side throttling.
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// OllamaConfig configures the Ollama backend
type OllamaConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// ONNXConfig configures the local ONNX backend. The model must be a
// decoder-only export without KV cache: inputs input_ids, attention_mask
// and optionally position_ids, output logits.
type ONNXConfig struct {
	ModelPath     string `toml:"model_path"`
	TokenizerPath string `toml:"tokenizer_path"`
	ModelURL      string `toml:"model_url"`
	TokenizerURL  string `toml:"tokenizer_url"`
	// DataURL is the external weights file, saved next to the model as
	// model.onnx_data.
	DataURL         string   `toml:"data_url"`
	DownloadTimeout Duration `toml:"download_timeout"`
	LibraryPath     string   `toml:"library_path"`
	PositionIDs     bool     `toml:"position_ids"`
	VocabSize       int      `toml:"vocab_size"`
	ContextLength   int      `toml:"context_length"`
	EOSTokenID      int      `toml:"eos_token_id"`
	BOSTokenID      int      `toml:"bos_token_id"`
}

// ReferencesConfig controls how proposed references are validated
type ReferencesConfig struct {
	// Strict enables the Book Chapter:Verse grammar instead of the colon check.
	Strict bool `toml:"strict"`
}

// Duration is a time.Duration that reads and writes as a string such as "10s"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Backend names
const (
	BackendONNX        = "onnx"
	BackendHuggingFace = "huggingface"
	BackendOllama      = "ollama"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "SCRIPTUREQA_"

// BibleAPI contains the defaults for the verse lookup service
var BibleAPI = struct {
	BaseURL     string
	Translation string
	Timeout     time.Duration
}{
	BaseURL:     "https://bible-api.com",
	Translation: "kjv",
	Timeout:     10 * time.Second,
}

// ModelConfig contains model-specific defaults
var ModelConfig = struct {
	HuggingFaceURL   string
	HuggingFaceModel string
	OllamaURL        string
	OllamaModel      string
	VocabSize        int
	ContextLength    int
	EOSTokenID       int
	BOSTokenID       int
}{
	HuggingFaceURL:   "https://api-inference.huggingface.co",
	HuggingFaceModel: "google/flan-t5-small",
	OllamaURL:        "http://localhost:11434",
	OllamaModel:      "llama3.2",
	VocabSize:        32000,
	ContextLength:    2048,
	EOSTokenID:       2,
	BOSTokenID:       1,
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir: "./data",
		Server: ServerConfig{
			Port: "8080",
		},
		Bible: BibleConfig{
			BaseURL:           BibleAPI.BaseURL,
			Translation:       BibleAPI.Translation,
			Timeout:           Duration{BibleAPI.Timeout},
			RequestsPerSecond: 0.5,
			Burst:             5,
		},
		Generator: GeneratorConfig{
			Backends: []string{BackendHuggingFace},
			Timeout:  Duration{120 * time.Second},
			HuggingFace: HuggingFaceConfig{
				BaseURL:           ModelConfig.HuggingFaceURL,
				Model:             ModelConfig.HuggingFaceModel,
				RequestsPerSecond: 1,
				Burst:             2,
			},
			Ollama: OllamaConfig{
				BaseURL: ModelConfig.OllamaURL,
				Model:   ModelConfig.OllamaModel,
			},
			ONNX: ONNXConfig{
				DownloadTimeout: Duration{30 * time.Minute},
				VocabSize:       ModelConfig.VocabSize,
				ContextLength:   ModelConfig.ContextLength,
				EOSTokenID:      ModelConfig.EOSTokenID,
				BOSTokenID:      ModelConfig.BOSTokenID,
			},
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file, an
// optional .env file and the environment, in that order of precedence.
// A missing file at path is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Bible.BaseURL = getEnv("BIBLE_URL", c.Bible.BaseURL)
	c.Bible.Translation = getEnv("BIBLE_TRANSLATION", c.Bible.Translation)
	c.Bible.Timeout.Duration = getEnvDuration("BIBLE_TIMEOUT", c.Bible.Timeout.Duration)
	c.Generator.Timeout.Duration = getEnvDuration("GENERATOR_TIMEOUT", c.Generator.Timeout.Duration)
	if v, ok := lookupEnv("BACKENDS"); ok {
		c.Generator.Backends = splitList(v)
	}
	c.Generator.HuggingFace.BaseURL = getEnv("HF_URL", c.Generator.HuggingFace.BaseURL)
	c.Generator.HuggingFace.Model = getEnv("HF_MODEL", c.Generator.HuggingFace.Model)
	if token, ok := os.LookupEnv("HF_TOKEN"); ok {
		c.Generator.HuggingFace.Token = token
	}
	c.Generator.Ollama.BaseURL = getEnv("OLLAMA_URL", c.Generator.Ollama.BaseURL)
	c.Generator.Ollama.Model = getEnv("OLLAMA_MODEL", c.Generator.Ollama.Model)
	c.Generator.ONNX.ModelPath = getEnv("ONNX_MODEL", c.Generator.ONNX.ModelPath)
	c.Generator.ONNX.ModelURL = getEnv("ONNX_MODEL_URL", c.Generator.ONNX.ModelURL)
	c.Generator.ONNX.TokenizerURL = getEnv("ONNX_TOKENIZER_URL", c.Generator.ONNX.TokenizerURL)
	c.Generator.ONNX.LibraryPath = getEnv("ONNX_LIBRARY", c.Generator.ONNX.LibraryPath)
	c.References.Strict = getEnvBool("STRICT_REFERENCES", c.References.Strict)
}

// Validate checks that all required configuration fields are set
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Bible.BaseURL == "" {
		return fmt.Errorf("bible base_url cannot be empty")
	}
	if c.Bible.Translation == "" {
		return fmt.Errorf("bible translation cannot be empty")
	}
	if c.Bible.Timeout.Duration <= 0 {
		return fmt.Errorf("bible timeout must be > 0")
	}
	if c.Bible.RequestsPerSecond < 0 {
		return fmt.Errorf("bible requests_per_second must be >= 0")
	}
	if c.Generator.HuggingFace.RequestsPerSecond < 0 {
		return fmt.Errorf("huggingface requests_per_second must be >= 0")
	}
	if c.Generator.Timeout.Duration <= 0 {
		return fmt.Errorf("generator timeout must be > 0")
	}
	if len(c.Generator.Backends) == 0 {
		return fmt.Errorf("at least one generator backend is required")
	}
	for _, b := range c.Generator.Backends {
		switch b {
		case BackendONNX, BackendHuggingFace, BackendOllama:
		default:
			return fmt.Errorf("unknown generator backend: %s", b)
		}
	}
	if c.Generator.ONNX.VocabSize <= 0 || c.Generator.ONNX.ContextLength <= 0 {
		return fmt.Errorf("onnx vocab_size and context_length must be > 0")
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	return os.LookupEnv(EnvPrefix + key)
}

func getEnv(key, fallback string) string {
	if value, ok := lookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare integers are seconds.
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
