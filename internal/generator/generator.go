package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dpshade/scriptureqa/internal/config"
	"github.com/rs/zerolog/log"
)

// ErrEmptyOutput is returned when a backend answers with blank text
var ErrEmptyOutput = errors.New("model returned empty output")

// Generator produces text from a prompt, bounded by maxLength tokens
type Generator interface {
	Generate(ctx context.Context, prompt string, maxLength int) (string, error)
}

// Backend is a named Generator
type Backend interface {
	Generator
	Name() string
}

// Service tries its backends in order and returns the first non-empty output.
// It is built once per process and shared; it holds no per-request state.
type Service struct {
	backends []Backend
	timeout  time.Duration
}

// NewService creates the generator service described by cfg
func NewService(cfg *config.Config) (*Service, error) {
	backends := make([]Backend, 0, len(cfg.Generator.Backends))
	for _, name := range cfg.Generator.Backends {
		switch name {
		case config.BackendHuggingFace:
			backends = append(backends, NewHuggingFaceGenerator(cfg.Generator.HuggingFace, cfg.Generator.Timeout.Duration))
		case config.BackendOllama:
			backends = append(backends, NewOllamaGenerator(cfg.Generator.Ollama, cfg.Generator.Timeout.Duration))
		case config.BackendONNX:
			backends = append(backends, NewONNXGenerator(cfg.Generator.ONNX, cfg.DataDir))
		default:
			return nil, fmt.Errorf("unknown generator backend: %s", name)
		}
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no generator backends configured")
	}

	log.Info().Strs("backends", cfg.Generator.Backends).Msg("Generator service initialized")
	return NewServiceWithBackends(cfg.Generator.Timeout.Duration, backends...), nil
}

// NewServiceWithBackends creates a service from explicit backends
func NewServiceWithBackends(timeout time.Duration, backends ...Backend) *Service {
	return &Service{
		backends: backends,
		timeout:  timeout,
	}
}

// Generate runs the prompt through the first backend that succeeds
func (s *Service) Generate(ctx context.Context, prompt string, maxLength int) (string, error) {
	if maxLength <= 0 {
		return "", fmt.Errorf("max length must be positive, got %d", maxLength)
	}

	var errs []error
	for _, b := range s.backends {
		out, err := s.generateWith(ctx, b, prompt, maxLength)
		if err == nil {
			return out, nil
		}

		log.Debug().Err(err).Str("backend", b.Name()).Msg("Generator backend failed, falling back")
		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}

	return "", fmt.Errorf("all generator backends failed: %w", errors.Join(errs...))
}

func (s *Service) generateWith(ctx context.Context, b Backend, prompt string, maxLength int) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := b.Generate(ctx, prompt, maxLength)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

// Backends returns the backend names in the order they are tried
func (s *Service) Backends() []string {
	names := make([]string, len(s.backends))
	for i, b := range s.backends {
		names[i] = b.Name()
	}
	return names
}

// Warmup initialises backends that load local resources. Cancelling ctx
// abandons any pending download.
func (s *Service) Warmup(ctx context.Context) {
	for _, b := range s.backends {
		if w, ok := b.(interface{ Initialize(context.Context) error }); ok {
			if err := w.Initialize(ctx); err != nil {
				log.Warn().Err(err).Str("backend", b.Name()).Msg("Failed to initialize generator backend")
			} else {
				log.Info().Str("backend", b.Name()).Msg("Generator backend ready")
			}
		}
	}
}

// Close releases backend resources
func (s *Service) Close() error {
	var errs []error
	for _, b := range s.backends {
		if c, ok := b.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
