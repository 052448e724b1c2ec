// Package cli wires the cobra command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dpshade/scriptureqa/internal/api"
	"github.com/dpshade/scriptureqa/internal/bible"
	"github.com/dpshade/scriptureqa/internal/config"
	"github.com/dpshade/scriptureqa/internal/generator"
	"github.com/dpshade/scriptureqa/internal/pipeline"
)

var (
	cfgFile   string
	debugMode bool
	dataDir   string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "scriptureqa",
	Short: "Answer Bible questions with cited verses",
	Long: `scriptureqa answers natural-language questions about the Bible.

Each question runs through three stages: a language model proposes verse
references, the references are looked up in a public Bible API, and the
model composes a short answer grounded in the verses that resolved.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "./scriptureqa.toml", "path to the TOML config file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "directory for downloaded models and logs")
}

// Execute runs the root command until it finishes or the process is signalled.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("debug") {
		loaded.Debug = debugMode
	}
	if cmd.Flags().Changed("data") {
		loaded.DataDir = dataDir
	}
	cfg = loaded

	setupLogging(cfg.Debug, os.Stderr)
	return nil
}

// setupLogging configures the global zerolog logger.
func setupLogging(debug bool, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	}
}

// asker runs one turn; satisfied by *pipeline.Orchestrator.
type asker interface {
	Run(ctx context.Context, question string, rec pipeline.Recorder) (*pipeline.Result, error)
}

// services holds everything a command needs to answer questions.
type services struct {
	asker  asker
	info   api.StatusInfo
	warmup func(context.Context)
	closer io.Closer
}

func (s *services) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// buildServices is replaced in tests.
var buildServices = newServices

func newServices(cfg *config.Config) (*services, error) {
	gen, err := generator.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	client := bible.NewClient(cfg.Bible)
	orchestrator := pipeline.NewOrchestrator(gen, client, pipeline.Options{
		StrictReferences: cfg.References.Strict,
	})

	return &services{
		asker: orchestrator,
		info: api.StatusInfo{
			Backends:         gen.Backends(),
			Translation:      client.Translation(),
			StrictReferences: cfg.References.Strict,
		},
		warmup: gen.Warmup,
		closer: gen,
	}, nil
}
