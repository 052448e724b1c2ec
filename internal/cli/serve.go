package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dpshade/scriptureqa/internal/api"
	"github.com/dpshade/scriptureqa/internal/session"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API.

Routes:
  GET  /health           liveness
  GET  /status           backends, translation and open sessions
  GET  /ask?q=...        answer a question
  POST /ask              answer a question, optionally within a session
  POST /sessions         open a session
  GET  /sessions/:id     session transcript
  DELETE /sessions/:id   end a session`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// newServer builds the echo instance with middleware and routes.
func newServer(svc *services, store *session.Store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	api.NewHandler(svc.asker, store, svc.info).Register(e)
	return e
}

func runServe(cmd *cobra.Command, _ []string) error {
	if servePort != "" {
		cfg.Server.Port = servePort
	}

	svc, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing generator")
		}
	}()

	// Load local models in the background so the server answers /health at once.
	if svc.warmup != nil {
		go func() {
			log.Info().Msg("Warming up generator backends...")
			svc.warmup(cmd.Context())
		}()
	}

	e := newServer(svc, session.NewStore())

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting HTTP server")
		errCh <- e.Start(fmt.Sprintf(":%s", cfg.Server.Port))
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-cmd.Context().Done():
	}

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error closing server")
	}
	return nil
}
