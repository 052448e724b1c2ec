package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dpshade/scriptureqa/internal/session"
	"github.com/dpshade/scriptureqa/internal/tui"
)

const chatLogFile = "scriptureqa.log"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive Bible study session",
	Long: `Launches the terminal chat. Answered questions are kept for the
lifetime of the session and discarded on exit.

Controls:
  Enter      - Ask
  PgUp/PgDn  - Scroll
  Esc/Ctrl+C - Quit

Logs are written to scriptureqa.log in the data directory.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("panic in TUI: %v", r)
		}
	}()

	logFile, err := redirectLogs(cfg.DataDir)
	if err != nil {
		return err
	}
	defer logFile.Close()

	svc, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	model, err := tui.New(cmd.Context(), svc.asker, session.NewTranscript())
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// redirectLogs sends the global logger to a file so it does not draw over the UI.
func redirectLogs(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, chatLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return f, nil
}
