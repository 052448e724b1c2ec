package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dpshade/scriptureqa/internal/pipeline"
	"github.com/dpshade/scriptureqa/internal/reference"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question",
	Long: `Answers one question and exits.
The model proposes verse references, the verses are fetched and the model
writes an answer citing them.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, runErr := svc.asker.Run(cmd.Context(), args[0], nil)

	if askJSON && result != nil {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return runErr
	}

	switch {
	case runErr == nil:
		outputAnswer(cmd, result.Answer)
		return nil
	case errors.Is(runErr, pipeline.ErrNoVersesResolved):
		cmd.PrintErrln("Could not fetch Bible verses. Please try again.")
		return runErr
	default:
		return runErr
	}
}

// outputAnswer writes the answer, timing and references to stdout
func outputAnswer(cmd *cobra.Command, a *pipeline.Answer) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, a.Text)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Generated in %.1fs\n", a.Elapsed.Seconds())
	fmt.Fprintln(out, "References: "+strings.Join(reference.Strings(a.References), ", "))
}
