package cmd

import (
	"fmt"
	"os"

	"zephyr-reconciliation-service/pkg/errors"

	"github.com/spf13/viper"
)

// CLIErrorHandler renders errors for terminal users and maps them to process
// exit codes.
type CLIErrorHandler struct {
	verbose bool
}

// NewCLIErrorHandler creates an error handler honoring the --verbose flag.
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{verbose: viper.GetBool("verbose")}
}

// HandleError prints a user-facing description of err to stderr and returns
// the exit code the process should terminate with.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	recErr, ok := errors.AsReconcilerError(err)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stderr, "Error: %s\n", recErr.Message)

	if recErr.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "Suggestion: %s\n", recErr.Suggestion)
	}

	if h.verbose {
		if len(recErr.Context) > 0 {
			fmt.Fprintln(os.Stderr, "Context:")
			for key, value := range recErr.Context {
				fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
			}
		}
		if recErr.Cause != nil {
			fmt.Fprintf(os.Stderr, "Cause: %v\n", recErr.Cause)
		}
	}

	return recErr.GetExitCode()
}
