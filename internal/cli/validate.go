package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool       `json:"valid"`
	Programs []string   `json:"programs"`
	Errors   []CLIError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <programs-dir>",
		Short: "Validate programs without printing IR",
		Long: `Validate the CUE programs in a directory.

Checks that every program compiles and is structurally sound: buffers
have shapes and known element types, accesses match buffer ranks, every
variable is bound and no loop variable is rebound in its own body.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadPrograms(dir, LoadModeCollectAll)
	if loadResult == nil {
		code, msg := firstLoadError(loadErrors)
		return commandError(formatter, code, msg)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)

	result := ValidationResult{Valid: len(loadErrors) == 0, Programs: []string{}}
	for _, p := range loadResult.Programs {
		formatter.VerboseLog("Validated program: %s", p.Name)
		result.Programs = append(result.Programs, p.Name)
	}
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, toCLIError(err))
	}

	if !result.Valid {
		if formatter.Format == "json" {
			return formatter.Fail(ExitFailure, result.Errors[0].Code,
				fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)), result)
		}
		fmt.Fprintf(formatter.Writer, "✗ Validation failed with %d error(s)\n\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Code, e.Message)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ All %d program(s) valid\n", len(result.Programs))
	return nil
}
