package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tensorcheck/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledProgram is the JSON form of one compiled program.
type CompiledProgram struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
	IR   any    `json:"ir"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <programs-dir>",
		Short: "Compile CUE programs to IR",
		Long: `Compile the CUE programs in a directory, validate them and print their IR.

With --format json, or with --output, each program is emitted as its
encoded IR tree together with its content hash.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write encoded IR to file")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadPrograms(dir, LoadModeCollectAll)
	if loadResult == nil {
		code, msg := firstLoadError(loadErrors)
		return commandError(formatter, code, msg)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, "Compilation failed", loadErrors)
	}

	compiled := make([]CompiledProgram, len(loadResult.Programs))
	for i, p := range loadResult.Programs {
		formatter.VerboseLog("Compiled program: %s", p.Name)
		hash, err := ir.ProgramHash(p)
		if err != nil {
			return commandError(formatter, ErrCodeGeneric, err.Error())
		}
		compiled[i] = CompiledProgram{Name: p.Name, Hash: hash, IR: ir.EncodeProgram(p)}
	}

	if opts.Output != "" {
		if err := writeJSONFile(opts.Output, compiled); err != nil {
			return commandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"programs": compiled})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d program(s)\n", len(loadResult.Programs))
	for _, p := range loadResult.Programs {
		fmt.Fprintln(w)
		fmt.Fprint(w, p.String())
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "\nWrote IR to %s\n", opts.Output)
	}
	return nil
}

// outputLoadErrors reports every load error and returns exit code 2.
func outputLoadErrors(formatter *OutputFormatter, title string, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		cliErrors[i] = toCLIError(err)
	}

	if formatter.Format == "json" {
		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("%s with %d error(s)", title, len(errs)))
	}

	fmt.Fprintf(formatter.Writer, "✗ %s\n\n", title)
	for _, err := range errs {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		e := toCLIError(err)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", e.Code, e.Message)
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("%s with %d error(s)", title, len(errs)))
}

func toCLIError(err error) CLIError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return CLIError{Code: loadErr.Code, Message: loadErr.describe()}
	}
	return CLIError{Code: ErrCodeGeneric, Message: err.Error()}
}

// writeJSONFile writes v as indented JSON. Canonical JSON without
// indentation is used only for hashing.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
