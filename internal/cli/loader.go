package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tensorcheck/internal/compiler"
	"github.com/roach88/tensorcheck/internal/ir"
)

// LoadMode controls how errors are handled during program loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the programs loaded from a directory.
type LoadResult struct {
	Programs  []*ir.Program
	CUEValue  cue.Value
	FileCount int
}

// Program returns the loaded program with the given name, or nil.
func (r *LoadResult) Program(name string) *ir.Program {
	for _, p := range r.Programs {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// LoadError represents an error that occurred during program loading.
type LoadError struct {
	Code    string
	Message string
	Field   string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.describe())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.describe())
}

// describe is the message without code or position.
func (e *LoadError) describe() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// LoadPrograms loads the CUE package in dir, compiles every program under
// its top-level "program" field and validates the result. Programs that
// fail to compile or validate are left out of the result.
func LoadPrograms(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("programs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing programs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{CUEValue: value, FileCount: len(cueFiles)}

	programs, compileErrs := compiler.CompileAll(value)
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}

	for _, p := range programs {
		verrs := compiler.Validate(p)
		for _, v := range verrs {
			errs = append(errs, &LoadError{
				Code:    v.Code,
				Message: v.Message,
				Field:   "program." + p.Name + "/" + v.Field,
			})
			if mode == LoadModeFailFast {
				return result, errs
			}
		}
		if len(verrs) == 0 {
			result.Programs = append(result.Programs, p)
		}
	}

	if len(programs) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no programs found"})
	}
	return result, errs
}

// FindCUEFiles returns the .cue files directly inside dir, the files of the
// package load.Instances reads.
func FindCUEFiles(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.cue"))
}

func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompile,
			Message: compileErr.Message,
			Field:   compileErr.Field,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeCompile, Message: err.Error()}
}

// Error code constants, unified across all CLI commands. Structural
// validation uses the compiler's E1xx codes and bounds violations use E201.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path or program not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeBadFlag     = "E008" // Malformed flag value
	ErrCodeLedger      = "E009" // Ledger open/read/write error
	ErrCodeCompile     = "E010" // Program compile error
	ErrCodeRuntime     = "E300" // Interpreter failure
)

// firstLoadError renders the first error of a failed load.
func firstLoadError(errs []error) (string, string) {
	var loadErr *LoadError
	if errors.As(errs[0], &loadErr) {
		return loadErr.Code, loadErr.describe()
	}
	return ErrCodeGeneric, errs[0].Error()
}
