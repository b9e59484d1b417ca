package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/reactor/internal/harness"
)

// FileValidation is the validation outcome for one scenario file.
type FileValidation struct {
	Path  string `json:"path"`
	Name  string `json:"name,omitempty"`
	Valid bool   `json:"valid"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-or-dir>...",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario files against the scenario schema.

Each argument is a scenario file or a directory of *.yaml / *.yml files.
Unknown fields, steps with zero or several actions, unknown events and
malformed durations are all reported.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	var paths []string
	for _, arg := range args {
		expanded, err := expandScenarioPath(arg)
		if err != nil {
			return loadError("failed to read "+arg, err)
		}
		paths = append(paths, expanded...)
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(paths))}
	for _, path := range paths {
		verbosef(opts, cmd.ErrOrStderr(), "validating %s", path)
		result.Files = append(result.Files, validateFile(path))
		if !result.Files[len(result.Files)-1].Valid {
			result.Valid = false
		}
	}

	if opts.Format == "json" {
		if err := writeResult(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, f := range result.Files {
			if f.Valid {
				fmt.Fprintf(w, "✓ %s\n", f.Path)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", f.Path)
			fmt.Fprintf(w, "  [%s] %s\n", f.Code, f.Error)
		}
	}

	if !result.Valid {
		return checkFailed("validation failed")
	}
	return nil
}

func validateFile(path string) FileValidation {
	s, err := harness.LoadScenario(path)
	if err == nil {
		return FileValidation{Path: path, Name: s.Name, Valid: true}
	}

	return FileValidation{Path: path, Code: loadErrCode(err), Error: err.Error()}
}

// expandScenarioPath returns path itself, or the scenario files in it if it
// is a directory.
func expandScenarioPath(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := findScenarioFiles(path, "")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", filepath.Clean(path))
	}
	return files, nil
}
