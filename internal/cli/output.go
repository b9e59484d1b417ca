package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/reactor/internal/harness"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // every scenario passed, journal verified
	ExitFailure      = 1 // a scenario, golden file or journal check failed
	ExitCommandError = 2 // the command itself could not do its job
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeUsage   = "E000" // bad flags or arguments
	ErrCodeLoad    = "E001" // scenario file unreadable or malformed
	ErrCodeSchema  = "E002" // scenario violates the schema
	ErrCodeRun     = "E003" // scenario could not run
	ErrCodeJournal = "E004" // journal database error
	ErrCodeCheck   = "E005" // expectation, golden or digest mismatch
)

// ExitError is a command error with the process exit code and the error
// code it is reported under.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	ErrCode string // one of the ErrCode constants; empty means ErrCodeUsage
	Message string
	Err     error // optional
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// checkFailed reports a scenario, golden or journal verdict that went the
// wrong way.
func checkFailed(message string) *ExitError {
	return &ExitError{Code: ExitFailure, ErrCode: ErrCodeCheck, Message: message}
}

// journalError reports a failure reading or writing the journal database.
func journalError(message string, err error) *ExitError {
	return &ExitError{Code: ExitCommandError, ErrCode: ErrCodeJournal, Message: message, Err: err}
}

// loadError reports a scenario that could not be loaded, as a schema error
// when the file parsed but failed validation.
func loadError(message string, err error) *ExitError {
	return &ExitError{Code: ExitCommandError, ErrCode: loadErrCode(err), Message: message, Err: err}
}

func loadErrCode(err error) string {
	var schemaErr *harness.SchemaError
	if errors.As(err, &schemaErr) {
		return ErrCodeSchema
	}
	return ErrCodeLoad
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// errorCode returns the CLIError code err is reported under.
func errorCode(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.ErrCode != "" {
		return exitErr.ErrCode
	}
	return ErrCodeUsage
}

// CLIResponse is the envelope every command writes with --format json.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // command result
	Error  *CLIError `json:"error,omitempty"` // set when Status is "error"
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeResult writes data to w in an "ok" envelope.
//
// A command that fails a check still writes its result first, so a JSON
// consumer sees the failing data on stdout and the error envelope on stderr.
func writeResult(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(CLIResponse{Status: "ok", Data: data})
}

// reportError writes err to w as an "error" envelope in json format and as
// a single line otherwise.
func reportError(w io.Writer, format string, err error) {
	code := errorCode(err)
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error()},
		}); encErr == nil {
			return
		}
	}
	fmt.Fprintf(w, "Error [%s]: %v\n", code, err)
}

// verbosef writes a diagnostic line to w when verbose output is on. Callers
// pass stderr so diagnostics never mix into JSON on stdout.
func verbosef(opts *RootOptions, w io.Writer, format string, args ...any) {
	if opts.Verbose {
		fmt.Fprintf(w, format+"\n", args...)
	}
}
