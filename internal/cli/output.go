package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes of the tap binary.
const (
	ExitSuccess      = 0 // every scenario passed, or the journal checked out
	ExitFailure      = 1 // a scenario failed or a journal digest did not match
	ExitCommandError = 2 // the command could not run: bad path, unreadable scenario, ...
)

// ExitError carries the process exit code a command failed with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to the process exit code. Errors that are not an
// ExitError (cobra flag and argument errors) exit with ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
	RunID  string    `json:"run_id,omitempty"` // journal run the data belongs to
}

// CLIError describes why a command reported "error".
type CLIError struct {
	Code    string `json:"code"` // E_SCENARIO_FAILED, E_TEST_FAILED, E_DIGEST_MISMATCH
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Report is the outcome of one command: its payload, the failure if any,
// and how to render both as text.
type Report struct {
	Data  any
	Fail  *CLIError
	RunID string

	// Text renders Data for --format text. Nil prints Fail alone.
	Text func(w io.Writer)
}

// OutputFormatter writes reports in the selected --format.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// Emit writes r. JSON output is one indented CLIResponse; text output is
// r.Text followed by the failure line, if any.
func (f *OutputFormatter) Emit(r Report) error {
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: r.Data, Error: r.Fail, RunID: r.RunID}
		if r.Fail != nil {
			resp.Status = "error"
		}
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if r.Text != nil {
		r.Text(f.Writer)
	}
	if r.Fail != nil && r.Text == nil {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", r.Fail.Code, r.Fail.Message)
		if f.Verbose && r.Fail.Details != nil {
			fmt.Fprintf(f.Writer, "Details: %v\n", r.Fail.Details)
		}
	}
	return nil
}

// VerboseLog writes a diagnostic line to the error writer when --verbose
// is set, so JSON on the main writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when it is unset.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
