package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Process exit codes.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Run finished but some items failed
	ExitCommandError = 2 // Command error (bad config, unreachable store or gateway, aborted run)
)

// Error codes reported in JSON output.
const (
	ErrCodeConfig   = "E001" // Configuration could not be loaded
	ErrCodeStore    = "E002" // Route/audit store unavailable
	ErrCodeSession  = "E003" // Inventory login failed
	ErrCodeRun      = "E004" // Run aborted
	ErrCodeNotFound = "E005" // Requested run or route not found
)

// ExitError carries the process exit code out of a command.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps a command error to the process exit code. Errors that
// are not ExitErrors count as command errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// OutputFormatter writes command results as JSON or text.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error object inside a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// texter is implemented by payloads with a hand-written text rendering.
type texter interface {
	Text() string
}

// Success outputs a successful result in the configured format. Text output
// uses the payload's Text method when it has one and YAML otherwise.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}

	if t, ok := data.(texter); ok {
		_, err := io.WriteString(f.Writer, t.Text())
		return err
	}
	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("render output: %w", err)
	}
	_, err = f.Writer.Write(out)
	return err
}

// Error writes a failure. Details only show in text mode with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// fail reports an error through the formatter and returns the matching
// ExitError.
func fail(f *OutputFormatter, exit int, code, message string, err error) error {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %v", message, err)
	}
	_ = f.Error(code, msg, nil)
	return WrapExitError(exit, fmt.Sprintf("%s: %s", code, message), err)
}
