package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the command ran but reported failures (sweep errors, healed counters)
	ExitCommandError = 2 // bad flags, unreachable database
)

type ExitError struct {
	Code    int
	Message string
	Err     error
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

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns ExitFailure for errors that carry no code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

type response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// printResult writes data as a JSON envelope or as the given text lines.
func printResult(w io.Writer, format string, data interface{}, cmdErr error, text ...string) error {
	if format == "json" {
		resp := response{Status: "ok", Data: data}
		if cmdErr != nil {
			resp.Status = "error"
			resp.Error = cmdErr.Error()
		}
		return json.NewEncoder(w).Encode(resp)
	}

	for _, line := range text {
		fmt.Fprintln(w, line)
	}
	if cmdErr != nil {
		fmt.Fprintf(w, "errors: %v\n", cmdErr)
	}
	return nil
}
