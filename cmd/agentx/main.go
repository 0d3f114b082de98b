package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // All tasks succeeded
	ExitEvalFailed = 1 // One or more tasks failed, timed out, or errored
	ExitError      = 2 // Configuration or runtime error
)

// EvalFailureError indicates that the evaluation ran to completion, but one
// or more tasks did not succeed.
type EvalFailureError struct {
	Message string
}

func (e *EvalFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var evalErr *EvalFailureError
		if errors.As(err, &evalErr) {
			os.Exit(ExitEvalFailed)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
