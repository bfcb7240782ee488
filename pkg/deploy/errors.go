package deploy

import (
	"errors"
	"fmt"

	"github.com/cuemby/hoist/pkg/migrate"
)

// Process exit codes
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitRetriesExhausted = 2
)

// InputError is returned for a malformed command line value
type InputError struct {
	Param  string
	Value  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("invalid arguments: %v", e.Err)
	}
	return fmt.Sprintf("invalid -%s %q: %s", e.Param, e.Value, e.Reason)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// MigrationFailedError reports a migration that ran and failed without being
// retried
type MigrationFailedError struct {
	Result *migrate.Result
}

func (e *MigrationFailedError) Error() string {
	if e.Result != nil && e.Result.Err != nil {
		return fmt.Sprintf("database migration failed: %v", e.Result.Err)
	}
	return "database migration failed"
}

func (e *MigrationFailedError) Unwrap() error {
	if e.Result == nil {
		return nil
	}
	return e.Result.Err
}

// ExitCode maps a command error to the process exit code. Only exhausted
// migration retries are fatal.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exhausted *migrate.RetriesExhaustedError
	if errors.As(err, &exhausted) {
		return ExitRetriesExhausted
	}
	return ExitFailure
}
