package installation

import "fmt"

// InvalidIdentifierError is returned when the installation id is not a UUID
type InvalidIdentifierError struct {
	Input string
	Err   error
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid installation id %q", e.Input)
}

func (e *InvalidIdentifierError) Unwrap() error {
	return e.Err
}

// ValidationUnavailableError means the identity service could not confirm the
// installation: network failure, a non-success status, or an unreadable body.
type ValidationUnavailableError struct {
	StatusCode int
	Err        error
}

func (e *ValidationUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("unable to validate installation id: identity service returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("unable to validate installation id: %v", e.Err)
}

func (e *ValidationUnavailableError) Unwrap() error {
	return e.Err
}

// UnknownInstallationError is returned when the identity service has no
// record of the installation id
type UnknownInstallationError struct {
	ID string
}

func (e *UnknownInstallationError) Error() string {
	return fmt.Sprintf("installation id %s is not registered", e.ID)
}

// DisabledInstallationError is returned when the installation exists but has
// been disabled
type DisabledInstallationError struct {
	ID string
}

func (e *DisabledInstallationError) Error() string {
	return fmt.Sprintf("installation id %s has been disabled", e.ID)
}
