package configuration

import "fmt"

// OperationError identifies the build action that could not be described.
type OperationError struct {
	Op      string
	Subject string
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Subject, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
