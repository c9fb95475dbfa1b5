package errors

import "fmt"

// PreconditionError is raised client-side, no request is sent when it is returned.
type PreconditionError struct {
	msg string
}

func (e *PreconditionError) Error() string {
	return e.msg
}

func NewPreconditionError(format string, args ...interface{}) error {
	return &PreconditionError{fmt.Sprintf(format, args...)}
}
