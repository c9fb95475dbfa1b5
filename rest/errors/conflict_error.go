package errors

// ConflictError is returned when the server rejects a save because the XID is already in use.
type ConflictError struct {
	msg string
}

func (e *ConflictError) Error() string {
	return e.msg
}

func NewConflictError(text string) error {
	return &ConflictError{text}
}
