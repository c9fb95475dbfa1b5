package errors

// TransportError wraps a failure that happened before any HTTP response was received.
type TransportError struct {
	msg   string
	cause error
}

func (e *TransportError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *TransportError) Unwrap() error {
	return e.cause
}

func NewTransportError(text string, cause error) error {
	return &TransportError{msg: text, cause: cause}
}
