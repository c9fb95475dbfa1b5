package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
)

// APIError is a non-2xx response from the REST API. For validation failures (422) Messages holds the
// structured per-property messages.
type APIError struct {
	Status     int
	StatusName string
	StatusText string
	Messages   []m.ValidationMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.StatusText)
}

// IsValidation reports whether the server rejected the payload with validation messages.
func (e *APIError) IsValidation() bool {
	return e.Status == http.StatusUnprocessableEntity
}

// NewAPIError builds an APIError from the raw response status and body. A body that is not a
// Mango error object still produces a usable error carrying the HTTP status text.
func NewAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		Status:     status,
		StatusText: http.StatusText(status),
	}

	var model m.ModelError
	if len(body) == 0 || json.Unmarshal(body, &model) != nil {
		return apiErr
	}

	apiErr.StatusName = model.MangoStatusName
	if model.LocalizedMessage != "" {
		apiErr.StatusText = model.LocalizedMessage
	}
	if model.Result != nil {
		apiErr.Messages = model.Result.Messages
	}
	return apiErr
}

// StatusText returns the text that should be shown to a user for any error returned by the client.
func StatusText(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusText
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// ValidationMessages extracts the structured messages of a 422 error, nil for any other error.
func ValidationMessages(err error) []m.ValidationMessage {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsValidation() {
		return apiErr.Messages
	}
	return nil
}
