package models

// ModelError is the body of a failed REST request.
type ModelError struct {
	MangoStatusName  string       `json:"mangoStatusName,omitempty"`
	MangoStatusCode  int          `json:"mangoStatusCode,omitempty"`
	LocalizedMessage string       `json:"localizedMessage,omitempty"`
	Result           *ErrorResult `json:"result,omitempty"`
	Cause            string       `json:"cause,omitempty"`
}

// ErrorResult holds the validation messages of a 422 response.
type ErrorResult struct {
	Messages []ValidationMessage `json:"messages"`
}
