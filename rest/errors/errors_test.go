package errors

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIErrorValidation(t *testing.T) {
	body := `{
	  "mangoStatusName": "VALIDATION_FAILED",
	  "localizedMessage": "Validation failed",
	  "result": {"messages": [
	    {"level": "ERROR", "property": "name", "message": "Required"},
	    {"level": "WARNING", "message": "Publisher disabled"}
	  ]}
	}`
	apiErr := NewAPIError(http.StatusUnprocessableEntity, []byte(body))

	assert.True(t, apiErr.IsValidation())
	assert.Equal(t, "VALIDATION_FAILED", apiErr.StatusName)
	assert.Equal(t, "Validation failed", apiErr.StatusText)
	assert.Len(t, apiErr.Messages, 2)
	assert.Equal(t, "name", apiErr.Messages[0].Property)
	assert.Equal(t, apiErr.Messages, ValidationMessages(apiErr))
}

func TestNewAPIErrorNonJSONBody(t *testing.T) {
	items := []struct {
		status int
		body   string
		text   string
	}{
		{http.StatusInternalServerError, "", "Internal Server Error"},
		{http.StatusBadGateway, "<html>bad gateway</html>", "Bad Gateway"},
		{http.StatusForbidden, `{"localizedMessage": "Permission denied"}`, "Permission denied"},
	}

	for _, item := range items {
		apiErr := NewAPIError(item.status, []byte(item.body))
		assert.False(t, apiErr.IsValidation())
		assert.Equal(t, item.text, apiErr.StatusText)
		assert.Nil(t, ValidationMessages(apiErr))
	}
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "", StatusText(nil))
	assert.Equal(t, "Not Found", StatusText(NewAPIError(http.StatusNotFound, nil)))

	transportErr := NewTransportError("unable to reach server", io.ErrUnexpectedEOF)
	assert.Equal(t, "unable to reach server: unexpected EOF", StatusText(transportErr))
	assert.True(t, errors.Is(transportErr, io.ErrUnexpectedEOF))
}

func TestTranslateValidatorError(t *testing.T) {
	validate := validator.New()
	uni := ut.New(en.New(), en.New())
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	type payload struct {
		Name string `validate:"required"`
	}

	err := TranslateValidatorError(validate.Struct(payload{}), trans)
	assert.EqualError(t, err, "Name is a required field")

	other := errors.New("plain")
	assert.Equal(t, other, TranslateValidatorError(other, trans))
}
