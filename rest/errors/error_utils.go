package errors

import (
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// TranslateValidatorError converts the field errors of a go-playground validator run into a single
// PreconditionError with translated, sorted messages. Any other error is returned unchanged.
func TranslateValidatorError(err error, trans ut.Translator) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	translated := validationErrs.Translate(trans)
	vals := make([]string, 0, len(translated))
	for _, value := range translated {
		vals = append(vals, value)
	}
	sort.Strings(vals)

	return &PreconditionError{msg: strings.Join(vals, "; ")}
}
