package table

import (
	"context"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/mangoautomation/dashboard-data-apis/log"
	"github.com/mangoautomation/dashboard-data-apis/notify"
	"github.com/mangoautomation/dashboard-data-apis/query"
	"github.com/mangoautomation/dashboard-data-apis/rest"
	e "github.com/mangoautomation/dashboard-data-apis/rest/errors"
	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
	"github.com/mangoautomation/dashboard-data-apis/settings"
)

var (
	columnValidator *validator.Validate
	trans           ut.Translator
)

func init() {
	columnValidator = validator.New()

	uni := ut.New(en.New(), en.New())
	trans, _ = uni.GetTranslator("en")

	_ = enTranslations.RegisterDefaultTranslations(columnValidator, trans)

	_ = columnValidator.RegisterTranslation("oneof", trans, func(ut ut.Translator) error {
		return ut.Add("Column.Type", "{0} must be a valid column type", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		translator, _ := ut.T("Column.Type", fe.Field())
		return translator
	})
}

func validateColumn(column Column) error {
	if err := columnValidator.Struct(column); err != nil {
		return e.TranslateValidatorError(err, trans)
	}
	return nil
}

// FetchFunc loads one page of rows for a built query.
type FetchFunc[T any] func(ctx context.Context, expr query.Expression) (m.Page[T], error)

// FetchFrom queries a REST collection.
func FetchFrom[T any](client *rest.Client[T]) FetchFunc[T] {
	return client.Query
}

// Options configure a Controller. IDFunc and Fetch are required.
type Options[T any] struct {
	// StorageKey scopes persisted settings, tables sharing a key share settings. Empty disables
	// persistence.
	StorageKey     string
	DefaultColumns []Column
	DefaultSort    []query.Sort
	PageSize       int
	SelectMultiple bool
	MultiSort      bool

	// IDFunc returns the stable identifier of a row, used for selection and live updates
	IDFunc func(T) string
	Fetch  FetchFunc[T]

	// CustomizeQuery may add predicates to every query
	CustomizeQuery func(*query.Builder) error

	// RowFilter post-filters fetched rows client-side
	RowFilter func([]T) []T

	Store    settings.Store
	Logger   log.Logger
	Notifier notify.Notifier

	// IDColumn is appended as the last sort so paging is stable, unless DisableSortByID is set
	IDColumn        string
	DisableSortByID bool
}
