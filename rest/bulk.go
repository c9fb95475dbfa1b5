package rest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	e "github.com/mangoautomation/dashboard-data-apis/rest/errors"
	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
)

var (
	inputValidator *validator.Validate
	trans          ut.Translator
)

func init() {
	inputValidator = validator.New()

	uni := ut.New(en.New(), en.New())
	trans, _ = uni.GetTranslator("en")

	_ = enTranslations.RegisterDefaultTranslations(inputValidator, trans)

	_ = inputValidator.RegisterTranslation("oneof", trans, func(ut ut.Translator) error {
		return ut.Add("IndividualRequest.Action", "{0} must be one of CREATE, UPDATE or DELETE", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		translator, _ := ut.T("IndividualRequest.Action", fe.Field())
		return translator
	})

	_ = inputValidator.RegisterTranslation("required_unless", trans, func(ut ut.Translator) error {
		return ut.Add("IndividualRequest.XID", "{0} is required to update or delete an item", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		translator, _ := ut.T("IndividualRequest.XID", fe.Field())
		return translator
	})
}

// ValidateBulkRequest checks a bulk request before it is sent. Requests without an action inherit
// the action of the bulk request.
func ValidateBulkRequest(request *m.BulkRequest) error {
	for i := range request.Requests {
		if request.Requests[i].Action == "" {
			request.Requests[i].Action = request.Action
		}
	}
	if err := inputValidator.Struct(request); err != nil {
		return e.TranslateValidatorError(err, trans)
	}
	return nil
}

// StartBulk submits the requests as one server-side task and returns its initial state.
func (c *Client[T]) StartBulk(ctx context.Context, request m.BulkRequest) (*m.Task, error) {
	if err := ValidateBulkRequest(&request); err != nil {
		return nil, err
	}

	var task m.Task
	if err := c.do(ctx, http.MethodPost, c.BasePath()+bulkSuffix, request, &task); err != nil {
		return nil, err
	}
	c.logger.Debug("bulk task started",
		"collection", c.collection,
		"task", task.ID,
		"requests", len(request.Requests))
	return &task, nil
}

func (c *Client[T]) GetTask(ctx context.Context, id string) (*m.Task, error) {
	var task m.Task
	if err := c.do(ctx, http.MethodGet, c.taskPath(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelTask asks the server to stop a running task. The task reaches CANCELLED asynchronously.
func (c *Client[T]) CancelTask(ctx context.Context, id string) (*m.Task, error) {
	var task m.Task
	update := m.TaskStatusUpdate{Status: m.TaskCancelled}
	if err := c.do(ctx, http.MethodPut, c.taskPath(id), update, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client[T]) taskPath(id string) string {
	return c.BasePath() + bulkSuffix + "/" + url.PathEscape(id)
}
