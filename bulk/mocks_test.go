package bulk

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
)

type row struct {
	XID        string `json:"xid"`
	Name       string `json:"name"`
	PurgeType  string `json:"purgeType,omitempty"`
	PurgeCount int    `json:"purgeCount,omitempty"`
}

type clientMock struct {
	mock.Mock
}

func (o *clientMock) StartBulk(ctx context.Context, request m.BulkRequest) (*m.Task, error) {
	args := o.Called(request)
	return taskOrNil(args.Get(0)), args.Error(1)
}

func (o *clientMock) GetTask(ctx context.Context, id string) (*m.Task, error) {
	args := o.Called(id)
	return taskOrNil(args.Get(0)), args.Error(1)
}

func (o *clientMock) CancelTask(ctx context.Context, id string) (*m.Task, error) {
	args := o.Called(id)
	return taskOrNil(args.Get(0)), args.Error(1)
}

func (o *clientMock) DecodeBody(raw json.RawMessage) (row, error) {
	var r row
	err := json.Unmarshal(raw, &r)
	return r, err
}

func taskOrNil(value interface{}) *m.Task {
	if value == nil {
		return nil
	}
	return value.(*m.Task)
}

func body(r row) json.RawMessage {
	data, _ := json.Marshal(r)
	return data
}

func ok(action m.BulkAction, r row) m.IndividualResponse {
	return m.IndividualResponse{Action: action, XID: r.XID, HTTPStatus: 200, Body: body(r)}
}

func invalid(action m.BulkAction, xid string, messages ...m.ValidationMessage) m.IndividualResponse {
	return m.IndividualResponse{
		Action:     action,
		XID:        xid,
		HTTPStatus: 422,
		Error: &m.ModelError{
			MangoStatusName:  "VALIDATION_FAILED",
			LocalizedMessage: "Validation failed",
			Result:           &m.ErrorResult{Messages: messages},
		},
	}
}

func message(property, text string) m.ValidationMessage {
	return m.ValidationMessage{Level: "ERROR", Property: property, Message: text}
}
