package models

import "encoding/json"

type BulkAction string

const (
	ActionCreate BulkAction = "CREATE"
	ActionUpdate BulkAction = "UPDATE"
	ActionDelete BulkAction = "DELETE"
)

// IndividualRequest is one entry of a bulk request. XID is the persisted identifier the request
// targets, empty for CREATE.
type IndividualRequest struct {
	Action BulkAction  `json:"action" validate:"required,oneof=CREATE UPDATE DELETE"`
	XID    string      `json:"xid,omitempty" validate:"required_unless=Action CREATE"`
	Body   interface{} `json:"body,omitempty"`
}

// BulkRequest is submitted as one server-side task. Action is a default applied to requests that
// carry none, it is normally left empty.
type BulkRequest struct {
	Action   BulkAction          `json:"action,omitempty"`
	Requests []IndividualRequest `json:"requests" validate:"required,min=1,dive"`
}

// IndividualResponse is the result of one IndividualRequest. Its position in Result.Responses is
// the position of the request in BulkRequest.Requests.
type IndividualResponse struct {
	Action     BulkAction      `json:"action"`
	XID        string          `json:"xid,omitempty"`
	HTTPStatus int             `json:"httpStatus"`
	Body       json.RawMessage `json:"body,omitempty"`
	Error      *ModelError     `json:"error,omitempty"`
}

// Failed reports whether the server rejected this individual request.
func (r IndividualResponse) Failed() bool {
	return r.Error != nil || r.HTTPStatus >= 400
}
