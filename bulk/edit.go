// Package bulk submits pending row edits as one server-side bulk task and folds the task result
// back into the pending set, the result rows and the validation messages shown to the user.
package bulk

import (
	"context"
	"encoding/json"

	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
)

// Edit is a pending change of one row. Key identifies the row client-side, it stays the same
// while the row is edited and resubmitted. OriginalXID is the persisted identity, empty for a new
// row.
type Edit[T any] struct {
	Key         string
	OriginalXID string
	Row         T
	Remove      bool
}

// Action infers the bulk action: removal is explicit, a row without persisted identity is created,
// anything else is updated.
func (e Edit[T]) Action() m.BulkAction {
	switch {
	case e.Remove:
		return m.ActionDelete
	case e.OriginalXID == "":
		return m.ActionCreate
	default:
		return m.ActionUpdate
	}
}

func (e Edit[T]) request() m.IndividualRequest {
	switch action := e.Action(); action {
	case m.ActionDelete:
		return m.IndividualRequest{Action: action, XID: e.OriginalXID}
	case m.ActionCreate:
		return m.IndividualRequest{Action: action, Body: e.Row}
	default:
		return m.IndividualRequest{Action: action, XID: e.OriginalXID, Body: e.Row}
	}
}

// Client is the part of rest.Client the editor needs.
type Client[T any] interface {
	StartBulk(ctx context.Context, request m.BulkRequest) (*m.Task, error)
	GetTask(ctx context.Context, id string) (*m.Task, error)
	CancelTask(ctx context.Context, id string) (*m.Task, error)
	DecodeBody(raw json.RawMessage) (T, error)
}

// Outcome is the reconciled result of a terminal task.
type Outcome[T any] struct {
	Status m.TaskStatus
	Task   *m.Task

	// Rows holds the saved rows returned for CREATE and UPDATE requests, in submitted order
	Rows []T

	// Failed holds the submitted edits that were rejected or never confirmed, as submitted
	Failed []Edit[T]

	RowMessages   map[string][]m.ValidationMessage
	GeneralErrors []m.ValidationMessage

	// ResponseErrors has one entry per failed response without validation messages, they are not
	// counted as messages
	ResponseErrors []m.ValidationMessage
}

// MessageCount returns the number of messages attributed to rows.
func (o *Outcome[T]) MessageCount() int {
	count := 0
	for _, messages := range o.RowMessages {
		count += len(messages)
	}
	return count
}
