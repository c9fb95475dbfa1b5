package table

import (
	"errors"

	"github.com/mangoautomation/dashboard-data-apis/query"
)

type State int

const (
	Uninitialized State = iota
	LoadingSettings
	LoadingColumns
	Ready
	Querying
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case LoadingSettings:
		return "loading-settings"
	case LoadingColumns:
		return "loading-columns"
	case Ready:
		return "ready"
	case Querying:
		return "querying"
	case Error:
		return "error"
	}
	return "unknown"
}

var (
	// ErrSuperseded is returned by a query whose result was discarded because a newer one was issued.
	ErrSuperseded = errors.New("query superseded by a newer one")

	ErrClosed         = errors.New("table controller is closed")
	ErrNotInitialized = errors.New("table controller is not initialized")
)

// Snapshot is a consistent copy of the controller state handed to subscribers.
type Snapshot[T any] struct {
	State    State
	Err      error
	Rows     []T
	Total    int
	Page     int
	PageSize int
	Columns  []Column
	Visible  []Column
	Filters  map[string]string
	Sort     []query.Sort
	Selected []string
}

// Pages returns the number of pages needed to show Total rows.
func (s Snapshot[T]) Pages() int {
	if s.PageSize <= 0 || s.Total <= 0 {
		return 1
	}
	return (s.Total + s.PageSize - 1) / s.PageSize
}
