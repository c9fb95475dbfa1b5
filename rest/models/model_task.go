package models

type TaskStatus string

const (
	TaskScheduled TaskStatus = "SCHEDULED"
	TaskRunning   TaskStatus = "RUNNING"
	TaskSuccess   TaskStatus = "SUCCESS"
	TaskError     TaskStatus = "ERROR"
	TaskCancelled TaskStatus = "CANCELLED"
	TaskTimedOut  TaskStatus = "TIMED_OUT"
)

// IsTerminal reports whether no further progress will be reported for a task in this status.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskSuccess, TaskError, TaskCancelled, TaskTimedOut:
		return true
	}
	return false
}

// Task is the server resource tracking an asynchronous bulk operation.
type Task struct {
	ID       string      `json:"id"`
	Status   TaskStatus  `json:"status"`
	Position int         `json:"position"`
	Maximum  int         `json:"maximum"`
	Result   *TaskResult `json:"result,omitempty"`
	Error    *ModelError `json:"error,omitempty"`
}

type TaskResult struct {
	HasError  bool                 `json:"hasError"`
	Responses []IndividualResponse `json:"responses"`
}

// ErrorCount returns the number of individual responses that failed.
func (t *Task) ErrorCount() int {
	if t.Result == nil {
		return 0
	}
	count := 0
	for _, response := range t.Result.Responses {
		if response.Failed() {
			count++
		}
	}
	return count
}

// TaskStatusUpdate is sent to cancel a running task.
type TaskStatusUpdate struct {
	Status TaskStatus `json:"status"`
}
