package bulk

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/mangoautomation/dashboard-data-apis/config"
	"github.com/mangoautomation/dashboard-data-apis/log"
	"github.com/mangoautomation/dashboard-data-apis/notify"
	e "github.com/mangoautomation/dashboard-data-apis/rest/errors"
	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
)

const (
	SuccessKey           = "ui.app.bulkEditSuccess"
	SuccessWithErrorsKey = "ui.app.bulkEditSuccessWithErrors"
	ErrorKey             = "ui.app.bulkEditError"
	CancelledKey         = "ui.app.bulkEditCancelled"
	TimedOutKey          = "ui.app.bulkEditTimedOut"
	FailedToStartKey     = "ui.app.bulkEditFailedToStart"
	PollFailedKey        = "ui.app.bulkEditPollFailed"
	NoChangesKey         = "ui.app.bulkEditNoChanges"
)

// ProgressFunc receives every task state observed while polling, in order.
type ProgressFunc func(task m.Task)

type Editor[T any] struct {
	client       Client[T]
	naming       config.NamingConvention
	actions      config.Actions
	pollInterval time.Duration
	timeout      time.Duration
	logger       log.Logger
	notifier     notify.Notifier

	mutex          sync.Mutex
	pending        []Edit[T]
	revision       uint64
	revisions      map[string]uint64
	rowMessages    map[string][]m.ValidationMessage
	generalErrors  []m.ValidationMessage
	responseErrors []m.ValidationMessage
	results        []T
	current        *submission[T]
}

// submission tracks one task. revisions holds the revision of every batched edit when it was
// submitted. reconciled is latched by the first terminal state so duplicate terminal reports are
// ignored.
type submission[T any] struct {
	task       m.Task
	batch      []Edit[T]
	revisions  map[string]uint64
	reconciled atomic.Bool
	outcome    *Outcome[T]
}

func NewEditor[T any](cfg config.Config, client Client[T], notifier notify.Notifier) *Editor[T] {
	if notifier == nil {
		notifier = notify.NewLogNotifier(cfg.Logger())
	}
	return &Editor[T]{
		client:       client,
		naming:       cfg.Naming(),
		actions:      cfg.SupportedActions(),
		pollInterval: cfg.BulkPollInterval(),
		timeout:      cfg.BulkTimeout(),
		logger:       cfg.Logger(),
		notifier:     notifier,
		revisions:    make(map[string]uint64),
		rowMessages:  make(map[string][]m.ValidationMessage),
	}
}

// touch records a change of the pending edit of key.
func (ed *Editor[T]) touch(key string) {
	ed.revision++
	ed.revisions[key] = ed.revision
}

// Stage adds an edit, or replaces the pending edit of the same row. Messages of that row are
// cleared since they refer to the previous value.
func (ed *Editor[T]) Stage(edit Edit[T]) {
	ed.mutex.Lock()
	defer ed.mutex.Unlock()

	delete(ed.rowMessages, edit.Key)
	ed.touch(edit.Key)
	for i := range ed.pending {
		if ed.pending[i].Key == edit.Key {
			ed.pending[i] = edit
			return
		}
	}
	ed.pending = append(ed.pending, edit)
}

// MarkRemoved flags a pending row for deletion. A row that was never saved is simply dropped.
func (ed *Editor[T]) MarkRemoved(key string) bool {
	ed.mutex.Lock()
	defer ed.mutex.Unlock()

	for i := range ed.pending {
		if ed.pending[i].Key != key {
			continue
		}
		delete(ed.rowMessages, key)
		if ed.pending[i].OriginalXID == "" {
			ed.pending = append(ed.pending[:i:i], ed.pending[i+1:]...)
			delete(ed.revisions, key)
		} else {
			ed.pending[i].Remove = true
			ed.touch(key)
		}
		return true
	}
	return false
}

// Unstage drops the pending edit of a row.
func (ed *Editor[T]) Unstage(key string) bool {
	ed.mutex.Lock()
	defer ed.mutex.Unlock()

	for i := range ed.pending {
		if ed.pending[i].Key == key {
			delete(ed.rowMessages, key)
			delete(ed.revisions, key)
			ed.pending = append(ed.pending[:i:i], ed.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (ed *Editor[T]) Pending() []Edit[T] {
	ed.mutex.Lock()
	defer ed.mutex.Unlock()
	return append([]Edit[T](nil), ed.pending...)
}

// Discard drops every pending edit and message.
func (ed *Editor[T]) Discard() {
	ed.mutex.Lock()
	defer ed.mutex.Unlock()
	ed.pending = nil
	ed.revisions = make(map[string]uint64)
	ed.rowMessages = make(map[string][]m.ValidationMessage)
	ed.generalErrors = nil
	ed.responseErrors = nil
}

// Results returns the saved rows of the last successful submission.
func (ed *Editor[T]) Results() []T {
	ed.mutex.Lock()
	defer ed.mutex.Unlock()
	return append([]T(nil), ed.results...)
}

func (ed *Editor[T]) Messages(key string) []m.ValidationMessage {
	ed.mutex.Lock()
	defer ed.mutex.Unlock()
	return append([]m.ValidationMessage(nil), ed.rowMessages[key]...)
}

// GeneralErrors returns the messages that could not be attributed to a property of a row.
func (ed *Editor[T]) GeneralErrors() []m.ValidationMessage {
	ed.mutex.Lock()
	defer ed.mutex.Unlock()
	return append([]m.ValidationMessage(nil), ed.generalErrors...)
}

// ResponseErrors returns one entry per failed response that carried no validation message.
func (ed *Editor[T]) ResponseErrors() []m.ValidationMessage {
	ed.mutex.Lock()
	defer ed.mutex.Unlock()
	return append([]m.ValidationMessage(nil), ed.responseErrors...)
}

// FieldMessages maps the field names of the pending rows shown on a page ("<property>-<rowIndex>",
// rowIndex counted within the page) to their messages. Positions are those of the current pending
// set, so the result changes with the page.
func (ed *Editor[T]) FieldMessages(page, limit int) map[string][]m.ValidationMessage {
	ed.mutex.Lock()
	defer ed.mutex.Unlock()

	if page < 1 {
		page = 1
	}
	first, last := 0, len(ed.pending)
	if limit > 0 {
		first = (page - 1) * limit
		if first+limit < last {
			last = first + limit
		}
	}

	fields := make(map[string][]m.ValidationMessage)
	for i := first; i < last; i++ {
		for _, message := range ed.rowMessages[ed.pending[i].Key] {
			field := ed.naming.ToFieldName(message.Property, i-first)
			fields[field] = append(fields[field], message)
		}
	}
	return fields
}

// Task returns the state of the last submitted task, nil before the first submission.
func (ed *Editor[T]) Task() *m.Task {
	ed.mutex.Lock()
	defer ed.mutex.Unlock()
	if ed.current == nil || ed.current.task.ID == "" {
		return nil
	}
	task := ed.current.task
	return &task
}

// Submit sends the pending edits as one bulk task and polls it until it ends, then reconciles.
// Failures are also reported to the notifier. Terminal ERROR, CANCELLED and TIMED_OUT states are
// returned as an Outcome, the pending edits are kept for a retry.
func (ed *Editor[T]) Submit(ctx context.Context, progress ProgressFunc) (*Outcome[T], error) {
	ed.mutex.Lock()
	if ed.current != nil && !ed.current.reconciled.Load() {
		ed.mutex.Unlock()
		return nil, e.NewPreconditionError("a bulk task is already in progress")
	}
	batch := append([]Edit[T](nil), ed.pending...)
	if len(batch) == 0 {
		ed.mutex.Unlock()
		ed.notifier.Notify(notify.Notification{Level: notify.Warning, Key: NoChangesKey})
		return nil, e.NewPreconditionError("there are no changes to save")
	}

	request := m.BulkRequest{Requests: make([]m.IndividualRequest, len(batch))}
	revisions := make(map[string]uint64, len(batch))
	for i, edit := range batch {
		action := edit.Action()
		if !ed.actions.IsSupported(config.ActionFor(string(action))) {
			ed.mutex.Unlock()
			return nil, e.NewPreconditionError("bulk %s is not allowed", action)
		}
		request.Requests[i] = edit.request()
		revisions[edit.Key] = ed.revisions[edit.Key]
	}

	// the submission is claimed before the request so a concurrent Submit is rejected
	previous := ed.current
	s := &submission[T]{batch: batch, revisions: revisions}
	ed.current = s
	ed.mutex.Unlock()

	task, err := ed.client.StartBulk(ctx, request)
	if err != nil {
		ed.mutex.Lock()
		ed.current = previous
		ed.mutex.Unlock()
		ed.logger.Warn("unable to start bulk task", "requests", len(batch), "error", err)
		ed.notifier.Notify(notify.Notification{
			Level: notify.Error,
			Key:   FailedToStartKey,
			Args:  []interface{}{e.StatusText(err)},
		})
		return nil, err
	}

	ed.mutex.Lock()
	s.task = *task
	ed.mutex.Unlock()

	return ed.poll(ctx, s, progress)
}

func (ed *Editor[T]) poll(ctx context.Context, s *submission[T], progress ProgressFunc) (*Outcome[T], error) {
	pollCtx, cancel := context.WithTimeout(ctx, ed.timeout)
	defer cancel()

	ticker := time.NewTicker(ed.pollInterval)
	defer ticker.Stop()

	ed.mutex.Lock()
	task := &m.Task{}
	*task = s.task
	ed.mutex.Unlock()
	id := task.ID
	for {
		if progress != nil {
			progress(*task)
		}
		if outcome, done := ed.update(s, *task); done {
			return outcome, nil
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				ed.release(s)
				return nil, ctx.Err()
			}
			// the task outlived the configured timeout
			timedOut := *task
			timedOut.Status = m.TaskTimedOut
			outcome, _ := ed.update(s, timedOut)
			return outcome, nil
		case <-ticker.C:
		}

		var err error
		task, err = ed.client.GetTask(pollCtx, id)
		if err != nil {
			if ctx.Err() != nil {
				ed.release(s)
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				task = &m.Task{ID: id, Status: m.TaskTimedOut}
				continue
			}
			ed.release(s)
			ed.logger.Warn("unable to poll bulk task", "task", id, "error", err)
			ed.notifier.Notify(notify.Notification{
				Level: notify.Error,
				Key:   PollFailedKey,
				Args:  []interface{}{e.StatusText(err)},
			})
			return nil, err
		}
	}
}

// release stops tracking an abandoned submission so a new one can start.
func (ed *Editor[T]) release(s *submission[T]) {
	s.reconciled.Store(true)
}

// Update applies a task state reported for the current submission. It returns the outcome and true
// the first time a terminal state is applied, later terminal reports are ignored.
func (ed *Editor[T]) Update(task m.Task) (*Outcome[T], bool) {
	ed.mutex.Lock()
	s := ed.current
	var id string
	if s != nil {
		id = s.task.ID
	}
	ed.mutex.Unlock()

	if id == "" || id != task.ID {
		return nil, false
	}
	return ed.update(s, task)
}

func (ed *Editor[T]) update(s *submission[T], task m.Task) (*Outcome[T], bool) {
	if !task.Status.IsTerminal() {
		if !s.reconciled.Load() {
			ed.mutex.Lock()
			s.task = task
			ed.mutex.Unlock()
		}
		return nil, false
	}
	if !s.reconciled.CompareAndSwap(false, true) {
		ed.logger.Debug("ignoring duplicate terminal task state", "task", task.ID, "status", task.Status)
		return nil, false
	}

	ed.mutex.Lock()
	s.task = task
	ed.mutex.Unlock()

	switch task.Status {
	case m.TaskSuccess:
		s.outcome = ed.reconcile(s, &task)
	default:
		s.outcome = ed.fail(s.batch, &task)
	}
	return s.outcome, true
}

// Cancel asks the server to cancel the running task. The CANCELLED state is picked up by Submit.
func (ed *Editor[T]) Cancel(ctx context.Context) error {
	ed.mutex.Lock()
	s := ed.current
	var id string
	if s != nil {
		id = s.task.ID
	}
	ed.mutex.Unlock()

	if s == nil || s.reconciled.Load() {
		return e.NewPreconditionError("no bulk task is running")
	}
	if id == "" {
		return e.NewPreconditionError("the bulk task has not started yet")
	}
	_, err := ed.client.CancelTask(ctx, id)
	return err
}

func (ed *Editor[T]) fail(batch []Edit[T], task *m.Task) *Outcome[T] {
	key := ErrorKey
	switch task.Status {
	case m.TaskCancelled:
		key = CancelledKey
	case m.TaskTimedOut:
		key = TimedOutKey
	}
	var args []interface{}
	if task.Error != nil && task.Error.LocalizedMessage != "" {
		args = append(args, task.Error.LocalizedMessage)
	}

	ed.logger.Warn("bulk task did not complete", "task", task.ID, "status", task.Status)
	ed.notifier.Notify(notify.Notification{Level: notify.Error, Key: key, Args: args})

	ed.mutex.Lock()
	defer ed.mutex.Unlock()
	return &Outcome[T]{
		Status:         task.Status,
		Task:           task,
		Failed:         append([]Edit[T](nil), batch...),
		RowMessages:    copyMessages(ed.rowMessages),
		GeneralErrors:  append([]m.ValidationMessage(nil), ed.generalErrors...),
		ResponseErrors: append([]m.ValidationMessage(nil), ed.responseErrors...),
	}
}

// reconcile folds a SUCCESS task into the editor. responses[i] is the result of batch[i].
func (ed *Editor[T]) reconcile(s *submission[T], task *m.Task) *Outcome[T] {
	batch := s.batch
	var responses []m.IndividualResponse
	if task.Result != nil {
		responses = task.Result.Responses
	}
	if len(responses) != len(batch) {
		ed.logger.Warn("bulk task returned an unexpected number of responses",
			"task", task.ID,
			"requests", len(batch),
			"responses", len(responses))
	}

	outcome := &Outcome[T]{
		Status:      task.Status,
		Task:        task,
		RowMessages: make(map[string][]m.ValidationMessage),
	}
	failed := make(map[string]bool, len(batch))
	created := make(map[string]string)
	succeeded := 0

	for i, edit := range batch {
		if i >= len(responses) {
			// never confirmed by the server, keep it for resubmission
			outcome.Failed = append(outcome.Failed, edit)
			failed[edit.Key] = true
			continue
		}

		response := responses[i]
		if response.Failed() {
			outcome.Failed = append(outcome.Failed, edit)
			failed[edit.Key] = true
			ed.collectMessages(outcome, edit, response)
			continue
		}

		succeeded++
		switch edit.Action() {
		case m.ActionDelete:
			continue
		case m.ActionCreate:
			created[edit.Key] = response.XID
		}
		row, err := ed.client.DecodeBody(response.Body)
		if err != nil {
			ed.logger.Warn("unable to decode bulk response body", "task", task.ID, "index", i, "error", err)
			row = edit.Row
		}
		outcome.Rows = append(outcome.Rows, row)
	}

	ed.mutex.Lock()
	// an edit changed while the task was running replaces its submitted copy, an unchanged one
	// stays only when it failed
	var pending []Edit[T]
	changed := make(map[string]bool)
	for _, edit := range ed.pending {
		submitted, inBatch := s.revisions[edit.Key]
		switch {
		case !inBatch || submitted != ed.revisions[edit.Key]:
			if inBatch {
				changed[edit.Key] = true
			}
			if xid := created[edit.Key]; xid != "" && edit.OriginalXID == "" {
				// the row now exists, the newer edit updates it
				edit.OriginalXID = xid
			}
			pending = append(pending, edit)
		case failed[edit.Key]:
			pending = append(pending, edit)
		default:
			delete(ed.revisions, edit.Key)
		}
	}
	ed.pending = pending
	ed.rowMessages = make(map[string][]m.ValidationMessage, len(outcome.RowMessages))
	for key, messages := range outcome.RowMessages {
		if !changed[key] {
			ed.rowMessages[key] = append([]m.ValidationMessage(nil), messages...)
		}
	}
	ed.generalErrors = append([]m.ValidationMessage(nil), outcome.GeneralErrors...)
	ed.responseErrors = append([]m.ValidationMessage(nil), outcome.ResponseErrors...)
	ed.results = append([]T(nil), outcome.Rows...)
	ed.mutex.Unlock()

	if len(outcome.Failed) == 0 {
		ed.notifier.Notify(notify.Notification{Level: notify.Info, Key: SuccessKey, Args: []interface{}{succeeded}})
	} else {
		ed.notifier.Notify(notify.Notification{
			Level: notify.Warning,
			Key:   SuccessWithErrorsKey,
			Args:  []interface{}{succeeded, len(outcome.Failed)},
		})
	}
	return outcome
}

// collectMessages attributes the messages of a failed response to its row. Properties are renamed
// to client paths before attribution, messages without property go to the general list. A response
// without messages is reported as a response error.
func (ed *Editor[T]) collectMessages(outcome *Outcome[T], edit Edit[T], response m.IndividualResponse) {
	var messages []m.ValidationMessage
	if response.Error != nil && response.Error.Result != nil {
		messages = response.Error.Result.Messages
	}

	if len(messages) == 0 {
		text := http.StatusText(response.HTTPStatus)
		if response.Error != nil && response.Error.LocalizedMessage != "" {
			text = response.Error.LocalizedMessage
		}
		outcome.ResponseErrors = append(outcome.ResponseErrors, m.ValidationMessage{
			Level:   "ERROR",
			Message: text,
			RowKey:  edit.Key,
		})
		return
	}

	for _, message := range messages {
		message.RowKey = edit.Key
		if message.Property == "" {
			outcome.GeneralErrors = append(outcome.GeneralErrors, message)
			continue
		}
		message.Property = ed.naming.ToPropertyPath(message.Property)
		outcome.RowMessages[edit.Key] = append(outcome.RowMessages[edit.Key], message)
	}
}

func copyMessages(messages map[string][]m.ValidationMessage) map[string][]m.ValidationMessage {
	copied := make(map[string][]m.ValidationMessage, len(messages))
	for k, v := range messages {
		copied[k] = append([]m.ValidationMessage(nil), v...)
	}
	return copied
}
