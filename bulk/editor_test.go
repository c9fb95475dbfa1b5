package bulk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mangoautomation/dashboard-data-apis/config"
	"github.com/mangoautomation/dashboard-data-apis/internal/testutil"
	"github.com/mangoautomation/dashboard-data-apis/internal/testutil/mango"
	"github.com/mangoautomation/dashboard-data-apis/notify"
	"github.com/mangoautomation/dashboard-data-apis/rest"
	e "github.com/mangoautomation/dashboard-data-apis/rest/errors"
	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
)

func newServerEditor(cfg *config.ClientConfig) (*Editor[row], *notify.Recorder) {
	recorder := notify.NewRecorder()
	client := rest.NewClient[row](cfg, "data-sources")
	return NewEditor[row](cfg, client, recorder), recorder
}

func newMockEditor() (*Editor[row], *clientMock, *notify.Recorder) {
	client := &clientMock{}
	recorder := notify.NewRecorder()
	return NewEditor[row](config.NewConfigMock().Default(), client, recorder), client, recorder
}

func lastNotification(t *testing.T, recorder *notify.Recorder) notify.Notification {
	n, ok := recorder.Last()
	require.True(t, ok, "no notification")
	return n
}

func TestEditAction(t *testing.T) {
	items := []struct {
		edit     Edit[row]
		expected m.BulkAction
	}{
		{Edit[row]{Key: "1"}, m.ActionCreate},
		{Edit[row]{Key: "2", OriginalXID: "DS_1"}, m.ActionUpdate},
		{Edit[row]{Key: "3", OriginalXID: "DS_1", Remove: true}, m.ActionDelete},
		{Edit[row]{Key: "4", Remove: true}, m.ActionDelete},
	}

	for _, item := range items {
		assert.Equal(t, item.expected, item.edit.Action(), item.edit.Key)
	}
}

func TestStageAndRemove(t *testing.T) {
	editor, _, _ := newMockEditor()

	editor.Stage(Edit[row]{Key: "a", Row: row{Name: "A"}})
	editor.Stage(Edit[row]{Key: "b", OriginalXID: "DS_B", Row: row{XID: "DS_B"}})
	editor.Stage(Edit[row]{Key: "a", Row: row{Name: "A2"}})

	pending := editor.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "A2", pending[0].Row.Name)

	assert.True(t, editor.MarkRemoved("b"))
	assert.True(t, editor.MarkRemoved("a"))
	assert.False(t, editor.MarkRemoved("missing"))

	pending = editor.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, m.ActionDelete, pending[0].Action())

	assert.True(t, editor.Unstage("b"))
	assert.Empty(t, editor.Pending())

	editor.Stage(Edit[row]{Key: "c"})
	editor.Discard()
	assert.Empty(t, editor.Pending())
}

func TestSubmitAllCreatesSucceed(t *testing.T) {
	server := mango.NewServer()
	defer server.Close()
	editor, recorder := newServerEditor(testutil.TestConfig(server.URL))

	for _, name := range []string{"Boiler", "Chiller", "Fan"} {
		editor.Stage(Edit[row]{Key: name, Row: row{XID: "DS_" + name, Name: name}})
	}

	var positions []int
	outcome, err := editor.Submit(context.Background(), func(task m.Task) {
		positions = append(positions, task.Position)
	})
	require.NoError(t, err)

	assert.Equal(t, m.TaskSuccess, outcome.Status)
	assert.Empty(t, editor.Pending())
	assert.Empty(t, outcome.Failed)
	require.Len(t, editor.Results(), 3)
	assert.Equal(t, []string{"Boiler", "Chiller", "Fan"},
		[]string{editor.Results()[0].Name, editor.Results()[1].Name, editor.Results()[2].Name})
	assert.Equal(t, 3, server.Len("data-sources"))
	assert.IsNonDecreasing(t, positions)
	assert.Equal(t, notify.Notification{Level: notify.Info, Key: SuccessKey, Args: []interface{}{3}},
		lastNotification(t, recorder))
}

func TestSubmitSuccessWithErrors(t *testing.T) {
	server := mango.NewServer()
	defer server.Close()
	server.Seed("data-sources", row{XID: "DS_1", Name: "Existing"})
	server.SetValidator(func(_ string, item map[string]interface{}) []m.ValidationMessage {
		if item["name"] == "" {
			return []m.ValidationMessage{message("name", "Required")}
		}
		return nil
	})
	editor, recorder := newServerEditor(testutil.TestConfig(server.URL))

	editor.Stage(Edit[row]{Key: "existing", OriginalXID: "DS_1", Row: row{XID: "DS_1", Name: "Renamed"}})
	editor.Stage(Edit[row]{Key: "new", Row: row{XID: "DS_2"}})

	outcome, err := editor.Submit(context.Background(), nil)
	require.NoError(t, err)

	pending := editor.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "new", pending[0].Key)
	assert.Equal(t, "Renamed", server.Item("data-sources", "DS_1")["name"])

	fields := editor.FieldMessages(1, 10)
	require.Contains(t, fields, "name-0")
	assert.Equal(t, "Required", fields["name-0"][0].Message)
	assert.Equal(t, "new", fields["name-0"][0].RowKey)
	assert.Equal(t, 1, outcome.MessageCount())

	n := lastNotification(t, recorder)
	assert.Equal(t, SuccessWithErrorsKey, n.Key)
	assert.Equal(t, notify.Warning, n.Level)
	assert.Equal(t, []interface{}{1, 1}, n.Args)
}

func TestReconcileIndexConservationAndPruning(t *testing.T) {
	editor, client, _ := newMockEditor()

	batch := []Edit[row]{
		{Key: "a", Row: row{XID: "A", Name: "a"}},
		{Key: "b", OriginalXID: "B", Row: row{XID: "B"}},
		{Key: "c", OriginalXID: "C", Row: row{XID: "C", Name: "c"}},
		{Key: "d", Row: row{XID: "D", PurgeType: "YEARS"}},
		{Key: "e", OriginalXID: "E", Remove: true},
	}
	for _, edit := range batch {
		editor.Stage(edit)
	}

	final := &m.Task{ID: "t1", Status: m.TaskSuccess, Position: 5, Maximum: 5, Result: &m.TaskResult{
		HasError: true,
		Responses: []m.IndividualResponse{
			ok(m.ActionCreate, row{XID: "A", Name: "a saved"}),
			invalid(m.ActionUpdate, "B",
				message("name", "Required"),
				message("name", "Required"),
				m.ValidationMessage{Level: "ERROR", Message: "Data source is running"}),
			ok(m.ActionUpdate, row{XID: "C", Name: "c saved"}),
			invalid(m.ActionCreate, "D", message("purgeType", "Invalid purge type")),
			{Action: m.ActionDelete, XID: "E", HTTPStatus: 200},
		},
	}}
	client.On("StartBulk", mock.MatchedBy(func(r m.BulkRequest) bool {
		// requests are sent in staging order with the inferred actions
		return len(r.Requests) == 5 &&
			r.Requests[0].Action == m.ActionCreate && r.Requests[0].XID == "" &&
			r.Requests[1].Action == m.ActionUpdate && r.Requests[1].XID == "B" &&
			r.Requests[4].Action == m.ActionDelete && r.Requests[4].Body == nil
	})).Return(&m.Task{ID: "t1", Status: m.TaskRunning, Maximum: 5}, nil)
	client.On("GetTask", "t1").Return(final, nil)

	outcome, err := editor.Submit(context.Background(), nil)
	require.NoError(t, err)
	client.AssertExpectations(t)

	// index invariant: rows b and d failed, a and c returned their saved bodies
	assert.Equal(t, []row{{XID: "A", Name: "a saved"}, {XID: "C", Name: "c saved"}}, editor.Results())

	// pruning: exactly the rows with messages survive
	pending := editor.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].Key)
	assert.Equal(t, "d", pending[1].Key)

	// conservation: 4 messages in, 4 messages out
	assert.Equal(t, 4, outcome.MessageCount()+len(outcome.GeneralErrors))
	assert.Len(t, editor.Messages("b"), 2)
	assert.Equal(t, "b", editor.GeneralErrors()[0].RowKey)

	// server property names are mapped to client paths
	assert.Equal(t, "purgePeriod.type", editor.Messages("d")[0].Property)
	fields := editor.FieldMessages(1, 10)
	assert.Len(t, fields["name-0"], 2)
	assert.Len(t, fields["purgePeriod.type-1"], 1)
}

func TestFieldMessagesFollowsPage(t *testing.T) {
	editor, client, _ := newMockEditor()
	var responses []m.IndividualResponse
	for _, key := range []string{"a", "b", "c"} {
		editor.Stage(Edit[row]{Key: key, Row: row{XID: key}})
		responses = append(responses, invalid(m.ActionCreate, key, message("name", "Required "+key)))
	}
	client.On("StartBulk", mock.Anything).Return(&m.Task{ID: "t1", Status: m.TaskSuccess,
		Result: &m.TaskResult{HasError: true, Responses: responses}}, nil)

	_, err := editor.Submit(context.Background(), nil)
	require.NoError(t, err)

	items := []struct {
		page, limit int
		expected    map[string]string
	}{
		{1, 2, map[string]string{"name-0": "Required a", "name-1": "Required b"}},
		{2, 2, map[string]string{"name-0": "Required c"}},
		{3, 2, map[string]string{}},
		{1, 0, map[string]string{"name-0": "Required a", "name-1": "Required b", "name-2": "Required c"}},
	}

	for _, item := range items {
		fields := editor.FieldMessages(item.page, item.limit)
		actual := make(map[string]string, len(fields))
		for field, messages := range fields {
			actual[field] = messages[0].Message
		}
		assert.Equal(t, item.expected, actual, "page %d limit %d", item.page, item.limit)
	}
}

func TestDuplicateTerminalStateIsIgnored(t *testing.T) {
	editor, client, recorder := newMockEditor()
	editor.Stage(Edit[row]{Key: "a", Row: row{XID: "A"}})

	final := &m.Task{ID: "t1", Status: m.TaskSuccess, Result: &m.TaskResult{
		Responses: []m.IndividualResponse{ok(m.ActionCreate, row{XID: "A"})},
	}}
	client.On("StartBulk", mock.Anything).Return(final, nil)

	_, err := editor.Submit(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, recorder.All(), 1)

	editor.Stage(Edit[row]{Key: "b", Row: row{XID: "B"}})
	outcome, applied := editor.Update(*final)
	assert.False(t, applied)
	assert.Nil(t, outcome)

	_, applied = editor.Update(m.Task{ID: "t1", Status: m.TaskError})
	assert.False(t, applied)
	assert.Len(t, recorder.All(), 1)
	assert.Len(t, editor.Pending(), 1)
	assert.Equal(t, m.TaskSuccess, editor.Task().Status)
}

func TestSubmitEmptyBatch(t *testing.T) {
	editor, client, recorder := newMockEditor()

	_, err := editor.Submit(context.Background(), nil)
	var precondition *e.PreconditionError
	assert.True(t, errors.As(err, &precondition))
	client.AssertNotCalled(t, "StartBulk", mock.Anything)
	assert.Equal(t, NoChangesKey, lastNotification(t, recorder).Key)
}

func TestSubmitFailedToStart(t *testing.T) {
	editor, client, recorder := newMockEditor()
	editor.Stage(Edit[row]{Key: "a", OriginalXID: "A", Row: row{XID: "A"}})
	client.On("StartBulk", mock.Anything).Return(nil, e.NewTransportError("POST failed", errors.New("connection refused")))

	outcome, err := editor.Submit(context.Background(), nil)
	assert.Nil(t, outcome)
	var transport *e.TransportError
	assert.True(t, errors.As(err, &transport))

	assert.Len(t, editor.Pending(), 1)
	assert.Nil(t, editor.Task())
	assert.Empty(t, editor.GeneralErrors())
	n := lastNotification(t, recorder)
	assert.Equal(t, FailedToStartKey, n.Key)
	assert.Equal(t, []interface{}{"POST failed: connection refused"}, n.Args)
}

func TestSubmitUnsupportedAction(t *testing.T) {
	client := &clientMock{}
	cfg := testutil.TestConfig("http://localhost").WithSupportedActions(config.UpdateAction)
	editor := NewEditor[row](cfg, client, notify.NewRecorder())
	editor.Stage(Edit[row]{Key: "a"})

	_, err := editor.Submit(context.Background(), nil)
	assert.EqualError(t, err, "bulk CREATE is not allowed")
	client.AssertNotCalled(t, "StartBulk", mock.Anything)
}

func TestSubmitAggregateFailures(t *testing.T) {
	items := []struct {
		status m.TaskStatus
		key    string
	}{
		{m.TaskError, ErrorKey},
		{m.TaskCancelled, CancelledKey},
		{m.TaskTimedOut, TimedOutKey},
	}

	for _, item := range items {
		t.Run(string(item.status), func(t *testing.T) {
			editor, client, recorder := newMockEditor()
			editor.Stage(Edit[row]{Key: "a", Row: row{XID: "A"}})
			editor.Stage(Edit[row]{Key: "b", OriginalXID: "B", Remove: true})

			client.On("StartBulk", mock.Anything).Return(&m.Task{ID: "t1", Status: m.TaskScheduled}, nil)
			client.On("GetTask", "t1").Return(&m.Task{ID: "t1", Status: item.status,
				Error: &m.ModelError{LocalizedMessage: "Task failed"}}, nil)

			outcome, err := editor.Submit(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, item.status, outcome.Status)
			assert.Len(t, outcome.Failed, 2)
			assert.Len(t, editor.Pending(), 2)
			assert.Empty(t, editor.Results())

			assert.Len(t, recorder.All(), 1)
			n := lastNotification(t, recorder)
			assert.Equal(t, item.key, n.Key)
			assert.Equal(t, notify.Error, n.Level)
			assert.Equal(t, []interface{}{"Task failed"}, n.Args)
		})
	}
}

func TestSubmitPollFailure(t *testing.T) {
	editor, client, recorder := newMockEditor()
	editor.Stage(Edit[row]{Key: "a", Row: row{XID: "A"}})
	client.On("StartBulk", mock.Anything).Return(&m.Task{ID: "t1", Status: m.TaskRunning}, nil)
	client.On("GetTask", "t1").Return(nil, e.NewNotFoundError("Task not found"))

	_, err := editor.Submit(context.Background(), nil)
	assert.Error(t, err)
	assert.Equal(t, PollFailedKey, lastNotification(t, recorder).Key)
	assert.Len(t, editor.Pending(), 1)

	// a new submission may start once the abandoned one is released
	client.On("StartBulk", mock.Anything).Unset()
	client.On("StartBulk", mock.Anything).Return(nil, errors.New("down"))
	_, err = editor.Submit(context.Background(), nil)
	assert.EqualError(t, err, "down")
}

func TestCancel(t *testing.T) {
	server := mango.NewServer()
	defer server.Close()
	server.SetStepsPerPoll(0)
	editor, recorder := newServerEditor(testutil.TestConfig(server.URL))
	editor.Stage(Edit[row]{Key: "a", Row: row{XID: "DS_1", Name: "a"}})

	assert.Error(t, editor.Cancel(context.Background()))

	result := make(chan *Outcome[row], 1)
	go func() {
		outcome, err := editor.Submit(context.Background(), nil)
		assert.NoError(t, err)
		result <- outcome
	}()

	assert.Eventually(t, func() bool {
		task := editor.Task()
		return task != nil && task.Status == m.TaskRunning
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, editor.Cancel(context.Background()))

	select {
	case outcome := <-result:
		assert.Equal(t, m.TaskCancelled, outcome.Status)
		assert.Len(t, editor.Pending(), 1)
		assert.Equal(t, CancelledKey, lastNotification(t, recorder).Key)
	case <-time.After(2 * time.Second):
		t.Fatal("submission did not end")
	}
}

func TestSubmitTimesOut(t *testing.T) {
	server := mango.NewServer()
	defer server.Close()
	server.SetStepsPerPoll(0)
	cfg := testutil.TestConfig(server.URL).WithBulkTimeout(50 * time.Millisecond)
	editor, recorder := newServerEditor(cfg)
	editor.Stage(Edit[row]{Key: "a", Row: row{XID: "DS_1"}})

	outcome, err := editor.Submit(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, m.TaskTimedOut, outcome.Status)
	assert.Equal(t, TimedOutKey, lastNotification(t, recorder).Key)
	assert.Len(t, editor.Pending(), 1)
}

func TestSubmitContextCancelled(t *testing.T) {
	server := mango.NewServer()
	defer server.Close()
	server.SetStepsPerPoll(0)
	editor, recorder := newServerEditor(testutil.TestConfig(server.URL))
	editor.Stage(Edit[row]{Key: "a", Row: row{XID: "DS_1"}})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := editor.Submit(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, recorder.All())
	assert.Len(t, editor.Pending(), 1)
}

func TestEditStagedWhileRunning(t *testing.T) {
	items := []struct {
		name     string
		response m.IndividualResponse
		failed   bool
	}{
		{"saved", ok(m.ActionCreate, row{XID: "A"}), false},
		{"rejected", invalid(m.ActionCreate, "A", message("name", "Required")), true},
	}

	for _, item := range items {
		t.Run(item.name, func(t *testing.T) {
			editor, client, _ := newMockEditor()
			editor.Stage(Edit[row]{Key: "a", Row: row{XID: "A"}})
			editor.Stage(Edit[row]{Key: "b", OriginalXID: "B", Row: row{XID: "B", Name: "b"}})

			client.On("StartBulk", mock.Anything).Return(&m.Task{ID: "t1", Status: m.TaskRunning}, nil)
			client.On("GetTask", "t1").Return(&m.Task{ID: "t1", Status: m.TaskSuccess, Result: &m.TaskResult{
				HasError: item.failed,
				Responses: []m.IndividualResponse{
					item.response,
					ok(m.ActionUpdate, row{XID: "B", Name: "b"}),
				},
			}}, nil)

			staged := false
			outcome, err := editor.Submit(context.Background(), func(task m.Task) {
				if !staged {
					staged = true
					editor.Stage(Edit[row]{Key: "a", Row: row{XID: "A", Name: "fixed"}})
				}
			})
			require.NoError(t, err)

			// the newer edit of a survives, b went through unchanged
			pending := editor.Pending()
			require.Len(t, pending, 1)
			assert.Equal(t, "a", pending[0].Key)
			assert.Equal(t, "fixed", pending[0].Row.Name)
			assert.Empty(t, editor.Messages("a"))

			if item.failed {
				require.Len(t, outcome.Failed, 1)
				assert.Equal(t, "", outcome.Failed[0].Row.Name)
				assert.Equal(t, m.ActionCreate, pending[0].Action())
			} else {
				assert.Empty(t, outcome.Failed)
				// the row exists now so the newer edit updates it
				assert.Equal(t, "A", pending[0].OriginalXID)
				assert.Equal(t, m.ActionUpdate, pending[0].Action())
			}
		})
	}
}

func TestFailedResponseWithoutMessages(t *testing.T) {
	editor, client, _ := newMockEditor()
	editor.Stage(Edit[row]{Key: "a", OriginalXID: "A", Row: row{XID: "A"}})
	editor.Stage(Edit[row]{Key: "b", OriginalXID: "B", Row: row{XID: "B"}})

	client.On("StartBulk", mock.Anything).Return(&m.Task{ID: "t1", Status: m.TaskSuccess, Result: &m.TaskResult{
		HasError: true,
		Responses: []m.IndividualResponse{
			{Action: m.ActionUpdate, XID: "A", HTTPStatus: 500},
			invalid(m.ActionUpdate, "B", message("name", "Required")),
		},
	}}, nil)

	outcome, err := editor.Submit(context.Background(), nil)
	require.NoError(t, err)

	// only the structured message is counted
	assert.Equal(t, 1, outcome.MessageCount()+len(outcome.GeneralErrors))
	assert.Empty(t, outcome.GeneralErrors)
	require.Len(t, outcome.ResponseErrors, 1)
	assert.Equal(t, "Internal Server Error", outcome.ResponseErrors[0].Message)
	assert.Equal(t, "a", outcome.ResponseErrors[0].RowKey)
	assert.Equal(t, outcome.ResponseErrors, editor.ResponseErrors())
	assert.Empty(t, editor.GeneralErrors())
	assert.Len(t, editor.Pending(), 2)

	editor.Discard()
	assert.Empty(t, editor.ResponseErrors())
}

func TestConcurrentSubmit(t *testing.T) {
	editor, client, _ := newMockEditor()
	editor.Stage(Edit[row]{Key: "a", Row: row{XID: "A"}})

	started := make(chan struct{})
	release := make(chan struct{})
	client.On("StartBulk", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(&m.Task{ID: "t1", Status: m.TaskSuccess, Result: &m.TaskResult{
		Responses: []m.IndividualResponse{ok(m.ActionCreate, row{XID: "A"})},
	}}, nil).Once()

	result := make(chan error, 1)
	go func() {
		_, err := editor.Submit(context.Background(), nil)
		result <- err
	}()
	<-started

	_, err := editor.Submit(context.Background(), nil)
	var precondition *e.PreconditionError
	assert.True(t, errors.As(err, &precondition))
	assert.Nil(t, editor.Task())
	assert.Error(t, editor.Cancel(context.Background()))

	close(release)
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("submission did not end")
	}
	client.AssertNumberOfCalls(t, "StartBulk", 1)
	assert.Empty(t, editor.Pending())
	assert.Equal(t, m.TaskSuccess, editor.Task().Status)
}
