package mango

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
)

// SetTaskStatus forces the status of a task, used to simulate server-side failures and timeouts.
func (s *Server) SetTaskStatus(id string, status m.TaskStatus) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.state.Status = status
	}
}

// BulkRequests returns the requests received by a task.
func (s *Server) BulkRequests(id string) []m.IndividualRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if t, ok := s.tasks[id]; ok {
		return t.requests
	}
	return nil
}

func (s *Server) startBulk(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if ps.ByName("xid") != "bulk" {
		RespondWithError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		return
	}
	if s.faulted(w, r) {
		return
	}

	var request m.BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || len(request.Requests) == 0 {
		RespondWithError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid bulk request")
		return
	}

	s.mutex.Lock()
	s.nextID++
	id := "task-" + strconv.Itoa(s.nextID)
	t := &task{
		collection: ps.ByName("collection"),
		requests:   request.Requests,
		state: m.Task{
			ID:      id,
			Status:  m.TaskScheduled,
			Maximum: len(request.Requests),
			Result:  &m.TaskResult{Responses: []m.IndividualResponse{}},
		},
	}
	s.tasks[id] = t
	state := t.state
	s.mutex.Unlock()

	RespondJSONObjectWithCode(w, http.StatusCreated, state)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.faulted(w, r) {
		return
	}
	t := s.task(w, ps)
	if t == nil {
		return
	}

	s.mutex.Lock()
	steps := s.stepsPerPoll
	running := !t.state.Status.IsTerminal()
	if running {
		t.state.Status = m.TaskRunning
	}
	s.mutex.Unlock()

	for i := 0; running && i < steps; i++ {
		s.mutex.Lock()
		position := t.state.Position
		if position >= len(t.requests) || t.state.Status.IsTerminal() {
			s.mutex.Unlock()
			break
		}
		request := t.requests[position]
		s.mutex.Unlock()

		response := s.process(t.collection, request)

		s.mutex.Lock()
		t.state.Result.Responses = append(t.state.Result.Responses, response)
		t.state.Result.HasError = t.state.Result.HasError || response.Failed()
		t.state.Position++
		s.mutex.Unlock()
	}

	s.mutex.Lock()
	if t.state.Status == m.TaskRunning && t.state.Position >= len(t.requests) {
		t.state.Status = m.TaskSuccess
	}
	state := copyTask(t.state)
	s.mutex.Unlock()

	RespondJSONObjectWithCode(w, http.StatusOK, state)
}

func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.faulted(w, r) {
		return
	}
	t := s.task(w, ps)
	if t == nil {
		return
	}

	var update m.TaskStatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil || update.Status != m.TaskCancelled {
		RespondWithError(w, http.StatusBadRequest, "BAD_REQUEST", "only CANCELLED is accepted")
		return
	}

	s.mutex.Lock()
	if !t.state.Status.IsTerminal() {
		t.state.Status = m.TaskCancelled
	}
	state := copyTask(t.state)
	s.mutex.Unlock()

	RespondJSONObjectWithCode(w, http.StatusOK, state)
}

func (s *Server) task(w http.ResponseWriter, ps httprouter.Params) *task {
	s.mutex.Lock()
	t, ok := s.tasks[ps.ByName("id")]
	s.mutex.Unlock()

	if ps.ByName("xid") != "bulk" || !ok {
		RespondWithError(w, http.StatusNotFound, "NOT_FOUND", "Task not found")
		return nil
	}
	return t
}

func (s *Server) process(collection string, request m.IndividualRequest) m.IndividualResponse {
	response := m.IndividualResponse{Action: request.Action, XID: request.XID}

	var status int
	var result interface{}
	switch request.Action {
	case m.ActionDelete:
		status, result = s.remove(collection, request.XID)
	case m.ActionCreate:
		status, result = s.save(collection, "", toObject(request.Body))
	default:
		status, result = s.save(collection, request.XID, toObject(request.Body))
	}

	response.HTTPStatus = status
	if status >= http.StatusBadRequest {
		e, _ := result.(m.ModelError)
		response.Error = &e
		return response
	}
	response.Body, _ = json.Marshal(result)
	return response
}

func copyTask(state m.Task) m.Task {
	result := *state.Result
	result.Responses = append([]m.IndividualResponse(nil), state.Result.Responses...)
	state.Result = &result
	return state
}
