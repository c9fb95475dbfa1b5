// Package mango is an in-memory stand-in for the Mango REST API used by package tests.
package mango

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
)

const Prefix = "/rest/latest"

// Route describes how to route an endpoint
type Route struct {
	Method  string
	Pattern string
	Handler httprouter.Handle
}

// Validator returns the validation messages of an item about to be saved, an empty result accepts it.
type Validator func(collection string, item map[string]interface{}) []m.ValidationMessage

// Fault lets a test fail a request, returning ok=false lets it through.
type Fault func(r *http.Request) (status int, body interface{}, ok bool)

type Server struct {
	*httptest.Server

	mutex        sync.Mutex
	collections  map[string]*collection
	tasks        map[string]*task
	nextID       int
	validator    Validator
	fault        Fault
	queries      []string
	stepsPerPoll int

	upgrader    websocket.Upgrader
	subscribers map[string][]*websocket.Conn
}

type collection struct {
	items map[string]map[string]interface{}
}

type task struct {
	collection string
	requests   []m.IndividualRequest
	state      m.Task
}

func NewServer() *Server {
	s := &Server{
		collections:  make(map[string]*collection),
		tasks:        make(map[string]*task),
		subscribers:  make(map[string][]*websocket.Conn),
		stepsPerPoll: 1,
	}

	router := httprouter.New()
	for _, route := range s.Routes() {
		router.Handle(route.Method, route.Pattern, route.Handler)
	}
	s.Server = httptest.NewServer(router)
	return s
}

// Routes returns a slice of all the endpoint routes
func (s *Server) Routes() []Route {
	return []Route{
		{
			Method:  http.MethodGet,
			Pattern: Prefix + "/:collection",
			Handler: s.query,
		},
		{
			Method:  http.MethodPost,
			Pattern: Prefix + "/:collection",
			Handler: s.create,
		},
		{
			Method:  http.MethodGet,
			Pattern: Prefix + "/:collection/:xid",
			Handler: s.get,
		},
		{
			Method:  http.MethodPut,
			Pattern: Prefix + "/:collection/:xid",
			Handler: s.update,
		},
		{
			Method:  http.MethodDelete,
			Pattern: Prefix + "/:collection/:xid",
			Handler: s.delete,
		},
		{
			Method:  http.MethodPost,
			Pattern: Prefix + "/:collection/:xid",
			Handler: s.startBulk,
		},
		{
			Method:  http.MethodGet,
			Pattern: Prefix + "/:collection/:xid/:id",
			Handler: s.getTask,
		},
		{
			Method:  http.MethodPut,
			Pattern: Prefix + "/:collection/:xid/:id",
			Handler: s.cancelTask,
		},
	}
}

// Close disconnects live subscribers and shuts the server down.
func (s *Server) Close() {
	s.mutex.Lock()
	for _, conns := range s.subscribers {
		for _, conn := range conns {
			conn.Close()
		}
	}
	s.subscribers = make(map[string][]*websocket.Conn)
	s.mutex.Unlock()

	s.Server.Close()
}

// Seed replaces the content of a collection. Items must carry an "xid".
func (s *Server) Seed(name string, items ...interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	c := &collection{items: make(map[string]map[string]interface{})}
	for _, item := range items {
		obj := toObject(item)
		c.items[fmt.Sprint(obj["xid"])] = obj
	}
	s.collections[name] = c
}

// Item returns the stored item, nil if absent.
func (s *Server) Item(name, xid string) map[string]interface{} {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.collection(name).items[xid]
}

func (s *Server) Len(name string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.collection(name).items)
}

// Queries returns the RQL of every collection query received, in order.
func (s *Server) Queries() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]string(nil), s.queries...)
}

func (s *Server) SetValidator(v Validator) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.validator = v
}

func (s *Server) SetFault(f Fault) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.fault = f
}

// SetStepsPerPoll sets how many individual requests a bulk task processes each time it is polled.
func (s *Server) SetStepsPerPoll(steps int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stepsPerPoll = steps
}

func (s *Server) collection(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{items: make(map[string]map[string]interface{})}
		s.collections[name] = c
	}
	return c
}

func (s *Server) faulted(w http.ResponseWriter, r *http.Request) bool {
	s.mutex.Lock()
	fault := s.fault
	s.mutex.Unlock()

	if fault == nil {
		return false
	}
	status, body, ok := fault(r)
	if ok {
		RespondJSONObjectWithCode(w, status, body)
	}
	return ok
}

func (s *Server) query(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.faulted(w, r) {
		return
	}
	q, err := parseRQL(r.URL.RawQuery)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	s.mutex.Lock()
	s.queries = append(s.queries, r.URL.RawQuery)
	c := s.collection(ps.ByName("collection"))
	xids := make([]string, 0, len(c.items))
	for xid := range c.items {
		xids = append(xids, xid)
	}
	sort.Strings(xids)
	items := make([]map[string]interface{}, len(xids))
	for i, xid := range xids {
		items[i] = c.items[xid]
	}
	s.mutex.Unlock()

	page, total := q.apply(items)
	RespondJSONObjectWithCode(w, http.StatusOK, map[string]interface{}{"items": page, "total": total})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if ps.ByName("collection") == "websocket" {
		s.subscribe(w, r, ps.ByName("xid"))
		return
	}
	if s.faulted(w, r) {
		return
	}

	item := s.Item(ps.ByName("collection"), ps.ByName("xid"))
	if item == nil {
		RespondWithError(w, http.StatusNotFound, "NOT_FOUND", "Item not found")
		return
	}
	RespondJSONObjectWithCode(w, http.StatusOK, item)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.faulted(w, r) {
		return
	}
	item, ok := decodeBody(w, r)
	if !ok {
		return
	}
	status, result := s.save(ps.ByName("collection"), "", item)
	if status == http.StatusOK {
		status = http.StatusCreated
	}
	RespondJSONObjectWithCode(w, status, result)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.faulted(w, r) {
		return
	}
	item, ok := decodeBody(w, r)
	if !ok {
		return
	}
	status, result := s.save(ps.ByName("collection"), ps.ByName("xid"), item)
	RespondJSONObjectWithCode(w, status, result)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.faulted(w, r) {
		return
	}
	status, result := s.remove(ps.ByName("collection"), ps.ByName("xid"))
	RespondJSONObjectWithCode(w, status, result)
}

// save creates the item when xid is empty, otherwise replaces the item stored under xid.
func (s *Server) save(name, xid string, item map[string]interface{}) (int, interface{}) {
	s.mutex.Lock()
	validator := s.validator
	s.mutex.Unlock()

	if validator != nil {
		if messages := validator(name, item); len(messages) > 0 {
			return http.StatusUnprocessableEntity, m.ModelError{
				MangoStatusName:  "VALIDATION_FAILED",
				MangoStatusCode:  4002,
				LocalizedMessage: "Validation failed",
				Result:           &m.ErrorResult{Messages: messages},
			}
		}
	}

	s.mutex.Lock()
	c := s.collection(name)
	newXID, _ := item["xid"].(string)
	if xid == "" {
		if newXID == "" {
			s.nextID++
			newXID = "XID_" + strconv.Itoa(s.nextID)
			item["xid"] = newXID
		}
		if _, exists := c.items[newXID]; exists {
			s.mutex.Unlock()
			return http.StatusConflict, modelError("ALREADY_EXISTS", "XID already in use")
		}
	} else {
		if _, exists := c.items[xid]; !exists {
			s.mutex.Unlock()
			return http.StatusNotFound, modelError("NOT_FOUND", "Item not found")
		}
		if newXID == "" {
			item["xid"] = xid
			newXID = xid
		}
		delete(c.items, xid)
	}
	c.items[newXID] = item
	s.mutex.Unlock()

	notification := "update"
	if xid == "" {
		notification = "add"
	}
	s.Notify(name, notification, item)
	return http.StatusOK, item
}

func (s *Server) remove(name, xid string) (int, interface{}) {
	s.mutex.Lock()
	c := s.collection(name)
	item, exists := c.items[xid]
	delete(c.items, xid)
	s.mutex.Unlock()

	if !exists {
		return http.StatusNotFound, modelError("NOT_FOUND", "Item not found")
	}
	s.Notify(name, "delete", item)
	return http.StatusOK, item
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	var item map[string]interface{}
	data, err := io.ReadAll(r.Body)
	if err == nil {
		err = json.Unmarshal(data, &item)
	}
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "BAD_REQUEST", "unable to decode body")
		return nil, false
	}
	return item, true
}

func toObject(value interface{}) map[string]interface{} {
	data, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	obj := make(map[string]interface{})
	if err := json.Unmarshal(data, &obj); err != nil {
		panic(err)
	}
	if obj == nil {
		obj = make(map[string]interface{})
	}
	return obj
}
