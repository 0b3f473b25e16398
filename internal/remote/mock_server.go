package remote

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// RecordedRequest is one request seen by the MockServer.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// MockServer is a fake Redmine REST API for tests. Records are stored as
// decoded JSON objects per resource; list endpoints honor f[]/op[]/v[]
// filters, limit and offset.
type MockServer struct {
	*httptest.Server

	mu            sync.Mutex
	records       map[string]map[int]map[string]any
	keys          map[string]string
	nextID        int
	userID        int
	requests      []RecordedRequest
	totalOverride *int
	nextErrStatus int
	nextErrBody   string
	updateStatus  int
}

// NewMockServer starts a fake Redmine server. The authenticated user id
// defaults to 1.
func NewMockServer() *MockServer {
	m := &MockServer{
		records: map[string]map[int]map[string]any{
			TimeEntries.Path: {},
			Issues.Path:      {},
		},
		keys: map[string]string{
			TimeEntries.Path: TimeEntries.Key,
			Issues.Path:      Issues.Key,
		},
		nextID:       1000,
		userID:       1,
		updateStatus: http.StatusOK,
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// AddRecord stores record under res. It must carry a numeric "id".
func (m *MockServer) AddRecord(res Resource, record map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj := normalize(record)
	m.records[res.Path][toInt(obj["id"])] = obj
}

// Record returns the stored record, or nil.
func (m *MockServer) Record(res Resource, id int) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[res.Path][id]
}

// Count returns the number of records stored under res.
func (m *MockServer) Count(res Resource) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[res.Path])
}

// Requests returns a copy of every request received so far.
func (m *MockServer) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// ResetRequests forgets recorded requests.
func (m *MockServer) ResetRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetUserID sets the id that the "me" filter value resolves to.
func (m *MockServer) SetUserID(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID = id
}

// SetTotalOverride makes list responses report n as total_count.
func (m *MockServer) SetTotalOverride(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalOverride = &n
}

// SetNextError makes the next request fail with status and body.
func (m *MockServer) SetNextError(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextErrStatus = status
	m.nextErrBody = body
}

// SetUpdateStatus sets the status returned by successful PUT and DELETE.
func (m *MockServer) SetUpdateStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateStatus = status
}

func (m *MockServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Body:   body,
	})

	if m.nextErrStatus != 0 {
		status, errBody := m.nextErrStatus, m.nextErrBody
		m.nextErrStatus, m.nextErrBody = 0, ""
		w.WriteHeader(status)
		io.WriteString(w, errBody)
		return
	}

	if r.URL.Query().Get("key") == "" {
		http.Error(w, "missing key", http.StatusUnauthorized)
		return
	}

	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json"), "/")
	resource := parts[0]
	key, ok := m.keys[resource]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			m.handleList(w, r, resource)
		case http.MethodPost:
			m.handleCreate(w, resource, key, body)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, err := strconv.Atoi(parts[1])
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	obj, ok := m.records[resource][id]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{key: obj})
	case http.MethodPut:
		var envelope map[string]map[string]any
		if err := json.Unmarshal(body, &envelope); err != nil {
			http.Error(w, "invalid json", http.StatusUnprocessableEntity)
			return
		}
		m.apply(obj, envelope[key])
		w.WriteHeader(m.updateStatus)
	case http.MethodDelete:
		delete(m.records[resource], id)
		w.WriteHeader(m.updateStatus)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (m *MockServer) handleList(w http.ResponseWriter, r *http.Request, resource string) {
	q := r.URL.Query()

	ids := make([]int, 0, len(m.records[resource]))
	for id := range m.records[resource] {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var matched []map[string]any
	for _, id := range ids {
		obj := m.records[resource][id]
		if m.matchesAll(resource, obj, q) {
			matched = append(matched, obj)
		}
	}

	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 25
	}
	page := []map[string]any{}
	if offset < len(matched) {
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		page = matched[offset:end]
	}

	total := len(matched)
	if m.totalOverride != nil {
		total = *m.totalOverride
	}
	writeJSON(w, http.StatusOK, map[string]any{
		resource:      page,
		"total_count": total,
		"offset":      offset,
		"limit":       limit,
	})
}

func (m *MockServer) matchesAll(resource string, obj map[string]any, q url.Values) bool {
	for _, field := range q["f[]"] {
		op := q.Get("op[" + field + "]")
		values := q["v["+field+"][]"]
		if !m.matches(resource, obj, field, op, values) {
			return false
		}
	}
	return true
}

func (m *MockServer) matches(resource string, obj map[string]any, field, op string, values []string) bool {
	if field == "status_id" {
		return true
	}
	actual := lookupField(resource, obj, field)

	switch op {
	case OpAny:
		return actual != ""
	case OpEqual:
		for _, v := range values {
			for _, part := range strings.Split(v, ",") {
				if part == CurrentUser {
					part = strconv.Itoa(m.userID)
				}
				if actual == strings.TrimSpace(part) {
					return true
				}
			}
		}
		return false
	case OpBetween:
		if len(values) != 2 {
			return false
		}
		return actual >= values[0] && actual <= values[1]
	default:
		return true
	}
}

// lookupField resolves a filter field: plain keys map directly, "<x>_id"
// maps to obj[x].id, and issue_id on issues maps to the record id.
func lookupField(resource string, obj map[string]any, field string) string {
	if field == "issue_id" && resource == Issues.Path {
		return scalar(obj["id"])
	}
	if v, ok := obj[field]; ok {
		return scalar(v)
	}
	if strings.HasSuffix(field, "_id") {
		if ref, ok := obj[strings.TrimSuffix(field, "_id")].(map[string]any); ok {
			return scalar(ref["id"])
		}
	}
	return ""
}

func (m *MockServer) handleCreate(w http.ResponseWriter, resource, key string, body []byte) {
	var envelope map[string]map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil || envelope[key] == nil {
		http.Error(w, "invalid json", http.StatusUnprocessableEntity)
		return
	}

	m.nextID++
	obj := map[string]any{
		"id":   float64(m.nextID),
		"user": map[string]any{"id": float64(m.userID)},
	}
	m.apply(obj, envelope[key])
	m.records[resource][m.nextID] = obj

	writeJSON(w, http.StatusCreated, map[string]any{key: obj})
}

// apply merges request fields into obj, turning "<x>_id" keys into
// nested {"<x>": {"id": ...}} references the way Redmine renders them.
func (m *MockServer) apply(obj map[string]any, fields map[string]any) {
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "" && k == "estimated_hours" {
			obj[k] = nil
			continue
		}
		if strings.HasSuffix(k, "_id") {
			obj[strings.TrimSuffix(k, "_id")] = map[string]any{"id": v}
			continue
		}
		obj[k] = v
	}
}

func normalize(record map[string]any) map[string]any {
	data, _ := json.Marshal(record)
	var obj map[string]any
	json.Unmarshal(data, &obj)
	return obj
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		data, _ := json.Marshal(x)
		return string(data)
	}
}

func toInt(v any) int {
	n, _ := strconv.Atoi(scalar(v))
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
