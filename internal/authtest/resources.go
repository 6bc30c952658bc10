package authtest

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// collection is a named list of JSON records keyed by id.
type collection struct {
	listKey    string
	orderKey   string
	noun       string
	required   []string
	missingMsg string
	uniqueKey  string
	defaults   map[string]any

	mu      sync.Mutex
	records []map[string]any
}

func (c *collection) find(id string) map[string]any {
	for _, rec := range c.records {
		if rec["id"] == id {
			return rec
		}
	}
	return nil
}

func (c *collection) notFound() string {
	return "unable to find " + c.noun + " with that id"
}

// complete reports whether every required field is present and non-empty.
func (c *collection) complete(in map[string]any) bool {
	for _, key := range c.required {
		if v, ok := in[key]; !ok || v == nil || v == "" {
			return false
		}
	}
	return true
}

// taken reports whether another record already holds in's unique value.
func (c *collection) taken(in map[string]any, id string) bool {
	if c.uniqueKey == "" {
		return false
	}
	for _, rec := range c.records {
		if rec["id"] != id && fmt.Sprint(rec[c.uniqueKey]) == fmt.Sprint(in[c.uniqueKey]) {
			return true
		}
	}
	return false
}

// report is a fixed table returned as JSON or CSV.
type report struct {
	jsonKey string
	columns []string
	rows    [][]string
}

type resourceData struct {
	accessCards *collection
	accessNodes *collection
	devices     *collection
	reports     map[string]*report
}

func newResourceData() *resourceData {
	return &resourceData{
		accessCards: &collection{
			listKey:    "access_cards",
			orderKey:   "cardNumber",
			noun:       "an access card",
			required:   []string{"cardNumber"},
			missingMsg: "missing cardNumber",
			uniqueKey:  "cardNumber",
			defaults:   map[string]any{"status": "active"},
			records: []map[string]any{
				{"id": "card-1", "cardNumber": "10001", "facilityCode": 12, "cardType": 26, "status": "active"},
				{"id": "card-2", "cardNumber": "10002", "facilityCode": 12, "cardType": 26, "status": "lost"},
				{"id": "card-3", "cardNumber": "10003", "facilityCode": 14, "cardType": 37, "status": "archived"},
			},
		},
		accessNodes: &collection{
			listKey:    "access_nodes",
			orderKey:   "name",
			noun:       "an access node",
			required:   []string{"type", "name", "macAddress"},
			missingMsg: "missing type or name or macAddress",
			uniqueKey:  "name",
			defaults:   map[string]any{"status": "available"},
			records: []map[string]any{
				{"id": "node-1", "name": "front door", "type": "door", "status": "available", "macAddress": "00:1a:2b:3c:4d:5e"},
				{"id": "node-2", "name": "laser cutter", "type": "machine", "status": "in use", "macAddress": "00:1a:2b:3c:4d:5f"},
			},
		},
		devices: &collection{
			noun:       "a device",
			required:   []string{"type", "name"},
			missingMsg: "missing type or name",
			uniqueKey:  "name",
			records: []map[string]any{
				{"id": "device-1", "name": "laser cutter", "type": "machine", "created_at": "2024-01-01T00:00:00"},
				{"id": "device-2", "name": "front door", "type": "door", "created_at": "2024-01-01T00:00:00"},
			},
		},
		reports: map[string]*report{
			"deviceAccess": {
				jsonKey: "deviceAccessLogs",
				columns: []string{"id", "userId", "accessCardId", "deviceId", "action", "createdAt"},
				rows: [][]string{
					{"1", "user-1", "card-1", "device-1", "granted", "2024-01-02T10:00:00"},
					{"2", "user-2", "card-2", "device-1", "denied", "2024-01-02T10:05:00"},
				},
			},
			"accessCardEdits": {
				jsonKey: "accessCardEditLogs",
				columns: []string{"id", "accessCardId", "status", "updatedByUserId", "createdAt"},
				rows:    [][]string{{"1", "card-2", "lost", "user-1", "2024-01-03T09:00:00"}},
			},
			"userEdits": {
				jsonKey: "userEditLogs",
				columns: []string{"id", "userId", "role", "status", "updatedByUserId", "createdAt"},
				rows:    [][]string{{"1", "user-2", "editor", "active", "user-1", "2024-01-04T12:00:00"}},
			},
			"userAccess": {
				jsonKey: "userAccessLogs",
				columns: []string{"id", "userId", "accessNodeId", "action", "createdAt"},
				rows:    [][]string{{"1", "user-1", "node-1", "granted", "2024-01-05T08:30:00"}},
			},
		},
	}
}

// paginate applies page/perPage the way the backend does: pages start at
// 1, perPage defaults to 20 and is capped at 100.
func paginate[T any](items []T, r *http.Request) []T {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(r.URL.Query().Get("perPage"))
	if err != nil || perPage < 1 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, maxPerPage)

	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	return items[start:min(start+perPage, len(items))]
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users := paginate(s.users.list(q.Get("role"), q.Get("status"), q.Get("orderBy"), q.Get("orderDir") == "desc"), r)
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, u.record())
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u := s.users.get(chi.URLParam(r, "id"))
	if u == nil {
		writeMessage(w, http.StatusNotFound, "unable to find a user with that id")
		return
	}
	writeJSON(w, http.StatusOK, u.record())
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in userInput
	if !decodeJSON(r, &in) || strings.TrimSpace(in.Username) == "" || in.Password == "" {
		writeMessage(w, http.StatusUnprocessableEntity, "missing username or password")
		return
	}
	if msg := in.invalid(); msg != "" {
		writeMessage(w, http.StatusUnprocessableEntity, msg)
		return
	}
	u, created, err := s.users.add(strings.TrimSpace(in.Username), in.Password, in.FirstName, in.LastName, cmp.Or(in.Role, RoleUser))
	switch {
	case err != nil:
		writeMessage(w, http.StatusInternalServerError, "an unknown error occurred")
		return
	case !created:
		writeMessage(w, http.StatusConflict, "a user with that name already exists")
		return
	}
	rec := u.record()
	if in.Status != "" {
		rec, _, _, _ = s.users.update(u.id, userInput{Status: in.Status})
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var in userInput
	if !decodeJSON(r, &in) || strings.TrimSpace(in.Username) == "" {
		writeMessage(w, http.StatusUnprocessableEntity, "missing username")
		return
	}
	if msg := in.invalid(); msg != "" {
		writeMessage(w, http.StatusUnprocessableEntity, msg)
		return
	}
	in.Username = strings.TrimSpace(in.Username)
	rec, found, taken, err := s.users.update(chi.URLParam(r, "id"), in)
	switch {
	case err != nil:
		writeMessage(w, http.StatusInternalServerError, "an unknown error occurred")
	case !found:
		writeMessage(w, http.StatusNotFound, "unable to find a user with that id")
	case taken:
		writeMessage(w, http.StatusConflict, "a user with that name already exists")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleArchiveUser(w http.ResponseWriter, r *http.Request) {
	if !s.users.archive(chi.URLParam(r, "id")) {
		writeMessage(w, http.StatusNotFound, "unable to find a user with that id")
		return
	}
	writeMessage(w, http.StatusOK, "user archived")
}

func (s *Server) collectionRoutes(c *collection) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			status := r.URL.Query().Get("status")
			desc := r.URL.Query().Get("orderDir") == "desc"

			c.mu.Lock()
			out := make([]map[string]any, 0, len(c.records))
			for _, rec := range c.records {
				if status != "" && rec["status"] != status {
					continue
				}
				if status == "" && rec["status"] == StatusArchived {
					continue
				}
				out = append(out, rec)
			}
			c.mu.Unlock()

			sort.SliceStable(out, func(i, j int) bool {
				a, b := fmt.Sprint(out[i][c.orderKey]), fmt.Sprint(out[j][c.orderKey])
				if desc {
					return a > b
				}
				return a < b
			})
			writeJSON(w, http.StatusOK, map[string]any{c.listKey: paginate(out, r)})
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			c.mu.Lock()
			rec := c.find(chi.URLParam(r, "id"))
			c.mu.Unlock()
			if rec == nil {
				writeMessage(w, http.StatusNotFound, c.notFound())
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"view": rec})
		})

		r.With(requireRole(RoleAdmin)).Post("/", s.handleCreateRecord(c))
		r.With(requireRole(RoleAdmin, RoleEditor)).Put("/{id}", s.handleUpdateRecord(c))

		r.With(requireRole(RoleAdmin)).Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			c.mu.Lock()
			defer c.mu.Unlock()
			rec := c.find(chi.URLParam(r, "id"))
			if rec == nil {
				writeMessage(w, http.StatusNotFound, c.notFound())
				return
			}
			rec["status"] = StatusArchived
			writeMessage(w, http.StatusOK, "archived")
		})
	}
}

// handleCreateRecord adds a record built from the request body over the
// collection defaults and answers with the stored record.
func (s *Server) handleCreateRecord(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		if !decodeJSON(r, &in) || !c.complete(in) {
			writeMessage(w, http.StatusUnprocessableEntity, c.missingMsg)
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.taken(in, "") {
			writeMessage(w, http.StatusConflict, "a record with that "+c.uniqueKey+" already exists")
			return
		}
		rec := maps.Clone(c.defaults)
		if rec == nil {
			rec = make(map[string]any, len(in)+1)
		}
		maps.Copy(rec, in)
		rec["id"] = uuid.New().String()
		c.records = append(c.records, rec)
		writeJSON(w, http.StatusOK, rec)
	}
}

// handleUpdateRecord replaces the fields present in the request body.
func (s *Server) handleUpdateRecord(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		if !decodeJSON(r, &in) || !c.complete(in) {
			writeMessage(w, http.StatusUnprocessableEntity, c.missingMsg)
			return
		}

		id := chi.URLParam(r, "id")
		c.mu.Lock()
		defer c.mu.Unlock()
		rec := c.find(id)
		if rec == nil {
			writeMessage(w, http.StatusNotFound, c.notFound())
			return
		}
		if c.taken(in, id) {
			writeMessage(w, http.StatusConflict, "a record with that "+c.uniqueKey+" already exists")
			return
		}
		delete(in, "id")
		maps.Copy(rec, in)
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	c := s.data.devices
	id := chi.URLParam(r, "id")
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.records, func(rec map[string]any) bool { return rec["id"] == id })
	if i < 0 {
		writeMessage(w, http.StatusNotFound, c.notFound())
		return
	}
	c.records = slices.Delete(c.records, i, i+1)
	writeMessage(w, http.StatusOK, "device deleted")
}

// handleReport answers CSV when the request's Content-Type is text/csv and
// JSON otherwise.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.data.reports[chi.URLParam(r, "kind")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "unknown report")
		return
	}
	rows := paginate(rep.rows, r)

	if r.Header.Get("Content-Type") == "text/csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		cw := csv.NewWriter(w)
		_ = cw.Write(rep.columns)
		_ = cw.WriteAll(rows)
		return
	}

	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]string, len(rep.columns))
		for i, col := range rep.columns {
			rec[col] = row[i]
		}
		out = append(out, rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{rep.jsonKey: out})
}
