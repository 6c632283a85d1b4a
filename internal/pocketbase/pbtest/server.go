// Package pbtest provides an in-memory PocketBase stand-in for tests.
package pbtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const timeLayout = "2006-01-02 15:04:05.000Z"

// Server serves a subset of the PocketBase records API from memory.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	collections map[string][]map[string]any
	tokens      map[string]string
	resets      map[string]string
	seq         int

	// FailWith makes every request answer with this status when non-zero.
	FailWith int
	// FailOn, when set, picks a failure status per request; zero serves it.
	// Set it before issuing requests.
	FailOn func(r *http.Request) int

	hits map[string]int
}

func NewServer() *Server {
	s := &Server{collections: map[string][]map[string]any{}, tokens: map[string]string{}, resets: map[string]string{}, hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Seed inserts a record directly and returns its id.
func (s *Server) Seed(collection string, rec map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(collection, rec)
}

// Records returns a copy of a collection.
func (s *Server) Records(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.collections[collection]))
	for _, r := range s.collections[collection] {
		out = append(out, clone(r))
	}
	return out
}

// Hits counts the requests received for method and path, failed ones included.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

func (s *Server) insert(collection string, rec map[string]any) string {
	rec = clone(rec)
	if id, _ := rec["id"].(string); id == "" {
		rec["id"] = uuid.NewString()[:15]
	}
	s.seq++
	// a strictly increasing clock keeps "-created" ordering deterministic
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Millisecond).Format(timeLayout)
	if _, ok := rec["created"]; !ok {
		rec["created"] = now
	}
	rec["updated"] = now
	s.collections[collection] = append(s.collections[collection], rec)
	return rec["id"].(string)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits[r.Method+" "+r.URL.Path]++
	if s.FailWith != 0 {
		writeError(w, s.FailWith, "forced failure")
		return
	}
	if s.FailOn != nil {
		if status := s.FailOn(r); status != 0 {
			writeError(w, status, "forced failure")
			return
		}
	}

	if r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"code": 200, "message": "API is healthy."})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 4 || parts[0] != "api" || parts[1] != "collections" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	collection := parts[2]

	switch {
	case parts[3] == "auth-with-password" && r.Method == http.MethodPost:
		s.authWithPassword(w, r, collection)
	case parts[3] == "auth-refresh" && r.Method == http.MethodPost:
		s.authRefresh(w, r, collection)
	case parts[3] == "request-password-reset" && r.Method == http.MethodPost:
		s.requestPasswordReset(w, r, collection)
	case parts[3] == "confirm-password-reset" && r.Method == http.MethodPost:
		s.confirmPasswordReset(w, r, collection)
	case parts[3] == "records" && len(parts) == 4 && r.Method == http.MethodGet:
		s.list(w, r, collection)
	case parts[3] == "records" && len(parts) == 4 && r.Method == http.MethodPost:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id := s.insert(collection, body)
		writeJSON(w, http.StatusOK, s.find(collection, id))
	case parts[3] == "records" && len(parts) == 5:
		s.record(w, r, collection, parts[4])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) record(w http.ResponseWriter, r *http.Request, collection, id string) {
	rec := s.find(collection, id)
	if rec == nil {
		writeError(w, http.StatusNotFound, "The requested resource wasn't found.")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, rec)
	case http.MethodPatch:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, ok := body["password"]; ok {
			if !s.changePassword(w, r, rec, body) {
				return
			}
		}
		for k, v := range body {
			rec[k] = v
		}
		writeJSON(w, http.StatusOK, public(rec))
	case http.MethodDelete:
		records := s.collections[collection]
		for i, r := range records {
			if r["id"] == id {
				s.collections[collection] = append(records[:i], records[i+1:]...)
				break
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) find(collection, id string) map[string]any {
	for _, r := range s.collections[collection] {
		if r["id"] == id {
			return r
		}
	}
	return nil
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, collection string) {
	q := r.URL.Query()
	matches := []map[string]any{}
	for _, rec := range s.collections[collection] {
		if matchFilter(rec, q.Get("filter")) {
			matches = append(matches, rec)
		}
	}
	if q.Get("sort") == "-created" {
		sort.SliceStable(matches, func(i, j int) bool {
			return fmt.Sprint(matches[i]["created"]) > fmt.Sprint(matches[j]["created"])
		})
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	if perPage < 1 {
		perPage = 30
	}
	start := min((page-1)*perPage, len(matches))
	end := min(start+perPage, len(matches))
	totalPages := (len(matches) + perPage - 1) / perPage

	writeJSON(w, http.StatusOK, map[string]any{
		"page":       page,
		"perPage":    perPage,
		"totalItems": len(matches),
		"totalPages": totalPages,
		"items":      matches[start:end],
	})
}

// matchFilter understands `field="value"` clauses joined by &&.
func matchFilter(rec map[string]any, filter string) bool {
	if strings.TrimSpace(filter) == "" {
		return true
	}
	for _, clause := range strings.Split(filter, "&&") {
		field, value, ok := strings.Cut(strings.TrimSpace(clause), "=")
		if !ok {
			return false
		}
		value, err := strconv.Unquote(strings.TrimSpace(value))
		if err != nil {
			return false
		}
		if fmt.Sprint(rec[strings.TrimSpace(field)]) != value {
			return false
		}
	}
	return true
}

func (s *Server) authWithPassword(w http.ResponseWriter, r *http.Request, collection string) {
	var body struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, rec := range s.collections[collection] {
		if (rec["email"] == body.Identity || rec["username"] == body.Identity) && rec["password"] == body.Password {
			token := uuid.NewString()
			s.tokens[token] = rec["id"].(string)
			writeJSON(w, http.StatusOK, map[string]any{"token": token, "record": public(rec)})
			return
		}
	}
	writeError(w, http.StatusBadRequest, "Failed to authenticate.")
}

func (s *Server) authRefresh(w http.ResponseWriter, r *http.Request, collection string) {
	id, ok := s.tokens[r.Header.Get("Authorization")]
	if !ok {
		writeError(w, http.StatusUnauthorized, "The request requires valid record authorization token.")
		return
	}
	rec := s.find(collection, id)
	if rec == nil {
		writeError(w, http.StatusUnauthorized, "missing auth record")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": r.Header.Get("Authorization"), "record": public(rec)})
}

// ResetToken returns the token of the last reset mail sent to email.
func (s *Server) ResetToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, id := range s.resets {
		for _, recs := range s.collections {
			for _, rec := range recs {
				if rec["id"] == id && rec["email"] == email {
					return token
				}
			}
		}
	}
	return ""
}

// changePassword enforces the owner-only password change rules and drops the
// helper fields from body. It writes the error response itself.
func (s *Server) changePassword(w http.ResponseWriter, r *http.Request, rec, body map[string]any) bool {
	id := rec["id"].(string)
	if s.tokens[r.Header.Get("Authorization")] != id {
		writeError(w, http.StatusForbidden, "Only the record owner may change the password.")
		return false
	}
	if body["oldPassword"] != rec["password"] || body["password"] != body["passwordConfirm"] {
		writeError(w, http.StatusBadRequest, "Failed to update record.")
		return false
	}
	delete(body, "oldPassword")
	delete(body, "passwordConfirm")
	s.revoke(id)
	return true
}

func (s *Server) requestPasswordReset(w http.ResponseWriter, r *http.Request, collection string) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, rec := range s.collections[collection] {
		if rec["email"] == body.Email {
			s.resets[uuid.NewString()] = rec["id"].(string)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) confirmPasswordReset(w http.ResponseWriter, r *http.Request, collection string) {
	var body struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, ok := s.resets[body.Token]
	rec := s.find(collection, id)
	if !ok || rec == nil || body.Password != body.PasswordConfirm {
		writeError(w, http.StatusBadRequest, "Failed to authenticate.")
		return
	}
	delete(s.resets, body.Token)
	rec["password"] = body.Password
	s.revoke(id)
	w.WriteHeader(http.StatusNoContent)
}

// revoke ends every session of the record id.
func (s *Server) revoke(id string) {
	for token, owner := range s.tokens {
		if owner == id {
			delete(s.tokens, token)
		}
	}
}

func public(rec map[string]any) map[string]any {
	out := clone(rec)
	delete(out, "password")
	return out
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"code": status, "message": msg, "data": map[string]any{}})
}
