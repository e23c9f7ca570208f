// Package fakeapi is an in-memory stand-in for the remote collection API used
// in tests: a discovery document at the root, paginated collections, and
// record URLs accepting PUT and DELETE.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agentstation/sissync/pkg/records"
)

// Request is a recorded mutation or list request.
type Request struct {
	Method     string
	Collection string
	Path       string
	Body       records.Record
}

// RejectFunc inspects a create body and returns a status and JSON body to
// answer with instead of creating the record. A zero status accepts it.
type RejectFunc func(rec records.Record) (int, map[string]any)

// Server is a fake collection API backed by memory.
type Server struct {
	server *httptest.Server

	mu          sync.Mutex
	collections map[string]*collection
	requests    []Request
	rejects     map[string]RejectFunc
	statuses    map[string]int
	username    string
	password    string
}

type collection struct {
	nextID  int
	records map[int]records.Record
}

// New starts a fake server exposing the given collections. It is closed
// when the test ends.
func New(t testing.TB, names ...string) *Server {
	t.Helper()

	s := &Server{
		collections: make(map[string]*collection),
		rejects:     make(map[string]RejectFunc),
		statuses:    make(map[string]int),
	}
	for _, name := range names {
		s.collections[name] = &collection{nextID: 1, records: make(map[int]records.Record)}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.authenticate)
	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.discovery)
		r.Route("/{collection}", func(r chi.Router) {
			r.Use(s.forcedStatus)
			r.Get("/", s.list)
			r.Post("/", s.create)
			r.Put("/{id}/", s.update)
			r.Delete("/{id}/", s.remove)
		})
	})

	s.server = httptest.NewServer(r)
	t.Cleanup(s.server.Close)
	return s
}

// Root returns the discovery document URL.
func (s *Server) Root() string {
	return s.server.URL + "/api/"
}

// Client returns an HTTP client for the server.
func (s *Server) Client() *http.Client {
	return s.server.Client()
}

// RequireAuth makes every request require HTTP basic auth.
func (s *Server) RequireAuth(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username, s.password = username, password
}

// Seed stores a record and returns its assigned URL.
func (s *Server) Seed(name string, rec records.Record) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(name, rec.Clone())
}

// Records returns the stored records of a collection in creation order.
func (s *Server) Records(name string) []records.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(name)
}

// Requests returns recorded requests, optionally filtered by method.
func (s *Server) Requests(method string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, req := range s.requests {
		if method == "" || req.Method == method {
			out = append(out, req)
		}
	}
	return out
}

// Reject installs a create hook for a collection.
func (s *Server) Reject(name string, fn RejectFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects[name] = fn
}

// FailWith answers every method request to a collection with status.
func (s *Server) FailWith(method, name string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[method+" "+name] = status
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		username, password := s.username, s.password
		s.mu.Unlock()
		if username != "" {
			u, p, ok := r.BasicAuth()
			if !ok || u != username || p != password {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid username/password."})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) forcedStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := s.statuses[r.Method+" "+chi.URLParam(r, "collection")]
		s.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]any{"detail": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) discovery(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := make(map[string]any, len(s.collections))
	for name := range s.collections {
		doc[name] = s.collectionURL(name)
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	s.requests = append(s.requests, Request{Method: r.Method, Collection: name, Path: r.URL.String()})

	all := s.sorted(name)
	pageSize := atoiDefault(r.URL.Query().Get("page_size"), 100)
	page := atoiDefault(r.URL.Query().Get("page"), 1)
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}

	var next any
	if end < len(all) {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(page+1))
		next = s.collectionURL(name) + "?" + q.Encode()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(all),
		"next":     next,
		"previous": nil,
		"results":  all[start:end],
	})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	s.requests = append(s.requests, Request{Method: r.Method, Collection: name, Path: r.URL.Path, Body: body})

	if reject := s.rejects[name]; reject != nil {
		if status, resp := reject(body); status != 0 {
			writeJSON(w, status, resp)
			return
		}
	}

	url := s.insert(name, body.Clone())
	writeJSON(w, http.StatusCreated, s.find(name, url))
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{Method: r.Method, Collection: name, Path: r.URL.Path, Body: body})

	c, id, ok := s.lookup(name, chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	rec := body.Clone()
	rec[records.URLField] = s.recordURL(name, id)
	c.records[id] = rec
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{Method: r.Method, Collection: name, Path: r.URL.Path})

	c, id, ok := s.lookup(name, chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	delete(c.records, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) insert(name string, rec records.Record) string {
	c := s.collections[name]
	id := c.nextID
	c.nextID++
	rec[records.URLField] = s.recordURL(name, id)
	c.records[id] = rec
	return s.recordURL(name, id)
}

func (s *Server) find(name, url string) records.Record {
	for _, rec := range s.collections[name].records {
		if rec.URL() == url {
			return rec
		}
	}
	return nil
}

func (s *Server) lookup(name, rawID string) (*collection, int, bool) {
	c, ok := s.collections[name]
	if !ok {
		return nil, 0, false
	}
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return nil, 0, false
	}
	if _, ok := c.records[id]; !ok {
		return nil, 0, false
	}
	return c, id, true
}

func (s *Server) sorted(name string) []records.Record {
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	ids := make([]int, 0, len(c.records))
	for id := range c.records {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]records.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.records[id].Clone())
	}
	return out
}

func (s *Server) collectionURL(name string) string {
	return s.server.URL + "/api/" + name + "/"
}

func (s *Server) recordURL(name string, id int) string {
	return fmt.Sprintf("%s%d/", s.collectionURL(name), id)
}

func decodeBody(w http.ResponseWriter, r *http.Request) (records.Record, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return nil, false
	}
	var body records.Record
	if err := json.Unmarshal(data, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "JSON parse error - " + strings.TrimSpace(err.Error())})
		return nil, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return def
}
