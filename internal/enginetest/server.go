// Package enginetest provides an in-memory fake of the search engine for
// tests. It speaks the same wire protocol as the real engine: the
// collections admin API, the per-collection schema API, JSON updates with
// atomic operations, XML deletes, and a select handler that evaluates the
// query subset the service emits.
package enginetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/IntelCompH2020/ewbsearch/internal/engine"
)

// defaultFieldTypes are the schema field types the fake accepts. Tests that
// exercise missing-type failures start the server with a narrower set.
var defaultFieldTypes = []string{
	"string", "text_general", "plong", "pint", "pfloat", "pdate", "boolean",
	"VectorField", "VectorFloatField",
}

// Server is a fake engine bound to an httptest listener.
type Server struct {
	mu          sync.Mutex
	collections map[string]*collection
	fieldTypes  map[string]bool

	srv *httptest.Server
}

type collection struct {
	docs   map[string]engine.Doc
	order  []string
	fields map[string]engine.Field
}

// Option configures the fake.
type Option func(*Server)

// WithFieldTypes replaces the set of schema field types the fake knows.
func WithFieldTypes(types ...string) Option {
	return func(s *Server) {
		s.fieldTypes = map[string]bool{}
		for _, t := range types {
			s.fieldTypes[t] = true
		}
	}
}

// New starts a fake engine and registers its shutdown with tb.
func New(tb testing.TB, opts ...Option) *Server {
	tb.Helper()

	s := &Server{
		collections: map[string]*collection{},
		fieldTypes:  map[string]bool{},
	}
	for _, t := range defaultFieldTypes {
		s.fieldTypes[t] = true
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/collections", s.handleCollections)
	mux.HandleFunc("/api/collections/", s.handleSchema)
	mux.HandleFunc("/solr/", s.handleDocumentAPI)

	s.srv = httptest.NewServer(mux)
	tb.Cleanup(s.srv.Close)
	return s
}

// URL returns the fake engine's base URL.
func (s *Server) URL() string {
	return s.srv.URL
}

// Client returns an engine client pointed at the fake.
func (s *Server) Client(tb testing.TB, opts ...engine.Option) *engine.Client {
	tb.Helper()
	client, err := engine.New(s.srv.URL, opts...)
	if err != nil {
		tb.Fatalf("failed to build engine client: %v", err)
	}
	return client
}

// SeedCollection creates a collection and stores docs directly, bypassing
// the wire protocol. Useful for arranging query tests.
func (s *Server) SeedCollection(name string, docs ...engine.Doc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.ensureCollection(name)
	for _, doc := range docs {
		id := fmt.Sprintf("%v", doc["id"])
		if _, seen := col.docs[id]; !seen {
			col.order = append(col.order, id)
		}
		col.docs[id] = cloneDoc(doc)
	}
}

// Docs returns the stored documents of a collection in insertion order.
func (s *Server) Docs(name string) []engine.Doc {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		return nil
	}
	out := make([]engine.Doc, 0, len(col.order))
	for _, id := range col.order {
		out = append(out, cloneDoc(col.docs[id]))
	}
	return out
}

// Doc returns one stored document by id.
func (s *Server) Doc(name, id string) (engine.Doc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		return nil, false
	}
	doc, ok := col.docs[id]
	if !ok {
		return nil, false
	}
	return cloneDoc(doc), true
}

// CollectionNames returns the existing collection names.
func (s *Server) CollectionNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namesLocked()
}

// HasField reports whether a schema field exists on a collection.
func (s *Server) HasField(collectionName, fieldName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collectionName]
	if !ok {
		return false
	}
	_, ok = col.fields[fieldName]
	return ok
}

func (s *Server) ensureCollection(name string) *collection {
	col, ok := s.collections[name]
	if !ok {
		col = &collection{
			docs:   map[string]engine.Doc{},
			fields: map[string]engine.Field{},
		}
		s.collections[name] = col
	}
	return col
}

func (s *Server) namesLocked() []string {
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	return names
}

// --- HTTP handlers -----------------------------------------------------

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"responseHeader": okHeader(),
			"collections":    s.namesLocked(),
		})

	case r.Method == http.MethodPost && r.URL.Query().Get("action") == "DELETE":
		name := r.URL.Query().Get("name")
		if _, ok := s.collections[name]; !ok {
			writeEngineError(w, http.StatusBadRequest,
				fmt.Sprintf("Could not find collection : %s", name))
			return
		}
		delete(s.collections, name)
		writeJSON(w, http.StatusOK, map[string]any{"responseHeader": okHeader()})

	case r.Method == http.MethodPost:
		var req struct {
			Create struct {
				Name string `json:"name"`
			} `json:"create"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil || req.Create.Name == "" {
			writeEngineError(w, http.StatusBadRequest, "invalid create request")
			return
		}
		if _, exists := s.collections[req.Create.Name]; exists {
			writeEngineError(w, http.StatusBadRequest,
				fmt.Sprintf("collection already exists: %s", req.Create.Name))
			return
		}
		s.ensureCollection(req.Create.Name)
		writeJSON(w, http.StatusOK, map[string]any{"responseHeader": okHeader()})

	default:
		writeEngineError(w, http.StatusMethodNotAllowed, "unsupported method")
	}
}

// handleSchema serves /api/collections/{name}/schema.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/collections/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "schema" || r.Method != http.MethodPost {
		writeEngineError(w, http.StatusNotFound, "unknown admin path")
		return
	}
	name := parts[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		writeEngineError(w, http.StatusNotFound,
			fmt.Sprintf("Collection not found: %s", name))
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req struct {
		AddField    *engine.Field `json:"add-field"`
		DeleteField *struct {
			Name string `json:"name"`
		} `json:"delete-field"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeEngineError(w, http.StatusBadRequest, "invalid schema request")
		return
	}

	switch {
	case req.AddField != nil:
		if !s.fieldTypes[req.AddField.Type] {
			writeEngineError(w, http.StatusBadRequest,
				fmt.Sprintf("Field type '%s' not found", req.AddField.Type))
			return
		}
		col.fields[req.AddField.Name] = *req.AddField
		writeJSON(w, http.StatusOK, map[string]any{"responseHeader": okHeader()})

	case req.DeleteField != nil:
		if _, ok := col.fields[req.DeleteField.Name]; !ok {
			writeEngineError(w, http.StatusBadRequest,
				fmt.Sprintf("The field '%s' is not present in this schema", req.DeleteField.Name))
			return
		}
		delete(col.fields, req.DeleteField.Name)
		writeJSON(w, http.StatusOK, map[string]any{"responseHeader": okHeader()})

	default:
		writeEngineError(w, http.StatusBadRequest, "empty schema request")
	}
}

var xmlDeletePattern = regexp.MustCompile(`<delete><query>\(id:(.+)\)</query></delete>`)

// handleDocumentAPI serves /solr/{collection}/update and /solr/{collection}/select.
func (s *Server) handleDocumentAPI(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/solr/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeEngineError(w, http.StatusNotFound, "unknown document path")
		return
	}
	name, action := parts[0], parts[1]

	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		writeEngineError(w, http.StatusNotFound,
			fmt.Sprintf("Collection not found: %s", name))
		return
	}

	switch action {
	case "update":
		s.handleUpdate(w, r, col)
	case "select":
		s.handleSelect(w, r, col)
	default:
		writeEngineError(w, http.StatusNotFound, "unknown document action")
	}
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, col *collection) {
	body, _ := io.ReadAll(r.Body)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/xml") {
		m := xmlDeletePattern.FindSubmatch(body)
		if m == nil {
			writeEngineError(w, http.StatusBadRequest, "unparseable delete body")
			return
		}
		id := string(m[1])
		if _, ok := col.docs[id]; ok {
			delete(col.docs, id)
			for i, existing := range col.order {
				if existing == id {
					col.order = append(col.order[:i], col.order[i+1:]...)
					break
				}
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"responseHeader": okHeader()})
		return
	}

	var docs []engine.Doc
	if err := json.Unmarshal(body, &docs); err != nil {
		writeEngineError(w, http.StatusBadRequest, "invalid update body")
		return
	}

	for _, doc := range docs {
		id := fmt.Sprintf("%v", doc["id"])
		if id == "" || id == "<nil>" {
			writeEngineError(w, http.StatusBadRequest, "document without id")
			return
		}
		existing, seen := col.docs[id]
		if !seen {
			col.order = append(col.order, id)
			existing = engine.Doc{}
		}
		col.docs[id] = applyUpdate(existing, doc)
	}
	writeJSON(w, http.StatusOK, map[string]any{"responseHeader": okHeader()})
}

// applyUpdate merges an update document into the stored one, honoring the
// atomic set/add/remove operations; a document without atomic operations
// replaces the stored one, matching overwrite=true.
func applyUpdate(existing, update engine.Doc) engine.Doc {
	if !hasAtomicOps(update) {
		return cloneDoc(update)
	}

	merged := cloneDoc(existing)
	for key, value := range update {
		op, ok := value.(map[string]any)
		if !ok {
			merged[key] = value
			continue
		}
		switch {
		case hasKey(op, "set"):
			v := op["set"]
			if v == nil {
				delete(merged, key)
			} else if arr, isArr := v.([]any); isArr && len(arr) == 0 {
				delete(merged, key)
			} else {
				merged[key] = v
			}
		case hasKey(op, "add"):
			merged[key] = appendValues(merged[key], op["add"])
		case hasKey(op, "remove"):
			merged[key] = removeValues(merged[key], op["remove"])
		default:
			merged[key] = value
		}
	}
	return merged
}

func hasAtomicOps(doc engine.Doc) bool {
	for key, value := range doc {
		if key == "id" {
			continue
		}
		if op, ok := value.(map[string]any); ok {
			if hasKey(op, "set") || hasKey(op, "add") || hasKey(op, "remove") {
				return true
			}
		}
	}
	return false
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func appendValues(current, added any) any {
	out := toSlice(current)
	out = append(out, toSlice(added)...)
	return out
}

func removeValues(current, removed any) any {
	drop := map[string]bool{}
	for _, v := range toSlice(removed) {
		drop[fmt.Sprintf("%v", v)] = true
	}
	var out []any
	for _, v := range toSlice(current) {
		if !drop[fmt.Sprintf("%v", v)] {
			out = append(out, v)
		}
	}
	return out
}

func toSlice(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

func cloneDoc(doc engine.Doc) engine.Doc {
	out := engine.Doc{}
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// --- response helpers ---------------------------------------------------

func okHeader() map[string]any {
	return map[string]any{"status": 0, "QTime": 1}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeEngineError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"responseHeader": map[string]any{"status": status, "QTime": 1},
		"error":          map[string]any{"msg": msg, "code": status},
	})
}
