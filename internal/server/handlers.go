package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/IntelCompH2020/ewbsearch/internal/query"
)

type pathBody struct {
	CorpusPath string `json:"corpus_path,omitempty"`
	ModelPath  string `json:"model_path,omitempty"`
}

type nameBody struct {
	Name string `json:"name"`
}

func (s *Server) handleIndexCorpus(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[pathBody](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if body.CorpusPath == "" {
		s.badRequest(w, "corpus_path", "must name a corpus dataset manifest")
		return
	}
	if err := s.indexer.IndexCorpus(r.Context(), body.CorpusPath); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "indexed"})
}

func (s *Server) handleDeleteCorpus(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[pathBody](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if body.CorpusPath == "" {
		s.badRequest(w, "corpus_path", "must name a corpus dataset manifest")
		return
	}
	if err := s.indexer.DeleteCorpus(r.Context(), body.CorpusPath); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListCorpora(w http.ResponseWriter, r *http.Request) {
	entries, err := s.indexer.Registry().Corpora(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	corpora := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		corpora = append(corpora, map[string]any{
			"id":          e.ID,
			"corpus_name": e.CorpusName,
			"models":      e.Models,
		})
	}
	s.respond(w, http.StatusOK, map[string]any{"corpora": corpora})
}

func (s *Server) handleIndexModel(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[pathBody](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if body.ModelPath == "" {
		s.badRequest(w, "model_path", "must name a trained model directory")
		return
	}
	if err := s.indexer.IndexModel(r.Context(), body.ModelPath); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "indexed"})
}

func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[pathBody](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if body.ModelPath == "" {
		s.badRequest(w, "model_path", "must name a trained model directory")
		return
	}
	if err := s.indexer.DeleteModel(r.Context(), body.ModelPath); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.indexer.Registry().Models(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	if models == nil {
		models = []string{}
	}
	s.respond(w, http.StatusOK, map[string]any{"models": models})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.engine.ListCollections(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.respond(w, http.StatusOK, map[string]any{"collections": names})
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[nameBody](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if body.Name == "" {
		s.badRequest(w, "name", "must name a collection")
		return
	}
	if err := s.engine.CreateCollection(r.Context(), body.Name); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "created"})
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[nameBody](r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if body.Name == "" {
		s.badRequest(w, "name", "must name a collection")
		return
	}
	if err := s.engine.DeleteCollection(r.Context(), body.Name); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleRawQuery forwards a caller-built select to the engine unchanged.
func (s *Server) handleRawQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	collection := q.Get("collection")
	if collection == "" {
		s.badRequest(w, "collection", "must name a collection")
		return
	}

	params := url.Values{}
	for _, key := range []string{"q", "fq", "sort", "start", "rows", "fl", "df", "q.op"} {
		for _, v := range q[key] {
			params.Add(key, v)
		}
	}
	if params.Get("q") == "" {
		s.badRequest(w, "q", "must carry a query")
		return
	}

	res, err := s.engine.Select(r.Context(), collection, params)
	if err != nil {
		s.respondError(w, err)
		return
	}

	payload := map[string]any{
		"num_found": res.NumFound,
		"docs":      res.Docs,
	}
	if rf := q.Get("results_file_path"); rf != "" {
		path, err := s.executor.PersistDocs(collection, "query", rf, res.Docs)
		if err != nil {
			s.respondError(w, err)
			return
		}
		payload["file"] = path
	}
	s.respond(w, http.StatusOK, payload)
}

// handleCatalogueQuery runs one catalogue query; the id comes from the
// path, everything else from query parameters.
func (s *Server) handleCatalogueQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := query.Request{
		ID:          chi.URLParam(r, "id"),
		Corpus:      q.Get("corpus_collection"),
		Model:       q.Get("model_collection"),
		DocID:       q.Get("doc_id"),
		Topic:       q.Get("topic_id"),
		Threshold:   q.Get("threshold"),
		Field:       q.Get("search_field"),
		Text:        q.Get("string_to_search"),
		Payload:     q.Get("doc_tpc_distribution"),
		Start:       q.Get("start"),
		Rows:        q.Get("rows"),
		ResultsFile: q.Get("results_file_path"),
		Persist:     q.Get("persist") == "true",
	}

	started := time.Now()
	res, err := s.executor.Execute(r.Context(), req)
	if s.metrics != nil {
		s.metrics.ObserveQuery(req.ID, time.Since(started), err)
	}
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, res)
}

// handleHealth probes the engine so load balancers see real readiness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		s.respond(w, http.StatusServiceUnavailable, map[string]string{
			"status": "engine unreachable",
		})
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
