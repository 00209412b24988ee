package query

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// PersistDocs writes an arbitrary doc list through the same path the
// catalogue uses, for callers that run raw selects. The resolved file
// location is returned.
func (e *Executor) PersistDocs(collection, queryID, path string, docs []engine.Doc) (string, error) {
	return e.persistResults(Request{ID: queryID, Corpus: collection, ResultsFile: path}, docs)
}

// persistResults writes the doc list as a JSON array. A bare file name is
// placed under the configured results directory; an empty name with
// Persist set derives {collection}_{qid}_{yyyymmdd}.json. The resolved
// path is returned.
func (e *Executor) persistResults(req Request, docs []engine.Doc) (string, error) {
	path := req.ResultsFile
	if path == "" {
		collection := req.Corpus
		if collection == "" {
			collection = req.Model
		}
		path = collection + "_" + req.ID + "_" + time.Now().UTC().Format("20060102") + ".json"
	}
	if !strings.ContainsRune(path, os.PathSeparator) {
		path = filepath.Join(e.cfg.Query.ResultsDir, path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", ewberrors.New(ewberrors.ErrCodeResultWriteFailed,
				"cannot create results directory", err).
				WithDetail("path", path)
		}
	}

	if docs == nil {
		docs = []engine.Doc{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return "", ewberrors.New(ewberrors.ErrCodeResultWriteFailed,
			"cannot encode query results", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", ewberrors.New(ewberrors.ErrCodeResultWriteFailed,
			"cannot write query results", err).
			WithDetail("path", path)
	}

	e.logger.Info("query results persisted", "query", req.ID, "path", path)
	return path, nil
}
