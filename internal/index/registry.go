package index

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// Entry is one registry document: an indexed corpus, its schema fields,
// and the models trained on it.
type Entry struct {
	ID         int
	CorpusName string
	Fields     []string
	Models     []string
}

// Registry is the client for the corpora collection, the only
// authoritative store of the corpus to model mapping. All mutations are
// per-document atomic field operations.
type Registry struct {
	engine *engine.Client
	name   string
	logger *slog.Logger
}

// NewRegistry creates a registry client for the named collection.
func NewRegistry(client *engine.Client, name string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{engine: client, name: name, logger: logger}
}

// Name returns the registry collection name.
func (r *Registry) Name() string {
	return r.name
}

// Ensure creates the registry collection if it does not exist yet and
// reports whether it already existed.
func (r *Registry) Ensure(ctx context.Context) (existed bool, err error) {
	exists, err := r.engine.CollectionExists(ctx, r.name)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}
	if err := r.engine.CreateCollection(ctx, r.name); err != nil {
		// Lost a create race: somebody else made it first.
		if ewberrors.IsConflict(err) {
			return true, nil
		}
		return false, err
	}
	r.logger.Info("registry collection created", "registry", r.name)
	return false, nil
}

// NextID returns the next corpus id: the highest id currently registered
// plus one, or 1 for an empty registry.
func (r *Registry) NextID(ctx context.Context) (int, error) {
	params := url.Values{}
	params.Set("q", "*:*")
	params.Set("sort", "id desc")
	params.Set("rows", "1")
	params.Set("fl", "id")

	res, err := r.engine.Select(ctx, r.name, params)
	if err != nil {
		return 0, err
	}
	if len(res.Docs) == 0 {
		return 1, nil
	}
	id, ok := asInt(res.Docs[0]["id"])
	if !ok {
		return 0, ewberrors.Newf(ewberrors.ErrCodeInvariantViolation,
			"registry %s holds a non-numeric id %v", r.name, res.Docs[0]["id"])
	}
	return id + 1, nil
}

// Add writes a brand-new registry entry.
func (r *Registry) Add(ctx context.Context, e Entry) error {
	doc := engine.Doc{
		"id":          e.ID,
		"corpus_name": e.CorpusName,
		"fields":      e.Fields,
	}
	if len(e.Models) > 0 {
		doc["models"] = e.Models
	}
	return r.engine.Update(ctx, r.name, []engine.Doc{doc})
}

// Get looks up the entry for a corpus name.
func (r *Registry) Get(ctx context.Context, corpusName string) (*Entry, error) {
	params := url.Values{}
	params.Set("q", "corpus_name:"+corpusName)

	res, err := r.engine.Select(ctx, r.name, params)
	if err != nil {
		return nil, err
	}
	if len(res.Docs) == 0 {
		return nil, ewberrors.New(ewberrors.ErrCodeRegistryEntryGone,
			fmt.Sprintf("corpus %s has no registry entry", corpusName), nil)
	}
	return decodeEntry(res.Docs[0]), nil
}

// AddModel appends a model and its doc-topic field to an entry with
// atomic add operations.
func (r *Registry) AddModel(ctx context.Context, id int, modelName, docTopicsField string) error {
	return r.engine.Update(ctx, r.name, []engine.Doc{{
		"id":     id,
		"fields": map[string]any{"add": docTopicsField},
		"models": map[string]any{"add": modelName},
	}})
}

// RemoveModel removes a model and its doc-topic field from an entry with
// atomic remove operations.
func (r *Registry) RemoveModel(ctx context.Context, id int, modelName, docTopicsField string) error {
	return r.engine.Update(ctx, r.name, []engine.Doc{{
		"id":     id,
		"fields": map[string]any{"remove": docTopicsField},
		"models": map[string]any{"remove": modelName},
	}})
}

// Delete removes an entry by its id.
func (r *Registry) Delete(ctx context.Context, id int) error {
	return r.engine.DeleteByID(ctx, r.name, strconv.Itoa(id))
}

// Corpora lists every registry entry.
func (r *Registry) Corpora(ctx context.Context) ([]Entry, error) {
	count := url.Values{}
	count.Set("q", "*:*")
	count.Set("rows", "0")
	res, err := r.engine.Select(ctx, r.name, count)
	if err != nil {
		return nil, err
	}
	if res.NumFound == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", "*:*")
	params.Set("fl", "id,corpus_name,fields,models")
	params.Set("rows", strconv.FormatInt(res.NumFound, 10))

	res, err = r.engine.Select(ctx, r.name, params)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(res.Docs))
	for _, doc := range res.Docs {
		entries = append(entries, *decodeEntry(doc))
	}
	return entries, nil
}

// Models lists every model known to the registry across all corpora.
func (r *Registry) Models(ctx context.Context) ([]string, error) {
	entries, err := r.Corpora(ctx)
	if err != nil {
		return nil, err
	}
	var models []string
	for _, e := range entries {
		models = append(models, e.Models...)
	}
	return models, nil
}

func decodeEntry(doc engine.Doc) *Entry {
	e := &Entry{
		CorpusName: asString(doc["corpus_name"]),
		Fields:     asStrings(doc["fields"]),
		Models:     asStrings(doc["models"]),
	}
	e.ID, _ = asInt(doc["id"])
	return e
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asStrings flattens a stored field value into a string slice. Engines
// return single-valued fields as bare values and multi-valued ones as
// arrays, so both shapes are accepted.
func asStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
