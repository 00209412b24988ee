// Package index orchestrates ingestion: corpus and model collections,
// schema evolution, and the registry bookkeeping that ties them together.
// Every operation is re-runnable; the registry is the authoritative record
// of what exists, and engine collections are always touched before the
// registry entry that names them so a mid-operation failure leaves a
// reconcilable state.
package index

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/IntelCompH2020/ewbsearch/internal/config"
	"github.com/IntelCompH2020/ewbsearch/internal/corpus"
	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
	"github.com/IntelCompH2020/ewbsearch/internal/model"
)

// Indexer runs the ingestion operations against one engine.
type Indexer struct {
	cfg      *config.Config
	engine   *engine.Client
	registry *Registry
	locks    *nameLocks
	logger   *slog.Logger
	progress ProgressFunc
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(ix *Indexer) {
		ix.progress = fn
	}
}

// New creates an Indexer.
func New(client *engine.Client, cfg *config.Config, opts ...Option) *Indexer {
	ix := &Indexer{
		cfg:    cfg,
		engine: client,
		locks:  newNameLocks(cfg.Ingest.LockDir),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.registry = NewRegistry(client, cfg.Registry.Collection, ix.logger)
	return ix
}

// Registry returns the registry client the indexer writes through.
func (ix *Indexer) Registry() *Registry {
	return ix.registry
}

// IndexCorpus ingests a corpus from its dataset manifest: it creates the
// collection, registers the corpus, and streams the documents in batches.
// A collection that already exists means the corpus was ingested before;
// the operation logs and returns success without touching anything.
func (ix *Indexer) IndexCorpus(ctx context.Context, manifestPath string) error {
	name := corpus.Stem(manifestPath)
	release, err := ix.locks.acquire(name)
	if err != nil {
		return err
	}
	defer release()

	ix.report(stageCreateCollection, name, 0, -1)
	if err := ix.engine.CreateCollection(ctx, name); err != nil {
		if ewberrors.IsConflict(err) {
			ix.logger.Warn("corpus collection already exists, skipping ingest",
				"corpus", name)
			return nil
		}
		return err
	}

	existed, err := ix.registry.Ensure(ctx)
	if err != nil {
		return err
	}
	id := 1
	if existed {
		if id, err = ix.registry.NextID(ctx); err != nil {
			return err
		}
	}

	docs, err := corpus.NewLoader(ix.cfg, corpus.WithLogger(ix.logger)).Open(manifestPath)
	if err != nil {
		return err
	}
	defer func() { _ = docs.Close() }()

	ix.report(stageRegistry, ix.registry.Name(), 0, 1)
	entry := Entry{ID: id, CorpusName: name, Fields: docs.Columns()}
	if err := ix.registry.Add(ctx, entry); err != nil {
		return err
	}

	total := int(docs.Count())
	w := ix.newBatchWriter(ctx, name, func(sent, batch int) {
		ix.reportBatch(stageDocuments, name, sent, batch, total)
	})
	for {
		doc, err := docs.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := w.Add(doc); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	ix.logger.Info("corpus indexed",
		"corpus", name, "registry_id", id, "documents", total)
	return nil
}

// DeleteCorpus removes a corpus: its collection, the collections of every
// model trained on it, and finally its registry entry. Collections that
// are already gone are logged and skipped so a half-deleted state never
// wedges the operation.
func (ix *Indexer) DeleteCorpus(ctx context.Context, manifestPath string) error {
	name := corpus.Stem(manifestPath)
	release, err := ix.locks.acquire(name)
	if err != nil {
		return err
	}
	defer release()

	ix.report(stageDeleteCollection, name, 0, -1)
	ix.deleteCollectionIfExists(ctx, name)

	entry, err := ix.registry.Get(ctx, name)
	if err != nil {
		if ewberrors.IsNotFound(err) {
			ix.logger.Warn("corpus has no registry entry, nothing to clean up",
				"corpus", name)
			return nil
		}
		return err
	}

	for _, m := range entry.Models {
		ix.report(stageDeleteCollection, m, 0, -1)
		ix.deleteCollectionIfExists(ctx, m)
	}

	ix.report(stageRegistry, ix.registry.Name(), 0, 1)
	if err := ix.registry.Delete(ctx, entry.ID); err != nil {
		return err
	}

	ix.logger.Info("corpus deleted", "corpus", name, "models", len(entry.Models))
	return nil
}

// IndexModel ingests a trained model: it creates the model collection,
// registers the model on its corpus, evolves the corpus schema with the
// doc-topic and similarity fields, writes the doc-topic payloads into the
// corpus documents, and indexes the per-topic records.
func (ix *Indexer) IndexModel(ctx context.Context, modelPath string) error {
	name := model.Stem(modelPath)
	release, err := ix.locks.acquire(name)
	if err != nil {
		return err
	}
	defer release()

	if err := ix.checkFieldTypes(); err != nil {
		return err
	}

	ix.report(stageCreateCollection, name, 0, -1)
	if err := ix.engine.CreateCollection(ctx, name); err != nil {
		if ewberrors.IsConflict(err) {
			ix.logger.Warn("model collection already exists, skipping ingest",
				"model", name)
			return nil
		}
		return err
	}

	m, err := model.Load(modelPath, ix.cfg, model.WithLogger(ix.logger))
	if err != nil {
		return err
	}

	entry, err := ix.registry.Get(ctx, m.CorpusName)
	if err != nil {
		if ewberrors.IsNotFound(err) {
			return ewberrors.New(ewberrors.ErrCodeNotACorpus,
				fmt.Sprintf("model %s was trained on corpus %s, which is not indexed",
					name, m.CorpusName), err)
		}
		return err
	}

	ix.report(stageRegistry, ix.registry.Name(), 0, 1)
	if err := ix.registry.AddModel(ctx, entry.ID, name, m.DocTopicsField()); err != nil {
		return err
	}

	ix.report(stageSchema, entry.CorpusName, 0, 2)
	doctpc := engine.NewVectorField(m.DocTopicsField(), ix.cfg.Fields.DocTopicsType)
	if err := ix.engine.AddField(ctx, entry.CorpusName, doctpc); err != nil {
		return err
	}
	sim := engine.NewVectorField(m.SimilarityField(), ix.cfg.Fields.SimilarityType)
	if err := ix.engine.AddField(ctx, entry.CorpusName, sim); err != nil {
		return err
	}

	total := m.NumDocs()
	w := ix.newBatchWriter(ctx, entry.CorpusName, func(sent, batch int) {
		ix.reportBatch(stageDocTopics, entry.CorpusName, sent, batch, total)
	})
	field := m.DocTopicsField()
	err = m.EachDocTopics(func(id, payload string) error {
		return w.Add(engine.Doc{
			"id":  id,
			field: map[string]any{"set": payload},
		})
	})
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	topics := m.Topics()
	tw := ix.newBatchWriter(ctx, name, func(sent, batch int) {
		ix.reportBatch(stageTopics, name, sent, batch, len(topics))
	})
	for _, doc := range topics {
		if err := tw.Add(doc); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	ix.logger.Info("model indexed",
		"model", name, "corpus", entry.CorpusName,
		"topics", m.NumTopics(), "documents", total)
	return nil
}

// DeleteModel removes a trained model: it blanks the doc-topic payloads
// on the corpus documents, drops the model's schema fields, detaches the
// model from its registry entry, and deletes the model collection.
func (ix *Indexer) DeleteModel(ctx context.Context, modelPath string) error {
	name := model.Stem(modelPath)
	release, err := ix.locks.acquire(name)
	if err != nil {
		return err
	}
	defer release()

	tc, err := model.LoadTrainConfig(modelPath)
	if err != nil {
		return err
	}

	entry, err := ix.registry.Get(ctx, tc.CorpusName())
	if err != nil {
		if ewberrors.IsNotFound(err) {
			ix.logger.Warn("model's corpus has no registry entry, deleting only the model collection",
				"model", name, "corpus", tc.CorpusName())
			ix.report(stageDeleteCollection, name, 0, -1)
			ix.deleteCollectionIfExists(ctx, name)
			return nil
		}
		return err
	}

	field := "doctpc_" + name
	if err := ix.clearField(ctx, entry.CorpusName, field); err != nil {
		return err
	}

	ix.report(stageSchema, entry.CorpusName, 0, 2)
	if err := ix.engine.DeleteField(ctx, entry.CorpusName, field); err != nil {
		return err
	}
	if err := ix.engine.DeleteField(ctx, entry.CorpusName, "sim_"+name); err != nil {
		return err
	}

	ix.report(stageRegistry, ix.registry.Name(), 0, 1)
	if err := ix.registry.RemoveModel(ctx, entry.ID, name, field); err != nil {
		return err
	}

	ix.report(stageDeleteCollection, name, 0, -1)
	if err := ix.engine.DeleteCollection(ctx, name); err != nil {
		return err
	}

	ix.logger.Info("model deleted", "model", name, "corpus", entry.CorpusName)
	return nil
}

// clearField blanks a field on every document of a collection with atomic
// set operations, so the field can be dropped from the schema afterwards.
func (ix *Indexer) clearField(ctx context.Context, collection, field string) error {
	ids, err := ix.allIDs(ctx, collection)
	if err != nil {
		return err
	}

	total := len(ids)
	w := ix.newBatchWriter(ctx, collection, func(sent, batch int) {
		ix.reportBatch(stageClearField, collection, sent, batch, total)
	})
	for _, id := range ids {
		err := w.Add(engine.Doc{
			"id":  id,
			field: map[string]any{"set": []any{}},
		})
		if err != nil {
			return err
		}
	}
	return w.Flush()
}

// allIDs fetches every document id of a collection: a count first, then
// one select sized to the count.
func (ix *Indexer) allIDs(ctx context.Context, collection string) ([]string, error) {
	count := url.Values{}
	count.Set("q", "*:*")
	count.Set("rows", "0")
	res, err := ix.engine.Select(ctx, collection, count)
	if err != nil {
		return nil, err
	}
	if res.NumFound == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", "*:*")
	params.Set("fl", "id")
	params.Set("rows", strconv.FormatInt(res.NumFound, 10))
	res, err = ix.engine.Select(ctx, collection, params)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(res.Docs))
	for _, doc := range res.Docs {
		switch id := doc["id"].(type) {
		case string:
			ids = append(ids, id)
		default:
			ids = append(ids, fmt.Sprintf("%v", id))
		}
	}
	return ids, nil
}

// deleteCollectionIfExists deletes a collection, logging instead of
// failing when it is already gone or the engine rejects the delete.
func (ix *Indexer) deleteCollectionIfExists(ctx context.Context, name string) {
	exists, err := ix.engine.CollectionExists(ctx, name)
	if err == nil && !exists {
		ix.logger.Warn("collection already gone", "collection", name)
		return
	}
	if err := ix.engine.DeleteCollection(ctx, name); err != nil {
		ix.logger.Warn("failed to delete collection, continuing",
			"collection", name, "error", err)
	}
}

func (ix *Indexer) checkFieldTypes() error {
	if ix.cfg.Fields.DocTopicsType == "" {
		return ewberrors.Newf(ewberrors.ErrCodeFieldTypeAbsent,
			"no field type configured for doc-topic payloads (fields.doc_topics_type)")
	}
	if ix.cfg.Fields.SimilarityType == "" {
		return ewberrors.Newf(ewberrors.ErrCodeFieldTypeAbsent,
			"no field type configured for similarity vectors (fields.similarity_type)")
	}
	return nil
}
