package index

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/IntelCompH2020/ewbsearch/internal/engine"
)

// batchWriter streams documents to one collection in fixed-size batches.
// Batches may be pipelined up to the configured parallelism; Flush blocks
// until every in-flight batch has completed, so callers get the strict
// step ordering the ingestion pipeline promises.
type batchWriter struct {
	engine     *engine.Client
	collection string
	size       int

	g   *errgroup.Group
	ctx context.Context

	pending []engine.Doc
	sent    int
	onBatch func(sent, batch int)
}

func (ix *Indexer) newBatchWriter(ctx context.Context, collection string, onBatch func(sent, batch int)) *batchWriter {
	g, gctx := errgroup.WithContext(ctx)
	parallel := ix.cfg.Ingest.ParallelBatches
	if parallel < 1 {
		parallel = 1
	}
	g.SetLimit(parallel)

	size := ix.cfg.Ingest.BatchSize
	if size < 1 {
		size = 1
	}
	return &batchWriter{
		engine:     ix.engine,
		collection: collection,
		size:       size,
		g:          g,
		ctx:        gctx,
		onBatch:    onBatch,
	}
}

// Add buffers one document, dispatching a batch when the buffer is full.
func (w *batchWriter) Add(doc engine.Doc) error {
	w.pending = append(w.pending, doc)
	if len(w.pending) < w.size {
		return nil
	}
	return w.dispatch()
}

// Flush dispatches the remaining documents and waits for every batch.
func (w *batchWriter) Flush() error {
	if err := w.dispatch(); err != nil {
		return err
	}
	return w.g.Wait()
}

func (w *batchWriter) dispatch() error {
	if len(w.pending) == 0 {
		return nil
	}
	batch := w.pending
	w.pending = nil
	w.sent += len(batch)
	sent := w.sent

	w.g.Go(func() error {
		if err := w.engine.Update(w.ctx, w.collection, batch); err != nil {
			return err
		}
		if w.onBatch != nil {
			w.onBatch(sent, len(batch))
		}
		return nil
	})
	// Dispatch never blocks on batch completion, but a batch that already
	// failed should stop the producer early.
	select {
	case <-w.ctx.Done():
		return w.g.Wait()
	default:
		return nil
	}
}
