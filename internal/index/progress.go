package index

// Progress is one ingestion progress report. Done is cumulative for the
// stage, Delta is the size of the batch that just completed, and Total is
// -1 when the number of documents is not known up front.
type Progress struct {
	Stage      string
	Collection string
	Done       int
	Delta      int
	Total      int
}

// ProgressFunc receives progress reports during an ingestion operation.
// Reports arrive from the goroutine running the operation; renderers that
// are not safe for concurrent use must synchronize themselves.
type ProgressFunc func(Progress)

const (
	stageCreateCollection = "create collection"
	stageRegistry         = "update registry"
	stageDocuments        = "index documents"
	stageDocTopics        = "index doc-topic payloads"
	stageTopics           = "index topics"
	stageSchema           = "evolve schema"
	stageClearField       = "clear doc-topic payloads"
	stageDeleteCollection = "delete collection"
)

func (ix *Indexer) report(stage, collection string, done, total int) {
	if ix.progress == nil {
		return
	}
	ix.progress(Progress{Stage: stage, Collection: collection, Done: done, Total: total})
}

func (ix *Indexer) reportBatch(stage, collection string, done, delta, total int) {
	if ix.progress == nil {
		return
	}
	ix.progress(Progress{Stage: stage, Collection: collection, Done: done, Delta: delta, Total: total})
}
