package query

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/IntelCompH2020/ewbsearch/internal/config"
	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
	"github.com/IntelCompH2020/ewbsearch/internal/index"
)

// Request carries the caller-facing parameters of one catalogue query.
// Which fields matter depends on the query id; Execute validates the ones
// it needs and ignores the rest.
type Request struct {
	ID        string // q1..q15, case-insensitive
	Corpus    string
	Model     string
	DocID     string
	Topic     string
	Threshold string
	Field     string // Q7 search field, defaults to title
	Text      string // Q7 search string
	Payload   string // Q14 caller-encoded doc-topic vector

	Start string
	Rows  string

	// ResultsFile persists the doc list after the query. A bare file name
	// goes under the configured results directory; empty plus Persist
	// derives a default name.
	ResultsFile string
	Persist     bool
}

// Result is the outcome of one catalogue query.
type Result struct {
	ID       string       `json:"id"`
	NumFound int64        `json:"num_found"`
	Docs     []engine.Doc `json:"docs,omitempty"`
	Fields   []string     `json:"fields,omitempty"` // Q2 only
	File     string       `json:"file,omitempty"`
}

// Executor validates preconditions against the registry, paginates, runs
// catalogue queries, and post-processes scores. It holds no mutable
// state; one executor serves all request workers.
type Executor struct {
	engine   *engine.Client
	registry *index.Registry
	cfg      *config.Config
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Executor.
func New(client *engine.Client, registry *index.Registry, cfg *config.Config, opts ...Option) *Executor {
	e := &Executor{
		engine:   client,
		registry: registry,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PayloadScale returns the configured sum S of a document's topic weights.
func (e *Executor) PayloadScale() int {
	return e.cfg.Ingest.PayloadScale
}

// Execute dispatches one catalogue query by id.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	id := strings.ToLower(strings.TrimSpace(req.ID))
	req.ID = id

	var (
		res *Result
		err error
	)
	switch id {
	case "q1":
		res, err = e.q1(ctx, req)
	case "q2":
		res, err = e.q2(ctx, req)
	case "q3":
		res, err = e.q3(ctx, req)
	case "q4":
		res, err = e.q4(ctx, req)
	case "q5":
		res, err = e.q5(ctx, req)
	case "q6":
		res, err = e.q6(ctx, req)
	case "q7":
		res, err = e.q7(ctx, req)
	case "q8":
		res, err = e.q8(ctx, req)
	case "q9":
		res, err = e.q9(ctx, req)
	case "q10":
		res, err = e.q10(ctx, req)
	case "q11":
		res, err = e.q11(ctx, req)
	case "q12":
		res, err = e.q12(ctx, req)
	case "q13":
		return nil, ewberrors.Newf(ewberrors.ErrCodeUnknownQuery,
			"query q13 is a reserved slot with no defined template")
	case "q14":
		res, err = e.q14(ctx, req)
	case "q15":
		res, err = e.q15(ctx, req)
	default:
		return nil, ewberrors.Newf(ewberrors.ErrCodeUnknownQuery,
			"unknown query id %q", req.ID)
	}
	if err != nil {
		return nil, err
	}

	if req.ResultsFile != "" || req.Persist {
		file, err := e.persistResults(req, res.Docs)
		if err != nil {
			return nil, err
		}
		res.File = file
	}
	return res, nil
}

// q1 fetches the doc-topic payload of one document.
func (e *Executor) q1(ctx context.Context, req Request) (*Result, error) {
	if _, err := e.corpusWithModel(ctx, req.Corpus, req.Model); err != nil {
		return nil, err
	}
	params, err := customize("q1", req.DocID, req.Model)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, req, req.Corpus, params, false)
}

// q2 lists the metadata field names of a corpus: the registry fields
// minus the denylist and every doc-topic field.
func (e *Executor) q2(ctx context.Context, req Request) (*Result, error) {
	entry, err := e.corpusEntry(ctx, req.Corpus)
	if err != nil {
		return nil, err
	}
	return &Result{ID: req.ID, Fields: e.metadataFields(entry)}, nil
}

// q3 counts the documents of a collection, corpus or model.
func (e *Executor) q3(ctx context.Context, req Request) (*Result, error) {
	collection := req.Corpus
	if collection == "" {
		collection = req.Model
	}
	if collection == "" {
		return nil, ewberrors.Newf(ewberrors.ErrCodeMissingParameter,
			"no collection named")
	}
	n, err := e.count(ctx, collection)
	if err != nil {
		return nil, err
	}
	return &Result{ID: req.ID, NumFound: n}, nil
}

// q4 finds documents whose weight on one topic is at least a threshold.
func (e *Executor) q4(ctx context.Context, req Request) (*Result, error) {
	if _, err := e.corpusWithModel(ctx, req.Corpus, req.Model); err != nil {
		return nil, err
	}
	params, err := customize("q4", req.Model, req.Threshold, req.Topic, req.Model)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, req, req.Corpus, params, false)
}

// q5 finds documents similar to one document: its payload is fetched
// first, then matched against the whole corpus.
func (e *Executor) q5(ctx context.Context, req Request) (*Result, error) {
	if _, err := e.corpusWithModel(ctx, req.Corpus, req.Model); err != nil {
		return nil, err
	}
	payload, err := e.docTopicPayload(ctx, req.Corpus, req.Model, req.DocID)
	if err != nil {
		return nil, err
	}
	params, err := customize("q5", req.Model, payload)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, req, req.Corpus, params, true)
}

// q6 fetches the metadata of one document, using the q2 field list.
func (e *Executor) q6(ctx context.Context, req Request) (*Result, error) {
	entry, err := e.corpusEntry(ctx, req.Corpus)
	if err != nil {
		return nil, err
	}
	fields := e.metadataFields(entry)
	params, err := customize("q6", req.DocID, strings.Join(fields, ","))
	if err != nil {
		return nil, err
	}
	return e.run(ctx, req, req.Corpus, params, false)
}

// q7 matches a string against one metadata field, title by default.
func (e *Executor) q7(ctx context.Context, req Request) (*Result, error) {
	if _, err := e.corpusEntry(ctx, req.Corpus); err != nil {
		return nil, err
	}
	field := req.Field
	if field == "" {
		field = "title"
	}
	params, err := customize("q7", field, req.Text)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, req, req.Corpus, params, false)
}

// q8 lists the topic labels of a model.
func (e *Executor) q8(ctx context.Context, req Request) (*Result, error) {
	if err := e.checkIsModel(ctx, req.Model); err != nil {
		return nil, err
	}
	params, err := customize("q8")
	if err != nil {
		return nil, err
	}
	return e.run(ctx, req, req.Model, params, false)
}

// q9 lists the documents where a topic appears, heaviest first.
func (e *Executor) q9(ctx context.Context, req Request) (*Result, error) {
	if _, err := e.corpusWithModel(ctx, req.Corpus, req.Model); err != nil {
		return nil, err
	}
	params, err := customize("q9", req.Model, req.Topic, req.Model)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, req, req.Corpus, params, false)
}

// q10 returns the full per-topic information of a model.
func (e *Executor) q10(ctx context.Context, req Request) (*Result, error) {
	if err := e.checkIsModel(ctx, req.Model); err != nil {
		return nil, err
	}
	params, err := customize("q10")
	if err != nil {
		return nil, err
	}
	return e.run(ctx, req, req.Model, params, false)
}

// q11 fetches the word payload of one topic.
func (e *Executor) q11(ctx context.Context, req Request) (*Result, error) {
	if err := e.checkIsModel(ctx, req.Model); err != nil {
		return nil, err
	}
	params, err := customize("q11", req.Topic)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, req, req.Model, params, false)
}

// q12 finds the topics most correlated with one topic: its betas payload
// is fetched first, then matched against the whole model.
func (e *Executor) q12(ctx context.Context, req Request) (*Result, error) {
	if err := e.checkIsModel(ctx, req.Model); err != nil {
		return nil, err
	}
	payload, err := e.betasPayload(ctx, req.Model, req.Topic)
	if err != nil {
		return nil, err
	}
	params, err := customize("q12", payload)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, req, req.Model, params, true)
}

// q14 finds documents similar to a caller-encoded doc-topic vector.
func (e *Executor) q14(ctx context.Context, req Request) (*Result, error) {
	if _, err := e.corpusWithModel(ctx, req.Corpus, req.Model); err != nil {
		return nil, err
	}
	if req.Payload == "" {
		return nil, ewberrors.Newf(ewberrors.ErrCodeMissingParameter,
			"query q14 needs an encoded doc-topic payload")
	}
	params, err := customize("q14", req.Model, req.Payload)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, req, req.Corpus, params, true)
}

// q15 fetches the lemmas of one document.
func (e *Executor) q15(ctx context.Context, req Request) (*Result, error) {
	if _, err := e.corpusEntry(ctx, req.Corpus); err != nil {
		return nil, err
	}
	params, err := customize("q15", req.DocID)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, req, req.Corpus, params, false)
}

// run applies pagination, executes the select, and scales scores for the
// similarity queries.
func (e *Executor) run(ctx context.Context, req Request, collection string, params url.Values, scored bool) (*Result, error) {
	if err := e.paginate(ctx, collection, req, params); err != nil {
		return nil, err
	}

	res, err := e.engine.Select(ctx, collection, params)
	if err != nil {
		return nil, err
	}
	if scored {
		e.scaleScores(res.Docs)
	}

	e.logger.Debug("catalogue query executed",
		"query", req.ID, "collection", collection, "hits", res.NumFound)
	return &Result{ID: req.ID, NumFound: res.NumFound, Docs: res.Docs}, nil
}

// paginate fills start and rows. start defaults to 0; a missing rows
// means "all documents" and is resolved with a count against the target
// collection. Both travel as strings.
func (e *Executor) paginate(ctx context.Context, collection string, req Request, params url.Values) error {
	if params.Get("rows") != "" {
		// The template pinned rows (q3); pagination does not apply.
		return nil
	}

	start := req.Start
	if start == "" {
		start = "0"
	}
	params.Set("start", start)

	rows := req.Rows
	if rows == "" {
		n, err := e.count(ctx, collection)
		if err != nil {
			return err
		}
		rows = strconv.FormatInt(n, 10)
	}
	params.Set("rows", rows)
	return nil
}

func (e *Executor) count(ctx context.Context, collection string) (int64, error) {
	params, err := customize("q3")
	if err != nil {
		return 0, err
	}
	res, err := e.engine.Select(ctx, collection, params)
	if err != nil {
		return 0, err
	}
	return res.NumFound, nil
}

// scaleScores turns raw dot products of scale-S payload vectors into
// percentages in [0, 100].
func (e *Executor) scaleScores(docs []engine.Doc) {
	s := float64(e.cfg.Ingest.PayloadScale)
	factor := 100 / (s * s)
	for _, doc := range docs {
		if score, ok := doc["score"].(float64); ok {
			doc["score"] = score * factor
		}
	}
}

// docTopicPayload runs q1 and extracts the payload for q5.
func (e *Executor) docTopicPayload(ctx context.Context, corpus, model, docID string) (string, error) {
	params, err := customize("q1", docID, model)
	if err != nil {
		return "", err
	}
	res, err := e.engine.Select(ctx, corpus, params)
	if err != nil {
		return "", err
	}
	if len(res.Docs) == 0 {
		return "", ewberrors.Newf(ewberrors.ErrCodeDocumentNotFound,
			"document %s is not in corpus %s", docID, corpus)
	}
	payload, _ := res.Docs[0]["doctpc_"+model].(string)
	if payload == "" {
		return "", ewberrors.Newf(ewberrors.ErrCodeDocumentNotFound,
			"document %s has no doc-topic payload for model %s", docID, model)
	}
	return payload, nil
}

// betasPayload runs q11 and extracts the payload for q12.
func (e *Executor) betasPayload(ctx context.Context, model, topic string) (string, error) {
	params, err := customize("q11", topic)
	if err != nil {
		return "", err
	}
	res, err := e.engine.Select(ctx, model, params)
	if err != nil {
		return "", err
	}
	if len(res.Docs) == 0 {
		return "", ewberrors.Newf(ewberrors.ErrCodeDocumentNotFound,
			"topic t%s is not in model %s", topic, model)
	}
	payload, _ := res.Docs[0]["betas"].(string)
	if payload == "" {
		return "", ewberrors.Newf(ewberrors.ErrCodeDocumentNotFound,
			"topic t%s of model %s has no betas payload", topic, model)
	}
	return payload, nil
}

// corpusEntry checks the collection is a registered corpus and returns
// its registry entry.
func (e *Executor) corpusEntry(ctx context.Context, corpus string) (*index.Entry, error) {
	if corpus == "" {
		return nil, ewberrors.Newf(ewberrors.ErrCodeMissingParameter,
			"no corpus collection named")
	}
	entry, err := e.registry.Get(ctx, corpus)
	if err != nil {
		if ewberrors.IsNotFound(err) {
			return nil, ewberrors.New(ewberrors.ErrCodeNotACorpus,
				fmt.Sprintf("collection %s is not a registered corpus", corpus), err)
		}
		return nil, err
	}
	return entry, nil
}

// corpusWithModel additionally checks the corpus carries the model's
// doc-topic field.
func (e *Executor) corpusWithModel(ctx context.Context, corpus, model string) (*index.Entry, error) {
	entry, err := e.corpusEntry(ctx, corpus)
	if err != nil {
		return nil, err
	}
	field := "doctpc_" + model
	for _, f := range entry.Fields {
		if f == field {
			return entry, nil
		}
	}
	return nil, ewberrors.Newf(ewberrors.ErrCodeModelFieldAbsent,
		"corpus %s has no model %s", corpus, model)
}

// checkIsModel checks the collection is a model known to the registry.
func (e *Executor) checkIsModel(ctx context.Context, model string) error {
	if model == "" {
		return ewberrors.Newf(ewberrors.ErrCodeMissingParameter,
			"no model collection named")
	}
	models, err := e.registry.Models(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		if m == model {
			return nil
		}
	}
	return ewberrors.Newf(ewberrors.ErrCodeNotAModel,
		"collection %s is not a registered model", model)
}

// metadataFields filters a registry field list down to caller-visible
// metadata: the denylist and every doc-topic field are dropped.
func (e *Executor) metadataFields(entry *index.Entry) []string {
	denied := make(map[string]bool, len(e.cfg.Query.DenylistFields))
	for _, f := range e.cfg.Query.DenylistFields {
		denied[f] = true
	}

	var fields []string
	for _, f := range entry.Fields {
		if denied[f] || strings.HasPrefix(f, "doctpc_") {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}
