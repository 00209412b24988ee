// Package mcptool exposes the read-only query catalogue over the Model
// Context Protocol so AI clients can browse corpora, models and topics.
// Ingestion stays on the HTTP surface; none of it is reachable here.
package mcptool

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	"github.com/IntelCompH2020/ewbsearch/internal/index"
	"github.com/IntelCompH2020/ewbsearch/internal/query"
	"github.com/IntelCompH2020/ewbsearch/pkg/version"
)

// Server bridges MCP tool calls to the registry and the query executor.
type Server struct {
	registry *index.Registry
	executor *query.Executor
	logger   *slog.Logger
	mcp      *mcp.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds an MCP server around the registry and executor and
// registers the tool set.
func New(registry *index.Registry, executor *query.Executor, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		executor: executor,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "ewbsearch",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_corpora",
		Description: "List the indexed corpora with their identifiers and the topic models trained on each. Use this first to discover which corpus and model names the other tools accept.",
	}, s.listCorporaHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_models",
		Description: "List the names of all indexed topic models across every corpus.",
	}, s.listModelsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "doc_topics",
		Description: docTopicsDescription(s.executor.PayloadScale()),
	}, s.docTopicsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "similar_docs",
		Description: "Find the documents most similar to a given document under one model, ranked by topic-distribution similarity. Scores are percentages; a document matches itself at 100.",
	}, s.similarDocsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "topic_info",
		Description: "Return the full description of every topic of a model: word payload, size, entropy, coherence, labels and document counts.",
	}, s.topicInfoHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "topic_labels",
		Description: "List the human-readable labels of a model's topics, keyed by topic id.",
	}, s.topicLabelsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_by_field",
		Description: "Exact-match a string against one metadata field of a corpus, title by default, and return matching document ids.",
	}, s.searchByFieldHandler)

	s.logger.Debug("mcp tools registered", "count", 7)
}

// docTopicsDescription names the configured payload scale so clients know
// what the weights add up to.
func docTopicsDescription(scale int) string {
	return fmt.Sprintf("Fetch the topic distribution of one document under one model, "+
		"as a weighted payload string like 't0|340 t3|660'. Weights sum to %d.", scale)
}

// CorpusInfo is one registry entry as shown to MCP clients.
type CorpusInfo struct {
	ID     int      `json:"id"`
	Name   string   `json:"name"`
	Models []string `json:"models,omitempty"`
}

// ListCorporaInput defines the input schema for list_corpora (none).
type ListCorporaInput struct{}

// ListCorporaOutput defines the output schema for list_corpora.
type ListCorporaOutput struct {
	Corpora []CorpusInfo `json:"corpora"`
}

func (s *Server) listCorporaHandler(ctx context.Context, req *mcp.CallToolRequest, input ListCorporaInput) (
	*mcp.CallToolResult,
	ListCorporaOutput,
	error,
) {
	entries, err := s.registry.Corpora(ctx)
	if err != nil {
		return nil, ListCorporaOutput{}, err
	}
	out := ListCorporaOutput{Corpora: make([]CorpusInfo, 0, len(entries))}
	for _, e := range entries {
		out.Corpora = append(out.Corpora, CorpusInfo{
			ID:     e.ID,
			Name:   e.CorpusName,
			Models: e.Models,
		})
	}
	return nil, out, nil
}

// ListModelsInput defines the input schema for list_models (none).
type ListModelsInput struct{}

// ListModelsOutput defines the output schema for list_models.
type ListModelsOutput struct {
	Models []string `json:"models"`
}

func (s *Server) listModelsHandler(ctx context.Context, req *mcp.CallToolRequest, input ListModelsInput) (
	*mcp.CallToolResult,
	ListModelsOutput,
	error,
) {
	models, err := s.registry.Models(ctx)
	if err != nil {
		return nil, ListModelsOutput{}, err
	}
	if models == nil {
		models = []string{}
	}
	return nil, ListModelsOutput{Models: models}, nil
}

// DocTopicsInput defines the input schema for doc_topics.
type DocTopicsInput struct {
	Corpus string `json:"corpus" jsonschema:"the corpus collection name"`
	Model  string `json:"model" jsonschema:"the topic model name"`
	DocID  string `json:"doc_id" jsonschema:"the document id within the corpus"`
}

// DocTopicsOutput defines the output schema for doc_topics.
type DocTopicsOutput struct {
	DocID        string `json:"doc_id"`
	Distribution string `json:"distribution"`
}

func (s *Server) docTopicsHandler(ctx context.Context, req *mcp.CallToolRequest, input DocTopicsInput) (
	*mcp.CallToolResult,
	DocTopicsOutput,
	error,
) {
	res, err := s.executor.Execute(ctx, query.Request{
		ID:     "q1",
		Corpus: input.Corpus,
		Model:  input.Model,
		DocID:  input.DocID,
	})
	if err != nil {
		return nil, DocTopicsOutput{}, err
	}
	out := DocTopicsOutput{DocID: input.DocID}
	if len(res.Docs) > 0 {
		out.Distribution, _ = res.Docs[0]["doctpc_"+input.Model].(string)
	}
	return nil, out, nil
}

// SimilarDocsInput defines the input schema for similar_docs.
type SimilarDocsInput struct {
	Corpus string `json:"corpus" jsonschema:"the corpus collection name"`
	Model  string `json:"model" jsonschema:"the topic model name"`
	DocID  string `json:"doc_id" jsonschema:"the reference document id"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SimilarDocsOutput defines the output schema for similar_docs.
type SimilarDocsOutput struct {
	NumFound int64        `json:"num_found"`
	Docs     []engine.Doc `json:"docs"`
}

func (s *Server) similarDocsHandler(ctx context.Context, req *mcp.CallToolRequest, input SimilarDocsInput) (
	*mcp.CallToolResult,
	SimilarDocsOutput,
	error,
) {
	r := query.Request{
		ID:     "q5",
		Corpus: input.Corpus,
		Model:  input.Model,
		DocID:  input.DocID,
	}
	if input.Limit > 0 {
		r.Rows = strconv.Itoa(input.Limit)
	}
	res, err := s.executor.Execute(ctx, r)
	if err != nil {
		return nil, SimilarDocsOutput{}, err
	}
	return nil, SimilarDocsOutput{NumFound: res.NumFound, Docs: res.Docs}, nil
}

// TopicInfoInput defines the input schema for topic_info.
type TopicInfoInput struct {
	Model string `json:"model" jsonschema:"the topic model name"`
}

// TopicInfoOutput defines the output schema for topic_info.
type TopicInfoOutput struct {
	NumFound int64        `json:"num_found"`
	Topics   []engine.Doc `json:"topics"`
}

func (s *Server) topicInfoHandler(ctx context.Context, req *mcp.CallToolRequest, input TopicInfoInput) (
	*mcp.CallToolResult,
	TopicInfoOutput,
	error,
) {
	res, err := s.executor.Execute(ctx, query.Request{ID: "q10", Model: input.Model})
	if err != nil {
		return nil, TopicInfoOutput{}, err
	}
	return nil, TopicInfoOutput{NumFound: res.NumFound, Topics: res.Docs}, nil
}

// TopicLabelsInput defines the input schema for topic_labels.
type TopicLabelsInput struct {
	Model string `json:"model" jsonschema:"the topic model name"`
}

// TopicLabelsOutput defines the output schema for topic_labels.
type TopicLabelsOutput struct {
	Labels map[string]string `json:"labels"`
}

func (s *Server) topicLabelsHandler(ctx context.Context, req *mcp.CallToolRequest, input TopicLabelsInput) (
	*mcp.CallToolResult,
	TopicLabelsOutput,
	error,
) {
	res, err := s.executor.Execute(ctx, query.Request{ID: "q8", Model: input.Model})
	if err != nil {
		return nil, TopicLabelsOutput{}, err
	}
	out := TopicLabelsOutput{Labels: make(map[string]string, len(res.Docs))}
	for _, doc := range res.Docs {
		id, _ := doc["id"].(string)
		label, _ := doc["tpc_labels"].(string)
		if id != "" {
			out.Labels[id] = label
		}
	}
	return nil, out, nil
}

// SearchByFieldInput defines the input schema for search_by_field.
type SearchByFieldInput struct {
	Corpus string `json:"corpus" jsonschema:"the corpus collection name"`
	Field  string `json:"field,omitempty" jsonschema:"the metadata field to match, default title"`
	Text   string `json:"text" jsonschema:"the exact string to match"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SearchByFieldOutput defines the output schema for search_by_field.
type SearchByFieldOutput struct {
	NumFound int64    `json:"num_found"`
	IDs      []string `json:"ids"`
}

func (s *Server) searchByFieldHandler(ctx context.Context, req *mcp.CallToolRequest, input SearchByFieldInput) (
	*mcp.CallToolResult,
	SearchByFieldOutput,
	error,
) {
	r := query.Request{
		ID:     "q7",
		Corpus: input.Corpus,
		Field:  input.Field,
		Text:   input.Text,
	}
	if input.Limit > 0 {
		r.Rows = strconv.Itoa(input.Limit)
	}
	res, err := s.executor.Execute(ctx, r)
	if err != nil {
		return nil, SearchByFieldOutput{}, err
	}
	out := SearchByFieldOutput{NumFound: res.NumFound, IDs: make([]string, 0, len(res.Docs))}
	for _, doc := range res.Docs {
		if id, ok := doc["id"].(string); ok {
			out.IDs = append(out.IDs, id)
		}
	}
	return nil, out, nil
}
