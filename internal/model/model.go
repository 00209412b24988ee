package model

import (
	"hash/fnv"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/IntelCompH2020/ewbsearch/internal/config"
	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// Stem derives the model name from a model directory path: the lowercased
// final path element.
func Stem(path string) string {
	return strings.ToLower(filepath.Base(filepath.Clean(path)))
}

// Model is a loaded topic model: the doc-topic and topic-word matrices,
// the aligned document-id list, and the per-topic statistics.
type Model struct {
	Name       string
	CorpusName string
	Trainer    string

	thetas *CSR
	betas  *CSR
	ids    []string

	alphas       []float64
	entropy      []float64
	coherence    []float64
	ndocsActive  []int64
	descriptions []string
	labels       []string
	coords       [][]float64
	vocab        []string

	encoder *Encoder
	logger  *slog.Logger
}

// Option configures model loading.
type Option func(*loadOptions)

type loadOptions struct {
	seed    int64
	hasSeed bool
	logger  *slog.Logger
}

// WithSeed fixes the payload tie-break seed. Without it the seed is
// derived from the model name, which is already deterministic per model.
func WithSeed(seed int64) Option {
	return func(o *loadOptions) {
		o.seed = seed
		o.hasSeed = true
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *loadOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Load reads a trained-model directory. The doc-topic matrix rows must
// align one-to-one with the persisted id list; a mismatch means the
// artifacts do not belong together and the model cannot be indexed.
func Load(dir string, cfg *config.Config, opts ...Option) (*Model, error) {
	o := loadOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	tc, err := LoadTrainConfig(dir)
	if err != nil {
		return nil, err
	}

	name := Stem(dir)
	tm := filepath.Join(dir, "TMmodel")

	thetas, err := LoadCSR(filepath.Join(tm, "thetas.npz"))
	if err != nil {
		return nil, err
	}
	betas, err := LoadCSR(filepath.Join(tm, "betas.npz"))
	if err != nil {
		return nil, err
	}
	if betas.NumRows != thetas.NumCols {
		return nil, ewberrors.Newf(ewberrors.ErrCodeMatrixCorrupt,
			"model %s declares %d topics in thetas but %d in betas",
			name, thetas.NumCols, betas.NumRows)
	}

	ids, err := readMalletIDs(filepath.Join(dir, cfg.Mallet.CorpusFile))
	if err != nil {
		return nil, err
	}
	if len(ids) != thetas.NumRows {
		return nil, ewberrors.Newf(ewberrors.ErrCodeRowIDMismatch,
			"model %s has %d doc-topic rows but %d persisted document ids",
			name, thetas.NumRows, len(ids))
	}

	m := &Model{
		Name:       name,
		CorpusName: tc.CorpusName(),
		Trainer:    tc.Trainer,
		thetas:     thetas,
		betas:      betas,
		ids:        ids,
		logger:     o.logger,
	}
	if err := m.loadTopicStats(tm); err != nil {
		return nil, err
	}

	seed := o.seed
	if !o.hasSeed {
		h := fnv.New64a()
		_, _ = h.Write([]byte(name))
		seed = int64(h.Sum64())
	}
	m.encoder = NewEncoder(cfg.Ingest.PayloadScale, seed)

	o.logger.Info("model loaded",
		"model", name,
		"corpus", m.CorpusName,
		"trainer", m.Trainer,
		"topics", m.NumTopics(),
		"documents", thetas.NumRows)
	return m, nil
}

// loadTopicStats reads the optional per-topic statistics artifacts.
func (m *Model) loadTopicStats(tm string) error {
	var err error
	if m.alphas, err = readNpyFloats(filepath.Join(tm, "alphas.npy")); err != nil {
		return err
	}
	if m.entropy, err = readNpyFloats(filepath.Join(tm, "topic_entropy.npy")); err != nil {
		return err
	}
	if m.coherence, err = readNpyFloats(filepath.Join(tm, "topic_coherence.npy")); err != nil {
		return err
	}
	if m.ndocsActive, err = readNpyInts(filepath.Join(tm, "ndocs_active.npy")); err != nil {
		return err
	}
	if m.descriptions, err = readLines(filepath.Join(tm, "tpc_descriptions.txt")); err != nil {
		return err
	}
	if m.labels, err = readLines(filepath.Join(tm, "tpc_labels.txt")); err != nil {
		return err
	}
	if m.vocab, err = readLines(filepath.Join(tm, "vocab.txt")); err != nil {
		return err
	}

	coordLines, err := readLines(filepath.Join(tm, "tpc_coords.txt"))
	if err != nil {
		return err
	}
	m.coords = make([][]float64, len(coordLines))
	for i, line := range coordLines {
		m.coords[i] = parseCoords(line)
	}
	return nil
}

// NumTopics returns the number of topics.
func (m *Model) NumTopics() int {
	return m.thetas.NumCols
}

// NumDocs returns the number of training documents.
func (m *Model) NumDocs() int {
	return m.thetas.NumRows
}

// DocTopicsField is the corpus schema field carrying this model's
// doc-topic payloads.
func (m *Model) DocTopicsField() string {
	return "doctpc_" + m.Name
}

// SimilarityField is the corpus schema field carrying this model's
// precomputed similarity vectors.
func (m *Model) SimilarityField() string {
	return "sim_" + m.Name
}

// EachDocTopics encodes the doc-topic rows one at a time, paired with the
// persisted document ids in matrix order, and hands each (id, payload)
// pair to fn. Only one dense row is alive at a time.
func (m *Model) EachDocTopics(fn func(id, payload string) error) error {
	for row := 0; row < m.thetas.NumRows; row++ {
		payload := m.encoder.EncodeTopics(m.thetas.DenseRow(row))
		if err := fn(m.ids[row], payload); err != nil {
			return err
		}
	}
	return nil
}

// wordToken names vocabulary entry i in a betas payload; models persisted
// without a vocabulary fall back to the bare index.
func (m *Model) wordToken(i int) string {
	if i < len(m.vocab) && m.vocab[i] != "" {
		return m.vocab[i]
	}
	return TopicToken(i)
}

// Topics builds one engine document per topic: the dense t0..tK-1 ids,
// the encoded word payload, and the per-topic statistics.
func (m *Model) Topics() []engine.Doc {
	docs := make([]engine.Doc, m.NumTopics())
	for i := range docs {
		doc := engine.Doc{
			"id":    TopicToken(i),
			"betas": m.encoder.Encode(m.betas.DenseRow(i), m.wordToken),
		}
		if i < len(m.alphas) {
			doc["alphas"] = m.alphas[i]
		}
		if i < len(m.entropy) {
			doc["topic_entropy"] = m.entropy[i]
		}
		if i < len(m.coherence) {
			doc["topic_coherence"] = m.coherence[i]
		}
		if i < len(m.ndocsActive) {
			doc["ndocs_active"] = m.ndocsActive[i]
		}
		if i < len(m.descriptions) {
			doc["tpc_descriptions"] = m.descriptions[i]
		}
		if i < len(m.labels) {
			doc["tpc_labels"] = m.labels[i]
		}
		if i < len(m.coords) && m.coords[i] != nil {
			doc["coords"] = m.coords[i]
		}
		if len(m.vocab) > 0 {
			doc["vocab"] = m.vocab
		}
		docs[i] = doc
	}
	return docs
}
