package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IntelCompH2020/ewbsearch/internal/config"
	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// writeModelDir lays out a trained mallet model: the training manifest,
// the corpus file with one record per document, and the TMmodel artifacts.
func writeModelDir(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	tm := filepath.Join(dir, "TMmodel")
	require.NoError(t, os.MkdirAll(tm, 0o755))

	writeTrainConfig(t, dir, `{
		"name": "`+name+`",
		"TrDtSet": "/data/datasets/Cordis.json",
		"trainer": "mallet"
	}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus.txt"), []byte(
		"doc1 0 climate change dynamics\n"+
			"doc2 0 energy grid\n"), 0o644))

	// thetas: [[0.5 0.5 0.0] [0.0 0.2 0.8]]
	writeCSRFixture(t, filepath.Join(tm, "thetas.npz"))
	// betas: [[0.5 0.5] [1.0 0.0] [0.25 0.75]]
	writeNpz(t, filepath.Join(tm, "betas.npz"), map[string]any{
		"indptr.npy":  []int64{0, 2, 3, 5},
		"indices.npy": []int64{0, 1, 0, 0, 1},
		"data.npy":    []float64{0.5, 0.5, 1, 0.25, 0.75},
		"shape.npy":   []int64{3, 2},
	})

	writeNpy(t, filepath.Join(tm, "alphas.npy"), []float64{0.1, 0.2, 0.7})
	writeNpy(t, filepath.Join(tm, "topic_entropy.npy"), []float64{1.5, 0.9, 1.1})
	writeNpy(t, filepath.Join(tm, "topic_coherence.npy"), []float64{0.4, 0.6, 0.5})
	writeNpy(t, filepath.Join(tm, "ndocs_active.npy"), []int64{2, 1, 1})
	writeText(t, filepath.Join(tm, "tpc_descriptions.txt"),
		"climate, change\nenergy\nclimate, energy\n")
	writeText(t, filepath.Join(tm, "tpc_labels.txt"), "Climate\nEnergy\nMixed\n")
	writeText(t, filepath.Join(tm, "vocab.txt"), "climate\nenergy\n")
	writeText(t, filepath.Join(tm, "tpc_coords.txt"),
		"(0.1, 0.2)\n(-0.3, 0.4)\n(0.5, -0.6)\n")
	return dir
}

func writeNpy(t *testing.T, path string, v any) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, npyio.Write(f, v))
	require.NoError(t, f.Close())
}

func writeText(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestStem(t *testing.T) {
	assert.Equal(t, "mallet-25", Stem("/models/Mallet-25"))
	assert.Equal(t, "mallet-25", Stem("/models/Mallet-25/"))
}

func TestLoad(t *testing.T) {
	dir := writeModelDir(t, "Mallet-3")

	m, err := Load(dir, config.NewConfig(), WithSeed(1))
	require.NoError(t, err)

	assert.Equal(t, "mallet-3", m.Name)
	assert.Equal(t, "cordis", m.CorpusName)
	assert.Equal(t, TrainerMallet, m.Trainer)
	assert.Equal(t, 3, m.NumTopics())
	assert.Equal(t, 2, m.NumDocs())
	assert.Equal(t, "doctpc_mallet-3", m.DocTopicsField())
	assert.Equal(t, "sim_mallet-3", m.SimilarityField())
}

func TestEachDocTopics(t *testing.T) {
	dir := writeModelDir(t, "Mallet-3")
	m, err := Load(dir, config.NewConfig(), WithSeed(1))
	require.NoError(t, err)

	var ids, payloads []string
	err = m.EachDocTopics(func(id, payload string) error {
		ids = append(ids, id)
		payloads = append(payloads, payload)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"doc1", "doc2"}, ids)
	assert.Equal(t, "t0|500 t1|500", payloads[0])
	assert.Equal(t, "t1|200 t2|800", payloads[1])
}

func TestTopics(t *testing.T) {
	dir := writeModelDir(t, "Mallet-3")
	m, err := Load(dir, config.NewConfig(), WithSeed(1))
	require.NoError(t, err)

	docs := m.Topics()
	require.Len(t, docs, 3)

	assert.Equal(t, "t0", docs[0]["id"])
	assert.Equal(t, "climate|500 energy|500", docs[0]["betas"])
	assert.Equal(t, "climate|1000", docs[1]["betas"])
	assert.Equal(t, "climate|250 energy|750", docs[2]["betas"])

	assert.Equal(t, 0.2, docs[1]["alphas"])
	assert.Equal(t, int64(1), docs[1]["ndocs_active"])
	assert.Equal(t, "Energy", docs[1]["tpc_labels"])
	assert.Equal(t, "energy", docs[1]["tpc_descriptions"])
	assert.Equal(t, []float64{-0.3, 0.4}, docs[1]["coords"])
	assert.Equal(t, []string{"climate", "energy"}, docs[1]["vocab"])
}

func TestTopicsWithoutOptionalStats(t *testing.T) {
	dir := writeModelDir(t, "Mallet-3")
	tm := filepath.Join(dir, "TMmodel")
	for _, name := range []string{
		"alphas.npy", "topic_entropy.npy", "topic_coherence.npy",
		"ndocs_active.npy", "tpc_descriptions.txt", "tpc_labels.txt",
		"vocab.txt", "tpc_coords.txt",
	} {
		require.NoError(t, os.Remove(filepath.Join(tm, name)))
	}

	m, err := Load(dir, config.NewConfig(), WithSeed(1))
	require.NoError(t, err)

	docs := m.Topics()
	require.Len(t, docs, 3)
	// Without a vocabulary the word payload falls back to bare indices.
	assert.Equal(t, "t0|500 t1|500", docs[0]["betas"])
	assert.NotContains(t, docs[0], "alphas")
	assert.NotContains(t, docs[0], "vocab")
	assert.NotContains(t, docs[0], "coords")
}

func TestLoadRowIDMismatch(t *testing.T) {
	dir := writeModelDir(t, "Mallet-3")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus.txt"), []byte(
		"doc1 0 a\ndoc2 0 b\ndoc3 0 c\n"), 0o644))

	_, err := Load(dir, config.NewConfig())
	require.Error(t, err)
	assert.Equal(t, ewberrors.ErrCodeRowIDMismatch, ewberrors.GetCode(err))
}

func TestLoadTopicCountMismatch(t *testing.T) {
	dir := writeModelDir(t, "Mallet-3")
	// Four betas rows against three thetas columns.
	writeNpz(t, filepath.Join(dir, "TMmodel", "betas.npz"), map[string]any{
		"indptr.npy":  []int64{0, 1, 2, 3, 4},
		"indices.npy": []int64{0, 1, 0, 1},
		"data.npy":    []float64{1, 1, 1, 1},
		"shape.npy":   []int64{4, 2},
	})

	_, err := Load(dir, config.NewConfig())
	require.Error(t, err)
	assert.Equal(t, ewberrors.ErrCodeMatrixCorrupt, ewberrors.GetCode(err))
}

func TestParseCoords(t *testing.T) {
	assert.Equal(t, []float64{0.12, -0.3}, parseCoords("(0.12, -0.3)"))
	assert.Equal(t, []float64{1, 2}, parseCoords("[1, 2]"))
	assert.Nil(t, parseCoords("not coordinates"))
	assert.Nil(t, parseCoords(""))
}
