package index

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/require"

	"github.com/IntelCompH2020/ewbsearch/internal/config"
)

// projectRow is the parquet fixture schema for a cordis-like corpus.
type projectRow struct {
	ProjectID string `parquet:"projectID"`
	Objective string `parquet:"objective"`
	Lemmas    string `parquet:"lemmas"`
}

// writeCorpusFixture lays out a two-document cordis corpus and returns
// the manifest path. The manifest stem is Cordis, so the corpus name is
// cordis.
func writeCorpusFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	parquetPath := filepath.Join(dir, "cordis.parquet")
	f, err := os.Create(parquetPath)
	require.NoError(t, err)
	w := parquet.NewGenericWriter[projectRow](f)
	_, err = w.Write([]projectRow{
		{ProjectID: "p-001", Objective: "Topic modeling at scale", Lemmas: "topic model scale"},
		{ProjectID: "p-002", Objective: "Climate dynamics", Lemmas: "climate model dynamics"},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	manifestPath := filepath.Join(dir, "Cordis.json")
	manifest := fmt.Sprintf(
		`{"name": "Cordis", "Dtsets": [{"parquet": %q, "idfld": "projectID", "lemmasfld": ["lemmas"]}]}`,
		parquetPath)
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0o644))
	return manifestPath
}

func writeNpz(t *testing.T, path string, members map[string]any) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, v := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		require.NoError(t, npyio.Write(w, v))
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

// writeModelFixture lays out a three-topic mallet model trained on the
// cordis corpus fixture, aligned with its two document ids.
func writeModelFixture(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	tm := filepath.Join(dir, "TMmodel")
	require.NoError(t, os.MkdirAll(tm, 0o755))

	trainconfig := `{"name": "` + name + `", "TrDtSet": "/data/datasets/Cordis.json", "trainer": "mallet"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trainconfig.json"), []byte(trainconfig), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus.txt"), []byte(
		"p-001 0 topic model scale\n"+
			"p-002 0 climate model dynamics\n"), 0o644))

	// thetas: [[0.5 0.5 0.0] [0.0 0.2 0.8]]
	writeNpz(t, filepath.Join(tm, "thetas.npz"), map[string]any{
		"indptr.npy":  []int64{0, 2, 4},
		"indices.npy": []int64{0, 1, 1, 2},
		"data.npy":    []float64{0.5, 0.5, 0.2, 0.8},
		"shape.npy":   []int64{2, 3},
	})
	// betas: [[0.5 0.5] [1.0 0.0] [0.25 0.75]]
	writeNpz(t, filepath.Join(tm, "betas.npz"), map[string]any{
		"indptr.npy":  []int64{0, 2, 3, 5},
		"indices.npy": []int64{0, 1, 0, 0, 1},
		"data.npy":    []float64{0.5, 0.5, 1, 0.25, 0.75},
		"shape.npy":   []int64{3, 2},
	})
	require.NoError(t, os.WriteFile(filepath.Join(tm, "vocab.txt"),
		[]byte("climate\nenergy\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tm, "tpc_labels.txt"),
		[]byte("Climate\nEnergy\nMixed\n"), 0o644))
	return dir
}

// testConfig returns a config wired for the fixtures: a cordis corpus
// section and no lock directory so tests stay inside t.TempDir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Ingest.LockDir = filepath.Join(t.TempDir(), "locks")
	cfg.Corpora["cordis"] = config.CorpusConfig{
		TitleField: "objective",
	}
	return cfg
}
