package corpus

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IntelCompH2020/ewbsearch/internal/config"
	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// projectRow is the parquet fixture schema for a cordis-like corpus.
type projectRow struct {
	ProjectID string    `parquet:"projectID"`
	Objective string    `parquet:"objective"`
	Issued    time.Time `parquet:"issued,timestamp(microsecond)"`
	Lemmas    string    `parquet:"lemmas"`
	Funding   *string   `parquet:"funding,optional"`
}

func writeParquet[T any](t *testing.T, rows []T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := parquet.NewGenericWriter[T](f)
	_, err = w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func cordisManifest(t *testing.T, parquetPath string) string {
	t.Helper()
	return writeManifest(t, "Cordis.json", fmt.Sprintf(
		`{"name": "Cordis", "Dtsets": [{"parquet": %q, "idfld": "projectID", "lemmasfld": ["lemmas"]}]}`,
		parquetPath))
}

func cordisConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Corpora["cordis"] = config.CorpusConfig{
		TitleField: "objective",
		DateField:  "issued",
	}
	return cfg
}

func drain(t *testing.T, docs *Documents) []engine.Doc {
	t.Helper()
	var out []engine.Doc
	for {
		doc, err := docs.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, doc)
	}
}

func TestLoaderStreamsDocuments(t *testing.T) {
	funding := "H2020"
	parquetPath := writeParquet(t, []projectRow{
		{
			ProjectID: "p-001",
			Objective: "Topic modeling at scale",
			Issued:    time.Date(2011, 12, 3, 10, 15, 30, 0, time.UTC),
			Lemmas:    "topic model scale topic",
			Funding:   &funding,
		},
		{
			ProjectID: "p-002",
			Objective: "Climate dynamics",
			Issued:    time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
			Lemmas:    "climate model dynamics",
		},
		{
			ProjectID: "p-003",
			Objective: "No lemmas here",
			Issued:    time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
			Lemmas:    "",
		},
	})

	loader := NewLoader(cordisConfig())
	docs, err := loader.Open(cordisManifest(t, parquetPath))
	require.NoError(t, err)
	defer func() { _ = docs.Close() }()

	assert.Equal(t, "cordis", docs.Name())
	assert.Equal(t, int64(3), docs.Count())

	// Source columns are renamed, computed columns appended.
	cols := docs.Columns()
	assert.Contains(t, cols, "id")
	assert.Contains(t, cols, "title")
	assert.Contains(t, cols, "date")
	assert.Contains(t, cols, "funding")
	assert.Contains(t, cols, "all_lemmas")
	assert.Contains(t, cols, "nwords_per_doc")
	assert.Contains(t, cols, "bow")
	assert.NotContains(t, cols, "projectID")
	assert.NotContains(t, cols, "objective")

	out := drain(t, docs)
	require.Len(t, out, 3)

	first := out[0]
	assert.Equal(t, "p-001", first["id"])
	assert.Equal(t, "Topic modeling at scale", first["title"])
	assert.Equal(t, "2011-12-03T10:15:30.000000Z", first["date"])
	assert.Equal(t, "topic model scale topic", first["all_lemmas"])
	assert.Equal(t, 4, first["nwords_per_doc"])
	assert.Equal(t, "topic|2 model|1 scale|1", first["bow"])
	assert.Equal(t, "H2020", first["funding"])

	// Vocabulary ids carry over between documents: "model" keeps its
	// first-appearance position.
	second := out[1]
	assert.Equal(t, "model|1 climate|1 dynamics|1", second["bow"])

	// Null cells become empty strings, empty lemmas mean zero words and no
	// bow field.
	third := out[2]
	assert.Equal(t, "", third["funding"])
	assert.Equal(t, 0, third["nwords_per_doc"])
	_, hasBow := third["bow"]
	assert.False(t, hasBow)

	// The sequence is finite and stays exhausted.
	_, err = docs.Next()
	assert.Equal(t, io.EOF, err)
}

// stringDateRow uses a plain string column for the date mapping, the way
// corpora exported without typed timestamps arrive.
type stringDateRow struct {
	ID        string `parquet:"ref"`
	Name      string `parquet:"name"`
	Published string `parquet:"published"`
	Lemmas    string `parquet:"lemmas"`
}

func TestLoaderNormalizesStringDates(t *testing.T) {
	parquetPath := writeParquet(t, []stringDateRow{
		{ID: "d1", Name: "first", Published: "2011-12-03 10:15:30", Lemmas: "alpha"},
		{ID: "d2", Name: "second", Published: "", Lemmas: "beta"},
		{ID: "d3", Name: "third", Published: "never", Lemmas: "gamma"},
	})

	manifestPath := writeManifest(t, "Scipers.json", fmt.Sprintf(
		`{"Dtsets": [{"parquet": %q, "idfld": "ref", "lemmasfld": ["lemmas"]}]}`, parquetPath))

	cfg := config.NewConfig()
	cfg.Corpora["scipers"] = config.CorpusConfig{TitleField: "name", DateField: "published"}

	docs, err := NewLoader(cfg).Open(manifestPath)
	require.NoError(t, err)
	defer func() { _ = docs.Close() }()

	out := drain(t, docs)
	require.Len(t, out, 3)
	assert.Equal(t, "2011-12-03T10:15:30.000000Z", out[0]["date"])
	assert.Equal(t, "", out[1]["date"])
	assert.Equal(t, "", out[2]["date"])
}

func TestLoaderStripsIllegalXML(t *testing.T) {
	parquetPath := writeParquet(t, []stringDateRow{
		{ID: "d1", Name: "bad\x0bcontrol", Published: "2020-01-01", Lemmas: "one"},
	})
	manifestPath := writeManifest(t, "Scipers.json", fmt.Sprintf(
		`{"Dtsets": [{"parquet": %q, "idfld": "ref", "lemmasfld": ["lemmas"]}]}`, parquetPath))

	cfg := config.NewConfig()
	cfg.Corpora["scipers"] = config.CorpusConfig{TitleField: "name", DateField: "published"}

	docs, err := NewLoader(cfg).Open(manifestPath)
	require.NoError(t, err)
	defer func() { _ = docs.Close() }()

	out := drain(t, docs)
	require.Len(t, out, 1)
	assert.Equal(t, "badcontrol", out[0]["title"])
}

func TestLoaderRequiresCorpusSection(t *testing.T) {
	parquetPath := writeParquet(t, []stringDateRow{
		{ID: "d1", Name: "x", Published: "", Lemmas: ""},
	})
	manifestPath := writeManifest(t, "Unknown.json", fmt.Sprintf(
		`{"Dtsets": [{"parquet": %q, "idfld": "ref", "lemmasfld": ["lemmas"]}]}`, parquetPath))

	_, err := NewLoader(config.NewConfig()).Open(manifestPath)
	require.Error(t, err)
	assert.Equal(t, ewberrors.ErrCodeCorpusSectionAbsent, ewberrors.GetCode(err))
}

func TestLoaderRejectsUnknownIDField(t *testing.T) {
	parquetPath := writeParquet(t, []stringDateRow{
		{ID: "d1", Name: "x", Published: "", Lemmas: ""},
	})
	manifestPath := writeManifest(t, "Scipers.json", fmt.Sprintf(
		`{"Dtsets": [{"parquet": %q, "idfld": "nonexistent", "lemmasfld": ["lemmas"]}]}`, parquetPath))

	cfg := config.NewConfig()
	cfg.Corpora["scipers"] = config.CorpusConfig{TitleField: "name", DateField: "published"}

	_, err := NewLoader(cfg).Open(manifestPath)
	require.Error(t, err)
	assert.Equal(t, ewberrors.ErrCodeInvalidManifest, ewberrors.GetCode(err))
}
