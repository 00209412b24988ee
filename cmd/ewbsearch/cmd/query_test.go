package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	"github.com/IntelCompH2020/ewbsearch/internal/enginetest"
)

func seedQueryFixture(fake *enginetest.Server) {
	fake.SeedCollection("Corpora", engine.Doc{
		"id": 1, "corpus_name": "cordis",
		"fields": []any{"id", "title", "doctpc_mallet-3"},
		"models": []any{"mallet-3"},
	})
	fake.SeedCollection("cordis",
		engine.Doc{"id": "p-001", "title": "Topic modeling", "doctpc_mallet-3": "t0|500 t1|500"},
	)
	fake.SeedCollection("mallet-3",
		engine.Doc{"id": "t0", "betas": "climate|1000", "tpc_labels": "Climate"},
	)
}

func TestQueryCommand(t *testing.T) {
	fake := enginetest.New(t)
	seedQueryFixture(fake)
	cfgPath := writeTestConfig(t, fake)

	out, err := execute(t, "query", "q1",
		"--corpus", "cordis", "--model", "mallet-3", "--doc-id", "p-001",
		"--config", cfgPath)
	require.NoError(t, err)

	var res struct {
		ID   string           `json:"id"`
		Docs []map[string]any `json:"docs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "q1", res.ID)
	require.Len(t, res.Docs, 1)
	assert.Equal(t, "t0|500 t1|500", res.Docs[0]["doctpc_mallet-3"])
}

func TestQueryCommandUnknownID(t *testing.T) {
	fake := enginetest.New(t)
	seedQueryFixture(fake)
	cfgPath := writeTestConfig(t, fake)

	_, err := execute(t, "query", "q13", "--corpus", "cordis", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}
