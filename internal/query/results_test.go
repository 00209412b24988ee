package query

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IntelCompH2020/ewbsearch/internal/engine"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// assertResultsFile checks the persisted file is a JSON array with the
// expected number of documents.
func assertResultsFile(t *testing.T, path string, wantDocs int) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var docs []engine.Doc
	require.NoError(t, json.Unmarshal(data, &docs))
	assert.Len(t, docs, wantDocs)
}
