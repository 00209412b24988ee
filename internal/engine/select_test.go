package engine

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_PassesParamsAndForcesJSON(t *testing.T) {
	// Given: a select endpoint capturing the query string
	var gotPath string
	var gotParams url.Values
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotParams = r.URL.Query()
		_, _ = w.Write([]byte(`{
			"responseHeader":{"status":0,"QTime":7},
			"response":{"numFound":2,"start":0,"docs":[
				{"id":"doc1","title":"first"},
				{"id":"doc2","title":"second"}
			]},
			"nextCursorMark":"AoE="
		}`))
	})

	// When: selecting with catalogue-style params
	params := url.Values{}
	params.Set("q", "id:doc1")
	params.Set("fl", "doctpc_mallet-25")
	params.Set("wt", "xml") // callers cannot switch the response format
	result, err := client.Select(context.Background(), "cordis", params)

	// Then: params pass through, wt is forced back to json
	require.NoError(t, err)
	assert.Equal(t, "/solr/cordis/select", gotPath)
	assert.Equal(t, "id:doc1", gotParams.Get("q"))
	assert.Equal(t, "doctpc_mallet-25", gotParams.Get("fl"))
	assert.Equal(t, "json", gotParams.Get("wt"))

	assert.Equal(t, int64(2), result.NumFound)
	assert.Equal(t, int64(0), result.Start)
	require.Len(t, result.Docs, 2)
	assert.Equal(t, "doc1", result.Docs[0]["id"])
	assert.Equal(t, "AoE=", result.NextCursor)
	assert.Equal(t, 7, result.QTime)
}

func TestSelect_NilParams_StillWork(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("wt"))
		_, _ = w.Write([]byte(`{"responseHeader":{"status":0},"response":{"numFound":0,"start":0,"docs":[]}}`))
	})

	result, err := client.Select(context.Background(), "cordis", nil)

	require.NoError(t, err)
	assert.Equal(t, int64(0), result.NumFound)
	assert.Empty(t, result.Docs)
}
