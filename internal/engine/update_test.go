package engine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_PostsJSONArrayWithCommitParams(t *testing.T) {
	// Given: an update endpoint capturing the request
	var gotPath, gotQuery, gotContentType string
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(okHeader()))
	})

	// When: updating two documents, one of them an atomic set
	docs := []Doc{
		{"id": "doc1", "title": "first"},
		{"id": "doc2", "doctpc_mallet-25": map[string]any{"set": "t0|500 t1|500"}},
	}
	err := client.Update(context.Background(), "cordis", docs)

	// Then: a JSON array reaches /solr/<collection>/update with commit params
	require.NoError(t, err)
	assert.Equal(t, "/solr/cordis/update", gotPath)
	assert.Contains(t, gotQuery, "commitWithin=1000")
	assert.Contains(t, gotQuery, "overwrite=true")
	assert.Contains(t, gotQuery, "wt=json")
	assert.Equal(t, "application/json", gotContentType)

	var sent []map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &sent))
	require.Len(t, sent, 2)
	assert.Equal(t, "doc1", sent[0]["id"])
	// Atomic operations pass through untouched
	setOp, ok := sent[1]["doctpc_mallet-25"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "t0|500 t1|500", setOp["set"])
}

func TestUpdate_EmptyBatch_IsNoOp(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	err := client.Update(context.Background(), "cordis", nil)

	require.NoError(t, err)
	assert.False(t, called)
}

func TestDeleteByID_SendsXMLQueryBody(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(okHeader()))
	})

	err := client.DeleteByID(context.Background(), "Corpora", "3")

	require.NoError(t, err)
	assert.Equal(t, "text/xml", gotContentType)
	assert.Equal(t, "<delete><query>(id:3)</query></delete>", string(gotBody))
}
