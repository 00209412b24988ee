// Package corpus loads logical corpora: a JSON manifest naming one parquet
// file plus the id and lemma columns, streamed row by row into flat
// engine documents with normalized dates, word counts, and bag-of-words
// strings.
package corpus

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// Manifest describes a logical corpus. It points at one columnar dataset
// and names the columns that carry the document identifier and the lemmas.
type Manifest struct {
	Name   string    `json:"name"`
	Dtsets []Dataset `json:"Dtsets"`
}

// Dataset is one raw dataset entry of a manifest.
type Dataset struct {
	Parquet      string   `json:"parquet"`
	Source       string   `json:"source"`
	IDField      string   `json:"idfld"`
	LemmasFields []string `json:"lemmasfld"`
	Filter       string   `json:"filter"`
}

// Stem derives the corpus name from a manifest path: the lowercased file
// name without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// LoadManifest reads and validates a logical-corpus manifest. Only corpora
// built from a single raw dataset can be indexed; manifests with more
// entries are rejected.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"cannot read corpus manifest", err).
			WithDetail("path", path)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"corpus manifest is not valid JSON", err).
			WithDetail("path", path)
	}

	if len(m.Dtsets) == 0 {
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"corpus manifest names no datasets", nil).
			WithDetail("path", path)
	}
	if len(m.Dtsets) > 1 {
		return nil, ewberrors.Newf(ewberrors.ErrCodeMultipleDatasets,
			"corpus manifest names %d datasets; only corpora built from one raw dataset are supported",
			len(m.Dtsets))
	}
	if m.Dtsets[0].Parquet == "" {
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"corpus manifest dataset has no parquet path", nil).
			WithDetail("path", path)
	}
	if m.Dtsets[0].IDField == "" {
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"corpus manifest dataset has no idfld", nil).
			WithDetail("path", path)
	}

	return &m, nil
}
