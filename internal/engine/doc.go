// Package engine is the HTTP adapter for the search engine.
//
// The engine exposes two API surfaces: a collections admin API under
// /api/collections (create, list, delete, per-collection schema) and the
// classic document API under /solr/<collection> (update, select). The
// adapter normalizes both into Go calls that return decoded documents or a
// coded service error; it never retries and it never interprets document
// payloads beyond JSON decoding.
package engine
