// Package model loads trained topic-model directories: sparse CSR matrices
// persisted as npz archives, the per-document identifier list, training
// metadata, and the auxiliary per-topic statistics. Doc-topic and
// topic-word vectors are encoded into integer weighted-payload strings.
package model

import (
	"fmt"
	"strings"

	"github.com/sbinet/npyio/npz"

	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// CSR is a compressed sparse row matrix as scipy persists it: row pointers,
// column indices, and the non-zero values. Rows are sliced on demand; the
// matrix is never densified as a whole.
type CSR struct {
	NumRows int
	NumCols int
	Indptr  []int64
	Indices []int64
	Data    []float64
}

// Row returns the column indices and values of one row without copying.
func (m *CSR) Row(i int) ([]int64, []float64) {
	lo, hi := m.Indptr[i], m.Indptr[i+1]
	return m.Indices[lo:hi], m.Data[lo:hi]
}

// DenseRow expands one row into a dense vector of length NumCols.
func (m *CSR) DenseRow(i int) []float64 {
	out := make([]float64, m.NumCols)
	indices, values := m.Row(i)
	for k, idx := range indices {
		out[idx] = values[k]
	}
	return out
}

// LoadCSR reads a scipy-format npz archive holding a CSR matrix: members
// indptr, indices, data, and shape. Both 32- and 64-bit integer dtypes are
// accepted.
func LoadCSR(path string) (*CSR, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, ewberrors.New(ewberrors.ErrCodeMatrixCorrupt,
			"cannot open npz matrix", err).
			WithDetail("path", path)
	}
	defer func() { _ = r.Close() }()

	members := map[string]string{}
	for _, key := range r.Keys() {
		members[strings.TrimSuffix(key, ".npy")] = key
	}
	for _, required := range []string{"indptr", "indices", "data", "shape"} {
		if _, ok := members[required]; !ok {
			return nil, ewberrors.Newf(ewberrors.ErrCodeMatrixCorrupt,
				"npz matrix %s has no %s member", path, required)
		}
	}

	indptr, err := readInts(r, members["indptr"])
	if err != nil {
		return nil, matrixError(path, "indptr", err)
	}
	indices, err := readInts(r, members["indices"])
	if err != nil {
		return nil, matrixError(path, "indices", err)
	}
	data, err := readFloats(r, members["data"])
	if err != nil {
		return nil, matrixError(path, "data", err)
	}
	shape, err := readInts(r, members["shape"])
	if err != nil {
		return nil, matrixError(path, "shape", err)
	}
	if len(shape) != 2 {
		return nil, ewberrors.Newf(ewberrors.ErrCodeMatrixCorrupt,
			"npz matrix %s has %d-dimensional shape, want 2", path, len(shape))
	}

	m := &CSR{
		NumRows: int(shape[0]),
		NumCols: int(shape[1]),
		Indptr:  indptr,
		Indices: indices,
		Data:    data,
	}
	if len(m.Indptr) != m.NumRows+1 {
		return nil, ewberrors.Newf(ewberrors.ErrCodeMatrixCorrupt,
			"npz matrix %s indptr length %d does not match %d rows",
			path, len(m.Indptr), m.NumRows)
	}
	if len(m.Indices) != len(m.Data) {
		return nil, ewberrors.Newf(ewberrors.ErrCodeMatrixCorrupt,
			"npz matrix %s has %d indices for %d values",
			path, len(m.Indices), len(m.Data))
	}
	return m, nil
}

func matrixError(path, member string, err error) error {
	return ewberrors.New(ewberrors.ErrCodeMatrixCorrupt,
		fmt.Sprintf("cannot decode npz member %s", member), err).
		WithDetail("path", path)
}

// readInts decodes an integer npy member, accepting int64 and int32 dtypes.
func readInts(r *npz.Reader, key string) ([]int64, error) {
	var wide []int64
	if err := r.Read(key, &wide); err == nil {
		return wide, nil
	}
	var narrow []int32
	if err := r.Read(key, &narrow); err != nil {
		return nil, err
	}
	out := make([]int64, len(narrow))
	for i, v := range narrow {
		out[i] = int64(v)
	}
	return out, nil
}

// readFloats decodes a float npy member, accepting float64 and float32.
func readFloats(r *npz.Reader, key string) ([]float64, error) {
	var wide []float64
	if err := r.Read(key, &wide); err == nil {
		return wide, nil
	}
	var narrow []float32
	if err := r.Read(key, &narrow); err != nil {
		return nil, err
	}
	out := make([]float64, len(narrow))
	for i, v := range narrow {
		out[i] = float64(v)
	}
	return out, nil
}
