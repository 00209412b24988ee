package model

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"

	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// readNpyFloats reads a standalone npy file of floats. A missing file
// yields nil: the auxiliary statistics are optional.
func readNpyFloats(path string) ([]float64, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}

	var wide []float64
	if err := readNpy(path, &wide); err == nil {
		return wide, nil
	}
	var narrow []float32
	if err := readNpy(path, &narrow); err != nil {
		return nil, ewberrors.New(ewberrors.ErrCodeMatrixCorrupt,
			"cannot decode npy file", err).
			WithDetail("path", path)
	}
	out := make([]float64, len(narrow))
	for i, v := range narrow {
		out[i] = float64(v)
	}
	return out, nil
}

// readNpyInts reads a standalone npy file of integers; missing files yield
// nil.
func readNpyInts(path string) ([]int64, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}

	var wide []int64
	if err := readNpy(path, &wide); err == nil {
		return wide, nil
	}
	var narrow []int32
	if err := readNpy(path, &narrow); err != nil {
		return nil, ewberrors.New(ewberrors.ErrCodeMatrixCorrupt,
			"cannot decode npy file", err).
			WithDetail("path", path)
	}
	out := make([]int64, len(narrow))
	for i, v := range narrow {
		out[i] = int64(v)
	}
	return out, nil
}

func readNpy(path string, ptr any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return npyio.Read(f, ptr)
}

// readLines reads a text artifact with one entry per line; missing files
// yield nil.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"cannot read model text artifact", err).
			WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"failed to read model text artifact", err).
			WithDetail("path", path)
	}
	return lines, nil
}

// parseCoords parses one topic-coordinates line such as "(0.12, -0.3)".
// Unparseable lines yield nil; the coordinates are presentation data, not
// part of any invariant.
func parseCoords(line string) []float64 {
	line = strings.Trim(strings.TrimSpace(line), "()[]")
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return nil
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errX != nil || errY != nil {
		return nil
	}
	return []float64{x, y}
}
