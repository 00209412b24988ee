package model

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// TrainerMallet is the only trainer family with a specified id-alignment
// contract. prodlda and ctm models cannot be indexed until theirs is
// defined.
const TrainerMallet = "mallet"

// TrainConfig is the training manifest persisted next to the model
// artifacts.
type TrainConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	TrDtSet     string `json:"TrDtSet"`
	Trainer     string `json:"trainer"`
}

// CorpusName derives the training corpus name: the lowercased stem of the
// TrDtSet manifest path.
func (tc *TrainConfig) CorpusName() string {
	base := filepath.Base(tc.TrDtSet)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// LoadTrainConfig reads trainconfig.json from a model directory and
// validates the trainer family.
func LoadTrainConfig(dir string) (*TrainConfig, error) {
	path := filepath.Join(dir, "trainconfig.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"cannot read trainconfig.json", err).
			WithDetail("model_dir", dir)
	}

	var tc TrainConfig
	if err := json.Unmarshal(data, &tc); err != nil {
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"trainconfig.json is not valid JSON", err).
			WithDetail("model_dir", dir)
	}
	if tc.TrDtSet == "" {
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"trainconfig.json names no training dataset (TrDtSet)", nil).
			WithDetail("model_dir", dir)
	}
	if tc.Trainer != TrainerMallet {
		return nil, ewberrors.Newf(ewberrors.ErrCodeUnknownTrainer,
			"trainer family %q is not supported; only %q models define a document-id alignment",
			tc.Trainer, TrainerMallet)
	}
	return &tc, nil
}

// readMalletIDs reads the document identifiers of a mallet training
// corpus: one record per line, the first whitespace-delimited token is the
// id. Blank lines are skipped.
func readMalletIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"cannot open mallet corpus file", err).
			WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()

	var ids []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		ids = append(ids, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"failed to read mallet corpus file", err).
			WithDetail("path", path)
	}
	return ids, nil
}
