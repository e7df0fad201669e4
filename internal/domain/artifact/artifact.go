// Package artifact persists a trained classifier together with the symptom
// ordering and catalog fingerprint it was trained against.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/medixpert/internal/domain/features"
	"github.com/okian/medixpert/internal/domain/forest"
)

// SchemaVersion is the on-disk layout version written by Save.
const SchemaVersion = 1

// Artifact bundles fitted classifier parameters with the exact symptom
// ordering used at training time. It must not be mutated after Load.
type Artifact struct {
	Version            int            `json:"version"`
	CatalogFingerprint string         `json:"catalog_fingerprint"`
	SymptomNames       []string       `json:"symptom_names"`
	TrainedAt          time.Time      `json:"trained_at"`
	Accuracy           float64        `json:"accuracy"`
	Forest             *forest.Forest `json:"forest"`

	encoder *features.Encoder
}

// New wraps a fitted forest.
func New(f *forest.Forest, symptomNames []string, fingerprint string) *Artifact {
	return &Artifact{
		Version:            SchemaVersion,
		CatalogFingerprint: fingerprint,
		SymptomNames:       append([]string(nil), symptomNames...),
		TrainedAt:          time.Now().UTC(),
		Forest:             f,
		encoder:            features.NewEncoder(symptomNames),
	}
}

// Encoder returns the encoder for the stored ordering.
func (a *Artifact) Encoder() *features.Encoder {
	if a.encoder == nil {
		return features.NewEncoder(a.SymptomNames)
	}
	return a.encoder
}

// Validate rejects an artifact whose catalog fingerprint differs from the
// current one.
func (a *Artifact) Validate(fingerprint string) error {
	if a.CatalogFingerprint != fingerprint {
		return fmt.Errorf("%w: artifact %s, catalog %s", ErrCatalogMismatch, a.CatalogFingerprint, fingerprint)
	}
	return nil
}

// Predict encodes symptoms with the stored ordering and classifies them.
func (a *Artifact) Predict(symptoms []string) (string, float64, error) {
	return a.Forest.Predict(a.Encoder().Encode(symptoms))
}

func (a *Artifact) check() error {
	switch {
	case a.Version != SchemaVersion:
		return fmt.Errorf("%w: unsupported version %d", ErrArtifactCorrupt, a.Version)
	case !a.Forest.Fitted():
		return fmt.Errorf("%w: no fitted classifier", ErrArtifactCorrupt)
	case a.Forest.NFeatures != len(a.SymptomNames):
		return fmt.Errorf("%w: classifier expects %d features, ordering has %d",
			ErrArtifactCorrupt, a.Forest.NFeatures, len(a.SymptomNames))
	}
	if err := a.Forest.Check(); err != nil {
		return fmt.Errorf("%w: %w", ErrArtifactCorrupt, err)
	}
	return nil
}

// Save writes the artifact atomically, creating parent directories.
func Save(path string, a *Artifact) error {
	if err := a.check(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := json.NewEncoder(tmp).Encode(a); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install artifact: %w", err)
	}
	return nil
}

// Load reads and checks an artifact.
func Load(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	a.encoder = features.NewEncoder(a.SymptomNames)
	return &a, nil
}
