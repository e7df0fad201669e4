// Package dataset builds labeled training examples from the catalog.
package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/okian/medixpert/internal/domain/catalog"
	"github.com/okian/medixpert/internal/domain/features"
)

// Default augmentation parameters.
const (
	DefaultAugmentations = 5
	DefaultBaseFraction  = 0.6
	DefaultFractionStep  = 0.075
	defaultSeed          = 42
)

// Example is one labeled training point.
type Example struct {
	Features  features.Vector
	Label     string
	Augmented bool
}

// Dataset is a set of examples plus the symptom ordering their vectors use.
type Dataset struct {
	Examples     []Example
	SymptomNames []string
}

// Len is the number of examples.
func (d Dataset) Len() int { return len(d.Examples) }

// XY splits the dataset into feature rows and labels.
func (d Dataset) XY() ([][]float64, []string) {
	x := make([][]float64, len(d.Examples))
	y := make([]string, len(d.Examples))
	for i, ex := range d.Examples {
		x[i] = ex.Features
		y[i] = ex.Label
	}
	return x, y
}

// Builder turns a catalog snapshot into a Dataset. A Builder owns its random
// source and is not safe for concurrent use.
type Builder struct {
	augmentations int
	baseFraction  float64
	fractionStep  float64
	rng           *rand.Rand
}

// NewBuilder creates a Builder with the default schedule and a fixed seed.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		augmentations: DefaultAugmentations,
		baseFraction:  DefaultBaseFraction,
		fractionStep:  DefaultFractionStep,
		rng:           rand.New(rand.NewSource(defaultSeed)), //nolint:gosec // reproducible sampling
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Fraction returns the sampled fraction for augmentation index i.
func (b *Builder) Fraction(i int) float64 {
	return b.baseFraction + b.fractionStep*float64(i)
}

// SampleSize returns how many of n symptoms augmentation i keeps.
func (b *Builder) SampleSize(n, i int) int {
	k := int(math.Floor(float64(n) * b.Fraction(i)))
	if k < 1 {
		k = 1
	}
	return k
}

// Build emits one canonical example per disease plus the configured number
// of partial-symptom examples for diseases with more than one symptom.
func (b *Builder) Build(snap catalog.Snapshot) (Dataset, error) {
	if snap.Empty() {
		return Dataset{}, fmt.Errorf("build dataset: %w", ErrEmptyDataset)
	}
	enc := features.NewEncoder(snap.SymptomNames())
	ds := Dataset{SymptomNames: enc.Names()}

	for _, d := range snap.Diseases {
		syms := catalog.NormalizeAll(d.Symptoms)
		ds.Examples = append(ds.Examples, Example{Features: enc.Encode(syms), Label: d.Name})
		if len(syms) <= 1 {
			continue
		}
		for i := 0; i < b.augmentations; i++ {
			k := b.SampleSize(len(syms), i)
			sample := syms
			if k < len(syms) {
				sample = b.sample(syms, k)
			}
			ds.Examples = append(ds.Examples, Example{
				Features:  enc.Encode(sample),
				Label:     d.Name,
				Augmented: true,
			})
		}
	}
	return ds, nil
}

// sample draws k distinct items uniformly.
func (b *Builder) sample(items []string, k int) []string {
	perm := b.rng.Perm(len(items))
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = items[perm[i]]
	}
	return out
}
