// Package forest implements a bagged ensemble of depth-limited decision
// trees for multi-class classification with probability estimates.
package forest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Default ensemble parameters.
const (
	DefaultTrees           = 100
	DefaultMaxDepth        = 10
	DefaultSeed            = 42
	defaultMinSamplesSplit = 2
)

// Forest is a random forest classifier. Exported fields are the fitted
// parameters and are what gets persisted; a fitted Forest is read-only and
// safe for concurrent prediction.
type Forest struct {
	Classes     []string  `json:"classes"`
	NFeatures   int       `json:"n_features"`
	Trees       []*Tree   `json:"trees"`
	Importances []float64 `json:"importances"`

	nTrees          int
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int
	seed            int64
	balanced        bool
	parallelism     int
}

// New creates an unfitted Forest.
func New(opts ...Option) *Forest {
	f := &Forest{
		nTrees:          DefaultTrees,
		maxDepth:        DefaultMaxDepth,
		minSamplesSplit: defaultMinSamplesSplit,
		seed:            DefaultSeed,
		balanced:        true,
		parallelism:     runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fitted reports whether the forest has parameters to predict with.
func (f *Forest) Fitted() bool {
	return f != nil && len(f.Trees) > 0 && len(f.Classes) > 0
}

// Check reports whether the fitted parameters are safe to predict with.
func (f *Forest) Check() error {
	if !f.Fitted() {
		return ErrNotFitted
	}
	if f.NFeatures <= 0 {
		return fmt.Errorf("%w: %d features", ErrMalformedTree, f.NFeatures)
	}
	for i, t := range f.Trees {
		if err := t.check(f.NFeatures, len(f.Classes)); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// Fit trains the ensemble on rows x with labels y. Classes are ordered
// lexically. Trees are fitted concurrently but each draws from its own
// seed taken from the master source up front, so results do not depend on
// scheduling.
func (f *Forest) Fit(ctx context.Context, x [][]float64, y []string) error {
	if len(x) == 0 || len(y) == 0 {
		return ErrEmptyDataset
	}
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return fmt.Errorf("%w: zero-width rows", ErrEmptyDataset)
	}
	for i, row := range x {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), width)
		}
	}

	classes, labels := encodeLabels(y)
	weights := f.classWeights(labels, len(classes))

	master := rand.New(rand.NewSource(f.seed)) //nolint:gosec // reproducible training
	seeds := make([]int64, f.nTrees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*Tree, f.nTrees)
	imps := make([][]float64, f.nTrees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallelism)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b := &treeBuilder{
				x:               x,
				y:               labels,
				nClasses:        len(classes),
				classWeight:     weights,
				maxDepth:        f.maxDepth,
				minSamplesSplit: f.minSamplesSplit,
				maxFeatures:     f.featuresPerSplit(width),
				rng:             rand.New(rand.NewSource(seeds[i])), //nolint:gosec // reproducible training
				importance:      make([]float64, width),
			}
			trees[i] = b.build()
			imps[i] = b.importance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fit forest: %w", err)
	}

	f.Classes = classes
	f.NFeatures = width
	f.Trees = trees
	f.Importances = meanImportance(imps, width)
	return nil
}

// PredictProba returns per-class probabilities aligned with Classes.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if !f.Fitted() {
		return nil, ErrNotFitted
	}
	if len(x) != f.NFeatures {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(x), f.NFeatures)
	}
	proba := make([]float64, len(f.Classes))
	for _, t := range f.Trees {
		leaf := t.leaf(x)
		for c, p := range leaf {
			proba[c] += p
		}
	}
	n := float64(len(f.Trees))
	for c := range proba {
		proba[c] /= n
	}
	return proba, nil
}

// Predict returns the most probable class and its probability. Ties go to
// the class that sorts first.
func (f *Forest) Predict(x []float64) (string, float64, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return "", 0, err
	}
	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return f.Classes[best], proba[best], nil
}

// Importance pairs a feature index with its mean impurity decrease.
type Importance struct {
	Feature int
	Score   float64
}

// RankedImportances returns features ordered by decreasing importance,
// ties by index.
func (f *Forest) RankedImportances() []Importance {
	out := make([]Importance, len(f.Importances))
	for i, s := range f.Importances {
		out[i] = Importance{Feature: i, Score: s}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (f *Forest) featuresPerSplit(width int) int {
	if f.maxFeatures > 0 && f.maxFeatures <= width {
		return f.maxFeatures
	}
	k := int(math.Sqrt(float64(width)))
	if k < 1 {
		k = 1
	}
	return k
}

// classWeights returns n/(k*count_c) per class when balancing, else 1.
func (f *Forest) classWeights(labels []int, k int) []float64 {
	w := make([]float64, k)
	if !f.balanced {
		for c := range w {
			w[c] = 1
		}
		return w
	}
	counts := make([]int, k)
	for _, c := range labels {
		counts[c]++
	}
	n := float64(len(labels))
	for c, cnt := range counts {
		w[c] = n / (float64(k) * float64(cnt))
	}
	return w
}

func encodeLabels(y []string) ([]string, []int) {
	set := map[string]struct{}{}
	for _, l := range y {
		set[l] = struct{}{}
	}
	classes := make([]string, 0, len(set))
	for l := range set {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	idx := make(map[string]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	labels := make([]int, len(y))
	for i, l := range y {
		labels[i] = idx[l]
	}
	return classes, labels
}

// meanImportance normalises each tree's importances, averages them and
// renormalises so the result sums to 1 (or is all zero).
func meanImportance(perTree [][]float64, width int) []float64 {
	out := make([]float64, width)
	for _, imp := range perTree {
		total := 0.0
		for _, v := range imp {
			total += v
		}
		if total == 0 {
			continue
		}
		for i, v := range imp {
			out[i] += v / total
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for i := range out {
			out[i] /= total
		}
	}
	return out
}
