package dataset

import (
	"math"
	"math/rand"
)

// Split thresholds.
const (
	DefaultSmallThreshold        = 30
	DefaultTestFraction          = 0.2
	DefaultSmallTestFraction     = 0.3
	minMembersForStratifiedSplit = 2
)

// SplitConfig controls how a dataset is divided for evaluation.
type SplitConfig struct {
	// SmallThreshold is the example count below which the split is not stratified.
	SmallThreshold int
	// TestFraction is used for stratified splits.
	TestFraction float64
	// SmallTestFraction is used for plain shuffled splits.
	SmallTestFraction float64
}

// DefaultSplitConfig returns the standard evaluation split.
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{
		SmallThreshold:    DefaultSmallThreshold,
		TestFraction:      DefaultTestFraction,
		SmallTestFraction: DefaultSmallTestFraction,
	}
}

// SplitResult holds the two partitions.
type SplitResult struct {
	Train      Dataset
	Test       Dataset
	Stratified bool
}

// Split divides ds into train and test partitions. Stratification needs every
// class to appear at least twice; smaller or uneven datasets get a plain
// shuffled split instead. The train partition is never empty.
func Split(ds Dataset, cfg SplitConfig, rng *rand.Rand) SplitResult {
	if len(ds.Examples) >= cfg.SmallThreshold && stratifiable(ds) {
		return stratifiedSplit(ds, cfg.TestFraction, rng)
	}
	return shuffledSplit(ds, cfg.SmallTestFraction, rng)
}

func stratifiable(ds Dataset) bool {
	counts := map[string]int{}
	for _, ex := range ds.Examples {
		counts[ex.Label]++
	}
	for _, c := range counts {
		if c < minMembersForStratifiedSplit {
			return false
		}
	}
	return true
}

func testCount(n int, frac float64) int {
	k := int(math.Ceil(float64(n) * frac))
	if k >= n {
		k = n - 1
	}
	if k < 0 {
		k = 0
	}
	return k
}

func shuffledSplit(ds Dataset, frac float64, rng *rand.Rand) SplitResult {
	perm := rng.Perm(len(ds.Examples))
	k := testCount(len(perm), frac)
	return SplitResult{
		Test:  pick(ds, perm[:k]),
		Train: pick(ds, perm[k:]),
	}
}

func stratifiedSplit(ds Dataset, frac float64, rng *rand.Rand) SplitResult {
	var order []string
	groups := map[string][]int{}
	for i, ex := range ds.Examples {
		if _, ok := groups[ex.Label]; !ok {
			order = append(order, ex.Label)
		}
		groups[ex.Label] = append(groups[ex.Label], i)
	}

	var train, test []int
	for _, label := range order {
		idx := groups[label]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		k := int(math.Round(float64(len(idx)) * frac))
		if k < 1 {
			k = 1
		}
		if k >= len(idx) {
			k = len(idx) - 1
		}
		test = append(test, idx[:k]...)
		train = append(train, idx[k:]...)
	}
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return SplitResult{Train: pick(ds, train), Test: pick(ds, test), Stratified: true}
}

func pick(ds Dataset, idx []int) Dataset {
	out := Dataset{SymptomNames: ds.SymptomNames, Examples: make([]Example, len(idx))}
	for i, j := range idx {
		out.Examples[i] = ds.Examples[j]
	}
	return out
}
