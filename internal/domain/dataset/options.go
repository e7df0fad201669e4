package dataset

import "math/rand"

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithAugmentations sets how many partial-symptom samples are drawn per disease.
func WithAugmentations(n int) Option {
	return func(b *Builder) {
		if n >= 0 {
			b.augmentations = n
		}
	}
}

// WithFractionSchedule sets the sampled fraction for augmentation i to base+step*i.
func WithFractionSchedule(base, step float64) Option {
	return func(b *Builder) {
		if base > 0 && base <= 1 && step >= 0 {
			b.baseFraction = base
			b.fractionStep = step
		}
	}
}

// WithSeed seeds the sampling source.
func WithSeed(seed int64) Option {
	return func(b *Builder) {
		b.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible sampling
	}
}

// WithRand sets the sampling source directly.
func WithRand(rng *rand.Rand) Option {
	return func(b *Builder) {
		if rng != nil {
			b.rng = rng
		}
	}
}
