package forest

// Option applies a configuration option to the Forest.
type Option func(*Forest)

// WithTrees sets the number of trees in the ensemble.
func WithTrees(n int) Option {
	return func(f *Forest) {
		if n > 0 {
			f.nTrees = n
		}
	}
}

// WithMaxDepth limits tree depth.
func WithMaxDepth(depth int) Option {
	return func(f *Forest) {
		if depth > 0 {
			f.maxDepth = depth
		}
	}
}

// WithMinSamplesSplit sets the minimum number of distinct samples a node
// needs before it is split.
func WithMinSamplesSplit(n int) Option {
	return func(f *Forest) {
		if n >= 2 {
			f.minSamplesSplit = n
		}
	}
}

// WithMaxFeatures sets how many features are considered per split.
// Zero selects the square root of the feature count.
func WithMaxFeatures(n int) Option {
	return func(f *Forest) {
		if n >= 0 {
			f.maxFeatures = n
		}
	}
}

// WithSeed fixes the random source used for bootstrapping and feature sampling.
func WithSeed(seed int64) Option {
	return func(f *Forest) {
		f.seed = seed
	}
}

// WithBalancedClassWeight toggles inverse-frequency class weighting.
func WithBalancedClassWeight(enabled bool) Option {
	return func(f *Forest) {
		f.balanced = enabled
	}
}

// WithParallelism bounds how many trees are fitted concurrently.
func WithParallelism(n int) Option {
	return func(f *Forest) {
		if n > 0 {
			f.parallelism = n
		}
	}
}
