package forest

import "errors"

// Sentinel kinds for classifier errors.
var (
	ErrEmptyDataset    = errors.New("empty training set")
	ErrShapeMismatch   = errors.New("inconsistent training data shape")
	ErrNotFitted       = errors.New("classifier not fitted")
	ErrFeatureMismatch = errors.New("feature vector length mismatch")
	ErrMalformedTree   = errors.New("malformed tree")
)
