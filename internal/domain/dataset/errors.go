package dataset

import "errors"

// Sentinel kinds for dataset errors.
var (
	ErrEmptyDataset = errors.New("empty dataset")
)
