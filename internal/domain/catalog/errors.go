package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrInvalidSeverity = errors.New("invalid severity")
)
