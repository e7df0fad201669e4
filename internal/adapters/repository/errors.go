package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("duplicate record")
	ErrInvalidLimit = errors.New("invalid history limit")
	ErrInvalidSeed  = errors.New("invalid catalog seed")
)
