package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrServe       = errors.New("http serve failed")
	ErrBadRequest  = errors.New("bad request")
	ErrMissingUser = errors.New("missing X-User-ID header")
)

// wrapKind tags err with an operation and a sentinel kind.
func wrapKind(op string, kind, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
