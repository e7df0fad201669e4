package artifact

import "errors"

// Sentinel kinds for artifact errors.
var (
	ErrArtifactMissing = errors.New("model artifact missing")
	ErrArtifactCorrupt = errors.New("model artifact corrupt")
	ErrCatalogMismatch = errors.New("model artifact trained on a different catalog")
)
