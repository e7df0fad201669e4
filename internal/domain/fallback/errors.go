package fallback

import "errors"

// Sentinel kinds for fallback scoring errors.
var (
	ErrNoKnownSymptoms = errors.New("no input symptom is in the catalog")
	ErrNoMatch         = errors.New("no matching disease")
)
