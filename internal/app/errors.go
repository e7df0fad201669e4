package service

import "errors"

// Errors surfaced to callers. Classifier problems never appear here; they
// route the request to the fallback tier instead.
var (
	ErrInvalidInput       = errors.New("no valid symptoms found")
	ErrNoMatch            = errors.New("no matching disease found")
	ErrRequestInFlight    = errors.New("request with this idempotency key is in progress")
	ErrTrainingInProgress = errors.New("training already in progress")
)
