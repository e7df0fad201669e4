// Package model contains domain models passed between layers.
package model

import (
	"math"
	"time"

	"github.com/okian/medixpert/internal/domain/catalog"
)

// Method names the tier that produced a prediction.
type Method string

// Prediction tiers.
const (
	MethodClassifier Method = "classifier"
	MethodFallback   Method = "fallback"
)

// PredictRequest is one inference call from the API layer.
type PredictRequest struct {
	UserID             string   // owner of the resulting record
	RequestID          string   // optional idempotency key
	Symptoms           []string // reported symptom names, any case
	AdditionalSymptoms string   // free text for symptoms not in the catalog
	Notes              string   // free text
}

// Prediction is the immutable record of a successful inference call.
type Prediction struct {
	ID                 string           `json:"id"`
	UserID             string           `json:"user_id"`
	RequestID          string           `json:"request_id,omitempty"`
	Symptoms           []string         `json:"symptoms"`
	Disease            string           `json:"disease"`
	Severity           catalog.Severity `json:"severity"`
	Confidence         float64          `json:"confidence"`
	Method             Method           `json:"method"`
	AdditionalSymptoms string           `json:"additional_symptoms,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Candidate is a ranked alternative disease for a request.
type Candidate struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
}

// ClampConfidence scales a [0,1] ratio to a [0,100] score.
func ClampConfidence(ratio float64) float64 {
	c := ratio * 100
	switch {
	case c < 0 || math.IsNaN(c):
		return 0
	case c > 100:
		return 100
	}
	return c
}
