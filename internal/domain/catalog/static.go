package catalog

import "context"

// Static is an in-memory Provider over fixed slices.
type Static struct {
	symptoms []Symptom
	diseases []Disease
}

// NewStatic returns a Provider that always serves the given catalog.
func NewStatic(symptoms []Symptom, diseases []Disease) *Static {
	return &Static{symptoms: symptoms, diseases: diseases}
}

// ListSymptoms implements Provider.
func (s *Static) ListSymptoms(_ context.Context) ([]Symptom, error) {
	out := make([]Symptom, len(s.symptoms))
	copy(out, s.symptoms)
	return out, nil
}

// ListDiseases implements Provider.
func (s *Static) ListDiseases(_ context.Context) ([]Disease, error) {
	out := make([]Disease, len(s.diseases))
	for i, d := range s.diseases {
		d.Symptoms = append([]string(nil), d.Symptoms...)
		out[i] = d
	}
	return out, nil
}
