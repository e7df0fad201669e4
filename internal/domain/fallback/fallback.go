// Package fallback scores diseases by symptom overlap without a trained model.
package fallback

import (
	"sort"

	"github.com/okian/medixpert/internal/domain/catalog"
)

// Match is a disease together with its overlap score.
type Match struct {
	Disease catalog.Disease
	// Score is Matches/Total, in [0,1].
	Score   float64
	Matches int
	Total   int
}

// Scorer ranks diseases by the fraction of their symptoms present in the input.
type Scorer struct{}

// New returns a Scorer.
func New() *Scorer { return &Scorer{} }

// Score returns the disease with the strictly highest overlap ratio. On ties
// the disease listed first in the catalog wins.
func (s *Scorer) Score(snap catalog.Snapshot, symptoms []string) (Match, error) {
	known, err := s.known(snap, symptoms)
	if err != nil {
		return Match{}, err
	}
	var best Match
	found := false
	for _, d := range snap.Diseases {
		m := overlap(d, known)
		if m.Score > best.Score {
			best = m
			found = true
		}
	}
	if !found {
		return Match{}, ErrNoMatch
	}
	return best, nil
}

// Rank returns every disease with a positive score, best first, keeping
// catalog order among equal scores. Rank(...)[0] equals Score's result.
func (s *Scorer) Rank(snap catalog.Snapshot, symptoms []string) ([]Match, error) {
	known, err := s.known(snap, symptoms)
	if err != nil {
		return nil, err
	}
	var out []Match
	for _, d := range snap.Diseases {
		if m := overlap(d, known); m.Score > 0 {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoMatch
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *Scorer) known(snap catalog.Snapshot, symptoms []string) (map[string]struct{}, error) {
	known := map[string]struct{}{}
	for _, n := range catalog.NormalizeAll(symptoms) {
		if snap.HasSymptom(n) {
			known[n] = struct{}{}
		}
	}
	if len(known) == 0 {
		return nil, ErrNoKnownSymptoms
	}
	return known, nil
}

func overlap(d catalog.Disease, known map[string]struct{}) Match {
	syms := catalog.NormalizeAll(d.Symptoms)
	m := Match{Disease: d, Total: len(syms)}
	if m.Total == 0 {
		return m
	}
	for _, n := range syms {
		if _, ok := known[n]; ok {
			m.Matches++
		}
	}
	m.Score = float64(m.Matches) / float64(m.Total)
	return m
}
