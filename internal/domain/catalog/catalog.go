// Package catalog defines the symptom and disease catalog consumed by the
// inference engine and the read-only provider contract that supplies it.
package catalog

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Severity classifies how serious a disease is.
type Severity string

// Known severities.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity parses a severity label. Empty input maps to medium.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(Normalize(s)) {
	case "":
		return SeverityMedium, nil
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	case SeverityCritical:
		return SeverityCritical, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
}

// Symptom is a cataloged symptom.
type Symptom struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Disease is a cataloged disease together with the names of its symptoms.
type Disease struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Symptoms    []string `json:"symptoms" yaml:"symptoms"`
}

// Provider supplies the catalog. Implementations must return symptoms in
// their canonical order and diseases in a stable iteration order.
type Provider interface {
	ListSymptoms(ctx context.Context) ([]Symptom, error)
	ListDiseases(ctx context.Context) ([]Disease, error)
}

// Normalize lowercases and trims a name for matching.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeAll normalizes names and drops empty and repeated entries,
// keeping the first occurrence order.
func NormalizeAll(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		k := Normalize(n)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Snapshot is a consistent view of the catalog taken at one point in time.
type Snapshot struct {
	Symptoms []Symptom
	Diseases []Disease

	symptomIdx map[string]int
	diseaseIdx map[string]int
}

// NewSnapshot indexes the given symptoms and diseases.
func NewSnapshot(symptoms []Symptom, diseases []Disease) Snapshot {
	s := Snapshot{
		Symptoms:   symptoms,
		Diseases:   diseases,
		symptomIdx: make(map[string]int, len(symptoms)),
		diseaseIdx: make(map[string]int, len(diseases)),
	}
	for i, sym := range symptoms {
		k := Normalize(sym.Name)
		if _, ok := s.symptomIdx[k]; !ok {
			s.symptomIdx[k] = i
		}
	}
	for i, d := range diseases {
		k := Normalize(d.Name)
		if _, ok := s.diseaseIdx[k]; !ok {
			s.diseaseIdx[k] = i
		}
	}
	return s
}

// Snapshotter is implemented by providers that can read both lists in one
// consistent transaction.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Load reads a snapshot from the provider.
func Load(ctx context.Context, p Provider) (Snapshot, error) {
	if sp, ok := p.(Snapshotter); ok {
		return sp.Snapshot(ctx)
	}
	symptoms, err := p.ListSymptoms(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list symptoms: %w", err)
	}
	diseases, err := p.ListDiseases(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list diseases: %w", err)
	}
	return NewSnapshot(symptoms, diseases), nil
}

// SymptomNames returns the symptom names in canonical order.
func (s Snapshot) SymptomNames() []string {
	names := make([]string, len(s.Symptoms))
	for i, sym := range s.Symptoms {
		names[i] = sym.Name
	}
	return names
}

// HasSymptom reports whether name is a cataloged symptom.
func (s Snapshot) HasSymptom(name string) bool {
	_, ok := s.symptomIdx[Normalize(name)]
	return ok
}

// Disease looks a disease up by name.
func (s Snapshot) Disease(name string) (Disease, bool) {
	i, ok := s.diseaseIdx[Normalize(name)]
	if !ok {
		return Disease{}, false
	}
	return s.Diseases[i], true
}

// Empty reports whether the snapshot has no symptoms or no diseases.
func (s Snapshot) Empty() bool {
	return len(s.Symptoms) == 0 || len(s.Diseases) == 0
}

// Fingerprint hashes the catalog content that determines vector layout and
// labels. Symptom order is significant; disease symptom order is not.
func (s Snapshot) Fingerprint() string {
	h := xxhash.New()
	for _, sym := range s.Symptoms {
		_, _ = h.WriteString("s\x00")
		_, _ = h.WriteString(Normalize(sym.Name))
		_, _ = h.WriteString("\x00")
	}
	for _, d := range s.Diseases {
		_, _ = h.WriteString("d\x00")
		_, _ = h.WriteString(d.Name)
		_, _ = h.WriteString("\x00")
		syms := NormalizeAll(d.Symptoms)
		sort.Strings(syms)
		for _, n := range syms {
			_, _ = h.WriteString(n)
			_, _ = h.WriteString("\x01")
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
