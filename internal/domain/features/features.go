// Package features encodes symptom sets as fixed-length binary vectors
// aligned to a symptom ordering.
package features

import "github.com/okian/medixpert/internal/domain/catalog"

// Vector is a binary feature vector; position i is 1 iff symptom i is present.
type Vector []float64

// Active returns the number of set positions.
func (v Vector) Active() int {
	n := 0
	for _, x := range v {
		if x != 0 {
			n++
		}
	}
	return n
}

// Encoder maps symptom names onto vector positions. It is immutable after
// construction and safe for concurrent use.
type Encoder struct {
	names []string
	index map[string]int
}

// NewEncoder builds an encoder for the given ordering. Repeated names after
// normalization keep their first position.
func NewEncoder(names []string) *Encoder {
	e := &Encoder{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		k := catalog.Normalize(n)
		if _, ok := e.index[k]; !ok {
			e.index[k] = i
		}
	}
	return e
}

// Len is the vector length.
func (e *Encoder) Len() int { return len(e.names) }

// Names returns a copy of the ordering.
func (e *Encoder) Names() []string { return append([]string(nil), e.names...) }

// Encode sets the position of every known symptom. Unknown names are ignored.
func (e *Encoder) Encode(symptoms []string) Vector {
	v := make(Vector, len(e.names))
	for _, s := range symptoms {
		if i, ok := e.index[catalog.Normalize(s)]; ok {
			v[i] = 1
		}
	}
	return v
}

// Decode returns the names at set positions, in encoder order.
func (e *Encoder) Decode(v Vector) []string {
	var out []string
	for i, x := range v {
		if x != 0 && i < len(e.names) {
			out = append(out, e.names[i])
		}
	}
	return out
}

// Known returns the normalized input names the encoder recognises,
// deduplicated in first-seen order.
func (e *Encoder) Known(symptoms []string) []string {
	var out []string
	for _, s := range catalog.NormalizeAll(symptoms) {
		if _, ok := e.index[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
