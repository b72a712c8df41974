// Package memory implements pattern memories that learn which label a sparse
// code belongs to and reconstruct the label from a code at query time.
//
// Similarities are reported in [0,1]; higher means a better match and result
// slices are ordered best first.
package memory

import (
	"errors"
	"fmt"

	"sdrprobe/internal/model"
	"sdrprobe/internal/sdr"
)

var ErrEmptyLabel = errors.New("label is required")

const (
	NameKNN = "knn"
	NameHTM = "htm"
)

type Prediction struct {
	Label      string  `json:"label"`
	Similarity float64 `json:"similarity"`
}

type Matcher interface {
	Name() string
	Learn(label string, code sdr.SparseCode) error
	Query(code sdr.SparseCode) []Prediction
	ClearState()
	Snapshot() model.PatternMemorySnapshot
}

// NewMatcher builds a registered matcher by name. neighbours only applies to
// knn.
func NewMatcher(name string, neighbours int) (Matcher, error) {
	return ResolveMatcher(name, neighbours)
}

func NewMatchers(names []string, neighbours int) ([]Matcher, error) {
	if len(names) == 0 {
		names = []string{NameKNN, NameHTM}
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]Matcher, 0, len(names))
	for _, name := range names {
		name = NormalizeName(name)
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("duplicate matcher: %s", name)
		}
		seen[name] = struct{}{}
		m, err := NewMatcher(name, neighbours)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// labelOrder remembers the order in which labels were first learned; it is the
// tie-break for equal scores.
type labelOrder struct {
	rank   map[string]int
	labels []string
}

func newLabelOrder() labelOrder {
	return labelOrder{rank: make(map[string]int)}
}

func (o *labelOrder) add(label string) int {
	if r, ok := o.rank[label]; ok {
		return r
	}
	r := len(o.labels)
	o.rank[label] = r
	o.labels = append(o.labels, label)
	return r
}
