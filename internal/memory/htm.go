package memory

import (
	"sort"
	"sync"

	"sdrprobe/internal/model"
	"sdrprobe/internal/sdr"
)

// HTM is a vote matcher over a sparse co-occurrence table: every learned
// active index adds one vote to the label it was learned with. A label's score
// is its vote divided by max(total learned weight, learns*|query|), which
// reduces to sdr.Similarity for a label learned once.
type HTM struct {
	mu     sync.RWMutex
	table  map[int]map[string]float64
	totals map[string]float64
	learns map[string]int
	order  labelOrder
}

func NewHTM() *HTM {
	m := &HTM{}
	m.reset()
	return m
}

func (m *HTM) Name() string {
	return NameHTM
}

func (m *HTM) Learn(label string, code sdr.SparseCode) error {
	if label == "" {
		return ErrEmptyLabel
	}
	code = code.Canonical()
	if code.Len() == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order.add(label)
	for _, idx := range code {
		votes, ok := m.table[idx]
		if !ok {
			votes = make(map[string]float64)
			m.table[idx] = votes
		}
		votes[label]++
	}
	m.totals[label] += float64(code.Len())
	m.learns[label]++
	return nil
}

func (m *HTM) Query(code sdr.SparseCode) []Prediction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	code = code.Canonical()
	votes := make(map[string]float64)
	for _, idx := range code {
		for label, count := range m.table[idx] {
			votes[label] += count
		}
	}
	if len(votes) == 0 {
		return []Prediction{}
	}

	out := make([]Prediction, 0, len(votes))
	for _, label := range m.order.labels {
		vote, ok := votes[label]
		if !ok || vote == 0 {
			continue
		}
		norm := m.totals[label]
		if alt := float64(m.learns[label] * code.Len()); alt > norm {
			norm = alt
		}
		out = append(out, Prediction{Label: label, Similarity: vote / norm})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	return out
}

func (m *HTM) ClearState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *HTM) Snapshot() model.PatternMemorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := model.PatternMemorySnapshot{
		Matcher: NameHTM,
		Labels:  append([]string(nil), m.order.labels...),
	}
	indices := make([]int, 0, len(m.table))
	for idx := range m.table {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		for _, label := range m.order.labels {
			count, ok := m.table[idx][label]
			if !ok {
				continue
			}
			snap.Votes = append(snap.Votes, model.VoteEntry{Index: idx, Label: label, Count: count})
		}
	}
	return snap
}

func (m *HTM) reset() {
	m.table = make(map[int]map[string]float64)
	m.totals = make(map[string]float64)
	m.learns = make(map[string]int)
	m.order = newLabelOrder()
}
