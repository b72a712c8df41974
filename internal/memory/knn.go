package memory

import (
	"sort"
	"sync"

	"sdrprobe/internal/model"
	"sdrprobe/internal/sdr"
)

type knnEntry struct {
	label string
	code  sdr.SparseCode
}

// KNN keeps every learned code and ranks labels by the best similarity any of
// their stored codes reaches against the query. K > 0 limits the result to the
// K best labels.
type KNN struct {
	K int

	mu      sync.RWMutex
	entries []knnEntry
	order   labelOrder
}

func NewKNN(k int) *KNN {
	return &KNN{K: k, order: newLabelOrder()}
}

func (m *KNN) Name() string {
	return NameKNN
}

func (m *KNN) Learn(label string, code sdr.SparseCode) error {
	if label == "" {
		return ErrEmptyLabel
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order.add(label)
	m.entries = append(m.entries, knnEntry{label: label, code: code.Canonical().Clone()})
	return nil
}

func (m *KNN) Query(code sdr.SparseCode) []Prediction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return []Prediction{}
	}
	best := make(map[string]float64, len(m.order.labels))
	for _, entry := range m.entries {
		score := sdr.Similarity(code, entry.code)
		if prev, ok := best[entry.label]; !ok || score > prev {
			best[entry.label] = score
		}
	}

	out := make([]Prediction, 0, len(best))
	for _, label := range m.order.labels {
		out = append(out, Prediction{Label: label, Similarity: best[label]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if m.K > 0 && len(out) > m.K {
		out = out[:m.K]
	}
	return out
}

func (m *KNN) ClearState() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = nil
	m.order = newLabelOrder()
}

func (m *KNN) Snapshot() model.PatternMemorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := model.PatternMemorySnapshot{
		Matcher: NameKNN,
		Labels:  append([]string(nil), m.order.labels...),
		Entries: make([]model.PatternEntry, 0, len(m.entries)),
	}
	for _, entry := range m.entries {
		snap.Entries = append(snap.Entries, model.PatternEntry{
			Label: entry.label,
			Code:  append([]int(nil), entry.code...),
		})
	}
	return snap
}
