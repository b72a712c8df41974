package memory

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"sdrprobe/internal/sdr"
)

// blockCode returns a width-wide block of indices starting at start.
func blockCode(start, width int) sdr.SparseCode {
	code := make(sdr.SparseCode, 0, width)
	for i := start; i < start+width; i++ {
		code = append(code, i)
	}
	return code
}

func allMatchers() []Matcher {
	return []Matcher{NewKNN(0), NewHTM()}
}

func learnFiveInputs(t *testing.T, m Matcher) map[string]sdr.SparseCode {
	t.Helper()
	codes := make(map[string]sdr.SparseCode, 5)
	for i := 0; i < 5; i++ {
		label := sdr.FormatLabel(float64(i))
		// consecutive inputs share two indices, distant ones share none
		code := blockCode(i*8, 10)
		codes[label] = code
		if err := m.Learn(label, code); err != nil {
			t.Fatalf("%s learn %s: %v", m.Name(), label, err)
		}
	}
	return codes
}

func TestMatchersReconstructLearnedInput(t *testing.T) {
	for _, m := range allMatchers() {
		codes := learnFiveInputs(t, m)

		results := m.Query(codes["2.00"])
		if len(results) == 0 {
			t.Fatalf("%s: expected predictions", m.Name())
		}
		if results[0].Label != "2.00" || results[0].Similarity != 1 {
			t.Fatalf("%s: unexpected top prediction: %+v", m.Name(), results[0])
		}
		for i := 1; i < len(results); i++ {
			if results[i].Similarity > results[i-1].Similarity {
				t.Fatalf("%s: results not ordered: %+v", m.Name(), results)
			}
			if results[i].Similarity < 0 || results[i].Similarity > 1 {
				t.Fatalf("%s: similarity out of range: %+v", m.Name(), results[i])
			}
		}

		own := results[0].Similarity
		for _, other := range []string{"0.00", "4.00"} {
			for _, r := range m.Query(codes[other]) {
				if r.Label == "2.00" && r.Similarity >= own {
					t.Fatalf("%s: query with %s scored 2.00 at %f >= %f", m.Name(), other, r.Similarity, own)
				}
			}
		}
	}
}

func TestMatchersClearStateIsIdempotent(t *testing.T) {
	for _, m := range allMatchers() {
		if got := m.Query(blockCode(0, 4)); len(got) != 0 {
			t.Fatalf("%s: untrained query should be empty, got %+v", m.Name(), got)
		}
		codes := learnFiveInputs(t, m)
		m.ClearState()
		m.ClearState()
		got := m.Query(codes["1.00"])
		if got == nil || len(got) != 0 {
			t.Fatalf("%s: expected empty non-nil result after clear, got %#v", m.Name(), got)
		}
		if snap := m.Snapshot(); len(snap.Labels) != 0 || len(snap.Entries) != 0 || len(snap.Votes) != 0 {
			t.Fatalf("%s: snapshot not cleared: %+v", m.Name(), snap)
		}
	}
}

func TestMatchersDeterministicLearn(t *testing.T) {
	for _, name := range []string{NameKNN, NameHTM} {
		a, _ := NewMatcher(name, 0)
		b, _ := NewMatcher(name, 0)
		learnFiveInputs(t, a)
		learnFiveInputs(t, b)
		if !reflect.DeepEqual(a.Snapshot(), b.Snapshot()) {
			t.Fatalf("%s: identical learn phases diverged", name)
		}
	}
}

func TestMatchersRejectEmptyLabel(t *testing.T) {
	for _, m := range allMatchers() {
		if err := m.Learn("", blockCode(0, 3)); !errors.Is(err, ErrEmptyLabel) {
			t.Fatalf("%s: expected ErrEmptyLabel, got %v", m.Name(), err)
		}
	}
}

func TestKNNKeepsDuplicatesAndBreaksTiesByLearnOrder(t *testing.T) {
	m := NewKNN(0)
	_ = m.Learn("b", blockCode(0, 4))
	_ = m.Learn("a", blockCode(0, 4))
	_ = m.Learn("b", blockCode(20, 4))

	snap := m.Snapshot()
	if len(snap.Entries) != 3 || !reflect.DeepEqual(snap.Labels, []string{"b", "a"}) {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	results := m.Query(blockCode(0, 4))
	if len(results) != 2 || results[0].Label != "b" || results[1].Label != "a" {
		t.Fatalf("tie should keep learn order: %+v", results)
	}

	limited := NewKNN(1)
	_ = limited.Learn("x", blockCode(0, 4))
	_ = limited.Learn("y", blockCode(2, 4))
	if got := limited.Query(blockCode(2, 4)); len(got) != 1 || got[0].Label != "y" {
		t.Fatalf("expected single best neighbour, got %+v", got)
	}
}

func TestHTMIgnoresUnseenIndices(t *testing.T) {
	m := NewHTM()
	_ = m.Learn("1.00", blockCode(0, 5))
	_ = m.Learn("2.00", blockCode(3, 5))

	if got := m.Query(blockCode(100, 5)); len(got) != 0 {
		t.Fatalf("expected no votes for unseen indices, got %+v", got)
	}

	results := m.Query(sdr.MustSparseCode(3, 4, 100, 101, 102))
	if len(results) != 2 {
		t.Fatalf("expected two voted labels, got %+v", results)
	}
	for _, r := range results {
		if math.Abs(r.Similarity-0.4) > 1e-12 {
			t.Fatalf("unexpected normalized vote: %+v", r)
		}
	}
	if results[0].Label != "1.00" {
		t.Fatalf("equal votes should keep learn order: %+v", results)
	}
}

func TestHTMAccumulatesRepeatedLearns(t *testing.T) {
	m := NewHTM()
	_ = m.Learn("1.00", blockCode(0, 4))
	_ = m.Learn("1.00", blockCode(2, 4))

	results := m.Query(blockCode(0, 4))
	if len(results) != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}
	// votes: idx0=1 idx1=1 idx2=2 idx3=2 -> 6 of max(8, 2*4)
	if math.Abs(results[0].Similarity-0.75) > 1e-12 {
		t.Fatalf("unexpected accumulated similarity: %+v", results[0])
	}
	snap := m.Snapshot()
	if len(snap.Votes) != 6 || snap.Votes[2].Index != 2 || snap.Votes[2].Count != 2 {
		t.Fatalf("unexpected vote table: %+v", snap.Votes)
	}
}

func TestNewMatchers(t *testing.T) {
	ms, err := NewMatchers(nil, 3)
	if err != nil {
		t.Fatalf("default matchers: %v", err)
	}
	if len(ms) != 2 || ms[0].Name() != NameKNN || ms[1].Name() != NameHTM {
		t.Fatalf("unexpected default matchers: %v", ms)
	}
	if _, err := NewMatchers([]string{NameKNN, NameKNN}, 0); err == nil {
		t.Fatal("expected duplicate matcher error")
	}
	if _, err := NewMatcher("svm", 0); err == nil {
		t.Fatal("expected unsupported matcher error")
	}
}

func TestMatchersCanonicalizeUnsortedCodes(t *testing.T) {
	for _, m := range allMatchers() {
		if err := m.Learn("1.00", sdr.SparseCode{9, 2, 5, 5}); err != nil {
			t.Fatalf("%s learn: %v", m.Name(), err)
		}
		if err := m.Learn("2.00", sdr.SparseCode{40, 41, 42}); err != nil {
			t.Fatalf("%s learn: %v", m.Name(), err)
		}
		got := m.Query(sdr.SparseCode{5, 9, 2})
		if len(got) == 0 || got[0].Label != "1.00" || got[0].Similarity != 1 {
			t.Fatalf("%s: expected exact match for reordered code, got %+v", m.Name(), got)
		}
	}
}
