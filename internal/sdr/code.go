// Package sdr holds the sparse distributed representation primitives shared by
// the stability controller and the pattern memories.
package sdr

import (
	"fmt"
	"sort"
)

// SparseCode is an ordered set of active positions. The zero value is the
// empty code. Build codes with NewSparseCode or FromBits; hand-written
// literals that are unsorted or repeat an index are canonicalized by every
// function in this package before use.
type SparseCode []int

// NewSparseCode sorts and de-duplicates indices. Negative indices are rejected.
func NewSparseCode(indices ...int) (SparseCode, error) {
	code := make(SparseCode, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 {
			return nil, fmt.Errorf("negative sparse index: %d", idx)
		}
		code = append(code, idx)
	}
	sort.Ints(code)
	return dedupeSorted(code), nil
}

// MustSparseCode is NewSparseCode for literals known to be valid.
func MustSparseCode(indices ...int) SparseCode {
	code, err := NewSparseCode(indices...)
	if err != nil {
		panic(err)
	}
	return code
}

// FromBits returns the positions set in bits.
func FromBits(bits []bool) SparseCode {
	code := make(SparseCode, 0, len(bits)/8)
	for i, on := range bits {
		if on {
			code = append(code, i)
		}
	}
	return code
}

// Bits expands the code into a dense vector of the given width. Indices beyond
// width are dropped.
func (c SparseCode) Bits(width int) []bool {
	bits := make([]bool, width)
	for _, idx := range c {
		if idx < width {
			bits[idx] = true
		}
	}
	return bits
}

func (c SparseCode) Len() int {
	return len(c)
}

func (c SparseCode) Contains(idx int) bool {
	i := sort.SearchInts(c, idx)
	return i < len(c) && c[i] == idx
}

func (c SparseCode) Clone() SparseCode {
	if c == nil {
		return nil
	}
	return append(SparseCode(nil), c...)
}

func (c SparseCode) Equal(other SparseCode) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// Canonical returns c when it is strictly increasing and a sorted,
// de-duplicated copy otherwise.
func (c SparseCode) Canonical() SparseCode {
	for i := 1; i < len(c); i++ {
		if c[i] <= c[i-1] {
			out := append(SparseCode(nil), c...)
			sort.Ints(out)
			return dedupeSorted(out)
		}
	}
	return c
}

// Key is a compact string form usable as a map key.
func (c SparseCode) Key() string {
	return fmt.Sprint([]int(c))
}

// Overlap counts the indices present in both codes.
func Overlap(a, b SparseCode) int {
	a, b = a.Canonical(), b.Canonical()
	i, j, n := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}

// Similarity is the overlap normalized by the larger code. It is symmetric,
// lies in [0,1], equals 1 for identical non-empty codes and 0 whenever either
// code is empty.
func Similarity(a, b SparseCode) float64 {
	a, b = a.Canonical(), b.Canonical()
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return float64(Overlap(a, b)) / float64(larger)
}

func dedupeSorted(code SparseCode) SparseCode {
	if len(code) < 2 {
		return code
	}
	out := code[:1]
	for _, idx := range code[1:] {
		if idx != out[len(out)-1] {
			out = append(out, idx)
		}
	}
	return out
}
