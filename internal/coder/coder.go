// Package coder provides sparse coders that map encoded inputs onto sparse
// sets of active columns.
package coder

import (
	"fmt"

	"sdrprobe/internal/sdr"
)

// SparseCoder maps an encoded input to its active columns. With learn set the
// coder may adapt its internal state.
type SparseCoder interface {
	Compute(input []bool, learn bool) (sdr.SparseCode, error)
}

// StabilityFunc receives the coder's own judgement of whether its output has
// settled. seenInputs is the number of distinct patterns observed so far and
// presentation the count of learning presentations at the time of the change.
type StabilityFunc func(stable bool, seenInputs, presentation int)

const (
	KindPooler   = "pooler"
	KindIdentity = "identity"
)

func NewCoder(kind string, cfg Config, onStability StabilityFunc) (SparseCoder, error) {
	switch kind {
	case "", KindPooler:
		return NewSpatialPooler(cfg, onStability)
	case KindIdentity:
		return NewIdentity(cfg.InputWidth, cfg.StableCycles, onStability), nil
	default:
		return nil, fmt.Errorf("unsupported coder: %s", kind)
	}
}

// Identity passes the encoder's active bits through unchanged. It is a
// baseline: its output can never drift, so the oracle settles after
// StableCycles presentations of each pattern.
type Identity struct {
	width       int
	homeostasis *Homeostasis
}

func NewIdentity(width, stableCycles int, onStability StabilityFunc) *Identity {
	return &Identity{width: width, homeostasis: NewHomeostasis(stableCycles, onStability)}
}

func (c *Identity) Compute(input []bool, learn bool) (sdr.SparseCode, error) {
	if c.width > 0 && len(input) != c.width {
		return nil, fmt.Errorf("input width mismatch: got=%d want=%d", len(input), c.width)
	}
	code := sdr.FromBits(input)
	if learn {
		c.homeostasis.Observe(input, code)
	}
	return code, nil
}
