package coder

import "sdrprobe/internal/sdr"

const defaultStableCycles = 3

type patternState struct {
	last   sdr.SparseCode
	streak int
}

// Homeostasis watches every distinct input pattern presented while learning
// and reports when all of them have produced an unchanged output for
// StableCycles consecutive presentations. Only transitions are reported.
type Homeostasis struct {
	StableCycles int

	onChange      StabilityFunc
	patterns      map[string]*patternState
	presentations int
	stable        bool
}

func NewHomeostasis(stableCycles int, onChange StabilityFunc) *Homeostasis {
	if stableCycles <= 0 {
		stableCycles = defaultStableCycles
	}
	return &Homeostasis{
		StableCycles: stableCycles,
		onChange:     onChange,
		patterns:     make(map[string]*patternState),
	}
}

func (h *Homeostasis) Observe(input []bool, output sdr.SparseCode) {
	h.presentations++
	key := sdr.FromBits(input).Key()
	state, ok := h.patterns[key]
	if !ok {
		state = &patternState{}
		h.patterns[key] = state
	}
	if ok && state.last.Equal(output) {
		state.streak++
	} else {
		state.streak = 0
	}
	state.last = output.Clone()

	stable := h.allSettled()
	if stable == h.stable {
		return
	}
	h.stable = stable
	if h.onChange != nil {
		h.onChange(stable, len(h.patterns), h.presentations)
	}
}

func (h *Homeostasis) Stable() bool {
	return h.stable
}

func (h *Homeostasis) allSettled() bool {
	if len(h.patterns) == 0 {
		return false
	}
	for _, state := range h.patterns {
		if state.streak < h.StableCycles {
			return false
		}
	}
	return true
}
