// Package encoder turns scalar inputs into fixed-width bit vectors.
package encoder

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var ErrOutOfRange = errors.New("value outside encoder range")

type Encoder interface {
	Encode(value float64) ([]bool, error)
	Width() int
}

// ScalarEncoder activates a contiguous block of W bits out of N, positioned by
// the value's offset within [MinVal, MaxVal].
type ScalarEncoder struct {
	N      int
	W      int
	MinVal float64
	MaxVal float64
}

func NewScalarEncoder(n, w int, minVal, maxVal float64) (*ScalarEncoder, error) {
	e := &ScalarEncoder{N: n, W: w, MinVal: minVal, MaxVal: maxVal}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *ScalarEncoder) Validate() error {
	if e.W <= 0 {
		return fmt.Errorf("active bits must be > 0, got %d", e.W)
	}
	if e.N <= e.W {
		return fmt.Errorf("width must exceed active bits: n=%d w=%d", e.N, e.W)
	}
	if !(e.MaxVal > e.MinVal) {
		return fmt.Errorf("max value must exceed min value: min=%g max=%g", e.MinVal, e.MaxVal)
	}
	return nil
}

func (e *ScalarEncoder) Width() int {
	return e.N
}

func (e *ScalarEncoder) Encode(value float64) ([]bool, error) {
	if math.IsNaN(value) || value < e.MinVal || value > e.MaxVal {
		return nil, fmt.Errorf("%w: %g not in [%g, %g]", ErrOutOfRange, value, e.MinVal, e.MaxVal)
	}
	start := e.startBit(value)
	bits := make([]bool, e.N)
	for i := start; i < start+e.W; i++ {
		bits[i] = true
	}
	return bits, nil
}

func (e *ScalarEncoder) startBit(value float64) int {
	span := float64(e.N - e.W)
	start := int(math.Round((value - e.MinVal) / (e.MaxVal - e.MinVal) * span))
	if start < 0 {
		return 0
	}
	if start > e.N-e.W {
		return e.N - e.W
	}
	return start
}

// NoisyEncoder degrades another encoder's output by relocating each active bit
// to a random inactive position with probability Level.
type NoisyEncoder struct {
	Base  Encoder
	Level float64
	Rand  *rand.Rand
}

func NewNoisyEncoder(base Encoder, level float64, seed int64) (*NoisyEncoder, error) {
	if base == nil {
		return nil, errors.New("base encoder is required")
	}
	if level < 0 || level > 1 {
		return nil, fmt.Errorf("noise level must be in [0,1], got %g", level)
	}
	return &NoisyEncoder{Base: base, Level: level, Rand: rand.New(rand.NewSource(seed))}, nil
}

func (e *NoisyEncoder) Width() int {
	return e.Base.Width()
}

func (e *NoisyEncoder) Encode(value float64) ([]bool, error) {
	bits, err := e.Base.Encode(value)
	if err != nil {
		return nil, err
	}
	if e.Level == 0 {
		return bits, nil
	}
	active := make([]int, 0, len(bits))
	inactive := make([]int, 0, len(bits))
	for i, on := range bits {
		if on {
			active = append(active, i)
		} else {
			inactive = append(inactive, i)
		}
	}
	for _, idx := range active {
		if len(inactive) == 0 {
			break
		}
		if e.Rand.Float64() >= e.Level {
			continue
		}
		pick := e.Rand.Intn(len(inactive))
		target := inactive[pick]
		bits[idx] = false
		bits[target] = true
		inactive[pick] = idx
	}
	return bits, nil
}
