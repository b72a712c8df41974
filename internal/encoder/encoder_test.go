package encoder

import (
	"errors"
	"testing"
)

func countActive(bits []bool) int {
	n := 0
	for _, on := range bits {
		if on {
			n++
		}
	}
	return n
}

func firstActive(bits []bool) int {
	for i, on := range bits {
		if on {
			return i
		}
	}
	return -1
}

func TestScalarEncoderFixedActiveBitsAndMonotonic(t *testing.T) {
	enc, err := NewScalarEncoder(100, 21, 0, 4)
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	prev := -1
	for _, value := range []float64{0, 1, 2, 3, 4} {
		bits, err := enc.Encode(value)
		if err != nil {
			t.Fatalf("encode %v: %v", value, err)
		}
		if len(bits) != 100 {
			t.Fatalf("unexpected width: %d", len(bits))
		}
		if got := countActive(bits); got != 21 {
			t.Fatalf("value %v: expected 21 active bits, got %d", value, got)
		}
		start := firstActive(bits)
		if start <= prev {
			t.Fatalf("encoding not monotonic at %v: start=%d prev=%d", value, start, prev)
		}
		prev = start
	}
	if prev != 79 {
		t.Fatalf("max value should end at the last bit, start=%d", prev)
	}
}

func TestScalarEncoderOutOfRange(t *testing.T) {
	enc, err := NewScalarEncoder(50, 5, 0, 10)
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	if _, err := enc.Encode(10.5); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if _, err := enc.Encode(-0.1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestScalarEncoderValidate(t *testing.T) {
	if _, err := NewScalarEncoder(10, 10, 0, 1); err == nil {
		t.Fatal("expected n <= w error")
	}
	if _, err := NewScalarEncoder(10, 3, 1, 1); err == nil {
		t.Fatal("expected empty range error")
	}
}

func TestNoisyEncoderKeepsCardinality(t *testing.T) {
	base, err := NewScalarEncoder(100, 11, 0, 4)
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	noisy, err := NewNoisyEncoder(base, 1, 7)
	if err != nil {
		t.Fatalf("new noisy encoder: %v", err)
	}
	clean, _ := base.Encode(2)
	bits, err := noisy.Encode(2)
	if err != nil {
		t.Fatalf("noisy encode: %v", err)
	}
	if got := countActive(bits); got != 11 {
		t.Fatalf("expected 11 active bits, got %d", got)
	}
	same := true
	for i := range bits {
		if bits[i] != clean[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("full noise should change the encoding")
	}
	if _, err := noisy.Encode(5); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected base error to propagate, got %v", err)
	}
}

func TestNoisyEncoderZeroLevelIsPassthrough(t *testing.T) {
	base, _ := NewScalarEncoder(40, 5, 0, 1)
	noisy, err := NewNoisyEncoder(base, 0, 1)
	if err != nil {
		t.Fatalf("new noisy encoder: %v", err)
	}
	want, _ := base.Encode(0.5)
	got, err := noisy.Encode(0.5)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("bit %d differs", i)
		}
	}
	if _, err := NewNoisyEncoder(base, 1.5, 1); err == nil {
		t.Fatal("expected invalid level error")
	}
}
