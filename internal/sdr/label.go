package sdr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const labelPrecision = 2

var (
	ErrInvalidLabel   = errors.New("invalid label")
	ErrAmbiguousLabel = errors.New("ambiguous label")
)

// FormatLabel serializes an input value with fixed precision so equal inputs
// always map to the same memory label.
func FormatLabel(value float64) string {
	label := strconv.FormatFloat(value, 'f', labelPrecision, 64)
	if label == "-0.00" {
		return "0.00"
	}
	return label
}

func ParseLabel(label string) (float64, error) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidLabel)
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return value, nil
}

// CheckLabels reports the first input whose label would not identify it: a
// value that does not parse back from its label, or two values sharing one
// label.
func CheckLabels(values []float64) error {
	seen := make(map[string]float64, len(values))
	for _, value := range values {
		label := FormatLabel(value)
		parsed, err := ParseLabel(label)
		if err != nil {
			return fmt.Errorf("%w: %g: %v", ErrAmbiguousLabel, value, err)
		}
		if parsed != value {
			return fmt.Errorf("%w: %g is not representable with %d decimals (label %s)", ErrAmbiguousLabel, value, labelPrecision, label)
		}
		if prev, ok := seen[label]; ok {
			return fmt.Errorf("%w: %g and %g both map to %s", ErrAmbiguousLabel, prev, value, label)
		}
		seen[label] = value
	}
	return nil
}
