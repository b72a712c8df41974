package stats

import (
	"fmt"
	"math"
)

// Avg returns the arithmetic mean of values.
func Avg(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("values must not be empty")
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values)), nil
}

// Std returns population standard deviation.
func Std(values []float64) (float64, error) {
	mean, err := Avg(values)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, value := range values {
		diff := mean - value
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values))), nil
}

func Max(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("values must not be empty")
	}
	best := values[0]
	for _, value := range values[1:] {
		if value > best {
			best = value
		}
	}
	return best, nil
}

// Cosine returns the cosine similarity of two equal-length vectors. A zero
// vector yields 0.
func Cosine(vector1, vector2 []float64) (float64, error) {
	if len(vector1) != len(vector2) {
		return 0, fmt.Errorf("vector length mismatch: %d != %d", len(vector1), len(vector2))
	}
	dot, norm1, norm2 := 0.0, 0.0, 0.0
	for i := range vector1 {
		dot += vector1[i] * vector2[i]
		norm1 += vector1[i] * vector1[i]
		norm2 += vector2[i] * vector2[i]
	}
	if norm1 == 0 || norm2 == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(norm1) * math.Sqrt(norm2)), nil
}
