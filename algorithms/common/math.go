package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Vector helpers shared by the chroma front-end and the tonal core, backed by gonum.

// Sum returns the sum of all values.
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Sum(data)
}

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Dot returns the dot product of two equal-length vectors, 0 if the lengths differ.
func Dot(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	return floats.Dot(a, b)
}

// Norm returns the Euclidean norm.
func Norm(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, 2)
}

// L1Normalize returns a copy of data scaled to unit sum. A zero-sum input is
// returned as an all-zero copy. Values are first divided by their maximum so
// the sum neither overflows nor underflows for extreme finite inputs.
func L1Normalize(data []float64) []float64 {
	normalized := make([]float64, len(data))
	if len(data) == 0 {
		return normalized
	}

	peak := floats.Max(data)
	if !(peak > 0) || math.IsInf(peak, 1) {
		return normalized
	}
	for i, v := range data {
		normalized[i] = v / peak
	}

	floats.Scale(1.0/floats.Sum(normalized), normalized)
	return normalized
}

// CosineSimilarity returns the cosine of the angle between a and b, 0 when either is zero.
func CosineSimilarity(a, b []float64) float64 {
	na, nb := Norm(a), Norm(b)
	if na < 1e-12 || nb < 1e-12 {
		return 0.0
	}
	return Dot(a, b) / (na * nb)
}

// Correlation returns the Pearson correlation of a and b, 0 when either is constant.
func Correlation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0.0
	}
	if stat.StdDev(a, nil) < 1e-12 || stat.StdDev(b, nil) < 1e-12 {
		return 0.0
	}
	return stat.Correlation(a, b, nil)
}

// Clamp01 limits v to [0, 1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0.0
	}
	if v > 1 {
		return 1.0
	}
	return v
}
