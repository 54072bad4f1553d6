package store

import "math"

// Cosine returns the cosine similarity of two vectors in [-1, 1].
// Mismatched lengths or a zero-norm operand yield 0.0 rather than an
// error, so unembedded or malformed chunks simply never rank.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
