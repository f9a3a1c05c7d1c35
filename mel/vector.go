package mel

import (
	"fmt"
	"strconv"
	"strings"
)

// Vector is the Go analog of the host's 3-component vector result type.
type Vector struct {
	X, Y, Z float64
}

// String renders the vector as a MEL vector literal.
func (v Vector) String() string {
	return fmt.Sprintf("<<%s, %s, %s>>",
		formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z))
}

// Matrix is the Go analog of the host's 4x4 matrix result type,
// row-major.
type Matrix [4][4]float64

// Values returns the 16 matrix components in row-major order.
func (m Matrix) Values() []float64 {
	out := make([]float64, 0, 16)
	for _, row := range m {
		out = append(out, row[:]...)
	}
	return out
}

// MatrixFromValues builds a Matrix from 16 row-major components.
func MatrixFromValues(vals []float64) (Matrix, error) {
	var m Matrix
	if len(vals) != 16 {
		return m, fmt.Errorf("matrix needs 16 components, got %d", len(vals))
	}
	for i := range 4 {
		copy(m[i][:], vals[i*4:i*4+4])
	}
	return m, nil
}

func (m Matrix) String() string {
	parts := make([]string, 0, 16)
	for _, f := range m.Values() {
		parts = append(parts, formatFloat(f))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// formatFloat renders a float the way command text needs it: shortest
// decimal form that round-trips, so identical inputs always produce
// byte-identical command strings.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
