// Package goconv holds the value plumbing shared by the embedded script
// runtimes: it maps tagged MEL results onto plain Go values (vectors become
// float slices, matrices nested float slices) and dispatches plain Go values
// onto the right option-variable write form. Argument conversion in the other
// direction stays with each runtime's own converters.
package goconv

import "github.com/melport/melport/mel"

// FromResult flattens a tagged result into plain Go data.
func FromResult(res *mel.Result) any {
	if res.IsNil() {
		return nil
	}
	switch v := res.Interface().(type) {
	case mel.Vector:
		return vectorToSlice(v)
	case []mel.Vector:
		out := make([][]float64, len(v))
		for i, vec := range v {
			out[i] = vectorToSlice(vec)
		}
		return out
	case mel.Matrix:
		return matrixToSlices(v)
	case []mel.Matrix:
		out := make([][][]float64, len(v))
		for i, m := range v {
			out[i] = matrixToSlices(m)
		}
		return out
	default:
		return v
	}
}

func vectorToSlice(v mel.Vector) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

func matrixToSlices(m mel.Matrix) [][]float64 {
	out := make([][]float64, 4)
	for i := range 4 {
		row := make([]float64, 4)
		copy(row, m[i][:])
		out[i] = row
	}
	return out
}
