package distances

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsgo/core/parallel"
)

// MinDist is the symbolic lower bound on the Euclidean distance between the
// series two words were derived from. Letters whose symbols differ by at
// most one contribute nothing; otherwise the squared gap between the inner
// breakpoints of the two cells is added. The factor of two accounts for the
// mirrored negative-frequency coefficients of a real-valued transform.
//
// The breakpoints matrix is the fitted per-letter row of cut points, with
// the trailing +Inf sentinel; only interior breakpoints are ever indexed
// because a gap of at least two cells is required.
func MinDist(x, y []int, breakpoints *mat.Dense) float64 {
	var dist float64
	for i := range x {
		xi, yi := x[i], y[i]
		if xi > yi {
			xi, yi = yi, xi
		}
		if yi-xi <= 1 {
			continue
		}
		gap := breakpoints.At(i, yi-1) - breakpoints.At(i, xi)
		dist += gap * gap
	}
	return math.Sqrt(2 * dist)
}

// PairwiseMinDist computes the symmetric lower-bound matrix between two sets
// of symbol sequences.
func PairwiseMinDist(X, Y [][]int, breakpoints *mat.Dense) *mat.Dense {
	D := mat.NewDense(len(X), len(Y), nil)

	parallel.Parallelize(len(X), func(start, stop int) {
		for i := start; i < stop; i++ {
			row := D.RawRowView(i)
			for j := range Y {
				row[j] = MinDist(X[i], Y[j], breakpoints)
			}
		}
	})

	return D
}
