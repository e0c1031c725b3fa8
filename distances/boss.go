// Package distances provides the histogram and symbolic distances used by
// dictionary classifiers: the asymmetric BOSS distance, histogram
// intersection similarity and the Fourier lower-bound distance.
package distances

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsgo/core/parallel"
)

// BossDistance is the asymmetric squared distance between two histogram
// rows: only columns where the first histogram is non-zero contribute.
// Expanded as ||x||^2 - 2<x,y> + ||y||^2 restricted to x's support, clamped
// at zero against floating-point drift.
func BossDistance(x, y []float64) float64 {
	var d float64
	for i, xv := range x {
		if xv > 0 {
			diff := xv - y[i]
			d += diff * diff
		}
	}
	return d
}

// EuclideanDistance is the symmetric squared distance over all columns, the
// fallback when the asymmetric variant is disabled.
func EuclideanDistance(x, y []float64) float64 {
	var d float64
	for i, xv := range x {
		diff := xv - y[i]
		d += diff * diff
	}
	return d
}

// PairwiseSelf computes the all-pairs distance matrix of X against itself
// with +Inf on the diagonal, so a nearest-neighbour scan never matches a
// case to itself. Rows are computed in parallel.
func PairwiseSelf(X *mat.Dense, boss bool) *mat.Dense {
	n, _ := X.Dims()
	D := mat.NewDense(n, n, nil)

	parallel.Parallelize(n, func(start, stop int) {
		for i := start; i < stop; i++ {
			xi := X.RawRowView(i)
			row := D.RawRowView(i)
			for j := 0; j < n; j++ {
				if i == j {
					row[j] = math.Inf(1)
					continue
				}
				if boss {
					row[j] = BossDistance(xi, X.RawRowView(j))
				} else {
					row[j] = EuclideanDistance(xi, X.RawRowView(j))
				}
			}
		}
	})

	return D
}

// Pairwise computes the distance matrix between the rows of X and the rows
// of Y. With the asymmetric variant the first argument supplies the support.
func Pairwise(X, Y *mat.Dense, boss bool) *mat.Dense {
	n, _ := X.Dims()
	m, _ := Y.Dims()
	D := mat.NewDense(n, m, nil)

	parallel.Parallelize(n, func(start, stop int) {
		for i := start; i < stop; i++ {
			xi := X.RawRowView(i)
			row := D.RawRowView(i)
			for j := 0; j < m; j++ {
				if boss {
					row[j] = BossDistance(xi, Y.RawRowView(j))
				} else {
					row[j] = EuclideanDistance(xi, Y.RawRowView(j))
				}
			}
		}
	})

	return D
}
