package preprocessing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsgo/core/model"
	"github.com/YuminosukeSato/tsgo/pkg/errors"
)

// Discretization strategies supported by KBinsDiscretizer.
const (
	StrategyUniform  = "uniform"
	StrategyQuantile = "quantile"
	StrategyKMeans   = "kmeans"
)

// KBinsDiscretizer bins continuous features into discrete intervals,
// independently per feature.
type KBinsDiscretizer struct {
	model.BaseEstimator

	// NBins is the number of bins per feature.
	NBins int

	// Strategy is one of "uniform", "quantile" or "kmeans".
	Strategy string

	// BinEdges holds, per feature, NBins+1 ascending edges including the
	// feature minimum and maximum.
	BinEdges [][]float64

	// MaxIter bounds the 1-D k-means refinement per feature.
	MaxIter int
}

// NewKBinsDiscretizer creates a KBinsDiscretizer.
func NewKBinsDiscretizer(nBins int, strategy string) *KBinsDiscretizer {
	return &KBinsDiscretizer{
		NBins:    nBins,
		Strategy: strategy,
		MaxIter:  100,
	}
}

// Fit learns the bin edges for each feature column of X.
func (k *KBinsDiscretizer) Fit(X mat.Matrix) error {
	if k.NBins < 2 {
		return errors.NewValidationError("n_bins", "must be at least 2", k.NBins)
	}
	switch k.Strategy {
	case StrategyUniform, StrategyQuantile, StrategyKMeans:
	default:
		return errors.NewValidationError("strategy", "must be one of uniform, quantile, kmeans", k.Strategy)
	}

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.ErrEmptyData
	}

	k.BinEdges = make([][]float64, cols)
	column := make([]float64, rows)

	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			column[i] = X.At(i, j)
		}

		switch k.Strategy {
		case StrategyUniform:
			k.BinEdges[j] = uniformEdges(column, k.NBins)
		case StrategyQuantile:
			k.BinEdges[j] = quantileEdges(column, k.NBins)
		case StrategyKMeans:
			k.BinEdges[j] = k.kmeansEdges(column)
		}
	}

	k.SetFitted()
	return nil
}

// Transform maps each value to its bin ordinal in [0, NBins).
func (k *KBinsDiscretizer) Transform(X mat.Matrix) (*mat.Dense, error) {
	if !k.IsFitted() {
		return nil, errors.NewNotFittedError("KBinsDiscretizer", "Transform")
	}

	rows, cols := X.Dims()
	if cols != len(k.BinEdges) {
		return nil, errors.NewDimensionError("KBinsDiscretizer.Transform", len(k.BinEdges), cols, 1)
	}

	out := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		edges := k.BinEdges[j]
		for i := 0; i < rows; i++ {
			v := X.At(i, j)
			// interior edges only; values outside the fitted range clip
			bin := sort.SearchFloat64s(edges[1:len(edges)-1], v)
			out.Set(i, j, float64(bin))
		}
	}

	return out, nil
}

// FitTransform fits the discretizer and transforms X in one call.
func (k *KBinsDiscretizer) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := k.Fit(X); err != nil {
		return nil, err
	}
	return k.Transform(X)
}

func uniformEdges(column []float64, nBins int) []float64 {
	lo, hi := column[0], column[0]
	for _, v := range column {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	edges := make([]float64, nBins+1)
	width := (hi - lo) / float64(nBins)
	for b := 0; b <= nBins; b++ {
		edges[b] = lo + float64(b)*width
	}
	edges[nBins] = hi
	return edges
}

func quantileEdges(column []float64, nBins int) []float64 {
	sorted := make([]float64, len(column))
	copy(sorted, column)
	sort.Float64s(sorted)

	edges := make([]float64, nBins+1)
	edges[0] = sorted[0]
	edges[nBins] = sorted[len(sorted)-1]
	for b := 1; b < nBins; b++ {
		// linear interpolation between closest ranks
		pos := float64(b) / float64(nBins) * float64(len(sorted)-1)
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		frac := pos - float64(lo)
		edges[b] = sorted[lo]*(1-frac) + sorted[hi]*frac
	}
	return edges
}

// kmeansEdges runs 1-D Lloyd iterations initialized from uniform centers and
// places edges at the midpoints between adjacent centers.
func (k *KBinsDiscretizer) kmeansEdges(column []float64) []float64 {
	sorted := make([]float64, len(column))
	copy(sorted, column)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]

	centers := make([]float64, k.NBins)
	for c := 0; c < k.NBins; c++ {
		centers[c] = lo + (float64(c)+0.5)*(hi-lo)/float64(k.NBins)
	}

	sums := make([]float64, k.NBins)
	counts := make([]int, k.NBins)

	for iter := 0; iter < k.MaxIter; iter++ {
		for c := range sums {
			sums[c] = 0
			counts[c] = 0
		}

		// data is sorted, so assignments advance monotonically
		c := 0
		for _, v := range sorted {
			for c < k.NBins-1 && math.Abs(v-centers[c+1]) < math.Abs(v-centers[c]) {
				c++
			}
			sums[c] += v
			counts[c]++
		}

		moved := 0.0
		for c := 0; c < k.NBins; c++ {
			if counts[c] == 0 {
				continue
			}
			next := sums[c] / float64(counts[c])
			moved += math.Abs(next - centers[c])
			centers[c] = next
		}
		if moved == 0 {
			break
		}
	}

	sort.Float64s(centers)

	edges := make([]float64, k.NBins+1)
	edges[0] = lo
	edges[k.NBins] = hi
	for c := 1; c < k.NBins; c++ {
		edges[c] = (centers[c-1] + centers[c]) / 2
	}
	return edges
}
