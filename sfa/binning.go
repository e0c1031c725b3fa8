package sfa

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsgo/pkg/errors"
	"github.com/YuminosukeSato/tsgo/preprocessing"
)

// BinningMethod selects how the per-coefficient breakpoints are learned.
type BinningMethod int

const (
	// EquiDepth places breakpoints at equal-frequency quantiles.
	EquiDepth BinningMethod = iota
	// EquiWidth places breakpoints at equal spacing over the value range.
	EquiWidth
	// InformationGain learns breakpoints from label entropy splits.
	InformationGain
	// InformationGainMAE learns breakpoints from absolute-deviation splits
	// against numeric targets.
	InformationGainMAE
	// KMeans places breakpoints at midpoints of 1-D cluster centers.
	KMeans
	// Quantile is equal-frequency binning via the shared discretizer.
	Quantile
)

func (m BinningMethod) String() string {
	switch m {
	case EquiDepth:
		return "equi-depth"
	case EquiWidth:
		return "equi-width"
	case InformationGain:
		return "information-gain"
	case InformationGainMAE:
		return "information-gain-mae"
	case KMeans:
		return "kmeans"
	case Quantile:
		return "quantile"
	}
	return "unknown"
}

// supervised reports whether the strategy needs class labels.
func (m BinningMethod) supervised() bool {
	return m == InformationGain || m == InformationGainMAE
}

// binning learns the (WordLengthActual x alphabetSize) breakpoint matrix
// from the pooled whole-series coefficients. When ANOVA or variance ranking
// is enabled the coefficient support is chosen here first, so that the
// breakpoints line up with the columns the sliding transform will emit.
func (s *SFA) binning(X [][]float64, y []int) (*mat.Dense, error) {
	dft := s.binningDFT(X)

	if s.Variance {
		s.Support = topVarianceColumns(dft, s.WordLengthActual)
		dft = pickColumns(dft, s.Support)
	} else if s.Anova {
		if y == nil {
			return nil, errors.NewValidationError("y", "anova coefficient selection requires class labels", nil)
		}
		labels := expandLabels(y, dft.RawMatrix().Rows/len(X))
		s.Support = topAnovaColumns(dft, labels, s.WordLengthActual)
		dft = pickColumns(dft, s.Support)
	}

	switch s.BinningMethod {
	case InformationGain, InformationGainMAE:
		if y == nil {
			return nil, errors.NewValidationError("y", "information-gain binning requires targets", nil)
		}
		targets := make([]float64, len(y))
		for i, v := range y {
			targets[i] = float64(v)
		}
		labels := expandFloatLabels(targets, dft.RawMatrix().Rows/len(X))
		return s.igBinning(dft, labels, s.BinningMethod == InformationGainMAE), nil
	case KMeans, Quantile:
		return s.discretizerBinning(dft)
	case EquiWidth:
		return s.equiWidthBinning(dft), nil
	default:
		return s.equiDepthBinning(dft), nil
	}
}

func expandLabels(y []int, repeat int) []int {
	out := make([]int, 0, len(y)*repeat)
	for _, v := range y {
		for r := 0; r < repeat; r++ {
			out = append(out, v)
		}
	}
	return out
}

func expandFloatLabels(y []float64, repeat int) []float64 {
	out := make([]float64, 0, len(y)*repeat)
	for _, v := range y {
		for r := 0; r < repeat; r++ {
			out = append(out, v)
		}
	}
	return out
}

func pickColumns(dft *mat.Dense, cols []int) *mat.Dense {
	rows, _ := dft.Dims()
	out := mat.NewDense(rows, len(cols), nil)
	for i := 0; i < rows; i++ {
		for k, c := range cols {
			out.Set(i, k, dft.At(i, c))
		}
	}
	return out
}

// topVarianceColumns ranks coefficient columns by sample variance and keeps
// the k largest, in original column order.
func topVarianceColumns(dft *mat.Dense, k int) []int {
	rows, cols := dft.Dims()
	scores := make([]float64, cols)
	for c := 0; c < cols; c++ {
		var sum, sq float64
		for r := 0; r < rows; r++ {
			v := dft.At(r, c)
			sum += v
			sq += v * v
		}
		n := float64(rows)
		mean := sum / n
		scores[c] = sq/n - mean*mean
	}
	return topKColumns(scores, k)
}

// topAnovaColumns ranks coefficient columns by the one-way ANOVA F statistic
// against the class labels and keeps the k largest, in original order.
func topAnovaColumns(dft *mat.Dense, y []int, k int) []int {
	rows, cols := dft.Dims()

	classes := map[int][]int{}
	for r, label := range y {
		classes[label] = append(classes[label], r)
	}
	nClasses := len(classes)

	scores := make([]float64, cols)
	for c := 0; c < cols; c++ {
		var grand float64
		for r := 0; r < rows; r++ {
			grand += dft.At(r, c)
		}
		grand /= float64(rows)

		var ssBetween, ssWithin float64
		for _, members := range classes {
			var sum float64
			for _, r := range members {
				sum += dft.At(r, c)
			}
			mean := sum / float64(len(members))
			ssBetween += float64(len(members)) * (mean - grand) * (mean - grand)
			for _, r := range members {
				d := dft.At(r, c) - mean
				ssWithin += d * d
			}
		}

		dfBetween := float64(nClasses - 1)
		dfWithin := float64(rows - nClasses)
		if dfBetween <= 0 || dfWithin <= 0 || ssWithin == 0 {
			scores[c] = 0
			continue
		}
		scores[c] = (ssBetween / dfBetween) / (ssWithin / dfWithin)
	}
	return topKColumns(scores, k)
}

func topKColumns(scores []float64, k int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if k > len(idx) {
		k = len(idx)
	}
	keep := append([]int(nil), idx[:k]...)
	sort.Ints(keep)
	return keep
}

// equiDepthBinning cuts each coefficient column at equal-frequency ranks.
// Values are rounded to two decimals before sorting so that near-ties land
// in the same bin. The final breakpoint is always the +Inf sentinel.
func (s *SFA) equiDepthBinning(dft *mat.Dense) *mat.Dense {
	rows, cols := dft.Dims()
	breakpoints := mat.NewDense(cols, s.AlphabetSize, nil)

	depth := float64(rows) / float64(s.AlphabetSize)
	column := make([]float64, rows)

	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			column[r] = math.Round(dft.At(r, c)*100) / 100
		}
		sort.Float64s(column)

		for bp := 0; bp < s.AlphabetSize-1; bp++ {
			breakpoints.Set(c, bp, column[int(depth*float64(bp+1))])
		}
		breakpoints.Set(c, s.AlphabetSize-1, math.Inf(1))
	}
	return breakpoints
}

// equiWidthBinning cuts each coefficient column into equally spaced
// intervals over its observed range.
func (s *SFA) equiWidthBinning(dft *mat.Dense) *mat.Dense {
	rows, cols := dft.Dims()
	breakpoints := mat.NewDense(cols, s.AlphabetSize, nil)

	for c := 0; c < cols; c++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for r := 0; r < rows; r++ {
			v := dft.At(r, c)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		width := (hi - lo) / float64(s.AlphabetSize)
		for bp := 0; bp < s.AlphabetSize-1; bp++ {
			breakpoints.Set(c, bp, lo+width*float64(bp+1))
		}
		breakpoints.Set(c, s.AlphabetSize-1, math.Inf(1))
	}
	return breakpoints
}

// discretizerBinning delegates to the shared k-bins discretizer for the
// kmeans and quantile strategies, then lifts its interior edges into the
// breakpoint matrix.
func (s *SFA) discretizerBinning(dft *mat.Dense) (*mat.Dense, error) {
	strategy := preprocessing.StrategyQuantile
	if s.BinningMethod == KMeans {
		strategy = preprocessing.StrategyKMeans
	}

	disc := preprocessing.NewKBinsDiscretizer(s.AlphabetSize, strategy)
	if err := disc.Fit(dft); err != nil {
		return nil, err
	}

	_, cols := dft.Dims()
	breakpoints := mat.NewDense(cols, s.AlphabetSize, nil)
	for c := 0; c < cols; c++ {
		edges := disc.BinEdges[c]
		// edges has nBins+1 entries; the interior ones become breakpoints
		for bp := 0; bp < s.AlphabetSize-1; bp++ {
			breakpoints.Set(c, bp, edges[bp+1])
		}
		breakpoints.Set(c, s.AlphabetSize-1, math.Inf(1))
	}
	return breakpoints, nil
}

// igBinning learns up to alphabetSize-1 thresholds per coefficient column
// with a small best-split tree, recursing to depth log2(alphabetSize). Any
// unfilled slots are padded with +Inf so every column has a full row.
func (s *SFA) igBinning(dft *mat.Dense, targets []float64, mae bool) *mat.Dense {
	rows, cols := dft.Dims()
	breakpoints := mat.NewDense(cols, s.AlphabetSize, nil)

	maxDepth := int(math.Log2(float64(s.AlphabetSize)))
	values := make([]float64, rows)
	labels := make([]float64, rows)

	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			values[r] = dft.At(r, c)
			labels[r] = targets[r]
		}
		sortByValue(values, labels)

		var thresholds []float64
		splitRecursive(values, labels, maxDepth, mae, &thresholds)
		sort.Float64s(thresholds)

		for bp := 0; bp < s.AlphabetSize; bp++ {
			if bp < len(thresholds) {
				breakpoints.Set(c, bp, thresholds[bp])
			} else {
				breakpoints.Set(c, bp, math.Inf(1))
			}
		}
	}
	return breakpoints
}

func sortByValue(values, labels []float64) {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	v2 := make([]float64, len(values))
	l2 := make([]float64, len(labels))
	for i, j := range idx {
		v2[i] = values[j]
		l2[i] = labels[j]
	}
	copy(values, v2)
	copy(labels, l2)
}

// splitRecursive finds the best threshold for the sorted segment and recurses
// into both halves until the depth budget is spent or no split improves the
// criterion.
func splitRecursive(values, labels []float64, depth int, mae bool, thresholds *[]float64) {
	if depth <= 0 || len(values) < 2 {
		return
	}

	bestPos := -1
	bestScore := math.Inf(1)
	parent := impurity(labels, mae)

	for i := 1; i < len(values); i++ {
		if values[i] == values[i-1] {
			continue
		}
		score := impurity(labels[:i], mae)*float64(i)/float64(len(labels)) +
			impurity(labels[i:], mae)*float64(len(labels)-i)/float64(len(labels))
		if score < bestScore {
			bestScore = score
			bestPos = i
		}
	}

	if bestPos < 0 || bestScore >= parent {
		return
	}

	*thresholds = append(*thresholds, values[bestPos-1])
	splitRecursive(values[:bestPos], labels[:bestPos], depth-1, mae, thresholds)
	splitRecursive(values[bestPos:], labels[bestPos:], depth-1, mae, thresholds)
}

// impurity is Shannon entropy over discrete targets, or mean absolute
// deviation from the median when mae is set.
func impurity(labels []float64, mae bool) float64 {
	if len(labels) == 0 {
		return 0
	}

	if mae {
		sorted := append([]float64(nil), labels...)
		sort.Float64s(sorted)
		median := sorted[len(sorted)/2]
		var sum float64
		for _, v := range labels {
			sum += math.Abs(v - median)
		}
		return sum / float64(len(labels))
	}

	counts := map[float64]int{}
	for _, v := range labels {
		counts[v]++
	}
	var entropy float64
	n := float64(len(labels))
	for _, c := range counts {
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}
