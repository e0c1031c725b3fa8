package sfa

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsgo/core/model"
)

func syntheticSeries(n, length int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	for i := range X {
		X[i] = make([]float64, length)
		freq := 1.0 + float64(i%2)*2.0
		for t := range X[i] {
			X[i][t] = math.Sin(2*math.Pi*freq*float64(t)/float64(length)) +
				0.05*rng.NormFloat64()
		}
	}
	return X
}

func syntheticLabels(n int) []int {
	y := make([]int, n)
	for i := range y {
		y[i] = i % 2
	}
	return y
}

// directWindowCoefficients is the naive O(w^2) reference the incremental
// recursion must reproduce.
func directWindowCoefficients(s *SFA, window []float64) []float64 {
	offset := 0
	if s.Norm {
		offset = 2
	}
	length := s.DFTLength + offset
	length += length % 2

	out := make([]float64, length)
	w := float64(len(window))
	for k := 0; k < length/2; k++ {
		var re, im float64
		for t, v := range window {
			angle := -2 * math.Pi * float64(k) * float64(t) / w
			re += v * math.Cos(angle)
			im += v * math.Sin(angle)
		}
		out[2*k] = re
		out[2*k+1] = im
	}

	inv := s.inverseSqrtWindowSize()
	flip := s.LowerBounding || s.LowerBoundingDistances
	for j := range out {
		out[j] *= inv
		if flip && j%2 == 1 {
			out[j] = -out[j]
		}
	}

	std := stddev(window)
	if std < stdThreshold {
		std = 1
	}
	for j := range out {
		out[j] /= std
	}

	return out[offset : offset+s.WordLengthActual]
}

func TestMFTMatchesDirectTransform(t *testing.T) {
	X := syntheticSeries(3, 40, 7)

	for _, norm := range []bool{false, true} {
		s := NewSFA(WithWordLength(4), WithWindowSize(10), WithNorm(norm))
		s.prepare(40)

		coeffs := s.mft(X)
		require.Len(t, coeffs, 3)

		for a, c := range coeffs {
			rows, cols := c.Dims()
			assert.Equal(t, 40-10+1, rows)
			assert.Equal(t, s.WordLengthActual, cols)

			for i := 0; i < rows; i++ {
				want := directWindowCoefficients(s, X[a][i:i+10])
				for j := 0; j < cols; j++ {
					assert.InDelta(t, want[j], c.At(i, j), 1e-8,
						"case %d window %d coefficient %d (norm=%v)", a, i, j, norm)
				}
			}
		}
	}
}

func TestWordSymbolsRoundTrip(t *testing.T) {
	letterBits := letterBitsFor(4)
	symbols := []int{3, 0, 2, 1}

	var word uint64
	for _, sym := range symbols {
		word = (word << letterBits) | uint64(sym)
	}

	assert.Equal(t, symbols, Symbols(word, len(symbols), letterBits))
}

func TestShortenWordDropsTrailingLetters(t *testing.T) {
	letterBits := letterBitsFor(4)

	var word uint64
	for _, sym := range []int{3, 1, 2, 0} {
		word = (word << letterBits) | uint64(sym)
	}

	short := shortenWord(word, 4, 2, letterBits)
	assert.Equal(t, []int{3, 1}, Symbols(short, 2, letterBits))
}

func TestRemoveRepeats(t *testing.T) {
	words := []uint64{5, 5, 5, 7, 7, 5}
	removeRepeats(words)
	assert.Equal(t, []uint64{5, 0, 0, 7, 0, 5}, words)
}

func TestEquiDepthBreakpoints(t *testing.T) {
	X := syntheticSeries(10, 50, 3)
	s := NewSFA(WithWordLength(4), WithWindowSize(12))
	s.prepare(50)

	bp, err := s.binning(X, nil)
	require.NoError(t, err)

	rows, cols := bp.Dims()
	assert.Equal(t, s.WordLengthActual, rows)
	assert.Equal(t, 4, cols)

	for i := 0; i < rows; i++ {
		for j := 1; j < cols; j++ {
			assert.GreaterOrEqual(t, bp.At(i, j), bp.At(i, j-1),
				"breakpoints must be non-decreasing")
		}
		assert.True(t, math.IsInf(bp.At(i, cols-1), 1), "last breakpoint is the sentinel")
	}
}

func TestInformationGainBinningRequiresLabels(t *testing.T) {
	X := syntheticSeries(8, 40, 1)
	s := NewSFA(WithWordLength(4), WithWindowSize(10), WithBinning(InformationGain))

	_, err := s.FitTransform(X, nil)
	assert.Error(t, err)
}

func TestFitTransformDeterministic(t *testing.T) {
	X := syntheticSeries(12, 60, 11)
	y := syntheticLabels(12)

	run := func() [][]float64 {
		s := NewSFA(
			WithWordLength(6),
			WithWindowSize(16),
			WithRemoveRepeatWords(true),
			WithRandomState(42),
		)
		bags, err := s.FitTransform(X, y)
		require.NoError(t, err)
		rows, _ := bags.Dims()
		out := make([][]float64, rows)
		for i := range out {
			out[i] = append([]float64(nil), bags.RawRowView(i)...)
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestTransformDropsUnseenWords(t *testing.T) {
	train := syntheticSeries(10, 50, 5)
	test := syntheticSeries(4, 50, 99)
	y := syntheticLabels(10)

	s := NewSFA(
		WithWordLength(8),
		WithWindowSize(14),
		WithAlphabetSize(4),
		WithRemoveRepeatWords(true),
	)
	trainBags, err := s.FitTransform(train, y)
	require.NoError(t, err)
	_, trainCols := trainBags.Dims()

	testBags, err := s.Transform(test)
	require.NoError(t, err)
	rows, cols := testBags.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, trainCols, cols, "feature space is frozen after fitting")
}

func TestShortenBagsMatchesDirectCount(t *testing.T) {
	X := syntheticSeries(8, 60, 21)
	y := syntheticLabels(8)

	s := NewSFA(
		WithWordLength(16),
		WithWindowSize(20),
		WithAlphabetSize(2),
		WithSaveWords(true),
	)
	_, err := s.FitTransform(X, y)
	require.NoError(t, err)

	shortened, bags, err := s.ShortenBags(8, y)
	require.NoError(t, err)
	assert.Equal(t, 8, shortened.WordLengthFitted())
	assert.Equal(t, 16, s.WordLengthFitted(), "the receiver keeps its word length")

	// recount the receiver's saved words by hand at the shorter length
	counts := make([]map[uint64]float64, len(X))
	letterBits := letterBitsFor(2)
	for a, stream := range s.Words {
		counts[a] = map[uint64]float64{}
		for _, w := range stream {
			counts[a][shortenWord(w, 16, 8, letterBits)]++
		}
	}

	rows, cols := bags.Dims()
	require.Equal(t, len(X), rows)
	for a := 0; a < rows; a++ {
		var total float64
		for c := 0; c < cols; c++ {
			total += bags.At(a, c)
		}
		var want float64
		for _, v := range counts[a] {
			want += v
		}
		assert.Equal(t, want, total, "case %d keeps its word count", a)
	}
}

func TestBigramWordBudgetValidation(t *testing.T) {
	s := NewSFA(
		WithWordLength(16),
		WithAlphabetSize(8),
		WithWindowSize(40),
		WithBigrams(true),
	)
	err := s.Fit(syntheticSeries(4, 60, 2), syntheticLabels(4))
	assert.Error(t, err, "16 letters of 3 bits with bigrams needs 96 bits")
}

func TestValidateRejectsBadConfigurations(t *testing.T) {
	cases := []struct {
		name string
		opts []Option
	}{
		{"alphabet too small", []Option{WithAlphabetSize(1)}},
		{"zero word length", []Option{WithWordLength(0)}},
		{"window too small", []Option{WithWindowSize(2), WithNorm(true)}},
		{"anova and variance", []Option{WithAnova(true), WithVariance(true)}},
		{"sampling factor out of range", []Option{WithSamplingFactor(1.5)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSFA(tc.opts...)
			assert.Error(t, s.validate())
		})
	}
}

func TestVarianceSelectionKeepsHighVarianceCoefficients(t *testing.T) {
	X := syntheticSeries(10, 60, 13)
	y := syntheticLabels(10)

	s := NewSFA(
		WithWordLength(4),
		WithWindowSize(16),
		WithVariance(true),
	)
	bags, err := s.FitTransform(X, y)
	require.NoError(t, err)

	assert.Len(t, s.Support, s.WordLengthFitted())
	rows, _ := bags.Dims()
	assert.Equal(t, 10, rows)
}

func TestChi2SelectionShrinksVocabulary(t *testing.T) {
	X := syntheticSeries(14, 80, 17)
	y := syntheticLabels(14)

	full := NewSFA(WithWordLength(8), WithWindowSize(16), WithRandomState(1))
	fullBags, err := full.FitTransform(X, y)
	require.NoError(t, err)
	_, fullCols := fullBags.Dims()

	topK := NewSFA(
		WithWordLength(8),
		WithWindowSize(16),
		WithFeatureSelection(SelectionChi2TopK),
		WithMaxFeatureCount(10),
		WithRandomState(1),
	)
	bags, err := topK.FitTransform(X, y)
	require.NoError(t, err)
	_, cols := bags.Dims()

	assert.LessOrEqual(t, cols, 10)
	assert.LessOrEqual(t, cols, fullCols)
}

func TestTransformSymbolsWholeSeries(t *testing.T) {
	X := syntheticSeries(6, 30, 9)
	y := syntheticLabels(6)

	s := NewSFA(
		WithWordLength(8),
		WithWindowSize(30),
		WithLowerBoundingDistances(true),
	)
	require.NoError(t, s.Fit(X, y))

	symbols, err := s.TransformSymbols(X)
	require.NoError(t, err)
	require.Len(t, symbols, 6)
	for _, seq := range symbols {
		assert.Len(t, seq, s.WordLengthFitted())
		for _, sym := range seq {
			assert.GreaterOrEqual(t, sym, 0)
			assert.Less(t, sym, 4)
		}
	}
}

func TestShortenBagsMatchesDirectFitWithRepeatRemoval(t *testing.T) {
	X := syntheticSeries(10, 60, 31)
	y := syntheticLabels(10)

	long := NewSFA(
		WithWordLength(16),
		WithWindowSize(20),
		WithRemoveRepeatWords(true),
		WithSaveWords(true),
		WithRandomState(4),
	)
	_, err := long.FitTransform(X, y)
	require.NoError(t, err)

	_, shortBags, err := long.ShortenBags(8, y)
	require.NoError(t, err)

	direct := NewSFA(
		WithWordLength(8),
		WithWindowSize(20),
		WithRemoveRepeatWords(true),
		WithRandomState(4),
	)
	directBags, err := direct.FitTransform(X, y)
	require.NoError(t, err)

	// repeat runs that only emerge at the shorter length must collapse the
	// same way they would in a fresh fit, so the bag matrices agree exactly
	sr, sc := shortBags.Dims()
	dr, dc := directBags.Dims()
	require.Equal(t, dr, sr)
	require.Equal(t, dc, sc)
	assert.True(t, mat.Equal(directBags, shortBags))
}

func TestFittedTransformerSurvivesGobRoundTrip(t *testing.T) {
	X := syntheticSeries(8, 50, 19)
	y := syntheticLabels(8)

	s := NewSFA(
		WithWordLength(8),
		WithWindowSize(14),
		WithRemoveRepeatWords(true),
		WithRandomState(6),
	)
	want, err := s.FitTransform(X, y)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(s, &buf))

	restored := &SFA{}
	require.NoError(t, model.LoadModelFromReader(restored, &buf))
	require.True(t, restored.IsFitted())
	assert.Equal(t, s.WordLengthFitted(), restored.WordLengthFitted())

	got, err := restored.Transform(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))

	words, err := restored.TransformWords(X)
	require.NoError(t, err)
	assert.Len(t, words, 8)
}

func TestEquiDepthBinsAreBalanced(t *testing.T) {
	const rows, alphabet = 18, 4

	values := make([]float64, rows)
	for i := range values {
		values[i] = float64(i) * 0.5
	}
	rand.New(rand.NewSource(23)).Shuffle(rows, func(i, j int) {
		values[i], values[j] = values[j], values[i]
	})

	s := &SFA{AlphabetSize: alphabet}
	bp := s.equiDepthBinning(mat.NewDense(rows, 1, values))

	counts := make([]int, alphabet)
	for _, v := range values {
		sym := alphabet - 1
		for b := 0; b < alphabet-1; b++ {
			if v <= bp.At(0, b) {
				sym = b
				break
			}
		}
		counts[sym]++
	}

	minCount, maxCount := rows, 0
	for _, c := range counts {
		if c < minCount {
			minCount = c
		}
		if c > maxCount {
			maxCount = c
		}
	}
	assert.LessOrEqual(t, maxCount-minCount, 1)
}
