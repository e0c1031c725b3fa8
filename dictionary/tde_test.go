package dictionary

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tsgo/metrics"
)

func multivariateData(n, channels, length int, seed int64) ([][][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][][]float64, n)
	y := make([]int, n)

	for i := range X {
		y[i] = i % 2
		X[i] = make([][]float64, channels)
		for d := range X[i] {
			freq := 1.0 + float64(y[i])*3.0 + float64(d)
			series := make([]float64, length)
			for t := range series {
				series[t] = math.Sin(2*math.Pi*freq*float64(t)/float64(length)) +
					0.02*rng.NormFloat64()
			}
			X[i][d] = series
		}
	}
	return X, y
}

func TestIndividualTDEFitPredict(t *testing.T) {
	X, y := twoClassData(20, 30, 42)

	e := NewIndividualTDE(14, 8, false, 2, false)
	e.RandomState = 1
	require.NoError(t, e.Fit(X, y))
	require.True(t, e.IsFitted())
	require.Len(t, e.Bags, 20)

	preds, err := e.Predict(X)
	require.NoError(t, err)
	require.Len(t, preds, 20)

	acc, err := metrics.Accuracy(y, preds)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.9)
}

func TestIndividualTDELevelsEnrichBags(t *testing.T) {
	X, y := twoClassData(12, 30, 5)

	flat := NewIndividualTDE(12, 8, false, 1, false)
	flat.Bigrams = false
	flat.RandomState = 2
	require.NoError(t, flat.Fit(X, y))

	pyramid := NewIndividualTDE(12, 8, false, 3, false)
	pyramid.Bigrams = false
	pyramid.RandomState = 2
	require.NoError(t, pyramid.Fit(X, y))

	for i := range flat.Bags {
		assert.Greater(t, len(pyramid.Bags[i]), len(flat.Bags[i]),
			"pyramid levels split words across segments")
	}
}

func TestIndividualTDETrainAccuracyEarlyAbort(t *testing.T) {
	X, y := twoClassData(16, 30, 3)

	e := NewIndividualTDE(12, 8, false, 1, false)
	require.NoError(t, e.Fit(X, y))

	assert.Equal(t, -1.0, e.TrainAccuracy(1.1, false))

	acc := e.TrainAccuracy(-1, true)
	assert.GreaterOrEqual(t, acc, 0.0)
	assert.LessOrEqual(t, acc, 1.0)
	assert.Len(t, e.TrainPredictions, 16)
}

func TestIndividualTDEMultivariate(t *testing.T) {
	X, y := multivariateData(16, 3, 30, 11)

	e := NewIndividualTDE(12, 8, false, 1, false)
	e.Bigrams = false
	e.RandomState = 4
	require.NoError(t, e.Fit(X, y))

	assert.NotEmpty(t, e.Dims, "at least one channel is retained")
	assert.Len(t, e.Transformers, len(e.Dims))

	preds, err := e.Predict(X)
	require.NoError(t, err)
	assert.Len(t, preds, 16)
}

func TestTemporalDictionaryEnsembleFit(t *testing.T) {
	X, y := twoClassData(20, 30, 42)

	e := NewTemporalDictionaryEnsemble(
		WithTDENParameterSamples(10),
		WithRandomlySelectedParams(5),
		WithTDEMaxEnsembleSize(5),
		WithTDERandomState(7),
	)
	require.NoError(t, e.Fit(X, y))
	require.True(t, e.IsFitted())

	assert.Greater(t, e.NEstimators(), 0)
	assert.LessOrEqual(t, e.NEstimators(), 5)
	assert.Len(t, e.PrevParameters, 10, "every draw feeds the surrogate history")
	assert.Len(t, e.PrevAccuracies, 10)

	preds, err := e.Predict(X)
	require.NoError(t, err)
	acc, err := metrics.Accuracy(y, preds)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.7)
}

func TestTemporalDictionaryEnsembleSurrogateSelection(t *testing.T) {
	X, y := twoClassData(16, 30, 13)

	// warm-up of zero forces the surrogate path almost immediately
	e := NewTemporalDictionaryEnsemble(
		WithTDENParameterSamples(6),
		WithRandomlySelectedParams(2),
		WithTDEMaxEnsembleSize(4),
		WithTDERandomState(21),
	)
	require.NoError(t, e.Fit(X, y))
	assert.Len(t, e.PrevParameters, 6)
}

func TestTemporalDictionaryEnsembleProbabilities(t *testing.T) {
	X, y := twoClassData(20, 30, 9)

	e := NewTemporalDictionaryEnsemble(
		WithTDENParameterSamples(8),
		WithRandomlySelectedParams(4),
		WithTDEMaxEnsembleSize(4),
		WithTDERandomState(3),
	)
	require.NoError(t, e.Fit(X, y))

	proba, err := e.PredictProba(X)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	require.Equal(t, 20, rows)
	require.Equal(t, 2, cols)

	for i := 0; i < rows; i++ {
		var sum float64
		for j := 0; j < cols; j++ {
			sum += proba.At(i, j)
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestTemporalDictionaryEnsembleFitPredictLOOCV(t *testing.T) {
	X, y := twoClassData(20, 30, 17)

	e := NewTemporalDictionaryEnsemble(
		WithTDENParameterSamples(8),
		WithRandomlySelectedParams(4),
		WithTDEMaxEnsembleSize(4),
		WithTrainEstimateMethod(EstimateLOOCV),
		WithTDERandomState(1),
	)
	proba, err := e.FitPredictProba(X, y)
	require.NoError(t, err)

	rows, _ := proba.Dims()
	require.Equal(t, 20, rows)
	for i := 0; i < rows; i++ {
		var sum float64
		for _, v := range proba.RawRowView(i) {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "row %d", i)
	}
}

func TestTemporalDictionaryEnsembleFitPredictOOB(t *testing.T) {
	X, y := twoClassData(20, 30, 23)

	e := NewTemporalDictionaryEnsemble(
		WithTDENParameterSamples(8),
		WithRandomlySelectedParams(4),
		WithTDEMaxEnsembleSize(4),
		WithTrainEstimateMethod(EstimateOOB),
		WithTDERandomState(2),
	)
	preds, err := e.FitPredict(X, y)
	require.NoError(t, err)
	require.Len(t, preds, 20)

	for _, p := range preds {
		assert.Contains(t, e.Classes, p)
	}
}

func TestTemporalDictionaryEnsembleMultivariate(t *testing.T) {
	X, y := multivariateData(16, 2, 30, 29)

	e := NewTemporalDictionaryEnsemble(
		WithTDENParameterSamples(6),
		WithRandomlySelectedParams(3),
		WithTDEMaxEnsembleSize(3),
		WithTDERandomState(5),
	)
	require.NoError(t, e.Fit(X, y))

	preds, err := e.Predict(X)
	require.NoError(t, err)
	assert.Len(t, preds, 16)
}

func TestTemporalDictionaryEnsembleRejectsBadEstimateMethod(t *testing.T) {
	X, y := twoClassData(8, 30, 1)

	e := NewTemporalDictionaryEnsemble(WithTrainEstimateMethod("bootstrap"))
	assert.Error(t, e.Fit(X, y))
}

func TestTDEParameterVector(t *testing.T) {
	p := tdeParameters{WindowSize: 12, WordLength: 8, Norm: true, Levels: 2, IGB: false}
	assert.Equal(t, []float64{12, 8, 1, 2, 0}, p.vector())
}

func TestIndividualTDEPredictDeterministicForSeed(t *testing.T) {
	X, y := twoClassData(20, 30, 8)

	run := func() []int {
		e := NewIndividualTDE(14, 8, false, 2, false)
		e.RandomState = 9
		require.NoError(t, e.Fit(X, y))
		preds, err := e.Predict(X)
		require.NoError(t, err)
		return preds
	}

	// tie breaking draws from per-chunk generators derived from the seed,
	// so repeated runs with the same seed agree regardless of core count
	assert.Equal(t, run(), run())
}
