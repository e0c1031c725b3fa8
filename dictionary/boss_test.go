package dictionary

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tsgo/metrics"
)

// twoClassData builds a small collection of clean periodic series: class 0
// at a low frequency, class 1 at a high one.
func twoClassData(n, length int, seed int64) ([][][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][][]float64, n)
	y := make([]int, n)

	for i := range X {
		y[i] = i % 2
		freq := 1.0
		if y[i] == 1 {
			freq = 4.0
		}
		series := make([]float64, length)
		phase := rng.Float64() * math.Pi
		for t := range series {
			series[t] = math.Sin(2*math.Pi*freq*float64(t)/float64(length)+phase) +
				0.02*rng.NormFloat64()
		}
		X[i] = [][]float64{series}
	}
	return X, y
}

func flatten(X [][][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, c := range X {
		out[i] = c[0]
	}
	return out
}

func TestIndividualBOSSFitPredict(t *testing.T) {
	X, y := twoClassData(20, 30, 42)
	series := flatten(X)

	b := NewIndividualBOSS(12, 8, false)
	b.RandomState = 1
	require.NoError(t, b.Fit(series, y))
	require.True(t, b.IsFitted())

	preds, err := b.Predict(series)
	require.NoError(t, err)
	require.Len(t, preds, 20)

	acc, err := metrics.Accuracy(y, preds)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.9, "clean classes should be separable on the training set")
}

func TestIndividualBOSSTrainAccuracyEarlyAbort(t *testing.T) {
	X, y := twoClassData(20, 30, 7)

	b := NewIndividualBOSS(12, 8, false)
	require.NoError(t, b.Fit(flatten(X), y))

	// an unreachable target must abort with the sentinel
	assert.Equal(t, -1.0, b.TrainAccuracy(1.1, false))

	acc := b.TrainAccuracy(-1, true)
	assert.GreaterOrEqual(t, acc, 0.0)
	assert.LessOrEqual(t, acc, 1.0)
	assert.Len(t, b.TrainPredictions, 20)
}

func TestIndividualBOSSShorten(t *testing.T) {
	X, y := twoClassData(16, 30, 3)
	series := flatten(X)

	b := NewIndividualBOSS(14, 16, false)
	b.SaveWords = true
	require.NoError(t, b.Fit(series, y))

	short, err := b.Shorten(8, y)
	require.NoError(t, err)
	assert.Equal(t, 8, short.WordLength)
	assert.Equal(t, 16, b.WordLength, "the original individual is untouched")

	preds, err := short.Predict(series)
	require.NoError(t, err)
	assert.Len(t, preds, 16)
}

func TestBOSSEnsembleFit(t *testing.T) {
	X, y := twoClassData(20, 30, 42)

	b := NewBOSSEnsemble(WithBOSSRandomState(11))
	require.NoError(t, b.Fit(X, y))
	require.True(t, b.IsFitted())
	require.Greater(t, b.NEstimators(), 0)

	best := -1.0
	for _, e := range b.Estimators {
		if e.Accuracy > best {
			best = e.Accuracy
		}
	}
	for _, e := range b.Estimators {
		assert.GreaterOrEqual(t, e.Accuracy, best*b.Threshold,
			"every member clears the retention threshold")
	}

	preds, err := b.Predict(X)
	require.NoError(t, err)
	acc, err := metrics.Accuracy(y, preds)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.9)
}

func TestBOSSEnsembleCapacity(t *testing.T) {
	X, y := twoClassData(20, 30, 13)

	b := NewBOSSEnsemble(WithMaxEnsembleSize(2), WithBOSSRandomState(5))
	require.NoError(t, b.Fit(X, y))
	assert.LessOrEqual(t, b.NEstimators(), 2)
}

func TestBOSSEnsembleProbabilitiesSumToOne(t *testing.T) {
	X, y := twoClassData(20, 30, 9)

	b := NewBOSSEnsemble(WithBOSSRandomState(3))
	require.NoError(t, b.Fit(X, y))

	proba, err := b.PredictProba(X)
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

func TestBOSSEnsembleFitPredict(t *testing.T) {
	X, y := twoClassData(20, 30, 17)

	b := NewBOSSEnsemble(WithBOSSRandomState(1))
	preds, err := b.FitPredict(X, y)
	require.NoError(t, err)
	require.Len(t, preds, 20)

	for _, p := range preds {
		assert.Contains(t, b.Classes, p)
	}
}

func TestBOSSEnsembleRejectsMultivariate(t *testing.T) {
	X := [][][]float64{{make([]float64, 30), make([]float64, 30)}}
	y := []int{0}

	b := NewBOSSEnsemble()
	assert.Error(t, b.Fit(X, y))
}

func TestBOSSEnsembleMinWindowValidation(t *testing.T) {
	X, y := twoClassData(8, 12, 1)

	b := NewBOSSEnsemble(WithMinWindow(50))
	assert.Error(t, b.Fit(X, y))
}

func TestMajorityClass(t *testing.T) {
	assert.Equal(t, 2, majorityClass([]int{2, 1, 2, 0, 2}))
	assert.Equal(t, 0, majorityClass([]int{0, 1, 0, 1}), "ties go to the smaller label")
}

func TestClassMappingFirstSeenOrder(t *testing.T) {
	m := newClassMapping([]int{5, 3, 5, 9, 3})
	assert.Equal(t, []int{5, 3, 9}, m.Classes)
	assert.Equal(t, 0, m.Index[5])
	assert.Equal(t, 2, m.Index[9])
}

func TestBOSSEnsembleSmallWindowsCapWordLength(t *testing.T) {
	X, y := twoClassData(16, 30, 21)

	// windows near the minimum cannot carry the longest grid word length,
	// so the shortening walk starts from the capped length instead
	clf := NewBOSSEnsemble(
		WithMinWindow(10),
		WithMaxEnsembleSize(4),
		WithBOSSRandomState(5),
	)
	require.NoError(t, clf.Fit(X, y))
	assert.Greater(t, clf.NEstimators(), 0)

	preds, err := clf.Predict(X)
	require.NoError(t, err)
	assert.Len(t, preds, len(y))
}

func TestBOSSEnsembleAdmitEvictsWorstOnly(t *testing.T) {
	member := func(acc float64) *IndividualBOSS {
		return &IndividualBOSS{Accuracy: acc}
	}
	accuracies := func(b *BOSSEnsemble) []float64 {
		out := make([]float64, len(b.Estimators))
		for i, e := range b.Estimators {
			out[i] = e.Accuracy
		}
		return out
	}

	b := NewBOSSEnsemble(WithMaxEnsembleSize(3))
	assert.True(t, b.admit(member(0.9)))
	assert.True(t, b.admit(member(0.5)))
	assert.True(t, b.admit(member(0.7)))

	// at capacity a better candidate replaces exactly the worst member
	assert.True(t, b.admit(member(0.8)))
	assert.ElementsMatch(t, []float64{0.9, 0.7, 0.8}, accuracies(b))

	// a candidate tying the worst retained accuracy is turned away
	assert.False(t, b.admit(member(0.7)))
	assert.Len(t, b.Estimators, 3)
	assert.ElementsMatch(t, []float64{0.9, 0.7, 0.8}, accuracies(b))
}
