package dictionary

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tsgo/metrics"
)

func TestContractableBOSSFit(t *testing.T) {
	X, y := twoClassData(20, 30, 42)

	c := NewContractableBOSS(
		WithNParameterSamples(20),
		WithCBOSSMaxEnsembleSize(5),
		WithCBOSSRandomState(7),
	)
	require.NoError(t, c.Fit(X, y))
	require.True(t, c.IsFitted())

	assert.Greater(t, c.NEstimators(), 0)
	assert.LessOrEqual(t, c.NEstimators(), 5)
	require.Len(t, c.Weights, c.NEstimators())

	for i, e := range c.Estimators {
		assert.Greater(t, c.Weights[i], 0.0)
		assert.Len(t, e.Subsample, 14, "members train on a 70% subsample")
	}
}

func TestContractableBOSSPredict(t *testing.T) {
	X, y := twoClassData(20, 30, 19)

	c := NewContractableBOSS(
		WithNParameterSamples(15),
		WithCBOSSMaxEnsembleSize(10),
		WithCBOSSRandomState(3),
	)
	require.NoError(t, c.Fit(X, y))

	preds, err := c.Predict(X)
	require.NoError(t, err)
	require.Len(t, preds, 20)

	acc, err := metrics.Accuracy(y, preds)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.7)
}

func TestContractableBOSSFitPredictProba(t *testing.T) {
	X, y := twoClassData(20, 30, 29)

	c := NewContractableBOSS(
		WithNParameterSamples(15),
		WithCBOSSMaxEnsembleSize(8),
		WithCBOSSRandomState(5),
	)
	proba, err := c.FitPredictProba(X, y)
	require.NoError(t, err)

	rows, cols := proba.Dims()
	require.Equal(t, 20, rows)
	require.Equal(t, 2, cols)

	for i := 0; i < rows; i++ {
		var sum float64
		for j := 0; j < cols; j++ {
			v := proba.At(i, j)
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "row %d", i)
	}
}

func TestContractableBOSSDeterministicWithSeed(t *testing.T) {
	X, y := twoClassData(16, 30, 31)

	run := func() []int {
		c := NewContractableBOSS(
			WithNParameterSamples(10),
			WithCBOSSMaxEnsembleSize(5),
			WithCBOSSRandomState(99),
		)
		require.NoError(t, c.Fit(X, y))
		preds, err := c.Predict(X)
		require.NoError(t, err)
		return preds
	}

	assert.Equal(t, run(), run())
}

func TestContractableBOSSKeepSampling(t *testing.T) {
	c := NewContractableBOSS(WithNParameterSamples(10))

	// no contract: the sample budget is the only bound
	assert.True(t, c.keepSampling(time.Hour, 9))
	assert.False(t, c.keepSampling(0, 10))

	// with a contract the limit extends sampling past the budget
	c.TimeLimit = time.Minute
	c.ContractMaxN = 100
	assert.True(t, c.keepSampling(time.Second, 50))
	assert.False(t, c.keepSampling(2*time.Minute, 50))
	assert.False(t, c.keepSampling(time.Second, 100))

	// but the budget still holds as a minimum when time runs out early
	assert.True(t, c.keepSampling(2*time.Minute, 5))
}

func TestContractableBOSSPoolDrawsWithoutReplacement(t *testing.T) {
	X, y := twoClassData(12, 30, 23)

	c := NewContractableBOSS(
		WithNParameterSamples(10000),
		WithCBOSSMaxEnsembleSize(3),
		WithCBOSSRandomState(1),
	)
	require.NoError(t, c.Fit(X, y))

	// the pool is far smaller than the budget, so the loop must terminate
	// by pool exhaustion rather than sampling forever
	assert.LessOrEqual(t, c.NEstimators(), 3)
}

func TestSubsampleIndicesAvoidsSingleClass(t *testing.T) {
	y := []int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1}

	for seed := int64(0); seed < 5; seed++ {
		rng := rand.New(rand.NewSource(seed))
		idx := subsampleIndices(rng, 10, 5, y)
		require.Len(t, idx, 5)
		assert.False(t, singleClass(idx, y), "seed %d", seed)
	}
}
