package linear

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKernelRidgeRecoversLinearTrend(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	y := []float64{1, 3, 5, 7, 9, 11}

	kr := NewKernelRidge(1e-6, 1)
	require.NoError(t, kr.Fit(X, y))
	require.True(t, kr.IsFitted())

	preds, err := kr.Predict(mat.NewDense(2, 1, []float64{1.5, 6}))
	require.NoError(t, err)
	require.Len(t, preds, 2)

	assert.InDelta(t, 4.0, preds[0], 0.05)
	assert.InDelta(t, 13.0, preds[1], 0.2, "linear extrapolation holds with a degree-1 kernel")
}

func TestKernelRidgeFitsAffineSurface(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		1, 1,
	})
	// y = 0.1 + 0.5*x1 + 0.3*x2
	y := []float64{0.1, 0.6, 0.4, 0.9}

	kr := NewKernelRidge(1e-6, 1)
	require.NoError(t, kr.Fit(X, y))

	preds, err := kr.Predict(X)
	require.NoError(t, err)
	for i, want := range y {
		assert.InDelta(t, want, preds[i], 0.05, "training point %d", i)
	}
}

func TestKernelRidgePredictBeforeFit(t *testing.T) {
	kr := NewKernelRidge(1, 1)
	_, err := kr.Predict(mat.NewDense(1, 1, []float64{1}))
	assert.Error(t, err)
}

func TestKernelRidgeDimensionMismatch(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	kr := NewKernelRidge(1, 1)
	require.NoError(t, kr.Fit(X, []float64{1, 2, 3}))

	_, err := kr.Predict(mat.NewDense(1, 3, []float64{1, 2, 3}))
	assert.Error(t, err)
}
