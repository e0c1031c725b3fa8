// Package linear provides small regression models used as surrogates during
// ensemble parameter search.
package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsgo/core/model"
	"github.com/YuminosukeSato/tsgo/pkg/errors"
)

// KernelRidge is ridge regression in a polynomial kernel space. It is solved
// in the dual: alpha = (K + lambda*I)^(-1) y, with
// K(x, z) = (gamma * <x, z> + coef0)^degree.
type KernelRidge struct {
	model.BaseEstimator

	// Lambda is the L2 regularization strength.
	Lambda float64

	// Degree of the polynomial kernel.
	Degree int

	// Gamma scales the inner product. Zero means 1/n_features.
	Gamma float64

	// Coef0 is the kernel's additive constant.
	Coef0 float64

	// Dual holds the fitted dual coefficients.
	Dual *mat.VecDense

	// XTrain holds the fit-time inputs, needed for prediction.
	XTrain *mat.Dense
}

// NewKernelRidge creates a KernelRidge model. A degree of 1 gives a linear
// ridge fit, which is what the ensemble surrogate uses.
func NewKernelRidge(lambda float64, degree int) *KernelRidge {
	return &KernelRidge{
		Lambda: lambda,
		Degree: degree,
		Coef0:  1.0,
	}
}

// Fit solves the dual ridge system on (X, y).
func (kr *KernelRidge) Fit(X mat.Matrix, y []float64) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("KernelRidge.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != r {
		return errors.NewDimensionError("KernelRidge.Fit", r, len(y), 0)
	}
	if kr.Degree < 1 {
		return errors.NewValidationError("degree", "must be at least 1", kr.Degree)
	}

	kr.XTrain = mat.DenseCopyOf(X)

	gamma := kr.Gamma
	if gamma == 0 {
		gamma = 1.0 / float64(c)
	}

	K := mat.NewDense(r, r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			v := kr.kernel(kr.XTrain.RawRowView(i), kr.XTrain.RawRowView(j), gamma)
			K.Set(i, j, v)
			K.Set(j, i, v)
		}
		K.Set(i, i, K.At(i, i)+kr.Lambda)
	}

	yVec := mat.NewVecDense(r, y)
	dual := mat.NewVecDense(r, nil)
	if err := dual.SolveVec(K, yVec); err != nil {
		return errors.NewModelError("KernelRidge.Fit", "singular kernel matrix", err)
	}

	kr.Dual = dual
	kr.SetFitted()
	return nil
}

// Predict evaluates the fitted model on each row of X.
func (kr *KernelRidge) Predict(X mat.Matrix) ([]float64, error) {
	if !kr.IsFitted() {
		return nil, errors.NewNotFittedError("KernelRidge", "Predict")
	}

	r, c := X.Dims()
	_, cTrain := kr.XTrain.Dims()
	if c != cTrain {
		return nil, errors.NewDimensionError("KernelRidge.Predict", cTrain, c, 1)
	}

	gamma := kr.Gamma
	if gamma == 0 {
		gamma = 1.0 / float64(c)
	}

	nTrain, _ := kr.XTrain.Dims()
	out := make([]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			row[j] = X.At(i, j)
		}
		var sum float64
		for t := 0; t < nTrain; t++ {
			sum += kr.Dual.AtVec(t) * kr.kernel(row, kr.XTrain.RawRowView(t), gamma)
		}
		out[i] = sum
	}

	return out, nil
}

func (kr *KernelRidge) kernel(a, b []float64, gamma float64) float64 {
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	base := gamma*dot + kr.Coef0
	if kr.Degree == 1 {
		return base
	}
	return math.Pow(base, float64(kr.Degree))
}
