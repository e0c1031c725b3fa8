package model

import "gonum.org/v1/gonum/mat"

// Classifier is the contract implemented by every dictionary classifier
// family member. X is a case x channel x timepoint collection; y is a label
// vector aligned with the first axis of X.
type Classifier interface {
	// Fit builds the model from the training collection.
	Fit(X [][][]float64, y []int) error

	// Predict returns one label per case.
	Predict(X [][][]float64) ([]int, error)

	// PredictProba returns a row-stochastic case x class matrix. Column
	// order is the first-seen class order at fit time.
	PredictProba(X [][][]float64) (*mat.Dense, error)
}

// TrainEstimator is implemented by classifiers that can produce in-sample
// estimates (leave-one-out or out-of-bag) without a second inference pass.
type TrainEstimator interface {
	FitPredict(X [][][]float64, y []int) ([]int, error)
	FitPredictProba(X [][][]float64, y []int) (*mat.Dense, error)
}

// CollectionTransformer converts a single-channel series collection into a
// per-case feature representation.
type CollectionTransformer interface {
	Fit(X [][]float64, y []int) error
	Transform(X [][]float64) (*mat.Dense, error)
	FitTransform(X [][]float64, y []int) (*mat.Dense, error)
}
