// Package tsgo provides dictionary-based time series classification for Go:
// the Symbolic Fourier Approximation transform and the classifiers built on
// it, with a scikit-learn-like estimator API.
//
// A series is slid over with a fixed window, each window reduced to a few
// Fourier coefficients, the coefficients discretized against learned
// breakpoints into short symbolic words, and the words counted into
// bag-of-words histograms. Nearest-neighbour classifiers over those
// histograms, ensembled across window configurations, are competitive
// classifiers for equal-length time series.
//
// # Packages
//
//   - sfa: the transform itself, with six binning strategies, bigrams,
//     numerosity reduction and chi-squared feature selection
//   - distances: the BOSS histogram distance, histogram intersection and
//     the symbolic lower-bound distance
//   - dictionary: IndividualBOSS, BOSSEnsemble, ContractableBOSS,
//     IndividualTDE and TemporalDictionaryEnsemble
//   - preprocessing, linear, metrics: supporting estimators and metrics
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/tsgo/dictionary"
//	)
//
//	func main() {
//	    // X is [][][]float64: cases x channels x timepoints
//	    clf := dictionary.NewBOSSEnsemble(dictionary.WithBOSSRandomState(42))
//	    if err := clf.Fit(XTrain, yTrain); err != nil {
//	        log.Fatal(err)
//	    }
//	    preds, err := clf.Predict(XTest)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(preds)
//	}
//
// Estimators follow the Fit/Predict/PredictProba contract in core/model;
// the ensembles additionally implement FitPredict for leave-one-out style
// training estimates without a separate evaluation pass.
package tsgo
