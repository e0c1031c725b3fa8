// Package metrics provides evaluation metrics for classifiers.
package metrics

import (
	"github.com/YuminosukeSato/tsgo/pkg/errors"
)

// Accuracy computes the fraction of correctly predicted labels.
func Accuracy(yTrue, yPred []int) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("Accuracy", "empty label vector")
	}
	if len(yPred) != n {
		return 0, errors.NewDimensionError("Accuracy", n, len(yPred), 0)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}

	return float64(correct) / float64(n), nil
}

// ConfusionMatrix computes a labels x labels count matrix. The label order
// follows first appearance in yTrue, then in yPred.
func ConfusionMatrix(yTrue, yPred []int) ([][]int, []int, error) {
	n := len(yTrue)
	if n == 0 {
		return nil, nil, errors.NewValueError("ConfusionMatrix", "empty label vector")
	}
	if len(yPred) != n {
		return nil, nil, errors.NewDimensionError("ConfusionMatrix", n, len(yPred), 0)
	}

	index := make(map[int]int)
	var labels []int
	for _, vals := range [][]int{yTrue, yPred} {
		for _, v := range vals {
			if _, ok := index[v]; !ok {
				index[v] = len(labels)
				labels = append(labels, v)
			}
		}
	}

	cm := make([][]int, len(labels))
	for i := range cm {
		cm[i] = make([]int, len(labels))
	}
	for i := 0; i < n; i++ {
		cm[index[yTrue[i]]][index[yPred[i]]]++
	}

	return cm, labels, nil
}
