// Package dictionary implements dictionary-based time series classifiers:
// the BOSS individual and ensemble, its contractable randomized variant and
// the temporal dictionary ensemble.
package dictionary

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsgo/pkg/errors"
)

// TieBreak selects how equal best scores are resolved during prediction.
type TieBreak int

const (
	// TieBreakFirst keeps the first best scorer encountered. Used on
	// training-estimate paths where determinism matters most.
	TieBreakFirst TieBreak = iota
	// TieBreakRandom picks uniformly among the best scorers.
	TieBreakRandom
)

// classMapping fixes the class order of an ensemble: first-seen order over
// the training labels.
type classMapping struct {
	Classes []int
	Index   map[int]int
}

func newClassMapping(y []int) classMapping {
	m := classMapping{Index: map[int]int{}}
	for _, label := range y {
		if _, ok := m.Index[label]; !ok {
			m.Index[label] = len(m.Classes)
			m.Classes = append(m.Classes, label)
		}
	}
	return m
}

func (m classMapping) NumClasses() int { return len(m.Classes) }

// restoredMapping rebuilds a mapping from persisted fields, for estimators
// decoded from gob where the cached mapping is gone.
func restoredMapping(classes []int, index map[int]int) classMapping {
	return classMapping{Classes: classes, Index: index}
}

// probaToPredictions collapses a probability matrix to labels, breaking ties
// per the given policy. Without a generator ties fall back to first-found.
func (m classMapping) probaToPredictions(proba *mat.Dense, tie TieBreak, rng *rand.Rand) []int {
	if rng == nil {
		tie = TieBreakFirst
	}
	rows, cols := proba.Dims()
	preds := make([]int, rows)
	for i := 0; i < rows; i++ {
		row := proba.RawRowView(i)
		best := 0
		ties := 1
		for c := 1; c < cols; c++ {
			switch {
			case row[c] > row[best]:
				best = c
				ties = 1
			case row[c] == row[best] && tie == TieBreakRandom:
				ties++
				if rng.Intn(ties) == 0 {
					best = c
				}
			}
		}
		preds[i] = m.Classes[best]
	}
	return preds
}

// squeeze extracts a single channel from collection input, rejecting
// multivariate data for univariate-only estimators.
func squeeze(X [][][]float64) ([][]float64, error) {
	if len(X) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dictionary: squeeze")
	}
	if len(X[0]) != 1 {
		return nil, errors.NewDimensionError("dictionary: squeeze", 1, len(X[0]), 1)
	}
	out := make([][]float64, len(X))
	for i, c := range X {
		out[i] = c[0]
	}
	return out, nil
}

// channel extracts one channel from collection input.
func channel(X [][][]float64, d int) [][]float64 {
	out := make([][]float64, len(X))
	for i, c := range X {
		out[i] = c[d]
	}
	return out
}

// subsampleIndices draws a class-aware random subset of size n without
// replacement. The draw is redone, up to a small retry budget, if it lands
// on a single class, which would make accuracy estimation degenerate.
func subsampleIndices(rng *rand.Rand, total, n int, y []int) []int {
	for attempt := 0; ; attempt++ {
		idx := rng.Perm(total)[:n]
		if attempt >= 10 || !singleClass(idx, y) {
			out := append([]int(nil), idx...)
			return out
		}
	}
}

func singleClass(idx []int, y []int) bool {
	if len(idx) == 0 {
		return true
	}
	first := y[idx[0]]
	for _, i := range idx[1:] {
		if y[i] != first {
			return false
		}
	}
	return true
}

// uniformRow fills a probability row with 1/k, the fallback for cases no
// ensemble member can vote on.
func uniformRow(row []float64) {
	p := 1.0 / float64(len(row))
	for i := range row {
		row[i] = p
	}
}
