package sfa

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// FeatureSelection controls which words become bag columns.
type FeatureSelection int

const (
	// SelectionNone keeps every word. With a small dense configuration the
	// bag spans the full word space; otherwise the training vocabulary.
	SelectionNone FeatureSelection = iota
	// SelectionRandom keeps a seeded random subset of the vocabulary.
	SelectionRandom
	// SelectionChi2 keeps words whose chi-squared p-value clears PThreshold.
	SelectionChi2
	// SelectionChi2TopK keeps the MaxFeatureCount most dependent words.
	SelectionChi2TopK
)

func (f FeatureSelection) String() string {
	switch f {
	case SelectionNone:
		return "none"
	case SelectionRandom:
		return "random"
	case SelectionChi2:
		return "chi2"
	case SelectionChi2TopK:
		return "chi2_top_k"
	}
	return "unknown"
}

// denseEligible reports whether the full word space is small enough to
// enumerate directly, skipping vocabulary bookkeeping.
func (s *SFA) denseEligible() bool {
	return s.FeatureSelection == SelectionNone &&
		s.AlphabetSize <= 2 && !s.Bigrams && s.WordLengthActual <= 8
}

// fitBags learns the word-to-column mapping from the training word streams
// and counts the training bags. After this call the mapping is frozen:
// Transform drops any word it has not seen here.
func (s *SFA) fitBags(words [][]uint64, y []int) (*mat.Dense, error) {
	if s.denseEligible() {
		s.RelevantFeatures = nil
		s.FeatureCount = intPow(s.AlphabetSize, s.WordLengthActual)
		return s.countBags(words), nil
	}

	vocabulary := collectVocabulary(words)

	switch s.FeatureSelection {
	case SelectionRandom:
		if s.rng == nil {
			// a transformer restored from gob has no generator yet
			s.rng = rand.New(rand.NewSource(s.RandomState))
		}
		keep := len(vocabulary)
		if s.MaxFeatureCount < keep {
			keep = s.MaxFeatureCount
		}
		s.rng.Shuffle(len(vocabulary), func(i, j int) {
			vocabulary[i], vocabulary[j] = vocabulary[j], vocabulary[i]
		})
		vocabulary = vocabulary[:keep]
		sort.Slice(vocabulary, func(a, b int) bool { return vocabulary[a] < vocabulary[b] })
	case SelectionChi2, SelectionChi2TopK:
		selected, err := s.chi2Select(words, y, vocabulary)
		if err != nil {
			return nil, err
		}
		vocabulary = selected
	}

	s.RelevantFeatures = make(map[uint64]int, len(vocabulary))
	for i, w := range vocabulary {
		s.RelevantFeatures[w] = i
	}
	if s.RemoveRepeatWords {
		// the numerosity sentinel must never count as a feature
		if col, ok := s.RelevantFeatures[0]; ok {
			delete(s.RelevantFeatures, 0)
			for w, c := range s.RelevantFeatures {
				if c > col {
					s.RelevantFeatures[w] = c - 1
				}
			}
		}
	}
	s.FeatureCount = len(s.RelevantFeatures)

	return s.countBags(words), nil
}

// countBags builds the dense histogram matrix for the given word streams
// using the frozen word-to-column mapping.
func (s *SFA) countBags(words [][]uint64) *mat.Dense {
	bags := mat.NewDense(len(words), s.FeatureCount, nil)

	for a, stream := range words {
		row := bags.RawRowView(a)
		if s.RelevantFeatures == nil {
			for _, w := range stream {
				if s.RemoveRepeatWords && w == 0 {
					continue
				}
				row[int(w)]++
			}
			continue
		}
		for _, w := range stream {
			if col, ok := s.RelevantFeatures[w]; ok {
				row[col]++
			}
		}
	}

	return bags
}

func collectVocabulary(words [][]uint64) []uint64 {
	seen := map[uint64]struct{}{}
	for _, stream := range words {
		for _, w := range stream {
			seen[w] = struct{}{}
		}
	}
	vocabulary := make([]uint64, 0, len(seen))
	for w := range seen {
		vocabulary = append(vocabulary, w)
	}
	sort.Slice(vocabulary, func(a, b int) bool { return vocabulary[a] < vocabulary[b] })
	return vocabulary
}

// chi2Select ranks every vocabulary word by a chi-squared test of its counts
// against the class labels and keeps either all words clearing PThreshold or
// the MaxFeatureCount lowest p-values.
func (s *SFA) chi2Select(words [][]uint64, y []int, vocabulary []uint64) ([]uint64, error) {
	index := make(map[uint64]int, len(vocabulary))
	for i, w := range vocabulary {
		index[w] = i
	}

	counts := mat.NewDense(len(words), len(vocabulary), nil)
	for a, stream := range words {
		row := counts.RawRowView(a)
		for _, w := range stream {
			row[index[w]]++
		}
	}

	pValues := chi2PValues(counts, y)

	if s.FeatureSelection == SelectionChi2TopK {
		order := make([]int, len(vocabulary))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return pValues[order[a]] < pValues[order[b]] })
		keep := s.MaxFeatureCount
		if keep > len(order) {
			keep = len(order)
		}
		selected := make([]uint64, 0, keep)
		for _, i := range order[:keep] {
			selected = append(selected, vocabulary[i])
		}
		sort.Slice(selected, func(a, b int) bool { return selected[a] < selected[b] })
		return selected, nil
	}

	selected := make([]uint64, 0, len(vocabulary))
	for i, w := range vocabulary {
		if pValues[i] <= s.PThreshold {
			selected = append(selected, w)
		}
	}
	return selected, nil
}

// chi2PValues computes the p-value of the one-way chi-squared statistic of
// each count column against the class labels.
func chi2PValues(counts *mat.Dense, y []int) []float64 {
	rows, cols := counts.Dims()

	classIndex := map[int]int{}
	for _, label := range y {
		if _, ok := classIndex[label]; !ok {
			classIndex[label] = len(classIndex)
		}
	}
	nClasses := len(classIndex)

	// observed per-class sums and overall column totals
	observed := mat.NewDense(nClasses, cols, nil)
	classTotals := make([]float64, nClasses)
	for r := 0; r < rows; r++ {
		c := classIndex[y[r]]
		classTotals[c]++
		row := counts.RawRowView(r)
		obs := observed.RawRowView(c)
		for j, v := range row {
			obs[j] += v
		}
	}

	featureTotals := make([]float64, cols)
	for c := 0; c < nClasses; c++ {
		for j, v := range observed.RawRowView(c) {
			featureTotals[j] += v
		}
	}

	dist := distuv.ChiSquared{K: float64(nClasses - 1)}
	pValues := make([]float64, cols)
	for j := 0; j < cols; j++ {
		var stat float64
		for c := 0; c < nClasses; c++ {
			expected := classTotals[c] / float64(rows) * featureTotals[j]
			if expected == 0 {
				continue
			}
			d := observed.At(c, j) - expected
			stat += d * d / expected
		}
		if stat == 0 {
			pValues[j] = 1
		} else {
			pValues[j] = dist.Survival(stat)
		}
	}
	return pValues
}

func intPow(base, exp int) int {
	out := 1
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
