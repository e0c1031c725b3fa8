package dictionary

import (
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/tsgo/core/model"
	"github.com/YuminosukeSato/tsgo/core/parallel"
	"github.com/YuminosukeSato/tsgo/distances"
	"github.com/YuminosukeSato/tsgo/pkg/errors"
	"github.com/YuminosukeSato/tsgo/sfa"
)

// WordKey identifies one bag entry: the packed word plus the auxiliary bits
// that distinguish pyramid level segments, channels and bigrams. Keeping the
// auxiliary data out of the word avoids overflowing 64 bits at the longest
// bigram configurations.
type WordKey struct {
	Word uint64
	Aux  uint32
}

const bigramAux = 1 << 31

// auxFor packs a channel index and a pyramid segment id.
func auxFor(dim, levelID int) uint32 {
	return uint32(dim)<<16 | uint32(levelID)
}

// IndividualTDE is a single 1-nearest-neighbour classifier over sparse word
// bags scored by histogram intersection, with optional spatial pyramid
// levels and multivariate channel selection.
type IndividualTDE struct {
	model.BaseEstimator

	WindowSize   int
	WordLength   int
	Norm         bool
	Levels       int
	IGB          bool
	AlphabetSize int
	Bigrams      bool
	DimThreshold float64
	MaxDims      int
	RandomState  int64

	Transformers []*sfa.SFA
	Dims         []int
	Bags         []map[WordKey]uint32
	ClassVals    []int

	// ensemble bookkeeping
	Accuracy         float64
	Subsample        []int
	TrainPredictions []int

	rng *rand.Rand
}

// NewIndividualTDE builds an unfitted individual for one parameter draw.
func NewIndividualTDE(windowSize, wordLength int, norm bool, levels int, igb bool) *IndividualTDE {
	return &IndividualTDE{
		WindowSize:   windowSize,
		WordLength:   wordLength,
		Norm:         norm,
		Levels:       levels,
		IGB:          igb,
		AlphabetSize: 4,
		Bigrams:      true,
		DimThreshold: 0.85,
		MaxDims:      20,
		RandomState:  -1,
	}
}

func (t *IndividualTDE) newTransformer() *sfa.SFA {
	binning := sfa.EquiDepth
	if t.IGB {
		binning = sfa.InformationGain
	}
	return sfa.NewSFA(
		sfa.WithWordLength(t.WordLength),
		sfa.WithAlphabetSize(t.AlphabetSize),
		sfa.WithWindowSize(t.WindowSize),
		sfa.WithNorm(t.Norm),
		sfa.WithBinning(binning),
		sfa.WithBigrams(t.Bigrams),
		sfa.WithRemoveRepeatWords(true),
		sfa.WithLowerBounding(false),
		sfa.WithRandomState(t.RandomState),
	)
}

// Fit learns one transformer per retained channel and stores the training
// bags. Multivariate input goes through accuracy-based channel selection
// first.
func (t *IndividualTDE) Fit(X [][][]float64, y []int) error {
	if len(X) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "tde: fit")
	}
	if len(X) != len(y) {
		return errors.NewDimensionError("tde: fit", len(X), len(y), 0)
	}

	seed := t.RandomState
	if seed < 0 {
		seed = rand.Int63()
	}
	t.rng = rand.New(rand.NewSource(seed))
	t.ClassVals = append([]int(nil), y...)

	nChannels := len(X[0])
	if nChannels == 1 {
		t.Dims = []int{0}
	} else {
		if err := t.selectDims(X, y); err != nil {
			return err
		}
	}

	t.Transformers = make([]*sfa.SFA, 0, len(t.Dims))
	t.Bags = make([]map[WordKey]uint32, len(X))
	for i := range t.Bags {
		t.Bags[i] = map[WordKey]uint32{}
	}

	for _, dim := range t.Dims {
		transformer := t.newTransformer()
		series := channel(X, dim)
		if err := transformer.Fit(series, y); err != nil {
			return err
		}
		t.Transformers = append(t.Transformers, transformer)

		words, err := transformer.TransformWords(series)
		if err != nil {
			return err
		}
		nWindows := len(series[0]) - t.WindowSize + 1
		for i, stream := range words {
			t.addToBag(t.Bags[i], stream, nWindows, dim)
		}
	}

	t.SetFitted()
	return nil
}

// selectDims fits a throwaway classifier per channel and keeps those whose
// cross-validation accuracy clears DimThreshold of the best, capped at
// MaxDims channels.
func (t *IndividualTDE) selectDims(X [][][]float64, y []int) error {
	nChannels := len(X[0])
	accuracies := make([]float64, nChannels)

	for dim := 0; dim < nChannels; dim++ {
		transformer := t.newTransformer()
		series := channel(X, dim)
		if err := transformer.Fit(series, y); err != nil {
			return err
		}
		words, err := transformer.TransformWords(series)
		if err != nil {
			return err
		}

		nWindows := len(series[0]) - t.WindowSize + 1
		bags := make([]map[WordKey]uint32, len(X))
		for i, stream := range words {
			bags[i] = map[WordKey]uint32{}
			t.addToBag(bags[i], stream, nWindows, 0)
		}
		accuracies[dim] = t.bagAccuracy(bags, y)
	}

	best := 0.0
	for _, a := range accuracies {
		if a > best {
			best = a
		}
	}

	var dims []int
	for dim, a := range accuracies {
		if a >= best*t.DimThreshold {
			dims = append(dims, dim)
		}
	}
	if len(dims) > t.MaxDims {
		sort.SliceStable(dims, func(a, b int) bool {
			return accuracies[dims[a]] > accuracies[dims[b]]
		})
		dims = dims[:t.MaxDims]
		sort.Ints(dims)
	}

	t.Dims = dims
	return nil
}

// addToBag counts one word stream into a bag. Unigrams are counted once per
// pyramid level, keyed by the segment of the series their window starts in.
// Bigrams are counted at the whole-series level with the bigram marker set.
func (t *IndividualTDE) addToBag(bag map[WordKey]uint32, stream []uint64, nWindows, dim int) {
	if nWindows > len(stream) {
		nWindows = len(stream)
	}

	for j, w := range stream[:nWindows] {
		if w == 0 {
			continue
		}
		for l := 1; l <= t.Levels; l++ {
			nSegments := 1 << (l - 1)
			segment := j * nSegments / nWindows
			levelID := nSegments - 1 + segment
			bag[WordKey{Word: w, Aux: auxFor(dim, levelID)}]++
		}
	}

	for _, w := range stream[nWindows:] {
		if w == 0 {
			continue
		}
		bag[WordKey{Word: w, Aux: auxFor(dim, 0) | bigramAux}]++
	}
}

// transformBags converts new cases to bags with the fitted transformers.
func (t *IndividualTDE) transformBags(X [][][]float64) ([]map[WordKey]uint32, error) {
	bags := make([]map[WordKey]uint32, len(X))
	for i := range bags {
		bags[i] = map[WordKey]uint32{}
	}

	for k, dim := range t.Dims {
		series := channel(X, dim)
		words, err := t.Transformers[k].TransformWords(series)
		if err != nil {
			return nil, err
		}
		nWindows := len(series[0]) - t.WindowSize + 1
		for i, stream := range words {
			t.addToBag(bags[i], stream, nWindows, dim)
		}
	}
	return bags, nil
}

// Predict labels each case by its most similar training bag, breaking
// similarity ties with a coin flip per contender. The per-case scans run in
// parallel with one derived generator per chunk, so the output depends only
// on the seed.
func (t *IndividualTDE) Predict(X [][][]float64) ([]int, error) {
	if !t.IsFitted() {
		return nil, errors.NewNotFittedError("IndividualTDE", "Predict")
	}

	bags, err := t.transformBags(X)
	if err != nil {
		return nil, err
	}

	rootSeed := t.RandomState
	if t.rng != nil {
		rootSeed = t.rng.Int63()
	}

	preds := make([]int, len(bags))
	parallel.ParallelizeSeeded(len(bags), rootSeed, func(start, end int, rng *rand.Rand) {
		for i := start; i < end; i++ {
			preds[i] = t.nearest(bags[i], -1, TieBreakRandom, rng)
		}
	})
	return preds, nil
}

// nearest scans the training bags for the highest intersection similarity,
// skipping the given index. TieBreakFirst keeps the earliest best match and
// needs no generator.
func (t *IndividualTDE) nearest(bag map[WordKey]uint32, skip int, tie TieBreak, rng *rand.Rand) int {
	bestSim := -1.0
	best := 0

	for j, trainBag := range t.Bags {
		if j == skip {
			continue
		}
		sim := distances.HistogramIntersection(bag, trainBag)
		if sim > bestSim || (sim == bestSim && tie == TieBreakRandom && rng.Float64() < 0.5) {
			bestSim = sim
			best = j
		}
	}
	return t.ClassVals[best]
}

// bagAccuracy is the plain leave-one-out accuracy of a candidate bag set,
// used during channel selection.
func (t *IndividualTDE) bagAccuracy(bags []map[WordKey]uint32, y []int) float64 {
	saved := t.Bags
	savedVals := t.ClassVals
	t.Bags = bags
	t.ClassVals = y

	correct := 0
	for i, bag := range bags {
		if t.nearest(bag, i, TieBreakFirst, nil) == y[i] {
			correct++
		}
	}

	t.Bags = saved
	t.ClassVals = savedVals
	return float64(correct) / float64(len(bags))
}

// TrainAccuracy runs leave-one-out cross-validation over the training bags,
// aborting with -1 once the remaining cases cannot reach lowestAcc.
func (t *IndividualTDE) TrainAccuracy(lowestAcc float64, keepPredictions bool) float64 {
	n := len(t.ClassVals)
	if n == 0 {
		return 0
	}
	requiredCorrect := int(lowestAcc * float64(n))

	// the per-case scans are independent, so each chunk runs in parallel;
	// the abort check between chunks keeps the early-termination contract
	// from paying for predictions it will never count
	const chunk = 64
	preds := make([]int, n)
	correct := 0
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		parallel.Parallelize(end-start, func(lo, hi int) {
			for i := start + lo; i < start+hi; i++ {
				preds[i] = t.nearest(t.Bags[i], i, TieBreakFirst, nil)
			}
		})
		for i := start; i < end; i++ {
			if correct+n-i < requiredCorrect {
				return -1
			}
			if preds[i] == t.ClassVals[i] {
				correct++
			}
		}
	}

	if keepPredictions {
		t.TrainPredictions = preds
	}
	return float64(correct) / float64(n)
}
