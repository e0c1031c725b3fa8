package dictionary

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsgo/core/model"
	"github.com/YuminosukeSato/tsgo/pkg/errors"
	"github.com/YuminosukeSato/tsgo/pkg/log"
	"github.com/YuminosukeSato/tsgo/sfa"
)

var (
	_ model.Classifier     = (*BOSSEnsemble)(nil)
	_ model.TrainEstimator = (*BOSSEnsemble)(nil)
)

// wordLengths is the fixed descending grid searched per window. Individuals
// are fitted once at the longest length and shortened from there.
var wordLengths = [...]int{16, 14, 12, 10, 8}

var normOptions = [...]bool{true, false}

// BOSSEnsemble is the bag-of-SFA-symbols ensemble: an exhaustive grid over
// window sizes and normalization, retaining every configuration whose
// cross-validation accuracy clears a fraction of the best seen.
type BOSSEnsemble struct {
	model.BaseEstimator

	Threshold       float64
	MaxEnsembleSize int
	MaxWinLenProp   float64
	MinWindow       int
	AlphabetSize    int
	UseBoss         bool
	Selection       sfa.FeatureSelection
	RandomState     int64

	Estimators  []*IndividualBOSS
	Classes     []int
	ClassIndex  map[int]int
	NCases      int
	NTimepoints int

	rng *rand.Rand
}

// NewBOSSEnsemble returns an ensemble with the standard configuration:
// retain threshold 0.92, capacity 500, minimum window 10.
func NewBOSSEnsemble(opts ...BOSSOption) *BOSSEnsemble {
	b := &BOSSEnsemble{
		Threshold:       0.92,
		MaxEnsembleSize: 500,
		MaxWinLenProp:   1.0,
		MinWindow:       10,
		AlphabetSize:    4,
		UseBoss:         true,
		Selection:       sfa.SelectionNone,
		RandomState:     -1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BOSSOption configures a BOSSEnsemble before fitting.
type BOSSOption func(*BOSSEnsemble)

func WithThreshold(t float64) BOSSOption { return func(b *BOSSEnsemble) { b.Threshold = t } }
func WithMaxEnsembleSize(n int) BOSSOption {
	return func(b *BOSSEnsemble) { b.MaxEnsembleSize = n }
}
func WithMaxWinLenProp(p float64) BOSSOption {
	return func(b *BOSSEnsemble) { b.MaxWinLenProp = p }
}
func WithMinWindow(w int) BOSSOption { return func(b *BOSSEnsemble) { b.MinWindow = w } }
func WithUseBossDistance(on bool) BOSSOption {
	return func(b *BOSSEnsemble) { b.UseBoss = on }
}
func WithBOSSFeatureSelection(f sfa.FeatureSelection) BOSSOption {
	return func(b *BOSSEnsemble) { b.Selection = f }
}
func WithBOSSRandomState(seed int64) BOSSOption {
	return func(b *BOSSEnsemble) { b.RandomState = seed }
}

// Fit runs the grid search and retains the qualifying individuals.
func (b *BOSSEnsemble) Fit(X [][][]float64, y []int) error {
	series, err := squeeze(X)
	if err != nil {
		return err
	}
	if len(series) != len(y) {
		return errors.NewDimensionError("boss: fit", len(series), len(y), 0)
	}

	b.NCases = len(series)
	b.NTimepoints = len(series[0])
	mapping := newClassMapping(y)
	b.Classes = mapping.Classes
	b.ClassIndex = mapping.Index
	b.Estimators = nil

	seed := b.RandomState
	if seed < 0 {
		seed = rand.Int63()
	}
	b.rng = rand.New(rand.NewSource(seed))

	maxWindow := int(float64(b.NTimepoints) * b.MaxWinLenProp)
	if maxWindow > b.NTimepoints {
		maxWindow = b.NTimepoints
	}
	if b.MinWindow > maxWindow+1 {
		return errors.NewValidationError("minWindow",
			"exceeds the largest searchable window for this series length", b.MinWindow)
	}

	maxWindowSearches := b.NTimepoints / 4
	if maxWindowSearches < 1 {
		maxWindowSearches = 1
	}
	winInc := (maxWindow - b.MinWindow) / maxWindowSearches
	if winInc < 1 {
		winInc = 1
	}

	logger := log.GetLoggerWithName("boss")
	bestEnsembleAcc := -1.0

	for _, norm := range normOptions {
		for winSize := b.MinWindow; winSize <= maxWindow; winSize += winInc {
			candidate, err := b.bestAtWindow(series, y, winSize, norm)
			if err != nil {
				return err
			}

			if candidate.Accuracy < bestEnsembleAcc*b.Threshold {
				continue
			}

			candidate.Clean()
			if !b.admit(candidate) {
				continue
			}

			if candidate.Accuracy > bestEnsembleAcc {
				bestEnsembleAcc = candidate.Accuracy
				b.prune(bestEnsembleAcc)
			}
		}
	}

	logger.Debug("fitted ensemble",
		"n_estimators", len(b.Estimators),
		"best_accuracy", bestEnsembleAcc,
	)

	b.SetFitted()
	return nil
}

// bestAtWindow fits one individual at the longest word length and walks the
// shortening grid, keeping the most accurate variant. Later word lengths win
// ties, matching the preference for smaller vocabularies. Grid entries the
// window already caps away are skipped: a small window can fit fewer letters
// than the longest grid length asks for.
func (b *BOSSEnsemble) bestAtWindow(series [][]float64, y []int, winSize int, norm bool) (*IndividualBOSS, error) {
	base := NewIndividualBOSS(winSize, wordLengths[0], norm)
	base.AlphabetSize = b.AlphabetSize
	base.UseBoss = b.UseBoss
	base.Selection = b.Selection
	base.RandomState = b.RandomState
	base.SaveWords = true

	if err := base.Fit(series, y); err != nil {
		return nil, err
	}

	var best *IndividualBOSS
	bestAcc := -1.0

	current := base
	for _, wordLen := range wordLengths {
		if wordLen != wordLengths[0] {
			if wordLen >= current.Transformer.WordLengthFitted() {
				continue
			}
			shortened, err := current.Shorten(wordLen, y)
			if err != nil {
				return nil, err
			}
			current = shortened
		}

		acc := current.TrainAccuracy(bestAcc, true)
		if acc >= bestAcc {
			bestAcc = acc
			current.Accuracy = acc
			best = current
		}
	}

	return best, nil
}

// prune drops members that no longer clear the threshold against a new best
// accuracy.
func (b *BOSSEnsemble) prune(bestAcc float64) {
	kept := b.Estimators[:0]
	for _, e := range b.Estimators {
		if e.Accuracy >= bestAcc*b.Threshold {
			kept = append(kept, e)
		}
	}
	b.Estimators = kept
}

// admit adds a candidate below capacity; at capacity it must strictly beat
// the worst retained accuracy, which it then replaces.
func (b *BOSSEnsemble) admit(candidate *IndividualBOSS) bool {
	if len(b.Estimators) < b.MaxEnsembleSize {
		b.Estimators = append(b.Estimators, candidate)
		return true
	}
	worst := b.worstIndex()
	if candidate.Accuracy > b.Estimators[worst].Accuracy {
		b.Estimators[worst] = candidate
		return true
	}
	return false
}

func (b *BOSSEnsemble) worstIndex() int {
	worst := 0
	for i, e := range b.Estimators {
		if e.Accuracy < b.Estimators[worst].Accuracy {
			worst = i
		}
	}
	return worst
}

// Predict labels each case by the unweighted vote of the ensemble, breaking
// ties uniformly at random.
func (b *BOSSEnsemble) Predict(X [][][]float64) ([]int, error) {
	proba, err := b.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return restoredMapping(b.Classes, b.ClassIndex).probaToPredictions(proba, TieBreakRandom, b.rng), nil
}

// PredictProba returns per-class vote fractions.
func (b *BOSSEnsemble) PredictProba(X [][][]float64) (*mat.Dense, error) {
	if !b.IsFitted() {
		return nil, errors.NewNotFittedError("BOSSEnsemble", "PredictProba")
	}
	series, err := squeeze(X)
	if err != nil {
		return nil, err
	}

	proba := mat.NewDense(len(series), len(b.Classes), nil)
	if len(b.Estimators) == 0 {
		for i := 0; i < len(series); i++ {
			uniformRow(proba.RawRowView(i))
		}
		return proba, nil
	}

	for _, e := range b.Estimators {
		preds, err := e.Predict(series)
		if err != nil {
			return nil, err
		}
		for i, p := range preds {
			proba.Set(i, b.ClassIndex[p], proba.At(i, b.ClassIndex[p])+1)
		}
	}

	proba.Scale(1.0/float64(len(b.Estimators)), proba)
	return proba, nil
}

// FitPredict fits the ensemble and returns leave-one-out estimates for the
// training set, reusing the cross-validation predictions computed during the
// grid search instead of re-scoring the members on their own training data.
func (b *BOSSEnsemble) FitPredict(X [][][]float64, y []int) ([]int, error) {
	proba, err := b.FitPredictProba(X, y)
	if err != nil {
		return nil, err
	}
	return restoredMapping(b.Classes, b.ClassIndex).probaToPredictions(proba, TieBreakRandom, b.rng), nil
}

// FitPredictProba fits and returns per-class training probability estimates.
func (b *BOSSEnsemble) FitPredictProba(X [][][]float64, y []int) (*mat.Dense, error) {
	if err := b.Fit(X, y); err != nil {
		return nil, err
	}

	proba := mat.NewDense(b.NCases, len(b.Classes), nil)
	if len(b.Estimators) == 0 {
		for i := 0; i < b.NCases; i++ {
			uniformRow(proba.RawRowView(i))
		}
		return proba, nil
	}

	for _, e := range b.Estimators {
		for i, p := range e.TrainPredictions {
			proba.Set(i, b.ClassIndex[p], proba.At(i, b.ClassIndex[p])+1)
		}
	}

	proba.Scale(1.0/float64(len(b.Estimators)), proba)
	return proba, nil
}

// NEstimators reports the retained ensemble size.
func (b *BOSSEnsemble) NEstimators() int { return len(b.Estimators) }
