package dictionary

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsgo/core/model"
	"github.com/YuminosukeSato/tsgo/distances"
	"github.com/YuminosukeSato/tsgo/pkg/errors"
	"github.com/YuminosukeSato/tsgo/sfa"
)

// IndividualBOSS is a single 1-nearest-neighbour classifier over word
// histograms at one (windowSize, wordLength, norm) configuration.
type IndividualBOSS struct {
	model.BaseEstimator

	WindowSize   int
	WordLength   int
	Norm         bool
	AlphabetSize int
	SaveWords    bool
	UseBoss      bool
	Selection    sfa.FeatureSelection
	RandomState  int64

	Transformer *sfa.SFA
	Bags        *mat.Dense
	ClassVals   []int

	// ensemble bookkeeping
	Accuracy         float64
	Subsample        []int
	TrainPredictions []int
}

// NewIndividualBOSS builds an unfitted individual with the given window
// configuration. UseBoss defaults to true.
func NewIndividualBOSS(windowSize, wordLength int, norm bool) *IndividualBOSS {
	return &IndividualBOSS{
		WindowSize:   windowSize,
		WordLength:   wordLength,
		Norm:         norm,
		AlphabetSize: 4,
		UseBoss:      true,
		Selection:    sfa.SelectionNone,
		RandomState:  -1,
	}
}

// Fit learns the transformer and stores the reference bags and labels.
func (b *IndividualBOSS) Fit(X [][]float64, y []int) error {
	if len(X) != len(y) {
		return errors.NewDimensionError("boss: fit", len(X), len(y), 0)
	}

	b.Transformer = sfa.NewSFA(
		sfa.WithWordLength(b.WordLength),
		sfa.WithAlphabetSize(b.AlphabetSize),
		sfa.WithWindowSize(b.WindowSize),
		sfa.WithNorm(b.Norm),
		sfa.WithRemoveRepeatWords(true),
		sfa.WithSaveWords(b.SaveWords),
		sfa.WithFeatureSelection(b.Selection),
		sfa.WithRandomState(b.RandomState),
	)

	bags, err := b.Transformer.FitTransform(X, y)
	if err != nil {
		return err
	}

	b.Bags = bags
	b.ClassVals = append([]int(nil), y...)
	b.SetFitted()
	return nil
}

// Predict labels each case by its nearest training bag. An individual whose
// feature selection retained nothing falls back to the majority class.
func (b *IndividualBOSS) Predict(X [][]float64) ([]int, error) {
	if !b.IsFitted() {
		return nil, errors.NewNotFittedError("IndividualBOSS", "Predict")
	}

	if b.Transformer.FeatureCount == 0 {
		preds := make([]int, len(X))
		majority := majorityClass(b.ClassVals)
		for i := range preds {
			preds[i] = majority
		}
		return preds, nil
	}

	bags, err := b.Transformer.Transform(X)
	if err != nil {
		return nil, err
	}

	D := distances.Pairwise(bags, b.Bags, b.UseBoss)
	rows, cols := D.Dims()
	preds := make([]int, rows)
	for i := 0; i < rows; i++ {
		row := D.RawRowView(i)
		best := 0
		for j := 1; j < cols; j++ {
			if row[j] < row[best] {
				best = j
			}
		}
		preds[i] = b.ClassVals[best]
	}
	return preds, nil
}

// TrainAccuracy runs leave-one-out cross-validation over the training bags.
// The +Inf diagonal of the self-distance matrix excludes each case from its
// own neighbourhood. The scan aborts with -1 as soon as the remaining cases
// cannot lift the accuracy above lowestAcc.
func (b *IndividualBOSS) TrainAccuracy(lowestAcc float64, keepPredictions bool) float64 {
	n := len(b.ClassVals)
	if n == 0 {
		return 0
	}
	if b.Transformer.FeatureCount == 0 {
		return loocvDegenerate(b, lowestAcc, keepPredictions)
	}

	D := distances.PairwiseSelf(b.Bags, b.UseBoss)
	requiredCorrect := int(lowestAcc * float64(n))

	var preds []int
	if keepPredictions {
		preds = make([]int, n)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if correct+n-i < requiredCorrect {
			return -1
		}
		row := D.RawRowView(i)
		best := 0
		for j := 1; j < n; j++ {
			if row[j] < row[best] {
				best = j
			}
		}
		p := b.ClassVals[best]
		if p == b.ClassVals[i] {
			correct++
		}
		if keepPredictions {
			preds[i] = p
		}
	}

	if keepPredictions {
		b.TrainPredictions = preds
	}
	return float64(correct) / float64(n)
}

// loocvDegenerate scores the majority-class fallback the same way, keeping
// the early-abort contract.
func loocvDegenerate(b *IndividualBOSS, lowestAcc float64, keepPredictions bool) float64 {
	n := len(b.ClassVals)
	majority := majorityClass(b.ClassVals)
	requiredCorrect := int(lowestAcc * float64(n))

	var preds []int
	if keepPredictions {
		preds = make([]int, n)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if correct+n-i < requiredCorrect {
			return -1
		}
		if majority == b.ClassVals[i] {
			correct++
		}
		if keepPredictions {
			preds[i] = majority
		}
	}

	if keepPredictions {
		b.TrainPredictions = preds
	}
	return float64(correct) / float64(n)
}

// Shorten recounts the stored words at a shorter word length and returns a
// new individual sharing the transformer. Requires SaveWords at fit time.
func (b *IndividualBOSS) Shorten(wordLength int, y []int) (*IndividualBOSS, error) {
	transformer, bags, err := b.Transformer.ShortenBags(wordLength, y)
	if err != nil {
		return nil, err
	}

	shortened := &IndividualBOSS{
		WindowSize:   b.WindowSize,
		WordLength:   wordLength,
		Norm:         b.Norm,
		AlphabetSize: b.AlphabetSize,
		SaveWords:    b.SaveWords,
		UseBoss:      b.UseBoss,
		Selection:    b.Selection,
		RandomState:  b.RandomState,
		Transformer:  transformer,
		Bags:         bags,
		ClassVals:    b.ClassVals,
	}
	shortened.SetFitted()
	return shortened, nil
}

// Clean drops the saved training words once the grid search is over, the
// dominant memory cost of a retained individual.
func (b *IndividualBOSS) Clean() {
	if b.Transformer != nil {
		b.Transformer.Words = nil
		b.Transformer.SaveWords = false
	}
	b.SaveWords = false
}

func majorityClass(y []int) int {
	counts := map[int]int{}
	best := y[0]
	for _, label := range y {
		counts[label]++
		if counts[label] > counts[best] || (counts[label] == counts[best] && label < best) {
			best = label
		}
	}
	return best
}
