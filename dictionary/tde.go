package dictionary

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsgo/core/model"
	"github.com/YuminosukeSato/tsgo/linear"
	"github.com/YuminosukeSato/tsgo/pkg/errors"
	"github.com/YuminosukeSato/tsgo/pkg/log"
	"github.com/YuminosukeSato/tsgo/preprocessing"
)

var (
	_ model.Classifier     = (*TemporalDictionaryEnsemble)(nil)
	_ model.TrainEstimator = (*TemporalDictionaryEnsemble)(nil)
)

// Train estimate methods for FitPredict.
const (
	// EstimateLOOCV reuses each member's leave-one-out predictions on its
	// subsample.
	EstimateLOOCV = "loocv"
	// EstimateOOB scores each member on the cases outside its subsample.
	EstimateOOB = "oob"
)

var tdeLevels = [...]int{1, 2, 3}
var igbOptions = [...]bool{true, false}

// tdeParameters is one (windowSize, wordLength, norm, levels, igb) draw.
type tdeParameters struct {
	WindowSize int
	WordLength int
	Norm       bool
	Levels     int
	IGB        bool
}

// vector flattens the draw for the accuracy surrogate.
func (p tdeParameters) vector() []float64 {
	norm, igb := 0.0, 0.0
	if p.Norm {
		norm = 1
	}
	if p.IGB {
		igb = 1
	}
	return []float64{float64(p.WindowSize), float64(p.WordLength), norm, float64(p.Levels), igb}
}

// TemporalDictionaryEnsemble samples dictionary configurations, guided after
// a random warm-up phase by a kernel ridge surrogate that predicts each
// untried configuration's accuracy from the configurations already scored.
type TemporalDictionaryEnsemble struct {
	model.BaseEstimator

	NParameterSamples      int
	MaxEnsembleSize        int
	RandomlySelectedParams int
	MinWindow              int
	MaxWinLenProp          float64
	TimeLimit              time.Duration
	ContractMaxN           int
	TrainEstimateMethod    string
	Bigrams                bool
	RandomState            int64

	Estimators  []*IndividualTDE
	Weights     []float64
	Classes     []int
	ClassIndex  map[int]int
	NCases      int
	NChannels   int
	NTimepoints int

	PrevParameters [][]float64
	PrevAccuracies []float64

	rng       *rand.Rand
	weightSum float64
}

// NewTemporalDictionaryEnsemble returns an ensemble with the standard
// configuration: 250 parameter samples, 50 random warm-up draws, capacity
// 50, leave-one-out train estimates.
func NewTemporalDictionaryEnsemble(opts ...TDEOption) *TemporalDictionaryEnsemble {
	t := &TemporalDictionaryEnsemble{
		NParameterSamples:      250,
		MaxEnsembleSize:        50,
		RandomlySelectedParams: 50,
		MinWindow:              10,
		MaxWinLenProp:          1.0,
		ContractMaxN:           1000,
		TrainEstimateMethod:    EstimateLOOCV,
		Bigrams:                true,
		RandomState:            -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TDEOption configures a TemporalDictionaryEnsemble before fitting.
type TDEOption func(*TemporalDictionaryEnsemble)

func WithTDENParameterSamples(n int) TDEOption {
	return func(t *TemporalDictionaryEnsemble) { t.NParameterSamples = n }
}
func WithTDEMaxEnsembleSize(n int) TDEOption {
	return func(t *TemporalDictionaryEnsemble) { t.MaxEnsembleSize = n }
}
func WithRandomlySelectedParams(n int) TDEOption {
	return func(t *TemporalDictionaryEnsemble) { t.RandomlySelectedParams = n }
}
func WithTDETimeLimit(d time.Duration) TDEOption {
	return func(t *TemporalDictionaryEnsemble) { t.TimeLimit = d }
}
func WithTDEContractMaxN(n int) TDEOption {
	return func(t *TemporalDictionaryEnsemble) { t.ContractMaxN = n }
}
func WithTrainEstimateMethod(method string) TDEOption {
	return func(t *TemporalDictionaryEnsemble) { t.TrainEstimateMethod = method }
}
func WithTDERandomState(seed int64) TDEOption {
	return func(t *TemporalDictionaryEnsemble) { t.RandomState = seed }
}

func (t *TemporalDictionaryEnsemble) parameterPool() []tdeParameters {
	maxWindow := int(float64(t.NTimepoints) * t.MaxWinLenProp)
	if maxWindow > t.NTimepoints {
		maxWindow = t.NTimepoints
	}

	maxWindowSearches := t.NTimepoints / 4
	if maxWindowSearches < 1 {
		maxWindowSearches = 1
	}
	winInc := (maxWindow - t.MinWindow) / maxWindowSearches
	if winInc < 1 {
		winInc = 1
	}

	var pool []tdeParameters
	for _, norm := range normOptions {
		for winSize := t.MinWindow; winSize <= maxWindow; winSize += winInc {
			for _, wordLen := range wordLengths {
				for _, levels := range tdeLevels {
					for _, igb := range igbOptions {
						pool = append(pool, tdeParameters{
							WindowSize: winSize,
							WordLength: wordLen,
							Norm:       norm,
							Levels:     levels,
							IGB:        igb,
						})
					}
				}
			}
		}
	}
	return pool
}

// Fit samples configurations until the budget or contract is exhausted,
// keeping the most accurate members up to capacity with accuracy^4 weights.
func (t *TemporalDictionaryEnsemble) Fit(X [][][]float64, y []int) error {
	if len(X) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "tde: fit")
	}
	if len(X) != len(y) {
		return errors.NewDimensionError("tde: fit", len(X), len(y), 0)
	}
	if t.TrainEstimateMethod != EstimateLOOCV && t.TrainEstimateMethod != EstimateOOB {
		return errors.NewValidationError("trainEstimateMethod",
			"must be loocv or oob", t.TrainEstimateMethod)
	}

	t.NCases = len(X)
	t.NChannels = len(X[0])
	t.NTimepoints = len(X[0][0])
	mapping := newClassMapping(y)
	t.Classes = mapping.Classes
	t.ClassIndex = mapping.Index
	t.Estimators = nil
	t.Weights = nil
	t.weightSum = 0
	t.PrevParameters = nil
	t.PrevAccuracies = nil

	seed := t.RandomState
	if seed < 0 {
		seed = rand.Int63()
	}
	t.rng = rand.New(rand.NewSource(seed))

	if t.MinWindow > t.NTimepoints {
		return errors.NewValidationError("minWindow",
			"exceeds the series length", t.MinWindow)
	}

	pool := t.parameterPool()
	subsampleSize := int(subsampleProportion * float64(t.NCases))
	if subsampleSize < 1 {
		subsampleSize = 1
	}

	start := time.Now()
	sampled := 0
	lowestAcc := math.Inf(1)
	lowestIdx := -1

	for len(pool) > 0 && t.keepSampling(time.Since(start), sampled) {
		pick, err := t.selectParameters(pool, sampled)
		if err != nil {
			return err
		}
		params := pool[pick]
		pool[pick] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
		sampled++

		subsample := subsampleIndices(t.rng, t.NCases, subsampleSize, y)
		subX := make([][][]float64, len(subsample))
		subY := make([]int, len(subsample))
		for i, j := range subsample {
			subX[i] = X[j]
			subY[i] = y[j]
		}

		member := NewIndividualTDE(params.WindowSize, params.WordLength, params.Norm,
			params.Levels, params.IGB)
		member.Bigrams = t.Bigrams && t.NChannels == 1
		member.RandomState = t.RandomState
		if err := member.Fit(subX, subY); err != nil {
			return err
		}
		member.Subsample = subsample

		abortAcc := -1.0
		if len(t.Estimators) >= t.MaxEnsembleSize {
			abortAcc = lowestAcc
		}
		acc := member.TrainAccuracy(abortAcc, t.TrainEstimateMethod == EstimateLOOCV)

		t.PrevParameters = append(t.PrevParameters, params.vector())
		t.PrevAccuracies = append(t.PrevAccuracies, math.Max(acc, 0))

		if acc < 0 {
			continue
		}
		member.Accuracy = acc

		weight := math.Pow(acc, 4)
		if weight == 0 {
			weight = weightFloor
		}

		if len(t.Estimators) < t.MaxEnsembleSize {
			t.Estimators = append(t.Estimators, member)
			t.Weights = append(t.Weights, weight)
			t.weightSum += weight
		} else if acc > lowestAcc {
			t.weightSum += weight - t.Weights[lowestIdx]
			t.Estimators[lowestIdx] = member
			t.Weights[lowestIdx] = weight
		} else {
			continue
		}

		lowestAcc, lowestIdx = t.worstMember()
	}

	logger := log.GetLoggerWithName("tde")
	if t.TimeLimit > 0 && time.Since(start) >= t.TimeLimit {
		logger.Info("train contract expired",
			"limit", t.TimeLimit.String(),
			"parameters_sampled", sampled,
		)
	}
	logger.Debug("fitted ensemble",
		"n_estimators", len(t.Estimators),
		"parameters_sampled", sampled,
		"train_time", time.Since(start).String(),
	)

	t.SetFitted()
	return nil
}

func (t *TemporalDictionaryEnsemble) keepSampling(elapsed time.Duration, sampled int) bool {
	if t.TimeLimit > 0 {
		return (elapsed < t.TimeLimit && sampled < t.ContractMaxN) ||
			sampled < t.NParameterSamples
	}
	return sampled < t.NParameterSamples
}

// selectParameters picks the next pool entry: uniformly during the warm-up
// phase, then by the surrogate's predicted accuracy with random tie-breaks.
func (t *TemporalDictionaryEnsemble) selectParameters(pool []tdeParameters, sampled int) (int, error) {
	if sampled < t.RandomlySelectedParams || len(t.PrevParameters) < 2 {
		return t.rng.Intn(len(pool)), nil
	}

	history := mat.NewDense(len(t.PrevParameters), len(t.PrevParameters[0]), nil)
	for i, v := range t.PrevParameters {
		history.SetRow(i, v)
	}

	scaler := preprocessing.NewStandardScaler(true, true)
	scaled, err := scaler.FitTransform(history)
	if err != nil {
		return 0, err
	}

	surrogate := linear.NewKernelRidge(1.0, 1)
	if err := surrogate.Fit(scaled, t.PrevAccuracies); err != nil {
		return 0, err
	}

	candidates := mat.NewDense(len(pool), len(pool[0].vector()), nil)
	for i, p := range pool {
		candidates.SetRow(i, p.vector())
	}
	scaledCandidates, err := scaler.Transform(candidates)
	if err != nil {
		return 0, err
	}
	predicted, err := surrogate.Predict(scaledCandidates)
	if err != nil {
		return 0, err
	}

	best := 0
	ties := 1
	for i := 1; i < len(predicted); i++ {
		switch {
		case predicted[i] > predicted[best]:
			best = i
			ties = 1
		case predicted[i] == predicted[best]:
			ties++
			if t.rng.Intn(ties) == 0 {
				best = i
			}
		}
	}
	return best, nil
}

// totalWeight returns the cached weight sum, recomputing it from the
// exported weights when the cache is gone after decoding.
func (t *TemporalDictionaryEnsemble) totalWeight() float64 {
	if t.weightSum == 0 {
		for _, w := range t.Weights {
			t.weightSum += w
		}
	}
	return t.weightSum
}

func (t *TemporalDictionaryEnsemble) worstMember() (float64, int) {
	worstAcc := math.Inf(1)
	worstIdx := -1
	for i, e := range t.Estimators {
		if e.Accuracy < worstAcc {
			worstAcc = e.Accuracy
			worstIdx = i
		}
	}
	return worstAcc, worstIdx
}

// Predict labels each case by the accuracy-weighted vote of the ensemble.
func (t *TemporalDictionaryEnsemble) Predict(X [][][]float64) ([]int, error) {
	proba, err := t.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return restoredMapping(t.Classes, t.ClassIndex).probaToPredictions(proba, TieBreakRandom, t.rng), nil
}

// PredictProba returns normalized accuracy-weighted vote distributions.
func (t *TemporalDictionaryEnsemble) PredictProba(X [][][]float64) (*mat.Dense, error) {
	if !t.IsFitted() {
		return nil, errors.NewNotFittedError("TemporalDictionaryEnsemble", "PredictProba")
	}
	if len(X) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "tde: predict")
	}

	proba := mat.NewDense(len(X), len(t.Classes), nil)
	weightSum := t.totalWeight()
	if len(t.Estimators) == 0 || weightSum == 0 {
		for i := 0; i < len(X); i++ {
			uniformRow(proba.RawRowView(i))
		}
		return proba, nil
	}

	for m, e := range t.Estimators {
		preds, err := e.Predict(X)
		if err != nil {
			return nil, err
		}
		for i, p := range preds {
			col := t.ClassIndex[p]
			proba.Set(i, col, proba.At(i, col)+t.Weights[m])
		}
	}

	proba.Scale(1.0/weightSum, proba)
	return proba, nil
}

// FitPredict fits and returns training-set estimates without a separate
// evaluation pass.
func (t *TemporalDictionaryEnsemble) FitPredict(X [][][]float64, y []int) ([]int, error) {
	proba, err := t.FitPredictProba(X, y)
	if err != nil {
		return nil, err
	}
	return restoredMapping(t.Classes, t.ClassIndex).probaToPredictions(proba, TieBreakRandom, t.rng), nil
}

// FitPredictProba fits and builds per-case training distributions. With
// loocv estimates each member votes on the cases of its own subsample with
// its held-out predictions; with oob it votes on the cases it never trained
// on. Cases no member scored get the uniform distribution.
func (t *TemporalDictionaryEnsemble) FitPredictProba(X [][][]float64, y []int) (*mat.Dense, error) {
	if err := t.Fit(X, y); err != nil {
		return nil, err
	}

	proba := mat.NewDense(t.NCases, len(t.Classes), nil)

	for m, e := range t.Estimators {
		if t.TrainEstimateMethod == EstimateOOB {
			if err := t.addOOBVotes(proba, e, t.Weights[m], X); err != nil {
				return nil, err
			}
			continue
		}
		for i, j := range e.Subsample {
			if i >= len(e.TrainPredictions) {
				break
			}
			col := t.ClassIndex[e.TrainPredictions[i]]
			proba.Set(j, col, proba.At(j, col)+t.Weights[m])
		}
	}

	for i := 0; i < t.NCases; i++ {
		row := proba.RawRowView(i)
		var sum float64
		for _, v := range row {
			sum += v
		}
		if sum == 0 {
			uniformRow(row)
			continue
		}
		for j := range row {
			row[j] /= sum
		}
	}

	return proba, nil
}

// addOOBVotes scores one member on the cases outside its subsample.
func (t *TemporalDictionaryEnsemble) addOOBVotes(proba *mat.Dense, e *IndividualTDE, weight float64, X [][][]float64) error {
	inBag := make([]bool, t.NCases)
	for _, j := range e.Subsample {
		inBag[j] = true
	}

	var oobIdx []int
	var oobX [][][]float64
	for j := 0; j < t.NCases; j++ {
		if !inBag[j] {
			oobIdx = append(oobIdx, j)
			oobX = append(oobX, X[j])
		}
	}
	if len(oobIdx) == 0 {
		return nil
	}

	preds, err := e.Predict(oobX)
	if err != nil {
		return err
	}
	for i, p := range preds {
		col := t.ClassIndex[p]
		proba.Set(oobIdx[i], col, proba.At(oobIdx[i], col)+weight)
	}
	return nil
}

// NEstimators reports the retained ensemble size.
func (t *TemporalDictionaryEnsemble) NEstimators() int { return len(t.Estimators) }
