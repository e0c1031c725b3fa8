package dictionary

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsgo/core/model"
	"github.com/YuminosukeSato/tsgo/pkg/errors"
	"github.com/YuminosukeSato/tsgo/pkg/log"
)

var (
	_ model.Classifier     = (*ContractableBOSS)(nil)
	_ model.TrainEstimator = (*ContractableBOSS)(nil)
)

// subsampleProportion is the fraction of the training set each randomized
// member trains on.
const subsampleProportion = 0.7

// weightFloor keeps a zero-accuracy member from vanishing entirely from the
// weighted vote.
const weightFloor = 1e-9

// bossParameters is one (windowSize, wordLength, norm) draw from the grid.
type bossParameters struct {
	WindowSize int
	WordLength int
	Norm       bool
}

// ContractableBOSS replaces the exhaustive BOSS grid with random parameter
// draws without replacement over a fixed-capacity, accuracy-weighted
// ensemble, optionally bounded by a training time contract.
type ContractableBOSS struct {
	model.BaseEstimator

	NParameterSamples int
	MaxEnsembleSize   int
	MaxWinLenProp     float64
	MinWindow         int
	TimeLimit         time.Duration
	ContractMaxN      int
	AlphabetSize      int
	UseBoss           bool
	RandomState       int64

	Estimators  []*IndividualBOSS
	Weights     []float64
	Classes     []int
	ClassIndex  map[int]int
	NCases      int
	NTimepoints int

	rng       *rand.Rand
	weightSum float64
}

// NewContractableBOSS returns an ensemble with the standard configuration:
// 250 parameter samples, capacity 50, no time contract.
func NewContractableBOSS(opts ...CBOSSOption) *ContractableBOSS {
	c := &ContractableBOSS{
		NParameterSamples: 250,
		MaxEnsembleSize:   50,
		MaxWinLenProp:     1.0,
		MinWindow:         10,
		ContractMaxN:      1000,
		AlphabetSize:      4,
		UseBoss:           true,
		RandomState:       -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CBOSSOption configures a ContractableBOSS before fitting.
type CBOSSOption func(*ContractableBOSS)

func WithNParameterSamples(n int) CBOSSOption {
	return func(c *ContractableBOSS) { c.NParameterSamples = n }
}
func WithCBOSSMaxEnsembleSize(n int) CBOSSOption {
	return func(c *ContractableBOSS) { c.MaxEnsembleSize = n }
}
func WithCBOSSMinWindow(w int) CBOSSOption {
	return func(c *ContractableBOSS) { c.MinWindow = w }
}
func WithTimeLimit(d time.Duration) CBOSSOption {
	return func(c *ContractableBOSS) { c.TimeLimit = d }
}
func WithContractMaxN(n int) CBOSSOption {
	return func(c *ContractableBOSS) { c.ContractMaxN = n }
}
func WithCBOSSRandomState(seed int64) CBOSSOption {
	return func(c *ContractableBOSS) { c.RandomState = seed }
}

// parameterPool enumerates every searchable configuration once; draws
// remove entries so no configuration is evaluated twice.
func (c *ContractableBOSS) parameterPool() []bossParameters {
	maxWindow := int(float64(c.NTimepoints) * c.MaxWinLenProp)
	if maxWindow > c.NTimepoints {
		maxWindow = c.NTimepoints
	}

	maxWindowSearches := c.NTimepoints / 4
	if maxWindowSearches < 1 {
		maxWindowSearches = 1
	}
	winInc := (maxWindow - c.MinWindow) / maxWindowSearches
	if winInc < 1 {
		winInc = 1
	}

	var pool []bossParameters
	for _, norm := range normOptions {
		for winSize := c.MinWindow; winSize <= maxWindow; winSize += winInc {
			for _, wordLen := range wordLengths {
				pool = append(pool, bossParameters{WindowSize: winSize, WordLength: wordLen, Norm: norm})
			}
		}
	}
	return pool
}

// Fit draws parameter configurations at random, trains each on a class-aware
// subsample and keeps the most accurate members up to capacity. With a time
// contract the sampling continues past NParameterSamples until the limit or
// ContractMaxN is reached.
func (c *ContractableBOSS) Fit(X [][][]float64, y []int) error {
	series, err := squeeze(X)
	if err != nil {
		return err
	}
	if len(series) != len(y) {
		return errors.NewDimensionError("cboss: fit", len(series), len(y), 0)
	}

	c.NCases = len(series)
	c.NTimepoints = len(series[0])
	mapping := newClassMapping(y)
	c.Classes = mapping.Classes
	c.ClassIndex = mapping.Index
	c.Estimators = nil
	c.Weights = nil
	c.weightSum = 0

	seed := c.RandomState
	if seed < 0 {
		seed = rand.Int63()
	}
	c.rng = rand.New(rand.NewSource(seed))

	if c.MinWindow > c.NTimepoints {
		return errors.NewValidationError("minWindow",
			"exceeds the series length", c.MinWindow)
	}

	pool := c.parameterPool()
	subsampleSize := int(subsampleProportion * float64(c.NCases))
	if subsampleSize < 1 {
		subsampleSize = 1
	}

	start := time.Now()
	sampled := 0
	lowestAcc := math.Inf(1)
	lowestIdx := -1

	for len(pool) > 0 && c.keepSampling(time.Since(start), sampled) {
		pick := c.rng.Intn(len(pool))
		params := pool[pick]
		pool[pick] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
		sampled++

		if params.WindowSize > c.NTimepoints {
			continue
		}

		subsample := subsampleIndices(c.rng, c.NCases, subsampleSize, y)
		subX := make([][]float64, len(subsample))
		subY := make([]int, len(subsample))
		for i, j := range subsample {
			subX[i] = series[j]
			subY[i] = y[j]
		}

		member := NewIndividualBOSS(params.WindowSize, params.WordLength, params.Norm)
		member.AlphabetSize = c.AlphabetSize
		member.UseBoss = c.UseBoss
		member.RandomState = c.RandomState
		if err := member.Fit(subX, subY); err != nil {
			return err
		}
		member.Subsample = subsample

		abortAcc := -1.0
		if len(c.Estimators) >= c.MaxEnsembleSize {
			abortAcc = lowestAcc
		}
		acc := member.TrainAccuracy(abortAcc, true)
		if acc < 0 {
			continue
		}
		member.Accuracy = acc

		weight := math.Pow(acc, 4)
		if weight == 0 {
			weight = weightFloor
		}

		if len(c.Estimators) < c.MaxEnsembleSize {
			c.Estimators = append(c.Estimators, member)
			c.Weights = append(c.Weights, weight)
			c.weightSum += weight
		} else if acc > lowestAcc {
			c.weightSum += weight - c.Weights[lowestIdx]
			c.Estimators[lowestIdx] = member
			c.Weights[lowestIdx] = weight
		} else {
			continue
		}

		lowestAcc, lowestIdx = c.worstMember()
	}

	logger := log.GetLoggerWithName("cboss")
	if c.TimeLimit > 0 && time.Since(start) >= c.TimeLimit {
		logger.Info("train contract expired",
			"limit", c.TimeLimit.String(),
			"parameters_sampled", sampled,
		)
	}
	logger.Debug("fitted ensemble",
		"n_estimators", len(c.Estimators),
		"parameters_sampled", sampled,
		"train_time", time.Since(start).String(),
	)

	c.SetFitted()
	return nil
}

// keepSampling is the contract loop condition: inside a time contract keep
// going until the limit or the contract cap, otherwise stop at the sample
// budget.
func (c *ContractableBOSS) keepSampling(elapsed time.Duration, sampled int) bool {
	if c.TimeLimit > 0 {
		return (elapsed < c.TimeLimit && sampled < c.ContractMaxN) ||
			sampled < c.NParameterSamples
	}
	return sampled < c.NParameterSamples
}

// totalWeight returns the cached weight sum, recomputing it from the
// exported weights when the cache is gone after decoding.
func (c *ContractableBOSS) totalWeight() float64 {
	if c.weightSum == 0 {
		for _, w := range c.Weights {
			c.weightSum += w
		}
	}
	return c.weightSum
}

func (c *ContractableBOSS) worstMember() (float64, int) {
	worstAcc := math.Inf(1)
	worstIdx := -1
	for i, e := range c.Estimators {
		if e.Accuracy < worstAcc {
			worstAcc = e.Accuracy
			worstIdx = i
		}
	}
	return worstAcc, worstIdx
}

// Predict labels each case by the accuracy-weighted vote of the ensemble.
func (c *ContractableBOSS) Predict(X [][][]float64) ([]int, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return restoredMapping(c.Classes, c.ClassIndex).probaToPredictions(proba, TieBreakRandom, c.rng), nil
}

// PredictProba returns normalized accuracy-weighted vote distributions.
func (c *ContractableBOSS) PredictProba(X [][][]float64) (*mat.Dense, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("ContractableBOSS", "PredictProba")
	}
	series, err := squeeze(X)
	if err != nil {
		return nil, err
	}

	proba := mat.NewDense(len(series), len(c.Classes), nil)
	weightSum := c.totalWeight()
	if len(c.Estimators) == 0 || weightSum == 0 {
		for i := 0; i < len(series); i++ {
			uniformRow(proba.RawRowView(i))
		}
		return proba, nil
	}

	for m, e := range c.Estimators {
		preds, err := e.Predict(series)
		if err != nil {
			return nil, err
		}
		for i, p := range preds {
			col := c.ClassIndex[p]
			proba.Set(i, col, proba.At(i, col)+c.Weights[m])
		}
	}

	proba.Scale(1.0/weightSum, proba)
	return proba, nil
}

// FitPredict fits and returns training estimates from the members'
// held-out cross-validation predictions.
func (c *ContractableBOSS) FitPredict(X [][][]float64, y []int) ([]int, error) {
	proba, err := c.FitPredictProba(X, y)
	if err != nil {
		return nil, err
	}
	return restoredMapping(c.Classes, c.ClassIndex).probaToPredictions(proba, TieBreakRandom, c.rng), nil
}

// FitPredictProba fits and builds per-case training distributions from each
// member's leave-one-out predictions on its own subsample. A case no member
// ever scored gets the uniform distribution.
func (c *ContractableBOSS) FitPredictProba(X [][][]float64, y []int) (*mat.Dense, error) {
	if err := c.Fit(X, y); err != nil {
		return nil, err
	}

	proba := mat.NewDense(c.NCases, len(c.Classes), nil)

	for m, e := range c.Estimators {
		for i, j := range e.Subsample {
			if i >= len(e.TrainPredictions) {
				break
			}
			col := c.ClassIndex[e.TrainPredictions[i]]
			proba.Set(j, col, proba.At(j, col)+c.Weights[m])
		}
	}

	for i := 0; i < c.NCases; i++ {
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

// NEstimators reports the retained ensemble size.
func (c *ContractableBOSS) NEstimators() int { return len(c.Estimators) }
