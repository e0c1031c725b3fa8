// Package sfa implements the Symbolic Fourier Approximation transform:
// sliding-window truncated Fourier coefficients, discretized against learned
// per-coefficient breakpoints into fixed-length words, counted into
// bag-of-words histograms.
package sfa

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsgo/core/model"
	"github.com/YuminosukeSato/tsgo/pkg/errors"
	"github.com/YuminosukeSato/tsgo/pkg/log"
)

var _ model.CollectionTransformer = (*SFA)(nil)

// SFA converts equal-length univariate series into word histograms. Fitted
// state lives in exported fields.
type SFA struct {
	model.BaseEstimator

	WordLength   int
	AlphabetSize int
	WindowSize   int
	Norm         bool

	BinningMethod BinningMethod
	Anova         bool
	Variance      bool

	Bigrams           bool
	RemoveRepeatWords bool
	SaveWords         bool

	LowerBounding          bool
	LowerBoundingDistances bool

	Dilation        int
	FirstDifference bool

	FeatureSelection FeatureSelection
	MaxFeatureCount  int
	PThreshold       float64

	SamplingFactor float64
	RandomState    int64

	// fitted state, exported so a transformer survives a gob round-trip
	Breakpoints      *mat.Dense
	Support          []int
	RelevantFeatures map[uint64]int
	FeatureCount     int
	Words            [][]uint64
	NTimepoints      int
	WordLengthActual int
	DFTLength        int
	LetterBits       uint

	rng *rand.Rand
}

// Option configures a transformer before fitting.
type Option func(*SFA)

func WithWordLength(l int) Option       { return func(s *SFA) { s.WordLength = l } }
func WithAlphabetSize(a int) Option     { return func(s *SFA) { s.AlphabetSize = a } }
func WithWindowSize(w int) Option       { return func(s *SFA) { s.WindowSize = w } }
func WithNorm(norm bool) Option         { return func(s *SFA) { s.Norm = norm } }
func WithBinning(m BinningMethod) Option { return func(s *SFA) { s.BinningMethod = m } }
func WithAnova(on bool) Option          { return func(s *SFA) { s.Anova = on } }
func WithVariance(on bool) Option       { return func(s *SFA) { s.Variance = on } }
func WithBigrams(on bool) Option        { return func(s *SFA) { s.Bigrams = on } }
func WithRemoveRepeatWords(on bool) Option {
	return func(s *SFA) { s.RemoveRepeatWords = on }
}
func WithSaveWords(on bool) Option { return func(s *SFA) { s.SaveWords = on } }
func WithLowerBounding(on bool) Option {
	return func(s *SFA) { s.LowerBounding = on }
}
func WithLowerBoundingDistances(on bool) Option {
	return func(s *SFA) { s.LowerBoundingDistances = on }
}
func WithDilation(d int) Option { return func(s *SFA) { s.Dilation = d } }
func WithFirstDifference(on bool) Option {
	return func(s *SFA) { s.FirstDifference = on }
}
func WithFeatureSelection(f FeatureSelection) Option {
	return func(s *SFA) { s.FeatureSelection = f }
}
func WithMaxFeatureCount(n int) Option { return func(s *SFA) { s.MaxFeatureCount = n } }
func WithPThreshold(p float64) Option  { return func(s *SFA) { s.PThreshold = p } }
func WithSamplingFactor(f float64) Option {
	return func(s *SFA) { s.SamplingFactor = f }
}
func WithRandomState(seed int64) Option { return func(s *SFA) { s.RandomState = seed } }

// NewSFA returns a transformer with the standard defaults: word length 8,
// alphabet size 4, window size 12, equi-depth binning, no feature selection.
func NewSFA(opts ...Option) *SFA {
	s := &SFA{
		WordLength:      8,
		AlphabetSize:    4,
		WindowSize:      12,
		BinningMethod:   EquiDepth,
		LowerBounding:   true,
		MaxFeatureCount: 256,
		PThreshold:      0.05,
		RandomState:     -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validate rejects impossible configurations eagerly, before any heavy
// computation runs.
func (s *SFA) validate() error {
	if s.AlphabetSize < 2 {
		return errors.NewValidationError("alphabetSize", "must be at least 2", s.AlphabetSize)
	}
	if s.WordLength < 1 {
		return errors.NewValidationError("wordLength", "must be at least 1", s.WordLength)
	}
	offset := 0
	if s.Norm {
		offset = 2
	}
	// word length is capped to windowSize-offset during preparation, but
	// the window must leave at least one usable coefficient pair
	if s.WindowSize < 2+offset {
		return errors.NewValidationError("windowSize",
			"too small to produce any coefficients (norm drops the DC pair)", s.WindowSize)
	}
	if s.Anova && s.Variance {
		return errors.NewValidationError("anova", "anova and variance selection are mutually exclusive", nil)
	}
	if s.SamplingFactor < 0 || s.SamplingFactor > 1 {
		return errors.NewValidationError("samplingFactor", "must be in [0, 1]", s.SamplingFactor)
	}

	letterBits := letterBitsFor(s.AlphabetSize)
	bits := uint(s.WordLength) * letterBits
	if s.Bigrams {
		bits *= 2
	}
	if bits > 64 {
		return errors.NewValidationError("wordLength",
			"word does not fit in 64 bits with this alphabet and bigram setting", s.WordLength)
	}
	return nil
}

// prepare derives the per-fit geometry from the configuration and the input
// length.
func (s *SFA) prepare(nTimepoints int) {
	offset := 0
	if s.Norm {
		offset = 2
	}

	s.WordLengthActual = s.WordLength
	if s.WindowSize-offset < s.WordLengthActual {
		s.WordLengthActual = s.WindowSize - offset
	}
	s.WordLengthActual += s.WordLengthActual % 2

	if s.Anova || s.Variance {
		s.DFTLength = s.WindowSize - offset
	} else {
		s.DFTLength = s.WordLengthActual
	}
	s.DFTLength += s.DFTLength % 2

	s.LetterBits = letterBitsFor(s.AlphabetSize)
	s.NTimepoints = nTimepoints

	seed := s.RandomState
	if seed < 0 {
		seed = rand.Int63()
	}
	s.rng = rand.New(rand.NewSource(seed))
}

// Fit learns breakpoints and the word-to-column mapping from X. Labels are
// required for the supervised binning strategies and chi-squared selection,
// optional otherwise.
func (s *SFA) Fit(X [][]float64, y []int) error {
	_, err := s.FitTransform(X, y)
	return err
}

// FitTransform fits the transformer and returns the training bags in one
// pass, reusing the word streams computed during fitting.
func (s *SFA) FitTransform(X [][]float64, y []int) (*mat.Dense, error) {
	if len(X) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "sfa: fit")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	if s.BinningMethod.supervised() && y == nil {
		return nil, errors.NewValidationError("y",
			"labels are required for "+s.BinningMethod.String()+" binning", nil)
	}

	s.prepare(len(X[0]))

	fitX, fitY := X, y
	if s.SamplingFactor > 0 && s.SamplingFactor < 1 {
		fitX, fitY = s.subsample(X, y)
	}

	processed := s.preprocess(fitX)

	breakpoints, err := s.binning(processed, fitY)
	if err != nil {
		return nil, err
	}
	s.Breakpoints = breakpoints

	coeffs := s.mft(processed)
	words := make([][]uint64, len(coeffs))
	var raw [][]uint64
	if s.SaveWords {
		// shortening works on the words before numerosity reduction, so a
		// reduced-then-shortened stream cannot hide adjacencies that only
		// appear at the shorter length
		raw = make([][]uint64, len(coeffs))
	}
	for a, c := range coeffs {
		w, nWindows := s.buildWords(c)
		if s.SaveWords {
			raw[a] = append([]uint64(nil), w...)
		}
		if s.RemoveRepeatWords {
			removeRepeats(w[:nWindows])
			removeRepeats(w[nWindows:])
		}
		words[a] = w
	}
	if s.SaveWords {
		s.Words = raw
	}

	bags, err := s.fitBags(words, fitY)
	if err != nil {
		return nil, err
	}

	s.SetFitted()
	log.GetLoggerWithName("sfa").Debug("fitted transformer",
		"word_length", s.WordLengthActual,
		"alphabet_size", s.AlphabetSize,
		"window_size", s.WindowSize,
		"feature_count", s.FeatureCount,
	)
	return bags, nil
}

// Transform converts new series to bags using the frozen mapping. Words not
// seen during fitting contribute nothing.
func (s *SFA) Transform(X [][]float64) (*mat.Dense, error) {
	words, err := s.TransformWords(X)
	if err != nil {
		return nil, err
	}
	return s.countBags(words), nil
}

// TransformWords returns the raw word stream of each case: one unigram per
// window followed by the bigram block when bigrams are enabled.
func (s *SFA) TransformWords(X [][]float64) ([][]uint64, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("SFA", "TransformWords")
	}
	if len(X) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "sfa: transform")
	}
	if len(X[0]) < s.WindowSize && s.Dilation <= 1 && !s.FirstDifference {
		return nil, errors.NewDimensionError("sfa: transform", s.WindowSize, len(X[0]), 1)
	}

	processed := s.preprocess(X)
	coeffs := s.mft(processed)
	words := make([][]uint64, len(coeffs))
	for a, c := range coeffs {
		words[a] = s.wordsForCase(c)
	}
	return words, nil
}

// TransformSymbols returns the per-letter symbols of the first window of
// each case, the representation the symbolic lower-bound distance operates
// on. With WindowSize equal to the series length this is the whole-series
// word.
func (s *SFA) TransformSymbols(X [][]float64) ([][]int, error) {
	words, err := s.TransformWords(X)
	if err != nil {
		return nil, err
	}
	symbols := make([][]int, len(words))
	for a, stream := range words {
		symbols[a] = Symbols(stream[0], s.WordLengthActual, s.LetterBits)
	}
	return symbols, nil
}

// ShortenBags recounts the saved training words at a shorter word length and
// returns a new transformer holding the shortened state together with its
// training bags. The saved words are kept unreduced and numerosity reduction
// runs after the shift, so the result matches a direct fit at the shorter
// length bit for bit. The receiver is left untouched so variants at
// different word lengths can coexist. Requires SaveWords and is undefined
// for bigram or supervised-support configurations, which cannot be shortened
// by letter truncation.
func (s *SFA) ShortenBags(wordLength int, y []int) (*SFA, *mat.Dense, error) {
	if !s.IsFitted() {
		return nil, nil, errors.NewNotFittedError("SFA", "ShortenBags")
	}
	if !s.SaveWords {
		return nil, nil, errors.NewValueError("sfa: shorten", "words were not saved during fitting")
	}
	if s.Bigrams || s.Anova || s.Variance {
		return nil, nil, errors.NewValueError("sfa: shorten",
			"shortening is not defined for bigram or coefficient-selected words")
	}
	if wordLength > s.WordLengthActual {
		return nil, nil, errors.NewValidationError("wordLength",
			"cannot exceed the fitted word length", wordLength)
	}

	shortened := make([][]uint64, len(s.Words))
	counted := make([][]uint64, len(s.Words))
	for a, stream := range s.Words {
		short := make([]uint64, len(stream))
		for i, w := range stream {
			short[i] = shortenWord(w, s.WordLengthActual, wordLength, s.LetterBits)
		}
		shortened[a] = short
		if s.RemoveRepeatWords {
			reduced := append([]uint64(nil), short...)
			removeRepeats(reduced)
			counted[a] = reduced
		} else {
			counted[a] = short
		}
	}

	clone := *s
	clone.WordLength = wordLength
	clone.WordLengthActual = wordLength
	clone.Words = shortened
	clone.RelevantFeatures = nil

	bags, err := clone.fitBags(counted, y)
	if err != nil {
		return nil, nil, err
	}
	return &clone, bags, nil
}

// WordLengthFitted returns the evenized word length actually in use after
// fitting.
func (s *SFA) WordLengthFitted() int { return s.WordLengthActual }

func (s *SFA) preprocess(X [][]float64) [][]float64 {
	if s.Dilation > 1 || s.FirstDifference {
		return dilate(X, s.Dilation, s.FirstDifference)
	}
	return X
}

func (s *SFA) inverseSqrtWindowSize() float64 {
	if !s.LowerBounding || s.LowerBoundingDistances {
		return 1.0 / math.Sqrt(float64(s.WindowSize))
	}
	return 1.0
}

// subsample draws a seeded fraction of the training set for breakpoint and
// vocabulary learning, a large-dataset shortcut.
func (s *SFA) subsample(X [][]float64, y []int) ([][]float64, []int) {
	n := int(s.SamplingFactor * float64(len(X)))
	if n < 1 {
		n = 1
	}
	idx := s.rng.Perm(len(X))[:n]

	outX := make([][]float64, n)
	var outY []int
	if y != nil {
		outY = make([]int, n)
	}
	for i, j := range idx {
		outX[i] = X[j]
		if y != nil {
			outY[i] = y[j]
		}
	}
	return outX, outY
}
