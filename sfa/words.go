package sfa

import (
	"math"
	"math/bits"

	"gonum.org/v1/gonum/mat"
)

// letterBitsFor returns the number of bits needed per symbol.
func letterBitsFor(alphabetSize int) uint {
	return uint(bits.Len(uint(alphabetSize - 1)))
}

// digitizeRow maps one window's coefficients to packed symbols: for each
// coefficient the symbol is the index of the first breakpoint the value does
// not exceed. Letters are packed most-significant first, so shifting a word
// right drops its trailing letters.
func (s *SFA) digitizeRow(row []float64) uint64 {
	var word uint64
	for i, v := range row {
		symbol := s.AlphabetSize - 1
		for bp := 0; bp < s.AlphabetSize; bp++ {
			if v <= s.Breakpoints.At(i, bp) {
				symbol = bp
				break
			}
		}
		word = (word << s.LetterBits) | uint64(symbol)
	}
	return word
}

// digitizeRowBinary is the vectorizable fast path for a binary alphabet:
// each letter is a single comparison against the first breakpoint, combined
// as a dot product with descending powers of two.
func (s *SFA) digitizeRowBinary(row []float64) uint64 {
	var word uint64
	n := uint(len(row))
	for i, v := range row {
		if v > s.Breakpoints.At(i, 0) {
			word |= 1 << (n - 1 - uint(i))
		}
	}
	return word
}

// buildWords converts the coefficient matrix of one case into its raw word
// stream: one unigram per window, followed by the bigram block when enabled.
// It returns the stream and the unigram count, the boundary numerosity
// reduction must respect.
func (s *SFA) buildWords(coeffs *mat.Dense) ([]uint64, int) {
	nWindows, _ := coeffs.Dims()

	total := nWindows
	nBigrams := 0
	if s.Bigrams && nWindows > s.WindowSize {
		nBigrams = nWindows - s.WindowSize
		total += nBigrams
	}

	words := make([]uint64, total)
	binary := s.AlphabetSize == 2

	for w := 0; w < nWindows; w++ {
		row := coeffs.RawRowView(w)
		if binary {
			words[w] = s.digitizeRowBinary(row)
		} else {
			words[w] = s.digitizeRow(row)
		}
	}

	wordBits := uint(s.WordLengthActual) * s.LetterBits
	for b := 0; b < nBigrams; b++ {
		words[nWindows+b] = (words[b] << wordBits) | words[b+s.WindowSize]
	}

	return words, nWindows
}

// wordsForCase builds the word stream with numerosity reduction applied over
// the unigram and bigram regions separately.
func (s *SFA) wordsForCase(coeffs *mat.Dense) []uint64 {
	words, nWindows := s.buildWords(coeffs)
	if s.RemoveRepeatWords {
		removeRepeats(words[:nWindows])
		removeRepeats(words[nWindows:])
	}
	return words
}

// removeRepeats implements numerosity reduction: a word equal to its
// predecessor is replaced with the zero sentinel so repeated stretches count
// once.
func removeRepeats(words []uint64) {
	var last uint64 = math.MaxUint64
	for i, w := range words {
		if w == last {
			words[i] = 0
		} else {
			last = w
		}
	}
}

// shortenWord truncates a word from fromLength letters down to toLength by
// dropping its trailing letters.
func shortenWord(word uint64, fromLength, toLength int, letterBits uint) uint64 {
	return word >> (uint(fromLength-toLength) * letterBits)
}

// Symbols unpacks a word back into its per-letter symbols, most significant
// letter first.
func Symbols(word uint64, wordLength int, letterBits uint) []int {
	symbols := make([]int, wordLength)
	mask := uint64(1)<<letterBits - 1
	for i := wordLength - 1; i >= 0; i-- {
		symbols[i] = int(word & mask)
		word >>= letterBits
	}
	return symbols
}
