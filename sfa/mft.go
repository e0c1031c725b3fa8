package sfa

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsgo/core/parallel"
)

// stdThreshold is the minimum standard deviation floor. Windows with a std
// below this are treated as constant and divided by 1 instead.
const stdThreshold = 1e-8

// getPhis precomputes the per-coefficient phase rotation factors used by the
// sliding-window recursion: phi_k = e^(-2*pi*i*k/w), stored as interleaved
// (cos, -sin) pairs.
func getPhis(windowSize, length int) []float64 {
	phis := make([]float64, length)
	c := 2 * math.Pi / float64(windowSize)
	for k := 0; k < length/2; k++ {
		phis[2*k] = math.Cos(-float64(k) * c)
		phis[2*k+1] = -math.Sin(-float64(k) * c)
	}
	return phis
}

// truncatedDFT computes the first length/2 complex Fourier coefficients of
// series and writes them as interleaved real/imaginary pairs into dst.
func truncatedDFT(fft *fourier.FFT, series, dst []float64, length int) {
	coeffs := fft.Coefficients(nil, series)
	for k := 0; k < length/2 && k < len(coeffs); k++ {
		dst[2*k] = real(coeffs[k])
		dst[2*k+1] = imag(coeffs[k])
	}
}

// incrementalMeanStd maintains a running sum and sum of squares over the
// sliding window, yielding each window's standard deviation in O(1) per
// step. Near-constant windows get a std of 1 to avoid division blow-up.
func incrementalMeanStd(series []float64, end, windowSize int) []float64 {
	stds := make([]float64, end)

	var seriesSum, squareSum float64
	for _, v := range series[:windowSize] {
		seriesSum += v
		squareSum += v * v
	}

	rWindowLength := 1.0 / float64(windowSize)
	mean := seriesSum * rWindowLength
	buf := math.Sqrt(math.Max(squareSum*rWindowLength-mean*mean, 0.0))
	if buf > stdThreshold {
		stds[0] = buf
	} else {
		stds[0] = 1
	}

	for w := 1; w < end; w++ {
		entering := series[w+windowSize-1]
		leaving := series[w-1]
		seriesSum += entering - leaving
		mean = seriesSum * rWindowLength
		squareSum += entering*entering - leaving*leaving
		buf = math.Sqrt(math.Max(squareSum*rWindowLength-mean*mean, 0.0))
		if buf > stdThreshold {
			stds[w] = buf
		} else {
			stds[w] = 1
		}
	}

	return stds
}

// mft computes the truncated Fourier coefficients of every sliding window of
// every series. The first window uses an exact DFT; every following window is
// derived from its predecessor by subtracting the leaving sample, adding the
// entering sample and rotating by the precomputed phase factors, which
// reproduces the exact transform in O(1) per step.
//
// The returned slice holds one (windows x coefficients) matrix per case,
// with exactly s.WordLengthActual coefficient columns: the support columns
// when ANOVA or variance selection is active, the post-norm-offset prefix
// otherwise.
func (s *SFA) mft(X [][]float64) []*mat.Dense {
	offset := 0
	if s.Norm {
		offset = 2
	}
	length := s.DFTLength + offset
	length += length % 2

	n := len(X)
	nTimepoints := len(X[0])
	end := nTimepoints - s.WindowSize + 1
	if end < 1 {
		end = 1
	}

	phis := getPhis(s.WindowSize, length)
	out := make([]*mat.Dense, n)

	parallel.Parallelize(n, func(start, stop int) {
		fft := fourier.NewFFT(s.WindowSize)
		transformed := mat.NewDense(end, length, nil)
		row := make([]float64, length)

		for a := start; a < stop; a++ {
			transformed.Zero()

			truncatedDFT(fft, X[a][:s.WindowSize], row, length)
			transformed.SetRow(0, row)

			for i := 1; i < end; i++ {
				prev := transformed.RawRowView(i - 1)
				cur := transformed.RawRowView(i)
				delta := X[a][i+s.WindowSize-1] - X[a][i-1]
				for k := 0; k < length/2; k++ {
					re := prev[2*k] + delta
					im := prev[2*k+1]
					cur[2*k] = re*phis[2*k] - im*phis[2*k+1]
					cur[2*k+1] = re*phis[2*k+1] + im*phis[2*k]
				}
			}

			s.finishCoefficients(transformed, X[a], end)
			out[a] = s.selectCoefficients(transformed, offset)
		}
	})

	return out
}

// finishCoefficients applies the amplitude scaling, the lower-bounding sign
// convention and, in sliding mode, the per-window z-normalization.
func (s *SFA) finishCoefficients(transformed *mat.Dense, series []float64, end int) {
	rows, cols := transformed.Dims()

	inv := s.inverseSqrtWindowSize()
	flip := s.LowerBounding || s.LowerBoundingDistances

	for i := 0; i < rows; i++ {
		row := transformed.RawRowView(i)
		for j := 0; j < cols; j++ {
			row[j] *= inv
			if flip && j%2 == 1 {
				row[j] = -row[j]
			}
		}
	}

	// z-normalization only applies to subsequences
	if end > 1 {
		stds := incrementalMeanStd(series, end, s.WindowSize)
		for i := 0; i < rows; i++ {
			row := transformed.RawRowView(i)
			for j := 0; j < cols; j++ {
				row[j] /= stds[i]
			}
		}
	}
}

// selectCoefficients reduces the full coefficient matrix to the columns that
// are actually discretized.
func (s *SFA) selectCoefficients(transformed *mat.Dense, offset int) *mat.Dense {
	rows, _ := transformed.Dims()
	out := mat.NewDense(rows, s.WordLengthActual, nil)

	if s.Anova || s.Variance {
		for i := 0; i < rows; i++ {
			for k, col := range s.Support {
				out.Set(i, k, transformed.At(i, col+offset))
			}
		}
		return out
	}

	for i := 0; i < rows; i++ {
		for k := 0; k < s.WordLengthActual; k++ {
			out.Set(i, k, transformed.At(i, k+offset))
		}
	}
	return out
}

// binningDFT computes coefficients of non-overlapping windows (the last one
// right-aligned) of every series, pooled into one matrix for breakpoint
// learning. Windows are individually z-normalized here, matching the per
// window normalization of the sliding transform.
func (s *SFA) binningDFT(X [][]float64) *mat.Dense {
	n := len(X)
	nTimepoints := len(X[0])
	numWindows := (nTimepoints + s.WindowSize - 1) / s.WindowSize

	offset := 0
	if s.Norm {
		offset = 2
	}
	length := s.DFTLength + offset
	length += length % 2

	inv := s.inverseSqrtWindowSize()
	flip := s.LowerBounding || s.LowerBoundingDistances

	dft := mat.NewDense(n*numWindows, s.DFTLength, nil)

	parallel.Parallelize(n, func(start, stop int) {
		fft := fourier.NewFFT(s.WindowSize)
		row := make([]float64, length)

		for a := start; a < stop; a++ {
			for j := 0; j < numWindows; j++ {
				winStart := s.WindowSize * j
				if j == numWindows-1 {
					winStart = nTimepoints - s.WindowSize
				}
				window := X[a][winStart : winStart+s.WindowSize]

				for k := range row {
					row[k] = 0
				}
				truncatedDFT(fft, window, row, length)

				std := stddev(window)
				if std < stdThreshold {
					std = 1
				}
				if numWindows == 1 {
					// whole-series transform is not z-normalized
					std = 1
				}

				for k := 0; k < s.DFTLength; k++ {
					v := row[k+offset] * inv / std
					if flip && (k+offset)%2 == 1 {
						v = -v
					}
					dft.Set(a*numWindows+j, k, v)
				}
			}
		}
	})

	return dft
}

func stddev(window []float64) float64 {
	var sum, sq float64
	for _, v := range window {
		sum += v
		sq += v * v
	}
	n := float64(len(window))
	mean := sum / n
	return math.Sqrt(math.Max(sq/n-mean*mean, 0))
}

// dilate applies the optional preprocessing that runs before windowing:
// zero padding, first-order differencing and strided subsampling.
func dilate(X [][]float64, d int, firstDifference bool) [][]float64 {
	const padWidth = 10

	out := make([][]float64, len(X))
	for i, series := range X {
		padded := make([]float64, len(series)+2*padWidth)
		copy(padded[padWidth:], series)

		if firstDifference {
			diffed := make([]float64, len(padded))
			prev := 0.0
			for j, v := range padded {
				diffed[j] = v - prev
				prev = v
			}
			padded = diffed
		}

		if d > 1 {
			rearranged := make([]float64, 0, len(padded))
			for off := 0; off < d; off++ {
				for j := off; j < len(padded); j += d {
					rearranged = append(rearranged, padded[j])
				}
			}
			padded = rearranged
		}

		out[i] = padded
	}

	return out
}
