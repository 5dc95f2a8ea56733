package analysis

import (
	"math/bits"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT returns the discrete Fourier transform of a real signal of any length.
func FFT(data []float64) []complex128 {
	if len(data) == 0 {
		return nil
	}
	return fft.FFTReal(data)
}

// PowerSpectrum returns the magnitude of the first half of the spectrum of
// data with its mean removed, zero padded to the next power of two.
func PowerSpectrum(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	n := 1 << bits.Len(uint(len(data)-1))
	if n < 2 {
		n = 2
	}
	padded := make([]float64, n)

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))
	for i, v := range data {
		padded[i] = v - mean
	}

	spectrum := FFT(padded)
	ps := make([]float64, n/2)
	for i := range ps {
		ps[i] = cmplx.Abs(spectrum[i])
	}
	return ps
}

// DominantFrequency returns the frequency in Hz of the strongest non-DC bin of
// a signal sampled every dt seconds, and the bin's magnitude. A constant
// signal has no dominant frequency and returns zero.
func DominantFrequency(data []float64, dt float64) (freq, power float64) {
	ps := PowerSpectrum(data)
	best := 0
	for i := 1; i < len(ps); i++ {
		if ps[i] > ps[best] || best == 0 {
			best = i
		}
	}
	if best == 0 || ps[best] < 1e-12 {
		return 0, 0
	}
	n := 2 * len(ps)
	return float64(best) / (float64(n) * dt), ps[best]
}
