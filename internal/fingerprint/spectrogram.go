package fingerprint

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Hann returns a Hann window of length n.
func Hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Spectrogram turns one channel of PCM samples into a frequency-major grid
// of log-scaled magnitudes: grid[freqBin][timeBin]. Samples are taken at
// their raw integer amplitude; the AmpMin floor in the peak extractor is
// calibrated against that scale, so no normalization happens here.
//
// The grid has WindowSize/2+1 frequency bins. Cells hold 10*log10 of the
// power spectrum; a zero-power cell would be -Inf and is clamped to zero.
//
// A buffer shorter than one window produces an empty grid. That is a
// legitimate low-information result, not an error.
func Spectrogram(samples []int16, cfg Config) ([][]float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hop := cfg.hopSize()
	nBins := cfg.WindowSize/2 + 1
	nFrames := 0
	if len(samples) >= cfg.WindowSize {
		nFrames = (len(samples)-cfg.WindowSize)/hop + 1
	}

	grid := make([][]float64, nBins)
	for f := range grid {
		grid[f] = make([]float64, nFrames)
	}
	if nFrames == 0 {
		return grid, nil
	}

	window := Hann(cfg.WindowSize)
	frame := make([]float64, cfg.WindowSize)

	for t := 0; t < nFrames; t++ {
		start := t * hop
		for i := 0; i < cfg.WindowSize; i++ {
			frame[i] = float64(samples[start+i]) * window[i]
		}
		spectrum := fft.FFTReal(frame)
		for f := 0; f < nBins; f++ {
			mag := cmplx.Abs(spectrum[f])
			db := 10 * math.Log10(mag*mag)
			if math.IsInf(db, 0) || math.IsNaN(db) {
				db = 0
			}
			grid[f][t] = db
		}
	}
	return grid, nil
}
