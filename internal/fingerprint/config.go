// Package fingerprint implements the landmark fingerprinting engine:
// spectrogram construction, spectral peak extraction, landmark hashing,
// corpus matching and offset-histogram voting.
package fingerprint

import "fmt"

// Config carries every tunable of the engine. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// SampleRate of the PCM input in Hz.
	SampleRate int
	// WindowSize is the FFT window length in samples.
	WindowSize int
	// OverlapRatio is the fraction of each window shared with the next,
	// in [0, 1).
	OverlapRatio float64
	// FanOut is how many subsequent peaks each peak pairs with.
	FanOut int
	// AmpMin is the log-magnitude floor a peak must strictly exceed.
	AmpMin float64
	// PeakNeighborhood is the radius of the diamond suppression region.
	PeakNeighborhood int
	// MinHashTimeDelta and MaxHashTimeDelta bound the time-bin distance
	// between paired peaks.
	MinHashTimeDelta int
	MaxHashTimeDelta int
	// TokenLength is how many hex characters of the SHA-1 digest survive.
	TokenLength int
	// LookupBatchSize caps how many tokens go to storage per query.
	LookupBatchSize int
	// DuplicateThreshold is the vote count at or above which an ingest
	// candidate counts as a duplicate of an existing song.
	DuplicateThreshold int
}

// DefaultConfig returns the standard engine tuning for 44.1 kHz audio.
func DefaultConfig() Config {
	return Config{
		SampleRate:         44100,
		WindowSize:         4096,
		OverlapRatio:       0.5,
		FanOut:             15,
		AmpMin:             10,
		PeakNeighborhood:   20,
		MinHashTimeDelta:   0,
		MaxHashTimeDelta:   200,
		TokenLength:        20,
		LookupBatchSize:    1000,
		DuplicateThreshold: 1000,
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive, got %d", c.WindowSize)
	}
	if c.OverlapRatio < 0 || c.OverlapRatio >= 1 {
		return fmt.Errorf("overlap ratio must be in [0, 1), got %g", c.OverlapRatio)
	}
	if c.hopSize() <= 0 {
		return fmt.Errorf("window size %d with overlap %g leaves no hop", c.WindowSize, c.OverlapRatio)
	}
	if c.FanOut < 1 {
		return fmt.Errorf("fan-out must be at least 1, got %d", c.FanOut)
	}
	if c.PeakNeighborhood < 1 {
		return fmt.Errorf("peak neighborhood must be at least 1, got %d", c.PeakNeighborhood)
	}
	if c.MinHashTimeDelta < 0 || c.MaxHashTimeDelta < c.MinHashTimeDelta {
		return fmt.Errorf("invalid hash time delta range [%d, %d]", c.MinHashTimeDelta, c.MaxHashTimeDelta)
	}
	if c.TokenLength < 1 || c.TokenLength > 40 {
		return fmt.Errorf("token length must be in [1, 40], got %d", c.TokenLength)
	}
	if c.LookupBatchSize < 1 {
		return fmt.Errorf("lookup batch size must be at least 1, got %d", c.LookupBatchSize)
	}
	return nil
}

// hopSize is the stride between successive windows in samples.
func (c Config) hopSize() int {
	return c.WindowSize - int(float64(c.WindowSize)*c.OverlapRatio)
}

// OffsetSeconds converts an alignment delta in time bins to seconds from
// the start of the stored song.
func (c Config) OffsetSeconds(delta int) float64 {
	return float64(delta) * float64(c.WindowSize) * c.OverlapRatio / float64(c.SampleRate)
}
