package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
)

// Hash is one landmark fingerprint: a fixed-width token derived from a peak
// pair plus the time bin of the pair's anchor peak.
type Hash struct {
	Token  string
	Offset int
}

// GenerateHashes pairs every peak with up to cfg.FanOut-1 temporally
// subsequent peaks and derives a token from each pair. The input slice is
// not modified; peaks are copied and sorted by time bin, then frequency,
// which makes the result independent of input order.
//
// The token is the leading cfg.TokenLength hex characters of
// SHA-1("freq1|freq2|timeDelta"). Collisions between distinct pairs are
// expected and harmless; the alignment voter absorbs them. Repeated tokens
// in the output are likewise allowed, so callers persisting hashes should
// apply set semantics first (see UniqueHashes).
func GenerateHashes(peaks []Peak, cfg Config) []Hash {
	sorted := append([]Peak(nil), peaks...)
	// Ties on the time bin must order deterministically too, or peaks in
	// the same bin would pair in input order.
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Time != sorted[j].Time {
			return sorted[i].Time < sorted[j].Time
		}
		return sorted[i].Freq < sorted[j].Freq
	})

	var hashes []Hash
	for i := range sorted {
		for j := 1; j < cfg.FanOut; j++ {
			if i+j >= len(sorted) {
				break
			}
			anchor, target := sorted[i], sorted[i+j]
			delta := target.Time - anchor.Time
			if delta < cfg.MinHashTimeDelta || delta > cfg.MaxHashTimeDelta {
				continue
			}
			sum := sha1.Sum([]byte(fmt.Sprintf("%d|%d|%d", anchor.Freq, target.Freq, delta)))
			token := hex.EncodeToString(sum[:])[:cfg.TokenLength]
			hashes = append(hashes, Hash{Token: token, Offset: anchor.Time})
		}
	}
	return hashes
}

// UniqueHashes deduplicates (token, offset) pairs, preserving first-seen
// order. Used before persistence so the fan-out redundancy does not inflate
// the stored corpus.
func UniqueHashes(hashes []Hash) []Hash {
	seen := make(map[Hash]struct{}, len(hashes))
	out := make([]Hash, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// Fingerprint runs the full pipeline for one channel: spectrogram, peak
// extraction, hash generation. An empty or too-short buffer yields an empty
// hash set; an invalid configuration is an error.
func Fingerprint(samples []int16, cfg Config) ([]Hash, error) {
	grid, err := Spectrogram(samples, cfg)
	if err != nil {
		return nil, err
	}
	peaks := ExtractPeaks(grid, cfg)
	return GenerateHashes(peaks, cfg), nil
}
