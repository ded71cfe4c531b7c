package fingerprint

import (
	"context"
	"fmt"
)

// Record is one stored fingerprint row returned by a hash lookup.
type Record struct {
	Token  string
	SongID uint32
	Offset int
}

// HashStore is the only capability the matcher needs from persistent
// storage: exact-match batched lookup. Rows may come back in any order.
type HashStore interface {
	LookupFingerprints(ctx context.Context, tokens []string) ([]Record, error)
}

// Observation is a single raw alignment candidate: a stored fingerprint
// that shares a token with the query, expressed as the difference between
// its stored time bin and the query's.
type Observation struct {
	SongID      uint32
	OffsetDelta int
}

// Matcher resolves query hashes against a fingerprint corpus. It performs
// no ranking; it only materializes observations for the voter.
type Matcher struct {
	store HashStore
	cfg   Config
}

func NewMatcher(store HashStore, cfg Config) *Matcher {
	return &Matcher{store: store, cfg: cfg}
}

// Stream looks up the given hashes in batches of cfg.LookupBatchSize and
// calls emit once per observation, in a single pass. When a token occurs at
// several query offsets the last one wins; the collapse discards alternate
// alignments of a repeated landmark, a deliberate precision trade-off.
//
// Batch boundaries never affect which observations are emitted, only how
// many round trips the store sees. Store failures are returned as-is; retry
// policy belongs to the storage adapter.
func (m *Matcher) Stream(ctx context.Context, hashes []Hash, emit func(Observation)) error {
	if len(hashes) == 0 {
		return nil
	}

	queryOffsets := make(map[string]int, len(hashes))
	for _, h := range hashes {
		queryOffsets[h.Token] = h.Offset
	}
	tokens := make([]string, 0, len(queryOffsets))
	for token := range queryOffsets {
		tokens = append(tokens, token)
	}

	for start := 0; start < len(tokens); start += m.cfg.LookupBatchSize {
		end := start + m.cfg.LookupBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		records, err := m.store.LookupFingerprints(ctx, tokens[start:end])
		if err != nil {
			return fmt.Errorf("fingerprint lookup: %w", err)
		}
		for _, r := range records {
			queryOffset, ok := queryOffsets[r.Token]
			if !ok {
				continue
			}
			emit(Observation{SongID: r.SongID, OffsetDelta: r.Offset - queryOffset})
		}
	}
	return nil
}

// Match is the materialized form of Stream.
func (m *Matcher) Match(ctx context.Context, hashes []Hash) ([]Observation, error) {
	var obs []Observation
	err := m.Stream(ctx, hashes, func(o Observation) { obs = append(obs, o) })
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// OffsetFromBytes interprets a byte sequence as a little-endian unsigned
// integer. The bundled backends get typed integer offsets from their
// drivers and do not need it; it exists for HashStore implementations
// whose driver hands integer columns back as raw blobs.
func OffsetFromBytes(b []byte) int {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return int(v)
}
