package fingerprint

// Verdict is the voter's output: the best-aligned candidate song, the size
// of its winning vote bucket, and the offset delta of that bucket.
type Verdict struct {
	SongID      uint32
	Confidence  int
	OffsetDelta int
}

// Voter tallies observations into a histogram keyed by offset delta and
// song, tracking the single largest cell as it goes. Aggregation is
// commutative, so observations may arrive in any order and from any number
// of matcher passes; the voter only needs one look at each.
//
// The incumbent best cell is replaced only by a strictly larger count, so
// the first cell to reach a given count wins ties.
type Voter struct {
	counts map[int]map[uint32]int
	best   Verdict
	seen   int
}

func NewVoter() *Voter {
	return &Voter{counts: make(map[int]map[uint32]int)}
}

// Add records one observation.
func (v *Voter) Add(o Observation) {
	bucket := v.counts[o.OffsetDelta]
	if bucket == nil {
		bucket = make(map[uint32]int)
		v.counts[o.OffsetDelta] = bucket
	}
	bucket[o.SongID]++
	v.seen++

	if bucket[o.SongID] > v.best.Confidence {
		v.best = Verdict{
			SongID:      o.SongID,
			Confidence:  bucket[o.SongID],
			OffsetDelta: o.OffsetDelta,
		}
	}
}

// Observations reports how many observations have been tallied.
func (v *Voter) Observations() int {
	return v.seen
}

// Best returns the winning verdict. ok is false only when no observations
// were added, in which case the verdict is meaningless and must not be
// trusted.
func (v *Voter) Best() (verdict Verdict, ok bool) {
	if v.seen == 0 {
		return Verdict{}, false
	}
	return v.best, true
}
