package fingerprint

import (
	"math"
	"testing"
)

func TestVoterEmpty(t *testing.T) {
	v := NewVoter()
	if _, ok := v.Best(); ok {
		t.Error("empty voter reported a verdict")
	}
	if v.Observations() != 0 {
		t.Errorf("empty voter counted %d observations", v.Observations())
	}
}

func TestVoterWinningCell(t *testing.T) {
	v := NewVoter()
	for i := 0; i < 5; i++ {
		v.Add(Observation{SongID: 1, OffsetDelta: 12})
	}
	for i := 0; i < 3; i++ {
		v.Add(Observation{SongID: 2, OffsetDelta: 12})
	}
	v.Add(Observation{SongID: 1, OffsetDelta: -4})

	verdict, ok := v.Best()
	if !ok {
		t.Fatal("expected a verdict")
	}
	if verdict.SongID != 1 || verdict.Confidence != 5 || verdict.OffsetDelta != 12 {
		t.Errorf("unexpected verdict %+v", verdict)
	}
	if v.Observations() != 9 {
		t.Errorf("counted %d observations, want 9", v.Observations())
	}
}

func TestVoterFirstSeenWinsTies(t *testing.T) {
	v := NewVoter()
	v.Add(Observation{SongID: 1, OffsetDelta: 0})
	v.Add(Observation{SongID: 2, OffsetDelta: 0}) // equal count, later: must not take over

	verdict, _ := v.Best()
	if verdict.SongID != 1 {
		t.Errorf("tie overwrote the incumbent: %+v", verdict)
	}

	v.Add(Observation{SongID: 2, OffsetDelta: 0}) // strictly larger now
	verdict, _ = v.Best()
	if verdict.SongID != 2 || verdict.Confidence != 2 {
		t.Errorf("strictly larger count did not win: %+v", verdict)
	}
}

func TestVoterDuplicateThresholdGate(t *testing.T) {
	cfg := DefaultConfig()

	v := NewVoter()
	for i := 0; i < 999; i++ {
		v.Add(Observation{SongID: 1, OffsetDelta: 30})
	}
	v.Add(Observation{SongID: 2, OffsetDelta: 99})

	verdict, ok := v.Best()
	if !ok || verdict.SongID != 1 {
		t.Fatalf("unexpected verdict %+v", verdict)
	}
	if verdict.Confidence >= cfg.DuplicateThreshold {
		t.Errorf("999 votes must not pass the duplicate gate (threshold %d)", cfg.DuplicateThreshold)
	}

	v.Add(Observation{SongID: 1, OffsetDelta: 30})
	verdict, _ = v.Best()
	if verdict.Confidence < cfg.DuplicateThreshold {
		t.Errorf("1000 votes must pass the duplicate gate, got confidence %d", verdict.Confidence)
	}
}

func TestOffsetSeconds(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.OffsetSeconds(100)
	want := 100.0 * 4096 * 0.5 / 44100
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("OffsetSeconds(100) = %v, want %v", got, want)
	}
	if cfg.OffsetSeconds(0) != 0 {
		t.Error("zero delta must map to zero seconds")
	}
	if cfg.OffsetSeconds(-100) != -got {
		t.Error("negative deltas must mirror positive ones")
	}
}
