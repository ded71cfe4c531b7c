package fingerprint

import "testing"

// makeGrid builds a freq-major grid filled with the given floor value.
func makeGrid(nFreq, nTime int, floor float64) [][]float64 {
	grid := make([][]float64, nFreq)
	for f := range grid {
		grid[f] = make([]float64, nTime)
		for t := range grid[f] {
			grid[f][t] = floor
		}
	}
	return grid
}

func TestDiamondFootprint(t *testing.T) {
	offs := diamond(2)
	// radius 2 diamond: 2*2*(2+1)+1 = 13 cells
	if len(offs) != 13 {
		t.Fatalf("diamond(2) has %d cells, want 13", len(offs))
	}
	for _, o := range offs {
		if abs(o[0])+abs(o[1]) > 2 {
			t.Errorf("offset %v outside radius-2 diamond", o)
		}
	}
}

func TestExtractPeaksSingleSpike(t *testing.T) {
	cfg := testConfig()
	grid := makeGrid(40, 40, 1) // nonzero floor keeps the background mask empty
	grid[20][20] = 50

	peaks := ExtractPeaks(grid, cfg)
	if len(peaks) != 1 {
		t.Fatalf("got %d peaks, want 1: %v", len(peaks), peaks)
	}
	p := peaks[0]
	if p.Freq != 20 || p.Time != 20 || p.Amp != 50 {
		t.Errorf("unexpected peak %+v", p)
	}
}

func TestExtractPeaksNeighborhoodExclusion(t *testing.T) {
	cfg := testConfig() // radius 4
	grid := makeGrid(40, 40, 1)
	grid[20][20] = 50
	grid[20][22] = 40 // inside the winner's diamond, must be suppressed
	grid[20][30] = 40 // outside it, survives on its own

	peaks := ExtractPeaks(grid, cfg)
	if len(peaks) != 2 {
		t.Fatalf("got %d peaks, want 2: %v", len(peaks), peaks)
	}
	for _, p := range peaks {
		if p.Time == 22 {
			t.Errorf("suppressed neighbor leaked through: %+v", p)
		}
	}
}

func TestExtractPeaksAmplitudeFloor(t *testing.T) {
	cfg := testConfig()
	grid := makeGrid(40, 40, 1)
	grid[10][10] = cfg.AmpMin // equal to the floor: excluded, strictly-greater rule
	grid[30][30] = cfg.AmpMin + 0.5

	peaks := ExtractPeaks(grid, cfg)
	if len(peaks) != 1 {
		t.Fatalf("got %d peaks, want 1: %v", len(peaks), peaks)
	}
	if peaks[0].Freq != 30 {
		t.Errorf("wrong peak survived: %+v", peaks[0])
	}
}

func TestExtractPeaksZeroBackgroundSuppressed(t *testing.T) {
	cfg := testConfig()

	// An all-zero grid is one big flat region: every cell equals the
	// neighborhood max, but the eroded background cancels all of them.
	grid := makeGrid(40, 40, 0)
	if peaks := ExtractPeaks(grid, cfg); len(peaks) != 0 {
		t.Fatalf("all-zero grid produced %d peaks", len(peaks))
	}

	// A single spike in a zero grid still comes through.
	grid[20][20] = 50
	peaks := ExtractPeaks(grid, cfg)
	if len(peaks) != 1 || peaks[0].Freq != 20 || peaks[0].Time != 20 {
		t.Fatalf("spike in zero grid: got %v", peaks)
	}
}

func TestExtractPeaksEmptyGrid(t *testing.T) {
	cfg := testConfig()
	if peaks := ExtractPeaks(nil, cfg); peaks != nil {
		t.Errorf("nil grid: got %v", peaks)
	}
	if peaks := ExtractPeaks(makeGrid(10, 0, 0), cfg); peaks != nil {
		t.Errorf("zero-width grid: got %v", peaks)
	}
}
