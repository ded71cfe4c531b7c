package fingerprint

// Peak is one retained spectral landmark.
type Peak struct {
	Freq int     // frequency bin
	Time int     // time bin
	Amp  float64 // log-scaled magnitude at that cell
}

// diamond returns the cell offsets of a cross-shaped structuring element
// dilated radius times: every (df, dt) with |df|+|dt| <= radius.
func diamond(radius int) [][2]int {
	offs := make([][2]int, 0, 2*radius*(radius+1)+1)
	for df := -radius; df <= radius; df++ {
		rem := radius - abs(df)
		for dt := -rem; dt <= rem; dt++ {
			offs = append(offs, [2]int{df, dt})
		}
	}
	return offs
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ExtractPeaks scans a frequency-major grid for local maxima.
//
// A cell is a candidate when its value equals the maximum over the diamond
// neighborhood of radius cfg.PeakNeighborhood, which guarantees at most one
// surviving peak per overlapping region. Flat silent passages would make
// every zero cell a candidate, so the zero-valued background is eroded by
// the same neighborhood (cells outside the grid count as background) and
// removed from the candidate set by XOR. Survivors must strictly exceed
// cfg.AmpMin.
//
// Output order is unspecified; the hasher sorts by time before pairing.
func ExtractPeaks(grid [][]float64, cfg Config) []Peak {
	nFreq := len(grid)
	if nFreq == 0 {
		return nil
	}
	nTime := len(grid[0])
	if nTime == 0 {
		return nil
	}

	offs := diamond(cfg.PeakNeighborhood)
	var peaks []Peak

	for f := 0; f < nFreq; f++ {
		for t := 0; t < nTime; t++ {
			v := grid[f][t]

			localMax := true
			erodedBackground := v == 0
			for _, o := range offs {
				nf, nt := f+o[0], t+o[1]
				if nf < 0 || nf >= nFreq || nt < 0 || nt >= nTime {
					continue // out of grid: no value to beat, still background
				}
				nv := grid[nf][nt]
				if nv > v {
					localMax = false
				}
				if nv != 0 {
					erodedBackground = false
				}
				if !localMax && !erodedBackground {
					break
				}
			}

			// candidates XOR eroded background
			if localMax == erodedBackground {
				continue
			}
			if localMax && v > cfg.AmpMin {
				peaks = append(peaks, Peak{Freq: f, Time: t, Amp: v})
			}
		}
	}
	return peaks
}
