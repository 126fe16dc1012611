package divergence

import "divscan-go/internal/model"

// FindClosestPeak returns the first candidate, in stored order, lying within
// tolerance bars of target. It is a first-match, not a nearest-match: with
// candidates [5 12 20], target 10 and tolerance 8 it returns 5.
func FindClosestPeak(target int, candidates model.PeakList, tolerance int) (model.Peak, bool) {
	for _, p := range candidates {
		if abs(p.Offset-target) <= tolerance {
			return p, true
		}
	}
	return model.Peak{}, false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
