// Package divergence detects regular and hidden divergences between price and
// an oscillator by matching confirmed local extrema across the two series.
//
// Every scan is a stateless full rescan: peak lists are rebuilt from the bar
// feed each time and nothing found by one scan is read by the next.
package divergence

import (
	"divscan-go/internal/model"
	"divscan-go/internal/series"
)

// MinConfirmWidth is the floor applied to any configured confirmation width
const MinConfirmWidth = 3

// FindPeaks returns the confirmed extrema of s, nearest-time-first.
//
// A candidate at offset o is confirmed when every bar within the effective width
// on both sides is strictly less extreme. Candidates whose older neighbours fall
// outside available history are not considered.
func FindPeaks(s series.Series, source model.Source, kind model.PeakKind, confirmWidth, maxBarsBack int) model.PeakList {
	w := max(confirmWidth, MinConfirmWidth)
	limit := min(maxBarsBack, s.Len()-w)

	var peaks model.PeakList
	for o := w; o < limit; o++ {
		v := s.At(o)
		if isExtremum(s, o, v, w, kind) {
			peaks = append(peaks, model.Peak{Offset: o, Value: v, Source: source, Kind: kind})
		}
	}
	return peaks
}

func isExtremum(s series.Series, o int, v float64, w int, kind model.PeakKind) bool {
	for i := 1; i <= w; i++ {
		older, newer := s.At(o+i), s.At(o-i)
		if kind == model.PeakHigh {
			if !(older < v && newer < v) {
				return false
			}
		} else if !(older > v && newer > v) {
			return false
		}
	}
	return true
}
