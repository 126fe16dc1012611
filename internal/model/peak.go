package model

// Source identifies which series a peak was found on
type Source int

const (
	SourcePrice Source = iota
	SourceOscillator
)

func (s Source) String() string {
	if s == SourceOscillator {
		return "oscillator"
	}
	return "price"
}

// PeakKind is the extremum direction
type PeakKind int

const (
	PeakHigh PeakKind = iota
	PeakLow
)

func (k PeakKind) String() string {
	if k == PeakLow {
		return "low"
	}
	return "high"
}

// Peak is a confirmed local extremum, addressed by offset from the most recent bar.
// Peaks are recomputed on every scan and never cached.
type Peak struct {
	Offset int
	Value  float64
	Source Source
	Kind   PeakKind
}

// PeakList is ordered nearest-time-first (ascending offset)
type PeakList []Peak

// Offsets returns the offsets of the list in stored order
func (l PeakList) Offsets() []int {
	out := make([]int, len(l))
	for i, p := range l {
		out[i] = p.Offset
	}
	return out
}
