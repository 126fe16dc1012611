// Package series exposes bar and oscillator data addressed by offset from the
// most recent closed bar (offset 0 = current bar, larger = older).
package series

import (
	"errors"
	"fmt"
	"math"

	"divscan-go/internal/model"
)

// Series is a read-only numeric series addressed by offset
type Series interface {
	Len() int
	At(offset int) float64
}

// Bars is the bar feed consumed by the divergence engine
type Bars interface {
	// Len is the number of retained, addressable bars
	Len() int
	// Count is the total number of bars ever committed (CurrentBarCount)
	Count() int
	High(offset int) float64
	Low(offset int) float64
	Close(offset int) float64
	OpenTime(offset int) int64
}

// Slice adapts an oldest-first slice to offset addressing
type Slice []float64

func (s Slice) Len() int { return len(s) }

// At returns NaN outside the slice so that no comparison against it can succeed
func (s Slice) At(offset int) float64 {
	i := len(s) - 1 - offset
	if offset < 0 || i < 0 {
		return math.NaN()
	}
	return s[i]
}

// ErrOutOfOrder is returned when a bar does not open strictly after the last committed one
var ErrOutOfOrder = errors.New("bar is not newer than the last committed bar")

// History is an append-only, bounded bar store. Once committed a bar is never mutated.
type History struct {
	klines   []model.Kline
	capacity int
	count    int
}

// NewHistory keeps at most capacity bars addressable
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		klines:   make([]model.Kline, 0, capacity),
		capacity: capacity,
	}
}

// Append commits a closed bar
func (h *History) Append(k model.Kline) error {
	if n := len(h.klines); n > 0 && k.OpenTime <= h.klines[n-1].OpenTime {
		return fmt.Errorf("%w: open time %d <= %d", ErrOutOfOrder, k.OpenTime, h.klines[n-1].OpenTime)
	}
	if len(h.klines) == h.capacity {
		copy(h.klines, h.klines[1:])
		h.klines = h.klines[:len(h.klines)-1]
	}
	h.klines = append(h.klines, k)
	h.count++
	return nil
}

// LastOpenTime returns the open time of the newest bar, or 0 when empty
func (h *History) LastOpenTime() int64 {
	if len(h.klines) == 0 {
		return 0
	}
	return h.klines[len(h.klines)-1].OpenTime
}

func (h *History) Len() int   { return len(h.klines) }
func (h *History) Count() int { return h.count }

func (h *History) bar(offset int) (model.Kline, bool) {
	i := len(h.klines) - 1 - offset
	if offset < 0 || i < 0 {
		return model.Kline{}, false
	}
	return h.klines[i], true
}

func (h *History) High(offset int) float64 {
	if k, ok := h.bar(offset); ok {
		return k.High
	}
	return math.NaN()
}

func (h *History) Low(offset int) float64 {
	if k, ok := h.bar(offset); ok {
		return k.Low
	}
	return math.NaN()
}

func (h *History) Close(offset int) float64 {
	if k, ok := h.bar(offset); ok {
		return k.Close
	}
	return math.NaN()
}

func (h *History) OpenTime(offset int) int64 {
	if k, ok := h.bar(offset); ok {
		return k.OpenTime
	}
	return 0
}

// Closes returns the retained closes, oldest first
func (h *History) Closes() []float64 {
	out := make([]float64, len(h.klines))
	for i, k := range h.klines {
		out[i] = k.Close
	}
	return out
}

type view struct {
	n  func() int
	at func(int) float64
}

func (v view) Len() int              { return v.n() }
func (v view) At(offset int) float64 { return v.at(offset) }

// HighSeries views the highs of a bar feed as a Series
func HighSeries(b Bars) Series { return view{n: b.Len, at: b.High} }

// LowSeries views the lows of a bar feed as a Series
func LowSeries(b Bars) Series { return view{n: b.Len, at: b.Low} }
