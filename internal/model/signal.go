package model

import "time"

// Kind is one of the four divergence categories
type Kind string

const (
	KindRegularBearish Kind = "REGULAR_BEARISH"
	KindRegularBullish Kind = "REGULAR_BULLISH"
	KindHiddenBullish  Kind = "HIDDEN_BULLISH"
	KindHiddenBearish  Kind = "HIDDEN_BEARISH"
)

// Kinds lists every divergence kind in evaluation order
var Kinds = []Kind{KindRegularBearish, KindRegularBullish, KindHiddenBullish, KindHiddenBearish}

// IsHidden reports whether the kind is a trend-continuation (hidden) divergence
func (k Kind) IsHidden() bool {
	return k == KindHiddenBullish || k == KindHiddenBearish
}

// IsBullish reports whether the kind points upward
func (k Kind) IsBullish() bool {
	return k == KindRegularBullish || k == KindHiddenBullish
}

// Finding is one qualifying divergence produced by a scan
type Finding struct {
	Kind Kind `json:"kind"`

	RecentPriceOffset int `json:"recent_price_offset"`
	PrevPriceOffset   int `json:"prev_price_offset"`
	RecentOscOffset   int `json:"recent_osc_offset"`
	PrevOscOffset     int `json:"prev_osc_offset"`

	RecentPrice float64 `json:"recent_price"`
	PrevPrice   float64 `json:"prev_price"`
	RecentOsc   float64 `json:"recent_osc"`
	PrevOsc     float64 `json:"prev_osc"`
}

// Segment is a straight line between two bars on one chart panel
type Segment struct {
	StartOffset int     `json:"start_offset" bson:"start_offset"`
	StartTime   int64   `json:"start_time" bson:"start_time"`
	StartValue  float64 `json:"start_value" bson:"start_value"`
	EndOffset   int     `json:"end_offset" bson:"end_offset"`
	EndTime     int64   `json:"end_time" bson:"end_time"`
	EndValue    float64 `json:"end_value" bson:"end_value"`
}

// Style describes how an annotation is rendered
type Style struct {
	Color  string `json:"color" bson:"color"`
	Dashed bool   `json:"dashed" bson:"dashed"`
	Width  int    `json:"width" bson:"width"`
}

// Annotation is the rendered form of a Finding, keyed by a deterministic tag
type Annotation struct {
	Tag        string    `json:"tag" bson:"tag"`
	Symbol     string    `json:"symbol" bson:"symbol"`
	Interval   string    `json:"interval" bson:"interval"`
	Kind       Kind      `json:"kind" bson:"kind"`
	CurrentBar int       `json:"current_bar" bson:"current_bar"`
	Price      Segment   `json:"price" bson:"price"`
	Oscillator Segment   `json:"oscillator" bson:"oscillator"`
	Style      Style     `json:"style" bson:"style"`
	Historical bool      `json:"historical" bson:"historical"` // produced while replaying backfill
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// Kline represents a candlestick data point
type Kline struct {
	OpenTime  int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime int64
}
