package model

import (
	"encoding/json"
	"time"
)

// Candle is one OHLCV bar of a price series.
// Volume is zero when the source carries no volume data.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// IndicatorResult holds one streaming indicator value for a symbol.
type IndicatorResult struct {
	Name   string    `json:"name"` // e.g. "SMA_20", "EMA_9", "RSI_14"
	Symbol string    `json:"symbol"`
	Value  float64   `json:"value"`
	Date   time.Time `json:"date"`  // candle date that produced this value
	Ready  bool      `json:"ready"` // true when indicator has enough data
	Live   bool      `json:"live"`  // true for preview values that did not mutate state
}

// Channel returns the pub/sub channel for the result: "ind:{name}:{symbol}".
func (r *IndicatorResult) Channel() string {
	return "ind:" + r.Name + ":" + r.Symbol
}

// JSON returns the JSON-encoded indicator result.
func (r *IndicatorResult) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
