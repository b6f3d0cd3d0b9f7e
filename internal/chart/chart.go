// Package chart assembles price charts from an OHLCV series: the candles,
// price-panel overlays, the volume overlay, indicator sub-panels and
// annotations. It computes everything a renderer needs and draws nothing.
package chart

import (
	"time"

	"finplotter/internal/model"
)

// Line is an indicator series aligned to a suffix of the chart's candles:
// Values[i] belongs to candle Offset+i.
type Line struct {
	Name   string    `json:"name"`
	Offset int       `json:"offset"`
	Values []float64 `json:"values"`
}

// Point is a dated value of a Line.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

func newLine(name string, total int, values []float64) Line {
	return Line{Name: name, Offset: total - len(values), Values: values}
}

// At returns the value belonging to candle i, if the line covers it.
func (l Line) At(i int) (float64, bool) {
	j := i - l.Offset
	if j < 0 || j >= len(l.Values) {
		return 0, false
	}
	return l.Values[j], true
}

// Points maps the line onto the candle dates.
func (l Line) Points(dates []time.Time) []Point {
	out := make([]Point, 0, len(l.Values))
	for i, v := range l.Values {
		if l.Offset+i >= len(dates) {
			break
		}
		out = append(out, Point{Date: dates[l.Offset+i], Value: v})
	}
	return out
}

// Panel is a sub-plot below the price panel.
type Panel struct {
	Title string `json:"title"`
	// Range fixes the y axis when set (oscillators bounded to [0, 100]).
	Range  *[2]float64 `json:"range,omitempty"`
	Levels []float64   `json:"levels,omitempty"`
	Lines  []Line      `json:"lines"`
	// Fill is drawn as an area against zero (the MACD divergence).
	Fill *Line `json:"fill,omitempty"`
}

// Volume is the volume overlay of the price panel.
type Volume struct {
	Values []float64 `json:"values"`
	// Ceiling is the top of the volume axis; eight times the largest volume
	// keeps the bars in the bottom eighth of the price panel.
	Ceiling float64 `json:"ceiling"`
}

// Annotation marks one candle of the price panel.
type Annotation struct {
	Text  string    `json:"text"`
	Index int       `json:"index"`
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Chart is a fully computed chart of one symbol.
type Chart struct {
	Symbol      string         `json:"symbol"`
	Setup       Setup          `json:"setup"`
	Candles     []model.Candle `json:"candles"`
	Overlays    []Line         `json:"overlays"`
	Volume      *Volume        `json:"volume,omitempty"`
	Panels      []Panel        `json:"panels"`
	Annotations []Annotation   `json:"annotations"`
}

// Dates returns the candle dates of the chart.
func (c *Chart) Dates() []time.Time {
	out := make([]time.Time, len(c.Candles))
	for i, cd := range c.Candles {
		out[i] = cd.Date
	}
	return out
}

// Lines returns every line of the chart, overlays first.
func (c *Chart) Lines() []Line {
	out := append([]Line(nil), c.Overlays...)
	for _, p := range c.Panels {
		out = append(out, p.Lines...)
		if p.Fill != nil {
			out = append(out, *p.Fill)
		}
	}
	return out
}
