package models

import (
	"math"
	"time"
)

// TimeSeries is the core value object carried through the preprocessing
// pipeline. Two shapes are supported: a plain single-value series
// (Timestamps + Values) and an OHLCV candle series, in which case Values
// tracks the close column. Metadata is an opaque bag carried through every
// transform unchanged. Transforms return new instances; rows are never
// mutated in place.
type TimeSeries struct {
	Timestamps  []time.Time            `json:"timestamps"`
	Values      []float64              `json:"values"`
	Open        []float64              `json:"open,omitempty"`
	High        []float64              `json:"high,omitempty"`
	Low         []float64              `json:"low,omitempty"`
	Close       []float64              `json:"close,omitempty"`
	Volume      []float64              `json:"volume,omitempty"`
	FeatureRows []map[string]float64   `json:"features,omitempty"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// NewTimeSeries creates a plain single-value series.
func NewTimeSeries(timestamps []time.Time, values []float64, metadata map[string]interface{}) *TimeSeries {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return &TimeSeries{
		Timestamps: timestamps,
		Values:     values,
		Metadata:   metadata,
	}
}

// Len returns the number of rows.
func (ts *TimeSeries) Len() int {
	return len(ts.Timestamps)
}

// IsOHLCV reports whether the series carries candle columns.
func (ts *TimeSeries) IsOHLCV() bool {
	return len(ts.Close) > 0
}

// Clone returns a deep copy of the series.
func (ts *TimeSeries) Clone() *TimeSeries {
	out := &TimeSeries{
		Timestamps: append([]time.Time(nil), ts.Timestamps...),
		Values:     append([]float64(nil), ts.Values...),
		Open:       append([]float64(nil), ts.Open...),
		High:       append([]float64(nil), ts.High...),
		Low:        append([]float64(nil), ts.Low...),
		Close:      append([]float64(nil), ts.Close...),
		Volume:     append([]float64(nil), ts.Volume...),
		Metadata:   make(map[string]interface{}, len(ts.Metadata)),
	}
	if ts.FeatureRows != nil {
		out.FeatureRows = make([]map[string]float64, len(ts.FeatureRows))
		for i, row := range ts.FeatureRows {
			if row == nil {
				continue
			}
			cp := make(map[string]float64, len(row))
			for k, v := range row {
				cp[k] = v
			}
			out.FeatureRows[i] = cp
		}
	}
	for k, v := range ts.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// Column returns the named base column, or nil if the series does not carry
// it. "value" always resolves: to Values for plain series and to Close for
// OHLCV series.
func (ts *TimeSeries) Column(name string) []float64 {
	switch name {
	case "value":
		if ts.IsOHLCV() {
			return ts.Close
		}
		return ts.Values
	case "open":
		return ts.Open
	case "high":
		return ts.High
	case "low":
		return ts.Low
	case "close":
		return ts.Close
	case "volume":
		return ts.Volume
	}
	return nil
}

// SelectRows returns a new series containing only the rows at the given
// (sorted) positions. Used by outlier removal; keeps all columns aligned.
func (ts *TimeSeries) SelectRows(keep []int) *TimeSeries {
	pick := func(col []float64) []float64 {
		if col == nil {
			return nil
		}
		out := make([]float64, 0, len(keep))
		for _, i := range keep {
			out = append(out, col[i])
		}
		return out
	}

	out := &TimeSeries{
		Timestamps: make([]time.Time, 0, len(keep)),
		Values:     pick(ts.Values),
		Open:       pick(ts.Open),
		High:       pick(ts.High),
		Low:        pick(ts.Low),
		Close:      pick(ts.Close),
		Volume:     pick(ts.Volume),
		Metadata:   ts.Metadata,
	}
	for _, i := range keep {
		out.Timestamps = append(out.Timestamps, ts.Timestamps[i])
	}
	if ts.FeatureRows != nil {
		out.FeatureRows = make([]map[string]float64, 0, len(keep))
		for _, i := range keep {
			out.FeatureRows = append(out.FeatureRows, ts.FeatureRows[i])
		}
	}
	return out
}

// MissingCount returns the number of NaN entries in the value column.
func (ts *TimeSeries) MissingCount() int {
	count := 0
	for _, v := range ts.Column("value") {
		if math.IsNaN(v) {
			count++
		}
	}
	return count
}
