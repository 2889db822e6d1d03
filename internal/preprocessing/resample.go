package preprocessing

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quantprep/preprocessing-go/internal/models"
	"github.com/quantprep/preprocessing-go/internal/utils"
)

// Resampler re-grids a series onto a fixed calendar frequency. Buckets with
// no contributing points are dropped rather than NaN-filled; thinning the
// grid is the point of this stage, gap filling belongs to the
// MissingValueHandler.
type Resampler interface {
	Resample(series *models.TimeSeries, frequency string, method models.AggregationMethod) (*models.TimeSeries, error)
}

// BucketResampler implements Resampler by truncating each timestamp to its
// bucket start and aggregating the rows that share a bucket.
type BucketResampler struct{}

// NewBucketResampler creates the default resampler.
func NewBucketResampler() *BucketResampler {
	return &BucketResampler{}
}

// Resample aggregates the value column with the configured method. For OHLCV
// series the candle columns keep their natural aggregation: open=first,
// high=max, low=min, volume=sum, while close follows the configured method.
// Per-row feature bags do not survive re-gridding. Metadata passes through
// unchanged.
func (r *BucketResampler) Resample(series *models.TimeSeries, frequency string, method models.AggregationMethod) (*models.TimeSeries, error) {
	truncate, err := parseFrequency(frequency)
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time][]int)
	order := make([]time.Time, 0)
	for i, ts := range series.Timestamps {
		b := truncate(ts)
		if _, seen := buckets[b]; !seen {
			order = append(order, b)
		}
		buckets[b] = append(buckets[b], i)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	out := &models.TimeSeries{Metadata: series.Metadata}
	for _, b := range order {
		rows := buckets[b]

		value := aggregate(collect(series.Column("value"), rows), method)
		if math.IsNaN(value) {
			// Nothing usable contributed to this bucket.
			continue
		}

		out.Timestamps = append(out.Timestamps, b)
		out.Values = append(out.Values, value)
		if series.IsOHLCV() {
			out.Open = append(out.Open, first(collect(series.Open, rows)))
			out.High = append(out.High, aggregate(collect(series.High, rows), models.AggregationMax))
			out.Low = append(out.Low, aggregate(collect(series.Low, rows), models.AggregationMin))
			out.Close = append(out.Close, value)
			out.Volume = append(out.Volume, aggregate(collect(series.Volume, rows), models.AggregationSum))
		}
	}
	return out, nil
}

// parseFrequency resolves a pandas-style offset code (optionally prefixed
// with a multiple, e.g. "15T") into a bucket-truncation function. Supported
// units: S, T/min, H, D, W, M.
func parseFrequency(frequency string) (func(time.Time) time.Time, error) {
	code := strings.TrimSpace(frequency)
	n := 1
	digits := 0
	for digits < len(code) && code[digits] >= '0' && code[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		parsed, err := strconv.Atoi(code[:digits])
		if err != nil || parsed < 1 {
			return nil, utils.NewValidationErrorf("invalid resample frequency: %s", frequency)
		}
		n = parsed
		code = code[digits:]
	}

	switch strings.ToUpper(code) {
	case "S":
		return durationTruncate(time.Duration(n) * time.Second), nil
	case "T", "MIN":
		return durationTruncate(time.Duration(n) * time.Minute), nil
	case "H":
		return durationTruncate(time.Duration(n) * time.Hour), nil
	case "D":
		return durationTruncate(time.Duration(n) * 24 * time.Hour), nil
	case "W":
		return weekTruncate, nil
	case "M":
		return monthTruncate, nil
	}
	return nil, utils.NewValidationErrorf("unsupported resample frequency: %s", frequency)
}

func durationTruncate(d time.Duration) func(time.Time) time.Time {
	return func(t time.Time) time.Time {
		return t.UTC().Truncate(d)
	}
}

// weekTruncate buckets to Monday 00:00 UTC of the timestamp's ISO week.
func weekTruncate(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// monthTruncate buckets to the first of the month.
func monthTruncate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func collect(col []float64, rows []int) []float64 {
	if col == nil {
		return nil
	}
	out := make([]float64, 0, len(rows))
	for _, i := range rows {
		out = append(out, col[i])
	}
	return out
}

func first(values []float64) float64 {
	for _, v := range values {
		if !math.IsNaN(v) {
			return v
		}
	}
	return math.NaN()
}

// aggregate applies the method over non-NaN entries; NaN when none remain.
func aggregate(values []float64, method models.AggregationMethod) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}

	switch method {
	case models.AggregationSum:
		var sum float64
		for _, v := range clean {
			sum += v
		}
		return sum
	case models.AggregationMin:
		out := clean[0]
		for _, v := range clean[1:] {
			if v < out {
				out = v
			}
		}
		return out
	case models.AggregationMax:
		out := clean[0]
		for _, v := range clean[1:] {
			if v > out {
				out = v
			}
		}
		return out
	case models.AggregationMedian:
		sorted := append([]float64(nil), clean...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 0 {
			return (sorted[mid-1] + sorted[mid]) / 2
		}
		return sorted[mid]
	default: // mean
		var sum float64
		for _, v := range clean {
			sum += v
		}
		return sum / float64(len(clean))
	}
}
