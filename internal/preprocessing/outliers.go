package preprocessing

import (
	"math"
	"sort"

	"github.com/quantprep/preprocessing-go/internal/models"
)

// OutlierDetector flags or removes points outside a statistical or
// model-based bound on the value column.
//
// The two operations use deliberately asymmetric boundary comparisons:
// DetectAndRemove keeps rows strictly inside the bound (score < threshold,
// value within inclusive IQR fences), while DetectOnly flags rows at or
// outside it (score >= threshold, value strictly outside the fences). A
// point sitting exactly on the boundary is therefore flagged by DetectOnly
// for zscore but not for iqr, and removed by DetectAndRemove for zscore but
// kept for iqr.
type OutlierDetector interface {
	DetectAndRemove(series *models.TimeSeries, method models.OutlierMethod, threshold float64) *models.TimeSeries
	DetectOnly(series *models.TimeSeries, method models.OutlierMethod, threshold float64) []int
}

// StatisticalDetector implements zscore and iqr detection as deterministic
// pure functions, and isolation-forest detection with a fixed seed for
// best-effort reproducibility.
type StatisticalDetector struct{}

// NewStatisticalDetector creates the default outlier detector.
func NewStatisticalDetector() *StatisticalDetector {
	return &StatisticalDetector{}
}

// DetectAndRemove returns a new series with outlier rows dropped. All
// columns stay row-aligned; metadata passes through.
func (d *StatisticalDetector) DetectAndRemove(series *models.TimeSeries, method models.OutlierMethod, threshold float64) *models.TimeSeries {
	values := series.Column("value")
	keep := make([]int, 0, len(values))

	switch method {
	case models.OutlierZScore:
		scores := zScores(values)
		for i, s := range scores {
			if s < threshold { // NaN score never passes
				keep = append(keep, i)
			}
		}
	case models.OutlierIQR:
		lower, upper := iqrBounds(values, threshold)
		for i, v := range values {
			if v >= lower && v <= upper {
				keep = append(keep, i)
			}
		}
	case models.OutlierIsolationForest:
		inlier := isolationForestInliers(values)
		for i := range values {
			if inlier[i] {
				keep = append(keep, i)
			}
		}
	default:
		for i := range values {
			keep = append(keep, i)
		}
	}

	return series.SelectRows(keep)
}

// DetectOnly returns the indices of flagged rows without removing any.
func (d *StatisticalDetector) DetectOnly(series *models.TimeSeries, method models.OutlierMethod, threshold float64) []int {
	values := series.Column("value")
	flagged := make([]int, 0)

	switch method {
	case models.OutlierZScore:
		scores := zScores(values)
		for i, s := range scores {
			if s >= threshold {
				flagged = append(flagged, i)
			}
		}
	case models.OutlierIQR:
		lower, upper := iqrBounds(values, threshold)
		for i, v := range values {
			if v < lower || v > upper {
				flagged = append(flagged, i)
			}
		}
	case models.OutlierIsolationForest:
		inlier := isolationForestInliers(values)
		for i := range values {
			if !inlier[i] {
				flagged = append(flagged, i)
			}
		}
	}

	return flagged
}

// zScores returns |v - mean| / stddev per row, skipping NaN rows when
// computing the moments. A zero-variance column yields a score of 0
// everywhere, so nothing is removed.
func zScores(values []float64) []float64 {
	mean, std := meanStd(values)
	scores := make([]float64, len(values))
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			scores[i] = math.NaN()
		case std == 0:
			scores[i] = 0
		default:
			scores[i] = math.Abs(v-mean) / std
		}
	}
	return scores
}

// meanStd computes the mean and sample standard deviation over non-NaN rows.
func meanStd(values []float64) (float64, float64) {
	var sum float64
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	mean := sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range values {
		if !math.IsNaN(v) {
			d := v - mean
			ss += d * d
		}
	}
	return mean, math.Sqrt(ss / float64(n-1))
}

// iqrBounds returns [Q1 - t*IQR, Q3 + t*IQR] over the non-NaN rows.
func iqrBounds(values []float64, threshold float64) (float64, float64) {
	q1 := quantile(values, 0.25)
	q3 := quantile(values, 0.75)
	iqr := q3 - q1
	return q1 - threshold*iqr, q3 + threshold*iqr
}

// quantile computes the q-th quantile over non-NaN rows with linear
// interpolation between ranks.
func quantile(values []float64, q float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	pos := q * float64(len(clean)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return clean[lo]
	}
	frac := pos - float64(lo)
	return clean[lo] + frac*(clean[hi]-clean[lo])
}
