// Package preprocessing implements the transform stages of the pipeline:
// missing-value handling, outlier detection, resampling and feature
// engineering. Each stage is an interface with a default implementation so
// the orchestrator never depends on a concrete transform.
package preprocessing

import (
	"math"

	"github.com/quantprep/preprocessing-go/internal/models"
)

// MissingValueHandler fills gaps in the value column of a series.
type MissingValueHandler interface {
	HandleMissing(series *models.TimeSeries, method models.InterpolationMethod) *models.TimeSeries
}

// InterpolatingFiller is the default MissingValueHandler. It is a pure
// transform: row count is preserved and the input is never mutated. Methods
// that need a minimum number of known points (spline needs 4, polynomial
// needs 3) fall back to linear, and any gap left at the edges is closed by a
// forward-fill then backward-fill pass, so the output contains no NaN unless
// the entire column is NaN.
type InterpolatingFiller struct{}

// NewInterpolatingFiller creates the default missing-value handler.
func NewInterpolatingFiller() *InterpolatingFiller {
	return &InterpolatingFiller{}
}

// HandleMissing fills gaps in every value-bearing column. For OHLCV series
// all five columns are filled; for plain series only Values.
func (f *InterpolatingFiller) HandleMissing(series *models.TimeSeries, method models.InterpolationMethod) *models.TimeSeries {
	out := series.Clone()

	if out.IsOHLCV() {
		for _, col := range [][]float64{out.Open, out.High, out.Low, out.Close, out.Volume} {
			fillColumn(col, method)
		}
		out.Values = append([]float64(nil), out.Close...)
	} else {
		fillColumn(out.Values, method)
	}
	return out
}

// fillColumn fills col in place using the requested method, then closes any
// remaining edge gaps with forward-fill followed by backward-fill.
func fillColumn(col []float64, method models.InterpolationMethod) {
	if len(col) == 0 {
		return
	}

	switch method {
	case models.InterpolationLinear:
		interpolateLinear(col)
	case models.InterpolationForwardFill:
		forwardFill(col)
	case models.InterpolationBackwardFill:
		backwardFill(col)
	case models.InterpolationSpline:
		if knownCount(col) >= 4 {
			interpolateSpline(col)
		} else {
			interpolateLinear(col)
		}
	case models.InterpolationPolynomial:
		if knownCount(col) >= 3 {
			interpolatePolynomial(col)
		} else {
			interpolateLinear(col)
		}
	default:
		interpolateLinear(col)
	}

	forwardFill(col)
	backwardFill(col)
}

func knownCount(col []float64) int {
	n := 0
	for _, v := range col {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// interpolateLinear fills interior gaps with piecewise-linear values between
// the surrounding known points. Leading and trailing gaps are left for the
// edge pass.
func interpolateLinear(col []float64) {
	prev := -1
	for i := 0; i < len(col); i++ {
		if math.IsNaN(col[i]) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			step := (col[i] - col[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				col[j] = col[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
}

func forwardFill(col []float64) {
	last := math.NaN()
	for i := range col {
		if math.IsNaN(col[i]) {
			col[i] = last
		} else {
			last = col[i]
		}
	}
}

func backwardFill(col []float64) {
	next := math.NaN()
	for i := len(col) - 1; i >= 0; i-- {
		if math.IsNaN(col[i]) {
			col[i] = next
		} else {
			next = col[i]
		}
	}
}

// interpolateSpline fills interior gaps by evaluating a natural cubic spline
// fitted through the known points, using row position as the x axis.
func interpolateSpline(col []float64) {
	xs, ys := knownPoints(col)
	n := len(xs)

	// Second derivatives of a natural cubic spline via the tridiagonal
	// system (Thomas algorithm).
	m := make([]float64, n)
	diag := make([]float64, n)
	upper := make([]float64, n)
	rhs := make([]float64, n)

	diag[0], diag[n-1] = 1, 1
	for i := 1; i < n-1; i++ {
		h0 := xs[i] - xs[i-1]
		h1 := xs[i+1] - xs[i]
		diag[i] = 2 * (h0 + h1)
		upper[i] = h1
		rhs[i] = 6 * ((ys[i+1]-ys[i])/h1 - (ys[i]-ys[i-1])/h0)
	}
	for i := 2; i < n-1; i++ {
		h0 := xs[i] - xs[i-1]
		factor := h0 / diag[i-1]
		diag[i] -= factor * upper[i-1]
		rhs[i] -= factor * rhs[i-1]
	}
	for i := n - 2; i >= 1; i-- {
		m[i] = (rhs[i] - upper[i]*m[i+1]) / diag[i]
	}

	seg := 0
	for i := range col {
		if !math.IsNaN(col[i]) {
			continue
		}
		x := float64(i)
		if x < xs[0] || x > xs[n-1] {
			continue
		}
		for seg < n-2 && xs[seg+1] < x {
			seg++
		}
		h := xs[seg+1] - xs[seg]
		a := (xs[seg+1] - x) / h
		b := (x - xs[seg]) / h
		col[i] = a*ys[seg] + b*ys[seg+1] +
			((a*a*a-a)*m[seg]+(b*b*b-b)*m[seg+1])*h*h/6
	}
}

// interpolatePolynomial fills interior gaps by evaluating a least-squares
// quadratic fitted over all known points.
func interpolatePolynomial(col []float64) {
	xs, ys := knownPoints(col)

	// Normal equations for y = c0 + c1*x + c2*x^2.
	var s0, s1, s2, s3, s4 float64
	var t0, t1, t2 float64
	for i, x := range xs {
		x2 := x * x
		s0++
		s1 += x
		s2 += x2
		s3 += x2 * x
		s4 += x2 * x2
		t0 += ys[i]
		t1 += x * ys[i]
		t2 += x2 * ys[i]
	}

	det := s0*(s2*s4-s3*s3) - s1*(s1*s4-s3*s2) + s2*(s1*s3-s2*s2)
	if det == 0 {
		interpolateLinear(col)
		return
	}
	c0 := (t0*(s2*s4-s3*s3) - s1*(t1*s4-s3*t2) + s2*(t1*s3-s2*t2)) / det
	c1 := (s0*(t1*s4-s3*t2) - t0*(s1*s4-s3*s2) + s2*(s1*t2-t1*s2)) / det
	c2 := (s0*(s2*t2-t1*s3) - s1*(s1*t2-t1*s2) + t0*(s1*s3-s2*s2)) / det

	lo, hi := xs[0], xs[len(xs)-1]
	for i := range col {
		x := float64(i)
		if math.IsNaN(col[i]) && x >= lo && x <= hi {
			col[i] = c0 + c1*x + c2*x*x
		}
	}
}

func knownPoints(col []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(col))
	ys := make([]float64, 0, len(col))
	for i, v := range col {
		if !math.IsNaN(v) {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}
	return xs, ys
}
