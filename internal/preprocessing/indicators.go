package preprocessing

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"

	"github.com/quantprep/preprocessing-go/internal/models"
	"github.com/quantprep/preprocessing-go/internal/utils"
)

const rsiPeriod = 14

// IndicatorFeatures appends technical-indicator columns computed on the
// value column: rsi_14 plus sma_W and ema_W per requested window. Indicator
// outputs are shorter than their input by the warm-up period; columns are
// left-padded with NaN to stay row-aligned with the series.
func (e *CandleFeatureEngineer) IndicatorFeatures(series *models.TimeSeries, windows []int) (*models.FeatureMatrix, error) {
	src := series.Column("value")
	if src == nil {
		return nil, utils.NewInvalidColumnError("value")
	}

	matrix := models.NewFeatureMatrix(series.Timestamps)

	rsi := momentum.NewRsiWithPeriod[float64](rsiPeriod)
	rsiValues := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(src)))
	if err := matrix.AddColumn(fmt.Sprintf("rsi_%d", rsiPeriod), padLeft(rsiValues, len(src))); err != nil {
		return nil, err
	}

	for _, w := range windows {
		if w > len(src) {
			continue
		}
		sma := trend.NewSmaWithPeriod[float64](w)
		smaValues := helper.ChanToSlice(sma.Compute(helper.SliceToChan(src)))
		if err := matrix.AddColumn(fmt.Sprintf("sma_%d", w), padLeft(smaValues, len(src))); err != nil {
			return nil, err
		}

		ema := trend.NewEmaWithPeriod[float64](w)
		emaValues := helper.ChanToSlice(ema.Compute(helper.SliceToChan(src)))
		if err := matrix.AddColumn(fmt.Sprintf("ema_%d", w), padLeft(emaValues, len(src))); err != nil {
			return nil, err
		}
	}
	return matrix, nil
}

// padLeft prefixes NaN rows so the indicator column matches the series
// length.
func padLeft(values []float64, n int) []float64 {
	if len(values) >= n {
		return values[len(values)-n:]
	}
	out := nanSlice(n)
	copy(out[n-len(values):], values)
	return out
}
