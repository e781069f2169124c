package forecast

import "math"

func rootMeanSquaredError(actual, predicted []float64) float64 {
	n := len(actual)
	if n == 0 || len(predicted) != n {
		return math.Inf(1)
	}
	sse := 0.0
	for i := range actual {
		d := actual[i] - predicted[i]
		sse += d * d
	}
	return math.Sqrt(sse / float64(n))
}

// backtestMetrics scores holdout forecasts. MASE scales by the mean
// absolute one-step naive error over the training history, the
// conventional denominator.
func backtestMetrics(train, actual, predicted []float64) Metrics {
	m := Metrics{MAPE: math.NaN(), SMAPE: math.NaN(), MASE: math.NaN()}
	if len(actual) == 0 || len(predicted) != len(actual) {
		return m
	}

	mapeSum, mapeCount := 0.0, 0
	smapeSum, smapeCount := 0.0, 0
	maeSum := 0.0
	for i := range actual {
		err := math.Abs(actual[i] - predicted[i])
		maeSum += err
		if actual[i] != 0 {
			mapeSum += err / math.Abs(actual[i])
			mapeCount++
		}
		denom := (math.Abs(actual[i]) + math.Abs(predicted[i])) / 2
		if denom != 0 {
			smapeSum += err / denom
			smapeCount++
		}
	}
	if mapeCount > 0 {
		m.MAPE = 100 * mapeSum / float64(mapeCount)
	}
	if smapeCount > 0 {
		m.SMAPE = 100 * smapeSum / float64(smapeCount)
	}

	if len(train) >= 2 {
		naiveSum := 0.0
		for i := 1; i < len(train); i++ {
			naiveSum += math.Abs(train[i] - train[i-1])
		}
		scale := naiveSum / float64(len(train)-1)
		if scale > 0 {
			m.MASE = (maeSum / float64(len(actual))) / scale
		}
	}
	return m
}
