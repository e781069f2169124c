package trend

import (
	"fmt"

	"trendengine/stats"
	"trendengine/timeseries"
)

// MinFitSamples is the shortest series any trend fit accepts.
const MinFitSamples = 3

// FitLinear fits value against sample index by ordinary least squares.
// Returns nil on insufficient data.
func FitLinear(s *timeseries.Stream) *Model {
	n := s.Len()
	if n < MinFitSamples {
		return nil
	}

	x := make([][]float64, n)
	for i := 0; i < n; i++ {
		x[i] = []float64{1, float64(i)}
	}

	fit, err := stats.OLS(x, s.Values)
	if err != nil {
		return nil
	}

	intercept, slope := fit.Coeffs[0], fit.Coeffs[1]
	model := &Model{
		Type:         TypeLinear,
		Equation:     fmt.Sprintf("y = %.6g + %.6g*x", intercept, slope),
		Coefficients: []float64{intercept, slope},
		terms:        2,
	}
	model.metrics(s.Values, fit.Fitted)
	if !model.usable() {
		return nil
	}
	return model
}
