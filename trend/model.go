// Package trend fits trend models to telemetry streams: linear and
// non-linear regressions plus ARIMA, with information-criterion based
// selection.
package trend

import "math"

type ModelType string

const (
	TypeLinear      ModelType = "linear"
	TypePolynomial  ModelType = "polynomial"
	TypeExponential ModelType = "exponential"
	TypeLogarithmic ModelType = "logarithmic"
	TypeARIMA       ModelType = "arima"
)

// Model is a fitted trend model. Immutable once returned.
//
// Detrended holds the fitted trend line, so for every index
// Values[i] - Detrended[i] == Residuals[i] exactly.
type Model struct {
	Type         ModelType
	Equation     string
	Coefficients []float64
	R2           float64
	RMSE         float64
	MAE          float64
	Residuals    []float64
	Detrended    []float64

	// Fallback names the model type originally requested when a
	// numerically unstable fit degraded to this simpler form.
	Fallback string

	terms int
}

// metrics fills R2, RMSE and MAE from values and the fitted line, and
// populates the residual arrays.
func (m *Model) metrics(values, fitted []float64) {
	n := len(values)
	m.Detrended = fitted
	m.Residuals = make([]float64, n)

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	rss, tss, absSum := 0.0, 0.0, 0.0
	for i := 0; i < n; i++ {
		m.Residuals[i] = values[i] - fitted[i]
		rss += m.Residuals[i] * m.Residuals[i]
		absSum += math.Abs(m.Residuals[i])
		d := values[i] - mean
		tss += d * d
	}

	m.RMSE = math.Sqrt(rss / float64(n))
	m.MAE = absSum / float64(n)

	switch {
	case tss > 0:
		m.R2 = 1 - rss/tss
	case rss < 1e-12:
		// Constant series fitted exactly.
		m.R2 = 1
	default:
		m.R2 = 0
	}
}

// usable reports whether the fit produced finite metrics.
func (m *Model) usable() bool {
	if m == nil {
		return false
	}
	if math.IsNaN(m.R2) || math.IsInf(m.R2, 0) || math.IsNaN(m.RMSE) || math.IsInf(m.RMSE, 0) {
		return false
	}
	for _, f := range m.Detrended {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
