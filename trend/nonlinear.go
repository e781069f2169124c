package trend

import (
	"fmt"
	"math"

	"trendengine/stats"
	"trendengine/timeseries"
)

// DefaultMaxDegree bounds the polynomial search when the caller does not
// set one.
const DefaultMaxDegree = 3

// logEpsilon replaces non-positive operands before log-linearization so a
// series dipping to zero degrades the fit instead of failing it.
const logEpsilon = 1e-10

// FitNonLinear fits polynomial (degrees 2..maxDegree), exponential
// a*e^(bx) and logarithmic a + b*ln(x+1) candidates and returns the one
// with the highest R². Returns nil when no candidate is numerically
// usable.
func FitNonLinear(s *timeseries.Stream, maxDegree int) *Model {
	n := s.Len()
	if maxDegree < 2 {
		maxDegree = DefaultMaxDegree
	}
	if n < MinFitSamples+1 {
		return nil
	}

	var best *Model
	var degradedFrom string
	consider := func(m *Model, kind ModelType) {
		if !m.usable() {
			degradedFrom = string(kind)
			return
		}
		if best == nil || m.R2 > best.R2 {
			best = m
		}
	}

	for degree := 2; degree <= maxDegree && degree < n-1; degree++ {
		if m := fitPolynomial(s.Values, degree); m != nil {
			consider(m, TypePolynomial)
		}
	}
	if m := fitExponential(s.Values); m != nil {
		consider(m, TypeExponential)
	}
	if m := fitLogarithmic(s.Values); m != nil {
		consider(m, TypeLogarithmic)
	}

	// When a numerically unstable candidate was discarded, note the
	// degradation on the model that stood in for it.
	if best != nil && degradedFrom != "" && degradedFrom != string(best.Type) {
		best.Fallback = degradedFrom
	}
	return best
}

func fitPolynomial(values []float64, degree int) *Model {
	n := len(values)
	x := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, degree+1)
		row[0] = 1
		for d := 1; d <= degree; d++ {
			row[d] = row[d-1] * float64(i)
		}
		x[i] = row
	}

	fit, err := stats.OLS(x, values)
	if err != nil {
		return nil
	}

	model := &Model{
		Type:         TypePolynomial,
		Equation:     polyEquation(fit.Coeffs),
		Coefficients: fit.Coeffs,
		terms:        degree + 1,
	}
	model.metrics(values, fit.Fitted)
	return model
}

func polyEquation(coeffs []float64) string {
	eq := fmt.Sprintf("y = %.6g", coeffs[0])
	for d := 1; d < len(coeffs); d++ {
		eq += fmt.Sprintf(" + %.6g*x^%d", coeffs[d], d)
	}
	return eq
}

// fitExponential log-linearizes y = a*e^(bx) into ln(y) = ln(a) + b*x.
func fitExponential(values []float64) *Model {
	n := len(values)
	x := make([][]float64, n)
	logY := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = []float64{1, float64(i)}
		logY[i] = math.Log(math.Max(values[i], logEpsilon))
	}

	fit, err := stats.OLS(x, logY)
	if err != nil {
		return nil
	}

	a := math.Exp(fit.Coeffs[0])
	b := fit.Coeffs[1]
	fitted := make([]float64, n)
	for i := 0; i < n; i++ {
		fitted[i] = a * math.Exp(b*float64(i))
	}

	model := &Model{
		Type:         TypeExponential,
		Equation:     fmt.Sprintf("y = %.6g * e^(%.6g*x)", a, b),
		Coefficients: []float64{a, b},
		terms:        2,
	}
	model.metrics(values, fitted)
	return model
}

// fitLogarithmic fits y = a + b*ln(x+1); the +1 keeps the first index in
// the domain.
func fitLogarithmic(values []float64) *Model {
	n := len(values)
	x := make([][]float64, n)
	for i := 0; i < n; i++ {
		x[i] = []float64{1, math.Log(float64(i + 1))}
	}

	fit, err := stats.OLS(x, values)
	if err != nil {
		return nil
	}

	a, b := fit.Coeffs[0], fit.Coeffs[1]
	model := &Model{
		Type:         TypeLogarithmic,
		Equation:     fmt.Sprintf("y = %.6g + %.6g*ln(x+1)", a, b),
		Coefficients: []float64{a, b},
		terms:        2,
	}
	model.metrics(values, fit.Fitted)
	return model
}
