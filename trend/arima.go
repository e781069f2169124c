package trend

import (
	"errors"
	"fmt"
	"math"

	"trendengine/stats"
	"trendengine/timeseries"
)

const (
	maxARIMAOrder   = 3
	maxDifferencing = 2
	// cssIterations bounds the conditional-least-squares refinement.
	cssIterations = 100
	cssTolerance  = 1e-6
	cssRate       = 0.01
)

type ARIMAOrder struct {
	P int
	D int
	Q int
}

// ARIMAModel is a fitted ARIMA(p,d,q) model. The AR part is seeded by
// Yule-Walker and refined jointly with the MA part by conditional least
// squares.
type ARIMAModel struct {
	Order     ARIMAOrder
	ARCoeffs  []float64
	MACoeffs  []float64
	Intercept float64
	Variance  float64
	AIC       float64
	BIC       float64

	values     []float64
	diffValues []float64
	residuals  []float64
	fitted     []float64
}

// FitARIMA selects the differencing order from repeated stationarity
// tests (capped at 2), grid-searches p,q in [0,3] and returns the
// candidate minimizing AIC, tie-broken by BIC then total order. Returns
// nil when differencing leaves too little data for any candidate.
func FitARIMA(s *timeseries.Stream, adf *stats.ADFResult) *ARIMAModel {
	values := s.Values
	if adf == nil {
		adf = stats.ADF(values)
	}

	d := 0
	current := values
	for !adf.IsStationary && d < maxDifferencing {
		d++
		current = timeseries.DiffN(values, d)
		if len(current) < stats.MinADFSamples {
			break
		}
		adf = stats.ADF(current)
	}

	var best *ARIMAModel
	maxP := arOrderBound(current)
	for p := 0; p <= maxP; p++ {
		for q := 0; q <= maxARIMAOrder; q++ {
			candidate, err := fitARIMAOrder(values, p, d, q)
			if err != nil {
				continue
			}
			if best == nil || betterARIMA(candidate, best) {
				best = candidate
			}
		}
	}
	return best
}

// arOrderBound caps the AR grid at one past the last partial
// autocorrelation clearing the white-noise band. An AR(p) process has
// a PACF cutoff at lag p, so lags beyond it only waste candidates.
func arOrderBound(diff []float64) int {
	pacf := stats.PACF(diff, maxARIMAOrder)
	if pacf == nil {
		return maxARIMAOrder
	}
	band := stats.WhiteNoiseBand(len(diff))
	cutoff := 0
	for lag := 1; lag < len(pacf); lag++ {
		if math.Abs(pacf[lag]) > band {
			cutoff = lag
		}
	}
	if cutoff >= maxARIMAOrder {
		return maxARIMAOrder
	}
	return cutoff + 1
}

func betterARIMA(a, b *ARIMAModel) bool {
	if a.AIC != b.AIC {
		return a.AIC < b.AIC
	}
	if a.BIC != b.BIC {
		return a.BIC < b.BIC
	}
	return a.Order.P+a.Order.Q < b.Order.P+b.Order.Q
}

func fitARIMAOrder(values []float64, p, d, q int) (*ARIMAModel, error) {
	if len(values) < p+q+d+10 {
		return nil, errors.New("insufficient data for order")
	}

	diff := values
	if d > 0 {
		diff = timeseries.DiffN(values, d)
	}
	if len(diff) < p+q+4 {
		return nil, errors.New("differenced series too short")
	}

	m := &ARIMAModel{
		Order:      ARIMAOrder{P: p, D: d, Q: q},
		ARCoeffs:   make([]float64, p),
		MACoeffs:   make([]float64, q),
		values:     values,
		diffValues: diff,
	}

	if p > 0 {
		if acf := stats.ACF(diff, p); acf != nil {
			if seed := yuleWalker(acf, p); seed != nil {
				copy(m.ARCoeffs, seed)
			}
		}
	}
	for i := range m.MACoeffs {
		m.MACoeffs[i] = 0.1
	}

	if err := m.refineCSS(); err != nil {
		return nil, err
	}
	m.informationCriteria()
	if math.IsNaN(m.AIC) || math.IsInf(m.AIC, 1) {
		return nil, errors.New("degenerate likelihood")
	}
	return m, nil
}

// refineCSS minimizes the conditional sum of squared one-step errors by
// gradient steps, with coefficients clamped inside the unit interval for
// stationarity/invertibility.
func (m *ARIMAModel) refineCSS() error {
	y := m.diffValues
	n := len(y)
	p, q := m.Order.P, m.Order.Q

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	m.Intercept = mean / float64(n)

	if p == 0 && q == 0 {
		m.residuals = make([]float64, n)
		m.fitted = make([]float64, n)
		sse := 0.0
		for i, v := range y {
			m.fitted[i] = m.Intercept
			m.residuals[i] = v - m.Intercept
			sse += m.residuals[i] * m.residuals[i]
		}
		if n > 1 {
			m.Variance = sse / float64(n-1)
		}
		return nil
	}

	start := p
	if q > start {
		start = q
	}

	prevSSE := math.Inf(1)
	residuals := make([]float64, n)

	for iter := 0; iter < cssIterations; iter++ {
		sse := m.oneStepResiduals(residuals)

		arGrad := make([]float64, p)
		maGrad := make([]float64, q)
		for t := start; t < n; t++ {
			for i := 0; i < p; i++ {
				arGrad[i] -= 2 * residuals[t] * (y[t-i-1] - m.Intercept)
			}
			for i := 0; i < q; i++ {
				maGrad[i] -= 2 * residuals[t] * residuals[t-i-1]
			}
		}

		for i := 0; i < p; i++ {
			m.ARCoeffs[i] = clampCoeff(m.ARCoeffs[i] - cssRate*arGrad[i]/float64(n))
		}
		for i := 0; i < q; i++ {
			m.MACoeffs[i] = clampCoeff(m.MACoeffs[i] - cssRate*maGrad[i]/float64(n))
		}

		if math.Abs(prevSSE-sse) < cssTolerance {
			break
		}
		prevSSE = sse
	}

	m.residuals = make([]float64, n)
	m.fitted = make([]float64, n)
	sse := m.finalResiduals()
	count := n - start
	if count <= 0 {
		return errors.New("no usable observations")
	}
	dof := count - p - q - 1
	if dof > 0 {
		m.Variance = sse / float64(dof)
	} else {
		m.Variance = sse / float64(count)
	}
	return nil
}

func (m *ARIMAModel) oneStepResiduals(residuals []float64) float64 {
	y := m.diffValues
	n := len(y)
	p, q := m.Order.P, m.Order.Q
	start := p
	if q > start {
		start = q
	}
	for i := range residuals {
		residuals[i] = 0
	}
	sse := 0.0
	for t := start; t < n; t++ {
		pred := m.Intercept
		for i := 0; i < p; i++ {
			pred += m.ARCoeffs[i] * (y[t-i-1] - m.Intercept)
		}
		for i := 0; i < q; i++ {
			pred += m.MACoeffs[i] * residuals[t-i-1]
		}
		residuals[t] = y[t] - pred
		sse += residuals[t] * residuals[t]
	}
	return sse
}

func (m *ARIMAModel) finalResiduals() float64 {
	y := m.diffValues
	n := len(y)
	p, q := m.Order.P, m.Order.Q
	start := p
	if q > start {
		start = q
	}
	sse := 0.0
	for t := 0; t < n; t++ {
		if t < start {
			m.fitted[t] = m.Intercept
			m.residuals[t] = y[t] - m.fitted[t]
			continue
		}
		pred := m.Intercept
		for i := 0; i < p; i++ {
			pred += m.ARCoeffs[i] * (y[t-i-1] - m.Intercept)
		}
		for i := 0; i < q; i++ {
			pred += m.MACoeffs[i] * m.residuals[t-i-1]
		}
		m.fitted[t] = pred
		m.residuals[t] = y[t] - pred
		sse += m.residuals[t] * m.residuals[t]
	}
	return sse
}

func clampCoeff(v float64) float64 {
	return math.Max(-0.99, math.Min(0.99, v))
}

func (m *ARIMAModel) informationCriteria() {
	n := len(m.residuals)
	k := m.Order.P + m.Order.Q + 1

	sse := 0.0
	for _, r := range m.residuals {
		sse += r * r
	}

	logLik := math.Inf(-1)
	if m.Variance > 0 {
		nf := float64(n)
		logLik = -nf/2*math.Log(2*math.Pi) - nf/2*math.Log(m.Variance) - sse/(2*m.Variance)
	}
	m.AIC = -2*logLik + 2*float64(k)
	m.BIC = -2*logLik + float64(k)*math.Log(float64(n))
}

// Forecast extrapolates steps values ahead on the original scale,
// integrating the differenced forecasts back through the last observed
// levels.
func (m *ARIMAModel) Forecast(steps int) []float64 {
	if steps < 1 {
		return nil
	}
	p, q, d := m.Order.P, m.Order.Q, m.Order.D

	y := m.diffValues
	n := len(y)
	extY := make([]float64, n+steps)
	copy(extY, y)
	extResiduals := make([]float64, n+steps)
	copy(extResiduals, m.residuals)

	for h := 0; h < steps; h++ {
		t := n + h
		pred := m.Intercept
		for i := 0; i < p && t-i-1 >= 0; i++ {
			pred += m.ARCoeffs[i] * (extY[t-i-1] - m.Intercept)
		}
		for i := 0; i < q && t-i-1 >= 0 && t-i-1 < n; i++ {
			pred += m.MACoeffs[i] * extResiduals[t-i-1]
		}
		extY[t] = pred
	}

	forecasts := make([]float64, steps)
	copy(forecasts, extY[n:])

	for i := 0; i < d; i++ {
		last := m.values[len(m.values)-1-i]
		for j := range forecasts {
			if j == 0 {
				forecasts[j] += last
			} else {
				forecasts[j] += forecasts[j-1]
			}
		}
	}
	return forecasts
}

// ResidualSD is the one-step forecast error standard deviation.
func (m *ARIMAModel) ResidualSD() float64 {
	return math.Sqrt(math.Max(m.Variance, 0))
}

// Model exposes the ARIMA fit through the common trend model shape.
// Residuals from the differenced scale are aligned to the tail of the
// original series so the residual identity holds exactly.
func (m *ARIMAModel) Model() *Model {
	n := len(m.values)
	offset := n - len(m.residuals)

	residuals := make([]float64, n)
	fitted := make([]float64, n)
	for i := 0; i < n; i++ {
		if i >= offset {
			residuals[i] = m.residuals[i-offset]
		}
		fitted[i] = m.values[i] - residuals[i]
	}

	model := &Model{
		Type:     TypeARIMA,
		Equation: fmt.Sprintf("ARIMA(%d,%d,%d)", m.Order.P, m.Order.D, m.Order.Q),
		terms:    m.Order.P + m.Order.Q + 1,
	}
	model.Coefficients = append(append([]float64{m.Intercept}, m.ARCoeffs...), m.MACoeffs...)
	model.metrics(m.values, fitted)
	return model
}

// yuleWalker solves the Yule-Walker equations by Levinson-Durbin.
func yuleWalker(acf []float64, order int) []float64 {
	if order <= 0 || len(acf) <= order {
		return nil
	}

	phi := make([]float64, order)
	phi[0] = acf[1]
	if order == 1 {
		return phi
	}

	v := 1 - phi[0]*phi[0]
	for i := 1; i < order; i++ {
		lambda := acf[i+1]
		for j := 0; j < i; j++ {
			lambda -= phi[j] * acf[i-j]
		}
		if v == 0 {
			break
		}
		lambda /= v

		next := make([]float64, i+1)
		for j := 0; j < i; j++ {
			next[j] = phi[j] - lambda*phi[i-1-j]
		}
		next[i] = lambda
		copy(phi, next)

		v *= 1 - lambda*lambda
		if v <= 0 {
			break
		}
	}
	return phi
}
