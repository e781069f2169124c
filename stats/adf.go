package stats

import (
	"math"

	"trendengine/timeseries"
)

// MinADFSamples is the shortest series the ADF regression can handle.
// Shorter input reports non-stationary with a sentinel p-value instead
// of failing, so the dashboard always gets a structurally valid result.
const MinADFSamples = 8

const adfAlpha = 0.05

// ADFResult is the outcome of an augmented Dickey-Fuller unit-root test.
// The null hypothesis is that the series has a unit root; PValue below
// the 0.05 significance level rejects it.
type ADFResult struct {
	Statistic    float64
	PValue       float64
	Lags         int
	NObs         int
	IsStationary bool
}

// ADF runs the augmented Dickey-Fuller test with automatic lag selection
// floor((n-1)^(1/3)). The regression is
//
//	delta_y_t = alpha + beta*y_{t-1} + sum(gamma_i * delta_y_{t-i}) + e_t
//
// and the statistic is the t-value on beta, compared against the
// MacKinnon constant-only critical values.
func ADF(values []float64) *ADFResult {
	n := len(values)
	if n < MinADFSamples {
		return &ADFResult{Statistic: 0, PValue: 1, IsStationary: false}
	}

	// A constant series is trivially stationary and makes the
	// regression singular, so short-circuit it.
	if isNearConstant(values) {
		return &ADFResult{Statistic: -99, PValue: 0.001, NObs: n, IsStationary: true}
	}

	maxLag := int(math.Floor(math.Pow(float64(n-1), 1.0/3.0)))
	if maxLag >= n-2 {
		maxLag = n - 3
	}
	if maxLag < 0 {
		maxLag = 0
	}

	diff := timeseries.DiffN(values, 1)

	nObs := n - maxLag - 1
	for nObs < 4 && maxLag > 0 {
		maxLag--
		nObs = n - maxLag - 1
	}
	if nObs < 4 {
		return &ADFResult{Statistic: 0, PValue: 1, IsStationary: false}
	}

	y := make([]float64, nObs)
	x := make([][]float64, nObs)
	for i := 0; i < nObs; i++ {
		t := i + maxLag
		y[i] = diff[t]
		row := make([]float64, 2+maxLag)
		row[0] = 1
		row[1] = values[t]
		for j := 1; j <= maxLag; j++ {
			row[1+j] = diff[t-j]
		}
		x[i] = row
	}

	fit, err := OLS(x, y)
	if err != nil || fit.StdErrors == nil || fit.StdErrors[1] == 0 {
		return &ADFResult{Statistic: 0, PValue: 1, Lags: maxLag, NObs: nObs, IsStationary: false}
	}

	tStat := fit.Coeffs[1] / fit.StdErrors[1]
	pValue := mackinnonPValue(tStat)

	return &ADFResult{
		Statistic:    tStat,
		PValue:       pValue,
		Lags:         maxLag,
		NObs:         nObs,
		IsStationary: pValue < adfAlpha,
	}
}

func isNearConstant(values []float64) bool {
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	scale := math.Max(math.Abs(min), math.Abs(max))
	if scale == 0 {
		return true
	}
	return (max-min)/scale < 1e-10
}

// mackinnonPValue interpolates the MacKinnon asymptotic table for the
// constant-only regression.
func mackinnonPValue(stat float64) float64 {
	table := []struct {
		stat float64
		p    float64
	}{
		{-3.96, 0.001},
		{-3.43, 0.01},
		{-2.86, 0.05},
		{-2.57, 0.10},
		{-1.94, 0.25},
		{-1.62, 0.50},
		{0.0, 0.90},
	}

	if stat <= table[0].stat {
		return table[0].p
	}
	for i := 1; i < len(table); i++ {
		if stat <= table[i].stat {
			lo, hi := table[i-1], table[i]
			frac := (stat - lo.stat) / (hi.stat - lo.stat)
			return lo.p + frac*(hi.p-lo.p)
		}
	}
	return 0.99
}
