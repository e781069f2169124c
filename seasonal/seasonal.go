// Package seasonal detects periodicity in a series and splits it into
// trend, seasonal and residual components by classical additive
// decomposition.
package seasonal

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"trendengine/stats"
)

// Decomposition is the additive split original = Trend + Seasonal +
// Residual. When Detected is false only the flag is meaningful.
type Decomposition struct {
	Detected bool
	Period   int
	Strength float64
	Trend    []float64
	Seasonal []float64
	Residual []float64
}

const (
	minPeriod = 2
	// minCycles is how many full periods the series must cover before
	// decomposition is attempted.
	minCycles = 2
)

// Decompose looks for a dominant period and, when one clears the white
// noise significance band, runs the additive decomposition. Strength is
// 1 - Var(residual)/Var(detrended), clamped to [0,1].
func Decompose(values []float64) *Decomposition {
	n := len(values)
	if n < minPeriod*minCycles*2 {
		return &Decomposition{Detected: false}
	}

	period := detectPeriod(values)
	if period == 0 || n < minCycles*period {
		return &Decomposition{Detected: false}
	}

	trend := centeredMovingAverage(values, period)

	detrended := make([]float64, n)
	for i := range values {
		detrended[i] = values[i] - trend[i]
	}

	// Seasonal pattern: average the detrended values per phase, then
	// center the pattern so it sums to zero.
	pattern := make([]float64, period)
	counts := make([]int, period)
	for i := range detrended {
		idx := i % period
		pattern[idx] += detrended[i]
		counts[idx]++
	}
	patternMean := 0.0
	for i := range pattern {
		if counts[i] > 0 {
			pattern[i] /= float64(counts[i])
		}
		patternMean += pattern[i]
	}
	patternMean /= float64(period)
	for i := range pattern {
		pattern[i] -= patternMean
	}

	seasonal := make([]float64, n)
	residual := make([]float64, n)
	for i := range values {
		seasonal[i] = pattern[i%period]
		residual[i] = values[i] - trend[i] - seasonal[i]
	}

	strength := 1 - varOf(residual)/math.Max(varOf(detrended), 1e-12)
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}

	return &Decomposition{
		Detected: true,
		Period:   period,
		Strength: strength,
		Trend:    trend,
		Seasonal: seasonal,
		Residual: residual,
	}
}

// detectPeriod returns the dominant period, or 0 when no candidate
// clears the 95% white-noise band. The FFT dominant frequency is tried
// first and confirmed against the ACF; otherwise the ACF is scanned for
// its highest significant local peak.
func detectPeriod(values []float64) int {
	n := len(values)
	maxLag := n / 2

	acf := stats.ACF(values, maxLag)
	if acf == nil {
		return 0
	}
	band := stats.WhiteNoiseBand(n)

	if p := fftCandidate(values); p >= minPeriod && p <= maxLag && acf[p] > band {
		return p
	}

	bestLag, bestVal := 0, band
	for lag := minPeriod; lag <= maxLag; lag++ {
		if acf[lag] <= bestVal {
			continue
		}
		// Local peak only: strictly above both neighbors.
		if acf[lag] >= acf[lag-1] && (lag+1 >= len(acf) || acf[lag] >= acf[lag+1]) {
			bestLag, bestVal = lag, acf[lag]
		}
	}
	return bestLag
}

// fftCandidate returns the period of the dominant non-DC frequency.
func fftCandidate(values []float64) int {
	n := len(values)
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	centered := make([]float64, n)
	for i, v := range values {
		centered[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, centered)

	bestBin, bestPower := 0, 0.0
	for k := 1; k < len(coeffs); k++ {
		power := real(coeffs[k])*real(coeffs[k]) + imag(coeffs[k])*imag(coeffs[k])
		if power > bestPower {
			bestBin, bestPower = k, power
		}
	}
	if bestBin == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(bestBin)))
}

// centeredMovingAverage computes the period-window trend, using the
// half-weighted 2xMA for even periods. Edge positions where the window
// does not fit carry the nearest interior estimate so downstream arrays
// stay NaN-free.
func centeredMovingAverage(values []float64, period int) []float64 {
	n := len(values)
	trend := make([]float64, n)
	half := period / 2

	first, last := -1, -1
	if period%2 == 0 {
		for i := half; i < n-half; i++ {
			sum := values[i-half]*0.5 + values[i+half]*0.5
			for j := i - half + 1; j < i+half; j++ {
				sum += values[j]
			}
			trend[i] = sum / float64(period)
			if first == -1 {
				first = i
			}
			last = i
		}
	} else {
		for i := half; i < n-half; i++ {
			sum := 0.0
			for j := i - half; j <= i+half; j++ {
				sum += values[j]
			}
			trend[i] = sum / float64(period)
			if first == -1 {
				first = i
			}
			last = i
		}
	}

	if first == -1 {
		mean := 0.0
		for _, v := range values {
			mean += v
		}
		mean /= float64(n)
		for i := range trend {
			trend[i] = mean
		}
		return trend
	}
	for i := 0; i < first; i++ {
		trend[i] = trend[first]
	}
	for i := last + 1; i < n; i++ {
		trend[i] = trend[last]
	}
	return trend
}

func varOf(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(n-1)
}
