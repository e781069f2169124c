package drift

import "math"

// adwinStrategy keeps an adaptive window of recent values and tests
// every admissible split for a mean difference exceeding the Hoeffding
// bound. Sensitivity maps onto the bound's confidence parameter
// delta = 1 - s (clamped), and a detected change drops the stale
// sub-window. The window is bounded to keep each step cheap.
type adwinStrategy struct {
	delta     float64
	maxWindow int
	minSub    int

	values []float64
}

func newADWIN(config Config) *adwinStrategy {
	// delta = 10^(-4*(1-s)): s=0.5 gives the conventional 0.01,
	// rising sensitivity loosens the bound toward 0.5.
	delta := math.Pow(10, -4*(1-config.Sensitivity))
	if delta < 1e-4 {
		delta = 1e-4
	}
	if delta > 0.5 {
		delta = 0.5
	}
	maxWindow := config.WindowSize * 8
	if maxWindow < 64 {
		maxWindow = 64
	}
	return &adwinStrategy{
		delta:     delta,
		maxWindow: maxWindow,
		minSub:    5,
	}
}

func (a *adwinStrategy) step(value, refMean, refSD float64) outcome {
	a.values = append(a.values, value)
	if len(a.values) > a.maxWindow {
		a.values = a.values[1:]
	}

	n := len(a.values)
	if n < 2*a.minSub {
		return outcome{pValue: math.NaN()}
	}

	lo, hi := a.values[0], a.values[0]
	prefix := make([]float64, n+1)
	for i, v := range a.values {
		prefix[i+1] = prefix[i] + v
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	valueRange := hi - lo
	if valueRange == 0 {
		return outcome{pValue: math.NaN()}
	}

	total := prefix[n]
	bestScore, bestDiff, bestBound, bestCut := 0.0, 0.0, 0.0, 0

	for cut := a.minSub; cut <= n-a.minSub; cut++ {
		n0 := float64(cut)
		n1 := float64(n - cut)
		mean0 := prefix[cut] / n0
		mean1 := (total - prefix[cut]) / n1

		// Harmonic mean of the sub-window sizes drives the bound.
		m := 1 / (1/n0 + 1/n1)
		bound := valueRange * math.Sqrt(math.Log(4/a.delta)/(2*m))

		diff := math.Abs(mean0 - mean1)
		if bound > 0 && diff/bound > bestScore {
			bestScore = diff / bound
			bestDiff = diff
			bestBound = bound
			bestCut = cut
		}
	}

	drift := bestScore >= 1
	if drift {
		// Drop the stale prefix; the window restarts at the split.
		a.values = append([]float64(nil), a.values[bestCut:]...)
	}

	return outcome{
		statistic: bestDiff,
		threshold: bestBound,
		warning:   bestScore >= 0.8,
		drift:     drift,
		pValue:    math.NaN(),
	}
}

func (a *adwinStrategy) reset() {
	a.values = nil
}

func (a *adwinStrategy) state() map[string]float64 {
	return map[string]float64{}
}

func (a *adwinStrategy) restore(map[string]float64) {}

func (a *adwinStrategy) window() []float64 {
	return append([]float64(nil), a.values...)
}

func (a *adwinStrategy) setWindow(values []float64) {
	a.values = append([]float64(nil), values...)
}
