package drift

import "math"

// pageHinkleyStrategy accumulates deviations of the standardized sample
// from its running mean minus a small tolerance, and compares the gap to
// the historical extremum against lambda. Two-sided: rising and falling
// shifts are both tracked. Sensitivity maps onto lambda = 5 + 50*(1-s).
type pageHinkleyStrategy struct {
	tolerance float64
	lambda    float64

	n    float64
	mean float64
	cum  float64
	min  float64
	max  float64
}

func newPageHinkley(config Config) *pageHinkleyStrategy {
	return &pageHinkleyStrategy{
		tolerance: 0.05,
		lambda:    5 + 50*(1-config.Sensitivity),
	}
}

func (p *pageHinkleyStrategy) step(value, refMean, refSD float64) outcome {
	z := (value - refMean) / refSD

	p.n++
	p.mean += (z - p.mean) / p.n
	p.cum += z - p.mean - p.tolerance

	if p.cum < p.min {
		p.min = p.cum
	}
	if p.cum > p.max {
		p.max = p.cum
	}

	statistic := math.Max(p.cum-p.min, p.max-p.cum)

	return outcome{
		statistic: statistic,
		threshold: p.lambda,
		warning:   statistic > 0.7*p.lambda,
		drift:     statistic > p.lambda,
		pValue:    math.NaN(),
	}
}

func (p *pageHinkleyStrategy) reset() {
	p.n = 0
	p.mean = 0
	p.cum = 0
	p.min = 0
	p.max = 0
}

func (p *pageHinkleyStrategy) state() map[string]float64 {
	return map[string]float64{
		"n": p.n, "mean": p.mean, "cum": p.cum, "min": p.min, "max": p.max,
	}
}

func (p *pageHinkleyStrategy) restore(s map[string]float64) {
	p.n = s["n"]
	p.mean = s["mean"]
	p.cum = s["cum"]
	p.min = s["min"]
	p.max = s["max"]
}

func (p *pageHinkleyStrategy) window() []float64 { return nil }
func (p *pageHinkleyStrategy) setWindow([]float64) {}
