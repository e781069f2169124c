package drift

import "math"

// ddmStrategy tracks an online error-rate analogue: a sample counts as
// an "error" when it lands more than two reference deviations from the
// baseline. The classic DDM rule flags warning at p+s over the historic
// minimum plus 2*sMin and drift at 3*sMin; sensitivity tightens or
// relaxes both multipliers around those defaults.
type ddmStrategy struct {
	warnK  float64
	driftK float64
	minObs float64

	n    float64
	p    float64
	pMin float64
	sMin float64
}

func newDDM(config Config) *ddmStrategy {
	return &ddmStrategy{
		warnK:  2 + (0.5 - config.Sensitivity),
		driftK: 3 + 2*(0.5-config.Sensitivity),
		minObs: 30,
		pMin:   math.MaxFloat64,
		sMin:   math.MaxFloat64,
	}
}

func (d *ddmStrategy) step(value, refMean, refSD float64) outcome {
	errSignal := 0.0
	if math.Abs(value-refMean) > 2*refSD {
		errSignal = 1
	}

	d.n++
	d.p += (errSignal - d.p) / d.n
	s := math.Sqrt(d.p * (1 - d.p) / d.n)

	if d.n < d.minObs {
		return outcome{pValue: math.NaN()}
	}

	if d.p+s < d.pMin+d.sMin {
		d.pMin = d.p
		d.sMin = s
	}

	statistic := d.p + s
	warnAt := d.pMin + d.warnK*d.sMin
	driftAt := d.pMin + d.driftK*d.sMin

	return outcome{
		statistic: statistic,
		threshold: driftAt,
		warning:   statistic > warnAt,
		drift:     statistic > driftAt,
		pValue:    math.NaN(),
	}
}

func (d *ddmStrategy) reset() {
	d.n = 0
	d.p = 0
	d.pMin = math.MaxFloat64
	d.sMin = math.MaxFloat64
}

func (d *ddmStrategy) state() map[string]float64 {
	return map[string]float64{"n": d.n, "p": d.p, "pMin": d.pMin, "sMin": d.sMin}
}

func (d *ddmStrategy) restore(s map[string]float64) {
	d.n = s["n"]
	d.p = s["p"]
	d.pMin = s["pMin"]
	d.sMin = s["sMin"]
}

func (d *ddmStrategy) window() []float64 { return nil }
func (d *ddmStrategy) setWindow([]float64) {}
