package drift

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ewmaStrategy is an EWMA control chart: drift fires when the smoothed
// value escapes the time-varying control limit around the reference
// mean. Sensitivity maps onto the limit width L = 2 + 2*(1-s).
type ewmaStrategy struct {
	lambda float64
	width  float64

	t    float64
	ewma float64
	seen bool
}

func newEWMAStrategy(config Config) *ewmaStrategy {
	return &ewmaStrategy{
		lambda: 0.2,
		width:  2 + 2*(1-config.Sensitivity),
	}
}

func (e *ewmaStrategy) step(value, refMean, refSD float64) outcome {
	if !e.seen {
		e.ewma = refMean
		e.seen = true
	}
	e.t++
	e.ewma = e.lambda*value + (1-e.lambda)*e.ewma

	// Exact EWMA variance factor; converges to lambda/(2-lambda).
	factor := e.lambda / (2 - e.lambda) * (1 - math.Pow(1-e.lambda, 2*e.t))
	sd := refSD * math.Sqrt(factor)
	limit := e.width * sd

	statistic := math.Abs(e.ewma - refMean)
	z := 0.0
	if sd > 0 {
		z = statistic / sd
	}

	return outcome{
		statistic: statistic,
		threshold: limit,
		warning:   statistic > 0.9*limit,
		drift:     statistic > limit,
		pValue:    2 * distuv.UnitNormal.Survival(z),
	}
}

func (e *ewmaStrategy) reset() {
	e.t = 0
	e.ewma = 0
	e.seen = false
}

func (e *ewmaStrategy) state() map[string]float64 {
	seen := 0.0
	if e.seen {
		seen = 1
	}
	return map[string]float64{"t": e.t, "ewma": e.ewma, "seen": seen}
}

func (e *ewmaStrategy) restore(s map[string]float64) {
	e.t = s["t"]
	e.ewma = s["ewma"]
	e.seen = s["seen"] == 1
}

func (e *ewmaStrategy) window() []float64 { return nil }
func (e *ewmaStrategy) setWindow([]float64) {}
