package drift

import "math"

// eddmStrategy watches the distance (in samples) between consecutive
// "errors" instead of the raw error rate, which makes it more responsive
// to gradual drift. The decision compares mean+2*sd of the distances
// against its historical maximum; drift fires when the ratio decays
// below alpha. Sensitivity shifts alpha around the classic 0.90.
type eddmStrategy struct {
	alphaWarn  float64
	alphaDrift float64
	minErrors  float64

	n        float64
	lastErr  float64
	seenErr  bool
	numErr   float64
	distMean float64
	distM2   float64
	p2Max    float64
}

func newEDDM(config Config) *eddmStrategy {
	alphaDrift := 0.90 + 0.08*(config.Sensitivity-0.5)
	return &eddmStrategy{
		alphaWarn:  math.Min(alphaDrift+0.03, 0.999),
		alphaDrift: alphaDrift,
		minErrors:  30,
	}
}

func (e *eddmStrategy) step(value, refMean, refSD float64) outcome {
	e.n++
	if math.Abs(value-refMean) <= 2*refSD {
		return e.quiet()
	}

	if !e.seenErr {
		e.seenErr = true
		e.lastErr = e.n
		return e.quiet()
	}

	dist := e.n - e.lastErr
	e.lastErr = e.n
	e.numErr++

	delta := dist - e.distMean
	e.distMean += delta / e.numErr
	e.distM2 += delta * (dist - e.distMean)

	sd := 0.0
	if e.numErr > 1 {
		sd = math.Sqrt(e.distM2 / (e.numErr - 1))
	}
	p2 := e.distMean + 2*sd

	if e.numErr < e.minErrors {
		if p2 > e.p2Max {
			e.p2Max = p2
		}
		return e.quiet()
	}

	if p2 > e.p2Max {
		e.p2Max = p2
	}
	ratio := p2 / e.p2Max

	// Report on the same "exceeds threshold" axis as the other
	// methods: statistic is the decay below the historic maximum.
	statistic := 1 - ratio
	threshold := 1 - e.alphaDrift

	return outcome{
		statistic: statistic,
		threshold: threshold,
		warning:   ratio < e.alphaWarn,
		drift:     ratio < e.alphaDrift,
		pValue:    math.NaN(),
	}
}

func (e *eddmStrategy) quiet() outcome {
	return outcome{threshold: 1 - e.alphaDrift, pValue: math.NaN()}
}

func (e *eddmStrategy) reset() {
	e.n = 0
	e.lastErr = 0
	e.seenErr = false
	e.numErr = 0
	e.distMean = 0
	e.distM2 = 0
	e.p2Max = 0
}

func (e *eddmStrategy) state() map[string]float64 {
	seen := 0.0
	if e.seenErr {
		seen = 1
	}
	return map[string]float64{
		"n": e.n, "lastErr": e.lastErr, "seen": seen, "numErr": e.numErr,
		"distMean": e.distMean, "distM2": e.distM2, "p2Max": e.p2Max,
	}
}

func (e *eddmStrategy) restore(s map[string]float64) {
	e.n = s["n"]
	e.lastErr = s["lastErr"]
	e.seenErr = s["seen"] == 1
	e.numErr = s["numErr"]
	e.distMean = s["distMean"]
	e.distM2 = s["distM2"]
	e.p2Max = s["p2Max"]
}

func (e *eddmStrategy) window() []float64 { return nil }
func (e *eddmStrategy) setWindow([]float64) {}
