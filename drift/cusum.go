package drift

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// cusumStrategy is the classic two-sided cumulative sum on standardized
// deviations from the reference mean. Sensitivity maps onto the decision
// interval h: h = 4 + 8*(1-s) in sigma units, with the standard slack
// k = 0.5 tuned for one-sigma shifts.
type cusumStrategy struct {
	slack     float64
	threshold float64

	gPos float64
	gNeg float64
}

func newCUSUM(config Config) *cusumStrategy {
	return &cusumStrategy{
		slack:     0.5,
		threshold: 4 + 8*(1-config.Sensitivity),
	}
}

func (c *cusumStrategy) step(value, refMean, refSD float64) outcome {
	z := (value - refMean) / refSD

	c.gPos = math.Max(0, c.gPos+z-c.slack)
	c.gNeg = math.Max(0, c.gNeg-z-c.slack)
	statistic := math.Max(c.gPos, c.gNeg)

	return outcome{
		statistic: statistic,
		threshold: c.threshold,
		warning:   statistic > 0.8*c.threshold,
		drift:     statistic > c.threshold,
		pValue:    2 * distuv.UnitNormal.Survival(math.Abs(z)),
	}
}

func (c *cusumStrategy) reset() {
	c.gPos = 0
	c.gNeg = 0
}

func (c *cusumStrategy) state() map[string]float64 {
	return map[string]float64{"gPos": c.gPos, "gNeg": c.gNeg}
}

func (c *cusumStrategy) restore(s map[string]float64) {
	c.gPos = s["gPos"]
	c.gNeg = s["gNeg"]
}

func (c *cusumStrategy) window() []float64 { return nil }
func (c *cusumStrategy) setWindow([]float64) {}
