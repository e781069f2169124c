package stats

import "math"

// Welford accumulates running mean and variance in one pass. Drift
// detectors keep one accumulator per window, so Reset must be cheap.
type Welford struct {
	count uint64
	mean  float64
	m2    float64
}

func NewWelford() *Welford {
	return &Welford{}
}

func (welford *Welford) Update(value float64) {
	welford.count++
	delta := value - welford.mean
	welford.mean += delta / float64(welford.count)
	delta2 := value - welford.mean
	welford.m2 += delta * delta2
}

func (welford *Welford) Count() uint64 {
	return welford.count
}

func (welford *Welford) Mean() float64 {
	return welford.mean
}

func (welford *Welford) Variance() float64 {
	if welford.count < 2 {
		return 0
	}
	return welford.m2 / float64(welford.count)
}

func (welford *Welford) SampleVariance() float64 {
	if welford.count < 2 {
		return 0
	}
	return welford.m2 / float64(welford.count-1)
}

func (welford *Welford) SD() float64 {
	return math.Sqrt(welford.SampleVariance())
}

func (welford *Welford) Reset() {
	welford.count = 0
	welford.mean = 0
	welford.m2 = 0
}

// State exposes the raw accumulator for snapshotting.
func (welford *Welford) State() (count uint64, mean, m2 float64) {
	return welford.count, welford.mean, welford.m2
}

// Restore rebuilds the accumulator from a snapshot.
func (welford *Welford) Restore(count uint64, mean, m2 float64) {
	welford.count = count
	welford.mean = mean
	welford.m2 = m2
}
