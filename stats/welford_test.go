package stats

import (
	"testing"

	"trendengine/utils"
)

func TestWelford(t *testing.T) {
	welford := NewWelford()

	utils.AssertEqual(t, welford.Mean(), 0.0)
	utils.AssertEqual(t, welford.Variance(), 0.0)
	utils.AssertEqual(t, welford.SampleVariance(), 0.0)

	for i := 1; i < 100; i++ {
		welford.Update(float64(i))
	}

	utils.AssertEqual(t, welford.Count(), uint64(99))
	utils.AssertEqual(t, welford.Mean(), 50.0)
	utils.AssertClose(t, welford.Variance(), 816.666667, 1e-4)
	utils.AssertClose(t, welford.SampleVariance(), 825.0000, 1e-4)

	welford.Reset()
	utils.AssertEqual(t, welford.Count(), uint64(0))
	utils.AssertEqual(t, welford.Mean(), 0.0)
}
