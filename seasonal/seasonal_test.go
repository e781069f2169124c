package seasonal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sineSeries(n, period int, amplitude float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = amplitude * math.Sin(2*math.Pi*float64(i)/float64(period))
	}
	return values
}

func TestDecomposeDetectsSine(t *testing.T) {
	d := Decompose(sineSeries(120, 12, 5))

	assert.True(t, d.Detected)
	assert.InDelta(t, 12, d.Period, 1)
	assert.Greater(t, d.Strength, 0.8, "a pure sine should be almost entirely seasonal")
	assert.Len(t, d.Seasonal, 120)
}

func TestDecomposeAdditiveIdentity(t *testing.T) {
	values := sineSeries(96, 8, 3)
	for i := range values {
		values[i] += 0.05 * float64(i) // gentle trend on top
	}
	d := Decompose(values)
	if !d.Detected {
		t.Fatal("expected seasonality to be detected")
	}

	for i := range values {
		reconstructed := d.Trend[i] + d.Seasonal[i] + d.Residual[i]
		assert.InDelta(t, values[i], reconstructed, 1e-9)
	}
}

func TestDecomposeDetectsPeriodAtHalfLength(t *testing.T) {
	// Two full cycles plus one sample: the only full-period lag is the
	// last lag the ACF covers, so the peak scan must reach it.
	d := Decompose(sineSeries(21, 10, 5))

	assert.True(t, d.Detected, "period at the ACF boundary was missed")
	assert.Equal(t, 10, d.Period)
}

func TestDecomposeTrendOnlyNotSeasonal(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i) * 0.5
	}
	d := Decompose(values)
	assert.False(t, d.Detected, "a pure trend has no significant period")
}

func TestDecomposeShortSeries(t *testing.T) {
	d := Decompose([]float64{1, 2, 1, 2})
	assert.False(t, d.Detected)
}

func TestDecomposeConstantSeries(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = 4.2
	}
	d := Decompose(values)
	assert.False(t, d.Detected)
}
