package stats

import (
	"math"
	"testing"

	"trendengine/utils"
)

func TestACFLagZeroIsOne(t *testing.T) {
	values := []float64{1, 4, 2, 8, 5, 7, 3, 6}
	acf := ACF(values, 4)
	utils.AssertEqual(t, len(acf), 5)
	utils.AssertClose(t, acf[0], 1.0, 1e-12)
}

func TestACFPeriodicSeriesPeaksAtPeriod(t *testing.T) {
	n := 120
	period := 12
	values := make([]float64, n)
	for i := range values {
		values[i] = math.Sin(2 * math.Pi * float64(i) / float64(period))
	}
	acf := ACF(values, 30)
	utils.AssertTrue(t, acf[period] > 0.8)
	utils.AssertTrue(t, acf[period] > acf[period/2])
}

func TestACFConstantSeries(t *testing.T) {
	utils.AssertTrue(t, ACF([]float64{3, 3, 3, 3}, 2) == nil)
}

func TestPACFAR1(t *testing.T) {
	// AR(1) with phi=0.7: PACF cuts off after lag 1.
	n := 300
	phi := 0.7
	values := make([]float64, n)
	for i := 1; i < n; i++ {
		shock := math.Sin(float64(i) * 12.9898)
		values[i] = phi*values[i-1] + shock
	}
	pacf := PACF(values, 6)
	utils.AssertTrue(t, pacf[1] > 0.4)
	for k := 3; k <= 6; k++ {
		utils.AssertTrue(t, math.Abs(pacf[k]) < 0.3)
	}
}

func TestOLSExactLine(t *testing.T) {
	x := make([][]float64, 10)
	y := make([]float64, 10)
	for i := range x {
		x[i] = []float64{1, float64(i)}
		y[i] = 2 + 3*float64(i)
	}
	fit, err := OLS(x, y)
	utils.AssertNoError(t, err)
	utils.AssertClose(t, fit.Coeffs[0], 2, 1e-9)
	utils.AssertClose(t, fit.Coeffs[1], 3, 1e-9)
	utils.AssertClose(t, fit.RSS, 0, 1e-9)
}
