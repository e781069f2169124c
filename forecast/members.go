package forecast

import (
	"errors"
	"math"

	"trendengine/stats"
	"trendengine/timeseries"
	"trendengine/trend"
)

var errUnavailable = errors.New("model unavailable for this series")

// forecaster is one ensemble member. fit replaces any prior state, so a
// member is fit once on the training slice for backtesting and refit on
// the full series for the final forecast.
type forecaster interface {
	name() string
	fit(values []float64) error
	forecast(steps int) []float64
	// residualSD is the in-sample one-step error standard deviation,
	// the basis of the analytic confidence intervals.
	residualSD() float64
}

// naiveForecaster repeats the last observation. It is the floor every
// other member has to beat and the fallback when a requested model
// cannot be fit.
type naiveForecaster struct {
	last float64
	sd   float64
}

func (f *naiveForecaster) name() string { return MethodNaive }

func (f *naiveForecaster) fit(values []float64) error {
	if len(values) < 2 {
		return errUnavailable
	}
	f.last = values[len(values)-1]

	welford := stats.NewWelford()
	for i := 1; i < len(values); i++ {
		welford.Update(values[i] - values[i-1])
	}
	f.sd = welford.SD()
	return nil
}

func (f *naiveForecaster) forecast(steps int) []float64 {
	out := make([]float64, steps)
	for i := range out {
		out[i] = f.last
	}
	return out
}

func (f *naiveForecaster) residualSD() float64 { return f.sd }

// linearForecaster extrapolates the least-squares line.
type linearForecaster struct {
	n         int
	intercept float64
	slope     float64
	sd        float64
}

func (f *linearForecaster) name() string { return MethodLinear }

func (f *linearForecaster) fit(values []float64) error {
	model := trend.FitLinear(timeseries.FromValues(values))
	if model == nil {
		return errUnavailable
	}
	f.n = len(values)
	f.intercept = model.Coefficients[0]
	f.slope = model.Coefficients[1]
	f.sd = model.RMSE
	return nil
}

func (f *linearForecaster) forecast(steps int) []float64 {
	out := make([]float64, steps)
	for i := range out {
		out[i] = f.intercept + f.slope*float64(f.n+i)
	}
	return out
}

func (f *linearForecaster) residualSD() float64 { return f.sd }

// arimaForecaster wraps the full ARIMA order search. It is the only
// member that can be unavailable on series long enough for the others.
type arimaForecaster struct {
	model *trend.ARIMAModel
}

func (f *arimaForecaster) name() string { return MethodARIMA }

func (f *arimaForecaster) fit(values []float64) error {
	f.model = trend.FitARIMA(timeseries.FromValues(values), nil)
	if f.model == nil {
		return errUnavailable
	}
	return nil
}

func (f *arimaForecaster) forecast(steps int) []float64 {
	return f.model.Forecast(steps)
}

func (f *arimaForecaster) residualSD() float64 {
	return f.model.ResidualSD()
}

// sesForecaster is simple exponential smoothing with the smoothing
// constant picked by one-step error over a coarse grid. The forecast is
// flat at the final level.
type sesForecaster struct {
	level float64
	alpha float64
	sd    float64
}

func (f *sesForecaster) name() string { return MethodSmoothing }

func (f *sesForecaster) fit(values []float64) error {
	if len(values) < 3 {
		return errUnavailable
	}

	bestSSE := math.Inf(1)
	for alpha := 0.1; alpha <= 0.91; alpha += 0.1 {
		level := values[0]
		sse := 0.0
		for _, v := range values[1:] {
			err := v - level
			sse += err * err
			level += alpha * err
		}
		if sse < bestSSE {
			bestSSE = sse
			f.alpha = alpha
			f.level = level
		}
	}
	f.sd = math.Sqrt(bestSSE / float64(len(values)-1))
	return nil
}

func (f *sesForecaster) forecast(steps int) []float64 {
	out := make([]float64, steps)
	for i := range out {
		out[i] = f.level
	}
	return out
}

func (f *sesForecaster) residualSD() float64 { return f.sd }

// newMembers returns the candidate set in a fixed order so ensemble
// output is deterministic.
func newMembers() []forecaster {
	return []forecaster{
		&naiveForecaster{},
		&linearForecaster{},
		&arimaForecaster{},
		&sesForecaster{},
	}
}
