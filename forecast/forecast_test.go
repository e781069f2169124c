package forecast

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendengine/timeseries"
)

func noisyLine(n int, intercept, slope, noise float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		jitter := math.Sin(float64(i)*12.9898) * 43758.5453
		jitter -= math.Floor(jitter)
		values[i] = intercept + slope*float64(i) + noise*(jitter-0.5)
	}
	return values
}

func TestPredictTooShort(t *testing.T) {
	engine := NewEngine()
	_, err := engine.Predict(context.Background(), timeseries.FromValues([]float64{1, 2, 3}), Options{})
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestPredictUnknownMethod(t *testing.T) {
	engine := NewEngine()
	s := timeseries.FromValues(noisyLine(60, 10, 0.5, 1))
	_, err := engine.Predict(context.Background(), s, Options{Method: "oracle"})
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestPredictHonorsCancellation(t *testing.T) {
	engine := NewEngine()
	s := timeseries.FromValues(noisyLine(200, 10, 0.5, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Predict(ctx, s, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLinearForecastTracksTrend(t *testing.T) {
	engine := NewEngine()
	s := timeseries.FromValues(noisyLine(100, 5, 2, 0.5))

	p, err := engine.Predict(context.Background(), s, Options{Horizon: 5, Method: MethodLinear})
	require.NoError(t, err)
	assert.Equal(t, MethodLinear, p.Method)
	assert.Empty(t, p.Fallback)
	require.Len(t, p.Predictions, 5)

	// True process at step h is 5 + 2*(100+h-1).
	for h, v := range p.Predictions {
		want := 5 + 2*float64(100+h)
		assert.InDelta(t, want, v, 2, "step %d", h+1)
	}
}

func TestIntervalsWidenWithHorizon(t *testing.T) {
	engine := NewEngine()
	s := timeseries.FromValues(noisyLine(100, 5, 2, 1))

	p, err := engine.Predict(context.Background(), s, Options{Horizon: 10, Method: MethodLinear})
	require.NoError(t, err)

	firstCI := p.ConfidenceIntervals.Upper[0] - p.ConfidenceIntervals.Lower[0]
	lastCI := p.ConfidenceIntervals.Upper[9] - p.ConfidenceIntervals.Lower[9]
	assert.Greater(t, lastCI, firstCI, "confidence bands should widen with horizon")

	for h := 0; h < 10; h++ {
		ciWidth := p.ConfidenceIntervals.Upper[h] - p.ConfidenceIntervals.Lower[h]
		piWidth := p.PredictionIntervals.Upper[h] - p.PredictionIntervals.Lower[h]
		assert.Greater(t, piWidth, ciWidth, "prediction interval must be wider at step %d", h+1)
		assert.GreaterOrEqual(t, p.ConfidenceIntervals.Upper[h], p.Predictions[h])
		assert.LessOrEqual(t, p.ConfidenceIntervals.Lower[h], p.Predictions[h])
	}
	assert.Equal(t, 0.95, p.ConfidenceIntervals.Level)
}

func TestEnsembleWeightsSumToOne(t *testing.T) {
	engine := NewEngine()
	s := timeseries.FromValues(noisyLine(120, 20, 1, 2))

	p, err := engine.Predict(context.Background(), s, Options{Horizon: 8})
	require.NoError(t, err)
	assert.Equal(t, MethodEnsemble, p.Method)
	assert.Equal(t, "performance-weighted-average", p.AggregationMethod)
	require.NotEmpty(t, p.Models)

	total := 0.0
	for _, member := range p.Models {
		assert.GreaterOrEqual(t, member.Weight, 0.0)
		assert.LessOrEqual(t, member.Weight, 1.0)
		assert.GreaterOrEqual(t, member.Performance, 0.0)
		assert.LessOrEqual(t, member.Performance, 1.0)
		assert.Len(t, member.Predictions, 8)
		total += member.Weight
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestEnsembleStaysInsideMemberEnvelope(t *testing.T) {
	engine := NewEngine()
	s := timeseries.FromValues(noisyLine(120, 20, 1, 2))

	p, err := engine.Predict(context.Background(), s, Options{Horizon: 6})
	require.NoError(t, err)

	// A convex combination can never leave the member min/max envelope.
	for h := 0; h < 6; h++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, member := range p.Models {
			lo = math.Min(lo, member.Predictions[h])
			hi = math.Max(hi, member.Predictions[h])
		}
		assert.GreaterOrEqual(t, p.Predictions[h], lo-1e-9, "step %d", h+1)
		assert.LessOrEqual(t, p.Predictions[h], hi+1e-9, "step %d", h+1)
	}
}

func TestBetterMembersGetMoreWeight(t *testing.T) {
	engine := NewEngine()
	// A strong trend makes persistence and flat smoothing poor members.
	s := timeseries.FromValues(noisyLine(120, 0, 5, 0.5))

	p, err := engine.Predict(context.Background(), s, Options{Horizon: 5})
	require.NoError(t, err)

	weights := make(map[string]float64)
	for _, member := range p.Models {
		weights[member.Name] = member.Weight
	}
	assert.Greater(t, weights[MethodLinear], weights[MethodNaive],
		"linear member should outweigh persistence on a trending series")
}

func TestMetricsFromHoldout(t *testing.T) {
	engine := NewEngine()
	s := timeseries.FromValues(noisyLine(100, 50, 1, 1))

	p, err := engine.Predict(context.Background(), s, Options{Horizon: 5, Method: MethodLinear})
	require.NoError(t, err)

	assert.False(t, math.IsNaN(p.Metrics.MAPE))
	assert.Greater(t, p.Metrics.MAPE, 0.0)
	assert.Less(t, p.Metrics.MAPE, 20.0, "linear fit on a near-line should backtest tightly")
	assert.False(t, math.IsNaN(p.Metrics.SMAPE))
	assert.False(t, math.IsNaN(p.Metrics.MASE))
	assert.Less(t, p.Metrics.MASE, 5.0)
}

func TestFutureTimestampsFollowInterval(t *testing.T) {
	engine := NewEngine()
	values := noisyLine(50, 10, 1, 0.5)
	timestamps := make([]int64, len(values))
	for i := range timestamps {
		timestamps[i] = 1_700_000_000_000 + int64(i)*5000
	}
	s := timeseries.New(1, "battery_voltage", values, timestamps)

	p, err := engine.Predict(context.Background(), s, Options{Horizon: 3, Method: MethodNaive})
	require.NoError(t, err)
	require.Len(t, p.Timestamps, 3)
	last := timestamps[len(timestamps)-1]
	assert.Equal(t, last+5000, p.Timestamps[0])
	assert.Equal(t, last+15000, p.Timestamps[2])
}

func TestBacktestMetricsEdgeCases(t *testing.T) {
	m := backtestMetrics(nil, nil, nil)
	assert.True(t, math.IsNaN(m.MAPE))

	// Zero actuals are skipped by MAPE but still counted by sMAPE.
	m = backtestMetrics([]float64{1, 2, 3, 4}, []float64{0, 2}, []float64{1, 2})
	assert.False(t, math.IsNaN(m.SMAPE))
	assert.Equal(t, 0.0, m.MAPE)
}

func TestEnsembleBacktestNoWorseThanWorstMember(t *testing.T) {
	s := timeseries.FromValues(noisyLine(100, 30, 2, 3))
	n := s.Len()
	holdoutLen := n / 5
	train := s.Values[:n-holdoutLen]
	test := s.Values[n-holdoutLen:]

	worst := 0.0
	total := 0.0
	type fitResult struct {
		holdout []float64
		perf    float64
	}
	var fits []fitResult
	for _, member := range newMembers() {
		if err := member.fit(train); err != nil {
			continue
		}
		holdout := member.forecast(holdoutLen)
		rmse := rootMeanSquaredError(test, holdout)
		worst = math.Max(worst, rmse)
		perf := 1 / (1 + rmse)
		total += perf
		fits = append(fits, fitResult{holdout: holdout, perf: perf})
	}
	require.NotEmpty(t, fits)

	combined := make([]float64, holdoutLen)
	for _, fit := range fits {
		for h := range combined {
			combined[h] += fit.perf / total * fit.holdout[h]
		}
	}
	ensembleRMSE := rootMeanSquaredError(test, combined)
	assert.LessOrEqual(t, ensembleRMSE, worst*1.05,
		"weighted average should not trail the worst member")
}
