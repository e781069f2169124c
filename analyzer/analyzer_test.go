package analyzer

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendengine/drift"
	"trendengine/timeseries"
	"trendengine/trend"
)

func telemetry(n int, f func(i int) float64) *timeseries.Stream {
	values := make([]float64, n)
	for i := range values {
		values[i] = f(i)
	}
	s := timeseries.FromValues(values)
	s.ID = 1
	s.Name = "motor_temp"
	return s
}

func noise(i int) float64 {
	v := math.Sin(float64(i)*12.9898) * 43758.5453
	return v - math.Floor(v) - 0.5
}

func TestAnalyzeStreamFullReport(t *testing.T) {
	a := New()
	defer a.Close()

	s := telemetry(120, func(i int) float64 {
		return 40 + 0.5*float64(i) + 3*math.Sin(2*math.Pi*float64(i)/12) + noise(i)
	})

	analysis, err := a.AnalyzeStream(context.Background(), s, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, int64(1), analysis.StreamID)
	require.NotNil(t, analysis.Stationarity)
	require.NotNil(t, analysis.Trends.Linear)
	require.NotNil(t, analysis.Trends.Best)
	assert.NotNil(t, analysis.Seasonality)
	require.NotNil(t, analysis.Prediction)
	assert.NotEmpty(t, analysis.Prediction.Predictions)

	// A rising ramp with mild seasonality fits the line well.
	assert.Greater(t, analysis.Trends.Linear.R2, 0.9)
	assert.InDelta(t, 0.5, analysis.Trends.Linear.Coefficients[1], 0.1)
}

func TestAnalyzeStreamDisabledStages(t *testing.T) {
	a := New()
	defer a.Close()

	s := telemetry(100, func(i int) float64 { return 10 + float64(i) + noise(i) })
	cfg := Config{
		MaxPolynomialDegree:    trend.DefaultMaxDegree,
		ChangePointSensitivity: 0.5,
	}

	analysis, err := a.AnalyzeStream(context.Background(), s, cfg)
	require.NoError(t, err)

	assert.NotNil(t, analysis.Trends.Linear)
	assert.Nil(t, analysis.Trends.NonLinear)
	assert.Nil(t, analysis.ARIMA)
	assert.Nil(t, analysis.ChangePoints)
	assert.Nil(t, analysis.Seasonality)
	assert.Nil(t, analysis.Prediction)
}

func TestAnalyzeStreamShortSeriesDegrades(t *testing.T) {
	a := New()
	defer a.Close()

	s := telemetry(5, func(i int) float64 { return float64(i) })
	analysis, err := a.AnalyzeStream(context.Background(), s, DefaultConfig())
	require.NoError(t, err, "short series must degrade, not fail")

	assert.NotNil(t, analysis.Trends.Linear, "5 points are enough for a line")
	assert.Nil(t, analysis.ARIMA)
	assert.Nil(t, analysis.Prediction)
	require.NotNil(t, analysis.Stationarity)
	assert.False(t, analysis.Stationarity.IsStationary)
	assert.Equal(t, 1.0, analysis.Stationarity.PValue)
}

func TestAnalyzeStreamInvalidStream(t *testing.T) {
	a := New()
	defer a.Close()

	s := timeseries.New(2, "bad", []float64{1, 2, 3}, []int64{0, 1000})
	_, err := a.AnalyzeStream(context.Background(), s, DefaultConfig())
	assert.ErrorIs(t, err, timeseries.ErrLengthMismatch)
}

func TestAnalyzeStreamCancellation(t *testing.T) {
	a := New()
	defer a.Close()

	s := telemetry(200, func(i int) float64 { return float64(i) + noise(i) })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.AnalyzeStream(ctx, s, DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeStreamDetectsChangePoint(t *testing.T) {
	a := New()
	defer a.Close()

	s := telemetry(200, func(i int) float64 {
		base := 20.0
		if i >= 100 {
			base = 28
		}
		return base + noise(i)
	})
	cfg := DefaultConfig()
	cfg.EnablePrediction = false

	analysis, err := a.AnalyzeStream(context.Background(), s, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, analysis.ChangePoints)
	assert.InDelta(t, 100, analysis.ChangePoints[0].Index, 10)
}

func TestAnalyzeStreamResultIsCached(t *testing.T) {
	a := New()
	defer a.Close()

	s := telemetry(80, func(i int) float64 { return 10 + 0.2*float64(i) + noise(i) })
	cfg := DefaultConfig()
	cfg.EnablePrediction = false

	first, err := a.AnalyzeStream(context.Background(), s, cfg)
	require.NoError(t, err)
	a.cache.Wait()

	second, err := a.AnalyzeStream(context.Background(), s, cfg)
	require.NoError(t, err)
	assert.Same(t, first, second, "identical input and config should hit the cache")

	// Growing the stream changes the key.
	s.Values = append(s.Values, 30)
	s.Timestamps = append(s.Timestamps, s.Timestamps[len(s.Timestamps)-1]+1000)
	third, err := a.AnalyzeStream(context.Background(), s, cfg)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestAnalyzeStreamDistinguishesSameShapeStreams(t *testing.T) {
	a := New()
	defer a.Close()

	cfg := DefaultConfig()
	cfg.EnablePrediction = false

	rising := telemetry(80, func(i int) float64 { return float64(i) })
	first, err := a.AnalyzeStream(context.Background(), rising, cfg)
	require.NoError(t, err)
	a.cache.Wait()

	// Same id and length, different samples: the falling ramp must get
	// its own analysis, not the rising ramp's cached one.
	falling := telemetry(80, func(i int) float64 { return 80 - float64(i) })
	second, err := a.AnalyzeStream(context.Background(), falling, cfg)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.InDelta(t, 1, first.Trends.Linear.Coefficients[1], 1e-9)
	assert.InDelta(t, -1, second.Trends.Linear.Coefficients[1], 1e-9)
}

func TestAnalyzeStreamIncludesDriftStatus(t *testing.T) {
	registry := drift.NewRegistry()
	_, err := registry.Monitor(1, drift.DefaultConfig(drift.CUSUM))
	require.NoError(t, err)
	for i := 0; i < 60; i++ {
		_, err := registry.Process(1, 10+noise(i), int64(i)*1000)
		require.NoError(t, err)
	}

	a := New(WithDriftRegistry(registry))
	defer a.Close()

	s := telemetry(80, func(i int) float64 { return 10 + noise(i) })
	cfg := DefaultConfig()
	cfg.EnablePrediction = false

	analysis, err := a.AnalyzeStream(context.Background(), s, cfg)
	require.NoError(t, err)
	require.NotNil(t, analysis.Drift)
	assert.Equal(t, drift.CUSUM, analysis.Drift.Method)
	assert.Equal(t, uint64(60), analysis.Drift.Stats.SamplesProcessed)

	// Unmonitored streams and disabled drift both omit the section.
	other := telemetry(80, func(i int) float64 { return 5 + noise(i) })
	other.ID = 99
	analysis, err = a.AnalyzeStream(context.Background(), other, cfg)
	require.NoError(t, err)
	assert.Nil(t, analysis.Drift)

	cfg.EnableDrift = false
	analysis, err = a.AnalyzeStream(context.Background(), s, cfg)
	require.NoError(t, err)
	assert.Nil(t, analysis.Drift)
}
