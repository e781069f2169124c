// Package analyzer composes the per-stream analyses into one report.
// Each sub-analysis degrades independently: a series too short for
// ARIMA still gets its trend fit and change points.
package analyzer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"trendengine/changepoint"
	"trendengine/drift"
	"trendengine/forecast"
	"trendengine/seasonal"
	"trendengine/stats"
	"trendengine/timeseries"
	"trendengine/trend"
)

// Config toggles the sub-analyses independently.
type Config struct {
	EnableARIMA        bool
	EnableNonLinear    bool
	EnableChangePoints bool
	EnableSeasonality  bool
	EnablePrediction   bool
	EnableDrift        bool

	MaxPolynomialDegree    int
	ChangePointSensitivity float64
	Prediction             forecast.Options
}

func DefaultConfig() Config {
	return Config{
		EnableARIMA:            true,
		EnableNonLinear:        true,
		EnableChangePoints:     true,
		EnableSeasonality:      true,
		EnablePrediction:       true,
		EnableDrift:            true,
		MaxPolynomialDegree:    trend.DefaultMaxDegree,
		ChangePointSensitivity: 0.5,
	}
}

// Trends groups the fitted trend models. Best is selected across every
// fitted candidate by fit quality with a parsimony tie-break.
type Trends struct {
	Best      *trend.Model
	Linear    *trend.Model
	NonLinear *trend.Model
}

// ARIMASummary is the display view of a fitted ARIMA model.
type ARIMASummary struct {
	Order trend.ARIMAOrder
	AIC   float64
	BIC   float64
}

// DriftStatus is the monitored stream's detector state at report time.
type DriftStatus struct {
	Method drift.Method
	Phase  drift.Phase
	Stats  drift.Statistics
}

// Analysis is one complete report. Every field except Trends.Linear and
// Stationarity may be nil when its sub-analysis was disabled or had too
// little data. Never mutated after return.
type Analysis struct {
	StreamID     int64
	Trends       Trends
	ARIMA        *ARIMASummary
	Stationarity *stats.ADFResult
	ChangePoints []changepoint.ChangePoint
	Seasonality  *seasonal.Decomposition
	Prediction   *forecast.Prediction
	Drift        *DriftStatus
}

// Analyzer runs analyses. Analyses are pure, so completed reports are
// cached and shared; concurrent calls across streams need no
// coordination.
type Analyzer struct {
	logger   *zap.Logger
	cache    *ristretto.Cache
	engine   *forecast.Engine
	registry *drift.Registry
}

type Option func(*Analyzer)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithDriftRegistry lets reports include the live drift state of
// monitored streams.
func WithDriftRegistry(registry *drift.Registry) Option {
	return func(a *Analyzer) { a.registry = registry }
}

func New(opts ...Option) *Analyzer {
	cache, _ := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	a := &Analyzer{
		logger: zap.NewNop(),
		cache:  cache,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.engine = forecast.NewEngine(forecast.WithLogger(a.logger))
	return a
}

// cacheKey identifies an analysis by the exact input: stream id, a
// fingerprint of the samples, and the config, which all change the
// output. Two streams sharing an id never share a cached report unless
// their samples match.
func cacheKey(s *timeseries.Stream, cfg Config) string {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range s.Values {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	for _, ts := range s.Timestamps {
		binary.LittleEndian.PutUint64(buf[:], uint64(ts))
		h.Write(buf[:])
	}
	return fmt.Sprintf("%d|%d|%x|%+v", s.ID, s.Len(), h.Sum64(), cfg)
}

// AnalyzeStream runs every enabled sub-analysis over the stream. Only
// an invalid stream or context cancellation returns an error; a
// sub-analysis with too little data is omitted from the report instead.
func (a *Analyzer) AnalyzeStream(ctx context.Context, s *timeseries.Stream, cfg Config) (*Analysis, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("analyze stream %d: %w", s.ID, err)
	}

	key := cacheKey(s, cfg)
	if cached, found := a.cache.Get(key); found {
		if analysis, ok := cached.(*Analysis); ok {
			return a.withDrift(analysis, s, cfg), nil
		}
	}

	a.logger.Debug("analyzing stream",
		zap.Int64("stream", s.ID),
		zap.Int("samples", s.Len()),
		zap.Float64("mean", s.Mean()),
		zap.Float64("std", s.Std()))

	analysis := &Analysis{
		StreamID:     s.ID,
		Stationarity: stats.ADF(s.Values),
	}

	analysis.Trends.Linear = trend.FitLinear(s)
	candidates := []*trend.Model{analysis.Trends.Linear}

	if cfg.EnableNonLinear {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		degree := cfg.MaxPolynomialDegree
		if degree < 2 {
			degree = trend.DefaultMaxDegree
		}
		analysis.Trends.NonLinear = trend.FitNonLinear(s, degree)
		candidates = append(candidates, analysis.Trends.NonLinear)
	}

	if cfg.EnableARIMA {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if arima := trend.FitARIMA(s, analysis.Stationarity); arima != nil {
			analysis.ARIMA = &ARIMASummary{Order: arima.Order, AIC: arima.AIC, BIC: arima.BIC}
			candidates = append(candidates, arima.Model())
		} else {
			a.logger.Debug("arima omitted", zap.Int64("stream", s.ID), zap.Int("samples", s.Len()))
		}
	}
	analysis.Trends.Best = trend.SelectBest(candidates...)

	if cfg.EnableChangePoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		analysis.ChangePoints = changepoint.Detect(s.Values, cfg.ChangePointSensitivity)
	}

	if cfg.EnableSeasonality {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		analysis.Seasonality = seasonal.Decompose(s.Values)
	}

	if cfg.EnablePrediction {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prediction, err := a.engine.Predict(ctx, s, cfg.Prediction)
		switch {
		case errors.Is(err, forecast.ErrTooShort):
			a.logger.Debug("prediction omitted", zap.Int64("stream", s.ID), zap.Error(err))
		case err != nil:
			return nil, err
		default:
			analysis.Prediction = prediction
		}
	}

	a.cache.Set(key, analysis, 1)
	return a.withDrift(analysis, s, cfg), nil
}

// withDrift attaches the live detector state. Drift state moves between
// calls, so it rides outside the cached report: the cached value never
// carries it, and a hit gets a fresh shallow copy instead.
func (a *Analyzer) withDrift(analysis *Analysis, s *timeseries.Stream, cfg Config) *Analysis {
	if !cfg.EnableDrift || a.registry == nil {
		return analysis
	}
	detector, ok := a.registry.Detector(s.ID)
	if !ok {
		return analysis
	}
	clone := *analysis
	clone.Drift = &DriftStatus{
		Method: detector.Config().Method,
		Phase:  detector.Phase(),
		Stats:  detector.Stats(),
	}
	return &clone
}

// Close releases the analysis cache.
func (a *Analyzer) Close() {
	a.cache.Close()
}
