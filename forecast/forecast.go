// Package forecast produces multi-step forecasts with calibrated
// uncertainty. Four candidate models are backtested on a trailing
// holdout; a single model can be requested by name, or the ensemble
// combines all available members by performance-weighted averaging.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"trendengine/timeseries"
)

const (
	MethodNaive     = "naive"
	MethodLinear    = "linear"
	MethodARIMA     = "arima"
	MethodSmoothing = "exponential-smoothing"
	MethodEnsemble  = "ensemble"

	// MinForecastSamples is the shortest series Predict accepts; the
	// holdout split needs at least this much history to be meaningful.
	MinForecastSamples = 8

	minHoldout = 3
)

var (
	ErrTooShort      = errors.New("series too short to forecast")
	ErrUnknownTarget = errors.New("unknown forecast method")
)

// Options tunes one Predict call. Zero values pick the defaults: a
// 10-step ensemble forecast at the 95% level.
type Options struct {
	Horizon         int
	ConfidenceLevel float64
	Method          string
}

func (o Options) withDefaults() Options {
	if o.Horizon <= 0 {
		o.Horizon = 10
	}
	if o.ConfidenceLevel <= 0 || o.ConfidenceLevel >= 1 {
		o.ConfidenceLevel = 0.95
	}
	if o.Method == "" {
		o.Method = MethodEnsemble
	}
	return o
}

// Band is a per-step interval at a fixed level.
type Band struct {
	Lower []float64
	Upper []float64
	Level float64
}

// Metrics are holdout-backtested accuracy numbers. MASE scales against
// the naive one-step forecast, so below 1 beats persistence.
type Metrics struct {
	MAPE  float64
	SMAPE float64
	MASE  float64
}

// Member records one ensemble participant.
type Member struct {
	Name        string
	Predictions []float64
	Weight      float64
	Performance float64
}

// Prediction is the forecast output. Models and AggregationMethod are
// populated only for the ensemble; Fallback names the originally
// requested method when it was unavailable.
type Prediction struct {
	Method              string
	Predictions         []float64
	Timestamps          []int64
	ConfidenceIntervals Band
	PredictionIntervals Band
	Metrics             Metrics
	Models              []Member
	AggregationMethod   string
	Fallback            string
}

// Engine runs forecasts. Stateless between calls; safe for concurrent
// use across streams.
type Engine struct {
	logger *zap.Logger
}

type EngineOption func(*Engine)

func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// candidate is a member that survived the training fit, with its
// holdout backtest attached.
type candidate struct {
	model       forecaster
	holdout     []float64
	rmse        float64
	performance float64
}

// Predict forecasts opts.Horizon steps ahead. The context is checked
// between member fits; ARIMA order search dominates the cost.
func (e *Engine) Predict(ctx context.Context, s *timeseries.Stream, opts Options) (*Prediction, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	n := s.Len()
	if n < MinForecastSamples {
		return nil, fmt.Errorf("%w: %d samples, need %d", ErrTooShort, n, MinForecastSamples)
	}
	opts = opts.withDefaults()

	holdoutLen := n / 5
	if holdoutLen < minHoldout {
		holdoutLen = minHoldout
	}
	train := s.Slice(0, n-holdoutLen).Values
	test := s.Slice(n-holdoutLen, n).Values

	candidates := make(map[string]*candidate)
	order := make([]string, 0, 4)
	for _, member := range newMembers() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := member.fit(train); err != nil {
			e.logger.Debug("forecast member unavailable",
				zap.String("member", member.name()), zap.Error(err))
			continue
		}
		holdout := member.forecast(holdoutLen)
		rmse := rootMeanSquaredError(test, holdout)
		candidates[member.name()] = &candidate{
			model:       member,
			holdout:     holdout,
			rmse:        rmse,
			performance: 1 / (1 + rmse),
		}
		order = append(order, member.name())
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no member could be fit", ErrTooShort)
	}

	// Refit the survivors on the full series for the final forecast.
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := candidates[name].model.fit(s.Values); err != nil {
			delete(candidates, name)
		}
	}
	order = retain(order, candidates)

	if opts.Method == MethodEnsemble {
		return e.ensemble(s, opts, order, candidates, train, test)
	}
	return e.single(s, opts, order, candidates, train, test)
}

func (e *Engine) single(s *timeseries.Stream, opts Options, order []string,
	candidates map[string]*candidate, train, test []float64) (*Prediction, error) {

	switch opts.Method {
	case MethodNaive, MethodLinear, MethodARIMA, MethodSmoothing:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, opts.Method)
	}

	method := opts.Method
	fallback := ""
	chosen, ok := candidates[method]
	if !ok {
		// The requested model was not fit; persistence stands in.
		fallback = method
		method = MethodNaive
		chosen, ok = candidates[MethodNaive]
		if !ok {
			return nil, fmt.Errorf("%w: naive fallback unavailable", ErrTooShort)
		}
		e.logger.Debug("forecast falling back to naive",
			zap.Int64("stream", s.ID), zap.String("requested", fallback))
	}

	predictions := chosen.model.forecast(opts.Horizon)
	z := zQuantile(opts.ConfidenceLevel)
	sd := chosen.model.residualSD()

	ci := Band{Level: opts.ConfidenceLevel}
	pi := Band{Level: opts.ConfidenceLevel}
	holdoutMSE := chosen.rmse * chosen.rmse
	for h := 1; h <= opts.Horizon; h++ {
		se := sd * math.Sqrt(float64(h))
		ciHalf := z * se
		piHalf := z * math.Sqrt(se*se+holdoutMSE)
		piHalf = widen(piHalf, ciHalf)
		v := predictions[h-1]
		ci.Lower = append(ci.Lower, v-ciHalf)
		ci.Upper = append(ci.Upper, v+ciHalf)
		pi.Lower = append(pi.Lower, v-piHalf)
		pi.Upper = append(pi.Upper, v+piHalf)
	}

	return &Prediction{
		Method:              method,
		Predictions:         predictions,
		Timestamps:          futureTimestamps(s, opts.Horizon),
		ConfidenceIntervals: ci,
		PredictionIntervals: pi,
		Metrics:             backtestMetrics(train, test, chosen.holdout),
		Fallback:            fallback,
	}, nil
}

func (e *Engine) ensemble(s *timeseries.Stream, opts Options, order []string,
	candidates map[string]*candidate, train, test []float64) (*Prediction, error) {

	totalPerformance := 0.0
	for _, name := range order {
		totalPerformance += candidates[name].performance
	}

	members := make([]Member, 0, len(order))
	forecasts := make([][]float64, 0, len(order))
	sds := make([]float64, 0, len(order))
	for _, name := range order {
		c := candidates[name]
		f := c.model.forecast(opts.Horizon)
		members = append(members, Member{
			Name:        name,
			Predictions: f,
			Weight:      c.performance / totalPerformance,
			Performance: c.performance,
		})
		forecasts = append(forecasts, f)
		sds = append(sds, c.model.residualSD())
	}

	predictions := make([]float64, opts.Horizon)
	for h := 0; h < opts.Horizon; h++ {
		for i, f := range forecasts {
			predictions[h] += members[i].Weight * f[h]
		}
	}

	// The ensemble's holdout track record, for metrics and interval
	// inflation, combines the member holdout forecasts with the same
	// weights.
	ensembleHoldout := make([]float64, len(test))
	for h := range ensembleHoldout {
		for i, name := range order {
			ensembleHoldout[h] += members[i].Weight * candidates[name].holdout[h]
		}
	}
	holdoutRMSE := rootMeanSquaredError(test, ensembleHoldout)

	z := zQuantile(opts.ConfidenceLevel)
	ci := Band{Level: opts.ConfidenceLevel}
	pi := Band{Level: opts.ConfidenceLevel}
	for h := 0; h < opts.Horizon; h++ {
		// Weighted spread of member forecasts plus each member's own
		// horizon-widened error variance.
		spreadVar := 0.0
		seVar := 0.0
		for i := range forecasts {
			dev := forecasts[i][h] - predictions[h]
			spreadVar += members[i].Weight * dev * dev
			se := sds[i] * math.Sqrt(float64(h+1))
			seVar += members[i].Weight * se * se
		}
		ciHalf := z * math.Sqrt(spreadVar+seVar)
		piHalf := z * math.Sqrt(spreadVar+seVar+holdoutRMSE*holdoutRMSE)
		piHalf = widen(piHalf, ciHalf)
		ci.Lower = append(ci.Lower, predictions[h]-ciHalf)
		ci.Upper = append(ci.Upper, predictions[h]+ciHalf)
		pi.Lower = append(pi.Lower, predictions[h]-piHalf)
		pi.Upper = append(pi.Upper, predictions[h]+piHalf)
	}

	e.logger.Debug("ensemble forecast",
		zap.Int64("stream", s.ID),
		zap.Int("members", len(members)),
		zap.Float64("holdoutRMSE", holdoutRMSE))

	return &Prediction{
		Method:              MethodEnsemble,
		Predictions:         predictions,
		Timestamps:          futureTimestamps(s, opts.Horizon),
		ConfidenceIntervals: ci,
		PredictionIntervals: pi,
		Metrics:             backtestMetrics(train, test, ensembleHoldout),
		Models:              members,
		AggregationMethod:   "performance-weighted-average",
	}, nil
}

// widen keeps prediction intervals strictly outside confidence
// intervals even when the holdout error is zero.
func widen(piHalf, ciHalf float64) float64 {
	if piHalf <= ciHalf {
		return ciHalf * 1.05
	}
	return piHalf
}

func futureTimestamps(s *timeseries.Stream, horizon int) []int64 {
	interval := s.Interval()
	last := int64(0)
	if len(s.Timestamps) > 0 {
		last = s.Timestamps[len(s.Timestamps)-1]
	}
	out := make([]int64, horizon)
	for i := range out {
		out[i] = last + int64(i+1)*interval
	}
	return out
}

func zQuantile(level float64) float64 {
	return distuv.UnitNormal.Quantile(0.5 + level/2)
}

func retain(order []string, candidates map[string]*candidate) []string {
	kept := order[:0]
	for _, name := range order {
		if _, ok := candidates[name]; ok {
			kept = append(kept, name)
		}
	}
	return kept
}
