package drift

import (
	"math"
	"sync"

	"trendengine/stats"
)

// Phase is the detector state machine: Stable -> Warning -> Drift, then
// back to Stable after the post-drift rebaseline.
type Phase int

const (
	PhaseStable Phase = iota
	PhaseWarning
	PhaseDrift
)

func (p Phase) String() string {
	switch p {
	case PhaseWarning:
		return "warning"
	case PhaseDrift:
		return "drift"
	default:
		return "stable"
	}
}

// Result is a pure snapshot of detector state after one sample. Never
// mutated after return.
type Result struct {
	Detected          bool
	Warning           bool
	Confidence        float64
	DriftTimestamp    int64
	CurrentMean       float64
	ReferenceMean     float64
	CurrentVariance   float64
	ReferenceVariance float64
	Statistics        TestStatistics
}

// TestStatistics carries the method's decision statistic. PValue is NaN
// for methods whose statistic has no distributional interpretation.
type TestStatistics struct {
	TestStatistic float64
	Threshold     float64
	PValue        float64
}

// Statistics are the lifetime counters of one detector instance.
type Statistics struct {
	SamplesProcessed uint64
	DriftsDetected   uint64
	WarningsIssued   uint64
}

// outcome is what a strategy reports for one sample.
type outcome struct {
	statistic float64
	threshold float64
	warning   bool
	drift     bool
	pValue    float64
}

// strategy is the per-method state machine. Implementations are not
// safe for concurrent use; the Detector serializes access.
type strategy interface {
	step(value, refMean, refSD float64) outcome
	reset()
	// state and restore round-trip the mutable scalars for snapshots.
	// Window-shaped state goes through window()/setWindow.
	state() map[string]float64
	restore(map[string]float64)
	window() []float64
	setWindow([]float64)
}

// Detector monitors one stream for concept drift. A per-instance mutex
// serializes Process so a detector can be shared by a feed and its
// inspector, but each sample feed should be single-writer.
type Detector struct {
	mu sync.Mutex

	config Config
	strat  strategy

	phase     Phase
	reference *stats.Welford
	current   *slidingWindow
	primed    bool

	stats          Statistics
	lastTimestamp  int64
	driftTimestamp int64
}

// New builds a detector, failing fast on invalid configuration.
func New(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		config:    config,
		strat:     newStrategy(config),
		reference: stats.NewWelford(),
		current:   newSlidingWindow(config.WindowSize),
	}, nil
}

func newStrategy(config Config) strategy {
	switch config.Method {
	case ADWIN:
		return newADWIN(config)
	case PageHinkley:
		return newPageHinkley(config)
	case DDM:
		return newDDM(config)
	case EDDM:
		return newEDDM(config)
	case EWMA:
		return newEWMAStrategy(config)
	default:
		return newCUSUM(config)
	}
}

func (d *Detector) Config() Config {
	return d.config
}

// Process consumes one sample and returns the resulting drift snapshot.
// The first WindowSize samples prime the reference baseline; detection
// starts afterwards.
func (d *Detector) Process(value float64, timestamp int64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.SamplesProcessed++
	d.lastTimestamp = timestamp
	d.current.push(value)

	if !d.primed {
		d.reference.Update(value)
		if d.reference.Count() >= uint64(d.config.WindowSize) {
			d.primed = true
		}
		return d.snapshot(outcome{pValue: math.NaN()})
	}

	refSD := d.reference.SD()
	if refSD < 1e-9 {
		refSD = 1e-9
	}
	out := d.strat.step(value, d.reference.Mean(), refSD)

	switch {
	case out.drift:
		d.stats.DriftsDetected++
		d.phase = PhaseDrift
		d.driftTimestamp = timestamp
	case out.warning:
		if d.phase == PhaseStable {
			d.stats.WarningsIssued++
		}
		d.phase = PhaseWarning
	default:
		d.phase = PhaseStable
	}

	result := d.snapshot(out)

	if out.drift {
		d.rebaseline()
	}
	return result
}

// rebaseline restarts the reference from the post-change window so the
// detector returns to Stable against the new regime.
func (d *Detector) rebaseline() {
	d.strat.reset()
	d.reference.Reset()
	for _, v := range d.current.contents() {
		d.reference.Update(v)
	}
	d.phase = PhaseStable
}

// Reset drops all learned state, keeping the lifetime counters.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strat.reset()
	d.reference.Reset()
	d.current.reset()
	d.primed = false
	d.phase = PhaseStable
	d.driftTimestamp = 0
}

func (d *Detector) Stats() Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Detector) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

func (d *Detector) snapshot(out outcome) Result {
	confidence := 0.0
	if out.threshold > 0 {
		confidence = out.statistic / out.threshold
		if confidence > 1 {
			confidence = 1
		}
		if confidence < 0 {
			confidence = 0
		}
	}
	return Result{
		Detected:          out.drift,
		Warning:           out.warning && !out.drift,
		Confidence:        confidence,
		DriftTimestamp:    d.driftTimestamp,
		CurrentMean:       d.current.mean(),
		ReferenceMean:     d.reference.Mean(),
		CurrentVariance:   d.current.variance(),
		ReferenceVariance: d.reference.SampleVariance(),
		Statistics: TestStatistics{
			TestStatistic: out.statistic,
			Threshold:     out.threshold,
			PValue:        out.pValue,
		},
	}
}

// slidingWindow keeps the last capacity samples with O(1) mean and
// variance updates.
type slidingWindow struct {
	buf   []float64
	head  int
	count int
	sum   float64
	sumSq float64
}

func newSlidingWindow(capacity int) *slidingWindow {
	return &slidingWindow{buf: make([]float64, capacity)}
}

func (w *slidingWindow) push(v float64) {
	if w.count == len(w.buf) {
		old := w.buf[w.head]
		w.sum -= old
		w.sumSq -= old * old
	} else {
		w.count++
	}
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
	w.sum += v
	w.sumSq += v * v
}

func (w *slidingWindow) mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

func (w *slidingWindow) variance() float64 {
	if w.count < 2 {
		return 0
	}
	m := w.mean()
	v := (w.sumSq - float64(w.count)*m*m) / float64(w.count-1)
	if v < 0 {
		return 0
	}
	return v
}

// contents returns the window oldest-first.
func (w *slidingWindow) contents() []float64 {
	out := make([]float64, 0, w.count)
	start := w.head - w.count
	for i := 0; i < w.count; i++ {
		idx := (start + i + len(w.buf)) % len(w.buf)
		out = append(out, w.buf[idx])
	}
	return out
}

func (w *slidingWindow) reset() {
	w.head = 0
	w.count = 0
	w.sum = 0
	w.sumSq = 0
}
