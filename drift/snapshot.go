package drift

import (
	"encoding/json"
	"fmt"
	"math"

	"trendengine/stats"
)

// Snapshot is the serializable state of a detector, enough to resume
// monitoring after a process restart. Persistence is optional; a
// detector never needs a snapshot for correctness.
type Snapshot struct {
	Config         Config             `json:"config"`
	Phase          Phase              `json:"phase"`
	Primed         bool               `json:"primed"`
	Stats          Statistics         `json:"stats"`
	LastTimestamp  int64              `json:"lastTimestamp"`
	DriftTimestamp int64              `json:"driftTimestamp"`
	RefCount       uint64             `json:"refCount"`
	RefMean        float64            `json:"refMean"`
	RefM2          float64            `json:"refM2"`
	Window         []float64          `json:"window"`
	Strategy       map[string]float64 `json:"strategy"`
	StrategyWindow []float64          `json:"strategyWindow,omitempty"`
}

// Snapshot captures the full detector state under the instance lock.
func (d *Detector) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	count, mean, m2 := d.reference.State()
	return Snapshot{
		Config:         d.config,
		Phase:          d.phase,
		Primed:         d.primed,
		Stats:          d.stats,
		LastTimestamp:  d.lastTimestamp,
		DriftTimestamp: d.driftTimestamp,
		RefCount:       count,
		RefMean:        mean,
		RefM2:          m2,
		Window:         d.current.contents(),
		Strategy:       sanitizeNaN(d.strat.state()),
		StrategyWindow: d.strat.window(),
	}
}

// Restore builds a detector from a snapshot, validating the embedded
// configuration the same way New does.
func Restore(snapshot Snapshot) (*Detector, error) {
	d, err := New(snapshot.Config)
	if err != nil {
		return nil, err
	}
	d.phase = snapshot.Phase
	d.primed = snapshot.Primed
	d.stats = snapshot.Stats
	d.lastTimestamp = snapshot.LastTimestamp
	d.driftTimestamp = snapshot.DriftTimestamp
	d.reference = stats.NewWelford()
	d.reference.Restore(snapshot.RefCount, snapshot.RefMean, snapshot.RefM2)
	for _, v := range snapshot.Window {
		d.current.push(v)
	}
	d.strat.restore(snapshot.Strategy)
	if len(snapshot.StrategyWindow) > 0 {
		d.strat.setWindow(snapshot.StrategyWindow)
	}
	return d, nil
}

func (s Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

func UnmarshalSnapshot(buf []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(buf, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode drift snapshot: %w", err)
	}
	return s, nil
}

// sanitizeNaN strips NaN entries, which JSON cannot carry; strategies
// treat missing keys as zero values on restore.
func sanitizeNaN(m map[string]float64) map[string]float64 {
	for k, v := range m {
		if math.IsNaN(v) {
			delete(m, k)
		}
	}
	return m
}
