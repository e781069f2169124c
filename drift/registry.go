package drift

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"trendengine/storage"
)

var (
	ErrAlreadyMonitored = errors.New("stream already has a detector")
	ErrNotMonitored     = errors.New("stream has no detector")
	ErrNoStore          = errors.New("registry has no snapshot store")
)

type Transition string

const (
	TransitionWarning Transition = "warning"
	TransitionDrift   Transition = "drift"
)

// Event is published on warning and drift transitions so the dashboard
// can react without polling every result.
type Event struct {
	StreamID   int64
	Transition Transition
	Result     Result
}

// Registry owns the detector instances, keyed by stream id. Detectors
// for distinct streams are independent; the registry only guards its
// own map, each detector serializes its own samples.
type Registry struct {
	mu        sync.RWMutex
	detectors map[int64]*Detector
	closed    bool

	events chan Event
	logger *zap.Logger
	store  storage.Backend
}

type RegistryOption func(*Registry)

func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithStore enables snapshot persistence through the given backend.
func WithStore(backend storage.Backend) RegistryOption {
	return func(r *Registry) { r.store = backend }
}

func WithEventBuffer(size int) RegistryOption {
	return func(r *Registry) { r.events = make(chan Event, size) }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		detectors: make(map[int64]*Detector),
		events:    make(chan Event, 64),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Events is the transition feed. Consumers that fall behind lose
// events rather than blocking sample processing.
func (r *Registry) Events() <-chan Event {
	return r.events
}

// Monitor creates a detector for the stream. Fails if the stream is
// already monitored or the configuration is invalid.
func (r *Registry) Monitor(streamID int64, config Config) (*Detector, error) {
	detector, err := New(config)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.detectors[streamID]; ok {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyMonitored, streamID)
	}
	r.detectors[streamID] = detector
	r.logger.Info("drift monitoring started",
		zap.Int64("stream", streamID),
		zap.String("method", string(config.Method)))
	return detector, nil
}

func (r *Registry) Detector(streamID int64) (*Detector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	detector, ok := r.detectors[streamID]
	return detector, ok
}

// Process feeds one sample to the stream's detector and publishes a
// transition event when the phase escalates.
func (r *Registry) Process(streamID int64, value float64, timestamp int64) (Result, error) {
	detector, ok := r.Detector(streamID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrNotMonitored, streamID)
	}

	result := detector.Process(value, timestamp)

	switch {
	case result.Detected:
		r.publish(Event{StreamID: streamID, Transition: TransitionDrift, Result: result})
		r.logger.Warn("drift detected",
			zap.Int64("stream", streamID),
			zap.Float64("statistic", result.Statistics.TestStatistic),
			zap.Float64("threshold", result.Statistics.Threshold))
	case result.Warning:
		r.publish(Event{StreamID: streamID, Transition: TransitionWarning, Result: result})
		r.logger.Debug("drift warning",
			zap.Int64("stream", streamID),
			zap.Float64("statistic", result.Statistics.TestStatistic))
	}
	return result, nil
}

// publish holds the read lock so the send cannot race a concurrent
// Close of the event channel.
func (r *Registry) publish(event Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.events <- event:
	default:
		r.logger.Debug("event channel full, dropping",
			zap.Int64("stream", event.StreamID))
	}
}

// Stop removes the stream's detector. Any persisted snapshot is left in
// place so monitoring can be resumed later.
func (r *Registry) Stop(streamID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.detectors[streamID]; !ok {
		return fmt.Errorf("%w: %d", ErrNotMonitored, streamID)
	}
	delete(r.detectors, streamID)
	return nil
}

// Checkpoint persists the stream's detector state.
func (r *Registry) Checkpoint(streamID int64) error {
	if r.store == nil {
		return ErrNoStore
	}
	detector, ok := r.Detector(streamID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotMonitored, streamID)
	}
	buf, err := detector.Snapshot().Marshal()
	if err != nil {
		return err
	}
	return r.store.Put(storage.SnapshotKey(streamID), buf)
}

// Resume rebuilds a detector from its persisted snapshot and registers
// it. Fails if the stream is already monitored or has no snapshot.
func (r *Registry) Resume(streamID int64) (*Detector, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	buf, err := r.store.Get(storage.SnapshotKey(streamID))
	if err != nil {
		return nil, err
	}
	snapshot, err := UnmarshalSnapshot(buf)
	if err != nil {
		return nil, err
	}
	detector, err := Restore(snapshot)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.detectors[streamID]; ok {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyMonitored, streamID)
	}
	r.detectors[streamID] = detector
	r.logger.Info("drift monitoring resumed", zap.Int64("stream", streamID))
	return detector, nil
}

// Close stops publishing events and closes the event channel. Safe to
// call concurrently with Process and safe to call twice. Detectors are
// dropped; callers should Checkpoint anything they want to keep first.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.detectors = make(map[int64]*Detector)
	close(r.events)
}
