// Package timeseries holds the telemetry stream container shared by every
// analysis package. Streams are owned by the caller and treated as read-only
// by the engine.
package timeseries

import (
	"errors"
	"math"
	"sort"
)

var (
	ErrLengthMismatch = errors.New("values and timestamps must have the same length")
	ErrNotIncreasing  = errors.New("timestamps must be strictly increasing")
	ErrEmpty          = errors.New("stream has no samples")
)

// Stream is a single telemetry channel: ordered samples with their
// arrival timestamps in epoch milliseconds.
type Stream struct {
	ID         int64
	Name       string
	Unit       string
	Values     []float64
	Timestamps []int64
}

func New(id int64, name string, values []float64, timestamps []int64) *Stream {
	return &Stream{
		ID:         id,
		Name:       name,
		Values:     values,
		Timestamps: timestamps,
	}
}

// FromValues builds a stream with synthetic millisecond timestamps,
// mostly useful in tests and offline analysis.
func FromValues(values []float64) *Stream {
	timestamps := make([]int64, len(values))
	for i := range timestamps {
		timestamps[i] = int64(i) * 1000
	}
	return &Stream{Values: values, Timestamps: timestamps}
}

func (s *Stream) Validate() error {
	if len(s.Values) == 0 {
		return ErrEmpty
	}
	if len(s.Values) != len(s.Timestamps) {
		return ErrLengthMismatch
	}
	for i := 1; i < len(s.Timestamps); i++ {
		if s.Timestamps[i] <= s.Timestamps[i-1] {
			return ErrNotIncreasing
		}
	}
	return nil
}

func (s *Stream) Len() int {
	return len(s.Values)
}

func (s *Stream) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.Values {
		sum += v
	}
	return sum / float64(len(s.Values))
}

// Variance returns the sample variance of the stream values.
func (s *Stream) Variance() float64 {
	n := len(s.Values)
	if n < 2 {
		return 0
	}
	mean := s.Mean()
	sumSq := 0.0
	for _, v := range s.Values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(n-1)
}

func (s *Stream) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Diff returns the first difference of the values.
func (s *Stream) Diff() []float64 {
	return DiffN(s.Values, 1)
}

// DiffN applies n successive first differences to values.
func DiffN(values []float64, n int) []float64 {
	out := values
	for i := 0; i < n; i++ {
		if len(out) < 2 {
			return nil
		}
		next := make([]float64, len(out)-1)
		for j := 1; j < len(out); j++ {
			next[j-1] = out[j] - out[j-1]
		}
		out = next
	}
	return out
}

// Slice returns a view over samples [from, to). Bounds are clamped to
// the stream; the backing arrays are shared with the parent stream.
func (s *Stream) Slice(from, to int) *Stream {
	if from < 0 {
		from = 0
	}
	if to > s.Len() {
		to = s.Len()
	}
	if from > to {
		from = to
	}
	return &Stream{
		ID:         s.ID,
		Name:       s.Name,
		Unit:       s.Unit,
		Values:     s.Values[from:to],
		Timestamps: s.Timestamps[from:to],
	}
}

// Tail returns a view over the last n samples. The backing arrays are
// shared with the parent stream.
func (s *Stream) Tail(n int) *Stream {
	if n >= s.Len() {
		return s
	}
	start := s.Len() - n
	return &Stream{
		ID:         s.ID,
		Name:       s.Name,
		Unit:       s.Unit,
		Values:     s.Values[start:],
		Timestamps: s.Timestamps[start:],
	}
}

// Interval estimates the sampling interval as the median gap between
// consecutive timestamps. Used to extrapolate forecast timestamps.
func (s *Stream) Interval() int64 {
	if len(s.Timestamps) < 2 {
		return 1000
	}
	gaps := make([]int64, len(s.Timestamps)-1)
	for i := 1; i < len(s.Timestamps); i++ {
		gaps[i-1] = s.Timestamps[i] - s.Timestamps[i-1]
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	return gaps[len(gaps)/2]
}
