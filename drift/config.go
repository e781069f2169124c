// Package drift implements streaming concept-drift detection. Each
// detector instance watches one telemetry stream, consumes one sample per
// call and reports its state as an immutable snapshot. Six detection
// methods share a single strategy interface.
package drift

import (
	"errors"
	"fmt"
)

type Method string

const (
	ADWIN       Method = "adwin"
	PageHinkley Method = "page-hinkley"
	DDM         Method = "ddm"
	EDDM        Method = "eddm"
	CUSUM       Method = "cusum"
	EWMA        Method = "ewma"
)

var methods = map[Method]bool{
	ADWIN:       true,
	PageHinkley: true,
	DDM:         true,
	EDDM:        true,
	CUSUM:       true,
	EWMA:        true,
}

var (
	ErrUnknownMethod      = errors.New("unknown drift detection method")
	ErrInvalidSensitivity = errors.New("sensitivity must be in (0, 1]")
	ErrInvalidWindowSize  = errors.New("window size must be positive")
)

// Config selects and tunes a detection method. Invalid configuration is
// a programming mistake and fails detector construction immediately; it
// is the only fatal error path in the package.
type Config struct {
	Method      Method
	Sensitivity float64
	WindowSize  int
}

func DefaultConfig(method Method) Config {
	return Config{
		Method:      method,
		Sensitivity: 0.5,
		WindowSize:  30,
	}
}

func (c Config) Validate() error {
	if !methods[c.Method] {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, c.Method)
	}
	if c.Sensitivity <= 0 || c.Sensitivity > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSensitivity, c.Sensitivity)
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWindowSize, c.WindowSize)
	}
	return nil
}
