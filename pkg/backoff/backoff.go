// Package backoff provides the retry delay strategy of the execution engine
// and the randomized pacing window applied after outbound sends.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	Delay(attempt int) time.Duration
}

// Quadratic grows the delay with the square of the attempt number.
// Delay = min(Unit * attempt², Max).
type Quadratic struct {
	Unit time.Duration
	Max  time.Duration
}

// NewQuadratic creates a quadratic backoff strategy.
func NewQuadratic(unit, maxDelay time.Duration) *Quadratic {
	return &Quadratic{Unit: unit, Max: maxDelay}
}

// Delay returns Unit * attempt², capped at Max.
func (q *Quadratic) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	d := q.Unit * time.Duration(attempt*attempt)
	if q.Max > 0 && d > q.Max {
		return q.Max
	}

	return d
}

// DefaultStrategy returns the engine's retry backoff: 1m, 4m, 9m, ...
func DefaultStrategy() Strategy {
	return NewQuadratic(time.Minute, 0)
}

// Window yields a random duration in [Min, Max]. A zero window always yields zero.
type Window struct {
	Min time.Duration
	Max time.Duration
}

// NewWindow creates a pacing window. Bounds given in the wrong order are swapped.
func NewWindow(lower, upper time.Duration) Window {
	if upper < lower {
		lower, upper = upper, lower
	}

	return Window{Min: max(lower, 0), Max: max(upper, 0)}
}

// Next returns a random duration within the window.
func (w Window) Next() time.Duration {
	if w.Max <= w.Min {
		return w.Min
	}

	return w.Min + rand.N(w.Max-w.Min+1) //nolint:gosec // pacing does not need crypto rand
}
