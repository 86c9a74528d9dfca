package backoff_test

import (
	"testing"
	"time"

	"github.com/dukex/cadence/pkg/backoff"
	"github.com/stretchr/testify/assert"
)

func TestQuadratic_Delay(t *testing.T) {
	strategy := backoff.DefaultStrategy()

	testCases := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 60000 * time.Millisecond},
		{2, 240000 * time.Millisecond},
		{3, 540000 * time.Millisecond},
		{4, 16 * time.Minute},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, strategy.Delay(tc.attempt), "attempt %d", tc.attempt)
	}
}

func TestQuadratic_CapsAtMax(t *testing.T) {
	strategy := backoff.NewQuadratic(time.Minute, 5*time.Minute)

	assert.Equal(t, 4*time.Minute, strategy.Delay(2))
	assert.Equal(t, 5*time.Minute, strategy.Delay(3))
}

func TestWindow_Next(t *testing.T) {
	window := backoff.NewWindow(10*time.Second, 50*time.Second)

	for range 200 {
		delay := window.Next()
		assert.GreaterOrEqual(t, delay, 10*time.Second)
		assert.LessOrEqual(t, delay, 50*time.Second)
	}
}

func TestWindow_Degenerate(t *testing.T) {
	assert.Equal(t, time.Duration(0), backoff.Window{}.Next())
	assert.Equal(t, 3*time.Second, backoff.NewWindow(3*time.Second, 3*time.Second).Next())

	swapped := backoff.NewWindow(20*time.Second, 10*time.Second)
	assert.Equal(t, 10*time.Second, swapped.Min)
	assert.Equal(t, 20*time.Second, swapped.Max)
}
