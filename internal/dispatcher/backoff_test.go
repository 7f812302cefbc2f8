package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Doubles(t *testing.T) {
	d := New(Config{BackoffBase: 5 * time.Minute, BackoffCeiling: time.Hour}, nil, nil, nil, nil, nil)

	assert.Equal(t, 5*time.Minute, d.Backoff(1))
	assert.Equal(t, 10*time.Minute, d.Backoff(2))
	assert.Equal(t, 20*time.Minute, d.Backoff(3))
	assert.Equal(t, 40*time.Minute, d.Backoff(4))
}

func TestBackoff_Ceiling(t *testing.T) {
	d := New(Config{BackoffBase: 5 * time.Minute, BackoffCeiling: time.Hour}, nil, nil, nil, nil, nil)

	assert.Equal(t, time.Hour, d.Backoff(5))
	assert.Equal(t, time.Hour, d.Backoff(50))
}

func TestBackoff_Monotonic(t *testing.T) {
	d := New(Config{}, nil, nil, nil, nil, nil)

	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		delay := d.Backoff(attempt)
		assert.GreaterOrEqual(t, delay, prev, "attempt %d", attempt)
		prev = delay
	}
}

func TestBackoff_ClampsAttempt(t *testing.T) {
	d := New(Config{BackoffBase: 5 * time.Minute}, nil, nil, nil, nil, nil)

	assert.Equal(t, d.Backoff(1), d.Backoff(0))
	assert.Equal(t, d.Backoff(1), d.Backoff(-3))
}
