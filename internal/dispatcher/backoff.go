package dispatcher

import "time"

const (
	defaultBackoffBase    = 5 * time.Minute
	defaultBackoffCeiling = time.Hour
)

// Backoff returns the delay before retry number attempt (1-based). The
// delay doubles per attempt up to the ceiling so a failing platform is not
// hammered on a tight loop.
func (d *Dispatcher) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := d.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.BackoffCeiling {
			return d.cfg.BackoffCeiling
		}
	}
	if delay > d.cfg.BackoffCeiling {
		return d.cfg.BackoffCeiling
	}
	return delay
}
