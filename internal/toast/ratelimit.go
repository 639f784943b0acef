package toast

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter gates presentation starts so that two consecutive starts are at
// least interval apart. It is a one-token bucket refilled once per interval:
// a start consumes the token and the next start must wait for the refill.
//
// Not safe for concurrent use; the Manager serializes access.
type rateLimiter struct {
	interval time.Duration
	lim      *rate.Limiter
	last     time.Time
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	r := &rateLimiter{interval: interval}
	r.lim = r.fresh()
	return r
}

func (r *rateLimiter) fresh() *rate.Limiter {
	if r.interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(r.interval), 1)
}

// delay returns how long to wait at now before the next start is allowed.
func (r *rateLimiter) delay(now time.Time) time.Duration {
	// The bucket works in float tokens; settle the exact boundary here so a
	// full interval never yields a nanosecond of residual wait.
	if !r.last.IsZero() && now.Sub(r.last) >= r.interval {
		return 0
	}
	res := r.lim.ReserveN(now, 1)
	if !res.OK() {
		return r.interval
	}
	d := res.DelayFrom(now)
	res.CancelAt(now)
	if d < 0 {
		d = 0
	}
	return d
}

// markStart records a presentation start at now. The bucket is rebuilt so the
// next wait is measured from this start even when the gate was bypassed.
func (r *rateLimiter) markStart(now time.Time) {
	r.last = now
	r.lim = r.fresh()
	r.lim.AllowN(now, 1)
}

func (r *rateLimiter) lastStart() time.Time { return r.last }
