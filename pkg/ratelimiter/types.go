package ratelimiter

import "time"

// Result is the outcome of a check.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allowed reports whether the request fits in the bucket.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait, or 0 when allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(0, time.Until(r.ResetAt))
}

// Config defines the token bucket. The defaults allow a burst of 10
// sign-in attempts per client and one more every 30 seconds.
type Config struct {
	Capacity       int           `env:"SIGNIN_RATE_CAPACITY" envDefault:"10"`
	RefillRate     int           `env:"SIGNIN_RATE_REFILL" envDefault:"1"`
	RefillInterval time.Duration `env:"SIGNIN_RATE_INTERVAL" envDefault:"30s"`
}

func (c Config) validate() error {
	switch {
	case c.Capacity <= 0:
		return errorf("capacity must be positive, got %d", c.Capacity)
	case c.RefillRate <= 0:
		return errorf("refill rate must be positive, got %d", c.RefillRate)
	case c.RefillInterval <= 0:
		return errorf("refill interval must be positive, got %v", c.RefillInterval)
	}
	return nil
}

// fullRefill is the time an empty bucket needs to fill up again.
func (c Config) fullRefill() time.Duration {
	intervals := (c.Capacity + c.RefillRate - 1) / c.RefillRate
	return time.Duration(intervals) * c.RefillInterval
}
