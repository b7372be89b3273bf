package client

import (
	"context"
	"math"
	"time"
)

// RetryPolicy applies to idempotent reads only. Writes are sent once.
type RetryPolicy struct {
	MaxRetries       int           `mapstructure:"max_retries"`
	BaseDelay        time.Duration `mapstructure:"base_delay"`
	MaxDelay         time.Duration `mapstructure:"max_delay"`
	RetryStatusCodes []int         `mapstructure:"retry_status_codes"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:       2,
		BaseDelay:        200 * time.Millisecond,
		MaxDelay:         2 * time.Second,
		RetryStatusCodes: []int{429, 502, 503, 504},
	}
}

func (p RetryPolicy) retryStatus(code int) bool {
	for _, c := range p.RetryStatusCodes {
		if c == code {
			return true
		}
	}
	return false
}

// delay is baseDelay * 2^attempt, capped at maxDelay.
func (p RetryPolicy) delay(attempt int) time.Duration {
	if attempt <= 0 {
		return p.BaseDelay
	}
	d := p.BaseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
