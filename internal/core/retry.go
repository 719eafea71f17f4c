package core

import (
	"math"
	"time"
)

// maxRetryDelay bounds worst-case staleness no matter how the base
// interval and multiplier are configured.
const maxRetryDelay = 24 * time.Hour

// RetryPolicy computes exponential backoff delays for failed downloads.
type RetryPolicy struct {
	BaseInterval time.Duration
	Multiplier   float64
}

// Delay returns the backoff delay for a failure that brought the movie's
// retry count to retryCount. The first failure (retryCount=1) waits
// exactly BaseInterval; each further failure multiplies the delay,
// capped at 24 hours.
func (p RetryPolicy) Delay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}

	mult := p.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}

	delay := time.Duration(float64(p.BaseInterval) * math.Pow(mult, float64(retryCount-1)))
	if delay > maxRetryDelay || delay < 0 {
		delay = maxRetryDelay
	}
	return delay
}

// RetryAt returns the earliest time the movie becomes eligible for
// promotion back to pending.
func (p RetryPolicy) RetryAt(now time.Time, retryCount int) time.Time {
	return now.Add(p.Delay(retryCount))
}
