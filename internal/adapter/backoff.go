package adapter

import (
	"math"
	"time"
)

// maxBackoffShift caps the exponent so the delay stays bounded
// (2^16 seconds is a bit over 18 hours).
const maxBackoffShift = 16

// RetryDelay returns how long a job that has failed the given number of
// times waits before becoming claimable again.
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > maxBackoffShift {
		attempts = maxBackoffShift
	}

	return time.Duration(math.Pow(2, float64(attempts))) * time.Second
}
