package poller

import (
	"fmt"
	"math"
	"time"

	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
)

// backoff tracks consecutive rate limit signals for one channel pass.
type backoff struct {
	attempts    int
	maxAttempts int
	maxWait     time.Duration
}

func newBackoff(maxAttempts int, maxWait time.Duration) *backoff {
	return &backoff{maxAttempts: maxAttempts, maxWait: maxWait}
}

// next returns the sleep for a new rate limit signal suggesting wait:
// wait × 2^k where k is the number of signals seen since the last reset,
// capped at maxWait. It fails once maxAttempts signals were consumed.
func (b *backoff) next(wait time.Duration) (time.Duration, error) {
	if b.maxAttempts > 0 && b.attempts >= b.maxAttempts {
		return 0, fmt.Errorf("%w: gave up after %d attempts", apperrors.ErrRateLimited, b.attempts)
	}

	if wait <= 0 {
		wait = time.Second
	}

	d := wait

	for i := 0; i < b.attempts; i++ {
		if b.maxWait > 0 && d >= b.maxWait {
			break
		}

		if d > math.MaxInt64/2 {
			d = math.MaxInt64

			break
		}

		d *= 2
	}

	b.attempts++

	if b.maxWait > 0 && d > b.maxWait {
		d = b.maxWait
	}

	return d, nil
}

func (b *backoff) reset() {
	b.attempts = 0
}
