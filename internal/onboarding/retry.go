package onboarding

import "time"

// RetrySchedule is the retry policy expressed as data: an attempt cap plus a
// computable backoff curve. Keeping it declarative makes the node runner's
// attempt loop testable without sleeping.
type RetrySchedule struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetrySchedule returns the standard policy: three attempts with
// exponential backoff from a five second base, capped at thirty seconds.
func DefaultRetrySchedule() RetrySchedule {
	return RetrySchedule{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Allows reports whether another attempt may run after `attempt` completed
// attempts.
func (s RetrySchedule) Allows(attempt int) bool {
	return attempt < s.MaxAttempts
}

// Backoff returns the wait before retrying after the given zero-based failed
// attempt: base doubled per attempt, capped at MaxDelay.
func (s RetrySchedule) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := s.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= s.MaxDelay {
			return s.MaxDelay
		}
	}
	if delay > s.MaxDelay {
		return s.MaxDelay
	}
	return delay
}
