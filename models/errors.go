package models

import "errors"

// Failure taxonomy. The scheduler's retry policy keys off these: timeouts
// retry, CAPTCHA blocks are terminal for the attempt, extraction failures
// degrade a field without failing the job, validation failures are rejected
// at submission, and resource exhaustion leaves the job scheduled for the
// next tick.
var (
	ErrTimeout           = errors.New("operation exceeded deadline")
	ErrCaptchaBlocked    = errors.New("captcha challenge persisted")
	ErrExtraction        = errors.New("field extraction failed")
	ErrValidation        = errors.New("invalid input")
	ErrResourceExhausted = errors.New("no browser session available")
)

// Retryable reports whether the scheduler should retry a job that failed
// with err.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCaptchaBlocked) || errors.Is(err, ErrValidation) {
		return false
	}
	return true
}
