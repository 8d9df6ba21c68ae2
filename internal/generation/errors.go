package generation

import (
	"context"
	"errors"
	"fmt"
)

// TransientError marks a provider failure worth retrying: timeouts and
// 5xx-style service errors. Anything else is permanent and fails the job
// immediately.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient service error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err should be retried at the orchestration
// layer. Deadline expiry counts as transient like any other timeout.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
