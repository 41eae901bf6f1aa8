package ai

import (
	"errors"
	"fmt"
	"time"
)

// ProviderError is the vendor-neutral failure shape adapters must produce.
// StatusCode follows HTTP semantics even for non-HTTP transports.
type ProviderError struct {
	StatusCode int
	// RetryAfter is the provider-suggested wait before the next attempt,
	// zero when the provider gave no hint.
	RetryAfter time.Duration
	// DailyQuota marks quota-violation responses that reference a daily
	// limit. Best-effort, vendor string heuristics; affects messaging only.
	DailyQuota bool
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error %d", e.StatusCode)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AsProviderError unwraps err into a *ProviderError if one is in the chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
