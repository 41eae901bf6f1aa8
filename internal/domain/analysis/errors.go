package analysis

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorClass groups failures by how the system and the caller should react.
type ErrorClass string

const (
	// ClassValidation: caller must fix the input, never retried.
	ClassValidation ErrorClass = "validation"
	// ClassRateLimited: provider throttling, retried up to the ceiling.
	ClassRateLimited ErrorClass = "rate_limited"
	// ClassServiceUnavailable: provider temporarily down, retried.
	ClassServiceUnavailable ErrorClass = "service_unavailable"
	// ClassUpstreamServer: other provider 5xx, retried then surfaced generically.
	ClassUpstreamServer ErrorClass = "upstream_server"
	// ClassFatal: everything else, never retried.
	ClassFatal ErrorClass = "fatal"
)

// QuotaScope distinguishes daily-quota exhaustion from short-term throttling.
// It only affects the user-facing message, never retry behavior.
type QuotaScope string

const (
	QuotaScopeNone   QuotaScope = ""
	QuotaScopeMinute QuotaScope = "per_minute"
	QuotaScopeDaily  QuotaScope = "daily"
)

// Error is the single outward-facing failure type of the pipeline. Message is
// shown to the end user; Detail is diagnostic only and may carry provider
// internals.
type Error struct {
	Class      ErrorClass
	Message    string
	Detail     string
	RetryAfter time.Duration
	Quota      QuotaScope
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Class, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus maps the error class to the status the translator returns.
func (e *Error) HTTPStatus() int {
	switch e.Class {
	case ClassValidation:
		return http.StatusBadRequest
	case ClassRateLimited:
		return http.StatusTooManyRequests
	case ClassServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the invoker may attempt the request again.
func (e *Error) Retryable() bool {
	switch e.Class {
	case ClassRateLimited, ClassServiceUnavailable, ClassUpstreamServer:
		return true
	}
	return false
}

// NewValidationError builds a 400-class error. Detail defaults to the message.
func NewValidationError(message string) *Error {
	return &Error{Class: ClassValidation, Message: message, Detail: message}
}

// NewRateLimitedError surfaces exhausted throttling with a wait hint.
func NewRateLimitedError(retryAfter time.Duration, scope QuotaScope, cause error) *Error {
	msg := "AI service is receiving too many requests. Please try again in a few minutes."
	if scope == QuotaScopeDaily {
		msg = "Daily free quota for the AI service has been exhausted. Please try again tomorrow or upgrade your plan."
	}
	return &Error{
		Class:      ClassRateLimited,
		Message:    msg,
		Detail:     detailOf(cause),
		RetryAfter: retryAfter,
		Quota:      scope,
		Cause:      cause,
	}
}

// NewServiceUnavailableError surfaces provider downtime with a wait hint.
func NewServiceUnavailableError(retryAfter time.Duration, cause error) *Error {
	return &Error{
		Class:      ClassServiceUnavailable,
		Message:    "AI service is temporarily unavailable. Please try again shortly.",
		Detail:     detailOf(cause),
		RetryAfter: retryAfter,
		Cause:      cause,
	}
}

// NewUpstreamError covers retried-then-exhausted provider 5xx failures.
func NewUpstreamError(cause error) *Error {
	return &Error{
		Class:   ClassUpstreamServer,
		Message: "Analysis failed due to an upstream error. Please try again.",
		Detail:  detailOf(cause),
		Cause:   cause,
	}
}

// NewFatalError covers everything that must not be retried.
func NewFatalError(cause error) *Error {
	return &Error{
		Class:   ClassFatal,
		Message: "Failed to analyze the uploaded reports.",
		Detail:  detailOf(cause),
		Cause:   cause,
	}
}

func detailOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
