package analysis

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/bryanwahyu/medreport-ai/internal/domain/ai"
	domain "github.com/bryanwahyu/medreport-ai/internal/domain/analysis"
)

// RetryConfig holds the retry strategy parameters.
type RetryConfig struct {
	// MaxAttempts is the total call ceiling including the first attempt.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff for 5xx failures.
	BaseDelay time.Duration
	// RateLimitBaseDelay seeds the backoff for 429s, where the provider
	// hint may override it upward.
	RateLimitBaseDelay time.Duration
	// MaxDelay caps the computed exponential wait. Provider hints are not
	// capped.
	MaxDelay time.Duration
	// DefaultRetryAfter is surfaced to the caller when a rate limit
	// exhausts the ceiling and the provider gave no hint.
	DefaultRetryAfter time.Duration
	// UnavailableRetryAfter is the hint surfaced on terminal 503s.
	UnavailableRetryAfter time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:           3,
		BaseDelay:             time.Second,
		RateLimitBaseDelay:    5 * time.Second,
		MaxDelay:              30 * time.Second,
		DefaultRetryAfter:     5 * time.Minute,
		UnavailableRetryAfter: time.Minute,
	}
}

// Invoker drives the per-request attempt state machine against the remote
// generator. Transient failures (429, 503, other 5xx) are retried with
// exponential backoff up to the ceiling; anything else terminates
// immediately. Each invocation's waits are local to its own context, so one
// request backing off never blocks another.
type Invoker struct {
	gen   ai.Generator
	cfg   RetryConfig
	log   *slog.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

func NewInvoker(gen ai.Generator, cfg RetryConfig, log *slog.Logger) *Invoker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	return &Invoker{gen: gen, cfg: cfg, log: log, sleep: sleepContext}
}

// Invoke performs one logical generation call. At most one terminal outcome
// is produced; intermediate attempts surface only through logging.
func (iv *Invoker) Invoke(ctx context.Context, tier ai.Tier, prompt string, attachments []ai.Attachment) (string, *domain.Error) {
	var lastErr *domain.Error

	for attempt := 0; attempt < iv.cfg.MaxAttempts; attempt++ {
		text, err := iv.gen.Generate(ctx, tier, prompt, attachments)
		if err == nil {
			return text, nil
		}

		classified := iv.classify(err, attempt)
		if !classified.Retryable() {
			iv.log.Error("generation failed", "tier", tier, "attempt", attempt, "error", err)
			return "", classified
		}
		lastErr = classified

		if attempt == iv.cfg.MaxAttempts-1 {
			break
		}

		wait := iv.waitFor(err, attempt)
		iv.log.Warn("generation attempt failed, backing off",
			"tier", tier, "attempt", attempt, "class", classified.Class, "wait", wait)
		if serr := iv.sleep(ctx, wait); serr != nil {
			return "", domain.NewFatalError(serr)
		}
	}

	iv.log.Error("generation retries exhausted",
		"tier", tier, "attempts", iv.cfg.MaxAttempts, "class", lastErr.Class)
	return "", lastErr
}

// classify maps a provider failure to the terminal error that would be
// surfaced if no attempts remain. attempt feeds the computed backoff used in
// the surfaced retry-after hint.
func (iv *Invoker) classify(err error, attempt int) *domain.Error {
	pe, ok := ai.AsProviderError(err)
	if !ok {
		return domain.NewFatalError(err)
	}

	switch {
	case pe.StatusCode == http.StatusTooManyRequests:
		scope := domain.QuotaScopeMinute
		if pe.DailyQuota {
			scope = domain.QuotaScopeDaily
		}
		retryAfter := iv.cfg.DefaultRetryAfter
		if pe.RetryAfter > 0 {
			retryAfter = maxDuration(pe.RetryAfter, iv.backoff(iv.cfg.RateLimitBaseDelay, attempt))
		}
		return domain.NewRateLimitedError(retryAfter, scope, err)

	case pe.StatusCode == http.StatusServiceUnavailable:
		return domain.NewServiceUnavailableError(iv.cfg.UnavailableRetryAfter, err)

	case pe.StatusCode >= 500:
		return domain.NewUpstreamError(err)

	default:
		return domain.NewFatalError(err)
	}
}

// waitFor computes the blocking delay before the next attempt. Rate-limit
// responses honor the provider hint when it exceeds the computed backoff.
func (iv *Invoker) waitFor(err error, attempt int) time.Duration {
	pe, _ := ai.AsProviderError(err)
	if pe != nil && pe.StatusCode == http.StatusTooManyRequests {
		return maxDuration(pe.RetryAfter, iv.backoff(iv.cfg.RateLimitBaseDelay, attempt))
	}
	return iv.backoff(iv.cfg.BaseDelay, attempt)
}

// backoff computes base × 2^attempt capped at MaxDelay.
func (iv *Invoker) backoff(base time.Duration, attempt int) time.Duration {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if iv.cfg.MaxDelay > 0 && d > iv.cfg.MaxDelay {
		d = iv.cfg.MaxDelay
	}
	return d
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// sleepContext waits without blocking unrelated work; cancellation wins.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
