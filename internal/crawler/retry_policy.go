package crawler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxAttempts = 4
	defaultBaseDelay   = time.Second
)

// DefaultBlockingCodes are the HTTP statuses that trigger a global pause.
var DefaultBlockingCodes = []int{429, 403, 503}

// StatusError reports an HTTP status >= 400 for the document response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// FetchKind classifies one fetch attempt.
type FetchKind int

// Fetch attempt classes.
const (
	FetchSuccess FetchKind = iota
	FetchRetryable
	FetchFatal
)

func (k FetchKind) String() string {
	switch k {
	case FetchSuccess:
		return "success"
	case FetchRetryable:
		return "retryable"
	case FetchFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// FetchOutcome is the result of a fetch, after retries. Kind FetchFatal means
// the final attempt failed with a blocking code.
type FetchOutcome struct {
	Kind         FetchKind
	Page         RenderedPage
	Err          error
	BlockingCode int
	Attempts     int
}

// RetryPolicy retries a render with exponential pre-waits. Attempt 0 runs
// immediately and attempt i waits BaseDelay * 2^(i-1).
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	BlockingCodes []int
}

// DefaultRetryPolicy returns the 4-attempt, 1s-base policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   defaultMaxAttempts,
		BaseDelay:     defaultBaseDelay,
		BlockingCodes: append([]int(nil), DefaultBlockingCodes...),
	}
}

// Backoff returns the wait before attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	return base << (attempt - 1)
}

// Classify maps a render result onto a FetchOutcome: structured StatusError
// codes first, then a textual search of the error.
func (p RetryPolicy) Classify(page RenderedPage, err error) FetchOutcome {
	if err == nil {
		return FetchOutcome{Kind: FetchSuccess, Page: page}
	}
	if code, ok := p.blockingCode(err); ok {
		return FetchOutcome{Kind: FetchFatal, Err: err, BlockingCode: code}
	}
	return FetchOutcome{Kind: FetchRetryable, Err: err}
}

// Fetch renders rawURL until it succeeds or runs out of attempts. Every
// error is retried; only the error left after the final attempt is classified,
// so a blocking status that clears on retry never trips the pause.
// Cancellation during a wait returns the context error.
func (p RetryPolicy) Fetch(ctx context.Context, renderer Renderer, sleeper Sleeper, rawURL string) FetchOutcome {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if wait := p.Backoff(attempt); wait > 0 {
			if err := sleeper.Sleep(ctx, wait); err != nil {
				return FetchOutcome{Kind: FetchRetryable, Err: err, Attempts: attempt}
			}
		}
		page, err := renderer.Render(ctx, rawURL)
		if err == nil {
			return FetchOutcome{Kind: FetchSuccess, Page: page, Attempts: attempt + 1}
		}
		lastErr = err
	}
	outcome := p.Classify(RenderedPage{}, lastErr)
	outcome.Attempts = attempts
	return outcome
}

func (p RetryPolicy) blockingCode(err error) (int, bool) {
	codes := p.BlockingCodes
	if codes == nil {
		codes = DefaultBlockingCodes
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		for _, code := range codes {
			if statusErr.Code == code {
				return code, true
			}
		}
		return 0, false
	}
	text := err.Error()
	for _, code := range codes {
		if strings.Contains(text, strconv.Itoa(code)) {
			return code, true
		}
	}
	return 0, false
}
