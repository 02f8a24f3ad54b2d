package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicyBackoff(t *testing.T) {
	t.Parallel()
	policy := DefaultRetryPolicy()
	require.Equal(t, time.Duration(0), policy.Backoff(0))
	require.Equal(t, time.Second, policy.Backoff(1))
	require.Equal(t, 2*time.Second, policy.Backoff(2))
	require.Equal(t, 4*time.Second, policy.Backoff(3))
}

func TestRetryPolicyClassify(t *testing.T) {
	t.Parallel()
	policy := DefaultRetryPolicy()
	tests := []struct {
		name string
		err  error
		kind FetchKind
		code int
	}{
		{name: "success", err: nil, kind: FetchSuccess},
		{name: "timeout", err: errors.New("navigation timeout"), kind: FetchRetryable},
		{name: "structured 429", err: &StatusError{Code: 429}, kind: FetchFatal, code: 429},
		{name: "wrapped 403", err: fmt.Errorf("render: %w", &StatusError{Code: 403, URL: "https://a.test"}), kind: FetchFatal, code: 403},
		{name: "structured 404", err: &StatusError{Code: 404}, kind: FetchRetryable},
		{name: "textual 503", err: errors.New("upstream said 503 service unavailable"), kind: FetchFatal, code: 503},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			outcome := policy.Classify(RenderedPage{}, tt.err)
			require.Equal(t, tt.kind, outcome.Kind)
			require.Equal(t, tt.code, outcome.BlockingCode)
		})
	}
}

func TestRetryPolicyFetchWaitsSevenSeconds(t *testing.T) {
	t.Parallel()
	const target = "https://acme.test/careers"
	renderer := &scriptedRenderer{steps: map[string][]renderStep{
		target: {
			{err: errors.New("boom 1")},
			{err: errors.New("boom 2")},
			{err: errors.New("boom 3")},
			{page: RenderedPage{URL: target, HTML: "ok", StatusCode: 200}},
		},
	}}
	sleeper := &recordingSleeper{}

	outcome := DefaultRetryPolicy().Fetch(context.Background(), renderer, sleeper, target)
	require.Equal(t, FetchSuccess, outcome.Kind)
	require.Equal(t, 4, outcome.Attempts)
	require.Equal(t, "ok", outcome.Page.HTML)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.sleeps)
	require.Equal(t, 7*time.Second, sleeper.total())
}

func TestRetryPolicyFetchExhausts(t *testing.T) {
	t.Parallel()
	renderer := &scriptedRenderer{steps: map[string][]renderStep{
		"u": {{err: errors.New("first")}, {err: errors.New("last")}},
	}}
	sleeper := &recordingSleeper{}

	outcome := DefaultRetryPolicy().Fetch(context.Background(), renderer, sleeper, "u")
	require.Equal(t, FetchRetryable, outcome.Kind)
	require.EqualError(t, outcome.Err, "last")
	require.Equal(t, 4, renderer.callCount())
	require.Equal(t, 7*time.Second, sleeper.total())
}

func TestRetryPolicyFetchClassifiesFinalAttempt(t *testing.T) {
	t.Parallel()
	renderer := &scriptedRenderer{steps: map[string][]renderStep{
		"u": {{err: errors.New("flaky")}, {err: &StatusError{Code: 429, URL: "u"}}},
	}}
	sleeper := &recordingSleeper{}

	outcome := DefaultRetryPolicy().Fetch(context.Background(), renderer, sleeper, "u")
	require.Equal(t, FetchFatal, outcome.Kind)
	require.Equal(t, 429, outcome.BlockingCode)
	require.Equal(t, 4, outcome.Attempts)
	require.Equal(t, 4, renderer.callCount(), "blocking codes are retried like any other error")
	require.Equal(t, 7*time.Second, sleeper.total())
}

func TestRetryPolicyFetchRecoversFromTransientBlock(t *testing.T) {
	t.Parallel()
	renderer := &scriptedRenderer{steps: map[string][]renderStep{
		"u": {
			{err: &StatusError{Code: 503, URL: "u"}},
			{page: RenderedPage{URL: "u", HTML: "ok", StatusCode: 200}},
		},
	}}

	outcome := DefaultRetryPolicy().Fetch(context.Background(), renderer, &recordingSleeper{}, "u")
	require.Equal(t, FetchSuccess, outcome.Kind)
	require.Zero(t, outcome.BlockingCode)
	require.Equal(t, 2, outcome.Attempts)
	require.Equal(t, "ok", outcome.Page.HTML)
}

func TestRetryPolicyFetchEarlierBlockDoesNotStick(t *testing.T) {
	t.Parallel()
	blocked := &StatusError{Code: 503, URL: "u"}
	renderer := &scriptedRenderer{steps: map[string][]renderStep{
		"u": {{err: blocked}, {err: blocked}, {err: blocked}, {err: errors.New("navigation timeout")}},
	}}

	outcome := DefaultRetryPolicy().Fetch(context.Background(), renderer, &recordingSleeper{}, "u")
	require.Equal(t, FetchRetryable, outcome.Kind)
	require.Zero(t, outcome.BlockingCode)
	require.EqualError(t, outcome.Err, "navigation timeout")
}

func TestRetryPolicyFetchHonorsCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	renderer := &scriptedRenderer{steps: map[string][]renderStep{"u": {{err: errors.New("down")}}}}

	outcome := DefaultRetryPolicy().Fetch(ctx, renderer, &recordingSleeper{}, "u")
	require.Equal(t, FetchRetryable, outcome.Kind)
	require.ErrorIs(t, outcome.Err, context.Canceled)
	require.Equal(t, 1, renderer.callCount())
}
