package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLimiter_Wait(t *testing.T) {
	t.Parallel()
	var (
		mu     sync.Mutex
		delays []string
	)
	l := New(Config{
		DefaultRPS:   10, // 10 requests per second = 100ms interval
		DefaultBurst: 1,
		OnDelay: func(domain string, _ time.Duration) {
			mu.Lock()
			delays = append(delays, domain)
			mu.Unlock()
		},
	})
	ctx := context.Background()

	// Consume initial token
	if err := l.Wait(ctx, "https://Test.com/a"); err != nil {
		t.Fatal(err)
	}

	// Next one should wait ~100ms
	start := time.Now()
	if err := l.Wait(ctx, "https://test.com/b"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(delays) != 1 || delays[0] != "test.com" {
		t.Fatalf("expected one delay for test.com, got %v", delays)
	}
}

func TestLimiter_DifferentDomains(t *testing.T) {
	t.Parallel()
	l := New(Config{
		DefaultRPS:   1, // 1 RPS = 1s interval
		DefaultBurst: 1,
	})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.com/1"); err != nil {
		t.Fatal(err)
	}

	// Domain B should not be blocked by A
	start := time.Now()
	if err := l.Wait(ctx, "https://b.com/1"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("domain B blocked unexpectedly")
	}
	if l.Domains() != 2 {
		t.Fatalf("expected 2 domains, got %d", l.Domains())
	}
}

func TestLimiter_CanceledContext(t *testing.T) {
	t.Parallel()
	l := New(Config{DefaultRPS: 0.001, DefaultBurst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Wait(ctx, "https://slow.test"); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := l.Wait(ctx, "https://slow.test"); err == nil {
		t.Fatal("expected error once the context is canceled")
	}
}

func TestLimiter_NilAndUnlimited(t *testing.T) {
	t.Parallel()
	var l *Limiter
	if err := l.Wait(context.Background(), "https://x.test"); err != nil {
		t.Fatalf("nil limiter should not block: %v", err)
	}
	unlimited := New(Config{})
	for range 50 {
		if err := unlimited.Wait(context.Background(), "https://x.test"); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDomain(t *testing.T) {
	t.Parallel()
	if got := Domain("https://Jobs.Example.com:8443/x"); got != "jobs.example.com" {
		t.Fatalf("unexpected domain %q", got)
	}
	if got := Domain("::not a url"); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}
