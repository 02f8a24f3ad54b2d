// Package memory contains an in-memory notifier for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// Publisher stores notified run results for inspection.
type Publisher struct {
	mu      sync.RWMutex
	results []crawler.RunResult
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Notify records the run result.
func (p *Publisher) Notify(_ context.Context, result crawler.RunResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	result.Listings = append([]crawler.JobListing(nil), result.Listings...)
	p.results = append(p.results, result)
	return nil
}

// Results returns the recorded notifications.
func (p *Publisher) Results() []crawler.RunResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]crawler.RunResult, len(p.results))
	copy(out, p.results)
	return out
}
