package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// StateStore implements crawler.StateStore with mutex-guarded slices.
type StateStore struct {
	mu      sync.RWMutex
	log     []crawler.RequestLogEntry
	history []crawler.ScrapeHistoryEntry
	pause   time.Time
}

// NewStateStore constructs an empty StateStore.
func NewStateStore() *StateStore {
	return &StateStore{}
}

// AppendRequestLog appends entry to the audit trail.
func (s *StateStore) AppendRequestLog(_ context.Context, entry crawler.RequestLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, entry)
	return nil
}

// RequestLog returns a copy of the audit trail.
func (s *StateStore) RequestLog(context.Context) ([]crawler.RequestLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]crawler.RequestLogEntry(nil), s.log...), nil
}

// PurgeCompany drops every audit entry for company.
func (s *StateStore) PurgeCompany(_ context.Context, company string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]crawler.RequestLogEntry, 0, len(s.log))
	for _, entry := range s.log {
		if entry.Company != company {
			kept = append(kept, entry)
		}
	}
	removed := len(s.log) - len(kept)
	s.log = kept
	return removed, nil
}

// AppendScrapeHistory records company at and prunes entries older than the
// retention window relative to at.
func (s *StateStore) AppendScrapeHistory(_ context.Context, company string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = crawler.PruneHistory(
		append(s.history, crawler.ScrapeHistoryEntry{Company: company, Timestamp: at.Unix()}),
		at,
	)
	return nil
}

// ScrapeHistory returns a copy of the retained history.
func (s *StateStore) ScrapeHistory(context.Context) ([]crawler.ScrapeHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]crawler.ScrapeHistoryEntry(nil), s.history...), nil
}

// PauseUntil returns the pause deadline, zero when unset.
func (s *StateStore) PauseUntil(context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pause, nil
}

// SetPauseUntil replaces the pause deadline.
func (s *StateStore) SetPauseUntil(_ context.Context, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pause = until
	return nil
}
