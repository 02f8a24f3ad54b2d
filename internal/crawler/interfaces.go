package crawler

import (
	"context"
	"iter"
	"time"
)

// Renderer fetches and renders a URL, typically through a headless browser.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (RenderedPage, error)
}

// PolicyResolver interprets a site's crawl policy.
type PolicyResolver interface {
	Resolve(ctx context.Context, company, rawURL string) PolicyDecision
}

// ChallengeDetector flags bot-challenge pages.
type ChallengeDetector interface {
	LooksLikeChallenge(html string) bool
}

// ListingExtractor turns a rendered page into a single-use listing sequence.
type ListingExtractor interface {
	Extract(target CompanyTarget, page RenderedPage) iter.Seq[JobListing]
}

// ListingRecorder persists one extracted listing.
type ListingRecorder interface {
	RecordListing(ctx context.Context, listing JobListing) error
}

// Notifier receives the listings of a finished run.
type Notifier interface {
	Notify(ctx context.Context, result RunResult) error
}

// RequestLog is the append-only audit trail.
type RequestLog interface {
	AppendRequestLog(ctx context.Context, entry RequestLogEntry) error
	RequestLog(ctx context.Context) ([]RequestLogEntry, error)
	// PurgeCompany removes every entry for company and returns how many were dropped.
	PurgeCompany(ctx context.Context, company string) (int, error)
}

// ScrapeHistory is the rolling record of processed companies.
type ScrapeHistory interface {
	AppendScrapeHistory(ctx context.Context, company string, at time.Time) error
	ScrapeHistory(ctx context.Context) ([]ScrapeHistoryEntry, error)
}

// PauseStore persists the global pause deadline.
type PauseStore interface {
	PauseUntil(ctx context.Context) (time.Time, error)
	SetPauseUntil(ctx context.Context, until time.Time) error
}

// StateStore groups the three persisted pieces of engine state.
type StateStore interface {
	RequestLog
	ScrapeHistory
	PauseStore
}

// RunLocker guards against overlapping runs across processes.
type RunLocker interface {
	TryLock() (bool, error)
	Unlock() error
}

// SnapshotStore keeps rendered markup for offline triage and returns a URI.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, company string, page RenderedPage) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Sleeper blocks for the given duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
