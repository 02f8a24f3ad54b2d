package crawler

import (
	"strings"
	"time"
)

// CompanyTarget is one career page to scrape during a run.
type CompanyTarget struct {
	Name     string   `json:"name" mapstructure:"name"`
	URL      string   `json:"url" mapstructure:"url"`
	Keywords []string `json:"keywords" mapstructure:"keywords"`
	Location string   `json:"location" mapstructure:"location"`
}

// RenderedPage is the markup returned by a Renderer for one fetch attempt.
type RenderedPage struct {
	URL        string
	HTML       string
	StatusCode int
}

// JobListing is a candidate posting extracted from a career page.
type JobListing struct {
	Company        string `json:"company"`
	Title          string `json:"title"`
	NormalizedLink string `json:"link"`
	MatchedKeyword string `json:"matched_keyword"`
	Location       string `json:"location"`
}

// PolicyDecision is the outcome of interpreting a site's robots.txt.
type PolicyDecision struct {
	Allowed bool
	// CrawlDelay is in seconds; nil when the policy does not advertise one.
	CrawlDelay *float64
}

// CrawlDelayDuration converts CrawlDelay into a duration.
func (d PolicyDecision) CrawlDelayDuration() (time.Duration, bool) {
	if d.CrawlDelay == nil {
		return 0, false
	}
	return time.Duration(*d.CrawlDelay * float64(time.Second)), true
}

// ScrapeHistoryEntry records one successfully processed company.
type ScrapeHistoryEntry struct {
	Company   string `json:"company"`
	Timestamp int64  `json:"timestamp"`
}

// LogKind classifies request log entries.
type LogKind string

// Request log kinds.
const (
	LogKindPolicy        LogKind = "policy"
	LogKindListing       LogKind = "listing"
	LogKindCaptcha       LogKind = "captcha"
	LogKindError         LogKind = "error"
	LogKindSkip          LogKind = "skip"
	LogKindDeleteRequest LogKind = "delete_request"
)

// RequestLogEntry is one row of the append-only audit trail.
type RequestLogEntry struct {
	Kind      LogKind `json:"type"`
	Company   string  `json:"company"`
	URL       string  `json:"url"`
	Timestamp int64   `json:"timestamp"`
	Status    string  `json:"status"`
}

// StopReason explains why a run ended.
type StopReason string

// Run stop reasons.
const (
	StopCompleted StopReason = "completed"
	StopPaused    StopReason = "paused"
	StopQuota     StopReason = "quota"
	StopBlocked   StopReason = "blocked"
	StopBusy      StopReason = "busy"
	StopCanceled  StopReason = "canceled"
)

// Outcome is the per-company result within a run.
type Outcome string

// Company outcomes.
const (
	OutcomeScraped    Outcome = "scraped"
	OutcomePolicySkip Outcome = "policy_skip"
	OutcomeCaptcha    Outcome = "captcha"
	OutcomeFailed     Outcome = "failed"
	OutcomeBlocked    Outcome = "blocked"
)

// CompanyOutcome summarizes what happened to one company in a run.
type CompanyOutcome struct {
	Company  string  `json:"company"`
	Outcome  Outcome `json:"outcome"`
	Listings int     `json:"listings"`
	Error    string  `json:"error,omitempty"`
}

// RunResult is returned by every Engine.Run call.
type RunResult struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Stop       StopReason       `json:"stop_reason"`
	Listings   []JobListing     `json:"listings"`
	Companies  []CompanyOutcome `json:"companies"`
}

// NormalizeKeywords trims, drops blanks and removes duplicates while keeping order.
func NormalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// HistoryRetention bounds how long scrape history entries are kept.
const HistoryRetention = 7 * 24 * time.Hour

// PruneHistory drops entries older than HistoryRetention before now. The
// result reuses the backing array of entries.
func PruneHistory(entries []ScrapeHistoryEntry, now time.Time) []ScrapeHistoryEntry {
	cutoff := now.Add(-HistoryRetention).Unix()
	kept := entries[:0]
	for _, entry := range entries {
		if entry.Timestamp >= cutoff {
			kept = append(kept, entry)
		}
	}
	return kept
}
