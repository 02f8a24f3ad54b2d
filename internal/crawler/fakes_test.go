package crawler

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSleeper advances the clock instead of blocking.
type recordingSleeper struct {
	mu     sync.Mutex
	clock  *fakeClock
	sleeps []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
	if s.clock != nil {
		s.clock.Advance(d)
	}
	return nil
}

func (s *recordingSleeper) total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum time.Duration
	for _, d := range s.sleeps {
		sum += d
	}
	return sum
}

type fakeState struct {
	mu      sync.Mutex
	log     []RequestLogEntry
	history []ScrapeHistoryEntry
	pause   time.Time
	failAll bool
}

func newFakeState() *fakeState {
	return &fakeState{}
}

var errStateDown = errors.New("state unavailable")

func (s *fakeState) AppendRequestLog(_ context.Context, entry RequestLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStateDown
	}
	s.log = append(s.log, entry)
	return nil
}

func (s *fakeState) RequestLog(context.Context) ([]RequestLogEntry, error) {
	return s.entries(), nil
}

func (s *fakeState) PurgeCompany(_ context.Context, company string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.log[:0]
	for _, entry := range s.log {
		if entry.Company != company {
			kept = append(kept, entry)
		}
	}
	removed := len(s.log) - len(kept)
	s.log = kept
	return removed, nil
}

func (s *fakeState) AppendScrapeHistory(_ context.Context, company string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStateDown
	}
	s.history = append(s.history, ScrapeHistoryEntry{Company: company, Timestamp: at.Unix()})
	return nil
}

func (s *fakeState) ScrapeHistory(context.Context) ([]ScrapeHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errStateDown
	}
	return append([]ScrapeHistoryEntry(nil), s.history...), nil
}

func (s *fakeState) PauseUntil(context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return time.Time{}, errStateDown
	}
	return s.pause, nil
}

func (s *fakeState) SetPauseUntil(_ context.Context, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStateDown
	}
	s.pause = until
	return nil
}

func (s *fakeState) entries() []RequestLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RequestLogEntry(nil), s.log...)
}

func (s *fakeState) entriesOf(kind LogKind) []RequestLogEntry {
	var out []RequestLogEntry
	for _, entry := range s.entries() {
		if entry.Kind == kind {
			out = append(out, entry)
		}
	}
	return out
}

type renderStep struct {
	page RenderedPage
	err  error
}

// scriptedRenderer replays steps per URL; the last step repeats.
type scriptedRenderer struct {
	mu    sync.Mutex
	steps map[string][]renderStep
	calls []string
}

func (r *scriptedRenderer) Render(_ context.Context, rawURL string) (RenderedPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, rawURL)
	steps := r.steps[rawURL]
	if len(steps) == 0 {
		return RenderedPage{URL: rawURL, HTML: "<html></html>", StatusCode: 200}, nil
	}
	step := steps[0]
	if len(steps) > 1 {
		r.steps[rawURL] = steps[1:]
	}
	return step.page, step.err
}

func (r *scriptedRenderer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type fakePolicy struct {
	mu        sync.Mutex
	decisions map[string]PolicyDecision
	calls     int
}

func (p *fakePolicy) Resolve(_ context.Context, company, _ string) PolicyDecision {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if decision, ok := p.decisions[company]; ok {
		return decision
	}
	return PolicyDecision{Allowed: true}
}

type substringDetector struct{}

func (substringDetector) LooksLikeChallenge(html string) bool {
	return strings.Contains(strings.ToLower(html), "verify you are")
}

// lineExtractor emits one listing per "title|link" line of the page body.
type lineExtractor struct{}

func (lineExtractor) Extract(target CompanyTarget, page RenderedPage) iter.Seq[JobListing] {
	return func(yield func(JobListing) bool) {
		for _, line := range strings.Split(page.HTML, "\n") {
			title, link, ok := strings.Cut(strings.TrimSpace(line), "|")
			if !ok {
				continue
			}
			listing := JobListing{
				Company:        target.Name,
				Title:          title,
				NormalizedLink: link,
				Location:       target.Location,
			}
			if !yield(listing) {
				return
			}
		}
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	listings []JobListing
	err      error
}

func (r *fakeRecorder) RecordListing(_ context.Context, listing JobListing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.listings = append(r.listings, listing)
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	results []RunResult
	err     error
}

func (n *fakeNotifier) Notify(_ context.Context, result RunResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, result)
	return n.err
}

type sequenceIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return "run-" + strings.Repeat("x", s.n), nil
}

type fakeLocker struct {
	held     bool
	unlocked int
}

func (l *fakeLocker) TryLock() (bool, error) {
	return !l.held, nil
}

func (l *fakeLocker) Unlock() error {
	l.unlocked++
	return nil
}

type fakeSnapshots struct {
	saved []string
}

func (s *fakeSnapshots) SaveSnapshot(_ context.Context, company string, _ RenderedPage) (string, error) {
	s.saved = append(s.saved, company)
	return "mem://snapshots/" + company, nil
}
