package local

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// State file names inside the state directory.
const (
	RequestLogFile    = "request_log.json"
	ScrapeHistoryFile = "scrape_history.json"
	PauseFile         = "pause_until.json"
)

type pauseDocument struct {
	PauseUntil int64 `json:"pause_until"`
}

// StateStore implements crawler.StateStore with one JSON document per
// piece of state. Each document is guarded by an in-process mutex and an
// exclusive flock on <file>.lock so concurrent processes never lose updates.
// Unreadable documents are treated as empty.
type StateStore struct {
	dir    string
	logger *zap.Logger
	locks  map[string]*sync.Mutex
}

// NewStateStore opens (creating if needed) a state directory.
func NewStateStore(dir string, logger *zap.Logger) (*StateStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if err := ensureWritableDir(dir); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateStore{
		dir:    dir,
		logger: logger,
		locks: map[string]*sync.Mutex{
			RequestLogFile:    {},
			ScrapeHistoryFile: {},
			PauseFile:         {},
		},
	}, nil
}

// AppendRequestLog appends entry with a read-modify-write under lock.
func (s *StateStore) AppendRequestLog(_ context.Context, entry crawler.RequestLogEntry) error {
	return s.mutate(RequestLogFile, func(raw []byte) ([]byte, error) {
		entries := s.decodeLog(raw)
		entries = append(entries, entry)
		return json.MarshalIndent(entries, "", "  ")
	})
}

// RequestLog returns the persisted audit trail.
func (s *StateStore) RequestLog(context.Context) ([]crawler.RequestLogEntry, error) {
	raw, err := s.read(RequestLogFile)
	if err != nil {
		return nil, err
	}
	return s.decodeLog(raw), nil
}

// PurgeCompany rewrites the audit trail without entries for company.
func (s *StateStore) PurgeCompany(_ context.Context, company string) (int, error) {
	removed := 0
	err := s.mutate(RequestLogFile, func(raw []byte) ([]byte, error) {
		entries := s.decodeLog(raw)
		kept := make([]crawler.RequestLogEntry, 0, len(entries))
		for _, entry := range entries {
			if entry.Company == company {
				removed++
				continue
			}
			kept = append(kept, entry)
		}
		return json.MarshalIndent(kept, "", "  ")
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// AppendScrapeHistory appends company and prunes entries past retention.
func (s *StateStore) AppendScrapeHistory(_ context.Context, company string, at time.Time) error {
	return s.mutate(ScrapeHistoryFile, func(raw []byte) ([]byte, error) {
		history := s.decodeHistory(raw)
		history = append(history, crawler.ScrapeHistoryEntry{Company: company, Timestamp: at.Unix()})
		return json.MarshalIndent(crawler.PruneHistory(history, at), "", "  ")
	})
}

// ScrapeHistory returns the persisted scrape history.
func (s *StateStore) ScrapeHistory(context.Context) ([]crawler.ScrapeHistoryEntry, error) {
	raw, err := s.read(ScrapeHistoryFile)
	if err != nil {
		return nil, err
	}
	return s.decodeHistory(raw), nil
}

// PauseUntil returns the persisted pause deadline; zero means not paused.
func (s *StateStore) PauseUntil(context.Context) (time.Time, error) {
	raw, err := s.read(PauseFile)
	if err != nil {
		return time.Time{}, err
	}
	if len(raw) == 0 {
		return time.Time{}, nil
	}
	var doc pauseDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn("pause state unreadable; treating as not paused", zap.Error(err))
		return time.Time{}, nil
	}
	if doc.PauseUntil <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(doc.PauseUntil, 0).UTC(), nil
}

// SetPauseUntil replaces the pause deadline. A zero time clears it.
func (s *StateStore) SetPauseUntil(_ context.Context, until time.Time) error {
	doc := pauseDocument{}
	if !until.IsZero() {
		doc.PauseUntil = until.Unix()
	}
	return s.mutate(PauseFile, func([]byte) ([]byte, error) {
		return json.Marshal(doc)
	})
}

func (s *StateStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *StateStore) mutate(name string, fn func(raw []byte) ([]byte, error)) error {
	mu := s.locks[name]
	mu.Lock()
	defer mu.Unlock()
	path := s.path(name)
	return withFileLock(path, func() error {
		raw, err := readFile(path)
		if err != nil {
			s.logger.Warn("state file unreadable; starting empty", zap.String("file", name), zap.Error(err))
			raw = nil
		}
		updated, err := fn(raw)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		return writeFileAtomic(path, updated)
	})
}

func (s *StateStore) read(name string) ([]byte, error) {
	mu := s.locks[name]
	mu.Lock()
	defer mu.Unlock()
	path := s.path(name)
	var raw []byte
	err := withFileLock(path, func() error {
		var readErr error
		raw, readErr = readFile(path)
		return readErr
	})
	if err != nil {
		s.logger.Warn("state file unreadable; treating as empty", zap.String("file", name), zap.Error(err))
		return nil, nil
	}
	return raw, nil
}

func (s *StateStore) decodeLog(raw []byte) []crawler.RequestLogEntry {
	if len(raw) == 0 {
		return nil
	}
	var entries []crawler.RequestLogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Warn("request log malformed; treating as empty", zap.Error(err))
		return nil
	}
	return entries
}

func (s *StateStore) decodeHistory(raw []byte) []crawler.ScrapeHistoryEntry {
	if len(raw) == 0 {
		return nil
	}
	var entries []crawler.ScrapeHistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Warn("scrape history malformed; treating as empty", zap.Error(err))
		return nil
	}
	return entries
}
