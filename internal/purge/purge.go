// Package purge removes everything the crawler persisted about one company.
package purge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// ErrEmptyCompany is returned when no company name is given.
var ErrEmptyCompany = errors.New("company name is required")

// ListingPurger deletes persisted job records of a company.
type ListingPurger interface {
	DeleteCompany(ctx context.Context, company string) (int, error)
}

// Result reports what a purge removed.
type Result struct {
	Company    string `json:"company"`
	LogEntries int    `json:"log_entries"`
	Listings   int    `json:"listings"`
}

// Service runs purge-by-company against the request log and listing store.
type Service struct {
	log      crawler.RequestLog
	listings ListingPurger
	clock    crawler.Clock
	logger   *zap.Logger
}

// New builds a Service. listings may be nil when no listing store is configured.
func New(log crawler.RequestLog, listings ListingPurger, clock crawler.Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{log: log, listings: listings, clock: clock, logger: logger.Named("purge")}
}

// PurgeCompany removes the company's request log entries and listings, then
// records one delete_request entry holding the counts.
func (s *Service) PurgeCompany(ctx context.Context, company string) (Result, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return Result{}, ErrEmptyCompany
	}
	result := Result{Company: company}

	removed, err := s.log.PurgeCompany(ctx, company)
	if err != nil {
		return result, fmt.Errorf("purge request log: %w", err)
	}
	result.LogEntries = removed

	if s.listings != nil {
		deleted, err := s.listings.DeleteCompany(ctx, company)
		if err != nil {
			return result, fmt.Errorf("delete listings: %w", err)
		}
		result.Listings = deleted
	}

	entry := crawler.RequestLogEntry{
		Kind:      crawler.LogKindDeleteRequest,
		Company:   company,
		Timestamp: s.clock.Now().Unix(),
		Status:    fmt.Sprintf("purged %d log entries, %d listings", result.LogEntries, result.Listings),
	}
	if err := s.log.AppendRequestLog(ctx, entry); err != nil {
		return result, fmt.Errorf("record delete request: %w", err)
	}
	s.logger.Info("company purged",
		zap.String("company", company),
		zap.Int("log_entries", result.LogEntries),
		zap.Int("listings", result.Listings),
	)
	return result, nil
}
