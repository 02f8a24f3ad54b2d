// Package zaplog reports run results through the structured logger.
package zaplog

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// Notifier logs one line per listing plus a run summary.
type Notifier struct {
	logger *zap.Logger
}

// New returns a Notifier writing to logger.
func New(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{logger: logger.Named("notify")}
}

// Notify never fails.
func (n *Notifier) Notify(_ context.Context, result crawler.RunResult) error {
	for _, listing := range result.Listings {
		n.logger.Info("job listing",
			zap.String("run_id", result.RunID),
			zap.String("company", listing.Company),
			zap.String("title", listing.Title),
			zap.String("link", listing.NormalizedLink),
			zap.String("keyword", listing.MatchedKeyword),
			zap.String("location", listing.Location),
		)
	}
	n.logger.Info("run summary",
		zap.String("run_id", result.RunID),
		zap.String("stop_reason", string(result.Stop)),
		zap.Int("listings", len(result.Listings)),
	)
	return nil
}
