// Package redis keeps the crawler's durable state in Redis so several hosts
// can share one audit trail, quota window, and pause deadline.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

const (
	defaultPrefix    = "career-crawler:"
	requestLogKey    = "request_log"
	scrapeHistoryKey = "scrape_history"
	pauseUntilKey    = "pause_until"
	maxPurgeRetries  = 5
	historyMemberSep = "|"
)

// StateStore implements crawler.StateStore on Redis.
//
// The request log is a list of JSON documents, scrape history is a sorted set
// scored by unix seconds, and the pause deadline is a plain string key.
type StateStore struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// NewStateStore wraps an existing client; prefix namespaces every key.
func NewStateStore(client redis.UniversalClient, prefix string, logger *zap.Logger) (*StateStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateStore{client: client, prefix: prefix, logger: logger}, nil
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *StateStore) key(name string) string {
	return s.prefix + name
}

// AppendRequestLog pushes entry onto the log list.
func (s *StateStore) AppendRequestLog(ctx context.Context, entry crawler.RequestLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal request log entry: %w", err)
	}
	if err := s.client.RPush(ctx, s.key(requestLogKey), payload).Err(); err != nil {
		return fmt.Errorf("append request log: %w", err)
	}
	return nil
}

// RequestLog returns every entry, skipping members that fail to decode.
func (s *StateStore) RequestLog(ctx context.Context) ([]crawler.RequestLogEntry, error) {
	raw, err := s.client.LRange(ctx, s.key(requestLogKey), 0, -1).Result()
	if err != nil {
		s.logger.Warn("read request log failed; treating as empty", zap.Error(err))
		return nil, nil
	}
	return s.decodeLog(raw), nil
}

// PurgeCompany rewrites the log list without company inside a WATCH
// transaction, retrying when another writer races it.
func (s *StateStore) PurgeCompany(ctx context.Context, company string) (int, error) {
	key := s.key(requestLogKey)
	removed := 0
	txf := func(tx *redis.Tx) error {
		raw, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}
		kept := make([]any, 0, len(raw))
		removed = 0
		for _, member := range raw {
			var entry crawler.RequestLogEntry
			if err := json.Unmarshal([]byte(member), &entry); err == nil && entry.Company == company {
				removed++
				continue
			}
			kept = append(kept, member)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(kept) > 0 {
				pipe.RPush(ctx, key, kept...)
			}
			return nil
		})
		return err
	}
	for range maxPurgeRetries {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return removed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return 0, fmt.Errorf("purge request log: %w", err)
	}
	return 0, fmt.Errorf("purge request log: too many concurrent writers")
}

// AppendScrapeHistory adds company at and trims entries past retention in
// one MULTI block.
func (s *StateStore) AppendScrapeHistory(ctx context.Context, company string, at time.Time) error {
	key := s.key(scrapeHistoryKey)
	member := strconv.FormatInt(at.UnixNano(), 10) + historyMemberSep + company
	cutoff := at.Add(-crawler.HistoryRetention).Unix()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.Unix()), Member: member})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		return nil
	})
	if err != nil {
		return fmt.Errorf("append scrape history: %w", err)
	}
	return nil
}

// ScrapeHistory returns retained entries ordered by timestamp.
func (s *StateStore) ScrapeHistory(ctx context.Context) ([]crawler.ScrapeHistoryEntry, error) {
	members, err := s.client.ZRangeWithScores(ctx, s.key(scrapeHistoryKey), 0, -1).Result()
	if err != nil {
		s.logger.Warn("read scrape history failed; treating as empty", zap.Error(err))
		return nil, nil
	}
	out := make([]crawler.ScrapeHistoryEntry, 0, len(members))
	for _, z := range members {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		_, company, found := strings.Cut(member, historyMemberSep)
		if !found {
			s.logger.Warn("skip malformed scrape history member", zap.String("member", member))
			continue
		}
		out = append(out, crawler.ScrapeHistoryEntry{Company: company, Timestamp: int64(z.Score)})
	}
	return out, nil
}

// PauseUntil reads the pause deadline; missing or malformed means not paused.
func (s *StateStore) PauseUntil(ctx context.Context) (time.Time, error) {
	val, err := s.client.Get(ctx, s.key(pauseUntilKey)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("read pause state failed; treating as not paused", zap.Error(err))
		}
		return time.Time{}, nil
	}
	unix, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil || unix <= 0 {
		if err != nil {
			s.logger.Warn("pause state malformed; treating as not paused", zap.String("value", val))
		}
		return time.Time{}, nil
	}
	return time.Unix(unix, 0).UTC(), nil
}

// SetPauseUntil replaces the pause deadline. A zero time clears it.
func (s *StateStore) SetPauseUntil(ctx context.Context, until time.Time) error {
	key := s.key(pauseUntilKey)
	var err error
	if until.IsZero() {
		err = s.client.Del(ctx, key).Err()
	} else {
		err = s.client.Set(ctx, key, strconv.FormatInt(until.Unix(), 10), 0).Err()
	}
	if err != nil {
		return fmt.Errorf("write pause state: %w", err)
	}
	return nil
}

func (s *StateStore) decodeLog(raw []string) []crawler.RequestLogEntry {
	out := make([]crawler.RequestLogEntry, 0, len(raw))
	for _, member := range raw {
		var entry crawler.RequestLogEntry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			s.logger.Warn("skip malformed request log member", zap.Error(err))
			continue
		}
		out = append(out, entry)
	}
	return out
}
