package crawler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPolicyTimeout = 5 * time.Second
	maxRobotsBytes       = 1 << 20
)

// RobotsResolver fetches robots.txt and turns it into a PolicyDecision.
// Failures are fail-open but always leave a policy entry in the request log.
type RobotsResolver struct {
	client    *http.Client
	userAgent string
	log       RequestLog
	clock     Clock
	logger    *zap.Logger
}

// NewRobotsResolver builds a resolver that identifies itself with userAgent.
func NewRobotsResolver(
	userAgent string,
	timeout time.Duration,
	log RequestLog,
	clock Clock,
	logger *zap.Logger,
) *RobotsResolver {
	if timeout <= 0 {
		timeout = defaultPolicyTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsResolver{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		log:       log,
		clock:     clock,
		logger:    logger,
	}
}

// Resolve implements PolicyResolver.
func (r *RobotsResolver) Resolve(ctx context.Context, company, rawURL string) PolicyDecision {
	allowAll := PolicyDecision{Allowed: true}
	robotsURL, err := RobotsURL(rawURL)
	if err != nil {
		r.record(ctx, company, rawURL, "error: "+err.Error())
		return allowAll
	}

	status, body, err := r.fetch(ctx, robotsURL)
	if err != nil {
		r.logger.Warn("robots fetch failed; allowing access",
			zap.String("company", company),
			zap.String("url", robotsURL),
			zap.Error(err),
		)
		r.record(ctx, company, robotsURL, "error: "+err.Error())
		return allowAll
	}
	r.record(ctx, company, robotsURL, strconv.Itoa(status))
	if status != http.StatusOK {
		r.logger.Info("robots unavailable; allowing access",
			zap.String("company", company),
			zap.Int("status_code", status),
		)
		return allowAll
	}
	return ParseRobots(body, r.userAgent)
}

func (r *RobotsResolver) fetch(ctx context.Context, robotsURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("Failed to close robots response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read robots body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (r *RobotsResolver) record(ctx context.Context, company, target, status string) {
	if r.log == nil {
		return
	}
	entry := RequestLogEntry{
		Kind:      LogKindPolicy,
		Company:   company,
		URL:       target,
		Timestamp: r.now().Unix(),
		Status:    status,
	}
	if err := r.log.AppendRequestLog(ctx, entry); err != nil {
		r.logger.Warn("append policy log failed", zap.String("company", company), zap.Error(err))
	}
}

func (r *RobotsResolver) now() time.Time {
	if r.clock == nil {
		return time.Now().UTC()
	}
	return r.clock.Now()
}

// RobotsURL returns the robots.txt location at the origin of rawURL.
func RobotsURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("url %q has no origin", rawURL)
	}
	origin := url.URL{Scheme: strings.ToLower(parsed.Scheme), Host: parsed.Host, Path: "/robots.txt"}
	return origin.String(), nil
}

// ParseRobots interprets robots.txt for userAgent. Only a root disallow under a
// matching group denies access; crawl-delay under a matching group is kept,
// last value wins.
func ParseRobots(body []byte, userAgent string) PolicyDecision {
	decision := PolicyDecision{Allowed: true}
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	var (
		active       bool
		agentsOpened bool
	)
	for scanner.Scan() {
		key, value, ok := splitDirective(scanner.Text())
		if !ok {
			continue
		}
		switch key {
		case "user-agent":
			if !agentsOpened {
				active = false
			}
			agentsOpened = true
			if agentMatches(value, userAgent) {
				active = true
			}
		case "disallow":
			agentsOpened = false
			if active && value == "/" {
				decision.Allowed = false
			}
		case "crawl-delay":
			agentsOpened = false
			if !active {
				continue
			}
			delay, err := strconv.ParseFloat(value, 64)
			if err != nil || delay < 0 {
				continue
			}
			decision.CrawlDelay = &delay
		default:
			agentsOpened = false
		}
	}
	return decision
}

func splitDirective(line string) (string, string, bool) {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", false
	}
	key, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value), true
}

func agentMatches(agent, userAgent string) bool {
	agent = strings.TrimSpace(agent)
	if agent == "*" {
		return true
	}
	if agent == "" || userAgent == "" {
		return false
	}
	if strings.EqualFold(agent, userAgent) {
		return true
	}
	product, _, _ := strings.Cut(userAgent, "/")
	return strings.EqualFold(agent, strings.TrimSpace(product))
}
