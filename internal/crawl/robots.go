package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const robotsMaxBodyBytes = 1 << 20

var crawlDelayRe = regexp.MustCompile(`(?i)crawl-delay\s*:\s*([0-9.]+)`)

// RobotsResolver fetches, parses, and caches robots.txt decisions on the
// HostState that owns them. Fetch failures degrade to permissive rather than
// blocking the crawl; an explicit 403 on robots.txt is taken as a
// disallow-all signal.
type RobotsResolver struct {
	client      *http.Client
	userAgent   string
	cacheTTL    time.Duration
	maxAttempts int
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
	logger      *zap.Logger
}

// NewRobotsResolver builds a resolver with a dedicated short-timeout client.
func NewRobotsResolver(userAgent string, timeout, cacheTTL time.Duration, logger *zap.Logger) *RobotsResolver {
	return &RobotsResolver{
		client:      &http.Client{Timeout: timeout},
		userAgent:   userAgent,
		cacheTTL:    cacheTTL,
		maxAttempts: 3,
		now:         time.Now,
		sleep:       sleepWithContext,
		logger:      logger,
	}
}

// Resolve ensures hs carries a fresh robots decision for the host of baseURL.
// While the cached decision is within the freshness window no network call is
// made.
func (r *RobotsResolver) Resolve(ctx context.Context, baseURL string, hs *HostState) error {
	hs.robotsMu.Lock()
	defer hs.robotsMu.Unlock()

	hs.mu.Lock()
	fresh := !hs.robotsFetched.IsZero() && r.now().Sub(hs.robotsFetched) < r.cacheTTL
	hs.mu.Unlock()
	if fresh {
		return nil
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)

	data, crawlDelay := r.fetchWithRetry(ctx, robotsURL)

	hs.mu.Lock()
	hs.robots = data
	hs.crawlDelay = crawlDelay
	hs.robotsFetched = r.now()
	hs.mu.Unlock()
	return nil
}

// fetchWithRetry attempts the robots fetch up to maxAttempts times with
// 2^attempt-seconds backoff. Exhausting retries yields a permissive decision.
func (r *RobotsResolver) fetchWithRetry(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, time.Duration) {
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		data, crawlDelay, retry := r.fetchOnce(ctx, robotsURL)
		if !retry {
			return data, crawlDelay
		}
		if attempt < r.maxAttempts-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			if err := r.sleep(ctx, backoff); err != nil {
				break
			}
		}
	}
	r.logger.Warn("robots fetch exhausted retries; defaulting to permissive",
		zap.String("url", robotsURL))
	return nil, 0
}

func (r *RobotsResolver) fetchOnce(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, time.Duration, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, 0, false
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("robots fetch failed", zap.String("url", robotsURL), zap.Error(err))
		return nil, 0, true
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("close robots body", zap.Error(cerr))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBodyBytes))
		if err != nil {
			return nil, 0, true
		}
		data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
		if err != nil {
			return nil, 0, true
		}
		return data, parseCrawlDelay(string(body)), false
	case resp.StatusCode == http.StatusNotFound:
		// No robots file is not a disallow signal.
		return nil, 0, false
	case resp.StatusCode == http.StatusForbidden:
		data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, nil)
		if err != nil {
			return nil, 0, false
		}
		return data, 0, false
	default:
		return nil, 0, true
	}
}

// parseCrawlDelay scans for a crawl-delay directive; not every parser
// exposes it.
func parseCrawlDelay(body string) time.Duration {
	m := crawlDelayRe.FindStringSubmatch(body)
	if m == nil {
		return 0
	}
	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// Allowed answers whether our agent may fetch rawURL under the host's cached
// decision. A missing decision is permissive.
func (r *RobotsResolver) Allowed(hs *HostState, rawURL string) bool {
	hs.mu.Lock()
	data := hs.robots
	hs.mu.Unlock()
	if data == nil {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	group := data.FindGroup(r.userAgent)
	if group == nil {
		return true
	}
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return group.Test(path)
}

// CrawlDelay returns the cached crawl-delay hint for the host, if any.
func (r *RobotsResolver) CrawlDelay(hs *HostState) time.Duration {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.crawlDelay
}

// hostKey lowercases a host for use as a pool key.
func hostKey(host string) string {
	return strings.ToLower(host)
}
