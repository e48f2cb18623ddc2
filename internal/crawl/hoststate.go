package crawl

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// PolitenessConfig carries the per-host scheduling knobs.
type PolitenessConfig struct {
	DelayBase            time.Duration
	DelayJitter          time.Duration
	BackoffInitial       time.Duration
	BackoffCap           time.Duration
	MaxConsecutiveErrors int
	MaxPages             int
}

// HostState tracks everything the engine knows about one target host. A
// single instance is shared by every practice whose website resolves to the
// host, so all fields are guarded by mu; the gate serializes in-flight
// requests.
type HostState struct {
	host string
	gate chan struct{}

	mu           sync.Mutex
	lastRequest  time.Time
	backoff      time.Duration
	consecErrors int

	robotsMu      sync.Mutex
	robots        *robotstxt.RobotsData
	robotsFetched time.Time
	crawlDelay    time.Duration

	pagesCount      int
	pagesAttempted  int
	pagesFetched    int
	http2xx         int
	http403         int
	http429         int
	http5xx         int
	other4xx        int
	captchaHits     int
	disallowedPaths int
	backoffEvents   int
	evidence        []string
}

const evidenceSampleCap = 5

func newHostState(host string) *HostState {
	return &HostState{
		host: host,
		gate: make(chan struct{}, 1),
	}
}

// Acquire takes the host's single request slot.
func (h *HostState) Acquire(ctx context.Context) error {
	select {
	case h.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("acquire host slot for %s: %w", h.host, ctx.Err())
	}
}

// Release frees the request slot taken by Acquire.
func (h *HostState) Release() {
	select {
	case <-h.gate:
	default:
	}
}

// ConsecutiveErrors returns the current error streak.
func (h *HostState) ConsecutiveErrors() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.consecErrors
}

// Backoff returns the current backoff duration.
func (h *HostState) Backoff() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.backoff
}

// PageBudgetLeft reports whether the host may still be fetched given the
// per-host page cap.
func (h *HostState) PageBudgetLeft(maxPages int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pagesCount < maxPages
}

// CountPage consumes one unit of the host page budget.
func (h *HostState) CountPage() {
	h.mu.Lock()
	h.pagesCount++
	h.mu.Unlock()
}

// CountDisallowed records a path filtered out by robots rules.
func (h *HostState) CountDisallowed() {
	h.mu.Lock()
	h.disallowedPaths++
	h.mu.Unlock()
}

// CountCaptcha records an anti-bot challenge hit. The page is treated as a
// failed fetch, so the error streak grows too.
func (h *HostState) CountCaptcha() {
	h.mu.Lock()
	h.captchaHits++
	h.consecErrors++
	h.mu.Unlock()
}

// AddEvidence appends a URL to the host's bounded, de-duplicated sample.
func (h *HostState) AddEvidence(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.evidence) >= evidenceSampleCap {
		return
	}
	for _, existing := range h.evidence {
		if existing == url {
			return
		}
	}
	h.evidence = append(h.evidence, url)
}

// Report is a point-in-time snapshot of a HostState's counters for the
// per-host diagnostic output.
type Report struct {
	Host             string
	PagesAttempted   int
	PagesFetched     int
	HTTP2xx          int
	HTTP403          int
	HTTP429          int
	HTTP5xx          int
	Other4xx         int
	CaptchaHits      int
	DisallowedPaths  int
	ConsecErrors     int
	BackoffSeconds   float64
	PagesCount       int
	RobotsCrawlDelay string
	RobotsCached     bool
	EvidenceSample   []string
}

// Snapshot captures the host counters.
func (h *HostState) Snapshot() Report {
	h.mu.Lock()
	defer h.mu.Unlock()
	crawlDelay := ""
	if h.crawlDelay > 0 {
		crawlDelay = fmt.Sprintf("%g", h.crawlDelay.Seconds())
	}
	return Report{
		Host:             h.host,
		PagesAttempted:   h.pagesAttempted,
		PagesFetched:     h.pagesFetched,
		HTTP2xx:          h.http2xx,
		HTTP403:          h.http403,
		HTTP429:          h.http429,
		HTTP5xx:          h.http5xx,
		Other4xx:         h.other4xx,
		CaptchaHits:      h.captchaHits,
		DisallowedPaths:  h.disallowedPaths,
		ConsecErrors:     h.consecErrors,
		BackoffSeconds:   h.backoff.Seconds(),
		PagesCount:       h.pagesCount,
		RobotsCrawlDelay: crawlDelay,
		RobotsCached:     !h.robotsFetched.IsZero(),
		EvidenceSample:   append([]string(nil), h.evidence...),
	}
}

// HostPool is the concurrency-safe keyed store of HostState instances.
// States are created lazily on first reference and live for the run.
type HostPool struct {
	cfg    PolitenessConfig
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	jitter func() float64

	mu    sync.Mutex
	hosts map[string]*HostState
}

// NewHostPool builds a pool with the given politeness settings.
func NewHostPool(cfg PolitenessConfig) *HostPool {
	return &HostPool{
		cfg:    cfg,
		now:    time.Now,
		sleep:  sleepWithContext,
		jitter: rand.Float64,
		hosts:  make(map[string]*HostState),
	}
}

// Get returns the state for host, creating it on first reference.
func (p *HostPool) Get(host string) *HostState {
	key := hostKey(host)
	p.mu.Lock()
	defer p.mu.Unlock()
	hs, ok := p.hosts[key]
	if !ok {
		hs = newHostState(key)
		p.hosts[key] = hs
	}
	return hs
}

// Snapshot returns a report for every host seen during the run.
func (p *HostPool) Snapshot() []Report {
	p.mu.Lock()
	states := make([]*HostState, 0, len(p.hosts))
	for _, hs := range p.hosts {
		states = append(states, hs)
	}
	p.mu.Unlock()

	reports := make([]Report, 0, len(states))
	for _, hs := range states {
		reports = append(reports, hs.Snapshot())
	}
	return reports
}

// Config returns the pool's politeness settings.
func (p *HostPool) Config() PolitenessConfig {
	return p.cfg
}

// requiredDelay is the minimum gap between the end of the previous request
// and the start of the next: max(base+jitter, robots crawl-delay, backoff).
func (p *HostPool) requiredDelay(h *HostState) time.Duration {
	delay := p.cfg.DelayBase + time.Duration(p.jitter()*float64(p.cfg.DelayJitter))
	if h.crawlDelay > delay {
		delay = h.crawlDelay
	}
	if h.backoff > delay {
		delay = h.backoff
	}
	return delay
}

// PoliteWait sleeps out whatever portion of the host's minimum inter-request
// delay has not yet elapsed.
func (p *HostPool) PoliteWait(ctx context.Context, h *HostState) error {
	h.mu.Lock()
	delay := p.requiredDelay(h)
	var wait time.Duration
	if !h.lastRequest.IsZero() {
		elapsed := p.now().Sub(h.lastRequest)
		wait = delay - elapsed
	} else if h.backoff > 0 {
		wait = h.backoff
	}
	h.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return p.sleep(ctx, wait)
}

// BeginAttempt records that a fetch is about to be issued.
func (p *HostPool) BeginAttempt(h *HostState) {
	h.mu.Lock()
	h.pagesAttempted++
	h.mu.Unlock()
}

// FinishAttempt stamps the request end time and applies the outcome to the
// host counters, backoff, and error streak.
func (p *HostPool) FinishAttempt(h *HostState, out Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRequest = p.now()

	switch {
	case out.Class == ClassTimeout || out.Class == ClassNetworkError:
		h.consecErrors++
	case out.StatusCode == 429 || out.StatusCode == 503:
		if out.StatusCode == 429 {
			h.http429++
		} else {
			h.http5xx++
		}
		if h.backoff == 0 {
			h.backoff = p.cfg.BackoffInitial
		} else {
			h.backoff *= 2
		}
		if h.backoff > p.cfg.BackoffCap {
			h.backoff = p.cfg.BackoffCap
		}
		h.backoffEvents++
		h.consecErrors++
	case out.StatusCode == 403:
		h.http403++
		h.consecErrors++
	case out.StatusCode >= 200 && out.StatusCode < 300:
		h.http2xx++
		h.pagesFetched++
		h.backoff = 0
		h.consecErrors = 0
	case out.StatusCode >= 500:
		h.http5xx++
		h.consecErrors++
	case out.StatusCode >= 400:
		h.other4xx++
		h.consecErrors++
	default:
		h.consecErrors++
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("politeness sleep: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
