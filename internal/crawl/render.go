package crawl

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/metrics"
)

// RendererConfig controls the headless rendering subsystem.
type RendererConfig struct {
	UserAgent   string
	MaxParallel int
	NavTimeout  time.Duration
	SettleWait  time.Duration
	DomainQPS   float64
}

// Renderer fetches pages with headless Chrome via chromedp. Each fetch
// opens an isolated tab from a shared allocator.
type Renderer struct {
	cfg            RendererConfig
	limiter        chan struct{}
	allocator      context.Context
	allocCancel    context.CancelFunc
	domainLimiters sync.Map
	logger         *zap.Logger
}

// NewRenderer creates a renderer backed by a headless Chrome allocator.
func NewRenderer(cfg RendererConfig, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxParallel <= 0 {
		return nil, fmt.Errorf("renderer max parallel must be > 0")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 15 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		cfg:         cfg,
		limiter:     make(chan struct{}, cfg.MaxParallel),
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close tears down the chromedp allocator.
func (r *Renderer) Close() {
	if r == nil {
		return
	}
	r.allocCancel()
}

// Fetch navigates with a headless browser and returns the rendered DOM. A
// secondary network-quiet wait is tolerated timing out; only navigation
// failures fail the fetch.
func (r *Renderer) Fetch(ctx context.Context, rawURL string) (Outcome, error) {
	if err := r.acquire(ctx); err != nil {
		return Outcome{}, err
	}
	defer r.release()

	if err := r.waitDomainBudget(ctx, rawURL); err != nil {
		return Outcome{}, fmt.Errorf("render rate limit: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.allocator)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.cfg.NavTimeout)
	defer cancelTask()

	stop := forwardCancel(ctx, cancelTask)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	metrics.TotalRenders.Inc()

	var (
		html     string
		finalURL string
	)
	actions := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(r.cfg.UserAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions); err != nil {
		return Outcome{}, fmt.Errorf("chromedp navigate: %w", err)
	}

	// Best-effort settle after DOM ready. A timeout here does not fail the
	// fetch; the DOM we have is good enough.
	if r.cfg.SettleWait > 0 {
		settleCtx, cancelSettle := context.WithTimeout(taskCtx, r.cfg.SettleWait)
		_ = chromedp.Run(settleCtx, chromedp.ActionFunc(func(c context.Context) error {
			<-c.Done()
			return nil
		}))
		cancelSettle()
	}

	if err := chromedp.Run(taskCtx,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return Outcome{}, fmt.Errorf("chromedp extract: %w", err)
	}

	status, url := meta.snapshot()
	if url == "" {
		url = finalURL
	}
	if url == "" {
		url = rawURL
	}
	if status == 0 {
		status = http.StatusOK
	}

	return Outcome{
		Class:       ClassOK,
		StatusCode:  status,
		FinalURL:    url,
		ContentType: "text/html",
		Body:        html,
		Rendered:    true,
	}, nil
}

func (r *Renderer) acquire(ctx context.Context) error {
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	select {
	case <-r.limiter:
	default:
	}
}

func (r *Renderer) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	return limiter.Wait(ctx)
}

type responseMeta struct {
	mu     sync.Mutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	if m.status == 0 {
		m.status = int(resp.Response.Status)
		m.url = resp.Response.URL
	}
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.url
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
