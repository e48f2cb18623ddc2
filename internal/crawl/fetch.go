package crawl

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/metrics"
)

// StaticFetcher retrieves pages over plain HTTP using a Colly collector.
// Robots filtering happens upstream in the audit workflow, so the collector
// itself ignores robots.txt.
type StaticFetcher struct {
	baseCollector *colly.Collector
	timeout       time.Duration
	logger        *zap.Logger
}

// NewStaticFetcher constructs a configured Colly-based fetcher.
func NewStaticFetcher(userAgent string, timeout time.Duration, logger *zap.Logger) *StaticFetcher {
	base := colly.NewCollector(colly.UserAgent(userAgent))
	base.IgnoreRobotsTxt = true
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(timeout)

	return &StaticFetcher{
		baseCollector: base,
		timeout:       timeout,
		logger:        logger,
	}
}

// Fetch issues a single GET, follows redirects, and classifies the result.
// It never returns an error: failures are expressed as Outcome classes so
// the caller can apply host bookkeeping uniformly.
func (f *StaticFetcher) Fetch(ctx context.Context, rawURL string) Outcome {
	collector := f.baseCollector.Clone()

	resultCh := make(chan Outcome, 1)
	var once sync.Once
	send := func(out Outcome) {
		once.Do(func() { resultCh <- out })
	}

	collector.OnResponse(func(r *colly.Response) {
		send(Outcome{
			Class:       ClassOK,
			StatusCode:  r.StatusCode,
			FinalURL:    r.Request.URL.String(),
			ContentType: r.Headers.Get("Content-Type"),
			Body:        string(r.Body),
		})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			out := Outcome{
				Class:      ClassHTTPError,
				StatusCode: r.StatusCode,
				FinalURL:   r.Request.URL.String(),
				Body:       string(r.Body),
			}
			if r.Headers != nil {
				out.ContentType = r.Headers.Get("Content-Type")
			}
			send(out)
			return
		}
		send(Outcome{
			Class:    classifyFetchError(err),
			FinalURL: rawURL,
		})
	})

	done := make(chan error, 1)
	go func() {
		err := collector.Visit(rawURL)
		collector.Wait()
		done <- err
	}()

	metrics.TotalRequests.Inc()
	var visitErr error
	select {
	case <-ctx.Done():
		metrics.TotalRequestErrors.Inc()
		return Outcome{Class: ClassTimeout, FinalURL: rawURL}
	case visitErr = <-done:
	}

	// Visit returns the transport error even when OnError already produced a
	// classified outcome, so the handler result takes precedence.
	select {
	case out := <-resultCh:
		if !out.OK() {
			metrics.TotalRequestErrors.Inc()
		}
		return out
	default:
	}

	metrics.TotalRequestErrors.Inc()
	if visitErr != nil {
		return Outcome{Class: classifyFetchError(visitErr), FinalURL: rawURL}
	}
	f.logger.Warn("fetch produced no result", zap.String("url", rawURL))
	return Outcome{Class: ClassNetworkError, FinalURL: rawURL}
}

func classifyFetchError(err error) OutcomeClass {
	if err == nil {
		return ClassNetworkError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	return ClassNetworkError
}
