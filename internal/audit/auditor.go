package audit

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/crawl"
	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/detect"
	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/metrics"
	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/patterns"
)

const practiceEvidenceCap = 3

// Auditor runs the audit workflow for a single practice: target-path
// enumeration, robots filtering, the polite fetch loop with failure
// thresholds, and signal extraction.
type Auditor struct {
	store  *patterns.Store
	pool   *crawl.HostPool
	robots *crawl.RobotsResolver
	plan   *crawl.Plan
	logger *zap.Logger
}

// NewAuditor wires the audit workflow dependencies.
func NewAuditor(
	store *patterns.Store,
	pool *crawl.HostPool,
	robots *crawl.RobotsResolver,
	plan *crawl.Plan,
	logger *zap.Logger,
) *Auditor {
	return &Auditor{
		store:  store,
		pool:   pool,
		robots: robots,
		plan:   plan,
		logger: logger,
	}
}

// AuditPractice audits one practice. A practice without a usable website
// yields (nil, nil): no result, not an error. Transient fetch failures are
// absorbed into host state; only context cancellation is returned as an
// error.
func (a *Auditor) AuditPractice(ctx context.Context, row PracticeRow) (*Result, error) {
	site := crawl.NormalizeSite(row.Website)
	if site == "" {
		return nil, nil
	}
	host, err := crawl.HostOf(site)
	if err != nil {
		a.logger.Debug("unusable website", zap.String("id", row.ID), zap.String("website", row.Website), zap.Error(err))
		return nil, nil
	}
	hs := a.pool.Get(host)

	if err := a.robots.Resolve(ctx, site, hs); err != nil {
		a.logger.Debug("robots resolve failed; proceeding permissive",
			zap.String("host", host), zap.Error(err))
	}

	targets := a.allowedTargets(site, hs)
	corpus, allLinks, evidence, finalURL, status, err := a.fetchTargets(ctx, targets, hs)
	if err != nil {
		return nil, err
	}

	sig := detect.Analyze(a.store, corpus, allLinks, host)

	for i, ev := range evidence {
		if i >= practiceEvidenceCap {
			break
		}
		hs.AddEvidence(ev)
	}

	metrics.TotalPracticesAudited.Inc()
	return a.buildResult(row, site, finalURL, status, sig, evidence), nil
}

// allowedTargets enumerates the candidate paths, applying the host page
// budget and robots filtering. Disallowed paths are only counted, never
// fetched.
func (a *Auditor) allowedTargets(site string, hs *crawl.HostState) []string {
	cfg := a.pool.Config()
	var allowed []string
	for _, target := range crawl.Targets(site) {
		if !hs.PageBudgetLeft(cfg.MaxPages) {
			break
		}
		if !a.robots.Allowed(hs, target) {
			hs.CountDisallowed()
			continue
		}
		allowed = append(allowed, target)
	}
	return allowed
}

// fetchTargets walks the allowed paths in order, fetching politely and
// accumulating page content. It stops early when the host's error streak
// trips the threshold, and abandons the practice entirely on a hard 403.
func (a *Auditor) fetchTargets(
	ctx context.Context,
	targets []string,
	hs *crawl.HostState,
) (corpus string, allLinks, evidence []string, finalURL string, status int, err error) {
	cfg := a.pool.Config()
	var htmlParts, linkBlobs, textParts []string

	for _, target := range targets {
		if !hs.PageBudgetLeft(cfg.MaxPages) {
			break
		}
		if hs.ConsecutiveErrors() >= cfg.MaxConsecutiveErrors {
			break
		}

		out, fetchErr := a.fetchOne(ctx, target, hs)
		if fetchErr != nil {
			return "", nil, nil, "", 0, fetchErr
		}
		hs.CountPage()

		if !out.OK() {
			if out.StatusCode == http.StatusForbidden {
				// Hard block signal; stop probing this practice.
				metrics.TotalForbiddenHits.Inc()
				break
			}
			if out.StatusCode == http.StatusTooManyRequests || out.StatusCode == http.StatusServiceUnavailable {
				metrics.TotalRateLimitHits.Inc()
			}
			continue
		}

		if finalURL == "" {
			finalURL = out.FinalURL
			status = out.StatusCode
		}

		if crawl.LooksLikeChallenge(out.Body) {
			hs.CountCaptcha()
			metrics.TotalCaptchaHits.Inc()
			continue
		}
		metrics.TotalPagesFetched.Inc()

		page, parseErr := detect.ExtractPage(out.Body)
		if parseErr != nil {
			a.logger.Debug("html parse failed", zap.String("url", out.FinalURL), zap.Error(parseErr))
			continue
		}

		htmlParts = append(htmlParts, out.Body)
		linkBlobs = append(linkBlobs, page.LinkBlob)
		textParts = append(textParts, page.Text)
		allLinks = append(allLinks, page.Links...)

		if detect.HasEvidence(out.Body + page.LinkBlob) {
			evidence = appendUnique(evidence, out.FinalURL)
		}
	}

	parts := make([]string, 0, len(htmlParts)+len(linkBlobs)+len(textParts))
	parts = append(parts, htmlParts...)
	parts = append(parts, linkBlobs...)
	parts = append(parts, textParts...)
	return strings.Join(parts, "\n"), allLinks, evidence, finalURL, status, nil
}

// fetchOne performs one polite fetch under the host gate and applies the
// outcome to host state. The wait happens while holding the gate: only the
// gate holder stamps the last-request time, so no other fetch can land
// between the wait and this request.
func (a *Auditor) fetchOne(ctx context.Context, target string, hs *crawl.HostState) (crawl.Outcome, error) {
	if err := hs.Acquire(ctx); err != nil {
		return crawl.Outcome{}, err
	}
	defer hs.Release()

	if err := a.pool.PoliteWait(ctx, hs); err != nil {
		return crawl.Outcome{}, err
	}

	a.pool.BeginAttempt(hs)
	out := a.plan.Fetch(ctx, target)
	a.pool.FinishAttempt(hs, out)
	return out, nil
}

func (a *Auditor) buildResult(
	row PracticeRow,
	site, finalURL string,
	status int,
	sig detect.Signals,
	evidence []string,
) *Result {
	return &Result{
		ID:         row.ID,
		Name:       row.Name,
		Website:    site,
		FinalURL:   finalURL,
		HTTPStatus: status,

		HasOnlineBooking:  sig.HasBooking,
		HasOnlineForms:    sig.HasForms,
		HasOnlinePayments: sig.HasPayments,

		ThirdPartyBookingClues:  joinClues(sig.BookingClues),
		ThirdPartyFormsClues:    joinClues(sig.FormsClues),
		ThirdPartyPaymentsClues: joinClues(sig.PaymentClues),
		ThirdPartyOtherClues:    joinClues(sig.OtherClues),
		LikelyBookingVendor:     sig.LikelyBookingVendor,

		PhoneCluesSite:      joinClues(sig.PhoneClues),
		LikelyPhoneProvider: sig.LikelyPhoneProvider,

		PMSCluesSite:  joinClues(sig.PMSClues),
		LikelyPMS:     sig.PMSGuess,
		PMSConfidence: sig.PMSConfidence,

		EvidenceURLs: joinClues(evidence),
		BookingURLs:  joinClues(sig.BookingURLs),
		PaymentURLs:  joinClues(sig.PaymentURLs),
		FormsURLs:    joinClues(sig.FormsURLs),
	}
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
