// Package metrics exposes prometheus counters for the audit engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalRequests tracks the number of HTTP requests dispatched by the auditor.
	TotalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_requests_total",
		Help: "The total number of HTTP requests sent.",
	})
	// TotalRequestErrors tracks the number of requests that resulted in an error.
	TotalRequestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_request_errors_total",
		Help: "The total number of failed HTTP requests.",
	})
	// TotalPagesFetched tracks the number of pages successfully fetched.
	TotalPagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_pages_fetched_total",
		Help: "The total number of pages fetched with a 2xx status.",
	})
	// TotalRateLimitHits tracks the number of throttled responses (HTTP 429/503).
	TotalRateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_rate_limit_hits_total",
		Help: "The total number of times a host throttled the auditor.",
	})
	// TotalForbiddenHits tracks the number of forbidden responses (HTTP 403).
	TotalForbiddenHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_forbidden_hits_total",
		Help: "The total number of forbidden responses received.",
	})
	// TotalCaptchaHits tracks pages rejected by anti-bot challenge detection.
	TotalCaptchaHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_captcha_hits_total",
		Help: "The total number of pages that looked like anti-bot challenges.",
	})
	// TotalRenders tracks headless render attempts.
	TotalRenders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_renders_total",
		Help: "The total number of headless render attempts.",
	})
	// TotalRenderFallbacks tracks renders that fell back to a static fetch.
	TotalRenderFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_render_fallbacks_total",
		Help: "The total number of renders that fell back to a static fetch.",
	})
	// TotalPracticesAudited tracks completed practice audits.
	TotalPracticesAudited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_practices_total",
		Help: "The total number of practice audits completed.",
	})
)
