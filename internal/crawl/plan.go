package crawl

import (
	"context"

	"go.uber.org/zap"

	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/metrics"
)

// renderFetcher is the slice of Renderer the plan depends on; narrowed so
// tests can substitute a stub.
type renderFetcher interface {
	Fetch(ctx context.Context, rawURL string) (Outcome, error)
}

// staticFetcher mirrors StaticFetcher.Fetch for the same reason.
type staticFetcher interface {
	Fetch(ctx context.Context, rawURL string) Outcome
}

type planStep int

const (
	stepRender planStep = iota
	stepStatic
)

// Plan is the per-fetch strategy machine: TryRender → TryStatic → Fail.
// When no renderer is configured the render step is skipped entirely. A
// render failure never blocks a host on its own; the static step always
// runs behind it.
type Plan struct {
	steps    []planStep
	renderer renderFetcher
	static   staticFetcher
	logger   *zap.Logger
}

// NewPlan assembles the fetch strategy. renderer may be nil.
func NewPlan(renderer renderFetcher, static staticFetcher, logger *zap.Logger) *Plan {
	steps := []planStep{stepStatic}
	if renderer != nil {
		steps = []planStep{stepRender, stepStatic}
	}
	return &Plan{
		steps:    steps,
		renderer: renderer,
		static:   static,
		logger:   logger,
	}
}

// Fetch walks the strategy steps until one produces an outcome. The returned
// outcome may still be a failure class; the caller applies host bookkeeping
// either way.
func (p *Plan) Fetch(ctx context.Context, rawURL string) Outcome {
	for _, step := range p.steps {
		switch step {
		case stepRender:
			out, err := p.renderer.Fetch(ctx, rawURL)
			if err == nil {
				return out
			}
			metrics.TotalRenderFallbacks.Inc()
			p.logger.Debug("render failed; falling back to static fetch",
				zap.String("url", rawURL), zap.Error(err))
		case stepStatic:
			return p.static.Fetch(ctx, rawURL)
		}
	}
	return Outcome{Class: ClassNetworkError, FinalURL: rawURL}
}
