package crawl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRenderer struct {
	out   Outcome
	err   error
	calls int
}

func (s *stubRenderer) Fetch(context.Context, string) (Outcome, error) {
	s.calls++
	return s.out, s.err
}

type stubStatic struct {
	out   Outcome
	calls int
}

func (s *stubStatic) Fetch(context.Context, string) Outcome {
	s.calls++
	return s.out
}

func TestPlanUsesRenderResultWhenAvailable(t *testing.T) {
	t.Parallel()
	render := &stubRenderer{out: Outcome{Class: ClassOK, StatusCode: 200, Rendered: true, Body: "rendered"}}
	static := &stubStatic{out: Outcome{Class: ClassOK, StatusCode: 200, Body: "static"}}
	plan := NewPlan(render, static, zap.NewNop())

	out := plan.Fetch(context.Background(), "https://example.com")
	require.True(t, out.Rendered)
	require.Equal(t, "rendered", out.Body)
	require.Equal(t, 1, render.calls)
	require.Zero(t, static.calls)
}

func TestPlanFallsBackToStaticOnRenderError(t *testing.T) {
	t.Parallel()
	render := &stubRenderer{err: errors.New("chrome crashed")}
	static := &stubStatic{out: Outcome{Class: ClassOK, StatusCode: 200, Body: "static"}}
	plan := NewPlan(render, static, zap.NewNop())

	out := plan.Fetch(context.Background(), "https://example.com")
	require.Equal(t, "static", out.Body)
	require.False(t, out.Rendered)
	require.Equal(t, 1, render.calls)
	require.Equal(t, 1, static.calls)
}

func TestPlanSkipsRenderStepWhenUnconfigured(t *testing.T) {
	t.Parallel()
	static := &stubStatic{out: Outcome{Class: ClassOK, StatusCode: 200}}
	plan := NewPlan(nil, static, zap.NewNop())

	out := plan.Fetch(context.Background(), "https://example.com")
	require.True(t, out.OK())
	require.Equal(t, 1, static.calls)
}

func TestPlanPropagatesFailureOutcome(t *testing.T) {
	t.Parallel()
	render := &stubRenderer{err: errors.New("no tab")}
	static := &stubStatic{out: Outcome{Class: ClassHTTPError, StatusCode: 503}}
	plan := NewPlan(render, static, zap.NewNop())

	out := plan.Fetch(context.Background(), "https://example.com")
	require.Equal(t, ClassHTTPError, out.Class)
	require.Equal(t, 503, out.StatusCode)
}
