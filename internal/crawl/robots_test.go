package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestResolver(timeout time.Duration) *RobotsResolver {
	r := NewRobotsResolver("auditbot", timeout, time.Hour, zap.NewNop())
	r.sleep = func(context.Context, time.Duration) error { return nil }
	return r
}

func TestResolveParsesRulesAndCrawlDelay(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/robots.txt", r.URL.Path)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\nCrawl-delay: 2.5\n"))
	}))
	defer srv.Close()

	resolver := newTestResolver(5 * time.Second)
	hs := newHostState("example.com")
	require.NoError(t, resolver.Resolve(context.Background(), srv.URL, hs))

	require.True(t, resolver.Allowed(hs, srv.URL+"/appointments"))
	require.False(t, resolver.Allowed(hs, srv.URL+"/private/page"))
	require.Equal(t, 2500*time.Millisecond, resolver.CrawlDelay(hs))
}

func TestResolveCachesWithinTTL(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer srv.Close()

	resolver := newTestResolver(5 * time.Second)
	hs := newHostState("example.com")
	for i := 0; i < 3; i++ {
		require.NoError(t, resolver.Resolve(context.Background(), srv.URL, hs))
	}
	require.Equal(t, int32(1), calls.Load())
	require.True(t, hs.Snapshot().RobotsCached)
}

func TestResolveMissingRobotsIsPermissive(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resolver := newTestResolver(5 * time.Second)
	hs := newHostState("example.com")
	require.NoError(t, resolver.Resolve(context.Background(), srv.URL, hs))
	require.True(t, resolver.Allowed(hs, srv.URL+"/anything"))
}

func TestResolveForbiddenRobotsDisallowsAll(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	resolver := newTestResolver(5 * time.Second)
	hs := newHostState("example.com")
	require.NoError(t, resolver.Resolve(context.Background(), srv.URL, hs))
	require.False(t, resolver.Allowed(hs, srv.URL+"/"))
}

func TestResolveRetriesThenDefaultsPermissive(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resolver := newTestResolver(5 * time.Second)
	hs := newHostState("example.com")
	require.NoError(t, resolver.Resolve(context.Background(), srv.URL, hs))
	require.Equal(t, int32(3), calls.Load())
	require.True(t, resolver.Allowed(hs, srv.URL+"/"))
}

func TestParseCrawlDelay(t *testing.T) {
	t.Parallel()
	require.Equal(t, 10*time.Second, parseCrawlDelay("crawl-delay: 10"))
	require.Equal(t, time.Duration(0), parseCrawlDelay("User-agent: *\nAllow: /\n"))
	require.Equal(t, time.Duration(0), parseCrawlDelay("Crawl-delay: 0"))
}
