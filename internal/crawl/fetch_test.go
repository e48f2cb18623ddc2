package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStaticFetchSuccess(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>Book Online</body></html>"))
	}))
	defer srv.Close()

	fetcher := NewStaticFetcher("auditbot", 5*time.Second, zap.NewNop())
	out := fetcher.Fetch(context.Background(), srv.URL+"/")

	require.Equal(t, ClassOK, out.Class)
	require.Equal(t, http.StatusOK, out.StatusCode)
	require.Contains(t, out.Body, "Book Online")
	require.Contains(t, out.ContentType, "text/html")
	require.True(t, out.OK())
}

func TestStaticFetchFollowsRedirects(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			_, _ = w.Write([]byte("landed"))
			return
		}
		http.Redirect(w, r, "/final", http.StatusMovedPermanently)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fetcher := NewStaticFetcher("auditbot", 5*time.Second, zap.NewNop())
	out := fetcher.Fetch(context.Background(), srv.URL+"/start")

	require.True(t, out.OK())
	require.Equal(t, srv.URL+"/final", out.FinalURL)
	require.Equal(t, "landed", out.Body)
}

func TestStaticFetchClassifiesHTTPErrors(t *testing.T) {
	t.Parallel()
	for _, status := range []int{403, 404, 429, 500, 503} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		fetcher := NewStaticFetcher("auditbot", 5*time.Second, zap.NewNop())
		out := fetcher.Fetch(context.Background(), srv.URL+"/")
		srv.Close()

		require.Equal(t, ClassHTTPError, out.Class, "status %d", status)
		require.Equal(t, status, out.StatusCode)
		require.False(t, out.OK())
	}
}

func TestStaticFetchNetworkErrorClass(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	fetcher := NewStaticFetcher("auditbot", 2*time.Second, zap.NewNop())
	out := fetcher.Fetch(context.Background(), srv.URL+"/")

	require.Equal(t, ClassNetworkError, out.Class)
	require.False(t, out.OK())
}

func TestStaticFetchSendsUserAgent(t *testing.T) {
	t.Parallel()
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	fetcher := NewStaticFetcher("auditbot/2.0", 5*time.Second, zap.NewNop())
	out := fetcher.Fetch(context.Background(), srv.URL+"/")

	require.True(t, out.OK())
	require.Equal(t, "auditbot/2.0", seen)
}
