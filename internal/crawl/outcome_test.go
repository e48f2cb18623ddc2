package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutcomeOK(t *testing.T) {
	t.Parallel()
	require.True(t, Outcome{Class: ClassOK, StatusCode: 200}.OK())
	require.True(t, Outcome{Class: ClassOK, StatusCode: 204}.OK())
	require.False(t, Outcome{Class: ClassOK, StatusCode: 301}.OK())
	require.False(t, Outcome{Class: ClassHTTPError, StatusCode: 200}.OK())
	require.False(t, Outcome{Class: ClassTimeout}.OK())
}

func TestOutcomeClassString(t *testing.T) {
	t.Parallel()
	require.Equal(t, "ok", ClassOK.String())
	require.Equal(t, "http_error", ClassHTTPError.String())
	require.Equal(t, "timeout", ClassTimeout.String())
	require.Equal(t, "network_error", ClassNetworkError.String())
}

func TestLooksLikeChallenge(t *testing.T) {
	t.Parallel()
	require.True(t, LooksLikeChallenge("<html>Please solve this CAPTCHA to continue</html>"))
	require.True(t, LooksLikeChallenge("We detected unusual traffic from your network"))
	require.True(t, LooksLikeChallenge("Checking your browser... Cloudflare"))
	require.False(t, LooksLikeChallenge("<html>Welcome to Main Street Dental</html>"))
	require.False(t, LooksLikeChallenge(""))
}
