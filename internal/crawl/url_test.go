package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeSite(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"example.com", "http://example.com"},
		{"example.com/", "http://example.com"},
		{"https://example.com/", "https://example.com"},
		{"  https://example.com  ", "https://example.com"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NormalizeSite(tc.in), "input %q", tc.in)
	}
}

func TestTargetsEnumeratesAllCandidatePaths(t *testing.T) {
	t.Parallel()
	targets := Targets("https://example.com")
	require.Len(t, targets, 12)
	require.Equal(t, "https://example.com", targets[0])
	require.Contains(t, targets, "https://example.com/appointment")
	require.Contains(t, targets, "https://example.com/new-patient-forms")
	require.Contains(t, targets, "https://example.com/contact")
}

func TestHostOf(t *testing.T) {
	t.Parallel()
	host, err := HostOf("https://Smiles.Example.com/contact")
	require.NoError(t, err)
	require.Equal(t, "smiles.example.com", host)

	_, err = HostOf("not a url at all\x00")
	require.Error(t, err)

	_, err = HostOf("/relative/only")
	require.Error(t, err)
}
