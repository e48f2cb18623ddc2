package crawl

import (
	"fmt"
	"net/url"
	"strings"
)

// targetPaths are the candidate paths probed on every practice site, in
// fetch order. The home page comes first so the practice's reachable URL is
// usually its front door.
var targetPaths = []string{
	"",
	"/appointment",
	"/appointments",
	"/book",
	"/schedule",
	"/forms",
	"/new-patient-forms",
	"/pay",
	"/payment",
	"/patient-portal",
	"/portal",
	"/contact",
}

// NormalizeSite standardizes a practice website value: trims whitespace,
// prefixes a scheme when absent, and strips the trailing slash. An empty
// input normalizes to the empty string; it is not an error.
func NormalizeSite(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "http") {
		s = "http://" + s
	}
	return strings.TrimRight(s, "/")
}

// Targets enumerates the candidate URLs for a normalized site.
func Targets(site string) []string {
	out := make([]string, 0, len(targetPaths))
	for _, p := range targetPaths {
		out = append(out, site+p)
	}
	return out
}

// hostOf extracts the lowercased host from a URL.
func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return strings.ToLower(u.Host), nil
}

// HostOf is the exported form of hostOf for callers outside the package.
func HostOf(rawURL string) (string, error) {
	return hostOf(rawURL)
}
