// Package crawl implements the polite fetch engine: per-host state and
// scheduling, robots.txt resolution, and the static/headless fetch
// strategies.
package crawl

import "strings"

// OutcomeClass classifies how a fetch ended.
type OutcomeClass int

// Fetch outcome classes.
const (
	ClassOK OutcomeClass = iota
	ClassHTTPError
	ClassTimeout
	ClassNetworkError
)

// String returns the class name for logs and reports.
func (c OutcomeClass) String() string {
	switch c {
	case ClassOK:
		return "ok"
	case ClassHTTPError:
		return "http_error"
	case ClassTimeout:
		return "timeout"
	default:
		return "network_error"
	}
}

// Outcome is the result of one fetch attempt. It is consumed by the audit
// workflow and never persisted.
type Outcome struct {
	Class       OutcomeClass
	StatusCode  int
	FinalURL    string
	ContentType string
	Body        string
	Rendered    bool
}

// OK reports whether the fetch produced a trustworthy 2xx page.
func (o Outcome) OK() bool {
	return o.Class == ClassOK && o.StatusCode >= 200 && o.StatusCode < 300
}

// captchaMarkers are the challenge fingerprints scanned on every fetched body.
var captchaMarkers = []string{
	"captcha",
	"are you human",
	"unusual traffic",
	"cloudflare",
	"verify you are a human",
}

// LooksLikeChallenge reports whether the body resembles an anti-bot
// interstitial. A hit means the page cannot be trusted for extraction.
func LooksLikeChallenge(body string) bool {
	if body == "" {
		return false
	}
	hay := strings.ToLower(body)
	for _, marker := range captchaMarkers {
		if strings.Contains(hay, marker) {
			return true
		}
	}
	return false
}
