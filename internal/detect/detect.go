// Package detect turns fetched page content into audit signals: patient
// capability flags, third-party service clues, external vendor URLs, and a
// PMS vendor guess. Everything here is a pure function of the corpus and
// the loaded pattern store, so re-running on identical input yields
// identical output.
package detect

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/patterns"
)

var (
	bookingPhraseRe = regexp.MustCompile(`(?i)\b(book online|schedule (now|online)|request (an )?appointment)\b`)
	formsPhraseRe   = regexp.MustCompile(`(?i)\b(digital (patient )?forms?|paperless forms?|new patient form)\b`)
	payPhraseRe     = regexp.MustCompile(`(?i)\b(pay (your )?bill|online payment|text-to-pay)\b`)

	evidenceRe = regexp.MustCompile(`(?i)(patientviewer\.com|operadds\.com|WebForms\.html|/pay|/appointment|/forms?)`)

	urlBookingRes = compileKeywords(
		`book`, `appointment`, `schedule`, `calendar`,
		`nexhealth`, `localmed`, `zocdoc`, `weave`, `solutionreach`,
		`recallmax`, `dental4\.me`, `curvehero`, `yapi`,
	)
	urlPaymentRes = compileKeywords(`pay`, `payment`, `billing`, `stripe`, `square`)
	urlFormsRes   = compileKeywords(`form`, `intake`, `jotform`, `typeform`, `docusign`)
)

func compileKeywords(pats ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(pats))
	for _, p := range pats {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// Page holds what the extractor pulled from one fetched page.
type Page struct {
	Links []string
	// LinkBlob is the newline-joined hyperlink list, used in the corpus.
	LinkBlob string
	// Text is the lower-cased visible text of the page.
	Text string
}

// ExtractPage parses HTML into hyperlinks and lower-cased visible text.
func ExtractPage(html string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, err
	}
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "mailto:") {
			return
		}
		links = append(links, href)
	})
	text := strings.ToLower(strings.Join(strings.Fields(doc.Text()), " "))
	return Page{
		Links:    links,
		LinkBlob: strings.Join(links, "\n"),
		Text:     text,
	}, nil
}

// HasEvidence reports whether a page's HTML+links match the vendor evidence
// signature used for the audit trail.
func HasEvidence(blob string) bool {
	return evidenceRe.MatchString(blob)
}

// findMatches returns the de-duplicated matched texts, in first-seen order.
func findMatches(res []*regexp.Regexp, blob string) []string {
	var hits []string
	seen := make(map[string]struct{})
	for _, re := range res {
		m := re.FindString(blob)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		hits = append(hits, m)
	}
	return hits
}

// Signals is the full extraction result for one practice.
type Signals struct {
	HasBooking  bool
	HasForms    bool
	HasPayments bool

	BookingClues []string
	FormsClues   []string
	PaymentClues []string
	OtherClues   []string
	PhoneClues   []string

	LikelyBookingVendor string
	LikelyPhoneProvider string

	PMSGuess      string
	PMSConfidence float64
	PMSClues      []string

	BookingURLs []string
	PaymentURLs []string
	FormsURLs   []string
}

const externalURLCap = 5

// Analyze runs capability detection, clue matching, external URL bucketing,
// and PMS scoring over the accumulated corpus.
func Analyze(store *patterns.Store, corpus string, allLinks []string, practiceDomain string) Signals {
	sig := Signals{
		BookingClues: findMatches(store.ThirdParty.Booking, corpus),
		FormsClues:   findMatches(store.ThirdParty.Forms, corpus),
		PaymentClues: findMatches(store.ThirdParty.Payments, corpus),
		OtherClues:   findMatches(store.ThirdParty.All, corpus),
		PhoneClues:   findMatches(store.Phone.Providers, corpus),
	}

	// Phrase signals and vendor-keyword signals are OR'd, not ranked.
	sig.HasBooking = bookingPhraseRe.MatchString(corpus) || len(sig.BookingClues) > 0
	sig.HasForms = formsPhraseRe.MatchString(corpus) || len(sig.FormsClues) > 0
	sig.HasPayments = payPhraseRe.MatchString(corpus) || len(sig.PaymentClues) > 0

	if len(sig.BookingClues) > 0 {
		sig.LikelyBookingVendor = sig.BookingClues[0]
	}
	if len(sig.PhoneClues) > 0 {
		sig.LikelyPhoneProvider = sig.PhoneClues[0]
	}

	sig.PMSGuess, sig.PMSConfidence, sig.PMSClues = ScorePMS(store.PMS, corpus)

	sig.BookingURLs, sig.PaymentURLs, sig.FormsURLs = ExternalServiceURLs(allLinks, practiceDomain)
	return sig
}

// ExternalServiceURLs buckets absolute off-site links into booking, payment,
// and forms categories by keyword match. A link may land in several buckets;
// each bucket is de-duplicated and capped for output compactness.
func ExternalServiceURLs(links []string, practiceDomain string) (booking, payment, forms []string) {
	practiceDomain = strings.ToLower(practiceDomain)
	seenBooking := make(map[string]struct{})
	seenPayment := make(map[string]struct{})
	seenForms := make(map[string]struct{})

	for _, link := range links {
		if !strings.HasPrefix(link, "http") {
			continue
		}
		parsed, err := url.Parse(link)
		if err != nil {
			continue
		}
		linkDomain := strings.ToLower(parsed.Host)
		if practiceDomain != "" && strings.Contains(linkDomain, practiceDomain) {
			continue
		}

		if matchesAny(urlBookingRes, link) {
			booking = appendCapped(booking, seenBooking, link)
		}
		if matchesAny(urlPaymentRes, link) {
			payment = appendCapped(payment, seenPayment, link)
		}
		if matchesAny(urlFormsRes, link) {
			forms = appendCapped(forms, seenForms, link)
		}
	}
	return booking, payment, forms
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func appendCapped(list []string, seen map[string]struct{}, link string) []string {
	if len(list) >= externalURLCap {
		return list
	}
	if _, ok := seen[link]; ok {
		return list
	}
	seen[link] = struct{}{}
	return append(list, link)
}
