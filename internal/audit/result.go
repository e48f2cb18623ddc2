// Package audit drives the per-practice audit workflow, batches practices
// for bounded concurrency, and streams results to the row and record sinks.
package audit

import (
	"strconv"
	"strings"
)

// PracticeRow is the input unit: one practice from the lead list. Extra
// input columns are ignored.
type PracticeRow struct {
	ID      string
	Name    string
	Website string
}

// Result is the audit output for one practice with a website. It is created
// once, written once, and never mutated after emission.
type Result struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Website    string `json:"website"`
	FinalURL   string `json:"final_url"`
	HTTPStatus int    `json:"http_status"`

	HasOnlineBooking  bool `json:"has_online_booking"`
	HasOnlineForms    bool `json:"has_online_forms"`
	HasOnlinePayments bool `json:"has_online_payments"`

	ThirdPartyBookingClues  string `json:"third_party_booking_clues"`
	ThirdPartyFormsClues    string `json:"third_party_forms_clues"`
	ThirdPartyPaymentsClues string `json:"third_party_payments_clues"`
	ThirdPartyOtherClues    string `json:"third_party_other_clues"`
	LikelyBookingVendor     string `json:"likely_booking_vendor"`

	PhoneCluesSite      string `json:"phone_clues_site"`
	LikelyPhoneProvider string `json:"likely_phone_provider"`

	PMSCluesSite  string  `json:"pms_clues_site"`
	LikelyPMS     string  `json:"likely_pms"`
	PMSConfidence float64 `json:"pms_confidence"`

	EvidenceURLs string `json:"evidence_urls"`
	BookingURLs  string `json:"booking_urls"`
	PaymentURLs  string `json:"payment_urls"`
	FormsURLs    string `json:"forms_urls"`
}

// ResultColumns is the output row schema, in order.
var ResultColumns = []string{
	"id", "name", "website", "final_url", "http_status",
	"has_online_booking", "has_online_forms", "has_online_payments",
	"third_party_booking_clues", "third_party_forms_clues",
	"third_party_payments_clues", "third_party_other_clues",
	"likely_booking_vendor",
	"phone_clues_site", "likely_phone_provider",
	"pms_clues_site", "likely_pms", "pms_confidence",
	"evidence_urls",
	"booking_urls", "payment_urls", "forms_urls",
}

// Row renders the result as CSV fields matching ResultColumns.
func (r Result) Row() []string {
	status := ""
	if r.HTTPStatus != 0 {
		status = strconv.Itoa(r.HTTPStatus)
	}
	return []string{
		r.ID, r.Name, r.Website, r.FinalURL, status,
		strconv.FormatBool(r.HasOnlineBooking),
		strconv.FormatBool(r.HasOnlineForms),
		strconv.FormatBool(r.HasOnlinePayments),
		r.ThirdPartyBookingClues, r.ThirdPartyFormsClues,
		r.ThirdPartyPaymentsClues, r.ThirdPartyOtherClues,
		r.LikelyBookingVendor,
		r.PhoneCluesSite, r.LikelyPhoneProvider,
		r.PMSCluesSite, r.LikelyPMS,
		strconv.FormatFloat(r.PMSConfidence, 'g', -1, 64),
		r.EvidenceURLs,
		r.BookingURLs, r.PaymentURLs, r.FormsURLs,
	}
}

// HasSignal reports whether the result carries anything worth persisting:
// a reached status or any non-empty clue field.
func (r Result) HasSignal() bool {
	return r.HTTPStatus != 0 ||
		r.PMSCluesSite != "" ||
		r.ThirdPartyBookingClues != "" ||
		r.PhoneCluesSite != ""
}

// joinClues renders a clue list as the semicolon-joined output form.
func joinClues(clues []string) string {
	return strings.Join(clues, ";")
}
