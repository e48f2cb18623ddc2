// Package stats aggregates an audit results CSV into adoption percentages
// and vendor distributions.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Summary is the aggregate view over one results file.
type Summary struct {
	TotalPractices int `json:"total_practices"`

	PctOnlineBooking  float64 `json:"pct_online_booking"`
	PctOnlineForms    float64 `json:"pct_online_forms"`
	PctOnlinePayments float64 `json:"pct_online_payments"`

	PMSDistributionPct map[string]float64 `json:"pms_distribution_pct"`

	PctThirdPartyBooking  float64 `json:"pct_third_party_booking"`
	PctThirdPartyForms    float64 `json:"pct_third_party_forms"`
	PctThirdPartyPayments float64 `json:"pct_third_party_payments"`

	PhoneProvidersPct map[string]float64 `json:"phone_providers_pct"`
}

// Compute reads a results CSV and builds the summary.
func Compute(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()
	return compute(f)
}

func compute(r io.Reader) (Summary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return Summary{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}

	s := Summary{
		PMSDistributionPct: make(map[string]float64),
		PhoneProvidersPct:  make(map[string]float64),
	}
	pmsCounts := make(map[string]int)
	phoneCounts := make(map[string]int)
	var booking, forms, payments int
	var tpBooking, tpForms, tpPayments int

	field := func(record []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Summary{}, fmt.Errorf("read row: %w", err)
		}
		s.TotalPractices++

		if isTrue(field(record, "has_online_booking")) {
			booking++
		}
		if isTrue(field(record, "has_online_forms")) {
			forms++
		}
		if isTrue(field(record, "has_online_payments")) {
			payments++
		}

		pms := field(record, "likely_pms")
		if pms == "" {
			pms = "unknown"
		}
		pmsCounts[pms]++

		if field(record, "third_party_booking_clues") != "" {
			tpBooking++
		}
		if field(record, "third_party_forms_clues") != "" {
			tpForms++
		}
		if field(record, "third_party_payments_clues") != "" {
			tpPayments++
		}

		// Every clue entry counts, not just the best-guess provider.
		for _, clue := range strings.Split(field(record, "phone_clues_site"), ";") {
			if clue = strings.TrimSpace(clue); clue != "" {
				phoneCounts[clue]++
			}
		}
	}

	s.PctOnlineBooking = pct(booking, s.TotalPractices)
	s.PctOnlineForms = pct(forms, s.TotalPractices)
	s.PctOnlinePayments = pct(payments, s.TotalPractices)
	s.PctThirdPartyBooking = pct(tpBooking, s.TotalPractices)
	s.PctThirdPartyForms = pct(tpForms, s.TotalPractices)
	s.PctThirdPartyPayments = pct(tpPayments, s.TotalPractices)
	for name, n := range pmsCounts {
		s.PMSDistributionPct[name] = pct(n, s.TotalPractices)
	}
	for name, n := range phoneCounts {
		s.PhoneProvidersPct[name] = pct(n, s.TotalPractices)
	}
	return s, nil
}

func isTrue(v string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(1000*float64(n)/float64(total)) / 10
}

// WriteJSON writes the summary as indented JSON.
func (s Summary) WriteJSON(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// WriteCSV writes the summary as a two-column metric/value file.
func (s Summary) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"metric", "value"}); err != nil {
		return err
	}
	for _, row := range s.rows() {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Render returns a human-readable console summary.
func (s Summary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "practices audited: %d\n", s.TotalPractices)
	fmt.Fprintf(&b, "online booking:    %.1f%%\n", s.PctOnlineBooking)
	fmt.Fprintf(&b, "online forms:      %.1f%%\n", s.PctOnlineForms)
	fmt.Fprintf(&b, "online payments:   %.1f%%\n", s.PctOnlinePayments)
	b.WriteString("likely PMS distribution:\n")
	for _, name := range sortedKeys(s.PMSDistributionPct) {
		fmt.Fprintf(&b, "  %-20s %.1f%%\n", name, s.PMSDistributionPct[name])
	}
	if len(s.PhoneProvidersPct) > 0 {
		b.WriteString("phone providers:\n")
		for _, name := range sortedKeys(s.PhoneProvidersPct) {
			fmt.Fprintf(&b, "  %-20s %.1f%%\n", name, s.PhoneProvidersPct[name])
		}
	}
	return b.String()
}

func (s Summary) rows() [][]string {
	fl := func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }
	rows := [][]string{
		{"total_practices", strconv.Itoa(s.TotalPractices)},
		{"pct_online_booking", fl(s.PctOnlineBooking)},
		{"pct_online_forms", fl(s.PctOnlineForms)},
		{"pct_online_payments", fl(s.PctOnlinePayments)},
		{"pct_third_party_booking", fl(s.PctThirdPartyBooking)},
		{"pct_third_party_forms", fl(s.PctThirdPartyForms)},
		{"pct_third_party_payments", fl(s.PctThirdPartyPayments)},
	}
	for _, name := range sortedKeys(s.PMSDistributionPct) {
		rows = append(rows, []string{"pms_" + name, fl(s.PMSDistributionPct[name])})
	}
	for _, name := range sortedKeys(s.PhoneProvidersPct) {
		rows = append(rows, []string{"phone_" + name, fl(s.PhoneProvidersPct[name])})
	}
	return rows
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
