package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/crawl"
)

// CSVSink appends result rows to a CSV file. Writes are serialized; every
// record is flushed as soon as it lands so a killed run keeps its partial
// output.
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink creates the file and writes the header immediately.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv sink %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(ResultColumns); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return &CSVSink{file: f, writer: w}, nil
}

// Append writes one result row.
func (s *CSVSink) Append(r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Write(r.Row()); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("flush csv row: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}

// JSONLSink appends one JSON record per line for downstream machine
// consumption, mirroring the CSV fields.
type JSONLSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONLSink creates the record sink file.
func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create jsonl sink %s: %w", path, err)
	}
	return &JSONLSink{file: f}, nil
}

// Append writes one record line.
func (s *JSONLSink) Append(r Result) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write jsonl record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// WriteAlert writes the run-degradation alert artifact.
func WriteAlert(path, message string) error {
	if err := os.WriteFile(path, []byte(message+"\n"), 0o600); err != nil {
		return fmt.Errorf("write alert %s: %w", path, err)
	}
	return nil
}

// hostReportColumns is the per-host diagnostic schema.
var hostReportColumns = []string{
	"host", "pages_attempted", "pages_fetched",
	"http_2xx", "http_403", "http_429", "http_5xx", "other_4xx",
	"captcha_hits", "disallowed_paths", "consec_errors_final",
	"backoff_seconds_max", "pages_count",
	"robots_crawl_delay", "robots_cached", "sample_evidence_urls",
}

// WriteHostReport emits one row per host with its full counter snapshot.
func WriteHostReport(path string, reports []crawl.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create host report %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(hostReportColumns); err != nil {
		return fmt.Errorf("write host report header: %w", err)
	}
	for _, r := range reports {
		cached := "no"
		if r.RobotsCached {
			cached = "yes"
		}
		row := []string{
			r.Host,
			fmt.Sprint(r.PagesAttempted), fmt.Sprint(r.PagesFetched),
			fmt.Sprint(r.HTTP2xx), fmt.Sprint(r.HTTP403),
			fmt.Sprint(r.HTTP429), fmt.Sprint(r.HTTP5xx),
			fmt.Sprint(r.Other4xx),
			fmt.Sprint(r.CaptchaHits), fmt.Sprint(r.DisallowedPaths),
			fmt.Sprint(r.ConsecErrors),
			fmt.Sprintf("%g", r.BackoffSeconds), fmt.Sprint(r.PagesCount),
			r.RobotsCrawlDelay, cached,
			joinClues(r.EvidenceSample),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write host report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush host report: %w", err)
	}
	return nil
}
