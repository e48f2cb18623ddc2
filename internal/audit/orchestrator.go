package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/crawl"
)

const progressInterval = 50

// RunMetrics summarizes one orchestrator run. Skipped counts practices with
// no usable website; they are excluded from Attempted and from the failure
// rate.
type RunMetrics struct {
	RunID       string
	Total       int
	Attempted   int
	Skipped     int
	WithSignal  int
	NoSignal    int
	Failures    int
	FailureRate float64
	Elapsed     time.Duration
}

// Orchestrator fans practices out to the auditor in bounded batches and
// owns the output sinks and the failure-rate alert.
type Orchestrator struct {
	auditor *Auditor
	csv     *CSVSink
	jsonl   *JSONLSink
	logger  *zap.Logger

	batchSize        int
	concurrency      int
	alertThreshold   float64
	alertPath        string
	hostReportPath   string
	hostReportSource interface{ Snapshot() []crawl.Report }
}

// OrchestratorOptions configures a run.
type OrchestratorOptions struct {
	BatchSize      int
	Concurrency    int
	AlertThreshold float64
	AlertPath      string
	HostReportPath string
}

// NewOrchestrator builds an orchestrator writing results to the given sinks.
func NewOrchestrator(
	auditor *Auditor,
	csv *CSVSink,
	jsonl *JSONLSink,
	opts OrchestratorOptions,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		auditor:        auditor,
		csv:            csv,
		jsonl:          jsonl,
		logger:         logger,
		batchSize:      opts.BatchSize,
		concurrency:    opts.Concurrency,
		alertThreshold: opts.AlertThreshold,
		alertPath:      opts.AlertPath,
		hostReportPath: opts.HostReportPath,
	}
}

// SetHostReportSource attaches a per-host counter snapshot source used for
// the diagnostic host report written at the end of a run.
func (o *Orchestrator) SetHostReportSource(src interface{ Snapshot() []crawl.Report }) {
	o.hostReportSource = src
}

// Run audits every practice and returns run-level metrics. Practices
// without a website are skipped, not failed; of the attempted ones, those
// with no signal at all count as failures, and when the failure rate over
// attempted practices crosses the alert threshold an alert file is written
// alongside the outputs.
func (o *Orchestrator) Run(ctx context.Context, practices []PracticeRow) (RunMetrics, error) {
	start := time.Now()
	rm := RunMetrics{RunID: uuid.NewString(), Total: len(practices)}

	o.logger.Info("audit run starting",
		zap.String("run_id", rm.RunID),
		zap.Int("practices", rm.Total),
		zap.Int("batch_size", o.batchSize),
		zap.Int("concurrency", o.concurrency))

	done := 0
	for offset := 0; offset < len(practices); offset += o.batchSize {
		end := offset + o.batchSize
		if end > len(practices) {
			end = len(practices)
		}
		batch := practices[offset:end]

		results := make([]*Result, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.concurrency)
		for i, row := range batch {
			g.Go(func() error {
				res, err := o.auditor.AuditPractice(gctx, row)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return rm, fmt.Errorf("audit batch at offset %d: %w", offset, err)
		}

		for _, res := range results {
			done++
			switch {
			case res == nil:
				rm.Skipped++
			case !res.HasSignal():
				rm.NoSignal++
				rm.Failures++
			default:
				rm.WithSignal++
				if err := o.writeResult(res); err != nil {
					return rm, err
				}
			}
			if done%progressInterval == 0 {
				o.logger.Info("audit progress",
					zap.Int("done", done),
					zap.Int("total", rm.Total),
					zap.Int("skipped", rm.Skipped),
					zap.Int("with_signal", rm.WithSignal),
					zap.Int("failures", rm.Failures))
			}
		}
	}

	rm.Elapsed = time.Since(start)
	rm.Attempted = rm.Total - rm.Skipped
	if rm.Attempted > 0 {
		rm.FailureRate = 100 * float64(rm.Failures) / float64(rm.Attempted)
	}

	if err := o.finishRun(rm); err != nil {
		return rm, err
	}
	return rm, nil
}

func (o *Orchestrator) writeResult(res *Result) error {
	if o.csv != nil {
		if err := o.csv.Append(*res); err != nil {
			return fmt.Errorf("append csv result: %w", err)
		}
	}
	if o.jsonl != nil {
		if err := o.jsonl.Append(*res); err != nil {
			return fmt.Errorf("append jsonl result: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) finishRun(rm RunMetrics) error {
	o.logger.Info("audit run finished",
		zap.String("run_id", rm.RunID),
		zap.Int("total", rm.Total),
		zap.Int("attempted", rm.Attempted),
		zap.Int("skipped", rm.Skipped),
		zap.Int("with_signal", rm.WithSignal),
		zap.Int("failures", rm.Failures),
		zap.Float64("failure_rate_pct", rm.FailureRate),
		zap.Duration("elapsed", rm.Elapsed))

	if rm.Attempted > 0 && rm.FailureRate >= o.alertThreshold && o.alertPath != "" {
		msg := fmt.Sprintf(
			"run %s: %d of %d attempted practices (%.1f%%) produced no signal; threshold %.1f%%\n",
			rm.RunID, rm.Failures, rm.Attempted, rm.FailureRate, o.alertThreshold)
		if err := WriteAlert(o.alertPath, msg); err != nil {
			return fmt.Errorf("write alert: %w", err)
		}
		o.logger.Error("failure rate above threshold",
			zap.Float64("failure_rate_pct", rm.FailureRate),
			zap.Float64("threshold_pct", o.alertThreshold),
			zap.String("alert_path", o.alertPath))
	}

	if o.hostReportPath != "" && o.hostReportSource != nil {
		if err := WriteHostReport(o.hostReportPath, o.hostReportSource.Snapshot()); err != nil {
			return fmt.Errorf("write host report: %w", err)
		}
	}
	return nil
}
