package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/api"
	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/audit"
	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/config"
	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/crawl"
	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/patterns"
)

type auditFlags struct {
	inPath     string
	csvPath    string
	jsonlPath  string
	alertPath  string
	reportPath string
}

// newAuditCmd creates and configures the 'audit' subcommand.
func newAuditCmd() *cobra.Command {
	var flags auditFlags
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Crawls practice websites and detects patient-facing tech",
		Long: `Reads a practices CSV (id,name,website), crawls each site politely
within per-host budgets, and writes one result row per practice with
capability flags, third-party clues, and a PMS guess with confidence.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuditCommand(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.inPath, "in", "practices.csv", "input practices CSV")
	cmd.Flags().StringVar(&flags.csvPath, "out", "audit_results.csv", "output results CSV")
	cmd.Flags().StringVar(&flags.jsonlPath, "out-jsonl", "", "optional output results JSONL")
	cmd.Flags().StringVar(&flags.alertPath, "alert", "crawl_alert.txt", "failure-rate alert file")
	cmd.Flags().StringVar(&flags.reportPath, "host-report", "", "optional per-host diagnostics CSV")
	return cmd
}

func runAuditCommand(parent context.Context, flags auditFlags) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	practices, err := audit.ReadPractices(flags.inPath)
	if err != nil {
		return fmt.Errorf("read practices: %w", err)
	}
	if len(practices) == 0 {
		logger.Warn("no practices to audit", zap.String("in", flags.inPath))
		return nil
	}

	store, err := patterns.Load(cfg.Patterns.PMSFile, cfg.Patterns.ThirdPartyFile, cfg.Patterns.PhoneFile)
	if err != nil {
		return fmt.Errorf("load patterns: %w", err)
	}

	pool := crawl.NewHostPool(crawl.PolitenessConfig{
		DelayBase:            cfg.Crawler.DelayBase(),
		DelayJitter:          cfg.Crawler.DelayJitter(),
		BackoffInitial:       cfg.Crawler.BackoffInitial(),
		BackoffCap:           cfg.Crawler.BackoffCap(),
		MaxConsecutiveErrors: cfg.Crawler.MaxConsecutiveErrors,
		MaxPages:             cfg.Crawler.PerHostMaxPages,
	})
	robots := crawl.NewRobotsResolver(
		cfg.Crawler.UserAgent,
		cfg.Crawler.RequestTimeout(),
		cfg.Crawler.RobotsCacheDuration(),
		logger,
	)
	static := crawl.NewStaticFetcher(cfg.Crawler.UserAgent, cfg.Crawler.RequestTimeout(), logger)

	renderer, err := buildRenderer(cfg, logger)
	if err != nil {
		return err
	}
	var plan *crawl.Plan
	if renderer != nil {
		defer renderer.Close()
		plan = crawl.NewPlan(renderer, static, logger)
	} else {
		plan = crawl.NewPlan(nil, static, logger)
	}

	if cfg.Ops.ListenAddr != "" {
		ops := api.NewServer(cfg.Ops.ListenAddr, logger)
		ops.Start()
		defer func() { _ = ops.Shutdown(context.Background()) }()
	}

	csvSink, err := audit.NewCSVSink(flags.csvPath)
	if err != nil {
		return fmt.Errorf("open csv sink: %w", err)
	}
	defer csvSink.Close()

	var jsonlSink *audit.JSONLSink
	if flags.jsonlPath != "" {
		jsonlSink, err = audit.NewJSONLSink(flags.jsonlPath)
		if err != nil {
			return fmt.Errorf("open jsonl sink: %w", err)
		}
		defer jsonlSink.Close()
	}

	auditor := audit.NewAuditor(store, pool, robots, plan, logger)
	orch := audit.NewOrchestrator(auditor, csvSink, jsonlSink, audit.OrchestratorOptions{
		BatchSize:      cfg.Crawler.BatchSize,
		Concurrency:    cfg.Crawler.Concurrency,
		AlertThreshold: cfg.Crawler.FailAlertPct,
		AlertPath:      flags.alertPath,
		HostReportPath: flags.reportPath,
	}, logger)
	orch.SetHostReportSource(pool)

	if _, err := orch.Run(ctx, practices); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run audit: %w", err)
	}
	return nil
}

func buildRenderer(cfg config.Config, logger *zap.Logger) (*crawl.Renderer, error) {
	if !cfg.Headless.Enabled {
		return nil, nil
	}
	renderer, err := crawl.NewRenderer(crawl.RendererConfig{
		UserAgent:   cfg.Crawler.UserAgent,
		MaxParallel: cfg.Headless.MaxParallel,
		NavTimeout:  cfg.Headless.NavTimeout(),
		SettleWait:  cfg.Headless.SettleWait(),
		DomainQPS:   cfg.Headless.DomainQPS,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}
	return renderer, nil
}
