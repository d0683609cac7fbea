package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-book-catalog/config"
	"github.com/aluiziolira/go-book-catalog/models"
	"github.com/aluiziolira/go-book-catalog/pipeline"
	"github.com/aluiziolira/go-book-catalog/scraper"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the catalog and export one table per category",
		Long: `Crawl discovers the catalog's categories from the site navigation, walks
each category's listing pages in order, extracts every detail page, downloads
cover images, and writes one table per category.

Defaults can be overridden via BOOKCATALOG_* environment variables; explicit
flags take precedence over both.

Examples:
  # Crawl with defaults
  bookcatalog crawl

  # Crawl politely with a request delay and fewer workers
  bookcatalog crawl --parallel 2 --delay 500ms

  # Export CSV and JSONL side by side and expose Prometheus metrics
  bookcatalog crawl --format dual --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	defaults := config.DefaultConfig()
	cmd.Flags().String("base-url", defaults.BaseURL, "Catalog root URL to crawl")
	cmd.Flags().IntP("pages", "p", defaults.MaxPages, "Maximum listing pages per category")
	cmd.Flags().Int("parallel", defaults.Parallelism, "Number of concurrent requests")
	cmd.Flags().Duration("delay", defaults.Delay, "Delay between requests")
	cmd.Flags().Duration("random-delay", defaults.RandomDelay, "Random jitter added to the delay")
	cmd.Flags().DurationP("timeout", "t", defaults.Timeout, "Per-request timeout")
	cmd.Flags().Int("max-retries", defaults.MaxRetries, "Maximum retry attempts per URL")
	cmd.Flags().Duration("retry-backoff", defaults.RetryBackoff, "Initial retry backoff")
	cmd.Flags().Duration("retry-backoff-max", defaults.RetryBackoffMax, "Maximum retry backoff")
	cmd.Flags().String("csv-dir", defaults.CSVDir, "Directory for exported category tables")
	cmd.Flags().String("images-dir", defaults.ImagesDir, "Directory for downloaded cover images")
	cmd.Flags().StringP("format", "f", defaults.OutputFormat, "Output format: csv, json, or dual")
	cmd.Flags().String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	setupLogger(cfg.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	exporter := pipeline.NewExporter(cfg)
	if err := exporter.Provision(); err != nil {
		return fmt.Errorf("provision output layout: %w", err)
	}

	s, err := scraper.New(cfg)
	if err != nil {
		return fmt.Errorf("create scraper: %w", err)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting crawl",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("workers", cfg.Parallelism),
		slog.String("format", cfg.OutputFormat),
	)

	startTime := time.Now()
	result, err := s.Run(ctx, exporter)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, time.Since(startTime), cfg.CSVDir)
	return nil
}

// buildCrawlConfig layers configuration sources: defaults, then BOOKCATALOG_*
// environment variables, then explicitly set flags.
func buildCrawlConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	if value, ok := config.EnvString("BOOKCATALOG_BASE_URL"); ok {
		cfg.BaseURL = value
	}
	if value, ok, err := config.EnvInt("BOOKCATALOG_PAGES"); err != nil {
		return nil, fmt.Errorf("invalid BOOKCATALOG_PAGES: %w", err)
	} else if ok {
		cfg.MaxPages = value
	}
	if value, ok, err := config.EnvInt("BOOKCATALOG_PARALLEL"); err != nil {
		return nil, fmt.Errorf("invalid BOOKCATALOG_PARALLEL: %w", err)
	} else if ok {
		cfg.Parallelism = value
	}
	if value, ok := config.EnvString("BOOKCATALOG_CSV_DIR"); ok {
		cfg.CSVDir = value
	}
	if value, ok := config.EnvString("BOOKCATALOG_IMAGES_DIR"); ok {
		cfg.ImagesDir = value
	}
	if value, ok := config.EnvString("BOOKCATALOG_FORMAT"); ok {
		cfg.OutputFormat = value
	}
	if value, ok := config.EnvString("BOOKCATALOG_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}

	flags := cmd.Flags()
	var err error
	if flags.Changed("base-url") {
		if cfg.BaseURL, err = flags.GetString("base-url"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("pages") {
		if cfg.MaxPages, err = flags.GetInt("pages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("parallel") {
		if cfg.Parallelism, err = flags.GetInt("parallel"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("delay") {
		if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("random-delay") {
		if cfg.RandomDelay, err = flags.GetDuration("random-delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-retries") {
		if cfg.MaxRetries, err = flags.GetInt("max-retries"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("retry-backoff") {
		if cfg.RetryBackoff, err = flags.GetDuration("retry-backoff"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("retry-backoff-max") {
		if cfg.RetryBackoffMax, err = flags.GetDuration("retry-backoff-max"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("csv-dir") {
		if cfg.CSVDir, err = flags.GetString("csv-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("images-dir") {
		if cfg.ImagesDir, err = flags.GetString("images-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("format") {
		if cfg.OutputFormat, err = flags.GetString("format"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("metrics-addr") {
		if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
			return nil, err
		}
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)

	return cfg, nil
}

func printSummary(result *models.CrawlResult, duration time.Duration, csvDir string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Crawl complete")

	fmt.Printf("  Categories:    %d (%d failed)\n", len(result.Categories), result.FailedCategories())
	fmt.Printf("  Records:       %d\n", result.TotalRecords())
	fmt.Printf("  Images:        %d\n", result.TotalImages())
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output dir:    %s\n", csvDir)
	fmt.Println(separator)
}
