package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avkatev/autocrawl/internal/catalog"
	"github.com/avkatev/autocrawl/internal/config"
	"github.com/avkatev/autocrawl/internal/download"
	"github.com/avkatev/autocrawl/internal/logging"
	"github.com/avkatev/autocrawl/internal/metrics"
	"github.com/avkatev/autocrawl/internal/pipeline"
	"github.com/avkatev/autocrawl/internal/resolver"
	"github.com/avkatev/autocrawl/internal/store"
)

// crawlFlags are the per-invocation overrides on top of the config file.
type crawlFlags struct {
	workers      int
	seriesIDs    []int64
	forceReparse bool
	panoramaOnly bool
	imageDir     string
	skipPhotos   bool
	skipPanos    bool
	noDownloads  bool
}

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs a full crawl against the configured catalog",
		Long: `Runs the crawl pipeline: catalog tree, characteristics, photo metadata
and downloads, panorama metadata and downloads. Stage toggles from the config
file can be overridden per invocation with flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), flags)
		},
	}

	cmd.Flags().IntVar(&flags.workers, "workers", 0, "worker pool size (overrides config)")
	cmd.Flags().Int64SliceVar(&flags.seriesIDs, "series", nil, "restrict the run to these series ids")
	cmd.Flags().BoolVar(&flags.forceReparse, "force-reparse", false, "re-parse characteristics for series that already have specs")
	cmd.Flags().BoolVar(&flags.panoramaOnly, "360-only", false, "run panorama stages first and skip unfiltered photo stages")
	cmd.Flags().StringVar(&flags.imageDir, "image-dir", "", "asset output directory (overrides config)")
	cmd.Flags().BoolVar(&flags.skipPhotos, "skip-photos", false, "skip photo metadata and downloads")
	cmd.Flags().BoolVar(&flags.skipPanos, "skip-panoramas", false, "skip panorama metadata and downloads")
	cmd.Flags().BoolVar(&flags.noDownloads, "no-downloads", false, "parse metadata only, fetch no files")

	return cmd
}

func runCrawl(parent context.Context, flags crawlFlags) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyCrawlFlags(&cfg, flags)

	log, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, store.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.ConnLifetime(),
	})
	if err != nil {
		return fmt.Errorf("connect storage: %w", err)
	}
	defer st.Close()
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	client := catalog.NewClient(catalog.ClientConfig{
		MainBaseURL: cfg.Catalog.MainBaseURL,
		PanoBaseURL: cfg.Catalog.PanoBaseURL,
		Timeout:     cfg.CatalogTimeout(),
	})
	res := resolver.New(client, st, log.Named("resolver"))
	dl := download.New(download.Config{
		Timeout:   cfg.DownloadTimeout(),
		UserAgent: catalog.BrowserUserAgent,
	}, log.Named("download"))

	var crawlMetrics *metrics.Crawl
	if cfg.Metrics.Enabled {
		crawlMetrics, err = serveMetrics(ctx, log, cfg.Metrics.Port)
		if err != nil {
			return err
		}
	}

	pipe := pipeline.New(client, st, res, dl, crawlMetrics, log, pipeline.Options{
		Workers:              cfg.Crawl.Workers,
		PageSize:             cfg.Crawl.PageSize,
		PhotoBatchSize:       cfg.Crawl.PhotoBatchSize,
		ModelsPerBrand:       cfg.Crawl.ModelsPerBrand,
		MaxPhotoCombinations: cfg.Crawl.MaxPhotoCombinations,
		MaxColors:            cfg.Crawl.MaxColors,
		ParseModes:           cfg.Crawl.ParseModes,
		ForceReparse:         cfg.Crawl.ForceReparse,
		ParseCharacteristics: cfg.Crawl.ParseCharacteristics,
		ParsePhotos:          cfg.Crawl.ParsePhotos,
		DownloadPhotos:       cfg.Crawl.DownloadPhotos,
		ParsePanoramas:       cfg.Crawl.ParsePanoramas,
		DownloadPanoramas:    cfg.Crawl.DownloadPanoramas,
		PanoramaOnly:         cfg.Crawl.PanoramaOnly,
		PanoramaCategories:   cfg.Crawl.PanoramaCategories,
		SeriesIDs:            cfg.Crawl.SeriesIDs,
		ImageDir:             cfg.Download.ImageDir,
	})

	if _, err := pipe.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}
	return nil
}

func applyCrawlFlags(cfg *config.Config, flags crawlFlags) {
	if flags.workers > 0 {
		cfg.Crawl.Workers = flags.workers
	}
	if len(flags.seriesIDs) > 0 {
		cfg.Crawl.SeriesIDs = flags.seriesIDs
	}
	if flags.forceReparse {
		cfg.Crawl.ForceReparse = true
	}
	if flags.panoramaOnly {
		cfg.Crawl.PanoramaOnly = true
	}
	if flags.imageDir != "" {
		cfg.Download.ImageDir = flags.imageDir
	}
	if flags.skipPhotos {
		cfg.Crawl.ParsePhotos = false
		cfg.Crawl.DownloadPhotos = false
	}
	if flags.skipPanos {
		cfg.Crawl.ParsePanoramas = false
		cfg.Crawl.DownloadPanoramas = false
	}
	if flags.noDownloads {
		cfg.Crawl.DownloadPhotos = false
		cfg.Crawl.DownloadPanoramas = false
	}
}

// serveMetrics registers the crawl collectors and exposes them until ctx ends.
func serveMetrics(ctx context.Context, log *zap.Logger, port int) (*metrics.Crawl, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	crawlMetrics, err := metrics.NewCrawl(reg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("metrics endpoint up", zap.Int("port", port))
	return crawlMetrics, nil
}
