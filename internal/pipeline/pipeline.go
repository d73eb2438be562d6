// Package pipeline orchestrates a crawl run: catalog tree, characteristics,
// photo metadata and downloads, panorama metadata and downloads. Stages run
// sequentially; each stage fans its units out over a bounded worker pool.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avkatev/autocrawl/internal/catalog"
	"github.com/avkatev/autocrawl/internal/download"
	"github.com/avkatev/autocrawl/internal/metrics"
	"github.com/avkatev/autocrawl/internal/model"
	"github.com/avkatev/autocrawl/internal/store"
)

// Stage names used in logs, stats, and metrics labels.
const (
	StageTree             = "tree"
	StageCharacteristics  = "characteristics"
	StagePhotoMetadata    = "photo_metadata"
	StagePhotoDownload    = "photo_download"
	StagePanoramaMetadata = "panorama_metadata"
	StagePanoramaDownload = "panorama_download"
)

// Entity labels for upsert stats.
const (
	entityBrands          = "brands"
	entitySeries          = "series"
	entitySpecs           = "specs"
	entityParamTitles     = "param_titles"
	entityParamValues     = "param_values"
	entityPhotoColors     = "photo_colors"
	entityPhotoCategories = "photo_categories"
	entityPhotos          = "photos"
	entityPanoColors      = "panorama_colors"
	entityPanoPhotos      = "panorama_photos"
)

// Asset kinds for download stats.
const (
	kindPhoto    = "photo"
	kindPanorama = "panorama"
)

// repository is the slice of the store the pipeline uses.
type repository interface {
	UpsertBrands(ctx context.Context, brands []model.Brand) (store.Counts, error)
	UpsertSeries(ctx context.Context, series []model.Series) (store.Counts, error)
	UpsertSpecs(ctx context.Context, specs []model.Spec) (store.Counts, error)
	UpsertParamTitles(ctx context.Context, titles []model.ParamTitle) (store.Counts, error)
	UpsertParamValues(ctx context.Context, values []model.ParamValue) (store.Counts, error)
	UpsertPhotoColors(ctx context.Context, colors []model.PhotoColor) (store.Counts, error)
	UpsertPhotoCategories(ctx context.Context, categories []model.PhotoCategory) (store.Counts, error)
	UpsertPhotos(ctx context.Context, photos []model.Photo) (store.Counts, error)
	UpsertPanoramaColors(ctx context.Context, colors []model.PanoramaColor) (store.Counts, error)
	UpsertPanoramaPhotos(ctx context.Context, photos []model.PanoramaPhoto) (store.Counts, error)

	SeriesIDsWithoutSpecs(ctx context.Context, ids []int64) ([]int64, error)
	SeriesIDsWithSpecs(ctx context.Context) ([]int64, error)
	SeriesIDsWithPhotos(ctx context.Context) ([]int64, error)
	SpecIDsBySeries(ctx context.Context, seriesID int64) ([]int64, error)
	SpecSeriesID(ctx context.Context, specID int64) (int64, error)
	PhotosBySeries(ctx context.Context, seriesID int64) ([]model.Photo, error)
	SetPhotoLocalPath(ctx context.Context, photoID, path string) error
	PanoramaPhotosBySpec(ctx context.Context, specID int64) ([]model.PanoramaPhoto, error)
	SpecIDsWithPanoramaColors(ctx context.Context) ([]int64, error)
	SpecIDsWithPanoramaPhotos(ctx context.Context) ([]int64, error)
	BackfillPanoramaExtID(ctx context.Context, specID, extID int64) (int64, error)
	SetPanoramaPhotoLocalPath(ctx context.Context, id, path string) error
}

// catalogClient is the slice of the catalog API client the pipeline uses.
type catalogClient interface {
	GetTreeMenu(ctx context.Context) (*catalog.TreeMenuPayload, error)
	GetParamConf(ctx context.Context, seriesID int64, mode int) (*catalog.ParamConfPayload, error)
	GetSeriesBasePicInfo(ctx context.Context, seriesID int64) (*catalog.BasePicInfoPayload, error)
	GetPicList(ctx context.Context, seriesID, specID, categoryID, colorID int64, isInner bool, pageSize, pageIndex int) (*catalog.PicListPayload, error)
	GetPanoBaseInfo(ctx context.Context, extID int64) (*catalog.PanoBaseInfoPayload, error)
	GetVrInfo(ctx context.Context, specID, colorID int64) (*catalog.VrInfoPayload, error)
}

// extResolver maps spec ids to panorama ext ids.
type extResolver interface {
	Resolve(ctx context.Context, specID int64) (int64, bool, error)
}

// assetFetcher downloads one asset to disk.
type assetFetcher interface {
	Fetch(ctx context.Context, url, dest string) (download.Outcome, error)
}

// Options control which stages run and how wide they fan out.
type Options struct {
	Workers        int
	PageSize       int
	PhotoBatchSize int

	// ModelsPerBrand caps the tree to the first N brands; 0 keeps all.
	ModelsPerBrand int
	// MaxPhotoCombinations caps spec x category x color listing walks per
	// series; 0 is unlimited.
	MaxPhotoCombinations int
	// MaxColors caps per-series color fan-out on top of the "all colors"
	// pseudo-color; 0 is unlimited.
	MaxColors int

	// ParseModes are the characteristic sheet variants to fetch per series.
	ParseModes []int
	// ForceReparse re-fetches characteristics even for series that already
	// have specs stored.
	ForceReparse bool

	ParseCharacteristics bool
	ParsePhotos          bool
	DownloadPhotos       bool
	ParsePanoramas       bool
	DownloadPanoramas    bool

	// PanoramaOnly runs the panorama stages directly after characteristics
	// and restricts photo parsing to PanoramaCategories (skipping photo
	// stages entirely when that list is empty).
	PanoramaOnly       bool
	PanoramaCategories []int64

	// SeriesIDs restricts the run to specific series; empty means the whole
	// catalog tree.
	SeriesIDs []int64

	ImageDir string

	Retry RetryPolicy
}

func (o *Options) normalize() {
	if o.Workers < 1 {
		o.Workers = 4
	}
	if o.PageSize < 1 {
		o.PageSize = 50
	}
	if o.PhotoBatchSize < 1 {
		o.PhotoBatchSize = 200
	}
	if len(o.ParseModes) == 0 {
		o.ParseModes = []int{1}
	}
	if o.Retry.Attempts == 0 {
		o.Retry = DefaultRetryPolicy()
	}
}

// Pipeline wires one crawl run together.
type Pipeline struct {
	client     catalogClient
	repo       repository
	resolver   extResolver
	downloader assetFetcher
	crawl      *metrics.Crawl
	log        *zap.Logger
	opts       Options
	stats      *Stats

	// series kept by the tree stage, consumed by later stages.
	runSeries []model.Series
}

// New builds a Pipeline. crawl may be nil to disable metrics.
func New(
	client catalogClient,
	repo repository,
	res extResolver,
	dl assetFetcher,
	crawl *metrics.Crawl,
	log *zap.Logger,
	opts Options,
) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	opts.normalize()
	return &Pipeline{
		client:     client,
		repo:       repo,
		resolver:   res,
		downloader: dl,
		crawl:      crawl,
		log:        log,
		opts:       opts,
		stats:      NewStats(),
	}
}

// Run executes the enabled stages in order and returns the final counters.
// Per-unit failures in every stage are logged and counted, never abort the
// run; a stage only errors out when its own setup reads fail or the context
// is cancelled.
func (p *Pipeline) Run(ctx context.Context) (Snapshot, error) {
	runID := uuid.NewString()
	log := p.log.With(zap.String("run_id", runID))
	start := time.Now()
	log.Info("crawl run started",
		zap.Int("workers", p.opts.Workers),
		zap.Bool("panorama_only", p.opts.PanoramaOnly))

	if err := p.runStage(ctx, log, StageTree, p.stageTree); err != nil {
		return p.stats.Snapshot(), fmt.Errorf("tree stage: %w", err)
	}
	if p.opts.ParseCharacteristics {
		if err := p.runStage(ctx, log, StageCharacteristics, p.stageCharacteristics); err != nil {
			return p.stats.Snapshot(), fmt.Errorf("characteristics stage: %w", err)
		}
	}

	photoStages := func() error {
		if p.opts.ParsePhotos {
			if err := p.runStage(ctx, log, StagePhotoMetadata, p.stagePhotoMetadata); err != nil {
				return fmt.Errorf("photo metadata stage: %w", err)
			}
		}
		if p.opts.DownloadPhotos {
			if err := p.runStage(ctx, log, StagePhotoDownload, p.stagePhotoDownload); err != nil {
				return fmt.Errorf("photo download stage: %w", err)
			}
		}
		return nil
	}
	panoStages := func() error {
		if p.opts.ParsePanoramas {
			if err := p.runStage(ctx, log, StagePanoramaMetadata, p.stagePanoramaMetadata); err != nil {
				return fmt.Errorf("panorama metadata stage: %w", err)
			}
		}
		if p.opts.DownloadPanoramas {
			if err := p.runStage(ctx, log, StagePanoramaDownload, p.stagePanoramaDownload); err != nil {
				return fmt.Errorf("panorama download stage: %w", err)
			}
		}
		return nil
	}

	var err error
	if p.opts.PanoramaOnly {
		// 360-only runs panoramas first; photos only when a category filter
		// keeps a slice of them.
		err = panoStages()
		if err == nil && len(p.opts.PanoramaCategories) > 0 {
			err = photoStages()
		}
	} else {
		err = photoStages()
		if err == nil {
			err = panoStages()
		}
	}

	snap := p.stats.Snapshot()
	p.logSummary(log, snap, time.Since(start))
	return snap, err
}

func (p *Pipeline) runStage(
	ctx context.Context,
	log *zap.Logger,
	name string,
	fn func(context.Context, *zap.Logger) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stageLog := log.With(zap.String("stage", name))
	stageLog.Info("stage started")
	start := time.Now()
	err := fn(ctx, stageLog)
	elapsed := time.Since(start)
	p.crawl.ObserveStageDuration(name, elapsed.Seconds())
	if err != nil {
		stageLog.Error("stage failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return err
	}
	stageLog.Info("stage finished", zap.Duration("elapsed", elapsed))
	return nil
}

// recordUpsert funnels one upsert result into stats and metrics.
func (p *Pipeline) recordUpsert(entity string, counts store.Counts) {
	p.stats.AddUpsert(entity, counts)
	p.crawl.ObserveUpsert(entity, counts.Inserted, counts.Updated, counts.Skipped)
}

// unitFailure logs and counts a swallowed per-unit error.
func (p *Pipeline) unitFailure(log *zap.Logger, stage string, err error, fields ...zap.Field) {
	p.stats.AddStageError(stage)
	p.crawl.ObserveStageError(stage)
	log.Error("unit failed", append(fields, zap.Error(err))...)
}

func (p *Pipeline) logSummary(log *zap.Logger, snap Snapshot, elapsed time.Duration) {
	fields := []zap.Field{zap.Duration("elapsed", elapsed)}
	for entity, counts := range snap.Upserts {
		fields = append(fields, zap.String(entity,
			fmt.Sprintf("inserted=%d updated=%d skipped=%d",
				counts.Inserted, counts.Updated, counts.Skipped)))
	}
	for kind, tally := range snap.Downloads {
		fields = append(fields, zap.String(kind+"_files",
			fmt.Sprintf("downloaded=%d cached=%d failed=%d",
				tally.Downloaded, tally.Cached, tally.Failed)))
	}
	fields = append(fields,
		zap.Int("ext_ids_resolved", snap.ResolvedFound),
		zap.Int("ext_ids_missing", snap.ResolvedMissing))
	for stage, n := range snap.StageErrors {
		fields = append(fields, zap.Int("errors_"+stage, n))
	}
	log.Info("crawl run finished", fields...)
}
