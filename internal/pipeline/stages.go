package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/avkatev/autocrawl/internal/catalog"
	"github.com/avkatev/autocrawl/internal/download"
	"github.com/avkatev/autocrawl/internal/model"
	"github.com/avkatev/autocrawl/internal/store"
)

// stageTree fetches the brand/series tree and persists it. The kept series
// list seeds every later stage.
func (p *Pipeline) stageTree(ctx context.Context, log *zap.Logger) error {
	payload, err := p.client.GetTreeMenu(ctx)
	if err != nil {
		return err
	}
	tree := catalog.ParseTreeMenu(payload)

	series := tree.Series
	if len(p.opts.SeriesIDs) > 0 {
		wanted := make(map[int64]bool, len(p.opts.SeriesIDs))
		for _, id := range p.opts.SeriesIDs {
			wanted[id] = true
		}
		filtered := series[:0]
		for _, s := range series {
			if wanted[s.ID] {
				filtered = append(filtered, s)
			}
		}
		series = filtered
	}
	series = catalog.LimitSeriesPerBrand(series, p.opts.ModelsPerBrand)

	keptBrands := make(map[int64]bool, len(series))
	for _, s := range series {
		keptBrands[s.BrandID] = true
	}
	var brands []model.Brand
	for _, b := range tree.Brands {
		if keptBrands[b.ID] {
			brands = append(brands, b)
		}
	}

	if err := p.upsertWithRetry(ctx, log, entityBrands, func() (store.Counts, error) {
		return p.repo.UpsertBrands(ctx, brands)
	}); err != nil {
		return err
	}
	if err := p.upsertWithRetry(ctx, log, entitySeries, func() (store.Counts, error) {
		return p.repo.UpsertSeries(ctx, series)
	}); err != nil {
		return err
	}

	p.runSeries = series
	log.Info("catalog tree persisted",
		zap.Int("brands", len(brands)), zap.Int("series", len(series)))
	return nil
}

// stageCharacteristics fetches spec sheets for every target series. A failing
// series is logged and counted, never aborts the run: the rest of the catalog
// still gets its spec rows.
func (p *Pipeline) stageCharacteristics(ctx context.Context, log *zap.Logger) error {
	ids := p.runSeriesIDs()
	if !p.opts.ForceReparse {
		var err error
		ids, err = p.repo.SeriesIDsWithoutSpecs(ctx, ids)
		if err != nil {
			return err
		}
	}
	log.Info("parsing characteristics", zap.Int("series", len(ids)))

	return runPool(ctx, p.opts.Workers, ids, func(ctx context.Context, seriesID int64) error {
		for _, mode := range p.opts.ParseModes {
			if err := p.parseSeriesCharacteristics(ctx, log, seriesID, mode); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.unitFailure(log, StageCharacteristics, err,
					zap.Int64("series_id", seriesID), zap.Int("mode", mode))
			}
		}
		return nil
	})
}

func (p *Pipeline) parseSeriesCharacteristics(ctx context.Context, log *zap.Logger, seriesID int64, mode int) error {
	payload, err := p.client.GetParamConf(ctx, seriesID, mode)
	if err != nil {
		return err
	}
	conf := catalog.ParseParamConf(payload, seriesID)
	if err := p.upsertWithRetry(ctx, log, entitySpecs, func() (store.Counts, error) {
		return p.repo.UpsertSpecs(ctx, conf.Specs)
	}); err != nil {
		return err
	}
	if err := p.upsertWithRetry(ctx, log, entityParamTitles, func() (store.Counts, error) {
		return p.repo.UpsertParamTitles(ctx, conf.Titles)
	}); err != nil {
		return err
	}
	return p.upsertWithRetry(ctx, log, entityParamValues, func() (store.Counts, error) {
		return p.repo.UpsertParamValues(ctx, conf.Values)
	})
}

// stagePhotoMetadata walks photo listings for every series that has specs.
// A failing series is logged and skipped; the rest of the catalog still gets
// crawled.
func (p *Pipeline) stagePhotoMetadata(ctx context.Context, log *zap.Logger) error {
	withSpecs, err := p.repo.SeriesIDsWithSpecs(ctx)
	if err != nil {
		return err
	}
	targets := intersect(p.runSeriesIDs(), withSpecs)

	// In 360-only mode, specs that already got panorama metadata are excluded
	// from the photo walk; only the leftover specs go through the category
	// allowlist.
	skipSpecs := make(map[int64]bool)
	if p.opts.PanoramaOnly {
		covered, err := p.repo.SpecIDsWithPanoramaColors(ctx)
		if err != nil {
			return err
		}
		for _, id := range covered {
			skipSpecs[id] = true
		}
	}
	log.Info("parsing photo metadata",
		zap.Int("series", len(targets)), zap.Int("skipped_specs", len(skipSpecs)))

	return runPool(ctx, p.opts.Workers, targets, func(ctx context.Context, seriesID int64) error {
		if err := p.parseSeriesPhotos(ctx, log, seriesID, skipSpecs); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.unitFailure(log, StagePhotoMetadata, err, zap.Int64("series_id", seriesID))
		}
		return nil
	})
}

func (p *Pipeline) parseSeriesPhotos(ctx context.Context, log *zap.Logger, seriesID int64, skipSpecs map[int64]bool) error {
	payload, err := p.client.GetSeriesBasePicInfo(ctx, seriesID)
	if err != nil {
		return err
	}
	info := catalog.ParseSeriesBasePicInfo(payload, seriesID)
	if err := p.upsertWithRetry(ctx, log, entityPhotoColors, func() (store.Counts, error) {
		return p.repo.UpsertPhotoColors(ctx, info.Colors)
	}); err != nil {
		return err
	}
	if err := p.upsertWithRetry(ctx, log, entityPhotoCategories, func() (store.Counts, error) {
		return p.repo.UpsertPhotoCategories(ctx, info.Categories)
	}); err != nil {
		return err
	}

	specIDs, err := p.repo.SpecIDsBySeries(ctx, seriesID)
	if err != nil {
		return err
	}
	categories := p.filterCategories(info.Categories)
	colors := p.colorTargets(info.Colors)

	combos := 0
	for _, specID := range specIDs {
		if skipSpecs[specID] {
			continue
		}
		for _, category := range categories {
			for _, color := range colors {
				if p.opts.MaxPhotoCombinations > 0 && combos >= p.opts.MaxPhotoCombinations {
					log.Debug("combination cap reached",
						zap.Int64("series_id", seriesID), zap.Int("combos", combos))
					return nil
				}
				combos++
				if err := p.walkPicList(ctx, log, seriesID, specID, category.ID, color); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// filterCategories applies the 360-only category allowlist.
func (p *Pipeline) filterCategories(categories []model.PhotoCategory) []model.PhotoCategory {
	if !p.opts.PanoramaOnly || len(p.opts.PanoramaCategories) == 0 {
		return categories
	}
	allowed := make(map[int64]bool, len(p.opts.PanoramaCategories))
	for _, id := range p.opts.PanoramaCategories {
		allowed[id] = true
	}
	var out []model.PhotoCategory
	for _, c := range categories {
		if allowed[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// colorTargets prepends the "all colors" pseudo-color and applies the color
// cap.
func (p *Pipeline) colorTargets(colors []model.PhotoColor) []model.PhotoColor {
	out := []model.PhotoColor{{ID: 0, ColorType: model.ColorTypeExterior}}
	for i, c := range colors {
		if p.opts.MaxColors > 0 && i >= p.opts.MaxColors {
			break
		}
		out = append(out, c)
	}
	return out
}

// walkPicList paginates one spec x category x color listing, flushing photos
// in batches so one huge listing never holds thousands of rows in memory.
func (p *Pipeline) walkPicList(
	ctx context.Context,
	log *zap.Logger,
	seriesID, specID, categoryID int64,
	color model.PhotoColor,
) error {
	isInner := color.ColorType == model.ColorTypeInterior
	var batch []model.Photo
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := p.upsertWithRetry(ctx, log, entityPhotos, func() (store.Counts, error) {
			return p.repo.UpsertPhotos(ctx, batch)
		})
		batch = batch[:0]
		return err
	}

	pageIndex := 1
	for {
		payload, err := p.client.GetPicList(ctx, seriesID, specID, categoryID, color.ID,
			isInner, p.opts.PageSize, pageIndex)
		if err != nil {
			return err
		}
		page := catalog.ParsePicList(payload, seriesID, specID, categoryID, color.ID)
		batch = append(batch, page.Photos...)
		if len(batch) >= p.opts.PhotoBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
		if pageIndex >= page.PageCount {
			break
		}
		pageIndex++
	}
	return flush()
}

// stagePhotoDownload fetches every stored photo of the run's series. Failures
// are per-file: one bad CDN object must not stop the rest.
func (p *Pipeline) stagePhotoDownload(ctx context.Context, log *zap.Logger) error {
	withPhotos, err := p.repo.SeriesIDsWithPhotos(ctx)
	if err != nil {
		return err
	}
	targets := intersect(p.runSeriesIDs(), withPhotos)
	log.Info("downloading photos", zap.Int("series", len(targets)))

	return runPool(ctx, p.opts.Workers, targets, func(ctx context.Context, seriesID int64) error {
		photos, err := p.repo.PhotosBySeries(ctx, seriesID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.unitFailure(log, StagePhotoDownload, err, zap.Int64("series_id", seriesID))
			return nil
		}
		for _, photo := range photos {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.downloadPhoto(ctx, log, photo)
		}
		return nil
	})
}

// downloadPhoto fetches one photo. A stored local path is never trusted on
// its own; the downloader re-validates whatever is on disk and reports Cached
// only for a file that still passes inspection.
func (p *Pipeline) downloadPhoto(ctx context.Context, log *zap.Logger, photo model.Photo) {
	if photo.OriginalURL == "" {
		return
	}
	dest := download.PhotoPath(p.opts.ImageDir,
		photo.SeriesID, photo.SpecID, photo.CategoryID, photo.ColorID,
		photo.ID, photo.OriginalURL)
	outcome, err := p.downloader.Fetch(ctx, photo.OriginalURL, dest)
	if err != nil {
		p.stats.AddDownloadFailed(kindPhoto)
		p.crawl.ObserveDownload(kindPhoto, "failed")
		log.Warn("photo download failed",
			zap.String("photo_id", photo.ID),
			zap.String("url", photo.OriginalURL),
			zap.Error(err))
		return
	}
	p.recordFetch(kindPhoto, outcome)
	if photo.LocalPath != dest {
		if err := p.repo.SetPhotoLocalPath(ctx, photo.ID, dest); err != nil {
			log.Warn("record photo path failed",
				zap.String("photo_id", photo.ID), zap.Error(err))
		}
	}
}

// stagePanoramaMetadata resolves ext ids and persists panorama colors and
// frames per spec. A spec without a panorama is normal, not an error.
func (p *Pipeline) stagePanoramaMetadata(ctx context.Context, log *zap.Logger) error {
	specIDs, err := p.runSpecIDs(ctx)
	if err != nil {
		return err
	}
	log.Info("parsing panorama metadata", zap.Int("specs", len(specIDs)))

	return runPool(ctx, p.opts.Workers, specIDs, func(ctx context.Context, specID int64) error {
		if err := p.parseSpecPanorama(ctx, log, specID); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.unitFailure(log, StagePanoramaMetadata, err, zap.Int64("spec_id", specID))
		}
		return nil
	})
}

func (p *Pipeline) parseSpecPanorama(ctx context.Context, log *zap.Logger, specID int64) error {
	extID, found, err := p.resolver.Resolve(ctx, specID)
	if err != nil {
		return err
	}
	p.stats.AddResolution(found)
	p.crawl.ObserveResolution(found)
	if !found {
		return nil
	}

	payload, err := p.client.GetPanoBaseInfo(ctx, extID)
	if err != nil {
		return err
	}
	base := catalog.ParsePanoBaseInfo(payload, specID)
	if err := p.upsertWithRetry(ctx, log, entityPanoColors, func() (store.Counts, error) {
		return p.repo.UpsertPanoramaColors(ctx, base.Colors)
	}); err != nil {
		return err
	}

	frames := base.Photos
	for _, color := range base.Colors {
		vr, err := p.client.GetVrInfo(ctx, specID, color.ColorID)
		if err != nil {
			// Some colors have no frame listing of their own.
			log.Debug("vr info unavailable",
				zap.Int64("spec_id", specID),
				zap.Int64("color_id", color.ColorID),
				zap.Error(err))
			continue
		}
		frames = append(frames, catalog.ParseVrInfo(vr, specID, color.ColorID)...)
	}
	if err := p.upsertWithRetry(ctx, log, entityPanoPhotos, func() (store.Counts, error) {
		return p.repo.UpsertPanoramaPhotos(ctx, frames)
	}); err != nil {
		return err
	}

	backfilled, err := p.repo.BackfillPanoramaExtID(ctx, specID, extID)
	if err != nil {
		return err
	}
	if backfilled > 0 {
		log.Debug("backfilled ext id",
			zap.Int64("spec_id", specID),
			zap.Int64("ext_id", extID),
			zap.Int64("rows", backfilled))
	}
	return nil
}

// stagePanoramaDownload fetches stored panorama frames. Specs fan out over
// the run pool; each spec's frames use a smaller nested pool.
func (p *Pipeline) stagePanoramaDownload(ctx context.Context, log *zap.Logger) error {
	withFrames, err := p.repo.SpecIDsWithPanoramaPhotos(ctx)
	if err != nil {
		return err
	}
	runSpecs, err := p.runSpecIDs(ctx)
	if err != nil {
		return err
	}
	targets := intersect(runSpecs, withFrames)
	log.Info("downloading panorama frames", zap.Int("specs", len(targets)))

	inner := nestedPoolSize(p.opts.Workers)
	return runPool(ctx, p.opts.Workers, targets, func(ctx context.Context, specID int64) error {
		seriesID, err := p.repo.SpecSeriesID(ctx, specID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Includes ErrMissingSpec: a frame row whose spec vanished points
			// at a stage-ordering bug, but one spec never aborts the run.
			p.unitFailure(log, StagePanoramaDownload, err, zap.Int64("spec_id", specID))
			return nil
		}
		photos, err := p.repo.PanoramaPhotosBySpec(ctx, specID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.unitFailure(log, StagePanoramaDownload, err, zap.Int64("spec_id", specID))
			return nil
		}
		return runPool(ctx, inner, photos, func(ctx context.Context, photo model.PanoramaPhoto) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.downloadPanoramaFrame(ctx, log, seriesID, photo)
			return nil
		})
	})
}

func (p *Pipeline) downloadPanoramaFrame(ctx context.Context, log *zap.Logger, seriesID int64, photo model.PanoramaPhoto) {
	if photo.URL == "" {
		return
	}
	dest := download.PanoramaPath(p.opts.ImageDir,
		seriesID, photo.SpecID, photo.ColorID, photo.Seq, photo.URL)
	outcome, err := p.downloader.Fetch(ctx, photo.URL, dest)
	if err != nil {
		p.stats.AddDownloadFailed(kindPanorama)
		p.crawl.ObserveDownload(kindPanorama, "failed")
		log.Warn("panorama frame download failed",
			zap.String("frame_id", photo.ID),
			zap.String("url", photo.URL),
			zap.Error(err))
		return
	}
	p.recordFetch(kindPanorama, outcome)
	if photo.LocalPath != dest {
		if err := p.repo.SetPanoramaPhotoLocalPath(ctx, photo.ID, dest); err != nil {
			log.Warn("record frame path failed",
				zap.String("frame_id", photo.ID), zap.Error(err))
		}
	}
}

func (p *Pipeline) recordFetch(kind string, outcome download.Outcome) {
	if outcome == download.OutcomeCached {
		p.stats.AddCached(kind)
	} else {
		p.stats.AddDownloaded(kind)
	}
	p.crawl.ObserveDownload(kind, outcome.String())
}

// upsertWithRetry runs one upsert under the contention policy and records its
// result on success.
func (p *Pipeline) upsertWithRetry(
	ctx context.Context,
	log *zap.Logger,
	entity string,
	fn func() (store.Counts, error),
) error {
	var counts store.Counts
	err := p.opts.Retry.Run(ctx, log, "upsert "+entity, func() error {
		var err error
		counts, err = fn()
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", entity, err)
	}
	p.recordUpsert(entity, counts)
	return nil
}

func (p *Pipeline) runSeriesIDs() []int64 {
	ids := make([]int64, 0, len(p.runSeries))
	for _, s := range p.runSeries {
		ids = append(ids, s.ID)
	}
	return ids
}

// runSpecIDs collects the spec ids of every run series, in series order.
func (p *Pipeline) runSpecIDs(ctx context.Context) ([]int64, error) {
	var out []int64
	for _, s := range p.runSeries {
		ids, err := p.repo.SpecIDsBySeries(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	return out, nil
}

// intersect keeps the ids of a that also appear in b, preserving a's order.
func intersect(a, b []int64) []int64 {
	allowed := make(map[int64]bool, len(b))
	for _, id := range b {
		allowed[id] = true
	}
	var out []int64
	for _, id := range a {
		if allowed[id] {
			out = append(out, id)
		}
	}
	return out
}
