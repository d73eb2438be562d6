// Package resolver discovers the catalog's undocumented panorama resource id
// (ext id) for a spec. The mapping is not served by any endpoint, so it is
// recovered by scraping the viewer page for candidates and verifying each one
// against the descriptor API.
package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/avkatev/autocrawl/internal/catalog"
)

// descriptorClient is the slice of the catalog client the resolver needs.
type descriptorClient interface {
	GetPanoPage(ctx context.Context, specID int64) (string, error)
	GetPanoBaseInfo(ctx context.Context, extID int64) (*catalog.PanoBaseInfoPayload, error)
}

// extIDCache looks up ext ids persisted by earlier runs.
type extIDCache interface {
	SavedPanoramaExtID(ctx context.Context, specID int64) (*int64, error)
}

// Resolver maps spec ids to panorama ext ids.
type Resolver struct {
	client descriptorClient
	cache  extIDCache
	log    *zap.Logger
}

// New builds a Resolver. cache may be nil, in which case every call scrapes.
func New(client descriptorClient, cache extIDCache, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{client: client, cache: cache, log: log}
}

// Resolve returns the ext id for a spec and whether one was found. The cache
// is consulted first, and a cached id is re-validated against the descriptor
// API before it is trusted: the mapping goes stale when the catalog reshuffles
// panoramas. On a miss or a stale hit the viewer page is scraped for
// candidates and each is verified by fetching its descriptor and checking
// that the API echoes the spec id back. A spec without a panorama resolves to
// found=false, not an error. A candidate whose descriptor fetch fails is
// treated as a non-match: failures here must never abort the run over one
// flaky probe.
func (r *Resolver) Resolve(ctx context.Context, specID int64) (int64, bool, error) {
	if r.cache != nil {
		saved, err := r.cache.SavedPanoramaExtID(ctx, specID)
		if err != nil {
			return 0, false, err
		}
		if saved != nil {
			if extID, ok := r.verify(ctx, specID, *saved); ok {
				r.log.Debug("ext id cache hit",
					zap.Int64("spec_id", specID), zap.Int64("ext_id", extID))
				return extID, true, nil
			}
			if err := ctx.Err(); err != nil {
				return 0, false, err
			}
			r.log.Info("cached ext id no longer matches, rediscovering",
				zap.Int64("spec_id", specID), zap.Int64("ext_id", *saved))
		}
	}

	candidates := r.scrapeCandidates(ctx, specID)
	for _, candidate := range candidates {
		if extID, ok := r.verify(ctx, specID, candidate); ok {
			r.log.Info("resolved ext id from page scrape",
				zap.Int64("spec_id", specID), zap.Int64("ext_id", extID))
			return extID, true, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
	}

	// Last resort: some specs use their own id as the ext id.
	if extID, ok := r.identityProbe(ctx, specID); ok {
		r.log.Info("resolved ext id via identity probe",
			zap.Int64("spec_id", specID), zap.Int64("ext_id", extID))
		return extID, true, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	r.log.Debug("no ext id found",
		zap.Int64("spec_id", specID), zap.Int("candidates", len(candidates)))
	return 0, false, nil
}

func (r *Resolver) scrapeCandidates(ctx context.Context, specID int64) []int64 {
	html, err := r.client.GetPanoPage(ctx, specID)
	if err != nil {
		// The viewer page 404s for specs without a panorama; the identity
		// probe still runs.
		r.log.Debug("pano page fetch failed",
			zap.Int64("spec_id", specID), zap.Error(err))
		return nil
	}
	return extractCandidates(html, specID)
}

// verify fetches the candidate's descriptor and accepts it only when the API
// echoes the spec id we are resolving for.
func (r *Resolver) verify(ctx context.Context, specID, candidate int64) (int64, bool) {
	payload, err := r.client.GetPanoBaseInfo(ctx, candidate)
	if err != nil {
		r.log.Debug("candidate probe failed",
			zap.Int64("spec_id", specID), zap.Int64("candidate", candidate), zap.Error(err))
		return 0, false
	}
	if payload == nil || payload.Ext.SpecID != specID || payload.Ext.ID == 0 {
		return 0, false
	}
	return payload.Ext.ID, true
}

// identityProbe tries the spec's own id as the ext id. When the descriptor
// answers for a different spec but names another ext id, that alternate gets
// exactly one follow-up probe.
func (r *Resolver) identityProbe(ctx context.Context, specID int64) (int64, bool) {
	payload, err := r.client.GetPanoBaseInfo(ctx, specID)
	if err != nil || payload == nil || payload.Ext.ID == 0 {
		return 0, false
	}
	if payload.Ext.SpecID == specID {
		return payload.Ext.ID, true
	}
	if alt := payload.Ext.ID; alt != specID {
		if ctx.Err() != nil {
			return 0, false
		}
		return r.verify(ctx, specID, alt)
	}
	return 0, false
}
