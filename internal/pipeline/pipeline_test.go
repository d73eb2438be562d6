package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avkatev/autocrawl/internal/catalog"
	"github.com/avkatev/autocrawl/internal/download"
	"github.com/avkatev/autocrawl/internal/model"
	"github.com/avkatev/autocrawl/internal/store"
)

func i64(v int64) *int64 { return &v }
func iptr(v int) *int    { return &v }

// fakeClient serves a one-brand, one-series, one-spec catalog and records the
// order of endpoint calls.
type fakeClient struct {
	mu    sync.Mutex
	calls []string

	paramConfErr error
	basePicErr   error
	vrErr        error
}

func (f *fakeClient) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeClient) callIndex(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.calls {
		if c == name {
			return i
		}
	}
	return -1
}

func (f *fakeClient) GetTreeMenu(_ context.Context) (*catalog.TreeMenuPayload, error) {
	f.record("tree_menu")
	return &catalog.TreeMenuPayload{Result: []catalog.TreeLetterGroup{{
		BrandItems: []catalog.TreeBrand{{
			ID: i64(15), Name: "Audi",
			FctItems: []catalog.TreeFactory{{
				SeriesItems: []catalog.TreeSeries{{ID: i64(100), Name: "A4"}},
			}},
		}},
	}}}, nil
}

func (f *fakeClient) GetParamConf(_ context.Context, _ int64, _ int) (*catalog.ParamConfPayload, error) {
	f.record("param_conf")
	if f.paramConfErr != nil {
		return nil, f.paramConfErr
	}
	return &catalog.ParamConfPayload{Result: catalog.ParamConfResult{
		TitleList: []catalog.ParamTitleGroup{{
			GroupName: "Powertrain",
			Items:     []catalog.ParamTitleItem{{TitleID: i64(7), ItemName: "Engine"}},
		}},
		DataList: []catalog.ParamSpecItem{{
			SpecID: i64(9001), SpecName: "A4 45 TFSI",
			ParamConfList: []catalog.ParamConfItem{{TitleID: i64(7), ItemName: "2.0T"}},
		}},
	}}, nil
}

func (f *fakeClient) GetSeriesBasePicInfo(_ context.Context, _ int64) (*catalog.BasePicInfoPayload, error) {
	f.record("base_pic_info")
	if f.basePicErr != nil {
		return nil, f.basePicErr
	}
	return &catalog.BasePicInfoPayload{Result: catalog.BasePicInfoResult{
		ExteriorColor: []catalog.PicColorItem{{ID: i64(77), Name: "White"}},
		PicTypeList:   []catalog.PicTypeItem{{ID: i64(1), Name: "Exterior"}},
	}}, nil
}

func (f *fakeClient) GetPicList(_ context.Context, _, _, _, _ int64, _ bool, _, _ int) (*catalog.PicListPayload, error) {
	f.record("pic_list")
	return &catalog.PicListPayload{Result: catalog.PicListResult{
		PicList:   []catalog.PicItem{{ID: "ph1", OriginalPic: "https://cdn.example/ph1.jpg"}},
		PageCount: 1, RowCount: 1,
	}}, nil
}

func (f *fakeClient) GetPanoBaseInfo(_ context.Context, _ int64) (*catalog.PanoBaseInfoPayload, error) {
	f.record("pano_base_info")
	return &catalog.PanoBaseInfoPayload{
		Ext: catalog.PanoExt{ID: 54321, SpecID: 9001},
		ColorInfo: []catalog.PanoColorInfo{{
			ID: 1, ColorID: i64(5), ColorName: "Pearl White",
			Hori: catalog.PanoHori{Normal: []catalog.PanoFrame{
				{Seq: iptr(1), URL: "https://cdn.example/frame1.jpg"},
			}},
		}},
	}, nil
}

func (f *fakeClient) GetVrInfo(_ context.Context, _, _ int64) (*catalog.VrInfoPayload, error) {
	f.record("vr_info")
	if f.vrErr != nil {
		return nil, f.vrErr
	}
	return &catalog.VrInfoPayload{Result: catalog.VrInfoResult{
		L1: []catalog.VrFrame{{Seq: iptr(2), URL: "https://cdn.example/frame2.jpg"}},
	}}, nil
}

// fakeRepo answers reads from canned data and records writes.
type fakeRepo struct {
	mu         sync.Mutex
	upserted   map[string]int
	photoPaths map[string]string
	framePaths map[string]string
	backfilled map[int64]int64
	panoSpecs  []int64

	photos     []model.Photo
	panoPhotos []model.PanoramaPhoto
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		upserted:   make(map[string]int),
		photoPaths: make(map[string]string),
		framePaths: make(map[string]string),
		backfilled: make(map[int64]int64),
		photos: []model.Photo{{
			ID: "ph1", SeriesID: 100, SpecID: 9001, CategoryID: 1, ColorID: 77,
			OriginalURL: "https://cdn.example/ph1.jpg",
		}},
		panoPhotos: []model.PanoramaPhoto{
			{ID: "9001_5_1", SpecID: 9001, ColorID: 5, Seq: 1, URL: "https://cdn.example/frame1.jpg"},
			{ID: "9001_5_2", SpecID: 9001, ColorID: 5, Seq: 2, URL: "https://cdn.example/frame2.jpg"},
		},
	}
}

func (r *fakeRepo) bump(entity string, n int) (store.Counts, error) {
	r.mu.Lock()
	r.upserted[entity] += n
	r.mu.Unlock()
	return store.Counts{Inserted: n}, nil
}

func (r *fakeRepo) UpsertBrands(_ context.Context, b []model.Brand) (store.Counts, error) {
	return r.bump("brands", len(b))
}
func (r *fakeRepo) UpsertSeries(_ context.Context, s []model.Series) (store.Counts, error) {
	return r.bump("series", len(s))
}
func (r *fakeRepo) UpsertSpecs(_ context.Context, s []model.Spec) (store.Counts, error) {
	return r.bump("specs", len(s))
}
func (r *fakeRepo) UpsertParamTitles(_ context.Context, t []model.ParamTitle) (store.Counts, error) {
	return r.bump("param_titles", len(t))
}
func (r *fakeRepo) UpsertParamValues(_ context.Context, v []model.ParamValue) (store.Counts, error) {
	return r.bump("param_values", len(v))
}
func (r *fakeRepo) UpsertPhotoColors(_ context.Context, c []model.PhotoColor) (store.Counts, error) {
	return r.bump("photo_colors", len(c))
}
func (r *fakeRepo) UpsertPhotoCategories(_ context.Context, c []model.PhotoCategory) (store.Counts, error) {
	return r.bump("photo_categories", len(c))
}
func (r *fakeRepo) UpsertPhotos(_ context.Context, p []model.Photo) (store.Counts, error) {
	return r.bump("photos", len(p))
}
func (r *fakeRepo) UpsertPanoramaColors(_ context.Context, c []model.PanoramaColor) (store.Counts, error) {
	r.mu.Lock()
	for _, color := range c {
		r.panoSpecs = append(r.panoSpecs, color.SpecID)
	}
	r.mu.Unlock()
	return r.bump("panorama_colors", len(c))
}
func (r *fakeRepo) UpsertPanoramaPhotos(_ context.Context, p []model.PanoramaPhoto) (store.Counts, error) {
	return r.bump("panorama_photos", len(p))
}

func (r *fakeRepo) SeriesIDsWithoutSpecs(_ context.Context, ids []int64) ([]int64, error) {
	return ids, nil
}
func (r *fakeRepo) SeriesIDsWithSpecs(_ context.Context) ([]int64, error)  { return []int64{100}, nil }
func (r *fakeRepo) SeriesIDsWithPhotos(_ context.Context) ([]int64, error) { return []int64{100}, nil }
func (r *fakeRepo) SpecIDsBySeries(_ context.Context, _ int64) ([]int64, error) {
	return []int64{9001}, nil
}
func (r *fakeRepo) SpecSeriesID(_ context.Context, _ int64) (int64, error) { return 100, nil }
func (r *fakeRepo) PhotosBySeries(_ context.Context, _ int64) ([]model.Photo, error) {
	return r.photos, nil
}
func (r *fakeRepo) SetPhotoLocalPath(_ context.Context, id, path string) error {
	r.mu.Lock()
	r.photoPaths[id] = path
	r.mu.Unlock()
	return nil
}
func (r *fakeRepo) PanoramaPhotosBySpec(_ context.Context, _ int64) ([]model.PanoramaPhoto, error) {
	return r.panoPhotos, nil
}
func (r *fakeRepo) SpecIDsWithPanoramaColors(_ context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.panoSpecs...), nil
}
func (r *fakeRepo) SpecIDsWithPanoramaPhotos(_ context.Context) ([]int64, error) {
	return []int64{9001}, nil
}
func (r *fakeRepo) BackfillPanoramaExtID(_ context.Context, specID, extID int64) (int64, error) {
	r.mu.Lock()
	r.backfilled[specID] = extID
	r.mu.Unlock()
	return 1, nil
}
func (r *fakeRepo) SetPanoramaPhotoLocalPath(_ context.Context, id, path string) error {
	r.mu.Lock()
	r.framePaths[id] = path
	r.mu.Unlock()
	return nil
}

type fakeResolver struct {
	extID int64
	found bool
}

func (f *fakeResolver) Resolve(_ context.Context, _ int64) (int64, bool, error) {
	return f.extID, f.found, nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	outcome download.Outcome
	urls    []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url, _ string) (download.Outcome, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	return f.outcome, nil
}

func allStagesOptions(dir string) Options {
	return Options{
		Workers:              2,
		ParseCharacteristics: true,
		ParsePhotos:          true,
		DownloadPhotos:       true,
		ParsePanoramas:       true,
		DownloadPanoramas:    true,
		ImageDir:             dir,
	}
}

func TestRunFullPipeline(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	repo := newFakeRepo()
	fetcher := &fakeFetcher{}
	p := New(client, repo, &fakeResolver{extID: 54321, found: true}, fetcher,
		nil, zap.NewNop(), allStagesOptions(t.TempDir()))

	snap, err := p.Run(context.Background())
	require.NoError(t, err)

	// Stage order: tree, characteristics, photos, panoramas.
	require.Less(t, client.callIndex("tree_menu"), client.callIndex("param_conf"))
	require.Less(t, client.callIndex("param_conf"), client.callIndex("base_pic_info"))
	require.Less(t, client.callIndex("base_pic_info"), client.callIndex("pano_base_info"))

	require.Equal(t, 1, repo.upserted["brands"])
	require.Equal(t, 1, repo.upserted["series"])
	require.Equal(t, 1, repo.upserted["specs"])
	require.Equal(t, 1, repo.upserted["param_values"])
	require.Equal(t, 1, repo.upserted["panorama_colors"])
	// One embedded frame plus one from the listing endpoint.
	require.Equal(t, 2, repo.upserted["panorama_photos"])

	// One photo and two frames fetched; every fetch recorded a local path.
	require.Len(t, fetcher.urls, 3)
	require.Contains(t, repo.photoPaths, "ph1")
	require.Contains(t, repo.framePaths, "9001_5_1")
	require.Contains(t, repo.framePaths, "9001_5_2")
	require.Equal(t, int64(54321), repo.backfilled[9001])

	require.Equal(t, 1, snap.ResolvedFound)
	require.Equal(t, DownloadTally{Downloaded: 1}, snap.Downloads[kindPhoto])
	require.Equal(t, DownloadTally{Downloaded: 2}, snap.Downloads[kindPanorama])
	require.Empty(t, snap.StageErrors)
}

func TestRunPanoramaOnlySkipsPhotoStages(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	repo := newFakeRepo()
	opts := allStagesOptions(t.TempDir())
	opts.PanoramaOnly = true
	p := New(client, repo, &fakeResolver{extID: 54321, found: true}, &fakeFetcher{},
		nil, zap.NewNop(), opts)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, -1, client.callIndex("base_pic_info"))
	require.Equal(t, -1, client.callIndex("pic_list"))
	require.NotEqual(t, -1, client.callIndex("pano_base_info"))
}

func TestRunPanoramaOnlyWithCategoriesRunsPanoramasFirst(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	repo := newFakeRepo()
	opts := allStagesOptions(t.TempDir())
	opts.PanoramaOnly = true
	opts.PanoramaCategories = []int64{1}
	p := New(client, repo, &fakeResolver{extID: 54321, found: true}, &fakeFetcher{},
		nil, zap.NewNop(), opts)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	panoIdx := client.callIndex("pano_base_info")
	photoIdx := client.callIndex("base_pic_info")
	require.NotEqual(t, -1, panoIdx)
	require.NotEqual(t, -1, photoIdx)
	require.Less(t, panoIdx, photoIdx)

	// The only spec got panorama metadata in the earlier stage, so the photo
	// stage has no listings left to walk.
	require.Equal(t, -1, client.callIndex("pic_list"))
}

func TestRunCharacteristicsUnitFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	client := &fakeClient{paramConfErr: errors.New("status 503")}
	repo := newFakeRepo()
	p := New(client, repo, &fakeResolver{extID: 54321, found: true}, &fakeFetcher{},
		nil, zap.NewNop(), allStagesOptions(t.TempDir()))

	snap, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, snap.StageErrors[StageCharacteristics])
	require.Equal(t, 0, repo.upserted["specs"])
	// The rest of the run still happened.
	require.NotEqual(t, -1, client.callIndex("base_pic_info"))
	require.NotEqual(t, -1, client.callIndex("pano_base_info"))
}

func TestRunPhotoMetadataFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	client := &fakeClient{basePicErr: errors.New("status 500")}
	repo := newFakeRepo()
	p := New(client, repo, &fakeResolver{extID: 54321, found: true}, &fakeFetcher{},
		nil, zap.NewNop(), allStagesOptions(t.TempDir()))

	snap, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, snap.StageErrors[StagePhotoMetadata])
	// Panorama stages still ran.
	require.NotEqual(t, -1, client.callIndex("pano_base_info"))
}

func TestRunVrInfoFailureKeepsEmbeddedFrames(t *testing.T) {
	t.Parallel()

	client := &fakeClient{vrErr: errors.New("status 404")}
	repo := newFakeRepo()
	p := New(client, repo, &fakeResolver{extID: 54321, found: true}, &fakeFetcher{},
		nil, zap.NewNop(), allStagesOptions(t.TempDir()))

	snap, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.upserted["panorama_photos"])
	require.Empty(t, snap.StageErrors)
}

func TestRunUnresolvedPanoramaIsNotAnError(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	repo := newFakeRepo()
	opts := allStagesOptions(t.TempDir())
	opts.DownloadPanoramas = false
	p := New(client, repo, &fakeResolver{found: false}, &fakeFetcher{},
		nil, zap.NewNop(), opts)

	snap, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, -1, client.callIndex("pano_base_info"))
	require.Equal(t, 1, snap.ResolvedMissing)
	require.Empty(t, snap.StageErrors)
}

func TestDownloadRevalidatesPhotoWithStoredPath(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	repo := newFakeRepo()
	repo.photos[0].LocalPath = "/images/stale/ph1_original.jpg"
	fetcher := &fakeFetcher{outcome: download.OutcomeCached}
	opts := allStagesOptions(t.TempDir())
	opts.ParsePanoramas = false
	opts.DownloadPanoramas = false
	p := New(client, repo, &fakeResolver{}, fetcher, nil, zap.NewNop(), opts)

	snap, err := p.Run(context.Background())
	require.NoError(t, err)
	// The stored path alone is not proof the file is still good: the fetcher
	// is always consulted and decides whether the bytes on disk stand.
	require.Len(t, fetcher.urls, 1)
	require.Equal(t, DownloadTally{Cached: 1}, snap.Downloads[kindPhoto])
	// The recorded path moved to the layout the run computed.
	require.Contains(t, repo.photoPaths["ph1"], "ph1_original.jpg")
}
