// Package model defines the typed records exchanged between the catalog
// parsers, the reconciliation store, and the pipeline. All ids come from the
// source catalog; nothing here is generated locally, so re-crawls merge
// instead of duplicating.
package model

import "fmt"

// Brand is the root of the catalog hierarchy.
type Brand struct {
	ID          int64
	Name        string
	LogoURL     string
	SeriesCount int
}

// Series is a vehicle model line belonging to a brand.
type Series struct {
	ID          int64
	BrandID     int64
	Name        string
	IsNewEnergy *bool
}

// Spec is a concrete trim/configuration of a series. Most pipeline stages fan
// out over spec ids.
type Spec struct {
	ID       int64
	SeriesID int64
	Name     string
	MinPrice string
}

// ParamTitle defines one characteristic in a series' vocabulary, keyed by
// (series id, title id).
type ParamTitle struct {
	SeriesID  int64
	TitleID   int64
	ItemName  string
	GroupName string
	ItemType  string
}

// ParamValue is one characteristic value for a spec. ItemName is duplicated
// from the title vocabulary at write time; the store reconciles stale copies
// when the vocabulary is corrected upstream.
type ParamValue struct {
	SpecID   int64
	TitleID  int64
	ItemName string
	SubName  string
	Value    string
}

// Color type tags used by PhotoColor.
const (
	ColorTypeExterior = "exterior"
	ColorTypeInterior = "interior"
)

// PhotoColor is an interior or exterior paint/trim color offered for a series.
type PhotoColor struct {
	ID        int64
	SeriesID  int64
	ColorType string
	Name      string
	Value     string
	IsOnSale  *bool
}

// PhotoCategory is a photo grouping; the id space is per-series.
type PhotoCategory struct {
	SeriesID int64
	ID       int64
	Name     string
}

// Photo is one catalog photo. LocalPath stays empty until the download stage
// has fetched and validated the file.
type Photo struct {
	ID          string
	SeriesID    int64
	SpecID      int64
	CategoryID  int64
	ColorID     int64
	OriginalURL string
	SpecName    string
	LocalPath   string
}

// PanoramaColor is a color variant of a spec's 360° panorama. ExtID is the
// catalog's undocumented panorama resource id; it is nil until the resolver
// discovers it and is then backfilled onto every color row of the spec.
// ColorID (not ID) is the key used against the frame-listing endpoint.
type PanoramaColor struct {
	ID            int64
	SpecID        int64
	ExtID         *int64
	BaseColorName string
	ColorName     string
	ColorValue    string
	ColorID       int64
}

// PanoramaPhoto is a single frame of a 360° set. Seq orders frames within a
// color; the id is synthesized so repeated crawls address the same row.
type PanoramaPhoto struct {
	ID        string
	SpecID    int64
	ColorID   int64
	Seq       int
	URL       string
	LocalPath string
}

// PanoramaPhotoID builds the synthetic composite id for a frame.
func PanoramaPhotoID(specID, colorID int64, seq int) string {
	return fmt.Sprintf("%d_%d_%d", specID, colorID, seq)
}
