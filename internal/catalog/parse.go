package catalog

import (
	"strings"

	"github.com/avkatev/autocrawl/internal/model"
)

// The parsers below are pure functions from raw payloads to typed records.
// They fail closed: nested items missing a required id or url are dropped
// rather than reported, because the API routinely ships half-filled entries.

// Tree is the parsed brand/series hierarchy.
type Tree struct {
	Brands []model.Brand
	Series []model.Series
}

// ParseTreeMenu flattens the letter-grouped tree into brand and series lists.
func ParseTreeMenu(payload *TreeMenuPayload) Tree {
	var tree Tree
	if payload == nil {
		return tree
	}
	for _, group := range payload.Result {
		for _, brand := range group.BrandItems {
			if brand.ID == nil {
				continue
			}
			brandID := *brand.ID
			seriesBefore := len(tree.Series)
			for _, factory := range brand.FctItems {
				for _, series := range factory.SeriesItems {
					if series.ID == nil {
						continue
					}
					var newEnergy *bool
					if series.IsNewEnergy != nil {
						v := *series.IsNewEnergy != 0
						newEnergy = &v
					}
					tree.Series = append(tree.Series, model.Series{
						ID:          *series.ID,
						BrandID:     brandID,
						Name:        series.Name,
						IsNewEnergy: newEnergy,
					})
				}
			}
			tree.Brands = append(tree.Brands, model.Brand{
				ID:          brandID,
				Name:        brand.Name,
				LogoURL:     brand.Logo,
				SeriesCount: len(tree.Series) - seriesBefore,
			})
		}
	}
	return tree
}

// LimitSeriesPerBrand keeps the series of the first limit brands in encounter
// order, with all of their series. limit <= 0 keeps everything.
func LimitSeriesPerBrand(series []model.Series, limit int) []model.Series {
	if limit <= 0 {
		return series
	}
	order := make([]int64, 0, limit)
	kept := make(map[int64]bool, limit)
	for _, s := range series {
		if kept[s.BrandID] {
			continue
		}
		if len(order) >= limit {
			continue
		}
		kept[s.BrandID] = true
		order = append(order, s.BrandID)
	}
	out := make([]model.Series, 0, len(series))
	for _, s := range series {
		if kept[s.BrandID] {
			out = append(out, s)
		}
	}
	return out
}

// ParamConf is the parsed characteristics sheet for one series.
type ParamConf struct {
	Titles []model.ParamTitle
	Specs  []model.Spec
	Values []model.ParamValue
}

// ParseParamConf extracts the title vocabulary, the specs, and their
// characteristic values. Title ids are unique within a series, so repeats in
// the payload are ignored. Value entries resolve their item name from the
// vocabulary; entries whose title id has no vocabulary match are dropped.
func ParseParamConf(payload *ParamConfPayload, seriesID int64) ParamConf {
	var conf ParamConf
	if payload == nil {
		return conf
	}

	titleNames := make(map[int64]string)
	for _, group := range payload.Result.TitleList {
		for _, item := range group.Items {
			if item.TitleID == nil {
				continue
			}
			tid := *item.TitleID
			if _, ok := titleNames[tid]; ok {
				continue
			}
			titleNames[tid] = item.ItemName
			conf.Titles = append(conf.Titles, model.ParamTitle{
				SeriesID:  seriesID,
				TitleID:   tid,
				ItemName:  item.ItemName,
				GroupName: group.GroupName,
				ItemType:  group.ItemType,
			})
		}
	}

	for _, specItem := range payload.Result.DataList {
		if specItem.SpecID == nil {
			continue
		}
		specID := *specItem.SpecID
		conf.Specs = append(conf.Specs, model.Spec{
			ID:       specID,
			SeriesID: seriesID,
			Name:     specItem.SpecName,
			MinPrice: specItem.MinPrice,
		})

		for _, item := range specItem.ParamConfList {
			if item.TitleID == nil {
				continue
			}
			tid := *item.TitleID
			itemName, ok := titleNames[tid]
			if !ok {
				continue
			}
			if len(item.SubList) > 0 {
				for _, sub := range item.SubList {
					conf.Values = append(conf.Values, model.ParamValue{
						SpecID:   specID,
						TitleID:  tid,
						ItemName: itemName,
						SubName:  sub.Name,
						Value:    sub.Value,
					})
				}
				continue
			}
			// No sublist: the entry's own itemname field carries the value.
			conf.Values = append(conf.Values, model.ParamValue{
				SpecID:   specID,
				TitleID:  tid,
				ItemName: itemName,
				SubName:  "",
				Value:    item.ItemName,
			})
		}
	}
	return conf
}

// PicInfo is the parsed color/category vocabulary for a series.
type PicInfo struct {
	Colors     []model.PhotoColor
	Categories []model.PhotoCategory
}

// ParseSeriesBasePicInfo extracts interior/exterior colors and photo
// categories.
func ParseSeriesBasePicInfo(payload *BasePicInfoPayload, seriesID int64) PicInfo {
	var info PicInfo
	if payload == nil {
		return info
	}
	appendColors := func(items []PicColorItem, colorType string) {
		for _, item := range items {
			if item.ID == nil {
				continue
			}
			var onSale *bool
			if item.IsOnSale != nil {
				v := *item.IsOnSale != 0
				onSale = &v
			}
			info.Colors = append(info.Colors, model.PhotoColor{
				ID:        *item.ID,
				SeriesID:  seriesID,
				ColorType: colorType,
				Name:      item.Name,
				Value:     item.Value,
				IsOnSale:  onSale,
			})
		}
	}
	appendColors(payload.Result.InteriorColor, model.ColorTypeInterior)
	appendColors(payload.Result.ExteriorColor, model.ColorTypeExterior)

	for _, category := range payload.Result.PicTypeList {
		if category.ID == nil {
			continue
		}
		info.Categories = append(info.Categories, model.PhotoCategory{
			SeriesID: seriesID,
			ID:       *category.ID,
			Name:     category.Name,
		})
	}
	return info
}

// PicPage is one parsed photo-listing page.
type PicPage struct {
	Photos    []model.Photo
	PageCount int
	RowCount  int
}

// ParsePicList maps one listing page to photo records. The API sometimes
// echoes a more precise color or spec id per photo; those override the ids
// the page was requested with.
func ParsePicList(payload *PicListPayload, seriesID, specID, categoryID, colorID int64) PicPage {
	page := PicPage{}
	if payload == nil {
		return page
	}
	page.PageCount = payload.Result.PageCount
	page.RowCount = payload.Result.RowCount
	for _, pic := range payload.Result.PicList {
		if pic.ID == "" {
			continue
		}
		finalColor := colorID
		if pic.ColorID != 0 {
			finalColor = pic.ColorID
		}
		finalSpec := specID
		if pic.SpecID != 0 {
			finalSpec = pic.SpecID
		}
		page.Photos = append(page.Photos, model.Photo{
			ID:          pic.ID,
			SeriesID:    seriesID,
			SpecID:      finalSpec,
			CategoryID:  categoryID,
			ColorID:     finalColor,
			OriginalURL: pic.OriginalPic,
			SpecName:    pic.SpecName,
		})
	}
	return page
}

// PanoBase is the parsed panorama descriptor.
type PanoBase struct {
	ExtID  int64
	Colors []model.PanoramaColor
	Photos []model.PanoramaPhoto
}

// ParsePanoBaseInfo extracts the color variants and any frames embedded in
// the descriptor. Frame URLs may be absolute, scheme-relative against the
// payload's image root, or bare storage paths.
func ParsePanoBaseInfo(payload *PanoBaseInfoPayload, specID int64) PanoBase {
	var base PanoBase
	if payload == nil {
		return base
	}
	base.ExtID = payload.Ext.ID

	imageRoot := payload.ImageRoot
	if imageRoot == "" {
		imageRoot = "//panovr.autoimg.cn/pano"
	}

	var extID *int64
	if payload.Ext.ID != 0 {
		v := payload.Ext.ID
		extID = &v
	}

	for _, info := range payload.ColorInfo {
		if info.ColorID == nil {
			continue
		}
		colorID := *info.ColorID
		base.Colors = append(base.Colors, model.PanoramaColor{
			ID:            info.ID,
			SpecID:        specID,
			ExtID:         extID,
			BaseColorName: info.BaseColorName,
			ColorName:     info.ColorName,
			ColorValue:    info.ColorValue,
			ColorID:       colorID,
		})

		for _, frame := range info.Hori.Normal {
			if frame.Seq == nil || frame.URL == "" {
				continue
			}
			base.Photos = append(base.Photos, model.PanoramaPhoto{
				ID:      model.PanoramaPhotoID(specID, colorID, *frame.Seq),
				SpecID:  specID,
				ColorID: colorID,
				Seq:     *frame.Seq,
				URL:     resolveFrameURL(imageRoot, frame.URL),
			})
		}
	}
	return base
}

// resolveFrameURL joins a frame path with the image root. Storage paths like
// "g33/M02/..." have no leading slash.
func resolveFrameURL(imageRoot, raw string) string {
	if strings.HasPrefix(raw, "http") {
		return raw
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return "https:" + imageRoot + raw
}

// ParseVrInfo maps a frame listing to panorama photo records.
func ParseVrInfo(payload *VrInfoPayload, specID, colorID int64) []model.PanoramaPhoto {
	if payload == nil {
		return nil
	}
	var photos []model.PanoramaPhoto
	for _, frame := range payload.Result.L1 {
		if frame.Seq == nil || frame.URL == "" {
			continue
		}
		photos = append(photos, model.PanoramaPhoto{
			ID:      model.PanoramaPhotoID(specID, colorID, *frame.Seq),
			SpecID:  specID,
			ColorID: colorID,
			Seq:     *frame.Seq,
			URL:     frame.URL,
		})
	}
	return photos
}
