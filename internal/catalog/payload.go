package catalog

// Raw wire shapes returned by the catalog API. Field names follow the JSON
// the endpoints actually emit; optional members unmarshal to zero values and
// are dropped by the parsers when they matter.

// TreeMenuPayload is the brand/series tree grouped by first letter.
type TreeMenuPayload struct {
	Result []TreeLetterGroup `json:"result"`
}

// TreeLetterGroup holds the brands under one index letter.
type TreeLetterGroup struct {
	BrandItems []TreeBrand `json:"branditems"`
}

// TreeBrand is one brand node with its factories.
type TreeBrand struct {
	ID       *int64        `json:"id"`
	Name     string        `json:"name"`
	Logo     string        `json:"logo"`
	FctItems []TreeFactory `json:"fctitems"`
}

// TreeFactory groups the series built by one factory.
type TreeFactory struct {
	SeriesItems []TreeSeries `json:"seriesitems"`
}

// TreeSeries is one series node.
type TreeSeries struct {
	ID          *int64 `json:"id"`
	Name        string `json:"name"`
	IsNewEnergy *int   `json:"isnewenergy"`
}

// ParamConfPayload is the characteristics response for a series.
type ParamConfPayload struct {
	Result ParamConfResult `json:"result"`
}

// ParamConfResult carries the title vocabulary and the per-spec data rows.
type ParamConfResult struct {
	TitleList []ParamTitleGroup `json:"titlelist"`
	DataList  []ParamSpecItem   `json:"datalist"`
}

// ParamTitleGroup is one group of characteristic titles.
type ParamTitleGroup struct {
	GroupName string           `json:"groupname"`
	ItemType  string           `json:"itemtype"`
	Items     []ParamTitleItem `json:"items"`
}

// ParamTitleItem names one characteristic.
type ParamTitleItem struct {
	TitleID  *int64 `json:"titleid"`
	ItemName string `json:"itemname"`
}

// ParamSpecItem is one spec with its characteristic values.
type ParamSpecItem struct {
	SpecID        *int64          `json:"specid"`
	SpecName      string          `json:"specname"`
	MinPrice      string          `json:"minprice"`
	ParamConfList []ParamConfItem `json:"paramconflist"`
}

// ParamConfItem is one characteristic value entry. When SubList is empty the
// value lives in ItemName.
type ParamConfItem struct {
	TitleID  *int64         `json:"titleid"`
	ItemName string         `json:"itemname"`
	SubList  []ParamSubItem `json:"sublist"`
}

// ParamSubItem is a named sub-value of a characteristic.
type ParamSubItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BasePicInfoPayload lists colors and photo categories for a series.
type BasePicInfoPayload struct {
	Result BasePicInfoResult `json:"result"`
}

// BasePicInfoResult splits colors by placement and carries the category list.
type BasePicInfoResult struct {
	InteriorColor []PicColorItem `json:"interiorcolor"`
	ExteriorColor []PicColorItem `json:"exteriorcolor"`
	PicTypeList   []PicTypeItem  `json:"pictypelist"`
}

// PicColorItem is one color swatch.
type PicColorItem struct {
	ID       *int64 `json:"id"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	IsOnSale *int   `json:"isonsale"`
}

// PicTypeItem is one photo category.
type PicTypeItem struct {
	ID   *int64 `json:"id"`
	Name string `json:"name"`
}

// PicListPayload is one page of a photo listing.
type PicListPayload struct {
	Result PicListResult `json:"result"`
}

// PicListResult carries the photos plus paging totals.
type PicListResult struct {
	PicList   []PicItem `json:"piclist"`
	PageCount int       `json:"pagecount"`
	RowCount  int       `json:"rowcount"`
}

// PicItem is one photo entry. ColorID and SpecID, when non-zero, override the
// ids the listing was requested with.
type PicItem struct {
	ID          string `json:"id"`
	ColorID     int64  `json:"colorid"`
	SpecID      int64  `json:"specid"`
	OriginalPic string `json:"originalpic"`
	SpecName    string `json:"specname"`
}

// PanoBaseInfoPayload is the authoritative panorama descriptor, addressed by
// ext id. Ext.SpecID echoes which spec the resource belongs to.
type PanoBaseInfoPayload struct {
	Ext       PanoExt         `json:"ext"`
	ImageRoot string          `json:"image_root"`
	ColorInfo []PanoColorInfo `json:"color_info"`
}

// PanoExt identifies the panorama resource and the spec it belongs to.
type PanoExt struct {
	ID     int64 `json:"Id"`
	SpecID int64 `json:"SpecId"`
}

// PanoColorInfo is one color variant, optionally carrying embedded frames.
type PanoColorInfo struct {
	ID            int64    `json:"Id"`
	ColorID       *int64   `json:"ColorId"`
	BaseColorName string   `json:"BaseColorName"`
	ColorName     string   `json:"ColorName"`
	ColorValue    string   `json:"ColorValue"`
	Hori          PanoHori `json:"Hori"`
}

// PanoHori holds the horizontal frame rings.
type PanoHori struct {
	Normal []PanoFrame `json:"Normal"`
}

// PanoFrame is one embedded frame reference.
type PanoFrame struct {
	Seq *int   `json:"Seq"`
	URL string `json:"Url"`
}

// VrInfoPayload is the frame listing for one (spec, color) pair.
type VrInfoPayload struct {
	Result VrInfoResult `json:"result"`
}

// VrInfoResult carries the level-1 frame ring.
type VrInfoResult struct {
	L1 []VrFrame `json:"l1"`
}

// VrFrame is one listed frame.
type VrFrame struct {
	Seq *int   `json:"seq"`
	URL string `json:"url"`
}
