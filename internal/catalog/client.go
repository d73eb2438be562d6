// Package catalog talks to the vehicle-catalog web API and turns its raw
// payloads into typed records.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultMainBaseURL = "https://www.autohome.com.cn"
	defaultPanoBaseURL = "https://pano.autohome.com.cn"

	// BrowserUserAgent is sent on every request; the API and its CDN refuse
	// clients without a browser-looking agent.
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	listRetryCount = 2
	listRetryWait  = 500 * time.Millisecond
)

// ClientConfig controls endpoint roots and the per-call timeout.
type ClientConfig struct {
	MainBaseURL string
	PanoBaseURL string
	Timeout     time.Duration
}

// Client is a stateless HTTP client for the catalog endpoints. All calls are
// GETs with a fixed timeout; only GetPicList retries transport failures
// internally, everything else surfaces them to the caller.
type Client struct {
	http     *resty.Client
	listHTTP *resty.Client
	panoBase string
	mainBase string
}

// NewClient builds a Client. Zero config fields fall back to the production
// endpoints and a 3s timeout.
func NewClient(cfg ClientConfig) *Client {
	if cfg.MainBaseURL == "" {
		cfg.MainBaseURL = defaultMainBaseURL
	}
	if cfg.PanoBaseURL == "" {
		cfg.PanoBaseURL = defaultPanoBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	base := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", BrowserUserAgent)

	// Listing pages are hit thousands of times per run; transient transport
	// errors there are retried in place instead of failing the whole unit.
	list := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", BrowserUserAgent).
		SetRetryCount(listRetryCount).
		SetRetryWaitTime(listRetryWait).
		SetRetryMaxWaitTime(listRetryWait * listRetryCount)

	return &Client{
		http:     base,
		listHTTP: list,
		mainBase: cfg.MainBaseURL,
		panoBase: cfg.PanoBaseURL,
	}
}

// GetTreeMenu fetches the full brand/series tree.
func (c *Client) GetTreeMenu(ctx context.Context) (*TreeMenuPayload, error) {
	var payload TreeMenuPayload
	err := c.getJSON(ctx, c.http, c.mainBase+"/web-main/car/web/price/treeMenu",
		map[string]string{"extendseries": "1"}, &payload)
	if err != nil {
		return nil, fmt.Errorf("get tree menu: %w", err)
	}
	return &payload, nil
}

// GetParamConf fetches the characteristics sheet for a series in one parse
// mode.
func (c *Client) GetParamConf(ctx context.Context, seriesID int64, mode int) (*ParamConfPayload, error) {
	var payload ParamConfPayload
	err := c.getJSON(ctx, c.http, c.mainBase+"/web-main/car/param/getParamConf",
		map[string]string{
			"mode":     strconv.Itoa(mode),
			"site":     "1",
			"seriesid": strconv.FormatInt(seriesID, 10),
		}, &payload)
	if err != nil {
		return nil, fmt.Errorf("get param conf series %d mode %d: %w", seriesID, mode, err)
	}
	return &payload, nil
}

// GetSeriesBasePicInfo fetches the color and category vocabulary for a series.
func (c *Client) GetSeriesBasePicInfo(ctx context.Context, seriesID int64) (*BasePicInfoPayload, error) {
	var payload BasePicInfoPayload
	err := c.getJSON(ctx, c.http, c.mainBase+"/web-main/pic/series/getSeriesBasePicInfo",
		map[string]string{"seriesid": strconv.FormatInt(seriesID, 10)}, &payload)
	if err != nil {
		return nil, fmt.Errorf("get base pic info series %d: %w", seriesID, err)
	}
	return &payload, nil
}

// GetPicList fetches one page of the photo listing for a
// spec × category × color combination.
func (c *Client) GetPicList(
	ctx context.Context,
	seriesID, specID, categoryID, colorID int64,
	isInner bool,
	pageSize, pageIndex int,
) (*PicListPayload, error) {
	inner := "0"
	if isInner {
		inner = "1"
	}
	var payload PicListPayload
	err := c.getJSON(ctx, c.listHTTP, c.mainBase+"/web-main/pic/series/getPicList",
		map[string]string{
			"seriesid":  strconv.FormatInt(seriesID, 10),
			"specid":    strconv.FormatInt(specID, 10),
			"typeid":    strconv.FormatInt(categoryID, 10),
			"colorid":   strconv.FormatInt(colorID, 10),
			"isinner":   inner,
			"pagesize":  strconv.Itoa(pageSize),
			"pageindex": strconv.Itoa(pageIndex),
		}, &payload)
	if err != nil {
		return nil, fmt.Errorf("get pic list series %d spec %d: %w", seriesID, specID, err)
	}
	return &payload, nil
}

// GetPanoPage fetches the panorama viewer HTML addressed by spec id. The page
// is scraped for ext-id candidates, never parsed as JSON.
func (c *Client) GetPanoPage(ctx context.Context, specID int64) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/car/ext/%d", c.panoBase, specID))
	if err != nil {
		return "", fmt.Errorf("get pano page spec %d: %w", specID, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("get pano page spec %d: status %d", specID, resp.StatusCode())
	}
	return string(resp.Body()), nil
}

// GetPanoBaseInfo fetches the authoritative panorama descriptor for an ext id.
func (c *Client) GetPanoBaseInfo(ctx context.Context, extID int64) (*PanoBaseInfoPayload, error) {
	var payload PanoBaseInfoPayload
	err := c.getJSON(ctx, c.http, fmt.Sprintf("%s/api/ext/baseinfo/%d", c.panoBase, extID), nil, &payload)
	if err != nil {
		return nil, fmt.Errorf("get pano baseinfo ext %d: %w", extID, err)
	}
	return &payload, nil
}

// GetVrInfo fetches the frame listing for one (spec, color) pair.
func (c *Client) GetVrInfo(ctx context.Context, specID, colorID int64) (*VrInfoPayload, error) {
	var payload VrInfoPayload
	err := c.getJSON(ctx, c.http, c.panoBase+"/api/vr/info",
		map[string]string{
			"specid":  strconv.FormatInt(specID, 10),
			"colorid": strconv.FormatInt(colorID, 10),
		}, &payload)
	if err != nil {
		return nil, fmt.Errorf("get vr info spec %d color %d: %w", specID, colorID, err)
	}
	return &payload, nil
}

// getJSON issues a GET and unmarshals the body itself: the API labels JSON
// responses with assorted content types, so resty's automatic unmarshal
// cannot be relied on.
func (c *Client) getJSON(
	ctx context.Context,
	client *resty.Client,
	url string,
	params map[string]string,
	out any,
) error {
	req := client.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	resp, err := req.Get(url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("status %d", resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
