package download

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const (
	defaultExt = ".jpg"
	maxExtLen  = 5 // ".webp"
)

// PhotoPath builds the stable on-disk location of a catalog photo. The layout
// is derived from ids only, so repeated runs address the same file.
func PhotoPath(base string, seriesID, specID, categoryID, colorID int64, photoID, sourceURL string) string {
	name := fmt.Sprintf("%s_original%s", photoID, ExtFromURL(sourceURL))
	return filepath.Join(base,
		fmt.Sprintf("%d", seriesID),
		fmt.Sprintf("%d", specID),
		fmt.Sprintf("%d", categoryID),
		fmt.Sprintf("%d", colorID),
		name)
}

// PanoramaPath builds the stable on-disk location of a panorama frame. Frames
// are zero-padded so they sort in ring order.
func PanoramaPath(base string, seriesID, specID, colorID int64, seq int, sourceURL string) string {
	name := fmt.Sprintf("%03d%s", seq, ExtFromURL(sourceURL))
	return filepath.Join(base,
		fmt.Sprintf("%d", seriesID),
		fmt.Sprintf("%d", specID),
		"360",
		fmt.Sprintf("%d", colorID),
		name)
}

// ExtFromURL extracts the file extension from a source url, ignoring query
// noise. Missing or implausibly long extensions fall back to .jpg.
func ExtFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || len(ext) > maxExtLen {
		return defaultExt
	}
	return ext
}

// UpgradeURL normalizes a catalog asset url to https. The CDN serves both
// schemes but http redirects through an extra hop that sometimes drops bodies.
func UpgradeURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "http://"):
		return "https://" + strings.TrimPrefix(raw, "http://")
	default:
		return raw
	}
}
