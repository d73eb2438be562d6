package resolver

import (
	"regexp"
	"sort"
	"strconv"
)

// Ext ids pulled out of bare numbers live in a bounded range; anything
// outside it is page noise (timestamps, pixel sizes, tracking ids). Ids
// matched by an explicit pattern are taken as-is.
const (
	minExtID = 1000
	maxExtID = 999999
)

// Explicit patterns run in order from most to least specific. Each returns
// every id-looking number it can find; verification against the API decides
// which candidate is real, so false positives here are cheap.
var explicitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`baseinfo/(\d+)`),
	regexp.MustCompile(`(?i)"extid"\s*:\s*"?(\d+)`),
	regexp.MustCompile(`(?i)ext_?id['"]?\s*[:=]\s*['"]?(\d+)`),
	regexp.MustCompile(`/ext/(\d+)`),
}

// aggressivePattern is the fallback when no explicit pattern matched: any
// standalone number long enough to be an id, filtered to the ext-id range.
var aggressivePattern = regexp.MustCompile(`\b(\d{4,})\b`)

// extractCandidates scrapes ext-id candidates from viewer HTML. The spec's
// own id is excluded (it is probed separately), duplicates are dropped, and
// the result is sorted ascending so verification order is deterministic. The
// aggressive fallback only runs when the explicit patterns found nothing; its
// flood of bare numbers would otherwise drown the precise hits.
func extractCandidates(html string, specID int64) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, pattern := range explicitPatterns {
		for _, match := range pattern.FindAllStringSubmatch(html, -1) {
			id, err := strconv.ParseInt(match[1], 10, 64)
			if err != nil {
				continue
			}
			if id == specID || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		for _, match := range aggressivePattern.FindAllStringSubmatch(html, -1) {
			id, err := strconv.ParseInt(match[1], 10, 64)
			if err != nil {
				continue
			}
			if id < minExtID || id > maxExtID || id == specID || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
