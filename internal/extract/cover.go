package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"video-parser/pkg/models"
)

var coverFieldPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"coverUrl":\s*"([^"]+)"`),
	regexp.MustCompile(`"cover":\s*"([^"]+)"`),
	regexp.MustCompile(`"poster":\s*"([^"]+)"`),
	regexp.MustCompile(`"thumbnail":\s*"([^"]+)"`),
	regexp.MustCompile(`"previewUrl":\s*"([^"]+)"`),
	regexp.MustCompile(`"imageUrl":\s*"([^"]+)"`),
}

var (
	imageURLPattern = regexp.MustCompile(`(?i)https?://[^"'\s]+\.(?:jpg|jpeg|png|webp)(?:[^"'\s]*)?`)
	captionPattern  = regexp.MustCompile(`"caption":\s*"([^"]+)"`)
	namePattern     = regexp.MustCompile(`"name":\s*"([^"]+)"`)
)

// Keyword lists for the cover tiers, matched against the lowercased URL
var (
	chromeKeywords = []string{"icon", "logo", "button", "menu", "ui", "asset", "sprite", "avatar"}
	coverExcludes  = []string{
		"icon", "logo", "button", "menu", "ui", "asset", "avatar", "user", "profile",
		"head", "background", "bg", "sprite", "line-up", "arrow", "close", "play-btn",
	}
	beaconKeywords = []string{"data:image", "base64", "1x1", "pixel", "tracking"}
	fieldExcludes  = []string{"icon", "logo", "button", "menu", "sprite", "avatar"}
	// the last resort never returns an image any earlier tier rejected as chrome
	lastResortExcludes = mergeKeywords(chromeKeywords, coverExcludes, fieldExcludes)
)

// maxCoverCandidates bounds the looks-like-a-cover tier
const maxCoverCandidates = 15

// ClassifyCover picks a cover image from payload when target has none, then
// fills caption and author name from the raw payload when they are unset.
// cdnDomains lists the hosts of the platform's image CDN.
func ClassifyCover(payload string, target *models.ExtractedMedia, cdnDomains []string) {
	if target == nil {
		return
	}
	if target.CoverURL == "" {
		target.CoverURL = pickCover(payload, cdnDomains)
	}

	if target.Caption == "" {
		if m := captionPattern.FindStringSubmatch(payload); m != nil {
			target.Caption = unescapeJSONText(m[1])
		}
	}
	if target.AuthorName == "" {
		if m := namePattern.FindStringSubmatch(payload); m != nil && !strings.Contains(m[1], "原声") {
			target.AuthorName = unescapeJSONText(m[1])
		}
	}
}

// pickCover runs the cover tiers in order and returns "" when none applies
func pickCover(payload string, cdnDomains []string) string {
	for _, re := range coverFieldPatterns {
		m := re.FindStringSubmatch(payload)
		if m == nil {
			continue
		}
		candidate := CleanURL(m[1])
		if IsHTTPURL(candidate) && hasImageExtension(candidate) &&
			!containsAny(strings.ToLower(candidate), fieldExcludes) {
			return candidate
		}
	}

	images := imageURLPattern.FindAllString(payload, -1)
	if len(images) == 0 {
		return ""
	}

	for _, img := range images {
		candidate := CleanURL(img)
		lower := strings.ToLower(candidate)
		if IsHTTPURL(candidate) && containsAny(lower, cdnDomains) && !containsAny(lower, chromeKeywords) {
			return candidate
		}
	}

	limit := len(images)
	if limit > maxCoverCandidates {
		limit = maxCoverCandidates
	}
	for _, img := range images[:limit] {
		candidate := CleanURL(img)
		lower := strings.ToLower(candidate)
		if IsHTTPURL(candidate) && !containsAny(lower, coverExcludes) && hasImageExtension(lower) {
			return candidate
		}
	}

	first := CleanURL(images[0])
	lower := strings.ToLower(first)
	if IsHTTPURL(first) && hasImageExtension(lower) &&
		!containsAny(lower, beaconKeywords) && !containsAny(lower, lastResortExcludes) {
		return first
	}
	return ""
}

func mergeKeywords(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, k := range list {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// unescapeJSONText decodes JSON string escapes, returning s unchanged when it is not valid
func unescapeJSONText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}
