// Package share pulls links out of the text apps put on the clipboard when a
// video is shared.
package share

import (
	"regexp"
	"strings"

	"video-parser/pkg/models"
)

// stop is the set of characters that end a link inside share text
const stop = `\s\x{3000}\x{00A0}，。！？、；：【】（）《》“”‘’`

var (
	httpURLPattern  = regexp.MustCompile(`(https?://[^` + stop + `]+)`)
	bareURLPattern  = regexp.MustCompile(`(?:^|[\s\x{3000}\x{00A0}])((?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}/[^` + stop + `]+)`)
	trailingPattern = regexp.MustCompile(`[，。！？、；：.,!?;]+$`)
)

// supportedDomains are the hosts HasSupportedURL looks for
var supportedDomains = []string{
	"douyin.com",
	"kuaishou.com",
	"weibo.com",
	"xiaohongshu.com",
	"xhslink.com",
	"bilibili.com",
	"b23.tv",
	"douyinpic.com",
	"snssdk.com",
	"v.kuaishou.com",
}

// domainRules maps host fragments to platforms, checked in order
var domainRules = []struct {
	platform models.Platform
	domains  []string
}{
	{models.PlatformQsMusic, []string{"music.douyin.com"}},
	{models.PlatformBilibili, []string{"b23.tv", "bilibili.com"}},
	{models.PlatformKuaishou, []string{"kuaishou.com"}},
	{models.PlatformWeibo, []string{"weibo.com"}},
	{models.PlatformXHS, []string{"xhslink.com", "xiaohongshu.com"}},
	{models.PlatformPipigx, []string{"pipigx.com"}},
	{models.PlatformPpxia, []string{"pipix.com"}},
	{models.PlatformDouyin, []string{"snssdk.com", "douyin.com"}},
}

// ExtractURL returns the first link in text, or "" when there is none.
// Links with a scheme are preferred over bare host/path links.
func ExtractURL(text string) string {
	if m := httpURLPattern.FindStringSubmatch(text); m != nil {
		return trailingPattern.ReplaceAllString(m[1], "")
	}
	if m := bareURLPattern.FindStringSubmatch(text); m != nil {
		return trailingPattern.ReplaceAllString(m[1], "")
	}
	return ""
}

// HasSupportedURL reports whether text mentions a supported host
func HasSupportedURL(text string) bool {
	for _, domain := range supportedDomains {
		if strings.Contains(text, domain) {
			return true
		}
	}
	return false
}

// DetectPlatform guesses the platform of the first link in text, defaulting to douyin
func DetectPlatform(text string) models.Platform {
	if p, ok := PlatformOf(ExtractURL(text)); ok {
		return p
	}
	return models.PlatformDouyin
}

// PlatformOf matches a link against the known hosts
func PlatformOf(link string) (models.Platform, bool) {
	lower := strings.ToLower(link)
	if lower == "" {
		return "", false
	}
	for _, rule := range domainRules {
		for _, domain := range rule.domains {
			if strings.Contains(lower, domain) {
				return rule.platform, true
			}
		}
	}
	return "", false
}
