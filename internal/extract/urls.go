package extract

import (
	"net/url"
	"strings"
)

var urlUnescaper = strings.NewReplacer(`\u002F`, "/", `\u002f`, "/", `\/`, "/")

// CleanURL undoes the escaping pages apply to URLs embedded in scripts
func CleanURL(raw string) string {
	return strings.ReplaceAll(urlUnescaper.Replace(raw), `\`, "")
}

// IsHTTPURL reports whether raw is an absolute http(s) URL with a host
func IsHTTPURL(raw string) bool {
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.Host != ""
}

var videoIndicators = []string{
	".mp4", ".m3u8", ".flv", ".avi", ".mov", ".wmv", ".mkv",
	"video", "play", "stream", "media",
}

// IsValidVideoURL reports whether raw is absolute and looks like a media resource
func IsValidVideoURL(raw string) bool {
	if !IsHTTPURL(raw) {
		return false
	}
	return containsAny(strings.ToLower(raw), videoIndicators)
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// hasImageExtension reports whether raw carries a known image extension
func hasImageExtension(raw string) bool {
	return containsAny(strings.ToLower(raw), imageExtensions)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
