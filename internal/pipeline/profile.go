package pipeline

import (
	"regexp"

	"video-parser/internal/extract"
	"video-parser/pkg/models"
)

// URLPattern derives a request URL from a share link.
// Template receives the first capture group and the redirected URL.
type URLPattern struct {
	Name     string
	Regex    *regexp.Regexp
	Template func(id, redirected string) string
}

// Redirected is the template that keeps the redirected URL unchanged
func Redirected(_, redirected string) string {
	return redirected
}

// Profile is the per-platform configuration of the pipeline.
// Profiles are built once at construction and only read afterwards.
type Profile struct {
	Platform    models.Platform
	Headers     map[string]string
	URLPatterns []URLPattern
	Rules       extract.Rules
}

// UserAgent returns the profile's User-Agent header
func (p *Profile) UserAgent() string {
	return p.Headers["User-Agent"]
}

// RequestURL applies the pattern table, testing each entry against the
// original link first and the redirected URL second
func (p *Profile) RequestURL(original, redirected string) string {
	for _, pattern := range p.URLPatterns {
		m := pattern.Regex.FindStringSubmatch(original)
		if m == nil {
			m = pattern.Regex.FindStringSubmatch(redirected)
		}
		if m == nil {
			continue
		}
		id := ""
		if len(m) > 1 {
			id = m[1]
		}
		if pattern.Template == nil {
			return redirected
		}
		return pattern.Template(id, redirected)
	}
	return redirected
}

// BrowserHeaders returns the page headers sent by a mobile Safari browser
func BrowserHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "zh-CN,zh;q=0.9,en;q=0.8",
		"Accept-Encoding":           "gzip, deflate, br",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	}
}
