// Package proxy streams remote media through the server so browsers can
// download files whose hosts check Referer or User-Agent.
package proxy

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"video-parser/internal/utils"
	"video-parser/pkg/models"
)

const maxFilenameRunes = 120

var (
	unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|#]`)
	spaceRun            = regexp.MustCompile(`\s+`)
	extPattern          = regexp.MustCompile(`(?i)\.[a-z0-9]{1,6}$`)
)

// Recorder receives one call per proxied response
type Recorder interface {
	RecordProxy(host string, status int, bytes int64)
}

type nopRecorder struct{}

func (nopRecorder) RecordProxy(string, int, int64) {}

// Handler serves the media proxy endpoint
type Handler struct {
	client   *utils.HTTPClient
	recorder Recorder
	logger   zerolog.Logger
}

// Option configures a Handler
type Option func(*Handler)

// WithRecorder reports streamed bytes to r
func WithRecorder(r Recorder) Option {
	return func(h *Handler) {
		if r != nil {
			h.recorder = r
		}
	}
}

// NewHandler creates a proxy handler. Only the proxy and TLS settings of cfg
// apply; requests are bounded by the client connection, not a timeout.
func NewHandler(cfg models.ExtractorConfig, opts ...Option) *Handler {
	h := &Handler{
		client: utils.NewHTTPClient(utils.ClientConfig{
			ProxyURL:    cfg.Proxy,
			TLSInsecure: cfg.TLSInsecure,
			BrowserTLS:  cfg.BrowserTLS,
		}),
		recorder: nopRecorder{},
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "proxy").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetLogger sets the logger for the handler
func (h *Handler) SetLogger(logger zerolog.Logger) {
	h.logger = logger
	h.client.SetLogger(logger)
}

// Options answers CORS preflight requests
func (h *Handler) Options(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET,OPTIONS")
	c.Header("Access-Control-Allow-Headers", "*")
	c.Status(http.StatusNoContent)
}

// Serve fetches the url query parameter and streams it back. Optional
// parameters: filename, referer, ua, disposition (attachment by default)
// and contentType.
func (h *Handler) Serve(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")

	target := c.Query("url")
	if target == "" {
		c.String(http.StatusBadRequest, "Missing url")
		return
	}
	lower := strings.ToLower(target)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		c.String(http.StatusBadRequest, "Invalid url scheme")
		return
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		c.String(http.StatusBadRequest, "Invalid url")
		return
	}

	host := parsed.Hostname()
	douyinCDN := IsDouyinCDN(host)

	headers := map[string]string{}
	if douyinCDN {
		headers["User-Agent"] = utils.MobileUserAgent
		headers["Referer"] = "https://www.douyin.com/"
	} else {
		headers["User-Agent"] = firstNonEmpty(c.Query("ua"), c.GetHeader("User-Agent"), utils.DesktopUserAgent)
		headers["Referer"] = firstNonEmpty(c.Query("referer"), GuessReferer(parsed))
	}
	if r := c.GetHeader("Range"); r != "" {
		headers["Range"] = r
	}

	resp, err := h.client.Get(c.Request.Context(), target, headers)
	if err != nil {
		h.logger.Warn().Err(err).Str("url", target).Msg("Upstream media request failed")
		h.recorder.RecordProxy(host, http.StatusBadGateway, 0)
		c.String(http.StatusBadGateway, "Upstream fetch failed")
		return
	}
	defer resp.Body.Close()

	contentType := firstNonEmpty(c.Query("contentType"), resp.Header.Get("Content-Type"), "application/octet-stream")
	finalType := contentType
	if douyinCDN && !strings.Contains(contentType, "video") {
		finalType = "video/mp4"
	}

	out := c.Writer.Header()
	out.Set("Content-Type", finalType)
	for _, key := range []string{"Content-Length", "Accept-Ranges", "Content-Range"} {
		if v := resp.Header.Get(key); v != "" {
			out.Set(key, v)
		}
	}
	if strings.ToLower(c.DefaultQuery("disposition", "attachment")) == "attachment" {
		name := Filename(parsed, c.Query("filename"), contentType)
		out.Set("Content-Disposition", "attachment; filename*=UTF-8''"+encodeFilename(name))
	}

	c.Status(resp.StatusCode)
	n, err := io.Copy(c.Writer, resp.Body)
	if err != nil {
		h.logger.Debug().Err(err).Str("url", target).Int64("bytes", n).Msg("Media stream interrupted")
	}
	h.recorder.RecordProxy(host, resp.StatusCode, n)
}

// IsDouyinCDN reports whether host serves Douyin video bytes
func IsDouyinCDN(host string) bool {
	return strings.Contains(host, "snssdk") ||
		strings.Contains(host, "douyinvod") ||
		strings.Contains(host, "aweme")
}

// GuessReferer returns the site a media host expects requests to come from,
// falling back to the target's own origin
func GuessReferer(u *url.URL) string {
	host := u.Hostname()
	switch {
	case strings.Contains(host, "douyin"):
		return "https://www.douyin.com/"
	case strings.Contains(host, "bilibili"):
		return "https://www.bilibili.com/"
	case strings.Contains(host, "kuaishou"):
		return "https://www.kuaishou.com/"
	case strings.Contains(host, "weibo"):
		return "https://weibo.com/"
	case strings.Contains(host, "xiaohongshu"), strings.Contains(host, "xhs"):
		return "https://www.xiaohongshu.com/"
	case strings.Contains(host, "snssdk"):
		return "https://www.douyin.com/"
	}
	return u.Scheme + "://" + u.Host + "/"
}

// Filename builds the download name from custom or the last path segment,
// taking the extension from the MIME type when it names one
func Filename(u *url.URL, custom, contentType string) string {
	candidate := custom
	if candidate == "" {
		candidate = "file"
		segments := strings.Split(u.Path, "/")
		for i := len(segments) - 1; i >= 0; i-- {
			if segments[i] != "" {
				candidate = segments[i]
				break
			}
		}
	}

	ext := ExtFromMIME(contentType)
	if ext == "" {
		ext = extPattern.FindString(candidate)
	}
	return SanitizeFilename(extPattern.ReplaceAllString(candidate, "")) + ext
}

// SanitizeFilename replaces reserved characters, collapses whitespace and
// truncates; an empty result becomes "download"
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, " ")
	name = strings.TrimSpace(spaceRun.ReplaceAllString(name, " "))
	if r := []rune(name); len(r) > maxFilenameRunes {
		name = string(r[:maxFilenameRunes])
	}
	if name == "" {
		return "download"
	}
	return name
}

// ExtFromMIME maps common media types to a file extension
func ExtFromMIME(mime string) string {
	t := strings.ToLower(mime)
	switch {
	case t == "":
		return ""
	case strings.Contains(t, "mp4"):
		return ".mp4"
	case strings.Contains(t, "webm"):
		return ".webm"
	case strings.Contains(t, "quicktime"), strings.Contains(t, "mov"):
		return ".mov"
	case strings.Contains(t, "mpeg"):
		return ".mpg"
	case strings.Contains(t, "x-m4a"), strings.Contains(t, "aac"):
		return ".m4a"
	case strings.Contains(t, "mp3"):
		return ".mp3"
	case strings.Contains(t, "ogg"):
		return ".ogg"
	}
	return ""
}

// encodeFilename percent-encodes name for an RFC 5987 filename* value
func encodeFilename(name string) string {
	return strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
