package xhs

import (
	"context"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"video-parser/internal/extract"
	"video-parser/internal/utils"
	"video-parser/pkg/models"
)

// Envelope codes
const (
	CodeSuccess    = 200
	CodeMissingURL = 201
	CodeBadPage    = 400
	CodeNoMedia    = 404
	CodeInternal   = 500
)

// Failure messages
const (
	msgRequestFailed = "请求失败"
	msgNoState       = "未找到页面数据"
	msgBadState      = "JSON数据解析失败"
	msgNoNote        = "数据结构不匹配，请检查链接是否为有效的小红书内容"
	msgNoMedia       = "该内容不包含视频或图片"
)

const (
	userAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1 Edg/122.0.0.0"
	shortHost  = "xhslink.com"
	markerText = "window.__INITIAL_STATE__"
)

// Codes is the Xiaohongshu reply table. Upstream failures are reported with HTTP 200.
var Codes = &models.CodeBook{
	Platform:   models.PlatformXHS,
	Success:    models.Reply{Status: http.StatusOK, Code: CodeSuccess, Msg: "解析成功"},
	MissingURL: models.Reply{Status: http.StatusBadRequest, Code: CodeMissingURL, Msg: "url 为空"},
	Failure:    models.Reply{Status: http.StatusOK, Code: CodeBadPage, Msg: msgRequestFailed},
	Internal:   models.Reply{Status: http.StatusOK, Code: CodeInternal, Msg: "服务器错误"},
	Kinds: map[models.ErrorKind]models.Reply{
		models.KindExtractionMiss: {Status: http.StatusOK, Code: CodeNoMedia, Msg: msgNoMedia},
		models.KindFetch:          {Status: http.StatusOK, Code: CodeInternal, Msg: "服务器错误：页面请求失败"},
	},
	InternalDetail: true,
}

var (
	statePattern        = regexp.MustCompile(`(?is)<script>\s*window\.__INITIAL_STATE__\s*=\s*(\{[\s\S]*?\})</script>`)
	locationHrefPattern = regexp.MustCompile(`window\.location\.href\s*=\s*['"]([^'"]*)['"]`)
	metaRefreshPattern  = regexp.MustCompile(`(?i)<meta[^>]*http-equiv\s*=\s*['"]refresh['"][^>]*content\s*=\s*['"][^;]*;\s*url\s*=\s*([^'"]*)['"]`)
)

// notePaths are the state paths a note object has been found under
var notePaths = [][]interface{}{
	{"noteData", "data", "noteData"},
	{"note", "data"},
	{"noteDetail", "data"},
	{"data", "noteData"},
}

// Note is the Xiaohongshu response payload
type Note struct {
	Author   string   `json:"author"`
	AuthorID string   `json:"authorID"`
	Title    string   `json:"title"`
	Desc     string   `json:"desc"`
	Avatar   string   `json:"avatar"`
	Cover    string   `json:"cover"`
	URL      string   `json:"url,omitempty"`
	Images   []string `json:"images,omitempty"`
	Type     string   `json:"type"`
}

// Parser reads notes from the state embedded in Xiaohongshu pages
type Parser struct {
	client   *utils.HTTPClient
	manual   *utils.HTTPClient
	config   models.ExtractorConfig
	decoder  extract.NearJSON
	observer models.Observer
	logger   zerolog.Logger
}

// Option configures a Parser
type Option func(*Parser)

// WithObserver reports upstream calls to o
func WithObserver(o models.Observer) Option {
	return func(p *Parser) {
		if o != nil {
			p.observer = o
		}
	}
}

// NewParser creates a Xiaohongshu parser
func NewParser(cfg models.ExtractorConfig, opts ...Option) *Parser {
	ua := cfg.UserAgent
	if ua == "" {
		ua = userAgent
	}
	base := utils.ClientConfig{
		ProxyURL:     cfg.Proxy,
		UserAgent:    ua,
		Cookie:       cfg.Cookie,
		TLSInsecure:  cfg.TLSInsecure,
		BrowserTLS:   cfg.BrowserTLS,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}
	manual := base
	manual.NoRedirect = true

	p := &Parser{
		client:   utils.NewHTTPClient(base),
		manual:   utils.NewHTTPClient(manual),
		config:   cfg,
		observer: models.NopObserver{},
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("platform", "xhs").Logger(),
	}
	if cfg.JSFallback {
		p.decoder.Eval = extract.NewEvaluator(cfg.JSTimeout)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Platform returns the platform name
func (p *Parser) Platform() models.Platform {
	return models.PlatformXHS
}

// Codes returns the reply table
func (p *Parser) Codes() *models.CodeBook {
	return Codes
}

// SetLogger sets the logger for the parser
func (p *Parser) SetLogger(logger zerolog.Logger) {
	p.logger = logger
	p.client.SetLogger(logger)
	p.manual.SetLogger(logger)
}

// Parse returns the video or image set of a Xiaohongshu note
func (p *Parser) Parse(ctx context.Context, rawURL string) (interface{}, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, models.ErrMissingURL
	}

	realURL := p.realURL(ctx, rawURL)
	page, err := p.get(ctx, p.client, "fetch", p.config.FetchTimeout, realURL)
	if err != nil {
		return nil, models.NewParseError(models.KindFetch, models.PlatformXHS, rawURL, "").Wrap(err)
	}
	if page.Body == "" {
		return nil, p.pageError(rawURL, msgRequestFailed)
	}

	note, err := p.parsePage(rawURL, page.Body)
	if err != nil {
		return nil, err
	}
	p.logger.Info().Str("url", rawURL).Str("type", note.Type).Msg("Xiaohongshu note parsed")
	return note, nil
}

// parsePage decodes the page state and builds the note
func (p *Parser) parsePage(rawURL, body string) (*Note, error) {
	text := ""
	if m := statePattern.FindStringSubmatch(body); m != nil {
		text = m[1]
	} else if idx := strings.Index(body, markerText); idx >= 0 {
		text, _ = extract.BalancedAfter(body, idx+len(markerText))
	}
	if text == "" {
		return nil, p.pageError(rawURL, msgNoState)
	}

	state, err := p.decoder.Decode(text)
	if err != nil {
		return nil, p.pageError(rawURL, msgBadState).Wrap(err)
	}
	if _, ok := state.(*extract.Object); !ok {
		return nil, p.pageError(rawURL, "数据格式错误")
	}

	noteData := findNote(state)
	if noteData == nil {
		return nil, p.pageError(rawURL, msgNoNote)
	}

	note := &Note{
		Author:   firstString(noteData, []interface{}{"user", "nickName"}, []interface{}{"user", "name"}, []interface{}{"user", "nickname"}),
		AuthorID: firstString(noteData, []interface{}{"user", "userId"}, []interface{}{"user", "id"}),
		Title:    extract.LookupString(noteData, "title"),
		Desc:     firstString(noteData, []interface{}{"desc"}, []interface{}{"description"}),
		Avatar:   firstString(noteData, []interface{}{"user", "avatar"}, []interface{}{"user", "avatarUrl"}),
	}

	images, _ := extract.Lookup(noteData, "imageList").([]interface{})

	if videoURL := streamURL(noteData); videoURL != "" {
		if len(images) > 0 {
			note.Cover = imageURL(images[0])
		}
		note.URL = videoURL
		note.Type = string(models.MediaTypeVideo)
		return note, nil
	}

	for i, img := range images {
		u := imageURL(img)
		if u == "" {
			continue
		}
		note.Images = append(note.Images, u)
		if i == 0 {
			note.Cover = u
		}
	}
	if len(note.Images) > 0 {
		note.Type = string(models.MediaTypeImage)
		return note, nil
	}

	return nil, models.NewParseError(models.KindExtractionMiss, models.PlatformXHS, rawURL, "")
}

// realURL resolves xhslink.com short links through the Location header,
// a script redirect or a meta refresh
func (p *Parser) realURL(ctx context.Context, rawURL string) string {
	if !strings.Contains(rawURL, shortHost) {
		return rawURL
	}

	page, err := p.get(ctx, p.manual, "resolve", p.config.ResolveTimeout, rawURL)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", rawURL).Msg("Short link not resolved")
		return rawURL
	}
	if page.StatusCode >= 300 && page.StatusCode < 400 {
		if location := page.Header.Get("Location"); location != "" {
			return location
		}
	}

	page, err = p.get(ctx, p.client, "resolve", p.config.ResolveTimeout, rawURL)
	if err != nil {
		return rawURL
	}
	if m := locationHrefPattern.FindStringSubmatch(page.Body); m != nil {
		return m[1]
	}
	if m := metaRefreshPattern.FindStringSubmatch(page.Body); m != nil {
		return m[1]
	}
	return rawURL
}

func (p *Parser) get(ctx context.Context, client *utils.HTTPClient, stage string, timeout time.Duration, rawURL string) (*utils.Page, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	page, err := client.GetPage(ctx, rawURL, nil)
	p.observer.ObserveFetch(models.PlatformXHS, stage, err == nil, time.Since(start))
	return page, err
}

func (p *Parser) pageError(rawURL, msg string) *models.ParseError {
	return models.NewParseError(models.KindUpstreamShape, models.PlatformXHS, rawURL, msg)
}

// findNote returns the note object of a decoded page state
func findNote(state interface{}) *extract.Object {
	for _, path := range notePaths {
		if obj := extract.LookupObject(state, path...); obj != nil {
			return obj
		}
	}

	detail := extract.LookupObject(state, "note", "noteDetailMap")
	if detail == nil {
		return nil
	}
	if id := extract.LookupString(state, "note", "currentNoteId"); id != "" {
		if obj := extract.LookupObject(detail, id, "note"); obj != nil {
			return obj
		}
	}
	for _, key := range detail.Keys() {
		if obj := extract.LookupObject(detail, key, "note"); obj != nil && obj.Len() > 0 {
			return obj
		}
	}
	return nil
}

// streamURL returns the h265 master URL, else the h264 one
func streamURL(note *extract.Object) string {
	for _, codec := range []string{"h265", "h264"} {
		if u := extract.LookupString(note, "video", "media", "stream", codec, 0, "masterUrl"); u != "" {
			return u
		}
	}
	return ""
}

func imageURL(img interface{}) string {
	return firstString(img, []interface{}{"url"}, []interface{}{"urlDefault"}, []interface{}{"infoList", 0, "url"})
}

func firstString(v interface{}, paths ...[]interface{}) string {
	for _, path := range paths {
		if s := extract.LookupString(v, path...); s != "" {
			return s
		}
	}
	return ""
}
