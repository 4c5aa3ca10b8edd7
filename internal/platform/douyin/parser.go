package douyin

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
	CodeShape      = 201
	CodeNoID       = 400
	CodeBlocked    = 403
	CodeInternal   = 500
)

// Failure messages for the distinct page shapes
const (
	msgNoRouterData = "解析失败：未能从页面获取视频数据，可能是页面结构变化、接口受限或视频已被删除"
	msgNoLoaderData = "解析失败：视频数据结构异常，可能是抖音接口发生变化"
	msgNoItem       = "解析失败：无法从数据中找到视频信息"
	msgNoAuthor     = "解析失败：视频作者信息缺失"
	msgNoPlayAddr   = "解析失败：视频播放地址缺失"
	msgBlocked      = "解析失败：当前服务器IP无法访问抖音，请使用代理服务器或更换部署区域"
)

// DefaultShareBase is the share page prefix the video id is appended to
const DefaultShareBase = "https://www.iesdouyin.com/share/video/"

// Codes is the Douyin reply table. Upstream failures are reported with HTTP 200.
var Codes = &models.CodeBook{
	Platform:   models.PlatformDouyin,
	Success:    models.Reply{Status: http.StatusOK, Code: CodeSuccess, Msg: "解析成功"},
	MissingURL: models.Reply{Status: http.StatusBadRequest, Code: CodeMissingURL, Msg: "url为空"},
	Failure:    models.Reply{Status: http.StatusOK, Code: CodeShape, Msg: msgNoRouterData},
	Internal:   models.Reply{Status: http.StatusOK, Code: CodeInternal, Msg: "服务器错误"},
	Kinds: map[models.ErrorKind]models.Reply{
		models.KindResolution: {Status: http.StatusOK, Code: CodeNoID, Msg: "无法解析视频 ID：请确保链接格式正确且视频可访问"},
		models.KindFetch:      {Status: http.StatusOK, Code: CodeInternal, Msg: "服务器错误：抖音页面请求失败"},
	},
	InternalDetail: true,
}

var (
	videoIDPattern    = regexp.MustCompile(`video/(\d+)`)
	longNumberPattern = regexp.MustCompile(`(\d{10,})`)
	canonicalPattern  = regexp.MustCompile(`https://www\.iesdouyin\.com/share/video/(\d+)`)
	routerDataPattern = regexp.MustCompile(`(?s)window\._ROUTER_DATA\s*=\s*(.*?)</script>`)
)

// Video is the Douyin response payload
type Video struct {
	Author string `json:"author"`
	UID    string `json:"uid"`
	Avatar string `json:"avatar"`
	Like   int64  `json:"like"`
	Time   int64  `json:"time"`
	Title  string `json:"title"`
	Cover  string `json:"cover"`
	URL    string `json:"url"`
	Music  Music  `json:"music"`
}

// Music is the soundtrack block of a Video
type Music struct {
	Author string `json:"author"`
	Avatar string `json:"avatar"`
}

type urlList struct {
	URLList []string `json:"url_list"`
}

func (u urlList) first() string {
	if len(u.URLList) == 0 {
		return ""
	}
	return u.URLList[0]
}

type awemeItem struct {
	Desc       string `json:"desc"`
	CreateTime int64  `json:"create_time"`
	Author     *struct {
		Nickname     string  `json:"nickname"`
		UniqueID     string  `json:"unique_id"`
		AvatarMedium urlList `json:"avatar_medium"`
	} `json:"author"`
	Statistics struct {
		DiggCount int64 `json:"digg_count"`
	} `json:"statistics"`
	Video struct {
		PlayAddr urlList `json:"play_addr"`
		Cover    urlList `json:"cover"`
	} `json:"video"`
	Music struct {
		Author     string  `json:"author"`
		CoverLarge urlList `json:"cover_large"`
	} `json:"music"`
}

type routerData struct {
	LoaderData *struct {
		VideoPage *struct {
			VideoInfoRes struct {
				ItemList []awemeItem `json:"item_list"`
			} `json:"videoInfoRes"`
		} `json:"video_(id)/page"`
	} `json:"loaderData"`
}

// Parser resolves Douyin share links through the iesdouyin share page
type Parser struct {
	client    *utils.HTTPClient
	config    models.ExtractorConfig
	shareBase string
	headers   map[string]string
	decoder   extract.NearJSON
	observer  models.Observer
	logger    zerolog.Logger
}

// Option configures a Parser
type Option func(*Parser)

// WithShareBase replaces the share page prefix
func WithShareBase(base string) Option {
	return func(p *Parser) {
		p.shareBase = base
	}
}

// WithObserver reports upstream calls to o
func WithObserver(o models.Observer) Option {
	return func(p *Parser) {
		if o != nil {
			p.observer = o
		}
	}
}

// NewParser creates a Douyin parser
func NewParser(cfg models.ExtractorConfig, opts ...Option) *Parser {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = utils.MobileUserAgent
	}

	p := &Parser{
		client: utils.NewHTTPClient(utils.ClientConfig{
			ProxyURL:     cfg.Proxy,
			UserAgent:    userAgent,
			Cookie:       cfg.Cookie,
			TLSInsecure:  cfg.TLSInsecure,
			BrowserTLS:   cfg.BrowserTLS,
			MaxBodyBytes: cfg.MaxBodyBytes,
		}),
		config:    cfg,
		shareBase: DefaultShareBase,
		headers: map[string]string{
			"User-Agent":         userAgent,
			"Accept":             "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language":    "zh-CN,zh;q=0.9,en;q=0.8",
			"Accept-Encoding":    "gzip, deflate, br",
			"Cache-Control":      "max-age=0",
			"Referer":            "https://www.douyin.com/",
			"Origin":             "https://www.douyin.com",
			"sec-ch-ua-mobile":   "?1",
			"sec-ch-ua-platform": `"iOS"`,
			"Sec-Fetch-Dest":     "document",
			"Sec-Fetch-Mode":     "navigate",
			"Sec-Fetch-Site":     "same-origin",
		},
		decoder:  extract.NearJSON{},
		observer: models.NopObserver{},
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("platform", "douyin").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if cfg.JSFallback {
		p.decoder.Eval = extract.NewEvaluator(cfg.JSTimeout)
	}
	return p
}

// Platform returns the platform name
func (p *Parser) Platform() models.Platform {
	return models.PlatformDouyin
}

// Codes returns the reply table
func (p *Parser) Codes() *models.CodeBook {
	return Codes
}

// SetLogger sets the logger for the parser
func (p *Parser) SetLogger(logger zerolog.Logger) {
	p.logger = logger
	p.client.SetLogger(logger)
}

// Parse returns the video behind a Douyin share link
func (p *Parser) Parse(ctx context.Context, rawURL string) (interface{}, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, models.ErrMissingURL
	}

	id := p.extractID(ctx, rawURL)
	if id == "" {
		if canonical := p.canonicalURL(ctx, rawURL); canonical != "" {
			id = p.extractID(ctx, canonical)
		}
	}
	if id == "" {
		return nil, models.NewParseError(models.KindResolution, models.PlatformDouyin, rawURL, "")
	}

	body, err := p.fetchSharePage(ctx, id)
	if err != nil {
		return nil, models.NewParseError(models.KindFetch, models.PlatformDouyin, rawURL, "").Wrap(err)
	}
	if strings.Contains(body, "tiktok.com") || strings.Contains(body, "访问受限") {
		return nil, p.shapeError(rawURL, msgBlocked).WithCode(CodeBlocked)
	}

	video, err := p.parseSharePage(rawURL, body)
	if err != nil {
		return nil, err
	}
	return video, nil
}

// parseSharePage reads the router state embedded in the share page
func (p *Parser) parseSharePage(rawURL, body string) (*Video, error) {
	m := routerDataPattern.FindStringSubmatch(body)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return nil, p.shapeError(rawURL, msgNoRouterData)
	}

	var data routerData
	text := strings.TrimRight(strings.TrimSpace(m[1]), ";")
	if err := p.decoder.DecodeInto(text, &data); err != nil {
		return nil, p.shapeError(rawURL, msgNoLoaderData).Wrap(err)
	}
	if data.LoaderData == nil {
		return nil, p.shapeError(rawURL, msgNoLoaderData)
	}
	if data.LoaderData.VideoPage == nil || len(data.LoaderData.VideoPage.VideoInfoRes.ItemList) == 0 {
		return nil, p.shapeError(rawURL, msgNoItem)
	}

	item := data.LoaderData.VideoPage.VideoInfoRes.ItemList[0]
	if item.Author == nil {
		return nil, p.shapeError(rawURL, msgNoAuthor)
	}
	playURL := item.Video.PlayAddr.first()
	if playURL == "" {
		return nil, p.shapeError(rawURL, msgNoPlayAddr)
	}

	video := &Video{
		Author: orDefault(item.Author.Nickname, "未知作者"),
		UID:    item.Author.UniqueID,
		Avatar: item.Author.AvatarMedium.first(),
		Like:   item.Statistics.DiggCount,
		Time:   item.CreateTime,
		Title:  orDefault(item.Desc, "无标题"),
		Cover:  item.Video.Cover.first(),
		URL:    strings.Replace(playURL, "playwm", "play", 1),
		Music: Music{
			Author: orDefault(item.Music.Author, "未知音乐作者"),
			Avatar: item.Music.CoverLarge.first(),
		},
	}
	p.logger.Info().Str("url", rawURL).Str("title", video.Title).Msg("Douyin video parsed")
	return video, nil
}

// extractID follows rawURL and looks for the video id in the final URL, then in the body
func (p *Parser) extractID(ctx context.Context, rawURL string) string {
	page, err := p.get(ctx, "resolve", p.config.ResolveTimeout, rawURL, nil)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", rawURL).Msg("Share link not followed")
		return ""
	}
	if m := videoIDPattern.FindStringSubmatch(page.URL); m != nil {
		return m[1]
	}
	if m := longNumberPattern.FindStringSubmatch(page.URL); m != nil {
		return m[1]
	}
	if m := canonicalPattern.FindStringSubmatch(page.Body); m != nil {
		return m[1]
	}
	return ""
}

// canonicalURL fetches rawURL with browser headers and returns its canonical link
func (p *Parser) canonicalURL(ctx context.Context, rawURL string) string {
	page, err := p.get(ctx, "resolve", p.config.ResolveTimeout, rawURL, p.headers)
	if err != nil {
		return ""
	}
	return extract.ParseDocument(page.Body).Links["canonical"]
}

func (p *Parser) fetchSharePage(ctx context.Context, id string) (string, error) {
	page, err := p.get(ctx, "fetch", p.config.FetchTimeout, p.shareBase+id, p.headers)
	if err != nil {
		return "", err
	}
	return page.Body, nil
}

// get performs one observed GET bounded by timeout
func (p *Parser) get(ctx context.Context, stage string, timeout time.Duration, rawURL string, headers map[string]string) (*utils.Page, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	page, err := p.client.GetPage(ctx, rawURL, headers)
	p.observer.ObserveFetch(models.PlatformDouyin, stage, err == nil, time.Since(start))
	return page, err
}

func (p *Parser) shapeError(rawURL, msg string) *models.ParseError {
	return models.NewParseError(models.KindUpstreamShape, models.PlatformDouyin, rawURL, msg)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
