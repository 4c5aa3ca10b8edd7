package bilibili

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"video-parser/internal/utils"
	"video-parser/pkg/models"
)

// Envelope codes
const (
	CodeSuccess    = 1
	CodeFailure    = 0
	CodeBadLink    = -1
	CodeMissingURL = 201
)

const (
	// DefaultAPIBase is the web API host
	DefaultAPIBase = "https://api.bilibili.com"
	// MirrorBase is the CDN mirror play URLs are rewritten onto
	MirrorBase = "https://upos-sz-mirrorhw.bilivideo.com/"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_14_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/94.0.4606.81 Safari/537.36"
)

// Codes is the Bilibili reply table
var Codes = &models.CodeBook{
	Platform:   models.PlatformBilibili,
	Success:    models.Reply{Status: http.StatusOK, Code: CodeSuccess, Msg: "解析成功！"},
	MissingURL: models.Reply{Status: http.StatusBadRequest, Code: CodeMissingURL, Msg: "链接不能为空！"},
	Failure:    models.Reply{Status: http.StatusOK, Code: CodeFailure, Msg: "解析失败！"},
	Internal:   models.Reply{Status: http.StatusOK, Code: CodeFailure, Msg: "解析失败！"},
	Kinds: map[models.ErrorKind]models.Reply{
		models.KindResolution: {Status: http.StatusOK, Code: CodeBadLink, Msg: "视频链接好像不太对！"},
	},
}

// Part is one page of a multi-part video
type Part struct {
	Title          string   `json:"title"`
	Duration       int64    `json:"duration"`
	DurationFormat string   `json:"durationFormat"`
	Accept         []string `json:"accept"`
	VideoURL       string   `json:"video_url"`
}

// Video is the Bilibili payload. Its title, cover, description and uploader
// are written at the top level of the envelope.
type Video struct {
	Title string      `json:"title"`
	Cover string      `json:"imgurl"`
	Desc  string      `json:"desc"`
	Parts []Part      `json:"data"`
	User  models.User `json:"user"`
}

// Decorate lifts the video metadata onto the envelope
func (v *Video) Decorate(resp *models.APIResponse) {
	resp.Title = v.Title
	resp.ImgURL = v.Cover
	resp.Desc = v.Desc
	resp.Data = v.Parts
	user := v.User
	resp.User = &user
}

type viewResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Title string `json:"title"`
		Pic   string `json:"pic"`
		Desc  string `json:"desc"`
		Owner struct {
			Name string `json:"name"`
			Face string `json:"face"`
		} `json:"owner"`
		Pages []struct {
			Cid      int64  `json:"cid"`
			Part     string `json:"part"`
			Duration int64  `json:"duration"`
		} `json:"pages"`
	} `json:"data"`
}

type playURLResponse struct {
	Code int `json:"code"`
	Data *struct {
		AcceptDescription []string `json:"accept_description"`
		Durl              []struct {
			URL string `json:"url"`
		} `json:"durl"`
	} `json:"data"`
}

// Parser resolves Bilibili video links through the web API
type Parser struct {
	client   *utils.HTTPClient
	api      *resty.Client
	config   models.ExtractorConfig
	observer models.Observer
	logger   zerolog.Logger
}

// Option configures a Parser
type Option func(*Parser)

// WithAPIBase replaces the API host
func WithAPIBase(base string) Option {
	return func(p *Parser) {
		p.api.SetBaseURL(base)
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

// NewParser creates a Bilibili parser. cfg.Cookie is sent with every API call.
func NewParser(cfg models.ExtractorConfig, opts ...Option) *Parser {
	ua := cfg.UserAgent
	if ua == "" {
		ua = userAgent
	}
	client := utils.NewHTTPClient(utils.ClientConfig{
		ProxyURL:     cfg.Proxy,
		UserAgent:    ua,
		TLSInsecure:  cfg.TLSInsecure,
		BrowserTLS:   cfg.BrowserTLS,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	api := resty.NewWithClient(client.StdClient())
	api.SetBaseURL(DefaultAPIBase)
	api.SetHeaders(map[string]string{
		"Content-Type": "application/json;charset=UTF-8",
		"User-Agent":   ua,
	})
	if ck := strings.TrimSpace(cfg.Cookie); ck != "" {
		api.SetHeader("Cookie", ck)
	}

	p := &Parser{
		client:   client,
		api:      api,
		config:   cfg,
		observer: models.NopObserver{},
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("platform", "bilibili").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Platform returns the platform name
func (p *Parser) Platform() models.Platform {
	return models.PlatformBilibili
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

// Parse returns the parts of the video behind a Bilibili link
func (p *Parser) Parse(ctx context.Context, rawURL string) (interface{}, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, models.ErrMissingURL
	}

	bvid, err := p.resolveBVID(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	view, err := p.view(ctx, bvid)
	if err != nil {
		return nil, models.NewParseError(models.KindFetch, models.PlatformBilibili, rawURL, "").Wrap(err)
	}

	video := &Video{
		Title: view.Data.Title,
		Cover: view.Data.Pic,
		Desc:  view.Data.Desc,
		Parts: make([]Part, 0, len(view.Data.Pages)),
		User:  models.User{Name: view.Data.Owner.Name, UserImg: view.Data.Owner.Face},
	}
	for _, page := range view.Data.Pages {
		play, err := p.playURL(ctx, bvid, page.Cid)
		if err != nil {
			p.logger.Warn().Err(err).Str("bvid", bvid).Int64("cid", page.Cid).Msg("Play url unavailable, skipping part")
			continue
		}
		if play.Data == nil || len(play.Data.Durl) == 0 {
			continue
		}
		video.Parts = append(video.Parts, Part{
			Title:          page.Part,
			Duration:       page.Duration,
			DurationFormat: formatDuration(page.Duration),
			Accept:         play.Data.AcceptDescription,
			VideoURL:       mirrorURL(play.Data.Durl[0].URL),
		})
	}

	p.logger.Info().Str("bvid", bvid).Int("parts", len(video.Parts)).Msg("Bilibili video parsed")
	return video, nil
}

// resolveBVID reads the video id from a desktop, mobile or b23.tv link
func (p *Parser) resolveBVID(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(CleanURL(rawURL))
	if err != nil || u.Host == "" {
		return "", p.badLink(rawURL, "视频链接好像不太对！")
	}

	var path string
	switch u.Hostname() {
	case "b23.tv":
		final, err := p.follow(ctx, rawURL)
		if err != nil {
			return "", models.NewParseError(models.KindFetch, models.PlatformBilibili, rawURL, "").Wrap(err)
		}
		fu, err := url.Parse(final)
		if err != nil {
			return "", p.badLink(rawURL, "视频链接好像不太对！")
		}
		path = fu.Path
	case "www.bilibili.com", "m.bilibili.com":
		path = u.Path
	default:
		return "", p.badLink(rawURL, "视频链接好像不太对！")
	}

	if !strings.Contains(path, "/video/") {
		return "", p.badLink(rawURL, "好像不是视频链接")
	}
	return strings.TrimSuffix(strings.Replace(path, "/video/", "", 1), "/"), nil
}

func (p *Parser) follow(ctx context.Context, rawURL string) (string, error) {
	if p.config.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ResolveTimeout)
		defer cancel()
	}

	start := time.Now()
	final, err := p.client.FinalURL(ctx, rawURL, nil)
	p.observer.ObserveFetch(models.PlatformBilibili, "resolve", err == nil, time.Since(start))
	return final, err
}

func (p *Parser) view(ctx context.Context, bvid string) (*viewResponse, error) {
	var out viewResponse
	if err := p.getJSON(ctx, "/x/web-interface/view", map[string]string{"bvid": bvid}, &out); err != nil {
		return nil, err
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("bilibili api error: code=%d message=%s", out.Code, out.Message)
	}
	return &out, nil
}

func (p *Parser) playURL(ctx context.Context, bvid string, cid int64) (*playURLResponse, error) {
	var out playURLResponse
	err := p.getJSON(ctx, "/x/player/playurl", map[string]string{
		"otype":        "json",
		"fnver":        "0",
		"fnval":        "3",
		"player":       "3",
		"qn":           "112",
		"bvid":         bvid,
		"cid":          strconv.FormatInt(cid, 10),
		"platform":     "html5",
		"high_quality": "1",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// getJSON performs one observed API call bounded by the API timeout
func (p *Parser) getJSON(ctx context.Context, path string, query map[string]string, out interface{}) error {
	if p.config.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.APITimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := p.api.R().
		SetContext(ctx).
		SetQueryParams(query).
		ForceContentType("application/json").
		SetResult(out).
		Get(path)
	ok := err == nil && resp.StatusCode() == http.StatusOK
	p.observer.ObserveFetch(models.PlatformBilibili, "api", ok, time.Since(start))
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return &utils.StatusError{StatusCode: resp.StatusCode(), URL: resp.Request.URL}
	}
	return nil
}

func (p *Parser) badLink(rawURL, msg string) *models.ParseError {
	return models.NewParseError(models.KindResolution, models.PlatformBilibili, rawURL, msg)
}

// CleanURL drops credentials, the query string and a trailing slash
func CleanURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// mirrorURL moves a play URL onto the mirror host
func mirrorURL(playURL string) string {
	const marker = ".bilivideo.com/"
	idx := strings.Index(playURL, marker)
	if idx < 0 {
		return playURL
	}
	return MirrorBase + playURL[idx+len(marker):]
}

// formatDuration renders the seconds before the last as HH:MM:SS
func formatDuration(seconds int64) string {
	return time.Unix(seconds-1, 0).UTC().Format("15:04:05")
}
