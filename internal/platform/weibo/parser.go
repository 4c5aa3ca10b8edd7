package weibo

import (
	"context"
	"errors"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"video-parser/internal/extract"
	"video-parser/internal/utils"
	"video-parser/pkg/models"
)

// Envelope codes
const (
	CodeSuccess    = 200
	CodeMissingURL = 201
	CodeFailure    = 404
	CodeInternal   = 500
)

// DefaultBase is the weibo.com host the component API lives on
const DefaultBase = "https://weibo.com"

// Codes is the Weibo reply table
var Codes = &models.CodeBook{
	Platform:   models.PlatformWeibo,
	Success:    models.Reply{Status: http.StatusOK, Code: CodeSuccess, Msg: "解析成功"},
	MissingURL: models.Reply{Status: http.StatusBadRequest, Code: CodeMissingURL, Msg: "链接不能为空！"},
	Failure:    models.Reply{Status: http.StatusNotFound, Code: CodeFailure, Msg: "解析失败！"},
	Internal:   models.Reply{Status: http.StatusInternalServerError, Code: CodeInternal, Msg: "服务器错误"},
}

var (
	fidPattern = regexp.MustCompile(`fid=(.*)`)
	oidPattern = regexp.MustCompile(`\d+:\d+`)
)

// Video is the Weibo response payload
type Video struct {
	Author string      `json:"author"`
	Avatar string      `json:"avatar"`
	Time   interface{} `json:"time"`
	Title  string      `json:"title"`
	Cover  string      `json:"cover"`
	URL    string      `json:"url"`
}

type componentResponse struct {
	Data struct {
		PlayInfo *struct {
			Author     string          `json:"author"`
			Avatar     string          `json:"avatar"`
			RealDate   interface{}     `json:"real_date"`
			Title      string          `json:"title"`
			CoverImage string          `json:"cover_image"`
			URLs       *extract.Object `json:"urls"`
		} `json:"Component_Play_Playinfo"`
	} `json:"data"`
}

// Parser resolves Weibo video links through the TV component API
type Parser struct {
	api      *resty.Client
	config   models.ExtractorConfig
	observer models.Observer
	logger   zerolog.Logger
}

// Option configures a Parser
type Option func(*Parser)

// WithBase replaces the weibo.com host
func WithBase(base string) Option {
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

// NewParser creates a Weibo parser. cfg.Cookie is sent with the component request.
func NewParser(cfg models.ExtractorConfig, opts ...Option) *Parser {
	client := utils.NewHTTPClient(utils.ClientConfig{
		ProxyURL:    cfg.Proxy,
		TLSInsecure: cfg.TLSInsecure,
		BrowserTLS:  cfg.BrowserTLS,
	})

	api := resty.NewWithClient(client.StdClient())
	api.SetBaseURL(DefaultBase)
	ua := cfg.UserAgent
	if ua == "" {
		ua = utils.DesktopUserAgent
	}
	api.SetHeader("User-Agent", ua)
	if ck := strings.TrimSpace(cfg.Cookie); ck != "" {
		api.SetHeader("Cookie", ck)
	}

	p := &Parser{
		api:      api,
		config:   cfg,
		observer: models.NopObserver{},
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("platform", "weibo").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Platform returns the platform name
func (p *Parser) Platform() models.Platform {
	return models.PlatformWeibo
}

// Codes returns the reply table
func (p *Parser) Codes() *models.CodeBook {
	return Codes
}

// SetLogger sets the logger for the parser
func (p *Parser) SetLogger(logger zerolog.Logger) {
	p.logger = logger
}

// Parse returns the video behind a Weibo TV link
func (p *Parser) Parse(ctx context.Context, rawURL string) (interface{}, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, models.ErrMissingURL
	}

	id := VideoID(rawURL)
	if id == "" {
		return nil, models.NewParseError(models.KindResolution, models.PlatformWeibo, rawURL, "")
	}

	out, err := p.component(ctx, id)
	if err != nil {
		return nil, models.NewParseError(models.KindFetch, models.PlatformWeibo, rawURL, "").Wrap(err)
	}

	info := out.Data.PlayInfo
	if info == nil || info.URLs.Len() == 0 {
		return nil, models.NewParseError(models.KindUpstreamShape, models.PlatformWeibo, rawURL, "")
	}
	videoURL, _ := info.URLs.Values()[0].(string)
	if videoURL == "" {
		return nil, models.NewParseError(models.KindUpstreamShape, models.PlatformWeibo, rawURL, "")
	}

	p.logger.Info().Str("oid", id).Msg("Weibo video parsed")
	return &Video{
		Author: info.Author,
		Avatar: info.Avatar,
		Time:   info.RealDate,
		Title:  info.Title,
		Cover:  absolute(info.CoverImage),
		URL:    absolute(videoURL),
	}, nil
}

// component posts the play-info query for oid
func (p *Parser) component(ctx context.Context, oid string) (*componentResponse, error) {
	if p.config.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.APITimeout)
		defer cancel()
	}

	var out componentResponse
	start := time.Now()
	resp, err := p.api.R().
		SetContext(ctx).
		SetHeader("Referer", DefaultBase+"/tv/show/"+oid).
		SetFormData(map[string]string{
			"data": `{"Component_Play_Playinfo":{"oid":"` + oid + `"}}`,
		}).
		ForceContentType("application/json").
		SetResult(&out).
		Post("/tv/api/component?page=/tv/show/" + oid)
	ok := err == nil && resp.IsSuccess()
	p.observer.ObserveFetch(models.PlatformWeibo, "api", ok, time.Since(start))
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &utils.StatusError{StatusCode: resp.StatusCode(), URL: resp.Request.URL}
	}
	if len(resp.Body()) == 0 {
		return nil, errors.New("empty component response")
	}
	return &out, nil
}

// VideoID returns the oid of a Weibo TV link, or "" when none is present
func VideoID(rawURL string) string {
	if strings.Contains(rawURL, "show?fid=") {
		if m := fidPattern.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
		return ""
	}
	return oidPattern.FindString(rawURL)
}

func absolute(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}
