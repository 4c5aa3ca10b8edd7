package ppxia

import (
	"context"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

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

const (
	msgNoID   = "无法从 URL 中提取视频 ID"
	msgNoItem = "解析失败，未找到所需数据"
	msgFailed = "解析过程中出现错误"
)

// DefaultAPIBase is the H5 comment API host
const DefaultAPIBase = "https://h5.pipix.com"

const commentPath = "/bds/cell/cell_h5_comment/"

// Codes is the Pipixia reply table. Upstream failures are reported with HTTP 200.
var Codes = &models.CodeBook{
	Platform:   models.PlatformPpxia,
	Success:    models.Reply{Status: http.StatusOK, Code: CodeSuccess, Msg: "解析成功"},
	MissingURL: models.Reply{Status: http.StatusBadRequest, Code: CodeMissingURL, Msg: "链接不能为空！"},
	Failure:    models.Reply{Status: http.StatusOK, Code: CodeFailure, Msg: msgFailed},
	Internal:   models.Reply{Status: http.StatusInternalServerError, Code: CodeInternal, Msg: "服务器错误"},
	Kinds: map[models.ErrorKind]models.Reply{
		models.KindResolution:    {Status: http.StatusOK, Code: CodeFailure, Msg: msgNoID},
		models.KindUpstreamShape: {Status: http.StatusOK, Code: CodeFailure, Msg: msgNoItem},
	},
}

var itemPattern = regexp.MustCompile(`item/(.*)\?`)

// Video is the Pipixia response payload
type Video struct {
	Author string `json:"author"`
	Avatar string `json:"avatar"`
	Title  string `json:"title"`
	Cover  string `json:"cover"`
	URL    string `json:"url"`
}

type urlList []struct {
	URL string `json:"url"`
}

func (l urlList) first() string {
	if len(l) == 0 {
		return ""
	}
	return l[0].URL
}

type cellItem struct {
	Content string `json:"content"`
	Author  struct {
		Name   string `json:"name"`
		Avatar struct {
			DownloadList urlList `json:"download_list"`
		} `json:"avatar"`
	} `json:"author"`
	Cover struct {
		DownloadList urlList `json:"download_list"`
	} `json:"cover"`
	Video struct {
		VideoHigh struct {
			URLList urlList `json:"url_list"`
		} `json:"video_high"`
	} `json:"video"`
}

type commentResponse struct {
	Data struct {
		CellComments []struct {
			CommentInfo struct {
				Item *cellItem `json:"item"`
			} `json:"comment_info"`
		} `json:"cell_comments"`
	} `json:"data"`
}

// Parser resolves Pipixia share links through the H5 comment API
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

// NewParser creates a Pipixia parser
func NewParser(cfg models.ExtractorConfig, opts ...Option) *Parser {
	ua := cfg.UserAgent
	if ua == "" {
		ua = utils.MobileUserAgent
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
	api.SetHeader("User-Agent", ua)

	p := &Parser{
		client:   client,
		api:      api,
		config:   cfg,
		observer: models.NopObserver{},
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("platform", "ppxia").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Platform returns the platform name
func (p *Parser) Platform() models.Platform {
	return models.PlatformPpxia
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

// Parse returns the video behind a Pipixia share link
func (p *Parser) Parse(ctx context.Context, rawURL string) (interface{}, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, models.ErrMissingURL
	}

	final, err := p.follow(ctx, rawURL)
	if err != nil {
		return nil, models.NewParseError(models.KindFetch, models.PlatformPpxia, rawURL, "").Wrap(err)
	}
	m := itemPattern.FindStringSubmatch(final)
	if m == nil {
		return nil, models.NewParseError(models.KindResolution, models.PlatformPpxia, rawURL, "")
	}
	id := m[1]

	out, err := p.comments(ctx, id)
	if err != nil {
		return nil, models.NewParseError(models.KindFetch, models.PlatformPpxia, rawURL, "").Wrap(err)
	}
	if len(out.Data.CellComments) < 2 || out.Data.CellComments[1].CommentInfo.Item == nil {
		return nil, models.NewParseError(models.KindUpstreamShape, models.PlatformPpxia, rawURL, "")
	}
	item := out.Data.CellComments[1].CommentInfo.Item

	p.logger.Info().Str("cell_id", id).Msg("Pipixia video parsed")
	return &Video{
		Author: item.Author.Name,
		Avatar: item.Author.Avatar.DownloadList.first(),
		Title:  item.Content,
		Cover:  item.Cover.DownloadList.first(),
		URL:    item.Video.VideoHigh.URLList.first(),
	}, nil
}

func (p *Parser) follow(ctx context.Context, rawURL string) (string, error) {
	if p.config.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ResolveTimeout)
		defer cancel()
	}

	start := time.Now()
	final, err := p.client.FinalURL(ctx, rawURL, nil)
	p.observer.ObserveFetch(models.PlatformPpxia, "resolve", err == nil, time.Since(start))
	return final, err
}

func (p *Parser) comments(ctx context.Context, cellID string) (*commentResponse, error) {
	if p.config.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.APITimeout)
		defer cancel()
	}

	var out commentResponse
	start := time.Now()
	resp, err := p.api.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"count":    "5",
			"aid":      "1319",
			"app_name": "super",
			"cell_id":  cellID,
		}).
		ForceContentType("application/json").
		SetResult(&out).
		Get(commentPath)
	ok := err == nil && resp.IsSuccess()
	p.observer.ObserveFetch(models.PlatformPpxia, "api", ok, time.Since(start))
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &utils.StatusError{StatusCode: resp.StatusCode(), URL: resp.Request.URL}
	}
	return &out, nil
}
