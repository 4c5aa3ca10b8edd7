package pipigx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"video-parser/internal/extract"
	"video-parser/internal/utils"
	"video-parser/pkg/models"
)

// Envelope codes. HTTP errors from upstream are reported with their own status as code.
const (
	CodeSuccess   = 200
	CodeBadParams = 400
	CodeNoPost    = 500
)

const (
	// DefaultAPIBase is the share API host
	DefaultAPIBase = "https://h5.pipigx.com"
	// CoverBase is the frame image prefix the video thumb id is appended to
	CoverBase = "https://file.ippzone.com/img/frame/id/"

	fetchContentPath = "/ppapi/share/fetch_content"
)

// Codes is the Pipigx reply table. The HTTP status mirrors the envelope code.
var Codes = &models.CodeBook{
	Platform:   models.PlatformPipigx,
	Success:    models.Reply{Status: http.StatusOK, Code: CodeSuccess, Msg: "解析成功"},
	MissingURL: models.Reply{Status: http.StatusBadRequest, Code: CodeBadParams, Msg: "未提供 url 参数"},
	Failure:    models.Reply{Status: http.StatusInternalServerError, Code: CodeNoPost, Msg: "响应中缺少 data.post 字段"},
	Internal:   models.Reply{Status: http.StatusInternalServerError, Code: CodeNoPost, Msg: "请求发生错误"},
	Kinds: map[models.ErrorKind]models.Reply{
		models.KindResolution: {Status: http.StatusBadRequest, Code: CodeBadParams, Msg: "提取参数出错"},
		models.KindFetch:      {Status: http.StatusInternalServerError, Code: CodeNoPost, Msg: "请求发生错误"},
	},
}

// Post is the Pipigx response payload
type Post struct {
	Title string `json:"title"`
	Cover string `json:"cover"`
	Video string `json:"video,omitempty"`
}

type fetchRequest struct {
	PID  int64  `json:"pid"`
	MID  int64  `json:"mid"`
	Type string `json:"type"`
}

type fetchResponse struct {
	Data *struct {
		Post *struct {
			Content string          `json:"content"`
			Videos  json.RawMessage `json:"videos"`
		} `json:"post"`
	} `json:"data"`
}

// Parser resolves Pipigx share links through the share API
type Parser struct {
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

// NewParser creates a Pipigx parser
func NewParser(cfg models.ExtractorConfig, opts ...Option) *Parser {
	client := utils.NewHTTPClient(utils.ClientConfig{
		ProxyURL:    cfg.Proxy,
		TLSInsecure: cfg.TLSInsecure,
		BrowserTLS:  cfg.BrowserTLS,
	})
	api := resty.NewWithClient(client.StdClient())
	api.SetBaseURL(DefaultAPIBase)
	api.SetHeader("Content-Type", "application/json")
	if cfg.UserAgent != "" {
		api.SetHeader("User-Agent", cfg.UserAgent)
	}

	p := &Parser{
		api:      api,
		config:   cfg,
		observer: models.NopObserver{},
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("platform", "pipigx").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Platform returns the platform name
func (p *Parser) Platform() models.Platform {
	return models.PlatformPipigx
}

// Codes returns the reply table
func (p *Parser) Codes() *models.CodeBook {
	return Codes
}

// SetLogger sets the logger for the parser
func (p *Parser) SetLogger(logger zerolog.Logger) {
	p.logger = logger
}

// Parse returns the post behind a share link carrying pid and mid
func (p *Parser) Parse(ctx context.Context, rawURL string) (interface{}, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, models.ErrMissingURL
	}

	req, err := ShareParams(rawURL)
	if err != nil {
		return nil, models.NewParseError(models.KindResolution, models.PlatformPipigx, rawURL, "").Wrap(err)
	}

	out, err := p.fetchContent(ctx, req)
	if err != nil {
		return nil, err
	}
	if out.Data == nil || out.Data.Post == nil {
		return nil, models.NewParseError(models.KindUpstreamShape, models.PlatformPipigx, rawURL, "")
	}

	post := &Post{Title: out.Data.Post.Content}
	thumb, video := firstVideo(out.Data.Post.Videos)
	post.Cover = CoverBase + thumb
	post.Video = video

	p.logger.Info().Int64("pid", req.PID).Msg("Pipigx post parsed")
	return post, nil
}

func (p *Parser) fetchContent(ctx context.Context, body fetchRequest) (*fetchResponse, error) {
	if p.config.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.APITimeout)
		defer cancel()
	}

	var out fetchResponse
	start := time.Now()
	resp, err := p.api.R().
		SetContext(ctx).
		SetBody(body).
		ForceContentType("application/json").
		SetResult(&out).
		Post(fetchContentPath)
	p.observer.ObserveFetch(models.PlatformPipigx, "api", err == nil && resp.IsSuccess(), time.Since(start))

	if resp != nil && resp.StatusCode() >= 400 {
		status := resp.StatusCode()
		return nil, models.NewParseError(models.KindFetch, models.PlatformPipigx, "",
			fmt.Sprintf("HTTP 错误发生: HTTP 状态码 %d", status)).WithCode(status).WithStatus(status)
	}
	if err != nil {
		return nil, models.NewParseError(models.KindFetch, models.PlatformPipigx, "",
			"请求发生错误: "+err.Error()).Wrap(err)
	}
	return &out, nil
}

// ShareParams reads the numeric pid and mid query parameters of a share link
func ShareParams(rawURL string) (fetchRequest, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fetchRequest{}, err
	}
	q := u.Query()
	if q.Get("pid") == "" || q.Get("mid") == "" {
		return fetchRequest{}, fmt.Errorf("pid and mid are required")
	}
	pid, err := strconv.ParseInt(q.Get("pid"), 10, 64)
	if err != nil {
		return fetchRequest{}, fmt.Errorf("invalid pid: %w", err)
	}
	mid, err := strconv.ParseInt(q.Get("mid"), 10, 64)
	if err != nil {
		return fetchRequest{}, fmt.Errorf("invalid mid: %w", err)
	}
	return fetchRequest{PID: pid, MID: mid, Type: "post"}, nil
}

// firstVideo returns the thumb id and URL of the first video, whether videos
// is an array or an object keyed by video id
func firstVideo(raw json.RawMessage) (string, string) {
	if len(raw) == 0 {
		return "", ""
	}
	v, err := extract.DecodeOrdered(string(raw))
	if err != nil {
		return "", ""
	}

	var entries []interface{}
	switch t := v.(type) {
	case []interface{}:
		entries = t
	case *extract.Object:
		entries = t.Values()
	}
	for _, e := range entries {
		if u := extract.LookupString(e, "url"); u != "" {
			return extract.LookupString(e, "thumb"), u
		}
	}
	return "", ""
}
