package kuaishou

import (
	"context"
	"net/http"
	"regexp"

	"github.com/rs/zerolog"

	"video-parser/internal/extract"
	"video-parser/internal/pipeline"
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

const pageBase = "https://www.kuaishou.com/short-video/"

// Codes is the Kuaishou reply table
var Codes = &models.CodeBook{
	Platform:   models.PlatformKuaishou,
	Success:    models.Reply{Status: http.StatusOK, Code: CodeSuccess, Msg: "解析成功"},
	MissingURL: models.Reply{Status: http.StatusBadRequest, Code: CodeMissingURL, Msg: "链接不能为空！"},
	Failure:    models.Reply{Status: http.StatusNotFound, Code: CodeFailure, Msg: "解析失败，可能是链接格式不支持或内容无法访问"},
	Internal:   models.Reply{Status: http.StatusInternalServerError, Code: CodeInternal, Msg: "服务器错误"},
}

func shortVideoPage(id, _ string) string {
	return pageBase + id
}

// NewProfile returns the Kuaishou pipeline profile. A non-empty userAgent
// replaces the default iPhone Safari agent.
func NewProfile(userAgent string) pipeline.Profile {
	if userAgent == "" {
		userAgent = utils.MobileUserAgent
	}
	return pipeline.Profile{
		Platform: models.PlatformKuaishou,
		Headers:  pipeline.BrowserHeaders(userAgent),
		URLPatterns: []pipeline.URLPattern{
			{Name: "short-video", Regex: regexp.MustCompile(`short-video/([^?]+)`), Template: shortVideoPage},
			{Name: "photo", Regex: regexp.MustCompile(`photo/([^?]+)`), Template: shortVideoPage},
			{Name: "f-format", Regex: regexp.MustCompile(`/f/([^?]+)`), Template: pipeline.Redirected},
			{Name: "profile", Regex: regexp.MustCompile(`profile/([^?]+)`), Template: pipeline.Redirected},
			{Name: "video", Regex: regexp.MustCompile(`video/([^?]+)`), Template: pipeline.Redirected},
		},
		Rules: extract.Rules{
			Fields:       extract.DefaultFields(),
			CoverDomains: []string{"kwimgs.com", "kwaicdn.com", "kuaishou.com"},
			CDNKeywords:  []string{"kuaishou", "kwai", "ks"},
		},
	}
}

// Parser resolves Kuaishou share links through the extraction pipeline
type Parser struct {
	pipeline *pipeline.Pipeline
}

// NewParser creates a Kuaishou parser
func NewParser(cfg models.ExtractorConfig, opts ...pipeline.Option) *Parser {
	return &Parser{pipeline: pipeline.New(NewProfile(cfg.UserAgent), cfg, opts...)}
}

// Platform returns the platform name
func (p *Parser) Platform() models.Platform {
	return models.PlatformKuaishou
}

// Codes returns the reply table
func (p *Parser) Codes() *models.CodeBook {
	return Codes
}

// Parse returns the extracted media record for a share link
func (p *Parser) Parse(ctx context.Context, rawURL string) (interface{}, error) {
	media, err := p.pipeline.Run(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return media, nil
}

// SetLogger sets the logger for the parser
func (p *Parser) SetLogger(logger zerolog.Logger) {
	p.pipeline.SetLogger(logger)
}
