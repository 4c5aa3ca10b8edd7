package qsmusic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
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
	CodeSuccess  = 200
	CodeFailure  = 404
	CodeInternal = 500
)

const (
	// DefaultTrackBase is the share page host
	DefaultTrackBase = "https://music.douyin.com"

	trackPath    = "/qishui/share/track"
	shortHost    = "qishui.douyin.com"
	routerMarker = "_ROUTER_DATA"

	coreName  = "抖音汽水音乐解析"
	copyright = "接口编写:JH-Ahua 接口编写:JH-Ahua 2025-4-20"
)

// Codes is the Qishui music reply table. Parse failures are reported with HTTP 200.
var Codes = &models.CodeBook{
	Platform:   models.PlatformQsMusic,
	Success:    models.Reply{Status: http.StatusOK, Code: CodeSuccess, Msg: "解析成功"},
	MissingURL: models.Reply{Status: http.StatusBadRequest, Code: CodeFailure, Msg: "请补全参数"},
	Failure:    models.Reply{Status: http.StatusOK, Code: CodeFailure, Msg: "解析失败"},
	Internal:   models.Reply{Status: http.StatusInternalServerError, Code: CodeInternal, Msg: "服务器错误"},
}

var trackIDPattern = regexp.MustCompile(`track_id=(\d+)`)

// Track is the Qishui music response payload
type Track struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Cover     string `json:"cover"`
	Lyrics    string `json:"lyrics"`
	Core      string `json:"core"`
	Copyright string `json:"copyright"`
}

type ldJSON struct {
	Title  string   `json:"title"`
	Images []string `json:"images"`
}

// Parser reads tracks from Qishui share pages
type Parser struct {
	client    *utils.HTTPClient
	config    models.ExtractorConfig
	decoder   extract.NearJSON
	trackBase string
	observer  models.Observer
	logger    zerolog.Logger
}

// Option configures a Parser
type Option func(*Parser)

// WithTrackBase replaces the share page host
func WithTrackBase(base string) Option {
	return func(p *Parser) {
		p.trackBase = strings.TrimSuffix(base, "/")
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

// NewParser creates a Qishui music parser
func NewParser(cfg models.ExtractorConfig, opts ...Option) *Parser {
	p := &Parser{
		client: utils.NewHTTPClient(utils.ClientConfig{
			ProxyURL:     cfg.Proxy,
			UserAgent:    cfg.UserAgent,
			TLSInsecure:  cfg.TLSInsecure,
			BrowserTLS:   cfg.BrowserTLS,
			MaxBodyBytes: cfg.MaxBodyBytes,
		}),
		config:    cfg,
		trackBase: DefaultTrackBase,
		observer:  models.NopObserver{},
		logger:    zerolog.New(os.Stdout).With().Timestamp().Str("platform", "qsmusic").Logger(),
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
	return models.PlatformQsMusic
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

// Parse returns the title, cover, audio URL and LRC lyrics of a shared track
func (p *Parser) Parse(ctx context.Context, rawURL string) (interface{}, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, models.ErrMissingURL
	}

	id, err := p.trackID(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	body, err := p.get(ctx, "fetch", p.config.FetchTimeout, p.trackBase+trackPath+"?track_id="+id)
	if err != nil {
		return nil, models.NewParseError(models.KindFetch, models.PlatformQsMusic, rawURL, "").Wrap(err)
	}

	track, err := p.parsePage(body)
	if err != nil {
		return nil, models.NewParseError(models.KindUpstreamShape, models.PlatformQsMusic, rawURL, "").Wrap(err)
	}

	p.logger.Info().Str("track_id", id).Msg("Qishui track parsed")
	return track, nil
}

// trackID reads track_id from the link, following qishui.douyin.com short links first
func (p *Parser) trackID(ctx context.Context, rawURL string) (string, error) {
	target := rawURL
	if strings.Contains(rawURL, shortHost) {
		final, err := p.follow(ctx, rawURL)
		if err != nil {
			return "", models.NewParseError(models.KindFetch, models.PlatformQsMusic, rawURL, "").Wrap(err)
		}
		target = final
	}
	m := trackIDPattern.FindStringSubmatch(target)
	if m == nil {
		return "", models.NewParseError(models.KindResolution, models.PlatformQsMusic, rawURL, "")
	}
	return m[1], nil
}

// parsePage reads the ld+json block and the router state of a track page
func (p *Parser) parsePage(body string) (*Track, error) {
	track := &Track{Core: coreName, Copyright: copyright}
	doc := extract.ParseDocument(body)

	if scripts := doc.ScriptsOfType("application/ld+json"); len(scripts) > 0 {
		text, err := url.PathUnescape(strings.TrimSpace(scripts[0]))
		if err != nil {
			return nil, fmt.Errorf("unescape ld+json: %w", err)
		}
		var ld ldJSON
		if err := json.Unmarshal([]byte(text), &ld); err != nil {
			return nil, fmt.Errorf("decode ld+json: %w", err)
		}
		track.Name = ld.Title
		if len(ld.Images) > 0 {
			track.Cover = ld.Images[0]
		}
	}

	for _, s := range doc.Scripts {
		idx := strings.Index(s.Text, routerMarker)
		if idx < 0 {
			continue
		}
		text, ok := extract.BalancedAfter(s.Text, idx+len(routerMarker))
		if !ok {
			continue
		}
		state, err := p.decoder.Decode(text)
		if err != nil {
			return nil, fmt.Errorf("decode router data: %w", err)
		}
		option := extract.LookupObject(state, "loaderData", "track_page", "audioWithLyricsOption")
		track.URL = extract.LookupString(option, "url")
		track.Lyrics = LRC(extract.Lookup(option, "lyrics", "sentences"))
		break
	}

	return track, nil
}

func (p *Parser) follow(ctx context.Context, rawURL string) (string, error) {
	if p.config.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ResolveTimeout)
		defer cancel()
	}

	start := time.Now()
	final, err := p.client.FinalURL(ctx, rawURL, nil)
	p.observer.ObserveFetch(models.PlatformQsMusic, "resolve", err == nil, time.Since(start))
	return final, err
}

func (p *Parser) get(ctx context.Context, stage string, timeout time.Duration, rawURL string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	body, err := p.client.GetText(ctx, rawURL, nil)
	p.observer.ObserveFetch(models.PlatformQsMusic, stage, err == nil, time.Since(start))
	return body, err
}

// LRC renders lyric sentences as [mm:ss.mmm]text lines. Sentences without a
// start, an end or words are skipped.
func LRC(sentences interface{}) string {
	list, _ := sentences.([]interface{})
	lines := make([]string, 0, len(list))
	for _, s := range list {
		start, _ := extract.AsInt64(extract.Lookup(s, "startMs"))
		end, _ := extract.AsInt64(extract.Lookup(s, "endMs"))
		words, _ := extract.Lookup(s, "words").([]interface{})
		if start == 0 || end == 0 || words == nil {
			continue
		}

		var text strings.Builder
		for _, w := range words {
			text.WriteString(extract.LookupString(w, "text"))
		}
		lines = append(lines, fmt.Sprintf("[%02d:%02d.%03d]%s",
			start/60000, start%60000/1000, start%1000, text.String()))
	}
	return strings.Join(lines, "\n")
}
