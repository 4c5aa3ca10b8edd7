package pipeline

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"video-parser/internal/extract"
	"video-parser/internal/utils"
	"video-parser/pkg/models"
)

// Pipeline runs resolve, fetch and extract for one platform profile
type Pipeline struct {
	profile  Profile
	client   *utils.HTTPClient
	resolver *Resolver
	fetcher  *Fetcher
	cascade  *extract.Cascade
	observer models.Observer
	logger   zerolog.Logger
}

// Option configures a pipeline
type Option func(*Pipeline)

// WithObserver reports upstream calls and strategy hits to o
func WithObserver(o models.Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithClient replaces the HTTP client built from the extractor config
func WithClient(c *utils.HTTPClient) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.client = c
		}
	}
}

// New creates a pipeline for profile
func New(profile Profile, cfg models.ExtractorConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		profile:  profile,
		observer: models.NopObserver{},
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("platform", string(profile.Platform)).Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		p.client = utils.NewHTTPClient(utils.ClientConfig{
			ProxyURL:     cfg.Proxy,
			UserAgent:    profile.UserAgent(),
			Cookie:       cfg.Cookie,
			TLSInsecure:  cfg.TLSInsecure,
			BrowserTLS:   cfg.BrowserTLS,
			MaxBodyBytes: cfg.MaxBodyBytes,
		})
	}

	var eval *extract.Evaluator
	if cfg.JSFallback {
		eval = extract.NewEvaluator(cfg.JSTimeout)
	}

	p.resolver = NewResolver(p.client, &p.profile, cfg.ResolveTimeout)
	p.resolver.observer = p.observer
	p.fetcher = NewFetcher(p.client, &p.profile, cfg.FetchTimeout)
	p.fetcher.observer = p.observer
	p.cascade = extract.NewCascade(profile.Rules, eval)
	return p
}

// Profile returns the pipeline's platform profile
func (p *Pipeline) Profile() Profile {
	return p.profile
}

// Run turns a share link into a media record
func (p *Pipeline) Run(ctx context.Context, rawURL string) (*models.ExtractedMedia, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, models.NewParseError(models.KindInput, p.profile.Platform, "", "").Wrap(models.ErrMissingURL)
	}

	req := p.resolver.Resolve(ctx, rawURL)
	p.logger.Debug().Str("url", rawURL).Str("request_url", req.RequestURL).Msg("Resolved share link")

	content, ok := p.fetcher.FetchContent(ctx, req.RequestURL, req.FallbackURL)
	if !ok {
		err := models.NewParseError(models.KindFetch, p.profile.Platform, rawURL, "")
		if ctx.Err() != nil {
			err.Wrap(ctx.Err())
		}
		return nil, err
	}

	media := p.cascade.Extract(content)
	if media == nil {
		p.observer.ObserveStrategy(p.profile.Platform, "")
		p.logger.Info().Str("url", rawURL).Int("bytes", len(content)).Msg("No strategy matched")
		return nil, models.NewParseError(models.KindExtractionMiss, p.profile.Platform, rawURL, "")
	}

	p.observer.ObserveStrategy(p.profile.Platform, media.Source)
	p.logger.Info().Str("url", rawURL).Str("source", media.Source).Msg("Media extracted")
	return media, nil
}

// SetLogger sets the logger for the pipeline and its stages
func (p *Pipeline) SetLogger(logger zerolog.Logger) {
	p.logger = logger
	p.resolver.SetLogger(logger)
	p.fetcher.SetLogger(logger)
	p.cascade.SetLogger(logger)
	p.client.SetLogger(logger)
}

// Close releases idle upstream connections
func (p *Pipeline) Close() error {
	return p.client.Close()
}
