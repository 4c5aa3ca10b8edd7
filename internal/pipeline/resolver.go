package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"video-parser/internal/utils"
	"video-parser/pkg/models"
)

// Resolver follows share-link redirects and derives the request URL
type Resolver struct {
	client   *utils.HTTPClient
	profile  *Profile
	timeout  time.Duration
	observer models.Observer
	logger   zerolog.Logger
}

// NewResolver creates a resolver for profile
func NewResolver(client *utils.HTTPClient, profile *Profile, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{
		client:   client,
		profile:  profile,
		timeout:  timeout,
		observer: models.NopObserver{},
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "resolver").Logger(),
	}
}

// Resolve never fails: a redirect that cannot be followed leaves the link as is
func (r *Resolver) Resolve(ctx context.Context, rawURL string) models.ResolvedRequest {
	redirected := r.follow(ctx, rawURL)
	return models.ResolvedRequest{
		RequestURL:  r.profile.RequestURL(rawURL, redirected),
		FallbackURL: rawURL,
	}
}

// follow returns the URL at the end of the redirect chain, or rawURL on failure
func (r *Resolver) follow(ctx context.Context, rawURL string) string {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	final, err := r.client.FinalURL(ctx, rawURL, map[string]string{"User-Agent": r.profile.UserAgent()})
	r.observer.ObserveFetch(r.profile.Platform, "resolve", err == nil, time.Since(start))
	if err != nil {
		r.logger.Warn().Err(err).Str("url", rawURL).Msg("Redirect not followed, using original url")
		return rawURL
	}
	if final != rawURL {
		r.logger.Debug().Str("url", rawURL).Str("redirected", final).Msg("Share link redirected")
	}
	return final
}

// SetLogger sets the logger for the resolver
func (r *Resolver) SetLogger(logger zerolog.Logger) {
	r.logger = logger
}
