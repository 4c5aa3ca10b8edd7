package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"video-parser/internal/utils"
	"video-parser/pkg/models"
)

// Fetcher downloads page content with the profile's browser headers
type Fetcher struct {
	client   *utils.HTTPClient
	profile  *Profile
	timeout  time.Duration
	observer models.Observer
	logger   zerolog.Logger
}

// NewFetcher creates a fetcher for profile
func NewFetcher(client *utils.HTTPClient, profile *Profile, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client:   client,
		profile:  profile,
		timeout:  timeout,
		observer: models.NopObserver{},
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "fetcher").Logger(),
	}
}

// FetchContent tries primary, then fallback once when it differs
func (f *Fetcher) FetchContent(ctx context.Context, primary, fallback string) (string, bool) {
	if content, ok := f.makeRequest(ctx, primary); ok {
		return content, true
	}
	if fallback == "" || fallback == primary {
		return "", false
	}
	f.logger.Debug().Str("url", fallback).Msg("Primary fetch missed, trying fallback")
	return f.makeRequest(ctx, fallback)
}

// makeRequest reports a miss for transport errors, non-2xx answers and empty bodies
func (f *Fetcher) makeRequest(ctx context.Context, rawURL string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	content, err := f.client.GetText(ctx, rawURL, f.profile.Headers)
	f.observer.ObserveFetch(f.profile.Platform, "fetch", err == nil, time.Since(start))
	if err != nil {
		f.logger.Warn().Err(err).Str("url", rawURL).Msg("Page fetch failed")
		return "", false
	}
	return content, true
}

// SetLogger sets the logger for the fetcher
func (f *Fetcher) SetLogger(logger zerolog.Logger) {
	f.logger = logger
}
