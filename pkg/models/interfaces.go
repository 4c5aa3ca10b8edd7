package models

import (
	"context"
	"time"
)

// Parser defines the interface for platform-specific share-link parsers
type Parser interface {
	// Platform returns the platform name
	Platform() Platform

	// Parse turns a share link into the platform's response payload
	Parse(ctx context.Context, rawURL string) (interface{}, error)

	// Codes returns the platform's reply codes
	Codes() *CodeBook
}

// Observer receives pipeline events for metrics
type Observer interface {
	// ObserveFetch records an upstream call outcome
	ObserveFetch(platform Platform, stage string, ok bool, elapsed time.Duration)

	// ObserveStrategy records which extraction strategy produced a record,
	// source is empty when every strategy missed
	ObserveStrategy(platform Platform, source string)
}

// NopObserver discards all events
type NopObserver struct{}

func (NopObserver) ObserveFetch(Platform, string, bool, time.Duration) {}
func (NopObserver) ObserveStrategy(Platform, string)                    {}

// ExtractorConfig defines configuration for parsers
type ExtractorConfig struct {
	ResolveTimeout time.Duration
	FetchTimeout   time.Duration
	APITimeout     time.Duration
	Proxy          string
	UserAgent      string
	Cookie         string
	BrowserTLS     bool
	TLSInsecure    bool
	MaxBodyBytes   int64
	JSFallback     bool
	JSTimeout      time.Duration
}

// DefaultExtractorConfig returns the stock timeouts
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		ResolveTimeout: 10 * time.Second,
		FetchTimeout:   15 * time.Second,
		APITimeout:     5 * time.Second,
		MaxBodyBytes:   16 << 20,
		JSFallback:     true,
		JSTimeout:      200 * time.Millisecond,
	}
}

// ExtractorConfig builds parser settings for p from the application config
func (c *Config) ExtractorConfig(p Platform) ExtractorConfig {
	ec := DefaultExtractorConfig()
	if c == nil {
		return ec
	}
	if c.HTTP.ResolveTimeout > 0 {
		ec.ResolveTimeout = time.Duration(c.HTTP.ResolveTimeout) * time.Second
	}
	if c.HTTP.FetchTimeout > 0 {
		ec.FetchTimeout = time.Duration(c.HTTP.FetchTimeout) * time.Second
	}
	if c.HTTP.APITimeout > 0 {
		ec.APITimeout = time.Duration(c.HTTP.APITimeout) * time.Second
	}
	if c.HTTP.MaxBodyBytes > 0 {
		ec.MaxBodyBytes = c.HTTP.MaxBodyBytes
	}
	ec.BrowserTLS = c.HTTP.BrowserTLS
	ec.TLSInsecure = c.HTTP.TLSInsecure
	ec.Proxy = c.ProxyURL()
	ec.JSFallback = c.Extract.JSFallback
	if c.Extract.JSTimeout > 0 {
		ec.JSTimeout = time.Duration(c.Extract.JSTimeout) * time.Millisecond
	}

	pc := c.Platform(p)
	ec.Cookie = pc.Cookie
	ec.UserAgent = pc.UserAgent
	return ec
}
