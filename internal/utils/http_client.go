package utils

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
)

// Common browser user agents
const (
	DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	MobileUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"
)

// HTTPClient represents a configurable HTTP client
type HTTPClient struct {
	client    *http.Client
	transport http.RoundTripper
	userAgent string
	cookie    string
	maxBody   int64
	logger    zerolog.Logger
}

// ClientConfig represents HTTP client configuration
type ClientConfig struct {
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	ProxyURL        string
	UserAgent       string
	Cookie          string
	TLSInsecure     bool
	BrowserTLS      bool
	MaxBodyBytes    int64
	NoRedirect      bool
}

// StatusError reports a non-2xx upstream response
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status=%d url=%s", e.StatusCode, e.URL)
}

// ErrEmptyBody is returned when an upstream answers 2xx with no content
var ErrEmptyBody = errors.New("empty response body")

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config ClientConfig) *HTTPClient {
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 100
	}
	if config.IdleConnTimeout <= 0 {
		config.IdleConnTimeout = 90 * time.Second
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "http").Logger()

	// Create transport
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		IdleConnTimeout:     config.IdleConnTimeout,
		DisableCompression:  true,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 10,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	// Configure proxy if provided
	var dialer proxy.ContextDialer
	if config.ProxyURL != "" {
		proxyURL, err := url.Parse(config.ProxyURL)
		if err != nil {
			logger.Warn().Err(err).Msg("Ignoring invalid proxy url")
		} else {
			switch proxyURL.Scheme {
			case "http", "https":
				transport.Proxy = http.ProxyURL(proxyURL)
			case "socks5", "socks5h":
				d, err := proxy.FromURL(proxyURL, proxy.Direct)
				if err == nil {
					if cd, ok := d.(proxy.ContextDialer); ok {
						dialer = cd
						transport.DialContext = cd.DialContext
					}
				}
			}
		}
	}

	// Configure TLS
	if config.TLSInsecure {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	var rt http.RoundTripper = transport
	if config.BrowserTLS {
		if dialer == nil {
			dialer = &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 60 * time.Second}
		}
		rt = newBrowserRoundTripper(dialer, transport, config.TLSInsecure)
	}

	client := &http.Client{
		Transport: rt,
		Timeout:   config.Timeout,
	}
	if config.NoRedirect {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &HTTPClient{
		client:    client,
		transport: rt,
		userAgent: config.UserAgent,
		cookie:    config.Cookie,
		maxBody:   config.MaxBodyBytes,
		logger:    logger,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	return c.Do(req, headers)
}

// Post performs a POST request
func (c *HTTPClient) Post(ctx context.Context, rawURL, contentType string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.Do(req, headers)
}

// Do performs an HTTP request with custom headers
func (c *HTTPClient) Do(req *http.Request, headers map[string]string) (*http.Response, error) {
	// Set default headers
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	} else {
		req.Header.Set("User-Agent", DesktopUserAgent)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	// Set custom headers
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("Making HTTP request")

	return c.client.Do(req)
}

// GetText performs a GET request and returns the decoded body of a 2xx response
func (c *HTTPClient) GetText(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	resp, err := c.Get(ctx, rawURL, headers)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	body, err := ReadBody(resp, c.maxBody)
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", ErrEmptyBody
	}
	return string(body), nil
}

// Page is a fetched response body with the URL it was served from
type Page struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       string
}

// OK reports whether the page was served with a 2xx status
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// GetPage performs a GET request and returns the decoded body whatever the status
func (c *HTTPClient) GetPage(ctx context.Context, rawURL string, headers map[string]string) (*Page, error) {
	resp, err := c.Get(ctx, rawURL, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := ReadBody(resp, c.maxBody)
	if err != nil {
		return nil, err
	}

	page := &Page{URL: rawURL, StatusCode: resp.StatusCode, Header: resp.Header, Body: string(body)}
	if resp.Request != nil && resp.Request.URL != nil {
		page.URL = resp.Request.URL.String()
	}
	return page, nil
}

// FinalURL follows redirects and returns the URL of the last response
func (c *HTTPClient) FinalURL(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	resp, err := c.Get(ctx, rawURL, headers)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String(), nil
	}
	return rawURL, nil
}

// StdClient returns the underlying http.Client
func (c *HTTPClient) StdClient() *http.Client {
	return c.client
}

// Close closes the HTTP client and cleans up resources
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// SetLogger sets the logger for the HTTP client
func (c *HTTPClient) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// ReadBody reads a response body, decoding gzip, deflate and br content encodings.
// A positive limit caps the number of decoded bytes read.
func ReadBody(resp *http.Response, limit int64) ([]byte, error) {
	reader, err := decodeReader(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		reader = io.LimitReader(reader, limit)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}
	return data, nil
}

// decodeReader wraps r according to the content encoding
func decodeReader(encoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return r, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("error opening gzip body: %w", err)
		}
		return gz, nil
	case "br":
		return brotli.NewReader(r), nil
	case "deflate":
		// deflate is zlib-wrapped in practice, some servers send raw flate
		br := bufio.NewReader(r)
		if header, err := br.Peek(2); err == nil && isZlibHeader(header) {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return nil, fmt.Errorf("error opening deflate body: %w", err)
			}
			return zr, nil
		}
		return flate.NewReader(br), nil
	default:
		return r, nil
	}
}

// isZlibHeader reports whether h starts a zlib stream (RFC 1950)
func isZlibHeader(h []byte) bool {
	return h[0]&0x0f == 8 && (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}

// FormatDuration formats duration to human readable string
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	} else if d < time.Minute {
		return d.Round(time.Second).String()
	} else if d < time.Hour {
		return fmt.Sprintf("%vm %vs", int(d.Minutes()), int(d.Seconds())%60)
	} else {
		return fmt.Sprintf("%vh %vm %vs", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	}
}

// FormatBytes formats bytes to human readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
