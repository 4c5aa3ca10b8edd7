package models

import "strconv"

// Platform represents the supported platforms
type Platform string

const (
	PlatformDouyin   Platform = "douyin"
	PlatformBilibili Platform = "bilibili"
	PlatformKuaishou Platform = "kuaishou"
	PlatformWeibo    Platform = "weibo"
	PlatformXHS      Platform = "xhs"
	PlatformPipigx   Platform = "pipigx"
	PlatformPpxia    Platform = "ppxia"
	PlatformQsMusic  Platform = "qsmusic"
)

// AllPlatforms lists every platform in routing order
var AllPlatforms = []Platform{
	PlatformDouyin,
	PlatformBilibili,
	PlatformKuaishou,
	PlatformWeibo,
	PlatformXHS,
	PlatformPipigx,
	PlatformPpxia,
	PlatformQsMusic,
}

// MediaType represents the type of media content
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeImage MediaType = "image"
)

// Engagement holds optional counters scraped from a page
type Engagement struct {
	LikeCount    *int64 `json:"likeCount,omitempty"`
	CommentCount *int64 `json:"commentCount,omitempty"`
	ShareCount   *int64 `json:"shareCount,omitempty"`
	PlayCount    *int64 `json:"playCount,omitempty"`
}

// ExtractedMedia is the canonical record produced by the extraction cascade.
// MediaURL keeps the photoUrl wire key the web client reads.
type ExtractedMedia struct {
	MediaURL     string `json:"photoUrl"`
	CoverURL     string `json:"coverUrl,omitempty"`
	Caption      string `json:"caption,omitempty"`
	Title        string `json:"title,omitempty"`
	AuthorName   string `json:"authorName,omitempty"`
	AuthorAvatar string `json:"authorAvatar,omitempty"`
	Engagement
	Duration   *int64 `json:"duration,omitempty"`
	CreateTime *int64 `json:"createTime,omitempty"`
	Source     string `json:"source"`
}

// ResolvedRequest is the primary URL to fetch and the URL to retry with
type ResolvedRequest struct {
	RequestURL  string
	FallbackURL string
}

// User is the uploader block bilibili lifts onto the envelope
type User struct {
	Name    string `json:"name"`
	UserImg string `json:"user_img"`
}

// APIResponse is the envelope written for every parse request
type APIResponse struct {
	Code     int         `json:"code"`
	Msg      string      `json:"msg"`
	Title    string      `json:"title,omitempty"`
	ImgURL   string      `json:"imgurl,omitempty"`
	Desc     string      `json:"desc,omitempty"`
	Data     interface{} `json:"data"`
	User     *User       `json:"user,omitempty"`
	Platform Platform    `json:"platform,omitempty"`
}

// Decorator lets a payload lift fields onto the envelope
type Decorator interface {
	Decorate(resp *APIResponse)
}

// Formatter builds envelopes stamped with a fixed platform tag
type Formatter struct {
	Platform Platform
}

// Format wraps data into an envelope
func (f Formatter) Format(code int, msg string, data interface{}) *APIResponse {
	resp := &APIResponse{
		Code:     code,
		Msg:      msg,
		Data:     data,
		Platform: f.Platform,
	}
	if d, ok := data.(Decorator); ok && data != nil {
		d.Decorate(resp)
	}
	return resp
}

// Config represents the application configuration
type Config struct {
	Server struct {
		Host         string `mapstructure:"host" yaml:"host"`
		Port         int    `mapstructure:"port" yaml:"port"`
		ReadTimeout  int    `mapstructure:"read_timeout" yaml:"read_timeout"`
		WriteTimeout int    `mapstructure:"write_timeout" yaml:"write_timeout"`
	} `mapstructure:"server" yaml:"server"`

	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
		Output string `mapstructure:"output" yaml:"output"`
	} `mapstructure:"log" yaml:"log"`

	Proxy struct {
		Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
		Type     string `mapstructure:"type" yaml:"type"`
		Host     string `mapstructure:"host" yaml:"host"`
		Port     int    `mapstructure:"port" yaml:"port"`
		Username string `mapstructure:"username" yaml:"username"`
		Password string `mapstructure:"password" yaml:"password"`
	} `mapstructure:"proxy" yaml:"proxy"`

	HTTP struct {
		ResolveTimeout int   `mapstructure:"resolve_timeout" yaml:"resolve_timeout"`
		FetchTimeout   int   `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
		APITimeout     int   `mapstructure:"api_timeout" yaml:"api_timeout"`
		MaxBodyBytes   int64 `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
		BrowserTLS     bool  `mapstructure:"browser_tls" yaml:"browser_tls"`
		TLSInsecure    bool  `mapstructure:"tls_insecure" yaml:"tls_insecure"`
	} `mapstructure:"http" yaml:"http"`

	Extract struct {
		JSFallback bool `mapstructure:"js_fallback" yaml:"js_fallback"`
		JSTimeout  int  `mapstructure:"js_timeout_ms" yaml:"js_timeout_ms"`
	} `mapstructure:"extract" yaml:"extract"`

	Platforms map[string]PlatformConfig `mapstructure:"platforms" yaml:"platforms"`

	RateLimit struct {
		Enabled           bool     `mapstructure:"enabled" yaml:"enabled"`
		RequestsPerSecond int      `mapstructure:"requests_per_second" yaml:"requests_per_second"`
		Burst             int      `mapstructure:"burst" yaml:"burst"`
		MaxConcurrent     int      `mapstructure:"max_concurrent" yaml:"max_concurrent"`
		WhitelistedIPs    []string `mapstructure:"whitelisted_ips" yaml:"whitelisted_ips"`
	} `mapstructure:"rate_limit" yaml:"rate_limit"`

	Batch struct {
		MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"`
	} `mapstructure:"batch" yaml:"batch"`

	Export struct {
		Format string `mapstructure:"format" yaml:"format"`
		Path   string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"export" yaml:"export"`
}

// PlatformConfig holds per-platform switches and credentials
type PlatformConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Cookie    string `mapstructure:"cookie" yaml:"cookie"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// Platform returns the settings for p, enabled by default when absent
func (c *Config) Platform(p Platform) PlatformConfig {
	if c == nil || c.Platforms == nil {
		return PlatformConfig{Enabled: true}
	}
	pc, ok := c.Platforms[string(p)]
	if !ok {
		return PlatformConfig{Enabled: true}
	}
	return pc
}

// ProxyURL renders the configured egress proxy, empty when disabled
func (c *Config) ProxyURL() string {
	if c == nil || !c.Proxy.Enabled || c.Proxy.Host == "" {
		return ""
	}
	scheme := c.Proxy.Type
	if scheme == "" {
		scheme = "http"
	}
	auth := ""
	if c.Proxy.Username != "" {
		auth = c.Proxy.Username
		if c.Proxy.Password != "" {
			auth += ":" + c.Proxy.Password
		}
		auth += "@"
	}
	return scheme + "://" + auth + c.Proxy.Host + ":" + strconv.Itoa(c.Proxy.Port)
}
