package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"video-parser/pkg/models"
)

// EnvPrefix is prepended to every environment override, e.g. VP_SERVER_PORT
const EnvPrefix = "VP"

// cookieEnv binds the unprefixed cookie variables the deployment docs use
var cookieEnv = map[string]string{
	"platforms.bilibili.cookie": "BILIBILI_COOKIE",
	"platforms.weibo.cookie":    "WEIBO_COOKIE",
}

// Manager manages application configuration
type Manager struct {
	config *models.Config
	viper  *viper.Viper
	logger zerolog.Logger
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: &models.Config{},
		viper:  viper.New(),
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Load loads configuration from file and environment. When no file is found
// a default one is written to configPath, or ./config when configPath is empty.
func (m *Manager) Load(configPath string) (*models.Config, error) {
	// Set default values
	m.setDefaults()

	// Configure viper
	m.viper.SetConfigName("config")
	m.viper.SetConfigType("yaml")

	if configPath != "" {
		m.viper.AddConfigPath(configPath)
	} else {
		// Default config paths
		m.viper.AddConfigPath(".")
		m.viper.AddConfigPath("./config")
		m.viper.AddConfigPath("$HOME/.video-parser")
		m.viper.AddConfigPath("/etc/video-parser")
	}

	// Enable environment variable support
	m.viper.SetEnvPrefix(EnvPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()
	for key, env := range cookieEnv {
		if err := m.viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	// Read configuration
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		dir := configPath
		if dir == "" {
			dir = "./config"
		}
		if err := m.createDefaultConfig(dir); err != nil {
			m.logger.Warn().Msgf("Failed to create default config: %v", err)
		}
	}

	// Unmarshal configuration
	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Ensure directories exist
	if err := m.ensureDirectories(); err != nil {
		return nil, fmt.Errorf("error ensuring directories: %w", err)
	}

	// Configure logger
	m.configureLogger()

	return m.config, nil
}

// Save saves configuration to file
func (m *Manager) Save(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")
	if err := m.viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	return nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *models.Config {
	return m.config
}

// UpdateConfig updates specific configuration values
func (m *Manager) UpdateConfig(updates map[string]interface{}) error {
	for key, value := range updates {
		m.viper.Set(key, value)
	}

	return m.viper.Unmarshal(m.config)
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	m.viper.SetDefault("server.host", "0.0.0.0")
	m.viper.SetDefault("server.port", 8080)
	m.viper.SetDefault("server.read_timeout", 30)
	m.viper.SetDefault("server.write_timeout", 0)

	// Log defaults
	m.viper.SetDefault("log.level", "info")
	m.viper.SetDefault("log.format", "json")
	m.viper.SetDefault("log.output", "stdout")

	// Proxy defaults
	m.viper.SetDefault("proxy.enabled", false)
	m.viper.SetDefault("proxy.type", "http")
	m.viper.SetDefault("proxy.host", "")
	m.viper.SetDefault("proxy.port", 0)
	m.viper.SetDefault("proxy.username", "")
	m.viper.SetDefault("proxy.password", "")

	// Upstream HTTP defaults
	m.viper.SetDefault("http.resolve_timeout", 10)
	m.viper.SetDefault("http.fetch_timeout", 15)
	m.viper.SetDefault("http.api_timeout", 5)
	m.viper.SetDefault("http.max_body_bytes", 16<<20)
	m.viper.SetDefault("http.browser_tls", false)
	m.viper.SetDefault("http.tls_insecure", false)

	// Extraction defaults
	m.viper.SetDefault("extract.js_fallback", true)
	m.viper.SetDefault("extract.js_timeout_ms", 200)

	// Platform defaults
	for _, p := range models.AllPlatforms {
		m.viper.SetDefault("platforms."+string(p)+".enabled", true)
		m.viper.SetDefault("platforms."+string(p)+".cookie", "")
		m.viper.SetDefault("platforms."+string(p)+".user_agent", "")
	}

	// Rate limit defaults
	m.viper.SetDefault("rate_limit.enabled", true)
	m.viper.SetDefault("rate_limit.requests_per_second", 10)
	m.viper.SetDefault("rate_limit.burst", 30)
	m.viper.SetDefault("rate_limit.max_concurrent", 100)
	m.viper.SetDefault("rate_limit.whitelisted_ips", []string{"127.0.0.1", "::1"})

	// Batch and export defaults
	m.viper.SetDefault("batch.max_workers", 4)
	m.viper.SetDefault("export.format", "json")
	m.viper.SetDefault("export.path", "")
}

// createDefaultConfig writes a commented default configuration file into dir
func (m *Manager) createDefaultConfig(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	configFile := filepath.Join(dir, "config.yaml")

	// Create default config content
	defaultConfig := `# Video Parser Configuration

server:
  host: 0.0.0.0
  port: 8080
  read_timeout: 30
  write_timeout: 0   # 0 keeps long media proxy streams open

log:
  level: info
  format: json
  output: stdout

proxy:
  enabled: false
  type: http   # http, https, socks5
  host: ""
  port: 0
  username: ""
  password: ""

http:
  resolve_timeout: 10
  fetch_timeout: 15
  api_timeout: 5
  max_body_bytes: 16777216
  browser_tls: false
  tls_insecure: false

extract:
  js_fallback: true
  js_timeout_ms: 200

platforms:
  douyin:
    enabled: true
  bilibili:
    enabled: true
    cookie: ""   # or BILIBILI_COOKIE
  kuaishou:
    enabled: true
  weibo:
    enabled: true
    cookie: ""   # or WEIBO_COOKIE
  xhs:
    enabled: true
  pipigx:
    enabled: true
  ppxia:
    enabled: true
  qsmusic:
    enabled: true

rate_limit:
  enabled: true
  requests_per_second: 10
  burst: 30
  max_concurrent: 100
  whitelisted_ips:
    - "127.0.0.1"
    - "::1"

batch:
  max_workers: 4

export:
  format: json   # json, csv, xlsx, txt
  path: ""
`

	if err := os.WriteFile(configFile, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("error writing default config: %w", err)
	}

	m.logger.Info().Msgf("Created default config file at: %s", configFile)
	return nil
}

// ensureDirectories ensures the export directory exists
func (m *Manager) ensureDirectories() error {
	if m.config.Export.Path == "" {
		return nil
	}
	dir := filepath.Dir(m.config.Export.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dir, err)
	}
	return nil
}

// configureLogger configures the logger based on settings
func (m *Manager) configureLogger() {
	// Set log level
	level, err := zerolog.ParseLevel(m.config.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log output
	var out io.Writer = os.Stdout
	if m.config.Log.Output != "" && m.config.Log.Output != "stdout" {
		file, err := os.OpenFile(m.config.Log.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			out = file
		} else {
			m.logger.Warn().Err(err).Msg("Falling back to stdout for logs")
		}
	}

	// Set log format
	if m.config.Log.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out}
	}

	m.logger = zerolog.New(out).With().Timestamp().Logger()
}

// GetLogger returns the logger instance
func (m *Manager) GetLogger() zerolog.Logger {
	return m.logger
}
