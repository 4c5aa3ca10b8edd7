package registry

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"video-parser/internal/platform"
	"video-parser/internal/share"
	"video-parser/pkg/models"
)

type pattern struct {
	source   string
	re       *regexp.Regexp
	platform models.Platform
}

// Registry manages platform parsers and picks one for a link
type Registry struct {
	mu       sync.RWMutex
	parsers  map[models.Platform]models.Parser
	patterns []pattern
	logger   zerolog.Logger
}

// NewRegistry creates a new platform registry
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[models.Platform]models.Parser),
		logger:  zerolog.New(os.Stdout).With().Timestamp().Str("component", "registry").Logger(),
	}
}

// Register adds a parser and the link patterns it accepts. Patterns are
// matched in registration order.
func (r *Registry) Register(parser models.Parser, patterns []string) error {
	if parser == nil {
		return fmt.Errorf("parser cannot be nil")
	}

	compiled := make([]pattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		compiled = append(compiled, pattern{source: p, re: re, platform: parser.Platform()})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[parser.Platform()] = parser
	r.patterns = append(r.patterns, compiled...)
	return nil
}

// RegisterDefaultPlatforms registers every platform enabled in config.
// obs may be nil.
func (r *Registry) RegisterDefaultPlatforms(config *models.Config, obs models.Observer) error {
	for _, p := range models.AllPlatforms {
		if !config.Platform(p).Enabled {
			r.logger.Info().Str("platform", string(p)).Msg("Platform disabled")
			continue
		}

		parser, err := platform.New(p, config.ExtractorConfig(p), obs)
		if err != nil {
			return fmt.Errorf("error creating %s parser: %w", p, err)
		}
		desc, _ := platform.Describe(p)
		if err := r.Register(parser, desc.Patterns); err != nil {
			return fmt.Errorf("error registering %s parser: %w", p, err)
		}
	}
	return nil
}

// GetParser returns the parser for the given platform
func (r *Registry) GetParser(p models.Platform) (models.Parser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, exists := r.parsers[p]
	if !exists {
		return nil, fmt.Errorf("no parser registered for platform: %s", p)
	}
	return parser, nil
}

// GetParserForText returns the parser for the first link in text, which may
// be a bare URL or a whole share message
func (r *Registry) GetParserForText(text string) (models.Parser, models.Platform, error) {
	p, err := r.DetectPlatform(text)
	if err != nil {
		return nil, "", err
	}

	parser, err := r.GetParser(p)
	if err != nil {
		return nil, "", err
	}
	return parser, p, nil
}

// DetectPlatform finds the platform of the first link in text by the
// registered patterns, then by domain
func (r *Registry) DetectPlatform(text string) (models.Platform, error) {
	link := share.ExtractURL(text)
	if link == "" {
		return "", fmt.Errorf("no link found in: %s", text)
	}

	r.mu.RLock()
	for _, p := range r.patterns {
		if p.re.MatchString(link) {
			r.mu.RUnlock()
			return p.platform, nil
		}
	}
	r.mu.RUnlock()

	if p, ok := share.PlatformOf(link); ok {
		return p, nil
	}
	return "", fmt.Errorf("unsupported platform for URL: %s", link)
}

// ListPlatforms returns the registered platforms in routing order
func (r *Registry) ListPlatforms() []models.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order := make(map[models.Platform]int, len(models.AllPlatforms))
	for i, p := range models.AllPlatforms {
		order[p] = i
	}

	platforms := make([]models.Platform, 0, len(r.parsers))
	for p := range r.parsers {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool {
		oi, iok := order[platforms[i]]
		oj, jok := order[platforms[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return platforms[i] < platforms[j]
	})
	return platforms
}

// IsPlatformSupported checks if a platform is registered
func (r *Registry) IsPlatformSupported(p models.Platform) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.parsers[p]
	return exists
}

// GetPlatformPatterns returns the URL patterns for a platform
func (r *Registry) GetPlatformPatterns(p models.Platform) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var patterns []string
	for _, pt := range r.patterns {
		if pt.platform == p {
			patterns = append(patterns, pt.source)
		}
	}
	return patterns
}

// ValidateURL reports whether text holds a link some registered parser accepts
func (r *Registry) ValidateURL(text string) bool {
	_, _, err := r.GetParserForText(text)
	return err == nil
}

// Count returns the number of registered parsers
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parsers)
}

// Clear removes all parsers and patterns
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers = make(map[models.Platform]models.Parser)
	r.patterns = nil
}

// SetLogger sets the logger for the registry and every parser that accepts one
func (r *Registry) SetLogger(logger zerolog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
	for p, parser := range r.parsers {
		if l, ok := parser.(interface{ SetLogger(zerolog.Logger) }); ok {
			l.SetLogger(logger.With().Str("platform", string(p)).Logger())
		}
	}
}

// PlatformInfo contains information about a registered platform
type PlatformInfo struct {
	Name        models.Platform `json:"name"`
	Enabled     bool            `json:"enabled"`
	Patterns    []string        `json:"patterns"`
	Description string          `json:"description"`
}

// GetPlatformInfo returns information about all registered platforms
func (r *Registry) GetPlatformInfo() []PlatformInfo {
	var info []PlatformInfo
	for _, p := range r.ListPlatforms() {
		desc, ok := platform.Describe(p)
		description := desc.Description
		if !ok {
			description = "Unknown platform"
		}
		info = append(info, PlatformInfo{
			Name:        p,
			Enabled:     true,
			Patterns:    r.GetPlatformPatterns(p),
			Description: description,
		})
	}
	return info
}
