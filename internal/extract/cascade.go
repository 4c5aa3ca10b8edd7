package extract

import (
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"video-parser/pkg/models"
)

// Source tags written into ExtractedMedia.Source
const (
	SourceApolloState   = "apollo-state-object"
	SourceInlinePrefix  = "inline-json-"
	SourceRegexFallback = "regex-fallback"
	SourceBroadSearch   = "broad-search"
	SourceJSONFragment  = "json-fragment"
	SourceMetaTags      = "meta-tags"
)

// Rules is the per-platform input of the cascade. It is read, never written.
type Rules struct {
	// Fields is the source-key dictionary used by the normalizer
	Fields []FieldMapping
	// CoverDomains are the image CDN hosts preferred by the cover classifier
	CoverDomains []string
	// CDNKeywords are video CDN host fragments used by the broad search
	CDNKeywords []string
}

// Strategy is one extraction attempt; Run returns nil on a miss
type Strategy struct {
	Name string
	Run  func(payload string) *models.ExtractedMedia
}

// Cascade runs strategies in priority order until one yields a record
type Cascade struct {
	rules      Rules
	decoder    NearJSON
	broad      []*regexp.Regexp
	strategies []Strategy
	logger     zerolog.Logger
}

// NewCascade creates a cascade for rules. A nil evaluator disables the
// script fallback of the state-object decoder.
func NewCascade(rules Rules, eval *Evaluator) *Cascade {
	if rules.Fields == nil {
		rules.Fields = DefaultFields()
	}

	c := &Cascade{
		rules:   rules,
		decoder: NearJSON{Eval: eval},
		broad:   broadPatterns(rules.CDNKeywords),
		logger:  zerolog.New(os.Stdout).With().Timestamp().Str("component", "cascade").Logger(),
	}

	c.strategies = []Strategy{
		{Name: "apollo-state", Run: c.apolloState},
		{Name: "inline-json", Run: c.inlineJSON},
		{Name: "regex-fallback", Run: c.regexFallback},
		{Name: "broad-search", Run: c.broadSearch},
		{Name: "json-fragment", Run: c.jsonFragment},
		{Name: "meta-tags", Run: c.metaTags},
	}
	return c
}

// SetLogger sets the logger for the cascade
func (c *Cascade) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// StrategyNames returns the strategy names in priority order
func (c *Cascade) StrategyNames() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name
	}
	return names
}

// Extract returns the record of the first strategy that matches, or nil
func (c *Cascade) Extract(payload string) *models.ExtractedMedia {
	if payload == "" {
		return nil
	}
	for _, s := range c.strategies {
		if media := s.Run(payload); media != nil {
			c.logger.Debug().Str("strategy", s.Name).Str("source", media.Source).Msg("Strategy matched")
			return media
		}
		c.logger.Debug().Str("strategy", s.Name).Msg("Strategy missed")
	}
	return nil
}

// enrich runs the normalizer over src and then the cover classifier
func (c *Cascade) enrich(payload string, media *models.ExtractedMedia, src *Object) *models.ExtractedMedia {
	MapFields(src, media, c.rules.Fields)
	ClassifyCover(payload, media, c.rules.CoverDomains)
	return media
}

// broadPatterns builds the broad-search patterns, the CDN one only when keywords are known
func broadPatterns(cdnKeywords []string) []*regexp.Regexp {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://[^"'\s]+\.(?:mp4|m3u8|flv|avi|mov|wmv|mkv)(?:[^"'\s]*)?`),
		regexp.MustCompile(`(?i)https?://[^"'\s]*(?:video|media|stream|play|cdn)[^"'\s]*\.(?:mp4|m3u8|flv)`),
	}
	if len(cdnKeywords) > 0 {
		quoted := make([]string, len(cdnKeywords))
		for i, k := range cdnKeywords {
			quoted[i] = regexp.QuoteMeta(k)
		}
		patterns = append(patterns, regexp.MustCompile(
			`(?i)https?://[^"'\s]*(?:`+strings.Join(quoted, "|")+`)[^"'\s]*\.(?:mp4|m3u8|flv)`))
	}
	return append(patterns, regexp.MustCompile(`(?i)https?://[^"'\s]+(?:play|stream|video)[^"'\s]*`))
}
