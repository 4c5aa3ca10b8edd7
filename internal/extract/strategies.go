package extract

import (
	"regexp"
	"strings"

	"video-parser/pkg/models"
)

const (
	apolloMarker  = "window.__APOLLO_STATE__"
	maxStateDepth = 6

	broadMatchLimit    = 10
	fragmentMatchLimit = 5
)

var apolloStatePattern = regexp.MustCompile(`window\.__APOLLO_STATE__\s*=\s*(\{[\s\S]*?\})(?:\s*;|\s*</script>)`)

// mediaKeys are checked in order; the first truthy value is the candidate
var mediaKeys = []string{"photoUrl", "playUrl", "videoUrl", "mp4Url", "src"}

var inlinePatterns = []struct {
	field string
	re    *regexp.Regexp
}{
	{"photoUrl", regexp.MustCompile(`"photoUrl":\s*"([^"]+)"`)},
	{"playUrl", regexp.MustCompile(`"playUrl":\s*"([^"]+)"`)},
	{"videoUrl", regexp.MustCompile(`"videoUrl":\s*"([^"]+)"`)},
	{"mp4Url", regexp.MustCompile(`"mp4Url":\s*"([^"]+)"`)},
}

var fallbackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"photoUrl":\s*"([^"]+)"`),
	regexp.MustCompile(`"playUrl":\s*"([^"]+)"`),
	regexp.MustCompile(`"videoUrl":\s*"([^"]+)"`),
	regexp.MustCompile(`"mp4Url":\s*"([^"]+)"`),
	regexp.MustCompile(`photoUrl['"]\s*:\s*['"]([^'"]+)['"]`),
	regexp.MustCompile(`playUrl['"]\s*:\s*['"]([^'"]+)['"]`),
}

var fragmentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\{[^{}]*"(?:photoUrl|playUrl|videoUrl|mp4Url)"[^{}]*\}`),
	regexp.MustCompile(`\{[^{}]*"url":\s*"https?://[^"]*\.(?:mp4|m3u8|flv)[^"]*"[^{}]*\}`),
	regexp.MustCompile(`\{[^{}]*"src":\s*"https?://[^"]*\.(?:mp4|m3u8|flv)[^"]*"[^{}]*\}`),
}

var fragmentKeys = []string{"photoUrl", "playUrl", "videoUrl", "mp4Url", "url", "src"}

// apolloState decodes the embedded client state and searches it for a media object
func (c *Cascade) apolloState(payload string) *models.ExtractedMedia {
	state := c.decodeApolloState(payload)
	if state == nil {
		return nil
	}

	var root interface{} = state
	if dc, ok := state.Get("defaultClient"); ok && truthy(dc) {
		root = dc
	}

	media, src := searchState(root)
	if media == nil {
		return nil
	}
	return c.enrich(payload, media, src)
}

// decodeApolloState returns the decoded state object, trying the lazy match
// first and the brace-balanced text after the marker second
func (c *Cascade) decodeApolloState(payload string) *Object {
	idx := strings.Index(payload, apolloMarker)
	if idx < 0 {
		return nil
	}

	var candidates []string
	if m := apolloStatePattern.FindStringSubmatch(payload); m != nil {
		candidates = append(candidates, m[1])
	}
	if balanced, ok := BalancedAfter(payload, idx+len(apolloMarker)); ok {
		if len(candidates) == 0 || candidates[0] != balanced {
			candidates = append(candidates, balanced)
		}
	}

	for _, text := range candidates {
		v, err := c.decoder.Decode(text)
		if err != nil {
			c.logger.Debug().Err(err).Msg("State object did not decode")
			continue
		}
		if obj, ok := v.(*Object); ok {
			return obj
		}
	}
	return nil
}

// searchState looks at Photo/Video/Detail keys first, then walks the whole state.
// state may be any decoded value; only objects get the key pass.
func searchState(state interface{}) (*models.ExtractedMedia, *Object) {
	obj, ok := state.(*Object)
	if !ok {
		return findDeep(state, 0)
	}
	for _, key := range obj.Keys() {
		if !strings.Contains(key, "Photo") && !strings.Contains(key, "Video") && !strings.Contains(key, "Detail") {
			continue
		}
		v, _ := obj.Get(key)
		if entry, ok := v.(*Object); ok {
			if media := mediaFromObject(entry); media != nil {
				return media, entry
			}
		}
	}
	return findDeep(obj, 0)
}

// findDeep is a depth-bounded walk in document order
func findDeep(v interface{}, depth int) (*models.ExtractedMedia, *Object) {
	if depth > maxStateDepth {
		return nil, nil
	}
	switch t := v.(type) {
	case *Object:
		if media := mediaFromObject(t); media != nil {
			return media, t
		}
		for _, key := range t.keys {
			if media, src := findDeep(t.values[key], depth+1); media != nil {
				return media, src
			}
		}
	case []interface{}:
		for _, item := range t {
			if media, src := findDeep(item, depth+1); media != nil {
				return media, src
			}
		}
	}
	return nil, nil
}

// mediaFromObject returns a record when obj exposes an absolute media URL
func mediaFromObject(obj *Object) *models.ExtractedMedia {
	v := firstTruthy(obj, mediaKeys)
	s, ok := v.(string)
	if !ok || !IsHTTPURL(s) {
		return nil
	}
	return &models.ExtractedMedia{MediaURL: s, Source: SourceApolloState}
}

func firstTruthy(obj *Object, keys []string) interface{} {
	for _, k := range keys {
		if v, ok := obj.Get(k); ok && truthy(v) {
			return v
		}
	}
	return nil
}

// inlineJSON matches quoted media fields anywhere in the payload
func (c *Cascade) inlineJSON(payload string) *models.ExtractedMedia {
	for _, p := range inlinePatterns {
		m := p.re.FindStringSubmatch(payload)
		if m == nil {
			continue
		}
		mediaURL := CleanURL(m[1])
		if IsHTTPURL(mediaURL) {
			media := &models.ExtractedMedia{MediaURL: mediaURL, Source: SourceInlinePrefix + p.field}
			return c.enrich(payload, media, nil)
		}
	}
	return nil
}

// regexFallback repeats the inline fields with quote-tolerant variants
func (c *Cascade) regexFallback(payload string) *models.ExtractedMedia {
	for _, re := range fallbackPatterns {
		m := re.FindStringSubmatch(payload)
		if m == nil {
			continue
		}
		mediaURL := CleanURL(m[1])
		if IsHTTPURL(mediaURL) {
			media := &models.ExtractedMedia{MediaURL: mediaURL, Source: SourceRegexFallback}
			return c.enrich(payload, media, nil)
		}
	}
	return nil
}

// broadSearch scans for any URL that looks like a media resource
func (c *Cascade) broadSearch(payload string) *models.ExtractedMedia {
	for _, re := range c.broad {
		for _, match := range re.FindAllString(payload, broadMatchLimit) {
			candidate := CleanURL(match)
			if IsValidVideoURL(candidate) {
				media := &models.ExtractedMedia{MediaURL: candidate, Source: SourceBroadSearch}
				return c.enrich(payload, media, nil)
			}
		}
	}
	return nil
}

// jsonFragment parses small brace-delimited fragments independently
func (c *Cascade) jsonFragment(payload string) *models.ExtractedMedia {
	for _, re := range fragmentPatterns {
		for _, text := range re.FindAllString(payload, fragmentMatchLimit) {
			v, err := DecodeOrdered(text)
			if err != nil {
				continue
			}
			obj, ok := v.(*Object)
			if !ok {
				continue
			}
			mediaURL, ok := firstTruthy(obj, fragmentKeys).(string)
			if !ok || !IsValidVideoURL(mediaURL) {
				continue
			}
			media := &models.ExtractedMedia{MediaURL: mediaURL, Source: SourceJSONFragment}
			return c.enrich(payload, media, obj)
		}
	}
	return nil
}

// metaTags reads Open Graph video tags from the page head
func (c *Cascade) metaTags(payload string) *models.ExtractedMedia {
	if !strings.Contains(payload, "<meta") {
		return nil
	}
	doc := ParseDocument(payload)

	var explicit, generic string
	media := &models.ExtractedMedia{Source: SourceMetaTags}
	for _, m := range doc.Metas {
		switch m.Property {
		case "og:video", "og:video:url", "og:video:secure_url":
			if explicit == "" && IsHTTPURL(m.Content) {
				explicit = m.Content
			}
		case "og:image":
			if media.CoverURL == "" && IsHTTPURL(m.Content) {
				media.CoverURL = m.Content
			}
		case "og:title", "og:description":
			if media.Title == "" {
				media.Title = m.Content
			}
		}
		if generic == "" && strings.Contains(m.Property, "video") && IsHTTPURL(m.Content) {
			generic = m.Content
		}
	}

	media.MediaURL = explicit
	if media.MediaURL == "" {
		media.MediaURL = generic
	}
	if media.MediaURL == "" {
		return nil
	}
	return c.enrich(payload, media, nil)
}
