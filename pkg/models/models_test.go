package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestPlatformString(t *testing.T) {
	tests := []struct {
		platform Platform
		expected string
	}{
		{PlatformDouyin, "douyin"},
		{PlatformXHS, "xhs"},
		{PlatformKuaishou, "kuaishou"},
		{PlatformQsMusic, "qsmusic"},
		{Platform("unknown"), "unknown"},
	}

	for _, test := range tests {
		result := string(test.platform)
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

func TestAllPlatformsUnique(t *testing.T) {
	seen := make(map[Platform]bool)
	for _, p := range AllPlatforms {
		if seen[p] {
			t.Errorf("Duplicate platform %s", p)
		}
		seen[p] = true
	}
	if len(seen) != 8 {
		t.Errorf("Expected 8 platforms, got %d", len(seen))
	}
}

func TestExtractedMediaJSON(t *testing.T) {
	likes := int64(12)
	media := &ExtractedMedia{
		MediaURL:   "https://v.example.com/a.mp4",
		Caption:    "hello",
		Engagement: Engagement{LikeCount: &likes},
		Source:     "inline-json-playUrl",
	}

	raw, err := json.Marshal(media)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if out["photoUrl"] != "https://v.example.com/a.mp4" {
		t.Errorf("Expected photoUrl key, got %v", out)
	}
	if out["likeCount"] != float64(12) {
		t.Errorf("Expected flattened likeCount 12, got %v", out["likeCount"])
	}
	if _, ok := out["coverUrl"]; ok {
		t.Error("Expected coverUrl to be omitted when empty")
	}
	if _, ok := out["commentCount"]; ok {
		t.Error("Expected commentCount to be omitted when nil")
	}
}

func TestFormatterStampsPlatform(t *testing.T) {
	f := Formatter{Platform: PlatformKuaishou}
	resp := f.Format(200, "ok", map[string]string{"a": "b"})

	if resp.Platform != PlatformKuaishou {
		t.Errorf("Expected platform kuaishou, got %s", resp.Platform)
	}
	if resp.Code != 200 || resp.Msg != "ok" {
		t.Errorf("Unexpected envelope %+v", resp)
	}

	empty := f.Format(404, "miss", nil)
	raw, _ := json.Marshal(empty)
	if !strings.Contains(string(raw), `"data":null`) {
		t.Errorf("Expected data null, got %s", raw)
	}
}

type decorated struct{ title string }

func (d *decorated) Decorate(resp *APIResponse) {
	resp.Title = d.title
	resp.User = &User{Name: "up"}
}

func TestFormatterDecorator(t *testing.T) {
	resp := Formatter{Platform: PlatformBilibili}.Format(1, "ok", &decorated{title: "t"})
	if resp.Title != "t" {
		t.Errorf("Expected decorated title, got %q", resp.Title)
	}
	if resp.User == nil || resp.User.Name != "up" {
		t.Errorf("Expected decorated user, got %+v", resp.User)
	}
}

func TestKindOf(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"parse error", NewParseError(KindUpstreamShape, PlatformDouyin, "", "bad"), KindUpstreamShape},
		{"wrapped parse error", fmt.Errorf("outer: %w", NewParseError(KindExtractionMiss, "", "", "")), KindExtractionMiss},
		{"missing url", ErrMissingURL, KindInput},
		{"deadline", ctx.Err(), KindFetch},
		{"canceled", context.Canceled, KindFetch},
		{"other", errors.New("boom"), KindInternal},
	}

	for _, test := range tests {
		if got := KindOf(test.err); got != test.want {
			t.Errorf("%s: expected %q, got %q", test.name, test.want, got)
		}
	}
}

func TestParseErrorMessage(t *testing.T) {
	err := NewParseError(KindFetch, PlatformWeibo, "https://weibo.com/x", "timeout")
	if err.Error() != "weibo: timeout (https://weibo.com/x)" {
		t.Errorf("Unexpected message %q", err.Error())
	}

	cause := errors.New("dial failed")
	wrapped := NewParseError(KindFetch, "", "", "").Wrap(cause)
	if !errors.Is(wrapped, cause) {
		t.Error("Expected wrapped cause to be reachable")
	}
	if wrapped.Error() != "dial failed" {
		t.Errorf("Expected cause text, got %q", wrapped.Error())
	}
}

func testBook() *CodeBook {
	return &CodeBook{
		Platform:   PlatformKuaishou,
		Success:    Reply{Status: http.StatusOK, Code: 200, Msg: "ok"},
		MissingURL: Reply{Status: http.StatusBadRequest, Code: 201, Msg: "missing"},
		Failure:    Reply{Status: http.StatusNotFound, Code: 404, Msg: "miss"},
		Internal:   Reply{Status: http.StatusInternalServerError, Code: 500, Msg: "internal"},
		Kinds: map[ErrorKind]Reply{
			KindUpstreamShape: {Code: 201, Msg: "shape"},
		},
	}
}

func TestCodeBookRespond(t *testing.T) {
	book := testBook()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
		wantMsg    string
	}{
		{"success", nil, 200, 200, "ok"},
		{"missing url", ErrMissingURL, 400, 201, "missing"},
		{"miss", NewParseError(KindExtractionMiss, "", "", ""), 404, 404, "miss"},
		{"kind override", NewParseError(KindUpstreamShape, "", "", ""), 200, 201, "shape"},
		{"message override", NewParseError(KindUpstreamShape, "", "", "no item"), 200, 201, "no item"},
		{"code override", NewParseError(KindFetch, "", "", "blocked").WithCode(403).WithStatus(200), 200, 403, "blocked"},
		{"internal", errors.New("boom"), 500, 500, "internal"},
	}

	for _, test := range tests {
		status, resp := book.Respond("payload", test.err)
		if status != test.wantStatus {
			t.Errorf("%s: expected status %d, got %d", test.name, test.wantStatus, status)
		}
		if resp.Code != test.wantCode {
			t.Errorf("%s: expected code %d, got %d", test.name, test.wantCode, resp.Code)
		}
		if resp.Msg != test.wantMsg {
			t.Errorf("%s: expected msg %q, got %q", test.name, test.wantMsg, resp.Msg)
		}
		if resp.Platform != PlatformKuaishou {
			t.Errorf("%s: expected platform tag, got %q", test.name, resp.Platform)
		}
		if test.err != nil && resp.Data != nil {
			t.Errorf("%s: expected nil data on failure", test.name)
		}
	}
}

func TestCodeBookInternalDetail(t *testing.T) {
	book := testBook()
	book.InternalDetail = true

	_, resp := book.Respond(nil, NewParseError(KindInternal, PlatformDouyin, "", "").Wrap(errors.New("boom")))
	if resp.Msg != "internal：boom" {
		t.Errorf("Expected detailed message, got %q", resp.Msg)
	}
}

func TestConfigExtractorConfig(t *testing.T) {
	var nilCfg *Config
	ec := nilCfg.ExtractorConfig(PlatformWeibo)
	if ec.FetchTimeout != 15*time.Second || ec.ResolveTimeout != 10*time.Second {
		t.Errorf("Expected default timeouts, got %+v", ec)
	}

	cfg := &Config{}
	cfg.HTTP.APITimeout = 7
	cfg.Proxy.Enabled = true
	cfg.Proxy.Type = "socks5"
	cfg.Proxy.Host = "127.0.0.1"
	cfg.Proxy.Port = 1080
	cfg.Platforms = map[string]PlatformConfig{
		"weibo": {Enabled: true, Cookie: "SUB=1"},
	}

	ec = cfg.ExtractorConfig(PlatformWeibo)
	if ec.APITimeout != 7*time.Second {
		t.Errorf("Expected api timeout 7s, got %v", ec.APITimeout)
	}
	if ec.Proxy != "socks5://127.0.0.1:1080" {
		t.Errorf("Unexpected proxy %q", ec.Proxy)
	}
	if ec.Cookie != "SUB=1" {
		t.Errorf("Expected cookie, got %q", ec.Cookie)
	}

	if !cfg.Platform(PlatformDouyin).Enabled {
		t.Error("Expected unlisted platform to be enabled")
	}
}
