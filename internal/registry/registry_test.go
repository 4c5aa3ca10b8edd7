package registry

import (
	"context"
	"testing"

	"video-parser/pkg/models"
)

// MockParser implements the Parser interface for testing
type MockParser struct {
	platform models.Platform
}

func (m *MockParser) Platform() models.Platform {
	return m.platform
}

func (m *MockParser) Parse(ctx context.Context, rawURL string) (interface{}, error) {
	return map[string]string{"url": rawURL}, nil
}

func (m *MockParser) Codes() *models.CodeBook {
	return &models.CodeBook{Platform: m.platform}
}

func newMockRegistry(t *testing.T) *Registry {
	registry := NewRegistry()
	entries := []struct {
		platform models.Platform
		patterns []string
	}{
		{models.PlatformDouyin, []string{`https?://v\.douyin\.com/[^/\s]+`}},
		{models.PlatformKuaishou, []string{`https?://v\.kuaishou\.com/[^/\s]+`, `https?://(?:www\.)?kuaishou\.com/short-video/[^/\s]+`}},
		{models.PlatformXHS, []string{`https?://xhslink\.com/[^\s]+`}},
	}
	for _, e := range entries {
		if err := registry.Register(&MockParser{platform: e.platform}, e.patterns); err != nil {
			t.Fatalf("Expected no error registering %s, got %v", e.platform, err)
		}
	}
	return registry
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()

	if registry == nil {
		t.Fatal("Expected registry to be created, got nil")
	}

	if registry.Count() != 0 {
		t.Errorf("Expected empty registry, got %d parsers", registry.Count())
	}
}

func TestRegisterWithNilParser(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(nil, []string{`https?://example\.com/.*`}); err == nil {
		t.Error("Expected error when registering nil parser, got nil")
	}
}

func TestRegisterWithInvalidPattern(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register(&MockParser{platform: models.PlatformDouyin}, []string{`https?://(`})
	if err == nil {
		t.Error("Expected error for invalid pattern, got nil")
	}
	if registry.Count() != 0 {
		t.Errorf("Expected nothing registered after failure, got %d", registry.Count())
	}
}

func TestGetParserForNonExistentPlatform(t *testing.T) {
	registry := NewRegistry()

	if _, err := registry.GetParser(models.PlatformWeibo); err == nil {
		t.Error("Expected error getting unregistered parser, got nil")
	}
}

func TestDetectPlatform(t *testing.T) {
	registry := newMockRegistry(t)

	tests := []struct {
		name     string
		text     string
		expected models.Platform
		wantErr  bool
	}{
		{"douyin short link", "https://v.douyin.com/abc123/", models.PlatformDouyin, false},
		{"kuaishou in share text", "快手看看：https://v.kuaishou.com/abcdEF 开黑走起！", models.PlatformKuaishou, false},
		{"xhs with cjk comma", "小红书笔记：http://xhslink.com/A1B2C3，复制到小红书打开", models.PlatformXHS, false},
		{"domain fallback", "https://www.bilibili.com/video/BV1xx411c7mD/", models.PlatformBilibili, false},
		{"unknown host", "https://example.com/video/1", "", true},
		{"no link", "这是一个普通文本", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform, err := registry.DetectPlatform(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got platform %s", tt.text, platform)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error for %q, got %v", tt.text, err)
			}
			if platform != tt.expected {
				t.Errorf("Expected platform %s, got %s", tt.expected, platform)
			}
		})
	}
}

func TestGetParserForText(t *testing.T) {
	registry := newMockRegistry(t)

	parser, platform, err := registry.GetParserForText("复制此链接 https://v.douyin.com/xyz123/ 打开抖音搜索")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if platform != models.PlatformDouyin || parser.Platform() != models.PlatformDouyin {
		t.Errorf("Expected douyin parser, got %s", platform)
	}

	// Detected by domain but not registered
	if _, _, err := registry.GetParserForText("https://b23.tv/abc"); err == nil {
		t.Error("Expected error for unregistered platform, got nil")
	}
}

func TestValidateURL(t *testing.T) {
	registry := newMockRegistry(t)

	tests := []struct {
		text     string
		expected bool
	}{
		{"https://www.kuaishou.com/short-video/3x7m8nbnxyg2s3q", true},
		{"https://weibo.com/tv/show/1034:1", false},
		{"not a url", false},
	}

	for _, tt := range tests {
		if got := registry.ValidateURL(tt.text); got != tt.expected {
			t.Errorf("ValidateURL(%q) = %v, want %v", tt.text, got, tt.expected)
		}
	}
}

func TestListPlatformsKeepsRoutingOrder(t *testing.T) {
	registry := newMockRegistry(t)

	platforms := registry.ListPlatforms()
	expected := []models.Platform{models.PlatformDouyin, models.PlatformKuaishou, models.PlatformXHS}
	if len(platforms) != len(expected) {
		t.Fatalf("Expected %d platforms, got %d", len(expected), len(platforms))
	}
	for i := range expected {
		if platforms[i] != expected[i] {
			t.Errorf("Expected platform %d to be %s, got %s", i, expected[i], platforms[i])
		}
	}
}

func TestGetPlatformPatterns(t *testing.T) {
	registry := newMockRegistry(t)

	patterns := registry.GetPlatformPatterns(models.PlatformKuaishou)
	if len(patterns) != 2 {
		t.Errorf("Expected 2 kuaishou patterns, got %d", len(patterns))
	}

	if patterns := registry.GetPlatformPatterns(models.PlatformWeibo); len(patterns) != 0 {
		t.Errorf("Expected no weibo patterns, got %d", len(patterns))
	}
}

func TestClear(t *testing.T) {
	registry := newMockRegistry(t)

	registry.Clear()

	if registry.Count() != 0 {
		t.Errorf("Expected 0 parsers after clear, got %d", registry.Count())
	}
	if registry.IsPlatformSupported(models.PlatformDouyin) {
		t.Error("Expected douyin to be unsupported after clear")
	}
}

func TestRegisterDefaultPlatforms(t *testing.T) {
	cfg := &models.Config{
		Platforms: map[string]models.PlatformConfig{
			"weibo": {Enabled: false},
		},
	}

	registry := NewRegistry()
	if err := registry.RegisterDefaultPlatforms(cfg, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if registry.Count() != len(models.AllPlatforms)-1 {
		t.Errorf("Expected %d parsers, got %d", len(models.AllPlatforms)-1, registry.Count())
	}
	if registry.IsPlatformSupported(models.PlatformWeibo) {
		t.Error("Expected weibo to be disabled")
	}

	platform, err := registry.DetectPlatform("这首歌好听：https://music.douyin.com/qishui/share/track?track_id=7031234567890123456")
	if err != nil || platform != models.PlatformQsMusic {
		t.Errorf("Expected qsmusic, got %s (%v)", platform, err)
	}

	platform, err = registry.DetectPlatform("https://h5.pipigx.com/pp/post/1?pid=1&mid=2")
	if err != nil || platform != models.PlatformPipigx {
		t.Errorf("Expected pipigx, got %s (%v)", platform, err)
	}
}

func TestGetPlatformInfo(t *testing.T) {
	registry := NewRegistry()
	if err := registry.RegisterDefaultPlatforms(&models.Config{}, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	info := registry.GetPlatformInfo()
	if len(info) != len(models.AllPlatforms) {
		t.Fatalf("Expected %d platform infos, got %d", len(models.AllPlatforms), len(info))
	}

	for i, pi := range info {
		if pi.Name != models.AllPlatforms[i] {
			t.Errorf("Expected %s at %d, got %s", models.AllPlatforms[i], i, pi.Name)
		}
		if !pi.Enabled {
			t.Errorf("Expected %s to be enabled", pi.Name)
		}
		if pi.Description == "" || len(pi.Patterns) == 0 {
			t.Errorf("Expected description and patterns for %s", pi.Name)
		}
	}
}
