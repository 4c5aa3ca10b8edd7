package platform

import (
	"fmt"

	"video-parser/internal/pipeline"
	"video-parser/internal/platform/bilibili"
	"video-parser/internal/platform/douyin"
	"video-parser/internal/platform/kuaishou"
	"video-parser/internal/platform/pipigx"
	"video-parser/internal/platform/ppxia"
	"video-parser/internal/platform/qsmusic"
	"video-parser/internal/platform/weibo"
	"video-parser/internal/platform/xhs"
	"video-parser/pkg/models"
)

// Descriptor is the static information about a supported platform
type Descriptor struct {
	Platform    models.Platform
	Description string
	Patterns    []string
}

// descriptors lists the link patterns each platform accepts
var descriptors = map[models.Platform]Descriptor{
	models.PlatformDouyin: {
		Platform:    models.PlatformDouyin,
		Description: "Douyin (抖音) video",
		Patterns: []string{
			`https?://v\.douyin\.com/[^/\s]+`,
			`https?://(?:www\.)?douyin\.com/video/\d+`,
			`https?://(?:www\.)?iesdouyin\.com/share/video/\d+`,
		},
	},
	models.PlatformBilibili: {
		Platform:    models.PlatformBilibili,
		Description: "Bilibili (哔哩哔哩) video parts",
		Patterns: []string{
			`https?://b23\.tv/[^/\s]+`,
			`https?://(?:www|m)\.bilibili\.com/video/[^/\s?]+`,
		},
	},
	models.PlatformKuaishou: {
		Platform:    models.PlatformKuaishou,
		Description: "Kuaishou (快手) video or photo",
		Patterns: []string{
			`https?://v\.kuaishou\.com/[^/\s]+`,
			`https?://(?:www\.)?kuaishou\.com/(?:short-video|photo|f|profile)/[^/\s]+`,
		},
	},
	models.PlatformWeibo: {
		Platform:    models.PlatformWeibo,
		Description: "Weibo (微博) video",
		Patterns: []string{
			`https?://(?:www\.)?weibo\.com/tv/show/\d+:\d+`,
			`https?://video\.weibo\.com/show\?fid=\d+:\d+`,
		},
	},
	models.PlatformXHS: {
		Platform:    models.PlatformXHS,
		Description: "Xiaohongshu (小红书) video or image note",
		Patterns: []string{
			`https?://xhslink\.com/[^\s]+`,
			`https?://(?:www\.)?xiaohongshu\.com/(?:explore|discovery/item)/[^/\s]+`,
		},
	},
	models.PlatformPipigx: {
		Platform:    models.PlatformPipigx,
		Description: "Pipigaoxiao (皮皮搞笑) post",
		Patterns: []string{
			`https?://h5\.pipigx\.com/[^\s]*pid=\d+`,
		},
	},
	models.PlatformPpxia: {
		Platform:    models.PlatformPpxia,
		Description: "Pipixia (皮皮虾) video",
		Patterns: []string{
			`https?://h5\.pipix\.com/[^\s]+`,
		},
	},
	models.PlatformQsMusic: {
		Platform:    models.PlatformQsMusic,
		Description: "Qishui music (汽水音乐) track",
		Patterns: []string{
			`https?://qishui\.douyin\.com/[^\s]+`,
			`https?://music\.douyin\.com/qishui/share/track\?[^\s]*track_id=\d+`,
		},
	},
}

// Describe returns the descriptor of p
func Describe(p models.Platform) (Descriptor, bool) {
	d, ok := descriptors[p]
	return d, ok
}

// New builds the parser for p. obs, when non-nil, receives every upstream call.
func New(p models.Platform, cfg models.ExtractorConfig, obs models.Observer) (models.Parser, error) {
	switch p {
	case models.PlatformDouyin:
		return douyin.NewParser(cfg, douyin.WithObserver(obs)), nil
	case models.PlatformBilibili:
		return bilibili.NewParser(cfg, bilibili.WithObserver(obs)), nil
	case models.PlatformKuaishou:
		return kuaishou.NewParser(cfg, pipeline.WithObserver(obs)), nil
	case models.PlatformWeibo:
		return weibo.NewParser(cfg, weibo.WithObserver(obs)), nil
	case models.PlatformXHS:
		return xhs.NewParser(cfg, xhs.WithObserver(obs)), nil
	case models.PlatformPipigx:
		return pipigx.NewParser(cfg, pipigx.WithObserver(obs)), nil
	case models.PlatformPpxia:
		return ppxia.NewParser(cfg, ppxia.WithObserver(obs)), nil
	case models.PlatformQsMusic:
		return qsmusic.NewParser(cfg, qsmusic.WithObserver(obs)), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", p)
	}
}
