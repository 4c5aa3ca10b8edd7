package share

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"video-parser/pkg/models"
)

func TestShareText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		platform models.Platform
		url      string
	}{
		{
			"douyin short link with caption",
			"5.35 去抖音看看【潮汕阿婷在花都的作品】潮汕人做生意厉害的口诀，再穷不打工再饿不要饭# 潮... https://v.douyin.com/kB9dI20w7vk/ m@d.AT Zm:/ 01/05",
			models.PlatformDouyin,
			"https://v.douyin.com/kB9dI20w7vk/",
		},
		{
			"douyin iesdouyin share",
			"复制此链接，打开抖音搜索，直接观看：https://www.iesdouyin.com/share/video/737373737373/",
			models.PlatformDouyin,
			"https://www.iesdouyin.com/share/video/737373737373/",
		},
		{
			"douyin play endpoint",
			"直链（可能 302）：https://aweme.snssdk.com/aweme/v1/play/?video_id=v0300fg10000d0e6n7fog65p2cc1qbpg&ratio=720p&line=0",
			models.PlatformDouyin,
			"https://aweme.snssdk.com/aweme/v1/play/?video_id=v0300fg10000d0e6n7fog65p2cc1qbpg&ratio=720p&line=0",
		},
		{
			"douyin bare short link",
			"v.douyin.com/kB9dI20w7vk/ 复制此链接",
			models.PlatformDouyin,
			"v.douyin.com/kB9dI20w7vk/",
		},
		{
			"douyin trailing cjk punctuation",
			"看看这个：https://v.douyin.com/abc123/，真的不错！",
			models.PlatformDouyin,
			"https://v.douyin.com/abc123/",
		},
		{
			"kuaishou short link",
			"快手看看：https://v.kuaishou.com/abcdEF 开黑走起！",
			models.PlatformKuaishou,
			"https://v.kuaishou.com/abcdEF",
		},
		{
			"kuaishou video page",
			"https://www.kuaishou.com/short-video/3x7m8nbnxyg2s3q",
			models.PlatformKuaishou,
			"https://www.kuaishou.com/short-video/3x7m8nbnxyg2s3q",
		},
		{
			"weibo tv show",
			"微博视频：https://weibo.com/tv/show/1034:4912345678901234 这个观点很赞",
			models.PlatformWeibo,
			"https://weibo.com/tv/show/1034:4912345678901234",
		},
		{
			"weibo video host",
			"https://video.weibo.com/show?fid=1034:4912345678901234&from=old_pc_videoshow",
			models.PlatformWeibo,
			"https://video.weibo.com/show?fid=1034:4912345678901234&from=old_pc_videoshow",
		},
		{
			"xhs short link",
			"小红书笔记：http://xhslink.com/A1B2C3，复制到小红书打开",
			models.PlatformXHS,
			"http://xhslink.com/A1B2C3",
		},
		{
			"xhs note page",
			"https://www.xiaohongshu.com/explore/66f8f8f8f8f8f8f8f8f8f8f8?xhsshare=WeixinSession",
			models.PlatformXHS,
			"https://www.xiaohongshu.com/explore/66f8f8f8f8f8f8f8f8f8f8f8?xhsshare=WeixinSession",
		},
		{
			"bilibili b23",
			"B站视频：https://b23.tv/abcDEFg 分享给你！",
			models.PlatformBilibili,
			"https://b23.tv/abcDEFg",
		},
		{
			"bilibili bvid",
			"https://www.bilibili.com/video/BV1xx411c7mD/?spm_id_from=333.1007.tianma.1-1-1.click",
			models.PlatformBilibili,
			"https://www.bilibili.com/video/BV1xx411c7mD/?spm_id_from=333.1007.tianma.1-1-1.click",
		},
		{
			"bilibili bangumi",
			"https://www.bilibili.com/bangumi/play/ep123456?from_spmid=666.25",
			models.PlatformBilibili,
			"https://www.bilibili.com/bangumi/play/ep123456?from_spmid=666.25",
		},
		{
			"qishui track",
			"这首歌好听：https://music.douyin.com/qishui/share/track?track_id=7031234567890123456",
			models.PlatformQsMusic,
			"https://music.douyin.com/qishui/share/track?track_id=7031234567890123456",
		},
		{
			"first of several links",
			"先看这个B站：https://b23.tv/xyz 然后这个抖音：https://v.douyin.com/xyz123/",
			models.PlatformBilibili,
			"https://b23.tv/xyz",
		},
		{
			"copy hint around link",
			"复制此链接 https://v.douyin.com/xyz123/ 打开抖音搜索",
			models.PlatformDouyin,
			"https://v.douyin.com/xyz123/",
		},
		{
			"cjk punctuation and newlines",
			"看看：\nhttps://www.kuaishou.com/short-video/9x9x9x9x9x9，\n再看： https://weibo.com/tv/show/1034:4xxxxxxxxxxxxxxx。",
			models.PlatformKuaishou,
			"https://www.kuaishou.com/short-video/9x9x9x9x9x9",
		},
		{
			"no link",
			"这是一个普通文本，没有任何视频链接。",
			models.PlatformDouyin,
			"",
		},
		{
			"same host twice",
			"https://v.douyin.com/abc111/ 再一个：https://v.douyin.com/abc222/",
			models.PlatformDouyin,
			"https://v.douyin.com/abc111/",
		},
		{
			"trailing ascii punctuation",
			"https://b23.tv/abcdefg, 超好看！",
			models.PlatformBilibili,
			"https://b23.tv/abcdefg",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.platform, DetectPlatform(test.input))
			assert.Equal(t, test.url, ExtractURL(test.input))
			assert.Equal(t, test.url != "", HasSupportedURL(test.input))
		})
	}
}

func TestPlatformOf(t *testing.T) {
	tests := []struct {
		link string
		want models.Platform
		ok   bool
	}{
		{"https://h5.pipigx.com/pp/post/1?pid=1&mid=2", models.PlatformPipigx, true},
		{"https://h5.pipix.com/s/abc", models.PlatformPpxia, true},
		{"https://example.com/a", "", false},
		{"", "", false},
	}
	for _, test := range tests {
		got, ok := PlatformOf(test.link)
		assert.Equal(t, test.want, got, test.link)
		assert.Equal(t, test.ok, ok, test.link)
	}
}
