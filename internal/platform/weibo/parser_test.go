package weibo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-parser/pkg/models"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://video.weibo.com/show?fid=1034:4900000000000001", "1034:4900000000000001"},
		{"https://weibo.com/tv/show/1034:4900000000000002?from=old_pc_videoshow", "1034:4900000000000002"},
		{"https://weibo.com/1234567/abc", ""},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, VideoID(test.link), test.link)
	}
}

func TestParse(t *testing.T) {
	var form, referer, cookie, page string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm.Get("data")
		page = r.URL.Query().Get("page")
		referer = r.Header.Get("Referer")
		cookie = r.Header.Get("Cookie")

		w.Header().Set("Content-Type", "application/json")
		if page == "/tv/show/1034:1" {
			fmt.Fprint(w, `{"code":"100000","data":{"Component_Play_Playinfo":{"author":"poster","avatar":"https://tvax1.sinaimg.cn/a.jpg","real_date":"2024-01-02","title":"clip","cover_image":"//wx1.sinaimg.cn/c.jpg","urls":{"高清 1080P":"//f.video.weibocdn.com/hd.mp4","标清 480P":"//f.video.weibocdn.com/sd.mp4"}}}}`)
			return
		}
		fmt.Fprint(w, `{"code":"100000","data":{}}`)
	}))
	defer ts.Close()

	cfg := models.DefaultExtractorConfig()
	cfg.Cookie = "SUB=xyz"
	p := NewParser(cfg, WithBase(ts.URL))

	data, err := p.Parse(context.Background(), "https://weibo.com/tv/show/1034:1")
	require.NoError(t, err)
	assert.Equal(t, &Video{
		Author: "poster",
		Avatar: "https://tvax1.sinaimg.cn/a.jpg",
		Time:   "2024-01-02",
		Title:  "clip",
		Cover:  "https://wx1.sinaimg.cn/c.jpg",
		URL:    "https://f.video.weibocdn.com/hd.mp4",
	}, data)
	assert.Equal(t, `{"Component_Play_Playinfo":{"oid":"1034:1"}}`, form)
	assert.Equal(t, "https://weibo.com/tv/show/1034:1", referer)
	assert.Equal(t, "SUB=xyz", cookie)

	_, err = p.Parse(context.Background(), "https://weibo.com/tv/show/1034:2")
	status, resp := Codes.Respond(nil, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, CodeFailure, resp.Code)
	assert.Equal(t, "解析失败！", resp.Msg)

	_, err = p.Parse(context.Background(), "https://weibo.com/u/1")
	status, _ = Codes.Respond(nil, err)
	assert.Equal(t, http.StatusNotFound, status)

	_, err = p.Parse(context.Background(), "")
	status, resp = Codes.Respond(nil, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeMissingURL, resp.Code)
}
