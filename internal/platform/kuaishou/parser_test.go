package kuaishou

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-parser/internal/extract"
	"video-parser/pkg/models"
)

func TestProfileRequestURL(t *testing.T) {
	p := NewProfile("")

	tests := []struct {
		original   string
		redirected string
		want       string
	}{
		{"https://v.kuaishou.com/short-video/3xabc?fid=1", "https://v.kuaishou.com/short-video/3xabc?fid=1", "https://www.kuaishou.com/short-video/3xabc"},
		{"https://v.kuaishou.com/x", "https://m.gifshow.com/fw/photo/3xdef?cc=share", "https://www.kuaishou.com/short-video/3xdef"},
		{"https://v.kuaishou.com/f/X9k", "https://www.kuaishou.com/f/X9k?landing=1", "https://www.kuaishou.com/f/X9k?landing=1"},
		{"https://v.kuaishou.com/abc", "https://live.kuaishou.com/u/abc", "https://live.kuaishou.com/u/abc"},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, p.RequestURL(test.original, test.redirected), test.original)
	}
	assert.Contains(t, p.UserAgent(), "iPhone")
	custom := NewProfile("custom")
	assert.Equal(t, "custom", custom.UserAgent())
}

func TestParse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/f/ok":
			fmt.Fprint(w, `<script>var data = {"playUrl": "https://v2.kwaicdn.com/b.mp4", "caption": "demo"}</script>`)
		case "/f/empty":
			fmt.Fprint(w, `<html><img src="https://x.com/icon-menu.png"></html>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	cfg := models.DefaultExtractorConfig()
	cfg.ResolveTimeout = time.Second
	cfg.FetchTimeout = time.Second
	p := NewParser(cfg)

	data, err := p.Parse(context.Background(), ts.URL+"/f/ok")
	require.NoError(t, err)
	media, ok := data.(*models.ExtractedMedia)
	require.True(t, ok)
	assert.Equal(t, "https://v2.kwaicdn.com/b.mp4", media.MediaURL)
	assert.Equal(t, "demo", media.Caption)
	assert.Equal(t, extract.SourceInlinePrefix+"playUrl", media.Source)

	status, resp := p.Codes().Respond(data, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, "解析成功", resp.Msg)
	assert.Equal(t, models.PlatformKuaishou, resp.Platform)

	_, err = p.Parse(context.Background(), ts.URL+"/f/empty")
	status, resp = p.Codes().Respond(nil, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, CodeFailure, resp.Code)
	assert.Nil(t, resp.Data)
}

func TestCodes(t *testing.T) {
	status, resp := Codes.Respond(nil, models.ErrMissingURL)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeMissingURL, resp.Code)
	assert.Equal(t, "链接不能为空！", resp.Msg)

	status, resp = Codes.Respond(nil, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, resp.Code)
	assert.Equal(t, "服务器错误", resp.Msg)

	status, resp = Codes.Respond(nil, context.DeadlineExceeded)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, CodeFailure, resp.Code)
}
