package xhs

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

const videoPage = `<html><script>window.__INITIAL_STATE__={"note":{"data":{"title":"t","desc":"d","user":{"nickName":"n","userId":"u1","avatar":"https://sns-avatar.xhscdn.com/a.jpg"},"video":{"media":{"stream":{"h265":[],"h264":[{"masterUrl":"https://sns-video.xhscdn.com/v.mp4"}]}}},"imageList":[{"infoList":[{"url":"https://sns-img.xhscdn.com/c.jpg"}]}]},"extra":undefined}}</script></html>`

const imagePage = `<html><script>window.__INITIAL_STATE__={"note":{"currentNoteId":"n2","noteDetailMap":{"n1":{"note":{}},"n2":{"note":{"title":"pics","description":"more","user":{"name":"m","id":7},"imageList":[{"urlDefault":"https://sns-img.xhscdn.com/1.jpg"},{"url":"https://sns-img.xhscdn.com/2.jpg"},{"width":1}]}}}}}</script></html>`

func newTestServer() *httptest.Server {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xhslink.com/a":
			http.Redirect(w, r, ts.URL+"/explore/video", http.StatusFound)
		case "/xhslink.com/b":
			fmt.Fprintf(w, `<script>window.location.href = '%s/explore/images'</script>`, ts.URL)
		case "/explore/video":
			fmt.Fprint(w, videoPage)
		case "/explore/images":
			fmt.Fprint(w, imagePage)
		case "/explore/text":
			fmt.Fprint(w, `<script>window.__INITIAL_STATE__={"note":{"data":{"title":"words only"}}}</script>`)
		case "/explore/other":
			fmt.Fprint(w, `<script>window.__INITIAL_STATE__={"user":{}}</script>`)
		default:
			fmt.Fprint(w, "<html></html>")
		}
	}))
	return ts
}

func TestParseVideoThroughShortLink(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	data, err := NewParser(models.DefaultExtractorConfig()).Parse(context.Background(), ts.URL+"/xhslink.com/a")
	require.NoError(t, err)
	assert.Equal(t, &Note{
		Author:   "n",
		AuthorID: "u1",
		Title:    "t",
		Desc:     "d",
		Avatar:   "https://sns-avatar.xhscdn.com/a.jpg",
		Cover:    "https://sns-img.xhscdn.com/c.jpg",
		URL:      "https://sns-video.xhscdn.com/v.mp4",
		Type:     "video",
	}, data)
}

func TestParseImagesThroughScriptRedirect(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	data, err := NewParser(models.DefaultExtractorConfig()).Parse(context.Background(), ts.URL+"/xhslink.com/b")
	require.NoError(t, err)
	assert.Equal(t, &Note{
		Author:   "m",
		AuthorID: "7",
		Title:    "pics",
		Desc:     "more",
		Cover:    "https://sns-img.xhscdn.com/1.jpg",
		Images:   []string{"https://sns-img.xhscdn.com/1.jpg", "https://sns-img.xhscdn.com/2.jpg"},
		Type:     "image",
	}, data)
}

func TestParseFailures(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	p := NewParser(models.DefaultExtractorConfig())

	tests := []struct {
		path string
		code int
		msg  string
	}{
		{"/explore/text", CodeNoMedia, msgNoMedia},
		{"/explore/other", CodeBadPage, msgNoNote},
		{"/explore/none", CodeBadPage, msgNoState},
	}

	for _, test := range tests {
		_, err := p.Parse(context.Background(), ts.URL+test.path)
		require.Error(t, err, test.path)

		status, resp := Codes.Respond(nil, err)
		assert.Equal(t, http.StatusOK, status, test.path)
		assert.Equal(t, test.code, resp.Code, test.path)
		assert.Equal(t, test.msg, resp.Msg, test.path)
	}

	_, err := p.Parse(context.Background(), "")
	status, resp := Codes.Respond(nil, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeMissingURL, resp.Code)
	assert.Equal(t, "url 为空", resp.Msg)
}
