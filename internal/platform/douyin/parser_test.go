package douyin

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

const routerPage = `<html><script>window._ROUTER_DATA = {"loaderData":{"video_(id)/page":{"videoInfoRes":{"item_list":[{"desc":"","create_time":1700000000,"author":{"nickname":"maker","unique_id":"u1","avatar_medium":{"url_list":["https://p3.douyinpic.com/a.jpeg"]}},"statistics":{"digg_count":42},"video":{"play_addr":{"url_list":["https://aweme.snssdk.com/aweme/v1/playwm/?video_id=v0"]},"cover":{"url_list":["https://p3.douyinpic.com/c.jpeg"]}},"music":{"author":"","cover_large":{"url_list":[]}}}]}}}}</script></html>`

func newTestServer() *httptest.Server {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/s/ok":
			http.Redirect(w, r, "/video/7300000000000000001/", http.StatusFound)
		case "/s/blocked":
			http.Redirect(w, r, "/video/7300000000000000002/", http.StatusFound)
		case "/s/canonical":
			fmt.Fprintf(w, `<html><head><link data-react-helmet="true" rel="canonical" href="%s/video/7300000000000000003"></head></html>`, ts.URL)
		case "/share/video/7300000000000000001":
			fmt.Fprint(w, routerPage)
		case "/share/video/7300000000000000002":
			fmt.Fprint(w, "<html>访问受限</html>")
		case "/share/video/7300000000000000003":
			fmt.Fprint(w, `<script>window._ROUTER_DATA = {"loaderData":{}}</script>`)
		default:
			fmt.Fprint(w, "<html></html>")
		}
	}))
	return ts
}

func newTestParser(ts *httptest.Server) *Parser {
	return NewParser(models.DefaultExtractorConfig(), WithShareBase(ts.URL+"/share/video/"))
}

func TestParse(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	data, err := newTestParser(ts).Parse(context.Background(), ts.URL+"/s/ok")
	require.NoError(t, err)
	assert.Equal(t, &Video{
		Author: "maker",
		UID:    "u1",
		Avatar: "https://p3.douyinpic.com/a.jpeg",
		Like:   42,
		Time:   1700000000,
		Title:  "无标题",
		Cover:  "https://p3.douyinpic.com/c.jpeg",
		URL:    "https://aweme.snssdk.com/aweme/v1/play/?video_id=v0",
		Music:  Music{Author: "未知音乐作者"},
	}, data)
}

func TestParseBlocked(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	_, err := newTestParser(ts).Parse(context.Background(), ts.URL+"/s/blocked")
	require.Error(t, err)

	status, resp := Codes.Respond(nil, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, CodeBlocked, resp.Code)
	assert.Equal(t, msgBlocked, resp.Msg)
}

func TestParseCanonicalLink(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	_, err := newTestParser(ts).Parse(context.Background(), ts.URL+"/s/canonical")
	require.Error(t, err)

	_, resp := Codes.Respond(nil, err)
	assert.Equal(t, CodeShape, resp.Code)
	assert.Equal(t, msgNoItem, resp.Msg)
}

func TestParseNoID(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	_, err := newTestParser(ts).Parse(context.Background(), ts.URL+"/s/none")
	assert.Equal(t, models.KindResolution, models.KindOf(err))

	status, resp := Codes.Respond(nil, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, CodeNoID, resp.Code)

	_, err = newTestParser(ts).Parse(context.Background(), "")
	status, resp = Codes.Respond(nil, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeMissingURL, resp.Code)
	assert.Equal(t, "url为空", resp.Msg)
}

func TestParseSharePageShapes(t *testing.T) {
	p := NewParser(models.DefaultExtractorConfig())

	tests := []struct {
		body string
		msg  string
	}{
		{`<html></html>`, msgNoRouterData},
		{`<script>window._ROUTER_DATA = {"other": 1}</script>`, msgNoLoaderData},
		{`<script>window._ROUTER_DATA = not json at all</script>`, msgNoLoaderData},
		{`<script>window._ROUTER_DATA = {"loaderData": {"video_(id)/page": {"videoInfoRes": {"item_list": []}}}}</script>`, msgNoItem},
		{`<script>window._ROUTER_DATA = {"loaderData": {"video_(id)/page": {"videoInfoRes": {"item_list": [{"desc": "x"}]}}}}</script>`, msgNoAuthor},
		{`<script>window._ROUTER_DATA = {"loaderData": {"video_(id)/page": {"videoInfoRes": {"item_list": [{"author": {"nickname": "a"}}]}}}}</script>`, msgNoPlayAddr},
	}

	for _, test := range tests {
		_, err := p.parseSharePage("https://v.douyin.com/x/", test.body)
		require.Error(t, err, test.body)
		assert.Equal(t, models.KindUpstreamShape, models.KindOf(err), test.body)

		_, resp := Codes.Respond(nil, err)
		assert.Equal(t, test.msg, resp.Msg, test.body)
	}
}
