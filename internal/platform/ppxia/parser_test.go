package ppxia

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

const commentBody = `{"data":{"cell_comments":[
{"comment_info":{"text":"first"}},
{"comment_info":{"item":{
	"content":"so funny",
	"author":{"name":"pp","avatar":{"download_list":[{"url":"https://p3.pipix.com/a.jpg"}]}},
	"cover":{"download_list":[{"url":"https://p3.pipix.com/c.jpg"}]},
	"video":{"video_high":{"url_list":[{"url":"https://v.pipix.com/hi.mp4"},{"url":"https://v.pipix.com/backup.mp4"}]}}
}}}]}}`

func newTestServer(t *testing.T) *httptest.Server {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/s/ok":
			http.Redirect(w, r, ts.URL+"/item/7001?app_id=1319", http.StatusFound)
		case "/s/gone":
			http.Redirect(w, r, ts.URL+"/item/7002?app_id=1319", http.StatusFound)
		case commentPath:
			assert.Equal(t, "super", r.URL.Query().Get("app_name"))
			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("cell_id") == "7001" {
				fmt.Fprint(w, commentBody)
				return
			}
			fmt.Fprint(w, `{"data":{"cell_comments":[]}}`)
		default:
			fmt.Fprint(w, "<html></html>")
		}
	}))
	return ts
}

func TestParse(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	p := NewParser(models.DefaultExtractorConfig(), WithAPIBase(ts.URL))

	data, err := p.Parse(context.Background(), ts.URL+"/s/ok")
	require.NoError(t, err)
	assert.Equal(t, &Video{
		Author: "pp",
		Avatar: "https://p3.pipix.com/a.jpg",
		Title:  "so funny",
		Cover:  "https://p3.pipix.com/c.jpg",
		URL:    "https://v.pipix.com/hi.mp4",
	}, data)

	status, resp := Codes.Respond(data, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, CodeSuccess, resp.Code)
}

func TestParseFailures(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	p := NewParser(models.DefaultExtractorConfig(), WithAPIBase(ts.URL))

	tests := []struct {
		link string
		msg  string
	}{
		{ts.URL + "/s/gone", msgNoItem},
		{ts.URL + "/s/plain", msgNoID},
		{"http://127.0.0.1:1/s/down", msgFailed},
	}
	for _, test := range tests {
		_, err := p.Parse(context.Background(), test.link)
		require.Error(t, err, test.link)

		status, resp := Codes.Respond(nil, err)
		assert.Equal(t, http.StatusOK, status, test.link)
		assert.Equal(t, CodeFailure, resp.Code, test.link)
		assert.Equal(t, test.msg, resp.Msg, test.link)
	}

	_, err := p.Parse(context.Background(), "")
	status, resp := Codes.Respond(nil, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeMissingURL, resp.Code)
}
