package utils

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodedServer(t *testing.T, encoding string, payload []byte) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		w := gzip.NewWriter(&buf)
		w.Write(payload)
		w.Close()
	case "br":
		w := brotli.NewWriter(&buf)
		w.Write(payload)
		w.Close()
	case "deflate":
		w := zlib.NewWriter(&buf)
		w.Write(payload)
		w.Close()
	default:
		buf.Write(payload)
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if encoding != "" {
			w.Header().Set("Content-Encoding", encoding)
		}
		w.Write(buf.Bytes())
	}))
}

func TestGetTextDecodesBodies(t *testing.T) {
	payload := []byte("<html>window.__APOLLO_STATE__ = {}</html>")
	for _, encoding := range []string{"", "gzip", "br", "deflate"} {
		srv := encodedServer(t, encoding, payload)
		client := NewHTTPClient(ClientConfig{Timeout: 5 * time.Second})

		body, err := client.GetText(context.Background(), srv.URL, map[string]string{"Accept-Encoding": "gzip, deflate, br"})
		require.NoError(t, err, encoding)
		assert.Equal(t, string(payload), body, encoding)
		srv.Close()
	}
}

func TestGetTextStatusAndEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPClient(ClientConfig{Timeout: 5 * time.Second})

	_, err := client.GetText(context.Background(), srv.URL+"/missing", nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)

	_, err = client.GetText(context.Background(), srv.URL+"/empty", nil)
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestDoSetsUserAgentAndCookie(t *testing.T) {
	var gotUA, gotCookie, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewHTTPClient(ClientConfig{UserAgent: MobileUserAgent, Cookie: "SESSDATA=x"})
	_, err := client.GetText(context.Background(), srv.URL, map[string]string{"Referer": "https://www.bilibili.com/"})
	require.NoError(t, err)

	assert.Equal(t, MobileUserAgent, gotUA)
	assert.Equal(t, "SESSDATA=x", gotCookie)
	assert.Equal(t, "https://www.bilibili.com/", gotReferer)
}

func TestFinalURLAndNoRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/s/abc", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/short-video/3x9", http.StatusFound)
	})
	mux.HandleFunc("/short-video/3x9", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("page"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewHTTPClient(ClientConfig{Timeout: 5 * time.Second})
	final, err := client.FinalURL(context.Background(), srv.URL+"/s/abc", nil)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/short-video/3x9", final)

	manual := NewHTTPClient(ClientConfig{Timeout: 5 * time.Second, NoRedirect: true})
	resp, err := manual.Get(context.Background(), srv.URL+"/s/abc", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/short-video/3x9", resp.Header.Get("Location"))
}

func TestReadBodyLimit(t *testing.T) {
	srv := encodedServer(t, "gzip", bytes.Repeat([]byte("a"), 1000))
	defer srv.Close()

	client := NewHTTPClient(ClientConfig{MaxBodyBytes: 10})
	body, err := client.GetText(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Len(t, body, 10)
}

// countingReader records how many raw bytes were pulled from the body
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestReadBodyLimitDeflateStreams(t *testing.T) {
	payload := make([]byte, 1<<20)
	rand.New(rand.NewSource(1)).Read(payload)

	var zbuf, fbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	zw.Write(payload)
	zw.Close()
	fw, err := flate.NewWriter(&fbuf, flate.DefaultCompression)
	require.NoError(t, err)
	fw.Write(payload)
	fw.Close()

	tests := []struct {
		name string
		body []byte
	}{
		{"zlib", zbuf.Bytes()},
		{"raw flate", fbuf.Bytes()},
	}

	for _, test := range tests {
		raw := &countingReader{r: bytes.NewReader(test.body)}
		resp := &http.Response{
			Header: http.Header{"Content-Encoding": []string{"deflate"}},
			Body:   io.NopCloser(raw),
		}

		body, err := ReadBody(resp, 10)
		require.NoError(t, err, test.name)
		assert.Equal(t, payload[:10], body, test.name)
		assert.Less(t, raw.n, 64*1024, test.name)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, FormatBytes(test.in))
	}
}

func TestGetPageKeepsStatusAndFinalURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		w.Header().Set("X-Test", "1")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("blocked"))
	}))
	defer ts.Close()

	page, err := NewHTTPClient(ClientConfig{}).GetPage(context.Background(), ts.URL+"/start", nil)
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/end", page.URL)
	assert.Equal(t, http.StatusForbidden, page.StatusCode)
	assert.False(t, page.OK())
	assert.Equal(t, "1", page.Header.Get("X-Test"))
	assert.Equal(t, "blocked", page.Body)
}
