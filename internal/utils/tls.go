package utils

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"strings"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

// browserRoundTripper performs HTTPS requests with a Chrome TLS fingerprint.
// Plain http requests go through the fallback transport.
type browserRoundTripper struct {
	dialer   proxy.ContextDialer
	h2       *http2.Transport
	fallback http.RoundTripper
	insecure bool
}

func newBrowserRoundTripper(dialer proxy.ContextDialer, fallback http.RoundTripper, insecure bool) *browserRoundTripper {
	return &browserRoundTripper{
		dialer:   dialer,
		h2:       &http2.Transport{DisableCompression: true},
		fallback: fallback,
		insecure: insecure,
	}
}

func (t *browserRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.fallback.RoundTrip(req)
	}

	addr := req.URL.Host
	if req.URL.Port() == "" {
		addr = net.JoinHostPort(req.URL.Hostname(), "443")
	}

	conn, err := t.dialer.DialContext(req.Context(), "tcp", addr)
	if err != nil {
		return nil, err
	}

	uconn := utls.UClient(conn, &utls.Config{
		ServerName:         req.URL.Hostname(),
		InsecureSkipVerify: t.insecure,
	}, utls.HelloChrome_120)
	if err := uconn.HandshakeContext(req.Context()); err != nil {
		conn.Close()
		return nil, err
	}

	if uconn.ConnectionState().NegotiatedProtocol == "h2" {
		cc, err := t.h2.NewClientConn(uconn)
		if err != nil {
			uconn.Close()
			return nil, err
		}
		resp, err := cc.RoundTrip(req)
		if err != nil {
			cc.Close()
			return nil, err
		}
		resp.Body = &connCloser{ReadCloser: resp.Body, closer: cc}
		return resp, nil
	}

	return roundTripHTTP1(uconn, req)
}

// roundTripHTTP1 writes req on conn and reads a single response
func roundTripHTTP1(conn net.Conn, req *http.Request) (*http.Response, error) {
	if req.Header.Get("Connection") == "" || strings.EqualFold(req.Header.Get("Connection"), "keep-alive") {
		req.Close = true
	}
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, err
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, err
	}

	resp.Body = &connCloser{ReadCloser: resp.Body, closer: conn}
	return resp, nil
}

// connCloser closes the connection together with the body
type connCloser struct {
	io.ReadCloser
	closer io.Closer
}

func (c *connCloser) Close() error {
	c.ReadCloser.Close()
	return c.closer.Close()
}
