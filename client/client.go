package client

import (
	"bytes"
	"context"
	stdtls "crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptrace"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/proxy"
)

// RequestResult holds the timing and status of a request
type RequestResult struct {
	StartTime            time.Time     `json:"start_time"`
	DNSDone              time.Duration `json:"dns_done"`
	ConnectDone          time.Duration `json:"connect_done"`
	TLSHandshakeDone     time.Duration `json:"tls_done"`
	WroteRequest         time.Duration `json:"wrote_request"`
	GotFirstResponseByte time.Duration `json:"ttfb"`
	TotalDuration        time.Duration `json:"total_duration"`
	StatusCode           int           `json:"status_code"`
	Protocol             string        `json:"protocol"`
	ConnectionReused     bool          `json:"connection_reused"`
	Body                 []byte        `json:"-"`
}

// OK reports whether the status code is in the 2xx range.
func (r *RequestResult) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// ClientOptions configures NewClient. The zero value gives a plain client
// with no timeout, no proxy and the standard TLS stack.
type ClientOptions struct {
	// Timeout of 0 leaves the transport defaults in charge.
	Timeout time.Duration
	// ProxyURL is a socks5://[user:pass@]host:port address.
	ProxyURL string
	// Fingerprint switches https dials to a Firefox uTLS ClientHello.
	Fingerprint  bool
	Fingerprints *FingerprintManager
}

// Client posts booking payloads. It keeps a cookie jar so a session set by
// the booking page survives between submissions.
type Client struct {
	http         *http.Client
	fingerprints *FingerprintManager
	proxyURL     string
}

// Poster is the transport the submission handler needs.
type Poster interface {
	PostJSON(ctx context.Context, url string, body []byte) (*RequestResult, error)
}

var _ Poster = (*Client)(nil)

func NewClient(opts ClientOptions) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	transport, err := newTransport(opts.ProxyURL, opts.Fingerprint)
	if err != nil {
		return nil, err
	}

	fm := opts.Fingerprints
	if fm == nil {
		fm = NewFingerprintManager()
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			Jar:       jar,
		},
		fingerprints: fm,
		proxyURL:     opts.ProxyURL,
	}, nil
}

// ErrUnsupportedProxy is returned for proxies that are not SOCKS5.
var ErrUnsupportedProxy = errors.New("unsupported proxy scheme")

func socksDialer(proxyURL string, forward proxy.Dialer) (proxy.Dialer, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProxy, u.Scheme)
	}
	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{
			User:     u.User.Username(),
			Password: password,
		}
	}
	return proxy.SOCKS5("tcp", u.Host, auth, forward)
}

func newTransport(proxyURL string, fingerprint bool) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	dial := dialer.DialContext
	if proxyURL != "" {
		pd, err := socksDialer(proxyURL, dialer)
		if err != nil {
			return nil, err
		}
		dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := pd.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return pd.Dial(network, addr)
		}
	}

	t := &http.Transport{
		DialContext:       dial,
		ForceAttemptHTTP2: false,
	}
	if !fingerprint {
		return t, nil
	}

	t.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, _ := net.SplitHostPort(addr)

		conn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		// HelloCustom with ALPN pinned to http/1.1; net/http cannot speak h2
		// over a uTLS conn.
		uConn := utls.UClient(conn, &utls.Config{
			ServerName: host,
			NextProtos: []string{"http/1.1"},
		}, utls.HelloCustom)

		spec, err := utls.UTLSIdToSpec(utls.HelloFirefox_Auto)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to get utls spec: %w", err)
		}
		for i, ext := range spec.Extensions {
			if alpn, ok := ext.(*utls.ALPNExtension); ok {
				alpn.AlpnProtocols = []string{"http/1.1"}
				spec.Extensions[i] = alpn
			}
		}
		if err := uConn.ApplyPreset(&spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply preset: %w", err)
		}
		if err := uConn.Handshake(); err != nil {
			conn.Close()
			return nil, err
		}
		return uConn, nil
	}
	return t, nil
}

func (c *Client) CookieJar() http.CookieJar {
	return c.http.Jar
}

// PostJSON sends body to url with Content-Type application/json and reads
// the whole response body, whatever the status. A non-nil error means the
// request never produced a readable response.
func (c *Client) PostJSON(ctx context.Context, url string, body []byte) (*RequestResult, error) {
	var dnsDone, connDone, tlsDone, wroteReq, firstByte time.Time
	var reused bool

	trace := &httptrace.ClientTrace{
		DNSDone:              func(_ httptrace.DNSDoneInfo) { dnsDone = time.Now() },
		ConnectDone:          func(_, _ string, _ error) { connDone = time.Now() },
		TLSHandshakeDone:     func(_ stdtls.ConnectionState, _ error) { tlsDone = time.Now() },
		WroteRequest:         func(_ httptrace.WroteRequestInfo) { wroteReq = time.Now() },
		GotFirstResponseByte: func() { firstByte = time.Now() },
		GotConn:              func(info httptrace.GotConnInfo) { reused = info.Reused },
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, v := range c.fingerprints.Headers() {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", c.fingerprints.UserAgent())
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	result := &RequestResult{
		StartTime:        start,
		TotalDuration:    time.Since(start),
		StatusCode:       resp.StatusCode,
		Protocol:         resp.Proto,
		ConnectionReused: reused,
		Body:             bodyBytes,
	}
	since := func(t time.Time) time.Duration {
		if t.IsZero() {
			return 0
		}
		return t.Sub(start)
	}
	result.DNSDone = since(dnsDone)
	result.ConnectDone = since(connDone)
	result.TLSHandshakeDone = since(tlsDone)
	result.WroteRequest = since(wroteReq)
	result.GotFirstResponseByte = since(firstByte)

	return result, nil
}

// ProxyURL returns the proxy the client dials through, or "" for direct.
func (c *Client) ProxyURL() string {
	return c.proxyURL
}
