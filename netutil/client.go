// Package netutil provides the HTTP facility handed to plugins and small
// I/O helpers shared by the host.
package netutil

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ClientOptions configures NewHTTPClient.
type ClientOptions struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	UserAgent      string
	Proxy          string
	Logger         *slog.Logger
}

// TLSConfig returns the TLS configuration for plugin HTTP traffic: TLS 1.2
// minimum with AEAD cipher suites only.
func TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},
	}
}

// NewHTTPClient builds the client exposed to plugins: retrying transport,
// hardened TLS, optional proxy and a fixed User-Agent.
func NewHTTPClient(opts ClientOptions) *http.Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = TLSConfig()
	if opts.Proxy != "" {
		if proxyURL, err := url.Parse(opts.Proxy); err == nil {
			base.Proxy = http.ProxyURL(proxyURL)
		} else {
			logger.Warn("ignoring invalid proxy", "proxy", StripCredentials(opts.Proxy), "error", err)
		}
	}

	var rt http.RoundTripper = &RetryTransport{
		Base:   base,
		Policy: RetryPolicy{MaxRetries: opts.MaxRetries, InitialBackoff: opts.InitialBackoff},
		OnRetry: func(ev RetryEvent) {
			logger.Debug("retrying plugin request",
				"attempt", ev.Attempt, "wait", ev.Wait, "status", ev.Status, "error", ev.Err)
		},
	}
	if opts.UserAgent != "" {
		rt = &userAgentTransport{base: rt, agent: opts.UserAgent}
	}

	return &http.Client{Transport: rt, Timeout: opts.Timeout}
}

type userAgentTransport struct {
	base  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(clone)
}

// StripCredentials removes user:password@ from a URL for safe logging.
// Returns the original string if the URL cannot be parsed.
func StripCredentials(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.User = nil
	return parsed.String()
}
