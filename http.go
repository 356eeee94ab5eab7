package pluginhost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/stranslate-dev/stranslate-plugin-host/netutil"
)

// HTTPRequest is an outbound request issued on behalf of a plugin.
type HTTPRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`

	// Timeout in milliseconds. Zero keeps the host default.
	Timeout int `json:"timeout_ms,omitempty"`
	// FollowRedirects defaults to true.
	FollowRedirects *bool `json:"follow_redirects,omitempty"`
	// MaxRedirects of zero keeps the host default.
	MaxRedirects int `json:"max_redirects,omitempty"`
}

// HTTPResponse is the outcome of an HTTPRequest. Exactly one of Error and
// StatusCode is meaningful.
type HTTPResponse struct {
	StatusCode    int                 `json:"status_code"`
	Proto         string              `json:"proto,omitempty"`
	Headers       map[string][]string `json:"headers,omitempty"`
	Body          []byte              `json:"body,omitempty"`
	BodyTruncated bool                `json:"body_truncated,omitempty"`
	LatencyMs     int64               `json:"latency_ms,omitempty"`
	Error         *HTTPError          `json:"error,omitempty"`
}

// Error codes reported in HTTPError.Code.
const (
	HTTPErrInvalidRequest    = "INVALID_REQUEST"
	HTTPErrTimeout           = "TIMEOUT"
	HTTPErrTooManyRedirects  = "TOO_MANY_REDIRECTS"
	HTTPErrHostNotFound      = "HOST_NOT_FOUND"
	HTTPErrConnectionRefused = "CONNECTION_REFUSED"
	HTTPErrReadBody          = "READ_BODY_FAILED"
	HTTPErrRequestFailed     = "REQUEST_FAILED"
)

// HTTPError is a request failure in a form a plugin can act on.
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

var errRedirectLimit = errors.New("redirect limit reached")

// httpPolicy holds the host-side limits of plugin requests. A negative
// redirects value disables following redirects.
type httpPolicy struct {
	timeout     time.Duration
	redirects   int
	maxBodySize int64
}

// HTTPOption adjusts the host-side limits of plugin requests.
type HTTPOption func(*httpPolicy)

// WithHTTPRequestTimeout sets the default request timeout.
func WithHTTPRequestTimeout(d time.Duration) HTTPOption {
	return func(p *httpPolicy) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithHTTPMaxRedirects sets how many redirects are followed by default.
func WithHTTPMaxRedirects(n int) HTTPOption {
	return func(p *httpPolicy) {
		if n >= 0 {
			p.redirects = n
		}
	}
}

// WithHTTPMaxBodySize caps the response body handed back to the plugin.
func WithHTTPMaxBodySize(size int64) HTTPOption {
	return func(p *httpPolicy) {
		if size > 0 {
			p.maxBodySize = size
		}
	}
}

// PerformHTTPRequest performs req with client, which is normally the plugin
// context's HTTP facility. Failures are reported in the response, never as
// a Go error, so the result can be handed straight back to a guest.
func PerformHTTPRequest(ctx context.Context, client *http.Client, req HTTPRequest, opts ...HTTPOption) HTTPResponse {
	p := httpPolicy{timeout: 30 * time.Second, redirects: 10, maxBodySize: 10 << 20}
	for _, opt := range opts {
		opt(&p)
	}
	if req.Timeout > 0 {
		p.timeout = time.Duration(req.Timeout) * time.Millisecond
	}
	if req.MaxRedirects > 0 {
		p.redirects = req.MaxRedirects
	}
	if req.FollowRedirects != nil && !*req.FollowRedirects {
		p.redirects = -1
	}

	if req.URL == "" {
		return HTTPResponse{Error: &HTTPError{Code: HTTPErrInvalidRequest, Message: "URL is required"}}
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return HTTPResponse{Error: &HTTPError{Code: HTTPErrInvalidRequest, Message: err.Error()}}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := p.client(client).Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return HTTPResponse{
			LatencyMs: latency.Milliseconds(),
			Error:     &HTTPError{Code: classify(ctx, err), Message: err.Error()},
		}
	}
	defer func() { _ = resp.Body.Close() }()

	return readHTTPResponse(resp, latency, p.maxBodySize)
}

// client returns a shallow copy of c carrying the redirect policy. The
// transport is shared.
func (p httpPolicy) client(c *http.Client) *http.Client {
	out := *c
	limit := p.redirects
	out.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if limit < 0 {
			return http.ErrUseLastResponse
		}
		if len(via) > limit {
			return fmt.Errorf("%w after %d hops", errRedirectLimit, limit)
		}
		return nil
	}
	return &out
}

// classify maps a transport failure to an HTTPError code.
func classify(ctx context.Context, err error) string {
	var (
		dnsErr *net.DNSError
		netErr net.Error
	)
	switch {
	case errors.Is(err, errRedirectLimit):
		return HTTPErrTooManyRedirects
	case errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return HTTPErrTimeout
	case errors.As(err, &dnsErr):
		return HTTPErrHostNotFound
	case errors.Is(err, syscall.ECONNREFUSED):
		return HTTPErrConnectionRefused
	default:
		return HTTPErrRequestFailed
	}
}

// readHTTPResponse reads the body up to maxBodySize. A larger body is
// returned truncated and flagged.
func readHTTPResponse(resp *http.Response, latency time.Duration, maxBodySize int64) HTTPResponse {
	out := HTTPResponse{
		StatusCode: resp.StatusCode,
		Proto:      resp.Proto,
		Headers:    resp.Header,
		LatencyMs:  latency.Milliseconds(),
	}
	body, err := io.ReadAll(netutil.NewLimitedReader(resp.Body, maxBodySize))
	switch {
	case err == nil:
		out.Body = body
	case errors.Is(err, netutil.ErrSizeLimitExceeded):
		out.Body = body
		out.BodyTruncated = true
	default:
		out.Error = &HTTPError{Code: HTTPErrReadBody, Message: err.Error()}
	}
	return out
}
