package netutil

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy decides how often and how long a plugin request is retried
// after a transient failure.
type RetryPolicy struct {
	// MaxRetries defaults to 3 when zero. Negative disables retries.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	switch {
	case p.MaxRetries == 0:
		p.MaxRetries = 3
	case p.MaxRetries < 0:
		p.MaxRetries = 0
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = time.Second
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	return p
}

// Backoff returns the wait before retry number attempt+1. A Retry-After
// header on resp, in seconds or as an HTTP date, takes precedence over the
// doubling schedule. The result never exceeds MaxBackoff.
func (p RetryPolicy) Backoff(attempt int, resp *http.Response) time.Duration {
	p = p.withDefaults()
	if resp != nil {
		if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			if d < 0 {
				return p.InitialBackoff
			}
			return min(d, p.MaxBackoff)
		}
	}
	return min(p.InitialBackoff<<attempt, p.MaxBackoff)
}

func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at), true
	}
	return 0, false
}

// IsRetryableStatus reports whether a response status is worth retrying:
// rate limiting and upstream gateway failures.
func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// RetryEvent describes a retry about to happen. Status is zero when the
// attempt failed at the transport level.
type RetryEvent struct {
	Attempt int
	Wait    time.Duration
	Status  int
	Err     error
}

// RetryTransport retries transport errors and retryable statuses under a
// RetryPolicy. Waiting stops as soon as the request context is done.
// Requests whose body cannot be replayed are sent once.
type RetryTransport struct {
	// Base defaults to http.DefaultTransport.
	Base    http.RoundTripper
	Policy  RetryPolicy
	OnRetry func(RetryEvent)
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	policy := t.Policy.withDefaults()
	retries := policy.MaxRetries
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		retries = 0
	}

	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		out, err := replay(req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := base.RoundTrip(out)
		last := attempt >= retries || ctx.Err() != nil
		switch {
		case err != nil && last:
			return nil, err
		case err == nil && (!IsRetryableStatus(resp.StatusCode) || last):
			return resp, nil
		}

		ev := RetryEvent{Attempt: attempt + 1, Err: err}
		if resp != nil {
			ev.Status = resp.StatusCode
			_ = resp.Body.Close()
		}
		ev.Wait = policy.Backoff(attempt, resp)
		if t.OnRetry != nil {
			t.OnRetry(ev)
		}
		if err := sleep(ctx, ev.Wait); err != nil {
			return nil, err
		}
	}
}

// replay clones req for the given attempt, rewinding the body on retries.
func replay(req *http.Request, attempt int) (*http.Request, error) {
	out := req.Clone(req.Context())
	if attempt > 0 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	return out, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
