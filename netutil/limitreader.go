package netutil

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// ErrSizeLimitExceeded matches every SizeLimitError.
var ErrSizeLimitExceeded = errors.New("size limit exceeded")

// SizeLimitError reports a stream that ran past its byte budget.
type SizeLimitError struct {
	Limit int64
	Read  int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%s: read %d bytes, limit is %s", ErrSizeLimitExceeded, e.Read, FormatSize(e.Limit))
}

// Is implements error matching for errors.Is() checks.
func (e *SizeLimitError) Is(target error) bool {
	return target == ErrSizeLimitExceeded
}

// LimitedReader reads at most a fixed number of bytes from R. Unlike
// io.LimitReader it fails loudly: a stream of exactly Limit bytes reads
// cleanly, and the first byte beyond it yields a *SizeLimitError.
type LimitedReader struct {
	R         io.Reader
	Limit     int64
	remaining int64
	read      int64
}

// NewLimitedReader wraps r with a budget of limit bytes.
func NewLimitedReader(r io.Reader, limit int64) *LimitedReader {
	return &LimitedReader{R: r, Limit: limit, remaining: limit}
}

// Read implements io.Reader.
func (l *LimitedReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if l.remaining <= 0 {
		return 0, l.probe()
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.R.Read(p)
	l.remaining -= int64(n)
	l.read += int64(n)
	return n, err
}

// probe reads one byte past the budget to tell "exactly at the limit" from
// "over it".
func (l *LimitedReader) probe() error {
	var one [1]byte
	n, err := l.R.Read(one[:])
	if n > 0 {
		return &SizeLimitError{Limit: l.Limit, Read: l.read + int64(n)}
	}
	return err
}

// BytesRead returns the number of bytes delivered so far.
func (l *LimitedReader) BytesRead() int64 {
	return l.read
}

// FormatSize renders a byte count for log and error messages, e.g. "1.5 KiB".
func FormatSize(n int64) string {
	if n < 0 {
		return fmt.Sprintf("%d B", n)
	}
	return humanize.IBytes(uint64(n))
}
