// Package progress tracks the byte count of a single transfer so the CLI
// can render an upload meter.
package progress

import (
	"fmt"
	"io"
)

// Callback receives the running byte count of a transfer
type Callback func(transferred, total int64)

// Reader wraps an io.Reader and reports cumulative bytes read
type Reader struct {
	reader      io.Reader
	total       int64
	callback    Callback
	transferred int64
}

// NewReader creates a progress-tracking reader. total may be -1 when the
// content length is unknown; the callback still receives the running count.
func NewReader(r io.Reader, total int64, callback Callback) *Reader {
	return &Reader{
		reader:   r,
		total:    total,
		callback: callback,
	}
}

// Read implements io.Reader
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.transferred += int64(n)
		if r.callback != nil {
			r.callback(r.transferred, r.total)
		}
	}
	return n, err
}

// Transferred returns the cumulative byte count
func (r *Reader) Transferred() int64 {
	return r.transferred
}

// Bar renders a fixed-width text progress bar. An unknown total yields the
// running byte count instead of a percentage.
func Bar(transferred, total int64, width int) string {
	if total <= 0 {
		return fmt.Sprintf("%d B", transferred)
	}

	percent := float64(transferred) / float64(total)
	if percent > 1 {
		percent = 1
	}
	filled := int(percent * float64(width))

	bar := make([]byte, width)
	for i := 0; i < width; i++ {
		switch {
		case i < filled:
			bar[i] = '='
		case i == filled:
			bar[i] = '>'
		default:
			bar[i] = ' '
		}
	}

	return fmt.Sprintf("[%s] %5.1f%%", string(bar), percent*100)
}
