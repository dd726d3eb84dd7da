package pdlhttp

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// copyBody streams src into dst through a fixed buffer, checking ctx before
// every read and reporting the running total after every write.
func copyBody(ctx context.Context, dst io.Writer, src io.Reader, bufSize int, onWrite func(written int64)) (int64, error) {
	buffer := make([]byte, bufSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		bytesRead, readErr := src.Read(buffer)
		if bytesRead > 0 {
			if _, writeErr := dst.Write(buffer[:bytesRead]); writeErr != nil {
				return written, fmt.Errorf("error writing to file: %w", writeErr)
			}
			written += int64(bytesRead)
			if onWrite != nil {
				onWrite(written)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}

// idleWatchdog cancels a request when no body bytes arrive for timeout.
type idleWatchdog struct {
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func newIdleWatchdog(timeout time.Duration, cancel context.CancelFunc) *idleWatchdog {
	w := &idleWatchdog{timeout: timeout}
	w.timer = time.AfterFunc(timeout, func() {
		w.fired.Store(true)
		cancel()
	})
	return w
}

func (w *idleWatchdog) wrap(r io.Reader) io.Reader {
	return readerFunc(func(p []byte) (int, error) {
		n, err := r.Read(p)
		if n > 0 {
			w.timer.Reset(w.timeout)
		}
		return n, err
	})
}

func (w *idleWatchdog) stop() {
	if w == nil {
		return
	}
	w.timer.Stop()
}

// explain replaces the cancellation error caused by the watchdog with a
// timeout message. Other errors pass through. Safe on a nil watchdog.
func (w *idleWatchdog) explain(err error) error {
	if w != nil && err != nil && w.fired.Load() {
		return fmt.Errorf("no data received for %s: %w", w.timeout, err)
	}
	return err
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

// parseContentRange splits "bytes start-end/total". total is -1 for "*".
func parseContentRange(header string) (start, end, total int64, err error) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(strings.ToLower(header), "bytes ") {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	spec := strings.TrimSpace(header[len("bytes "):])
	rangePart, totalPart, ok := strings.Cut(spec, "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	startStr, endStr, ok := strings.Cut(rangePart, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	if start, err = strconv.ParseInt(strings.TrimSpace(startStr), 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	if end, err = strconv.ParseInt(strings.TrimSpace(endStr), 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	total = -1
	if t := strings.TrimSpace(totalPart); t != "*" {
		if total, err = strconv.ParseInt(t, 10, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
		}
	}
	return start, end, total, nil
}
