package pdlhttp

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tanq16/pdl/internal/utils"
)

// rangeServer serves data with optional range support and injectable
// per-range failures.
type rangeServer struct {
	data        []byte
	noRanges    bool
	headStatus  int
	disposition string
	contentType string
	noLength    bool // plain GETs are sent chunked, without Content-Length
	block       chan struct{} // GET handlers wait on this when set

	mu       sync.Mutex
	failures map[int64]int // remaining failures keyed by range start
	faults   map[int64][]bodyFault
	hits     map[int64]int

	rangeRequests atomic.Int32
	plainRequests atomic.Int32
}

// bodyFault misbehaves after a valid 206 header has been sent.
type bodyFault int

const (
	faultCutMidBody bodyFault = iota // close the connection halfway through the body
	faultOverlong                    // send the range plus extra bytes, no Content-Length
)

func newRangeServer(t *testing.T, rs *rangeServer) *httptest.Server {
	t.Helper()
	if rs.failures == nil {
		rs.failures = map[int64]int{}
	}
	rs.hits = map[int64]int{}
	rs.faults = map[int64][]bodyFault{}
	server := httptest.NewServer(rs)
	t.Cleanup(server.Close)
	return server
}

func (rs *rangeServer) failRange(start int64, times int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.failures[start] = times
}

// addFault queues a body fault for the next request of the range at start.
func (rs *rangeServer) addFault(start int64, fault bodyFault) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.faults[start] = append(rs.faults[start], fault)
}

func (rs *rangeServer) rangeHits(start int64) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.hits[start]
}

func (rs *rangeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if rs.disposition != "" {
		w.Header().Set("Content-Disposition", rs.disposition)
	}
	if rs.contentType != "" {
		w.Header().Set("Content-Type", rs.contentType)
	}
	if r.Method == http.MethodHead {
		if rs.headStatus != 0 && rs.headStatus != http.StatusOK {
			w.WriteHeader(rs.headStatus)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(rs.data)))
		if !rs.noRanges {
			w.Header().Set("Accept-Ranges", "bytes")
		}
		return
	}
	if rs.block != nil {
		select {
		case <-rs.block:
		case <-r.Context().Done():
			return
		}
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" || rs.noRanges {
		rs.plainRequests.Add(1)
		if rs.noLength {
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
		} else {
			w.Header().Set("Content-Length", strconv.Itoa(len(rs.data)))
		}
		w.Write(rs.data)
		return
	}
	rs.rangeRequests.Add(1)
	spec := strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.Split(spec, "-")
	start, _ := strconv.ParseInt(parts[0], 10, 64)
	end, _ := strconv.ParseInt(parts[1], 10, 64)
	if end >= int64(len(rs.data)) {
		end = int64(len(rs.data)) - 1
	}

	rs.mu.Lock()
	rs.hits[start]++
	fail := rs.failures[start] > 0
	if fail {
		rs.failures[start]--
	}
	var fault *bodyFault
	if queued := rs.faults[start]; !fail && len(queued) > 0 {
		f := queued[0]
		fault = &f
		rs.faults[start] = queued[1:]
	}
	rs.mu.Unlock()
	if fail {
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(rs.data)))
	body := rs.data[start : end+1]
	if fault != nil {
		switch *fault {
		case faultCutMidBody:
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(http.StatusPartialContent)
			w.Write(body[:len(body)/2])
			w.(http.Flusher).Flush()
			if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
				conn.Close()
			}
		case faultOverlong:
			w.WriteHeader(http.StatusPartialContent)
			w.(http.Flusher).Flush()
			w.Write(body)
			w.Write(bytes.Repeat([]byte{0xAA}, 3000))
		}
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(rs.data[start : end+1])
}

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte((i * 31) % 251)
	}
	return data
}

func testConfig() utils.EngineConfig {
	cfg := utils.DefaultEngineConfig()
	cfg.Workers = 4
	cfg.RetryBackoff = time.Millisecond
	cfg.BufferSize = 1024
	return cfg
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func newMuxServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}
