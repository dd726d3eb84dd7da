package pdlhttp

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tanq16/pdl/internal/utils"
)

func newStreamJob(t *testing.T, link string, size int64) *utils.DownloadJob {
	t.Helper()
	out := filepath.Join(t.TempDir(), "stream.bin")
	return &utils.DownloadJob{
		URL:         link,
		OutputPath:  out,
		WorkingPath: utils.WorkingPath(out),
		Info:        utils.CapabilityInfo{TotalSize: size},
	}
}

func TestPerformSimpleDownload(t *testing.T) {
	data := testData(50_000)
	rs := &rangeServer{data: data, noRanges: true}
	server := newRangeServer(t, rs)
	job := newStreamJob(t, server.URL+"/f", int64(len(data)))

	if err := PerformSimpleDownload(context.Background(), newTestClient(), job, testConfig()); err != nil {
		t.Fatalf("PerformSimpleDownload failed: %v", err)
	}
	got, err := os.ReadFile(job.WorkingPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("working file does not match served data")
	}
	if job.Downloaded.Load() != int64(len(data)) {
		t.Errorf("downloaded counter = %d, want %d", job.Downloaded.Load(), len(data))
	}
	if _, err := os.Stat(job.OutputPath); !os.IsNotExist(err) {
		t.Error("destination written before finalize")
	}
}

func TestPerformSimpleDownloadUnknownSize(t *testing.T) {
	data := testData(20_000)
	rs := &rangeServer{data: data, noRanges: true, noLength: true}
	server := newRangeServer(t, rs)
	job := newStreamJob(t, server.URL+"/f", -1)

	if err := PerformSimpleDownload(context.Background(), newTestClient(), job, testConfig()); err != nil {
		t.Fatalf("PerformSimpleDownload failed: %v", err)
	}
	if job.Downloaded.Load() != int64(len(data)) {
		t.Errorf("downloaded counter = %d, want %d", job.Downloaded.Load(), len(data))
	}
	if job.Percent() != -1 {
		t.Errorf("Percent = %d for unknown size, want -1", job.Percent())
	}
}

func TestPerformSimpleDownloadDoesNotRetry(t *testing.T) {
	var hits atomic.Int32
	server := newMuxServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	job := newStreamJob(t, server.URL+"/f", 100)

	err := PerformSimpleDownload(context.Background(), newTestClient(), job, testConfig())
	if !errors.Is(err, ErrStreamFetch) {
		t.Fatalf("err = %v, want ErrStreamFetch", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want exactly 1", hits.Load())
	}
}

func TestPerformSimpleDownloadSizeMismatch(t *testing.T) {
	data := testData(1000)
	rs := &rangeServer{data: data, noRanges: true}
	server := newRangeServer(t, rs)
	job := newStreamJob(t, server.URL+"/f", 2000)

	err := PerformSimpleDownload(context.Background(), newTestClient(), job, testConfig())
	if !errors.Is(err, ErrStreamFetch) {
		t.Fatalf("err = %v, want ErrStreamFetch", err)
	}
}

func TestPerformSimpleDownloadReadTimeout(t *testing.T) {
	server := newMuxServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	job := newStreamJob(t, server.URL+"/f", 100)
	cfg := testConfig()
	cfg.ReadTimeout = 50 * time.Millisecond

	err := PerformSimpleDownload(context.Background(), newTestClient(), job, cfg)
	if !errors.Is(err, ErrStreamFetch) {
		t.Fatalf("err = %v, want ErrStreamFetch", err)
	}
	if job.Downloaded.Load() != int64(len("partial")) {
		t.Errorf("downloaded counter = %d, want %d", job.Downloaded.Load(), len("partial"))
	}
}

func TestPerformSimpleDownloadZeroSizeMismatch(t *testing.T) {
	rs := &rangeServer{data: []byte("unexpected"), noRanges: true}
	server := newRangeServer(t, rs)
	job := newStreamJob(t, server.URL+"/f", 0)

	err := PerformSimpleDownload(context.Background(), newTestClient(), job, testConfig())
	if !errors.Is(err, ErrStreamFetch) {
		t.Fatalf("err = %v, want ErrStreamFetch for a body on a zero-size resource", err)
	}
}
