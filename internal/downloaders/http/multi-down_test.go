package pdlhttp

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tanq16/pdl/internal/utils"
)

func newChunkJob(t *testing.T, link string, size int64, count int) (*utils.DownloadJob, string) {
	t.Helper()
	dir := t.TempDir()
	tempDir := filepath.Join(dir, utils.TempDirName)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		t.Fatal(err)
	}
	chunks, err := PlanChunks(size, count, tempDir, "out.bin")
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.bin")
	return &utils.DownloadJob{
		URL:         link,
		OutputPath:  out,
		WorkingPath: utils.WorkingPath(out),
		Info:        utils.CapabilityInfo{TotalSize: size, SupportsRange: true},
		Chunks:      chunks,
	}, tempDir
}

func assertChunkFiles(t *testing.T, job *utils.DownloadJob, data []byte) {
	t.Helper()
	for _, c := range job.Chunks {
		got, err := os.ReadFile(c.TempFilePath)
		if err != nil {
			t.Fatalf("chunk %d: %v", c.Index, err)
		}
		if !bytes.Equal(got, data[c.StartByte:c.EndByte+1]) {
			t.Errorf("chunk %d content does not match its range", c.Index)
		}
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("leftover file %s", e.Name())
	}
}

func TestPerformMultiDownload(t *testing.T) {
	data := testData(100_003)
	rs := &rangeServer{data: data}
	server := newRangeServer(t, rs)
	job, _ := newChunkJob(t, server.URL+"/f", int64(len(data)), 8)

	if err := PerformMultiDownload(context.Background(), newTestClient(), job, testConfig()); err != nil {
		t.Fatalf("PerformMultiDownload failed: %v", err)
	}
	assertChunkFiles(t, job, data)
	if got := job.Downloaded.Load(); got != int64(len(data)) {
		t.Errorf("downloaded counter = %d, want %d", got, len(data))
	}
	if rs.rangeRequests.Load() != 8 {
		t.Errorf("server saw %d range requests, want 8", rs.rangeRequests.Load())
	}
}

func TestPerformMultiDownloadRetriesFailedChunk(t *testing.T) {
	data := testData(64_000)
	rs := &rangeServer{data: data}
	server := newRangeServer(t, rs)
	job, _ := newChunkJob(t, server.URL+"/f", int64(len(data)), 4)
	flaky := job.Chunks[2]
	rs.failRange(flaky.StartByte, 2)

	cfg := testConfig()
	if err := PerformMultiDownload(context.Background(), newTestClient(), job, cfg); err != nil {
		t.Fatalf("PerformMultiDownload failed: %v", err)
	}
	assertChunkFiles(t, job, data)
	if flaky.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", flaky.RetryCount)
	}
	if hits := rs.rangeHits(flaky.StartByte); hits != 3 {
		t.Errorf("flaky range requested %d times, want 3", hits)
	}
	if got := job.Downloaded.Load(); got != int64(len(data)) {
		t.Errorf("downloaded counter = %d, want %d", got, len(data))
	}
}

func TestPerformMultiDownloadRetriesBrokenBodies(t *testing.T) {
	tests := []struct {
		name  string
		fault bodyFault
	}{
		{"connection cut mid-body", faultCutMidBody},
		{"body longer than range", faultOverlong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testData(4096)
			rs := &rangeServer{data: data}
			server := newRangeServer(t, rs)
			job, _ := newChunkJob(t, server.URL+"/f", int64(len(data)), 2)
			broken := job.Chunks[0]
			rs.addFault(broken.StartByte, tt.fault)

			if err := PerformMultiDownload(context.Background(), newTestClient(), job, testConfig()); err != nil {
				t.Fatalf("PerformMultiDownload failed: %v", err)
			}
			assertChunkFiles(t, job, data)
			if broken.RetryCount != 1 {
				t.Errorf("RetryCount = %d, want 1", broken.RetryCount)
			}
			if got := job.Downloaded.Load(); got != int64(len(data)) {
				t.Errorf("downloaded counter = %d, want %d", got, len(data))
			}
			if job.Percent() != 100 {
				t.Errorf("Percent = %d, want 100", job.Percent())
			}
		})
	}
}

func TestPerformMultiDownloadExhaustsRetries(t *testing.T) {
	data := testData(64_000)
	rs := &rangeServer{data: data}
	server := newRangeServer(t, rs)
	job, tempDir := newChunkJob(t, server.URL+"/f", int64(len(data)), 4)
	cfg := testConfig()
	broken := job.Chunks[1]
	rs.failRange(broken.StartByte, cfg.MaxRetries+1)

	err := PerformMultiDownload(context.Background(), newTestClient(), job, cfg)
	var exhausted *ChunkExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want ChunkExhaustedError", err)
	}
	if exhausted.Index != broken.Index || exhausted.StartByte != broken.StartByte {
		t.Errorf("error names chunk %d at %d, want %d at %d", exhausted.Index, exhausted.StartByte, broken.Index, broken.StartByte)
	}
	if exhausted.Retries != cfg.MaxRetries {
		t.Errorf("Retries = %d, want %d", exhausted.Retries, cfg.MaxRetries)
	}
	if !errors.Is(err, ErrChunkExhausted) || !errors.Is(err, ErrChunkFetch) {
		t.Errorf("err %v should match ErrChunkExhausted and ErrChunkFetch", err)
	}
	if hits := rs.rangeHits(broken.StartByte); hits != cfg.MaxRetries+1 {
		t.Errorf("broken range requested %d times, want %d", hits, cfg.MaxRetries+1)
	}
	assertEmptyDir(t, tempDir)
}

func TestPerformMultiDownloadRejectsFullResponse(t *testing.T) {
	data := testData(10_000)
	rs := &rangeServer{data: data, noRanges: true}
	server := newRangeServer(t, rs)
	job, tempDir := newChunkJob(t, server.URL+"/f", int64(len(data)), 2)
	cfg := testConfig()
	cfg.MaxRetries = 0

	err := PerformMultiDownload(context.Background(), newTestClient(), job, cfg)
	if !errors.Is(err, ErrChunkExhausted) {
		t.Fatalf("err = %v, want ErrChunkExhausted", err)
	}
	assertEmptyDir(t, tempDir)
}

func TestPerformMultiDownloadCancelled(t *testing.T) {
	data := testData(10_000)
	rs := &rangeServer{data: data, block: make(chan struct{})}
	server := newRangeServer(t, rs)
	defer close(rs.block)
	job, tempDir := newChunkJob(t, server.URL+"/f", int64(len(data)), 4)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- PerformMultiDownload(ctx, newTestClient(), job, testConfig())
	}()
	cancel()
	err := <-errCh
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	assertEmptyDir(t, tempDir)
}

func TestChunkQueueFIFO(t *testing.T) {
	a, b, c := &utils.ChunkSpec{Index: 0}, &utils.ChunkSpec{Index: 1}, &utils.ChunkSpec{Index: 2}
	q := newChunkQueue([]*utils.ChunkSpec{a, b})
	q.push(c)
	if q.len() != 3 {
		t.Fatalf("len = %d, want 3", q.len())
	}
	for _, want := range []*utils.ChunkSpec{a, b, c} {
		got, ok := q.pop()
		if !ok || got != want {
			t.Fatalf("pop = %v, want chunk %d", got, want.Index)
		}
	}
	if _, ok := q.pop(); ok {
		t.Error("pop on empty queue succeeded")
	}
}
