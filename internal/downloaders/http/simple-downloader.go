package pdlhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/pdl/internal/utils"
)

// PerformSimpleDownload streams the whole resource with one GET into the
// job's working file. There is no retry here; any failure ends the job.
func PerformSimpleDownload(ctx context.Context, client utils.HTTPDoer, job *utils.DownloadJob, cfg utils.EngineConfig) error {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outFile, err := os.OpenFile(job.WorkingPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: error creating output file: %w", ErrStreamFetch, err)
	}
	defer outFile.Close()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, job.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: error creating GET request: %w", ErrStreamFetch, err)
	}
	req.Header.Set("Connection", "keep-alive")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: error executing GET request: %w", ErrStreamFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: server responded with status %d", ErrStreamFetch, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	var watchdog *idleWatchdog
	if cfg.ReadTimeout > 0 {
		watchdog = newIdleWatchdog(cfg.ReadTimeout, cancel)
		reader = watchdog.wrap(resp.Body)
	}
	defer watchdog.stop()
	if job.Info.SizeKnown() {
		reader = io.LimitReader(reader, job.Info.TotalSize+1)
	}

	var counted int64
	written, err := copyBody(reqCtx, outFile, reader, cfg.BufferSize, func(w int64) {
		job.AddDownloaded(w - counted)
		counted = w
	})
	if err != nil {
		return fmt.Errorf("%w: error reading response body: %w", ErrStreamFetch, watchdog.explain(err))
	}
	if job.Info.SizeKnown() && written != job.Info.TotalSize {
		return fmt.Errorf("%w: size mismatch: expected %d bytes, got %d", ErrStreamFetch, job.Info.TotalSize, written)
	}
	if err := outFile.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrStreamFetch, err)
	}
	log.Debug().Str("op", "http/simple-downloader").Int64("bytes", written).Msg("Stream download complete")
	return outFile.Close()
}
