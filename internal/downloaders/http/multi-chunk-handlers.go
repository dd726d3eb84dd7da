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

// downloadChunk makes one attempt at a chunk's range. The temp file is
// truncated first, so a retry always rewrites the whole range.
func downloadChunk(ctx context.Context, client utils.HTTPDoer, job *utils.DownloadJob, chunk *utils.ChunkSpec, cfg utils.EngineConfig) error {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tempFile, err := os.OpenFile(chunk.TempFilePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: error opening temp file: %w", ErrChunkFetch, err)
	}
	defer tempFile.Close()

	rangeHeader := fmt.Sprintf("bytes=%d-%d", chunk.StartByte, chunk.EndByte)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, job.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChunkFetch, err)
	}
	req.Header.Set("Range", rangeHeader)
	req.Header.Set("Connection", "keep-alive")
	log.Debug().Str("op", "http/chunk").Int("chunk", chunk.Index).Str("range", rangeHeader).Int("attempt", chunk.RetryCount+1).Msg("Sending range request")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChunkFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("%w: unexpected status code: %d", ErrChunkFetch, resp.StatusCode)
	}
	start, end, _, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChunkFetch, err)
	}
	if start != chunk.StartByte || end != chunk.EndByte {
		return fmt.Errorf("%w: server sent range %d-%d, requested %d-%d", ErrChunkFetch, start, end, chunk.StartByte, chunk.EndByte)
	}

	var reader io.Reader = resp.Body
	var watchdog *idleWatchdog
	if cfg.ReadTimeout > 0 {
		watchdog = newIdleWatchdog(cfg.ReadTimeout, cancel)
		reader = watchdog.wrap(resp.Body)
	}
	defer watchdog.stop()
	// one extra byte is enough to detect an overlong body
	reader = io.LimitReader(reader, chunk.Length()+1)
	written, err := copyBody(reqCtx, tempFile, reader, cfg.BufferSize, func(w int64) {
		job.AddDownloaded(chunk.Account(w))
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChunkFetch, watchdog.explain(err))
	}
	if written != chunk.Length() {
		return fmt.Errorf("%w: size mismatch: expected %d bytes, got %d", ErrChunkFetch, chunk.Length(), written)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrChunkFetch, err)
	}
	return nil
}

// removeChunkFiles deletes every chunk temp file, complete or not.
func removeChunkFiles(chunks []*utils.ChunkSpec) {
	for _, chunk := range chunks {
		if err := utils.RemoveIfExists(chunk.TempFilePath); err != nil {
			log.Warn().Str("op", "http/chunk").Err(err).Str("file", chunk.TempFilePath).Msg("Could not remove chunk file")
		}
	}
}
