package pdlhttp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/pdl/internal/utils"
	"golang.org/x/sync/errgroup"
)

// chunkQueue is the FIFO workers pull from. A chunk is in the queue or held
// by exactly one worker, never both.
type chunkQueue struct {
	mu    sync.Mutex
	items []*utils.ChunkSpec
}

func newChunkQueue(chunks []*utils.ChunkSpec) *chunkQueue {
	items := make([]*utils.ChunkSpec, len(chunks))
	copy(items, chunks)
	return &chunkQueue{items: items}
}

func (q *chunkQueue) push(chunk *utils.ChunkSpec) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, chunk)
}

func (q *chunkQueue) pop() (*utils.ChunkSpec, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	chunk := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return chunk, true
}

func (q *chunkQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PerformMultiDownload fetches every chunk of job with cfg.Workers parallel
// workers. It returns nil only when every chunk file holds its full range.
// On any terminal failure or cancellation all chunk files are removed and
// the first error is returned once every worker has stopped.
func PerformMultiDownload(ctx context.Context, client utils.HTTPDoer, job *utils.DownloadJob, cfg utils.EngineConfig) error {
	if len(job.Chunks) == 0 {
		return errors.New("no chunks to download")
	}
	queue := newChunkQueue(job.Chunks)
	g, gctx := errgroup.WithContext(ctx)
	workers := min(cfg.Workers, len(job.Chunks))
	for id := range workers {
		g.Go(func() error {
			return chunkWorker(gctx, id, client, job, queue, cfg)
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		removeChunkFiles(job.Chunks)
		return err
	}
	return nil
}

func chunkWorker(ctx context.Context, id int, client utils.HTTPDoer, job *utils.DownloadJob, queue *chunkQueue, cfg utils.EngineConfig) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, ok := queue.pop()
		if !ok {
			return nil
		}
		err := downloadChunk(ctx, client, job, chunk, cfg)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if chunk.RetryCount >= cfg.MaxRetries {
			log.Error().Str("op", "http/pool").Int("worker", id).Int("chunk", chunk.Index).Err(err).Msg("Chunk failed after all retries")
			return &ChunkExhaustedError{
				Index:     chunk.Index,
				StartByte: chunk.StartByte,
				Retries:   chunk.RetryCount,
				Err:       err,
			}
		}
		chunk.RetryCount++
		log.Warn().Str("op", "http/pool").Int("worker", id).Int("chunk", chunk.Index).Int64("start", chunk.StartByte).Int("retry", chunk.RetryCount).Err(err).Msg("Chunk failed, requeueing")
		queue.push(chunk)
		if err := sleepContext(ctx, cfg.RetryBackoff); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
