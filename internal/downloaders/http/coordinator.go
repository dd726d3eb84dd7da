package pdlhttp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tanq16/pdl/internal/utils"
)

const progressInterval = 100 * time.Millisecond

// run drives one task from probing to a terminal state. Temp artifacts are
// gone before the terminal callback fires.
func (e *Engine) run(ctx context.Context, t *Task, haveInfo bool, em *emitter) (Result, error) {
	logger := utils.GetLogger("coordinator").With().Str("url", t.job.URL).Logger()
	result, err := e.execute(ctx, t, haveInfo, em)
	if err != nil {
		t.setState(StateAborted)
		msg := failureMessage(ctx, err)
		logger.Warn().Err(err).Str("state", StateAborted.String()).Msg("Download aborted")
		em.status("Download failed: " + msg)
		em.failure(msg)
		return result, err
	}
	t.setState(StateDone)
	logger.Info().Str("path", result.Path).Int64("bytes", result.Bytes).Str("strategy", result.Strategy.String()).Msg("Download complete")
	em.status("File saved successfully to " + result.Path)
	em.complete(result.Path)
	return result, nil
}

func (e *Engine) execute(ctx context.Context, t *Task, haveInfo bool, em *emitter) (Result, error) {
	job := t.job
	defer e.cleanup(job)

	if !haveInfo {
		t.setState(StateProbing)
		em.status("Checking connection and fetching file info")
		info, err := e.Probe(ctx, job.URL)
		if err != nil && !IsFallback(err) {
			return Result{}, err
		}
		if err != nil {
			em.status("Server does not report a size, progress percentage disabled")
		}
		job.Info = info
	}
	job.OutputPath = utils.ResolveOutputPath(job.OutputPath, job.Info.SuggestedFileName)
	job.WorkingPath = utils.WorkingPath(job.OutputPath)
	result := Result{Path: job.OutputPath, Info: job.Info}

	t.setState(StateStrategySelected)
	result.Strategy = SelectStrategy(job.Info)
	if result.Strategy == StrategyChunked {
		em.status(fmt.Sprintf("Server supports ranges, downloading %s with %d connections", utils.FormatBytes(uint64(job.Info.TotalSize)), e.cfg.Workers))
	} else {
		em.status("Downloading as a single stream")
	}

	if dir := filepath.Dir(job.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return result, fmt.Errorf("error creating output directory: %w", err)
		}
	}

	if job.Info.SizeKnown() {
		need := job.Info.TotalSize
		if result.Strategy == StrategyChunked {
			need *= 2 // chunk files and the assembled file coexist until assembly ends
		}
		if err := utils.CheckFreeSpace(filepath.Dir(job.OutputPath), need); err != nil {
			return result, err
		}
	}

	t.setState(StateFetching)
	stopProgress := em.track(job)
	var err error
	if result.Strategy == StrategyChunked {
		err = e.fetchChunked(ctx, job)
	} else {
		err = PerformSimpleDownload(ctx, e.client, job, e.cfg)
	}
	stopProgress()
	result.Bytes = job.Downloaded.Load()
	if err != nil {
		return result, err
	}

	if result.Strategy == StrategyChunked {
		t.setState(StateAssembling)
		em.status("Merging chunks...")
		if err := AssembleChunks(job.Chunks, job.WorkingPath, job.Info.TotalSize); err != nil {
			return result, err
		}
	}

	t.setState(StateFinalizing)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if err := FinalizeFile(job.WorkingPath, job.OutputPath); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) fetchChunked(ctx context.Context, job *utils.DownloadJob) error {
	tempDir := utils.ChunkTempDir(job.OutputPath, e.cfg.TempDirName)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return fmt.Errorf("error creating temp directory: %w", err)
	}
	chunks, err := PlanChunks(job.Info.TotalSize, e.cfg.Workers, tempDir, filepath.Base(job.OutputPath))
	if err != nil {
		return err
	}
	job.Chunks = chunks
	return PerformMultiDownload(ctx, e.client, job, e.cfg)
}

// cleanup runs on every outcome. After a successful finalize the working
// file no longer exists, so only genuine leftovers are removed.
func (e *Engine) cleanup(job *utils.DownloadJob) {
	removeChunkFiles(job.Chunks)
	if job.OutputPath == "" {
		return
	}
	utils.RemoveIfExists(job.WorkingPath)
	utils.RemoveDirIfEmpty(utils.ChunkTempDir(job.OutputPath, e.cfg.TempDirName))
}

// failureMessage reports a cancellation of the task itself as such. A
// cancelled request inside a still-running task is an ordinary failure.
func failureMessage(ctx context.Context, err error) string {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return "download cancelled"
	}
	return err.Error()
}

// emitter serializes every callback so they arrive in production order no
// matter which goroutine produced them.
type emitter struct {
	mu          sync.Mutex
	cb          utils.Callbacks
	lastPercent int
	lastBytes   int64
}

func newEmitter(cb utils.Callbacks) *emitter {
	return &emitter{cb: cb, lastPercent: -1, lastBytes: -1}
}

func (e *emitter) status(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cb.OnStatus != nil {
		e.cb.OnStatus(msg)
	}
}

func (e *emitter) complete(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cb.OnComplete != nil {
		e.cb.OnComplete(path)
	}
}

func (e *emitter) failure(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cb.OnFailure != nil {
		e.cb.OnFailure(msg)
	}
}

// sample reports the counter if it moved since the last sample. Progress
// fires only when the integer percentage changes.
func (e *emitter) sample(job *utils.DownloadJob) {
	e.mu.Lock()
	defer e.mu.Unlock()
	downloaded := job.Downloaded.Load()
	if downloaded == e.lastBytes {
		return
	}
	e.lastBytes = downloaded
	if e.cb.OnStatus != nil {
		if job.Info.SizeKnown() {
			e.cb.OnStatus(fmt.Sprintf("Downloaded %s / %s", utils.FormatBytes(uint64(downloaded)), utils.FormatBytes(uint64(job.Info.TotalSize))))
		} else {
			e.cb.OnStatus(fmt.Sprintf("Downloaded %s", utils.FormatBytes(uint64(downloaded))))
		}
	}
	if percent := job.Percent(); percent >= 0 && percent != e.lastPercent {
		e.lastPercent = percent
		if e.cb.OnProgress != nil {
			e.cb.OnProgress(percent)
		}
	}
}

// track samples job on a ticker until the returned stop function is called.
// stop takes one last sample so the final count is always reported.
func (e *emitter) track(job *utils.DownloadJob) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				e.sample(job)
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
		e.sample(job)
	}
}
