// Package pdlhttp probes and downloads a single HTTP resource, in parallel
// ranges when the server allows it, and only ever replaces the destination
// by renaming a finished temp file over it.
package pdlhttp

import (
	"context"
	"sync/atomic"

	"github.com/tanq16/pdl/internal/utils"
)

type State int32

const (
	StateIdle State = iota
	StateProbing
	StateStrategySelected
	StateFetching
	StateAssembling
	StateFinalizing
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateStrategySelected:
		return "strategy-selected"
	case StateFetching:
		return "fetching"
	case StateAssembling:
		return "assembling"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

type Strategy int

const (
	StrategySingle Strategy = iota
	StrategyChunked
)

func (s Strategy) String() string {
	if s == StrategyChunked {
		return "chunked"
	}
	return "single-stream"
}

// SelectStrategy picks parallel range requests only when the server
// advertises ranges and the size is known and non-zero.
func SelectStrategy(info utils.CapabilityInfo) Strategy {
	if info.SupportsRange && info.TotalSize > 0 {
		return StrategyChunked
	}
	return StrategySingle
}

// Result describes a finished download.
type Result struct {
	Path     string
	Bytes    int64
	Strategy Strategy
	Info     utils.CapabilityInfo
}

// Task is one running download. It is created by Engine.Start and cannot be
// restarted.
type Task struct {
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
	job    *utils.DownloadJob
	result Result
	err    error
}

func (t *Task) setState(s State) {
	t.state.Store(int32(s))
}

func (t *Task) State() State {
	return State(t.state.Load())
}

// Cancel stops the download. Cleanup runs exactly as for a failure.
func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task reaches Done or Aborted.
func (t *Task) Wait() (Result, error) {
	<-t.done
	return t.result, t.err
}

// BytesDownloaded samples the shared counter of the job.
func (t *Task) BytesDownloaded() int64 {
	return t.job.Downloaded.Load()
}

// Engine owns the long-lived HTTP clients and runs at most one download at
// a time.
type Engine struct {
	cfg         utils.EngineConfig
	probeClient utils.HTTPDoer
	client      utils.HTTPDoer
	busy        atomic.Bool
}

func NewEngine(cfg utils.EngineConfig) *Engine {
	cfg = cfg.Normalize()
	return &Engine{
		cfg: cfg,
		probeClient: utils.NewHTTPClient(utils.HTTPClientConfig{
			ConnectTimeout: cfg.ProbeTimeout,
			UserAgent:      cfg.UserAgent,
		}),
		client: utils.NewHTTPClient(utils.HTTPClientConfig{
			ConnectTimeout: cfg.ConnectTimeout,
			UserAgent:      cfg.UserAgent,
			HighThreadMode: cfg.Workers > 5,
		}),
	}
}

func (e *Engine) Config() utils.EngineConfig {
	return e.cfg
}

// Probe runs the capability probe with the engine's probe timeout.
func (e *Engine) Probe(ctx context.Context, link string) (utils.CapabilityInfo, error) {
	return Probe(ctx, e.probeClient, link, e.cfg.ProbeTimeout)
}

// Start launches a download in the background and returns immediately.
// With a nil info the task probes first. An empty outputPath is replaced
// by the suggested file name. Outcomes are delivered through cb and Wait.
func (e *Engine) Start(ctx context.Context, link, outputPath string, info *utils.CapabilityInfo, cb utils.Callbacks) (*Task, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrEngineBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
		job:    &utils.DownloadJob{URL: link, OutputPath: outputPath},
	}
	if info != nil {
		t.job.Info = *info
	}
	go func() {
		defer close(t.done)
		defer e.busy.Store(false)
		defer cancel()
		t.result, t.err = e.run(ctx, t, info != nil, newEmitter(cb))
	}()
	return t, nil
}

// Download is Start followed by Wait.
func (e *Engine) Download(ctx context.Context, link, outputPath string, info *utils.CapabilityInfo, cb utils.Callbacks) (Result, error) {
	t, err := e.Start(ctx, link, outputPath, info, cb)
	if err != nil {
		return Result{}, err
	}
	return t.Wait()
}

// Close releases idle connections.
func (e *Engine) Close() {
	for _, c := range []utils.HTTPDoer{e.probeClient, e.client} {
		if hc, ok := c.(*utils.HTTPClient); ok {
			hc.Close()
		}
	}
}
