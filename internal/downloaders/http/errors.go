package pdlhttp

import (
	"errors"
	"fmt"
)

var (
	ErrProbe          = errors.New("probe failed")
	ErrProbeFallback  = errors.New("server rejected metadata request, size unknown")
	ErrChunkFetch     = errors.New("chunk fetch failed")
	ErrChunkExhausted = errors.New("chunk retries exhausted")
	ErrStreamFetch    = errors.New("stream download failed")
	ErrAssembly       = errors.New("assembling chunks failed")
	ErrFinalize       = errors.New("finalizing download failed")
	ErrEngineBusy     = errors.New("engine already has a download in progress")
)

// ProbeStatusError is returned when the metadata request gets a status code
// that is neither 200 nor 405.
type ProbeStatusError struct {
	StatusCode int
}

func (e *ProbeStatusError) Error() string {
	return fmt.Sprintf("cannot connect, server responded with status %d", e.StatusCode)
}

func (e *ProbeStatusError) Unwrap() error {
	return ErrProbe
}

// ChunkExhaustedError reports a chunk that kept failing after every retry.
// Err holds the failure of the final attempt.
type ChunkExhaustedError struct {
	Index     int
	StartByte int64
	Retries   int
	Err       error
}

func (e *ChunkExhaustedError) Error() string {
	return fmt.Sprintf("chunk %d starting at byte %d failed after %d retries: %v", e.Index, e.StartByte, e.Retries, e.Err)
}

func (e *ChunkExhaustedError) Unwrap() []error {
	return []error{ErrChunkExhausted, e.Err}
}
