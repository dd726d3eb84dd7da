package utils

import (
	"sync/atomic"
)

// CapabilityInfo is what a probe learned about a remote resource.
// TotalSize is -1 when the size could not be determined.
type CapabilityInfo struct {
	TotalSize         int64
	ContentType       string
	SuggestedFileName string
	SupportsRange     bool
}

// SizeKnown reports whether the probe learned the size. Zero is a known size.
func (c CapabilityInfo) SizeKnown() bool {
	return c.TotalSize >= 0
}

// ChunkSpec is one contiguous byte range of a chunked job. EndByte is inclusive.
// A chunk is owned by whichever worker popped it from the queue.
type ChunkSpec struct {
	Index        int
	StartByte    int64
	EndByte      int64
	TempFilePath string
	RetryCount   int

	// bytes of this range already added to the job counter
	counted int64
}

func (c *ChunkSpec) Length() int64 {
	return c.EndByte - c.StartByte + 1
}

// Account records that the current attempt has written written bytes of this
// range and returns how many of them have not been counted before. Retried
// attempts restart from zero, so only bytes past the previous high-water mark
// are new. Bytes beyond the range are never counted.
func (c *ChunkSpec) Account(written int64) int64 {
	written = min(written, c.Length())
	if written <= c.counted {
		return 0
	}
	delta := written - c.counted
	c.counted = written
	return delta
}

// DownloadJob aggregates everything one download invocation works on.
type DownloadJob struct {
	URL         string
	OutputPath  string
	WorkingPath string
	Info        CapabilityInfo
	Chunks      []*ChunkSpec
	Downloaded  atomic.Int64
}

// AddDownloaded increases the shared counter and returns the new total.
// Negative deltas are ignored so the counter never decreases.
func (j *DownloadJob) AddDownloaded(n int64) int64 {
	if n <= 0 {
		return j.Downloaded.Load()
	}
	return j.Downloaded.Add(n)
}

// Percent derives the 0-100 progress value, or -1 when the size is unknown.
func (j *DownloadJob) Percent() int {
	if !j.Info.SizeKnown() {
		return -1
	}
	if j.Info.TotalSize == 0 {
		return 100
	}
	p := int((j.Downloaded.Load() * 100) / j.Info.TotalSize)
	return min(max(p, 0), 100)
}

// Callbacks is the contract between the engine and whatever presents it.
// Nil members are skipped. Calls are serialized and arrive in the order
// they were produced, from an arbitrary goroutine.
type Callbacks struct {
	OnStatus   func(message string)
	OnProgress func(percent int)
	OnComplete func(destinationPath string)
	OnFailure  func(errorMessage string)
}

type DownloadEntry struct {
	OutputPath string `yaml:"op,omitempty"`
	URL        string `yaml:"link"`
}
