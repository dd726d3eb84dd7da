package utils

import "time"

const (
	DefaultBufferSize   = 8 * 1024 // read buffer for stream and chunk bodies
	DefaultWorkers      = 8
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 500 * time.Millisecond
	DefaultProbeTimeout = 10 * time.Second
	DefaultConnTimeout  = 20 * time.Second
	DefaultContentType  = "application/octet-stream"
	DefaultFileName     = "download"
	TempDirName         = ".pdl-temp"
	WorkingSuffix       = ".downloading"
	LogFile             = ".pdl.log"
)

// Browser-identifying agent sent on every request.
const ToolUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"

