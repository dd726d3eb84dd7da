package utils

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds the tunables of a download engine. Zero values are
// replaced by defaults in Normalize.
type EngineConfig struct {
	Workers        int           `yaml:"workers"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"` // idle time allowed between body reads, 0 disables
	BufferSize     int           `yaml:"buffer_size"`
	UserAgent      string        `yaml:"user_agent"`
	TempDirName    string        `yaml:"temp_dir_name"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:        DefaultWorkers,
		MaxRetries:     DefaultMaxRetries,
		RetryBackoff:   DefaultRetryBackoff,
		ProbeTimeout:   DefaultProbeTimeout,
		ConnectTimeout: DefaultConnTimeout,
		BufferSize:     DefaultBufferSize,
		UserAgent:      ToolUserAgent,
		TempDirName:    TempDirName,
	}
}

// Normalize fills unset fields with defaults. MaxRetries may legitimately be
// zero, so only negative values are reset.
func (c EngineConfig) Normalize() EngineConfig {
	d := DefaultEngineConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.ReadTimeout < 0 {
		c.ReadTimeout = 0
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.TempDirName == "" {
		c.TempDirName = d.TempDirName
	}
	return c
}

// LoadConfig reads a YAML config file on top of the defaults. A missing
// path returns the defaults unchanged.
func LoadConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config file: %w", err)
	}
	return cfg.Normalize(), nil
}

// ReadDownloadList parses a batch file of `link`/`op` entries.
func ReadDownloadList(path string) ([]DownloadEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading batch file: %w", err)
	}
	var entries []DownloadEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error parsing batch file: %w", err)
	}
	valid := entries[:0]
	for _, e := range entries {
		if e.URL != "" {
			valid = append(valid, e)
		}
	}
	return valid, nil
}
