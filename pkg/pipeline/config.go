package pipeline

import (
	"fmt"
	"runtime"
)

// Config controls throttling and parallelism.
//
// Workers run detection concurrently, but a detector may serialize part of
// the work: the local YOLO pose model decodes frames in parallel and runs one
// forward pass at a time. Extra workers then only overlap decoding, so with
// the camera source there is little gain above two. The remote source
// decodes JSON and scales with Workers.
type Config struct {
	AnalyzeEvery int `json:"analyze_every" yaml:"analyze_every"` // Analyze one of every N captured frames
	Workers      int `json:"workers" yaml:"workers"`             // Parallel detect+extract workers
	QueueSize    int `json:"queue_size" yaml:"queue_size"`       // Pending analysis jobs before frames are dropped
}

// DefaultConfig analyzes every 4th frame with up to four workers.
func DefaultConfig() Config {
	workers := runtime.NumCPU()
	if workers > 4 {
		workers = 4
	}
	return Config{
		AnalyzeEvery: 4,
		Workers:      workers,
		QueueSize:    8,
	}
}

// Validate checks the pipeline settings.
func (c Config) Validate() error {
	if c.AnalyzeEvery < 1 {
		return fmt.Errorf("pipeline: analyze_every must be >= 1, got %d", c.AnalyzeEvery)
	}
	if c.Workers < 1 {
		return fmt.Errorf("pipeline: workers must be >= 1, got %d", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("pipeline: queue_size must be >= 1, got %d", c.QueueSize)
	}
	return nil
}
