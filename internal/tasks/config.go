package tasks

import "time"

// Config holds the task queue settings.
type Config struct {
	// Workers is the number of concurrent workers.
	Workers int

	// ReleaseAfter releases tasks stuck in a worker back to the queue.
	ReleaseAfter time.Duration

	// CleanupInterval is how often finished tasks are purged.
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:         2,
		ReleaseAfter:    15 * time.Minute,
		CleanupInterval: time.Hour,
	}
}
