package main

import (
	"os"
	"strconv"
	"time"
)

// envString/envInt/envDuration read the tunables spec.md names as
// env vars (POLL_TIMEOUT, LOG_INTERVAL, etc.) — configuration loading
// is explicitly out of the core's scope per spec.md §1, so these live
// at the CLI boundary rather than in the JSON sync document.

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
