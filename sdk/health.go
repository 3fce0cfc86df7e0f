package sdk

import (
	"context"
	"net/http"
	"time"

	"github.com/orcalabs/orcad/internals/timeouts"
)

// ProbeTimeout bounds a single liveness check against the daemon.
const ProbeTimeout = timeouts.Probe

const (
	startupGrace    = 2 * time.Second
	startupAttempts = 6
)

type InfoLogger interface {
	Info(msg string, args ...any)
}

// IsRunning reports whether a daemon answers its health check at
// baseURL.
func IsRunning(baseURL string) bool {
	return IsRunningWithTimeout(baseURL, ProbeTimeout)
}

func IsRunningWithTimeout(baseURL string, timeout time.Duration) bool {
	if baseURL == "" {
		return false
	}
	if timeout <= 0 {
		timeout = ProbeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client := NewClient(
		WithBaseURL(baseURL),
		WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	return client.Health(ctx) == nil
}

// WaitForStart gives a freshly spawned daemon a short grace period,
// then probes it with a doubling pause until it answers or the
// attempts run out.
func WaitForStart(baseURL string, logger InfoLogger) bool {
	time.Sleep(startupGrace)
	pause := time.Second
	for attempt := 1; attempt <= startupAttempts; attempt++ {
		if logger != nil {
			logger.Info("waiting for daemon", "attempt", attempt)
		}
		if IsRunning(baseURL) {
			return true
		}
		time.Sleep(pause)
		pause *= 2
	}
	return false
}
