package timeouts

import "time"

const (
	Probe         = 300 * time.Millisecond
	PollInterval  = 3 * time.Second
	SecondShort   = 2 * time.Second
	SecondDefault = 10 * time.Second
	SecondLong    = 30 * time.Second

	// GenerateCall bounds a single code-generation request. It is the only
	// step of the pipeline with its own deadline; clone and push rely on
	// the transport's defaults.
	GenerateCall = 2 * time.Minute

	// WorkspaceLinger is how long a finished session's scratch directory
	// stays on disk before the deferred cleanup removes it, so late file
	// reads still succeed.
	WorkspaceLinger = 5 * time.Minute
)
