// Package timeouts defines the shared timeout values for the probe and the
// stub server.
package timeouts

import "time"

// HTTPRequest caps a single call to the TCRT auth API.
const HTTPRequest = 10 * time.Second

// ProbeRun caps a whole probe run, including the interactive prompt.
const ProbeRun = 2 * time.Minute

// DatabaseOpen caps opening and pinging the TCRT SQLite file.
const DatabaseOpen = 5 * time.Second

// ReadHeader limits how long the stub server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the stub server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
