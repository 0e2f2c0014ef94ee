// Package constants defines application-wide constants and version information.
package constants

import (
	"runtime"
	"time"
)

// Version holds the application version information
const Version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

// Service defaults
const (
	DefaultListenAddr      = "0.0.0.0"
	DefaultRESTPort        = 8080
	DefaultGRPCPort        = 9090
	DefaultShutdownTimeout = 10 * time.Second
	DefaultAnalysisTimeout = 10 * time.Minute
	DefaultTileScale       = 1
	DefaultWorkers         = 0 // GOMAXPROCS
)
