package api

import (
	"log/slog"
	"time"
)

// HTTPServerConfig configures the device identity HTTP server.
type HTTPServerConfig struct {
	ListenAddr string

	// MetricsAddr is where Prometheus metrics are served. Empty disables the metrics listener.
	MetricsAddr string

	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is how long /drain waits before reporting the drain period complete,
	// giving load balancers time to notice the readiness change.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds how long Shutdown waits for in-flight requests.
	GracefulShutdownDuration time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}
