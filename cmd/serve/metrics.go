package serve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// metricsServer exposes the counters of all server roles over HTTP.
//
// Endpoints:
//   - GET /metrics: counters in Prometheus text format
//   - GET /: index page linking to /metrics
type metricsServer struct {
	server       *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
}

// newMetricsServer listens on addr. The server does not serve before Start.
func newMetricsServer(addr string, set *metrics.Set) (*metricsServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics endpoint: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		writeMetrics(w, set)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>csIPC Metrics</title></head>
<body>
    <h1>csIPC Metrics</h1>
    <p><a href="/metrics">/metrics</a> exposes the pipe server counters in Prometheus text format.</p>
</body>
</html>`)
	})

	return &metricsServer{
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		listener: listener,
	}, nil
}

// writeMetrics writes the csIPC counters followed by the process metrics
func writeMetrics(w io.Writer, set *metrics.Set) {
	set.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}

// Addr returns the address the server listens on
func (s *metricsServer) Addr() string {
	return s.listener.Addr().String()
}

// Start serves in the background
func (s *metricsServer) Start() {
	go func() {
		log.Infof("metrics server listening on http://%s/metrics", s.Addr())
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server failed: %v", err)
		}
	}()
}

// Stop shuts the server down gracefully. It is safe to call multiple times.
func (s *metricsServer) Stop() error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
		}
	})
	return shutdownErr
}
