package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/boxrec/boxrec/internal/logger"
	metricspkg "github.com/boxrec/boxrec/internal/observability/metrics"
)

// Endpoint serves the Prometheus-compatible /metrics endpoint.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	log           logger.Logger
}

// NewEndpoint creates a telemetry endpoint listening on listenAddress.
func NewEndpoint(listenAddress string, m *Metrics, log logger.Logger) (*Endpoint, error) {
	if listenAddress == "" {
		return nil, fmt.Errorf("telemetry listen address is empty")
	}
	if m == nil {
		return nil, fmt.Errorf("telemetry metrics are nil")
	}
	if log == nil {
		log = logger.Global().Module("telemetry")
	}

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	return &Endpoint{
		server:        &http.Server{Addr: listenAddress, Handler: mux, ReadHeaderTimeout: metricspkg.ShutdownTimeout},
		listenAddress: listenAddress,
		metrics:       m,
		log:           log,
	}, nil
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func (e *Endpoint) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return fmt.Errorf("telemetry listen on %s: %w", e.listenAddress, err)
	}
	return e.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (e *Endpoint) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		e.log.Info("telemetry endpoint starting", logger.String("address", ln.Addr().String()))
		errCh <- e.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	e.log.Info("stopping telemetry server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		e.log.Error("telemetry server shutdown error", logger.Error(err))
		return err
	}
	<-errCh
	return nil
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
