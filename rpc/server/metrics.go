package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ValentinKolb/sKV/lib/persist"
	"github.com/ValentinKolb/sKV/rpc/action"
	"github.com/ValentinKolb/sKV/rpc/protocol"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
)

// serverMetrics holds the metrics of one server instance. A private set keeps
// several servers in one process (tests) apart.
type serverMetrics struct {
	set *metrics.Set

	connectionsTotal  *metrics.Counter
	queryDuration     *metrics.Histogram
	snapshotsTotal    *metrics.Counter
	snapshotFailures  *metrics.Counter
	snapshotDuration  *metrics.Histogram
	snapshotSizeBytes *metrics.Histogram
}

func newServerMetrics(t transport.IServerTransport) *serverMetrics {
	set := metrics.NewSet()
	set.NewGauge("skv_connections_active", func() float64 {
		return float64(t.ActiveConnections())
	})
	return &serverMetrics{
		set:               set,
		connectionsTotal:  set.NewCounter("skv_connections_total"),
		queryDuration:     set.NewHistogram("skv_query_duration_seconds"),
		snapshotsTotal:    set.NewCounter("skv_snapshots_total"),
		snapshotFailures:  set.NewCounter("skv_snapshot_failures_total"),
		snapshotDuration:  set.NewHistogram("skv_snapshot_duration_seconds"),
		snapshotSizeBytes: set.NewHistogram("skv_snapshot_size_bytes"),
	}
}

// observeQuery records one handled query. Unknown actions share one label so that
// clients cannot create arbitrary series.
func (m *serverMetrics) observeQuery(name string, resp protocol.Response, d time.Duration) {
	if _, ok := action.Lookup(name); !ok {
		name = "unknown"
	}
	m.set.GetOrCreateCounter(fmt.Sprintf(`skv_queries_total{action=%q}`, name)).Inc()
	if resp.IsError() {
		m.set.GetOrCreateCounter(fmt.Sprintf(`skv_query_errors_total{action=%q,code=%q}`, name, resp.Code.String())).Inc()
	}
	m.queryDuration.Update(d.Seconds())
}

// observeSnapshot is installed as persist.Manager.OnSnapshot
func (m *serverMetrics) observeSnapshot(r persist.Result) {
	if r.Err != nil {
		m.snapshotFailures.Inc()
		return
	}
	m.snapshotsTotal.Inc()
	m.snapshotDuration.Update(r.Duration.Seconds())
	m.snapshotSizeBytes.Update(float64(r.Size))
}

// --------------------------------------------------------------------------
// Instrumented connection handler
// --------------------------------------------------------------------------

// instrumentedSession wraps the action session of one connection
type instrumentedSession struct {
	session *action.Session
	metrics *serverMetrics
}

func (h *instrumentedSession) Handle(q protocol.Query) protocol.Response {
	start := time.Now()
	resp := h.session.Handle(q)
	h.metrics.observeQuery(q.Action, resp, time.Since(start))
	return resp
}

// --------------------------------------------------------------------------
// HTTP endpoint
// --------------------------------------------------------------------------

// metricsServer serves the Prometheus text format on /metrics
type metricsServer struct {
	listener net.Listener
	http     *http.Server
}

func newMetricsServer(endpoint string, m *serverMetrics) (*metricsServer, error) {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics on %s: %w", endpoint, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		m.set.WritePrometheus(w)
		metrics.WriteProcessMetrics(w)
	})

	return &metricsServer{
		listener: listener,
		http: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// run serves until ctx is done
func (s *metricsServer) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(s.listener) }()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics endpoint: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
