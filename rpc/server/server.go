package server

import (
	"context"
	"net"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ValentinKolb/sKV/lib/db"
	"github.com/ValentinKolb/sKV/lib/persist"
	"github.com/ValentinKolb/sKV/rpc/action"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("server")

// NewServer creates a server for the given configuration, listening through the
// given transport. The version is reported by HEYA and SYS INFO.
//
// Usage:
//
//	s := server.NewServer(config, tcp.NewTCPServerTransport(), cmd.Version)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewServer(config common.ServerConfig, transport transport.IServerTransport, version string) *Server {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &Server{
		config:    config,
		transport: transport,
		version:   version,
		metrics:   newServerMetrics(transport),
		ready:     make(chan struct{}),
	}
}

// Server ties the engine, persistence and the transport together and owns their
// lifecycle: recover, serve, ordered teardown.
type Server struct {
	config    common.ServerConfig
	transport transport.IServerTransport
	version   string
	metrics   *serverMetrics

	engine        *db.Engine
	manager       *persist.Manager // nil when persistence is disabled
	metricsServer *metricsServer   // nil when no metrics endpoint is configured

	ready chan struct{}
}

// init rebuilds the engine and opens every listener. Nothing is accepted yet.
func (s *Server) init() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}
	Logger.Infof("Starting sKV %s", s.version)
	Logger.Infof("%s", s.config.String())

	if s.config.PersistenceEnabled() {
		backend, err := persist.ParseBackend(s.config.SnapshotBackend)
		if err != nil {
			return err
		}
		store, err := persist.OpenStore(backend, s.config.DataDir, s.config.SnapshotKeep)
		if err != nil {
			return errors.Wrap(err, "open snapshot store")
		}

		// the engine is fully restored before any connection is accepted
		engine, err := persist.Recover(store, persist.RecoverOptions{
			DefaultKeyspace: s.config.DefaultKeyspace,
			BootstrapFresh:  s.config.BootstrapFresh,
		})
		if err != nil {
			_ = store.Close()
			return errors.Wrap(err, "recover engine")
		}
		s.engine = engine
		s.manager = persist.NewManager(store, engine, s.config.SnapshotInterval)
		s.manager.OnSnapshot = s.metrics.observeSnapshot
	} else {
		Logger.Warningf("No data directory configured, persistence is disabled")
		s.engine = db.New(db.Options{DefaultKeyspace: s.config.DefaultKeyspace})
	}

	// a nil *Manager must not end up in the interface
	var snap action.Snapshotter
	if s.manager != nil {
		snap = s.manager
	}
	dispatcher := action.NewDispatcher(s.engine, snap, s.version)
	s.transport.RegisterHandler(func(connID string) transport.IConnHandler {
		s.metrics.connectionsTotal.Inc()
		return &instrumentedSession{session: dispatcher.NewSession(), metrics: s.metrics}
	})

	if s.config.MetricsEndpoint != "" {
		ms, err := newMetricsServer(s.config.MetricsEndpoint, s.metrics)
		if err != nil {
			return s.abort(err)
		}
		s.metricsServer = ms
	}

	if err := s.transport.Listen(s.config); err != nil {
		if s.metricsServer != nil {
			_ = s.metricsServer.listener.Close()
		}
		return s.abort(err)
	}
	return nil
}

// abort releases the snapshot store when startup fails after recovery. No snapshot
// is written, the engine never served a query.
func (s *Server) abort(err error) error {
	if s.manager != nil {
		if cerr := s.manager.Discard(); cerr != nil {
			Logger.Errorf("failed to close snapshot store: %v", cerr)
		}
	}
	return err
}

// Serve starts the server and blocks until ctx is cancelled or a component fails.
// On return the listener is closed, every connection has finished and the final
// snapshot has been written. An error means the process must exit non zero: the
// snapshot could not be recovered or the final snapshot failed.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.init(); err != nil {
		return err
	}
	close(s.ready)
	Logger.Infof("sKV is ready on %s", s.transport.Addr())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.transport.Serve()
	})

	if s.manager != nil {
		g.Go(func() error {
			return s.manager.Run(gctx)
		})
	}

	if s.metricsServer != nil {
		g.Go(func() error {
			return s.metricsServer.run(gctx)
		})
	}

	// teardown runs once the context is cancelled or any task failed
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

// shutdown stops accepting, waits for the connections and writes the final snapshot
func (s *Server) shutdown() error {
	Logger.Infof("Shutting down")

	if err := s.transport.Shutdown(); err != nil {
		Logger.Warningf("Transport shutdown: %v", err)
	}

	if s.manager == nil {
		return nil
	}
	// the queries have finished, the snapshot sees every acknowledged write
	if err := s.manager.Close(context.Background()); err != nil {
		return errors.Wrap(err, "final snapshot")
	}
	Logger.Infof("Final snapshot written")
	return nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Ready is closed once the server accepts connections
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listener address, valid after Ready
func (s *Server) Addr() net.Addr {
	return s.transport.Addr()
}

// MetricsAddr returns the metrics endpoint address, nil if disabled
func (s *Server) MetricsAddr() net.Addr {
	if s.metricsServer == nil {
		return nil
	}
	return s.metricsServer.listener.Addr()
}

// Engine returns the engine, valid after Ready
func (s *Server) Engine() *db.Engine {
	return s.engine
}
