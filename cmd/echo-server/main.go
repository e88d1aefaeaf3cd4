// Command echo-server wires the buffer allocator, executor group,
// pipeline, and transport packages into a minimal TCP echo service: it
// exists to exercise the framework end to end, accepting connections
// one goroutine per socket.
package main

import (
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ssungk/netpipe/buffer"
	"github.com/ssungk/netpipe/config"
	"github.com/ssungk/netpipe/executor"
	"github.com/ssungk/netpipe/metrics"
	"github.com/ssungk/netpipe/pipeline"
	"github.com/ssungk/netpipe/transport"
)

func main() {
	cfg := config.LoadOrDefault()

	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(cfg.Logging.Level))
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	m := metrics.New(prometheus.DefaultRegisterer)
	go serveMetrics(logger)

	group := executor.NewLoopGroup(cfg.Executor.Loops, cfg.Executor.QueueDepth)
	defer group.Stop()

	listener, err := net.Listen("tcp", ":9000")
	if err != nil {
		logger.Error("listen failed", "error", err)
		os.Exit(1)
	}
	logger.Info("echo-server listening", "addr", listener.Addr().String())

	for {
		nc, err := listener.Accept()
		if err != nil {
			logger.Error("accept failed", "error", err)
			continue
		}
		m.ConnectionsAccepted.Inc()
		go serve(nc, cfg, group, m, logger)
	}
}

func serveMetrics(logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":9001", mux); err != nil {
		logger.Warn("metrics server stopped", "error", err)
	}
}

func serve(nc net.Conn, cfg *config.Config, group executor.Group, m *metrics.Metrics, logger *slog.Logger) {
	id := uuid.NewString()
	log := logger.With("conn", id, "remote", nc.RemoteAddr().String())
	m.ConnectionsActive.Inc()
	defer m.ConnectionsActive.Dec()

	alloc := buffer.NewPooledAllocator()
	alloc.SetMetrics(m)
	conn := transport.New(id, nc, alloc, m, log, cfg.Buffer.MaxCapacity)

	p := pipeline.New(conn, group, log)
	p.SetMetrics(m)
	conn.Attach(p)

	if _, err := p.AddLast("echo", newEchoHandler(log)); err != nil {
		log.Error("failed to install echo handler", "error", err)
		_ = conn.Close()
		return
	}

	p.Register()
	p.FireChannelActive()
	p.Read()

	<-conn.Done()
}
