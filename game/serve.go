package game

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm-cable/ecosim/sim"
	"github.com/pthm-cable/ecosim/stream"
	"github.com/pthm-cable/ecosim/telemetry"
)

type server struct {
	name string
	srv  *http.Server
	ln   net.Listener
}

// Addr returns the bound address, useful when the config asked for port 0.
func (s *server) Addr() string { return s.ln.Addr().String() }

func startServer(name, addr string, h http.Handler) (*server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &server{
		name: name,
		srv:  &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second},
		ln:   ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "server", name, "error", err)
		}
	}()
	slog.Info("listening", "server", name, "addr", s.Addr())
	return s, nil
}

// initServing attaches metrics and starts the metrics and stream endpoints
// the config enables.
func (g *Game) initServing(reg prometheus.Registerer) error {
	cfg := g.cfg

	if reg == nil && cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
	}
	if reg != nil {
		m, err := telemetry.NewMetrics(reg)
		if err != nil {
			return err
		}
		g.metrics = m
		g.sched.SetMetrics(m)
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", g.metrics.Handler())
		s, err := startServer("metrics", cfg.Metrics.Addr, mux)
		if err != nil {
			return err
		}
		g.servers = append(g.servers, s)
	}

	if cfg.Stream.Enabled {
		g.hub = stream.NewHub()
		g.pushEach = int64(max(cfg.Stream.IntervalTicks, 1))
		mux := http.NewServeMux()
		mux.Handle("/ws", g.hub)
		s, err := startServer("stream", cfg.Stream.Addr, mux)
		if err != nil {
			return err
		}
		g.servers = append(g.servers, s)
	}
	return nil
}

// ServerAddr returns the bound address of a named server ("metrics" or
// "stream"), or "" when it is not running.
func (g *Game) ServerAddr(name string) string {
	for _, s := range g.servers {
		if s.name == name {
			return s.Addr()
		}
	}
	return ""
}

// pushFrame sends the published frame to stream viewers every pushEach ticks.
func (g *Game) pushFrame() {
	if g.hub == nil || g.tick%g.pushEach != 0 {
		return
	}
	g.sched.Published(func(f sim.Frame) {
		g.hub.Publish(f.Tick, f.Particles)
	})
}

func (g *Game) stopServing() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, s := range g.servers {
		if err := s.srv.Shutdown(ctx); err != nil {
			slog.Warn("server shutdown", "server", s.name, "error", err)
		}
	}
	g.servers = nil
	if g.hub != nil {
		g.hub.Close()
	}
}
