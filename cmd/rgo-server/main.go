//go:build linux

// Command rgo-server serves key redirects over HTTP and applies link-table
// commands read from a named pipe.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rogeraird/rgo/internal/api"
	"github.com/rogeraird/rgo/internal/channel"
	"github.com/rogeraird/rgo/internal/config"
	"github.com/rogeraird/rgo/internal/controller"
	"github.com/rogeraird/rgo/internal/events"
	"github.com/rogeraird/rgo/internal/metrics"
	"github.com/rogeraird/rgo/internal/persist"
	"github.com/rogeraird/rgo/internal/store"
	"github.com/rogeraird/rgo/internal/zeroconf"
)

const shutdownTimeout = 15 * time.Second

func main() {
	var (
		cfgPath  = flag.String("config", "", "YAML config file (optional)")
		addr     = flag.String("addr", config.DefaultAddr, "HTTP listen address")
		pipe     = flag.String("pipe", config.DefaultChannelPath, "command pipe path")
		snapshot = flag.String("snapshot", config.DefaultSnapshotPath, "persist file path")
		restore  = flag.Bool("restore", false, "load the persist file at startup")
		mdns     = flag.Bool("mdns", false, "advertise the server over mDNS")
		debug    = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Flags given explicitly win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "pipe":
			cfg.ChannelPath = *pipe
		case "snapshot":
			cfg.SnapshotPath = *snapshot
		case "restore":
			cfg.Restore = *restore
		case "mdns":
			cfg.MDNS = *mdns
		case "debug":
			cfg.Debug = *debug
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Configure logging
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		slog.Error("cannot listen", "addr", cfg.Addr, "err", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, ln); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

// run wires the server together and blocks until ctx is cancelled.
// The pipe must be usable before anything is served.
func run(ctx context.Context, cfg config.Config, ln net.Listener) error {
	defer ln.Close()

	created, err := channel.Ensure(cfg.ChannelPath)
	if err != nil {
		return fmt.Errorf("preparing pipe: %w", err)
	}
	ch, err := channel.Open(cfg.ChannelPath)
	if err != nil {
		return fmt.Errorf("opening pipe: %w", err)
	}
	defer ch.Close()
	slog.Info("command pipe ready", "path", ch.Path(), "created", created)

	// Link table and everything hanging off it
	st := store.New(cfg.Seed)
	m := metrics.New()
	bus := events.NewBus()
	ctrl, err := controller.New(st, persist.NewFileStore(cfg.SnapshotPath), bus, m)
	if err != nil {
		return fmt.Errorf("controller initialization: %w", err)
	}

	if cfg.Restore {
		n, err := ctrl.Restore()
		if err != nil {
			slog.Warn("ignoring unreadable persist file", "path", cfg.SnapshotPath, "err", err)
		} else {
			slog.Info("restored links", "path", cfg.SnapshotPath, "count", n)
		}
	}

	consumer, err := controller.NewConsumer(ch, ctrl, m)
	if err != nil {
		return fmt.Errorf("consumer initialization: %w", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(runCtx); err != nil {
			slog.Error("consumer stopped", "err", err)
		}
	}()

	go func() {
		if err := ch.Watch(runCtx); err != nil {
			slog.Warn("pipe watcher stopped", "err", err)
		}
	}()

	// Zeroconf mDNS registration
	if cfg.MDNS {
		port, err := zeroconf.PortFromAddr(ln.Addr().String())
		if err != nil {
			slog.Warn("zeroconf disabled", "err", err)
		} else {
			zc := zeroconf.New(cfg.MDNSName, port)
			go func() {
				if err := zc.Start(runCtx); err != nil {
					slog.Warn("zeroconf failed", "err", err)
				}
			}()
		}
	}

	srv := &http.Server{
		Handler:      api.NewRouter(ctrl, bus, m),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("rgo listening", "addr", ln.Addr().String(), "pipe", cfg.ChannelPath, "snapshot", cfg.SnapshotPath)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal
	var result error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		result = fmt.Errorf("http server: %w", err)
	}
	slog.Info("shutting down...")

	stop()
	_ = ch.Close()
	<-consumerDone
	bus.Close()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	return result
}
