package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"

	"spacegun/internal/config"
	"spacegun/internal/server"
	"spacegun/pkg/logging"
)

// ShutdownTimeout bounds how long Serve waits for running requests and
// pipelines after it was asked to stop.
const ShutdownTimeout = 10 * time.Second

// ErrNotLocal is returned by Serve in client mode, where nothing runs in
// this process.
var ErrNotLocal = errors.New("serve needs standalone or server mode")

// runServe runs the crons, and the HTTP server in server mode, until ctx is
// done or SIGINT/SIGTERM arrives.
func runServe(ctx context.Context, cfg *Config, services *Services) error {
	if services.Manager == nil {
		return ErrNotLocal
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	services.Manager.Start()
	if err := services.Manager.Watch(ctx); err != nil {
		logging.Warn("Serve", "Pipeline changes will not be picked up: %v", err)
	}

	var srv *server.Server
	errCh := make(chan error, 1)
	if cfg.mode() == config.ModeServer {
		l, err := listener(cfg.Spacegun.Server.Address())
		if err != nil {
			_ = services.Manager.Stop(context.Background())
			return err
		}
		srv = server.New(services.Registry, services.Metrics)
		go func() { errCh <- srv.Serve(l) }()
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logging.Debug("Serve", "sd_notify failed: %v", err)
	}
	logging.Info("Serve", "Running %d pipelines in %s mode. Press Ctrl+C to stop.", len(services.Manager.List()), cfg.mode())

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	logging.Info("Serve", "Shutting down")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	var errs []error
	errs = append(errs, serveErr)
	if srv != nil {
		errs = append(errs, srv.Shutdown(shutdownCtx))
	}
	errs = append(errs, services.Manager.Stop(shutdownCtx))
	return errors.Join(errs...)
}

// listener uses a socket passed by systemd when there is one.
func listener(addr string) (net.Listener, error) {
	listeners, err := activation.Listeners()
	if err != nil {
		return nil, fmt.Errorf("failed to read activated sockets: %w", err)
	}
	for _, l := range listeners {
		if l != nil {
			logging.Info("Serve", "Using socket %s passed by systemd", l.Addr())
			return l, nil
		}
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return l, nil
}
