package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc"

	"restic-exporter/src/backend"
	backendrestic "restic-exporter/src/backend/restic"
	"restic-exporter/src/config"
	"restic-exporter/src/exporter"
	"restic-exporter/src/logger"
	"restic-exporter/src/refresher"
	"restic-exporter/src/server"
)

type driverFactory func(binary string, log *slog.Logger) backend.Driver

var newDriver driverFactory = func(binary string, log *slog.Logger) backend.Driver {
	return backendrestic.New(binary, log)
}

func run(ctx context.Context, opts runOptions, stderr io.Writer) error {
	if opts.Interval == 0 {
		return errors.New("--interval must be at least 1 second")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.New(stderr, opts.LogLevel, opts.Verbose)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	log.Info("using configuration file", "path", opts.ConfigPath)

	refreshers, err := buildRefreshers(cfg, opts, newDriver(opts.ResticBinary, log), log)
	if err != nil {
		return err
	}
	sources := make([]exporter.Source, 0, len(refreshers))
	for _, r := range refreshers {
		sources = append(sources, r)
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(exporter.New(sources, log)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg conc.WaitGroup
	for _, r := range refreshers {
		log.Info("registering repository", "target", r.Name())
		wg.Go(func() { r.Run(ctx) })
	}

	srv := server.New(server.Options{
		Addr:       net.JoinHostPort(opts.Host, strconv.Itoa(int(opts.Port))),
		Gatherer:   reg,
		ReadyCheck: func() bool { return exporter.Ready(sources) },
		Logger:     log,
	})
	err = srv.Start(ctx)
	if err != nil {
		log.Error("failed to start server", "err", err)
	}
	stop()
	wg.Wait()
	log.Info("exporter stopped")
	return err
}

func buildRefreshers(cfg config.Config, opts runOptions, driver backend.Driver, log *slog.Logger) ([]*refresher.Refresher, error) {
	out := make([]*refresher.Refresher, 0, len(cfg.Backups))
	for _, b := range cfg.Backups {
		r, err := refresher.New(refresher.Target{
			Name:         b.Name,
			Repository:   b.Repository,
			Password:     b.Password,
			PasswordFile: b.PasswordFile,
			Options:      b.Options,
		}, refresher.Options{
			Driver:   driver,
			Interval: time.Duration(opts.Interval) * time.Second,
			Timeout:  time.Duration(opts.Timeout) * time.Second,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// SetDriverFactoryForTest allows tests to replace the restic driver. The
// returned function restores the previous factory.
func SetDriverFactoryForTest(fn driverFactory) func() {
	prev := newDriver
	newDriver = fn
	return func() { newDriver = prev }
}
