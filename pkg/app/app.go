// Package app composes configuration, logging, metrics and the HTTP server
// into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/ethpandaops/bootstrapoor/pkg/api"
	"github.com/ethpandaops/bootstrapoor/pkg/config"
	"github.com/ethpandaops/bootstrapoor/pkg/logger"
	"github.com/ethpandaops/bootstrapoor/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// bootstrapContext is the log context of startup messages.
const bootstrapContext = "Bootstrap"

// ErrReloadRequested is returned by Run when the application was torn down
// for a hot reload. The caller is expected to build a fresh App.
var ErrReloadRequested = errors.New("reload requested")

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Options configures an App.
type Options struct {
	Build BuildInfo

	// LogFormat selects the console format, "text" or "json".
	LogFormat string
	// Console defaults to os.Stdout.
	Console io.Writer

	// ListenAddr overrides the default 0.0.0.0:<port> listen address.
	ListenAddr string
	// PID defaults to os.Getpid().
	PID int
}

// App is a composed application.
type App struct {
	cfg        *config.Config
	logs       *logger.Service
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
	stats      *api.RedisStats
	server     api.Server
	instanceID string
	pid        int

	closeOnce sync.Once
	closeErr  error
}

// New builds every component from cfg. Nothing listens until Start.
func New(cfg *config.Config, opts Options) (*App, error) {
	pid := opts.PID
	if pid == 0 {
		pid = os.Getpid()
	}

	a := &App{
		cfg:        cfg,
		instanceID: uuid.NewString(),
		pid:        pid,
	}

	// A registry per App, so a hot reload can register the collectors again.
	reg := prometheus.NewRegistry()

	if cfg.Metrics.Enable {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		a.metrics = metrics.New(reg)
		a.metrics.SetBuildInfo(opts.Build.Version, opts.Build.Commit, opts.Build.Date, a.instanceID)
	}

	logs, err := logger.New(logger.Options{
		Level:    cfg.App.Logger.Level,
		Format:   opts.LogFormat,
		Dir:      cfg.App.Logger.Dir,
		MaxFiles: cfg.App.Logger.MaxFiles,
		Console:  opts.Console,
		OnRotate: func(sink, _, _ string) {
			if a.metrics != nil {
				a.metrics.RecordLogRotation(sink)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a.logs = logs
	a.log = logs.Logger().WithField("component", "app")

	sinks := make([]string, 0, len(logs.Sinks()))
	for _, sink := range logs.Sinks() {
		sinks = append(sinks, sink.Name())
	}

	a.log.WithField("sinks", sinks).Debug("Logger ready")

	serverOpts := api.Options{
		Metrics:    a.metrics,
		Gatherer:   reg,
		ListenAddr: opts.ListenAddr,
		Version:    opts.Build.Version,
	}

	if cfg.Throttle.Stats.RedisAddr != "" {
		a.stats = api.NewRedisStats(api.NewRedisClient(cfg.Throttle.Stats), cfg.Throttle.Stats.Prefix, cfg.Throttle.Stats.TTL)
		serverOpts.Stats = a.stats

		a.log.WithField("addr", cfg.Throttle.Stats.RedisAddr).Info("Mirroring throttle decisions to Redis")
	}

	srv, err := api.NewServer(logs.Logger(), cfg, serverOpts)
	if err != nil {
		_ = a.stats.Close()
		_ = logs.Close()

		return nil, fmt.Errorf("creating api server: %w", err)
	}

	a.server = srv

	return a, nil
}

// Logs returns the logging service.
func (a *App) Logs() *logger.Service {
	return a.logs
}

// Server returns the HTTP server.
func (a *App) Server() api.Server {
	return a.server
}

// InstanceID returns the random id of this process.
func (a *App) InstanceID() string {
	return a.instanceID
}

// Start starts listening and announces the bound URL. Only the primary
// process announces it.
func (a *App) Start(ctx context.Context) error {
	if err := a.server.Start(ctx); err != nil {
		return err
	}

	url := a.URL()

	if !a.cfg.App.IsPrimary() {
		a.logs.Debug(fmt.Sprintf("[%s] Instance %d listening on %s", a.processTag(), a.cfg.App.Instance, url), bootstrapContext)

		return nil
	}

	a.logs.Info(fmt.Sprintf("[%s] Server running on %s", a.processTag(), url), bootstrapContext)

	if a.cfg.App.IsDevelopment() && a.cfg.Swagger.Enable {
		a.logs.Info(fmt.Sprintf("[%s] OpenAPI: %s/%s", a.processTag(), url, a.cfg.Swagger.Path), bootstrapContext)
	}

	return nil
}

// URL returns the base URL of the listener, or "" before Start. Unspecified
// addresses are shown as the loopback address.
func (a *App) URL() string {
	addr := a.server.Addr()
	if addr == nil {
		return ""
	}

	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}

	if ip := net.ParseIP(host); ip == nil || ip.IsUnspecified() {
		host = "127.0.0.1"
	}

	return "http://" + net.JoinHostPort(host, port)
}

// Run starts the application and blocks until ctx is done or a value
// arrives on reload. Both paths close the application; a reload returns
// ErrReloadRequested.
func (a *App) Run(ctx context.Context, reload <-chan struct{}) error {
	if err := a.Start(ctx); err != nil {
		return errors.Join(err, a.Close())
	}

	select {
	case <-ctx.Done():
		a.log.Info("Shutting down")

		return a.Close()
	case <-reload:
		a.log.Info("Hot reload requested, closing application")

		return errors.Join(ErrReloadRequested, a.Close())
	}
}

// Close stops the server and releases every resource. It is safe to call
// more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error

		if err := a.server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping api server: %w", err))
		}

		if err := a.stats.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing stats client: %w", err))
		}

		if err := a.logs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing logger: %w", err))
		}

		a.closeErr = errors.Join(errs...)
	})

	return a.closeErr
}

// processTag is "P<pid>" in the primary process and "W<pid>" elsewhere.
func (a *App) processTag() string {
	role := "W"
	if a.cfg.App.IsPrimary() {
		role = "P"
	}

	return role + strconv.Itoa(a.pid)
}
