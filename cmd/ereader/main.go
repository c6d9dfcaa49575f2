// Command ereader is a terminal client for the e-reader backend. It keeps
// the signed-in session between invocations and caches downloaded books.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"ereader/internal/api/client"
	"ereader/internal/auth/federated"
	"ereader/internal/document"
	"ereader/internal/platform/config"
	"ereader/internal/platform/logger"
	"ereader/internal/platform/metrics"
	"ereader/internal/platform/redis"
	"ereader/internal/platform/tracer"
	"ereader/internal/repository"
	"ereader/internal/session"
	"ereader/internal/session/file"
	"ereader/internal/session/memory"
	redisstore "ereader/internal/session/redis"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("ereader", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "path to a YAML config file (default $EREADER_CONFIG)")
	jsonOutput := global.Bool("json", false, "print results as JSON")
	global.Usage = func() { printUsage(stderr) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		printUsage(stderr)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger.NewWithWriter(stderr, cfg.LogLevel), stdout)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer a.Close()
	a.json = *jsonOutput

	return a.dispatch(ctx, global.Args(), stderr)
}

// app is the wired client: one repository over one session store.
type app struct {
	cfg     config.Config
	repo    *repository.Repository
	docs    *document.Resolver
	logger  *slog.Logger
	metrics *metrics.Metrics
	out     io.Writer
	json    bool
	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger, out io.Writer) (*app, error) {
	m := metrics.New(prometheus.NewRegistry())
	a := &app{cfg: cfg, logger: log, metrics: m, out: out}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	transport, err := client.New(client.Config{
		BaseURL:           cfg.API.BaseURL,
		APIKey:            cfg.API.APIKey,
		UserAgent:         cfg.API.UserAgent,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		Tokens:            store,
		Tracer:            tracer.NewOTel(),
		Metrics:           m,
		Logger:            log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []repository.Option{repository.WithLogger(log), repository.WithMetrics(m)}
	if cfg.Google.ClientID != "" {
		opts = append(opts, repository.WithProvider(federated.NewGoogle(federated.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			TokenURL:     cfg.Google.TokenURL,
			RevokeURL:    cfg.Google.RevokeURL,
		})))
	}
	a.repo = repository.New(transport, store, opts...)

	docOpts := []document.ResolverOption{
		document.WithMaxBytes(cfg.Documents.MaxBytes),
		document.WithLogger(log),
		document.WithMetrics(m),
	}
	if cfg.Documents.AllowPrivateHosts {
		docOpts = append(docOpts, document.WithExternalClient(client.NewHTTPClient(cfg.API.Timeout)))
	}
	a.docs, err = document.NewResolver(cfg.Documents.CacheDir, transport, docOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) (session.Store, error) {
	switch a.cfg.Session.Backend {
	case config.SessionBackendMemory:
		return memory.New(memory.WithMetrics(a.metrics)), nil
	case config.SessionBackendRedis:
		rc, err := redis.New(ctx, a.cfg.Redis, prometheus.NewRegistry())
		if err != nil {
			return nil, fmt.Errorf("connect session redis: %w", err)
		}
		if rc == nil {
			return nil, errors.New("redis session backend selected without a redis url")
		}
		a.closers = append(a.closers, rc.Close)
		return redisstore.New(rc, a.cfg.Redis.Namespace,
			redisstore.WithLogger(a.logger),
			redisstore.WithMetrics(a.metrics),
		), nil
	default:
		key, err := a.cfg.SessionKey()
		if err != nil {
			return nil, err
		}
		sealer, err := session.NewSealer(key)
		if err != nil {
			return nil, err
		}
		return file.New(a.cfg.Session.Path,
			file.WithSealer(sealer),
			file.WithLogger(a.logger),
			file.WithMetrics(a.metrics),
		), nil
	}
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close", "error", err)
		}
	}
	a.closers = nil
}
