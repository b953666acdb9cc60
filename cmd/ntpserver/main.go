package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/marcuoli/go-sntpd/pkg/ntpserver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(100)
	}

	log, err := newLogger(cfg.Verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log = log.With(zap.String("instance", uuid.NewString()))

	if err := run(cfg, log); err != nil {
		log.Error("exiting", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// Every datagram gets its own record.
	zc.Sampling = nil
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

func run(cfg fileConfig, log *zap.Logger) error {
	log.Info("starting", zap.String("version", ntpserver.VersionInfo()), zap.String("listen", cfg.ListenAddr))

	// Files and listeners outside the chroot must be opened first.
	var countries ntpserver.CountryResolver
	if cfg.Stats.GeoDB != "" {
		geo, err := ntpserver.OpenGeoIP(cfg.Stats.GeoDB)
		if err != nil {
			return fmt.Errorf("open geoip database: %w", err)
		}
		defer func() { _ = geo.Close() }()
		countries = geo
	}

	var metricsLn net.Listener
	if cfg.Stats.PromAddr != "" {
		ln, err := net.Listen("tcp", cfg.Stats.PromAddr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		metricsLn = ln
		defer func() { _ = ln.Close() }()
	}

	if cfg.Root != "" {
		if err := enterRoot(cfg.Root, log); err != nil {
			return fmt.Errorf("chroot %s: %w", cfg.Root, err)
		}
	}

	srv := ntpserver.New(ntpserver.Config{
		ListenAddr:         cfg.ListenAddr,
		Network:            cfg.Network,
		Workers:            cfg.Workers,
		RateLimitPerSecond: cfg.Rate,
		RateLimitBurst:     cfg.Burst,
		Countries:          countries,
		Logger:             log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() { _ = srv.Stop() }()

	if cfg.Root != "" {
		if err := dropPrivileges(log); err != nil {
			return fmt.Errorf("drop privileges: %w", err)
		}
	}

	if metricsLn != nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			srv.Collector(),
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		hs := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := hs.Serve(metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() { _ = hs.Close() }()
		log.Info("serving metrics", zap.String("addr", metricsLn.Addr().String()))
	}

	log.Info("listening", zap.String("addr", "udp://"+srv.Addr()), zap.Int8("precision", srv.Precision()))

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("stopping")
			return nil
		case <-ticker.C:
			m := srv.Metrics()
			log.Info("stats",
				zap.Uint64("requests", m.TotalRequests),
				zap.Uint64("responses", m.TotalResponses),
				zap.Uint64("errors", m.TotalErrors),
				zap.Int("unique_clients", m.UniqueClients),
				zap.String("last_ip", m.LastRequestIP))
		}
	}
}
