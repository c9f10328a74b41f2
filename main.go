package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"static-server/logger"
	"static-server/metrics"
	"static-server/routes"
	"static-server/server"
)

const (
	exitOK            = 0
	exitFailure       = 1
	exitInvalidConfig = 2
)

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")

	config, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(exitOK)
		}
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(exitInvalidConfig)
	}

	log, closeLog, err := logger.Init(config.LogSink, config.LogLevel, config.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(exitInvalidConfig)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := exitOK
	if err := run(ctx, config, log, nil); err != nil {
		log.Error("server failed", "error", err)
		code = exitFailure
	}
	stop()
	closeLog()
	os.Exit(code)
}

// run serves until ctx is cancelled or a listener fails. ready, if set,
// receives the bound addresses once both listeners are up; metricsAddr is
// nil when the metrics endpoint is disabled.
func run(ctx context.Context, config *Config, log *slog.Logger, ready func(addr, metricsAddr net.Addr)) error {
	handler, err := routes.InitializeRoutes(config.Root, log)
	if err != nil {
		return err
	}

	m := metrics.New()
	var limiter *server.RateLimiter
	if config.RateLimitEnabled {
		limiter = server.NewRateLimiter(config.RateLimitRPM, config.RateLimitBurst)
		log.Info("connection rate limiting enabled",
			"requests_per_minute", config.RateLimitRPM,
			"burst", config.RateLimitBurst,
		)
	}

	var (
		metricsLn   net.Listener
		metricsAddr net.Addr
	)
	if config.MetricsAddr != "" {
		metricsLn, err = net.Listen("tcp", config.MetricsAddr)
		if err != nil {
			return fmt.Errorf("bind metrics %s: %w", config.MetricsAddr, err)
		}
		metricsAddr = metricsLn.Addr()
	}

	srv := server.New(server.Config{
		Addr:            config.Addr(),
		Handler:         handler,
		Logger:          log,
		Metrics:         m,
		Limiter:         limiter,
		MaxLineBytes:    config.MaxLineBytes.Int(),
		ReadBufferSize:  config.ReadBufferSize.Int(),
		WriteBufferSize: config.WriteBufferSize.Int(),
	})
	if err := srv.Listen(); err != nil {
		if metricsLn != nil {
			metricsLn.Close()
		}
		return err
	}
	if ready != nil {
		ready(srv.Addr(), metricsAddr)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})
	if metricsLn != nil {
		g.Go(func() error {
			log.Info("serving metrics", "addr", metricsAddr.String())
			return metrics.NewServer(m).Serve(gctx, metricsLn)
		})
	}

	err = g.Wait()
	log.Info("shutdown complete")
	return err
}
