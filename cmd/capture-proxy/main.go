// capture-proxy is a small reverse proxy demonstrating the body-capture
// middleware: every exchange is mirrored up to the configured limits and
// published to the event bus once it completes.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sofatutor/httpcapture/internal/config"
	"github.com/sofatutor/httpcapture/internal/eventbus"
	"github.com/sofatutor/httpcapture/internal/logging"
	"github.com/sofatutor/httpcapture/internal/middleware"
)

var (
	configFile string

	osExit = os.Exit
)

var rootCmd = &cobra.Command{
	Use:   "capture-proxy",
	Short: "Reverse proxy with bounded request/response body capture",
	RunE:  runServe,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file (env vars apply otherwise)")
}

func main() {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		cfg, err = config.New()
	}
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	bus, cleanup, err := newEventBus(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	capture, err := middleware.NewBodyCapture(cfg.Capture, middleware.PublishAction(bus, logger), logger,
		middleware.WithAsyncTimeout(cfg.AsyncTimeout))
	if err != nil {
		return fmt.Errorf("create capture middleware: %w", err)
	}

	target, err := url.Parse(cfg.TargetURL)
	if err != nil {
		return fmt.Errorf("parse target URL %q: %w", cfg.TargetURL, err)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)

	handler := middleware.NewRequestIDMiddleware()(capture.Middleware()(proxy))

	go logEvents(bus, logger)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("capture proxy listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("target", cfg.TargetURL))
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func newEventBus(cfg *config.Config, logger *zap.Logger) (eventbus.EventBus, func(), error) {
	switch cfg.EventBusBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		bus := eventbus.NewRedisStreamsEventBus(
			&eventbus.RedisStreamsClientAdapter{Client: client},
			eventbus.DefaultRedisStreamsConfig(),
			logger,
		)
		return bus, func() { bus.Stop(); _ = client.Close() }, nil
	case "in-memory", "":
		return eventbus.NewInMemoryEventBus(cfg.EventBusBufferSize), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown event bus backend %q", cfg.EventBusBackend)
	}
}

// logEvents drains the bus and logs a summary per captured exchange.
func logEvents(bus eventbus.EventBus, logger *zap.Logger) {
	for evt := range bus.Subscribe() {
		logger.Info("captured exchange",
			zap.String("request_id", evt.RequestID),
			zap.String("method", evt.Method),
			zap.String("path", evt.Path),
			zap.Int("status", evt.Status),
			zap.Duration("duration", evt.Duration),
			zap.Int64("request_units", evt.RequestUnits),
			zap.Bool("request_truncated", evt.RequestTruncated),
			zap.Int64("response_units", evt.ResponseUnits),
			zap.Bool("response_truncated", evt.ResponseTruncated))
	}
}
