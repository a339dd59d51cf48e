// socclient connects to a soc hub, announces itself and logs every message it
// is subscribed to.
// Usage: go run ./cmd/socclient --config configs/socclient.yaml
//
// With -stdin, each line read from standard input is sent as a log event.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/soc/internal/client"
	"github.com/rickgao/soc/internal/config"
	"github.com/rickgao/soc/internal/connection"
	"github.com/rickgao/soc/internal/protocol"
	"github.com/rickgao/soc/internal/router"
	"github.com/rickgao/soc/internal/version"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

// run returns the process exit status. It is the only place a terminal
// connection failure becomes a non-zero exit.
func run() int {
	configPath := flag.String("config", "configs/socclient.yaml", "path to config file")
	forwardStdin := flag.Bool("stdin", false, "send each stdin line as a log event")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("socclient", version.String())
		return 0
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		return 1
	}

	logger := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting socclient",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)
	logger.Info("configuration loaded",
		"name", cfg.Client.Name,
		"url", cfg.Server.URL,
		"subscribe", cfg.Client.Subscribe,
	)

	c := client.New(
		client.Config{
			URL:           cfg.Server.URL,
			Name:          cfg.Client.Name,
			Subscriptions: cfg.Client.Subscribe,
		},
		client.WithLogger(logger),
		client.WithWebsocketConfig(connection.WebsocketConfig{
			HandshakeTimeout: cfg.Server.HandshakeTimeout,
			WriteTimeout:     cfg.Server.WriteTimeout,
			PingInterval:     cfg.Server.PingInterval,
			PingTimeout:      cfg.Server.PingTimeout,
			Header:           http.Header{"User-Agent": {version.UserAgent("socclient")}},
		}),
		client.WithRetry(cfg.Reconnect.Interval, cfg.Reconnect.MaxRetries),
		client.WithConnectTimeout(cfg.Reconnect.ConnectTimeout),
		client.WithRouterConfig(router.Config{
			QueueSize: cfg.Router.QueueSize,
			MaxQueue:  cfg.Router.MaxQueue,
		}),
	)
	defer c.Close()

	c.HandleDefault(func(env protocol.Envelope) {
		logger.Info("message", "type", env.Type, "payload", string(env.Payload))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := c.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)

	// Fatal watcher
	g.Go(func() error {
		select {
		case err := <-c.Fatal():
			return err
		case <-gctx.Done():
			return nil
		}
	})

	if cfg.Health.Port > 0 {
		healthServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
			Handler: createHealthHandler(c),
		}
		g.Go(func() error {
			logger.Info("starting health server", "port", cfg.Health.Port)
			if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return healthServer.Shutdown(shutdownCtx)
		})
	}

	if *forwardStdin {
		// Not part of the group: a blocked stdin read cannot be interrupted.
		go pumpLines(os.Stdin, c, logger)
	}

	logger.Info("socclient running", "name", cfg.Client.Name)

	err = g.Wait()
	if status := exitStatus(err); status != 0 {
		var exhausted *connection.RetryExhaustedError
		if errors.As(err, &exhausted) {
			logger.Error("reconnection failed, exit", "attempts", exhausted.Attempts, "error", exhausted.Err)
		} else {
			logger.Error("socclient failed", "error", err)
		}
		return status
	}

	logger.Info("shutting down...")
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "error", err)
	}
	logger.Info("socclient stopped")
	return 0
}

// exitStatus maps the error that ended the client to a process exit status.
// A clean shutdown is 0; exhausted reconnection and every other failure is 1.
func exitStatus(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	return 1
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// pumpLines sends every line of r as a log event until r is exhausted.
func pumpLines(r io.Reader, c *client.Client, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := c.Log(scanner.Text()); err != nil {
			logger.Warn("failed to send log line", "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("stdin read failed", "error", err)
	}
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(c *client.Client) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := c.Stats()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		health.Components["connection"] = map[string]any{
			"state":      stats.Connection.State.String(),
			"session":    stats.Connection.Session.String(),
			"retries":    stats.Connection.Retries,
			"episodes":   stats.Connection.Episodes,
			"reconnects": stats.Connection.Reconnects,
		}
		health.Components["channel"] = stats.Channel
		health.Components["router"] = stats.Router

		switch stats.Connection.State {
		case connection.StateOpen:
		case connection.StateFailed:
			health.Status = "unhealthy"
		default:
			health.Status = "degraded"
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
