// sochub is a development fan-out server for socclient peers.
// Usage: go run ./cmd/sochub --addr :8080
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/soc/internal/hub"
	"github.com/rickgao/soc/internal/version"
	"golang.org/x/sync/errgroup"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	statsInterval := flag.Duration("stats-interval", time.Minute, "how often to log hub statistics (0 disables)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting sochub",
		"version", version.String(),
		"addr", *addr,
	)

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

	h := hub.New(logger.With("component", "hub"))

	mux := http.NewServeMux()
	mux.Handle("/", h)
	server := &http.Server{Addr: *addr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		// Hijacked websocket connections are not tracked by Shutdown.
		h.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if *statsInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(*statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					stats := h.Stats()
					logger.Info("hub stats",
						"peers", stats.Peers,
						"frames", stats.Frames,
						"relayed", stats.Relayed,
						"decode_errors", stats.DecodeErrors,
						"unidentified", stats.Unidentified,
					)
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("sochub failed", "error", err)
		os.Exit(1)
	}

	logger.Info("sochub stopped")
}
