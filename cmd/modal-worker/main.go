package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/algo-modal/numserver"
)

func main() {
	def := numserver.DefaultOptions()
	host := flag.String("host", def.Host, "Listen address")
	eigenPort := flag.Int("eigen-port", def.EigenPort, "Eigen socket port")
	bridgePort := flag.Int("bridge-port", def.BridgePort, "Bridge socket port")
	timeout := flag.Duration("timeout", def.Timeout, "Exit if no client connects within this window (0 waits forever)")
	seed := flag.Uint64("seed", def.Seed, "Seed for random.normal requests")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := numserver.Options{
		Host:       *host,
		EigenPort:  *eigenPort,
		BridgePort: *bridgePort,
		Timeout:    *timeout,
		Seed:       *seed,
	}
	log.Info("serving", "host", opts.Host, "eigen_port", opts.EigenPort, "bridge_port", opts.BridgePort, "timeout", opts.Timeout)
	start := time.Now()
	// stdin closes when the parent exits.
	err := numserver.Run(ctx, opts, os.Stdin)
	switch {
	case errors.Is(err, numserver.ErrIdleTimeout):
		log.Warn("no client connected", "timeout", opts.Timeout)
		os.Exit(2)
	case err != nil:
		log.Error("worker failed", "err", err)
		os.Exit(1)
	}
	log.Info("stopped", "uptime", time.Since(start).Round(time.Millisecond))
}
