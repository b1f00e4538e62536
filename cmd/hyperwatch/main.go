package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hyperwatch/internal/account"
	"hyperwatch/internal/config"
	"hyperwatch/internal/coordinator"
	"hyperwatch/internal/fetcher"
	"hyperwatch/internal/hyperliquid"
	"hyperwatch/internal/observability"
	"hyperwatch/internal/publish"
	"hyperwatch/internal/reconcile"
	"hyperwatch/internal/sensor"
	"hyperwatch/internal/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("INFO: hyperwatch starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: config: %v", err)
	}

	// --- Context with graceful shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- Upstream client + connectivity probe ---
	client := hyperliquid.NewClient(cfg.APIBaseURL, observability.NewLogger("hyperliquid"))

	probeCtx, probeCancel := context.WithTimeout(ctx, 15*time.Second)
	if _, err := client.UserState(probeCtx, cfg.WalletAddress); err != nil {
		probeCancel()
		log.Fatalf("FATAL: upstream probe for wallet %s: %v", config.ShortWallet(cfg.WalletAddress), err)
	}
	probeCancel()
	log.Printf("INFO: upstream reachable, watching wallet %s", config.ShortWallet(cfg.WalletAddress))

	// --- Refresh pipeline ---
	f := fetcher.New(client, fetcher.Config{
		WalletAddress:     cfg.WalletAddress,
		APIBaseURL:        cfg.APIBaseURL,
		TradeHistoryDays:  cfg.TradeHistoryDays,
		TradeHistoryCount: cfg.TradeHistoryCount,
	}, observability.NewLogger("fetcher"), metrics)

	coord := coordinator.New(f, cfg.UpdateInterval, observability.NewLogger("coordinator"), metrics)

	// --- NATS (optional) ---
	var publishChan chan publish.Event
	var outboundPublisher *publish.Publisher
	if cfg.NATSURL != "" {
		natsLog := observability.NewLogger("publish")
		nc, js, err := publish.ConnectNATS(cfg.NATSURL, natsLog)
		if err != nil {
			log.Fatalf("FATAL: nats connect: %v", err)
		}
		defer nc.Close()
		log.Println("INFO: NATS connected")

		if err := publish.EnsureStream(ctx, js, natsLog); err != nil {
			log.Fatalf("FATAL: ensure outbound stream: %v", err)
		}

		publishChan = make(chan publish.Event, 1024)
		outboundPublisher = publish.NewPublisher(js, publishChan, natsLog, metrics)
	}

	// --- Snapshot listener: gauges, entity events, outbound publishing ---
	reconcileLog := observability.NewLogger("reconcile")
	coord.Subscribe(func(previous, current *account.State) {
		sensor.Export(metrics, current)

		events := reconcile.Diff(previous, current, current.RefreshedAt)
		for _, ev := range events {
			metrics.EntityEvents.WithLabelValues(ev.Type.String()).Inc()
			reconcileLog.Info().
				Str("event", ev.Type.String()).
				Str("coin", ev.Coin).
				Str("vault", ev.VaultAddress).
				Int64("order_id", ev.OrderID).
				Msg("entity transition")
		}

		if publishChan == nil {
			return
		}
		for _, ev := range events {
			enqueue(publishChan, publish.FromReconcile(ev), metrics)
		}
		enqueue(publishChan, publish.RefreshNotice(current), metrics)
	})

	// Any successful refresh flips readiness, including the first one after
	// a failed initial refresh.
	coord.Subscribe(func(previous, current *account.State) {
		healthChecker.SetReady(true)
	})

	// --- HTTP API + health + metrics ---
	httpServer := server.New(cfg.HTTPAddr, config.ShortWallet(cfg.WalletAddress), coord, healthChecker, metrics, observability.NewLogger("server"))

	// --- Start goroutines ---
	errChan := make(chan error, 4)

	if outboundPublisher != nil {
		go func() {
			errChan <- outboundPublisher.Run(ctx)
		}()
	}

	go func() {
		errChan <- httpServer.Run(ctx)
	}()

	// --- Initial refresh (synchronous) ---
	// A failure here is not fatal: the loop retries on its schedule and the
	// API reports the error until data arrives.
	if err := coord.RefreshNow(ctx); err != nil {
		log.Printf("WARN: initial refresh failed: %v", err)
	}

	go func() {
		errChan <- coord.Run(ctx)
	}()

	log.Printf("INFO: hyperwatch ready (wallet=%s, http=%s, interval=%s)",
		config.ShortWallet(cfg.WalletAddress), cfg.HTTPAddr, cfg.UpdateInterval)

	// --- Wait for shutdown signal ---
	select {
	case sig := <-sigChan:
		log.Printf("INFO: received signal %s, shutting down...", sig)
	case err := <-errChan:
		log.Printf("ERROR: goroutine failed: %v, shutting down...", err)
	}

	cancel()
	if publishChan != nil {
		close(publishChan)
	}

	log.Println("INFO: hyperwatch shutdown complete")
}

// enqueue sends without blocking the refresh cycle; a full channel drops
// the event.
func enqueue(ch chan<- publish.Event, ev publish.Event, metrics *observability.Metrics) {
	select {
	case ch <- ev:
	default:
		metrics.PublishDrops.Inc()
	}
}
