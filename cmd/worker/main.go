package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitcoinote/commerce-gateway/internal/bootstrap"
	"github.com/bitcoinote/commerce-gateway/internal/gateway"
	infraRedis "github.com/bitcoinote/commerce-gateway/internal/infrastructure/redis"
	"github.com/bitcoinote/commerce-gateway/internal/repository/postgres"
	"github.com/bitcoinote/commerce-gateway/internal/service"
	"golang.org/x/sync/errgroup"
)

// The worker periodically polls the gateway for on-hold orders whose IPN
// delivery may have been missed, mirroring what customer revisits do but
// without a customer.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "btcn-gateway-worker", "btcn_gateway")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	orderRepo := postgres.NewOrderRepository(app.Pool)
	gatewayClient := gateway.New(&app.Config.Gateway, app.Metrics, app.Logger)
	locker := infraRedis.NewOrderLocker(app.Redis, app.Config.Gateway.LockTTL)
	inventory := service.NewLoggingInventory(app.Logger)

	reconciler := service.NewReconcileService(
		orderRepo,
		gatewayClient,
		inventory,
		locker,
		app.Config.Gateway,
		app.Config.Store,
		app.Metrics,
		app.Logger,
	)
	reconciler.Subscribe(service.LoggingSubscriber(app.Logger, app.Config.Gateway.Instructions))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(app.Config.Sweeper.Interval)
		defer ticker.Stop()

		app.Logger.Info().
			Dur("interval", app.Config.Sweeper.Interval).
			Int("batch_size", app.Config.Sweeper.BatchSize).
			Msg("Sweeper started")

		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				reconciled, err := reconciler.ReconcileStale(gctx, app.Config.Sweeper.BatchSize)
				if err != nil {
					app.Logger.Error().Err(err).Msg("Sweep failed")
					continue
				}
				if reconciled > 0 {
					app.Logger.Info().Int("reconciled", reconciled).Msg("Sweep reconciled orders")
				}
			}
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker stopped with error")
		os.Exit(1)
	}
	app.Logger.Info().Msg("Worker exited")
}
