package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitcoinote/commerce-gateway/internal/bootstrap"
	"github.com/bitcoinote/commerce-gateway/internal/controller"
	"github.com/bitcoinote/commerce-gateway/internal/gateway"
	infraRedis "github.com/bitcoinote/commerce-gateway/internal/infrastructure/redis"
	"github.com/bitcoinote/commerce-gateway/internal/repository/postgres"
	"github.com/bitcoinote/commerce-gateway/internal/service"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "btcn-gateway-api", "btcn_gateway")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories and outbound adapters ---
	orderRepo := postgres.NewOrderRepository(app.Pool)
	gatewayClient := gateway.New(&app.Config.Gateway, app.Metrics, app.Logger)
	locker := infraRedis.NewOrderLocker(app.Redis, app.Config.Gateway.LockTTL)
	inventory := service.NewLoggingInventory(app.Logger)

	// --- Reconciliation service ---
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

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:        app.Pool,
		RedisClient: app.Redis,
		OrderRepo:   orderRepo,
		Reconciler:  reconciler,
		Metrics:     app.Metrics,
		CORSConfig:  app.Config.Server.CORS,
		AuthConfig:  app.Config.Auth,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
