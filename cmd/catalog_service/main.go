// Package main runs the product catalog service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/abgdnv/gocatalog/internal/app"
	"github.com/abgdnv/gocatalog/internal/auth"
	"github.com/abgdnv/gocatalog/internal/config"
	"github.com/abgdnv/gocatalog/internal/events"
	"github.com/abgdnv/gocatalog/internal/store"
	"github.com/abgdnv/gocatalog/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/gocatalog/pkg/config"
	"github.com/abgdnv/gocatalog/pkg/messaging"
	pnats "github.com/abgdnv/gocatalog/pkg/nats"
	"github.com/abgdnv/gocatalog/pkg/telemetry"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the catalog, wires the admin guard and event publishing, and serves HTTP, gRPC and pprof until ctx is done.
func run(ctx context.Context) error {
	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	if cfg.Telemetry.Traces.Enabled {
		tp, err := telemetry.NewTracerProvider(ctx, config.ServiceName, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to create tracer provider: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to shutdown tracer provider", "error", err)
			}
		}()
	}
	var mp *telemetry.MeterProvider
	if cfg.Telemetry.Metrics.Enabled {
		var err error
		mp, err = telemetry.NewMeterProvider(config.ServiceName)
		if err != nil {
			return fmt.Errorf("failed to create meter provider: %w", err)
		}
		defer func() {
			if err := mp.Shutdown(context.Background()); err != nil {
				logger.Error("Failed to shutdown meter provider", "error", err)
			}
		}()
	}

	// Admin credentials are resolved before storage is opened.
	authCfg, err := auth.NewConfig(cfg.Admin, cfg.Token)
	if err != nil {
		return fmt.Errorf("failed to configure admin credentials: %w", err)
	}
	var tokens *auth.TokenService
	if len(authCfg.SigningKey) > 0 {
		if tokens, err = auth.NewTokenService(authCfg); err != nil {
			return fmt.Errorf("failed to create token service: %w", err)
		}
	} else {
		logger.Warn("Token signing key is not configured, login and bearer tokens are disabled")
	}
	guard, err := auth.NewAdminGuard(authCfg, tokens, logger)
	if err != nil {
		return fmt.Errorf("failed to create admin guard: %w", err)
	}

	publisher, closePublisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()
	notifier := events.NewNotifier(publisher, cfg.NATS.Timeout, logger)

	medium, closeMedium, err := newMedium(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeMedium()

	catalog, err := store.Open(ctx, medium,
		store.WithLogger(logger),
		store.WithResetHook(notifier.StorageReset),
	)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer catalog.Close()
	logger.Info("Catalog loaded", "medium", medium.Describe(), "products", catalog.Len(), "recovered", catalog.Recovered())

	deps := app.SetupDependencies(catalog, notifier, guard, mp, logger)
	hs := health.NewServer()
	httpServer, pprofServer, grpcServer := setupServers(deps, hs, cfg)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g, gCtx := errgroup.WithContext(ctx)

	// Start the HTTP server
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	// gracefully shutdown HTTP server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down HTTP server...")
		deps.MarkShuttingDown()
		hs.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.GRPC.Enabled {
		// Start the gRPC server
		g.Go(func() error {
			grpcAddr := ":" + cfg.GRPC.Port
			lis, err := net.Listen("tcp", grpcAddr)
			if err != nil {
				return fmt.Errorf("failed to listen on gRPC port: %w", err)
			}
			logger.Info("gRPC server listening", slog.String("addr", grpcAddr))
			return grpcServer.Serve(lis)
		})
		// gracefully shutdown gRPC server on context cancellation
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down gRPC server...")
			stopped := make(chan struct{})
			go func() {
				grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
				logger.Info("gRPC server stopped gracefully.")
				return nil
			case <-time.After(cfg.Shutdown.Timeout):
				logger.Warn("gRPC server graceful stop timed out. Forcing stop.")
				grpcServer.Stop()
				return fmt.Errorf("grpc server graceful stop timed out")
			}
		})
	}

	// Start the pprof server if enabled
	if cfg.PProf.Enabled {
		g.Go(func() error {
			logger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		// gracefully shutdown pprof server on context cancellation
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down pprof server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			return pprofServer.Shutdown(shutdownCtx)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// newMedium opens the storage medium named by cfg.Location: a postgres URL or a file path.
func newMedium(ctx context.Context, cfg pkgconfig.StorageConfig, logger *slog.Logger) (store.Medium, func(), error) {
	if !cfg.IsPostgres() {
		logger.Info("Using file storage", "path", cfg.Location)
		return store.NewFileMedium(cfg.Location), func() {}, nil
	}
	if err := store.Migrate(cfg.Location); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	dbPool, err := bootstrap.NewDbPool(ctx, cfg.Location, cfg.ConnectTimeout)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Successfully connected to the database!")
	return store.NewPgMedium(dbPool, pkgconfig.MaskURL(cfg.Location)), dbPool.Close, nil
}

// newPublisher connects to NATS when enabled. Without NATS events are discarded.
func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (messaging.Publisher, func(), error) {
	if !cfg.NATS.Enabled {
		logger.Info("NATS is disabled, catalog events are not published")
		return messaging.NoopPublisher{}, func() {}, nil
	}
	nc, err := pnats.NewClient(cfg.NATS.Url, cfg.NATS.Timeout)
	if err != nil {
		return nil, nil, err
	}
	js, err := pnats.NewJetStreamContext(nc)
	if err != nil {
		return nil, nil, err
	}
	if err := pnats.EnsureStream(ctx, js, cfg.NATS.Stream, messaging.CatalogSubjects); err != nil {
		nc.Close()
		return nil, nil, err
	}
	logger.Info("Successfully connected to NATS", "stream", cfg.NATS.Stream)

	onStateChange := func(name string, from, to gobreaker.State) {
		logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
	}
	publisher := messaging.NewBreakerPublisher("nats-publisher", pnats.NewNatsPublisher(js, cfg.NATS.Breaker.Retry), cfg.NATS.Breaker.CircuitBreaker, onStateChange)
	return publisher, func() {
		if err := nc.Drain(); err != nil {
			logger.Error("Failed to drain NATS connection", "error", err)
		}
	}, nil
}

// setupServers initializes the HTTP, pprof, and gRPC servers.
func setupServers(deps *app.Dependencies, hs *health.Server, cfg *config.Config) (*http.Server, *http.Server, *grpc.Server) {
	httpServer := app.SetupHttpServer(deps, cfg)
	grpcServer := app.SetupGrpcServer(deps, hs, cfg.GRPC.ReflectionEnabled)
	pprofServer := &http.Server{
		Addr: cfg.PProf.Addr,
	}
	return httpServer, pprofServer, grpcServer
}
