// Package app contains the application setup for the catalog service.
package app

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/abgdnv/gocatalog/internal/auth"
	"github.com/abgdnv/gocatalog/internal/config"
	"github.com/abgdnv/gocatalog/internal/service"
	"github.com/abgdnv/gocatalog/internal/store"
	"github.com/abgdnv/gocatalog/internal/transport/rest"
	"github.com/abgdnv/gocatalog/pkg/server"
	"github.com/abgdnv/gocatalog/pkg/telemetry"
	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

type Dependencies struct {
	Catalog        *store.Catalog
	ProductService service.ProductService
	Guard          rest.AdminAuth
	MeterProvider  *telemetry.MeterProvider
	MetricsPath    string
	Logger         *slog.Logger

	shuttingDown atomic.Bool
}

// SetupDependencies builds the service layer on top of an opened catalog.
// notifier and mp may be nil.
func SetupDependencies(catalog *store.Catalog, notifier service.ChangeNotifier, guard *auth.AdminGuard, mp *telemetry.MeterProvider, logger *slog.Logger) *Dependencies {
	return &Dependencies{
		Catalog:        catalog,
		ProductService: service.NewService(catalog, notifier),
		Guard:          guard,
		MeterProvider:  mp,
		MetricsPath:    "/metrics",
		Logger:         logger,
	}
}

// MarkShuttingDown makes the readiness probe report not ready.
func (d *Dependencies) MarkShuttingDown() {
	d.shuttingDown.Store(true)
}

// Readiness reports whether the catalog can take traffic.
func (d *Dependencies) Readiness() (bool, map[string]any) {
	details := map[string]any{
		"products":  d.Catalog.Len(),
		"recovered": d.Catalog.Recovered(),
	}
	if d.shuttingDown.Load() {
		details["shuttingDown"] = true
		return false, details
	}
	return true, details
}

// SetupHttpHandler initializes the routes and middleware of the catalog service.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

// wireRoutes sets up the HTTP routes for the catalog service.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	authHandler := rest.NewAuthHandler(deps.Guard, deps.Logger)
	authHandler.RegisterRoutes(mux)

	productHandler := rest.NewHandler(deps.ProductService, deps.Readiness, deps.Logger)
	productHandler.RegisterRoutes(mux, authHandler.AdminOnly)

	if deps.MeterProvider != nil {
		mux.Handle(deps.MetricsPath, deps.MeterProvider.Handler())
	}
}

// SetupHttpServer creates and configures an HTTP server for the catalog service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	if cfg.Telemetry.Metrics.Path != "" {
		deps.MetricsPath = cfg.Telemetry.Metrics.Path
	}
	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, config.ServiceName, mux)
}

// SetupGrpcServer initializes the gRPC server exposing the standard health service.
func SetupGrpcServer(deps *Dependencies, hs *health.Server, reflectionEnabled bool) *grpc.Server {
	return server.NewGRPCServer(deps.Logger, reflectionEnabled, server.HealthRegistration(hs))
}
