package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/adyen/pricemonitor/internal/config"
	"github.com/adyen/pricemonitor/internal/handlers"
)

// FixturePlansPath is where the fixture site serves its plans page.
const FixturePlansPath = "/creativecloud/plans.html"

// FixtureDependencies holds all dependencies needed for the fixture site
type FixtureDependencies struct {
	ServerConfig        config.ServerConfig
	Logger              *zap.Logger
	PlansHandler        http.Handler
	SegmentationHandler http.Handler
	CartHandler         http.Handler
	LandingHandler      http.Handler
	GeoHandler          http.Handler
}

// BuildFixtureDependencies creates the fixture handlers for catalog
func BuildFixtureDependencies(catalog *handlers.Catalog, serverConfig config.ServerConfig, logger *zap.Logger) (FixtureDependencies, error) {
	deps := FixtureDependencies{ServerConfig: serverConfig, Logger: logger}

	plans, err := handlers.NewPlansHandler(catalog, logger)
	if err != nil {
		return deps, fmt.Errorf("failed to create plans handler: %w", err)
	}
	deps.PlansHandler = plans

	segmentation, err := handlers.NewSegmentationHandler(catalog, logger)
	if err != nil {
		return deps, fmt.Errorf("failed to create segmentation handler: %w", err)
	}
	deps.SegmentationHandler = segmentation

	cart, err := handlers.NewCartHandler(catalog, logger)
	if err != nil {
		return deps, fmt.Errorf("failed to create cart handler: %w", err)
	}
	deps.CartHandler = cart

	landing, err := handlers.NewLandingHandler(catalog, logger)
	if err != nil {
		return deps, fmt.Errorf("failed to create landing handler: %w", err)
	}
	deps.LandingHandler = landing

	deps.GeoHandler = handlers.NewGeoHandler("us")
	return deps, nil
}

// RunFixture serves the fixture site until SIGINT or SIGTERM
func RunFixture(deps FixtureDependencies) error {
	listener, server, err := StartServer(deps)
	if err != nil {
		return err
	}
	defer listener.Close()

	return WaitForShutdown(server, nil, deps.Logger)
}

// StartServer creates and starts the HTTP server, returning the listener and server
func StartServer(deps FixtureDependencies) (net.Listener, *http.Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle(FixturePlansPath, deps.PlansHandler)
	mux.Handle("/store/segmentation", deps.SegmentationHandler)
	mux.Handle("/store/cart", deps.CartHandler)
	mux.Handle("/store/checkout", deps.LandingHandler)
	mux.Handle("/partner/checkout", deps.LandingHandler)
	mux.Handle("/json/", deps.GeoHandler)

	addr := fmt.Sprintf(":%s", deps.ServerConfig.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create listener: %w", err)
	}

	server := &http.Server{
		Handler: mux,
	}

	go func() {
		logger.Info("fixture site listening", zap.String("addr", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("fixture server error", zap.Error(err))
		}
	}()

	return listener, server, nil
}

// WaitForShutdown waits for a shutdown signal and gracefully shuts down the server.
// If shutdown is nil, a channel registered with signal.Notify is used.
func WaitForShutdown(server *http.Server, shutdown chan os.Signal, logger *zap.Logger) error {
	return WaitForShutdownWithTimeout(server, shutdown, 30*time.Second, logger)
}

// WaitForShutdownWithTimeout allows specifying a custom shutdown timeout
func WaitForShutdownWithTimeout(server *http.Server, shutdown chan os.Signal, shutdownTimeout time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if shutdown == nil {
		shutdown = make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(shutdown)
	}

	sig := <-shutdown
	logger.Info("received signal, shutting down fixture site", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		// Force close the server after timeout
		if err := server.Close(); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	logger.Info("fixture site stopped")
	return nil
}
