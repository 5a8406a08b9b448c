package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"serial-link/internal/config"
	"serial-link/internal/discovery"
	"serial-link/internal/protocol"
	"serial-link/internal/routes"
	"serial-link/internal/service"
	"serial-link/internal/utils"
)

// Application represents the serve command
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	sessions *service.SessionService
	scanner  *discovery.Scanner
}

func serveFlags(fs *pflag.FlagSet) {
	fs.String("listen", "8085", "HTTP port to listen on")
}

func runServe(cfg *config.Config, logger *zap.Logger, _ *pflag.FlagSet) error {
	app, err := NewApplication(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Start()
}

// NewApplication wires the session service, scanner and HTTP server
func NewApplication(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	serviceLogger := utils.NewServiceLogger(logger, "serial-link")
	serviceLogger.LogServiceStart(version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initializeServer()
	return app, nil
}

// initializeServices creates the driver, session service and port scanner
func (app *Application) initializeServices() error {
	if app.config.Serial.Port == "" {
		return errors.New("no port configured, use --port or serial.port")
	}

	driver, err := protocol.CreateDriver(app.config.Serial.DriverConfig(), app.logger)
	if err != nil {
		return err
	}

	app.sessions = service.NewSessionService(&app.config.Serial, driver, app.logger)
	app.scanner = discovery.NewScanner(app.logger, &discovery.Config{PortPatterns: app.config.Discovery.PortPatterns})

	app.logger.Info("Services initialized successfully",
		zap.String("driver", driver.Name()),
		zap.String("port", app.config.Serial.Port),
	)
	return nil
}

// initializeServer sets up the HTTP server
func (app *Application) initializeServer() {
	routerManager := routes.NewRouter(app.config, app.logger, app.sessions, app.scanner)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized", zap.String("address", app.server.Addr))
}

// Start opens the port, serves HTTP and blocks until a shutdown signal
func (app *Application) Start() error {
	// the bridge serves without a device; exchanges retry the open
	if err := app.sessions.Open(context.Background()); err != nil {
		app.logger.Warn("Serial port not available at startup", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	return app.waitForShutdown(serverErr)
}

// waitForShutdown waits for a shutdown signal or a server failure
func (app *Application) waitForShutdown(serverErr <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		app.shutdown("shutdown signal received")
		return nil
	case err := <-serverErr:
		app.shutdown("HTTP server failed")
		return fmt.Errorf("HTTP server failed: %w", err)
	}
}

// shutdown stops the HTTP server and releases the serial port
func (app *Application) shutdown(reason string) {
	serviceLogger := utils.NewServiceLogger(app.logger, "serial-link")
	serviceLogger.LogServiceStop(reason)

	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if err := app.sessions.Close(); err != nil {
		app.logger.Error("Serial session close error", zap.Error(err))
	}

	app.logger.Info("Application shutdown completed")
}
