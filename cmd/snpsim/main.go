// cmd/snpsim/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	_ "efi-access/docs"
	"efi-access/internal/config"
	"efi-access/internal/debugport"
	"efi-access/internal/firmware/sim"
	"efi-access/internal/logging"
	"efi-access/internal/routes"
	"efi-access/internal/service"
	"efi-access/pkg/efi"
	"efi-access/pkg/efi/helpers"
	"efi-access/pkg/efi/snp"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server
	router *routes.Router

	debug    io.WriteCloser
	firmware *sim.Firmware
	nic      *sim.NIC
	table    *efi.BootTable
	helpers  *helpers.Context

	eventBus   *service.EventBus
	nicService *service.NICService
}

// @title EFI Simple Network Simulator API
// @version 1.0.0
// @description Emulated UEFI firmware with a Simple Network Protocol interface, driven through the efi-access bindings

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8086
// @BasePath /api/v1
func main() {
	fs := pflag.NewFlagSet("snpsim", pflag.ExitOnError)
	config.BindFlags(fs)
	fs.Parse(os.Args[1:])

	app, err := NewApplication(fs)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer logging.LogPanic(app.logger)

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication(fs *pflag.FlagSet) (*Application, error) {
	cfg, err := config.Load(fs)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := logging.NewServiceLogger(logger, "snpsim")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDebugPort(); err != nil {
		return nil, fmt.Errorf("failed to initialize debug port: %w", err)
	}

	if err := app.initializeFirmware(); err != nil {
		return nil, fmt.Errorf("failed to initialize firmware: %w", err)
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeDebugPort opens the secondary diagnostic channel
func (app *Application) initializeDebugPort() error {
	w, err := debugport.Open(&app.config.Debug, app.logger)
	if err != nil {
		return err
	}
	app.debug = w

	app.logger.Info("Debug channel initialized", zap.String("output", app.config.Debug.Output))
	return nil
}

// initializeFirmware boots the emulated firmware and installs the NIC
func (app *Application) initializeFirmware() error {
	nicConfig, err := buildNICConfig(&app.config.NIC)
	if err != nil {
		return err
	}

	app.firmware = sim.New(app.logger.Named("firmware"))
	app.nic = sim.NewNIC(app.firmware, nicConfig)

	table, err := efi.NewBootTable(app.firmware.Entry())
	if err != nil {
		return fmt.Errorf("failed to create system table: %w", err)
	}
	app.table = table

	opts := helpers.Options{
		Logger:    app.config.Helpers.Logger,
		Allocator: app.config.Helpers.Allocator,
		Level:     app.config.Helpers.Level,
		Encoding:  app.config.Helpers.Encoding,
	}
	if app.debug != nil {
		opts.Debug = app.debug
	}

	hc, err := helpers.Init(table, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize helpers: %w", err)
	}
	app.helpers = hc

	helpers.L().Info("Firmware ready", zap.Stringer("nic", app.nic))
	app.logger.Info("Emulated firmware initialized",
		zap.String("mac", nicConfig.MAC.String()),
		zap.Uint32("mtu", nicConfig.MaxPacketSize),
		zap.Bool("loopback", nicConfig.Loopback),
	)
	return nil
}

// buildNICConfig converts the configured interface into emulator settings
func buildNICConfig(cfg *config.NICConfig) (sim.NICConfig, error) {
	nic := sim.DefaultNICConfig()

	mac, err := snp.ParseMac(cfg.MAC)
	if err != nil {
		return nic, err
	}
	nic.MAC = mac
	nic.MaxPacketSize = cfg.MTU
	nic.MaxMCastFilterCount = cfg.MaxMCastFilterCount
	nic.NvRAMSize = cfg.NvRAMSize
	nic.NvRAMAccessSize = cfg.NvRAMAccessSize
	nic.RxQueueDepth = cfg.RxQueueDepth
	nic.TxQueueDepth = cfg.TxQueueDepth
	nic.Loopback = cfg.Loopback
	nic.MediaPresent = cfg.MediaPresent

	nic.Unsupported = nil
	for _, name := range cfg.UnsupportedCounters {
		c, ok := snp.ParseCounter(name)
		if !ok {
			return nic, fmt.Errorf("unknown statistics counter %q", name)
		}
		nic.Unsupported = append(nic.Unsupported, c)
	}
	return nic, nil
}

// initializeServices binds the NIC and creates service instances
func (app *Application) initializeServices() error {
	net, err := snp.Open(app.table)
	if err != nil {
		return fmt.Errorf("failed to open simple network protocol: %w", err)
	}

	app.eventBus = service.NewEventBus(app.logger)
	app.nicService = service.NewNICService(
		app.firmware,
		app.nic,
		app.table,
		net,
		app.helpers,
		app.eventBus,
		app.logger,
	)

	if app.config.NIC.AutoStart {
		if err := app.nicService.BringUp(); err != nil {
			return fmt.Errorf("failed to bring up interface: %w", err)
		}
	}

	app.logger.Info("Services initialized successfully",
		zap.Uint64("handle", uint64(net.Handle())),
		zap.Bool("auto_start", app.config.NIC.AutoStart),
	)
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	app.router = routes.NewRouter(app.config, app.logger, app.nicService, app.eventBus)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      app.router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized", zap.String("address", app.config.GetServerAddr()))
	return nil
}

// Start serves requests until a shutdown signal arrives
func (app *Application) Start() error {
	go app.eventBus.Start()

	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.waitForShutdown()
	return nil
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := logging.NewServiceLogger(app.logger, "snpsim")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	app.router.Close()
	app.eventBus.Close()

	report := app.firmware.Report()
	app.logger.Info("Firmware summary",
		zap.Bool("exited", report.Exited),
		zap.Uint64("calls", report.Calls),
		zap.Int("pool_allocations", report.PoolAllocations),
		zap.Strings("violations", report.Violations),
	)

	if app.debug != nil {
		if err := app.debug.Close(); err != nil {
			app.logger.Error("Debug channel close error", zap.Error(err))
		}
	}

	if err := logging.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}
