package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"reflow_oven/internal/config"
	"reflow_oven/internal/controller"
	"reflow_oven/internal/device"
	"reflow_oven/internal/handlers"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/repository/db"
	"reflow_oven/internal/server"
	"reflow_oven/internal/service"

	"github.com/spf13/pflag"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("reflow oven stopped", "err", err)
	}
}

// run owns every resource it opens, so its defers release the oven and the
// database before main decides the exit status.
func run(args []string) error {
	// load config.yml, REFLOW_* env and flags
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	// init logger
	log := logger.Get(cfg.Log.Level)
	defer log.Sync()

	// open DB
	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("init sqlite %s: %w", cfg.DB.Path, err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	catalog, err := buildCatalog(cfg.Profile)
	if err != nil {
		return fmt.Errorf("profile configuration: %w", err)
	}

	// take the oven: heater off and a first reading
	transport, err := openTransport(cfg.Device, log)
	if err != nil {
		return fmt.Errorf("open oven device %s: %w", cfg.Device.Path, err)
	}
	ctrl, err := controller.New(device.NewPort(transport), controller.Config{
		LagTime:        cfg.Control.LagTime,
		VelocityWindow: cfg.Control.VelocityWindow,
		TrendWindow:    cfg.Control.TrendWindow,
		OpenDoorDelta:  cfg.Control.OpenDoorDelta,
	}, log.Named("controller"))
	if err != nil {
		_ = transport.Close()
		return fmt.Errorf("initialize controller: %w", err)
	}
	defer func() {
		if cerr := ctrl.Close(); cerr != nil {
			log.Errorw("failed to release oven", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	services, err := service.NewService(repos, catalog, ctrl, service.Config{
		CooldownTarget: cfg.Control.CooldownTarget,
		Auth: service.AuthConfig{
			SigningKey: cfg.Auth.SigningKey,
			TokenTTL:   cfg.Auth.TokenTTL,
		},
	}, log)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	apiHandler := handlers.NewHandler(services, log.Named("http"))

	// the runner owns the controller until it returns; cancel runs before the wait
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		services.Runner.Run(ctx, cfg.Control.Tick)
	}()

	if cfg.Profile.Autostart {
		if err := services.Oven.Start(ctx, cfg.Profile.Default); err != nil {
			log.Errorw("autostart failed", "profile", cfg.Profile.Default, "err", err)
		} else {
			log.Infow("autostart", "profile", cfg.Profile.Default)
		}
	}

	// start HTTP server
	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	serveErr := runHTTPServer(srv, log)

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	return waitForShutdown(quit, serveErr, cancel, srv, log)
}

// buildCatalog returns the built-in profiles plus the configured ones.
func buildCatalog(cfg config.ProfileConfig) (*profile.Catalog, error) {
	catalog, err := profile.DefaultCatalog(cfg.Step)
	if err != nil {
		return nil, err
	}
	for _, p := range cfg.Custom {
		if err := catalog.Define(p.Name, cfg.Step, p.Setpoints); err != nil {
			return nil, err
		}
	}
	if cfg.Autostart {
		if _, err := catalog.Get(cfg.Default); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

func openTransport(cfg config.DeviceConfig, log *logger.Logger) (device.Transport, error) {
	if cfg.Simulated() {
		log.Infow("using simulated oven")
		return device.NewSimulator(device.SimulatorConfig{}), nil
	}
	return device.OpenSerial(device.SerialConfig{
		Name:        cfg.Path,
		Baud:        cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
	})
}

// runHTTPServer runs the HTTP server in a separate goroutine. The channel
// yields the serve error, or nil after a graceful shutdown.
func runHTTPServer(srv *server.Server, log *logger.Logger) <-chan error {
	serveErr := make(chan error, 1)
	go func() {
		log.Infow("http server listening", "addr", srv.Addr())
		serveErr <- srv.Run()
	}()
	return serveErr
}

// waitForShutdown blocks until a termination signal or a server failure,
// then stops the runner and drains in-flight requests. A server failure is
// returned.
func waitForShutdown(quit <-chan os.Signal, serveErr <-chan error, cancel context.CancelFunc,
	srv *server.Server, log *logger.Logger) error {
	var failure error
	select {
	case sig := <-quit:
		log.Infow("shutting down server...", "signal", sig.String())
	case err := <-serveErr:
		if err == nil {
			err = errors.New("server stopped unexpectedly")
		}
		failure = fmt.Errorf("http server: %w", err)
		log.Errorw("http server failed, shutting down", "err", err)
	}

	// stop the runner; it switches the heater off on its way out
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	return failure
}
