// Package main is the camera control bridge entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/adapter/fake"
	"github.com/camera-remote/ccb/internal/adapter/lumix"
	"github.com/camera-remote/ccb/internal/api"
	"github.com/camera-remote/ccb/internal/audit"
	"github.com/camera-remote/ccb/internal/auth"
	"github.com/camera-remote/ccb/internal/camera"
	"github.com/camera-remote/ccb/internal/command"
	"github.com/camera-remote/ccb/internal/config"
	"github.com/camera-remote/ccb/internal/device"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/logging"
	"github.com/camera-remote/ccb/internal/meter"
	"github.com/camera-remote/ccb/internal/remote"
	"github.com/camera-remote/ccb/internal/telemetry"
)

// Version is stamped at build time.
var Version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ccb: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file (.yaml, .yml or .toml)")
	listen := flag.String("listen", "", "HTTP listen address, overrides server.listen")
	simulate := flag.Bool("simulate", false, "run against an in-memory camera")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [camera-address]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Step 1: Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if flag.NArg() > 0 {
		cfg.Camera.Address = flag.Arg(0)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *simulate {
		cfg.Camera.Simulate = true
	}
	if err := config.ValidateCamera(cfg.Camera); err != nil {
		flag.Usage()
		return err
	}

	// Step 2: Initialize logging
	logger, err := logging.Setup(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Close()
	log := logging.Component("main")
	log.Info().Str("version", Version).Str("camera", cfg.Camera.Address).
		Bool("simulate", cfg.Camera.Simulate).Msg("starting camera control bridge")

	// Step 3: Initialize audit logger
	var auditFile *audit.Logger
	if cfg.Audit.Enabled {
		auditFile, err = audit.NewLogger(cfg.Audit)
		if err != nil {
			return fmt.Errorf("failed to initialize audit logger: %w", err)
		}
		defer func() {
			if err := auditFile.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing audit logger")
			}
		}()
		log.Info().Str("path", auditFile.GetFilePath()).Msg("audit logger initialized")
	}

	// Step 4: Open the command channel and the live meter
	channel, liveMeter := openCamera(cfg.Camera, logger)
	log.Info().Str("vendor", cfg.Camera.Vendor).Msg("camera channel ready")

	// Step 5: Initialize telemetry hub
	hub := telemetry.NewHub(cfg.Camera.ID, cfg.Timing, logging.Component("telemetry"))
	defer hub.Stop()

	// Step 6: Create the setting controller and exposure engine
	session := camera.NewSession()
	opts := []command.Option{
		command.WithPublisher(hub),
		command.WithLogger(logging.Component("command")),
		command.WithVendor(cfg.Camera.Vendor),
	}
	if auditFile != nil {
		opts = append(opts, command.WithAuditLogger(auditFile))
	}
	ctrl := command.NewController(cfg.Camera.ID, channel, session, cfg.Timing, opts...)
	ctrl.SetAutoExposer(exposure.NewEngine(liveMeter, ctrl, cfg.Timing.MeterTimeout, logging.Component("exposure")))
	hub.SetSnapshotSource(func() interface{} { return ctrl.Snapshot() })

	// Step 7: Start the dispatcher and open the camera session
	bridge := remote.NewBridge(ctrl, hub, remote.WithLogger(logging.Component("remote")))
	defer bridge.Close()
	ctrl.SetSubmitter(bridge.Submit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bridge.EnsureSession(ctx); err != nil {
		log.Warn().Err(err).Msg("camera session not established, retrying once the camera answers a probe")
	}

	// Step 8: Register the camera and start the status prober
	devices := device.NewManager()
	if err := devices.Register(cfg.Camera.ID, cfg.Camera.Address, cfg.Camera.Vendor); err != nil {
		return fmt.Errorf("failed to register camera: %w", err)
	}
	readState := func(ctx context.Context) (*adapter.CameraStatus, error) {
		var st *adapter.CameraStatus
		err := bridge.Do(ctx, "probe", func(ctx context.Context) error {
			var err error
			st, err = ctrl.CameraState(ctx)
			return err
		})
		return st, err
	}
	prober := device.NewProber(cfg.Camera.ID, devices, readState, hub, cfg.Timing, logging.Component("device"))
	prober.OnReachable(func(ctx context.Context) {
		if err := bridge.EnsureSession(ctx); err != nil {
			log.Warn().Err(err).Msg("camera answers probes but the session could not be opened")
		}
	})
	go prober.Run(ctx)

	// Step 9: Create API server
	deps := api.Deps{
		Camera:    ctrl,
		Dispatch:  bridge,
		Telemetry: hub,
		Devices:   devices,
		Logger:    logging.Component("api"),
	}
	if cfg.Auth.Enabled {
		verifier, err := auth.NewVerifier(auth.ConfigFromAuth(cfg.Auth))
		if err != nil {
			return fmt.Errorf("failed to initialize auth: %w", err)
		}
		deps.Auth = auth.NewMiddleware(verifier, logging.Component("auth"), api.PublicPaths...)
		log.Info().Str("algorithm", cfg.Auth.Algorithm).Msg("token authentication enabled")
	}
	if cfg.Server.PagePath != "" {
		page, err := os.ReadFile(cfg.Server.PagePath)
		if err != nil {
			return fmt.Errorf("failed to read remote page: %w", err)
		}
		deps.Page = page
	}
	api.Version = Version

	server := api.NewServer(deps, parseDuration(cfg.Server.ReadTimeout), parseDuration(cfg.Server.WriteTimeout))

	// Step 10: Start HTTP server
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Listen); err != nil {
			serverErr <- err
		}
	}()
	log.Info().Str("addr", cfg.Server.Listen).Msg("camera control bridge started")

	// Step 11: SIGHUP re-reads the log level and rotates the audit file
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hangup:
				reload(*configPath, auditFile, log)
			}
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("error stopping HTTP server")
	}
	log.Info().Msg("shutdown complete")
	return nil
}

// openCamera returns the command channel and meter for cfg. In simulation
// both are in memory and the meter reports a correct exposure.
func openCamera(cfg config.CameraConfig, logger zerolog.Logger) (adapter.Channel, meter.Meter) {
	if cfg.Simulate {
		return fake.NewCamera(), meter.NewScripted()
	}
	ch := lumix.New(cfg.Address, cfg.Port, lumix.WithLogger(logger.With().Str("component", "lumix").Logger()))
	return ch, meter.NewUDP(ch, cfg.MeterPort, logger.With().Str("component", "meter").Logger())
}

// reload applies the log level from the config file and starts a new
// audit file.
func reload(configPath string, auditFile *audit.Logger, log zerolog.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Warn().Err(err).Msg("reload: configuration not applied")
	} else if err := logging.SetLevel(cfg.Logging.Level); err != nil {
		log.Warn().Err(err).Msg("reload: invalid log level")
	} else {
		log.Info().Str("level", logging.Level().String()).Msg("log level reloaded")
	}

	if auditFile == nil {
		return
	}
	if err := auditFile.Rotate(); err != nil {
		log.Warn().Err(err).Msg("reload: audit rotation failed")
		return
	}
	log.Info().Str("path", auditFile.GetFilePath()).Msg("audit file rotated")
}

// parseDuration reads an already validated duration; empty means none.
func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
